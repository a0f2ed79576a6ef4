package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"teamops/internal/domain"
	"teamops/internal/events"
)

// insertMessage stores m and records a message.sent event in tx.
func (e Engine) insertMessage(ctx context.Context, tx *sqlx.Tx, m domain.Message) (domain.Message, error) {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.CreatedAt == "" {
		m.CreatedAt = e.stamp()
	}
	if m.Kind == "" {
		m.Kind = domain.MessageDirect
		if m.RecipientID == nil {
			m.Kind = domain.MessageTeam
		}
	}
	if err := e.Repo.InsertMessage(ctx, tx, m); err != nil {
		return domain.Message{}, fmt.Errorf("insert message: %w", err)
	}
	if err := e.appendEvent(ctx, tx, "message.sent", "message", m.ID, m.SenderID, events.EventPayload{
		"kind":            m.Kind,
		"recipient_id":    stringValue(m.RecipientID),
		"related_task_id": stringValue(m.RelatedTaskID),
		"is_kudos":        m.IsKudos,
	}); err != nil {
		return domain.Message{}, err
	}
	return m, nil
}

// SendMessageOptions describe a plain message. No recipient broadcasts to the team.
type SendMessageOptions struct {
	RecipientID   string
	Content       string
	RelatedTaskID string
	ActorID       string
}

func (e Engine) SendMessage(ctx context.Context, opts SendMessageOptions) (domain.Message, error) {
	content := strings.TrimSpace(opts.Content)
	if content == "" {
		return domain.Message{}, precondition("content", "message content is required")
	}
	tx, err := e.begin(ctx)
	if err != nil {
		return domain.Message{}, err
	}
	defer tx.Rollback()

	actor, _, err := e.loadActor(ctx, tx, opts.ActorID)
	if err != nil {
		return domain.Message{}, err
	}
	recipient := optionalString(opts.RecipientID)
	if recipient != nil {
		if _, err := e.Repo.GetProfile(ctx, tx, *recipient); err != nil {
			return domain.Message{}, fmt.Errorf("recipient %s: %w", *recipient, err)
		}
	}
	related := optionalString(opts.RelatedTaskID)
	if related != nil {
		if _, err := e.Repo.GetTask(ctx, tx, *related); err != nil {
			return domain.Message{}, fmt.Errorf("related task %s: %w", *related, err)
		}
	}
	m, err := e.insertMessage(ctx, tx, domain.Message{
		SenderID:      actor.ID,
		RecipientID:   recipient,
		Content:       content,
		RelatedTaskID: related,
	})
	if err != nil {
		return domain.Message{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Message{}, err
	}
	m.SenderName = actor.DisplayName
	return m, nil
}

func validInboxKind(kind string) error {
	switch kind {
	case "", domain.MessageTeam, domain.MessageDirect, domain.MessageKudos:
		return nil
	}
	return precondition("kind", "kind must be team, direct or kudos")
}

// Inbox lists messages visible to the actor, newest first. An empty kind returns
// the actor's direct messages and kudos together with team broadcasts.
func (e Engine) Inbox(ctx context.Context, actorID, kind string, limit int) ([]domain.Message, error) {
	if err := validInboxKind(kind); err != nil {
		return nil, err
	}
	if _, _, err := e.loadActor(ctx, nil, actorID); err != nil {
		return nil, err
	}
	return e.Repo.ListInbox(ctx, actorID, kind, limit)
}

// MarkRead marks the actor's received messages of kind as read and reports how many changed.
func (e Engine) MarkRead(ctx context.Context, actorID, kind string) (int64, error) {
	if err := validInboxKind(kind); err != nil {
		return 0, err
	}
	tx, err := e.begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	actor, _, err := e.loadActor(ctx, tx, actorID)
	if err != nil {
		return 0, err
	}
	n, err := e.Repo.MarkRead(ctx, tx, actor.ID, kind)
	if err != nil {
		return 0, fmt.Errorf("mark read: %w", err)
	}
	if n == 0 {
		return 0, nil
	}
	if err := e.appendEvent(ctx, tx, "messages.read", "profile", actor.ID, actor.ID, events.EventPayload{
		"kind":  kind,
		"count": n,
	}); err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return n, nil
}
