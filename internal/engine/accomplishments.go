package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"teamops/internal/domain"
	"teamops/internal/events"
)

// ErrNoDocToken means the author has no stored token for document sync.
var ErrNoDocToken = errors.New("no document token stored")

type AccomplishmentResult struct {
	Accomplishment domain.Accomplishment `json:"accomplishment"`
	Message        *domain.Message       `json:"message,omitempty"`
	// Warning is set when the document sync step was skipped or failed.
	Warning string `json:"warning,omitempty"`
}

// PostAccomplishment records an accomplishment, optionally broadcasting it to the
// team. Authors with a linked document also get a dated entry appended there;
// that step never fails the call.
func (e Engine) PostAccomplishment(ctx context.Context, actorID, text string, share bool) (AccomplishmentResult, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return AccomplishmentResult{}, precondition("text", "accomplishment text is required")
	}
	if e.Accomplishments == nil {
		return AccomplishmentResult{}, errors.New("accomplishment store not configured")
	}
	tx, err := e.begin(ctx)
	if err != nil {
		return AccomplishmentResult{}, err
	}
	defer tx.Rollback()

	actor, _, err := e.loadActor(ctx, tx, actorID)
	if err != nil {
		return AccomplishmentResult{}, err
	}
	a := domain.Accomplishment{
		ID:           uuid.NewString(),
		AuthorID:     actor.ID,
		Text:         text,
		PostedToTeam: share,
		CreatedAt:    e.stamp(),
	}
	if err := e.Accomplishments.Add(ctx, tx, a); err != nil {
		return AccomplishmentResult{}, fmt.Errorf("store accomplishment: %w", err)
	}
	if err := e.appendEvent(ctx, tx, "accomplishment.posted", "accomplishment", a.ID, actor.ID, events.EventPayload{
		"shared": share,
	}); err != nil {
		return AccomplishmentResult{}, err
	}
	res := AccomplishmentResult{Accomplishment: a}
	if share {
		m, err := e.insertMessage(ctx, tx, domain.Message{
			SenderID: actor.ID,
			Content:  fmt.Sprintf("%s shared an accomplishment: %s", actor.DisplayName, text),
			Kind:     domain.MessageTeam,
		})
		if err != nil {
			return AccomplishmentResult{}, err
		}
		res.Message = &m
	}
	if err := tx.Commit(); err != nil {
		return AccomplishmentResult{}, err
	}
	if err := e.syncToDoc(ctx, actor, text); err != nil {
		res.Warning = fmt.Sprintf("saved, but the document was not updated: %v", err)
		e.logf("warn: docsync for %s: %v", actor.ID, err)
	}
	return res, nil
}

func (e Engine) syncToDoc(ctx context.Context, author domain.Profile, text string) error {
	docID := stringValue(author.GoogleDocID)
	if docID == "" || e.Docs == nil {
		return nil
	}
	if e.Tokens == nil {
		return ErrNoDocToken
	}
	token, err := e.Tokens.Token(author.ID)
	if err != nil {
		return err
	}
	if token == "" {
		return ErrNoDocToken
	}
	return e.Docs.AppendEntry(ctx, token, docID, text, e.now())
}

func (e Engine) ListAccomplishments(ctx context.Context, authorID string) ([]domain.Accomplishment, error) {
	if e.Accomplishments == nil {
		return nil, errors.New("accomplishment store not configured")
	}
	return e.Accomplishments.List(ctx, authorID)
}
