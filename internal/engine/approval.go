package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"teamops/internal/domain"
	"teamops/internal/engine/auth"
	"teamops/internal/events"
	"teamops/internal/leveling"
)

// CompletionResult describes what a completion (or a team member's finish) did.
type CompletionResult struct {
	Task        domain.Task       `json:"task"`
	Submitted   bool              `json:"submitted"`
	RecipientID string            `json:"recipient_id,omitempty"`
	Award       leveling.Award    `json:"-"`
	Standing    leveling.Standing `json:"standing"`
	XPAwarded   int               `json:"xp_awarded"`
	LeveledUp   bool              `json:"leveled_up"`
	Message     *domain.Message   `json:"message,omitempty"`
	// Celebrate asks the UI for its completion animation. It carries no state.
	Celebrate bool `json:"celebrate"`
}

// complete moves t to completed and credits XP for its current impact. The
// assignee receives the XP; unassigned tasks credit the completing actor.
func (e Engine) complete(ctx context.Context, tx *sqlx.Tx, t domain.Task, actor domain.Profile, via string) (CompletionResult, domain.Profile, error) {
	recipientID := stringValue(t.AssigneeID)
	if recipientID == "" {
		recipientID = actor.ID
	}
	recipient, err := e.Repo.GetProfile(ctx, tx, recipientID)
	if err != nil {
		return CompletionResult{}, domain.Profile{}, fmt.Errorf("xp recipient %s: %w", recipientID, err)
	}
	award := leveling.Apply(recipient.XP, t.Impact)
	now := e.stamp()
	if err := e.Repo.SetProgress(ctx, tx, recipient.ID, award.After.XP, award.After.Level, now); err != nil {
		return CompletionResult{}, domain.Profile{}, fmt.Errorf("award xp: %w", err)
	}
	from := t.Status
	t.Status = domain.StatusCompleted
	t.CompletedAt = &now
	t.UpdatedAt = now
	if err := e.Repo.UpdateTask(ctx, tx, t); err != nil {
		return CompletionResult{}, domain.Profile{}, fmt.Errorf("update task: %w", err)
	}
	if err := e.appendEvent(ctx, tx, "task.completed", "task", t.ID, actor.ID, events.EventPayload{
		"from_status": from,
		"via":         via,
		"recipient":   recipient.ID,
		"xp_awarded":  award.Delta,
	}); err != nil {
		return CompletionResult{}, domain.Profile{}, err
	}
	if err := e.appendEvent(ctx, tx, "profile.xp_awarded", "profile", recipient.ID, actor.ID, events.EventPayload{
		"task_id":    t.ID,
		"delta":      award.Delta,
		"xp":         award.After.XP,
		"level":      award.After.Level,
		"leveled_up": award.LeveledUp,
	}); err != nil {
		return CompletionResult{}, domain.Profile{}, err
	}
	recipient.XP = award.After.XP
	recipient.Level = award.After.Level
	return CompletionResult{
		Task:        t,
		RecipientID: recipient.ID,
		Award:       award,
		Standing:    award.After,
		XPAwarded:   award.Delta,
		LeveledUp:   award.LeveledUp,
	}, recipient, nil
}

// ApproveTask accepts submitted work. A non-empty message is delivered to the
// assignee as kudos tied to the task.
func (e Engine) ApproveTask(ctx context.Context, id, message, actorID string) (CompletionResult, error) {
	tx, err := e.begin(ctx)
	if err != nil {
		return CompletionResult{}, err
	}
	defer tx.Rollback()

	actor, caps, err := e.loadActor(ctx, tx, actorID)
	if err != nil {
		return CompletionResult{}, err
	}
	if !caps.CanApprove {
		return CompletionResult{}, auth.ForbiddenError{Capability: auth.CapApprove}
	}
	t, err := e.Repo.GetTask(ctx, tx, id)
	if err != nil {
		return CompletionResult{}, err
	}
	if t.Status != domain.StatusSubmitted {
		return CompletionResult{}, TransitionError{From: t.Status, To: domain.StatusCompleted}
	}
	res, _, err := e.complete(ctx, tx, t, actor, "approval")
	if err != nil {
		return CompletionResult{}, err
	}
	if message = strings.TrimSpace(message); message != "" && t.AssigneeID != nil {
		kudos, err := e.insertMessage(ctx, tx, domain.Message{
			SenderID:      actor.ID,
			RecipientID:   t.AssigneeID,
			Content:       message,
			Kind:          domain.MessageKudos,
			IsKudos:       true,
			RelatedTaskID: &t.ID,
		})
		if err != nil {
			return CompletionResult{}, err
		}
		res.Message = &kudos
	}
	if res.Task, err = e.Repo.GetTask(ctx, tx, t.ID); err != nil {
		return CompletionResult{}, err
	}
	if err := tx.Commit(); err != nil {
		return CompletionResult{}, err
	}
	res.Celebrate = true
	return res, nil
}

// ReturnTask sends submitted work back to active. A non-empty message is
// prepended to the description as a notes block; no message is sent.
func (e Engine) ReturnTask(ctx context.Context, id, message, actorID string) (domain.Task, error) {
	tx, err := e.begin(ctx)
	if err != nil {
		return domain.Task{}, err
	}
	defer tx.Rollback()

	actor, caps, err := e.loadActor(ctx, tx, actorID)
	if err != nil {
		return domain.Task{}, err
	}
	if !caps.CanApprove {
		return domain.Task{}, auth.ForbiddenError{Capability: auth.CapApprove}
	}
	t, err := e.Repo.GetTask(ctx, tx, id)
	if err != nil {
		return domain.Task{}, err
	}
	if t.Status != domain.StatusSubmitted {
		return domain.Task{}, TransitionError{From: t.Status, To: domain.StatusActive}
	}
	message = strings.TrimSpace(message)
	if message != "" {
		t.Description = domain.PrependNotes(t.Description, message)
	}
	meta, err := domain.DecodeMetadata(t.MetadataJSON)
	if err != nil {
		return domain.Task{}, err
	}
	now := e.stamp()
	delete(meta, domain.MetaSubmittedAt)
	meta[domain.MetaReturnedAt] = now
	if t.MetadataJSON, err = domain.EncodeMetadata(meta); err != nil {
		return domain.Task{}, err
	}
	t.Status = domain.StatusActive
	t.UpdatedAt = now
	if err := e.Repo.UpdateTask(ctx, tx, t); err != nil {
		return domain.Task{}, fmt.Errorf("update task: %w", err)
	}
	if err := e.appendEvent(ctx, tx, "task.returned", "task", t.ID, actor.ID, events.EventPayload{
		"with_notes": message != "",
	}); err != nil {
		return domain.Task{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Task{}, err
	}
	return t, nil
}

// SendKudos sends a standalone kudos message, not tied to any task.
func (e Engine) SendKudos(ctx context.Context, recipientID, message, actorID string) (domain.Message, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return domain.Message{}, precondition("message", "message is required")
	}
	if strings.TrimSpace(recipientID) == "" {
		return domain.Message{}, precondition("recipient_id", "recipient is required")
	}
	tx, err := e.begin(ctx)
	if err != nil {
		return domain.Message{}, err
	}
	defer tx.Rollback()

	actor, caps, err := e.loadActor(ctx, tx, actorID)
	if err != nil {
		return domain.Message{}, err
	}
	if !caps.CanSendKudos {
		return domain.Message{}, auth.ForbiddenError{Capability: auth.CapSendKudos}
	}
	if _, err := e.Repo.GetProfile(ctx, tx, recipientID); err != nil {
		return domain.Message{}, fmt.Errorf("recipient %s: %w", recipientID, err)
	}
	m, err := e.insertMessage(ctx, tx, domain.Message{
		SenderID:    actor.ID,
		RecipientID: &recipientID,
		Content:     message,
		Kind:        domain.MessageKudos,
		IsKudos:     true,
	})
	if err != nil {
		return domain.Message{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Message{}, err
	}
	return m, nil
}
