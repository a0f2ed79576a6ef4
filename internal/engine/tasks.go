package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"teamops/internal/domain"
	"teamops/internal/engine/auth"
	"teamops/internal/events"
	"teamops/internal/repo"
)

// TaskCreateOptions are parameters for creating a task.
type TaskCreateOptions struct {
	ID          string
	Title       string
	Description string
	DueDate     string
	Priority    string
	Impact      string
	Company     string
	AssigneeID  string
	Link        string
	Pinned      bool
	ActorID     string
}

func (e Engine) CreateTask(ctx context.Context, opts TaskCreateOptions) (domain.Task, error) {
	title := strings.TrimSpace(opts.Title)
	if title == "" {
		return domain.Task{}, precondition("title", "title is required")
	}
	if opts.Impact == "" {
		opts.Impact = domain.ImpactSmall
	}
	if !domain.ValidImpact(opts.Impact) {
		return domain.Task{}, precondition("impact", "impact must be small, medium or large")
	}
	if opts.Priority == "" {
		opts.Priority = domain.PriorityMedium
	}
	if !domain.ValidPriority(opts.Priority) {
		return domain.Task{}, precondition("priority", "priority must be low, medium or high")
	}

	tx, err := e.begin(ctx)
	if err != nil {
		return domain.Task{}, err
	}
	defer tx.Rollback()

	actor, caps, err := e.loadActor(ctx, tx, opts.ActorID)
	if err != nil {
		return domain.Task{}, err
	}
	assignee := strings.TrimSpace(opts.AssigneeID)
	if assignee == "" && !caps.CanReassign {
		assignee = actor.ID
	}
	if assignee != "" && assignee != actor.ID && !caps.CanReassign {
		return domain.Task{}, auth.ForbiddenError{Capability: auth.CapReassign}
	}
	var assigneeProfile domain.Profile
	if assignee != "" {
		if assigneeProfile, err = e.Repo.GetProfile(ctx, tx, assignee); err != nil {
			return domain.Task{}, fmt.Errorf("assignee %s: %w", assignee, err)
		}
	}
	companyID, err := e.resolveCompany(ctx, tx, opts.Company)
	if err != nil {
		return domain.Task{}, err
	}
	meta := map[string]any{}
	if link := strings.TrimSpace(opts.Link); link != "" {
		meta[domain.MetaLink] = link
	}
	metaJSON, err := domain.EncodeMetadata(meta)
	if err != nil {
		return domain.Task{}, err
	}
	status := domain.StatusActive
	if opts.Pinned {
		status = domain.StatusFocus
	}
	id := opts.ID
	if id == "" {
		id = uuid.NewString()
	}
	now := e.stamp()
	t := domain.Task{
		ID:              id,
		Title:           title,
		Description:     opts.Description,
		DueDate:         optionalString(opts.DueDate),
		MetadataJSON:    metaJSON,
		CompanyID:       companyID,
		Priority:        opts.Priority,
		Impact:          opts.Impact,
		EstimateMinutes: domain.EstimateMinutes(opts.Impact),
		AssigneeID:      optionalString(assignee),
		CreatedBy:       actor.ID,
		Status:          status,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := e.Repo.InsertTask(ctx, tx, t); err != nil {
		return domain.Task{}, fmt.Errorf("insert task: %w", err)
	}
	if err := e.appendEvent(ctx, tx, "task.created", "task", t.ID, actor.ID, events.EventPayload{
		"title":       t.Title,
		"status":      t.Status,
		"impact":      t.Impact,
		"assigned_to": assignee,
	}); err != nil {
		return domain.Task{}, err
	}
	if assignee != "" && assignee != actor.ID {
		if _, err := e.notifyAssignment(ctx, tx, actor.ID, assigneeProfile.ID, t); err != nil {
			return domain.Task{}, err
		}
	}
	created, err := e.Repo.GetTask(ctx, tx, t.ID)
	if err != nil {
		return domain.Task{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Task{}, err
	}
	return created, nil
}

// resolveCompany accepts a company id or name. Empty means no company.
func (e Engine) resolveCompany(ctx context.Context, tx *sqlx.Tx, ref string) (*string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, nil
	}
	c, err := e.Repo.FindCompany(ctx, tx, ref)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, precondition("company", "unknown company %q", ref)
		}
		return nil, err
	}
	return &c.ID, nil
}

// TaskUpdateOptions carries field edits; nil fields are left unchanged.
type TaskUpdateOptions struct {
	ID          string
	Title       *string
	Description *string
	DueDate     *string
	Priority    *string
	Impact      *string
	Company     *string
	Link        *string
	AssigneeID  *string
	ActorID     string
}

// UpdateTask applies field edits. It never changes status.
func (e Engine) UpdateTask(ctx context.Context, opts TaskUpdateOptions) (domain.Task, error) {
	tx, err := e.begin(ctx)
	if err != nil {
		return domain.Task{}, err
	}
	defer tx.Rollback()

	actor, caps, err := e.loadActor(ctx, tx, opts.ActorID)
	if err != nil {
		return domain.Task{}, err
	}
	t, err := e.Repo.GetTask(ctx, tx, opts.ID)
	if err != nil {
		return domain.Task{}, err
	}
	if !caps.CanReassign && !t.AssignedTo(actor.ID) && t.CreatedBy != actor.ID {
		return domain.Task{}, auth.ForbiddenError{Capability: auth.CapEditTask}
	}
	changed := []string{}
	if opts.Title != nil {
		title := strings.TrimSpace(*opts.Title)
		if title == "" {
			return domain.Task{}, precondition("title", "title is required")
		}
		t.Title = title
		changed = append(changed, "title")
	}
	if opts.Description != nil {
		t.Description = *opts.Description
		changed = append(changed, "description")
	}
	if opts.DueDate != nil {
		t.DueDate = optionalString(*opts.DueDate)
		changed = append(changed, "due_date")
	}
	if opts.Priority != nil {
		if !domain.ValidPriority(*opts.Priority) {
			return domain.Task{}, precondition("priority", "priority must be low, medium or high")
		}
		t.Priority = *opts.Priority
		changed = append(changed, "priority")
	}
	if opts.Impact != nil {
		if !domain.ValidImpact(*opts.Impact) {
			return domain.Task{}, precondition("impact", "impact must be small, medium or large")
		}
		t.Impact = *opts.Impact
		t.EstimateMinutes = domain.EstimateMinutes(t.Impact)
		changed = append(changed, "impact")
	}
	if opts.Company != nil {
		if t.CompanyID, err = e.resolveCompany(ctx, tx, *opts.Company); err != nil {
			return domain.Task{}, err
		}
		changed = append(changed, "company")
	}
	if opts.Link != nil {
		meta, err := domain.DecodeMetadata(t.MetadataJSON)
		if err != nil {
			return domain.Task{}, err
		}
		if link := strings.TrimSpace(*opts.Link); link != "" {
			meta[domain.MetaLink] = link
		} else {
			delete(meta, domain.MetaLink)
		}
		if t.MetadataJSON, err = domain.EncodeMetadata(meta); err != nil {
			return domain.Task{}, err
		}
		changed = append(changed, "link")
	}
	previous := stringValue(t.AssigneeID)
	next := previous
	if opts.AssigneeID != nil {
		next = strings.TrimSpace(*opts.AssigneeID)
	}
	reassigned := next != previous
	if reassigned {
		if !caps.CanReassign {
			return domain.Task{}, auth.ForbiddenError{Capability: auth.CapReassign}
		}
		if next != "" {
			if _, err := e.Repo.GetProfile(ctx, tx, next); err != nil {
				return domain.Task{}, fmt.Errorf("assignee %s: %w", next, err)
			}
		}
		t.AssigneeID = optionalString(next)
		changed = append(changed, "assigned_to")
	}
	if len(changed) == 0 {
		return t, nil
	}
	t.UpdatedAt = e.stamp()
	if err := e.Repo.UpdateTask(ctx, tx, t); err != nil {
		return domain.Task{}, fmt.Errorf("update task: %w", err)
	}
	if err := e.appendEvent(ctx, tx, "task.updated", "task", t.ID, actor.ID, events.EventPayload{"fields": changed}); err != nil {
		return domain.Task{}, err
	}
	if reassigned {
		if err := e.appendEvent(ctx, tx, "task.reassigned", "task", t.ID, actor.ID, events.EventPayload{
			"from": previous,
			"to":   next,
		}); err != nil {
			return domain.Task{}, err
		}
		if next != "" {
			if _, err := e.notifyAssignment(ctx, tx, actor.ID, next, t); err != nil {
				return domain.Task{}, err
			}
		}
	}
	updated, err := e.Repo.GetTask(ctx, tx, t.ID)
	if err != nil {
		return domain.Task{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Task{}, err
	}
	return updated, nil
}

func (e Engine) notifyAssignment(ctx context.Context, tx *sqlx.Tx, senderID, recipientID string, t domain.Task) (domain.Message, error) {
	return e.insertMessage(ctx, tx, domain.Message{
		SenderID:      senderID,
		RecipientID:   &recipientID,
		Content:       fmt.Sprintf("You've been assigned: %s", t.Title),
		Kind:          domain.MessageDirect,
		RelatedTaskID: &t.ID,
	})
}

// TogglePin moves a task between focus and active.
func (e Engine) TogglePin(ctx context.Context, id, actorID string) (domain.Task, error) {
	tx, err := e.begin(ctx)
	if err != nil {
		return domain.Task{}, err
	}
	defer tx.Rollback()

	actor, caps, err := e.loadActor(ctx, tx, actorID)
	if err != nil {
		return domain.Task{}, err
	}
	t, err := e.Repo.GetTask(ctx, tx, id)
	if err != nil {
		return domain.Task{}, err
	}
	if !caps.SeesAllTasks && !t.AssignedTo(actor.ID) {
		return domain.Task{}, auth.ForbiddenError{Capability: auth.CapEditTask}
	}
	var target, evt string
	switch t.Status {
	case domain.StatusFocus:
		target, evt = domain.StatusActive, "task.unpinned"
	case domain.StatusActive:
		target, evt = domain.StatusFocus, "task.pinned"
	default:
		return domain.Task{}, TransitionError{From: t.Status, To: domain.StatusFocus}
	}
	from := t.Status
	t.Status = target
	t.UpdatedAt = e.stamp()
	if err := e.Repo.UpdateTask(ctx, tx, t); err != nil {
		return domain.Task{}, fmt.Errorf("update task: %w", err)
	}
	if err := e.appendEvent(ctx, tx, evt, "task", t.ID, actor.ID, events.EventPayload{"from_status": from, "to_status": target}); err != nil {
		return domain.Task{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Task{}, err
	}
	return t, nil
}

// SubmitTask hands finished work to a founder for review.
func (e Engine) SubmitTask(ctx context.Context, id, notes, actorID string) (domain.Task, error) {
	notes = strings.TrimSpace(notes)
	if notes == "" {
		return domain.Task{}, precondition("notes", "completion notes are required")
	}
	tx, err := e.begin(ctx)
	if err != nil {
		return domain.Task{}, err
	}
	defer tx.Rollback()

	actor, caps, err := e.loadActor(ctx, tx, actorID)
	if err != nil {
		return domain.Task{}, err
	}
	t, err := e.Repo.GetTask(ctx, tx, id)
	if err != nil {
		return domain.Task{}, err
	}
	if !t.AssignedTo(actor.ID) && !caps.CanDirectComplete {
		return domain.Task{}, auth.ForbiddenError{Capability: auth.CapEditTask}
	}
	if err := ensureTaskTransition(t.Status, domain.StatusSubmitted); err != nil {
		return domain.Task{}, err
	}
	meta, err := domain.DecodeMetadata(t.MetadataJSON)
	if err != nil {
		return domain.Task{}, err
	}
	now := e.stamp()
	meta[domain.MetaNotes] = notes
	meta[domain.MetaSubmittedBy] = actor.ID
	meta[domain.MetaSubmittedAt] = now
	if t.MetadataJSON, err = domain.EncodeMetadata(meta); err != nil {
		return domain.Task{}, err
	}
	from := t.Status
	t.Status = domain.StatusSubmitted
	t.UpdatedAt = now
	if err := e.Repo.UpdateTask(ctx, tx, t); err != nil {
		return domain.Task{}, fmt.Errorf("update task: %w", err)
	}
	if err := e.appendEvent(ctx, tx, "task.submitted", "task", t.ID, actor.ID, events.EventPayload{
		"from_status": from,
		"notes":       notes,
	}); err != nil {
		return domain.Task{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Task{}, err
	}
	return t, nil
}

// CompleteTask is the founder shortcut from focus/active straight to completed.
// Notes are optional and recorded like a submission when given.
func (e Engine) CompleteTask(ctx context.Context, id, notes, actorID string) (CompletionResult, error) {
	tx, err := e.begin(ctx)
	if err != nil {
		return CompletionResult{}, err
	}
	defer tx.Rollback()

	actor, caps, err := e.loadActor(ctx, tx, actorID)
	if err != nil {
		return CompletionResult{}, err
	}
	if !caps.CanDirectComplete {
		return CompletionResult{}, auth.ForbiddenError{Capability: auth.CapDirectComplete}
	}
	t, err := e.Repo.GetTask(ctx, tx, id)
	if err != nil {
		return CompletionResult{}, err
	}
	if t.Status == domain.StatusSubmitted {
		// submitted work goes through ApproveTask
		return CompletionResult{}, TransitionError{From: t.Status, To: domain.StatusCompleted}
	}
	if err := ensureTaskTransition(t.Status, domain.StatusCompleted); err != nil {
		return CompletionResult{}, err
	}
	if notes = strings.TrimSpace(notes); notes != "" {
		meta, err := domain.DecodeMetadata(t.MetadataJSON)
		if err != nil {
			return CompletionResult{}, err
		}
		meta[domain.MetaNotes] = notes
		if t.MetadataJSON, err = domain.EncodeMetadata(meta); err != nil {
			return CompletionResult{}, err
		}
	}
	res, recipient, err := e.complete(ctx, tx, t, actor, "direct")
	if err != nil {
		return CompletionResult{}, err
	}
	announcement, err := e.insertMessage(ctx, tx, domain.Message{
		SenderID:      actor.ID,
		Content:       fmt.Sprintf("%s completed %q (+%d XP)", recipient.DisplayName, t.Title, res.Award.Delta),
		Kind:          domain.MessageTeam,
		RelatedTaskID: &t.ID,
	})
	if err != nil {
		return CompletionResult{}, err
	}
	res.Message = &announcement
	if res.Task, err = e.Repo.GetTask(ctx, tx, t.ID); err != nil {
		return CompletionResult{}, err
	}
	if err := tx.Commit(); err != nil {
		return CompletionResult{}, err
	}
	return res, nil
}

// FinishTask is the single "done" action: founders complete directly, team members submit.
func (e Engine) FinishTask(ctx context.Context, id, notes, actorID string) (CompletionResult, error) {
	caps, err := e.Capabilities(ctx, actorID)
	if err != nil {
		return CompletionResult{}, err
	}
	if caps.CanDirectComplete {
		return e.CompleteTask(ctx, id, notes, actorID)
	}
	t, err := e.SubmitTask(ctx, id, notes, actorID)
	if err != nil {
		return CompletionResult{}, err
	}
	return CompletionResult{Task: t, Submitted: true}, nil
}

// ArchiveTask shelves a completed task.
func (e Engine) ArchiveTask(ctx context.Context, id, actorID string) (domain.Task, error) {
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
	if err := ensureTaskTransition(t.Status, domain.StatusArchived); err != nil {
		return domain.Task{}, err
	}
	t.Status = domain.StatusArchived
	t.UpdatedAt = e.stamp()
	if err := e.Repo.UpdateTask(ctx, tx, t); err != nil {
		return domain.Task{}, fmt.Errorf("update task: %w", err)
	}
	if err := e.appendEvent(ctx, tx, "task.archived", "task", t.ID, actor.ID, nil); err != nil {
		return domain.Task{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Task{}, err
	}
	return t, nil
}

func (e Engine) DeleteTask(ctx context.Context, id, actorID string) error {
	tx, err := e.begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	actor, caps, err := e.loadActor(ctx, tx, actorID)
	if err != nil {
		return err
	}
	if !caps.CanDeleteTasks {
		return auth.ForbiddenError{Capability: auth.CapDeleteTasks}
	}
	t, err := e.Repo.GetTask(ctx, tx, id)
	if err != nil {
		return err
	}
	if err := e.Repo.DeleteTask(ctx, tx, id); err != nil {
		return err
	}
	if err := e.appendEvent(ctx, tx, "task.deleted", "task", id, actor.ID, events.EventPayload{"title": t.Title, "status": t.Status}); err != nil {
		return err
	}
	return tx.Commit()
}

// AttachPhoto uploads body through the photo store and records the reference on the task.
// The upload happens before the transaction; a failed commit leaves an orphaned object.
func (e Engine) AttachPhoto(ctx context.Context, id, actorID, name, contentType string, body io.Reader) (domain.Task, error) {
	if e.Photos == nil {
		return domain.Task{}, precondition("photo", "photo storage is not configured")
	}
	actor, caps, err := e.loadActor(ctx, nil, actorID)
	if err != nil {
		return domain.Task{}, err
	}
	t, err := e.Repo.GetTask(ctx, nil, id)
	if err != nil {
		return domain.Task{}, err
	}
	if !caps.SeesAllTasks && !t.AssignedTo(actor.ID) && t.CreatedBy != actor.ID {
		return domain.Task{}, auth.ForbiddenError{Capability: auth.CapEditTask}
	}
	key := path.Join(t.ID, uuid.NewString()+path.Ext(name))
	ref, err := e.Photos.Put(ctx, key, body, contentType)
	if err != nil {
		return domain.Task{}, fmt.Errorf("upload photo: %w", err)
	}

	tx, err := e.begin(ctx)
	if err != nil {
		return domain.Task{}, err
	}
	defer tx.Rollback()
	if t, err = e.Repo.GetTask(ctx, tx, id); err != nil {
		return domain.Task{}, err
	}
	t.PhotoRef = &ref
	t.UpdatedAt = e.stamp()
	if err := e.Repo.UpdateTask(ctx, tx, t); err != nil {
		return domain.Task{}, fmt.Errorf("update task: %w", err)
	}
	if err := e.appendEvent(ctx, tx, "task.photo_attached", "task", t.ID, actor.ID, events.EventPayload{"photo_ref": ref}); err != nil {
		return domain.Task{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Task{}, err
	}
	return t, nil
}

func (e Engine) GetTask(ctx context.Context, id string) (domain.Task, error) {
	return e.Repo.GetTask(ctx, nil, id)
}

func (e Engine) ListTasks(ctx context.Context, q repo.TaskQuery) ([]domain.Task, error) {
	return e.Repo.ListTasks(ctx, q)
}
