package engine_test

import (
	"errors"
	"testing"

	"teamops/internal/domain"
	"teamops/internal/engine"
)

func (env testEnv) submitted(t *testing.T, title, impact string) domain.Task {
	t.Helper()
	task := env.createTask(t, engine.TaskCreateOptions{
		Title: title, Description: "Original brief", Impact: impact, AssigneeID: env.Member.ID, ActorID: env.Founder.ID,
	})
	task, err := env.Engine.SubmitTask(env.Ctx, task.ID, "ready for review", env.Member.ID)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	return task
}

func TestApproveWithKudos(t *testing.T) {
	env := newTestEnv(t)
	task := env.submitted(t, "Write intro", domain.ImpactMedium)

	if _, err := env.Engine.ApproveTask(env.Ctx, task.ID, "Nice work", env.Member.ID); !isForbidden(err) {
		t.Fatalf("team member cannot approve, got %v", err)
	}
	res, err := env.Engine.ApproveTask(env.Ctx, task.ID, "Nice work", env.Founder.ID)
	if err != nil {
		t.Fatal(err)
	}
	if res.Task.Status != domain.StatusCompleted || res.Task.CompletedAt == nil || !res.Celebrate {
		t.Fatalf("unexpected approval %+v", res)
	}
	if res.XPAwarded != 10 || res.RecipientID != env.Member.ID {
		t.Fatalf("unexpected award %+v", res)
	}
	kudos, err := env.Engine.Inbox(env.Ctx, env.Member.ID, domain.MessageKudos, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(kudos) != 1 {
		t.Fatalf("expected one kudos, got %d", len(kudos))
	}
	k := kudos[0]
	if k.Content != "Nice work" || !k.IsKudos || k.SenderID != env.Founder.ID {
		t.Fatalf("unexpected kudos %+v", k)
	}
	if k.RelatedTaskID == nil || *k.RelatedTaskID != task.ID {
		t.Fatalf("kudos should reference the task")
	}
	member, _ := env.Engine.GetProfile(env.Ctx, env.Member.ID)
	if member.XP != 10 {
		t.Fatalf("expected 10 xp, got %d", member.XP)
	}
}

func TestApproveWithoutMessageSendsNothing(t *testing.T) {
	env := newTestEnv(t)
	task := env.submitted(t, "Tidy CRM", domain.ImpactSmall)
	res, err := env.Engine.ApproveTask(env.Ctx, task.ID, "  ", env.Founder.ID)
	if err != nil {
		t.Fatal(err)
	}
	if res.Message != nil {
		t.Fatalf("no message expected, got %+v", res.Message)
	}
	inbox, _ := env.Engine.Inbox(env.Ctx, env.Member.ID, domain.MessageKudos, 0)
	if len(inbox) != 0 {
		t.Fatalf("unexpected kudos %+v", inbox)
	}
}

func TestApproveLevelsUp(t *testing.T) {
	env := newTestEnv(t)
	var last engine.CompletionResult
	for i := 0; i < 10; i++ {
		task := env.submitted(t, "Big push", domain.ImpactLarge)
		res, err := env.Engine.ApproveTask(env.Ctx, task.ID, "", env.Founder.ID)
		if err != nil {
			t.Fatal(err)
		}
		if i < 9 && res.LeveledUp {
			t.Fatalf("level up too early at %d", i)
		}
		last = res
	}
	if !last.LeveledUp || last.Standing.Level != 2 || last.Standing.XP != 200 || last.Standing.Title != "Apprentice" {
		t.Fatalf("unexpected standing %+v", last.Standing)
	}
	member, _ := env.Engine.GetProfile(env.Ctx, env.Member.ID)
	if member.Level != 2 || member.XP != 200 {
		t.Fatalf("profile not updated: %+v", member)
	}
}

func TestReturnPrependsNotes(t *testing.T) {
	env := newTestEnv(t)
	task := env.submitted(t, "Write intro", domain.ImpactMedium)
	prior, _ := env.Engine.Inbox(env.Ctx, env.Member.ID, "", 0)
	before := len(prior)

	returned, err := env.Engine.ReturnTask(env.Ctx, task.ID, "Fix the intro", env.Founder.ID)
	if err != nil {
		t.Fatal(err)
	}
	if returned.Status != domain.StatusActive {
		t.Fatalf("expected active, got %s", returned.Status)
	}
	if want := "Notes:\nFix the intro\n\n---\n\nOriginal brief"; returned.Description != want {
		t.Fatalf("unexpected description %q", returned.Description)
	}
	if domain.MetadataString(returned.MetadataJSON, domain.MetaSubmittedAt) != "" {
		t.Fatalf("submitted_at should be cleared")
	}
	if domain.MetadataString(returned.MetadataJSON, domain.MetaReturnedAt) == "" {
		t.Fatalf("returned_at should be set")
	}
	if !returned.AssignedTo(env.Member.ID) {
		t.Fatalf("assignment must be kept")
	}
	member, _ := env.Engine.GetProfile(env.Ctx, env.Member.ID)
	if member.XP != 0 {
		t.Fatalf("return must not award xp")
	}
	inbox, _ := env.Engine.Inbox(env.Ctx, env.Member.ID, "", 0)
	if len(inbox) != before {
		t.Fatalf("return should not send a message, inbox grew to %d", len(inbox))
	}
	// can be resubmitted
	if _, err := env.Engine.SubmitTask(env.Ctx, task.ID, "fixed", env.Member.ID); err != nil {
		t.Fatalf("resubmit: %v", err)
	}
}

func TestReturnWithoutMessageKeepsDescription(t *testing.T) {
	env := newTestEnv(t)
	task := env.submitted(t, "Write intro", domain.ImpactSmall)
	returned, err := env.Engine.ReturnTask(env.Ctx, task.ID, "", env.Founder.ID)
	if err != nil {
		t.Fatal(err)
	}
	if returned.Description != "Original brief" {
		t.Fatalf("description changed: %q", returned.Description)
	}
}

func TestApproveIsAtomic(t *testing.T) {
	env := newTestEnv(t)
	task := env.submitted(t, "Write intro", domain.ImpactLarge)
	if _, err := env.Engine.DB.ExecContext(env.Ctx, `DROP TABLE messages`); err != nil {
		t.Fatal(err)
	}
	if _, err := env.Engine.ApproveTask(env.Ctx, task.ID, "Nice work", env.Founder.ID); err == nil {
		t.Fatalf("expected failure when the kudos cannot be stored")
	}
	after, err := env.Engine.GetTask(env.Ctx, task.ID)
	if err != nil {
		t.Fatal(err)
	}
	if after.Status != domain.StatusSubmitted || after.CompletedAt != nil {
		t.Fatalf("status change leaked: %+v", after)
	}
	member, _ := env.Engine.GetProfile(env.Ctx, env.Member.ID)
	if member.XP != 0 {
		t.Fatalf("xp leaked: %d", member.XP)
	}
	if env.eventCount(t, "task.completed", task.ID) != 0 {
		t.Fatalf("event leaked")
	}
}

func TestSendKudos(t *testing.T) {
	env := newTestEnv(t)
	if _, err := env.Engine.SendKudos(env.Ctx, env.Other.ID, "Thanks!", env.Member.ID); !isForbidden(err) {
		t.Fatalf("team member cannot send kudos, got %v", err)
	}
	var pre engine.PreconditionError
	if _, err := env.Engine.SendKudos(env.Ctx, env.Member.ID, "", env.Founder.ID); !errors.As(err, &pre) {
		t.Fatalf("expected precondition, got %v", err)
	}
	m, err := env.Engine.SendKudos(env.Ctx, env.Member.ID, "Great week", env.Founder.ID)
	if err != nil {
		t.Fatal(err)
	}
	if m.Kind != domain.MessageKudos || !m.IsKudos || m.RelatedTaskID != nil {
		t.Fatalf("unexpected kudos %+v", m)
	}
}
