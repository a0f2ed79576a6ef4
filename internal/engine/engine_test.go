package engine_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"teamops/internal/config"
	"teamops/internal/db"
	"teamops/internal/domain"
	"teamops/internal/engine"
	"teamops/internal/engine/auth"
	"teamops/internal/migrate"
	"teamops/internal/repo"
)

type testEnv struct {
	Engine  engine.Engine
	Ctx     context.Context
	Founder domain.Profile
	Member  domain.Profile
	Other   domain.Profile
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	dir := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: dir})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	ctx := context.Background()
	if err := migrate.Migrate(ctx, conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	cfg := config.Default()
	cfg.Team.Founders = []string{"boss@example.com"}
	eng := engine.New(conn, cfg)
	eng.Now = func() time.Time { return time.Date(2024, 3, 6, 12, 0, 0, 0, time.UTC) }
	if err := eng.SeedCompanies(ctx, cfg.Companies); err != nil {
		t.Fatalf("seed companies: %v", err)
	}
	founder, _, err := eng.EnsureProfile(ctx, "founder-1", "boss@example.com", "Boss")
	if err != nil {
		t.Fatalf("founder: %v", err)
	}
	member, _, err := eng.EnsureProfile(ctx, "member-1", "dev@example.com", "Dana")
	if err != nil {
		t.Fatalf("member: %v", err)
	}
	other, _, err := eng.EnsureProfile(ctx, "member-2", "ops@example.com", "Omar")
	if err != nil {
		t.Fatalf("other: %v", err)
	}
	return testEnv{Engine: eng, Ctx: ctx, Founder: founder, Member: member, Other: other}
}

func (env testEnv) createTask(t *testing.T, opts engine.TaskCreateOptions) domain.Task {
	t.Helper()
	task, err := env.Engine.CreateTask(env.Ctx, opts)
	if err != nil {
		t.Fatalf("create task: %v", err)
	}
	return task
}

func (env testEnv) eventCount(t *testing.T, evtType, entityID string) int {
	t.Helper()
	evs, err := env.Engine.ListEvents(env.Ctx, repo.EventQuery{Type: evtType, EntityID: entityID})
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	return len(evs)
}

func TestEnsureProfileRoles(t *testing.T) {
	env := newTestEnv(t)
	if env.Founder.Role != domain.RoleFounder || env.Member.Role != domain.RoleTeam {
		t.Fatalf("unexpected roles %s %s", env.Founder.Role, env.Member.Role)
	}
	if env.Member.Level != 1 || env.Member.XP != 0 {
		t.Fatalf("new profile should start at level 1, got %+v", env.Member)
	}
	again, created, err := env.Engine.EnsureProfile(env.Ctx, "member-1", "boss@example.com", "Renamed")
	if err != nil {
		t.Fatal(err)
	}
	if created || again.Role != domain.RoleTeam || again.DisplayName != "Dana" {
		t.Fatalf("existing profile must not change on login: %+v", again)
	}
	p, _, err := env.Engine.EnsureProfile(env.Ctx, "member-3", "sam@example.com", "")
	if err != nil {
		t.Fatal(err)
	}
	if p.DisplayName != "sam" {
		t.Fatalf("expected email local part as name, got %q", p.DisplayName)
	}
}

func TestCreateTaskDefaults(t *testing.T) {
	env := newTestEnv(t)
	task := env.createTask(t, engine.TaskCreateOptions{Title: "Write intro", ActorID: env.Member.ID})
	if task.Impact != domain.ImpactSmall || task.Priority != domain.PriorityMedium {
		t.Fatalf("unexpected defaults %s/%s", task.Impact, task.Priority)
	}
	if task.EstimateMinutes != 20 || task.Status != domain.StatusActive {
		t.Fatalf("unexpected estimate/status %d %s", task.EstimateMinutes, task.Status)
	}
	if !task.AssignedTo(env.Member.ID) || task.AssigneeName != "Dana" {
		t.Fatalf("team member should own the task: %+v", task)
	}

	pinned := env.createTask(t, engine.TaskCreateOptions{
		Title: "Ship deck", Impact: domain.ImpactLarge, Pinned: true, Company: "Internal", ActorID: env.Founder.ID,
	})
	if pinned.Status != domain.StatusFocus || pinned.EstimateMinutes != 90 {
		t.Fatalf("unexpected pinned task %+v", pinned)
	}
	if pinned.AssigneeID != nil {
		t.Fatalf("founder task without assignee should stay unassigned")
	}
	if pinned.CompanyName != "Internal" {
		t.Fatalf("expected company resolved by name, got %q", pinned.CompanyName)
	}
	if env.eventCount(t, "task.created", pinned.ID) != 1 {
		t.Fatalf("expected task.created event")
	}
}

func TestCreateTaskRejects(t *testing.T) {
	env := newTestEnv(t)
	var pre engine.PreconditionError
	if _, err := env.Engine.CreateTask(env.Ctx, engine.TaskCreateOptions{Title: "  ", ActorID: env.Member.ID}); !errors.As(err, &pre) || pre.Field != "title" {
		t.Fatalf("expected title precondition, got %v", err)
	}
	if _, err := env.Engine.CreateTask(env.Ctx, engine.TaskCreateOptions{Title: "x", Impact: "huge", ActorID: env.Member.ID}); !errors.As(err, &pre) {
		t.Fatalf("expected impact precondition, got %v", err)
	}
	var forbidden auth.ForbiddenError
	_, err := env.Engine.CreateTask(env.Ctx, engine.TaskCreateOptions{Title: "x", AssigneeID: env.Other.ID, ActorID: env.Member.ID})
	if !errors.As(err, &forbidden) || forbidden.Capability != auth.CapReassign {
		t.Fatalf("expected reassign forbidden, got %v", err)
	}
}

func TestCreateTaskForOtherNotifies(t *testing.T) {
	env := newTestEnv(t)
	task := env.createTask(t, engine.TaskCreateOptions{Title: "Call client", AssigneeID: env.Member.ID, ActorID: env.Founder.ID})
	inbox, err := env.Engine.Inbox(env.Ctx, env.Member.ID, domain.MessageDirect, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(inbox) != 1 || inbox[0].Content != "You've been assigned: Call client" {
		t.Fatalf("unexpected inbox %+v", inbox)
	}
	if inbox[0].RelatedTaskID == nil || *inbox[0].RelatedTaskID != task.ID {
		t.Fatalf("notification should reference the task")
	}
}

func TestTaskStatusTransitions(t *testing.T) {
	env := newTestEnv(t)
	task := env.createTask(t, engine.TaskCreateOptions{Title: "Do work", ActorID: env.Member.ID})

	pinned, err := env.Engine.TogglePin(env.Ctx, task.ID, env.Member.ID)
	if err != nil || pinned.Status != domain.StatusFocus {
		t.Fatalf("pin: %v %s", err, pinned.Status)
	}
	unpinned, err := env.Engine.TogglePin(env.Ctx, task.ID, env.Member.ID)
	if err != nil || unpinned.Status != domain.StatusActive {
		t.Fatalf("unpin: %v %s", err, unpinned.Status)
	}
	if _, err := env.Engine.TogglePin(env.Ctx, task.ID, env.Other.ID); !isForbidden(err) {
		t.Fatalf("other member should not pin, got %v", err)
	}
	if _, err := env.Engine.ArchiveTask(env.Ctx, task.ID, env.Founder.ID); !isTransition(err) {
		t.Fatalf("active cannot be archived, got %v", err)
	}
	if _, err := env.Engine.ApproveTask(env.Ctx, task.ID, "", env.Founder.ID); !isTransition(err) {
		t.Fatalf("active cannot be approved, got %v", err)
	}
	if _, err := env.Engine.ReturnTask(env.Ctx, task.ID, "", env.Founder.ID); !isTransition(err) {
		t.Fatalf("active cannot be returned, got %v", err)
	}

	if _, err := env.Engine.SubmitTask(env.Ctx, task.ID, "done", env.Member.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := env.Engine.TogglePin(env.Ctx, task.ID, env.Member.ID); !isTransition(err) {
		t.Fatalf("submitted cannot be pinned, got %v", err)
	}
	if _, err := env.Engine.CompleteTask(env.Ctx, task.ID, "", env.Founder.ID); !isTransition(err) {
		t.Fatalf("submitted must go through approval, got %v", err)
	}
	if _, err := env.Engine.ApproveTask(env.Ctx, task.ID, "", env.Founder.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := env.Engine.SubmitTask(env.Ctx, task.ID, "again", env.Member.ID); !isTransition(err) {
		t.Fatalf("completed cannot be resubmitted, got %v", err)
	}
	archived, err := env.Engine.ArchiveTask(env.Ctx, task.ID, env.Founder.ID)
	if err != nil || archived.Status != domain.StatusArchived {
		t.Fatalf("archive: %v", err)
	}
	if _, err := env.Engine.ArchiveTask(env.Ctx, task.ID, env.Founder.ID); !isTransition(err) {
		t.Fatalf("archived is terminal, got %v", err)
	}
}

func TestSubmitRecordsNotes(t *testing.T) {
	env := newTestEnv(t)
	task := env.createTask(t, engine.TaskCreateOptions{Title: "Write intro", Impact: domain.ImpactMedium, ActorID: env.Member.ID})

	var pre engine.PreconditionError
	if _, err := env.Engine.SubmitTask(env.Ctx, task.ID, "   ", env.Member.ID); !errors.As(err, &pre) || pre.Field != "notes" {
		t.Fatalf("expected notes precondition, got %v", err)
	}
	if _, err := env.Engine.SubmitTask(env.Ctx, task.ID, "done", env.Other.ID); !isForbidden(err) {
		t.Fatalf("non-assignee should not submit, got %v", err)
	}
	submitted, err := env.Engine.SubmitTask(env.Ctx, task.ID, "Draft in the shared folder", env.Member.ID)
	if err != nil {
		t.Fatal(err)
	}
	if submitted.Status != domain.StatusSubmitted {
		t.Fatalf("expected submitted, got %s", submitted.Status)
	}
	if got := domain.MetadataString(submitted.MetadataJSON, domain.MetaNotes); got != "Draft in the shared folder" {
		t.Fatalf("notes not recorded: %q", got)
	}
	if domain.MetadataString(submitted.MetadataJSON, domain.MetaSubmittedAt) == "" {
		t.Fatalf("submitted_at missing")
	}
	member, _ := env.Engine.GetProfile(env.Ctx, env.Member.ID)
	if member.XP != 0 {
		t.Fatalf("submission must not award xp, got %d", member.XP)
	}
}

func TestFounderDirectComplete(t *testing.T) {
	env := newTestEnv(t)
	task := env.createTask(t, engine.TaskCreateOptions{Title: "Close deal", Impact: domain.ImpactLarge, AssigneeID: env.Member.ID, ActorID: env.Founder.ID})

	if _, err := env.Engine.CompleteTask(env.Ctx, task.ID, "", env.Member.ID); !isForbidden(err) {
		t.Fatalf("team member cannot direct complete, got %v", err)
	}
	res, err := env.Engine.CompleteTask(env.Ctx, task.ID, "", env.Founder.ID)
	if err != nil {
		t.Fatal(err)
	}
	if res.Task.Status != domain.StatusCompleted || res.Task.CompletedAt == nil {
		t.Fatalf("unexpected task %+v", res.Task)
	}
	if res.XPAwarded != 20 || res.RecipientID != env.Member.ID || res.Standing.XP != 20 {
		t.Fatalf("unexpected award %+v", res)
	}
	member, _ := env.Engine.GetProfile(env.Ctx, env.Member.ID)
	if member.XP != 20 || member.Level != 1 {
		t.Fatalf("unexpected profile %+v", member)
	}
	team, err := env.Engine.Inbox(env.Ctx, env.Other.ID, domain.MessageTeam, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(team) != 1 || team[0].Content != `Dana completed "Close deal" (+20 XP)` {
		t.Fatalf("unexpected broadcast %+v", team)
	}
	if env.eventCount(t, "task.completed", task.ID) != 1 || env.eventCount(t, "profile.xp_awarded", env.Member.ID) != 1 {
		t.Fatalf("expected completion events")
	}
}

func TestFinishRoutesByRole(t *testing.T) {
	env := newTestEnv(t)
	mine := env.createTask(t, engine.TaskCreateOptions{Title: "Mine", ActorID: env.Member.ID})
	res, err := env.Engine.FinishTask(env.Ctx, mine.ID, "done", env.Member.ID)
	if err != nil || !res.Submitted || res.Task.Status != domain.StatusSubmitted {
		t.Fatalf("member finish should submit: %+v %v", res, err)
	}
	own := env.createTask(t, engine.TaskCreateOptions{Title: "Own", ActorID: env.Founder.ID})
	res, err = env.Engine.FinishTask(env.Ctx, own.ID, "", env.Founder.ID)
	if err != nil || res.Submitted || res.Task.Status != domain.StatusCompleted {
		t.Fatalf("founder finish should complete: %+v %v", res, err)
	}
	if res.RecipientID != env.Founder.ID || res.XPAwarded != 5 {
		t.Fatalf("unassigned task should credit the completing founder: %+v", res)
	}
}

func TestUpdateTaskEditsAndReassign(t *testing.T) {
	env := newTestEnv(t)
	task := env.createTask(t, engine.TaskCreateOptions{Title: "Draft", ActorID: env.Member.ID})

	impact := domain.ImpactMedium
	title := "Draft v2"
	updated, err := env.Engine.UpdateTask(env.Ctx, engine.TaskUpdateOptions{ID: task.ID, Title: &title, Impact: &impact, ActorID: env.Member.ID})
	if err != nil {
		t.Fatal(err)
	}
	if updated.Title != "Draft v2" || updated.EstimateMinutes != 45 {
		t.Fatalf("unexpected update %+v", updated)
	}
	if _, err := env.Engine.UpdateTask(env.Ctx, engine.TaskUpdateOptions{ID: task.ID, Title: &title, ActorID: env.Other.ID}); !isForbidden(err) {
		t.Fatalf("unrelated member should not edit, got %v", err)
	}
	other := env.Other.ID
	if _, err := env.Engine.UpdateTask(env.Ctx, engine.TaskUpdateOptions{ID: task.ID, AssigneeID: &other, ActorID: env.Member.ID}); !isForbidden(err) {
		t.Fatalf("member cannot reassign, got %v", err)
	}

	reassigned, err := env.Engine.UpdateTask(env.Ctx, engine.TaskUpdateOptions{ID: task.ID, AssigneeID: &other, ActorID: env.Founder.ID})
	if err != nil {
		t.Fatal(err)
	}
	if !reassigned.AssignedTo(env.Other.ID) || reassigned.Status != domain.StatusActive {
		t.Fatalf("unexpected reassignment %+v", reassigned)
	}
	inbox, _ := env.Engine.Inbox(env.Ctx, env.Other.ID, domain.MessageDirect, 0)
	if len(inbox) != 1 || inbox[0].Content != "You've been assigned: Draft v2" {
		t.Fatalf("expected assignment notice, got %+v", inbox)
	}

	// same assignee again: no new notice
	if _, err := env.Engine.UpdateTask(env.Ctx, engine.TaskUpdateOptions{ID: task.ID, AssigneeID: &other, ActorID: env.Founder.ID}); err != nil {
		t.Fatal(err)
	}
	empty := ""
	unassigned, err := env.Engine.UpdateTask(env.Ctx, engine.TaskUpdateOptions{ID: task.ID, AssigneeID: &empty, ActorID: env.Founder.ID})
	if err != nil || unassigned.AssigneeID != nil {
		t.Fatalf("unassign: %+v %v", unassigned, err)
	}
	inbox, _ = env.Engine.Inbox(env.Ctx, env.Other.ID, domain.MessageDirect, 0)
	if len(inbox) != 1 {
		t.Fatalf("expected a single notice, got %d", len(inbox))
	}
	if env.eventCount(t, "task.reassigned", task.ID) != 2 {
		t.Fatalf("expected two reassignment events")
	}
}

func TestDeleteTaskFounderOnly(t *testing.T) {
	env := newTestEnv(t)
	task := env.createTask(t, engine.TaskCreateOptions{Title: "Mistake", ActorID: env.Member.ID})
	if err := env.Engine.DeleteTask(env.Ctx, task.ID, env.Member.ID); !isForbidden(err) {
		t.Fatalf("member cannot delete, got %v", err)
	}
	if err := env.Engine.DeleteTask(env.Ctx, task.ID, env.Founder.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := env.Engine.GetTask(env.Ctx, task.ID); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if env.eventCount(t, "task.deleted", task.ID) != 1 {
		t.Fatalf("expected task.deleted event")
	}
}

func TestUnknownActorRejected(t *testing.T) {
	env := newTestEnv(t)
	if _, err := env.Engine.CreateTask(env.Ctx, engine.TaskCreateOptions{Title: "x", ActorID: "ghost"}); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("expected not found actor, got %v", err)
	}
}

func isForbidden(err error) bool {
	var f auth.ForbiddenError
	return errors.As(err, &f)
}

func isTransition(err error) bool {
	var te engine.TransitionError
	return errors.As(err, &te)
}
