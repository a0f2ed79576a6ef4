package app

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"teamops/internal/config"
	"teamops/internal/domain"
	"teamops/internal/engine"
	"teamops/internal/session"
	"teamops/internal/views"
)

const testConfig = `team:
  name: Test Team
  founders:
    - boss@example.com
companies:
  - id: acme
    name: Acme
accomplishments:
  store: local
  file: accomplishments.yml
`

func openTestWorkspace(t *testing.T) *Workspace {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(config.Path(dir), []byte(testConfig), 0o644); err != nil {
		t.Fatal(err)
	}
	ws, err := Open(context.Background(), dir, nil)
	if err != nil {
		t.Fatalf("open workspace: %v", err)
	}
	t.Cleanup(func() { ws.Close() })
	ws.Engine.Now = func() time.Time { return time.Date(2024, 3, 6, 12, 0, 0, 0, time.UTC) }
	return ws
}

func TestOpenSeedsCompaniesAndLocalStore(t *testing.T) {
	ws := openTestWorkspace(t)
	ctx := context.Background()
	companies, err := ws.Engine.ListCompanies(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(companies) != 1 || companies[0].ID != "acme" {
		t.Fatalf("unexpected companies %+v", companies)
	}
	if ws.Credentials != nil || ws.Engine.Docs != nil {
		t.Fatalf("docsync should stay unwired when disabled")
	}
	if ws.Engine.Photos != nil {
		t.Fatalf("photos should stay unwired without a bucket")
	}
	p, err := ResolveActor(ctx, ws.Engine, "", "dev@example.com")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := ws.Engine.PostAccomplishment(ctx, p.ID, "Closed the quarter", false); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(ws.Path, "accomplishments.yml")); err != nil {
		t.Fatalf("expected local accomplishment file: %v", err)
	}
}

func TestResolveActor(t *testing.T) {
	ws := openTestWorkspace(t)
	ctx := context.Background()
	founder, err := ResolveActor(ctx, ws.Engine, "", "boss@example.com")
	if err != nil {
		t.Fatal(err)
	}
	if founder.Role != domain.RoleFounder {
		t.Fatalf("expected founder role, got %s", founder.Role)
	}
	again, err := ResolveActor(ctx, ws.Engine, "", "boss@example.com")
	if err != nil || again.ID != founder.ID {
		t.Fatalf("expected same profile, got %+v %v", again, err)
	}
	byID, err := ResolveActor(ctx, ws.Engine, founder.ID, "")
	if err != nil || byID.Email != "boss@example.com" {
		t.Fatalf("lookup by id failed: %+v %v", byID, err)
	}
	if _, err := ResolveActor(ctx, ws.Engine, "missing", ""); err == nil {
		t.Fatalf("expected error for unknown id")
	}
	if _, err := ResolveActor(ctx, ws.Engine, "", ""); err == nil {
		t.Fatalf("expected error without actor")
	}
}

func TestDashboardRefetchesAfterMutation(t *testing.T) {
	ws := openTestWorkspace(t)
	ctx := context.Background()
	member, err := ResolveActor(ctx, ws.Engine, "", "dev@example.com")
	if err != nil {
		t.Fatal(err)
	}
	sess := session.NewManager()
	d := NewDashboard(ws.Engine, sess)
	d.Now = ws.Engine.Now
	if err := d.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer d.Stop()
	if d.Loaded() {
		t.Fatalf("nothing should load before sign-in")
	}

	sess.Set(session.Session{ProfileID: member.ID, Email: member.Email})
	if !d.Loaded() || d.Viewer().ID != member.ID {
		t.Fatalf("expected fetch on sign-in")
	}
	if _, err := d.CreateTask(ctx, engine.TaskCreateOptions{Title: "Write intro", Impact: domain.ImpactMedium}); err != nil {
		t.Fatal(err)
	}
	tasks := d.Tasks()
	if len(tasks) != 1 || tasks[0].Title != "Write intro" {
		t.Fatalf("expected refetched collection, got %+v", tasks)
	}
	board := d.Board(views.AllFilter(), "")
	if len(board.Active) != 1 || len(board.Mine) != 1 {
		t.Fatalf("unexpected board %+v", board)
	}
	res, err := d.Finish(ctx, tasks[0].ID, "Draft ready")
	if err != nil {
		t.Fatal(err)
	}
	if !res.Submitted {
		t.Fatalf("team member finish should submit")
	}
	if got := d.Tasks()[0].Status; got != domain.StatusSubmitted {
		t.Fatalf("expected submitted after refetch, got %s", got)
	}

	sess.Clear()
	if d.Loaded() || len(d.Tasks()) != 0 {
		t.Fatalf("sign-out should drop the collection")
	}
	if _, err := d.TogglePin(ctx, tasks[0].ID); !errors.Is(err, ErrSignedOut) {
		t.Fatalf("expected ErrSignedOut, got %v", err)
	}
}

func TestRefreshDiscardsStaleResult(t *testing.T) {
	sess := session.NewManager()
	sess.Set(session.Session{ProfileID: "p1"})
	d := NewDashboard(engine.Engine{}, sess)
	release := make(chan struct{})
	started := make(chan struct{})
	d.fetch = func(ctx context.Context, viewerID string) (snapshot, error) {
		close(started)
		<-release
		return snapshot{
			viewer: domain.Profile{ID: viewerID},
			tasks:  []domain.Task{{ID: "t1", Status: domain.StatusActive}},
		}, nil
	}
	done := make(chan error, 1)
	go func() { done <- d.Refresh(context.Background()) }()
	<-started
	d.Stop()
	close(release)
	if err := <-done; !errors.Is(err, ErrStale) {
		t.Fatalf("expected ErrStale, got %v", err)
	}
	if d.Loaded() || len(d.Tasks()) != 0 {
		t.Fatalf("stale result was applied")
	}
}

func TestRefreshErrorKeepsPriorState(t *testing.T) {
	sess := session.NewManager()
	sess.Set(session.Session{ProfileID: "p1"})
	d := NewDashboard(engine.Engine{}, sess)
	d.fetch = func(ctx context.Context, viewerID string) (snapshot, error) {
		return snapshot{tasks: []domain.Task{{ID: "t1"}}}, nil
	}
	if err := d.Refresh(context.Background()); err != nil {
		t.Fatal(err)
	}
	d.fetch = func(ctx context.Context, viewerID string) (snapshot, error) {
		return snapshot{}, errors.New("network down")
	}
	if err := d.Refresh(context.Background()); err == nil {
		t.Fatalf("expected error")
	}
	if tasks := d.Tasks(); len(tasks) != 1 || tasks[0].ID != "t1" {
		t.Fatalf("prior state lost: %+v", tasks)
	}
}
