package app

import (
	"context"
	"errors"
	"io"
	"log"
	"sync"
	"time"

	"teamops/internal/domain"
	"teamops/internal/engine"
	"teamops/internal/repo"
	"teamops/internal/session"
	"teamops/internal/views"
)

var (
	// ErrStale means the fetched result was discarded because the dashboard was
	// stopped or the session changed while the fetch was in flight.
	ErrStale = errors.New("stale fetch discarded")
	// ErrSignedOut means there is no session to act for.
	ErrSignedOut = errors.New("not signed in")
)

type snapshot struct {
	viewer domain.Profile
	tasks  []domain.Task
}

// Dashboard holds the full task collection for the signed-in viewer and
// re-fetches it after every mutation it issues.
type Dashboard struct {
	Engine  engine.Engine
	Session *session.Manager
	Now     func() time.Time
	Logger  *log.Logger

	fetch func(ctx context.Context, viewerID string) (snapshot, error)

	mu          sync.Mutex
	generation  uint64
	loaded      bool
	viewer      domain.Profile
	tasks       []domain.Task
	unsubscribe func()
}

func NewDashboard(e engine.Engine, s *session.Manager) *Dashboard {
	return &Dashboard{
		Engine:  e,
		Session: s,
		Now:     time.Now,
		Logger:  log.New(io.Discard, "", 0),
	}
}

// Start subscribes to session changes. A sign-in triggers a fetch, a sign-out
// drops the held collection.
func (d *Dashboard) Start(ctx context.Context) error {
	d.mu.Lock()
	if d.unsubscribe != nil {
		d.mu.Unlock()
		return nil
	}
	d.unsubscribe = d.Session.Subscribe(func(s session.Snapshot) {
		d.invalidate()
		if !s.SignedIn() {
			return
		}
		if err := d.Refresh(ctx); err != nil && !errors.Is(err, ErrStale) {
			d.logf("dashboard: refresh after sign-in failed: %v", err)
		}
	})
	d.mu.Unlock()
	if d.Session.Current().SignedIn() {
		if err := d.Refresh(ctx); err != nil && !errors.Is(err, ErrStale) {
			return err
		}
	}
	return nil
}

// Stop unsubscribes and invalidates any fetch still in flight.
func (d *Dashboard) Stop() {
	d.mu.Lock()
	unsubscribe := d.unsubscribe
	d.unsubscribe = nil
	d.generation++
	d.mu.Unlock()
	if unsubscribe != nil {
		unsubscribe()
	}
}

func (d *Dashboard) invalidate() {
	d.mu.Lock()
	d.generation++
	d.loaded = false
	d.viewer = domain.Profile{}
	d.tasks = nil
	d.mu.Unlock()
}

// Refresh re-fetches the whole task collection. The result is applied only if
// nothing invalidated the dashboard while the fetch ran; on error the previous
// collection stays in place.
func (d *Dashboard) Refresh(ctx context.Context) error {
	cur := d.Session.Current()
	if !cur.SignedIn() {
		return ErrSignedOut
	}
	d.mu.Lock()
	gen := d.generation
	d.mu.Unlock()

	fetch := d.fetch
	if fetch == nil {
		fetch = d.fetchFromEngine
	}
	snap, err := fetch(ctx, cur.Session.ProfileID)
	if err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if gen != d.generation {
		return ErrStale
	}
	d.viewer = snap.viewer
	d.tasks = snap.tasks
	d.loaded = true
	return nil
}

func (d *Dashboard) fetchFromEngine(ctx context.Context, viewerID string) (snapshot, error) {
	viewer, err := d.Engine.GetProfile(ctx, viewerID)
	if err != nil {
		return snapshot{}, err
	}
	tasks, err := d.Engine.ListTasks(ctx, repo.TaskQuery{})
	if err != nil {
		return snapshot{}, err
	}
	return snapshot{viewer: viewer, tasks: tasks}, nil
}

// Loaded reports whether a fetch has been applied since the last invalidation.
func (d *Dashboard) Loaded() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.loaded
}

// Tasks returns a copy of the held collection.
func (d *Dashboard) Tasks() []domain.Task {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]domain.Task(nil), d.tasks...)
}

func (d *Dashboard) Viewer() domain.Profile {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.viewer
}

// Board derives the viewer's board from the held collection at wall-clock now.
func (d *Dashboard) Board(f views.Filter, search string) views.Board {
	d.mu.Lock()
	tasks := append([]domain.Task(nil), d.tasks...)
	viewer := d.viewer
	d.mu.Unlock()
	return views.Project(tasks, viewer, f, search, d.now())
}

func (d *Dashboard) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

func (d *Dashboard) logf(format string, args ...any) {
	if d.Logger != nil {
		d.Logger.Printf(format, args...)
	}
}

func (d *Dashboard) actorID() (string, error) {
	cur := d.Session.Current()
	if !cur.SignedIn() {
		return "", ErrSignedOut
	}
	return cur.Session.ProfileID, nil
}

// afterMutation re-fetches once a mutation has committed. Refresh failures are
// logged, not returned, since the mutation itself succeeded.
func (d *Dashboard) afterMutation(ctx context.Context) {
	if err := d.Refresh(ctx); err != nil && !errors.Is(err, ErrStale) {
		d.logf("dashboard: refresh after mutation failed: %v", err)
	}
}

func (d *Dashboard) CreateTask(ctx context.Context, opts engine.TaskCreateOptions) (domain.Task, error) {
	actorID, err := d.actorID()
	if err != nil {
		return domain.Task{}, err
	}
	opts.ActorID = actorID
	t, err := d.Engine.CreateTask(ctx, opts)
	if err != nil {
		return domain.Task{}, err
	}
	d.afterMutation(ctx)
	return t, nil
}

func (d *Dashboard) UpdateTask(ctx context.Context, opts engine.TaskUpdateOptions) (domain.Task, error) {
	actorID, err := d.actorID()
	if err != nil {
		return domain.Task{}, err
	}
	opts.ActorID = actorID
	t, err := d.Engine.UpdateTask(ctx, opts)
	if err != nil {
		return domain.Task{}, err
	}
	d.afterMutation(ctx)
	return t, nil
}

func (d *Dashboard) TogglePin(ctx context.Context, id string) (domain.Task, error) {
	return d.taskMutation(ctx, func(actorID string) (domain.Task, error) {
		return d.Engine.TogglePin(ctx, id, actorID)
	})
}

func (d *Dashboard) Submit(ctx context.Context, id, notes string) (domain.Task, error) {
	return d.taskMutation(ctx, func(actorID string) (domain.Task, error) {
		return d.Engine.SubmitTask(ctx, id, notes, actorID)
	})
}

func (d *Dashboard) Return(ctx context.Context, id, message string) (domain.Task, error) {
	return d.taskMutation(ctx, func(actorID string) (domain.Task, error) {
		return d.Engine.ReturnTask(ctx, id, message, actorID)
	})
}

func (d *Dashboard) Archive(ctx context.Context, id string) (domain.Task, error) {
	return d.taskMutation(ctx, func(actorID string) (domain.Task, error) {
		return d.Engine.ArchiveTask(ctx, id, actorID)
	})
}

// Finish completes for founders and submits for everyone else.
func (d *Dashboard) Finish(ctx context.Context, id, notes string) (engine.CompletionResult, error) {
	return d.completion(ctx, func(actorID string) (engine.CompletionResult, error) {
		return d.Engine.FinishTask(ctx, id, notes, actorID)
	})
}

func (d *Dashboard) Approve(ctx context.Context, id, message string) (engine.CompletionResult, error) {
	return d.completion(ctx, func(actorID string) (engine.CompletionResult, error) {
		return d.Engine.ApproveTask(ctx, id, message, actorID)
	})
}

func (d *Dashboard) Delete(ctx context.Context, id string) error {
	actorID, err := d.actorID()
	if err != nil {
		return err
	}
	if err := d.Engine.DeleteTask(ctx, id, actorID); err != nil {
		return err
	}
	d.afterMutation(ctx)
	return nil
}

func (d *Dashboard) taskMutation(ctx context.Context, fn func(actorID string) (domain.Task, error)) (domain.Task, error) {
	actorID, err := d.actorID()
	if err != nil {
		return domain.Task{}, err
	}
	t, err := fn(actorID)
	if err != nil {
		return domain.Task{}, err
	}
	d.afterMutation(ctx)
	return t, nil
}

func (d *Dashboard) completion(ctx context.Context, fn func(actorID string) (engine.CompletionResult, error)) (engine.CompletionResult, error) {
	actorID, err := d.actorID()
	if err != nil {
		return engine.CompletionResult{}, err
	}
	res, err := fn(actorID)
	if err != nil {
		return engine.CompletionResult{}, err
	}
	d.afterMutation(ctx)
	return res, nil
}
