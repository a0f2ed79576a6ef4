package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"teamops/internal/domain"
	"teamops/internal/events"
	"teamops/internal/leveling"
	"teamops/internal/repo"
	"teamops/internal/views"
)

// EnsureProfile returns the profile for an authenticated identity, creating it on
// first sight. Emails on the founder allow-list start as founders; the role of an
// existing profile is never touched here.
func (e Engine) EnsureProfile(ctx context.Context, identity, email, name string) (domain.Profile, bool, error) {
	identity = strings.TrimSpace(identity)
	if identity == "" {
		return domain.Profile{}, false, precondition("identity", "identity is required")
	}
	tx, err := e.begin(ctx)
	if err != nil {
		return domain.Profile{}, false, err
	}
	defer tx.Rollback()

	p, err := e.Repo.GetProfile(ctx, tx, identity)
	if err == nil {
		return p, false, nil
	}
	if !errors.Is(err, repo.ErrNotFound) {
		return domain.Profile{}, false, err
	}
	role := domain.RoleTeam
	if e.Config.IsFounderEmail(email) {
		role = domain.RoleFounder
	}
	now := e.stamp()
	p = domain.Profile{
		ID:          identity,
		Email:       strings.TrimSpace(email),
		DisplayName: defaultDisplayName(name, email),
		Role:        role,
		Level:       leveling.LevelFor(0),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := e.Repo.InsertProfile(ctx, tx, p); err != nil {
		return domain.Profile{}, false, fmt.Errorf("insert profile: %w", err)
	}
	if err := e.appendEvent(ctx, tx, "profile.created", "profile", p.ID, p.ID, events.EventPayload{"role": p.Role}); err != nil {
		return domain.Profile{}, false, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Profile{}, false, err
	}
	return p, true, nil
}

func defaultDisplayName(name, email string) string {
	if name = strings.TrimSpace(name); name != "" {
		return name
	}
	if local, _, ok := strings.Cut(strings.TrimSpace(email), "@"); ok && local != "" {
		return local
	}
	return "Teammate"
}

// NewIdentity returns a fresh profile id for identities created locally.
func NewIdentity() string {
	return uuid.NewString()
}

// ProfileUpdateOptions edits the actor's own profile; nil fields are left unchanged.
type ProfileUpdateOptions struct {
	DisplayName *string
	GoogleDocID *string
	AvatarRef   *string
	ActorID     string
}

func (e Engine) UpdateProfile(ctx context.Context, opts ProfileUpdateOptions) (domain.Profile, error) {
	tx, err := e.begin(ctx)
	if err != nil {
		return domain.Profile{}, err
	}
	defer tx.Rollback()

	p, _, err := e.loadActor(ctx, tx, opts.ActorID)
	if err != nil {
		return domain.Profile{}, err
	}
	fields := []string{}
	if opts.DisplayName != nil {
		name := strings.TrimSpace(*opts.DisplayName)
		if name == "" {
			return domain.Profile{}, precondition("display_name", "display name is required")
		}
		p.DisplayName = name
		fields = append(fields, "display_name")
	}
	if opts.GoogleDocID != nil {
		p.GoogleDocID = optionalString(*opts.GoogleDocID)
		fields = append(fields, "google_doc_id")
	}
	if opts.AvatarRef != nil {
		p.AvatarRef = optionalString(*opts.AvatarRef)
		fields = append(fields, "avatar_ref")
	}
	if len(fields) == 0 {
		return p, nil
	}
	p.UpdatedAt = e.stamp()
	if err := e.Repo.UpdateProfileDetails(ctx, tx, p); err != nil {
		return domain.Profile{}, fmt.Errorf("update profile: %w", err)
	}
	if err := e.appendEvent(ctx, tx, "profile.updated", "profile", p.ID, p.ID, events.EventPayload{"fields": fields}); err != nil {
		return domain.Profile{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Profile{}, err
	}
	return p, nil
}

func (e Engine) GetProfile(ctx context.Context, id string) (domain.Profile, error) {
	return e.Repo.GetProfile(ctx, nil, id)
}

// ListProfiles returns profiles in leaderboard order.
func (e Engine) ListProfiles(ctx context.Context) ([]domain.Profile, error) {
	return e.Repo.ListProfiles(ctx)
}

// Board fetches the full task collection and projects it for the viewer at now.
func (e Engine) Board(ctx context.Context, viewerID string, f views.Filter, search string, now time.Time) (views.Board, error) {
	viewer, _, err := e.loadActor(ctx, nil, viewerID)
	if err != nil {
		return views.Board{}, err
	}
	tasks, err := e.Repo.ListTasks(ctx, repo.TaskQuery{})
	if err != nil {
		return views.Board{}, err
	}
	return views.Project(tasks, viewer, f, search, now), nil
}
