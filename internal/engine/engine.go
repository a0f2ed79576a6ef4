package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"teamops/internal/accomplish"
	"teamops/internal/config"
	"teamops/internal/domain"
	"teamops/internal/engine/auth"
	"teamops/internal/events"
	"teamops/internal/repo"
)

// AccomplishmentStore persists accomplishments. Implementations are chosen at
// composition time; tx is the surrounding mutation and may be ignored by stores
// that live outside the database.
type AccomplishmentStore interface {
	Add(ctx context.Context, tx *sqlx.Tx, a domain.Accomplishment) error
	List(ctx context.Context, authorID string) ([]domain.Accomplishment, error)
}

// DocJournal appends a dated entry to the top of an external document.
type DocJournal interface {
	AppendEntry(ctx context.Context, token, docID, text string, at time.Time) error
}

// TokenSource returns the stored document token for a profile.
type TokenSource interface {
	Token(profileID string) (string, error)
}

// PhotoStore uploads task photos and returns a stable reference.
type PhotoStore interface {
	Put(ctx context.Context, key string, body io.Reader, contentType string) (string, error)
}

type Engine struct {
	DB              *sqlx.DB
	Repo            repo.Repo
	Events          events.Writer
	Config          *config.Config
	Accomplishments AccomplishmentStore
	Docs            DocJournal
	Tokens          TokenSource
	Photos          PhotoStore
	Logger          *log.Logger
	Now             func() time.Time
}

func New(db *sqlx.DB, cfg *config.Config) Engine {
	r := repo.Repo{DB: db}
	return Engine{
		DB:              db,
		Repo:            r,
		Events:          events.Writer{},
		Config:          cfg,
		Accomplishments: accomplish.Remote{Repo: r},
		Logger:          log.New(io.Discard, "", 0),
		Now:             time.Now,
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Engine) stamp() string {
	return e.now().UTC().Format(time.RFC3339)
}

func (e Engine) logf(format string, args ...any) {
	if e.Logger != nil {
		e.Logger.Printf(format, args...)
	}
}

func (e Engine) begin(ctx context.Context) (*sqlx.Tx, error) {
	tx, err := e.DB.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	return tx, nil
}

func (e Engine) appendEvent(ctx context.Context, tx *sqlx.Tx, evtType, entityKind, entityID, actorID string, payload events.EventPayload) error {
	if err := e.Events.Append(ctx, tx, evtType, entityKind, entityID, actorID, payload); err != nil {
		return fmt.Errorf("append %s event: %w", evtType, err)
	}
	return nil
}

// PreconditionError rejects a request before anything is written.
type PreconditionError struct {
	Field   string
	Message string
}

func (e PreconditionError) Error() string {
	return e.Message
}

func precondition(field, format string, args ...any) error {
	return PreconditionError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// TransitionError reports a status change the state machine does not allow.
type TransitionError struct {
	From string
	To   string
}

func (e TransitionError) Error() string {
	return fmt.Sprintf("invalid task status transition %s -> %s", e.From, e.To)
}

// ensureTaskTransition encodes the task lifecycle:
//
//	focus <-> active
//	focus|active -> submitted -> completed -> archived
//	submitted -> active
//	focus|active -> completed (founder direct complete)
func ensureTaskTransition(oldStatus, newStatus string) error {
	switch oldStatus {
	case domain.StatusFocus:
		if newStatus == domain.StatusActive || newStatus == domain.StatusSubmitted || newStatus == domain.StatusCompleted {
			return nil
		}
	case domain.StatusActive:
		if newStatus == domain.StatusFocus || newStatus == domain.StatusSubmitted || newStatus == domain.StatusCompleted {
			return nil
		}
	case domain.StatusSubmitted:
		if newStatus == domain.StatusCompleted || newStatus == domain.StatusActive {
			return nil
		}
	case domain.StatusCompleted:
		if newStatus == domain.StatusArchived {
			return nil
		}
	}
	return TransitionError{From: oldStatus, To: newStatus}
}

// loadActor reads the acting profile and its capabilities through tx.
func (e Engine) loadActor(ctx context.Context, tx *sqlx.Tx, actorID string) (domain.Profile, auth.Capabilities, error) {
	if strings.TrimSpace(actorID) == "" {
		return domain.Profile{}, auth.Capabilities{}, errors.New("actor_id required")
	}
	p, err := e.Repo.GetProfile(ctx, tx, actorID)
	if err != nil {
		return domain.Profile{}, auth.Capabilities{}, fmt.Errorf("actor %s: %w", actorID, err)
	}
	return p, auth.CapabilitiesFor(p.Role), nil
}

// Capabilities returns the capability set for a profile.
func (e Engine) Capabilities(ctx context.Context, actorID string) (auth.Capabilities, error) {
	_, caps, err := e.loadActor(ctx, nil, actorID)
	return caps, err
}

func optionalString(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

func stringValue(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
