package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"teamops/internal/accomplish"
	"teamops/internal/config"
	"teamops/internal/credential"
	"teamops/internal/db"
	"teamops/internal/docsync"
	"teamops/internal/domain"
	"teamops/internal/engine"
	"teamops/internal/migrate"
	"teamops/internal/photos"
	"teamops/internal/repo"
)

// Workspace is an opened, migrated workspace with a fully wired engine.
type Workspace struct {
	Path   string
	Conn   *sqlx.DB
	Config *config.Config
	Engine engine.Engine
	// Credentials is set only when document sync is enabled.
	Credentials *credential.Store
}

// Open loads teamops.yml (defaults when absent), migrates the database, seeds
// configured companies and wires the optional collaborators.
func Open(ctx context.Context, workspace string, logger *log.Logger) (*Workspace, error) {
	cfg, err := config.LoadOptional(workspace)
	if err != nil {
		return nil, err
	}
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return nil, err
	}
	ws, err := wire(ctx, workspace, conn, cfg, logger)
	if err != nil {
		conn.Close()
		return nil, err
	}
	return ws, nil
}

func wire(ctx context.Context, workspace string, conn *sqlx.DB, cfg *config.Config, logger *log.Logger) (*Workspace, error) {
	if err := migrate.Migrate(ctx, conn); err != nil {
		return nil, err
	}
	e := engine.New(conn, cfg)
	if logger != nil {
		e.Logger = logger
	}
	e.Accomplishments = accomplish.FromConfig(cfg, workspace, e.Repo)
	ws := &Workspace{Path: workspace, Conn: conn, Config: cfg}

	if cfg.DocSync.Enabled {
		store, err := credential.Open(cfg.DocSync.KeyringService, cfg.DocSync.KeyringFileDir)
		if err != nil {
			return nil, fmt.Errorf("docsync credentials: %w", err)
		}
		timeout := time.Duration(cfg.DocSync.TimeoutSeconds) * time.Second
		e.Docs = docsync.NewClient(cfg.DocSync.Endpoint, cfg.DocSync.EntryDateLayout, timeout)
		e.Tokens = store
		ws.Credentials = &store
	}
	photoStore, err := photos.FromConfig(ctx, cfg.Photos)
	if err != nil {
		return nil, fmt.Errorf("photo store: %w", err)
	}
	if photoStore != nil {
		e.Photos = photoStore
	}
	if err := e.SeedCompanies(ctx, cfg.Companies); err != nil {
		return nil, fmt.Errorf("seed companies: %w", err)
	}
	ws.Engine = e
	return ws, nil
}

func (w *Workspace) Close() error {
	return w.Conn.Close()
}

// ResolveActor picks the acting profile: an explicit id wins, otherwise the
// profile for email is looked up and created on first use.
func ResolveActor(ctx context.Context, e engine.Engine, actorID, email string) (domain.Profile, error) {
	if actorID = strings.TrimSpace(actorID); actorID != "" {
		p, err := e.GetProfile(ctx, actorID)
		if err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return domain.Profile{}, fmt.Errorf("profile %s not found; run teamops profile login", actorID)
			}
			return domain.Profile{}, err
		}
		return p, nil
	}
	email = strings.TrimSpace(email)
	if email == "" {
		return domain.Profile{}, fmt.Errorf("actor not specified; use --actor-id or --email")
	}
	p, err := e.Repo.GetProfileByEmail(ctx, email)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, repo.ErrNotFound) {
		return domain.Profile{}, err
	}
	p, _, err = e.EnsureProfile(ctx, engine.NewIdentity(), email, "")
	return p, err
}
