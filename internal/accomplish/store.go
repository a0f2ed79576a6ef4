// Package accomplish holds the two accomplishment stores: a DB-backed remote
// store and a YAML file kept next to the workspace.
package accomplish

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/jmoiron/sqlx"
	"gopkg.in/yaml.v3"

	"teamops/internal/config"
	"teamops/internal/domain"
	"teamops/internal/repo"
)

type Store interface {
	Add(ctx context.Context, tx *sqlx.Tx, a domain.Accomplishment) error
	List(ctx context.Context, authorID string) ([]domain.Accomplishment, error)
}

// FromConfig selects the store configured for the workspace.
func FromConfig(cfg *config.Config, workspace string, r repo.Repo) Store {
	if cfg.AccomplishmentStore() == config.AccomplishmentsLocal {
		path := cfg.Accomplishments.File
		if !filepath.IsAbs(path) {
			path = filepath.Join(workspace, path)
		}
		return &Local{Path: path}
	}
	return Remote{Repo: r}
}

// Remote stores accomplishments in the database, inside the caller's transaction.
type Remote struct {
	Repo repo.Repo
}

func (s Remote) Add(ctx context.Context, tx *sqlx.Tx, a domain.Accomplishment) error {
	return s.Repo.InsertAccomplishment(ctx, tx, a)
}

func (s Remote) List(ctx context.Context, authorID string) ([]domain.Accomplishment, error) {
	return s.Repo.ListAccomplishments(ctx, authorID)
}

// Local keeps accomplishments in a YAML file. Writes are not part of the
// database transaction.
type Local struct {
	Path string
	mu   sync.Mutex
}

type localFile struct {
	Accomplishments []domain.Accomplishment `yaml:"accomplishments"`
}

func (s *Local) load() (localFile, error) {
	var f localFile
	data, err := os.ReadFile(s.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return f, nil
		}
		return f, err
	}
	if err := yaml.Unmarshal(data, &f); err != nil {
		return f, fmt.Errorf("parse %s: %w", s.Path, err)
	}
	return f, nil
}

func (s *Local) Add(_ context.Context, _ *sqlx.Tx, a domain.Accomplishment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, err := s.load()
	if err != nil {
		return err
	}
	f.Accomplishments = append(f.Accomplishments, a)
	data, err := yaml.Marshal(f)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.Path), 0o755); err != nil {
		return err
	}
	tmp := s.Path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, s.Path)
}

// List returns accomplishments newest first.
func (s *Local) List(_ context.Context, authorID string) ([]domain.Accomplishment, error) {
	s.mu.Lock()
	f, err := s.load()
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	out := []domain.Accomplishment{}
	for i := len(f.Accomplishments) - 1; i >= 0; i-- {
		a := f.Accomplishments[i]
		if authorID == "" || a.AuthorID == authorID {
			out = append(out, a)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt > out[j].CreatedAt })
	return out, nil
}
