package repo

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"teamops/internal/domain"
)

// HashAPIKey returns a stable SHA-256 hex digest for the provided key.
func HashAPIKey(key string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(key)))
	return hex.EncodeToString(sum[:])
}

// InsertAPIKey stores a hashed API key. KeyHash must already contain the hashed value.
func (r Repo) InsertAPIKey(ctx context.Context, tx *sqlx.Tx, key domain.APIKey) error {
	if key.ID == "" {
		return errors.New("id required")
	}
	if key.ProfileID == "" {
		return errors.New("profile_id required")
	}
	if key.KeyHash == "" {
		return errors.New("key_hash required")
	}
	if key.CreatedAt == "" {
		key.CreatedAt = time.Now().UTC().Format(time.RFC3339)
	}
	_, err := r.q(tx).ExecContext(ctx, `INSERT INTO api_keys(id, profile_id, name, key_hash, created_at) VALUES (?,?,?,?,?)`,
		key.ID, key.ProfileID, nullable(key.Name), key.KeyHash, key.CreatedAt)
	return err
}

const apiKeySelect = `SELECT id, profile_id, COALESCE(name,'') AS name, key_hash, created_at FROM api_keys`

// GetAPIKeyByHash returns an API key by its hashed value.
func (r Repo) GetAPIKeyByHash(ctx context.Context, hash string) (domain.APIKey, error) {
	var key domain.APIKey
	err := get(ctx, r.DB, &key, apiKeySelect+` WHERE key_hash=? LIMIT 1`, hash)
	return key, err
}

// ListAPIKeys returns API keys, optionally filtered by profile.
func (r Repo) ListAPIKeys(ctx context.Context, profileID string) ([]domain.APIKey, error) {
	query := apiKeySelect
	var args []any
	if profileID != "" {
		query += ` WHERE profile_id=?`
		args = append(args, profileID)
	}
	keys := []domain.APIKey{}
	err := sqlx.SelectContext(ctx, r.DB, &keys, query+` ORDER BY created_at DESC`, args...)
	return keys, err
}

// DeleteAPIKey deletes an API key by ID.
func (r Repo) DeleteAPIKey(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return errors.New("id required")
	}
	return deleteByID(ctx, r.DB, "api_keys", id)
}
