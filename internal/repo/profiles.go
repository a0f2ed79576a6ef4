package repo

import (
	"context"
	"strings"

	"github.com/jmoiron/sqlx"

	"teamops/internal/domain"
)

const profileColumns = `id, email, display_name, role, level, xp, google_doc_id, avatar_ref, created_at, updated_at`

func (r Repo) InsertProfile(ctx context.Context, tx *sqlx.Tx, p domain.Profile) error {
	_, err := r.q(tx).ExecContext(ctx, `INSERT INTO profiles(`+profileColumns+`) VALUES (?,?,?,?,?,?,?,?,?,?)`,
		p.ID, p.Email, p.DisplayName, p.Role, p.Level, p.XP, nullableStringPtr(p.GoogleDocID), nullableStringPtr(p.AvatarRef),
		p.CreatedAt, p.UpdatedAt)
	return err
}

func (r Repo) GetProfile(ctx context.Context, tx *sqlx.Tx, id string) (domain.Profile, error) {
	var p domain.Profile
	err := get(ctx, r.q(tx), &p, `SELECT `+profileColumns+` FROM profiles WHERE id=?`, id)
	return p, err
}

func (r Repo) GetProfileByEmail(ctx context.Context, email string) (domain.Profile, error) {
	var p domain.Profile
	err := get(ctx, r.DB, &p, `SELECT `+profileColumns+` FROM profiles WHERE lower(email)=? LIMIT 1`,
		strings.ToLower(strings.TrimSpace(email)))
	return p, err
}

// ListProfiles returns profiles in leaderboard order.
func (r Repo) ListProfiles(ctx context.Context) ([]domain.Profile, error) {
	res := []domain.Profile{}
	err := sqlx.SelectContext(ctx, r.DB, &res, `SELECT `+profileColumns+` FROM profiles ORDER BY xp DESC, display_name ASC`)
	return res, err
}

// UpdateProfileDetails writes the user-editable profile fields.
func (r Repo) UpdateProfileDetails(ctx context.Context, tx *sqlx.Tx, p domain.Profile) error {
	return mustAffect(r.q(tx).ExecContext(ctx, `UPDATE profiles SET display_name=?, google_doc_id=?, avatar_ref=?, updated_at=? WHERE id=?`,
		p.DisplayName, nullableStringPtr(p.GoogleDocID), nullableStringPtr(p.AvatarRef), p.UpdatedAt, p.ID))
}

func (r Repo) SetProgress(ctx context.Context, tx *sqlx.Tx, id string, xp, level int, updatedAt string) error {
	return mustAffect(r.q(tx).ExecContext(ctx, `UPDATE profiles SET xp=?, level=?, updated_at=? WHERE id=?`, xp, level, updatedAt, id))
}
