package repo

import (
	"context"

	"github.com/jmoiron/sqlx"

	"teamops/internal/domain"
)

func (r Repo) InsertAccomplishment(ctx context.Context, tx *sqlx.Tx, a domain.Accomplishment) error {
	_, err := r.q(tx).ExecContext(ctx, `INSERT INTO accomplishments(id,author_id,text,posted_to_team,created_at) VALUES (?,?,?,?,?)`,
		a.ID, a.AuthorID, a.Text, boolInt(a.PostedToTeam), a.CreatedAt)
	return err
}

// ListAccomplishments returns accomplishments newest first, optionally for one author.
func (r Repo) ListAccomplishments(ctx context.Context, authorID string) ([]domain.Accomplishment, error) {
	query := `SELECT id, author_id, text, posted_to_team, created_at FROM accomplishments`
	var args []any
	if authorID != "" {
		query += ` WHERE author_id=?`
		args = append(args, authorID)
	}
	query += ` ORDER BY created_at DESC, rowid DESC`
	res := []domain.Accomplishment{}
	err := sqlx.SelectContext(ctx, r.DB, &res, query, args...)
	return res, err
}
