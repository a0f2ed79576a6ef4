package repo

import (
	"context"

	"github.com/jmoiron/sqlx"

	"teamops/internal/domain"
)

const messageSelect = `SELECT m.id AS id, m.sender_id AS sender_id, COALESCE(p.display_name,'') AS sender_name,
  m.recipient_id AS recipient_id, m.content AS content, m.kind AS kind, m.is_kudos AS is_kudos,
  m.related_task_id AS related_task_id, m.is_read AS is_read, m.created_at AS created_at
FROM messages m
LEFT JOIN profiles p ON p.id = m.sender_id`

func (r Repo) InsertMessage(ctx context.Context, tx *sqlx.Tx, m domain.Message) error {
	_, err := r.q(tx).ExecContext(ctx, `INSERT INTO messages(id,sender_id,recipient_id,content,kind,is_kudos,related_task_id,is_read,created_at)
VALUES (?,?,?,?,?,?,?,?,?)`,
		m.ID, m.SenderID, nullableStringPtr(m.RecipientID), m.Content, m.Kind, boolInt(m.IsKudos),
		nullableStringPtr(m.RelatedTaskID), boolInt(m.IsRead), m.CreatedAt)
	return err
}

// inboxWhere scopes a message query to what profileID can see for kind.
// An empty kind means every message visible to the profile.
func inboxWhere(profileID, kind string) (string, []any) {
	switch kind {
	case domain.MessageTeam:
		return `m.recipient_id IS NULL AND m.kind='team'`, nil
	case domain.MessageDirect, domain.MessageKudos:
		return `m.recipient_id=? AND m.kind=?`, []any{profileID, kind}
	default:
		return `(m.recipient_id=? OR m.recipient_id IS NULL)`, []any{profileID}
	}
}

// ListInbox returns messages visible to profileID, newest first.
func (r Repo) ListInbox(ctx context.Context, profileID, kind string, limit int) ([]domain.Message, error) {
	where, args := inboxWhere(profileID, kind)
	query := messageSelect + ` WHERE ` + where + ` ORDER BY m.created_at DESC, m.rowid DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	res := []domain.Message{}
	err := sqlx.SelectContext(ctx, r.DB, &res, query, args...)
	return res, err
}

// MarkRead flips the read flag on unread messages of kind received by profileID.
// The actor's own broadcasts are left untouched.
func (r Repo) MarkRead(ctx context.Context, tx *sqlx.Tx, profileID, kind string) (int64, error) {
	where, args := inboxWhere(profileID, kind)
	where = `is_read=0 AND sender_id<>? AND ` + where
	args = append([]any{profileID}, args...)
	res, err := r.q(tx).ExecContext(ctx, `UPDATE messages AS m SET is_read=1 WHERE `+where, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
