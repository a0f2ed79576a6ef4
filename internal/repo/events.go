package repo

import (
	"context"
	"strings"

	"github.com/jmoiron/sqlx"

	"teamops/internal/domain"
)

const eventSelect = `SELECT id, ts, type, entity_kind, COALESCE(entity_id,'') AS entity_id, actor_id, payload_json FROM events`

// EventQuery narrows ListEvents. AfterID pages forward; without it the newest events come back first.
type EventQuery struct {
	AfterID    int64
	EntityKind string
	EntityID   string
	Type       string
	Limit      int
}

func (r Repo) ListEvents(ctx context.Context, q EventQuery) ([]domain.Event, error) {
	var (
		clauses []string
		args    []any
	)
	if q.AfterID > 0 {
		clauses = append(clauses, "id > ?")
		args = append(args, q.AfterID)
	}
	if q.EntityKind != "" {
		clauses = append(clauses, "entity_kind=?")
		args = append(args, q.EntityKind)
	}
	if q.EntityID != "" {
		clauses = append(clauses, "entity_id=?")
		args = append(args, q.EntityID)
	}
	if q.Type != "" {
		clauses = append(clauses, "type=?")
		args = append(args, q.Type)
	}
	query := eventSelect
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	if q.AfterID > 0 {
		query += " ORDER BY id ASC"
	} else {
		query += " ORDER BY id DESC"
	}
	if q.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, q.Limit)
	}
	res := []domain.Event{}
	err := sqlx.SelectContext(ctx, r.DB, &res, query, args...)
	return res, err
}

// EventsAfter returns up to limit events with id greater than cursor, oldest first.
func (r Repo) EventsAfter(ctx context.Context, limit int, cursor int64) ([]domain.Event, error) {
	res := []domain.Event{}
	err := sqlx.SelectContext(ctx, r.DB, &res, eventSelect+` WHERE id > ? ORDER BY id ASC LIMIT ?`, cursor, limit)
	return res, err
}

func (r Repo) LatestEventID(ctx context.Context) (int64, error) {
	var id int64
	err := sqlx.GetContext(ctx, r.DB, &id, `SELECT COALESCE(MAX(id), 0) FROM events`)
	return id, err
}
