package repo

import (
	"context"
	"strings"

	"github.com/jmoiron/sqlx"

	"teamops/internal/domain"
)

const taskSelect = `SELECT t.id AS id, t.title AS title, t.description AS description, t.due_date AS due_date,
  t.photo_ref AS photo_ref, t.metadata_json AS metadata_json, t.company_id AS company_id,
  COALESCE(c.name,'') AS company_name, t.priority AS priority, t.impact AS impact,
  t.estimate_minutes AS estimate_minutes, t.assigned_to AS assigned_to,
  COALESCE(p.display_name,'') AS assignee_name, t.created_by AS created_by, t.status AS status,
  t.created_at AS created_at, t.updated_at AS updated_at, t.completed_at AS completed_at
FROM tasks t
LEFT JOIN companies c ON c.id = t.company_id
LEFT JOIN profiles p ON p.id = t.assigned_to`

// TaskQuery narrows ListTasks. Zero values mean no constraint.
type TaskQuery struct {
	Status     string
	AssigneeID string
	CompanyID  string
	Limit      int
}

func (r Repo) InsertTask(ctx context.Context, tx *sqlx.Tx, t domain.Task) error {
	_, err := r.q(tx).ExecContext(ctx, `INSERT INTO tasks(id,title,description,due_date,photo_ref,metadata_json,company_id,priority,impact,estimate_minutes,assigned_to,created_by,status,created_at,updated_at,completed_at)
VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		t.ID, t.Title, t.Description, nullableStringPtr(t.DueDate), nullableStringPtr(t.PhotoRef), nullableStringPtr(t.MetadataJSON),
		nullableStringPtr(t.CompanyID), t.Priority, t.Impact, t.EstimateMinutes, nullableStringPtr(t.AssigneeID),
		t.CreatedBy, t.Status, t.CreatedAt, t.UpdatedAt, nullableStringPtr(t.CompletedAt))
	return err
}

// UpdateTask writes every mutable column of t. Concurrent writers resolve as last write wins.
func (r Repo) UpdateTask(ctx context.Context, tx *sqlx.Tx, t domain.Task) error {
	return mustAffect(r.q(tx).ExecContext(ctx, `UPDATE tasks SET title=?, description=?, due_date=?, photo_ref=?, metadata_json=?,
  company_id=?, priority=?, impact=?, estimate_minutes=?, assigned_to=?, status=?, updated_at=?, completed_at=?
WHERE id=?`,
		t.Title, t.Description, nullableStringPtr(t.DueDate), nullableStringPtr(t.PhotoRef), nullableStringPtr(t.MetadataJSON),
		nullableStringPtr(t.CompanyID), t.Priority, t.Impact, t.EstimateMinutes, nullableStringPtr(t.AssigneeID),
		t.Status, t.UpdatedAt, nullableStringPtr(t.CompletedAt), t.ID))
}

func (r Repo) GetTask(ctx context.Context, tx *sqlx.Tx, id string) (domain.Task, error) {
	var t domain.Task
	err := get(ctx, r.q(tx), &t, taskSelect+` WHERE t.id=?`, id)
	return t, err
}

// ListTasks returns tasks newest first with company and assignee names resolved.
func (r Repo) ListTasks(ctx context.Context, q TaskQuery) ([]domain.Task, error) {
	var (
		clauses []string
		args    []any
	)
	if q.Status != "" {
		clauses = append(clauses, "t.status=?")
		args = append(args, q.Status)
	}
	if q.AssigneeID != "" {
		clauses = append(clauses, "t.assigned_to=?")
		args = append(args, q.AssigneeID)
	}
	if q.CompanyID != "" {
		clauses = append(clauses, "t.company_id=?")
		args = append(args, q.CompanyID)
	}
	query := taskSelect
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY t.created_at DESC, t.rowid DESC"
	if q.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, q.Limit)
	}
	res := []domain.Task{}
	if err := sqlx.SelectContext(ctx, r.DB, &res, query, args...); err != nil {
		return nil, err
	}
	return res, nil
}

func (r Repo) DeleteTask(ctx context.Context, tx *sqlx.Tx, id string) error {
	return deleteByID(ctx, r.q(tx), "tasks", id)
}
