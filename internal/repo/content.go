package repo

import (
	"context"

	"github.com/jmoiron/sqlx"

	"teamops/internal/domain"
)

// Companies

func (r Repo) InsertCompany(ctx context.Context, tx *sqlx.Tx, c domain.Company) error {
	_, err := r.q(tx).ExecContext(ctx, `INSERT INTO companies(id,name,created_at) VALUES (?,?,?)`, c.ID, c.Name, c.CreatedAt)
	return err
}

// UpsertCompany inserts a company or renames an existing one.
func (r Repo) UpsertCompany(ctx context.Context, tx *sqlx.Tx, c domain.Company) error {
	_, err := r.q(tx).ExecContext(ctx, `INSERT INTO companies(id,name,created_at) VALUES (?,?,?)
ON CONFLICT(id) DO UPDATE SET name=excluded.name`, c.ID, c.Name, c.CreatedAt)
	return err
}

func (r Repo) GetCompany(ctx context.Context, tx *sqlx.Tx, id string) (domain.Company, error) {
	var c domain.Company
	err := get(ctx, r.q(tx), &c, `SELECT id, name, created_at FROM companies WHERE id=?`, id)
	return c, err
}

// FindCompany resolves a company by id or by exact name.
func (r Repo) FindCompany(ctx context.Context, tx *sqlx.Tx, ref string) (domain.Company, error) {
	var c domain.Company
	err := get(ctx, r.q(tx), &c, `SELECT id, name, created_at FROM companies WHERE id=? OR name=? ORDER BY id=? DESC LIMIT 1`, ref, ref, ref)
	return c, err
}

func (r Repo) ListCompanies(ctx context.Context) ([]domain.Company, error) {
	res := []domain.Company{}
	err := sqlx.SelectContext(ctx, r.DB, &res, `SELECT id, name, created_at FROM companies ORDER BY name`)
	return res, err
}

func (r Repo) DeleteCompany(ctx context.Context, tx *sqlx.Tx, id string) error {
	return deleteByID(ctx, r.q(tx), "companies", id)
}

// Clients

func (r Repo) InsertClient(ctx context.Context, tx *sqlx.Tx, c domain.Client) error {
	_, err := r.q(tx).ExecContext(ctx, `INSERT INTO clients(id,company_id,name,contact_email,notes,created_at) VALUES (?,?,?,?,?,?)`,
		c.ID, nullableStringPtr(c.CompanyID), c.Name, c.ContactEmail, c.Notes, c.CreatedAt)
	return err
}

func (r Repo) ListClients(ctx context.Context, companyID string) ([]domain.Client, error) {
	query := `SELECT id, company_id, name, contact_email, notes, created_at FROM clients`
	var args []any
	if companyID != "" {
		query += ` WHERE company_id=?`
		args = append(args, companyID)
	}
	res := []domain.Client{}
	err := sqlx.SelectContext(ctx, r.DB, &res, query+` ORDER BY name`, args...)
	return res, err
}

func (r Repo) DeleteClient(ctx context.Context, tx *sqlx.Tx, id string) error {
	return deleteByID(ctx, r.q(tx), "clients", id)
}

// Products

func (r Repo) InsertProduct(ctx context.Context, tx *sqlx.Tx, p domain.Product) error {
	_, err := r.q(tx).ExecContext(ctx, `INSERT INTO products(id,company_id,name,description,created_at) VALUES (?,?,?,?,?)`,
		p.ID, nullableStringPtr(p.CompanyID), p.Name, p.Description, p.CreatedAt)
	return err
}

func (r Repo) ListProducts(ctx context.Context, companyID string) ([]domain.Product, error) {
	query := `SELECT id, company_id, name, description, created_at FROM products`
	var args []any
	if companyID != "" {
		query += ` WHERE company_id=?`
		args = append(args, companyID)
	}
	res := []domain.Product{}
	err := sqlx.SelectContext(ctx, r.DB, &res, query+` ORDER BY name`, args...)
	return res, err
}

func (r Repo) DeleteProduct(ctx context.Context, tx *sqlx.Tx, id string) error {
	return deleteByID(ctx, r.q(tx), "products", id)
}

// Meetings

const meetingColumns = `id, title, company_id, scheduled_at, duration_minutes, location, agenda, created_by, created_at, updated_at`

func (r Repo) InsertMeeting(ctx context.Context, tx *sqlx.Tx, m domain.Meeting) error {
	_, err := r.q(tx).ExecContext(ctx, `INSERT INTO meetings(`+meetingColumns+`) VALUES (?,?,?,?,?,?,?,?,?,?)`,
		m.ID, m.Title, nullableStringPtr(m.CompanyID), m.ScheduledAt, m.DurationMinutes, m.Location, m.Agenda,
		m.CreatedBy, m.CreatedAt, m.UpdatedAt)
	return err
}

func (r Repo) GetMeeting(ctx context.Context, tx *sqlx.Tx, id string) (domain.Meeting, error) {
	var m domain.Meeting
	err := get(ctx, r.q(tx), &m, `SELECT `+meetingColumns+` FROM meetings WHERE id=?`, id)
	return m, err
}

func (r Repo) UpdateMeeting(ctx context.Context, tx *sqlx.Tx, m domain.Meeting) error {
	return mustAffect(r.q(tx).ExecContext(ctx, `UPDATE meetings SET title=?, company_id=?, scheduled_at=?, duration_minutes=?, location=?, agenda=?, updated_at=? WHERE id=?`,
		m.Title, nullableStringPtr(m.CompanyID), m.ScheduledAt, m.DurationMinutes, m.Location, m.Agenda, m.UpdatedAt, m.ID))
}

// ListMeetings returns meetings in schedule order, optionally only those at or after from.
func (r Repo) ListMeetings(ctx context.Context, from string) ([]domain.Meeting, error) {
	query := `SELECT ` + meetingColumns + ` FROM meetings`
	var args []any
	if from != "" {
		query += ` WHERE scheduled_at >= ?`
		args = append(args, from)
	}
	res := []domain.Meeting{}
	err := sqlx.SelectContext(ctx, r.DB, &res, query+` ORDER BY scheduled_at ASC`, args...)
	return res, err
}

func (r Repo) DeleteMeeting(ctx context.Context, tx *sqlx.Tx, id string) error {
	return deleteByID(ctx, r.q(tx), "meetings", id)
}

// SOPs

const sopColumns = `id, title, category, body, company_id, created_by, created_at, updated_at`

func (r Repo) InsertSOP(ctx context.Context, tx *sqlx.Tx, s domain.SOP) error {
	_, err := r.q(tx).ExecContext(ctx, `INSERT INTO sops(`+sopColumns+`) VALUES (?,?,?,?,?,?,?,?)`,
		s.ID, s.Title, s.Category, s.Body, nullableStringPtr(s.CompanyID), s.CreatedBy, s.CreatedAt, s.UpdatedAt)
	return err
}

func (r Repo) GetSOP(ctx context.Context, tx *sqlx.Tx, id string) (domain.SOP, error) {
	var s domain.SOP
	err := get(ctx, r.q(tx), &s, `SELECT `+sopColumns+` FROM sops WHERE id=?`, id)
	return s, err
}

func (r Repo) UpdateSOP(ctx context.Context, tx *sqlx.Tx, s domain.SOP) error {
	return mustAffect(r.q(tx).ExecContext(ctx, `UPDATE sops SET title=?, category=?, body=?, company_id=?, updated_at=? WHERE id=?`,
		s.Title, s.Category, s.Body, nullableStringPtr(s.CompanyID), s.UpdatedAt, s.ID))
}

func (r Repo) ListSOPs(ctx context.Context, category string) ([]domain.SOP, error) {
	query := `SELECT ` + sopColumns + ` FROM sops`
	var args []any
	if category != "" {
		query += ` WHERE category=?`
		args = append(args, category)
	}
	res := []domain.SOP{}
	err := sqlx.SelectContext(ctx, r.DB, &res, query+` ORDER BY category, title`, args...)
	return res, err
}

func (r Repo) DeleteSOP(ctx context.Context, tx *sqlx.Tx, id string) error {
	return deleteByID(ctx, r.q(tx), "sops", id)
}
