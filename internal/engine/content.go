package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"teamops/internal/config"
	"teamops/internal/domain"
	"teamops/internal/engine/auth"
	"teamops/internal/events"
	"teamops/internal/repo"
)

// founderWrite runs fn in a transaction after checking the actor holds capability.
func (e Engine) founderWrite(ctx context.Context, actorID, capability string, fn func(tx *sqlx.Tx, actor domain.Profile) error) error {
	tx, err := e.begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	actor, caps, err := e.loadActor(ctx, tx, actorID)
	if err != nil {
		return err
	}
	allowed := caps.CanManageOrg
	if capability == auth.CapEditPlaybook {
		allowed = caps.CanEditPlaybook
	}
	if err := auth.Require(allowed, capability); err != nil {
		return err
	}
	if err := fn(tx, actor); err != nil {
		return err
	}
	return tx.Commit()
}

func required(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return precondition(field, "%s is required", field)
	}
	return nil
}

// SeedCompanies upserts the companies listed in config. It runs at bootstrap
// without an actor, so the event is attributed to "system".
func (e Engine) SeedCompanies(ctx context.Context, companies []config.CompanyConfig) error {
	if len(companies) == 0 {
		return nil
	}
	tx, err := e.begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	now := e.stamp()
	ids := make([]string, 0, len(companies))
	for _, c := range companies {
		if err := e.Repo.UpsertCompany(ctx, tx, domain.Company{ID: c.ID, Name: c.Name, CreatedAt: now}); err != nil {
			return fmt.Errorf("seed company %s: %w", c.ID, err)
		}
		ids = append(ids, c.ID)
	}
	if err := e.appendEvent(ctx, tx, "companies.seeded", "company", "", "system", events.EventPayload{"ids": ids}); err != nil {
		return err
	}
	return tx.Commit()
}

func (e Engine) CreateCompany(ctx context.Context, actorID, id, name string) (domain.Company, error) {
	if err := required("name", name); err != nil {
		return domain.Company{}, err
	}
	if id = strings.TrimSpace(id); id == "" {
		id = slug(name)
	}
	c := domain.Company{ID: id, Name: strings.TrimSpace(name), CreatedAt: e.stamp()}
	err := e.founderWrite(ctx, actorID, auth.CapManageOrg, func(tx *sqlx.Tx, actor domain.Profile) error {
		if err := e.Repo.InsertCompany(ctx, tx, c); err != nil {
			return fmt.Errorf("insert company: %w", err)
		}
		return e.appendEvent(ctx, tx, "company.created", "company", c.ID, actor.ID, events.EventPayload{"name": c.Name})
	})
	return c, err
}

func (e Engine) DeleteCompany(ctx context.Context, actorID, id string) error {
	return e.founderWrite(ctx, actorID, auth.CapManageOrg, func(tx *sqlx.Tx, actor domain.Profile) error {
		if err := e.Repo.DeleteCompany(ctx, tx, id); err != nil {
			return err
		}
		return e.appendEvent(ctx, tx, "company.deleted", "company", id, actor.ID, nil)
	})
}

func (e Engine) ListCompanies(ctx context.Context) ([]domain.Company, error) {
	return e.Repo.ListCompanies(ctx)
}

type ClientOptions struct {
	Company      string
	Name         string
	ContactEmail string
	Notes        string
	ActorID      string
}

func (e Engine) CreateClient(ctx context.Context, opts ClientOptions) (domain.Client, error) {
	if err := required("name", opts.Name); err != nil {
		return domain.Client{}, err
	}
	c := domain.Client{
		ID:           uuid.NewString(),
		Name:         strings.TrimSpace(opts.Name),
		ContactEmail: strings.TrimSpace(opts.ContactEmail),
		Notes:        opts.Notes,
		CreatedAt:    e.stamp(),
	}
	err := e.founderWrite(ctx, opts.ActorID, auth.CapManageOrg, func(tx *sqlx.Tx, actor domain.Profile) error {
		var err error
		if c.CompanyID, err = e.resolveCompany(ctx, tx, opts.Company); err != nil {
			return err
		}
		if err := e.Repo.InsertClient(ctx, tx, c); err != nil {
			return fmt.Errorf("insert client: %w", err)
		}
		return e.appendEvent(ctx, tx, "client.created", "client", c.ID, actor.ID, events.EventPayload{"name": c.Name})
	})
	return c, err
}

func (e Engine) DeleteClient(ctx context.Context, actorID, id string) error {
	return e.founderWrite(ctx, actorID, auth.CapManageOrg, func(tx *sqlx.Tx, actor domain.Profile) error {
		if err := e.Repo.DeleteClient(ctx, tx, id); err != nil {
			return err
		}
		return e.appendEvent(ctx, tx, "client.deleted", "client", id, actor.ID, nil)
	})
}

func (e Engine) ListClients(ctx context.Context, companyID string) ([]domain.Client, error) {
	return e.Repo.ListClients(ctx, companyID)
}

type ProductOptions struct {
	Company     string
	Name        string
	Description string
	ActorID     string
}

func (e Engine) CreateProduct(ctx context.Context, opts ProductOptions) (domain.Product, error) {
	if err := required("name", opts.Name); err != nil {
		return domain.Product{}, err
	}
	p := domain.Product{
		ID:          uuid.NewString(),
		Name:        strings.TrimSpace(opts.Name),
		Description: opts.Description,
		CreatedAt:   e.stamp(),
	}
	err := e.founderWrite(ctx, opts.ActorID, auth.CapManageOrg, func(tx *sqlx.Tx, actor domain.Profile) error {
		var err error
		if p.CompanyID, err = e.resolveCompany(ctx, tx, opts.Company); err != nil {
			return err
		}
		if err := e.Repo.InsertProduct(ctx, tx, p); err != nil {
			return fmt.Errorf("insert product: %w", err)
		}
		return e.appendEvent(ctx, tx, "product.created", "product", p.ID, actor.ID, events.EventPayload{"name": p.Name})
	})
	return p, err
}

func (e Engine) DeleteProduct(ctx context.Context, actorID, id string) error {
	return e.founderWrite(ctx, actorID, auth.CapManageOrg, func(tx *sqlx.Tx, actor domain.Profile) error {
		if err := e.Repo.DeleteProduct(ctx, tx, id); err != nil {
			return err
		}
		return e.appendEvent(ctx, tx, "product.deleted", "product", id, actor.ID, nil)
	})
}

func (e Engine) ListProducts(ctx context.Context, companyID string) ([]domain.Product, error) {
	return e.Repo.ListProducts(ctx, companyID)
}

// MeetingOptions creates or edits a meeting. On update, empty strings and a zero
// duration leave the stored value unchanged.
type MeetingOptions struct {
	ID              string
	Title           string
	Company         string
	ScheduledAt     string
	DurationMinutes int
	Location        string
	Agenda          string
	ActorID         string
}

func parseSchedule(raw string) (string, error) {
	ts, err := time.Parse(time.RFC3339, strings.TrimSpace(raw))
	if err != nil {
		return "", precondition("scheduled_at", "scheduled_at must be RFC3339")
	}
	return ts.UTC().Format(time.RFC3339), nil
}

func (e Engine) CreateMeeting(ctx context.Context, opts MeetingOptions) (domain.Meeting, error) {
	if err := required("title", opts.Title); err != nil {
		return domain.Meeting{}, err
	}
	at, err := parseSchedule(opts.ScheduledAt)
	if err != nil {
		return domain.Meeting{}, err
	}
	if opts.DurationMinutes < 0 {
		return domain.Meeting{}, precondition("duration_minutes", "duration must be positive")
	}
	if opts.DurationMinutes == 0 {
		opts.DurationMinutes = 30
	}
	now := e.stamp()
	m := domain.Meeting{
		ID:              uuid.NewString(),
		Title:           strings.TrimSpace(opts.Title),
		ScheduledAt:     at,
		DurationMinutes: opts.DurationMinutes,
		Location:        opts.Location,
		Agenda:          opts.Agenda,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	err = e.founderWrite(ctx, opts.ActorID, auth.CapManageOrg, func(tx *sqlx.Tx, actor domain.Profile) error {
		var err error
		if m.CompanyID, err = e.resolveCompany(ctx, tx, opts.Company); err != nil {
			return err
		}
		m.CreatedBy = actor.ID
		if err := e.Repo.InsertMeeting(ctx, tx, m); err != nil {
			return fmt.Errorf("insert meeting: %w", err)
		}
		return e.appendEvent(ctx, tx, "meeting.created", "meeting", m.ID, actor.ID, events.EventPayload{"scheduled_at": m.ScheduledAt})
	})
	return m, err
}

func (e Engine) UpdateMeeting(ctx context.Context, opts MeetingOptions) (domain.Meeting, error) {
	var m domain.Meeting
	err := e.founderWrite(ctx, opts.ActorID, auth.CapManageOrg, func(tx *sqlx.Tx, actor domain.Profile) error {
		var err error
		if m, err = e.Repo.GetMeeting(ctx, tx, opts.ID); err != nil {
			return err
		}
		if t := strings.TrimSpace(opts.Title); t != "" {
			m.Title = t
		}
		if opts.ScheduledAt != "" {
			if m.ScheduledAt, err = parseSchedule(opts.ScheduledAt); err != nil {
				return err
			}
		}
		if opts.DurationMinutes > 0 {
			m.DurationMinutes = opts.DurationMinutes
		}
		if opts.Company != "" {
			if m.CompanyID, err = e.resolveCompany(ctx, tx, opts.Company); err != nil {
				return err
			}
		}
		if opts.Location != "" {
			m.Location = opts.Location
		}
		if opts.Agenda != "" {
			m.Agenda = opts.Agenda
		}
		m.UpdatedAt = e.stamp()
		if err := e.Repo.UpdateMeeting(ctx, tx, m); err != nil {
			return err
		}
		return e.appendEvent(ctx, tx, "meeting.updated", "meeting", m.ID, actor.ID, nil)
	})
	return m, err
}

func (e Engine) DeleteMeeting(ctx context.Context, actorID, id string) error {
	return e.founderWrite(ctx, actorID, auth.CapManageOrg, func(tx *sqlx.Tx, actor domain.Profile) error {
		if err := e.Repo.DeleteMeeting(ctx, tx, id); err != nil {
			return err
		}
		return e.appendEvent(ctx, tx, "meeting.deleted", "meeting", id, actor.ID, nil)
	})
}

// ListMeetings lists meetings; upcoming restricts to those not yet started.
func (e Engine) ListMeetings(ctx context.Context, upcoming bool) ([]domain.Meeting, error) {
	from := ""
	if upcoming {
		from = e.stamp()
	}
	return e.Repo.ListMeetings(ctx, from)
}

// SOPOptions creates or edits a playbook entry. On update, nil fields are left unchanged.
type SOPOptions struct {
	ID       string
	Title    *string
	Category *string
	Body     *string
	Company  *string
	ActorID  string
}

func (e Engine) CreateSOP(ctx context.Context, opts SOPOptions) (domain.SOP, error) {
	if opts.Title == nil || strings.TrimSpace(*opts.Title) == "" {
		return domain.SOP{}, precondition("title", "title is required")
	}
	now := e.stamp()
	s := domain.SOP{
		ID:        uuid.NewString(),
		Title:     strings.TrimSpace(*opts.Title),
		Category:  stringValue(opts.Category),
		Body:      stringValue(opts.Body),
		CreatedAt: now,
		UpdatedAt: now,
	}
	err := e.founderWrite(ctx, opts.ActorID, auth.CapEditPlaybook, func(tx *sqlx.Tx, actor domain.Profile) error {
		var err error
		if opts.Company != nil {
			if s.CompanyID, err = e.resolveCompany(ctx, tx, *opts.Company); err != nil {
				return err
			}
		}
		s.CreatedBy = actor.ID
		if err := e.Repo.InsertSOP(ctx, tx, s); err != nil {
			return fmt.Errorf("insert sop: %w", err)
		}
		return e.appendEvent(ctx, tx, "sop.created", "sop", s.ID, actor.ID, events.EventPayload{"title": s.Title})
	})
	return s, err
}

func (e Engine) UpdateSOP(ctx context.Context, opts SOPOptions) (domain.SOP, error) {
	var s domain.SOP
	err := e.founderWrite(ctx, opts.ActorID, auth.CapEditPlaybook, func(tx *sqlx.Tx, actor domain.Profile) error {
		var err error
		if s, err = e.Repo.GetSOP(ctx, tx, opts.ID); err != nil {
			return err
		}
		if opts.Title != nil {
			if strings.TrimSpace(*opts.Title) == "" {
				return precondition("title", "title is required")
			}
			s.Title = strings.TrimSpace(*opts.Title)
		}
		if opts.Category != nil {
			s.Category = *opts.Category
		}
		if opts.Body != nil {
			s.Body = *opts.Body
		}
		if opts.Company != nil {
			if s.CompanyID, err = e.resolveCompany(ctx, tx, *opts.Company); err != nil {
				return err
			}
		}
		s.UpdatedAt = e.stamp()
		if err := e.Repo.UpdateSOP(ctx, tx, s); err != nil {
			return err
		}
		return e.appendEvent(ctx, tx, "sop.updated", "sop", s.ID, actor.ID, nil)
	})
	return s, err
}

func (e Engine) DeleteSOP(ctx context.Context, actorID, id string) error {
	return e.founderWrite(ctx, actorID, auth.CapEditPlaybook, func(tx *sqlx.Tx, actor domain.Profile) error {
		if err := e.Repo.DeleteSOP(ctx, tx, id); err != nil {
			return err
		}
		return e.appendEvent(ctx, tx, "sop.deleted", "sop", id, actor.ID, nil)
	})
}

func (e Engine) ListSOPs(ctx context.Context, category string) ([]domain.SOP, error) {
	return e.Repo.ListSOPs(ctx, category)
}

func (e Engine) ListEvents(ctx context.Context, q repo.EventQuery) ([]domain.Event, error) {
	return e.Repo.ListEvents(ctx, q)
}

// CreateAPIKey issues a new key for profileID. The plaintext key is only returned here.
func (e Engine) CreateAPIKey(ctx context.Context, profileID, name string) (string, domain.APIKey, error) {
	tx, err := e.begin(ctx)
	if err != nil {
		return "", domain.APIKey{}, err
	}
	defer tx.Rollback()
	if _, _, err := e.loadActor(ctx, tx, profileID); err != nil {
		return "", domain.APIKey{}, err
	}
	plain := "tok_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	key := domain.APIKey{
		ID:        uuid.NewString(),
		ProfileID: profileID,
		Name:      strings.TrimSpace(name),
		KeyHash:   repo.HashAPIKey(plain),
		CreatedAt: e.stamp(),
	}
	if err := e.Repo.InsertAPIKey(ctx, tx, key); err != nil {
		return "", domain.APIKey{}, fmt.Errorf("insert api key: %w", err)
	}
	if err := e.appendEvent(ctx, tx, "api_key.created", "api_key", key.ID, profileID, events.EventPayload{"name": key.Name}); err != nil {
		return "", domain.APIKey{}, err
	}
	if err := tx.Commit(); err != nil {
		return "", domain.APIKey{}, err
	}
	return plain, key, nil
}

func slug(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			dash = false
		case !dash && b.Len() > 0:
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
