package domain

import (
	"encoding/json"
	"fmt"
	"strings"
)

const (
	StatusFocus     = "focus"
	StatusActive    = "active"
	StatusSubmitted = "submitted"
	StatusCompleted = "completed"
	StatusArchived  = "archived"
)

const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
)

const (
	ImpactSmall  = "small"
	ImpactMedium = "medium"
	ImpactLarge  = "large"
)

const (
	RoleFounder = "founder"
	RoleTeam    = "team"
)

const (
	MessageTeam   = "team"
	MessageDirect = "direct"
	MessageKudos  = "kudos"
)

// EstimateMinutes is the fixed time estimate for an impact class.
func EstimateMinutes(impact string) int {
	switch impact {
	case ImpactSmall:
		return 20
	case ImpactMedium:
		return 45
	case ImpactLarge:
		return 90
	default:
		return 0
	}
}

func ValidStatus(s string) bool {
	switch s {
	case StatusFocus, StatusActive, StatusSubmitted, StatusCompleted, StatusArchived:
		return true
	}
	return false
}

func ValidPriority(p string) bool {
	return p == PriorityLow || p == PriorityMedium || p == PriorityHigh
}

func ValidImpact(i string) bool {
	return i == ImpactSmall || i == ImpactMedium || i == ImpactLarge
}

func ValidRole(r string) bool {
	return r == RoleFounder || r == RoleTeam
}

type Task struct {
	ID              string  `json:"id" db:"id"`
	Title           string  `json:"title" db:"title"`
	Description     string  `json:"description,omitempty" db:"description"`
	DueDate         *string `json:"due_date,omitempty" db:"due_date"`
	PhotoRef        *string `json:"photo_ref,omitempty" db:"photo_ref"`
	MetadataJSON    *string `json:"metadata_json,omitempty" db:"metadata_json"`
	CompanyID       *string `json:"company_id,omitempty" db:"company_id"`
	CompanyName     string  `json:"company_name,omitempty" db:"company_name"`
	Priority        string  `json:"priority" db:"priority"`
	Impact          string  `json:"impact" db:"impact"`
	EstimateMinutes int     `json:"estimate_minutes" db:"estimate_minutes"`
	AssigneeID      *string `json:"assigned_to,omitempty" db:"assigned_to"`
	AssigneeName    string  `json:"assignee_name,omitempty" db:"assignee_name"`
	CreatedBy       string  `json:"created_by" db:"created_by"`
	Status          string  `json:"status" db:"status"`
	CreatedAt       string  `json:"created_at" db:"created_at"`
	UpdatedAt       string  `json:"updated_at" db:"updated_at"`
	CompletedAt     *string `json:"completed_at,omitempty" db:"completed_at"`
}

// AssignedTo reports whether the task is assigned to the given profile id.
func (t Task) AssignedTo(profileID string) bool {
	return t.AssigneeID != nil && profileID != "" && *t.AssigneeID == profileID
}

type Profile struct {
	ID          string  `json:"id" db:"id"`
	Email       string  `json:"email" db:"email"`
	DisplayName string  `json:"display_name" db:"display_name"`
	Role        string  `json:"role" db:"role"`
	Level       int     `json:"level" db:"level"`
	XP          int     `json:"xp" db:"xp"`
	GoogleDocID *string `json:"google_doc_id,omitempty" db:"google_doc_id"`
	AvatarRef   *string `json:"avatar_ref,omitempty" db:"avatar_ref"`
	CreatedAt   string  `json:"created_at" db:"created_at"`
	UpdatedAt   string  `json:"updated_at" db:"updated_at"`
}

type Message struct {
	ID            string  `json:"id" db:"id"`
	SenderID      string  `json:"sender_id" db:"sender_id"`
	SenderName    string  `json:"sender_name,omitempty" db:"sender_name"`
	RecipientID   *string `json:"recipient_id,omitempty" db:"recipient_id"`
	Content       string  `json:"content" db:"content"`
	Kind          string  `json:"kind" db:"kind"`
	IsKudos       bool    `json:"is_kudos" db:"is_kudos"`
	RelatedTaskID *string `json:"related_task_id,omitempty" db:"related_task_id"`
	IsRead        bool    `json:"is_read" db:"is_read"`
	CreatedAt     string  `json:"created_at" db:"created_at"`
}

// Broadcast reports whether the message targets the whole team.
func (m Message) Broadcast() bool {
	return m.RecipientID == nil
}

type Accomplishment struct {
	ID           string `json:"id" db:"id" yaml:"id"`
	AuthorID     string `json:"author_id" db:"author_id" yaml:"author_id"`
	Text         string `json:"text" db:"text" yaml:"text"`
	PostedToTeam bool   `json:"posted_to_team" db:"posted_to_team" yaml:"posted_to_team"`
	CreatedAt    string `json:"created_at" db:"created_at" yaml:"created_at"`
}

type Company struct {
	ID        string `json:"id" db:"id"`
	Name      string `json:"name" db:"name"`
	CreatedAt string `json:"created_at" db:"created_at"`
}

type Client struct {
	ID           string  `json:"id" db:"id"`
	CompanyID    *string `json:"company_id,omitempty" db:"company_id"`
	Name         string  `json:"name" db:"name"`
	ContactEmail string  `json:"contact_email,omitempty" db:"contact_email"`
	Notes        string  `json:"notes,omitempty" db:"notes"`
	CreatedAt    string  `json:"created_at" db:"created_at"`
}

type Product struct {
	ID          string  `json:"id" db:"id"`
	CompanyID   *string `json:"company_id,omitempty" db:"company_id"`
	Name        string  `json:"name" db:"name"`
	Description string  `json:"description,omitempty" db:"description"`
	CreatedAt   string  `json:"created_at" db:"created_at"`
}

type Meeting struct {
	ID              string  `json:"id" db:"id"`
	Title           string  `json:"title" db:"title"`
	CompanyID       *string `json:"company_id,omitempty" db:"company_id"`
	ScheduledAt     string  `json:"scheduled_at" db:"scheduled_at"`
	DurationMinutes int     `json:"duration_minutes" db:"duration_minutes"`
	Location        string  `json:"location,omitempty" db:"location"`
	Agenda          string  `json:"agenda,omitempty" db:"agenda"`
	CreatedBy       string  `json:"created_by" db:"created_by"`
	CreatedAt       string  `json:"created_at" db:"created_at"`
	UpdatedAt       string  `json:"updated_at" db:"updated_at"`
}

// SOP is a playbook entry.
type SOP struct {
	ID        string  `json:"id" db:"id"`
	Title     string  `json:"title" db:"title"`
	Category  string  `json:"category,omitempty" db:"category"`
	Body      string  `json:"body" db:"body"`
	CompanyID *string `json:"company_id,omitempty" db:"company_id"`
	CreatedBy string  `json:"created_by" db:"created_by"`
	CreatedAt string  `json:"created_at" db:"created_at"`
	UpdatedAt string  `json:"updated_at" db:"updated_at"`
}

type Event struct {
	ID         int64  `json:"id" db:"id"`
	TS         string `json:"ts" db:"ts" format:"date-time"`
	Type       string `json:"type" db:"type"`
	EntityKind string `json:"entity_kind" db:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty" db:"entity_id"`
	ActorID    string `json:"actor_id" db:"actor_id"`
	Payload    string `json:"payload_json" db:"payload_json"`
}

type APIKey struct {
	ID        string `json:"id" db:"id"`
	ProfileID string `json:"profile_id" db:"profile_id"`
	Name      string `json:"name,omitempty" db:"name"`
	KeyHash   string `json:"key_hash" db:"key_hash"`
	CreatedAt string `json:"created_at" db:"created_at"`
}

// Metadata keys written by the task workflow.
const (
	MetaLink        = "link"
	MetaNotes       = "notes"
	MetaSubmittedBy = "submitted_by"
	MetaSubmittedAt = "submitted_at"
	MetaReturnedAt  = "returned_at"
)

// DecodeMetadata parses a task metadata column into a map. Nil or empty yields an empty map.
func DecodeMetadata(raw *string) (map[string]any, error) {
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return map[string]any{}, nil
	}
	var tmp any
	if err := json.Unmarshal([]byte(*raw), &tmp); err != nil {
		return nil, fmt.Errorf("invalid metadata: %w", err)
	}
	obj, ok := tmp.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("invalid metadata: must be object")
	}
	return obj, nil
}

// EncodeMetadata is the inverse of DecodeMetadata; an empty map encodes to nil.
func EncodeMetadata(m map[string]any) (*string, error) {
	if len(m) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("invalid metadata: %w", err)
	}
	s := string(b)
	return &s, nil
}

// MetadataString returns a string value from task metadata, or "".
func MetadataString(raw *string, key string) string {
	m, err := DecodeMetadata(raw)
	if err != nil {
		return ""
	}
	s, _ := m[key].(string)
	return s
}

// PrependNotes puts a labeled notes block in front of a task description.
func PrependNotes(description, notes string) string {
	notes = strings.TrimSpace(notes)
	if notes == "" {
		return description
	}
	block := "Notes:\n" + notes
	if strings.TrimSpace(description) == "" {
		return block
	}
	return block + "\n\n---\n\n" + description
}
