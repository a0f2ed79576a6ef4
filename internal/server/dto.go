package server

import (
	"teamops/internal/domain"
	"teamops/internal/engine"
	"teamops/internal/engine/auth"
	"teamops/internal/leveling"
	"teamops/internal/views"
)

// Request payloads

type CreateTaskRequest struct {
	ID          *string `json:"id,omitempty"`
	Title       string  `json:"title"`
	Description *string `json:"description,omitempty"`
	DueDate     *string `json:"due_date,omitempty"`
	Priority    *string `json:"priority,omitempty" enum:"low,medium,high"`
	Impact      *string `json:"impact,omitempty" enum:"small,medium,large"`
	Company     *string `json:"company,omitempty" doc:"Company id or name"`
	AssignedTo  *string `json:"assigned_to,omitempty"`
	Link        *string `json:"link,omitempty"`
	Pinned      bool    `json:"pinned,omitempty"`
}

type UpdateTaskRequest struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	DueDate     *string `json:"due_date,omitempty"`
	Priority    *string `json:"priority,omitempty" enum:"low,medium,high"`
	Impact      *string `json:"impact,omitempty" enum:"small,medium,large"`
	Company     *string `json:"company,omitempty"`
	Link        *string `json:"link,omitempty"`
	AssignedTo  *string `json:"assigned_to,omitempty" doc:"Empty string unassigns"`
}

type NotesRequest struct {
	Notes string `json:"notes,omitempty"`
}

type ReviewRequest struct {
	Message string `json:"message,omitempty"`
}

type UpdateMeRequest struct {
	DisplayName *string `json:"display_name,omitempty"`
	GoogleDocID *string `json:"google_doc_id,omitempty"`
	AvatarRef   *string `json:"avatar_ref,omitempty"`
}

type SendMessageRequest struct {
	RecipientID   *string `json:"recipient_id,omitempty" doc:"Omit to broadcast to the team"`
	Content       string  `json:"content"`
	RelatedTaskID *string `json:"related_task_id,omitempty"`
}

type MarkReadRequest struct {
	Kind string `json:"kind,omitempty" enum:"team,direct,kudos"`
}

type KudosRequest struct {
	RecipientID string `json:"recipient_id"`
	Message     string `json:"message"`
}

type AccomplishmentRequest struct {
	Text  string `json:"text"`
	Share bool   `json:"share,omitempty"`
}

type CompanyRequest struct {
	ID   *string `json:"id,omitempty"`
	Name string  `json:"name"`
}

type ClientRequest struct {
	Company      *string `json:"company,omitempty"`
	Name         string  `json:"name"`
	ContactEmail *string `json:"contact_email,omitempty"`
	Notes        *string `json:"notes,omitempty"`
}

type ProductRequest struct {
	Company     *string `json:"company,omitempty"`
	Name        string  `json:"name"`
	Description *string `json:"description,omitempty"`
}

type MeetingRequest struct {
	Title           string  `json:"title"`
	Company         *string `json:"company,omitempty"`
	ScheduledAt     string  `json:"scheduled_at" format:"date-time"`
	DurationMinutes int     `json:"duration_minutes,omitempty"`
	Location        *string `json:"location,omitempty"`
	Agenda          *string `json:"agenda,omitempty"`
}

type UpdateMeetingRequest struct {
	Title           *string `json:"title,omitempty"`
	Company         *string `json:"company,omitempty"`
	ScheduledAt     *string `json:"scheduled_at,omitempty" format:"date-time"`
	DurationMinutes int     `json:"duration_minutes,omitempty"`
	Location        *string `json:"location,omitempty"`
	Agenda          *string `json:"agenda,omitempty"`
}

type SOPRequest struct {
	Title    *string `json:"title,omitempty"`
	Category *string `json:"category,omitempty"`
	Body     *string `json:"body,omitempty"`
	Company  *string `json:"company,omitempty"`
}

type DevLoginRequest struct {
	Email string `json:"email" format:"email"`
	Name  string `json:"name,omitempty"`
}

// Response payloads

type TaskResponse struct {
	ID              string  `json:"id"`
	Title           string  `json:"title"`
	Description     string  `json:"description,omitempty"`
	DueDate         *string `json:"due_date,omitempty"`
	PhotoRef        *string `json:"photo_ref,omitempty"`
	CompanyID       *string `json:"company_id,omitempty"`
	CompanyName     string  `json:"company_name,omitempty"`
	Priority        string  `json:"priority"`
	Impact          string  `json:"impact"`
	EstimateMinutes int     `json:"estimate_minutes"`
	AssignedTo      *string `json:"assigned_to,omitempty"`
	AssigneeName    string  `json:"assignee_name,omitempty"`
	CreatedBy       string  `json:"created_by"`
	Status          string  `json:"status"`
	Link            string  `json:"link,omitempty"`
	Notes           string  `json:"notes,omitempty"`
	SubmittedAt     string  `json:"submitted_at,omitempty"`
	CreatedAt       string  `json:"created_at"`
	UpdatedAt       string  `json:"updated_at"`
	CompletedAt     *string `json:"completed_at,omitempty"`
}

type CompletionResponse struct {
	Task      TaskResponse      `json:"task"`
	Submitted bool              `json:"submitted"`
	XPAwarded int               `json:"xp_awarded"`
	LeveledUp bool              `json:"leveled_up"`
	Standing  *leveling.Standing `json:"standing,omitempty"`
	Message   *domain.Message   `json:"message,omitempty"`
	Celebrate bool              `json:"celebrate"`
}

type ProfileResponse struct {
	domain.Profile
	Standing leveling.Standing `json:"standing"`
}

type MeResponse struct {
	Profile      ProfileResponse   `json:"profile"`
	Capabilities auth.Capabilities `json:"capabilities"`
	Source       string            `json:"source"`
}

type BoardResponse struct {
	Focus      []TaskResponse   `json:"focus"`
	Active     []TaskResponse   `json:"active"`
	Submitted  []TaskResponse   `json:"submitted"`
	Completed  []TaskResponse   `json:"completed"`
	Archived   []TaskResponse   `json:"archived"`
	Mine       []TaskResponse   `json:"mine"`
	Completion views.Completion `json:"completion"`
	Total      int              `json:"total"`
}

type MarkReadResponse struct {
	Updated int64 `json:"updated"`
}

type DevLoginResponse struct {
	Token     string `json:"token"`
	ProfileID string `json:"profile_id"`
}

type paginatedEvents struct {
	Items      []domain.Event `json:"items"`
	NextCursor string         `json:"next_cursor,omitempty"`
}

func taskResponse(t domain.Task) TaskResponse {
	meta, _ := domain.DecodeMetadata(t.MetadataJSON)
	str := func(key string) string {
		s, _ := meta[key].(string)
		return s
	}
	return TaskResponse{
		ID:              t.ID,
		Title:           t.Title,
		Description:     t.Description,
		DueDate:         t.DueDate,
		PhotoRef:        t.PhotoRef,
		CompanyID:       t.CompanyID,
		CompanyName:     t.CompanyName,
		Priority:        t.Priority,
		Impact:          t.Impact,
		EstimateMinutes: t.EstimateMinutes,
		AssignedTo:      t.AssigneeID,
		AssigneeName:    t.AssigneeName,
		CreatedBy:       t.CreatedBy,
		Status:          t.Status,
		Link:            str(domain.MetaLink),
		Notes:           str(domain.MetaNotes),
		SubmittedAt:     str(domain.MetaSubmittedAt),
		CreatedAt:       t.CreatedAt,
		UpdatedAt:       t.UpdatedAt,
		CompletedAt:     t.CompletedAt,
	}
}

func mapTasks(items []domain.Task) []TaskResponse {
	res := make([]TaskResponse, 0, len(items))
	for _, t := range items {
		res = append(res, taskResponse(t))
	}
	return res
}

func completionResponse(r engine.CompletionResult) CompletionResponse {
	resp := CompletionResponse{
		Task:      taskResponse(r.Task),
		Submitted: r.Submitted,
		XPAwarded: r.XPAwarded,
		LeveledUp: r.LeveledUp,
		Message:   r.Message,
		Celebrate: r.Celebrate,
	}
	if !r.Submitted {
		standing := r.Standing
		resp.Standing = &standing
	}
	return resp
}

func profileResponse(p domain.Profile) ProfileResponse {
	return ProfileResponse{Profile: p, Standing: leveling.StandingFor(p.XP)}
}

func boardResponse(b views.Board) BoardResponse {
	return BoardResponse{
		Focus:      mapTasks(b.Focus),
		Active:     mapTasks(b.Active),
		Submitted:  mapTasks(b.Submitted),
		Completed:  mapTasks(b.Completed),
		Archived:   mapTasks(b.Archived),
		Mine:       mapTasks(b.Mine),
		Completion: b.Completion,
		Total:      b.Total,
	}
}
