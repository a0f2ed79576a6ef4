package teamopssdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a minimal Teamops HTTP API client.
type Client struct {
	BaseURL     string
	APIKey      string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		Timeout: 10 * time.Second,
	}
}

// Task represents the API task model.
type Task struct {
	ID              string  `json:"id"`
	Title           string  `json:"title"`
	Description     string  `json:"description,omitempty"`
	DueDate         *string `json:"due_date,omitempty"`
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
	CreatedAt       string  `json:"created_at"`
	UpdatedAt       string  `json:"updated_at"`
	CompletedAt     *string `json:"completed_at,omitempty"`
}

// NewTask carries the optional fields of a task creation.
type NewTask struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	DueDate     string `json:"due_date,omitempty"`
	Priority    string `json:"priority,omitempty"`
	Impact      string `json:"impact,omitempty"`
	Company     string `json:"company,omitempty"`
	AssignedTo  string `json:"assigned_to,omitempty"`
	Link        string `json:"link,omitempty"`
	Pinned      bool   `json:"pinned,omitempty"`
}

// Standing is the XP-derived level view.
type Standing struct {
	XP       int    `json:"xp"`
	Level    int    `json:"level"`
	Title    string `json:"title"`
	Progress int    `json:"progress"`
	ToNext   int    `json:"to_next"`
	Percent  int    `json:"percent"`
}

// Completion is returned by finish, complete and approve.
type Completion struct {
	Task      Task      `json:"task"`
	Submitted bool      `json:"submitted"`
	XPAwarded int       `json:"xp_awarded"`
	LeveledUp bool      `json:"leveled_up"`
	Standing  *Standing `json:"standing,omitempty"`
	Message   *Message  `json:"message,omitempty"`
	Celebrate bool      `json:"celebrate"`
}

type Profile struct {
	ID          string   `json:"id"`
	Email       string   `json:"email"`
	DisplayName string   `json:"display_name"`
	Role        string   `json:"role"`
	Level       int      `json:"level"`
	XP          int      `json:"xp"`
	Standing    Standing `json:"standing"`
}

// Me is the caller's profile and role-derived capabilities.
type Me struct {
	Profile      Profile         `json:"profile"`
	Capabilities map[string]bool `json:"capabilities"`
	Source       string          `json:"source"`
}

type Message struct {
	ID            string  `json:"id"`
	SenderID      string  `json:"sender_id"`
	SenderName    string  `json:"sender_name,omitempty"`
	RecipientID   *string `json:"recipient_id,omitempty"`
	Content       string  `json:"content"`
	Kind          string  `json:"kind"`
	IsKudos       bool    `json:"is_kudos"`
	RelatedTaskID *string `json:"related_task_id,omitempty"`
	IsRead        bool    `json:"is_read"`
	CreatedAt     string  `json:"created_at"`
}

// Board is the bucketed, role-scoped task view.
type Board struct {
	Focus      []Task `json:"focus"`
	Active     []Task `json:"active"`
	Submitted  []Task `json:"submitted"`
	Completed  []Task `json:"completed"`
	Archived   []Task `json:"archived"`
	Mine       []Task `json:"mine"`
	Completion struct {
		ThisWeek  int `json:"this_week"`
		ThisMonth int `json:"this_month"`
	} `json:"completion"`
	Total int `json:"total"`
}

// BoardFilter narrows Board. Empty fields mean "all"; use "unassigned" and
// "none" for tasks without assignee or company.
type BoardFilter struct {
	Company  string
	Impact   string
	Priority string
	Status   string
	Assignee string
	Search   string
}

// Event represents a log entry.
type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts"`
	Type       string `json:"type"`
	EntityID   string `json:"entity_id"`
	EntityKind string `json:"entity_kind"`
	ActorID    string `json:"actor_id"`
	Payload    string `json:"payload_json"`
}

// APIError wraps non-2xx responses. Code and Message are filled from the
// error envelope when the body carries one.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	Body       string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("api error: status=%d code=%s message=%s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// PaginatedEvents wraps list responses with cursors.
type PaginatedEvents struct {
	Items      []Event `json:"items"`
	NextCursor string  `json:"next_cursor"`
}

// DevLogin mints a token on servers started with dev login enabled and
// stores it on the client.
func (c *Client) DevLogin(ctx context.Context, email, name string) (string, error) {
	var resp struct {
		Token     string `json:"token"`
		ProfileID string `json:"profile_id"`
	}
	if err := c.do(ctx, http.MethodPost, "auth/dev/login", map[string]any{"email": email, "name": name}, &resp); err != nil {
		return "", err
	}
	c.BearerToken = resp.Token
	return resp.ProfileID, nil
}

func (c *Client) Me(ctx context.Context) (Me, error) {
	var resp Me
	err := c.do(ctx, http.MethodGet, "me", nil, &resp)
	return resp, err
}

// CreateTask creates a task.
func (c *Client) CreateTask(ctx context.Context, t NewTask) (Task, error) {
	var resp Task
	err := c.do(ctx, http.MethodPost, "tasks", t, &resp)
	return resp, err
}

// Finish completes the task for founders and submits it for review otherwise.
func (c *Client) Finish(ctx context.Context, taskID, notes string) (Completion, error) {
	var resp Completion
	err := c.do(ctx, http.MethodPost, taskPath(taskID, "finish"), map[string]any{"notes": notes}, &resp)
	return resp, err
}

func (c *Client) Approve(ctx context.Context, taskID, message string) (Completion, error) {
	var resp Completion
	err := c.do(ctx, http.MethodPost, taskPath(taskID, "approve"), map[string]any{"message": message}, &resp)
	return resp, err
}

func (c *Client) Return(ctx context.Context, taskID, message string) (Task, error) {
	var resp Task
	err := c.do(ctx, http.MethodPost, taskPath(taskID, "return"), map[string]any{"message": message}, &resp)
	return resp, err
}

func (c *Client) TogglePin(ctx context.Context, taskID string) (Task, error) {
	var resp Task
	err := c.do(ctx, http.MethodPost, taskPath(taskID, "pin"), nil, &resp)
	return resp, err
}

// Board returns the caller's dashboard board.
func (c *Client) Board(ctx context.Context, f BoardFilter) (Board, error) {
	q := url.Values{}
	for key, v := range map[string]string{
		"company":  f.Company,
		"impact":   f.Impact,
		"priority": f.Priority,
		"status":   f.Status,
		"assignee": f.Assignee,
		"q":        f.Search,
	} {
		if v != "" {
			q.Set(key, v)
		}
	}
	endpoint := "board"
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}
	var resp Board
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// SendMessage sends a direct message, or a team broadcast when recipientID is empty.
func (c *Client) SendMessage(ctx context.Context, recipientID, content string) (Message, error) {
	body := map[string]any{"content": content}
	if recipientID != "" {
		body["recipient_id"] = recipientID
	}
	var resp Message
	err := c.do(ctx, http.MethodPost, "messages", body, &resp)
	return resp, err
}

func (c *Client) SendKudos(ctx context.Context, recipientID, message string) (Message, error) {
	var resp Message
	err := c.do(ctx, http.MethodPost, "kudos", map[string]any{"recipient_id": recipientID, "message": message}, &resp)
	return resp, err
}

// Inbox lists messages of kind ("" for all kinds).
func (c *Client) Inbox(ctx context.Context, kind string) ([]Message, error) {
	endpoint := "messages"
	if kind != "" {
		endpoint += "?kind=" + url.QueryEscape(kind)
	}
	var resp []Message
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// Events returns recent events.
func (c *Client) Events(ctx context.Context, limit int) ([]Event, error) {
	page, err := c.EventsPage(ctx, limit, "")
	return page.Items, err
}

// EventsPage returns events after cursor, oldest first.
func (c *Client) EventsPage(ctx context.Context, limit int, cursor string) (PaginatedEvents, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", fmt.Sprintf("%d", limit))
	}
	if cursor != "" {
		q.Set("cursor", cursor)
	}
	endpoint := "events"
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}
	var resp PaginatedEvents
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/v1/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	switch {
	case c.BearerToken != "":
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	case c.APIKey != "":
		req.Header.Set("X-Api-Key", c.APIKey)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		apiErr := &APIError{StatusCode: resp.StatusCode, Body: string(b)}
		var env struct {
			Error struct {
				Code    string `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
		}
		if json.Unmarshal(b, &env) == nil {
			apiErr.Code = env.Error.Code
			apiErr.Message = env.Error.Message
		}
		return apiErr
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func taskPath(id, action string) string {
	return fmt.Sprintf("tasks/%s/%s", url.PathEscape(id), action)
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
