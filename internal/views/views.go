// Package views derives role-scoped and filtered task subsets from a full task collection.
// Everything here is a pure function of its inputs.
package views

import (
	"strings"
	"time"

	"teamops/internal/domain"
)

// All is the wildcard value for every Filter field.
const All = "all"

// Filter selects tasks by exact attribute match. A field set to All matches anything.
// Assignee "" selects unassigned tasks, which is distinct from All.
type Filter struct {
	Company  string `json:"company"`
	Impact   string `json:"impact"`
	Priority string `json:"priority"`
	Status   string `json:"status"`
	Assignee string `json:"assignee"`
}

// AllFilter returns a filter that matches every task.
func AllFilter() Filter {
	return Filter{Company: All, Impact: All, Priority: All, Status: All, Assignee: All}
}

// Matches reports whether t satisfies every non-wildcard field.
func (f Filter) Matches(t domain.Task) bool {
	if f.Company != All {
		id := deref(t.CompanyID)
		if f.Company == "" {
			if id != "" {
				return false
			}
		} else if f.Company != id && f.Company != t.CompanyName {
			return false
		}
	}
	if f.Impact != All && f.Impact != t.Impact {
		return false
	}
	if f.Priority != All && f.Priority != t.Priority {
		return false
	}
	if f.Status != All && f.Status != t.Status {
		return false
	}
	if f.Assignee != All {
		id := deref(t.AssigneeID)
		if f.Assignee == "" {
			return id == ""
		}
		if f.Assignee != id && f.Assignee != t.AssigneeName {
			return false
		}
	}
	return true
}

// MatchesSearch reports whether search is a case-insensitive substring of the title or description.
func MatchesSearch(t domain.Task, search string) bool {
	search = strings.ToLower(strings.TrimSpace(search))
	if search == "" {
		return true
	}
	return strings.Contains(strings.ToLower(t.Title), search) ||
		strings.Contains(strings.ToLower(t.Description), search)
}

// Apply returns the tasks matching filter and search, in input order.
func Apply(tasks []domain.Task, f Filter, search string) []domain.Task {
	out := make([]domain.Task, 0, len(tasks))
	for _, t := range tasks {
		if f.Matches(t) && MatchesSearch(t, search) {
			out = append(out, t)
		}
	}
	return out
}

// Buckets partitions tasks into the pipeline stages shown on the board.
type Buckets struct {
	Focus     []domain.Task `json:"focus"`
	Active    []domain.Task `json:"active"`
	Submitted []domain.Task `json:"submitted"`
	Completed []domain.Task `json:"completed"`
	Archived  []domain.Task `json:"archived"`
}

func Partition(tasks []domain.Task) Buckets {
	b := Buckets{
		Focus:     []domain.Task{},
		Active:    []domain.Task{},
		Submitted: []domain.Task{},
		Completed: []domain.Task{},
		Archived:  []domain.Task{},
	}
	for _, t := range tasks {
		switch t.Status {
		case domain.StatusFocus:
			b.Focus = append(b.Focus, t)
		case domain.StatusActive:
			b.Active = append(b.Active, t)
		case domain.StatusSubmitted:
			b.Submitted = append(b.Submitted, t)
		case domain.StatusCompleted:
			b.Completed = append(b.Completed, t)
		case domain.StatusArchived:
			b.Archived = append(b.Archived, t)
		}
	}
	return b
}

// Mine restricts tasks to those assigned to viewer. Rows are matched by
// assignee id first, then by display name for rows that only carry the name.
func Mine(tasks []domain.Task, viewer domain.Profile) []domain.Task {
	out := []domain.Task{}
	for _, t := range tasks {
		if ownedBy(t, viewer) {
			out = append(out, t)
		}
	}
	return out
}

func ownedBy(t domain.Task, viewer domain.Profile) bool {
	if t.AssignedTo(viewer.ID) {
		return true
	}
	name := strings.TrimSpace(viewer.DisplayName)
	return name != "" && t.AssigneeName == name
}

// WeekStart returns the most recent Monday 00:00 in now's location.
func WeekStart(now time.Time) time.Time {
	offset := (int(now.Weekday()) + 6) % 7
	y, m, d := now.Date()
	return time.Date(y, m, d-offset, 0, 0, 0, 0, now.Location())
}

// MonthStart returns the first day of now's month at 00:00 in now's location.
func MonthStart(now time.Time) time.Time {
	y, m, _ := now.Date()
	return time.Date(y, m, 1, 0, 0, 0, 0, now.Location())
}

// Completion counts completed tasks inside the current week and month windows.
type Completion struct {
	ThisWeek  int `json:"this_week"`
	ThisMonth int `json:"this_month"`
}

func CompletionCounts(tasks []domain.Task, now time.Time) Completion {
	week := WeekStart(now)
	month := MonthStart(now)
	var c Completion
	for _, t := range tasks {
		if t.Status != domain.StatusCompleted || t.CompletedAt == nil {
			continue
		}
		at, err := time.Parse(time.RFC3339, *t.CompletedAt)
		if err != nil {
			continue
		}
		if !at.Before(week) {
			c.ThisWeek++
		}
		if !at.Before(month) {
			c.ThisMonth++
		}
	}
	return c
}

// Board is everything the dashboard renders for one viewer.
type Board struct {
	Buckets
	Mine       []domain.Task `json:"mine"`
	Completion Completion    `json:"completion"`
	Total      int           `json:"total"`
}

// Project builds the board for viewer. Founders see every task; team members
// only see their own. Buckets and "mine" are taken after filter and search;
// completion counts cover the viewer's scope regardless of filter.
func Project(tasks []domain.Task, viewer domain.Profile, f Filter, search string, now time.Time) Board {
	scoped := tasks
	if viewer.Role != domain.RoleFounder {
		scoped = Mine(tasks, viewer)
	}
	filtered := Apply(scoped, f, search)
	return Board{
		Buckets:    Partition(filtered),
		Mine:       Mine(filtered, viewer),
		Completion: CompletionCounts(scoped, now),
		Total:      len(filtered),
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
