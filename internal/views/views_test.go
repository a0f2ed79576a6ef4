package views

import (
	"fmt"
	"reflect"
	"testing"
	"time"

	"teamops/internal/domain"
)

func ptr(s string) *string { return &s }

func task(id, status, assigneeID, assigneeName string) domain.Task {
	t := domain.Task{
		ID:           id,
		Title:        "Task " + id,
		Status:       status,
		Priority:     domain.PriorityMedium,
		Impact:       domain.ImpactSmall,
		AssigneeName: assigneeName,
		CompanyID:    ptr("acme"),
		CompanyName:  "Acme",
	}
	if assigneeID != "" {
		t.AssigneeID = ptr(assigneeID)
	}
	return t
}

func ids(tasks []domain.Task) []string {
	out := []string{}
	for _, t := range tasks {
		out = append(out, t.ID)
	}
	return out
}

func TestFilterCompletedByAssigneeName(t *testing.T) {
	var tasks []domain.Task
	for i := 0; i < 3; i++ {
		tasks = append(tasks, task(fmt.Sprintf("alex-%d", i), domain.StatusCompleted, "p-alex", "Alex"))
	}
	tasks = append(tasks,
		task("sam-0", domain.StatusCompleted, "p-sam", "Sam"),
		task("sam-1", domain.StatusCompleted, "p-sam", "Sam"),
		task("a-open-0", domain.StatusActive, "p-alex", "Alex"),
		task("a-open-1", domain.StatusSubmitted, "p-alex", "Alex"),
		task("s-open", domain.StatusFocus, "p-sam", "Sam"),
		task("none-0", domain.StatusActive, "", ""),
		task("none-1", domain.StatusCompleted, "", ""),
	)
	f := AllFilter()
	f.Status = domain.StatusCompleted
	f.Assignee = "Alex"
	got := Apply(tasks, f, "")
	want := []string{"alex-0", "alex-1", "alex-2"}
	if !reflect.DeepEqual(ids(got), want) {
		t.Fatalf("got %v, want %v", ids(got), want)
	}
	f.Assignee = "p-alex"
	if len(Apply(tasks, f, "")) != 3 {
		t.Fatalf("expected assignee id match")
	}
}

func TestWildcardFilterPreservesOrder(t *testing.T) {
	tasks := []domain.Task{
		task("c", domain.StatusActive, "", ""),
		task("a", domain.StatusFocus, "", ""),
		task("b", domain.StatusArchived, "", ""),
	}
	got := Apply(tasks, AllFilter(), "")
	if !reflect.DeepEqual(got, tasks) {
		t.Fatalf("wildcard filter changed collection: %v", ids(got))
	}
}

func TestFilterIdempotent(t *testing.T) {
	tasks := []domain.Task{
		task("1", domain.StatusActive, "u1", "Una"),
		task("2", domain.StatusActive, "u2", "Ben"),
		task("3", domain.StatusSubmitted, "u1", "Una"),
	}
	f := AllFilter()
	f.Status = domain.StatusActive
	once := Apply(tasks, f, "task")
	twice := Apply(once, f, "task")
	if !reflect.DeepEqual(once, twice) {
		t.Fatalf("filter not idempotent: %v vs %v", ids(once), ids(twice))
	}
}

func TestUnassignedDistinctFromWildcard(t *testing.T) {
	tasks := []domain.Task{
		task("1", domain.StatusActive, "u1", "Una"),
		task("2", domain.StatusActive, "", ""),
	}
	f := AllFilter()
	f.Assignee = ""
	if got := ids(Apply(tasks, f, "")); !reflect.DeepEqual(got, []string{"2"}) {
		t.Fatalf("expected only unassigned task, got %v", got)
	}
}

func TestCompanyMatchesIDOrName(t *testing.T) {
	tasks := []domain.Task{task("1", domain.StatusActive, "", "")}
	other := task("2", domain.StatusActive, "", "")
	other.CompanyID = ptr("globex")
	other.CompanyName = "Globex"
	tasks = append(tasks, other)
	for _, ref := range []string{"acme", "Acme"} {
		f := AllFilter()
		f.Company = ref
		if got := ids(Apply(tasks, f, "")); !reflect.DeepEqual(got, []string{"1"}) {
			t.Fatalf("company %q: got %v", ref, got)
		}
	}
}

func TestSearchTitleOrDescription(t *testing.T) {
	a := task("1", domain.StatusActive, "", "")
	a.Title = "Quarterly Report"
	b := task("2", domain.StatusActive, "", "")
	b.Description = "draft the REPORT intro"
	c := task("3", domain.StatusActive, "", "")
	got := ids(Apply([]domain.Task{a, b, c}, AllFilter(), "report"))
	if !reflect.DeepEqual(got, []string{"1", "2"}) {
		t.Fatalf("unexpected search result %v", got)
	}
}

func TestMineFallsBackToDisplayName(t *testing.T) {
	byID := task("1", domain.StatusActive, "u1", "")
	byName := task("2", domain.StatusActive, "", "Una")
	other := task("3", domain.StatusActive, "u2", "Ben")
	got := ids(Mine([]domain.Task{byID, byName, other}, domain.Profile{ID: "u1", DisplayName: "Una"}))
	if !reflect.DeepEqual(got, []string{"1", "2"}) {
		t.Fatalf("unexpected mine %v", got)
	}
}

func TestWeekAndMonthStart(t *testing.T) {
	loc := time.FixedZone("test", 2*3600)
	// Sunday
	now := time.Date(2024, 3, 10, 15, 30, 0, 0, loc)
	if ws := WeekStart(now); !ws.Equal(time.Date(2024, 3, 4, 0, 0, 0, 0, loc)) {
		t.Fatalf("unexpected week start %v", ws)
	}
	monday := time.Date(2024, 3, 4, 0, 0, 0, 0, loc)
	if ws := WeekStart(monday); !ws.Equal(monday) {
		t.Fatalf("monday midnight should be its own week start, got %v", ws)
	}
	if ms := MonthStart(now); !ms.Equal(time.Date(2024, 3, 1, 0, 0, 0, 0, loc)) {
		t.Fatalf("unexpected month start %v", ms)
	}
}

func TestCompletionWindows(t *testing.T) {
	now := time.Date(2024, 3, 13, 12, 0, 0, 0, time.UTC) // Wednesday
	mk := func(id, at string) domain.Task {
		tk := task(id, domain.StatusCompleted, "", "")
		tk.CompletedAt = ptr(at)
		return tk
	}
	tasks := []domain.Task{
		mk("monday", "2024-03-11T00:00:00Z"),
		mk("sunday", "2024-03-10T23:59:59Z"),
		mk("march", "2024-03-01T08:00:00Z"),
		mk("feb", "2024-02-29T08:00:00Z"),
		task("open", domain.StatusActive, "", ""),
	}
	c := CompletionCounts(tasks, now)
	if c.ThisWeek != 1 {
		t.Fatalf("expected 1 this week, got %d", c.ThisWeek)
	}
	if c.ThisMonth != 3 {
		t.Fatalf("expected 3 this month, got %d", c.ThisMonth)
	}
}

func TestProjectScopesTeamMembers(t *testing.T) {
	tasks := []domain.Task{
		task("1", domain.StatusFocus, "u1", "Una"),
		task("2", domain.StatusActive, "u2", "Ben"),
		task("3", domain.StatusSubmitted, "u1", "Una"),
		task("4", domain.StatusActive, "", ""),
	}
	now := time.Date(2024, 3, 13, 12, 0, 0, 0, time.UTC)
	founder := domain.Profile{ID: "f1", DisplayName: "Fay", Role: domain.RoleFounder}
	member := domain.Profile{ID: "u1", DisplayName: "Una", Role: domain.RoleTeam}

	fb := Project(tasks, founder, AllFilter(), "", now)
	if fb.Total != 4 || len(fb.Active) != 2 || len(fb.Focus) != 1 || len(fb.Submitted) != 1 {
		t.Fatalf("unexpected founder board %+v", fb)
	}
	if len(fb.Mine) != 0 {
		t.Fatalf("founder owns no tasks, got %v", ids(fb.Mine))
	}

	mb := Project(tasks, member, AllFilter(), "", now)
	if mb.Total != 2 || len(mb.Active) != 0 || len(mb.Focus) != 1 || len(mb.Submitted) != 1 {
		t.Fatalf("unexpected member board %+v", mb)
	}
	if !reflect.DeepEqual(ids(mb.Mine), []string{"1", "3"}) {
		t.Fatalf("unexpected member mine %v", ids(mb.Mine))
	}
}
