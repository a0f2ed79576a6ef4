package server

import (
	"bytes"
	"context"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"

	"teamops/internal/domain"
	"teamops/internal/engine"
	"teamops/internal/repo"
	"teamops/internal/views"
)

var taskErrors = []int{
	http.StatusBadRequest,
	http.StatusUnauthorized,
	http.StatusForbidden,
	http.StatusNotFound,
	http.StatusConflict,
	http.StatusInternalServerError,
}

type taskOutput struct {
	Body TaskResponse `json:"body"`
}

type completionOutput struct {
	Body CompletionResponse `json:"body"`
}

func registerTasks(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-task",
		Method:        http.MethodPost,
		Path:          "/tasks",
		Summary:       "Create task",
		DefaultStatus: http.StatusCreated,
		Errors:        taskErrors,
	}, func(ctx context.Context, input *struct {
		Body CreateTaskRequest `json:"body"`
	}) (*taskOutput, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		b := input.Body
		t, err := e.CreateTask(ctx, engine.TaskCreateOptions{
			ID:          stringOrEmpty(b.ID),
			Title:       b.Title,
			Description: stringOrEmpty(b.Description),
			DueDate:     stringOrEmpty(b.DueDate),
			Priority:    stringOrEmpty(b.Priority),
			Impact:      stringOrEmpty(b.Impact),
			Company:     stringOrEmpty(b.Company),
			AssigneeID:  stringOrEmpty(b.AssignedTo),
			Link:        stringOrEmpty(b.Link),
			Pinned:      b.Pinned,
			ActorID:     actorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &taskOutput{Body: taskResponse(t)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-tasks",
		Method:      http.MethodGet,
		Path:        "/tasks",
		Summary:     "List tasks visible to the caller",
		Errors:      []int{http.StatusUnauthorized, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		Status     string `query:"status" enum:"focus,active,submitted,completed,archived"`
		AssigneeID string `query:"assignee_id"`
		CompanyID  string `query:"company_id"`
		Limit      int    `query:"limit"`
	}) (*struct {
		Body []TaskResponse `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		viewer, err := e.GetProfile(ctx, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		items, err := e.ListTasks(ctx, repo.TaskQuery{
			Status:     input.Status,
			AssigneeID: input.AssigneeID,
			CompanyID:  input.CompanyID,
			Limit:      input.Limit,
		})
		if err != nil {
			return nil, handleError(err)
		}
		if viewer.Role != domain.RoleFounder {
			items = views.Mine(items, viewer)
		}
		return &struct {
			Body []TaskResponse `json:"body"`
		}{Body: mapTasks(items)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-task",
		Method:      http.MethodGet,
		Path:        "/tasks/{id}",
		Summary:     "Get task",
		Errors:      []int{http.StatusUnauthorized, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*taskOutput, error) {
		if _, authErr := actorIDFromContext(ctx); authErr != nil {
			return nil, authErr
		}
		t, err := e.GetTask(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &taskOutput{Body: taskResponse(t)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-task",
		Method:      http.MethodPatch,
		Path:        "/tasks/{id}",
		Summary:     "Edit task fields",
		Errors:      taskErrors,
	}, func(ctx context.Context, input *struct {
		ID   string            `path:"id"`
		Body UpdateTaskRequest `json:"body"`
	}) (*taskOutput, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		b := input.Body
		t, err := e.UpdateTask(ctx, engine.TaskUpdateOptions{
			ID:          input.ID,
			Title:       b.Title,
			Description: b.Description,
			DueDate:     b.DueDate,
			Priority:    b.Priority,
			Impact:      b.Impact,
			Company:     b.Company,
			Link:        b.Link,
			AssigneeID:  b.AssignedTo,
			ActorID:     actorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &taskOutput{Body: taskResponse(t)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "delete-task",
		Method:        http.MethodDelete,
		Path:          "/tasks/{id}",
		Summary:       "Delete task",
		DefaultStatus: http.StatusNoContent,
		Errors:        taskErrors,
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct{}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := e.DeleteTask(ctx, input.ID, actorID); err != nil {
			return nil, handleError(err)
		}
		return nil, nil
	})
}

func registerTaskActions(api huma.API, e engine.Engine) {
	simple := []struct {
		id      string
		action  string
		summary string
		run     func(ctx context.Context, id, actorID string) (domain.Task, error)
	}{
		{"pin-task", "pin", "Toggle focus", e.TogglePin},
		{"archive-task", "archive", "Archive completed task", e.ArchiveTask},
	}
	for _, op := range simple {
		run := op.run
		huma.Register(api, huma.Operation{
			OperationID: op.id,
			Method:      http.MethodPost,
			Path:        "/tasks/{id}/" + op.action,
			Summary:     op.summary,
			Errors:      taskErrors,
		}, func(ctx context.Context, input *struct {
			ID string `path:"id"`
		}) (*taskOutput, error) {
			actorID, authErr := actorIDFromContext(ctx)
			if authErr != nil {
				return nil, authErr
			}
			t, err := run(ctx, input.ID, actorID)
			if err != nil {
				return nil, handleError(err)
			}
			return &taskOutput{Body: taskResponse(t)}, nil
		})
	}

	huma.Register(api, huma.Operation{
		OperationID: "submit-task",
		Method:      http.MethodPost,
		Path:        "/tasks/{id}/submit",
		Summary:     "Submit task for review",
		Errors:      taskErrors,
	}, func(ctx context.Context, input *struct {
		ID   string        `path:"id"`
		Body *NotesRequest `json:"body" required:"false"`
	}) (*taskOutput, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		t, err := e.SubmitTask(ctx, input.ID, notesOf(input.Body), actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &taskOutput{Body: taskResponse(t)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "return-task",
		Method:      http.MethodPost,
		Path:        "/tasks/{id}/return",
		Summary:     "Return submitted task with notes",
		Errors:      taskErrors,
	}, func(ctx context.Context, input *struct {
		ID   string         `path:"id"`
		Body *ReviewRequest `json:"body" required:"false"`
	}) (*taskOutput, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		t, err := e.ReturnTask(ctx, input.ID, messageOf(input.Body), actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &taskOutput{Body: taskResponse(t)}, nil
	})

	completions := []struct {
		id      string
		action  string
		summary string
		run     func(ctx context.Context, id, notes, actorID string) (engine.CompletionResult, error)
	}{
		{"complete-task", "complete", "Complete task directly", e.CompleteTask},
		{"finish-task", "finish", "Complete or submit depending on role", e.FinishTask},
	}
	for _, op := range completions {
		run := op.run
		huma.Register(api, huma.Operation{
			OperationID: op.id,
			Method:      http.MethodPost,
			Path:        "/tasks/{id}/" + op.action,
			Summary:     op.summary,
			Errors:      taskErrors,
		}, func(ctx context.Context, input *struct {
			ID   string        `path:"id"`
			Body *NotesRequest `json:"body" required:"false"`
		}) (*completionOutput, error) {
			actorID, authErr := actorIDFromContext(ctx)
			if authErr != nil {
				return nil, authErr
			}
			res, err := run(ctx, input.ID, notesOf(input.Body), actorID)
			if err != nil {
				return nil, handleError(err)
			}
			return &completionOutput{Body: completionResponse(res)}, nil
		})
	}

	huma.Register(api, huma.Operation{
		OperationID: "approve-task",
		Method:      http.MethodPost,
		Path:        "/tasks/{id}/approve",
		Summary:     "Approve submitted task",
		Errors:      taskErrors,
	}, func(ctx context.Context, input *struct {
		ID   string         `path:"id"`
		Body *ReviewRequest `json:"body" required:"false"`
	}) (*completionOutput, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		res, err := e.ApproveTask(ctx, input.ID, messageOf(input.Body), actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &completionOutput{Body: completionResponse(res)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:  "attach-task-photo",
		Method:       http.MethodPut,
		Path:         "/tasks/{id}/photo",
		Summary:      "Upload a task photo",
		Errors:       taskErrors,
		MaxBodyBytes: maxBodyBytes,
	}, func(ctx context.Context, input *struct {
		ID          string `path:"id"`
		Filename    string `query:"filename"`
		ContentType string `header:"Content-Type"`
		RawBody     []byte `contentType:"image/*"`
	}) (*taskOutput, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if len(input.RawBody) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "photo body required", nil)
		}
		t, err := e.AttachPhoto(ctx, input.ID, actorID, input.Filename, input.ContentType, bytes.NewReader(input.RawBody))
		if err != nil {
			return nil, handleError(err)
		}
		return &taskOutput{Body: taskResponse(t)}, nil
	})
}

func registerBoard(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "board",
		Method:      http.MethodGet,
		Path:        "/board",
		Summary:     "Role-scoped, filtered and bucketed tasks for the caller",
		Errors:      []int{http.StatusUnauthorized, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		Company  string `query:"company" default:"all" doc:"Company id or name; none for tasks without company"`
		Impact   string `query:"impact" default:"all"`
		Priority string `query:"priority" default:"all"`
		Status   string `query:"status" default:"all"`
		Assignee string `query:"assignee" default:"all" doc:"Profile id or name; unassigned for tasks without assignee"`
		Q        string `query:"q"`
	}) (*struct {
		Body BoardResponse `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		f := views.Filter{
			Company:  filterValue(input.Company, "none"),
			Impact:   filterValue(input.Impact, ""),
			Priority: filterValue(input.Priority, ""),
			Status:   filterValue(input.Status, ""),
			Assignee: filterValue(input.Assignee, "unassigned"),
		}
		board, err := e.Board(ctx, actorID, f, input.Q, e.Now())
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body BoardResponse `json:"body"`
		}{Body: boardResponse(board)}, nil
	})
}

// filterValue maps a query value onto a views.Filter field. Empty means all;
// the empty marker (if any) selects the "no value" bucket.
func filterValue(v, emptyMarker string) string {
	v = strings.TrimSpace(v)
	switch {
	case v == "":
		return views.All
	case emptyMarker != "" && strings.EqualFold(v, emptyMarker):
		return ""
	}
	return v
}

func notesOf(b *NotesRequest) string {
	if b == nil {
		return ""
	}
	return b.Notes
}

func messageOf(b *ReviewRequest) string {
	if b == nil {
		return ""
	}
	return b.Message
}
