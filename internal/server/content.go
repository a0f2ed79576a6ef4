package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"teamops/internal/domain"
	"teamops/internal/engine"
)

var adminErrors = []int{
	http.StatusBadRequest,
	http.StatusUnauthorized,
	http.StatusForbidden,
	http.StatusNotFound,
}

type idInput struct {
	ID string `path:"id"`
}

// registerDelete wires DELETE <collection>/{id} to an actor-gated delete.
func registerDelete(api huma.API, opID, collection, summary string, del func(ctx context.Context, actorID, id string) error) {
	huma.Register(api, huma.Operation{
		OperationID:   opID,
		Method:        http.MethodDelete,
		Path:          collection + "/{id}",
		Summary:       summary,
		DefaultStatus: http.StatusNoContent,
		Errors:        adminErrors,
	}, func(ctx context.Context, input *idInput) (*struct{}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := del(ctx, actorID, input.ID); err != nil {
			return nil, handleError(err)
		}
		return nil, nil
	})
}

func registerOrg(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-companies",
		Method:      http.MethodGet,
		Path:        "/companies",
		Summary:     "List companies",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []domain.Company `json:"body"`
	}, error) {
		items, err := e.ListCompanies(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.Company `json:"body"`
		}{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "create-company",
		Method:        http.MethodPost,
		Path:          "/companies",
		Summary:       "Create company",
		DefaultStatus: http.StatusCreated,
		Errors:        adminErrors,
	}, func(ctx context.Context, input *struct {
		Body CompanyRequest `json:"body"`
	}) (*struct {
		Body domain.Company `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		c, err := e.CreateCompany(ctx, actorID, stringOrEmpty(input.Body.ID), input.Body.Name)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Company `json:"body"`
		}{Body: c}, nil
	})
	registerDelete(api, "delete-company", "/companies", "Delete company", e.DeleteCompany)

	huma.Register(api, huma.Operation{
		OperationID: "list-clients",
		Method:      http.MethodGet,
		Path:        "/clients",
		Summary:     "List clients",
	}, func(ctx context.Context, input *struct {
		CompanyID string `query:"company_id"`
	}) (*struct {
		Body []domain.Client `json:"body"`
	}, error) {
		items, err := e.ListClients(ctx, input.CompanyID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.Client `json:"body"`
		}{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "create-client",
		Method:        http.MethodPost,
		Path:          "/clients",
		Summary:       "Create client",
		DefaultStatus: http.StatusCreated,
		Errors:        adminErrors,
	}, func(ctx context.Context, input *struct {
		Body ClientRequest `json:"body"`
	}) (*struct {
		Body domain.Client `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		c, err := e.CreateClient(ctx, engine.ClientOptions{
			Company:      stringOrEmpty(input.Body.Company),
			Name:         input.Body.Name,
			ContactEmail: stringOrEmpty(input.Body.ContactEmail),
			Notes:        stringOrEmpty(input.Body.Notes),
			ActorID:      actorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Client `json:"body"`
		}{Body: c}, nil
	})
	registerDelete(api, "delete-client", "/clients", "Delete client", e.DeleteClient)

	huma.Register(api, huma.Operation{
		OperationID: "list-products",
		Method:      http.MethodGet,
		Path:        "/products",
		Summary:     "List products",
	}, func(ctx context.Context, input *struct {
		CompanyID string `query:"company_id"`
	}) (*struct {
		Body []domain.Product `json:"body"`
	}, error) {
		items, err := e.ListProducts(ctx, input.CompanyID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.Product `json:"body"`
		}{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "create-product",
		Method:        http.MethodPost,
		Path:          "/products",
		Summary:       "Create product",
		DefaultStatus: http.StatusCreated,
		Errors:        adminErrors,
	}, func(ctx context.Context, input *struct {
		Body ProductRequest `json:"body"`
	}) (*struct {
		Body domain.Product `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		p, err := e.CreateProduct(ctx, engine.ProductOptions{
			Company:     stringOrEmpty(input.Body.Company),
			Name:        input.Body.Name,
			Description: stringOrEmpty(input.Body.Description),
			ActorID:     actorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Product `json:"body"`
		}{Body: p}, nil
	})
	registerDelete(api, "delete-product", "/products", "Delete product", e.DeleteProduct)
}

func registerMeetings(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-meetings",
		Method:      http.MethodGet,
		Path:        "/meetings",
		Summary:     "List meetings",
	}, func(ctx context.Context, input *struct {
		Upcoming bool `query:"upcoming"`
	}) (*struct {
		Body []domain.Meeting `json:"body"`
	}, error) {
		items, err := e.ListMeetings(ctx, input.Upcoming)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.Meeting `json:"body"`
		}{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "create-meeting",
		Method:        http.MethodPost,
		Path:          "/meetings",
		Summary:       "Schedule meeting",
		DefaultStatus: http.StatusCreated,
		Errors:        adminErrors,
	}, func(ctx context.Context, input *struct {
		Body MeetingRequest `json:"body"`
	}) (*struct {
		Body domain.Meeting `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		b := input.Body
		m, err := e.CreateMeeting(ctx, engine.MeetingOptions{
			Title:           b.Title,
			Company:         stringOrEmpty(b.Company),
			ScheduledAt:     b.ScheduledAt,
			DurationMinutes: b.DurationMinutes,
			Location:        stringOrEmpty(b.Location),
			Agenda:          stringOrEmpty(b.Agenda),
			ActorID:         actorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Meeting `json:"body"`
		}{Body: m}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-meeting",
		Method:      http.MethodPatch,
		Path:        "/meetings/{id}",
		Summary:     "Edit meeting",
		Errors:      adminErrors,
	}, func(ctx context.Context, input *struct {
		ID   string               `path:"id"`
		Body UpdateMeetingRequest `json:"body"`
	}) (*struct {
		Body domain.Meeting `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		b := input.Body
		m, err := e.UpdateMeeting(ctx, engine.MeetingOptions{
			ID:              input.ID,
			Title:           stringOrEmpty(b.Title),
			Company:         stringOrEmpty(b.Company),
			ScheduledAt:     stringOrEmpty(b.ScheduledAt),
			DurationMinutes: b.DurationMinutes,
			Location:        stringOrEmpty(b.Location),
			Agenda:          stringOrEmpty(b.Agenda),
			ActorID:         actorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Meeting `json:"body"`
		}{Body: m}, nil
	})
	registerDelete(api, "delete-meeting", "/meetings", "Cancel meeting", e.DeleteMeeting)
}

func registerSOPs(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-sops",
		Method:      http.MethodGet,
		Path:        "/sops",
		Summary:     "List playbook entries",
	}, func(ctx context.Context, input *struct {
		Category string `query:"category"`
	}) (*struct {
		Body []domain.SOP `json:"body"`
	}, error) {
		items, err := e.ListSOPs(ctx, input.Category)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.SOP `json:"body"`
		}{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "create-sop",
		Method:        http.MethodPost,
		Path:          "/sops",
		Summary:       "Create playbook entry",
		DefaultStatus: http.StatusCreated,
		Errors:        adminErrors,
	}, func(ctx context.Context, input *struct {
		Body SOPRequest `json:"body"`
	}) (*struct {
		Body domain.SOP `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		s, err := e.CreateSOP(ctx, sopOptions("", actorID, input.Body))
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.SOP `json:"body"`
		}{Body: s}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-sop",
		Method:      http.MethodPatch,
		Path:        "/sops/{id}",
		Summary:     "Edit playbook entry",
		Errors:      adminErrors,
	}, func(ctx context.Context, input *struct {
		ID   string     `path:"id"`
		Body SOPRequest `json:"body"`
	}) (*struct {
		Body domain.SOP `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		s, err := e.UpdateSOP(ctx, sopOptions(input.ID, actorID, input.Body))
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.SOP `json:"body"`
		}{Body: s}, nil
	})
	registerDelete(api, "delete-sop", "/sops", "Delete playbook entry", e.DeleteSOP)
}

func sopOptions(id, actorID string, b SOPRequest) engine.SOPOptions {
	return engine.SOPOptions{
		ID:       id,
		Title:    b.Title,
		Category: b.Category,
		Body:     b.Body,
		Company:  b.Company,
		ActorID:  actorID,
	}
}
