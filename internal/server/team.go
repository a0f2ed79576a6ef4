package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"teamops/internal/domain"
	"teamops/internal/engine"
)

func registerMessages(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "inbox",
		Method:      http.MethodGet,
		Path:        "/messages",
		Summary:     "Messages visible to the caller, newest first",
		Errors:      []int{http.StatusBadRequest, http.StatusUnauthorized},
	}, func(ctx context.Context, input *struct {
		Kind  string `query:"kind" enum:"team,direct,kudos"`
		Limit int    `query:"limit" default:"50"`
	}) (*struct {
		Body []domain.Message `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		items, err := e.Inbox(ctx, actorID, input.Kind, normalizeLimit(input.Limit))
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.Message `json:"body"`
		}{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "send-message",
		Method:        http.MethodPost,
		Path:          "/messages",
		Summary:       "Send a direct message or team broadcast",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		Body SendMessageRequest `json:"body"`
	}) (*struct {
		Body domain.Message `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		m, err := e.SendMessage(ctx, engine.SendMessageOptions{
			RecipientID:   stringOrEmpty(input.Body.RecipientID),
			Content:       input.Body.Content,
			RelatedTaskID: stringOrEmpty(input.Body.RelatedTaskID),
			ActorID:       actorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Message `json:"body"`
		}{Body: m}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "mark-read",
		Method:      http.MethodPost,
		Path:        "/messages/read",
		Summary:     "Mark received messages as read",
		Errors:      []int{http.StatusBadRequest, http.StatusUnauthorized},
	}, func(ctx context.Context, input *struct {
		Body *MarkReadRequest `json:"body" required:"false"`
	}) (*struct {
		Body MarkReadResponse `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		kind := ""
		if input.Body != nil {
			kind = input.Body.Kind
		}
		n, err := e.MarkRead(ctx, actorID, kind)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body MarkReadResponse `json:"body"`
		}{Body: MarkReadResponse{Updated: n}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "send-kudos",
		Method:        http.MethodPost,
		Path:          "/kudos",
		Summary:       "Send kudos to a teammate",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		Body KudosRequest `json:"body"`
	}) (*struct {
		Body domain.Message `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		m, err := e.SendKudos(ctx, input.Body.RecipientID, input.Body.Message, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Message `json:"body"`
		}{Body: m}, nil
	})
}

func registerAccomplishments(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-accomplishments",
		Method:      http.MethodGet,
		Path:        "/accomplishments",
		Summary:     "List accomplishments, optionally by author",
		Errors:      []int{http.StatusUnauthorized},
	}, func(ctx context.Context, input *struct {
		AuthorID string `query:"author_id"`
	}) (*struct {
		Body []domain.Accomplishment `json:"body"`
	}, error) {
		if _, authErr := actorIDFromContext(ctx); authErr != nil {
			return nil, authErr
		}
		items, err := e.ListAccomplishments(ctx, input.AuthorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.Accomplishment `json:"body"`
		}{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "post-accomplishment",
		Method:        http.MethodPost,
		Path:          "/accomplishments",
		Summary:       "Record an accomplishment and optionally share it with the team",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusUnauthorized},
	}, func(ctx context.Context, input *struct {
		Body AccomplishmentRequest `json:"body"`
	}) (*struct {
		Body engine.AccomplishmentResult `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		res, err := e.PostAccomplishment(ctx, actorID, input.Body.Text, input.Body.Share)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body engine.AccomplishmentResult `json:"body"`
		}{Body: res}, nil
	})
}
