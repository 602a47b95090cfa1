package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/example/class-scheduler/internal/application"
)

type sessionService interface {
	CreateStandaloneSession(ctx context.Context, params application.CreateSessionParams) (application.SessionInstance, error)
	GetSession(ctx context.Context, id string) (application.SessionInstance, error)
	ListSessions(ctx context.Context, params application.ListSessionsParams) ([]application.SessionInstance, error)
	StartSession(ctx context.Context, id string) (application.SessionInstance, error)
	EndSession(ctx context.Context, id string) (application.SessionInstance, error)
	CancelSession(ctx context.Context, id string) (application.SessionInstance, error)
}

// SessionHandler exposes session instance endpoints.
type SessionHandler struct {
	service   sessionService
	responder responder
}

func NewSessionHandler(service sessionService, logger *slog.Logger) *SessionHandler {
	return &SessionHandler{service: service, responder: newResponder(logger)}
}

type sessionRequest struct {
	Start           string `json:"start" validate:"required"`
	DurationMinutes int    `json:"duration_minutes" validate:"required,min=1"`
	Creator         string `json:"creator" validate:"required,oneof=teacher school"`
}

type sessionResponse struct {
	ID             string  `json:"id"`
	RuleID         *string `json:"rule_id,omitempty"`
	Date           string  `json:"date"`
	ScheduledStart string  `json:"scheduled_start"`
	ScheduledEnd   string  `json:"scheduled_end"`
	Status         string  `json:"status"`
	RoomID         string  `json:"room_id"`
	Creator        string  `json:"creator"`
}

func toSessionResponse(instance application.SessionInstance) sessionResponse {
	return sessionResponse{
		ID:             instance.ID,
		RuleID:         instance.RuleID,
		Date:           instance.Date.String(),
		ScheduledStart: instance.ScheduledStart.UTC().Format(time.RFC3339),
		ScheduledEnd:   instance.ScheduledEnd.UTC().Format(time.RFC3339),
		Status:         string(instance.Status),
		RoomID:         instance.RoomID,
		Creator:        string(instance.Creator),
	}
}

func (h *SessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var req sessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}
	if !h.responder.validateRequest(r.Context(), w, req) {
		return
	}

	start, err := time.Parse(time.RFC3339, req.Start)
	if err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, err)
		return
	}

	instance, err := h.service.CreateStandaloneSession(r.Context(), application.CreateSessionParams{
		Start:           start,
		DurationMinutes: req.DurationMinutes,
		Creator:         application.CreatorKind(req.Creator),
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, toSessionResponse(instance))
}

func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.requireID(w, r)
	if !ok {
		return
	}

	instance, err := h.service.GetSession(r.Context(), id)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, toSessionResponse(instance))
}

func (h *SessionHandler) List(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	params, err := buildListParams(r.URL.Query())
	if err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, err)
		return
	}

	instances, err := h.service.ListSessions(r.Context(), params)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	out := make([]sessionResponse, 0, len(instances))
	for _, instance := range instances {
		out = append(out, toSessionResponse(instance))
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, out)
}

func (h *SessionHandler) Start(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.service.StartSession)
}

func (h *SessionHandler) End(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.service.EndSession)
}

func (h *SessionHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.service.CancelSession)
}

func (h *SessionHandler) transition(w http.ResponseWriter, r *http.Request, op func(context.Context, string) (application.SessionInstance, error)) {
	id, ok := h.requireID(w, r)
	if !ok {
		return
	}

	instance, err := op(r.Context(), id)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, toSessionResponse(instance))
}

func (h *SessionHandler) requireID(w http.ResponseWriter, r *http.Request) (string, bool) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return "", false
	}
	id, ok := ResourceIDFromContext(r.Context())
	if !ok || id == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidResourceID)
		return "", false
	}
	return id, true
}

func buildListParams(query url.Values) (application.ListSessionsParams, error) {
	params := application.ListSessionsParams{}

	if ruleID := query.Get("rule_id"); ruleID != "" {
		params.RuleID = &ruleID
	}
	if status := query.Get("status"); status != "" {
		params.Status = application.SessionStatus(status)
	}
	if after := query.Get("starts_after"); after != "" {
		parsed, err := time.Parse(time.RFC3339, after)
		if err != nil {
			return application.ListSessionsParams{}, err
		}
		params.StartsAfter = &parsed
	}
	if before := query.Get("ends_before"); before != "" {
		parsed, err := time.Parse(time.RFC3339, before)
		if err != nil {
			return application.ListSessionsParams{}, err
		}
		params.EndsBefore = &parsed
	}
	return params, nil
}
