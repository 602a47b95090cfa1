package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/example/class-scheduler/internal/application"
)

type accessService interface {
	Evaluate(ctx context.Context, teacherID string, now time.Time) (application.Decision, error)
	IssueJoinToken(ctx context.Context, teacherID, roomID string, now time.Time) (application.JoinToken, application.Decision, error)
}

var errMissingTeacherID = errors.New("teacher_id is required")

// AccessHandler exposes access evaluation and join credential issuing.
// A denial is a successful evaluation, so it travels as a 200 decision
// payload rather than an error status.
type AccessHandler struct {
	service   accessService
	now       func() time.Time
	responder responder
}

func NewAccessHandler(service accessService, now func() time.Time, logger *slog.Logger) *AccessHandler {
	if now == nil {
		now = time.Now
	}
	return &AccessHandler{service: service, now: now, responder: newResponder(logger)}
}

type decisionResponse struct {
	Allowed         bool    `json:"allowed"`
	Reason          string  `json:"reason"`
	ActivationKind  *string `json:"activation_kind,omitempty"`
	WindowStart     *string `json:"window_start,omitempty"`
	WindowEnd       *string `json:"window_end,omitempty"`
	NextAvailableAt *string `json:"next_available_at,omitempty"`
	EntitlementEnd  *string `json:"entitlement_end,omitempty"`
}

func toDecisionResponse(decision application.Decision) decisionResponse {
	resp := decisionResponse{
		Allowed: decision.Allowed,
		Reason:  string(decision.Reason),
	}
	if decision.ActivationKind != nil {
		kind := string(*decision.ActivationKind)
		resp.ActivationKind = &kind
	}
	if decision.TimeWindow != nil {
		if start := decision.TimeWindow.WindowStart; start != nil {
			value := start.UTC().Format(time.RFC3339)
			resp.WindowStart = &value
		}
		if end := decision.TimeWindow.WindowEnd; end != nil {
			value := end.UTC().Format(time.RFC3339)
			resp.WindowEnd = &value
		}
	}
	if decision.NextAvailableAt != nil {
		value := decision.NextAvailableAt.UTC().Format(time.RFC3339)
		resp.NextAvailableAt = &value
	}
	if decision.EntitlementEnd != nil {
		value := decision.EntitlementEnd.UTC().Format(time.RFC3339)
		resp.EntitlementEnd = &value
	}
	return resp
}

func (h *AccessHandler) Decision(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	teacherID := r.URL.Query().Get("teacher_id")
	if teacherID == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errMissingTeacherID)
		return
	}

	decision, err := h.service.Evaluate(r.Context(), teacherID, h.now())
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, toDecisionResponse(decision))
}

type tokenRequest struct {
	TeacherID string `json:"teacher_id" validate:"required"`
	RoomID    string `json:"room_id" validate:"required"`
}

type tokenResponse struct {
	Decision decisionResponse `json:"decision"`
	Token    *string          `json:"token,omitempty"`
	// ExpiresAt is absent on denials. Tokens are never refreshed in
	// place; callers request a new one after expiry.
	ExpiresAt *string `json:"expires_at,omitempty"`
}

func (h *AccessHandler) IssueToken(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var req tokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}
	if !h.responder.validateRequest(r.Context(), w, req) {
		return
	}

	token, decision, err := h.service.IssueJoinToken(r.Context(), req.TeacherID, req.RoomID, h.now())
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	resp := tokenResponse{Decision: toDecisionResponse(decision)}
	if decision.Allowed && token.Token != "" {
		resp.Token = &token.Token
		expires := token.ExpiresAt.UTC().Format(time.RFC3339)
		resp.ExpiresAt = &expires
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, resp)
}
