package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/example/class-scheduler/internal/application"
)

type activationService interface {
	Activate(ctx context.Context, params application.ActivateParams) (application.ActivationWindow, application.ActivationKind, error)
	Cancel(ctx context.Context, id string) error
	SweepExpired(ctx context.Context) (int64, error)
}

// ActivationHandler exposes the grant registry to payment and admin
// callers. Webhook retries simply insert another record; overlap is
// resolved at read time, so duplicate delivery is harmless.
type ActivationHandler struct {
	service   activationService
	responder responder
}

func NewActivationHandler(service activationService, logger *slog.Logger) *ActivationHandler {
	return &ActivationHandler{service: service, responder: newResponder(logger)}
}

type activationRequest struct {
	Kind         string `json:"kind" validate:"required,oneof=school teacher"`
	ActivatorID  string `json:"activator_id" validate:"required"`
	DurationType string `json:"duration_type" validate:"required,oneof=daily weekly monthly quarterly semestral yearly"`
	Origin       string `json:"origin" validate:"omitempty,max=128"`
}

type activationResponse struct {
	ID           string `json:"id"`
	Kind         string `json:"kind"`
	ActivatorID  string `json:"activator_id"`
	DurationType string `json:"duration_type"`
	StartDate    string `json:"start_date"`
	EndDate      string `json:"end_date"`
	Status       string `json:"status"`
}

func (h *ActivationHandler) Create(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var req activationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}
	if !h.responder.validateRequest(r.Context(), w, req) {
		return
	}

	window, kind, err := h.service.Activate(r.Context(), application.ActivateParams{
		Kind:         application.ActivationKind(req.Kind),
		ActivatorID:  req.ActivatorID,
		DurationType: application.DurationType(req.DurationType),
		Origin:       req.Origin,
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusCreated, activationResponse{
		ID:           window.ID,
		Kind:         string(kind),
		ActivatorID:  window.ActivatorID,
		DurationType: string(window.DurationType),
		StartDate:    window.StartDate.UTC().Format(time.RFC3339),
		EndDate:      window.EndDate.UTC().Format(time.RFC3339),
		Status:       string(window.Status),
	})
}

func (h *ActivationHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	id, ok := ResourceIDFromContext(r.Context())
	if !ok || id == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidResourceID)
		return
	}

	if err := h.service.Cancel(r.Context(), id); err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

type sweepResponse struct {
	Expired int64 `json:"expired"`
}

func (h *ActivationHandler) Sweep(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	count, err := h.service.SweepExpired(r.Context())
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, sweepResponse{Expired: count})
}
