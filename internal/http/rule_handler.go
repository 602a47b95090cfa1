package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/example/class-scheduler/internal/application"
	"github.com/example/class-scheduler/internal/recurrence"
)

type ruleService interface {
	CreateRule(ctx context.Context, params application.CreateRuleParams) (application.Rule, error)
	GetRule(ctx context.Context, id string) (application.Rule, error)
	Generate(ctx context.Context, ruleID string, weeksAhead int) ([]application.SessionInstance, error)
	PauseRule(ctx context.Context, id string) error
	ResumeRule(ctx context.Context, id string) error
	EndRule(ctx context.Context, id string) error
	DeleteRule(ctx context.Context, id string) error
}

// RuleHandler exposes recurrence rule management endpoints.
type RuleHandler struct {
	service   ruleService
	responder responder
}

func NewRuleHandler(service ruleService, logger *slog.Logger) *RuleHandler {
	return &RuleHandler{service: service, responder: newResponder(logger)}
}

type ruleRequest struct {
	Scope           string   `json:"scope" validate:"required,oneof=school teacher class"`
	ScopeID         string   `json:"scope_id" validate:"required"`
	RuleType        string   `json:"rule_type" validate:"required,oneof=daily weekly biweekly custom"`
	Interval        int      `json:"interval" validate:"omitempty,min=1"`
	Weekdays        []string `json:"weekdays" validate:"omitempty,dive,oneof=sunday monday tuesday wednesday thursday friday saturday"`
	Dates           []string `json:"dates" validate:"omitempty,dive,datetime=2006-01-02"`
	StartTime       string   `json:"start_time" validate:"required,datetime=15:04"`
	DurationMinutes int      `json:"duration_minutes" validate:"required,min=1"`
	StartDate       string   `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate         string   `json:"end_date" validate:"omitempty,datetime=2006-01-02"`
}

func (req ruleRequest) toParams() (application.CreateRuleParams, error) {
	ruleType, err := recurrence.ParseRuleType(req.RuleType)
	if err != nil {
		return application.CreateRuleParams{}, err
	}

	weekdays := make([]time.Weekday, 0, len(req.Weekdays))
	for _, name := range req.Weekdays {
		weekdays = append(weekdays, weekdayByName(name))
	}

	dates := make([]recurrence.Date, 0, len(req.Dates))
	for _, value := range req.Dates {
		date, err := recurrence.ParseDate(value)
		if err != nil {
			return application.CreateRuleParams{}, err
		}
		dates = append(dates, date)
	}

	startDate, err := recurrence.ParseDate(req.StartDate)
	if err != nil {
		return application.CreateRuleParams{}, err
	}
	var endDate *recurrence.Date
	if req.EndDate != "" {
		parsed, err := recurrence.ParseDate(req.EndDate)
		if err != nil {
			return application.CreateRuleParams{}, err
		}
		endDate = &parsed
	}

	startTime, err := parseTimeOfDay(req.StartTime)
	if err != nil {
		return application.CreateRuleParams{}, err
	}

	return application.CreateRuleParams{
		Scope:           application.ScopeKind(req.Scope),
		ScopeID:         req.ScopeID,
		Type:            ruleType,
		Interval:        req.Interval,
		Weekdays:        weekdays,
		Dates:           dates,
		StartTime:       startTime,
		DurationMinutes: req.DurationMinutes,
		StartDate:       startDate,
		EndDate:         endDate,
	}, nil
}

type ruleResponse struct {
	ID                   string   `json:"id"`
	Scope                string   `json:"scope"`
	ScopeID              string   `json:"scope_id"`
	RuleType             string   `json:"rule_type"`
	Interval             int      `json:"interval"`
	Weekdays             []string `json:"weekdays,omitempty"`
	Dates                []string `json:"dates,omitempty"`
	StartTime            string   `json:"start_time"`
	DurationMinutes      int      `json:"duration_minutes"`
	StartDate            string   `json:"start_date"`
	EndDate              *string  `json:"end_date,omitempty"`
	IsActive             bool     `json:"is_active"`
	Paused               bool     `json:"paused"`
	OccurrencesGenerated int      `json:"occurrences_generated"`
	HorizonEnd           *string  `json:"horizon_end,omitempty"`
}

func toRuleResponse(rule application.Rule) ruleResponse {
	resp := ruleResponse{
		ID:                   rule.ID,
		Scope:                string(rule.Scope),
		ScopeID:              rule.ScopeID,
		RuleType:             rule.Type.String(),
		Interval:             rule.Interval,
		StartTime:            formatTimeOfDay(rule.StartTime),
		DurationMinutes:      rule.DurationMinutes,
		StartDate:            rule.StartDate.String(),
		IsActive:             rule.IsActive,
		Paused:               rule.PausedAt != nil,
		OccurrencesGenerated: rule.OccurrencesGenerated,
	}
	for _, day := range rule.Weekdays {
		resp.Weekdays = append(resp.Weekdays, strings.ToLower(day.String()))
	}
	for _, date := range rule.Dates {
		resp.Dates = append(resp.Dates, date.String())
	}
	if rule.EndDate != nil {
		value := rule.EndDate.String()
		resp.EndDate = &value
	}
	if rule.HorizonEnd != nil {
		value := rule.HorizonEnd.UTC().Format(time.RFC3339)
		resp.HorizonEnd = &value
	}
	return resp
}

func (h *RuleHandler) Create(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var req ruleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}
	if !h.responder.validateRequest(r.Context(), w, req) {
		return
	}

	params, err := req.toParams()
	if err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, err)
		return
	}

	rule, err := h.service.CreateRule(r.Context(), params)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, toRuleResponse(rule))
}

func (h *RuleHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.requireID(w, r)
	if !ok {
		return
	}

	rule, err := h.service.GetRule(r.Context(), id)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, toRuleResponse(rule))
}

type generateRequest struct {
	WeeksAhead int `json:"weeks_ahead" validate:"omitempty,min=1,max=52"`
}

type generateResponse struct {
	Created  int               `json:"created"`
	Sessions []sessionResponse `json:"sessions"`
}

func (h *RuleHandler) Generate(w http.ResponseWriter, r *http.Request) {
	id, ok := h.requireID(w, r)
	if !ok {
		return
	}

	var req generateRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
			return
		}
		if !h.responder.validateRequest(r.Context(), w, req) {
			return
		}
	}

	created, err := h.service.Generate(r.Context(), id, req.WeeksAhead)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	resp := generateResponse{Created: len(created), Sessions: make([]sessionResponse, 0, len(created))}
	for _, instance := range created {
		resp.Sessions = append(resp.Sessions, toSessionResponse(instance))
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, resp)
}

func (h *RuleHandler) Pause(w http.ResponseWriter, r *http.Request) {
	h.lifecycle(w, r, h.service.PauseRule)
}

func (h *RuleHandler) Resume(w http.ResponseWriter, r *http.Request) {
	h.lifecycle(w, r, h.service.ResumeRule)
}

func (h *RuleHandler) End(w http.ResponseWriter, r *http.Request) {
	h.lifecycle(w, r, h.service.EndRule)
}

func (h *RuleHandler) Delete(w http.ResponseWriter, r *http.Request) {
	h.lifecycle(w, r, h.service.DeleteRule)
}

func (h *RuleHandler) lifecycle(w http.ResponseWriter, r *http.Request, op func(context.Context, string) error) {
	id, ok := h.requireID(w, r)
	if !ok {
		return
	}

	if err := op(r.Context(), id); err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

func (h *RuleHandler) requireID(w http.ResponseWriter, r *http.Request) (string, bool) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return "", false
	}
	id, ok := ResourceIDFromContext(r.Context())
	if !ok || strings.TrimSpace(id) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidResourceID)
		return "", false
	}
	return id, true
}

var weekdayNames = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

func weekdayByName(name string) time.Weekday {
	return weekdayNames[strings.ToLower(name)]
}

func parseTimeOfDay(value string) (recurrence.TimeOfDay, error) {
	parsed, err := time.Parse("15:04", value)
	if err != nil {
		return recurrence.TimeOfDay{}, err
	}
	return recurrence.TimeOfDay{Hour: parsed.Hour(), Minute: parsed.Minute()}, nil
}

func formatTimeOfDay(tod recurrence.TimeOfDay) string {
	return time.Date(0, 1, 1, tod.Hour, tod.Minute, 0, 0, time.UTC).Format("15:04")
}
