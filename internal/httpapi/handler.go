package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"tablequeue/waitlist-service/internal/demand"
	"tablequeue/waitlist-service/internal/models"
	"tablequeue/waitlist-service/internal/turnover"
	"tablequeue/waitlist-service/internal/waitlist"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"
)

type Handler struct {
	service            *waitlist.Service
	log                logrus.FieldLogger
	limiter            *RateLimiter
	prioritizePhysical bool
	graceMinutes       int
}

type Options struct {
	Logger             logrus.FieldLogger
	Limiter            *RateLimiter
	PrioritizePhysical bool
	// GraceMinutes is the expiry grace used when a request names none.
	// Nil means waitlist.DefaultGraceMinutes; zero is a valid grace.
	GraceMinutes *int
}

type errorResponse struct {
	RequestID string        `json:"request_id"`
	Error     responseError `json:"error"`
}

type responseError struct {
	Code     string   `json:"code"`
	Message  string   `json:"message"`
	Problems []string `json:"problems,omitempty"`
}

type statusRequest struct {
	Status      models.EntryStatus `json:"status"`
	TableTypeID string             `json:"table_type_id"`
}

type checkInRequest struct {
	ConfirmationCode string `json:"confirmation_code"`
}

type selectNextRequest struct {
	PrioritizePhysical *bool `json:"prioritize_physical"`
}

type expireRequest struct {
	GraceMinutes *int `json:"grace_minutes"`
}

type expireResponse struct {
	Expired []models.WaitlistEntry `json:"expired"`
	Count   int                    `json:"count"`
}

type analysisRequest struct {
	WeatherFactor float64               `json:"weather_factor"`
	SpecialEvents []demand.SpecialEvent `json:"special_events"`
}

type applyTurnoverRequest struct {
	MinConfidence turnover.Confidence `json:"min_confidence"`
}

type importSamplesRequest struct {
	Samples []models.DemandSample `json:"samples"`
}

func NewHandler(service *waitlist.Service, options Options) *Handler {
	log := options.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	grace := waitlist.DefaultGraceMinutes
	if options.GraceMinutes != nil && *options.GraceMinutes >= 0 {
		grace = *options.GraceMinutes
	}
	return &Handler{
		service:            service,
		log:                log,
		limiter:            options.Limiter,
		prioritizePhysical: options.PrioritizePhysical,
		graceMinutes:       grace,
	}
}

func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(LoggingMiddleware(h.log))
	r.Use(middleware.Recoverer)
	if h.limiter != nil {
		r.Use(h.limiter.PerIP)
	}

	r.Get("/healthz", h.handleHealth)

	r.Route("/api/restaurants/{restaurantID}", func(r chi.Router) {
		if h.limiter != nil {
			r.Use(h.limiter.PerRestaurant)
		}

		r.Post("/waitlist", h.handleEnqueue)
		r.Get("/waitlist", h.handleListEntries)
		r.Get("/entries/{entryID}", h.handleGetEntry)
		r.Post("/entries/{entryID}/status", h.handleUpdateStatus)
		r.Post("/entries/{entryID}/release", h.handleRelease)
		r.Post("/entries/{entryID}/depart", h.handleDepart)
		r.Get("/entries/{entryID}/events", h.handleEntryEvents)
		r.Post("/checkin", h.handleCheckIn)
		r.Post("/actions/select-next", h.handleSelectNext)
		r.Post("/actions/expire", h.handleExpire)
		r.Post("/analysis", h.handleAnalysis)
		r.Get("/turnover", h.handleTurnover)
		r.Post("/turnover/apply", h.handleApplyTurnover)
		r.Get("/tables", h.handleListTables)
		r.Post("/tables", h.handleSaveTable)
		r.Post("/demand-samples", h.handleImportSamples)
	})
	return r
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) handleEnqueue(w http.ResponseWriter, r *http.Request) {
	var req waitlist.EnqueueInput
	if !decodeJSON(w, r, &req) {
		return
	}
	req.RestaurantID = restaurantID(r)

	entry, err := h.service.Enqueue(r.Context(), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (h *Handler) handleListEntries(w http.ResponseWriter, r *http.Request) {
	var statuses []models.EntryStatus
	for _, raw := range r.URL.Query()["status"] {
		for _, part := range strings.Split(raw, ",") {
			if part = strings.TrimSpace(part); part != "" {
				statuses = append(statuses, models.EntryStatus(part))
			}
		}
	}

	entries, err := h.service.ListEntries(r.Context(), restaurantID(r), statuses...)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if entries == nil {
		entries = []models.WaitlistEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func (h *Handler) handleGetEntry(w http.ResponseWriter, r *http.Request) {
	entry, err := h.service.GetEntry(r.Context(), restaurantID(r), chi.URLParam(r, "entryID"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (h *Handler) handleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	entry, err := h.service.UpdateStatus(r.Context(), waitlist.UpdateStatusInput{
		RestaurantID: restaurantID(r),
		EntryID:      chi.URLParam(r, "entryID"),
		Status:       models.EntryStatus(strings.TrimSpace(string(req.Status))),
		TableTypeID:  strings.TrimSpace(req.TableTypeID),
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (h *Handler) handleRelease(w http.ResponseWriter, r *http.Request) {
	entry, err := h.service.ReleaseCustomer(r.Context(), restaurantID(r), chi.URLParam(r, "entryID"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (h *Handler) handleDepart(w http.ResponseWriter, r *http.Request) {
	entry, err := h.service.RecordDeparture(r.Context(), restaurantID(r), chi.URLParam(r, "entryID"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (h *Handler) handleEntryEvents(w http.ResponseWriter, r *http.Request) {
	events, err := h.service.EntryHistory(r.Context(), restaurantID(r), chi.URLParam(r, "entryID"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, events)
}

func (h *Handler) handleCheckIn(w http.ResponseWriter, r *http.Request) {
	var req checkInRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	entry, err := h.service.CheckIn(r.Context(), restaurantID(r), req.ConfirmationCode)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (h *Handler) handleSelectNext(w http.ResponseWriter, r *http.Request) {
	var req selectNextRequest
	if !decodeOptionalJSON(w, r, &req) {
		return
	}
	prioritizePhysical := h.prioritizePhysical
	if req.PrioritizePhysical != nil {
		prioritizePhysical = *req.PrioritizePhysical
	}

	entry, ok, err := h.service.SelectNextCustomer(r.Context(), restaurantID(r), prioritizePhysical)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if !ok {
		writeError(w, requestIDFromRequest(r), http.StatusConflict, "queue_empty", "no customers ready to seat")
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (h *Handler) handleExpire(w http.ResponseWriter, r *http.Request) {
	var req expireRequest
	if !decodeOptionalJSON(w, r, &req) {
		return
	}
	grace := h.graceMinutes
	if req.GraceMinutes != nil {
		grace = *req.GraceMinutes
	}

	expired, err := h.service.ExpireStaleRemoteEntries(r.Context(), restaurantID(r), grace)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if expired == nil {
		expired = []models.WaitlistEntry{}
	}
	writeJSON(w, http.StatusOK, expireResponse{Expired: expired, Count: len(expired)})
}

func (h *Handler) handleAnalysis(w http.ResponseWriter, r *http.Request) {
	req := analysisRequest{WeatherFactor: 1}
	if !decodeOptionalJSON(w, r, &req) {
		return
	}
	if raw := r.URL.Query().Get("weather_factor"); raw != "" {
		value, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			writeError(w, requestIDFromRequest(r), http.StatusBadRequest, "invalid_request", "weather_factor must be a number")
			return
		}
		req.WeatherFactor = value
	}

	result, err := h.service.AnalyzeWaitlist(r.Context(), restaurantID(r), req.WeatherFactor, req.SpecialEvents)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) handleTurnover(w http.ResponseWriter, r *http.Request) {
	analyses, err := h.service.AnalyzeTurnover(r.Context(), restaurantID(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if analyses == nil {
		analyses = []turnover.Analysis{}
	}
	writeJSON(w, http.StatusOK, analyses)
}

func (h *Handler) handleApplyTurnover(w http.ResponseWriter, r *http.Request) {
	req := applyTurnoverRequest{MinConfidence: turnover.ConfidenceMedium}
	if !decodeOptionalJSON(w, r, &req) {
		return
	}
	switch req.MinConfidence {
	case turnover.ConfidenceLow, turnover.ConfidenceMedium, turnover.ConfidenceHigh:
	default:
		writeError(w, requestIDFromRequest(r), http.StatusBadRequest, "invalid_request", "min_confidence must be low, medium, or high")
		return
	}

	applied, err := h.service.ApplyTurnoverRecommendations(r.Context(), restaurantID(r), req.MinConfidence)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if applied == nil {
		applied = []turnover.Recommendation{}
	}
	writeJSON(w, http.StatusOK, applied)
}

func (h *Handler) handleListTables(w http.ResponseWriter, r *http.Request) {
	activeOnly := r.URL.Query().Get("active") == "true"
	tables, err := h.service.ListTableTypes(r.Context(), restaurantID(r), activeOnly)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if tables == nil {
		tables = []models.TableType{}
	}
	writeJSON(w, http.StatusOK, tables)
}

func (h *Handler) handleSaveTable(w http.ResponseWriter, r *http.Request) {
	var req models.TableType
	if !decodeJSON(w, r, &req) {
		return
	}
	req.RestaurantID = restaurantID(r)

	table, err := h.service.SaveTableType(r.Context(), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, table)
}

func (h *Handler) handleImportSamples(w http.ResponseWriter, r *http.Request) {
	var req importSamplesRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.service.ImportDemandSamples(r.Context(), restaurantID(r), req.Samples); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"imported": len(req.Samples)})
}

// fail writes the mapped error. Storage failures are logged here because
// their message never reaches the caller.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, body := mapError(err)
	if status == http.StatusServiceUnavailable {
		h.log.WithError(err).WithFields(logrus.Fields{
			"restaurant_id": restaurantID(r),
			"path":          r.URL.Path,
		}).Error("storage failure")
	}
	writeJSON(w, status, errorResponse{RequestID: requestIDFromRequest(r), Error: body})
}

func restaurantID(r *http.Request) string {
	return strings.TrimSpace(chi.URLParam(r, "restaurantID"))
}

func decodeJSON(w http.ResponseWriter, r *http.Request, target interface{}) bool {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(target); err != nil {
		writeError(w, requestIDFromRequest(r), http.StatusBadRequest, "invalid_json", "invalid JSON payload")
		return false
	}
	return true
}

// decodeOptionalJSON accepts an empty body and leaves target untouched.
func decodeOptionalJSON(w http.ResponseWriter, r *http.Request, target interface{}) bool {
	if r.Body == nil || r.ContentLength == 0 {
		return true
	}
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(target); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, requestIDFromRequest(r), http.StatusBadRequest, "invalid_json", "invalid JSON payload")
		return false
	}
	return true
}

func mapError(err error) (int, responseError) {
	var validation *waitlist.ValidationError
	var transition *waitlist.InvalidTransitionError
	var missing *waitlist.NotFoundError
	switch {
	case errors.As(err, &validation):
		return http.StatusBadRequest, responseError{Code: "invalid_request", Message: "request failed validation", Problems: validation.Problems}
	case errors.As(err, &transition):
		return http.StatusConflict, responseError{Code: "invalid_transition", Message: transition.Error()}
	case errors.Is(err, waitlist.ErrInvalidConfirmationCode):
		return http.StatusUnprocessableEntity, responseError{Code: "invalid_confirmation_code", Message: "confirmation code is not valid for check-in"}
	case errors.As(err, &missing):
		code := strings.ReplaceAll(missing.Resource, " ", "_") + "_not_found"
		return http.StatusNotFound, responseError{Code: code, Message: missing.Error()}
	default:
		return http.StatusServiceUnavailable, responseError{Code: "try_again", Message: "temporarily unavailable, try again"}
	}
}

func writeError(w http.ResponseWriter, requestID string, status int, code, message string) {
	writeJSON(w, status, errorResponse{
		RequestID: requestID,
		Error: responseError{
			Code:    code,
			Message: message,
		},
	})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}
