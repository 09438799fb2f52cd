package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/kjstillabower/forecast-lab/internal/lifecycle"
	"github.com/kjstillabower/forecast-lab/internal/models"
	"github.com/kjstillabower/forecast-lab/internal/observability"
	"github.com/kjstillabower/forecast-lab/internal/scaler"
	"github.com/kjstillabower/forecast-lab/internal/series"
	"github.com/kjstillabower/forecast-lab/internal/service"
	"github.com/kjstillabower/forecast-lab/internal/traffic"
	"github.com/kjstillabower/forecast-lab/internal/validation"
)

// HealthConfig holds the thresholds and probes used by GET /health.
type HealthConfig struct {
	Thresholds traffic.Thresholds
	// CachePing, when set, reports snapshot backend reachability.
	CachePing func(ctx context.Context) error
}

// Options configures request handling.
type Options struct {
	StrictValidation bool
	DefaultPoints    int
	MaxPoints        int
}

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	svc     *service.ForecastService
	health  *HealthConfig
	tracker *traffic.Tracker
	logger  *zap.Logger
	opts    Options

	healthStatusMu   sync.Mutex
	healthStatusPrev traffic.Status
}

// NewHandler returns a Handler. A nil health config reports healthy unless shutting down.
func NewHandler(svc *service.ForecastService, health *HealthConfig, logger *zap.Logger, opts Options) *Handler {
	if health == nil {
		health = &HealthConfig{}
	}
	if opts.DefaultPoints <= 0 {
		opts.DefaultPoints = series.DefaultPoints
	}
	return &Handler{
		svc:     svc,
		health:  health,
		tracker: traffic.Default(),
		logger:  logger,
		opts:    opts,
	}
}

type predictRequest struct {
	Model    string                  `json:"model"`
	Features *models.WeatherFeatures `json:"features"`
}

// PostPredict handles POST /api/predict.
func (h *Handler) PostPredict(w http.ResponseWriter, r *http.Request) {
	var req predictRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_BODY", err.Error())
		return
	}
	model, err := validation.ParseModel(req.Model)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	features, err := h.features(r, req.Features)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	result, err := h.svc.Predict(r.Context(), features, model)
	h.recordOutcome(err)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type compareRequest struct {
	Features *models.WeatherFeatures `json:"features"`
}

// PostCompare handles POST /api/predict/compare. The response also carries the
// inputs scaled to the calibration range.
func (h *Handler) PostCompare(w http.ResponseWriter, r *http.Request) {
	var req compareRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_BODY", err.Error())
		return
	}
	features, err := h.features(r, req.Features)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	results, err := h.svc.Compare(r.Context(), features)
	h.recordOutcome(err)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"results":    results,
		"normalized": scaler.NormalizeFeatures(features),
	})
}

// features fills omitted features with the defaults and applies strict checks
// when enabled in config or by ?strict=true.
func (h *Handler) features(r *http.Request, f *models.WeatherFeatures) (models.WeatherFeatures, error) {
	out := models.DefaultFeatures()
	if f != nil {
		out = *f
	}
	if h.opts.StrictValidation || r.URL.Query().Get("strict") == "true" {
		if err := validation.ValidateFeatures(out); err != nil {
			return models.WeatherFeatures{}, err
		}
	}
	return out, nil
}

// GetModels handles GET /api/models.
func (h *Handler) GetModels(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"models": h.svc.Models()})
}

// GetHistory handles GET /api/history?points=N.
func (h *Handler) GetHistory(w http.ResponseWriter, r *http.Request) {
	n, err := validation.ValidatePoints(r.URL.Query().Get("points"), h.opts.DefaultPoints, h.opts.MaxPoints)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	points, err := h.svc.History(r.Context(), n)
	h.recordOutcome(err)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"points": points})
}

// GetEvaluation handles GET /api/evaluation.
func (h *Handler) GetEvaluation(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"models": h.svc.Evaluation()})
}

// GetModelEvaluation handles GET /api/evaluation/{model}.
func (h *Handler) GetModelEvaluation(w http.ResponseWriter, r *http.Request) {
	model, err := validation.ParseModel(mux.Vars(r)["model"])
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	metrics, err := h.svc.EvaluationFor(model)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"model": model, "metrics": metrics})
}

// PostComparison handles POST /api/comparisons?points=N.
func (h *Handler) PostComparison(w http.ResponseWriter, r *http.Request) {
	n, err := validation.ValidatePoints(r.URL.Query().Get("points"), service.DefaultPoints, h.opts.MaxPoints)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	snap, err := h.svc.CreateSnapshot(r.Context(), n)
	h.recordOutcome(err)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.Header().Set("Location", "/api/comparisons/"+snap.ID)
	writeJSON(w, http.StatusCreated, snap)
}

// GetLatestComparison handles GET /api/comparisons/latest?points=N.
func (h *Handler) GetLatestComparison(w http.ResponseWriter, r *http.Request) {
	n, err := validation.ValidatePoints(r.URL.Query().Get("points"), service.DefaultPoints, h.opts.MaxPoints)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	snap, err := h.svc.Latest(r.Context(), n)
	h.recordOutcome(err)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// GetComparison handles GET /api/comparisons/{id}.
func (h *Handler) GetComparison(w http.ResponseWriter, r *http.Request) {
	snap, err := h.svc.Snapshot(r.Context(), mux.Vars(r)["id"])
	h.recordOutcome(err)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// GetDashboard handles GET /api/dashboard.
func (h *Handler) GetDashboard(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Dashboard(string(h.assess().Status)))
}

// GetHealth handles GET /health.
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	result := h.assess()

	h.healthStatusMu.Lock()
	prev := h.healthStatusPrev
	if prev != "" && prev != result.Status {
		h.logger.Info("health status transition",
			zap.String("previous_status", string(prev)),
			zap.String("current_status", string(result.Status)),
			zap.String("reason", result.Reason))
	}
	h.healthStatusPrev = result.Status
	h.healthStatusMu.Unlock()

	checks := map[string]string{"engine": "healthy"}
	if result.Status == traffic.StatusDegraded {
		checks["engine"] = "unhealthy"
	}
	if h.health.CachePing != nil {
		checks["snapshotCache"] = "healthy"
		if err := h.health.CachePing(r.Context()); err != nil {
			checks["snapshotCache"] = "unhealthy"
			h.logger.Debug("snapshot cache ping failed", zap.Error(err))
		}
	}
	writeJSON(w, result.Status.HTTPCode(), map[string]interface{}{
		"status":    result.Status,
		"service":   observability.ServiceName,
		"version":   "dev",
		"checks":    checks,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *Handler) assess() traffic.Assessment {
	return h.tracker.Evaluate(h.health.Thresholds, lifecycle.IsShuttingDown(), lifecycle.Uptime())
}

// recordOutcome feeds the health tracker. Caller mistakes count as successes;
// only failures the service owns move the error rate.
func (h *Handler) recordOutcome(err error) {
	if err == nil || isClientError(err) {
		h.tracker.Record(traffic.Success)
		return
	}
	h.tracker.Record(traffic.Failure)
}

func isClientError(err error) bool {
	_, code, _ := classify(err)
	return code >= 400 && code < 500
}

func decodeBody(r *http.Request, v interface{}) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		return errors.New("request body must be valid JSON: " + err.Error())
	}
	return nil
}

// writeJSON writes v as JSON with the given status code.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes the standard error envelope with the request's correlation id.
func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	corrID, _ := r.Context().Value("correlation_id").(string)
	writeJSON(w, status, map[string]interface{}{
		"error": map[string]string{
			"code":      code,
			"message":   message,
			"requestId": corrID,
		},
	})
}

// classify maps a service error to its envelope code, HTTP status and message.
func classify(err error) (code string, status int, message string) {
	switch {
	case errors.Is(err, models.ErrInvalidModel), errors.Is(err, validation.ErrModelEmpty):
		return "INVALID_MODEL", http.StatusBadRequest, err.Error()
	case errors.Is(err, validation.ErrFeatureNotFinite), errors.Is(err, validation.ErrFeatureOutOfRange):
		return "INVALID_FEATURES", http.StatusBadRequest, err.Error()
	case errors.Is(err, validation.ErrPointsInvalid), errors.Is(err, validation.ErrPointsTooLarge),
		errors.Is(err, series.ErrNegativeLength):
		return "INVALID_POINTS", http.StatusBadRequest, err.Error()
	case errors.Is(err, service.ErrSnapshotNotFound):
		return "SNAPSHOT_NOT_FOUND", http.StatusNotFound, "snapshot not found or expired"
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return "REQUEST_TIMEOUT", http.StatusGatewayTimeout, "request did not complete in time"
	default:
		return "INTERNAL", http.StatusInternalServerError, "internal error"
	}
}

// writeServiceError writes the envelope for err. Server-side failures are logged
// at WARN with the request logger; caller mistakes at DEBUG.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	code, status, message := classify(err)
	writeError(w, r, status, code, message)
	if logger, ok := r.Context().Value("logger").(*zap.Logger); ok && logger != nil {
		if status >= 500 {
			logger.Warn("request failed", zap.String("code", code), zap.Error(err))
		} else {
			logger.Debug("request rejected", zap.String("code", code), zap.Error(err))
		}
	}
}
