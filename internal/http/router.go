package http

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kjstillabower/forecast-lab/internal/observability"
)

// RouterConfig holds the middleware settings for NewRouter.
type RouterConfig struct {
	Logger         *zap.Logger
	Limiter        *rate.Limiter // nil disables rate limiting
	RequestTimeout time.Duration
}

// NewRouter mounts /health, /metrics and the /api routes. Rate limiting and the
// request timeout apply to /api only.
func NewRouter(h *Handler, cfg RouterConfig) *mux.Router {
	router := mux.NewRouter()
	router.Use(CorrelationIDMiddleware(cfg.Logger))
	router.Use(MetricsMiddleware)
	router.HandleFunc("/health", h.GetHealth).Methods(http.MethodGet)
	router.Handle("/metrics", observability.MetricsHandler()).Methods(http.MethodGet)

	api := router.PathPrefix("/api").Subrouter()
	api.Use(RateLimitMiddleware(cfg.Limiter))
	if cfg.RequestTimeout > 0 {
		api.Use(TimeoutMiddleware(cfg.RequestTimeout))
	}
	api.HandleFunc("/models", h.GetModels).Methods(http.MethodGet)
	api.HandleFunc("/predict", h.PostPredict).Methods(http.MethodPost)
	api.HandleFunc("/predict/compare", h.PostCompare).Methods(http.MethodPost)
	api.HandleFunc("/history", h.GetHistory).Methods(http.MethodGet)
	api.HandleFunc("/evaluation", h.GetEvaluation).Methods(http.MethodGet)
	api.HandleFunc("/evaluation/{model}", h.GetModelEvaluation).Methods(http.MethodGet)
	api.HandleFunc("/comparisons", h.PostComparison).Methods(http.MethodPost)
	api.HandleFunc("/comparisons/latest", h.GetLatestComparison).Methods(http.MethodGet)
	api.HandleFunc("/comparisons/{id}", h.GetComparison).Methods(http.MethodGet)
	api.HandleFunc("/dashboard", h.GetDashboard).Methods(http.MethodGet)
	return router
}
