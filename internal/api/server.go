// Package api provides the HTTP server for staffcast.
// It exposes the forecasting, accuracy, alerting and calendar operations
// under /api/ml, plus /health and an optional /metrics endpoint.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/staffcast/staffcast/internal/domain"
	"github.com/staffcast/staffcast/internal/health"
)

// HealthReporter exposes the latest health check results.
type HealthReporter interface {
	Statuses() []health.Status
	IsHealthy() bool
}

// Server is the staffcast HTTP API server.
type Server struct {
	svc            Services
	health         HealthReporter
	metricsEnabled bool
	trainTimeout   time.Duration
	log            zerolog.Logger
	now            func() time.Time
}

// NewServer creates a new API server.
func NewServer(svc Services, log zerolog.Logger) *Server {
	return &Server{
		svc:          svc,
		trainTimeout: 11 * time.Minute,
		log:          log.With().Str("component", "api").Logger(),
		now:          time.Now,
	}
}

// EnableMetrics enables the /metrics Prometheus endpoint.
func (s *Server) EnableMetrics() { s.metricsEnabled = true }

// SetHealth sets the health reporter behind /health.
func (s *Server) SetHealth(h HealthReporter) { s.health = h }

// SetTrainTimeout bounds the /train request; it should exceed the
// trainer's own deadline.
func (s *Server) SetTrainTimeout(d time.Duration) { s.trainTimeout = d }

// Handler returns the chi router with all routes mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.accessLog)
	r.Use(middleware.Recoverer)
	r.Use(corsMiddleware)

	r.Get("/health", s.handleHealth)

	r.Route("/api/ml", func(r chi.Router) {
		// Training is the one long-running call.
		r.With(middleware.Timeout(s.trainTimeout)).Post("/train", s.handleTrain)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(2 * time.Minute))

			r.Post("/predict", s.handlePredict)
			r.Get("/recommendations", s.handleRecommendations)
			r.Get("/recommendations/summary", s.handleRecommendationSummary)
			r.Get("/model/status", s.handleModelStatus)
			r.Get("/model-versions", s.handleModelVersions)

			r.Get("/accuracy", s.handleAccuracy)
			r.Get("/accuracy/by-hour", s.handleAccuracyByHour)
			r.Get("/accuracy/by-day", s.handleAccuracyByDay)
			r.Post("/accuracy/update", s.handleAccuracyUpdate)
			r.Get("/retrain-check", s.handleRetrainCheck)

			r.Get("/alerts", s.handleAlerts)
			r.Get("/alerts/summary", s.handleAlertSummary)
			r.Post("/alerts/{id}/acknowledge", s.handleAlertAcknowledge)
			r.Post("/alerts/{id}/resolve", s.handleAlertResolve)
			r.Post("/alerts/check-schedule/{id}", s.handleCheckSchedule)

			r.Get("/holidays", s.handleHolidays)
			r.Post("/holidays", s.handleAddHoliday)
			r.Post("/holidays/initialize", s.handleInitializeHolidays)
			r.Delete("/holidays/{id}", s.handleDeleteHoliday)

			r.Post("/observations", s.handleObservation)
			r.Get("/stats", s.handleStats)
		})
	})

	// Prometheus metrics endpoint
	if s.metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.health == nil {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		return
	}
	status, code := "ok", http.StatusOK
	if !s.health.IsHealthy() {
		status, code = "unhealthy", http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]interface{}{
		"status": status,
		"checks": s.health.Statuses(),
	})
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, kind, msg string) {
	writeJSON(w, status, map[string]interface{}{
		"error": map[string]interface{}{
			"message": msg,
			"type":    kind,
		},
	})
}

// ─── Error Mapping ──────────────────────────────────────────────────────────

// errorStatus maps a service error onto an HTTP status and error type.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrInvalidRange):
		return http.StatusBadRequest, "invalid_range"
	case errors.Is(err, domain.ErrInvalidInput), errors.Is(err, domain.ErrInvalidFeatureSlot):
		return http.StatusBadRequest, "invalid_request"
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, domain.ErrAlreadyExists):
		return http.StatusConflict, "already_exists"
	case errors.Is(err, domain.ErrModelNotTrained):
		return http.StatusConflict, "model_not_trained"
	case errors.Is(err, domain.ErrTrainingInProgress):
		return http.StatusConflict, "training_in_progress"
	case errors.Is(err, domain.ErrAlertResolved):
		return http.StatusConflict, "alert_resolved"
	case errors.Is(err, domain.ErrInsufficientData):
		return http.StatusUnprocessableEntity, "insufficient_data"
	case errors.Is(err, domain.ErrNoData):
		return http.StatusUnprocessableEntity, "no_data"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

// fail writes err with its mapped status. Server-side failures are logged.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	code, kind := errorStatus(err)
	if code >= http.StatusInternalServerError {
		s.log.Error().Err(err).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("request failed")
	}
	writeError(w, code, kind, err.Error())
}

// badRequest writes a 400 for malformed input.
func badRequest(w http.ResponseWriter, msg string) {
	writeError(w, http.StatusBadRequest, "invalid_request", msg)
}

// ─── Middleware ─────────────────────────────────────────────────────────────

// accessLog logs one line per request.
func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("elapsed", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("request")
	})
}

// corsMiddleware adds CORS headers for the dashboard frontend.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}
