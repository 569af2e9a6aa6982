package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/kjstillabower/surfsup-climate-api/internal/degraded"
	"github.com/kjstillabower/surfsup-climate-api/internal/lifecycle"
	"github.com/kjstillabower/surfsup-climate-api/internal/models"
	"github.com/kjstillabower/surfsup-climate-api/internal/observability"
	"github.com/kjstillabower/surfsup-climate-api/internal/service"
	"github.com/kjstillabower/surfsup-climate-api/internal/store"
	"github.com/kjstillabower/surfsup-climate-api/internal/traffic"
	"github.com/kjstillabower/surfsup-climate-api/internal/validation"
)

const (
	msgInvalidStartDate = "Invalid start date format, use YYYY-MM-DD"
	msgInvalidDate      = "Invalid date format, use YYYY-MM-DD"
	msgInternal         = "Internal server error"

	// maxInjectedErrors caps POST /test/error; each unit is one tracked event.
	maxInjectedErrors = 10000
)

// homePage lists the API routes. Served as-is on GET /.
const homePage = "SurfsUp!<br>" +
	"Available Routes:<br>" +
	"/api/v1.0/precipitation<br>" +
	"/api/v1.0/stations<br>" +
	"/api/v1.0/tobs<br>" +
	"/api/v1.0/&lt;start&gt;<br>" +
	"/api/v1.0/&lt;start&gt;/&lt;end&gt;<br>"

// HealthConfig holds lifecycle thresholds for the health handler.
type HealthConfig struct {
	OverloadWindow       time.Duration
	OverloadThresholdPct int
	RateLimitRPS         int // 0 when rate limiter disabled
	DegradedWindow       time.Duration
	DegradedErrorPct     int
}

// Pinger reports whether the data source is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	climate          *service.ClimateService
	db               Pinger
	healthConfig     *HealthConfig
	logger           *zap.Logger
	healthStatusMu   sync.Mutex
	healthStatusPrev string
}

// NewHandler returns a new Handler. healthConfig may be nil, which limits /health
// to the shutdown and database checks.
func NewHandler(climate *service.ClimateService, db Pinger, healthConfig *HealthConfig, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		climate:      climate,
		db:           db,
		healthConfig: healthConfig,
		logger:       logger,
	}
}

// GetHome handles GET /.
func (h *Handler) GetHome(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, homePage)
}

// GetPrecipitation handles GET /api/v1.0/precipitation.
func (h *Handler) GetPrecipitation(w http.ResponseWriter, r *http.Request) {
	result, err := h.climate.Precipitation(r.Context())
	if err != nil {
		h.writeInternalError(w, r, "precipitation", err)
		return
	}
	traffic.RecordSuccess()
	writeJSON(w, http.StatusOK, result)
}

// GetStations handles GET /api/v1.0/stations.
func (h *Handler) GetStations(w http.ResponseWriter, r *http.Request) {
	result, err := h.climate.Stations(r.Context())
	if err != nil {
		h.writeInternalError(w, r, "stations", err)
		return
	}
	traffic.RecordSuccess()
	writeJSON(w, http.StatusOK, result)
}

// GetTemperatureObservations handles GET /api/v1.0/tobs.
func (h *Handler) GetTemperatureObservations(w http.ResponseWriter, r *http.Request) {
	result, err := h.climate.TemperatureObservations(r.Context())
	if err != nil {
		h.writeInternalError(w, r, "tobs", err)
		return
	}
	traffic.RecordSuccess()
	writeJSON(w, http.StatusOK, result)
}

// GetStartStats handles GET /api/v1.0/{start}.
func (h *Handler) GetStartStats(w http.ResponseWriter, r *http.Request) {
	raw, err := pathVar(r, "start")
	var start time.Time
	if err == nil {
		start, err = validation.ParseDate(raw)
	}
	if err != nil {
		h.writeValidationError(w, r, routeStartStats, msgInvalidStartDate, err)
		return
	}

	stats, err := h.climate.StatsFrom(r.Context(), start)
	if err != nil {
		h.writeInternalError(w, r, "start_stats", err)
		return
	}
	traffic.RecordSuccess()
	writeJSON(w, http.StatusOK, models.StartStatsResponse{
		StartDate: raw,
		TMin:      stats.Min,
		TAvg:      stats.Avg,
		TMax:      stats.Max,
	})
}

// GetRangeStats handles GET /api/v1.0/{start}/{end}.
func (h *Handler) GetRangeStats(w http.ResponseWriter, r *http.Request) {
	rawStart, errStart := pathVar(r, "start")
	rawEnd, errEnd := pathVar(r, "end")
	err := errors.Join(errStart, errEnd)
	var start, end time.Time
	if err == nil {
		start, end, err = validation.ParseDateRange(rawStart, rawEnd)
	}
	if err != nil {
		h.writeValidationError(w, r, routeRangeStats, msgInvalidDate, err)
		return
	}

	stats, err := h.climate.StatsBetween(r.Context(), start, end)
	if err != nil {
		h.writeInternalError(w, r, "range_stats", err)
		return
	}
	traffic.RecordSuccess()
	writeJSON(w, http.StatusOK, models.RangeStatsResponse{
		StartDate: rawStart,
		EndDate:   rawEnd,
		TMin:      stats.Min,
		TAvg:      stats.Avg,
		TMax:      stats.Max,
	})
}

// pathVar returns the decoded path variable. The router matches on the escaped path,
// so mux hands back segments still percent-encoded.
func pathVar(r *http.Request, name string) (string, error) {
	v, err := url.PathUnescape(mux.Vars(r)[name])
	if err != nil {
		return "", fmt.Errorf("unescape %s: %w", name, err)
	}
	return v, nil
}

// healthResult holds the computed health status and metadata for logging.
type healthResult struct {
	status     string
	statusCode int
	reason     string
	dbHealthy  bool
}

// GetHealth handles GET /health.
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	result := h.computeHealthStatus(r.Context())

	h.healthStatusMu.Lock()
	prev := h.healthStatusPrev
	if prev != "" && prev != result.status {
		h.logger.Info("health status transition",
			zap.String("previous_status", prev),
			zap.String("current_status", result.status),
			zap.String("reason", result.reason))
	}
	h.healthStatusPrev = result.status
	h.healthStatusMu.Unlock()

	checks := map[string]string{"database": "healthy"}
	if !result.dbHealthy {
		checks["database"] = "unhealthy"
	}
	body := map[string]interface{}{
		"status":    result.status,
		"service":   observability.ServiceName,
		"version":   "dev",
		"checks":    checks,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	if d := lifecycle.DrainingFor(); d > 0 {
		body["draining_for"] = d.Round(time.Millisecond).String()
	}
	writeJSON(w, result.statusCode, body)
}

// computeHealthStatus evaluates conditions in priority order:
// shutting-down > database unreachable > overloaded > degraded (error rate) > healthy.
func (h *Handler) computeHealthStatus(ctx context.Context) healthResult {
	if lifecycle.IsShuttingDown() {
		return healthResult{"shutting-down", http.StatusServiceUnavailable, "signal", true}
	}
	if h.db != nil {
		if err := h.db.Ping(ctx); err != nil {
			return healthResult{"degraded", http.StatusServiceUnavailable, "database_unreachable", false}
		}
	}
	if h.healthConfig == nil {
		return healthResult{"healthy", http.StatusOK, "", true}
	}
	cfg := h.healthConfig
	if cfg.RateLimitRPS > 0 && cfg.OverloadWindow > 0 {
		threshold := float64(cfg.RateLimitRPS) * cfg.OverloadWindow.Seconds() * float64(cfg.OverloadThresholdPct) / 100
		if float64(traffic.RequestCount(cfg.OverloadWindow)) > threshold {
			return healthResult{"overloaded", http.StatusServiceUnavailable, "overload_threshold", true}
		}
	}
	if cfg.DegradedWindow > 0 && cfg.DegradedErrorPct > 0 {
		errs, total := traffic.ErrorRate(cfg.DegradedWindow)
		if total > 0 && float64(errs)*100/float64(total) >= float64(cfg.DegradedErrorPct) {
			degraded.NotifyDegraded()
			return healthResult{"degraded", http.StatusServiceUnavailable, "error_rate_breach", true}
		}
	}
	return healthResult{"healthy", http.StatusOK, "", true}
}

// writeJSON writes v as JSON with the given status code.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes the API error body {"error": message}.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// writeValidationError answers 400 for a malformed path parameter. No query has run.
func (h *Handler) writeValidationError(w http.ResponseWriter, r *http.Request, route, message string, err error) {
	observability.ValidationFailuresTotal.WithLabelValues(route).Inc()
	observability.LoggerFromContext(r.Context()).Debug("rejected path parameter",
		zap.String("route", route), zap.String("path", r.URL.Path), zap.Error(err))
	traffic.RecordSuccess()
	writeError(w, http.StatusBadRequest, message)
}

// writeInternalError answers 500 and logs the cause. The cause is never sent to the client.
func (h *Handler) writeInternalError(w http.ResponseWriter, r *http.Request, op string, err error) {
	traffic.RecordError()
	logger := observability.LoggerFromContext(r.Context())
	switch {
	case errors.Is(err, store.ErrNoData):
		logger.Error("dataset has no measurements", zap.String("op", op))
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		logger.Warn("query cancelled", zap.String("op", op), zap.Error(err))
	default:
		logger.Error("query failed", zap.String("op", op), zap.Error(err))
	}
	writeError(w, http.StatusInternalServerError, msgInternal)
}

// GetTestStatus handles GET /test. Returns the traffic counters the health check reads.
func (h *Handler) GetTestStatus(w http.ResponseWriter, r *http.Request) {
	window := 60 * time.Second
	if h.healthConfig != nil && h.healthConfig.DegradedWindow > 0 {
		window = h.healthConfig.DegradedWindow
	}
	errs, total := traffic.ErrorRate(window)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"requests_in_window": traffic.RequestCount(window),
		"denied_in_window":   traffic.DenialCount(window),
		"errors_in_window":   errs,
		"outcomes_in_window": total,
		"window_length":      window.String(),
		"state":              h.computeHealthStatus(r.Context()).status,
	})
}

// PostTestAction handles POST /test/{action} for error, reset and shutdown.
func (h *Handler) PostTestAction(w http.ResponseWriter, r *http.Request) {
	action := mux.Vars(r)["action"]
	switch action {
	case "error":
		var body struct {
			Count int `json:"count"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Count <= 0 {
			body.Count = 1
		}
		if body.Count > maxInjectedErrors {
			body.Count = maxInjectedErrors
		}
		traffic.RecordErrorN(body.Count)
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"ok":      true,
			"action":  action,
			"message": "Recorded " + strconv.Itoa(body.Count) + " errors",
			"state":   h.computeHealthStatus(r.Context()).status,
		})
	case "reset":
		traffic.Reset()
		lifecycle.SetShuttingDown(false)
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"ok":      true,
			"action":  action,
			"message": "All simulated state cleared",
		})
	case "shutdown":
		lifecycle.SetShuttingDown(true)
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"ok":      true,
			"action":  action,
			"message": "Shutting-down flag set",
		})
	default:
		writeError(w, http.StatusNotFound, "unknown test action: "+action)
	}
}
