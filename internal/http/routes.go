package http

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kjstillabower/surfsup-climate-api/internal/observability"
)

const (
	apiPrefix       = "/api/v1.0"
	routeStartStats = apiPrefix + "/{start}"
	routeRangeStats = apiPrefix + "/{start}/{end}"
)

// RouterOptions configures NewRouter.
type RouterOptions struct {
	Limiter        *rate.Limiter // nil disables rate limiting
	RequestTimeout time.Duration
	TestingMode    bool
}

// NewRouter wires every route onto a gorilla/mux router. Fixed API paths are
// registered before {start} so "precipitation" is never read as a date. Matching runs on
// the escaped path so an encoded slash stays inside one date segment and fails validation.
func NewRouter(h *Handler, logger *zap.Logger, opts RouterOptions) *mux.Router {
	router := mux.NewRouter().UseEncodedPath()
	router.Use(CorrelationIDMiddleware(logger))
	router.Use(MetricsMiddleware)
	router.Use(RecoverMiddleware(logger))

	router.HandleFunc("/", h.GetHome).Methods(http.MethodGet)
	router.HandleFunc("/health", h.GetHealth).Methods(http.MethodGet)
	router.Handle("/metrics", observability.MetricsHandler()).Methods(http.MethodGet)

	// API routes hang off the root router rather than a PathPrefix subrouter so a
	// method mismatch answers 405 instead of the subrouter's 404.
	limited := func(fn http.HandlerFunc) http.Handler {
		return RateLimitMiddleware(opts.Limiter)(TimeoutMiddleware(opts.RequestTimeout)(fn))
	}
	router.Handle(apiPrefix+"/precipitation", limited(h.GetPrecipitation)).Methods(http.MethodGet)
	router.Handle(apiPrefix+"/stations", limited(h.GetStations)).Methods(http.MethodGet)
	router.Handle(apiPrefix+"/tobs", limited(h.GetTemperatureObservations)).Methods(http.MethodGet)
	router.Handle(routeStartStats, limited(h.GetStartStats)).Methods(http.MethodGet)
	router.Handle(routeRangeStats, limited(h.GetRangeStats)).Methods(http.MethodGet)

	if opts.TestingMode {
		if logger != nil {
			logger.Warn("Testing mode enabled; /test endpoint exposed")
		}
		router.HandleFunc("/test", h.GetTestStatus).Methods(http.MethodGet)
		router.HandleFunc("/test/{action}", h.PostTestAction).Methods(http.MethodPost)
	}
	return router
}
