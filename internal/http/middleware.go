package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kjstillabower/surfsup-climate-api/internal/observability"
	"github.com/kjstillabower/surfsup-climate-api/internal/traffic"
)

// CorrelationIDMiddleware reuses X-Correlation-ID or mints a UUID, echoes it on the
// response, and puts it and a child logger carrying it into the request context.
func CorrelationIDMiddleware(logger *zap.Logger) mux.MiddlewareFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			corrID := r.Header.Get("X-Correlation-ID")
			if corrID == "" {
				corrID = uuid.New().String()
			}
			w.Header().Set("X-Correlation-ID", corrID)

			ctx := observability.WithCorrelationID(r.Context(), corrID)
			ctx = observability.WithLogger(ctx, logger.With(zap.String("correlation_id", corrID)))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// MetricsMiddleware records request count, latency and in-flight gauge by route template,
// and tracks the request for graceful shutdown.
func MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		globalInFlightTracker.Increment()
		defer globalInFlightTracker.Decrement()
		observability.HTTPRequestsInFlight.Inc()
		defer observability.HTTPRequestsInFlight.Dec()

		recorder := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(recorder, r)

		route := getRoute(r)
		observability.HTTPRequestsTotal.WithLabelValues(r.Method, route, statusCodeString(recorder.statusCode)).Inc()
		observability.HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

// getRoute returns the matched mux path template so dates in the path do not
// explode label cardinality. Unmatched requests share one label.
func getRoute(r *http.Request) string {
	if cr := mux.CurrentRoute(r); cr != nil {
		if tpl, err := cr.GetPathTemplate(); err == nil {
			return tpl
		}
	}
	return "unmatched"
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode  int
	wroteHeader bool
}

func (r *statusRecorder) WriteHeader(code int) {
	if !r.wroteHeader {
		r.statusCode = code
		r.wroteHeader = true
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	r.wroteHeader = true
	return r.ResponseWriter.Write(b)
}

func statusCodeString(code int) string {
	return fmt.Sprintf("%dxx", code/100)
}

// RecoverMiddleware turns a handler panic into a 500 so one bad request cannot take the
// process down. http.ErrAbortHandler is re-panicked so net/http can abort the connection.
func RecoverMiddleware(logger *zap.Logger) mux.MiddlewareFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			recorder := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				observability.PanicsRecoveredTotal.Inc()
				traffic.RecordError()
				l := logger
				if observability.CorrelationIDFromContext(r.Context()) != "" {
					l = observability.LoggerFromContext(r.Context())
				}
				l.Error("panic in handler", zap.String("path", r.URL.Path), zap.Any("panic", rec), zap.Stack("stack"))
				if !recorder.wroteHeader {
					writeError(w, http.StatusInternalServerError, msgInternal)
				}
			}()
			next.ServeHTTP(recorder, r)
		})
	}
}

// TimeoutMiddleware sets a deadline on the request context. Store queries use the request
// context, so a slow query fails with context.DeadlineExceeded and the handler answers 500.
func TimeoutMiddleware(timeout time.Duration) mux.MiddlewareFunc {
	if timeout <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RateLimitMiddleware returns 429 when the token bucket is exhausted. Disabled when limiter is nil.
func RateLimitMiddleware(limiter *rate.Limiter) mux.MiddlewareFunc {
	if limiter == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow() {
				observability.LoggerFromContext(r.Context()).Debug("rate limit denied")
				traffic.RecordDenied()
				observability.RateLimitDeniedTotal.Inc()
				writeError(w, http.StatusTooManyRequests, "Too many requests")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
