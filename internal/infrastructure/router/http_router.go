package router

import (
	"net/http"
	"strconv"
	"time"

	"passenger-service/pkg/logger"
	"passenger-service/pkg/metrics"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RouteRegistrar mounts a group of routes
type RouteRegistrar interface {
	Register(r chi.Router)
}

// NewHTTPRouter builds the service router with health, metrics and the given
// route groups. gatherer serves /metrics; m may be nil.
func NewHTTPRouter(log logger.Logger, m *metrics.Metrics, gatherer prometheus.Gatherer, groups ...RouteRegistrar) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(accessLog(log, m))
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("Healthy"))
	})
	if gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	for _, g := range groups {
		g.Register(r)
	}

	return r
}

// accessLog logs every request and records its latency under the matched
// route pattern, which keeps label cardinality bounded
func accessLog(log logger.Logger, m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			next.ServeHTTP(ww, r)

			elapsed := time.Since(start)
			route := chi.RouteContext(r.Context()).RoutePattern()
			if route == "" {
				route = "unmatched"
			}
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}

			if m != nil {
				m.HTTPRequests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
				m.HTTPRequestTiming.WithLabelValues(r.Method, route).Observe(elapsed.Seconds())
			}

			log.Debug("HTTP request",
				"method", r.Method,
				"path", r.URL.Path,
				"route", route,
				"status", status,
				"duration", elapsed,
				"requestID", middleware.GetReqID(r.Context()))
		})
	}
}
