package server

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var registerMetricsOnce sync.Once

var (
	requestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name: "talos_http_request_duration_seconds",
		Help: "Latency of HTTP requests handled by Talos.",
	}, []string{"route", "code"})

	requestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "talos_http_requests_total",
		Help: "Count of HTTP requests handled by Talos.",
	}, []string{"route", "code"})
)

// withMetrics wraps h with Prometheus request-duration and request-count
// instrumentation, registered against reg (nil disables instrumentation),
// adapted from the teacher's instrumentHandler/metricsHandler pattern in
// server/metrics.go and server/server.go.
func withMetrics(route string, reg *prometheus.Registry, h http.HandlerFunc) http.HandlerFunc {
	if reg == nil {
		return h
	}
	registerMetricsOnce.Do(func() {
		reg.MustRegister(requestDuration, requestsTotal)
	})

	return func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		h(rec, r)
		code := strconv.Itoa(rec.status)
		requestDuration.WithLabelValues(route, code).Observe(time.Since(start).Seconds())
		requestsTotal.WithLabelValues(route, code).Inc()
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
