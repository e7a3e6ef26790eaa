package admin

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"assisted-venue-dedup/pkg/logging"
	"assisted-venue-dedup/pkg/metrics"
)

var (
	mHTTPRequests = metrics.Default.Counter("http_requests_total", "HTTP requests received")
	mHTTPDuration = metrics.Default.Histogram("http_request_duration_seconds", "HTTP request latency",
		[]float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5})
)

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// RequestMiddleware assigns each request an ID (honoring an inbound
// X-Request-ID), records metrics and writes one access log line.
func RequestMiddleware(logger *logging.Logger) func(http.Handler) http.Handler {
	cl := logger.WithComponent("http")
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqID := r.Header.Get("X-Request-ID")
			if reqID == "" {
				reqID = uuid.New().String()
			}
			w.Header().Set("X-Request-ID", reqID)

			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)

			elapsed := time.Since(start)
			mHTTPRequests.Inc(1)
			mHTTPDuration.Observe(elapsed.Seconds())
			cl.Info("request",
				logging.String("request_id", reqID),
				logging.String("method", r.Method),
				logging.String("path", r.URL.Path),
				logging.Int("status", rec.status),
				logging.Duration("duration", elapsed))
		})
	}
}
