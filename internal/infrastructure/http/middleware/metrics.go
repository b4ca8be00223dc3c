package middleware

import (
	"fmt"
	"net/http"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// HTTPMetrics records requests in flight and request latency in
// milliseconds, next to the seconds-based histogram otelhttp emits
type HTTPMetrics struct {
	inFlight metric.Int64UpDownCounter
	latency  metric.Float64Histogram
}

// NewHTTPMetrics registers the instruments on meter
func NewHTTPMetrics(meter metric.Meter) (*HTTPMetrics, error) {
	inFlight, err := meter.Int64UpDownCounter(
		"http.server.active_requests",
		metric.WithDescription("Number of active HTTP server requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("active requests counter: %w", err)
	}

	latency, err := meter.Float64Histogram(
		"http.server.request.duration.ms",
		metric.WithDescription("HTTP server request duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("request duration histogram: %w", err)
	}

	return &HTTPMetrics{inFlight: inFlight, latency: latency}, nil
}

// Handler is the middleware. The in-flight counter is keyed by method and
// host only, since the route is not known until next has run.
func (m *HTTPMetrics) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		start := time.Now()
		common := []attribute.KeyValue{
			attribute.String("http.request.method", r.Method),
			attribute.String("server.address", r.Host),
		}

		m.inFlight.Add(ctx, 1, metric.WithAttributes(common...))
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		defer func() {
			m.inFlight.Add(ctx, -1, metric.WithAttributes(common...))

			elapsed := float64(time.Since(start).Microseconds()) / 1000
			m.latency.Record(ctx, elapsed, metric.WithAttributes(append(common,
				attribute.String("http.route", RoutePattern(r)),
				attribute.Int("http.response.status_code", statusOf(ww)),
			)...))
		}()

		next.ServeHTTP(ww, r)
	})
}

// statusOf reports 200 for handlers that never called WriteHeader
func statusOf(ww chimiddleware.WrapResponseWriter) int {
	if ww.Status() == 0 {
		return http.StatusOK
	}
	return ww.Status()
}
