package telemetry

import (
	"context"
	"io"
	"log/slog"

	"github.com/mrops-br/catalog-service/internal/infrastructure/config"
	"go.opentelemetry.io/otel/trace"
)

type routeKey struct{}

// WithHTTPRoute attaches a route resolver to ctx. The resolver runs each time
// a record is logged, so it can report a pattern that routing completes after
// the context was built.
func WithHTTPRoute(ctx context.Context, route func() string) context.Context {
	return context.WithValue(ctx, routeKey{}, route)
}

// HTTPRouteFromContext resolves the route attached to ctx, "" if none
func HTTPRouteFromContext(ctx context.Context) string {
	if route, ok := ctx.Value(routeKey{}).(func() string); ok && route != nil {
		return route()
	}
	return ""
}

// NewLogger returns a JSON logger writing to w. Records logged with a context
// carry trace_id and span_id of the active span and the matched http.route.
func NewLogger(w io.Writer, cfg *config.OTLPConfig) *slog.Logger {
	base := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: cfg.LogLevel})

	return slog.New(contextHandler{base}).With(
		slog.String("service.name", cfg.ServiceName),
		slog.String("environment", cfg.Environment),
	)
}

// contextHandler copies request-scoped values from the context onto records
type contextHandler struct {
	slog.Handler
}

func (h contextHandler) Handle(ctx context.Context, rec slog.Record) error {
	rec.AddAttrs(contextAttrs(ctx)...)
	return h.Handler.Handle(ctx, rec)
}

func (h contextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return contextHandler{h.Handler.WithAttrs(attrs)}
}

func (h contextHandler) WithGroup(name string) slog.Handler {
	return contextHandler{h.Handler.WithGroup(name)}
}

func contextAttrs(ctx context.Context) []slog.Attr {
	var attrs []slog.Attr
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		attrs = append(attrs,
			slog.String("trace_id", sc.TraceID().String()),
			slog.String("span_id", sc.SpanID().String()),
		)
	}
	if route := HTTPRouteFromContext(ctx); route != "" {
		attrs = append(attrs, slog.String("http.route", route))
	}
	return attrs
}
