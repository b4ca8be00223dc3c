package middleware

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/mrops-br/catalog-service/internal/infrastructure/telemetry"
)

// RoutePattern returns the chi pattern matched so far, or the raw path when
// chi has not routed the request
func RoutePattern(r *http.Request) string {
	return routeOf(chi.RouteContext(r.Context()), r.URL.Path)
}

// RouteInContext exposes the matched route to loggers via
// telemetry.HTTPRouteFromContext. It is resolved when read, so a record
// written inside a handler carries the full pattern even though this
// middleware runs before chi has routed the request.
func RouteInContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rctx := chi.RouteContext(r.Context())
		path := r.URL.Path

		ctx := telemetry.WithHTTPRoute(r.Context(), func() string {
			return routeOf(rctx, path)
		})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func routeOf(rctx *chi.Context, path string) string {
	if rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return path
}
