// Package middleware provides observability middleware for duduk.
//
// Route middleware (router.Middleware) runs inside the request pipeline,
// after a route matched:
//   - OpenTelemetry starts a server span per routed request
//   - Prometheus counts and times routed requests by route id
//   - RequestID exposes a request id to loaders and handlers
//
// HTTP middleware wraps the whole server, static files included:
//   - HTTPMetrics counts responses by method and status code
//
// RenderObserver plugs into the rendering engine and records render
// outcomes and program cache hits.
//
// # OpenTelemetry
//
//	app.Use(middleware.OpenTelemetry(
//	    middleware.WithTracerName("shop"),
//	    middleware.WithRequestFilter(func(ev *router.Event) bool {
//	        return ev.RouteID != "/healthz"
//	    }),
//	))
//
// The span is attached to the request passed down the chain, so HTTP
// clients and database drivers called from loaders inherit the trace:
//
//	func load(ctx context.Context, ev *router.LoadEvent) (router.Data, error) {
//	    req, _ := http.NewRequestWithContext(ctx, "GET", url, nil)
//	    ...
//	}
//
// # Prometheus
//
// All collectors are registered once, on the registry given to the first
// constructor called, and shared afterwards:
//   - duduk_route_requests_total, duduk_route_request_duration_seconds,
//     duduk_route_errors_total
//   - duduk_http_requests_total, duduk_http_request_duration_seconds,
//     duduk_http_requests_in_flight
//   - duduk_renders_total, duduk_render_duration_seconds,
//     duduk_modules_loaded_total
//
// Expose them with promhttp; the server mounts promhttp.Handler() at the
// configured metrics path.
package middleware
