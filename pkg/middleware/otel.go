package middleware

import (
	"context"
	"fmt"
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/duduk-dev/duduk/pkg/router"
)

// Default tracer name for duduk applications.
const defaultTracerName = "duduk"

// OTelConfig configures the OpenTelemetry middleware.
type OTelConfig struct {
	// TracerName is the name of the tracer (default: "duduk").
	TracerName string

	// IncludeParams adds the matched path params as span attributes.
	// Params may carry user data, so this is off by default.
	IncludeParams bool

	// Filter determines which requests to trace.
	// Return true to trace the request, false to skip.
	// If nil, all requests are traced.
	Filter func(ev *router.Event) bool

	// AttributeExtractor extracts custom attributes from the event.
	AttributeExtractor func(ev *router.Event) []attribute.KeyValue

	// TracerProvider overrides the global provider.
	TracerProvider trace.TracerProvider
}

// OTelOption configures the OpenTelemetry middleware.
type OTelOption func(*OTelConfig)

// WithTracerName sets the tracer name.
func WithTracerName(name string) OTelOption {
	return func(c *OTelConfig) {
		c.TracerName = name
	}
}

// WithIncludeParams enables path params as span attributes.
func WithIncludeParams(include bool) OTelOption {
	return func(c *OTelConfig) {
		c.IncludeParams = include
	}
}

// WithRequestFilter sets a filter function for requests.
func WithRequestFilter(filter func(ev *router.Event) bool) OTelOption {
	return func(c *OTelConfig) {
		c.Filter = filter
	}
}

// WithAttributeExtractor sets a custom attribute extractor.
func WithAttributeExtractor(extractor func(ev *router.Event) []attribute.KeyValue) OTelOption {
	return func(c *OTelConfig) {
		c.AttributeExtractor = extractor
	}
}

// WithTracerProvider sets the tracer provider.
func WithTracerProvider(tp trace.TracerProvider) OTelOption {
	return func(c *OTelConfig) {
		c.TracerProvider = tp
	}
}

func defaultOTelConfig() OTelConfig {
	return OTelConfig{
		TracerName: defaultTracerName,
	}
}

// OpenTelemetry creates route middleware that traces every routed
// request. The span context is attached to the request handed to the
// rest of the chain, so loaders, handlers and renders inherit it through
// ev.Request.Context().
//
// The tracer uses the global OpenTelemetry tracer provider unless
// WithTracerProvider is given. Configure it in main() before starting the
// server:
//
//	tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter))
//	otel.SetTracerProvider(tp)
func OpenTelemetry(opts ...OTelOption) router.Middleware {
	config := defaultOTelConfig()
	for _, opt := range opts {
		opt(&config)
	}

	var tracer trace.Tracer
	if config.TracerProvider != nil {
		tracer = config.TracerProvider.Tracer(config.TracerName)
	} else {
		tracer = otel.Tracer(config.TracerName)
	}

	return func(p router.MiddlewareParams) (http.ResponseWriter, error) {
		ev := p.Event
		if config.Filter != nil && !config.Filter(ev) {
			return p.Resolve(ev)
		}

		attrs := []attribute.KeyValue{
			attribute.String("http.request.method", ev.Request.Method),
			attribute.String("http.route", ev.RouteID),
			attribute.String("url.path", ev.Request.URL.Path),
		}
		if config.IncludeParams {
			for name, value := range ev.Params {
				attrs = append(attrs, attribute.String("duduk.param."+name, value))
			}
		}
		if config.AttributeExtractor != nil {
			attrs = append(attrs, config.AttributeExtractor(ev)...)
		}

		ctx, span := tracer.Start(
			ev.Request.Context(),
			formatSpanName(ev),
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(attrs...),
		)
		defer span.End()

		next := *ev
		next.Request = ev.Request.WithContext(ctx)
		w, err := p.Resolve(&next)

		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}
		return w, err
	}
}

// SpanFromRequest returns the span attached by OpenTelemetry, or a
// no-op span when the request was not traced.
func SpanFromRequest(r *http.Request) trace.Span {
	return trace.SpanFromContext(r.Context())
}

// TraceContext returns the request context for propagation to
// downstream calls.
func TraceContext(r *http.Request) context.Context {
	return r.Context()
}

func formatSpanName(ev *router.Event) string {
	route := ev.RouteID
	if route == "" {
		route = "/"
	}
	return fmt.Sprintf("%s %s", ev.Request.Method, route)
}
