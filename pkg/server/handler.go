package server

import (
	"log/slog"
	"net/http"
	"strings"

	chimw "github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/duduk-dev/duduk/internal/errors"
	"github.com/duduk-dev/duduk/pkg/negotiate"
	"github.com/duduk-dev/duduk/pkg/router"
)

const tracerName = "github.com/duduk-dev/duduk/pkg/server"

const (
	mediaHTML = "text/html"
	mediaJSON = "application/json"
)

// HandlerConfig wires a Handler.
type HandlerConfig struct {
	// Tree is the route tree. Required.
	Tree *router.Tree

	// Middleware runs for every matched route, in order.
	Middleware router.Chain

	// Static serves files ahead of routing. Nil disables static files.
	Static *StaticFiles

	// Documents renders pages. Required for routes with pages.
	Documents *DocumentRenderer

	// Cookies fills in response cookie attributes.
	Cookies *CookiePolicy

	// Logger defaults to slog.Default().
	Logger *slog.Logger

	// TracerProvider defaults to the global provider.
	TracerProvider trace.TracerProvider
}

// Handler is the request pipeline: static files, route matching,
// middleware, content negotiation, then either a rendered document or a
// data endpoint. Every request gets exactly one response.
type Handler struct {
	tree      *router.Tree
	chain     router.Chain
	static    *StaticFiles
	documents *DocumentRenderer
	cookies   *CookiePolicy
	logger    *slog.Logger
	tracer    trace.Tracer
}

// NewHandler creates a Handler.
func NewHandler(cfg HandlerConfig) *Handler {
	h := &Handler{
		tree:      cfg.Tree,
		chain:     cfg.Middleware,
		static:    cfg.Static,
		documents: cfg.Documents,
		cookies:   cfg.Cookies,
		logger:    cfg.Logger,
	}
	if h.logger == nil {
		h.logger = slog.Default()
	}
	if cfg.TracerProvider != nil {
		h.tracer = cfg.TracerProvider.Tracer(tracerName)
	} else {
		h.tracer = otel.Tracer(tracerName)
	}
	return h
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.static.Serve(w, r) {
		return
	}

	logger := h.logger.With("method", r.Method, "path", r.URL.Path)
	if id := chimw.GetReqID(r.Context()); id != "" {
		logger = logger.With("request_id", id)
	}

	if h.tree == nil {
		h.fail(w, logger, errors.New(errors.CodeMisconfiguration).WithDetail("no route tree"))
		return
	}
	m, ok := h.tree.Match(r.URL.Path)
	if !ok {
		h.fail(w, logger, errors.New(errors.CodeNotFound).WithDetail(r.URL.Path))
		return
	}
	logger = logger.With("route_id", m.RouteID)

	ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
	cookies := newRequestCookies(ww, r, h.cookies)
	dispatched := false
	err := h.chain.Execute(ww, r, m.Params, m.RouteID, cookies, func(req *http.Request, locals router.Locals) error {
		dispatched = true
		return h.dispatch(ww, req, m, locals, cookies)
	})
	if err == nil {
		if !dispatched && ww.Status() == 0 {
			h.fail(ww, logger, errors.New(errors.CodeMisconfiguration).
				WithDetail("middleware neither resolved nor responded"))
		}
		return
	}
	if ww.Status() != 0 {
		logger.Error("request failed after the response started", "status", ww.Status(), "error", err)
		return
	}
	h.fail(ww, logger, err)
}

// dispatch negotiates the representation and serves it.
func (h *Handler) dispatch(w http.ResponseWriter, r *http.Request, m *router.Match, locals router.Locals, cookies router.Cookies) error {
	accept := r.Header.Get("Accept")
	wantsHTML := negotiate.Accepts(accept, mediaHTML)
	wantsJSON := negotiate.Accepts(accept, mediaJSON)
	if !wantsHTML && !wantsJSON {
		return errors.New(errors.CodeNotAcceptable).WithDetail(accept)
	}

	leaf := m.Leaf()
	if wantsHTML && (r.Method == http.MethodGet || r.Method == http.MethodPost) && leaf.Page != nil {
		return h.document(w, r, m, locals, cookies)
	}
	if wantsJSON && leaf.PageServer.Has(r.Method) {
		ctx, span := h.tracer.Start(r.Context(), "duduk.endpoint", trace.WithAttributes(
			attribute.String("http.route", m.RouteID),
			attribute.String("http.request.method", r.Method),
		))
		defer span.End()
		return record(span, ExecuteEndpoint(ctx, w, r.WithContext(ctx), m, locals, cookies))
	}

	w.Header().Set("Allow", strings.Join(allowed(leaf), ", "))
	return errors.New(errors.CodeMethodNotAllowed).WithDetailf("%s %s", r.Method, m.RouteID)
}

func (h *Handler) document(w http.ResponseWriter, r *http.Request, m *router.Match, locals router.Locals, cookies router.Cookies) error {
	if h.documents == nil {
		return errors.New(errors.CodeMisconfiguration).WithDetail("no document renderer")
	}

	ctx, span := h.tracer.Start(r.Context(), "duduk.cascade", trace.WithAttributes(
		attribute.String("http.route", m.RouteID),
		attribute.Int("duduk.stack_depth", len(m.Stack)),
	))
	data, err := Cascade(ctx, m, r.WithContext(ctx), locals, cookies)
	record(span, err)
	span.End()
	if err != nil {
		return err
	}

	ctx, span = h.tracer.Start(r.Context(), "duduk.render", trace.WithAttributes(
		attribute.String("http.route", m.RouteID),
		attribute.String("duduk.page", m.Leaf().Page.Path),
	))
	defer span.End()
	return record(span, h.documents.Render(ctx, w, r, m, data))
}

// fail answers with the status the error maps to.
func (h *Handler) fail(w http.ResponseWriter, logger *slog.Logger, err error) {
	status := errors.StatusOf(err)
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", "status", status, "error", err)
	} else {
		logger.Debug("request refused", "status", status, "error", err)
	}
	http.Error(w, http.StatusText(status), status)
}

// allowed lists the methods a leaf answers in some representation.
func allowed(leaf *router.Node) []string {
	var out []string
	for _, m := range router.Methods {
		page := leaf.Page != nil && (m == http.MethodGet || m == http.MethodPost)
		if page || leaf.PageServer.Has(m) {
			out = append(out, m)
		}
	}
	return out
}

func record(span trace.Span, err error) error {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}
