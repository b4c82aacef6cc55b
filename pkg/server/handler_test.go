package server

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/duduk-dev/duduk/internal/errors"
	"github.com/duduk-dev/duduk/pkg/router"
	"github.com/duduk-dev/duduk/pkg/ssr"
)

// =============================================================================
// Test Helpers
// =============================================================================

func js() *fstest.MapFile {
	return &fstest.MapFile{Data: []byte("export default class extends HTMLElement {}")}
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func buildTree(t *testing.T, fsys fstest.MapFS, servers router.Servers) *router.Tree {
	t.Helper()
	tree, err := router.Build(fsys, servers)
	if err != nil {
		t.Fatalf("router.Build() error = %v", err)
	}
	return tree
}

func mustMatch(t *testing.T, tree *router.Tree, path string) *router.Match {
	t.Helper()
	m, ok := tree.Match(path)
	if !ok {
		t.Fatalf("no match for %q", path)
	}
	return m
}

// fakeRenderer records render inputs and answers with a fixed body.
type fakeRenderer struct {
	inputs []ssr.Input
	out    string
	err    error
}

func (f *fakeRenderer) Render(_ context.Context, in ssr.Input) (string, error) {
	f.inputs = append(f.inputs, in)
	return f.out, f.err
}

func pipelineFS() fstest.MapFS {
	return fstest.MapFS{
		"__app/routes/layout-root.js":           js(),
		"__app/routes/page-home.js":             js(),
		"__app/routes/blog/[slug]/page-post.js": js(),
		"__app/app-1234abcd.css":                &fstest.MapFile{Data: []byte("body{margin:0}")},
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func newPipeline(t *testing.T, servers router.Servers, chain router.Chain) (*Handler, *fakeRenderer) {
	t.Helper()
	fsys := pipelineFS()
	renderer := &fakeRenderer{out: "<fw-rendered></fw-rendered>"}
	h := NewHandler(HandlerConfig{
		Tree:       buildTree(t, fsys, servers),
		Middleware: chain,
		Static:     NewStaticFiles(fsys),
		Documents:  &DocumentRenderer{Engine: renderer},
		Cookies:    NewCookiePolicy(nil, nil),
		Logger:     quietLogger(),
	})
	return h, renderer
}

func serve(h http.Handler, method, target, accept string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	if accept != "" {
		req.Header.Set("Accept", accept)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

// =============================================================================
// Disposition
// =============================================================================

func TestHandler_Disposition(t *testing.T) {
	servers := router.Servers{
		Pages: map[string]*router.Handlers{
			"/api/items": {
				GET: func(_ context.Context, ev *router.HTTPEvent) (router.Data, error) {
					writeJSON(ev.Response, http.StatusOK, []string{"a", "b"})
					return nil, nil
				},
			},
		},
	}
	h, _ := newPipeline(t, servers, nil)

	tests := []struct {
		name       string
		method     string
		target     string
		accept     string
		wantStatus int
		wantBody   string
		wantAllow  string
		wantType   string
	}{
		{"document", http.MethodGet, "/", "text/html", 200, "<fw-rendered></fw-rendered>", "", "text/html; charset=utf-8"},
		{"document for POST", http.MethodPost, "/", "text/html", 200, "<fw-rendered></fw-rendered>", "", "text/html; charset=utf-8"},
		{"empty accept renders", http.MethodGet, "/blog/hello", "", 200, "<fw-rendered></fw-rendered>", "", "text/html; charset=utf-8"},
		{"document refuses PUT", http.MethodPut, "/", "text/html", 405, "", "GET, POST", ""},
		{"json without handler", http.MethodGet, "/", "application/json", 405, "", "GET, POST", ""},
		{"endpoint", http.MethodGet, "/api/items", "application/json", 200, `["a","b"]`, "", "application/json"},
		{"wildcard falls through to endpoint", http.MethodGet, "/api/items", "*/*", 200, `["a","b"]`, "", "application/json"},
		{"html only on api route", http.MethodGet, "/api/items", "text/html", 405, "", "GET", ""},
		{"endpoint method missing", http.MethodDelete, "/api/items", "application/json", 405, "", "GET", ""},
		{"not acceptable", http.MethodGet, "/", "image/png", 406, "", "", ""},
		{"html refused by weight", http.MethodGet, "/", "text/html;q=0, image/*", 406, "", "", ""},
		{"no route", http.MethodGet, "/missing/path", "text/html", 404, "", "", ""},
		{"static file", http.MethodGet, "/__app/app-1234abcd.css", "", 200, "body{margin:0}", "", "text/css; charset=utf-8"},
		{"static directory falls through", http.MethodGet, "/__app/routes", "text/html", 404, "", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := serve(h, tt.method, tt.target, tt.accept)
			if rr.Code != tt.wantStatus {
				t.Fatalf("%s %s status = %d, want %d (body %q)", tt.method, tt.target, rr.Code, tt.wantStatus, rr.Body.String())
			}
			if tt.wantBody != "" && !strings.Contains(rr.Body.String(), tt.wantBody) {
				t.Errorf("body = %q, want it to contain %q", rr.Body.String(), tt.wantBody)
			}
			if got := rr.Header().Get("Allow"); got != tt.wantAllow {
				t.Errorf("Allow = %q, want %q", got, tt.wantAllow)
			}
			if tt.wantType != "" && rr.Header().Get("Content-Type") != tt.wantType {
				t.Errorf("Content-Type = %q, want %q", rr.Header().Get("Content-Type"), tt.wantType)
			}
		})
	}
}

// =============================================================================
// Middleware
// =============================================================================

type ctxKey struct{}

func TestHandler_MiddlewareOrderAndLocals(t *testing.T) {
	var order []string
	chain := router.Chain{
		func(p router.MiddlewareParams) (http.ResponseWriter, error) {
			order = append(order, "first:before")
			p.Event.Locals["user"] = "ann"
			ev := *p.Event
			ev.Request = p.Event.Request.WithContext(context.WithValue(p.Event.Request.Context(), ctxKey{}, "traced"))
			w, err := p.Resolve(&ev)
			order = append(order, "first:after")
			return w, err
		},
		func(p router.MiddlewareParams) (http.ResponseWriter, error) {
			order = append(order, "second:"+p.Event.Locals["user"].(string)+":"+p.Event.RouteID)
			return p.Resolve(p.Event)
		},
	}

	var seen router.Locals
	var ctxValue any
	servers := router.Servers{
		Pages: map[string]*router.Handlers{
			"/": {Data: func(ctx context.Context, ev *router.LoadEvent) (router.Data, error) {
				order = append(order, "load")
				seen = ev.Locals
				ctxValue = ev.Request.Context().Value(ctxKey{})
				return router.Data{"ok": true}, nil
			}},
		},
	}
	h, renderer := newPipeline(t, servers, chain)

	rr := serve(h, http.MethodGet, "/", "text/html")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}

	want := []string{"first:before", "second:ann:/", "load", "first:after"}
	if strings.Join(order, ",") != strings.Join(want, ",") {
		t.Errorf("order = %v, want %v", order, want)
	}
	if seen["user"] != "ann" {
		t.Errorf("loader locals = %v", seen)
	}
	if ctxValue != "traced" {
		t.Errorf("loader request context value = %v, want the one attached by middleware", ctxValue)
	}
	g := renderer.inputs[0].Globals.(Globals)
	if g.PageData["ok"] != true {
		t.Errorf("pageData = %v", g.PageData)
	}
}

func TestHandler_MiddlewareAnswersItself(t *testing.T) {
	loaded := false
	chain := router.Chain{
		func(p router.MiddlewareParams) (http.ResponseWriter, error) {
			if _, ok := p.Event.Cookies.Get("session"); !ok {
				http.Error(p.Response, "login required", http.StatusUnauthorized)
				return p.Response, nil
			}
			return p.Resolve(p.Event)
		},
	}
	servers := router.Servers{
		Pages: map[string]*router.Handlers{
			"/": {Data: func(context.Context, *router.LoadEvent) (router.Data, error) {
				loaded = true
				return nil, nil
			}},
		},
	}
	h, renderer := newPipeline(t, servers, chain)

	rr := serve(h, http.MethodGet, "/", "text/html")
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rr.Code)
	}
	if loaded || len(renderer.inputs) != 0 {
		t.Error("route handling must not run when middleware answers")
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "session", Value: "s1"})
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK || !loaded {
		t.Fatalf("status = %d loaded = %v, want the page", rr.Code, loaded)
	}
}

func TestHandler_MiddlewareError(t *testing.T) {
	chain := router.Chain{
		func(p router.MiddlewareParams) (http.ResponseWriter, error) {
			return nil, io.ErrUnexpectedEOF
		},
	}
	h, _ := newPipeline(t, router.Servers{}, chain)

	rr := serve(h, http.MethodGet, "/", "text/html")
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rr.Code)
	}
}

func TestHandler_MiddlewareNeitherResolvesNorResponds(t *testing.T) {
	chain := router.Chain{
		func(p router.MiddlewareParams) (http.ResponseWriter, error) {
			return p.Response, nil
		},
	}
	h, renderer := newPipeline(t, router.Servers{}, chain)

	rr := serve(h, http.MethodGet, "/", "text/html")
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rr.Code)
	}
	if rr.Body.Len() == 0 {
		t.Error("response body should not be empty")
	}
	if len(renderer.inputs) != 0 {
		t.Error("route handling must not run when middleware stops the chain")
	}
}

// =============================================================================
// Failures
// =============================================================================

func TestHandler_Failures(t *testing.T) {
	t.Run("loader error", func(t *testing.T) {
		servers := router.Servers{
			Layouts: map[string]*router.Handlers{
				"/": {Data: func(context.Context, *router.LoadEvent) (router.Data, error) {
					return nil, io.ErrUnexpectedEOF
				}},
			},
		}
		h, renderer := newPipeline(t, servers, nil)
		rr := serve(h, http.MethodGet, "/", "text/html")
		if rr.Code != http.StatusInternalServerError {
			t.Fatalf("status = %d, want 500", rr.Code)
		}
		if len(renderer.inputs) != 0 {
			t.Error("render must not run after a loader failure")
		}
	})

	t.Run("render error", func(t *testing.T) {
		h, renderer := newPipeline(t, router.Servers{}, nil)
		renderer.err = errors.New(errors.CodeModuleResolution)
		rr := serve(h, http.MethodGet, "/", "text/html")
		if rr.Code != http.StatusInternalServerError {
			t.Fatalf("status = %d, want 500", rr.Code)
		}
		if strings.Contains(rr.Body.String(), "<!DOCTYPE") {
			t.Error("a failed render must not write a document")
		}
	})

	t.Run("handler error after writing keeps its response", func(t *testing.T) {
		servers := router.Servers{
			Pages: map[string]*router.Handlers{
				"/api/items": {POST: func(_ context.Context, ev *router.HTTPEvent) (router.Data, error) {
					writeJSON(ev.Response, http.StatusCreated, map[string]string{"id": "1"})
					return nil, io.ErrUnexpectedEOF
				}},
			},
		}
		h, _ := newPipeline(t, servers, nil)
		rr := serve(h, http.MethodPost, "/api/items", "application/json")
		if rr.Code != http.StatusCreated {
			t.Fatalf("status = %d, want 201", rr.Code)
		}
		if strings.Contains(rr.Body.String(), "Internal Server Error") {
			t.Errorf("body = %q, want a single response", rr.Body.String())
		}
	})

	t.Run("handler error before writing", func(t *testing.T) {
		servers := router.Servers{
			Pages: map[string]*router.Handlers{
				"/api/items": {POST: func(context.Context, *router.HTTPEvent) (router.Data, error) {
					return nil, io.ErrUnexpectedEOF
				}},
			},
		}
		h, _ := newPipeline(t, servers, nil)
		rr := serve(h, http.MethodPost, "/api/items", "application/json")
		if rr.Code != http.StatusInternalServerError {
			t.Fatalf("status = %d, want 500", rr.Code)
		}
	})

	t.Run("no tree", func(t *testing.T) {
		h := NewHandler(HandlerConfig{Logger: quietLogger()})
		rr := serve(h, http.MethodGet, "/", "")
		if rr.Code != http.StatusInternalServerError {
			t.Fatalf("status = %d, want 500", rr.Code)
		}
	})
}

func TestHandler_Cookies(t *testing.T) {
	chain := router.Chain{
		func(p router.MiddlewareParams) (http.ResponseWriter, error) {
			p.Event.Cookies.Set(&http.Cookie{Name: "visited", Value: "1"})
			return p.Resolve(p.Event)
		},
	}
	var theme string
	servers := router.Servers{
		Pages: map[string]*router.Handlers{
			"/": {Data: func(_ context.Context, ev *router.LoadEvent) (router.Data, error) {
				theme, _ = ev.Cookies.Get("theme")
				return nil, nil
			}},
		},
	}
	h, _ := newPipeline(t, servers, chain)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "theme", Value: "dark"})
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if theme != "dark" {
		t.Errorf("loader cookie = %q, want dark", theme)
	}
	got := rr.Header().Get("Set-Cookie")
	for _, want := range []string{"visited=1", "Path=/", "SameSite=Lax"} {
		if !strings.Contains(got, want) {
			t.Errorf("Set-Cookie = %q, missing %q", got, want)
		}
	}
}
