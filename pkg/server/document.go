package server

import (
	"context"
	"encoding/json"
	"net/http"
	"slices"
	"strings"

	"github.com/duduk-dev/duduk/internal/errors"
	"github.com/duduk-dev/duduk/pkg/negotiate"
	"github.com/duduk-dev/duduk/pkg/router"
	"github.com/duduk-dev/duduk/pkg/ssr"
)

// Renderer renders component markup on the server. *ssr.Engine
// implements it.
type Renderer interface {
	Render(ctx context.Context, in ssr.Input) (string, error)
}

// LocaleSource picks the locale strings for an Accept-Language header.
// An empty result injects no locales.
type LocaleSource interface {
	Strings(acceptLanguage string) map[string]any
}

// Globals is the state injected into every document as window.__app.
type Globals struct {
	PageData      router.Data       `json:"pageData"`
	PageParams    map[string]string `json:"pageParams"`
	PrependStyles string            `json:"prependStyles,omitempty"`
	Locales       map[string]any    `json:"locales,omitempty"`
}

// DocumentRenderer composes the page and its layouts into one server
// rendered HTML document.
type DocumentRenderer struct {
	Engine  Renderer
	Root    RootFiles
	Locales LocaleSource
}

// composition is the markup and client script for one match.
type composition struct {
	markup  string
	imports []string
	defines []string
}

func (c *composition) script() string {
	return strings.Join(c.imports, "") + " " + strings.Join(c.defines, "")
}

// compose nests the page inside its layouts, outermost layout first.
// Imports and definitions are ordered outermost first so every parent
// element is defined before its children, with setupClient ahead of all.
func (d *DocumentRenderer) compose(m *router.Match) composition {
	page := m.Leaf().Page
	c := composition{
		markup:  hostElement("fw-page-"+page.ID, ""),
		imports: []string{`import Page` + page.ID + ` from "` + page.Path + `";`},
		defines: []string{`customElements.define("fw-page-` + page.ID + `", Page` + page.ID + `);`},
	}

	for i := len(m.Stack) - 1; i >= 0; i-- {
		layout := m.Stack[i].Layout
		if layout == nil {
			continue
		}
		c.markup = hostElement("fw-layout-"+layout.ID, c.markup)
		c.imports = append(c.imports, `import Layout`+layout.ID+` from "`+layout.Path+`";`)
		c.defines = append(c.defines, `customElements.define("fw-layout-`+layout.ID+`", Layout`+layout.ID+`);`)
	}
	if d.Root.SetupClient != "" {
		c.imports = append(c.imports, `import "`+d.Root.SetupClient+`";`)
	}

	slices.Reverse(c.imports)
	slices.Reverse(c.defines)
	return c
}

// Render renders the document for m and writes it with status 200.
// Nothing is written when rendering fails.
func (d *DocumentRenderer) Render(ctx context.Context, w http.ResponseWriter, r *http.Request, m *router.Match, data router.Data) error {
	if m.Leaf().Page == nil {
		return errors.New(errors.CodeMisconfiguration).
			WithDetailf("route %q has no page module", m.RouteID)
	}
	if d.Engine == nil {
		return errors.New(errors.CodeMisconfiguration).WithDetail("no rendering engine")
	}

	c := d.compose(m)
	globals := d.globals(r, m, data)
	acceptLanguage := r.Header.Get("Accept-Language")

	body, err := d.Engine.Render(ctx, ssr.Input{
		Markup:    c.markup,
		Script:    c.script(),
		Globals:   globals,
		Languages: negotiate.Values(negotiate.ParseHeader(acceptLanguage)),
		URL:       documentURL(r),
	})
	if err != nil {
		return err
	}

	state, err := json.Marshal(globals)
	if err != nil {
		return errors.New(errors.CodeMisconfiguration).
			WithDetail("page data is not JSON serializable").
			Wrap(err)
	}

	doc := d.shell(body, string(state), c)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, err = w.Write([]byte(doc))
	return err
}

func (d *DocumentRenderer) globals(r *http.Request, m *router.Match, data router.Data) Globals {
	g := Globals{
		PageData:   data,
		PageParams: m.Params,
	}
	if g.PageData == nil {
		g.PageData = router.Data{}
	}
	if g.PageParams == nil {
		g.PageParams = map[string]string{}
	}
	if d.Root.AppCSS != "" {
		g.PrependStyles = `@import url("` + d.Root.AppCSS + `");`
	}
	if d.Locales != nil {
		if strs := d.Locales.Strings(r.Header.Get("Accept-Language")); len(strs) > 0 {
			g.Locales = strs
		}
	}
	return g
}

func (d *DocumentRenderer) shell(body, state string, c composition) string {
	var b strings.Builder
	b.WriteString("<!DOCTYPE html>\n<html>\n<head>\n")
	b.WriteString("    <meta name=\"viewport\" content=\"width=device-width, initial-scale=1\" />\n")
	b.WriteString("    <meta charset=\"utf-8\" />")
	if d.Root.RootCSS != "" {
		b.WriteString("\n<style>" + d.Root.RootCSS + "</style>")
	}
	if d.Root.AppCSS != "" {
		b.WriteString("\n<link rel=\"stylesheet\" href=\"" + d.Root.AppCSS + "\">")
	}
	b.WriteString("\n</head>\n<body>\n    ")
	b.WriteString(body)
	b.WriteString("\n    <script type=\"module\">\n        window.__app = ")
	b.WriteString(state)
	b.WriteString(";\n    </script>\n    <script type=\"module\">\n        ")
	b.WriteString(strings.Join(c.imports, ""))
	b.WriteString("\n        ")
	b.WriteString(strings.Join(c.defines, ""))
	b.WriteString("\n    </script>\n</body>\n</html>")
	return b.String()
}

// documentURL is the location reported to scripts: the Referer when
// present, otherwise the request URI on the origin or host.
func documentURL(r *http.Request) string {
	if ref := r.Header.Get("Referer"); ref != "" {
		return ref
	}
	host := r.Header.Get("Origin")
	if i := strings.Index(host, "://"); i >= 0 {
		host = host[i+3:]
	}
	if host == "" {
		host = r.Host
	}
	if host == "" {
		host = "localhost"
	}
	return "https://" + host + r.URL.RequestURI()
}

func hostElement(name, inner string) string {
	return "<" + name + ">" + inner + "</" + name + ">"
}
