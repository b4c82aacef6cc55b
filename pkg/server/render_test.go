package server

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/duduk-dev/duduk/pkg/router"
	"github.com/duduk-dev/duduk/pkg/ssr"
)

func TestHandler_RendersWithEngine(t *testing.T) {
	fsys := fstest.MapFS{
		"__app/routes/layout-root.js": {Data: []byte(`
export default class extends HTMLElement {
  constructor() {
    super();
    this.attachShadow({mode: 'open'});
    this.shadowRoot.innerHTML = '<header>' + window.__app.pageData.site + '</header><slot></slot>';
  }
}
`)},
		"__app/routes/blog/[slug]/page-post.js": {Data: []byte(`
import title from '../title.js';
export default class extends HTMLElement {
  constructor() {
    super();
    this.attachShadow({mode: 'open'});
    const { pageData, pageParams } = window.__app;
    this.shadowRoot.innerHTML = '<h1>' + title(pageData.title) + '</h1><p>' + pageParams.slug + '</p>';
  }
}
`)},
		"__app/routes/blog/title.js": {Data: []byte(`export default (t) => t.toUpperCase();`)},
	}
	servers := router.Servers{
		Layouts: map[string]*router.Handlers{
			"/": {Data: func(context.Context, *router.LoadEvent) (router.Data, error) {
				return router.Data{"site": "Duduk"}, nil
			}},
		},
		Pages: map[string]*router.Handlers{
			"/blog/[slug]": {Data: func(_ context.Context, ev *router.LoadEvent) (router.Data, error) {
				return router.Data{"title": "post " + ev.Params["slug"]}, nil
			}},
		},
	}
	h := NewHandler(HandlerConfig{
		Tree:      buildTree(t, fsys, servers),
		Static:    NewStaticFiles(fsys),
		Documents: &DocumentRenderer{Engine: ssr.New(fsys, ssr.WithLogger(quietLogger()))},
		Logger:    quietLogger(),
	})

	rr := serve(h, http.MethodGet, "/blog/hello", "text/html")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body %q", rr.Code, rr.Body.String())
	}

	layout := "fw-layout-" + router.ModuleID("/__app/routes/layout-root.js")
	page := "fw-page-" + router.ModuleID("/__app/routes/blog/[slug]/page-post.js")
	want := "<" + layout + `><template shadowrootmode="open"><header>Duduk</header><slot></slot></template>` +
		"<" + page + `><template shadowrootmode="open"><h1>POST HELLO</h1><p>hello</p></template></` + page + ">" +
		"</" + layout + ">"
	body := rr.Body.String()
	if !strings.Contains(body, want) {
		t.Errorf("document does not contain the rendered components\n got: %s\nwant: %s", body, want)
	}
	if !strings.Contains(body, `window.__app = {"pageData":{"site":"Duduk","title":"post hello"},"pageParams":{"slug":"hello"}};`) {
		t.Errorf("document does not carry the page state:\n%s", body)
	}

	// The same modules are served to the browser for hydration.
	rr = serve(h, http.MethodGet, "/__app/routes/blog/title.js", "*/*")
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "toUpperCase") {
		t.Errorf("module request = %d %q", rr.Code, rr.Body.String())
	}
}

func TestHandler_EngineFailureIsServerError(t *testing.T) {
	fsys := fstest.MapFS{
		"__app/routes/page-broken.js": {Data: []byte(`import missing from './missing.js'; export default class extends HTMLElement {}`)},
	}
	h := NewHandler(HandlerConfig{
		Tree:      buildTree(t, fsys, router.Servers{}),
		Documents: &DocumentRenderer{Engine: ssr.New(fsys, ssr.WithLogger(quietLogger()))},
		Logger:    quietLogger(),
	})

	rr := serve(h, http.MethodGet, "/", "text/html")
	if rr.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rr.Code)
	}
	if strings.Contains(rr.Body.String(), "missing.js") {
		t.Errorf("internal details leaked: %q", rr.Body.String())
	}
}
