package ssr

import (
	"context"
	"io"
	"io/fs"
	"log/slog"
	"reflect"
	"sort"
	"strings"
	"sync"
	"testing"
	"testing/fstest"
	"time"

	"github.com/duduk-dev/duduk/internal/errors"
)

// countingFS counts opened files. It hides ReadFile so every read goes
// through Open.
type countingFS struct {
	fsys fs.FS

	mu    sync.Mutex
	opens map[string]int
}

func (c *countingFS) Open(name string) (fs.File, error) {
	c.mu.Lock()
	c.opens[name]++
	c.mu.Unlock()
	return c.fsys.Open(name)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestEngine(fsys fs.FS, opts ...Option) *Engine {
	return New(fsys, append([]Option{WithLogger(quietLogger())}, opts...)...)
}

func render(t *testing.T, e *Engine, in Input) string {
	t.Helper()
	out, err := e.Render(context.Background(), in)
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	return out
}

func componentFS() fstest.MapFS {
	return fstest.MapFS{
		"__app/my-component.js": {Data: []byte(`
import something from './dir/something.js';
export default class extends HTMLElement {
  constructor() {
    super();
    this.attachShadow({mode: 'open'});
    this.shadowRoot.innerHTML = ` + "`${something}<p>Some outer component content</p><slot></slot>`" + `;
  }
}
`)},
		"__app/my-other-component.js": {Data: []byte(`
import something from './dir/something.js';
export default class extends HTMLElement {
  constructor() {
    super();
    this.attachShadow({mode: 'open'});
    this.shadowRoot.innerHTML = ` + "`${something}<slot></slot><p>lang ${window.navigator.languages.join(',')}</p><p>app ${window.__app.some}</p><p>url ${window.location.href}</p>`" + `;
  }
}
`)},
		"__app/my-component-without-shadow-root.js": {Data: []byte(`export default class extends HTMLElement {}`)},
		"__app/dir/something.js":                    {Data: []byte(`const something = 'imported content'; export default something;`)},
	}
}

func TestRender_DeclarativeShadowRoots(t *testing.T) {
	fsys := &countingFS{fsys: componentFS(), opens: map[string]int{}}
	e := newTestEngine(fsys)

	markup := `<my-component><my-other-component>Some inner content</my-other-component></my-component>
<my-component-without-shadow-root><template>some template</template></my-component-without-shadow-root>
<my-component-without-shadow-root><template shadowrootmode="open">shadow content</template></my-component-without-shadow-root>
<my-component-without-shadow-root></my-component-without-shadow-root>
<my-component><template shadowrootmode="open">shadow content</template></my-component>`
	script := `
import MyComponent from '/__app/my-component.js';
import MyOtherComponent from '/__app/my-other-component.js';
import MyComponentWithoutShadowRoot from '/__app/my-component-without-shadow-root.js';
customElements.define('my-component', MyComponent);
customElements.define('my-other-component', MyOtherComponent);
customElements.define('my-component-without-shadow-root', MyComponentWithoutShadowRoot);
`
	got := render(t, e, Input{
		Markup:    markup,
		Script:    script,
		Globals:   map[string]any{"some": "global"},
		Languages: []string{"de-DE", "en-US"},
		URL:       "http://localhost/someRoute",
	})

	want := `<my-component><template shadowrootmode="open">imported content<p>Some outer component content</p><slot></slot></template>` +
		`<my-other-component><template shadowrootmode="open">imported content<slot></slot><p>lang de-DE,en-US</p><p>app global</p><p>url http://localhost/someRoute</p></template>Some inner content</my-other-component></my-component>
<my-component-without-shadow-root><template>some template</template></my-component-without-shadow-root>
<my-component-without-shadow-root><template shadowrootmode="open">shadow content</template></my-component-without-shadow-root>
<my-component-without-shadow-root></my-component-without-shadow-root>
<my-component><template shadowrootmode="open">shadow content</template></my-component>`
	if got != want {
		t.Fatalf("Render() =\n%s\nwant\n%s", got, want)
	}

	for _, name := range []string{
		"__app/my-component.js",
		"__app/my-other-component.js",
		"__app/my-component-without-shadow-root.js",
		"__app/dir/something.js",
	} {
		if n := fsys.opens[name]; n != 1 {
			t.Errorf("%s opened %d times, want 1", name, n)
		}
	}
}

func TestRender_NestedShadowRootsPostOrder(t *testing.T) {
	fsys := fstest.MapFS{
		"__app/outer.js": {Data: []byte(`export default class extends HTMLElement {
  constructor() { super(); this.attachShadow({mode: 'open'}).innerHTML = '<x-inner></x-inner>'; }
}`)},
		"__app/inner.js": {Data: []byte(`export default class extends HTMLElement {
  constructor() { super(); this.attachShadow({mode: 'open'}).innerHTML = '<b>inner</b>'; }
}`)},
	}
	got := render(t, newTestEngine(fsys), Input{
		Markup: `<x-outer></x-outer>`,
		Script: `import Inner from "/__app/inner.js";
import Outer from "/__app/outer.js";
customElements.define("x-inner", Inner);
customElements.define("x-outer", Outer);`,
	})
	want := `<x-outer><template shadowrootmode="open"><x-inner><template shadowrootmode="open"><b>inner</b></template></x-inner></template></x-outer>`
	if got != want {
		t.Fatalf("Render() = %s, want %s", got, want)
	}
}

func TestRender_ModuleCycleEvaluatesOnce(t *testing.T) {
	fsys := fstest.MapFS{
		"__app/a.js": {Data: []byte(`import {b} from "./b.js";
globalThis.evaluations = (globalThis.evaluations || 0) + 1;
export const a = "a";
export function describe() { return a + b; }`)},
		"__app/b.js": {Data: []byte(`import {a} from "./a.js";
globalThis.evaluations = (globalThis.evaluations || 0) + 1;
export const b = "b";
export function late() { return a; }`)},
	}
	got := render(t, newTestEngine(fsys), Input{
		Script: `import {describe} from "/__app/a.js";
import {late} from "/__app/b.js";
document.body.append(describe() + late() + globalThis.evaluations);`,
	})
	if got != "aba2" {
		t.Fatalf("Render() = %q, want %q", got, "aba2")
	}
}

func TestRender_Errors(t *testing.T) {
	fsys := fstest.MapFS{
		"__app/broken.js": {Data: []byte(`export default class {`)},
		"__app/throws.js": {Data: []byte(`throw new Error("boom");`)},
		"__app/bare.js":   {Data: []byte(`import x from "lodash"; export default x;`)},
	}
	tests := []struct {
		name   string
		script string
		code   string
	}{
		{"missing module", `import x from "/__app/missing.js";`, errors.CodeModuleResolution},
		{"missing relative module", `import x from "./nowhere.js";`, errors.CodeModuleResolution},
		{"bare specifier", `import x from "/__app/bare.js";`, errors.CodeModuleResolution},
		{"computed require of missing module", `const name = "/__app/" + "gone.js"; require(name);`, errors.CodeModuleResolution},
		{"syntax error", `import x from "/__app/broken.js";`, errors.CodeModuleCompile},
		{"entry syntax error", `export const = 1;`, errors.CodeModuleCompile},
		{"module throws", `import "/__app/throws.js";`, errors.CodeScriptEvaluation},
		{"entry throws", `null.x;`, errors.CodeScriptEvaluation},
	}
	e := newTestEngine(fsys)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.Render(context.Background(), Input{Script: tt.script})
			if err == nil {
				t.Fatal("Render() error = nil")
			}
			if !errors.Is(err, errors.New(tt.code)) {
				t.Fatalf("Render() error = %v, want code %s", err, tt.code)
			}
		})
	}
}

func TestRender_ErrorLocation(t *testing.T) {
	fsys := fstest.MapFS{
		"__app/throws.js": {Data: []byte("export const x = 1;\nthrow new Error(\"boom\");\n")},
	}
	_, err := newTestEngine(fsys).Render(context.Background(), Input{Script: `import "/__app/throws.js";`})
	var de *errors.DudukError
	if !errors.As(err, &de) {
		t.Fatalf("Render() error = %v, want a DudukError", err)
	}
	if de.Code != errors.CodeScriptEvaluation {
		t.Errorf("Code = %s, want %s", de.Code, errors.CodeScriptEvaluation)
	}
	if de.Location == nil || de.Location.File != "/__app/throws.js" || de.Location.Line == 0 {
		t.Errorf("Location = %v, want a position in /__app/throws.js", de.Location)
	}
}

func TestRender_RequireInsideString(t *testing.T) {
	fsys := fstest.MapFS{
		"__app/hint.js": {Data: []byte(`export const hint = 'call require("lodash") to load';`)},
	}
	got := render(t, newTestEngine(fsys), Input{
		Script: `
import { hint } from "/__app/hint.js";
const doc = "see require('./missing.js')";
document.body.append(hint.startsWith("call require") && doc.length > 0 ? "linked" : "wrong");`,
	})
	if got != "linked" {
		t.Fatalf("Render() = %q, want %q", got, "linked")
	}
}

func TestScanImports(t *testing.T) {
	got, err := scanImports("/__app/entry.js", `
import a from "./a.js";
export * from "/__app/b.js";
const c = require("./c.js");
const text = 'require("./not-a-dep.js")';
import("./lazy.js");
import again from "./a.js";
`)
	if err != nil {
		t.Fatalf("scanImports() error = %v", err)
	}
	sort.Strings(got)
	want := []string{"./a.js", "./c.js", "/__app/b.js"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("scanImports() = %v, want %v", got, want)
	}
}

func TestRender_Location(t *testing.T) {
	got := render(t, newTestEngine(fstest.MapFS{}), Input{
		URL: "https://example.com:8443/blog/post?x=1#top",
		Script: `
location.href = "https://evil.example/";
location.assign("https://evil.example/");
location.replace("https://evil.example/");
location.reload();
window.location = "/elsewhere";
history.pushState({}, "", "/pushed");
history.replaceState({}, "", "/replaced");
document.body.append([location.href, location.pathname, location.search, location.hash, location.host, location.origin, String(location)].join(" "));`,
	})
	want := "https://example.com:8443/blog/post?x=1#top /blog/post ?x=1 #top example.com:8443 https://example.com:8443 https://example.com:8443/blog/post?x=1#top"
	if got != want {
		t.Fatalf("Render() = %q, want %q", got, want)
	}
}

func TestRender_DefaultsAndInertGlobals(t *testing.T) {
	got := render(t, newTestEngine(fstest.MapFS{}), Input{
		Script: `
let settled = false;
fetch("https://example.com/").then(() => { settled = true; });
setTimeout(() => { settled = true; }, 0);
console.log("rendering", 1);
document.body.append([location.href, navigator.languages.length, typeof __app, settled].join(" "));`,
	})
	if got != "https://localhost/ 0 object false" {
		t.Fatalf("Render() = %q", got)
	}
}

func TestRender_Lifecycle(t *testing.T) {
	fsys := fstest.MapFS{
		"__app/greet.js": {Data: []byte(`
export const log = [];
export default class Greet extends HTMLElement {
  static get observedAttributes() { return ["name"]; }
  constructor() {
    super();
    log.push("constructed");
  }
  attributeChangedCallback(name, oldValue, newValue) {
    log.push(name + ":" + String(oldValue) + "=" + String(newValue));
  }
  connectedCallback() {
    log.push("connected");
    if (!this.shadowRoot) {
      this.attachShadow({mode: "open"}).innerHTML = "<b>" + this.getAttribute("name") + "</b>";
    }
  }
  disconnectedCallback() {
    log.push("disconnected");
  }
}`)},
	}
	got := render(t, newTestEngine(fsys), Input{
		Markup: `<x-greet name="World" title="ignored"></x-greet><div id="box"></div>`,
		Script: `
import Greet, {log} from "/__app/greet.js";
customElements.define("x-greet", Greet);
const el = document.querySelector("x-greet");
el.setAttribute("name", "Go");
el.setAttribute("title", "still ignored");
document.getElementById("box").appendChild(el);
const made = document.createElement("x-greet");
made.setAttribute("name", "New");
document.body.append(made);
made.remove();
document.body.append(log.join("|"));`,
	})
	want := `<div id="box"><x-greet name="Go" title="still ignored"><template shadowrootmode="open"><b>World</b></template></x-greet></div>` +
		`constructed|name:null=World|connected|name:World=Go|disconnected|connected|constructed|name:null=New|connected|disconnected`
	if got != want {
		t.Fatalf("Render() =\n%s\nwant\n%s", got, want)
	}
}

func TestRender_FailingComponentIsLogged(t *testing.T) {
	fsys := fstest.MapFS{
		"__app/bad.js": {Data: []byte(`export default class extends HTMLElement {
  constructor() { super(); throw new Error("constructor failed"); }
}`)},
	}
	got := render(t, newTestEngine(fsys), Input{
		Markup: `<x-bad></x-bad>`,
		Script: `import Bad from "/__app/bad.js"; customElements.define("x-bad", Bad);`,
	})
	if got != `<x-bad></x-bad>` {
		t.Fatalf("Render() = %q", got)
	}
}

func TestRender_ClosedShadowRootIsNotSerialized(t *testing.T) {
	fsys := fstest.MapFS{
		"__app/closed.js": {Data: []byte(`export default class extends HTMLElement {
  constructor() { super(); this.attachShadow({mode: "closed"}).innerHTML = "secret"; }
}`)},
	}
	got := render(t, newTestEngine(fsys), Input{
		Markup: `<x-closed>light</x-closed>`,
		Script: `import C from "/__app/closed.js"; customElements.define("x-closed", C);
document.body.append(String(document.querySelector("x-closed").shadowRoot));`,
	})
	if got != `<x-closed>light</x-closed>null` {
		t.Fatalf("Render() = %q", got)
	}
}

func TestRender_TemplateContent(t *testing.T) {
	fsys := fstest.MapFS{
		"__app/card.js": {Data: []byte(`
const tpl = document.createElement("template");
tpl.innerHTML = "<style>p{color:red}</style><p part=body><slot></slot></p>";
export default class extends HTMLElement {
  constructor() {
    super();
    this.attachShadow({mode: "open"}).appendChild(tpl.content.cloneNode(true));
  }
}`)},
	}
	got := render(t, newTestEngine(fsys), Input{
		Markup: `<x-card>hello</x-card>`,
		Script: `import Card from "/__app/card.js"; customElements.define("x-card", Card);`,
	})
	want := `<x-card><template shadowrootmode="open"><style>p{color:red}</style><p part="body"><slot></slot></p></template>hello</x-card>`
	if got != want {
		t.Fatalf("Render() = %q, want %q", got, want)
	}
}

func TestRender_DOMSurface(t *testing.T) {
	got := render(t, newTestEngine(fstest.MapFS{}), Input{
		Markup: `<ul class="list"><li data-user-id="7">a</li><li>b</li></ul>`,
		Script: `
const ul = document.querySelector("ul.list");
const first = ul.firstElementChild;
first.dataset.selected = "yes";
first.classList.add("active", "first");
first.classList.remove("first");
ul.lastElementChild.replaceWith("text");
const out = [
  first.dataset.userId,
  first.className,
  ul.children.length,
  ul.childNodes.length,
  document.getElementsByTagName("li").length,
  first.matches("li.active"),
  first.closest("ul") === ul,
  first.tagName,
  document.body.contains(first),
  first.nodeType,
  ul.textContent,
];
document.body.append(out.join(","));`,
	})
	want := `<ul class="list"><li data-user-id="7" data-selected="yes" class="active">a</li>text</ul>7,active,1,2,1,true,true,LI,true,1,atext`
	if got != want {
		t.Fatalf("Render() =\n%s\nwant\n%s", got, want)
	}
}

func TestRender_Interrupted(t *testing.T) {
	t.Run("timeout", func(t *testing.T) {
		e := newTestEngine(fstest.MapFS{}, WithTimeout(50*time.Millisecond))
		_, err := e.Render(context.Background(), Input{Script: `for (;;) {}`})
		if !errors.Is(err, errors.New(errors.CodeRenderInterrupted)) {
			t.Fatalf("Render() error = %v, want %s", err, errors.CodeRenderInterrupted)
		}
	})
	t.Run("canceled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := newTestEngine(fstest.MapFS{}).Render(ctx, Input{Script: `1`})
		if !errors.Is(err, errors.New(errors.CodeRenderInterrupted)) {
			t.Fatalf("Render() error = %v, want %s", err, errors.CodeRenderInterrupted)
		}
	})
	t.Run("inside a component callback", func(t *testing.T) {
		fsys := fstest.MapFS{
			"__app/spin.js": {Data: []byte(`export default class extends HTMLElement {
  connectedCallback() { for (;;) {} }
}`)},
		}
		e := newTestEngine(fsys, WithTimeout(50*time.Millisecond))
		_, err := e.Render(context.Background(), Input{
			Markup: `<x-spin></x-spin>`,
			Script: `import Spin from "/__app/spin.js"; customElements.define("x-spin", Spin);`,
		})
		if !errors.Is(err, errors.New(errors.CodeRenderInterrupted)) {
			t.Fatalf("Render() error = %v, want %s", err, errors.CodeRenderInterrupted)
		}
	})
}

type recordingObserver struct {
	mu      sync.Mutex
	renders int
	failed  int
	cached  int
	fresh   int
}

func (o *recordingObserver) ObserveRender(_ time.Duration, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.renders++
	if err != nil {
		o.failed++
	}
}

func (o *recordingObserver) ObserveModule(cached bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if cached {
		o.cached++
	} else {
		o.fresh++
	}
}

func TestEngine_ProgramCache(t *testing.T) {
	obs := &recordingObserver{}
	e := newTestEngine(componentFS(), WithObserver(obs))
	in := Input{
		Markup: `<my-component></my-component>`,
		Script: `import C from "/__app/my-component.js"; customElements.define("my-component", C);`,
	}

	first := render(t, e, in)
	second := render(t, e, in)
	if first != second {
		t.Fatalf("renders differ:\n%s\n%s", first, second)
	}
	if obs.renders != 2 || obs.failed != 0 {
		t.Errorf("renders = %d, failed = %d", obs.renders, obs.failed)
	}
	// entry, my-component.js and something.js
	if obs.fresh != 3 || obs.cached != 3 {
		t.Errorf("fresh = %d, cached = %d, want 3 and 3", obs.fresh, obs.cached)
	}
	if e.Programs().Len() != 3 {
		t.Errorf("Programs().Len() = %d, want 3", e.Programs().Len())
	}

	e.Programs().Purge()
	if e.Programs().Len() != 0 {
		t.Errorf("Len() after Purge = %d", e.Programs().Len())
	}
}

func TestEngine_ConcurrentRenders(t *testing.T) {
	e := newTestEngine(componentFS())
	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out, err := e.Render(context.Background(), Input{
				Markup: `<my-component></my-component>`,
				Script: `import C from "/__app/my-component.js"; customElements.define("my-component", C);`,
			})
			if err == nil && !strings.Contains(out, `shadowrootmode="open"`) {
				err = errors.Newf(errors.CategoryRender, "missing shadow root in %q", out)
			}
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Error(err)
		}
	}
}

func TestResolve(t *testing.T) {
	tests := []struct {
		importer, spec, want string
		wantErr              bool
	}{
		{"/__render.js", "/__app/a.js", "/__app/a.js", false},
		{"/__app/routes/page.js", "./x.js", "/__app/routes/x.js", false},
		{"/__app/routes/page.js", "../lib/x.js", "/__app/lib/x.js", false},
		{"/__app/a.js", "/__app/../__app/./b.js", "/__app/b.js", false},
		{"/__app/a.js", "lit", "", true},
	}
	for _, tt := range tests {
		got, err := resolve(tt.importer, tt.spec)
		if (err != nil) != tt.wantErr {
			t.Errorf("resolve(%q, %q) error = %v", tt.importer, tt.spec, err)
			continue
		}
		if got != tt.want {
			t.Errorf("resolve(%q, %q) = %q, want %q", tt.importer, tt.spec, got, tt.want)
		}
	}
}

func TestCustomElementsDefine_Validation(t *testing.T) {
	got := render(t, newTestEngine(fstest.MapFS{}), Input{
		Script: `
class A extends HTMLElement {}
const results = [];
for (const [name, ctor] of [["nodash", A], ["x-a", A], ["x-a", class extends HTMLElement {}], ["x-b", A], ["x-c", 42]]) {
  try { customElements.define(name, ctor); results.push("ok"); } catch (e) { results.push("err"); }
}
try { new HTMLElement(); results.push("ok"); } catch (e) { results.push("illegal"); }
results.push(customElements.get("x-a") === A);
document.body.append(results.join(","));`,
	})
	if got != "err,ok,err,err,err,illegal,true" {
		t.Fatalf("Render() = %q", got)
	}
}
