package ssr

import (
	"encoding/json"
	"log/slog"
	"net/url"

	"github.com/dop251/goja"

	"github.com/duduk-dev/duduk/internal/errors"
)

// DefaultURL is the location of renders that are given none.
const DefaultURL = "https://localhost/"

// userAgent is what navigator.userAgent reports.
const userAgent = "Mozilla/5.0 (compatible; duduk)"

// installWindow binds the browser globals a component can rely on. The
// runtime's global object doubles as window.
func (s *scope) installWindow(in Input) error {
	vm := s.vm
	global := vm.GlobalObject()

	s.document = vm.NewObject()
	_ = s.document.SetPrototype(s.protos.document)
	s.bind(s.doc.Root(), s.document)

	for _, name := range []string{"window", "self"} {
		if err := global.Set(name, global); err != nil {
			return err
		}
	}
	if err := s.readOnly(global, "document", s.document); err != nil {
		return err
	}

	loc, err := s.location(in.URL)
	if err != nil {
		return err
	}
	if err := s.readOnly(global, "location", loc); err != nil {
		return err
	}
	if err := global.Set("history", s.history()); err != nil {
		return err
	}
	if err := global.Set("navigator", s.navigator(in.Languages)); err != nil {
		return err
	}
	if err := global.Set("customElements", s.registry.object()); err != nil {
		return err
	}
	if err := global.Set("console", s.consoleObject()); err != nil {
		return err
	}

	// fetch never resolves: renders must not perform network I/O.
	inert := vm.NewObject()
	chain := func(goja.FunctionCall) goja.Value { return inert }
	_ = inert.Set("then", chain)
	_ = inert.Set("catch", chain)
	_ = inert.Set("finally", chain)
	if err := global.Set("fetch", func(goja.FunctionCall) goja.Value { return inert }); err != nil {
		return err
	}

	// Timers are accepted and never fire; the render ends when the
	// entry module has been evaluated.
	var timers int64
	schedule := func(goja.FunctionCall) goja.Value {
		timers++
		return vm.ToValue(timers)
	}
	noop := func(goja.FunctionCall) goja.Value { return goja.Undefined() }
	for name, fn := range map[string]func(goja.FunctionCall) goja.Value{
		"setTimeout":            schedule,
		"setInterval":           schedule,
		"requestAnimationFrame": schedule,
		"requestIdleCallback":   schedule,
		"clearTimeout":          noop,
		"clearInterval":         noop,
		"cancelAnimationFrame":  noop,
		"cancelIdleCallback":    noop,
	} {
		if err := global.Set(name, fn); err != nil {
			return err
		}
	}

	return s.installGlobals(in.Globals)
}

// installGlobals binds the injected state as window.__app. It goes
// through JSON so scripts see plain objects and arrays.
func (s *scope) installGlobals(globals any) error {
	if globals == nil {
		globals = map[string]any{}
	}
	b, err := json.Marshal(globals)
	if err != nil {
		return errors.New(errors.CodeScriptEvaluation).WithDetail("encoding injected globals").Wrap(err)
	}
	parse, ok := goja.AssertFunction(s.vm.Get("JSON").ToObject(s.vm).Get("parse"))
	if !ok {
		return errors.New(errors.CodeScriptEvaluation).WithDetail("JSON.parse is not available")
	}
	v, err := parse(goja.Undefined(), s.vm.ToValue(string(b)))
	if err != nil {
		return errors.New(errors.CodeScriptEvaluation).WithDetail("decoding injected globals").Wrap(err)
	}
	return s.vm.GlobalObject().Set("__app", v)
}

// readOnly defines a global accessor whose setter ignores writes.
func (s *scope) readOnly(obj *goja.Object, name string, v goja.Value) error {
	get := s.vm.ToValue(func(goja.FunctionCall) goja.Value { return v })
	set := s.vm.ToValue(func(goja.FunctionCall) goja.Value { return goja.Undefined() })
	return obj.DefineAccessorProperty(name, get, set, goja.FLAG_FALSE, goja.FLAG_TRUE)
}

// location reflects the request URL. Every property is read-only and the
// navigation methods do nothing, so the URL stays fixed for the render.
func (s *scope) location(raw string) (*goja.Object, error) {
	if raw == "" {
		raw = DefaultURL
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, errors.New(errors.CodeScriptEvaluation).WithDetailf("invalid render URL %q", raw).Wrap(err)
	}
	if u.Path == "" {
		u.Path = "/"
	}
	href := u.String()
	origin := u.Scheme + "://" + u.Host
	search := ""
	if u.RawQuery != "" {
		search = "?" + u.RawQuery
	}
	hash := ""
	if u.Fragment != "" {
		hash = "#" + u.EscapedFragment()
	}

	loc := s.vm.NewObject()
	for name, value := range map[string]string{
		"href":     href,
		"protocol": u.Scheme + ":",
		"host":     u.Host,
		"hostname": u.Hostname(),
		"port":     u.Port(),
		"pathname": u.EscapedPath(),
		"search":   search,
		"hash":     hash,
		"origin":   origin,
	} {
		if err := s.readOnly(loc, name, s.vm.ToValue(value)); err != nil {
			return nil, err
		}
	}
	noop := func(goja.FunctionCall) goja.Value { return goja.Undefined() }
	_ = loc.Set("assign", noop)
	_ = loc.Set("replace", noop)
	_ = loc.Set("reload", noop)
	_ = loc.Set("toString", func(goja.FunctionCall) goja.Value { return s.vm.ToValue(href) })
	return loc, nil
}

func (s *scope) history() *goja.Object {
	h := s.vm.NewObject()
	noop := func(goja.FunctionCall) goja.Value { return goja.Undefined() }
	for _, name := range []string{"pushState", "replaceState", "back", "forward", "go"} {
		_ = h.Set(name, noop)
	}
	_ = s.readOnly(h, "length", s.vm.ToValue(1))
	_ = s.readOnly(h, "state", goja.Null())
	return h
}

func (s *scope) navigator(languages []string) *goja.Object {
	items := make([]any, 0, len(languages))
	for _, l := range languages {
		items = append(items, l)
	}
	langs := s.vm.NewArray(items...)
	language := ""
	if len(languages) > 0 {
		language = languages[0]
	}

	nav := s.vm.NewObject()
	_ = s.readOnly(nav, "languages", langs)
	_ = s.readOnly(nav, "language", s.vm.ToValue(language))
	_ = s.readOnly(nav, "userAgent", s.vm.ToValue(userAgent))
	_ = s.readOnly(nav, "onLine", s.vm.ToValue(false))
	return nav
}

func (s *scope) consoleObject() *goja.Object {
	c := s.vm.NewObject()
	for name, level := range map[string]slog.Level{
		"debug": slog.LevelDebug,
		"log":   slog.LevelDebug,
		"info":  slog.LevelInfo,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
	} {
		_ = c.Set(name, s.console(level))
	}
	return c
}
