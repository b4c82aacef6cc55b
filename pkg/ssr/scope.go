package ssr

import (
	"context"
	"log/slog"
	"strings"

	"github.com/dop251/goja"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/duduk-dev/duduk/internal/errors"
	"github.com/duduk-dev/duduk/pkg/dom"
)

// prototypes of the DOM interfaces exposed to scripts.
type prototypes struct {
	eventTarget   *goja.Object
	node          *goja.Object
	element       *goja.Object
	htmlElement   *goja.Object
	template      *goja.Object
	style         *goja.Object
	slot          *goja.Object
	characterData *goja.Object
	text          *goja.Object
	comment       *goja.Object
	fragment      *goja.Object
	shadowRoot    *goja.Object
	document      *goja.Object
}

// scope is the arena of one render: a runtime, a document, the
// node/object bindings between them and the custom element registry.
// Nothing in a scope outlives the render.
type scope struct {
	engine *Engine
	vm     *goja.Runtime
	doc    *dom.Document
	logger *slog.Logger
	linker *linker

	protos   prototypes
	document *goja.Object

	objects map[*html.Node]*goja.Object
	nodes   map[*goja.Object]*html.Node

	// Template content views wrap the template node itself.
	views     map[*html.Node]*goja.Object
	viewNodes map[*goja.Object]*html.Node

	registry *registry
	tags     map[string]struct{}

	interrupted error
}

func newScope(e *Engine, doc *dom.Document, logger *slog.Logger) *scope {
	s := &scope{
		engine:    e,
		vm:        goja.New(),
		doc:       doc,
		logger:    logger,
		objects:   make(map[*html.Node]*goja.Object),
		nodes:     make(map[*goja.Object]*html.Node),
		views:     make(map[*html.Node]*goja.Object),
		viewNodes: make(map[*goja.Object]*html.Node),
		tags:      make(map[string]struct{}),
	}
	s.linker = newLinker(s, e.fsys)
	s.registry = newRegistry(s)
	return s
}

// isRegistered reports whether a tag was defined during this render.
func (s *scope) isRegistered(tag string) bool {
	_, ok := s.tags[tag]
	return ok
}

// bind makes obj the script object of n. Earlier objects keep resolving
// to n, so references taken before an upgrade stay usable.
func (s *scope) bind(n *html.Node, obj *goja.Object) {
	s.objects[n] = obj
	s.nodes[obj] = n
}

// wrap returns the script object of n, creating it on first use.
func (s *scope) wrap(n *html.Node) goja.Value {
	if n == nil {
		return goja.Null()
	}
	if obj, ok := s.objects[n]; ok {
		return obj
	}
	obj := s.vm.NewObject()
	_ = obj.SetPrototype(s.protoFor(n))
	s.bind(n, obj)
	return obj
}

// contentView returns the content fragment of a template element.
func (s *scope) contentView(n *html.Node) *goja.Object {
	if v, ok := s.views[n]; ok {
		return v
	}
	v := s.vm.NewObject()
	_ = v.SetPrototype(s.protos.fragment)
	s.views[n] = v
	s.viewNodes[v] = n
	return v
}

func (s *scope) protoFor(n *html.Node) *goja.Object {
	switch n.Type {
	case html.ElementNode:
		if n.Namespace != "" {
			return s.protos.element
		}
		switch n.DataAtom {
		case atom.Template:
			return s.protos.template
		case atom.Style:
			return s.protos.style
		case atom.Slot:
			return s.protos.slot
		}
		return s.protos.htmlElement
	case html.TextNode:
		return s.protos.text
	case html.CommentNode:
		return s.protos.comment
	case html.DocumentNode:
		if n == s.doc.Root() {
			return s.protos.document
		}
		if _, ok := s.doc.ShadowRootFor(n); ok {
			return s.protos.shadowRoot
		}
		return s.protos.fragment
	}
	return s.protos.node
}

// target is the node a DOM method operates on. view marks a template
// content fragment, which operates on the template's children.
type target struct {
	n    *html.Node
	view bool
}

// this resolves the receiver of a DOM call or throws TypeError.
func (s *scope) this(v goja.Value) target {
	if obj, ok := v.(*goja.Object); ok {
		if n, ok := s.nodes[obj]; ok {
			return target{n: n}
		}
		if n, ok := s.viewNodes[obj]; ok {
			return target{n: n, view: true}
		}
	}
	panic(s.vm.NewTypeError("Illegal invocation"))
}

// node resolves a node argument, or nil for null and undefined. A
// template content view resolves to its template.
func (s *scope) node(v goja.Value) *html.Node {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return nil
	}
	return s.this(v).n
}

// insertable resolves a node about to be inserted. Inserting a template
// content view moves the template contents into a fresh fragment.
func (s *scope) insertable(v goja.Value) *html.Node {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		panic(s.vm.NewTypeError("parameter 1 is not of type 'Node'"))
	}
	t := s.this(v)
	if !t.view {
		return t.n
	}
	frag := dom.NewFragment()
	for _, c := range dom.RemoveChildren(t.n) {
		frag.AppendChild(c)
	}
	return frag
}

// nodeOrText converts append-style arguments: strings become text nodes.
func (s *scope) nodeOrText(v goja.Value) *html.Node {
	if obj, ok := v.(*goja.Object); ok {
		_, isNode := s.nodes[obj]
		_, isView := s.viewNodes[obj]
		if isNode || isView {
			return s.insertable(v)
		}
	}
	return &html.Node{Type: html.TextNode, Data: v.String()}
}

// throw raises err as a script exception.
func (s *scope) throw(err error) {
	panic(s.vm.NewGoError(err))
}

// call invokes a component callback. Exceptions are logged, never
// propagated, except an interrupt, which is re-armed so the render stops.
func (s *scope) call(what string, fn goja.Callable, this goja.Value, args ...goja.Value) {
	if _, err := fn(this, args...); err != nil {
		s.report(what, err)
	}
}

func (s *scope) report(what string, err error) {
	var ie *goja.InterruptedError
	if errors.As(err, &ie) {
		if s.interrupted == nil {
			s.interrupted = err
		}
		s.vm.Interrupt(ie.Value())
		return
	}
	s.logger.Warn("component callback failed", "callback", what, "error", err)
}

// method defines a function property on proto.
func (s *scope) method(proto *goja.Object, name string, fn func(call goja.FunctionCall) goja.Value) {
	_ = proto.DefineDataProperty(name, s.vm.ToValue(fn), goja.FLAG_TRUE, goja.FLAG_TRUE, goja.FLAG_FALSE)
}

// accessor defines a getter and optional setter on proto. The receiver
// is resolved to its node.
func (s *scope) accessor(proto *goja.Object, name string, get func(t target) goja.Value, set func(t target, v goja.Value)) {
	getter := s.vm.ToValue(func(call goja.FunctionCall) goja.Value {
		return get(s.this(call.This))
	})
	var setter goja.Value
	if set != nil {
		setter = s.vm.ToValue(func(call goja.FunctionCall) goja.Value {
			set(s.this(call.This), call.Argument(0))
			return goja.Undefined()
		})
	}
	_ = proto.DefineAccessorProperty(name, getter, setter, goja.FLAG_TRUE, goja.FLAG_FALSE)
}

// array converts nodes to a script array.
func (s *scope) array(nodes []*html.Node) goja.Value {
	items := make([]any, 0, len(nodes))
	for _, n := range nodes {
		items = append(items, s.wrap(n))
	}
	return s.vm.NewArray(items...)
}

// stringOrNull returns a string value, or null when absent.
func (s *scope) stringOrNull(v string, ok bool) goja.Value {
	if !ok {
		return goja.Null()
	}
	return s.vm.ToValue(v)
}

func (s *scope) console(level slog.Level) func(call goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		args := make([]string, 0, len(call.Arguments))
		for _, a := range call.Arguments {
			args = append(args, a.String())
		}
		s.logger.Log(context.Background(), level, strings.Join(args, " "), "source", "console")
		return goja.Undefined()
	}
}
