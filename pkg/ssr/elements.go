package ssr

import (
	"regexp"
	"strings"

	"github.com/dop251/goja"
	"golang.org/x/net/html"

	"github.com/duduk-dev/duduk/internal/errors"
	"github.com/duduk-dev/duduk/pkg/dom"
)

var customElementName = regexp.MustCompile(`^[a-z][a-z0-9._\x{b7}\x{c0}-\x{10ffff}]*-[a-z0-9._\-\x{b7}\x{c0}-\x{10ffff}]*$`)

// definition is one customElements.define call. Callbacks are read from
// the prototype once, at definition time.
type definition struct {
	name     string
	ctor     *goja.Object
	proto    *goja.Object
	observed map[string]bool

	connected        goja.Callable
	disconnected     goja.Callable
	attributeChanged goja.Callable
}

// registry is the custom element registry of one render.
type registry struct {
	s        *scope
	defs     map[string]*definition
	byProto  map[*goja.Object]*definition
	byCtor   map[*goja.Object]*definition
	upgraded map[*html.Node]*definition
	failed   map[*html.Node]bool
	waiting  map[string][]func(any)

	// pending is the element being upgraded; the HTMLElement constructor
	// binds to it instead of creating a new element.
	pending *html.Node
}

func newRegistry(s *scope) *registry {
	return &registry{
		s:        s,
		defs:     make(map[string]*definition),
		byProto:  make(map[*goja.Object]*definition),
		byCtor:   make(map[*goja.Object]*definition),
		upgraded: make(map[*html.Node]*definition),
		failed:   make(map[*html.Node]bool),
		waiting:  make(map[string][]func(any)),
	}
}

func (r *registry) object() *goja.Object {
	vm := r.s.vm
	o := vm.NewObject()
	_ = o.Set("define", r.define)
	_ = o.Set("get", func(call goja.FunctionCall) goja.Value {
		if d := r.defs[strings.ToLower(call.Argument(0).String())]; d != nil {
			return d.ctor
		}
		return goja.Undefined()
	})
	_ = o.Set("whenDefined", func(call goja.FunctionCall) goja.Value {
		name := strings.ToLower(call.Argument(0).String())
		p, resolve, _ := vm.NewPromise()
		if d := r.defs[name]; d != nil {
			resolve(d.ctor)
		} else {
			r.waiting[name] = append(r.waiting[name], resolve)
		}
		return vm.ToValue(p)
	})
	_ = o.Set("upgrade", func(call goja.FunctionCall) goja.Value {
		if n := r.s.node(call.Argument(0)); n != nil {
			r.upgradeTree(n)
		}
		return goja.Undefined()
	})
	return o
}

func (r *registry) define(call goja.FunctionCall) goja.Value {
	vm := r.s.vm
	name := strings.ToLower(call.Argument(0).String())
	if !customElementName.MatchString(name) {
		panic(vm.NewTypeError("customElements.define: %q is not a valid custom element name", name))
	}
	if _, ok := r.defs[name]; ok {
		panic(vm.NewTypeError("customElements.define: %q has already been defined", name))
	}
	ctor, ok := call.Argument(1).(*goja.Object)
	if _, isFunc := goja.AssertFunction(call.Argument(1)); !ok || !isFunc {
		panic(vm.NewTypeError("customElements.define: constructor is not a function"))
	}
	if _, ok := r.byCtor[ctor]; ok {
		panic(vm.NewTypeError("customElements.define: constructor has already been used"))
	}
	proto, ok := ctor.Get("prototype").(*goja.Object)
	if !ok {
		panic(vm.NewTypeError("customElements.define: prototype is not an object"))
	}

	d := &definition{name: name, ctor: ctor, proto: proto, observed: make(map[string]bool)}
	d.connected = callback(proto, "connectedCallback")
	d.disconnected = callback(proto, "disconnectedCallback")
	d.attributeChanged = callback(proto, "attributeChangedCallback")
	if d.attributeChanged != nil {
		if v := ctor.Get("observedAttributes"); v != nil && !goja.IsUndefined(v) && !goja.IsNull(v) {
			var names []string
			if err := vm.ExportTo(v, &names); err != nil {
				panic(vm.NewTypeError("customElements.define: observedAttributes is not iterable"))
			}
			for _, a := range names {
				d.observed[strings.ToLower(a)] = true
			}
		}
	}

	r.defs[name] = d
	r.byProto[proto] = d
	r.byCtor[ctor] = d
	r.s.tags[name] = struct{}{}

	var candidates []*html.Node
	r.s.walkShadowIncluding(r.s.doc.Root(), func(n *html.Node) {
		if n.Type == html.ElementNode && n.Namespace == "" && n.Data == name && r.upgraded[n] == nil {
			candidates = append(candidates, n)
		}
	})
	for _, n := range candidates {
		r.upgrade(n, d)
	}

	for _, resolve := range r.waiting[name] {
		resolve(ctor)
	}
	delete(r.waiting, name)
	return goja.Undefined()
}

func callback(proto *goja.Object, name string) goja.Callable {
	fn, ok := goja.AssertFunction(proto.Get(name))
	if !ok {
		return nil
	}
	return fn
}

// construct backs the HTMLElement constructor. this carries the
// prototype of new.target, which identifies the definition.
func (r *registry) construct(call goja.FunctionCall) goja.Value {
	vm := r.s.vm
	this, ok := call.Argument(0).(*goja.Object)
	if !ok {
		panic(vm.NewTypeError("Illegal constructor"))
	}
	d := r.byProto[this.Prototype()]
	if d == nil {
		panic(vm.NewTypeError("Illegal constructor"))
	}

	n := r.pending
	r.pending = nil
	if n == nil {
		n = dom.NewElement(d.name)
		r.upgraded[n] = d
	}
	r.s.bind(n, this)
	return this
}

// create constructs a new element for a defined name.
func (r *registry) create(d *definition) *html.Node {
	obj, err := r.s.vm.New(d.ctor)
	if err != nil {
		var ex *goja.Exception
		if errors.As(err, &ex) {
			panic(ex)
		}
		r.s.report("constructor of "+d.name, err)
		panic(r.s.vm.NewGoError(err))
	}
	n, ok := r.s.nodes[obj]
	if !ok {
		panic(r.s.vm.NewTypeError("custom element constructor for %q did not produce an element", d.name))
	}
	return n
}

// upgrade runs the constructor of d against an existing element, then
// replays its observed attributes and, when connected, connects it.
func (r *registry) upgrade(n *html.Node, d *definition) {
	if r.upgraded[n] != nil || r.failed[n] {
		return
	}
	r.upgraded[n] = d

	prev := r.pending
	r.pending = n
	_, err := r.s.vm.New(d.ctor)
	r.pending = prev
	if err != nil {
		delete(r.upgraded, n)
		r.failed[n] = true
		r.s.report("constructor of "+d.name, err)
		return
	}

	if d.attributeChanged != nil {
		for _, a := range append([]html.Attribute(nil), n.Attr...) {
			if a.Namespace == "" && d.observed[a.Key] {
				r.s.call("attributeChangedCallback", d.attributeChanged, r.s.wrap(n),
					r.s.vm.ToValue(a.Key), goja.Null(), r.s.vm.ToValue(a.Val))
			}
		}
	}
	if d.connected != nil && r.s.doc.IsConnected(n) {
		r.s.call("connectedCallback", d.connected, r.s.wrap(n))
	}
}

// upgradeTree upgrades every defined element in the shadow-including
// subtree of n that is not upgraded yet.
func (r *registry) upgradeTree(n *html.Node) {
	var pending []*html.Node
	r.s.walkShadowIncluding(n, func(c *html.Node) {
		if c.Type == html.ElementNode && r.upgraded[c] == nil && r.defs[c.Data] != nil {
			pending = append(pending, c)
		}
	})
	for _, c := range pending {
		r.upgrade(c, r.defs[c.Data])
	}
}

// connect runs reactions for nodes just inserted: defined elements are
// upgraded and upgraded elements receive connectedCallback.
func (r *registry) connect(nodes []*html.Node) {
	type reaction struct {
		n   *html.Node
		def *definition
		up  bool
	}
	var reactions []reaction
	for _, root := range nodes {
		if !r.s.doc.IsConnected(root) {
			continue
		}
		r.s.walkShadowIncluding(root, func(c *html.Node) {
			if c.Type != html.ElementNode {
				return
			}
			if d := r.upgraded[c]; d != nil {
				if d.connected != nil {
					reactions = append(reactions, reaction{n: c, def: d})
				}
				return
			}
			if d := r.defs[c.Data]; d != nil {
				reactions = append(reactions, reaction{n: c, def: d, up: true})
			}
		})
	}
	for _, re := range reactions {
		if re.up {
			r.upgrade(re.n, re.def)
			continue
		}
		r.s.call("connectedCallback", re.def.connected, r.s.wrap(re.n))
	}
}

// connectedElements lists the upgraded elements with a
// disconnectedCallback under nodes that are currently connected. It is
// called before a removal, disconnect after it.
func (r *registry) connectedElements(nodes ...*html.Node) []*html.Node {
	var out []*html.Node
	for _, root := range nodes {
		if root == nil || !r.s.doc.IsConnected(root) {
			continue
		}
		r.s.walkShadowIncluding(root, func(c *html.Node) {
			if d := r.upgraded[c]; d != nil && d.disconnected != nil {
				out = append(out, c)
			}
		})
	}
	return out
}

func (r *registry) disconnect(elements []*html.Node) {
	for _, n := range elements {
		r.s.call("disconnectedCallback", r.upgraded[n].disconnected, r.s.wrap(n))
	}
}

// attributeChanged fires attributeChangedCallback for an observed name.
func (r *registry) attributeChanged(n *html.Node, name string, old string, hadOld bool, value string, hasValue bool) {
	d := r.upgraded[n]
	if d == nil || d.attributeChanged == nil || !d.observed[name] {
		return
	}
	r.s.call("attributeChangedCallback", d.attributeChanged, r.s.wrap(n),
		r.s.vm.ToValue(name), r.s.stringOrNull(old, hadOld), r.s.stringOrNull(value, hasValue))
}

// walkShadowIncluding visits n and its descendants in shadow-including
// tree order: a host's shadow tree comes right after the host, before
// its children. Template contents are skipped.
func (s *scope) walkShadowIncluding(n *html.Node, fn func(*html.Node)) {
	fn(n)
	if n.Type == html.ElementNode {
		if sr := s.doc.ShadowRootOf(n); sr != nil {
			s.walkShadowIncluding(sr.Node, fn)
		}
		if !dom.IsTemplate(n) {
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				s.walkShadowIncluding(c, fn)
			}
		}
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		s.walkShadowIncluding(c, fn)
	}
}
