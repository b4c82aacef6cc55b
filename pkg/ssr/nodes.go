package ssr

import (
	"strings"

	"github.com/dop251/goja"
	"golang.org/x/net/html"

	"github.com/duduk-dev/duduk/pkg/dom"
)

const (
	svgNamespace    = "http://www.w3.org/2000/svg"
	mathMLNamespace = "http://www.w3.org/1998/Math/MathML"
)

func (s *scope) derive(parent *goja.Object) *goja.Object {
	o := s.vm.NewObject()
	_ = o.SetPrototype(parent)
	return o
}

// installPrototypes builds the DOM interface prototypes and their
// native members. Constructors are attached by the prelude.
func (s *scope) installPrototypes() {
	p := &s.protos
	p.eventTarget = s.vm.NewObject()
	p.node = s.derive(p.eventTarget)
	p.element = s.derive(p.node)
	p.htmlElement = s.derive(p.element)
	p.template = s.derive(p.htmlElement)
	p.style = s.derive(p.htmlElement)
	p.slot = s.derive(p.htmlElement)
	p.characterData = s.derive(p.node)
	p.text = s.derive(p.characterData)
	p.comment = s.derive(p.characterData)
	p.fragment = s.derive(p.node)
	p.shadowRoot = s.derive(p.fragment)
	p.document = s.derive(p.node)

	s.installNode(p.node)
	for _, proto := range []*goja.Object{p.element, p.fragment, p.document} {
		s.installParentNode(proto)
	}
	s.installChildNode(p.element)
	s.installChildNode(p.characterData)
	s.installElement(p.element)
	s.installHTMLElement(p.htmlElement)
	s.installTemplate(p.template)
	s.installSlot(p.slot)
	s.installCharacterData(p.characterData)
	s.installFragment(p.fragment)
	s.installShadowRoot(p.shadowRoot)
	s.installDocument(p.document)
}

// kids returns the child nodes a target exposes. A template element has
// none of its own; its content view has the template's children.
func kids(t target) []*html.Node {
	if dom.IsTemplate(t.n) && !t.view {
		return nil
	}
	return dom.Children(t.n)
}

func elements(nodes []*html.Node) []*html.Node {
	var out []*html.Node
	for _, n := range nodes {
		if n.Type == html.ElementNode {
			out = append(out, n)
		}
	}
	return out
}

func (s *scope) nodeType(t target) int {
	if t.view {
		return 11
	}
	switch t.n.Type {
	case html.ElementNode:
		return 1
	case html.TextNode:
		return 3
	case html.CommentNode:
		return 8
	case html.DoctypeNode:
		return 10
	case html.DocumentNode:
		if t.n == s.doc.Root() {
			return 9
		}
		return 11
	}
	return 0
}

func tagName(n *html.Node) string {
	if n.Namespace == "" {
		return strings.ToUpper(n.Data)
	}
	return n.Data
}

// parentOf returns the script-visible parent: template contents report
// the content view, shadow roots and views report none.
func (s *scope) parentOf(t target) goja.Value {
	if t.view || t.n.Parent == nil {
		return goja.Null()
	}
	if dom.IsTemplate(t.n.Parent) {
		return s.contentView(t.n.Parent)
	}
	return s.wrap(t.n.Parent)
}

func (s *scope) installNode(proto *goja.Object) {
	vm := s.vm
	s.accessor(proto, "nodeType", func(t target) goja.Value {
		return vm.ToValue(s.nodeType(t))
	}, nil)
	s.accessor(proto, "nodeName", func(t target) goja.Value {
		switch s.nodeType(t) {
		case 1:
			return vm.ToValue(tagName(t.n))
		case 3:
			return vm.ToValue("#text")
		case 8:
			return vm.ToValue("#comment")
		case 9:
			return vm.ToValue("#document")
		case 11:
			return vm.ToValue("#document-fragment")
		}
		return vm.ToValue(t.n.Data)
	}, nil)
	s.accessor(proto, "parentNode", s.parentOf, nil)
	s.accessor(proto, "parentElement", func(t target) goja.Value {
		if t.view || t.n.Parent == nil || t.n.Parent.Type != html.ElementNode || dom.IsTemplate(t.n.Parent) {
			return goja.Null()
		}
		return s.wrap(t.n.Parent)
	}, nil)
	s.accessor(proto, "childNodes", func(t target) goja.Value {
		return s.array(kids(t))
	}, nil)
	s.accessor(proto, "firstChild", func(t target) goja.Value {
		if k := kids(t); len(k) > 0 {
			return s.wrap(k[0])
		}
		return goja.Null()
	}, nil)
	s.accessor(proto, "lastChild", func(t target) goja.Value {
		if k := kids(t); len(k) > 0 {
			return s.wrap(k[len(k)-1])
		}
		return goja.Null()
	}, nil)
	s.accessor(proto, "nextSibling", func(t target) goja.Value {
		if t.view {
			return goja.Null()
		}
		return s.wrap(t.n.NextSibling)
	}, nil)
	s.accessor(proto, "previousSibling", func(t target) goja.Value {
		if t.view {
			return goja.Null()
		}
		return s.wrap(t.n.PrevSibling)
	}, nil)
	s.accessor(proto, "isConnected", func(t target) goja.Value {
		return vm.ToValue(!t.view && s.doc.IsConnected(t.n))
	}, nil)
	s.accessor(proto, "ownerDocument", func(t target) goja.Value {
		if t.n == s.doc.Root() {
			return goja.Null()
		}
		return s.document
	}, nil)
	s.accessor(proto, "nodeValue", func(t target) goja.Value {
		if t.n.Type == html.TextNode || t.n.Type == html.CommentNode {
			return vm.ToValue(t.n.Data)
		}
		return goja.Null()
	}, func(t target, v goja.Value) {
		if t.n.Type == html.TextNode || t.n.Type == html.CommentNode {
			t.n.Data = v.String()
		}
	})
	s.accessor(proto, "textContent", func(t target) goja.Value {
		switch {
		case t.n == s.doc.Root():
			return goja.Null()
		case dom.IsTemplate(t.n) && !t.view:
			return vm.ToValue("")
		}
		return vm.ToValue(dom.TextContent(t.n))
	}, func(t target, v goja.Value) {
		if t.n == s.doc.Root() {
			return
		}
		text := ""
		if !goja.IsNull(v) && !goja.IsUndefined(v) {
			text = v.String()
		}
		gone := s.registry.connectedElements(kids(t)...)
		dom.SetTextContent(t.n, text)
		s.registry.disconnect(gone)
	})

	s.method(proto, "appendChild", func(call goja.FunctionCall) goja.Value {
		t := s.this(call.This)
		child := s.insertable(call.Argument(0))
		s.insert(t.n, child, nil)
		return s.wrapInserted(call.Argument(0), child)
	})
	s.method(proto, "insertBefore", func(call goja.FunctionCall) goja.Value {
		t := s.this(call.This)
		child := s.insertable(call.Argument(0))
		s.insert(t.n, child, s.node(call.Argument(1)))
		return s.wrapInserted(call.Argument(0), child)
	})
	s.method(proto, "removeChild", func(call goja.FunctionCall) goja.Value {
		t := s.this(call.This)
		child := s.node(call.Argument(0))
		if child == nil || child.Parent != t.n {
			panic(vm.NewTypeError("NotFoundError: the node to be removed is not a child of this node"))
		}
		s.remove(child)
		return call.Argument(0)
	})
	s.method(proto, "replaceChild", func(call goja.FunctionCall) goja.Value {
		t := s.this(call.This)
		old := s.node(call.Argument(1))
		if old == nil || old.Parent != t.n {
			panic(vm.NewTypeError("NotFoundError: the node to be replaced is not a child of this node"))
		}
		child := s.insertable(call.Argument(0))
		if child != old {
			ref := old.NextSibling
			if ref == child {
				ref = child.NextSibling
			}
			s.remove(old)
			s.insert(t.n, child, ref)
		}
		return call.Argument(1)
	})
	s.method(proto, "cloneNode", func(call goja.FunctionCall) goja.Value {
		t := s.this(call.This)
		deep := call.Argument(0).ToBoolean()
		var clone *html.Node
		if t.view || t.n == s.doc.Root() {
			clone = dom.NewFragment()
			if deep {
				clone = dom.CloneChildren(t.n)
			}
		} else {
			clone = dom.Clone(t.n, deep)
		}
		s.registry.upgradeTree(clone)
		return s.wrap(clone)
	})
	s.method(proto, "contains", func(call goja.FunctionCall) goja.Value {
		t := s.this(call.This)
		other := s.node(call.Argument(0))
		if other == nil {
			return vm.ToValue(false)
		}
		if t.view {
			return vm.ToValue(other != t.n && dom.Contains(t.n, other))
		}
		return vm.ToValue(dom.Contains(t.n, other))
	})
	s.method(proto, "hasChildNodes", func(call goja.FunctionCall) goja.Value {
		return vm.ToValue(len(kids(s.this(call.This))) > 0)
	})
	s.method(proto, "getRootNode", func(call goja.FunctionCall) goja.Value {
		t := s.this(call.This)
		if t.view {
			return call.This
		}
		n := t.n
		for n.Parent != nil {
			if dom.IsTemplate(n.Parent) {
				return s.contentView(n.Parent)
			}
			n = n.Parent
		}
		return s.wrap(n)
	})
	s.method(proto, "isSameNode", func(call goja.FunctionCall) goja.Value {
		return vm.ToValue(s.node(call.This) == s.node(call.Argument(0)))
	})
}

// wrapInserted returns what appendChild and friends hand back: the
// argument itself, which for a moved template content is the view.
func (s *scope) wrapInserted(arg goja.Value, child *html.Node) goja.Value {
	if obj, ok := arg.(*goja.Object); ok {
		if _, isView := s.viewNodes[obj]; isView {
			return obj
		}
	}
	return s.wrap(child)
}

// insert places child under parent before ref and runs the custom
// element reactions for the move.
func (s *scope) insert(parent, child, ref *html.Node) {
	if child == s.doc.Root() {
		panic(s.vm.NewTypeError("HierarchyRequestError: a document cannot be inserted"))
	}
	if _, shadow := s.doc.ShadowRootFor(child); shadow {
		panic(s.vm.NewTypeError("HierarchyRequestError: a shadow root cannot be inserted"))
	}
	gone := s.registry.connectedElements(child)
	inserted, err := s.doc.Insert(parent, child, ref)
	if err != nil {
		s.throw(err)
	}
	s.registry.disconnect(gone)
	s.registry.connect(inserted)
}

// remove detaches n and runs disconnectedCallback below it.
func (s *scope) remove(n *html.Node) {
	gone := s.registry.connectedElements(n)
	dom.Remove(n)
	s.registry.disconnect(gone)
}

// insertAll inserts append-style arguments as one fragment.
func (s *scope) insertAll(parent, ref *html.Node, args []goja.Value) {
	if len(args) == 1 {
		s.insert(parent, s.nodeOrText(args[0]), ref)
		return
	}
	frag := dom.NewFragment()
	for _, a := range args {
		n := s.nodeOrText(a)
		if n == ref {
			ref = ref.NextSibling
		}
		if n.Type == html.DocumentNode {
			for _, c := range dom.RemoveChildren(n) {
				dom.Remove(c)
				frag.AppendChild(c)
			}
			continue
		}
		gone := s.registry.connectedElements(n)
		dom.Remove(n)
		s.registry.disconnect(gone)
		frag.AppendChild(n)
	}
	s.insert(parent, frag, ref)
}

// query runs a selector below a target. A content view searches the
// template's children.
func (s *scope) query(t target, selector string, all bool) []*html.Node {
	if dom.IsTemplate(t.n) && !t.view {
		return nil
	}
	roots := []*html.Node{t.n}
	if t.view {
		roots = roots[:0]
		for _, c := range dom.Children(t.n) {
			if c.Type != html.ElementNode {
				continue
			}
			ok, err := dom.Matches(c, selector)
			if err != nil {
				s.throw(err)
			}
			if ok {
				roots = append(roots, c)
				if !all {
					return []*html.Node{c}
				}
			}
			found, err := dom.QuerySelectorAll(c, selector)
			if err != nil {
				s.throw(err)
			}
			if !all && len(found) > 0 {
				return found[:1]
			}
			roots = append(roots, found...)
		}
		return roots
	}
	if all {
		found, err := dom.QuerySelectorAll(t.n, selector)
		if err != nil {
			s.throw(err)
		}
		return found
	}
	found, err := dom.QuerySelector(t.n, selector)
	if err != nil {
		s.throw(err)
	}
	if found == nil {
		return nil
	}
	return []*html.Node{found}
}

func (s *scope) installParentNode(proto *goja.Object) {
	vm := s.vm
	s.accessor(proto, "children", func(t target) goja.Value {
		return s.array(elements(kids(t)))
	}, nil)
	s.accessor(proto, "childElementCount", func(t target) goja.Value {
		return vm.ToValue(len(elements(kids(t))))
	}, nil)
	s.accessor(proto, "firstElementChild", func(t target) goja.Value {
		if e := elements(kids(t)); len(e) > 0 {
			return s.wrap(e[0])
		}
		return goja.Null()
	}, nil)
	s.accessor(proto, "lastElementChild", func(t target) goja.Value {
		if e := elements(kids(t)); len(e) > 0 {
			return s.wrap(e[len(e)-1])
		}
		return goja.Null()
	}, nil)
	s.method(proto, "querySelector", func(call goja.FunctionCall) goja.Value {
		found := s.query(s.this(call.This), call.Argument(0).String(), false)
		if len(found) == 0 {
			return goja.Null()
		}
		return s.wrap(found[0])
	})
	s.method(proto, "querySelectorAll", func(call goja.FunctionCall) goja.Value {
		return s.array(s.query(s.this(call.This), call.Argument(0).String(), true))
	})
	s.method(proto, "append", func(call goja.FunctionCall) goja.Value {
		if len(call.Arguments) > 0 {
			s.insertAll(s.this(call.This).n, nil, call.Arguments)
		}
		return goja.Undefined()
	})
	s.method(proto, "prepend", func(call goja.FunctionCall) goja.Value {
		t := s.this(call.This)
		if len(call.Arguments) > 0 {
			var ref *html.Node
			if k := kids(t); len(k) > 0 {
				ref = k[0]
			}
			s.insertAll(t.n, ref, call.Arguments)
		}
		return goja.Undefined()
	})
	s.method(proto, "replaceChildren", func(call goja.FunctionCall) goja.Value {
		t := s.this(call.This)
		gone := s.registry.connectedElements(kids(t)...)
		for _, c := range kids(t) {
			dom.Remove(c)
		}
		s.registry.disconnect(gone)
		if len(call.Arguments) > 0 {
			s.insertAll(t.n, nil, call.Arguments)
		}
		return goja.Undefined()
	})
	s.method(proto, "getElementById", func(call goja.FunctionCall) goja.Value {
		found := s.query(s.this(call.This), "[id]", true)
		id := call.Argument(0).String()
		for _, n := range found {
			if v, _ := dom.Attr(n, "id"); v == id {
				return s.wrap(n)
			}
		}
		return goja.Null()
	})
}

func (s *scope) installChildNode(proto *goja.Object) {
	s.method(proto, "remove", func(call goja.FunctionCall) goja.Value {
		t := s.this(call.This)
		if t.n.Parent != nil {
			s.remove(t.n)
		}
		return goja.Undefined()
	})
	s.method(proto, "before", func(call goja.FunctionCall) goja.Value {
		t := s.this(call.This)
		if t.n.Parent != nil && len(call.Arguments) > 0 {
			s.insertAll(t.n.Parent, t.n, call.Arguments)
		}
		return goja.Undefined()
	})
	s.method(proto, "after", func(call goja.FunctionCall) goja.Value {
		t := s.this(call.This)
		if t.n.Parent != nil && len(call.Arguments) > 0 {
			s.insertAll(t.n.Parent, t.n.NextSibling, call.Arguments)
		}
		return goja.Undefined()
	})
	s.method(proto, "replaceWith", func(call goja.FunctionCall) goja.Value {
		t := s.this(call.This)
		parent := t.n.Parent
		if parent == nil {
			return goja.Undefined()
		}
		ref := t.n.NextSibling
		s.remove(t.n)
		if len(call.Arguments) > 0 {
			if ref != nil && ref.Parent != parent {
				ref = nil
			}
			s.insertAll(parent, ref, call.Arguments)
		}
		return goja.Undefined()
	})
}

// setAttribute sets an attribute and fires attributeChangedCallback.
func (s *scope) setAttribute(n *html.Node, name, value string) {
	name = strings.ToLower(name)
	old, had := dom.SetAttr(n, name, value)
	s.registry.attributeChanged(n, name, old, had, value, true)
}

func (s *scope) removeAttribute(n *html.Node, name string) {
	name = strings.ToLower(name)
	if old, had := dom.RemoveAttr(n, name); had {
		s.registry.attributeChanged(n, name, old, true, "", false)
	}
}

func (s *scope) installElement(proto *goja.Object) {
	vm := s.vm
	s.accessor(proto, "tagName", func(t target) goja.Value {
		return vm.ToValue(tagName(t.n))
	}, nil)
	s.accessor(proto, "localName", func(t target) goja.Value {
		return vm.ToValue(t.n.Data)
	}, nil)
	for _, name := range []string{"id", "className", "slot"} {
		attr := name
		if name == "className" {
			attr = "class"
		}
		s.accessor(proto, name, func(t target) goja.Value {
			v, _ := dom.Attr(t.n, attr)
			return vm.ToValue(v)
		}, func(t target, v goja.Value) {
			s.setAttribute(t.n, attr, v.String())
		})
	}
	s.method(proto, "getAttribute", func(call goja.FunctionCall) goja.Value {
		return s.stringOrNull(dom.Attr(s.this(call.This).n, call.Argument(0).String()))
	})
	s.method(proto, "setAttribute", func(call goja.FunctionCall) goja.Value {
		s.setAttribute(s.this(call.This).n, call.Argument(0).String(), call.Argument(1).String())
		return goja.Undefined()
	})
	s.method(proto, "removeAttribute", func(call goja.FunctionCall) goja.Value {
		s.removeAttribute(s.this(call.This).n, call.Argument(0).String())
		return goja.Undefined()
	})
	s.method(proto, "hasAttribute", func(call goja.FunctionCall) goja.Value {
		_, ok := dom.Attr(s.this(call.This).n, call.Argument(0).String())
		return vm.ToValue(ok)
	})
	s.method(proto, "hasAttributes", func(call goja.FunctionCall) goja.Value {
		return vm.ToValue(len(s.this(call.This).n.Attr) > 0)
	})
	s.method(proto, "toggleAttribute", func(call goja.FunctionCall) goja.Value {
		n := s.this(call.This).n
		name := call.Argument(0).String()
		_, has := dom.Attr(n, name)
		want := !has
		if force := call.Argument(1); !goja.IsUndefined(force) {
			want = force.ToBoolean()
		}
		switch {
		case want && !has:
			s.setAttribute(n, name, "")
		case !want && has:
			s.removeAttribute(n, name)
		}
		return vm.ToValue(want)
	})
	s.method(proto, "getAttributeNames", func(call goja.FunctionCall) goja.Value {
		n := s.this(call.This).n
		names := make([]any, 0, len(n.Attr))
		for _, a := range n.Attr {
			names = append(names, a.Key)
		}
		return vm.NewArray(names...)
	})
	s.accessor(proto, "innerHTML", func(t target) goja.Value {
		markup, err := dom.InnerHTML(t.n)
		if err != nil {
			s.throw(err)
		}
		return vm.ToValue(markup)
	}, func(t target, v goja.Value) {
		s.setInnerHTML(t.n, v.String())
	})
	s.accessor(proto, "outerHTML", func(t target) goja.Value {
		markup, err := dom.OuterHTML(t.n)
		if err != nil {
			s.throw(err)
		}
		return vm.ToValue(markup)
	}, nil)
	s.accessor(proto, "nextElementSibling", func(t target) goja.Value {
		for c := t.n.NextSibling; c != nil; c = c.NextSibling {
			if c.Type == html.ElementNode {
				return s.wrap(c)
			}
		}
		return goja.Null()
	}, nil)
	s.accessor(proto, "previousElementSibling", func(t target) goja.Value {
		for c := t.n.PrevSibling; c != nil; c = c.PrevSibling {
			if c.Type == html.ElementNode {
				return s.wrap(c)
			}
		}
		return goja.Null()
	}, nil)
	s.accessor(proto, "shadowRoot", func(t target) goja.Value {
		if sr := s.doc.ShadowRootOf(t.n); sr != nil && sr.Mode == "open" {
			return s.wrap(sr.Node)
		}
		return goja.Null()
	}, nil)
	s.method(proto, "attachShadow", func(call goja.FunctionCall) goja.Value {
		n := s.this(call.This).n
		mode := "open"
		if opts, ok := call.Argument(0).(*goja.Object); ok {
			if m := opts.Get("mode"); m != nil && !goja.IsUndefined(m) {
				mode = m.String()
			}
		}
		sr, err := s.doc.AttachShadow(n, mode)
		if err != nil {
			s.throw(err)
		}
		return s.wrap(sr.Node)
	})
	s.method(proto, "matches", func(call goja.FunctionCall) goja.Value {
		ok, err := dom.Matches(s.this(call.This).n, call.Argument(0).String())
		if err != nil {
			s.throw(err)
		}
		return vm.ToValue(ok)
	})
	s.method(proto, "closest", func(call goja.FunctionCall) goja.Value {
		sel, err := dom.Compile(call.Argument(0).String())
		if err != nil {
			s.throw(err)
		}
		for n := s.this(call.This).n; n != nil && n.Type == html.ElementNode; n = n.Parent {
			if sel.Match(n) {
				return s.wrap(n)
			}
		}
		return goja.Null()
	})
	s.method(proto, "insertAdjacentHTML", func(call goja.FunctionCall) goja.Value {
		n := s.this(call.This).n
		position := strings.ToLower(call.Argument(0).String())
		parent, ref := n, (*html.Node)(nil)
		switch position {
		case "beforebegin":
			parent, ref = n.Parent, n
		case "afterbegin":
			ref = n.FirstChild
		case "beforeend":
		case "afterend":
			parent, ref = n.Parent, n.NextSibling
		default:
			panic(vm.NewTypeError("SyntaxError: invalid position %q", position))
		}
		if parent == nil {
			panic(vm.NewTypeError("NoModificationAllowedError: element has no parent"))
		}
		nodes, err := dom.ParseFragment(parent, call.Argument(1).String())
		if err != nil {
			s.throw(err)
		}
		frag := dom.NewFragment()
		for _, c := range nodes {
			frag.AppendChild(c)
		}
		for _, c := range nodes {
			s.registry.upgradeTree(c)
		}
		s.insert(parent, frag, ref)
		return goja.Undefined()
	})
}

// setInnerHTML replaces the children of n with parsed markup. Defined
// elements in the new markup are upgraded, except in template contents.
func (s *scope) setInnerHTML(n *html.Node, markup string) {
	gone := s.registry.connectedElements(dom.Children(n)...)
	_, added, err := dom.SetInnerHTML(n, markup)
	if err != nil {
		s.throw(err)
	}
	s.registry.disconnect(gone)
	if dom.IsTemplate(n) {
		return
	}
	for _, c := range added {
		s.registry.upgradeTree(c)
	}
}

func (s *scope) installHTMLElement(proto *goja.Object) {
	vm := s.vm
	s.accessor(proto, "dataset", func(t target) goja.Value {
		return vm.NewDynamicObject(&dataset{s: s, n: t.n})
	}, nil)
	s.accessor(proto, "hidden", func(t target) goja.Value {
		_, ok := dom.Attr(t.n, "hidden")
		return vm.ToValue(ok)
	}, func(t target, v goja.Value) {
		if v.ToBoolean() {
			s.setAttribute(t.n, "hidden", "")
		} else {
			s.removeAttribute(t.n, "hidden")
		}
	})
	for _, name := range []string{"title", "lang", "dir"} {
		attr := name
		s.accessor(proto, name, func(t target) goja.Value {
			v, _ := dom.Attr(t.n, attr)
			return vm.ToValue(v)
		}, func(t target, v goja.Value) {
			s.setAttribute(t.n, attr, v.String())
		})
	}
}

func (s *scope) installTemplate(proto *goja.Object) {
	s.accessor(proto, "content", func(t target) goja.Value {
		return s.contentView(t.n)
	}, nil)
	s.accessor(proto, "shadowRootMode", func(t target) goja.Value {
		v, _ := dom.Attr(t.n, dom.ShadowRootModeAttr)
		return s.vm.ToValue(v)
	}, func(t target, v goja.Value) {
		s.setAttribute(t.n, dom.ShadowRootModeAttr, v.String())
	})
}

func (s *scope) installSlot(proto *goja.Object) {
	s.accessor(proto, "name", func(t target) goja.Value {
		v, _ := dom.Attr(t.n, "name")
		return s.vm.ToValue(v)
	}, func(t target, v goja.Value) {
		s.setAttribute(t.n, "name", v.String())
	})
	// Slot assignment needs layout of the composed tree, which is never
	// computed on the server.
	empty := func(goja.FunctionCall) goja.Value { return s.vm.NewArray() }
	s.method(proto, "assignedNodes", empty)
	s.method(proto, "assignedElements", empty)
}

func (s *scope) installCharacterData(proto *goja.Object) {
	s.accessor(proto, "data", func(t target) goja.Value {
		return s.vm.ToValue(t.n.Data)
	}, func(t target, v goja.Value) {
		t.n.Data = v.String()
	})
	s.accessor(proto, "length", func(t target) goja.Value {
		return s.vm.ToValue(len([]rune(t.n.Data)))
	}, nil)
}

func (s *scope) installFragment(proto *goja.Object) {
	s.accessor(proto, "innerHTML", func(t target) goja.Value {
		markup, err := dom.InnerHTML(t.n)
		if err != nil {
			s.throw(err)
		}
		return s.vm.ToValue(markup)
	}, nil)
}

func (s *scope) installShadowRoot(proto *goja.Object) {
	s.accessor(proto, "host", func(t target) goja.Value {
		if sr, ok := s.doc.ShadowRootFor(t.n); ok {
			return s.wrap(sr.Host)
		}
		return goja.Null()
	}, nil)
	s.accessor(proto, "mode", func(t target) goja.Value {
		if sr, ok := s.doc.ShadowRootFor(t.n); ok {
			return s.vm.ToValue(sr.Mode)
		}
		return goja.Undefined()
	}, nil)
	s.accessor(proto, "innerHTML", func(t target) goja.Value {
		markup, err := dom.InnerHTML(t.n)
		if err != nil {
			s.throw(err)
		}
		return s.vm.ToValue(markup)
	}, func(t target, v goja.Value) {
		s.setInnerHTML(t.n, v.String())
	})
	s.accessor(proto, "activeElement", func(target) goja.Value { return goja.Null() }, nil)
}

func (s *scope) installDocument(proto *goja.Object) {
	vm := s.vm
	s.accessor(proto, "documentElement", func(target) goja.Value {
		return s.wrap(s.doc.DocumentElement())
	}, nil)
	s.accessor(proto, "head", func(target) goja.Value { return s.wrap(s.doc.Head()) }, nil)
	s.accessor(proto, "body", func(target) goja.Value { return s.wrap(s.doc.Body()) }, nil)
	s.accessor(proto, "readyState", func(target) goja.Value { return vm.ToValue("complete") }, nil)
	s.accessor(proto, "defaultView", func(target) goja.Value { return vm.GlobalObject() }, nil)
	s.accessor(proto, "activeElement", func(target) goja.Value { return s.wrap(s.doc.Body()) }, nil)

	s.method(proto, "createElement", func(call goja.FunctionCall) goja.Value {
		tag := strings.ToLower(call.Argument(0).String())
		if d := s.registry.defs[tag]; d != nil {
			return s.wrap(s.registry.create(d))
		}
		return s.wrap(dom.NewElement(tag))
	})
	s.method(proto, "createElementNS", func(call goja.FunctionCall) goja.Value {
		tag := call.Argument(1).String()
		switch call.Argument(0).String() {
		case svgNamespace:
			return s.wrap(&html.Node{Type: html.ElementNode, Data: tag, Namespace: "svg"})
		case mathMLNamespace:
			return s.wrap(&html.Node{Type: html.ElementNode, Data: tag, Namespace: "math"})
		}
		tag = strings.ToLower(tag)
		if d := s.registry.defs[tag]; d != nil {
			return s.wrap(s.registry.create(d))
		}
		return s.wrap(dom.NewElement(tag))
	})
	s.method(proto, "createTextNode", func(call goja.FunctionCall) goja.Value {
		return s.wrap(&html.Node{Type: html.TextNode, Data: call.Argument(0).String()})
	})
	s.method(proto, "createComment", func(call goja.FunctionCall) goja.Value {
		return s.wrap(&html.Node{Type: html.CommentNode, Data: call.Argument(0).String()})
	})
	s.method(proto, "createDocumentFragment", func(goja.FunctionCall) goja.Value {
		return s.wrap(dom.NewFragment())
	})
	s.method(proto, "importNode", func(call goja.FunctionCall) goja.Value {
		t := s.this(call.Argument(0))
		deep := call.Argument(1).ToBoolean()
		var clone *html.Node
		if t.view {
			clone = dom.NewFragment()
			if deep {
				clone = dom.CloneChildren(t.n)
			}
		} else {
			clone = dom.Clone(t.n, deep)
		}
		s.registry.upgradeTree(clone)
		return s.wrap(clone)
	})
	s.method(proto, "adoptNode", func(call goja.FunctionCall) goja.Value {
		if n := s.node(call.Argument(0)); n != nil && n.Parent != nil {
			s.remove(n)
		}
		return call.Argument(0)
	})
}

// dataset maps camelCase keys to data-* attributes.
type dataset struct {
	s *scope
	n *html.Node
}

func datasetAttr(key string) string {
	var b strings.Builder
	b.WriteString("data-")
	for _, r := range key {
		if r >= 'A' && r <= 'Z' {
			b.WriteByte('-')
			r += 'a' - 'A'
		}
		b.WriteRune(r)
	}
	return b.String()
}

func datasetKey(attr string) string {
	name := strings.TrimPrefix(attr, "data-")
	var b strings.Builder
	upper := false
	for _, r := range name {
		if r == '-' {
			upper = true
			continue
		}
		if upper && r >= 'a' && r <= 'z' {
			r -= 'a' - 'A'
		}
		upper = false
		b.WriteRune(r)
	}
	return b.String()
}

func (d *dataset) Get(key string) goja.Value {
	if v, ok := dom.Attr(d.n, datasetAttr(key)); ok {
		return d.s.vm.ToValue(v)
	}
	return nil
}

func (d *dataset) Set(key string, val goja.Value) bool {
	d.s.setAttribute(d.n, datasetAttr(key), val.String())
	return true
}

func (d *dataset) Has(key string) bool {
	_, ok := dom.Attr(d.n, datasetAttr(key))
	return ok
}

func (d *dataset) Delete(key string) bool {
	d.s.removeAttribute(d.n, datasetAttr(key))
	return true
}

func (d *dataset) Keys() []string {
	var keys []string
	for _, a := range d.n.Attr {
		if a.Namespace == "" && strings.HasPrefix(a.Key, "data-") {
			keys = append(keys, datasetKey(a.Key))
		}
	}
	return keys
}
