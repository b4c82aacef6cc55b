package dom

import (
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// ShadowRootModeAttr marks a template as a declarative shadow root.
const ShadowRootModeAttr = "shadowrootmode"

// SynthesizeShadowRoots walks the body post-order and, for every element
// whose tag is registered and that hosts an open shadow root, prepends a
// <template shadowrootmode="open"> holding a serialized copy of that
// shadow tree. Light DOM children and nested shadow trees are processed
// before their host, so outer templates include the inner ones. Hosts
// that already carry a declarative template are left alone, which makes
// the pass idempotent.
func (d *Document) SynthesizeShadowRoots(registered func(tag string) bool) error {
	if d.body == nil {
		return nil
	}
	return d.synthesize(d.body, registered)
}

func (d *Document) synthesize(part *html.Node, registered func(string) bool) error {
	for c := part.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode || IsTemplate(c) {
			continue
		}
		if err := d.synthesize(c, registered); err != nil {
			return err
		}
		if !registered(c.Data) {
			continue
		}
		sr := d.byHost[c]
		if sr == nil || sr.Mode != "open" || HasDeclarativeShadowRoot(c) {
			continue
		}
		if err := d.synthesize(sr.Node, registered); err != nil {
			return err
		}

		inner, err := InnerHTML(sr.Node)
		if err != nil {
			return err
		}
		tmpl := &html.Node{
			Type:     html.ElementNode,
			Data:     "template",
			DataAtom: atom.Template,
			Attr:     []html.Attribute{{Key: ShadowRootModeAttr, Val: "open"}},
		}
		nodes, err := ParseFragment(tmpl, inner)
		if err != nil {
			return err
		}
		for _, n := range nodes {
			tmpl.AppendChild(n)
		}
		c.InsertBefore(tmpl, c.FirstChild)
	}
	return nil
}

// HasDeclarativeShadowRoot reports whether host has a direct
// <template shadowrootmode> child.
func HasDeclarativeShadowRoot(host *html.Node) bool {
	for c := host.FirstChild; c != nil; c = c.NextSibling {
		if !IsTemplate(c) {
			continue
		}
		if _, ok := Attr(c, ShadowRootModeAttr); ok {
			return true
		}
	}
	return false
}
