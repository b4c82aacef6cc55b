package dom

import (
	"strings"
	"testing"

	"golang.org/x/net/html"
)

func mustParse(t *testing.T, markup string) *Document {
	t.Helper()
	d, err := Parse(markup)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	return d
}

func mustBody(t *testing.T, d *Document) string {
	t.Helper()
	out, err := d.BodyHTML()
	if err != nil {
		t.Fatalf("BodyHTML() error = %v", err)
	}
	return out
}

func first(t *testing.T, scope *html.Node, sel string) *html.Node {
	t.Helper()
	n, err := QuerySelector(scope, sel)
	if err != nil || n == nil {
		t.Fatalf("QuerySelector(%q) = %v, %v", sel, n, err)
	}
	return n
}

func shadow(t *testing.T, d *Document, host *html.Node, mode, markup string) *ShadowRoot {
	t.Helper()
	sr, err := d.AttachShadow(host, mode)
	if err != nil {
		t.Fatalf("AttachShadow() error = %v", err)
	}
	if _, _, err := SetInnerHTML(sr.Node, markup); err != nil {
		t.Fatalf("SetInnerHTML() error = %v", err)
	}
	return sr
}

func TestParse(t *testing.T) {
	d := mustParse(t, `<fw-layout-a><fw-page-b></fw-page-b></fw-layout-a>`)
	if d.Head() == nil || d.Body() == nil || d.DocumentElement() == nil {
		t.Fatal("document structure missing")
	}
	if got := mustBody(t, d); got != `<fw-layout-a><fw-page-b></fw-page-b></fw-layout-a>` {
		t.Errorf("BodyHTML() = %q", got)
	}
}

func TestAttachShadow(t *testing.T) {
	d := mustParse(t, `<x-a></x-a><p></p>`)
	host := first(t, d.Body(), "x-a")

	sr, err := d.AttachShadow(host, "open")
	if err != nil {
		t.Fatal(err)
	}
	if d.ShadowRootOf(host) != sr {
		t.Error("ShadowRootOf should return the attached root")
	}
	if got, ok := d.ShadowRootFor(sr.Node); !ok || got != sr {
		t.Error("ShadowRootFor should find the root by its node")
	}
	if d.IsFragment(sr.Node) {
		t.Error("shadow root is not a plain fragment")
	}
	if _, err := d.AttachShadow(host, "open"); err == nil {
		t.Error("second AttachShadow should fail")
	}
	if _, err := d.AttachShadow(first(t, d.Body(), "p"), "sideways"); err == nil {
		t.Error("invalid mode should fail")
	}
}

func TestIsConnected(t *testing.T) {
	d := mustParse(t, `<x-a></x-a>`)
	host := first(t, d.Body(), "x-a")
	sr := shadow(t, d, host, "open", `<span>in shadow</span>`)
	inShadow := first(t, sr.Node, "span")

	detached := NewElement("div")
	frag := NewFragment()
	frag.AppendChild(detached)

	tests := []struct {
		name string
		node *html.Node
		want bool
	}{
		{"body", d.Body(), true},
		{"host", host, true},
		{"through shadow root", inShadow, true},
		{"fragment child", detached, false},
	}
	for _, tt := range tests {
		if got := d.IsConnected(tt.node); got != tt.want {
			t.Errorf("%s: IsConnected() = %v, want %v", tt.name, got, tt.want)
		}
	}

	Remove(host)
	if d.IsConnected(inShadow) {
		t.Error("shadow content of a removed host should be disconnected")
	}
}

func TestInsert(t *testing.T) {
	d := mustParse(t, `<ul><li id="a"></li><li id="c"></li></ul>`)
	ul := first(t, d.Body(), "ul")
	c := first(t, ul, "#c")

	b := NewElement("LI")
	SetAttr(b, "id", "b")
	if _, err := d.Insert(ul, b, c); err != nil {
		t.Fatal(err)
	}

	frag := NewFragment()
	frag.AppendChild(NewElement("li"))
	frag.AppendChild(NewElement("li"))
	added, err := d.Insert(ul, frag, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(added) != 2 || frag.FirstChild != nil {
		t.Errorf("fragment insert moved %d nodes, fragment empty = %v", len(added), frag.FirstChild == nil)
	}

	want := `<ul><li id="a"></li><li id="b"></li><li id="c"></li><li></li><li></li></ul>`
	if got := mustBody(t, d); got != want {
		t.Errorf("BodyHTML() = %q, want %q", got, want)
	}

	// Moving an attached node detaches it first.
	if _, err := d.Insert(ul, first(t, ul, "#a"), nil); err != nil {
		t.Fatal(err)
	}
	if ul.LastChild != first(t, ul, "#a") {
		t.Error("moved node should be last")
	}

	if _, err := d.Insert(first(t, ul, "#b"), ul, nil); err == nil {
		t.Error("inserting an ancestor should fail")
	}
	if _, err := d.Insert(ul, NewElement("li"), d.Body()); err == nil {
		t.Error("foreign reference node should fail")
	}
}

func TestCloneAndText(t *testing.T) {
	d := mustParse(t, `<div class="x"><b>bold</b> text<!-- note --></div>`)
	div := first(t, d.Body(), "div")

	shallow := Clone(div, false)
	if shallow.FirstChild != nil || len(shallow.Attr) != 1 {
		t.Errorf("shallow clone = %+v", shallow)
	}
	deep := Clone(div, true)
	out, _ := OuterHTML(deep)
	if out != `<div class="x"><b>bold</b> text<!-- note --></div>` {
		t.Errorf("deep clone = %q", out)
	}
	SetAttr(deep, "class", "y")
	if v, _ := Attr(div, "class"); v != "x" {
		t.Error("clone shares attributes with original")
	}

	if got := TextContent(div); got != "bold text" {
		t.Errorf("TextContent() = %q", got)
	}
	removed := SetTextContent(div, "plain")
	if len(removed) != 3 || TextContent(div) != "plain" {
		t.Errorf("SetTextContent removed %d, text %q", len(removed), TextContent(div))
	}
}

func TestAttributes(t *testing.T) {
	n := NewElement("div")
	if _, had := SetAttr(n, "Data-Ref", "one"); had {
		t.Error("new attribute reported as existing")
	}
	if v, ok := Attr(n, "data-ref"); !ok || v != "one" {
		t.Errorf("Attr() = %q, %v", v, ok)
	}
	if old, had := SetAttr(n, "data-ref", "two"); !had || old != "one" {
		t.Errorf("SetAttr() old = %q, %v", old, had)
	}
	if old, had := RemoveAttr(n, "data-ref"); !had || old != "two" {
		t.Errorf("RemoveAttr() = %q, %v", old, had)
	}
	if _, ok := Attr(n, "data-ref"); ok {
		t.Error("attribute still present")
	}
}

func TestQuerySelector_SkipsTemplateContents(t *testing.T) {
	d := mustParse(t, `<template><p class="t"></p></template><section><p class="t" id="real"></p></section>`)
	all, err := QuerySelectorAll(d.Body(), "p.t")
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 1 {
		t.Fatalf("matched %d nodes, want 1", len(all))
	}
	if v, _ := Attr(all[0], "id"); v != "real" {
		t.Error("matched the template content")
	}
	if ElementByID(d.Root(), "real") != all[0] {
		t.Error("ElementByID mismatch")
	}
	if _, err := QuerySelector(d.Body(), "p[["); err == nil {
		t.Error("invalid selector should fail")
	}
	if ok, _ := Matches(all[0], "section > p"); !ok {
		t.Error("Matches() = false")
	}
}

func TestSetInnerHTML_Template(t *testing.T) {
	tmpl := NewElement("template")
	if _, _, err := SetInnerHTML(tmpl, `<tr><td>cell</td></tr>`); err != nil {
		t.Fatal(err)
	}
	got, _ := InnerHTML(tmpl)
	if got != `<tr><td>cell</td></tr>` {
		t.Errorf("template innerHTML = %q", got)
	}
	if frag := CloneChildren(tmpl); frag.FirstChild == nil || frag.FirstChild.Data != "tr" {
		t.Error("CloneChildren did not copy template contents")
	}
}

func TestSynthesizeShadowRoots(t *testing.T) {
	registered := func(tags ...string) func(string) bool {
		return func(tag string) bool {
			for _, t := range tags {
				if t == tag {
					return true
				}
			}
			return false
		}
	}

	tests := []struct {
		name  string
		body  string
		setup func(t *testing.T, d *Document)
		reg   func(string) bool
		want  string
	}{
		{
			name: "host with light children",
			body: `<x-layout><x-page></x-page></x-layout>`,
			setup: func(t *testing.T, d *Document) {
				shadow(t, d, first(t, d.Body(), "x-layout"), "open", `<header>h</header><slot></slot>`)
				shadow(t, d, first(t, d.Body(), "x-page"), "open", `<p>page</p>`)
			},
			reg:  registered("x-layout", "x-page"),
			want: `<x-layout><template shadowrootmode="open"><header>h</header><slot></slot></template><x-page><template shadowrootmode="open"><p>page</p></template></x-page></x-layout>`,
		},
		{
			name: "nested hosts inside a shadow tree",
			body: `<x-outer></x-outer>`,
			setup: func(t *testing.T, d *Document) {
				sr := shadow(t, d, first(t, d.Body(), "x-outer"), "open", `<x-inner></x-inner>`)
				shadow(t, d, first(t, sr.Node, "x-inner"), "open", `<b>inner</b>`)
			},
			reg:  registered("x-outer", "x-inner"),
			want: `<x-outer><template shadowrootmode="open"><x-inner><template shadowrootmode="open"><b>inner</b></template></x-inner></template></x-outer>`,
		},
		{
			name: "unregistered host untouched",
			body: `<x-a></x-a>`,
			setup: func(t *testing.T, d *Document) {
				shadow(t, d, first(t, d.Body(), "x-a"), "open", `<p></p>`)
			},
			reg:  registered(),
			want: `<x-a></x-a>`,
		},
		{
			name: "closed root untouched",
			body: `<x-a></x-a>`,
			setup: func(t *testing.T, d *Document) {
				shadow(t, d, first(t, d.Body(), "x-a"), "closed", `<p></p>`)
			},
			reg:  registered("x-a"),
			want: `<x-a></x-a>`,
		},
		{
			name:  "registered without shadow root",
			body:  `<x-a><i>light</i></x-a>`,
			setup: func(*testing.T, *Document) {},
			reg:   registered("x-a"),
			want:  `<x-a><i>light</i></x-a>`,
		},
		{
			name: "existing declarative template kept",
			body: `<x-a><template shadowrootmode="open"><p>server</p></template></x-a>`,
			setup: func(t *testing.T, d *Document) {
				shadow(t, d, first(t, d.Body(), "x-a"), "open", `<p>client</p>`)
			},
			reg:  registered("x-a"),
			want: `<x-a><template shadowrootmode="open"><p>server</p></template></x-a>`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := mustParse(t, tt.body)
			tt.setup(t, d)
			if err := d.SynthesizeShadowRoots(tt.reg); err != nil {
				t.Fatal(err)
			}
			if got := mustBody(t, d); got != tt.want {
				t.Errorf("BodyHTML() =\n%s\nwant\n%s", got, tt.want)
			}
		})
	}
}

func TestSynthesizeShadowRoots_Idempotent(t *testing.T) {
	d := mustParse(t, `<x-a></x-a>`)
	shadow(t, d, first(t, d.Body(), "x-a"), "open", `<p>x</p>`)
	reg := func(tag string) bool { return tag == "x-a" }

	if err := d.SynthesizeShadowRoots(reg); err != nil {
		t.Fatal(err)
	}
	once := mustBody(t, d)
	if err := d.SynthesizeShadowRoots(reg); err != nil {
		t.Fatal(err)
	}
	if twice := mustBody(t, d); twice != once {
		t.Errorf("second pass changed output:\n%s\n%s", once, twice)
	}
	if strings.Count(once, "shadowrootmode") != 1 {
		t.Errorf("output = %q", once)
	}
}
