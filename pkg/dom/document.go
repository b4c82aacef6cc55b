package dom

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/duduk-dev/duduk/internal/errors"
)

// ShadowRoot is a shadow tree attached to a host element.
type ShadowRoot struct {
	// Node is the root of the shadow tree, a fragment node.
	Node *html.Node
	Host *html.Node
	Mode string
}

// Document is a parsed document plus the shadow roots attached to its
// elements. It is not safe for concurrent use.
type Document struct {
	root *html.Node
	head *html.Node
	body *html.Node

	byHost map[*html.Node]*ShadowRoot
	byRoot map[*html.Node]*ShadowRoot
}

// Parse builds a document whose body holds markup.
func Parse(markup string) (*Document, error) {
	src := "<!DOCTYPE html><html><head></head><body>" + markup + "</body></html>"
	root, err := html.Parse(strings.NewReader(src))
	if err != nil {
		return nil, errors.New(errors.CodeScriptEvaluation).WithDetail("parsing document markup").Wrap(err)
	}
	d := &Document{
		root:   root,
		byHost: make(map[*html.Node]*ShadowRoot),
		byRoot: make(map[*html.Node]*ShadowRoot),
	}
	Walk(root, func(n *html.Node) bool {
		if n.Type == html.ElementNode {
			switch n.DataAtom {
			case atom.Head:
				d.head = n
			case atom.Body:
				d.body = n
			}
		}
		return d.head == nil || d.body == nil
	})
	return d, nil
}

// Root returns the document node.
func (d *Document) Root() *html.Node { return d.root }

// Head returns the head element.
func (d *Document) Head() *html.Node { return d.head }

// Body returns the body element.
func (d *Document) Body() *html.Node { return d.body }

// DocumentElement returns the html element.
func (d *Document) DocumentElement() *html.Node {
	for c := d.root.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			return c
		}
	}
	return nil
}

// AttachShadow attaches a shadow root in mode "open" or "closed".
func (d *Document) AttachShadow(host *html.Node, mode string) (*ShadowRoot, error) {
	if host == nil || host.Type != html.ElementNode {
		return nil, errors.Newf(errors.CategoryRender, "attachShadow: host is not an element")
	}
	if mode != "open" && mode != "closed" {
		return nil, errors.Newf(errors.CategoryRender, "attachShadow: invalid mode %q", mode)
	}
	if _, ok := d.byHost[host]; ok {
		return nil, errors.Newf(errors.CategoryRender, "attachShadow: <%s> already hosts a shadow root", host.Data)
	}
	sr := &ShadowRoot{Node: NewFragment(), Host: host, Mode: mode}
	d.byHost[host] = sr
	d.byRoot[sr.Node] = sr
	return sr, nil
}

// ShadowRootOf returns the shadow root hosted by an element, regardless
// of mode.
func (d *Document) ShadowRootOf(host *html.Node) *ShadowRoot {
	return d.byHost[host]
}

// ShadowRootFor returns the shadow root whose tree root is n.
func (d *Document) ShadowRootFor(n *html.Node) (*ShadowRoot, bool) {
	sr, ok := d.byRoot[n]
	return sr, ok
}

// IsFragment reports whether n is a plain document fragment: a fragment
// node that is neither the document nor a shadow root.
func (d *Document) IsFragment(n *html.Node) bool {
	if n == nil || n.Type != html.DocumentNode || n == d.root {
		return false
	}
	_, shadow := d.byRoot[n]
	return !shadow
}

// IsConnected reports whether n is in the document, following shadow
// roots to their hosts.
func (d *Document) IsConnected(n *html.Node) bool {
	for n != nil {
		if n == d.root {
			return true
		}
		if n.Parent == nil {
			sr, ok := d.byRoot[n]
			if !ok {
				return false
			}
			n = sr.Host
			continue
		}
		n = n.Parent
	}
	return false
}

// NewFragment returns an empty fragment node.
func NewFragment() *html.Node {
	return &html.Node{Type: html.DocumentNode}
}

// NewElement returns a detached element with a lowercase tag name.
func NewElement(tag string) *html.Node {
	tag = strings.ToLower(tag)
	return &html.Node{Type: html.ElementNode, Data: tag, DataAtom: atom.Lookup([]byte(tag))}
}
