package dom

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/duduk-dev/duduk/internal/errors"
)

// Walk visits n and its descendants in tree order. fn returns false to
// stop the walk. Template contents are not visited.
func Walk(n *html.Node, fn func(*html.Node) bool) bool {
	if !fn(n) {
		return false
	}
	if IsTemplate(n) {
		return true
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if !Walk(c, fn) {
			return false
		}
	}
	return true
}

// IsTemplate reports whether n is a template element.
func IsTemplate(n *html.Node) bool {
	return n != nil && n.Type == html.ElementNode && n.DataAtom == atom.Template
}

// Contains reports whether n is other or one of its ancestors.
func Contains(n, other *html.Node) bool {
	for ; other != nil; other = other.Parent {
		if other == n {
			return true
		}
	}
	return false
}

// Insert inserts child into parent before ref, or appends when ref is
// nil. A fragment child is emptied into parent. It returns the nodes
// actually inserted.
func (d *Document) Insert(parent, child, ref *html.Node) ([]*html.Node, error) {
	if parent.Type != html.ElementNode && parent.Type != html.DocumentNode {
		return nil, errors.Newf(errors.CategoryRender, "HierarchyRequestError: parent cannot have children")
	}
	if ref != nil && ref.Parent != parent {
		return nil, errors.Newf(errors.CategoryRender, "NotFoundError: reference node is not a child of parent")
	}
	if Contains(child, parent) {
		return nil, errors.Newf(errors.CategoryRender, "HierarchyRequestError: node is an ancestor of parent")
	}
	if child == ref {
		return []*html.Node{child}, nil
	}

	if d.IsFragment(child) {
		var moved []*html.Node
		for c := child.FirstChild; c != nil; {
			next := c.NextSibling
			child.RemoveChild(c)
			parent.InsertBefore(c, ref)
			moved = append(moved, c)
			c = next
		}
		return moved, nil
	}

	if child.Parent != nil {
		child.Parent.RemoveChild(child)
	}
	parent.InsertBefore(child, ref)
	return []*html.Node{child}, nil
}

// Remove detaches n from its parent.
func Remove(n *html.Node) {
	if n.Parent != nil {
		n.Parent.RemoveChild(n)
	}
}

// RemoveChildren detaches and returns all children of n.
func RemoveChildren(n *html.Node) []*html.Node {
	var out []*html.Node
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		n.RemoveChild(c)
		out = append(out, c)
		c = next
	}
	return out
}

// Clone copies n, with its descendants when deep is set. Shadow roots
// are not cloned.
func Clone(n *html.Node, deep bool) *html.Node {
	c := &html.Node{
		Type:      n.Type,
		DataAtom:  n.DataAtom,
		Data:      n.Data,
		Namespace: n.Namespace,
	}
	if len(n.Attr) > 0 {
		c.Attr = append([]html.Attribute(nil), n.Attr...)
	}
	if deep {
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			c.AppendChild(Clone(child, true))
		}
	}
	return c
}

// CloneChildren copies the children of n into a new fragment.
func CloneChildren(n *html.Node) *html.Node {
	f := NewFragment()
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		f.AppendChild(Clone(child, true))
	}
	return f
}

// Children returns the child nodes of n.
func Children(n *html.Node) []*html.Node {
	var out []*html.Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		out = append(out, c)
	}
	return out
}

// ElementChildren returns the element children of n.
func ElementChildren(n *html.Node) []*html.Node {
	var out []*html.Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			out = append(out, c)
		}
	}
	return out
}

// TextContent concatenates the text of n's descendants. Character data
// nodes return their own data.
func TextContent(n *html.Node) string {
	switch n.Type {
	case html.TextNode, html.CommentNode:
		return n.Data
	}
	var b strings.Builder
	var collect func(*html.Node)
	collect = func(n *html.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			switch c.Type {
			case html.TextNode:
				b.WriteString(c.Data)
			case html.ElementNode, html.DocumentNode:
				collect(c)
			}
		}
	}
	collect(n)
	return b.String()
}

// SetTextContent replaces the children of n with a single text node, or
// sets the data of a character data node. It returns the removed nodes.
func SetTextContent(n *html.Node, text string) []*html.Node {
	switch n.Type {
	case html.TextNode, html.CommentNode:
		n.Data = text
		return nil
	}
	removed := RemoveChildren(n)
	if text != "" {
		n.AppendChild(&html.Node{Type: html.TextNode, Data: text})
	}
	return removed
}

// Attr returns the value of an attribute.
func Attr(n *html.Node, name string) (string, bool) {
	name = strings.ToLower(name)
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == name {
			return a.Val, true
		}
	}
	return "", false
}

// SetAttr sets an attribute and returns its previous value.
func SetAttr(n *html.Node, name, value string) (string, bool) {
	name = strings.ToLower(name)
	for i, a := range n.Attr {
		if a.Namespace == "" && a.Key == name {
			n.Attr[i].Val = value
			return a.Val, true
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: name, Val: value})
	return "", false
}

// RemoveAttr removes an attribute and returns its previous value.
func RemoveAttr(n *html.Node, name string) (string, bool) {
	name = strings.ToLower(name)
	for i, a := range n.Attr {
		if a.Namespace == "" && a.Key == name {
			n.Attr = append(n.Attr[:i], n.Attr[i+1:]...)
			return a.Val, true
		}
	}
	return "", false
}
