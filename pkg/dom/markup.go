package dom

import (
	"bytes"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/duduk-dev/duduk/internal/errors"
)

// InnerHTML serializes the children of n.
func InnerHTML(n *html.Node) (string, error) {
	var buf bytes.Buffer
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if err := html.Render(&buf, c); err != nil {
			return "", errors.New(errors.CodeScriptEvaluation).WithDetail("serializing markup").Wrap(err)
		}
	}
	return buf.String(), nil
}

// OuterHTML serializes n.
func OuterHTML(n *html.Node) (string, error) {
	if n.Type == html.DocumentNode {
		return InnerHTML(n)
	}
	var buf bytes.Buffer
	if err := html.Render(&buf, n); err != nil {
		return "", errors.New(errors.CodeScriptEvaluation).WithDetail("serializing markup").Wrap(err)
	}
	return buf.String(), nil
}

// ParseFragment parses markup in the context of n. Fragment nodes such
// as shadow roots parse as if inside a body element.
func ParseFragment(n *html.Node, markup string) ([]*html.Node, error) {
	context := n
	if n.Type != html.ElementNode {
		context = &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	}
	nodes, err := html.ParseFragment(strings.NewReader(markup), context)
	if err != nil {
		return nil, errors.New(errors.CodeScriptEvaluation).WithDetail("parsing fragment").Wrap(err)
	}
	return nodes, nil
}

// SetInnerHTML replaces the children of n with parsed markup. It returns
// the removed and the inserted nodes.
func SetInnerHTML(n *html.Node, markup string) (removed, added []*html.Node, err error) {
	nodes, err := ParseFragment(n, markup)
	if err != nil {
		return nil, nil, err
	}
	removed = RemoveChildren(n)
	for _, c := range nodes {
		n.AppendChild(c)
	}
	return removed, nodes, nil
}

// BodyHTML serializes the children of the body element.
func (d *Document) BodyHTML() (string, error) {
	if d.body == nil {
		return "", nil
	}
	return InnerHTML(d.body)
}
