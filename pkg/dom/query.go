package dom

import (
	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"

	"github.com/duduk-dev/duduk/internal/errors"
)

// Compile parses a CSS selector.
func Compile(selector string) (cascadia.Sel, error) {
	sel, err := cascadia.Parse(selector)
	if err != nil {
		return nil, errors.Newf(errors.CategoryRender, "SyntaxError: %q is not a valid selector", selector).Wrap(err)
	}
	return sel, nil
}

// QuerySelector returns the first descendant of scope matching selector.
func QuerySelector(scope *html.Node, selector string) (*html.Node, error) {
	sel, err := Compile(selector)
	if err != nil {
		return nil, err
	}
	var found *html.Node
	walkDescendants(scope, func(n *html.Node) bool {
		if sel.Match(n) {
			found = n
			return false
		}
		return true
	})
	return found, nil
}

// QuerySelectorAll returns every descendant of scope matching selector
// in tree order.
func QuerySelectorAll(scope *html.Node, selector string) ([]*html.Node, error) {
	sel, err := Compile(selector)
	if err != nil {
		return nil, err
	}
	var out []*html.Node
	walkDescendants(scope, func(n *html.Node) bool {
		if sel.Match(n) {
			out = append(out, n)
		}
		return true
	})
	return out, nil
}

// Matches reports whether n matches selector.
func Matches(n *html.Node, selector string) (bool, error) {
	sel, err := Compile(selector)
	if err != nil {
		return false, err
	}
	return sel.Match(n), nil
}

// ElementByID returns the first element below scope with the given id.
func ElementByID(scope *html.Node, id string) *html.Node {
	var found *html.Node
	walkDescendants(scope, func(n *html.Node) bool {
		if v, ok := Attr(n, "id"); ok && v == id {
			found = n
			return false
		}
		return true
	})
	return found
}

// walkDescendants visits the element descendants of scope, skipping
// template contents.
func walkDescendants(scope *html.Node, fn func(*html.Node) bool) {
	if IsTemplate(scope) {
		return
	}
	for c := scope.FirstChild; c != nil; c = c.NextSibling {
		cont := Walk(c, func(n *html.Node) bool {
			if n.Type != html.ElementNode {
				return true
			}
			return fn(n)
		})
		if !cont {
			return
		}
	}
}
