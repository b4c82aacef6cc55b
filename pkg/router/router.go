package router

import (
	"io/fs"

	"github.com/duduk-dev/duduk/internal/errors"
)

// Servers holds the Go handler tables keyed by route id, such as
// "/blog/[slug]". Registering a route id without a directory in the
// compiled layout creates the nodes along its path.
type Servers struct {
	Pages   map[string]*Handlers
	Layouts map[string]*Handlers
}

// Tree is the immutable route tree shared by all requests.
type Tree struct {
	root *Node
}

// Build scans the compiled layout in fsys and attaches the handler tables.
func Build(fsys fs.FS, servers Servers) (*Tree, error) {
	root, err := NewScanner(fsys).Scan()
	if err != nil {
		return nil, err
	}

	for routeID, h := range servers.Layouts {
		node, err := root.insertRoute(routeID)
		if err != nil {
			return nil, err
		}
		node.LayoutServer = h
	}
	for routeID, h := range servers.Pages {
		node, err := root.insertRoute(routeID)
		if err != nil {
			return nil, err
		}
		if node.Type == Group {
			return nil, errors.New(errors.CodeRouteTree).
				WithDetailf("page handlers registered on group route %s", node.RouteID).
				WithSuggestion("register them on a route inside the group")
		}
		node.PageServer = h
	}

	return &Tree{root: root}, nil
}

// Root returns the root node.
func (t *Tree) Root() *Node {
	return t.root
}

// Match resolves a request path. ok is false when no route matches.
func (t *Tree) Match(urlPath string) (*Match, bool) {
	return t.root.match(splitPath(urlPath), nil, map[string]string{})
}

// Route describes one presentable route for listings.
type Route struct {
	RouteID string
	Page    string
	Layouts []string
	Methods []string
	Data    bool
}

// Routes lists every presentable route in a stable order.
func (t *Tree) Routes() []Route {
	var out []Route
	var walk func(n *Node, layouts []string)
	walk = func(n *Node, layouts []string) {
		if n.Layout != nil {
			layouts = append(append([]string(nil), layouts...), n.Layout.Path)
		}
		if n.Presentable() {
			r := Route{RouteID: n.RouteID, Layouts: layouts}
			if n.Page != nil {
				r.Page = n.Page.Path
			}
			if n.PageServer != nil {
				r.Methods = n.PageServer.Allowed()
				r.Data = n.PageServer.Data != nil
			}
			out = append(out, r)
		}
		n.eachChild(func(c *Node) { walk(c, layouts) })
	}
	walk(t.root, nil)
	return out
}
