package router

import (
	"maps"
	"sort"
	"strings"
)

// Node is a node of the route tree. Nodes are built once by Build and
// never mutated afterwards.
type Node struct {
	// ID is the segment name, without brackets or parentheses.
	ID string

	// RouteID is the full logical path including [param] and (group) markers.
	RouteID string

	Type NodeType

	Page         *Module
	PageServer   *Handlers
	Layout       *Module
	LayoutServer *Handlers

	children map[string]*Node
	groups   []*Node
	param    *Node
}

func newNode(id, routeID string, typ NodeType) *Node {
	return &Node{
		ID:       id,
		RouteID:  routeID,
		Type:     typ,
		children: make(map[string]*Node),
	}
}

// Child returns the static child for segment.
func (n *Node) Child(segment string) *Node {
	return n.children[segment]
}

// Groups returns the group children in insertion order.
func (n *Node) Groups() []*Node {
	return n.groups
}

// ParamChild returns the param child, if any.
func (n *Node) ParamChild() *Node {
	return n.param
}

// eachChild calls fn for every direct child of n: static children in
// name order, then groups, then the param child.
func (n *Node) eachChild(fn func(*Node)) {
	names := make([]string, 0, len(n.children))
	for name := range n.children {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fn(n.children[name])
	}
	for _, g := range n.groups {
		fn(g)
	}
	if n.param != nil {
		fn(n.param)
	}
}

// Presentable reports whether n can terminate a match.
func (n *Node) Presentable() bool {
	return n.Type != Group && (n.Page != nil || n.PageServer != nil)
}

// addChild returns the child for a directory or route-id segment,
// creating it when missing. "[x]" is a param, "(x)" a group.
func (n *Node) addChild(segment string) (*Node, error) {
	routeID := n.RouteID + "/" + segment
	if n.RouteID == "/" {
		routeID = "/" + segment
	}

	switch {
	case isMarked(segment, '[', ']'):
		name := segment[1 : len(segment)-1]
		if n.param != nil {
			if n.param.ID != name {
				return nil, conflictError(n, n.param.ID, name)
			}
			return n.param, nil
		}
		n.param = newNode(name, routeID, Param)
		return n.param, nil

	case isMarked(segment, '(', ')'):
		name := segment[1 : len(segment)-1]
		for _, g := range n.groups {
			if g.ID == name {
				return g, nil
			}
		}
		g := newNode(name, routeID, Group)
		n.groups = append(n.groups, g)
		return g, nil
	}

	if c, ok := n.children[segment]; ok {
		return c, nil
	}
	c := newNode(segment, routeID, Static)
	n.children[segment] = c
	return c, nil
}

// insertRoute walks a route id such as "/blog/(admin)/[slug]" from n,
// creating missing nodes.
func (n *Node) insertRoute(routeID string) (*Node, error) {
	current := n
	for _, seg := range splitPath(routeID) {
		next, err := current.addChild(seg)
		if err != nil {
			return nil, err
		}
		current = next
	}
	return current, nil
}

// match descends from n with the remaining segments. stack and params
// belong to the caller's attempt and are copied before every branch.
func (n *Node) match(segments []string, stack []*Node, params map[string]string) (*Match, bool) {
	if len(segments) == 0 {
		if !n.Presentable() {
			return nil, false
		}
		return &Match{
			Stack:   append(stack, n),
			Params:  params,
			RouteID: n.RouteID,
		}, true
	}

	segment, rest := segments[0], segments[1:]

	if c := n.children[segment]; c != nil {
		if m, ok := c.match(rest, n.descend(stack), maps.Clone(params)); ok {
			return m, true
		}
	}

	// Groups consume nothing, so they are offered the same segment.
	for _, g := range n.groups {
		if m, ok := g.match(segments, n.descend(stack), maps.Clone(params)); ok {
			return m, true
		}
	}

	if n.param != nil {
		p := maps.Clone(params)
		p[n.param.ID] = segment
		if m, ok := n.param.match(rest, n.descend(stack), p); ok {
			return m, true
		}
	}

	return nil, false
}

// descend returns a copy of stack with n pushed when it carries a layout.
func (n *Node) descend(stack []*Node) []*Node {
	out := make([]*Node, len(stack), len(stack)+1)
	copy(out, stack)
	if n.Layout != nil {
		out = append(out, n)
	}
	return out
}

func isMarked(segment string, open, close byte) bool {
	return len(segment) > 2 && segment[0] == open && segment[len(segment)-1] == close
}

// splitPath splits a path into segments. A single trailing slash is
// ignored; empty inner segments are kept so "/a//b" does not match "/a/b".
func splitPath(path string) []string {
	path = strings.TrimPrefix(path, "/")
	path = strings.TrimSuffix(path, "/")
	if path == "" {
		return nil
	}
	return strings.Split(path, "/")
}
