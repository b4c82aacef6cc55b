package router

import (
	"context"
	"net/http"
)

// NodeType classifies a route node.
type NodeType int

const (
	// Static nodes match one literal path segment.
	Static NodeType = iota
	// Param nodes bind one path segment to a name ([name] directories).
	Param
	// Group nodes are transparent: they consume no segment and are never
	// a terminal match on their own ((name) directories).
	Group
)

// String returns the type name.
func (t NodeType) String() string {
	switch t {
	case Param:
		return "param"
	case Group:
		return "group"
	default:
		return "static"
	}
}

// Module references a compiled client module.
type Module struct {
	// Path is the root-relative module path, e.g. "/__app/routes/page-3fa1.js".
	Path string

	// ID is the md5 hex digest of Path, used to derive host element names.
	ID string
}

// Data is the result of a loader or handler. Results merge shallowly.
type Data = map[string]any

// Locals carries request scoped values set by middleware.
type Locals = map[string]any

// Cookies reads request cookies and queues response cookies.
type Cookies interface {
	Get(name string) (string, bool)
	Set(cookie *http.Cookie)
}

// LoadEvent is passed to data loaders.
type LoadEvent struct {
	Request *http.Request
	Data    Data
	Params  map[string]string
	Locals  Locals
	RouteID string
	Cookies Cookies
}

// LoadFunc loads data for a layout or page.
type LoadFunc func(ctx context.Context, ev *LoadEvent) (Data, error)

// HTTPEvent is passed to method handlers. Response is only set for the
// leaf page handler, which owns writing the response.
type HTTPEvent struct {
	Request  *http.Request
	Response http.ResponseWriter
	Data     Data
	Params   map[string]string
	Locals   Locals
	RouteID  string
	Cookies  Cookies
}

// HTTPFunc handles one HTTP method. Layout handlers return data that is
// merged for the next handler; the leaf handler's result is ignored.
type HTTPFunc func(ctx context.Context, ev *HTTPEvent) (Data, error)

// Handlers is a server handler table for a layout or page.
type Handlers struct {
	Data   LoadFunc
	GET    HTTPFunc
	POST   HTTPFunc
	PUT    HTTPFunc
	PATCH  HTTPFunc
	DELETE HTTPFunc
}

// Methods lists the HTTP methods a handler table may serve.
var Methods = []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete}

// Method returns the handler for an HTTP method, or nil.
func (h *Handlers) Method(method string) HTTPFunc {
	if h == nil {
		return nil
	}
	switch method {
	case http.MethodGet:
		return h.GET
	case http.MethodPost:
		return h.POST
	case http.MethodPut:
		return h.PUT
	case http.MethodPatch:
		return h.PATCH
	case http.MethodDelete:
		return h.DELETE
	}
	return nil
}

// Has reports whether the table serves method.
func (h *Handlers) Has(method string) bool {
	return h.Method(method) != nil
}

// Allowed returns the methods the table serves, in canonical order.
func (h *Handlers) Allowed() []string {
	var out []string
	for _, m := range Methods {
		if h.Has(m) {
			out = append(out, m)
		}
	}
	return out
}

// Match is the result of matching a path against the route tree.
type Match struct {
	// Stack holds the nodes with layouts from root to leaf, followed by
	// the terminal node.
	Stack []*Node

	// Params maps param names to the captured path segments.
	Params map[string]string

	// RouteID is the terminal node's route id.
	RouteID string
}

// Leaf returns the terminal node.
func (m *Match) Leaf() *Node {
	return m.Stack[len(m.Stack)-1]
}
