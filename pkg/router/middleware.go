package router

import (
	"maps"
	"net/http"
)

// Event is the request view given to middleware.
type Event struct {
	Request *http.Request
	Params  map[string]string
	Locals  Locals
	RouteID string
	Cookies Cookies
}

// ResolveFunc continues the chain with the event's locals and returns
// the response writer once the rest of the chain has run.
type ResolveFunc func(ev *Event) (http.ResponseWriter, error)

// MiddlewareParams is the argument of a Middleware.
type MiddlewareParams struct {
	Event    *Event
	Resolve  ResolveFunc
	Response http.ResponseWriter
}

// Middleware runs before route handling. It either calls Resolve to
// continue, or writes to Response and returns without resolving to
// answer the request itself.
type Middleware func(p MiddlewareParams) (http.ResponseWriter, error)

// FinishFunc runs once the chain is exhausted. r is the request as last
// passed to Resolve, so middleware may attach a derived context.
type FinishFunc func(r *http.Request, locals Locals) error

// Chain is an ordered middleware list.
type Chain []Middleware

// Execute runs the chain for one request. Every Resolve call advances a
// shared index and copies the locals forward, so no middleware can alter
// the map another middleware holds.
func (c Chain) Execute(w http.ResponseWriter, r *http.Request, params map[string]string, routeID string, cookies Cookies, finish FinishFunc) error {
	if len(c) == 0 {
		return finish(r, Locals{})
	}

	index := -1
	var resolve ResolveFunc
	resolve = func(ev *Event) (http.ResponseWriter, error) {
		index++

		req := r
		if ev != nil && ev.Request != nil {
			req = ev.Request
		}
		locals := Locals{}
		if ev != nil && ev.Locals != nil {
			locals = maps.Clone(ev.Locals)
		}

		if index < len(c) {
			return c[index](MiddlewareParams{
				Event: &Event{
					Request: req,
					Params:  params,
					Locals:  locals,
					RouteID: routeID,
					Cookies: cookies,
				},
				Resolve:  resolve,
				Response: w,
			})
		}
		return w, finish(req, locals)
	}

	_, err := resolve(&Event{Request: r, Params: params, Locals: Locals{}, RouteID: routeID, Cookies: cookies})
	return err
}
