package server

import (
	"context"
	"maps"
	"net/http"

	"github.com/duduk-dev/duduk/internal/errors"
	"github.com/duduk-dev/duduk/pkg/router"
)

// ExecuteEndpoint serves a data request. The layout handlers for the
// request method run from root to leaf and their results merge; the leaf
// page handler then receives the merged data and the live response
// writer and answers the request.
func ExecuteEndpoint(ctx context.Context, w http.ResponseWriter, r *http.Request, m *router.Match, locals router.Locals, cookies router.Cookies) error {
	leaf := m.Leaf()
	handler := leaf.PageServer.Method(r.Method)
	if handler == nil {
		return errors.New(errors.CodeMisconfiguration).
			WithDetailf("no %s handler for %q", r.Method, m.RouteID)
	}

	data := router.Data{}
	for _, n := range m.Stack {
		fn := n.LayoutServer.Method(r.Method)
		if fn == nil {
			continue
		}
		out, err := fn(ctx, &router.HTTPEvent{
			Request: r,
			Data:    maps.Clone(data),
			Params:  m.Params,
			Locals:  locals,
			RouteID: m.RouteID,
			Cookies: cookies,
		})
		if err != nil {
			return errors.New(errors.CodeLoader).
				WithDetailf("layout %s handler of %q", r.Method, n.RouteID).
				Wrap(err)
		}
		maps.Copy(data, out)
	}

	_, err := handler(ctx, &router.HTTPEvent{
		Request:  r,
		Response: w,
		Data:     data,
		Params:   m.Params,
		Locals:   locals,
		RouteID:  m.RouteID,
		Cookies:  cookies,
	})
	if err != nil {
		return errors.New(errors.CodeLoader).
			WithDetailf("page %s handler of %q", r.Method, m.RouteID).
			Wrap(err)
	}
	return nil
}
