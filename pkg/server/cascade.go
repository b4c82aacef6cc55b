package server

import (
	"context"
	"maps"
	"net/http"

	"github.com/duduk-dev/duduk/internal/errors"
	"github.com/duduk-dev/duduk/pkg/router"
)

// Cascade runs the data loaders of a match from root to leaf and
// returns the merged data. Each layout loader sees the data merged so
// far; the page loader runs last and sees everything its layouts
// returned. Later keys overwrite earlier ones.
func Cascade(ctx context.Context, m *router.Match, r *http.Request, locals router.Locals, cookies router.Cookies) (router.Data, error) {
	data := router.Data{}
	load := func(fn router.LoadFunc, kind, routeID string) error {
		out, err := fn(ctx, &router.LoadEvent{
			Request: r,
			Data:    maps.Clone(data),
			Params:  m.Params,
			Locals:  locals,
			RouteID: m.RouteID,
			Cookies: cookies,
		})
		if err != nil {
			return errors.New(errors.CodeLoader).
				WithDetailf("%s loader of %q", kind, routeID).
				Wrap(err)
		}
		maps.Copy(data, out)
		return nil
	}

	for _, n := range m.Stack {
		if n.LayoutServer == nil || n.LayoutServer.Data == nil {
			continue
		}
		if err := load(n.LayoutServer.Data, "layout", n.RouteID); err != nil {
			return nil, err
		}
	}

	leaf := m.Leaf()
	if leaf.PageServer != nil && leaf.PageServer.Data != nil {
		if err := load(leaf.PageServer.Data, "page", leaf.RouteID); err != nil {
			return nil, err
		}
	}
	return data, nil
}
