// Package router resolves request paths against the compiled route
// layout of a duduk application and runs the request middleware chain.
//
// The tree is read from the __app/routes directory of the application
// source. Directories are path segments; "[name]" directories bind a
// segment to a param and "(name)" directories group routes without
// consuming a segment. page-<hash>.js and layout-<hash>.js files are the
// client modules of the route. Server side handler tables are Go values
// registered per route id:
//
//	tree, err := router.Build(os.DirFS("dist"), router.Servers{
//	    Pages: map[string]*router.Handlers{
//	        "/blog/[slug]": {Data: loadPost},
//	    },
//	})
//
//	m, ok := tree.Match("/blog/hello")
//	// m.Params["slug"] == "hello"
//	// m.Stack holds the layout nodes from the root, then the leaf
//
// Matching is depth first: the static child is tried first, then every
// group child with the same segment, then the param child. A failed
// branch never leaks params or stack entries into the next attempt.
package router
