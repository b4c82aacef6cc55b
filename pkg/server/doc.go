// Package server hosts the duduk request pipeline over HTTP.
//
// A request first tries the static files of the application source. When
// no file matches, the route tree resolves the path to a stack of layout
// nodes and a terminal node, the route middleware chain runs, and the
// Accept header picks the representation:
//
//   - text/html for GET and POST on a route with a page: the data
//     cascade runs the layout and page loaders, then DocumentRenderer
//     renders the page inside its layouts on the server and writes the
//     HTML document.
//   - application/json when the page handler table has the method:
//     ExecuteEndpoint runs the layout handlers for the method and hands
//     the response writer to the page handler.
//
// Anything else is answered with 404, 405 or 406. Failures are logged
// and answered with 500; a response is never written twice.
//
// # Usage
//
//	h := server.NewHandler(server.HandlerConfig{
//	    Tree:      tree,
//	    Static:    server.NewStaticFiles(dist),
//	    Documents: &server.DocumentRenderer{Engine: engine, Root: root},
//	})
//	srv := server.New(server.DefaultServerConfig(), h)
//	if err := srv.Run(); err != nil {
//	    log.Fatal(err)
//	}
package server
