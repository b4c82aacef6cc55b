// Package duduk hosts file-system-routed web component applications.
//
// A compiled application is a directory (or bucket prefix) holding
// __app/routes, where directories are path segments and page-*.js and
// layout-*.js files are custom element modules. Go code adds loaders and
// method handlers per route id; the App matches requests, runs the
// middleware chain, negotiates HTML or JSON, and either renders the page
// with its layouts on the server or answers from the data endpoint.
//
// This is the recommended import for most applications:
//
//	import "github.com/duduk-dev/duduk"
//
// Usage:
//
//	cfg, err := duduk.LoadConfig(".")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	app := duduk.New(cfg)
//	app.LayoutServer("/", &duduk.Handlers{Data: loadSite})
//	app.PageServer("/posts/[id]", &duduk.Handlers{Data: loadPost, POST: savePost})
//	log.Fatal(app.Run())
package duduk

import (
	"github.com/duduk-dev/duduk/internal/config"
	"github.com/duduk-dev/duduk/pkg/router"
)

// =============================================================================
// Configuration (internal/config exposed as duduk.Config)
// =============================================================================

// Config is the duduk.json configuration overlaid by the environment.
type Config = config.Config

// LoadConfig reads duduk.json and the environment for the project in dir.
func LoadConfig(dir string) (*Config, error) {
	return config.Load(dir)
}

// DefaultConfig returns the configuration used when no file exists.
func DefaultConfig() *Config {
	return config.New()
}

// =============================================================================
// Handler tables (re-export from pkg/router)
// =============================================================================

// Handlers is the server handler table of a page or layout.
type Handlers = router.Handlers

// Data is loader and handler output, merged into the page state.
type Data = router.Data

// Locals is request-scoped state shared by middleware and handlers.
type Locals = router.Locals

// Cookies reads request cookies and sets response cookies.
type Cookies = router.Cookies

// LoadEvent is passed to data loaders.
type LoadEvent = router.LoadEvent

// HTTPEvent is passed to method handlers.
type HTTPEvent = router.HTTPEvent

// Middleware wraps every routed request.
type Middleware = router.Middleware

// MiddlewareParams is passed to middleware.
type MiddlewareParams = router.MiddlewareParams
