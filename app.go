package duduk

import (
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"sync"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/trace"

	"github.com/duduk-dev/duduk/internal/config"
	"github.com/duduk-dev/duduk/internal/errors"
	"github.com/duduk-dev/duduk/pkg/locales"
	"github.com/duduk-dev/duduk/pkg/middleware"
	"github.com/duduk-dev/duduk/pkg/router"
	"github.com/duduk-dev/duduk/pkg/s3fs"
	"github.com/duduk-dev/duduk/pkg/server"
	"github.com/duduk-dev/duduk/pkg/ssr"
)

// =============================================================================
// App Type
// =============================================================================

// App hosts a compiled application: its route tree, the Go handler
// tables registered for it, and the HTTP server in front of both.
//
// Create an App with duduk.New():
//
//	cfg, err := config.Load(".")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	app := duduk.New(cfg)
//	app.PageServer("/blog/[slug]", &router.Handlers{Data: loadPost})
//	log.Fatal(app.Run())
//
// Registration must happen before the first request, Build or Run.
type App struct {
	cfg    *config.Config
	source fs.FS
	logger *slog.Logger
	tracer trace.TracerProvider

	mu         sync.Mutex
	servers    router.Servers
	middleware router.Chain

	once    sync.Once
	tree    *router.Tree
	handler http.Handler
	err     error
}

// Option configures an App.
type Option func(*App)

// WithSource reads the compiled application from fsys instead of the
// configured dist directory or bucket.
func WithSource(fsys fs.FS) Option {
	return func(a *App) {
		a.source = fsys
	}
}

// WithLogger sets the logger. It defaults to the configured logger
// writing to stderr.
func WithLogger(logger *slog.Logger) Option {
	return func(a *App) {
		a.logger = logger
	}
}

// WithTracerProvider sets the tracer provider used for request and
// render spans. It defaults to the global provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(a *App) {
		a.tracer = tp
	}
}

// New creates an App. A nil cfg uses the defaults.
func New(cfg *config.Config, opts ...Option) *App {
	if cfg == nil {
		cfg = config.New()
	}
	a := &App{
		cfg: cfg,
		servers: router.Servers{
			Pages:   make(map[string]*router.Handlers),
			Layouts: make(map[string]*router.Handlers),
		},
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.logger == nil {
		a.logger = cfg.Logger(os.Stderr)
	}
	return a
}

// =============================================================================
// Registration
// =============================================================================

// Use appends route middleware. It runs after the built-in middleware,
// in registration order.
func (a *App) Use(mw ...router.Middleware) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.mustNotBeBuilt("Use")
	a.middleware = append(a.middleware, mw...)
}

// PageServer registers the handler table of the page at routeID, such
// as "/blog/[slug]". A route id without a compiled directory becomes a
// data-only route.
func (a *App) PageServer(routeID string, h *router.Handlers) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.mustNotBeBuilt("PageServer")
	a.servers.Pages[routeID] = h
}

// LayoutServer registers the handler table of the layout at routeID.
func (a *App) LayoutServer(routeID string, h *router.Handlers) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.mustNotBeBuilt("LayoutServer")
	a.servers.Layouts[routeID] = h
}

func (a *App) mustNotBeBuilt(what string) {
	if a.handler != nil || a.err != nil {
		panic("duduk: " + what + " called after the app was built")
	}
}

// =============================================================================
// Build
// =============================================================================

// Build validates the configuration, scans the route tree and wires the
// request pipeline. It runs once; later calls return the first result.
func (a *App) Build() error {
	a.once.Do(func() {
		handler, tree, err := a.build()
		a.mu.Lock()
		a.handler, a.tree, a.err = handler, tree, err
		a.mu.Unlock()
	})
	return a.err
}

func (a *App) build() (http.Handler, *router.Tree, error) {
	if err := a.cfg.Validate(); err != nil {
		return nil, nil, err
	}

	a.mu.Lock()
	servers := a.servers
	userMiddleware := append(router.Chain(nil), a.middleware...)
	a.mu.Unlock()

	source := a.Source()
	tree, err := router.Build(source, servers)
	if err != nil {
		return nil, nil, err
	}
	root, err := server.LoadRootFiles(source)
	if err != nil {
		return nil, nil, err
	}

	var localeOpts []locales.Option
	if a.cfg.Locales.Default != "" {
		localeOpts = append(localeOpts, locales.WithDefault(a.cfg.Locales.Default))
	}
	catalog, err := locales.Load(source, locales.Dir, localeOpts...)
	if err != nil {
		return nil, nil, err
	}

	programs, err := ssr.NewProgramCache(a.cfg.Render.ProgramCache)
	if err != nil {
		return nil, nil, errors.New(errors.CodeConfig).Wrap(err)
	}
	engineOpts := []ssr.Option{
		ssr.WithLogger(a.logger.With("component", "ssr")),
		ssr.WithTimeout(a.cfg.RenderTimeout()),
		ssr.WithProgramCache(programs),
	}

	var chain router.Chain
	if a.cfg.Metrics.Enabled {
		chain = append(chain, middleware.Prometheus())
		engineOpts = append(engineOpts, ssr.WithObserver(middleware.RenderObserver()))
	}
	var otelOpts []middleware.OTelOption
	if a.tracer != nil {
		otelOpts = append(otelOpts, middleware.WithTracerProvider(a.tracer))
	}
	chain = append(chain, middleware.OpenTelemetry(otelOpts...), middleware.RequestID())
	chain = append(chain, userMiddleware...)

	handler := server.NewHandler(server.HandlerConfig{
		Tree:       tree,
		Middleware: chain,
		Static:     server.NewStaticFiles(source),
		Documents: &server.DocumentRenderer{
			Engine:  ssr.New(source, engineOpts...),
			Root:    root,
			Locales: catalog,
		},
		Cookies:        server.NewCookiePolicy(a.cfg.ServerConfig(), a.logger),
		Logger:         a.logger,
		TracerProvider: a.tracer,
	})

	a.logger.Debug("app built",
		"routes", len(tree.Routes()),
		"locales", catalog.Tags(),
		"s3", a.cfg.UsesS3())
	return handler, tree, nil
}

// Source returns the file system the compiled application is read from.
func (a *App) Source() fs.FS {
	if a.source != nil {
		return a.source
	}
	if a.cfg.UsesS3() {
		s := a.cfg.S3()
		return s3fs.New(s3fs.NewClient(s), s.Bucket, s.Prefix)
	}
	return os.DirFS(a.cfg.DistPath())
}

// Routes builds the app and lists its presentable routes.
func (a *App) Routes() ([]router.Route, error) {
	if err := a.Build(); err != nil {
		return nil, err
	}
	return a.tree.Routes(), nil
}

// =============================================================================
// Serving
// =============================================================================

// ServeHTTP implements http.Handler. It serves the request pipeline
// without the server-level middleware that Server adds.
func (a *App) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if err := a.Build(); err != nil {
		a.logger.Error("app build failed", "error", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	a.handler.ServeHTTP(w, r)
}

// Server builds the app and returns the HTTP server hosting it.
func (a *App) Server() (*server.Server, error) {
	if err := a.Build(); err != nil {
		return nil, err
	}
	opts := []server.Option{server.WithLogger(a.logger.With("component", "server"))}
	if a.cfg.Metrics.Enabled {
		opts = append(opts,
			server.WithMetricsHandler(promhttp.Handler()),
			server.WithHTTPMiddleware(middleware.HTTPMetrics()),
		)
	}
	return server.New(a.cfg.ServerConfig(), a.handler, opts...), nil
}

// Run serves the app until SIGINT or SIGTERM.
func (a *App) Run() error {
	srv, err := a.Server()
	if err != nil {
		return err
	}
	return srv.Run()
}

// Config returns the app configuration.
func (a *App) Config() *config.Config {
	return a.cfg
}

// Logger returns the app logger.
func (a *App) Logger() *slog.Logger {
	return a.logger
}
