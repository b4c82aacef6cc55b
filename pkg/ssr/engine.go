package ssr

import (
	"context"
	_ "embed"
	"io/fs"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/dop251/goja"
	"github.com/google/uuid"

	"github.com/duduk-dev/duduk/internal/errors"
	"github.com/duduk-dev/duduk/pkg/dom"
)

// DefaultTimeout bounds a render when no timeout is configured.
const DefaultTimeout = 10 * time.Second

//go:embed prelude.js
var preludeSource string

var (
	preludeOnce    sync.Once
	preludeProgram *goja.Program
	preludeErr     error
)

func prelude() (*goja.Program, error) {
	preludeOnce.Do(func() {
		preludeProgram, preludeErr = goja.Compile("prelude.js", preludeSource, true)
	})
	return preludeProgram, preludeErr
}

// Input is one render request.
type Input struct {
	// Markup is parsed into the body of the render document.
	Markup string

	// Script is the entry module. It may import modules by root-relative
	// or relative path.
	Script string

	// Globals is exposed to scripts as window.__app.
	Globals any

	// Languages is what navigator.languages reports.
	Languages []string

	// URL is the document location. Empty means DefaultURL.
	URL string
}

// Observer receives render and module events, typically to record
// metrics. Implementations must be safe for concurrent use.
type Observer interface {
	ObserveRender(d time.Duration, err error)
	ObserveModule(cached bool)
}

type nopObserver struct{}

func (nopObserver) ObserveRender(time.Duration, error) {}
func (nopObserver) ObserveModule(bool)                 {}

// Engine renders component markup on the server. Each Render call runs
// in its own runtime and document; an Engine may be shared between
// goroutines.
type Engine struct {
	fsys     fs.FS
	programs *ProgramCache
	logger   *slog.Logger
	timeout  time.Duration
	observer Observer
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger for console output and callback failures.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithTimeout bounds every render. Zero or less disables the bound.
func WithTimeout(d time.Duration) Option {
	return func(e *Engine) {
		e.timeout = d
	}
}

// WithProgramCache shares a compiled program cache.
func WithProgramCache(c *ProgramCache) Option {
	return func(e *Engine) {
		if c != nil {
			e.programs = c
		}
	}
}

// WithObserver sets the render observer.
func WithObserver(o Observer) Option {
	return func(e *Engine) {
		if o != nil {
			e.observer = o
		}
	}
}

// New creates an Engine that loads modules from fsys. Module paths are
// rooted at fsys, so "/__app/x.js" reads "__app/x.js".
func New(fsys fs.FS, opts ...Option) *Engine {
	e := &Engine{
		fsys:     fsys,
		logger:   slog.Default(),
		timeout:  DefaultTimeout,
		observer: nopObserver{},
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.programs == nil {
		e.programs, _ = NewProgramCache(DefaultProgramCacheSize)
	}
	return e
}

// Programs returns the compiled program cache.
func (e *Engine) Programs() *ProgramCache {
	return e.programs
}

// Render parses in.Markup into a fresh document, evaluates in.Script
// against it, adds declarative shadow roots for the custom elements the
// script defined and returns the body markup.
func (e *Engine) Render(ctx context.Context, in Input) (out string, err error) {
	start := time.Now()
	defer func() {
		e.observer.ObserveRender(time.Since(start), err)
	}()

	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}
	if err := ctx.Err(); err != nil {
		return "", errors.New(errors.CodeRenderInterrupted).Wrap(err)
	}

	doc, err := dom.Parse(in.Markup)
	if err != nil {
		return "", err
	}
	logger := e.logger.With("render_id", uuid.NewString())
	s := newScope(e, doc, logger)

	stop := context.AfterFunc(ctx, func() {
		s.vm.Interrupt(ctx.Err())
	})
	defer stop()

	if err := s.setup(in); err != nil {
		return "", s.failure(err)
	}

	entry, err := s.linker.link(entryPath, &in.Script)
	if err != nil {
		return "", err
	}
	if _, err := s.linker.evaluate(entry); err != nil {
		return "", s.failure(err)
	}
	if s.interrupted != nil {
		return "", s.failure(s.interrupted)
	}

	if err := doc.SynthesizeShadowRoots(s.isRegistered); err != nil {
		return "", err
	}
	return doc.BodyHTML()
}

// setup installs the DOM and the browser globals.
func (s *scope) setup(in Input) error {
	s.installPrototypes()
	if err := s.installWindow(in); err != nil {
		return err
	}
	program, err := prelude()
	if err != nil {
		return errors.New(errors.CodeModuleCompile).WithLocation("prelude.js", 0, 0).Wrap(err)
	}
	fn, err := s.vm.RunProgram(program)
	if err != nil {
		return err
	}
	install, ok := goja.AssertFunction(fn)
	if !ok {
		return errors.New(errors.CodeModuleCompile).WithLocation("prelude.js", 0, 0)
	}

	native := s.vm.NewObject()
	protos := s.vm.NewObject()
	for name, proto := range map[string]*goja.Object{
		"eventTarget":   s.protos.eventTarget,
		"node":          s.protos.node,
		"element":       s.protos.element,
		"htmlElement":   s.protos.htmlElement,
		"template":      s.protos.template,
		"style":         s.protos.style,
		"slot":          s.protos.slot,
		"characterData": s.protos.characterData,
		"text":          s.protos.text,
		"comment":       s.protos.comment,
		"fragment":      s.protos.fragment,
		"shadowRoot":    s.protos.shadowRoot,
		"document":      s.protos.document,
	} {
		_ = protos.Set(name, proto)
	}
	_ = native.Set("protos", protos)
	_ = native.Set("construct", s.registry.construct)
	_, err = install(goja.Undefined(), native)
	return err
}

// failure maps an evaluation error to a structured error. A resolution
// failure raised inside require wins over the exception it became.
func (s *scope) failure(err error) error {
	if s.linker.fatal != nil {
		return s.linker.fatal
	}
	var ie *goja.InterruptedError
	if errors.As(err, &ie) {
		de := errors.New(errors.CodeRenderInterrupted).Wrap(err)
		if cause, ok := ie.Value().(error); ok {
			de.WithDetail(cause.Error())
		}
		return de
	}
	var ex *goja.Exception
	if errors.As(err, &ex) {
		de := errors.New(errors.CodeScriptEvaluation).WithDetail(ex.Value().String()).Wrap(err)
		if file, line, col, ok := exceptionLocation(ex); ok {
			de.WithLocation(file, line, col)
		}
		return de
	}
	return errors.FromError(err, errors.CodeScriptEvaluation)
}

// stackFrame matches a script frame of a goja stack trace, such as
// "\tat render (/__app/routes/page-1a2b.js:4:9(12))". Module paths are
// absolute and function names never contain a slash.
var stackFrame = regexp.MustCompile(`^\tat [^/]*(/.*):(\d+):(\d+)\(\d+\)\)?$`)

// exceptionLocation returns the innermost script position of ex.
// Native frames are skipped.
func exceptionLocation(ex *goja.Exception) (file string, line, col int, ok bool) {
	for _, frame := range strings.Split(ex.String(), "\n") {
		m := stackFrame.FindStringSubmatch(frame)
		if m == nil {
			continue
		}
		line, _ = strconv.Atoi(m[2])
		col, _ = strconv.Atoi(m[3])
		return m[1], line, col, true
	}
	return "", 0, 0, false
}
