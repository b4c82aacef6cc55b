package ssr

import (
	"io/fs"
	"path"
	"strings"

	"github.com/dop251/goja"

	"github.com/duduk-dev/duduk/internal/errors"
)

// entryPath names the per-render entry unit.
const entryPath = "/__render.js"

type moduleState int

const (
	stateLinked moduleState = iota
	stateEvaluating
	stateEvaluated
)

// record is one module of a render, keyed by its normalized absolute
// path. Records live for one render only.
type record struct {
	path   string
	code   *compiled
	deps   map[string]*record
	state  moduleState
	module *goja.Object
}

// linker loads, links and evaluates the module graph of one render.
type linker struct {
	s       *scope
	fsys    fs.FS
	records map[string]*record

	// fatal holds the first resolution error raised while evaluating, so
	// it is reported instead of the script exception it turned into.
	fatal error
}

func newLinker(s *scope, fsys fs.FS) *linker {
	return &linker{s: s, fsys: fsys, records: make(map[string]*record)}
}

// resolve maps an import specifier to a normalized absolute path.
// Root-relative specifiers resolve against the source root, relative
// ones against the importer's directory.
func resolve(importer, specifier string) (string, error) {
	switch {
	case strings.HasPrefix(specifier, "/"):
		return path.Clean(specifier), nil
	case strings.HasPrefix(specifier, "./"), strings.HasPrefix(specifier, "../"):
		return path.Clean(path.Join(path.Dir(importer), specifier)), nil
	}
	return "", errors.New(errors.CodeModuleResolution).
		WithDetailf("bare specifier %q", specifier).
		WithLocation(importer, 0, 0).
		WithSuggestion("import modules by their root-relative or relative path")
}

// link loads the module at p and, recursively, everything it requires.
// The record is registered before its dependencies are linked, so a
// cycle ends at the record already in progress.
func (l *linker) link(p string, source *string) (*record, error) {
	if r, ok := l.records[p]; ok {
		return r, nil
	}
	r := &record{path: p, deps: make(map[string]*record)}
	l.records[p] = r

	var src string
	if source != nil {
		src = *source
	} else {
		b, err := fs.ReadFile(l.fsys, strings.TrimPrefix(p, "/"))
		if err != nil {
			delete(l.records, p)
			return nil, errors.New(errors.CodeModuleResolution).WithDetailf("cannot read %s", p).Wrap(err)
		}
		src = string(b)
	}

	code, hit, err := l.s.engine.programs.compile(p, src)
	if err != nil {
		delete(l.records, p)
		return nil, err
	}
	if o := l.s.engine.observer; o != nil {
		o.ObserveModule(hit)
	}
	r.code = code

	for _, spec := range code.requires {
		dp, err := resolve(p, spec)
		if err != nil {
			return nil, err
		}
		dep, err := l.link(dp, nil)
		if err != nil {
			return nil, err
		}
		r.deps[spec] = dep
	}
	return r, nil
}

// evaluate runs a module body once and returns its exports. A module
// that is still evaluating returns its exports as they stand, which is
// what a cyclic import observes.
func (l *linker) evaluate(r *record) (goja.Value, error) {
	vm := l.s.vm
	if r.state != stateLinked {
		return r.module.Get("exports"), nil
	}
	r.state = stateEvaluating
	r.module = vm.NewObject()
	exports := vm.NewObject()
	_ = r.module.Set("exports", exports)

	fnValue, err := vm.RunProgram(r.code.program)
	if err != nil {
		return nil, err
	}
	fn, ok := goja.AssertFunction(fnValue)
	if !ok {
		return nil, errors.New(errors.CodeModuleCompile).WithLocation(r.path, 0, 0)
	}

	require := func(call goja.FunctionCall) goja.Value {
		return l.require(r, call.Argument(0).String())
	}
	_, err = fn(goja.Undefined(), exports, vm.ToValue(require), r.module, vm.ToValue(r.path), vm.ToValue(path.Dir(r.path)))
	r.state = stateEvaluated
	if err != nil {
		return nil, err
	}
	return r.module.Get("exports"), nil
}

// require is the require function seen by module r.
func (l *linker) require(r *record, spec string) goja.Value {
	vm := l.s.vm
	dep := r.deps[spec]
	if dep == nil {
		// Computed specifiers are linked on first use.
		dp, err := resolve(r.path, spec)
		if err == nil {
			dep, err = l.link(dp, nil)
		}
		if err != nil {
			if l.fatal == nil {
				l.fatal = err
			}
			panic(vm.NewGoError(err))
		}
		r.deps[spec] = dep
	}

	exports, err := l.evaluate(dep)
	if err != nil {
		var ex *goja.Exception
		if errors.As(err, &ex) {
			panic(ex)
		}
		l.s.report("module "+dep.path, err)
		if l.fatal == nil {
			l.fatal = err
		}
		panic(vm.NewGoError(err))
	}
	return exports
}
