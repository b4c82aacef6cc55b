package ssr

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"sync"

	"github.com/dop251/goja"
	"github.com/evanw/esbuild/pkg/api"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/duduk-dev/duduk/internal/errors"
)

// DefaultProgramCacheSize is the number of compiled modules kept when no
// size is configured.
const DefaultProgramCacheSize = 512

// compiled is a module converted to a CommonJS shaped function and
// compiled for goja. Programs are immutable and shared between runtimes.
type compiled struct {
	program  *goja.Program
	requires []string
}

// ProgramCache keeps compiled modules keyed by path and source digest,
// so a rebuilt module with the same name is never served stale.
type ProgramCache struct {
	lru *lru.Cache[string, *compiled]
}

// NewProgramCache creates a cache holding up to size programs. A size of
// zero or less disables caching.
func NewProgramCache(size int) (*ProgramCache, error) {
	if size <= 0 {
		return &ProgramCache{}, nil
	}
	c, err := lru.New[string, *compiled](size)
	if err != nil {
		return nil, errors.New(errors.CodeConfig).WithDetail("program cache").Wrap(err)
	}
	return &ProgramCache{lru: c}, nil
}

// Len returns the number of cached programs.
func (c *ProgramCache) Len() int {
	if c == nil || c.lru == nil {
		return 0
	}
	return c.lru.Len()
}

// Purge drops every cached program.
func (c *ProgramCache) Purge() {
	if c != nil && c.lru != nil {
		c.lru.Purge()
	}
}

// compile returns the compiled form of an ES module and whether it came
// from the cache.
func (c *ProgramCache) compile(name, source string) (*compiled, bool, error) {
	sum := sha256.Sum256([]byte(source))
	key := name + "@" + hex.EncodeToString(sum[:])

	if c != nil && c.lru != nil {
		if p, ok := c.lru.Get(key); ok {
			return p, true, nil
		}
	}

	p, err := compileModule(name, source)
	if err != nil {
		return nil, false, err
	}
	if c != nil && c.lru != nil {
		c.lru.Add(key, p)
	}
	return p, false, nil
}

// compileModule converts ES module syntax to CommonJS with esbuild and
// wraps the result in a function taking the CommonJS free variables.
// Exports become getters on the exports object, so imports stay live.
func compileModule(name, source string) (*compiled, error) {
	res := api.Transform(source, api.TransformOptions{
		Loader:     api.LoaderJS,
		Format:     api.FormatCommonJS,
		Target:     api.ES2017,
		Sourcefile: name,
		LogLevel:   api.LogLevelSilent,
	})
	if len(res.Errors) > 0 {
		msgs := make([]string, 0, len(res.Errors))
		for _, m := range res.Errors {
			msgs = append(msgs, m.Text)
		}
		de := errors.New(errors.CodeModuleCompile).WithDetail(strings.Join(msgs, "; "))
		if loc := res.Errors[0].Location; loc != nil {
			de.WithLocation(name, loc.Line, loc.Column+1)
		}
		return nil, de
	}

	code := string(res.Code)
	wrapped := "(function (exports, require, module, __filename, __dirname) {" + code + "\n})"
	program, err := goja.Compile(name, wrapped, false)
	if err != nil {
		return nil, errors.New(errors.CodeModuleCompile).WithLocation(name, 0, 0).Wrap(err)
	}

	requires, err := scanImports(name, source)
	if err != nil {
		return nil, err
	}
	return &compiled{program: program, requires: requires}, nil
}

// scanImports lists the static import and require specifiers of an ES
// module without duplicates. They are the import records esbuild
// resolves, so require calls quoted inside strings are not included.
// Dynamic imports are linked at first use.
func scanImports(name, source string) ([]string, error) {
	var (
		mu       sync.Mutex
		requires []string
		seen     = make(map[string]bool)
	)
	collect := api.Plugin{
		Name: "duduk-imports",
		Setup: func(build api.PluginBuild) {
			build.OnResolve(api.OnResolveOptions{Filter: ".*"}, func(args api.OnResolveArgs) (api.OnResolveResult, error) {
				switch args.Kind {
				case api.ResolveJSImportStatement, api.ResolveJSRequireCall:
					mu.Lock()
					if !seen[args.Path] {
						seen[args.Path] = true
						requires = append(requires, args.Path)
					}
					mu.Unlock()
				}
				return api.OnResolveResult{Path: args.Path, External: true}, nil
			})
		},
	}

	res := api.Build(api.BuildOptions{
		Stdin: &api.StdinOptions{
			Contents:   source,
			Sourcefile: name,
			Loader:     api.LoaderJS,
		},
		Bundle:   true,
		Write:    false,
		Format:   api.FormatESModule,
		Platform: api.PlatformNeutral,
		Target:   api.ES2017,
		LogLevel: api.LogLevelSilent,
		Plugins:  []api.Plugin{collect},
	})
	if len(res.Errors) > 0 {
		return nil, errors.New(errors.CodeModuleCompile).
			WithDetailf("scanning imports: %s", res.Errors[0].Text).
			WithLocation(name, 0, 0)
	}
	return requires, nil
}
