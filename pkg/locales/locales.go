// Package locales loads the translation dictionaries of an application
// and picks the strings for a request's Accept-Language header.
//
// Dictionaries live in __app/locales as <tag>.yaml, <tag>.yml or
// <tag>.json. Nested keys are flattened to dotted ids:
//
//	nav:
//	  home: Home
//	  items::plural:
//	    count:one: "{count} item"
//	    count:other: "{count} items"
//
// becomes "nav.home" → "Home" and "nav.items" → the plural set.
package locales

import (
	"fmt"
	"io/fs"
	"maps"
	"path"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/duduk-dev/duduk/internal/errors"
	"github.com/duduk-dev/duduk/pkg/negotiate"
)

// Dir is the locale directory inside the application source.
const Dir = "__app/locales"

const pluralSuffix = "::plural"

// Strings maps dotted ids to either a string or a plural set
// (map[string]string keyed like "count:one").
type Strings = map[string]any

// Catalog holds the loaded dictionaries. It is immutable after Load.
type Catalog struct {
	strings map[string]Strings
	tags    []string
	def     string
}

// Option configures Load.
type Option func(*Catalog)

// WithDefault sets the fallback locale. It defaults to the first
// dictionary in name order.
func WithDefault(tag string) Option {
	return func(c *Catalog) {
		c.def = tag
	}
}

// Load reads every dictionary in dir. A missing directory yields an
// empty catalog.
func Load(fsys fs.FS, dir string, opts ...Option) (*Catalog, error) {
	c := &Catalog{strings: make(map[string]Strings)}
	for _, opt := range opts {
		opt(c)
	}

	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return c, nil
		}
		return nil, errors.New(errors.CodeConfig).WithDetailf("reading %s", dir).Wrap(err)
	}

	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := path.Ext(e.Name())
		if ext != ".yaml" && ext != ".yml" && ext != ".json" {
			continue
		}
		tag := strings.TrimSuffix(e.Name(), ext)
		b, err := fs.ReadFile(fsys, path.Join(dir, e.Name()))
		if err != nil {
			return nil, errors.New(errors.CodeConfig).WithDetailf("reading %s", e.Name()).Wrap(err)
		}
		if err := c.Add(tag, b); err != nil {
			return nil, err
		}
	}

	if c.def != "" {
		if _, ok := c.strings[c.def]; !ok {
			return nil, errors.New(errors.CodeConfig).
				WithDetailf("default locale %q has no dictionary", c.def)
		}
	}
	return c, nil
}

// Add merges a YAML or JSON dictionary into the strings of tag. Adding
// to an existing tag extends it.
func (c *Catalog) Add(tag string, src []byte) error {
	var raw map[string]any
	if err := yaml.Unmarshal(src, &raw); err != nil {
		return errors.New(errors.CodeConfig).WithDetailf("parsing locale %q", tag).Wrap(err)
	}

	dst, ok := c.strings[tag]
	if !ok {
		dst = Strings{}
		c.strings[tag] = dst
		c.tags = append(c.tags, tag)
	}
	if c.def == "" {
		c.def = tag
	}
	flatten(dst, "", raw)
	return nil
}

func flatten(dst Strings, prefix string, src map[string]any) {
	for key, value := range src {
		id := key
		if prefix != "" {
			id = prefix + "." + key
		}
		switch v := value.(type) {
		case map[string]any:
			if base, ok := strings.CutSuffix(id, pluralSuffix); ok {
				dst[base] = pluralSet(v)
				continue
			}
			flatten(dst, id, v)
		case nil:
		default:
			dst[id] = fmt.Sprint(v)
		}
	}
}

func pluralSet(src map[string]any) map[string]string {
	out := make(map[string]string, len(src))
	for k, v := range src {
		out[k] = fmt.Sprint(v)
	}
	return out
}

// Tags returns the loaded locales in load order.
func (c *Catalog) Tags() []string {
	return slices.Clone(c.tags)
}

// Default returns the fallback locale, or "" for an empty catalog.
func (c *Catalog) Default() string {
	return c.def
}

// Lookup returns the strings for the best locale for acceptLanguage and
// the locale chosen. Ids missing from that locale come from the default
// locale. An empty catalog returns nil and "".
func (c *Catalog) Lookup(acceptLanguage string) (Strings, string) {
	if c == nil || len(c.tags) == 0 {
		return nil, ""
	}
	tag, ok := negotiate.MatchLanguage(negotiate.Languages(acceptLanguage), c.tags)
	if !ok || tag == c.def {
		return maps.Clone(c.strings[c.def]), c.def
	}
	out := maps.Clone(c.strings[c.def])
	maps.Copy(out, c.strings[tag])
	return out, tag
}

// Strings returns the strings for acceptLanguage.
func (c *Catalog) Strings(acceptLanguage string) map[string]any {
	s, _ := c.Lookup(acceptLanguage)
	return s
}
