package router

import (
	"crypto/md5"
	"encoding/hex"
	"io/fs"
	"path"
	"strings"

	"github.com/duduk-dev/duduk/internal/errors"
)

// RoutesDir is the directory of the compiled route layout, relative to
// the application source root.
const RoutesDir = "__app/routes"

// Scanner reads the compiled route layout into a node tree.
//
//	__app/routes/
//	├── layout-1c2d.js        → layout of /
//	├── page-9a8b.js          → page of /
//	├── blog/
//	│   ├── page-77e1.js      → /blog
//	│   └── [slug]/
//	│       └── page-0f3e.js  → /blog/:slug
//	└── (marketing)/
//	    └── about/
//	        └── page-5b5b.js  → /about
type Scanner struct {
	fsys fs.FS
	dir  string
}

// NewScanner creates a scanner over fsys rooted at RoutesDir.
func NewScanner(fsys fs.FS) *Scanner {
	return &Scanner{fsys: fsys, dir: RoutesDir}
}

// Scan builds the node tree. A missing routes directory yields a bare
// root so applications may serve only Go-registered routes.
func (s *Scanner) Scan() (*Node, error) {
	root := newNode("", "/", Static)
	if _, err := fs.Stat(s.fsys, s.dir); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return root, nil
		}
		return nil, errors.New(errors.CodeRouteTree).Wrap(err)
	}
	if err := s.scanDir(s.dir, root); err != nil {
		return nil, err
	}
	return root, nil
}

func (s *Scanner) scanDir(dir string, node *Node) error {
	entries, err := fs.ReadDir(s.fsys, dir)
	if err != nil {
		return errors.New(errors.CodeRouteTree).WithDetailf("reading %s", dir).Wrap(err)
	}

	for _, entry := range entries {
		name := entry.Name()
		full := path.Join(dir, name)

		if entry.IsDir() {
			child, err := node.addChild(name)
			if err != nil {
				return err
			}
			if err := s.scanDir(full, child); err != nil {
				return err
			}
			continue
		}

		if !strings.HasSuffix(name, ".js") {
			continue
		}
		switch {
		case strings.HasPrefix(name, "page-"):
			// Groups are never presentable, so their pages are ignored.
			if node.Type == Group {
				continue
			}
			if node.Page != nil {
				return duplicateModule(node, "page", node.Page.Path, full)
			}
			node.Page = newModule(full)
		case strings.HasPrefix(name, "layout-"):
			if node.Layout != nil {
				return duplicateModule(node, "layout", node.Layout.Path, full)
			}
			node.Layout = newModule(full)
		}
	}
	return nil
}

// newModule references the module at fsPath as a root-relative URL path.
func newModule(fsPath string) *Module {
	p := "/" + strings.TrimPrefix(fsPath, "/")
	return &Module{Path: p, ID: ModuleID(p)}
}

// ModuleID returns the lowercase md5 hex digest of a module path.
func ModuleID(modulePath string) string {
	sum := md5.Sum([]byte(modulePath))
	return hex.EncodeToString(sum[:])
}

func duplicateModule(n *Node, kind, first, second string) error {
	return errors.New(errors.CodeRouteTree).
		WithDetailf("route %s has two %s modules: %s and %s", n.RouteID, kind, first, second)
}

func conflictError(n *Node, existing, added string) error {
	return errors.New(errors.CodeRouteTree).
		WithDetailf("route %s has conflicting params [%s] and [%s]", n.RouteID, existing, added).
		WithSuggestion("a directory may hold at most one [param] child")
}
