package server

import (
	"io/fs"
	"path"
	"strings"

	"github.com/duduk-dev/duduk/internal/errors"
)

// AppDir is the directory of the compiled application inside the
// source file system.
const AppDir = "__app"

// RootFiles are the application-wide assets found next to the routes.
type RootFiles struct {
	// RootCSS is the content of root-<hash>.css, inlined into every
	// document head.
	RootCSS string

	// AppCSS is the URL of app-<hash>.css, linked from every document
	// and imported by shadow roots through prependStyles.
	AppCSS string

	// SetupClient is the URL of setupClient-<hash>.js, imported before
	// every component.
	SetupClient string
}

// LoadRootFiles discovers the root files in fsys. The first match of
// each kind in name order wins; a missing application directory yields
// no root files.
func LoadRootFiles(fsys fs.FS) (RootFiles, error) {
	var rf RootFiles
	entries, err := fs.ReadDir(fsys, AppDir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return rf, nil
		}
		return rf, errors.New(errors.CodeMisconfiguration).
			WithDetailf("reading %s", AppDir).
			Wrap(err)
	}

	rootCSS := ""
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		switch {
		case rootCSS == "" && isRootFile(name, "root-", ".css"):
			rootCSS = name
		case rf.AppCSS == "" && isRootFile(name, "app-", ".css"):
			rf.AppCSS = "/" + path.Join(AppDir, name)
		case rf.SetupClient == "" && isRootFile(name, "setupClient-", ".js"):
			rf.SetupClient = "/" + path.Join(AppDir, name)
		}
	}

	if rootCSS != "" {
		b, err := fs.ReadFile(fsys, path.Join(AppDir, rootCSS))
		if err != nil {
			return rf, errors.New(errors.CodeMisconfiguration).
				WithDetailf("reading %s", rootCSS).
				Wrap(err)
		}
		rf.RootCSS = string(b)
	}
	return rf, nil
}

func isRootFile(name, prefix, ext string) bool {
	return strings.HasPrefix(name, prefix) && strings.HasSuffix(name, ext)
}
