package server

import (
	"io"
	"io/fs"
	"mime"
	"net/http"
	"path"
	"strconv"
	"strings"
)

// StaticFiles serves the files of the application source before route
// matching, so compiled modules and stylesheets load from the same
// origin as the documents that import them.
type StaticFiles struct {
	fsys fs.FS
}

// NewStaticFiles serves files from fsys.
func NewStaticFiles(fsys fs.FS) *StaticFiles {
	return &StaticFiles{fsys: fsys}
}

// relPath returns a sanitized relative path for a request path. It
// rejects traversal and absolute-path tricks so serving cannot escape
// the file system root.
func relPath(urlPath string) (string, bool) {
	rel := strings.TrimPrefix(urlPath, "/")
	if rel == "" {
		return "", false
	}

	// Reject NUL early (can appear via %00).
	if strings.IndexByte(rel, 0) != -1 {
		return "", false
	}

	// Reject platform-dependent separators.
	if strings.Contains(rel, "\\") {
		return "", false
	}

	// A leading "/" after trimming means "//etc/passwd" style input.
	if strings.HasPrefix(rel, "/") {
		return "", false
	}

	// Reject dot-segments before cleaning so traversal attempts are not
	// cleaned into a different, valid path.
	for _, seg := range strings.Split(rel, "/") {
		if seg == "." || seg == ".." {
			return "", false
		}
	}

	clean := path.Clean(rel)
	if !fs.ValidPath(clean) || clean == "." {
		return "", false
	}
	return clean, true
}

// Serve answers r when its path names a regular file and reports
// whether it did. Requests for anything else fall through to routing.
func (s *StaticFiles) Serve(w http.ResponseWriter, r *http.Request) bool {
	if s == nil || s.fsys == nil {
		return false
	}
	rel, ok := relPath(r.URL.Path)
	if !ok {
		return false
	}

	f, err := s.fsys.Open(rel)
	if err != nil {
		return false
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil || info.IsDir() {
		return false
	}

	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return true
	}

	applyCacheHeaders(w, rel)
	ctype := mime.TypeByExtension(path.Ext(rel))
	if ctype == "" {
		ctype = "application/octet-stream"
	}
	w.Header().Set("Content-Type", ctype)

	if rs, ok := f.(io.ReadSeeker); ok {
		http.ServeContent(w, r, rel, info.ModTime(), rs)
		return true
	}

	// Object stores hand out plain readers; serve them without ranges.
	w.Header().Set("Content-Length", strconv.FormatInt(info.Size(), 10))
	w.WriteHeader(http.StatusOK)
	if r.Method == http.MethodGet {
		_, _ = io.Copy(w, f)
	}
	return true
}

// applyCacheHeaders marks fingerprinted files immutable. Everything else
// is revalidated on every use.
func applyCacheHeaders(w http.ResponseWriter, filePath string) {
	if isFingerprinted(filePath) {
		w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
		return
	}
	w.Header().Set("Cache-Control", "no-cache")
}

// isFingerprinted reports whether a file name carries a content hash,
// as in "page-3fa1b2c4.js" or "app.a1b2c3d4.css".
func isFingerprinted(filePath string) bool {
	base := path.Base(filePath)
	base = strings.TrimSuffix(base, path.Ext(base))

	i := strings.LastIndexAny(base, "-.")
	if i < 0 {
		return false
	}
	hash := base[i+1:]
	if len(hash) < 8 {
		return false
	}
	for _, c := range hash {
		if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')) {
			return false
		}
	}
	return true
}
