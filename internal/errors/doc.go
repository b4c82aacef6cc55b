// Package errors provides structured errors for the duduk host.
//
// Every failure the request pipeline can produce maps to a registered
// code with a category and the HTTP status a handler answers with:
//
//   - D4xx: request dispositions (no route, method not allowed, not acceptable)
//   - D5xx: server failures (misconfiguration, module resolution and
//     compilation, script evaluation, interrupted renders, loader errors)
//
// # Usage
//
//	err := errors.New(errors.CodeModuleResolution).
//	    WithDetailf("cannot find %q", path).
//	    WithLocation(importer, 0, 0)
//
//	http.Error(w, http.StatusText(err.HTTPStatus()), err.HTTPStatus())
//
// Errors compare by code through errors.Is, so callers can test for a
// class of failure without string matching:
//
//	if errors.Is(err, errors.New(errors.CodeRenderInterrupted)) { ... }
package errors
