package errors

import "net/http"

// ErrorTemplate defines a registered error type.
type ErrorTemplate struct {
	Category Category
	Status   int
	Message  string
}

// Registered codes.
const (
	CodeNotFound          = "D404"
	CodeMethodNotAllowed  = "D405"
	CodeNotAcceptable     = "D406"
	CodeMisconfiguration  = "D500"
	CodeModuleResolution  = "D510"
	CodeModuleCompile     = "D511"
	CodeScriptEvaluation  = "D520"
	CodeRenderInterrupted = "D530"
	CodeRouteTree         = "D540"
	CodeLoader            = "D550"
	CodeConfig            = "D560"
)

// registry maps error codes to their templates.
var registry = map[string]ErrorTemplate{
	// ============================================
	// Request dispositions (D4xx)
	// ============================================

	CodeNotFound: {
		Category: CategoryRouting,
		Status:   http.StatusNotFound,
		Message:  "No route matches the request path",
	},
	CodeMethodNotAllowed: {
		Category: CategoryRouting,
		Status:   http.StatusMethodNotAllowed,
		Message:  "Method not allowed for this route",
	},
	CodeNotAcceptable: {
		Category: CategoryRouting,
		Status:   http.StatusNotAcceptable,
		Message:  "Neither a document nor data is acceptable",
	},

	// ============================================
	// Server failures (D5xx)
	// ============================================

	CodeMisconfiguration: {
		Category: CategoryHandler,
		Status:   http.StatusInternalServerError,
		Message:  "Server misconfiguration",
	},
	CodeModuleResolution: {
		Category: CategoryModule,
		Status:   http.StatusInternalServerError,
		Message:  "Module could not be resolved",
	},
	CodeModuleCompile: {
		Category: CategoryModule,
		Status:   http.StatusInternalServerError,
		Message:  "Module could not be compiled",
	},
	CodeScriptEvaluation: {
		Category: CategoryRender,
		Status:   http.StatusInternalServerError,
		Message:  "Script evaluation failed",
	},
	CodeRenderInterrupted: {
		Category: CategoryRender,
		Status:   http.StatusInternalServerError,
		Message:  "Render interrupted",
	},
	CodeRouteTree: {
		Category: CategoryRouting,
		Status:   http.StatusInternalServerError,
		Message:  "Route tree could not be built",
	},
	CodeLoader: {
		Category: CategoryHandler,
		Status:   http.StatusInternalServerError,
		Message:  "Data loader failed",
	},
	CodeConfig: {
		Category: CategoryConfig,
		Status:   http.StatusInternalServerError,
		Message:  "Invalid configuration",
	},
}

// Lookup returns the template registered for code.
func Lookup(code string) (ErrorTemplate, bool) {
	t, ok := registry[code]
	return t, ok
}
