package errors

import (
	"fmt"
	"net/http"
)

// Category represents the type of error.
type Category string

const (
	CategoryRouting Category = "routing"
	CategoryRender  Category = "render"
	CategoryModule  Category = "module"
	CategoryHandler Category = "handler"
	CategoryConfig  Category = "config"
	CategoryCLI     Category = "cli"
)

// Location is the position of a script or module that produced the error.
type Location struct {
	File   string
	Line   int
	Column int
}

// String returns the location as a formatted string.
func (l *Location) String() string {
	if l == nil {
		return ""
	}
	if l.Line == 0 {
		return l.File
	}
	if l.Column > 0 {
		return fmt.Sprintf("%s:%d:%d", l.File, l.Line, l.Column)
	}
	return fmt.Sprintf("%s:%d", l.File, l.Line)
}

// DudukError is a structured error carrying a registered code, an HTTP
// status and an optional script location.
type DudukError struct {
	// Code is a unique error identifier (e.g., "D510").
	Code string

	// Category is the error type (routing, render, module, ...).
	Category Category

	// Status is the HTTP status a handler answers with for this error.
	Status int

	// Message is a short description of the error.
	Message string

	// Detail is a longer explanation of the error.
	Detail string

	// Location is the script position where the error occurred.
	Location *Location

	// Suggestion is a hint on how to fix the error.
	Suggestion string

	// Wrapped is the underlying error, if any.
	Wrapped error
}

// Error implements the error interface.
func (e *DudukError) Error() string {
	msg := e.Message
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Wrapped != nil {
		msg += ": " + e.Wrapped.Error()
	}
	if e.Code != "" {
		return fmt.Sprintf("%s: %s", e.Code, msg)
	}
	return msg
}

// Unwrap returns the wrapped error for errors.Is/As support.
func (e *DudukError) Unwrap() error {
	return e.Wrapped
}

// Is reports whether target is a DudukError with the same code.
func (e *DudukError) Is(target error) bool {
	t, ok := target.(*DudukError)
	if !ok || t.Code == "" {
		return false
	}
	return t.Code == e.Code
}

// HTTPStatus returns the status code for the error, 500 when unset.
func (e *DudukError) HTTPStatus() int {
	if e.Status == 0 {
		return http.StatusInternalServerError
	}
	return e.Status
}

// WithLocation adds a script location to the error.
func (e *DudukError) WithLocation(file string, line, column int) *DudukError {
	e.Location = &Location{File: file, Line: line, Column: column}
	return e
}

// WithSuggestion adds a fix suggestion to the error.
func (e *DudukError) WithSuggestion(s string) *DudukError {
	e.Suggestion = s
	return e
}

// WithDetail adds a detailed explanation to the error.
func (e *DudukError) WithDetail(d string) *DudukError {
	e.Detail = d
	return e
}

// WithDetailf is WithDetail with formatting.
func (e *DudukError) WithDetailf(format string, args ...any) *DudukError {
	e.Detail = fmt.Sprintf(format, args...)
	return e
}

// Wrap wraps another error.
func (e *DudukError) Wrap(err error) *DudukError {
	e.Wrapped = err
	return e
}

// New creates a DudukError from a registered error code.
func New(code string) *DudukError {
	template, ok := registry[code]
	if !ok {
		return &DudukError{
			Code:    code,
			Message: "Unknown error",
		}
	}
	return &DudukError{
		Code:     code,
		Category: template.Category,
		Status:   template.Status,
		Message:  template.Message,
	}
}

// Newf creates a new DudukError with a formatted message (no code).
func Newf(category Category, format string, args ...any) *DudukError {
	return &DudukError{
		Category: category,
		Message:  fmt.Sprintf(format, args...),
	}
}

// FromError wraps a standard error in a DudukError. Errors that already
// carry a DudukError anywhere in their chain are returned unchanged.
func FromError(err error, code string) *DudukError {
	if err == nil {
		return nil
	}
	var de *DudukError
	if As(err, &de) {
		return de
	}
	return New(code).Wrap(err)
}

// StatusOf returns the HTTP status carried by err, 500 otherwise.
func StatusOf(err error) int {
	var de *DudukError
	if As(err, &de) {
		return de.HTTPStatus()
	}
	return http.StatusInternalServerError
}
