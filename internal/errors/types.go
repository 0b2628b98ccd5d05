// Package errors provides the structured error taxonomy shared by the
// build pipeline and the dev server.
//
// Errors carry a type (which stage failed), a stable machine code, the
// route being built when the failure happened, and a Recoverable flag.
// The dev server keeps serving after recoverable errors and renders them
// into the error overlay; production builds treat every error as fatal.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorType represents different categories of errors.
type ErrorType string

const (
	ErrorTypeConfig    ErrorType = "config"
	ErrorTypeManifest  ErrorType = "manifest"
	ErrorTypeSynthesis ErrorType = "synthesis"
	ErrorTypeBundling  ErrorType = "bundling"
	ErrorTypeRender    ErrorType = "render"
	ErrorTypeSecurity  ErrorType = "security"
	ErrorTypeCleanup   ErrorType = "cleanup"
	ErrorTypeIO        ErrorType = "io"
	ErrorTypeInternal  ErrorType = "internal"
)

// TabiError is a structured error type with context.
type TabiError struct {
	Type        ErrorType
	Code        string
	Message     string
	Cause       error
	Route       string
	FilePath    string
	Diagnostics []Diagnostic
	Recoverable bool
}

// Error implements the error interface.
func (e *TabiError) Error() string {
	var parts []string

	if e.Code != "" {
		parts = append(parts, fmt.Sprintf("[%s]", e.Code))
	}

	if e.Route != "" {
		parts = append(parts, "route:"+e.Route)
	}

	if e.FilePath != "" {
		parts = append(parts, e.FilePath)
	}

	parts = append(parts, e.Message)

	result := strings.Join(parts, " ")

	if e.Cause != nil {
		result += fmt.Sprintf(": %v", e.Cause)
	}

	if len(e.Diagnostics) > 0 {
		result += "\n" + FormatDiagnostics(e.Diagnostics)
	}

	return result
}

// Unwrap returns the underlying cause error.
func (e *TabiError) Unwrap() error {
	return e.Cause
}

// Is implements error comparison.
func (e *TabiError) Is(target error) bool {
	var t *TabiError
	if errors.As(target, &t) {
		return e.Type == t.Type && e.Code == t.Code
	}

	return false
}

// WithRoute attaches the route being built when the error occurred.
func (e *TabiError) WithRoute(route string) *TabiError {
	e.Route = route

	return e
}

// WithFile attaches the content file the error refers to.
func (e *TabiError) WithFile(filePath string) *TabiError {
	e.FilePath = filePath

	return e
}

// WithDiagnostics attaches structured compiler diagnostics.
func (e *TabiError) WithDiagnostics(diags []Diagnostic) *TabiError {
	e.Diagnostics = diags

	return e
}

// Error creation functions

// NewConfigError creates a configuration error. Configuration errors are
// never recoverable: the process refuses to start.
func NewConfigError(code, message string) *TabiError {
	return &TabiError{
		Type:        ErrorTypeConfig,
		Code:        code,
		Message:     message,
		Recoverable: false,
	}
}

// NewManifestError creates a content-scan error.
func NewManifestError(code, message string, cause error) *TabiError {
	return &TabiError{
		Type:        ErrorTypeManifest,
		Code:        code,
		Message:     message,
		Cause:       cause,
		Recoverable: true,
	}
}

// NewSynthesisError creates an entry-generation error.
func NewSynthesisError(code, message string, cause error) *TabiError {
	return &TabiError{
		Type:        ErrorTypeSynthesis,
		Code:        code,
		Message:     message,
		Cause:       cause,
		Recoverable: true,
	}
}

// NewBundlingError creates a bundling error.
func NewBundlingError(code, message string, cause error) *TabiError {
	return &TabiError{
		Type:        ErrorTypeBundling,
		Code:        code,
		Message:     message,
		Cause:       cause,
		Recoverable: true,
	}
}

// NewRenderError creates a server-render error.
func NewRenderError(code, message string, cause error) *TabiError {
	return &TabiError{
		Type:        ErrorTypeRender,
		Code:        code,
		Message:     message,
		Cause:       cause,
		Recoverable: true,
	}
}

// NewSecurityError creates a security error.
func NewSecurityError(code, message string) *TabiError {
	return &TabiError{
		Type:        ErrorTypeSecurity,
		Code:        code,
		Message:     message,
		Recoverable: false,
	}
}

// NewCleanupError creates a cleanup error. Cleanup is best-effort, so
// these are recoverable by definition.
func NewCleanupError(code, message string, cause error) *TabiError {
	return &TabiError{
		Type:        ErrorTypeCleanup,
		Code:        code,
		Message:     message,
		Cause:       cause,
		Recoverable: true,
	}
}

// NewIOError creates an I/O error.
func NewIOError(code, message string, cause error) *TabiError {
	return &TabiError{
		Type:        ErrorTypeIO,
		Code:        code,
		Message:     message,
		Cause:       cause,
		Recoverable: false,
	}
}

// NewInternalError creates an internal error.
func NewInternalError(code, message string, cause error) *TabiError {
	return &TabiError{
		Type:        ErrorTypeInternal,
		Code:        code,
		Message:     message,
		Cause:       cause,
		Recoverable: false,
	}
}

// Error classification utilities

// IsRecoverable checks if an error is recoverable.
func IsRecoverable(err error) bool {
	var te *TabiError
	if errors.As(err, &te) {
		return te.Recoverable
	}

	return false
}

// IsSecurityError checks if an error is security-related.
func IsSecurityError(err error) bool {
	var te *TabiError
	if errors.As(err, &te) {
		return te.Type == ErrorTypeSecurity
	}

	return false
}

// IsBundlingError checks if an error came from the bundler.
func IsBundlingError(err error) bool {
	var te *TabiError
	if errors.As(err, &te) {
		return te.Type == ErrorTypeBundling
	}

	return false
}

// IsConfigError checks if an error is a configuration error.
func IsConfigError(err error) bool {
	var te *TabiError
	if errors.As(err, &te) {
		return te.Type == ErrorTypeConfig
	}

	return false
}

// RouteOf returns the route attached to an error, if any.
func RouteOf(err error) string {
	var te *TabiError
	if errors.As(err, &te) {
		return te.Route
	}

	return ""
}

// CodeOf returns the machine code attached to an error, "" for errors
// from outside this taxonomy.
func CodeOf(err error) string {
	var te *TabiError
	if errors.As(err, &te) {
		return te.Code
	}

	return ""
}

// Common error codes.
const (
	ErrCodeInvalidPath      = "ERR_INVALID_PATH"
	ErrCodePathTraversal    = "ERR_PATH_TRAVERSAL"
	ErrCodeNotAbsolute      = "ERR_NOT_ABSOLUTE"
	ErrCodeOutDirEscape     = "ERR_OUTDIR_ESCAPE"
	ErrCodeCommandInjection = "ERR_COMMAND_INJECTION"
	ErrCodeInvalidOrigin    = "ERR_INVALID_ORIGIN"
	ErrCodeUnsupportedPage  = "ERR_UNSUPPORTED_PAGE"
	ErrCodeRouteNotFound    = "ERR_ROUTE_NOT_FOUND"
	ErrCodeScanFailed       = "ERR_SCAN_FAILED"
	ErrCodeSynthFailed      = "ERR_SYNTH_FAILED"
	ErrCodeBundleFailed     = "ERR_BUNDLE_FAILED"
	ErrCodeEmptyBundle      = "ERR_EMPTY_BUNDLE"
	ErrCodeRenderFailed     = "ERR_RENDER_FAILED"
	ErrCodeStyleFailed      = "ERR_STYLE_FAILED"
	ErrCodeCleanupFailed    = "ERR_CLEANUP_FAILED"
	ErrCodeConfigInvalid    = "ERR_CONFIG_INVALID"
	ErrCodeFileNotFound     = "ERR_FILE_NOT_FOUND"
	ErrCodeWriteFailed      = "ERR_WRITE_FAILED"
	ErrCodeInternalError    = "ERR_INTERNAL"
)

// Helper functions for common errors

// ErrInvalidPath creates a path validation error.
func ErrInvalidPath(path string) *TabiError {
	return NewSecurityError(ErrCodeInvalidPath, "invalid path: "+path)
}

// ErrPathTraversal creates a path traversal security error.
func ErrPathTraversal(path string) *TabiError {
	return NewSecurityError(ErrCodePathTraversal, "path traversal attempt: "+path)
}

// ErrNotAbsolute reports a root that was configured as a relative path.
func ErrNotAbsolute(path string) *TabiError {
	return NewSecurityError(ErrCodeNotAbsolute, "path must be absolute: "+path)
}

// ErrOutDirEscape reports an output directory outside the project tree.
func ErrOutDirEscape(outDir string) *TabiError {
	return NewSecurityError(
		ErrCodeOutDirEscape,
		"output directory escapes the project: "+outDir,
	)
}

// ErrCommandInjection creates a command injection security error.
func ErrCommandInjection(command string) *TabiError {
	return NewSecurityError(
		ErrCodeCommandInjection,
		"command injection attempt: "+command,
	)
}

// ErrInvalidOrigin creates an invalid origin security error.
func ErrInvalidOrigin(origin string) *TabiError {
	return NewSecurityError(ErrCodeInvalidOrigin, "invalid origin: "+origin)
}

// ErrUnsupportedPage reports a page file whose extension has no builder.
func ErrUnsupportedPage(filePath string) *TabiError {
	return NewManifestError(
		ErrCodeUnsupportedPage,
		"unsupported page type: "+filePath,
		nil,
	)
}

// ErrRouteNotFound reports a request for a route absent from the manifest.
func ErrRouteNotFound(route string) *TabiError {
	return NewManifestError(
		ErrCodeRouteNotFound,
		"route not found: "+route,
		nil,
	).WithRoute(route)
}

// ErrBundleFailed wraps a bundler failure for a route.
func ErrBundleFailed(route string, cause error) *TabiError {
	return NewBundlingError(
		ErrCodeBundleFailed,
		"bundling failed",
		cause,
	).WithRoute(route)
}

// ErrEmptyBundle reports a bundle run that produced no output files.
func ErrEmptyBundle(route string) *TabiError {
	return NewBundlingError(
		ErrCodeEmptyBundle,
		"bundler produced no output",
		nil,
	).WithRoute(route)
}

// ErrRenderFailed wraps a server-render failure for a route.
func ErrRenderFailed(route string, cause error) *TabiError {
	return NewRenderError(
		ErrCodeRenderFailed,
		"server render failed",
		cause,
	).WithRoute(route)
}
