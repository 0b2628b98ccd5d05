package errors

import (
	"errors"
	"fmt"
)

// Wrap wraps an error with additional context, creating a TabiError if the
// input is not already one.
func Wrap(err error, errType ErrorType, code, message string) *TabiError {
	if err == nil {
		return nil
	}

	// Preserve route/file/diagnostics from an inner TabiError.
	var te *TabiError
	if errors.As(err, &te) {
		return &TabiError{
			Type:        errType,
			Code:        code,
			Message:     message,
			Cause:       te,
			Route:       te.Route,
			FilePath:    te.FilePath,
			Diagnostics: te.Diagnostics,
			Recoverable: te.Recoverable,
		}
	}

	return &TabiError{
		Type:        errType,
		Code:        code,
		Message:     message,
		Cause:       err,
		Recoverable: errType != ErrorTypeSecurity && errType != ErrorTypeConfig && errType != ErrorTypeInternal && errType != ErrorTypeIO,
	}
}

// WrapIO wraps an error as an I/O error.
func WrapIO(err error, code, message string) *TabiError {
	tabiErr := Wrap(err, ErrorTypeIO, code, message)
	if tabiErr != nil {
		tabiErr.Recoverable = false
	}

	return tabiErr
}

// WrapInternal wraps an error as an internal error.
func WrapInternal(err error, code, message string) *TabiError {
	tabiErr := Wrap(err, ErrorTypeInternal, code, message)
	if tabiErr != nil {
		tabiErr.Recoverable = false
	}

	return tabiErr
}

// FormatError formats an error for user display.
func FormatError(err error) string {
	if err == nil {
		return ""
	}

	var te *TabiError
	if errors.As(err, &te) {
		return te.Error()
	}

	return err.Error()
}

// FirstError returns the first non-nil error from a list.
func FirstError(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}

	return nil
}

// CombineErrors combines multiple errors into a single error. A single
// error passes through unchanged.
func CombineErrors(errs ...error) error {
	var nonNil []error
	for _, err := range errs {
		if err != nil {
			nonNil = append(nonNil, err)
		}
	}

	switch len(nonNil) {
	case 0:
		return nil
	case 1:
		return nonNil[0]
	}

	var diags []Diagnostic
	for _, err := range nonNil {
		diags = append(diags, DiagnosticsOf(err)...)
	}

	return (&TabiError{
		Type:        ErrorTypeInternal,
		Code:        "ERR_MULTIPLE_ERRORS",
		Message:     fmt.Sprintf("%d errors occurred", len(nonNil)),
		Cause:       nonNil[0],
		Recoverable: false,
	}).WithDiagnostics(diags)
}
