// =============================================================================
// ASIN Tax Reconciler - Validation Errors
// =============================================================================
//
// This module defines the error taxonomy shared by every component. Load-time
// errors (MissingFile, EmptySource, Schema, SheetNotFound) abort a run before
// anything is written. Automation errors are never fatal; the workbook layer
// downgrades them to warnings.
//
// USAGE:
//   if errors.Is(err, validation.ErrSchema) { ... }
//
//   var se *validation.SchemaError
//   if errors.As(err, &se) { fmt.Println(se.Missing) }
//
// =============================================================================

package validation

import (
	"errors"
	"fmt"
	"strings"
)

// =============================================================================
// SENTINEL ERRORS
// =============================================================================

var (
	// ErrMissingFile is returned when an input path does not exist.
	ErrMissingFile = errors.New("missing file")

	// ErrEmptySource is returned when a source has no header or content.
	ErrEmptySource = errors.New("empty source")

	// ErrSchema is returned when a required column is absent.
	ErrSchema = errors.New("schema error")

	// ErrSheetNotFound is returned when the named worksheet is absent.
	ErrSheetNotFound = errors.New("sheet not found")

	// ErrAutomationUnavailable is returned when host automation cannot run
	// on this machine.
	ErrAutomationUnavailable = errors.New("workbook automation unavailable")

	// ErrAutomationFailed is returned when a host automation call fails or
	// times out.
	ErrAutomationFailed = errors.New("workbook automation failed")
)

// =============================================================================
// TYPED ERRORS
// =============================================================================

// SchemaError names every required column missing from a source.
type SchemaError struct {
	// Source describes the file (e.g. "base", "report").
	Source string

	// Missing lists the normalized names of the absent columns.
	Missing []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("%s: missing required column(s) in %s: %s",
		ErrSchema, e.Source, strings.Join(e.Missing, ", "))
}

// Unwrap lets errors.Is match ErrSchema.
func (e *SchemaError) Unwrap() error { return ErrSchema }

// SheetNotFoundError names the requested sheet and the available ones.
type SheetNotFoundError struct {
	Sheet     string
	Available []string
}

func (e *SheetNotFoundError) Error() string {
	return fmt.Sprintf("%s: %q (available: %s)",
		ErrSheetNotFound, e.Sheet, strings.Join(e.Available, ", "))
}

// Unwrap lets errors.Is match ErrSheetNotFound.
func (e *SheetNotFoundError) Unwrap() error { return ErrSheetNotFound }

// MissingFile wraps ErrMissingFile with the offending path.
func MissingFile(role, path string) error {
	return fmt.Errorf("%w: %s file does not exist: %s", ErrMissingFile, role, path)
}

// EmptySource wraps ErrEmptySource with the offending path.
func EmptySource(role, path string) error {
	return fmt.Errorf("%w: %s file has no header: %s", ErrEmptySource, role, path)
}
