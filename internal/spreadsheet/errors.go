package spreadsheet

import "fmt"

// WorkbookError represents a failure to open or inspect a workbook file.
// Message is shown to callers as-is; Cause carries the underlying error when there is one.
type WorkbookError struct {
	Operation string
	Path      string
	Message   string
	Cause     error
}

func (e *WorkbookError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("workbook error during %s on %s: %v", e.Operation, e.Path, e.Cause)
}

func (e *WorkbookError) Unwrap() error {
	return e.Cause
}

// SheetError represents errors related to worksheet operations
type SheetError struct {
	Operation string
	SheetName string
	Cause     error
}

func (e *SheetError) Error() string {
	return fmt.Sprintf("worksheet error during %s on sheet '%s': %v", e.Operation, e.SheetName, e.Cause)
}

func (e *SheetError) Unwrap() error {
	return e.Cause
}

// ValidationError represents an input-shape failure detected before any file is touched.
type ValidationError struct {
	Field   string
	Value   any
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// FormatError represents formatting errors
type FormatError struct {
	Operation string
	Range     string
	Cause     error
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("formatting error during %s on range '%s': %v", e.Operation, e.Range, e.Cause)
}

func (e *FormatError) Unwrap() error {
	return e.Cause
}
