package spreadsheet

import "fmt"

// Result is implemented by every operation outcome so the tool layer can
// flatten it without knowing the concrete type.
type Result interface {
	Succeeded() bool
	ToMap() map[string]any
}

// OperationResult is the common outcome shape. Expected failures are reported
// with Success=false and a message instead of an error.
type OperationResult struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// Fail builds a failed result with the given message.
func Fail(message string) OperationResult {
	return OperationResult{Success: false, Message: message}
}

// Failf builds a failed result with a formatted message.
func Failf(format string, args ...any) OperationResult {
	return Fail(fmt.Sprintf(format, args...))
}

// Succeed builds a successful result with the given message.
func Succeed(message string) OperationResult {
	return OperationResult{Success: true, Message: message}
}

func (r OperationResult) Succeeded() bool { return r.Success }

func (r OperationResult) ToMap() map[string]any {
	m := map[string]any{"success": r.Success}
	if r.Message != "" {
		m["message"] = r.Message
	}
	return m
}

// WorkbookResult is returned by workbook-level mutations.
type WorkbookResult struct {
	OperationResult
	FilePath string `json:"file_path,omitempty"`
}

func (r WorkbookResult) ToMap() map[string]any {
	m := r.OperationResult.ToMap()
	if r.FilePath != "" {
		m["file_path"] = r.FilePath
	}
	return m
}

// SheetResult is returned by sheet create, delete, rename and copy.
type SheetResult struct {
	OperationResult
	SheetName string `json:"sheet_name,omitempty"`
}

func (r SheetResult) ToMap() map[string]any {
	m := r.OperationResult.ToMap()
	if r.SheetName != "" {
		m["sheet_name"] = r.SheetName
	}
	return m
}

// CellResult is returned by single-cell reads and writes. Value is reported
// (possibly as null) whenever Cell is set.
type CellResult struct {
	OperationResult
	Cell  string `json:"cell,omitempty"`
	Value any    `json:"value"`
}

func (r CellResult) ToMap() map[string]any {
	m := r.OperationResult.ToMap()
	if r.Cell != "" {
		m["cell"] = r.Cell
		m["value"] = r.Value
	}
	return m
}

// RangeResult is returned by block reads and writes.
type RangeResult struct {
	OperationResult
	Range string  `json:"range,omitempty"`
	Rows  *int    `json:"rows,omitempty"`
	Cols  *int    `json:"cols,omitempty"`
	Data  [][]any `json:"data,omitempty"`
}

func (r RangeResult) ToMap() map[string]any {
	m := r.OperationResult.ToMap()
	if r.Range != "" {
		m["range"] = r.Range
	}
	if r.Rows != nil {
		m["rows"] = *r.Rows
	}
	if r.Cols != nil {
		m["cols"] = *r.Cols
	}
	if r.Data != nil {
		m["data"] = r.Data
	}
	return m
}

// WorkbookInfo describes a workbook on disk.
type WorkbookInfo struct {
	FilePath   string   `json:"file_path"`
	Sheets     []string `json:"sheets"`
	SheetCount int      `json:"sheet_count"`
	FileSize   *int64   `json:"file_size,omitempty"`
}

func (i WorkbookInfo) ToMap() map[string]any {
	m := map[string]any{
		"file_path":   i.FilePath,
		"sheets":      i.Sheets,
		"sheet_count": i.SheetCount,
	}
	if i.FileSize != nil {
		m["file_size"] = *i.FileSize
	}
	return m
}

// ErrorMap flattens an error returned by a metadata query.
func ErrorMap(err error) map[string]any {
	return map[string]any{"success": false, "error": err.Error()}
}

func intPtr(v int) *int { return &v }
