package spreadsheet

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"
)

// CellWriteRequest writes Value to a single cell. A string value that starts
// with '=' is stored as a formula.
type CellWriteRequest struct {
	WorkbookPath string
	SheetName    string
	Cell         string
	Value        any
}

// CellReadRequest reads a single cell.
type CellReadRequest struct {
	WorkbookPath string
	SheetName    string
	Cell         string
}

// RangeWriteRequest writes a block of rows starting at StartCell.
type RangeWriteRequest struct {
	WorkbookPath string
	SheetName    string
	StartCell    string
	Data         [][]any
}

// RangeReadRequest reads the block named by RangeRef.
type RangeReadRequest struct {
	WorkbookPath string
	SheetName    string
	RangeRef     string
}

// FormulaWriteRequest writes a formula to a single cell.
type FormulaWriteRequest struct {
	WorkbookPath string
	SheetName    string
	Cell         string
	Formula      string
}

// NewFormulaWriteRequest builds a request, prefixing the formula with '=' when it lacks one.
func NewFormulaWriteRequest(workbookPath, sheetName, cell, formula string) FormulaWriteRequest {
	return FormulaWriteRequest{
		WorkbookPath: workbookPath,
		SheetName:    sheetName,
		Cell:         strings.ToUpper(cell),
		Formula:      ensureFormulaPrefix(formula),
	}
}

// WriteCell writes one value to one cell.
func WriteCell(ctx context.Context, logger *logrus.Logger, req CellWriteRequest) (result CellResult) {
	defer recoverOperation(logger, "write cell", func(failed OperationResult) {
		result = CellResult{OperationResult: failed}
	})

	cell := strings.ToUpper(req.Cell)
	if err := ValidateFilePath(req.WorkbookPath, true); err != nil {
		return CellResult{OperationResult: Fail(err.Error())}
	}
	if err := ValidateCellReference(cell); err != nil {
		return CellResult{OperationResult: Fail(err.Error())}
	}

	f, err := openWorkbook(req.WorkbookPath)
	if err != nil {
		return CellResult{OperationResult: Failf("Failed to write cell: %v", err)}
	}
	defer closeWorkbook(f, logger)

	if failed, missing := sheetMissing(f, req.SheetName); missing {
		return CellResult{OperationResult: failed}
	}

	if err := writeValue(f, req.SheetName, cell, req.Value); err != nil {
		return CellResult{OperationResult: Failf("Failed to write cell: %v", err)}
	}

	if err := saveWorkbook(f, req.WorkbookPath, logger); err != nil {
		return CellResult{OperationResult: Failf("Failed to write cell: %v", err)}
	}

	return CellResult{
		OperationResult: Succeed(fmt.Sprintf("Value written to %s", cell)),
		Cell:            cell,
		Value:           req.Value,
	}
}

// ReadCell reads one cell. Formula cells report their formula text.
func ReadCell(ctx context.Context, logger *logrus.Logger, req CellReadRequest) (result CellResult) {
	defer recoverOperation(logger, "read cell", func(failed OperationResult) {
		result = CellResult{OperationResult: failed}
	})

	cell := strings.ToUpper(req.Cell)
	if err := ValidateFilePath(req.WorkbookPath, true); err != nil {
		return CellResult{OperationResult: Fail(err.Error())}
	}
	if err := ValidateCellReference(cell); err != nil {
		return CellResult{OperationResult: Fail(err.Error())}
	}

	f, err := openWorkbook(req.WorkbookPath)
	if err != nil {
		return CellResult{OperationResult: Failf("Failed to read cell: %v", err)}
	}
	defer closeWorkbook(f, logger)

	if failed, missing := sheetMissing(f, req.SheetName); missing {
		return CellResult{OperationResult: failed}
	}

	value, err := readValue(f, req.SheetName, cell)
	if err != nil {
		return CellResult{OperationResult: Failf("Failed to read cell: %v", err)}
	}

	return CellResult{
		OperationResult: Succeed(fmt.Sprintf("Value read from %s", cell)),
		Cell:            cell,
		Value:           value,
	}
}

// WriteRange writes a block of rows starting at the top-left cell. Rows may be
// ragged; the reported column count is the longest row.
func WriteRange(ctx context.Context, logger *logrus.Logger, req RangeWriteRequest) (result RangeResult) {
	defer recoverOperation(logger, "write range", func(failed OperationResult) {
		result = RangeResult{OperationResult: failed}
	})

	start := strings.ToUpper(req.StartCell)
	if err := ValidateFilePath(req.WorkbookPath, true); err != nil {
		return RangeResult{OperationResult: Fail(err.Error())}
	}
	if len(req.Data) == 0 || len(req.Data[0]) == 0 {
		return RangeResult{OperationResult: Fail("Data cannot be empty")}
	}

	startCol, startRow, err := ParseCellReference(start)
	if err != nil {
		return RangeResult{OperationResult: Fail(err.Error())}
	}

	f, err := openWorkbook(req.WorkbookPath)
	if err != nil {
		return RangeResult{OperationResult: Failf("Failed to write range: %v", err)}
	}
	defer closeWorkbook(f, logger)

	if failed, missing := sheetMissing(f, req.SheetName); missing {
		return RangeResult{OperationResult: failed}
	}

	cols := 0
	for i, row := range req.Data {
		cols = max(cols, len(row))
		for j, value := range row {
			name, err := cellName(startCol+j, startRow+i)
			if err != nil {
				return RangeResult{OperationResult: Failf("Failed to write range: %v", err)}
			}
			if err := writeValue(f, req.SheetName, name, value); err != nil {
				return RangeResult{OperationResult: Failf("Failed to write range: %v", err)}
			}
		}
	}

	if err := saveWorkbook(f, req.WorkbookPath, logger); err != nil {
		return RangeResult{OperationResult: Failf("Failed to write range: %v", err)}
	}

	logger.WithFields(logrus.Fields{
		"file_path": req.WorkbookPath,
		"sheet":     req.SheetName,
		"start":     start,
		"rows":      len(req.Data),
		"cols":      cols,
	}).Debug("Range written")

	return RangeResult{
		OperationResult: Succeed(fmt.Sprintf("Data written to range starting at %s", start)),
		Range:           start,
		Rows:            intPtr(len(req.Data)),
		Cols:            intPtr(cols),
	}
}

// ReadRange reads a rectangular block. A single-cell range still yields a 1x1 grid.
func ReadRange(ctx context.Context, logger *logrus.Logger, req RangeReadRequest) (result RangeResult) {
	defer recoverOperation(logger, "read range", func(failed OperationResult) {
		result = RangeResult{OperationResult: failed}
	})

	rangeRef := strings.ToUpper(req.RangeRef)
	if err := ValidateFilePath(req.WorkbookPath, true); err != nil {
		return RangeResult{OperationResult: Fail(err.Error())}
	}

	bounds, err := ParseRangeReference(rangeRef)
	if err != nil {
		return RangeResult{OperationResult: Fail(err.Error())}
	}

	f, err := openWorkbook(req.WorkbookPath)
	if err != nil {
		return RangeResult{OperationResult: Failf("Failed to read range: %v", err)}
	}
	defer closeWorkbook(f, logger)

	if failed, missing := sheetMissing(f, req.SheetName); missing {
		return RangeResult{OperationResult: failed}
	}

	data := make([][]any, 0, bounds.Rows())
	for row := bounds.StartRow; row <= bounds.EndRow; row++ {
		values := make([]any, 0, bounds.Cols())
		for col := bounds.StartCol; col <= bounds.EndCol; col++ {
			name, err := cellName(col, row)
			if err != nil {
				return RangeResult{OperationResult: Failf("Failed to read range: %v", err)}
			}
			value, err := readValue(f, req.SheetName, name)
			if err != nil {
				return RangeResult{OperationResult: Failf("Failed to read range: %v", err)}
			}
			values = append(values, value)
		}
		data = append(data, values)
	}

	return RangeResult{
		OperationResult: Succeed(fmt.Sprintf("Data read from range %s", rangeRef)),
		Range:           rangeRef,
		Rows:            intPtr(bounds.Rows()),
		Cols:            intPtr(bounds.Cols()),
		Data:            data,
	}
}

// WriteFormula stores a formula in one cell after screening it with ValidateFormula.
func WriteFormula(ctx context.Context, logger *logrus.Logger, req FormulaWriteRequest) (result CellResult) {
	defer recoverOperation(logger, "write formula", func(failed OperationResult) {
		result = CellResult{OperationResult: failed}
	})

	cell := strings.ToUpper(req.Cell)
	formula := ensureFormulaPrefix(req.Formula)
	if err := ValidateFilePath(req.WorkbookPath, true); err != nil {
		return CellResult{OperationResult: Fail(err.Error())}
	}
	if err := ValidateCellReference(cell); err != nil {
		return CellResult{OperationResult: Fail(err.Error())}
	}
	if err := ValidateFormula(formula); err != nil {
		return CellResult{OperationResult: Fail(err.Error())}
	}

	f, err := openWorkbook(req.WorkbookPath)
	if err != nil {
		return CellResult{OperationResult: Failf("Failed to write formula: %v", err)}
	}
	defer closeWorkbook(f, logger)

	if failed, missing := sheetMissing(f, req.SheetName); missing {
		return CellResult{OperationResult: failed}
	}

	if err := f.SetCellFormula(req.SheetName, cell, strings.TrimPrefix(formula, "=")); err != nil {
		return CellResult{OperationResult: Failf("Failed to write formula: %v", err)}
	}

	if err := saveWorkbook(f, req.WorkbookPath, logger); err != nil {
		return CellResult{OperationResult: Failf("Failed to write formula: %v", err)}
	}

	return CellResult{
		OperationResult: Succeed(fmt.Sprintf("Formula written to %s", cell)),
		Cell:            cell,
		Value:           formula,
	}
}

func ensureFormulaPrefix(formula string) string {
	if strings.HasPrefix(formula, "=") {
		return formula
	}
	return "=" + formula
}

// writeValue stores a decoded JSON value in a cell.
func writeValue(f *excelize.File, sheet, cell string, value any) error {
	switch v := value.(type) {
	case nil:
		return f.SetCellDefault(sheet, cell, "")
	case string:
		if len(v) > 1 && strings.HasPrefix(v, "=") {
			return f.SetCellFormula(sheet, cell, v[1:])
		}
		return f.SetCellStr(sheet, cell, v)
	case []any, map[string]any:
		return f.SetCellStr(sheet, cell, fmt.Sprint(v))
	default:
		return f.SetCellValue(sheet, cell, v)
	}
}

// readValue returns a cell's content as a JSON-friendly value: nil when empty,
// "=..." for formulas, bool for boolean cells, float64 for numbers and string
// otherwise.
func readValue(f *excelize.File, sheet, cell string) (any, error) {
	formula, err := f.GetCellFormula(sheet, cell)
	if err != nil {
		return nil, err
	}
	if formula != "" {
		return "=" + strings.TrimPrefix(formula, "="), nil
	}

	raw, err := f.GetCellValue(sheet, cell, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, err
	}
	if raw == "" {
		return nil, nil
	}

	cellType, err := f.GetCellType(sheet, cell)
	if err != nil {
		return nil, err
	}

	switch cellType {
	case excelize.CellTypeBool:
		return raw == "1" || strings.EqualFold(raw, "true"), nil
	case excelize.CellTypeNumber, excelize.CellTypeUnset:
		if n, err := strconv.ParseFloat(raw, 64); err == nil {
			return n, nil
		}
		return raw, nil
	default:
		return raw, nil
	}
}
