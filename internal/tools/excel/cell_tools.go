package excel

import (
	"context"
	"errors"
	"fmt"
	"strings"

	z "github.com/Oudwins/zog"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/sammcj/mcp-excel/internal/registry"
	"github.com/sammcj/mcp-excel/internal/security"
	"github.com/sammcj/mcp-excel/internal/spreadsheet"
	"github.com/sammcj/mcp-excel/internal/tools"
	"github.com/sirupsen/logrus"
)

const (
	writeCellName    = "write_cell"
	readCellName     = "read_cell"
	writeRangeName   = "write_range"
	readRangeName    = "read_range"
	writeFormulaName = "write_formula"
)

func init() {
	registry.Register(&WriteCellTool{})
	registry.Register(&ReadCellTool{})
	registry.Register(&WriteRangeTool{})
	registry.Register(&ReadRangeTool{})
	registry.Register(&WriteFormulaTool{})
}

type cellArgs struct {
	WorkbookPath string `zog:"workbook_path"`
	SheetName    string `zog:"sheet_name"`
	Cell         string `zog:"cell"`
}

var cellSchema = z.Struct(z.Shape{
	"workbookPath": z.String().Required(),
	"sheetName":    z.String().Required(),
	"cell":         z.String().Required(),
})

func (a *cellArgs) Validate() error {
	a.Cell = strings.ToUpper(strings.TrimSpace(a.Cell))
	return errors.Join(
		spreadsheet.ValidateSheetName(a.SheetName),
		spreadsheet.ValidateCellReference(a.Cell),
	)
}

// WriteCellTool writes a single value
type WriteCellTool struct{}

// Definition returns the tool's definition for MCP registration
func (t *WriteCellTool) Definition() mcp.Tool {
	tool := newTool(writeCellName, workbookPathParam,
		"Write one value to one cell. Strings starting with '=' are stored as formulas; null clears the cell.",
		mutating(true, true),
		sheetNameParam("Sheet to write to"),
		mcp.WithString("cell", mcp.Required(), mcp.Description("Cell reference such as 'A1' or 'B10'")),
	)
	// value takes several JSON types, which the typed option builders cannot express
	tool.InputSchema.Properties["value"] = map[string]any{
		"type":        []string{"string", "number", "boolean", "null"},
		"description": "String, number, boolean or null",
	}
	tool.InputSchema.Required = append(tool.InputSchema.Required, "value")
	return tool
}

// Execute writes the value
func (t *WriteCellTool) Execute(ctx context.Context, logger *logrus.Logger, args map[string]any) (*mcp.CallToolResult, error) {
	var req cellArgs
	if err := decodeArgs(cellSchema, args, &req); err != nil {
		return nil, err
	}
	value, ok := args["value"]
	if !ok {
		return nil, fmt.Errorf("invalid parameters: value: is required")
	}
	if err := checkScalar(value); err != nil {
		return nil, fmt.Errorf("invalid parameters: value: %w", err)
	}

	path := resolvePath(req.WorkbookPath)
	entry := callLogger(ctx, logger, writeCellName, path).WithField("cell", req.Cell)
	if err := security.CheckFileAccess(path); err != nil {
		return respond(entry, spreadsheet.Fail(err.Error()))
	}

	return respond(entry, spreadsheet.WriteCell(ctx, logger, spreadsheet.CellWriteRequest{
		WorkbookPath: path,
		SheetName:    req.SheetName,
		Cell:         req.Cell,
		Value:        value,
	}))
}

// ReadCellTool reads a single value
type ReadCellTool struct{}

// Definition returns the tool's definition for MCP registration
func (t *ReadCellTool) Definition() mcp.Tool {
	return newTool(readCellName, workbookPathParam,
		"Read one cell. Numbers come back as numbers, booleans as booleans, empty cells as null and formulas as their '=' text.",
		readOnly(),
		sheetNameParam("Sheet to read from"),
		mcp.WithString("cell", mcp.Required(), mcp.Description("Cell reference such as 'A1' or 'B10'")),
	)
}

// Execute reads the value
func (t *ReadCellTool) Execute(ctx context.Context, logger *logrus.Logger, args map[string]any) (*mcp.CallToolResult, error) {
	var req cellArgs
	if err := decodeArgs(cellSchema, args, &req); err != nil {
		return nil, err
	}

	path := resolvePath(req.WorkbookPath)
	entry := callLogger(ctx, logger, readCellName, path).WithField("cell", req.Cell)
	if err := security.CheckFileAccess(path); err != nil {
		return respond(entry, spreadsheet.Fail(err.Error()))
	}

	return respond(entry, spreadsheet.ReadCell(ctx, logger, spreadsheet.CellReadRequest{
		WorkbookPath: path,
		SheetName:    req.SheetName,
		Cell:         req.Cell,
	}))
}

// WriteRangeTool writes a block of rows
type WriteRangeTool struct{}

type writeRangeArgs struct {
	WorkbookPath string `zog:"workbook_path"`
	SheetName    string `zog:"sheet_name"`
	StartCell    string `zog:"start_cell"`
}

var writeRangeSchema = z.Struct(z.Shape{
	"workbookPath": z.String().Required(),
	"sheetName":    z.String().Required(),
	"startCell":    z.String().Required(),
})

func (a *writeRangeArgs) Validate() error {
	a.StartCell = strings.ToUpper(strings.TrimSpace(a.StartCell))
	return errors.Join(
		spreadsheet.ValidateSheetName(a.SheetName),
		spreadsheet.ValidateCellReference(a.StartCell),
	)
}

// Definition returns the tool's definition for MCP registration
func (t *WriteRangeTool) Definition() mcp.Tool {
	return newTool(writeRangeName, workbookPathParam,
		"Write a 2D array of values starting at a top-left cell. Rows may differ in length. Strings starting with '=' are stored as formulas.",
		mutating(true, true),
		sheetNameParam("Sheet to write to"),
		mcp.WithString("start_cell", mcp.Required(), mcp.Description("Top-left cell of the block, such as 'A1'")),
		mcp.WithArray("data",
			mcp.Required(),
			mcp.Description("Rows of values. Example: [['Month','Sales'],['Jan',5000],['Total','=SUM(B2:B2)']]"),
			mcp.Items(map[string]any{
				"type":  "array",
				"items": map[string]any{},
			}),
		),
	)
}

// Execute writes the block
func (t *WriteRangeTool) Execute(ctx context.Context, logger *logrus.Logger, args map[string]any) (*mcp.CallToolResult, error) {
	var req writeRangeArgs
	if err := decodeArgs(writeRangeSchema, args, &req); err != nil {
		return nil, err
	}
	data, err := decodeRows(args["data"])
	if err != nil {
		return nil, fmt.Errorf("invalid parameters: data: %w", err)
	}

	path := resolvePath(req.WorkbookPath)
	entry := callLogger(ctx, logger, writeRangeName, path).WithFields(logrus.Fields{
		"start_cell": req.StartCell,
		"rows":       len(data),
	})
	if err := security.CheckFileAccess(path); err != nil {
		return respond(entry, spreadsheet.Fail(err.Error()))
	}

	return respond(entry, spreadsheet.WriteRange(ctx, logger, spreadsheet.RangeWriteRequest{
		WorkbookPath: path,
		SheetName:    req.SheetName,
		StartCell:    req.StartCell,
		Data:         data,
	}))
}

// ProvideExtendedInfo provides detailed usage information for write_range
func (t *WriteRangeTool) ProvideExtendedInfo() *tools.ExtendedHelp {
	return &tools.ExtendedHelp{
		Examples: []tools.ToolExample{
			{
				Description: "Write a small table with a total formula",
				Arguments: map[string]any{
					"workbook_path": "/path/to/sales.xlsx",
					"sheet_name":    "Q1",
					"start_cell":    "A1",
					"data": [][]any{
						{"Month", "Sales"},
						{"Jan", 5000},
						{"Feb", 6500},
						{"Total", "=SUM(B2:B3)"},
					},
				},
				ExpectedResult: `{"success": true, "message": "Data written to range starting at A1", "range": "A1", "rows": 4, "cols": 2}`,
			},
		},
		CommonPatterns: []string{
			"Write headers and data in one call rather than one write_cell per value",
			"Follow with format_font on the header row and format_number on numeric columns",
			"Cross-sheet formulas use 'Sheet!A1' syntax, e.g. '=Q1!B5'",
		},
		Troubleshooting: []tools.TroubleshootingTip{
			{
				Problem:  "Data cannot be empty",
				Solution: "data must contain at least one row and the first row must contain at least one value.",
			},
			{
				Problem:  "Formula shows as text",
				Solution: "A formula string must start with '=' and be longer than the '=' itself.",
			},
		},
		ParameterDetails: map[string]string{
			"data":       "Array of rows. Each row is an array of strings, numbers, booleans or nulls. cols in the result is the length of the longest row.",
			"start_cell": "Top-left corner. The block grows right and down from here, past any existing data.",
		},
		WhenToUse:    "Writing more than a couple of cells at once.",
		WhenNotToUse: "Writing a single formula that should be checked for prohibited functions (use write_formula).",
	}
}

// ReadRangeTool reads a rectangular block
type ReadRangeTool struct{}

type readRangeArgs struct {
	WorkbookPath string `zog:"workbook_path"`
	SheetName    string `zog:"sheet_name"`
	RangeRef     string `zog:"range_ref"`
}

var readRangeSchema = z.Struct(z.Shape{
	"workbookPath": z.String().Required(),
	"sheetName":    z.String().Required(),
	"rangeRef":     z.String().Required(),
})

func (a *readRangeArgs) Validate() error {
	a.RangeRef = strings.ToUpper(strings.TrimSpace(a.RangeRef))
	return errors.Join(
		spreadsheet.ValidateSheetName(a.SheetName),
		spreadsheet.ValidateRangeReference(a.RangeRef),
	)
}

// Definition returns the tool's definition for MCP registration
func (t *ReadRangeTool) Definition() mcp.Tool {
	return newTool(readRangeName, workbookPathParam,
		"Read a rectangular block of cells as a 2D array of rows, using the same value types as read_cell.",
		readOnly(),
		sheetNameParam("Sheet to read from"),
		mcp.WithString("range_ref", mcp.Required(), mcp.Description("Range such as 'A1:C10'")),
	)
}

// Execute reads the block
func (t *ReadRangeTool) Execute(ctx context.Context, logger *logrus.Logger, args map[string]any) (*mcp.CallToolResult, error) {
	var req readRangeArgs
	if err := decodeArgs(readRangeSchema, args, &req); err != nil {
		return nil, err
	}

	path := resolvePath(req.WorkbookPath)
	entry := callLogger(ctx, logger, readRangeName, path).WithField("range", req.RangeRef)
	if err := security.CheckFileAccess(path); err != nil {
		return respond(entry, spreadsheet.Fail(err.Error()))
	}

	return respond(entry, spreadsheet.ReadRange(ctx, logger, spreadsheet.RangeReadRequest{
		WorkbookPath: path,
		SheetName:    req.SheetName,
		RangeRef:     req.RangeRef,
	}))
}

// WriteFormulaTool writes a checked formula to a single cell
type WriteFormulaTool struct{}

type writeFormulaArgs struct {
	WorkbookPath string `zog:"workbook_path"`
	SheetName    string `zog:"sheet_name"`
	Cell         string `zog:"cell"`
	Formula      string `zog:"formula"`
}

var writeFormulaSchema = z.Struct(z.Shape{
	"workbookPath": z.String().Required(),
	"sheetName":    z.String().Required(),
	"cell":         z.String().Required(),
	"formula":      z.String().Required(),
})

func (a *writeFormulaArgs) Validate() error {
	a.Cell = strings.ToUpper(strings.TrimSpace(a.Cell))
	return errors.Join(
		spreadsheet.ValidateSheetName(a.SheetName),
		spreadsheet.ValidateCellReference(a.Cell),
	)
}

// Definition returns the tool's definition for MCP registration
func (t *WriteFormulaTool) Definition() mcp.Tool {
	return newTool(writeFormulaName, workbookPathParam,
		"Write a formula to one cell. A missing leading '=' is added. Formulas naming CALL, REGISTER or EXEC are refused.",
		mutating(true, true),
		sheetNameParam("Sheet to write to"),
		mcp.WithString("cell", mcp.Required(), mcp.Description("Cell reference such as 'C2'")),
		mcp.WithString("formula", mcp.Required(), mcp.Description("Formula such as '=SUM(A1:A10)' or 'A1*2'")),
	)
}

// Execute writes the formula
func (t *WriteFormulaTool) Execute(ctx context.Context, logger *logrus.Logger, args map[string]any) (*mcp.CallToolResult, error) {
	var req writeFormulaArgs
	if err := decodeArgs(writeFormulaSchema, args, &req); err != nil {
		return nil, err
	}

	path := resolvePath(req.WorkbookPath)
	entry := callLogger(ctx, logger, writeFormulaName, path).WithField("cell", req.Cell)
	if err := security.CheckFileAccess(path); err != nil {
		return respond(entry, spreadsheet.Fail(err.Error()))
	}

	return respond(entry, spreadsheet.WriteFormula(ctx, logger,
		spreadsheet.NewFormulaWriteRequest(path, req.SheetName, req.Cell, req.Formula)))
}

// ProvideExtendedInfo provides detailed usage information for write_formula
func (t *WriteFormulaTool) ProvideExtendedInfo() *tools.ExtendedHelp {
	return &tools.ExtendedHelp{
		Examples: []tools.ToolExample{
			{
				Description: "Sum a column",
				Arguments: map[string]any{
					"workbook_path": "/path/to/sales.xlsx",
					"sheet_name":    "Q1",
					"cell":          "B5",
					"formula":       "SUM(B2:B4)",
				},
				ExpectedResult: `{"success": true, "message": "Formula written to B5", "cell": "B5", "value": "=SUM(B2:B4)"}`,
			},
		},
		Troubleshooting: []tools.TroubleshootingTip{
			{
				Problem:  "Formula contains prohibited function",
				Solution: "The check is a plain text match on CALL, REGISTER and EXEC, so names that merely contain these letters (for example a sheet called 'Recall') are refused too. Rename the sheet or reference.",
			},
			{
				Problem:  "read_cell returns the formula rather than its result",
				Solution: "There is no calculation engine. Formulas are stored as text and calculated when the workbook is opened in a spreadsheet application.",
			},
		},
	}
}

// checkScalar accepts the JSON value kinds a single cell can hold.
func checkScalar(value any) error {
	switch value.(type) {
	case nil, string, bool, float64, float32, int, int64, int32:
		return nil
	default:
		return fmt.Errorf("must be a string, number, boolean or null, got %T", value)
	}
}

// decodeRows converts decoded JSON into rows of cell values.
func decodeRows(raw any) ([][]any, error) {
	if raw == nil {
		return nil, fmt.Errorf("is required")
	}

	switch rows := raw.(type) {
	case [][]any:
		return rows, nil
	case []any:
		data := make([][]any, 0, len(rows))
		for i, row := range rows {
			values, ok := row.([]any)
			if !ok {
				return nil, fmt.Errorf("row %d must be an array", i)
			}
			for j, value := range values {
				if err := checkScalar(value); err != nil {
					return nil, fmt.Errorf("row %d column %d %w", i, j, err)
				}
			}
			data = append(data, values)
		}
		return data, nil
	default:
		return nil, fmt.Errorf("must be an array of rows")
	}
}
