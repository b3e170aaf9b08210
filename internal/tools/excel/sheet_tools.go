package excel

import (
	"context"
	"errors"

	z "github.com/Oudwins/zog"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/sammcj/mcp-excel/internal/registry"
	"github.com/sammcj/mcp-excel/internal/security"
	"github.com/sammcj/mcp-excel/internal/spreadsheet"
	"github.com/sammcj/mcp-excel/internal/tools"
	"github.com/sirupsen/logrus"
)

const (
	createSheetName = "create_sheet"
	deleteSheetName = "delete_sheet"
	renameSheetName = "rename_sheet"
	copySheetName   = "copy_sheet"
)

func init() {
	registry.Register(&CreateSheetTool{})
	registry.Register(&DeleteSheetTool{})
	registry.Register(&RenameSheetTool{})
	registry.Register(&CopySheetTool{})
}

// CreateSheetTool adds a worksheet
type CreateSheetTool struct{}

type createSheetArgs struct {
	WorkbookPath string `zog:"workbook_path"`
	SheetName    string `zog:"sheet_name"`
	Index        *int   `zog:"index"`
}

var createSheetSchema = z.Struct(z.Shape{
	"workbookPath": z.String().Required(),
	"sheetName":    z.String().Required(),
	"index":        z.Ptr(z.Int()),
})

func (a *createSheetArgs) Validate() error {
	return spreadsheet.ValidateSheetName(a.SheetName)
}

// Definition returns the tool's definition for MCP registration
func (t *CreateSheetTool) Definition() mcp.Tool {
	return newTool(createSheetName, workbookPathParam,
		"Add an empty worksheet to an existing workbook, optionally at a 0-based tab position.",
		mutating(false, false),
		sheetNameParam("Name of the new sheet (max 31 characters, none of : \\ / ? * [ ])"),
		mcp.WithNumber("index",
			mcp.Description("0-based tab position. Omit to append. Values past the end append; negative values insert first."),
		),
	)
}

// Execute creates the sheet
func (t *CreateSheetTool) Execute(ctx context.Context, logger *logrus.Logger, args map[string]any) (*mcp.CallToolResult, error) {
	var req createSheetArgs
	if err := decodeArgs(createSheetSchema, args, &req); err != nil {
		return nil, err
	}

	path := resolvePath(req.WorkbookPath)
	entry := callLogger(ctx, logger, createSheetName, path).WithField("sheet", req.SheetName)
	if err := security.CheckFileAccess(path); err != nil {
		return respond(entry, spreadsheet.Fail(err.Error()))
	}

	return respond(entry, spreadsheet.CreateSheet(ctx, logger, spreadsheet.CreateSheetRequest{
		WorkbookPath: path,
		SheetName:    req.SheetName,
		Index:        req.Index,
	}))
}

// DeleteSheetTool removes a worksheet
type DeleteSheetTool struct{}

type sheetArgs struct {
	WorkbookPath string `zog:"workbook_path"`
	SheetName    string `zog:"sheet_name"`
}

var sheetSchema = z.Struct(z.Shape{
	"workbookPath": z.String().Required(),
	"sheetName":    z.String().Required(),
})

func (a *sheetArgs) Validate() error {
	return spreadsheet.ValidateSheetName(a.SheetName)
}

// Definition returns the tool's definition for MCP registration
func (t *DeleteSheetTool) Definition() mcp.Tool {
	return newTool(deleteSheetName, workbookPathParam,
		"Delete a worksheet and its contents. The last remaining sheet cannot be deleted.",
		mutating(true, false),
		sheetNameParam("Name of the sheet to delete"),
	)
}

// Execute deletes the sheet
func (t *DeleteSheetTool) Execute(ctx context.Context, logger *logrus.Logger, args map[string]any) (*mcp.CallToolResult, error) {
	var req sheetArgs
	if err := decodeArgs(sheetSchema, args, &req); err != nil {
		return nil, err
	}

	path := resolvePath(req.WorkbookPath)
	entry := callLogger(ctx, logger, deleteSheetName, path).WithField("sheet", req.SheetName)
	if err := security.CheckFileAccess(path); err != nil {
		return respond(entry, spreadsheet.Fail(err.Error()))
	}

	entry.Info("Deleting sheet")
	return respond(entry, spreadsheet.DeleteSheet(ctx, logger, path, req.SheetName))
}

// ProvideExtendedInfo provides detailed usage information for delete_sheet
func (t *DeleteSheetTool) ProvideExtendedInfo() *tools.ExtendedHelp {
	return &tools.ExtendedHelp{
		Troubleshooting: []tools.TroubleshootingTip{
			{
				Problem:  "Cannot delete the last sheet in the workbook",
				Solution: "A workbook always keeps at least one sheet. Create a replacement with create_sheet before deleting, or rename the sheet instead.",
			},
		},
		WhenNotToUse: "Clearing a sheet's data while keeping the sheet (write empty values with write_range instead).",
	}
}

// RenameSheetTool renames a worksheet
type RenameSheetTool struct{}

type renameSheetArgs struct {
	WorkbookPath string `zog:"workbook_path"`
	OldName      string `zog:"old_name"`
	NewName      string `zog:"new_name"`
}

var renameSheetSchema = z.Struct(z.Shape{
	"workbookPath": z.String().Required(),
	"oldName":      z.String().Required(),
	"newName":      z.String().Required(),
})

func (a *renameSheetArgs) Validate() error {
	return errors.Join(
		spreadsheet.ValidateSheetName(a.OldName),
		spreadsheet.ValidateSheetName(a.NewName),
	)
}

// Definition returns the tool's definition for MCP registration
func (t *RenameSheetTool) Definition() mcp.Tool {
	return newTool(renameSheetName, workbookPathParam,
		"Rename a worksheet. The new name must not already be in use.",
		mutating(false, false),
		mcp.WithString("old_name", mcp.Required(), mcp.Description("Current sheet name")),
		mcp.WithString("new_name", mcp.Required(), mcp.Description("New sheet name")),
	)
}

// Execute renames the sheet
func (t *RenameSheetTool) Execute(ctx context.Context, logger *logrus.Logger, args map[string]any) (*mcp.CallToolResult, error) {
	var req renameSheetArgs
	if err := decodeArgs(renameSheetSchema, args, &req); err != nil {
		return nil, err
	}

	path := resolvePath(req.WorkbookPath)
	entry := callLogger(ctx, logger, renameSheetName, path).WithField("sheet", req.OldName)
	if err := security.CheckFileAccess(path); err != nil {
		return respond(entry, spreadsheet.Fail(err.Error()))
	}

	return respond(entry, spreadsheet.RenameSheet(ctx, logger, spreadsheet.RenameSheetRequest{
		WorkbookPath: path,
		OldName:      req.OldName,
		NewName:      req.NewName,
	}))
}

// CopySheetTool duplicates a worksheet
type CopySheetTool struct{}

type copySheetArgs struct {
	WorkbookPath string `zog:"workbook_path"`
	SourceSheet  string `zog:"source_sheet"`
	NewName      string `zog:"new_name"`
}

var copySheetSchema = z.Struct(z.Shape{
	"workbookPath": z.String().Required(),
	"sourceSheet":  z.String().Required(),
	"newName":      z.String().Required(),
})

func (a *copySheetArgs) Validate() error {
	return errors.Join(
		spreadsheet.ValidateSheetName(a.SourceSheet),
		spreadsheet.ValidateSheetName(a.NewName),
	)
}

// Definition returns the tool's definition for MCP registration
func (t *CopySheetTool) Definition() mcp.Tool {
	return newTool(copySheetName, workbookPathParam,
		"Copy a worksheet, including values, formulas and styles, to a new sheet appended at the end.",
		mutating(false, false),
		mcp.WithString("source_sheet", mcp.Required(), mcp.Description("Sheet to copy")),
		mcp.WithString("new_name", mcp.Required(), mcp.Description("Name of the copy")),
	)
}

// Execute copies the sheet
func (t *CopySheetTool) Execute(ctx context.Context, logger *logrus.Logger, args map[string]any) (*mcp.CallToolResult, error) {
	var req copySheetArgs
	if err := decodeArgs(copySheetSchema, args, &req); err != nil {
		return nil, err
	}

	path := resolvePath(req.WorkbookPath)
	entry := callLogger(ctx, logger, copySheetName, path).WithField("sheet", req.SourceSheet)
	if err := security.CheckFileAccess(path); err != nil {
		return respond(entry, spreadsheet.Fail(err.Error()))
	}

	return respond(entry, spreadsheet.CopySheet(ctx, logger, spreadsheet.CopySheetRequest{
		WorkbookPath: path,
		SourceSheet:  req.SourceSheet,
		NewName:      req.NewName,
	}))
}

// ProvideExtendedInfo provides detailed usage information for copy_sheet
func (t *CopySheetTool) ProvideExtendedInfo() *tools.ExtendedHelp {
	return &tools.ExtendedHelp{
		Examples: []tools.ToolExample{
			{
				Description: "Use last month's sheet as a template",
				Arguments: map[string]any{
					"workbook_path": "/path/to/budget.xlsx",
					"source_sheet":  "March",
					"new_name":      "April",
				},
				ExpectedResult: `{"success": true, "message": "Sheet 'March' copied to 'April'", "sheet_name": "April"}`,
			},
		},
		CommonPatterns: []string{
			"Copy a formatted template sheet, then overwrite its data with write_range",
			"Formulas in the copy keep their original references; cross-sheet references still point at the source sheet",
		},
	}
}
