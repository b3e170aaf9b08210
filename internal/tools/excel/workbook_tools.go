package excel

import (
	"context"

	z "github.com/Oudwins/zog"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/sammcj/mcp-excel/internal/registry"
	"github.com/sammcj/mcp-excel/internal/security"
	"github.com/sammcj/mcp-excel/internal/spreadsheet"
	"github.com/sammcj/mcp-excel/internal/tools"
	"github.com/sirupsen/logrus"
)

const (
	createWorkbookName  = "create_workbook"
	getWorkbookInfoName = "get_workbook_info"
	listSheetsName      = "list_sheets"
	saveWorkbookName    = "save_workbook"
)

func init() {
	registry.Register(&CreateWorkbookTool{})
	registry.Register(&GetWorkbookInfoTool{})
	registry.Register(&ListSheetsTool{})
	registry.Register(&SaveWorkbookTool{})
}

type workbookArgs struct {
	FilePath string `zog:"file_path"`
}

func (a *workbookArgs) Validate() error { return nil }

var workbookSchema = z.Struct(z.Shape{
	"filePath": z.String().Required(),
})

// CreateWorkbookTool creates a new, empty workbook
type CreateWorkbookTool struct{}

type createWorkbookArgs struct {
	FilePath  string `zog:"file_path"`
	SheetName string `zog:"sheet_name"`
}

var createWorkbookSchema = z.Struct(z.Shape{
	"filePath":  z.String().Required(),
	"sheetName": z.String(),
})

func (a *createWorkbookArgs) Validate() error {
	if a.SheetName == "" {
		return nil
	}
	return spreadsheet.ValidateSheetName(a.SheetName)
}

// Definition returns the tool's definition for MCP registration
func (t *CreateWorkbookTool) Definition() mcp.Tool {
	return newTool(createWorkbookName, filePathParam,
		"Create a new, empty .xlsx workbook. Fails if the file already exists; the parent directory must exist.",
		mutating(false, false),
		mcp.WithString("sheet_name",
			mcp.Description("Name of the first worksheet (default: Sheet1)"),
		),
	)
}

// Execute creates the workbook
func (t *CreateWorkbookTool) Execute(ctx context.Context, logger *logrus.Logger, args map[string]any) (*mcp.CallToolResult, error) {
	var req createWorkbookArgs
	if err := decodeArgs(createWorkbookSchema, args, &req); err != nil {
		return nil, err
	}

	path := resolvePath(req.FilePath)
	entry := callLogger(ctx, logger, createWorkbookName, path)
	if err := security.CheckFileAccess(path); err != nil {
		return respond(entry, spreadsheet.Fail(err.Error()))
	}

	entry.Debug("Creating workbook")
	return respond(entry, spreadsheet.CreateWorkbook(ctx, logger, spreadsheet.CreateWorkbookRequest{
		FilePath:  path,
		SheetName: req.SheetName,
	}))
}

// ProvideExtendedInfo provides detailed usage information for create_workbook
func (t *CreateWorkbookTool) ProvideExtendedInfo() *tools.ExtendedHelp {
	return &tools.ExtendedHelp{
		Examples: []tools.ToolExample{
			{
				Description: "Create a workbook with a named first sheet",
				Arguments: map[string]any{
					"file_path":  "/path/to/report.xlsx",
					"sheet_name": "Summary",
				},
				ExpectedResult: `{"success": true, "message": "Workbook created successfully", "file_path": "/path/to/report.xlsx"}`,
			},
		},
		CommonPatterns: []string{
			"Create the workbook once, then add sheets with create_sheet and data with write_range",
			"Relative paths such as 'reports/q1.xlsx' resolve against EXCEL_FILES_PATH when it is set",
		},
		Troubleshooting: []tools.TroubleshootingTip{
			{
				Problem:  "File already exists",
				Solution: "create_workbook never overwrites. Pick a new file name, or open the existing workbook with the other tools.",
			},
			{
				Problem:  "Parent directory does not exist",
				Solution: "Workbooks are only created inside existing directories. Create the directory first or choose another path.",
			},
		},
		WhenToUse:    "Starting a new spreadsheet from scratch.",
		WhenNotToUse: "Adding a sheet to an existing workbook (use create_sheet).",
	}
}

// GetWorkbookInfoTool reports a workbook's sheets and size
type GetWorkbookInfoTool struct{}

// Definition returns the tool's definition for MCP registration
func (t *GetWorkbookInfoTool) Definition() mcp.Tool {
	return newTool(getWorkbookInfoName, filePathParam,
		"Get workbook metadata: the sheet names in order, the sheet count and the file size in bytes.",
		readOnly(),
	)
}

// Execute reads the workbook metadata
func (t *GetWorkbookInfoTool) Execute(ctx context.Context, logger *logrus.Logger, args map[string]any) (*mcp.CallToolResult, error) {
	var req workbookArgs
	if err := decodeArgs(workbookSchema, args, &req); err != nil {
		return nil, err
	}

	path := resolvePath(req.FilePath)
	entry := callLogger(ctx, logger, getWorkbookInfoName, path)
	if err := security.CheckFileAccess(path); err != nil {
		return newResult(spreadsheet.ErrorMap(err))
	}

	info, err := spreadsheet.GetWorkbookInfo(ctx, logger, path)
	if err != nil {
		entry.WithError(err).Info("Failed to read workbook info")
		return newResult(spreadsheet.ErrorMap(err))
	}

	m := info.ToMap()
	m["success"] = true
	return newResult(m)
}

// ListSheetsTool lists a workbook's sheet names
type ListSheetsTool struct{}

// Definition returns the tool's definition for MCP registration
func (t *ListSheetsTool) Definition() mcp.Tool {
	return newTool(listSheetsName, filePathParam,
		"List the worksheet names of a workbook in tab order.",
		readOnly(),
	)
}

// Execute lists the sheets
func (t *ListSheetsTool) Execute(ctx context.Context, logger *logrus.Logger, args map[string]any) (*mcp.CallToolResult, error) {
	var req workbookArgs
	if err := decodeArgs(workbookSchema, args, &req); err != nil {
		return nil, err
	}

	path := resolvePath(req.FilePath)
	entry := callLogger(ctx, logger, listSheetsName, path)
	if err := security.CheckFileAccess(path); err != nil {
		return newResult(spreadsheet.ErrorMap(err))
	}

	sheets, err := spreadsheet.ListSheets(ctx, logger, path)
	if err != nil {
		entry.WithError(err).Info("Failed to list sheets")
		return newResult(spreadsheet.ErrorMap(err))
	}

	return newResult(map[string]any{
		"success": true,
		"sheets":  sheets,
		"count":   len(sheets),
	})
}

// SaveWorkbookTool re-saves a workbook, refreshing linked values
type SaveWorkbookTool struct{}

// Definition returns the tool's definition for MCP registration
func (t *SaveWorkbookTool) Definition() mcp.Tool {
	return newTool(saveWorkbookName, filePathParam,
		"Open and re-save a workbook so cached formula values are refreshed when it is next opened in Excel. Every write tool already saves; this is only needed after editing the file elsewhere.",
		mutating(false, true),
	)
}

// Execute saves the workbook
func (t *SaveWorkbookTool) Execute(ctx context.Context, logger *logrus.Logger, args map[string]any) (*mcp.CallToolResult, error) {
	var req workbookArgs
	if err := decodeArgs(workbookSchema, args, &req); err != nil {
		return nil, err
	}

	path := resolvePath(req.FilePath)
	entry := callLogger(ctx, logger, saveWorkbookName, path)
	if err := security.CheckFileAccess(path); err != nil {
		return respond(entry, spreadsheet.Fail(err.Error()))
	}

	return respond(entry, spreadsheet.SaveWorkbook(ctx, logger, path))
}
