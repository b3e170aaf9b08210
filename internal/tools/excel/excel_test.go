package excel

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/sammcj/mcp-excel/internal/config"
	"github.com/sammcj/mcp-excel/internal/security"
	"github.com/sammcj/mcp-excel/internal/tools"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

var ctx = context.Background()

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

// call executes tool and returns its structured result.
func call(t *testing.T, tool tools.Tool, args map[string]any) map[string]any {
	t.Helper()

	result, err := tool.Execute(ctx, testLogger(), args)
	require.NoError(t, err)
	require.NotNil(t, result)

	m, ok := result.StructuredContent.(map[string]any)
	require.True(t, ok, "structured content should be a map")

	require.NotEmpty(t, result.Content)
	text, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok)
	assert.Contains(t, text.Text, `"success"`)
	return m
}

// newBook creates an empty workbook through create_workbook and returns its path.
func newBook(t *testing.T) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "book.xlsx")
	m := call(t, &CreateWorkbookTool{}, map[string]any{"file_path": path})
	require.Equal(t, true, m["success"], m["message"])
	return path
}

func TestCreateWorkbookTool(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.xlsx")

	m := call(t, &CreateWorkbookTool{}, map[string]any{"file_path": path, "sheet_name": "Summary"})
	assert.Equal(t, true, m["success"])
	assert.Equal(t, "Workbook created successfully", m["message"])
	assert.Equal(t, path, m["file_path"])

	m = call(t, &CreateWorkbookTool{}, map[string]any{"file_path": path})
	assert.Equal(t, false, m["success"])
	assert.Equal(t, "File already exists: "+path, m["message"])

	m = call(t, &CreateWorkbookTool{}, map[string]any{"file_path": filepath.Join(t.TempDir(), "report.csv")})
	assert.Equal(t, false, m["success"])
	assert.Equal(t, "File must have .xlsx extension", m["message"])
}

func TestCreateWorkbookTool_InvalidParameters(t *testing.T) {
	tests := []struct {
		name string
		args map[string]any
	}{
		{name: "missing path", args: map[string]any{}},
		{name: "nil args", args: nil},
		{name: "bad sheet name", args: map[string]any{"file_path": "/tmp/x.xlsx", "sheet_name": "a/b"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := (&CreateWorkbookTool{}).Execute(ctx, testLogger(), tt.args)
			assert.Nil(t, result)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "invalid parameters")
		})
	}
}

func TestListSheetsAndInfo(t *testing.T) {
	path := newBook(t)
	require.Equal(t, true, call(t, &CreateSheetTool{}, map[string]any{"workbook_path": path, "sheet_name": "Data"})["success"])

	m := call(t, &ListSheetsTool{}, map[string]any{"file_path": path})
	assert.Equal(t, true, m["success"])
	assert.Equal(t, []string{"Sheet1", "Data"}, m["sheets"])
	assert.Equal(t, 2, m["count"])

	m = call(t, &GetWorkbookInfoTool{}, map[string]any{"file_path": path})
	assert.Equal(t, true, m["success"])
	assert.Equal(t, 2, m["sheet_count"])
	assert.Greater(t, m["file_size"], int64(0))

	missing := filepath.Join(t.TempDir(), "missing.xlsx")
	m = call(t, &ListSheetsTool{}, map[string]any{"file_path": missing})
	assert.Equal(t, false, m["success"])
	assert.Contains(t, m["error"], "File not found")
	assert.NotContains(t, m, "sheets")
}

func TestSheetTools(t *testing.T) {
	path := newBook(t)

	m := call(t, &CreateSheetTool{}, map[string]any{"workbook_path": path, "sheet_name": "Front", "index": float64(0)})
	assert.Equal(t, true, m["success"])
	assert.Equal(t, "Front", m["sheet_name"])

	m = call(t, &RenameSheetTool{}, map[string]any{"workbook_path": path, "old_name": "Sheet1", "new_name": "Data"})
	assert.Equal(t, "Sheet renamed from 'Sheet1' to 'Data'", m["message"])

	m = call(t, &CopySheetTool{}, map[string]any{"workbook_path": path, "source_sheet": "Data", "new_name": "Copy"})
	assert.Equal(t, "Sheet 'Data' copied to 'Copy'", m["message"])

	m = call(t, &ListSheetsTool{}, map[string]any{"file_path": path})
	assert.Equal(t, []string{"Front", "Data", "Copy"}, m["sheets"])

	for _, name := range []string{"Front", "Data"} {
		m = call(t, &DeleteSheetTool{}, map[string]any{"workbook_path": path, "sheet_name": name})
		assert.Equal(t, true, m["success"], m["message"])
	}

	m = call(t, &DeleteSheetTool{}, map[string]any{"workbook_path": path, "sheet_name": "Copy"})
	assert.Equal(t, false, m["success"])
	assert.Equal(t, "Cannot delete the last sheet in the workbook", m["message"])

	m = call(t, &DeleteSheetTool{}, map[string]any{"workbook_path": path, "sheet_name": "Nope"})
	assert.Equal(t, false, m["success"])
	assert.Equal(t, "Sheet 'Nope' not found. Available sheets: Copy", m["message"])
}

func TestCellTools(t *testing.T) {
	path := newBook(t)
	base := map[string]any{"workbook_path": path, "sheet_name": "Sheet1"}
	with := func(extra map[string]any) map[string]any {
		args := map[string]any{}
		for k, v := range base {
			args[k] = v
		}
		for k, v := range extra {
			args[k] = v
		}
		return args
	}

	m := call(t, &WriteCellTool{}, with(map[string]any{"cell": "b2", "value": 42.5}))
	assert.Equal(t, "Value written to B2", m["message"])
	assert.Equal(t, "B2", m["cell"])

	m = call(t, &ReadCellTool{}, with(map[string]any{"cell": "B2"}))
	assert.Equal(t, 42.5, m["value"])

	m = call(t, &ReadCellTool{}, with(map[string]any{"cell": "Z99"}))
	assert.Equal(t, true, m["success"])
	assert.Contains(t, m, "value")
	assert.Nil(t, m["value"])

	m = call(t, &WriteRangeTool{}, with(map[string]any{
		"start_cell": "A1",
		"data": []any{
			[]any{"Name", "Age"},
			[]any{"Ann", float64(30)},
			[]any{"Bob", float64(41)},
		},
	}))
	assert.Equal(t, "Data written to range starting at A1", m["message"])
	assert.Equal(t, 3, m["rows"])
	assert.Equal(t, 2, m["cols"])

	m = call(t, &ReadRangeTool{}, with(map[string]any{"range_ref": "A1:B3"}))
	assert.Equal(t, [][]any{{"Name", "Age"}, {"Ann", float64(30)}, {"Bob", float64(41)}}, m["data"])

	m = call(t, &WriteFormulaTool{}, with(map[string]any{"cell": "B4", "formula": "SUM(B2:B3)"}))
	assert.Equal(t, "Formula written to B4", m["message"])

	m = call(t, &ReadCellTool{}, with(map[string]any{"cell": "B4"}))
	assert.Equal(t, "=SUM(B2:B3)", m["value"])

	m = call(t, &WriteFormulaTool{}, with(map[string]any{"cell": "B5", "formula": "=CALL(\"x\")"}))
	assert.Equal(t, false, m["success"])
	assert.Equal(t, "Formula contains prohibited function: CALL", m["message"])
}

func TestCellTools_InvalidParameters(t *testing.T) {
	path := filepath.Join(t.TempDir(), "book.xlsx")
	tests := []struct {
		name string
		tool tools.Tool
		args map[string]any
	}{
		{name: "row zero", tool: &ReadCellTool{}, args: map[string]any{"workbook_path": path, "sheet_name": "S", "cell": "A0"}},
		{name: "missing value", tool: &WriteCellTool{}, args: map[string]any{"workbook_path": path, "sheet_name": "S", "cell": "A1"}},
		{name: "object value", tool: &WriteCellTool{}, args: map[string]any{"workbook_path": path, "sheet_name": "S", "cell": "A1", "value": map[string]any{}}},
		{name: "data not rows", tool: &WriteRangeTool{}, args: map[string]any{"workbook_path": path, "sheet_name": "S", "start_cell": "A1", "data": []any{"x"}}},
		{name: "bad range", tool: &ReadRangeTool{}, args: map[string]any{"workbook_path": path, "sheet_name": "S", "range_ref": "A1"}},
		{name: "font too large", tool: &FormatFontTool{}, args: map[string]any{"workbook_path": path, "sheet_name": "S", "range_ref": "A1:A1", "font_size": float64(80)}},
		{name: "rotation too large", tool: &FormatAlignmentTool{}, args: map[string]any{"workbook_path": path, "sheet_name": "S", "range_ref": "A1:A1", "text_rotation": float64(181)}},
		{name: "bad fill colour", tool: &FormatFillTool{}, args: map[string]any{"workbook_path": path, "sheet_name": "S", "range_ref": "A1:A1", "color": "red"}},
		{name: "bad border side", tool: &FormatBorderTool{}, args: map[string]any{"workbook_path": path, "sheet_name": "S", "range_ref": "A1:A1", "sides": []any{"middle"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := tt.tool.Execute(ctx, testLogger(), tt.args)
			assert.Nil(t, result)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "invalid parameters")
		})
	}

	assert.NoFileExists(t, path)
}

func TestFormatTools_FillKeepsFont(t *testing.T) {
	path := newBook(t)
	target := func(extra map[string]any) map[string]any {
		args := map[string]any{"workbook_path": path, "sheet_name": "Sheet1", "range_ref": "A1:B2"}
		for k, v := range extra {
			args[k] = v
		}
		return args
	}

	m := call(t, &FormatFontTool{}, target(map[string]any{"bold": true, "font_size": float64(14)}))
	assert.Equal(t, "Font formatting applied to A1:B2", m["message"])

	m = call(t, &FormatFillTool{}, target(map[string]any{"color": "#e2efda"}))
	assert.Equal(t, "Fill formatting applied to A1:B2", m["message"])

	m = call(t, &FormatBorderTool{}, target(map[string]any{"sides": []any{"top"}}))
	assert.Equal(t, true, m["success"], m["message"])

	m = call(t, &FormatAlignmentTool{}, target(map[string]any{"horizontal": "center", "wrap_text": true}))
	assert.Equal(t, true, m["success"], m["message"])

	m = call(t, &FormatNumberTool{}, target(map[string]any{"format_string": "0.00%"}))
	assert.Equal(t, "Number formatting applied to A1:B2", m["message"])

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	styleID, err := f.GetCellStyle("Sheet1", "B2")
	require.NoError(t, err)
	style, err := f.GetStyle(styleID)
	require.NoError(t, err)

	require.NotNil(t, style.Font)
	assert.True(t, style.Font.Bold)
	assert.Equal(t, float64(14), style.Font.Size)
	require.NotEmpty(t, style.Fill.Color)
	assert.Contains(t, style.Fill.Color[0], "E2EFDA")
	require.NotNil(t, style.Alignment)
	assert.Equal(t, "center", style.Alignment.Horizontal)
}

func TestAccessPolicyDenial(t *testing.T) {
	dir := t.TempDir()
	blocked := filepath.Join(dir, "blocked")
	require.NoError(t, os.Mkdir(blocked, 0700))

	policy := filepath.Join(dir, "access.yaml")
	require.NoError(t, os.WriteFile(policy, []byte("version: \"1\"\nenabled: true\ndeny_patterns:\n  - \""+blocked+"\"\n"), 0600))
	require.NoError(t, security.InitGlobalPolicy(policy, testLogger()))
	t.Cleanup(security.Shutdown)

	path := filepath.Join(blocked, "book.xlsx")
	m := call(t, &CreateWorkbookTool{}, map[string]any{"file_path": path})
	assert.Equal(t, false, m["success"])
	assert.Contains(t, m["message"], "Access denied")
	assert.NoFileExists(t, path)

	m = call(t, &ListSheetsTool{}, map[string]any{"file_path": path})
	assert.Equal(t, false, m["success"])
	assert.Contains(t, m["error"], "Access denied")
}

func TestRelativePathsResolveAgainstFilesPath(t *testing.T) {
	files := t.TempDir()
	previous := config.Get()
	config.Set(config.Settings{FilesPath: files})
	t.Cleanup(func() { config.Set(previous) })

	m := call(t, &CreateWorkbookTool{}, map[string]any{"file_path": "q1.xlsx"})
	assert.Equal(t, true, m["success"], m["message"])
	assert.FileExists(t, filepath.Join(files, "q1.xlsx"))

	m = call(t, &CreateWorkbookTool{}, map[string]any{"file_path": "../escape.xlsx"})
	assert.Equal(t, false, m["success"])
	assert.NoFileExists(t, filepath.Join(filepath.Dir(files), "escape.xlsx"))
}

func TestToolTitle(t *testing.T) {
	assert.Equal(t, "Format Font", toolTitle("format_font"))
	assert.Equal(t, "List Sheets", toolTitle("list_sheets"))
}

func TestDefinitions(t *testing.T) {
	all := []tools.Tool{
		&CreateWorkbookTool{}, &GetWorkbookInfoTool{}, &ListSheetsTool{}, &SaveWorkbookTool{},
		&CreateSheetTool{}, &DeleteSheetTool{}, &RenameSheetTool{}, &CopySheetTool{},
		&WriteCellTool{}, &ReadCellTool{}, &WriteRangeTool{}, &ReadRangeTool{}, &WriteFormulaTool{},
		&FormatFontTool{}, &FormatFillTool{}, &FormatBorderTool{}, &FormatAlignmentTool{}, &FormatNumberTool{},
	}

	seen := map[string]bool{}
	for _, tool := range all {
		def := tool.Definition()
		assert.False(t, seen[def.Name], "duplicate tool %s", def.Name)
		seen[def.Name] = true
		assert.NotEmpty(t, def.Description)
		assert.Equal(t, toolTitle(def.Name), def.Annotations.Title)
		assert.NotEmpty(t, def.InputSchema.Required, def.Name)
	}
	assert.Len(t, seen, 18)

	writeCell := (&WriteCellTool{}).Definition()
	assert.Contains(t, writeCell.InputSchema.Properties, "value")
	assert.Contains(t, writeCell.InputSchema.Required, "value")
}

func TestDecodeRows(t *testing.T) {
	rows, err := decodeRows([]any{[]any{"a", 1.0}, []any{}})
	require.NoError(t, err)
	assert.Len(t, rows, 2)

	_, err = decodeRows(nil)
	assert.Error(t, err)
	_, err = decodeRows("x")
	assert.Error(t, err)
	_, err = decodeRows([]any{[]any{[]any{1.0}}})
	assert.Error(t, err)
}
