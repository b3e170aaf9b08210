package spreadsheet_test

import (
	"testing"

	"github.com/sammcj/mcp-excel/internal/spreadsheet"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateSheet(t *testing.T) {
	logger := testLogger()
	path := newWorkbook(t, "Sheet1")

	result := spreadsheet.CreateSheet(ctx, logger, spreadsheet.CreateSheetRequest{WorkbookPath: path, SheetName: "Data"})
	require.True(t, result.Success, result.Message)
	assert.Equal(t, "Sheet 'Data' created successfully", result.Message)
	assert.Equal(t, "Data", result.SheetName)

	sheets, err := spreadsheet.ListSheets(ctx, logger, path)
	require.NoError(t, err)
	assert.Equal(t, []string{"Sheet1", "Data"}, sheets)

	result = spreadsheet.CreateSheet(ctx, logger, spreadsheet.CreateSheetRequest{WorkbookPath: path, SheetName: "Data"})
	assert.False(t, result.Success)
	assert.Equal(t, "Sheet 'Data' already exists", result.Message)
}

func TestCreateSheet_NameTakenIgnoringCase(t *testing.T) {
	logger := testLogger()
	path := newWorkbook(t, "Sheet1", "Data")

	result := spreadsheet.CreateSheet(ctx, logger, spreadsheet.CreateSheetRequest{WorkbookPath: path, SheetName: "DATA"})
	assert.False(t, result.Success)
	assert.Equal(t, "Sheet 'DATA' already exists", result.Message)

	sheets, err := spreadsheet.ListSheets(ctx, logger, path)
	require.NoError(t, err)
	assert.Equal(t, []string{"Sheet1", "Data"}, sheets)
}

func TestCreateSheet_AtIndex(t *testing.T) {
	logger := testLogger()
	path := newWorkbook(t, "A", "B")

	first := 0
	result := spreadsheet.CreateSheet(ctx, logger, spreadsheet.CreateSheetRequest{WorkbookPath: path, SheetName: "Front", Index: &first})
	require.True(t, result.Success, result.Message)

	beyond := 10
	result = spreadsheet.CreateSheet(ctx, logger, spreadsheet.CreateSheetRequest{WorkbookPath: path, SheetName: "Back", Index: &beyond})
	require.True(t, result.Success, result.Message)

	sheets, err := spreadsheet.ListSheets(ctx, logger, path)
	require.NoError(t, err)
	assert.Equal(t, []string{"Front", "A", "B", "Back"}, sheets)
}

func TestCreateSheet_InvalidName(t *testing.T) {
	logger := testLogger()
	path := newWorkbook(t, "Sheet1")

	result := spreadsheet.CreateSheet(ctx, logger, spreadsheet.CreateSheetRequest{WorkbookPath: path, SheetName: "Q1?"})
	assert.False(t, result.Success)
	assert.Equal(t, "Sheet name cannot contain '?'", result.Message)
}

func TestDeleteSheet(t *testing.T) {
	logger := testLogger()
	path := newWorkbook(t, "Keep", "Drop")

	result := spreadsheet.DeleteSheet(ctx, logger, path, "Drop")
	require.True(t, result.Success, result.Message)
	assert.Equal(t, "Sheet 'Drop' deleted successfully", result.Message)

	result = spreadsheet.DeleteSheet(ctx, logger, path, "Keep")
	assert.False(t, result.Success)
	assert.Equal(t, "Cannot delete the last sheet in the workbook", result.Message)

	sheets, err := spreadsheet.ListSheets(ctx, logger, path)
	require.NoError(t, err)
	assert.Equal(t, []string{"Keep"}, sheets)
}

func TestDeleteSheet_Missing(t *testing.T) {
	logger := testLogger()
	path := newWorkbook(t, "Alpha", "Beta")

	result := spreadsheet.DeleteSheet(ctx, logger, path, "Gamma")
	assert.False(t, result.Success)
	assert.Equal(t, "Sheet 'Gamma' not found. Available sheets: Alpha, Beta", result.Message)
}

func TestRenameSheet(t *testing.T) {
	logger := testLogger()
	path := newWorkbook(t, "Old", "Other")

	result := spreadsheet.RenameSheet(ctx, logger, spreadsheet.RenameSheetRequest{WorkbookPath: path, OldName: "Old", NewName: "New"})
	require.True(t, result.Success, result.Message)
	assert.Equal(t, "Sheet renamed from 'Old' to 'New'", result.Message)
	assert.Equal(t, "New", result.SheetName)

	result = spreadsheet.RenameSheet(ctx, logger, spreadsheet.RenameSheetRequest{WorkbookPath: path, OldName: "New", NewName: "Other"})
	assert.False(t, result.Success)
	assert.Equal(t, "Sheet 'Other' already exists", result.Message)

	result = spreadsheet.RenameSheet(ctx, logger, spreadsheet.RenameSheetRequest{WorkbookPath: path, OldName: "Old", NewName: "Fresh"})
	assert.False(t, result.Success)
	assert.Contains(t, result.Message, "Sheet 'Old' not found")

	sheets, err := spreadsheet.ListSheets(ctx, logger, path)
	require.NoError(t, err)
	assert.Equal(t, []string{"New", "Other"}, sheets)
}

func TestCopySheet(t *testing.T) {
	logger := testLogger()
	path := newWorkbook(t, "Source")

	write := spreadsheet.WriteCell(ctx, logger, spreadsheet.CellWriteRequest{WorkbookPath: path, SheetName: "Source", Cell: "B2", Value: "hello"})
	require.True(t, write.Success, write.Message)

	result := spreadsheet.CopySheet(ctx, logger, spreadsheet.CopySheetRequest{WorkbookPath: path, SourceSheet: "Source", NewName: "Copy"})
	require.True(t, result.Success, result.Message)
	assert.Equal(t, "Sheet 'Source' copied to 'Copy'", result.Message)

	read := spreadsheet.ReadCell(ctx, logger, spreadsheet.CellReadRequest{WorkbookPath: path, SheetName: "Copy", Cell: "B2"})
	require.True(t, read.Success, read.Message)
	assert.Equal(t, "hello", read.Value)

	result = spreadsheet.CopySheet(ctx, logger, spreadsheet.CopySheetRequest{WorkbookPath: path, SourceSheet: "Source", NewName: "Copy"})
	assert.False(t, result.Success)
	assert.Equal(t, "Sheet 'Copy' already exists", result.Message)

	result = spreadsheet.CopySheet(ctx, logger, spreadsheet.CopySheetRequest{WorkbookPath: path, SourceSheet: "Nope", NewName: "Other"})
	assert.False(t, result.Success)
	assert.Contains(t, result.Message, "Sheet 'Nope' not found. Available sheets: Source, Copy")
}

func TestRenameSheet_NameTakenIgnoringCase(t *testing.T) {
	logger := testLogger()
	path := newWorkbook(t, "Sheet1", "Data")

	result := spreadsheet.RenameSheet(ctx, logger, spreadsheet.RenameSheetRequest{WorkbookPath: path, OldName: "Sheet1", NewName: "data"})
	assert.False(t, result.Success)
	assert.Equal(t, "Sheet 'data' already exists", result.Message)

	sheets, err := spreadsheet.ListSheets(ctx, logger, path)
	require.NoError(t, err)
	assert.Equal(t, []string{"Sheet1", "Data"}, sheets)
}

func TestCopySheet_DoesNotOverwriteIgnoringCase(t *testing.T) {
	logger := testLogger()
	path := newWorkbook(t, "Sheet1", "Data")

	for sheet, value := range map[string]string{"Sheet1": "original", "Data": "data"} {
		write := spreadsheet.WriteCell(ctx, logger, spreadsheet.CellWriteRequest{WorkbookPath: path, SheetName: sheet, Cell: "A1", Value: value})
		require.True(t, write.Success, write.Message)
	}

	result := spreadsheet.CopySheet(ctx, logger, spreadsheet.CopySheetRequest{WorkbookPath: path, SourceSheet: "Data", NewName: "sheet1"})
	assert.False(t, result.Success)
	assert.Equal(t, "Sheet 'sheet1' already exists", result.Message)

	read := spreadsheet.ReadCell(ctx, logger, spreadsheet.CellReadRequest{WorkbookPath: path, SheetName: "Sheet1", Cell: "A1"})
	require.True(t, read.Success, read.Message)
	assert.Equal(t, "original", read.Value)

	sheets, err := spreadsheet.ListSheets(ctx, logger, path)
	require.NoError(t, err)
	assert.Equal(t, []string{"Sheet1", "Data"}, sheets)
}
