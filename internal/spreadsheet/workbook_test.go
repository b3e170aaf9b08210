package spreadsheet_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/sammcj/mcp-excel/internal/spreadsheet"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateWorkbook(t *testing.T) {
	logger := testLogger()
	path := filepath.Join(t.TempDir(), "new.xlsx")

	result := spreadsheet.CreateWorkbook(ctx, logger, spreadsheet.CreateWorkbookRequest{FilePath: path})
	require.True(t, result.Success, result.Message)
	assert.Equal(t, "Workbook created successfully", result.Message)
	assert.Equal(t, path, result.FilePath)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	sheets, err := spreadsheet.ListSheets(ctx, logger, path)
	require.NoError(t, err)
	assert.Equal(t, []string{"Sheet1"}, sheets)
}

func TestCreateWorkbook_NamedFirstSheet(t *testing.T) {
	logger := testLogger()
	path := filepath.Join(t.TempDir(), "named.xlsx")

	result := spreadsheet.CreateWorkbook(ctx, logger, spreadsheet.CreateWorkbookRequest{FilePath: path, SheetName: "Summary"})
	require.True(t, result.Success, result.Message)

	sheets, err := spreadsheet.ListSheets(ctx, logger, path)
	require.NoError(t, err)
	assert.Equal(t, []string{"Summary"}, sheets)
}

func TestCreateWorkbook_RefusesOverwrite(t *testing.T) {
	logger := testLogger()
	path := newWorkbook(t, "Keep")

	result := spreadsheet.CreateWorkbook(ctx, logger, spreadsheet.CreateWorkbookRequest{FilePath: path})
	assert.False(t, result.Success)
	assert.Equal(t, "File already exists: "+path, result.Message)

	sheets, err := spreadsheet.ListSheets(ctx, logger, path)
	require.NoError(t, err)
	assert.Equal(t, []string{"Keep"}, sheets, "existing workbook must be untouched")
}

func TestCreateWorkbook_Validation(t *testing.T) {
	logger := testLogger()
	dir := t.TempDir()

	result := spreadsheet.CreateWorkbook(ctx, logger, spreadsheet.CreateWorkbookRequest{FilePath: filepath.Join(dir, "a.csv")})
	assert.False(t, result.Success)
	assert.Equal(t, "File must have .xlsx extension", result.Message)

	result = spreadsheet.CreateWorkbook(ctx, logger, spreadsheet.CreateWorkbookRequest{FilePath: filepath.Join(dir, "missing", "a.xlsx")})
	assert.False(t, result.Success)
	assert.Equal(t, "Parent directory does not exist: "+filepath.Join(dir, "missing"), result.Message)

	absent := filepath.Join(dir, "absent.xlsx")
	write := spreadsheet.WriteCell(ctx, logger, spreadsheet.CellWriteRequest{WorkbookPath: absent, SheetName: "Sheet1", Cell: "A1", Value: "x"})
	assert.False(t, write.Success)
	assert.Equal(t, "File not found: "+absent, write.Message)

	result = spreadsheet.CreateWorkbook(ctx, logger, spreadsheet.CreateWorkbookRequest{FilePath: filepath.Join(dir, "b.xlsx"), SheetName: "bad/name"})
	assert.False(t, result.Success)
	assert.Equal(t, "Sheet name cannot contain '/'", result.Message)
	assert.NoFileExists(t, filepath.Join(dir, "b.xlsx"))
}

func TestOpenWorkbook(t *testing.T) {
	logger := testLogger()
	path := newWorkbook(t, "First", "Second", "Third")

	info, err := spreadsheet.OpenWorkbook(ctx, logger, path)
	require.NoError(t, err)
	assert.Equal(t, path, info.FilePath)
	assert.Equal(t, []string{"First", "Second", "Third"}, info.Sheets)
	assert.Equal(t, 3, info.SheetCount)
	require.NotNil(t, info.FileSize)
	assert.Positive(t, *info.FileSize)

	m := info.ToMap()
	assert.Equal(t, 3, m["sheet_count"])
	assert.Contains(t, m, "file_size")
}

func TestOpenWorkbook_Errors(t *testing.T) {
	logger := testLogger()
	dir := t.TempDir()

	_, err := spreadsheet.OpenWorkbook(ctx, logger, filepath.Join(dir, "missing.xlsx"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "File not found")

	var workbookErr *spreadsheet.WorkbookError
	assert.True(t, errors.As(err, &workbookErr))

	corrupt := filepath.Join(dir, "corrupt.xlsx")
	require.NoError(t, os.WriteFile(corrupt, []byte("not a zip archive"), 0600))

	_, err = spreadsheet.GetWorkbookInfo(ctx, logger, corrupt)
	require.Error(t, err)
	assert.True(t, errors.As(err, &workbookErr))
	assert.Equal(t, spreadsheet.ErrorMap(err)["success"], false)
}

func TestSaveWorkbook(t *testing.T) {
	logger := testLogger()
	path := newWorkbook(t, "Data")

	result := spreadsheet.SaveWorkbook(ctx, logger, path)
	require.True(t, result.Success, result.Message)
	assert.Equal(t, "Workbook saved successfully", result.Message)

	result = spreadsheet.SaveWorkbook(ctx, logger, filepath.Join(t.TempDir(), "gone.xlsx"))
	assert.False(t, result.Success)
	assert.Contains(t, result.Message, "File not found")
}
