package spreadsheet_test

import (
	"context"
	"io"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

var ctx = context.Background()

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	logger.SetLevel(logrus.ErrorLevel)
	return logger
}

// newWorkbook writes a workbook containing the named sheets, in order, to a
// temporary directory and returns its path.
func newWorkbook(t *testing.T, sheets ...string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "book.xlsx")
	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			t.Logf("Warning: failed to close test workbook: %v", err)
		}
	}()

	if len(sheets) > 0 {
		require.NoError(t, f.SetSheetName(f.GetSheetName(0), sheets[0]))
		for _, name := range sheets[1:] {
			_, err := f.NewSheet(name)
			require.NoError(t, err)
		}
	}

	require.NoError(t, f.SaveAs(path))
	return path
}

// openForAssert opens path read-only for assertions; the file is closed when the test ends.
func openForAssert(t *testing.T, path string) *excelize.File {
	t.Helper()

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := f.Close(); err != nil {
			t.Logf("Warning: failed to close workbook: %v", err)
		}
	})
	return f
}
