package spreadsheet

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"
)

const filePermissions = 0600 // User read/write only

// CreateWorkbookRequest describes a new workbook. SheetName, when set, renames
// the default first sheet.
type CreateWorkbookRequest struct {
	FilePath  string
	SheetName string
}

// CreateWorkbook creates a new, empty workbook. It refuses to overwrite an existing file.
func CreateWorkbook(ctx context.Context, logger *logrus.Logger, req CreateWorkbookRequest) (result WorkbookResult) {
	defer recoverOperation(logger, "create workbook", func(failed OperationResult) {
		result = WorkbookResult{OperationResult: failed}
	})

	if err := ValidateFilePath(req.FilePath, false); err != nil {
		return WorkbookResult{OperationResult: Fail(err.Error())}
	}

	if _, err := os.Stat(req.FilePath); err == nil {
		return WorkbookResult{
			OperationResult: Failf("File already exists: %s", req.FilePath),
			FilePath:        req.FilePath,
		}
	}

	f := excelize.NewFile()
	defer closeWorkbook(f, logger)

	if req.SheetName != "" {
		if err := ValidateSheetName(req.SheetName); err != nil {
			return WorkbookResult{OperationResult: Fail(err.Error())}
		}
		defaultSheet := f.GetSheetName(0)
		if req.SheetName != defaultSheet {
			if err := f.SetSheetName(defaultSheet, req.SheetName); err != nil {
				return WorkbookResult{OperationResult: Failf("Failed to create workbook: %v", err)}
			}
		}
	}

	if err := saveWorkbook(f, req.FilePath, logger); err != nil {
		return WorkbookResult{OperationResult: Failf("Failed to create workbook: %v", err)}
	}

	logger.WithFields(logrus.Fields{
		"file_path": req.FilePath,
		"sheet":     f.GetSheetName(0),
	}).Info("Workbook created")

	return WorkbookResult{OperationResult: Succeed("Workbook created successfully"), FilePath: req.FilePath}
}

// OpenWorkbook reads workbook metadata. Unlike the mutating operations it
// reports failures as a *WorkbookError.
func OpenWorkbook(ctx context.Context, logger *logrus.Logger, path string) (*WorkbookInfo, error) {
	if err := ValidateFilePath(path, true); err != nil {
		return nil, &WorkbookError{Operation: "open", Path: path, Message: err.Error(), Cause: err}
	}

	f, err := openWorkbook(path)
	if err != nil {
		return nil, err
	}
	defer closeWorkbook(f, logger)

	sheets := f.GetSheetList()
	info := &WorkbookInfo{
		FilePath:   path,
		Sheets:     sheets,
		SheetCount: len(sheets),
	}

	if stat, err := os.Stat(path); err == nil {
		size := stat.Size()
		info.FileSize = &size
	}

	return info, nil
}

// GetWorkbookInfo is OpenWorkbook under the name the tool surface uses.
func GetWorkbookInfo(ctx context.Context, logger *logrus.Logger, path string) (*WorkbookInfo, error) {
	return OpenWorkbook(ctx, logger, path)
}

// ListSheets returns the sheet names of a workbook in workbook order.
func ListSheets(ctx context.Context, logger *logrus.Logger, path string) ([]string, error) {
	if err := ValidateFilePath(path, true); err != nil {
		return nil, &WorkbookError{Operation: "list sheets", Path: path, Message: err.Error(), Cause: err}
	}

	f, err := openWorkbook(path)
	if err != nil {
		return nil, err
	}
	defer closeWorkbook(f, logger)

	return f.GetSheetList(), nil
}

// SaveWorkbook opens a workbook and writes it back, refreshing linked values.
func SaveWorkbook(ctx context.Context, logger *logrus.Logger, path string) (result WorkbookResult) {
	defer recoverOperation(logger, "save workbook", func(failed OperationResult) {
		result = WorkbookResult{OperationResult: failed}
	})

	if err := ValidateFilePath(path, true); err != nil {
		return WorkbookResult{OperationResult: Fail(err.Error())}
	}

	f, err := openWorkbook(path)
	if err != nil {
		return WorkbookResult{OperationResult: Failf("Failed to save workbook: %v", err)}
	}
	defer closeWorkbook(f, logger)

	if err := saveWorkbook(f, path, logger); err != nil {
		return WorkbookResult{OperationResult: Failf("Failed to save workbook: %v", err)}
	}

	return WorkbookResult{OperationResult: Succeed("Workbook saved successfully"), FilePath: path}
}

// openWorkbook opens an existing file, classifying the common failure modes.
func openWorkbook(path string) (*excelize.File, error) {
	f, err := excelize.OpenFile(path)
	if err == nil {
		return f, nil
	}

	switch {
	case errors.Is(err, os.ErrNotExist):
		return nil, &WorkbookError{Operation: "open", Path: path, Message: fmt.Sprintf("File not found: %s", path), Cause: err}
	case errors.Is(err, zip.ErrFormat):
		return nil, &WorkbookError{Operation: "open", Path: path, Message: fmt.Sprintf("Invalid Excel file: %s", path), Cause: err}
	default:
		return nil, &WorkbookError{Operation: "open", Path: path, Message: fmt.Sprintf("Failed to open workbook: %v", err), Cause: err}
	}
}

func closeWorkbook(f *excelize.File, logger *logrus.Logger) {
	if err := f.Close(); err != nil {
		logger.WithError(err).Warn("Failed to close workbook")
	}
}

// saveWorkbook persists f to path and restricts the file to its owner.
func saveWorkbook(f *excelize.File, path string, logger *logrus.Logger) error {
	if err := f.UpdateLinkedValue(); err != nil {
		logger.WithError(err).Debug("Failed to update linked values (non-critical)")
	}

	if err := f.SaveAs(path); err != nil {
		return &WorkbookError{Operation: "save", Path: path, Cause: err}
	}

	if err := os.Chmod(path, filePermissions); err != nil {
		logger.WithError(err).WithField("file_path", path).Warn("Failed to set file permissions")
	}

	return nil
}

// sheetMissing reports a failed lookup in the form callers expect, listing the sheets that do exist.
func sheetMissing(f *excelize.File, name string) (OperationResult, bool) {
	sheets := f.GetSheetList()
	if slices.Contains(sheets, name) {
		return OperationResult{}, false
	}
	return Failf("Sheet '%s' not found. Available sheets: %s", name, strings.Join(sheets, ", ")), true
}

// recoverOperation converts a panic inside an operation into a failed result.
// It must be deferred directly by the operation.
func recoverOperation(logger *logrus.Logger, action string, set func(OperationResult)) {
	if r := recover(); r != nil {
		logger.WithField("panic", r).Error(fmt.Sprintf("Recovered from panic during %s", action))
		set(Failf("Failed to %s: %v", action, r))
	}
}
