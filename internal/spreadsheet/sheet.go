package spreadsheet

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"
)

// CreateSheetRequest adds a sheet. Index is the 0-based position to insert at;
// nil appends.
type CreateSheetRequest struct {
	WorkbookPath string
	SheetName    string
	Index        *int
}

// RenameSheetRequest renames OldName to NewName.
type RenameSheetRequest struct {
	WorkbookPath string
	OldName      string
	NewName      string
}

// CopySheetRequest duplicates SourceSheet as a new sheet called NewName.
type CopySheetRequest struct {
	WorkbookPath string
	SourceSheet  string
	NewName      string
}

// CreateSheet adds a new, empty worksheet.
func CreateSheet(ctx context.Context, logger *logrus.Logger, req CreateSheetRequest) (result SheetResult) {
	defer recoverOperation(logger, "create sheet", func(failed OperationResult) {
		result = SheetResult{OperationResult: failed}
	})

	if err := ValidateFilePath(req.WorkbookPath, true); err != nil {
		return SheetResult{OperationResult: Fail(err.Error())}
	}
	if err := ValidateSheetName(req.SheetName); err != nil {
		return SheetResult{OperationResult: Fail(err.Error())}
	}

	f, err := openWorkbook(req.WorkbookPath)
	if err != nil {
		return SheetResult{OperationResult: Failf("Failed to create sheet: %v", err)}
	}
	defer closeWorkbook(f, logger)

	existing := f.GetSheetList()
	if sheetExists(f, req.SheetName) {
		return SheetResult{
			OperationResult: Failf("Sheet '%s' already exists", req.SheetName),
			SheetName:       req.SheetName,
		}
	}

	if _, err := f.NewSheet(req.SheetName); err != nil {
		return SheetResult{OperationResult: Failf("Failed to create sheet: %v", err)}
	}

	if req.Index != nil && *req.Index < len(existing) {
		target := existing[max(*req.Index, 0)]
		if err := f.MoveSheet(req.SheetName, target); err != nil {
			return SheetResult{OperationResult: Failf("Failed to create sheet: %v", err)}
		}
	}

	if err := saveWorkbook(f, req.WorkbookPath, logger); err != nil {
		return SheetResult{OperationResult: Failf("Failed to create sheet: %v", err)}
	}

	logger.WithFields(logrus.Fields{
		"file_path": req.WorkbookPath,
		"sheet":     req.SheetName,
	}).Info("Sheet created")

	return SheetResult{
		OperationResult: Succeed(fmt.Sprintf("Sheet '%s' created successfully", req.SheetName)),
		SheetName:       req.SheetName,
	}
}

// DeleteSheet removes a worksheet. The last remaining sheet cannot be deleted.
func DeleteSheet(ctx context.Context, logger *logrus.Logger, workbookPath, sheetName string) (result SheetResult) {
	defer recoverOperation(logger, "delete sheet", func(failed OperationResult) {
		result = SheetResult{OperationResult: failed}
	})

	if err := ValidateFilePath(workbookPath, true); err != nil {
		return SheetResult{OperationResult: Fail(err.Error())}
	}

	f, err := openWorkbook(workbookPath)
	if err != nil {
		return SheetResult{OperationResult: Failf("Failed to delete sheet: %v", err)}
	}
	defer closeWorkbook(f, logger)

	if failed, missing := sheetMissing(f, sheetName); missing {
		return SheetResult{OperationResult: failed, SheetName: sheetName}
	}

	if len(f.GetSheetList()) == 1 {
		return SheetResult{OperationResult: Fail("Cannot delete the last sheet in the workbook")}
	}

	if err := f.DeleteSheet(sheetName); err != nil {
		return SheetResult{OperationResult: Failf("Failed to delete sheet: %v", err)}
	}

	if err := saveWorkbook(f, workbookPath, logger); err != nil {
		return SheetResult{OperationResult: Failf("Failed to delete sheet: %v", err)}
	}

	return SheetResult{
		OperationResult: Succeed(fmt.Sprintf("Sheet '%s' deleted successfully", sheetName)),
		SheetName:       sheetName,
	}
}

// RenameSheet renames a worksheet without overwriting an existing one.
func RenameSheet(ctx context.Context, logger *logrus.Logger, req RenameSheetRequest) (result SheetResult) {
	defer recoverOperation(logger, "rename sheet", func(failed OperationResult) {
		result = SheetResult{OperationResult: failed}
	})

	if err := ValidateFilePath(req.WorkbookPath, true); err != nil {
		return SheetResult{OperationResult: Fail(err.Error())}
	}
	if err := ValidateSheetName(req.NewName); err != nil {
		return SheetResult{OperationResult: Fail(err.Error())}
	}

	f, err := openWorkbook(req.WorkbookPath)
	if err != nil {
		return SheetResult{OperationResult: Failf("Failed to rename sheet: %v", err)}
	}
	defer closeWorkbook(f, logger)

	if failed, missing := sheetMissing(f, req.OldName); missing {
		return SheetResult{OperationResult: failed, SheetName: req.OldName}
	}

	if sheetExists(f, req.NewName) {
		return SheetResult{OperationResult: Failf("Sheet '%s' already exists", req.NewName)}
	}

	if err := f.SetSheetName(req.OldName, req.NewName); err != nil {
		return SheetResult{OperationResult: Failf("Failed to rename sheet: %v", err)}
	}

	if err := saveWorkbook(f, req.WorkbookPath, logger); err != nil {
		return SheetResult{OperationResult: Failf("Failed to rename sheet: %v", err)}
	}

	return SheetResult{
		OperationResult: Succeed(fmt.Sprintf("Sheet renamed from '%s' to '%s'", req.OldName, req.NewName)),
		SheetName:       req.NewName,
	}
}

// CopySheet appends a copy of an existing worksheet under a new name.
func CopySheet(ctx context.Context, logger *logrus.Logger, req CopySheetRequest) (result SheetResult) {
	defer recoverOperation(logger, "copy sheet", func(failed OperationResult) {
		result = SheetResult{OperationResult: failed}
	})

	if err := ValidateFilePath(req.WorkbookPath, true); err != nil {
		return SheetResult{OperationResult: Fail(err.Error())}
	}
	if err := ValidateSheetName(req.NewName); err != nil {
		return SheetResult{OperationResult: Fail(err.Error())}
	}

	f, err := openWorkbook(req.WorkbookPath)
	if err != nil {
		return SheetResult{OperationResult: Failf("Failed to copy sheet: %v", err)}
	}
	defer closeWorkbook(f, logger)

	if failed, missing := sheetMissing(f, req.SourceSheet); missing {
		return SheetResult{OperationResult: failed, SheetName: req.SourceSheet}
	}

	if sheetExists(f, req.NewName) {
		return SheetResult{OperationResult: Failf("Sheet '%s' already exists", req.NewName)}
	}

	sourceIndex, err := f.GetSheetIndex(req.SourceSheet)
	if err != nil {
		return SheetResult{OperationResult: Failf("Failed to copy sheet: %v", err)}
	}

	targetIndex, err := f.NewSheet(req.NewName)
	if err != nil {
		return SheetResult{OperationResult: Failf("Failed to copy sheet: %v", err)}
	}

	if err := f.CopySheet(sourceIndex, targetIndex); err != nil {
		return SheetResult{OperationResult: Failf("Failed to copy sheet: %v", &SheetError{Operation: "copy", SheetName: req.SourceSheet, Cause: err})}
	}

	if err := saveWorkbook(f, req.WorkbookPath, logger); err != nil {
		return SheetResult{OperationResult: Failf("Failed to copy sheet: %v", err)}
	}

	logger.WithFields(logrus.Fields{
		"file_path": req.WorkbookPath,
		"source":    req.SourceSheet,
		"target":    req.NewName,
	}).Info("Sheet copied")

	return SheetResult{
		OperationResult: Succeed(fmt.Sprintf("Sheet '%s' copied to '%s'", req.SourceSheet, req.NewName)),
		SheetName:       req.NewName,
	}
}

// sheetExists reports whether name is taken. Sheet names compare case-insensitively.
func sheetExists(f *excelize.File, name string) bool {
	idx, _ := f.GetSheetIndex(name)
	return idx != -1
}
