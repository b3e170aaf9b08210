package spreadsheet

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"
)

// FormatTarget names the block a formatting operation applies to.
type FormatTarget struct {
	WorkbookPath string
	SheetName    string
	RangeRef     string
}

// FontFormatRequest applies font attributes to a range.
type FontFormatRequest struct {
	FormatTarget
	FontOptions
}

// FillFormatRequest applies a background fill to a range.
type FillFormatRequest struct {
	FormatTarget
	FillOptions
}

// BorderFormatRequest applies borders to a range.
type BorderFormatRequest struct {
	FormatTarget
	BorderOptions
}

// AlignmentFormatRequest applies alignment attributes to a range.
type AlignmentFormatRequest struct {
	FormatTarget
	AlignmentOptions
}

// NumberFormatRequest applies an Excel number format string to a range.
type NumberFormatRequest struct {
	FormatTarget
	FormatString string
}

// FormatFont applies font attributes to every cell in the range.
func FormatFont(ctx context.Context, logger *logrus.Logger, req FontFormatRequest) OperationResult {
	return formatRange(logger, "Font", req.FormatTarget, req.FontOptions.Validate, req.FontOptions.apply)
}

// FormatFill sets the background fill of every cell in the range.
func FormatFill(ctx context.Context, logger *logrus.Logger, req FillFormatRequest) OperationResult {
	return formatRange(logger, "Fill", req.FormatTarget, req.FillOptions.Validate, req.FillOptions.apply)
}

// FormatBorder draws borders on every cell in the range.
func FormatBorder(ctx context.Context, logger *logrus.Logger, req BorderFormatRequest) OperationResult {
	return formatRange(logger, "Border", req.FormatTarget, req.BorderOptions.Validate, req.BorderOptions.apply)
}

// FormatAlignment applies alignment attributes to every cell in the range.
func FormatAlignment(ctx context.Context, logger *logrus.Logger, req AlignmentFormatRequest) OperationResult {
	return formatRange(logger, "Alignment", req.FormatTarget, req.AlignmentOptions.Validate, req.AlignmentOptions.apply)
}

// FormatNumber applies a number format to every cell in the range.
func FormatNumber(ctx context.Context, logger *logrus.Logger, req NumberFormatRequest) OperationResult {
	validate := func() error {
		if req.FormatString == "" {
			return &ValidationError{Field: "format_string", Message: "format string cannot be empty"}
		}
		return nil
	}
	return formatRange(logger, "Number", req.FormatTarget, validate, applyNumberFormat(req.FormatString))
}

// formatRange runs the shared open, validate, style and save sequence. kind
// names the style axis in messages.
func formatRange(logger *logrus.Logger, kind string, target FormatTarget, validate func() error, change func(*excelize.Style)) (result OperationResult) {
	action := fmt.Sprintf("apply %s formatting", strings.ToLower(kind))
	defer recoverOperation(logger, action, func(failed OperationResult) {
		result = failed
	})

	rangeRef := strings.ToUpper(target.RangeRef)
	if err := ValidateFilePath(target.WorkbookPath, true); err != nil {
		return Fail(err.Error())
	}

	bounds, err := ParseRangeReference(rangeRef)
	if err != nil {
		return Fail(err.Error())
	}

	if err := validate(); err != nil {
		return Fail(err.Error())
	}

	f, err := openWorkbook(target.WorkbookPath)
	if err != nil {
		return Failf("Failed to %s: %v", action, err)
	}
	defer closeWorkbook(f, logger)

	if failed, missing := sheetMissing(f, target.SheetName); missing {
		return failed
	}

	if err := styleRange(f, target.SheetName, bounds, change); err != nil {
		return Failf("Failed to %s: %v", action, &FormatError{Operation: action, Range: rangeRef, Cause: err})
	}

	if err := saveWorkbook(f, target.WorkbookPath, logger); err != nil {
		return Failf("Failed to %s: %v", action, err)
	}

	logger.WithFields(logrus.Fields{
		"file_path": target.WorkbookPath,
		"sheet":     target.SheetName,
		"range":     rangeRef,
		"kind":      kind,
	}).Debug("Formatting applied")

	return Succeed(fmt.Sprintf("%s formatting applied to %s", kind, rangeRef))
}
