package excel

import (
	"context"
	"errors"
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
	formatFontName      = "format_font"
	formatFillName      = "format_fill"
	formatBorderName    = "format_border"
	formatAlignmentName = "format_alignment"
	formatNumberName    = "format_number"
)

func init() {
	registry.Register(&FormatFontTool{})
	registry.Register(&FormatFillTool{})
	registry.Register(&FormatBorderTool{})
	registry.Register(&FormatAlignmentTool{})
	registry.Register(&FormatNumberTool{})
}

// targetArgs is embedded by every formatting argument struct.
type targetArgs struct {
	WorkbookPath string `zog:"workbook_path"`
	SheetName    string `zog:"sheet_name"`
	RangeRef     string `zog:"range_ref"`
}

func (a *targetArgs) validateTarget() error {
	a.RangeRef = strings.ToUpper(strings.TrimSpace(a.RangeRef))
	return errors.Join(
		spreadsheet.ValidateSheetName(a.SheetName),
		spreadsheet.ValidateRangeReference(a.RangeRef),
	)
}

func (a *targetArgs) target() spreadsheet.FormatTarget {
	return spreadsheet.FormatTarget{
		WorkbookPath: resolvePath(a.WorkbookPath),
		SheetName:    a.SheetName,
		RangeRef:     a.RangeRef,
	}
}

// targetShape returns the schema entries shared by every formatting tool, plus extra.
func targetShape(extra z.Shape) z.Shape {
	shape := z.Shape{
		"workbookPath": z.String().Required(),
		"sheetName":    z.String().Required(),
		"rangeRef":     z.String().Required(),
	}
	for key, schema := range extra {
		shape[key] = schema
	}
	return shape
}

// formatParams returns the tool parameters shared by every formatting tool, plus extra.
func formatParams(extra ...mcp.ToolOption) []mcp.ToolOption {
	return append([]mcp.ToolOption{
		sheetNameParam("Sheet containing the range"),
		mcp.WithString("range_ref", mcp.Required(), mcp.Description("Range to format, such as 'A1:D1'. Use 'A1:A1' for a single cell.")),
	}, extra...)
}

// applyFormat runs a formatting operation after the access check.
func applyFormat(ctx context.Context, logger *logrus.Logger, toolName string, target spreadsheet.FormatTarget, run func() spreadsheet.OperationResult) (*mcp.CallToolResult, error) {
	entry := callLogger(ctx, logger, toolName, target.WorkbookPath).WithFields(logrus.Fields{
		"sheet": target.SheetName,
		"range": target.RangeRef,
	})
	if err := security.CheckFileAccess(target.WorkbookPath); err != nil {
		return respond(entry, spreadsheet.Fail(err.Error()))
	}
	return respond(entry, run())
}

// FormatFontTool sets font attributes
type FormatFontTool struct{}

type formatFontArgs struct {
	targetArgs
	FontName  *string `zog:"font_name"`
	FontSize  *int    `zog:"font_size"`
	Bold      *bool   `zog:"bold"`
	Italic    *bool   `zog:"italic"`
	Underline *string `zog:"underline"`
	Color     *string `zog:"color"`
}

var formatFontSchema = z.Struct(targetShape(z.Shape{
	"fontName":  z.Ptr(z.String()),
	"fontSize":  z.Ptr(z.Int().GTE(spreadsheet.MinFontSize).LTE(spreadsheet.MaxFontSize)),
	"bold":      z.Ptr(z.Bool()),
	"italic":    z.Ptr(z.Bool()),
	"underline": z.Ptr(z.String().OneOf(spreadsheet.UnderlineStyles)),
	"color":     z.Ptr(z.String()),
}))

func (a *formatFontArgs) options() spreadsheet.FontOptions {
	return spreadsheet.FontOptions{
		Name:      a.FontName,
		Size:      a.FontSize,
		Bold:      a.Bold,
		Italic:    a.Italic,
		Underline: a.Underline,
		Color:     a.Color,
	}
}

func (a *formatFontArgs) Validate() error {
	return errors.Join(a.validateTarget(), a.options().Validate())
}

// Definition returns the tool's definition for MCP registration
func (t *FormatFontTool) Definition() mcp.Tool {
	return newTool(formatFontName, workbookPathParam,
		"Set font attributes on every cell in a range. Only the attributes supplied change; fills, borders and other font attributes are kept.",
		mutating(false, true),
		formatParams(
			mcp.WithString("font_name", mcp.Description("Font family, such as 'Calibri' or 'Arial'")),
			mcp.WithNumber("font_size", mcp.Description("Point size from 8 to 72")),
			mcp.WithBoolean("bold", mcp.Description("Bold on or off")),
			mcp.WithBoolean("italic", mcp.Description("Italic on or off")),
			mcp.WithString("underline", mcp.Description("Underline style"), mcp.Enum(spreadsheet.UnderlineStyles...)),
			mcp.WithString("color", mcp.Description("Font colour as hex, such as 'FF0000' or '#FF0000'")),
		)...,
	)
}

// Execute applies the font
func (t *FormatFontTool) Execute(ctx context.Context, logger *logrus.Logger, args map[string]any) (*mcp.CallToolResult, error) {
	var req formatFontArgs
	if err := decodeArgs(formatFontSchema, args, &req); err != nil {
		return nil, err
	}

	target := req.target()
	return applyFormat(ctx, logger, formatFontName, target, func() spreadsheet.OperationResult {
		return spreadsheet.FormatFont(ctx, logger, spreadsheet.FontFormatRequest{FormatTarget: target, FontOptions: req.options()})
	})
}

// ProvideExtendedInfo provides detailed usage information for format_font
func (t *FormatFontTool) ProvideExtendedInfo() *tools.ExtendedHelp {
	return &tools.ExtendedHelp{
		Examples: []tools.ToolExample{
			{
				Description: "Bold white header text",
				Arguments: map[string]any{
					"workbook_path": "/path/to/report.xlsx",
					"sheet_name":    "Sales",
					"range_ref":     "A1:D1",
					"bold":          true,
					"color":         "FFFFFF",
				},
				ExpectedResult: "Header cells become bold and white. Any existing fill on A1:D1 is kept.",
			},
		},
		CommonPatterns: []string{
			"Pair with format_fill on the same range for a coloured header row",
			"Formatting calls build on each other, so apply each attribute group with its own tool",
		},
		ParameterDetails: map[string]string{
			"font_size": "Whole points from 8 to 72 inclusive",
			"underline": "single, double, singleAccounting or doubleAccounting",
		},
	}
}

// FormatFillTool sets the background fill
type FormatFillTool struct{}

type formatFillArgs struct {
	targetArgs
	Color    string `zog:"color"`
	FillType string `zog:"fill_type"`
}

var formatFillSchema = z.Struct(targetShape(z.Shape{
	"color":    z.String().Required(),
	"fillType": z.String().OneOf(spreadsheet.FillTypes).Default(spreadsheet.DefaultFillType),
}))

func (a *formatFillArgs) options() spreadsheet.FillOptions {
	return spreadsheet.FillOptions{Color: a.Color, FillType: a.FillType}
}

func (a *formatFillArgs) Validate() error {
	return errors.Join(a.validateTarget(), a.options().Validate())
}

// Definition returns the tool's definition for MCP registration
func (t *FormatFillTool) Definition() mcp.Tool {
	return newTool(formatFillName, workbookPathParam,
		"Set the background fill of every cell in a range. Fonts, borders and number formats are kept.",
		mutating(false, true),
		formatParams(
			mcp.WithString("color", mcp.Required(), mcp.Description("Fill colour as hex, such as 'E2EFDA'")),
			mcp.WithString("fill_type",
				mcp.Description("Pattern name"),
				mcp.Enum(spreadsheet.FillTypes...),
				mcp.DefaultString(spreadsheet.DefaultFillType),
			),
		)...,
	)
}

// Execute applies the fill
func (t *FormatFillTool) Execute(ctx context.Context, logger *logrus.Logger, args map[string]any) (*mcp.CallToolResult, error) {
	var req formatFillArgs
	if err := decodeArgs(formatFillSchema, args, &req); err != nil {
		return nil, err
	}

	target := req.target()
	return applyFormat(ctx, logger, formatFillName, target, func() spreadsheet.OperationResult {
		return spreadsheet.FormatFill(ctx, logger, spreadsheet.FillFormatRequest{FormatTarget: target, FillOptions: req.options()})
	})
}

// FormatBorderTool draws cell borders
type FormatBorderTool struct{}

type formatBorderArgs struct {
	targetArgs
	Style string   `zog:"style"`
	Color string   `zog:"color"`
	Sides []string `zog:"sides"`
}

var formatBorderSchema = z.Struct(targetShape(z.Shape{
	"style": z.String().OneOf(spreadsheet.BorderStyles).Default(spreadsheet.DefaultBorderType),
	"color": z.String(),
	"sides": z.Slice(z.String().OneOf(spreadsheet.BorderSides)),
}))

func (a *formatBorderArgs) options() spreadsheet.BorderOptions {
	opts := spreadsheet.BorderOptions{Style: a.Style, Color: a.Color}
	if len(a.Sides) > 0 {
		opts.Sides = a.Sides
	}
	return opts
}

func (a *formatBorderArgs) Validate() error {
	return errors.Join(a.validateTarget(), a.options().Validate())
}

// Definition returns the tool's definition for MCP registration
func (t *FormatBorderTool) Definition() mcp.Tool {
	return newTool(formatBorderName, workbookPathParam,
		"Draw borders on every cell in a range. Sides that are not listed keep their current border.",
		mutating(false, true),
		formatParams(
			mcp.WithString("style",
				mcp.Description("Line style"),
				mcp.Enum(spreadsheet.BorderStyles...),
				mcp.DefaultString(spreadsheet.DefaultBorderType),
			),
			mcp.WithString("color", mcp.Description("Border colour as hex; omit for the default black")),
			mcp.WithArray("sides",
				mcp.Description("Sides to draw on each cell (default: all four)"),
				mcp.Items(map[string]any{
					"type": "string",
					"enum": spreadsheet.BorderSides,
				}),
			),
		)...,
	)
}

// Execute applies the borders
func (t *FormatBorderTool) Execute(ctx context.Context, logger *logrus.Logger, args map[string]any) (*mcp.CallToolResult, error) {
	var req formatBorderArgs
	if err := decodeArgs(formatBorderSchema, args, &req); err != nil {
		return nil, err
	}

	target := req.target()
	return applyFormat(ctx, logger, formatBorderName, target, func() spreadsheet.OperationResult {
		return spreadsheet.FormatBorder(ctx, logger, spreadsheet.BorderFormatRequest{FormatTarget: target, BorderOptions: req.options()})
	})
}

// ProvideExtendedInfo provides detailed usage information for format_border
func (t *FormatBorderTool) ProvideExtendedInfo() *tools.ExtendedHelp {
	return &tools.ExtendedHelp{
		Examples: []tools.ToolExample{
			{
				Description: "Underline a total row with a double line",
				Arguments: map[string]any{
					"workbook_path": "/path/to/report.xlsx",
					"sheet_name":    "Sales",
					"range_ref":     "A10:D10",
					"style":         "double",
					"sides":         []string{"top"},
				},
				ExpectedResult: "Each cell in A10:D10 gets a double top border; its other sides are unchanged.",
			},
		},
		Troubleshooting: []tools.TroubleshootingTip{
			{
				Problem:  "Only the outline of the range was wanted",
				Solution: "Borders are drawn per cell. For an outline, call format_border separately for the top row, bottom row, left column and right column with the matching side.",
			},
		},
	}
}

// FormatAlignmentTool sets text alignment
type FormatAlignmentTool struct{}

type formatAlignmentArgs struct {
	targetArgs
	Horizontal   *string `zog:"horizontal"`
	Vertical     *string `zog:"vertical"`
	WrapText     *bool   `zog:"wrap_text"`
	TextRotation *int    `zog:"text_rotation"`
}

var formatAlignmentSchema = z.Struct(targetShape(z.Shape{
	"horizontal":   z.Ptr(z.String().OneOf(spreadsheet.HorizontalAligns)),
	"vertical":     z.Ptr(z.String().OneOf(spreadsheet.VerticalAligns)),
	"wrapText":     z.Ptr(z.Bool()),
	"textRotation": z.Ptr(z.Int().GTE(0).LTE(spreadsheet.MaxTextRotation)),
}))

func (a *formatAlignmentArgs) options() spreadsheet.AlignmentOptions {
	return spreadsheet.AlignmentOptions{
		Horizontal:   a.Horizontal,
		Vertical:     a.Vertical,
		WrapText:     a.WrapText,
		TextRotation: a.TextRotation,
	}
}

func (a *formatAlignmentArgs) Validate() error {
	return errors.Join(a.validateTarget(), a.options().Validate())
}

// Definition returns the tool's definition for MCP registration
func (t *FormatAlignmentTool) Definition() mcp.Tool {
	return newTool(formatAlignmentName, workbookPathParam,
		"Set horizontal and vertical alignment, text wrapping and rotation on every cell in a range.",
		mutating(false, true),
		formatParams(
			mcp.WithString("horizontal", mcp.Description("Horizontal alignment"), mcp.Enum(spreadsheet.HorizontalAligns...)),
			mcp.WithString("vertical", mcp.Description("Vertical alignment"), mcp.Enum(spreadsheet.VerticalAligns...)),
			mcp.WithBoolean("wrap_text", mcp.Description("Wrap long text onto several lines")),
			mcp.WithNumber("text_rotation", mcp.Description("Rotation in degrees from 0 to 180")),
		)...,
	)
}

// Execute applies the alignment
func (t *FormatAlignmentTool) Execute(ctx context.Context, logger *logrus.Logger, args map[string]any) (*mcp.CallToolResult, error) {
	var req formatAlignmentArgs
	if err := decodeArgs(formatAlignmentSchema, args, &req); err != nil {
		return nil, err
	}

	target := req.target()
	return applyFormat(ctx, logger, formatAlignmentName, target, func() spreadsheet.OperationResult {
		return spreadsheet.FormatAlignment(ctx, logger, spreadsheet.AlignmentFormatRequest{FormatTarget: target, AlignmentOptions: req.options()})
	})
}

// FormatNumberTool sets a number format
type FormatNumberTool struct{}

type formatNumberArgs struct {
	targetArgs
	FormatString string `zog:"format_string"`
}

var formatNumberSchema = z.Struct(targetShape(z.Shape{
	"formatString": z.String().Required(),
}))

func (a *formatNumberArgs) Validate() error {
	return a.validateTarget()
}

// Definition returns the tool's definition for MCP registration
func (t *FormatNumberTool) Definition() mcp.Tool {
	return newTool(formatNumberName, workbookPathParam,
		"Apply an Excel number format string to every cell in a range.",
		mutating(false, true),
		formatParams(
			mcp.WithString("format_string",
				mcp.Required(),
				mcp.Description("Excel format code, such as '#,##0.00', '0.00%', '£#,##0.00' or 'yyyy-mm-dd'"),
			),
		)...,
	)
}

// Execute applies the number format
func (t *FormatNumberTool) Execute(ctx context.Context, logger *logrus.Logger, args map[string]any) (*mcp.CallToolResult, error) {
	var req formatNumberArgs
	if err := decodeArgs(formatNumberSchema, args, &req); err != nil {
		return nil, err
	}

	target := req.target()
	return applyFormat(ctx, logger, formatNumberName, target, func() spreadsheet.OperationResult {
		return spreadsheet.FormatNumber(ctx, logger, spreadsheet.NumberFormatRequest{FormatTarget: target, FormatString: req.FormatString})
	})
}

// ProvideExtendedInfo provides detailed usage information for format_number
func (t *FormatNumberTool) ProvideExtendedInfo() *tools.ExtendedHelp {
	return &tools.ExtendedHelp{
		ParameterDetails: map[string]string{
			"format_string": "Any Excel custom format code. '#,##0.00' (thousands), '0.00%' (percentage), '£#,##0.00' (currency), 'dd/mm/yyyy' (date). The code is stored as given and is not checked.",
		},
		WhenToUse: "Displaying stored numbers as currency, percentages or dates without changing the values.",
	}
}
