package spreadsheet

import (
	"fmt"
	"slices"
	"sort"

	"github.com/xuri/excelize/v2"
)

// FontOptions lists font attributes to apply. Nil fields leave the cell's
// current value untouched.
type FontOptions struct {
	Name      *string
	Size      *int
	Bold      *bool
	Italic    *bool
	Underline *string
	Color     *string
}

// FillOptions sets a cell background.
type FillOptions struct {
	Color    string
	FillType string
}

// BorderOptions draws the same edge on each listed side.
type BorderOptions struct {
	Style string
	Color string
	Sides []string
}

// AlignmentOptions lists alignment attributes to apply. Nil fields are left as they are.
type AlignmentOptions struct {
	Horizontal   *string
	Vertical     *string
	WrapText     *bool
	TextRotation *int
}

const (
	MinFontSize       = 8
	MaxFontSize       = 72
	MaxTextRotation   = 180
	DefaultFillType   = "solid"
	DefaultBorderType = "thin"
)

// Accepted option values.
var (
	FillTypes        = sortedKeys(fillPatterns)
	BorderStyles     = sortedKeys(borderStyles)
	BorderSides      = []string{"top", "bottom", "left", "right"}
	UnderlineStyles  = []string{"single", "double", "singleAccounting", "doubleAccounting"}
	HorizontalAligns = []string{"general", "left", "center", "right", "fill", "justify", "centerContinuous", "distributed"}
	VerticalAligns   = []string{"top", "center", "bottom", "justify", "distributed"}
)

var fillPatterns = map[string]int{
	"solid":           1,
	"mediumGray":      2,
	"darkGray":        3,
	"lightGray":       4,
	"darkHorizontal":  5,
	"darkVertical":    6,
	"darkDown":        7,
	"darkUp":          8,
	"darkGrid":        9,
	"darkTrellis":     10,
	"lightHorizontal": 11,
	"lightVertical":   12,
	"lightDown":       13,
	"lightUp":         14,
	"lightGrid":       15,
	"lightTrellis":    16,
	"gray125":         17,
	"gray0625":        18,
}

var borderStyles = map[string]int{
	"thin":             1,
	"medium":           2,
	"dashed":           3,
	"dotted":           4,
	"thick":            5,
	"double":           6,
	"hair":             7,
	"mediumDashed":     8,
	"dashDot":          9,
	"mediumDashDot":    10,
	"dashDotDot":       11,
	"mediumDashDotDot": 12,
	"slantDashDot":     13,
}

// Validate checks the optional font attributes that carry constraints.
func (o FontOptions) Validate() error {
	if o.Size != nil && (*o.Size < MinFontSize || *o.Size > MaxFontSize) {
		return &ValidationError{Field: "font_size", Value: *o.Size, Message: fmt.Sprintf("must be between %d and %d", MinFontSize, MaxFontSize)}
	}
	if o.Underline != nil && *o.Underline != "" && !slices.Contains(UnderlineStyles, *o.Underline) {
		return &ValidationError{Field: "underline", Value: *o.Underline, Message: fmt.Sprintf("must be one of %v", UnderlineStyles)}
	}
	if o.Color != nil {
		if err := ValidateColorHex(*o.Color); err != nil {
			return err
		}
	}
	return nil
}

// Validate checks the fill colour and pattern name.
func (o FillOptions) Validate() error {
	if err := ValidateColorHex(o.Color); err != nil {
		return err
	}
	if _, ok := fillPatterns[o.fillType()]; !ok {
		return &ValidationError{Field: "fill_type", Value: o.FillType, Message: fmt.Sprintf("must be one of %v", FillTypes)}
	}
	return nil
}

func (o FillOptions) fillType() string {
	if o.FillType == "" {
		return DefaultFillType
	}
	return o.FillType
}

// Validate checks the border style, colour and side names.
func (o BorderOptions) Validate() error {
	if _, ok := borderStyles[o.style()]; !ok {
		return &ValidationError{Field: "style", Value: o.Style, Message: fmt.Sprintf("must be one of %v", BorderStyles)}
	}
	if o.Color != "" {
		if err := ValidateColorHex(o.Color); err != nil {
			return err
		}
	}
	for _, side := range o.Sides {
		if !slices.Contains(BorderSides, side) {
			return &ValidationError{Field: "sides", Value: side, Message: fmt.Sprintf("Invalid side: %s. Must be one of %v", side, BorderSides)}
		}
	}
	return nil
}

func (o BorderOptions) style() string {
	if o.Style == "" {
		return DefaultBorderType
	}
	return o.Style
}

func (o BorderOptions) sides() []string {
	if len(o.Sides) == 0 {
		return BorderSides
	}
	return o.Sides
}

// Validate checks alignment names and the rotation bound.
func (o AlignmentOptions) Validate() error {
	if o.Horizontal != nil && !slices.Contains(HorizontalAligns, *o.Horizontal) {
		return &ValidationError{Field: "horizontal", Value: *o.Horizontal, Message: fmt.Sprintf("must be one of %v", HorizontalAligns)}
	}
	if o.Vertical != nil && !slices.Contains(VerticalAligns, *o.Vertical) {
		return &ValidationError{Field: "vertical", Value: *o.Vertical, Message: fmt.Sprintf("must be one of %v", VerticalAligns)}
	}
	if o.TextRotation != nil && (*o.TextRotation < 0 || *o.TextRotation > MaxTextRotation) {
		return &ValidationError{Field: "text_rotation", Value: *o.TextRotation, Message: fmt.Sprintf("must be between 0 and %d", MaxTextRotation)}
	}
	return nil
}

// apply overrides only the font attributes that were supplied.
func (o FontOptions) apply(style *excelize.Style) {
	font := excelize.Font{}
	if style.Font != nil {
		font = *style.Font
	}
	if o.Name != nil {
		font.Family = *o.Name
	}
	if o.Size != nil {
		font.Size = float64(*o.Size)
	}
	if o.Bold != nil {
		font.Bold = *o.Bold
	}
	if o.Italic != nil {
		font.Italic = *o.Italic
	}
	if o.Underline != nil {
		font.Underline = *o.Underline
	}
	if o.Color != nil {
		colour, _ := NormalizeColor(*o.Color)
		font.Color = colour
	}
	style.Font = &font
}

func (o FillOptions) apply(style *excelize.Style) {
	colour, _ := NormalizeColor(o.Color)
	style.Fill = excelize.Fill{
		Type:    "pattern",
		Pattern: fillPatterns[o.fillType()],
		Color:   []string{colour},
	}
}

// apply replaces the listed sides and keeps any other existing edges.
func (o BorderOptions) apply(style *excelize.Style) {
	colour := ""
	if o.Color != "" {
		colour, _ = NormalizeColor(o.Color)
	}

	edges := make(map[string]excelize.Border, len(style.Border)+4)
	for _, border := range style.Border {
		if border.Style != 0 {
			edges[border.Type] = border
		}
	}
	for _, side := range o.sides() {
		edges[side] = excelize.Border{Type: side, Color: colour, Style: borderStyles[o.style()]}
	}

	style.Border = make([]excelize.Border, 0, len(edges))
	for _, side := range sortedKeys(edges) {
		style.Border = append(style.Border, edges[side])
	}
}

func (o AlignmentOptions) apply(style *excelize.Style) {
	alignment := excelize.Alignment{}
	if style.Alignment != nil {
		alignment = *style.Alignment
	}
	if o.Horizontal != nil {
		alignment.Horizontal = *o.Horizontal
	}
	if o.Vertical != nil {
		alignment.Vertical = *o.Vertical
	}
	if o.WrapText != nil {
		alignment.WrapText = *o.WrapText
	}
	if o.TextRotation != nil {
		alignment.TextRotation = *o.TextRotation
	}
	style.Alignment = &alignment
}

func applyNumberFormat(format string) func(*excelize.Style) {
	return func(style *excelize.Style) {
		style.NumFmt = 0
		style.CustomNumFmt = &format
	}
}

// styleRange applies change to every cell in bounds. Cells that share a style
// before the change share the resulting style afterwards.
func styleRange(f *excelize.File, sheet string, bounds CellRange, change func(*excelize.Style)) error {
	merged := make(map[int]int)

	for row := bounds.StartRow; row <= bounds.EndRow; row++ {
		for col := bounds.StartCol; col <= bounds.EndCol; col++ {
			cell, err := cellName(col, row)
			if err != nil {
				return err
			}

			current, err := f.GetCellStyle(sheet, cell)
			if err != nil {
				return fmt.Errorf("failed to get style for %s: %w", cell, err)
			}

			next, ok := merged[current]
			if !ok {
				style, err := f.GetStyle(current)
				if err != nil {
					return fmt.Errorf("failed to load style %d: %w", current, err)
				}
				change(style)
				next, err = f.NewStyle(style)
				if err != nil {
					return fmt.Errorf("failed to create style: %w", err)
				}
				merged[current] = next
			}

			if err := f.SetCellStyle(sheet, cell, cell, next); err != nil {
				return fmt.Errorf("failed to apply style to %s: %w", cell, err)
			}
		}
	}

	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
