package spreadsheet

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"
)

// Excel limits
const (
	MaxRows         = 1048576
	MaxColumns      = 16384
	MaxSheetNameLen = 31
)

var (
	cellReferencePattern  = regexp.MustCompile(`^[A-Z]{1,3}[1-9]\d*$`)
	rangeReferencePattern = regexp.MustCompile(`^[A-Z]{1,3}[1-9]\d*:[A-Z]{1,3}[1-9]\d*$`)
	rowDigitsPattern      = regexp.MustCompile(`\d+`)
	hexColourPattern      = regexp.MustCompile(`^[0-9A-Fa-f]{6}$`)

	invalidSheetNameChars = []string{":", "\\", "/", "?", "*", "[", "]"}

	// prohibitedFormulaFunctions is matched as a plain substring of the upper-cased formula.
	prohibitedFormulaFunctions = []string{"CALL", "REGISTER", "EXEC"}
)

// CellRange is a normalised rectangular block, 1-based and inclusive.
type CellRange struct {
	StartCol, StartRow int
	EndCol, EndRow     int
}

// Rows returns the number of rows covered by the range.
func (r CellRange) Rows() int { return r.EndRow - r.StartRow + 1 }

// Cols returns the number of columns covered by the range.
func (r CellRange) Cols() int { return r.EndCol - r.StartCol + 1 }

// ValidateCellReference accepts references like A1 or xfd1048576 (case-insensitive).
func ValidateCellReference(cell string) error {
	if !cellReferencePattern.MatchString(strings.ToUpper(cell)) {
		return &ValidationError{
			Value:   cell,
			Message: fmt.Sprintf("Invalid cell reference: %s. Expected format like 'A1' or 'B10'", cell),
		}
	}

	digits := rowDigitsPattern.FindString(cell)
	row, err := strconv.Atoi(digits)
	if err != nil || row > MaxRows {
		return &ValidationError{
			Value:   cell,
			Message: fmt.Sprintf("Row number %s exceeds Excel's maximum (%d)", digits, MaxRows),
		}
	}

	return nil
}

// ValidateRangeReference accepts two cell references joined by a colon.
func ValidateRangeReference(rangeRef string) error {
	if !rangeReferencePattern.MatchString(strings.ToUpper(rangeRef)) {
		return &ValidationError{
			Value:   rangeRef,
			Message: fmt.Sprintf("Invalid range reference: %s. Expected format like 'A1:B10'", rangeRef),
		}
	}

	for cell := range strings.SplitSeq(rangeRef, ":") {
		if err := ValidateCellReference(cell); err != nil {
			return err
		}
	}

	return nil
}

// ValidateSheetName enforces Excel's sheet naming rules.
func ValidateSheetName(name string) error {
	if name == "" {
		return &ValidationError{Value: name, Message: "Sheet name cannot be empty"}
	}

	if utf8.RuneCountInString(name) > MaxSheetNameLen {
		return &ValidationError{Value: name, Message: fmt.Sprintf("Sheet name cannot exceed %d characters", MaxSheetNameLen)}
	}

	for _, char := range invalidSheetNameChars {
		if strings.Contains(name, char) {
			return &ValidationError{Value: name, Message: fmt.Sprintf("Sheet name cannot contain '%s'", char)}
		}
	}

	return nil
}

// ValidateColorHex accepts six hex digits with an optional leading '#'.
func ValidateColorHex(colour string) error {
	stripped := strings.TrimLeft(colour, "#")
	if !hexColourPattern.MatchString(stripped) {
		return &ValidationError{
			Value:   colour,
			Message: fmt.Sprintf("Invalid hex color: %s. Expected format like 'FF0000' or '#FF0000'", stripped),
		}
	}
	return nil
}

// NormalizeColor validates a colour and returns it upper-cased without the '#' prefix.
func NormalizeColor(colour string) (string, error) {
	if err := ValidateColorHex(colour); err != nil {
		return "", err
	}
	return strings.ToUpper(strings.TrimLeft(colour, "#")), nil
}

// ValidateFormula is a textual screen only. It does not parse the formula and
// must not be relied on to stop a determined author.
func ValidateFormula(formula string) error {
	if formula == "" {
		return &ValidationError{Value: formula, Message: "Formula cannot be empty"}
	}

	if !strings.HasPrefix(formula, "=") {
		return &ValidationError{Value: formula, Message: "Formula must start with '='"}
	}

	upper := strings.ToUpper(formula)
	for _, fn := range prohibitedFormulaFunctions {
		if strings.Contains(upper, fn) {
			return &ValidationError{Value: formula, Message: fmt.Sprintf("Formula contains prohibited function: %s", fn)}
		}
	}

	return nil
}

// ColumnLetterToNumber converts a column name to its 1-based index (A=1, Z=26, AA=27).
func ColumnLetterToNumber(column string) int {
	number := 0
	for _, char := range strings.ToUpper(column) {
		number = number*26 + int(char-'A'+1)
	}
	return number
}

// ColumnNumberToLetter converts a 1-based column index to its name. It returns "" for n < 1.
func ColumnNumberToLetter(n int) string {
	var letters []byte
	for n > 0 {
		n--
		letters = append([]byte{byte('A' + n%26)}, letters...)
		n /= 26
	}
	return string(letters)
}

// ParseCellReference validates a cell reference and returns its column and row.
func ParseCellReference(cell string) (col, row int, err error) {
	if err := ValidateCellReference(cell); err != nil {
		return 0, 0, err
	}

	col, row, err = excelize.CellNameToCoordinates(strings.ToUpper(cell))
	if err != nil {
		return 0, 0, &ValidationError{
			Field:   "cell",
			Value:   cell,
			Message: fmt.Sprintf("invalid cell reference: %v", err),
		}
	}
	return col, row, nil
}

// ParseRangeReference validates a range and returns it with corners ordered
// top-left to bottom-right.
func ParseRangeReference(rangeRef string) (CellRange, error) {
	if err := ValidateRangeReference(rangeRef); err != nil {
		return CellRange{}, err
	}

	start, end, _ := strings.Cut(rangeRef, ":")
	startCol, startRow, err := ParseCellReference(start)
	if err != nil {
		return CellRange{}, err
	}
	endCol, endRow, err := ParseCellReference(end)
	if err != nil {
		return CellRange{}, err
	}

	return CellRange{
		StartCol: min(startCol, endCol),
		StartRow: min(startRow, endRow),
		EndCol:   max(startCol, endCol),
		EndRow:   max(startRow, endRow),
	}, nil
}

// cellName builds an A1-style reference from coordinates.
func cellName(col, row int) (string, error) {
	name, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return "", &ValidationError{
			Field:   "coordinates",
			Value:   fmt.Sprintf("col=%d, row=%d", col, row),
			Message: fmt.Sprintf("invalid coordinates: %v", err),
		}
	}
	return name, nil
}
