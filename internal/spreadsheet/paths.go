package spreadsheet

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

const workbookExtension = ".xlsx"

// ValidateFilePath checks that path names an .xlsx file whose parent directory exists.
// When mustExist is set the file itself must exist as well.
func ValidateFilePath(path string, mustExist bool) error {
	if !strings.EqualFold(filepath.Ext(path), workbookExtension) {
		return &ValidationError{Value: path, Message: "File must have .xlsx extension"}
	}

	if mustExist {
		if _, err := os.Stat(path); err != nil {
			return &ValidationError{Value: path, Message: fmt.Sprintf("File not found: %s", path)}
		}
	}

	parent := filepath.Dir(path)
	if info, err := os.Stat(parent); err != nil || !info.IsDir() {
		return &ValidationError{Value: path, Message: fmt.Sprintf("Parent directory does not exist: %s", parent)}
	}

	if _, err := ResolvePath(path); err != nil {
		return err
	}

	return nil
}

// ResolvePath returns the absolute, cleaned form of path. Paths that carry ".."
// segments are rejected rather than resolved.
func ResolvePath(path string) (string, error) {
	if hasTraversal(path) {
		return "", &ValidationError{Value: path, Message: "Invalid file path"}
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return "", &ValidationError{Value: path, Message: "Invalid file path"}
	}
	return abs, nil
}

func hasTraversal(path string) bool {
	parts := strings.FieldsFunc(filepath.ToSlash(path), func(r rune) bool { return r == '/' })
	return slices.Contains(parts, "..")
}
