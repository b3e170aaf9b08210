// Package excel exposes the spreadsheet operations as MCP tools, one tool per operation.
package excel

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	z "github.com/Oudwins/zog"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/sammcj/mcp-excel/internal/config"
	"github.com/sammcj/mcp-excel/internal/spreadsheet"
	"github.com/sammcj/mcp-excel/internal/tools"
	"github.com/sirupsen/logrus"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// validator is implemented by argument structs that carry checks zog cannot express.
type validator interface {
	Validate() error
}

// decodeArgs parses args into dest with schema, then runs dest's own checks. Any failure
// is an input-shape error and is returned before a workbook is touched.
func decodeArgs(schema *z.StructSchema, args map[string]any, dest validator) error {
	if args == nil {
		args = map[string]any{}
	}
	if issues := schema.Parse(args, dest); len(issues) != 0 {
		return fmt.Errorf("invalid parameters: %s", describeIssues(issues))
	}
	if err := dest.Validate(); err != nil {
		return fmt.Errorf("invalid parameters: %w", err)
	}
	return nil
}

// describeIssues renders zog issues as "field: message" pairs in field order.
func describeIssues(issues z.ZogIssueMap) string {
	fields := make([]string, 0, len(issues))
	for field := range issues {
		if field == "$first" {
			continue
		}
		fields = append(fields, field)
	}
	sort.Strings(fields)

	var parts []string
	for _, field := range fields {
		for _, issue := range issues[field] {
			if field == "$root" || field == "" {
				parts = append(parts, issue.Message)
				continue
			}
			parts = append(parts, fmt.Sprintf("%s: %s", field, issue.Message))
		}
	}
	return strings.Join(parts, "; ")
}

// resolvePath applies EXCEL_FILES_PATH to relative workbook paths.
func resolvePath(path string) string {
	return config.Get().ResolveWorkbookPath(path)
}

// newResult returns m as structured content with an indented JSON text fallback.
func newResult(m map[string]any) (*mcp.CallToolResult, error) {
	text, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal result: %w", err)
	}
	return mcp.NewToolResultStructured(m, string(text)), nil
}

// respond flattens an operation result and logs failures at info level.
func respond(entry *logrus.Entry, result spreadsheet.Result) (*mcp.CallToolResult, error) {
	m := result.ToMap()
	if !result.Succeeded() {
		entry.WithField("message", m["message"]).Info("Spreadsheet operation failed")
	}
	return newResult(m)
}

// callLogger tags the call's log entry with the workbook it targets.
func callLogger(ctx context.Context, logger *logrus.Logger, toolName, path string) *logrus.Entry {
	return tools.CallLogger(ctx, logger, toolName).WithField("file_path", path)
}

var titleCaser = cases.Title(language.AmericanEnglish, cases.NoLower)

// toolTitle turns a tool name such as "format_font" into "Format Font".
func toolTitle(name string) string {
	return titleCaser.String(strings.ReplaceAll(name, "_", " "))
}

// readOnly marks a tool as a pure read of a local file.
func readOnly() []mcp.ToolOption {
	return []mcp.ToolOption{
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(false),
	}
}

// mutating marks a tool that writes to a local workbook.
func mutating(destructive, idempotent bool) []mcp.ToolOption {
	return []mcp.ToolOption{
		mcp.WithReadOnlyHintAnnotation(false),
		mcp.WithDestructiveHintAnnotation(destructive),
		mcp.WithIdempotentHintAnnotation(idempotent),
		mcp.WithOpenWorldHintAnnotation(false),
	}
}

// Workbook-level tools name their path argument file_path; the rest use workbook_path.
const (
	filePathParam     = "file_path"
	workbookPathParam = "workbook_path"
)

// newTool builds a definition with the shared title annotation and the workbook path parameter.
func newTool(name, pathParam, description string, hints []mcp.ToolOption, params ...mcp.ToolOption) mcp.Tool {
	opts := []mcp.ToolOption{
		mcp.WithDescription(description),
		mcp.WithTitleAnnotation(toolTitle(name)),
		mcp.WithString(pathParam,
			mcp.Required(),
			mcp.Description("Path to the .xlsx workbook. Relative paths resolve against EXCEL_FILES_PATH when it is set."),
		),
	}
	opts = append(opts, params...)
	opts = append(opts, hints...)
	return mcp.NewTool(name, opts...)
}

func sheetNameParam(description string) mcp.ToolOption {
	return mcp.WithString("sheet_name", mcp.Required(), mcp.Description(description))
}
