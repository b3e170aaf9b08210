package toolhelp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	z "github.com/Oudwins/zog"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/sahilm/fuzzy"
	"github.com/sammcj/mcp-excel/internal/registry"
	"github.com/sammcj/mcp-excel/internal/tools"
	"github.com/sirupsen/logrus"
)

const toolName = "get_tool_help"

// ToolHelpTool serves the extended usage notes that spreadsheet tools provide
type ToolHelpTool struct{}

func init() {
	registry.Register(&ToolHelpTool{})
}

var requestSchema = z.Struct(z.Shape{
	"toolName": z.String().Required(),
})

// Definition returns the tool's definition for MCP registration
func (t *ToolHelpTool) Definition() mcp.Tool {
	toolsWithExtendedHelp := registry.GetToolNamesWithExtendedHelp()

	description := "No tools currently provide extended help information."
	if len(toolsWithExtendedHelp) > 0 {
		description = "Get examples, parameter notes and troubleshooting for a spreadsheet tool. Use it when a tool returns an unexpected error or message."
	}

	return mcp.NewTool(
		toolName,
		mcp.WithDescription(description),
		mcp.WithTitleAnnotation("Get Tool Help"),
		mcp.WithString("tool_name",
			mcp.Required(),
			mcp.Description("Name of the tool to get help for"),
			mcp.Enum(toolsWithExtendedHelp...),
		),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(false),
	)
}

// Execute executes the get_tool_help tool
func (t *ToolHelpTool) Execute(ctx context.Context, logger *logrus.Logger, args map[string]any) (*mcp.CallToolResult, error) {
	var req ToolHelpRequest
	if args == nil {
		args = map[string]any{}
	}
	if issues := requestSchema.Parse(args, &req); len(issues) != 0 {
		return nil, fmt.Errorf("invalid parameters: missing or invalid required parameter: tool_name")
	}

	available := registry.GetToolNamesWithExtendedHelp()
	tool, exists := registry.GetTool(req.ToolName)
	if !exists {
		return nil, fmt.Errorf("tool '%s' not found or disabled.%s Tools with extended help: %s",
			req.ToolName, Suggestion(req.ToolName, available), strings.Join(available, ", "))
	}

	extendedProvider, ok := tool.(tools.ExtendedHelpProvider)
	if !ok {
		return nil, fmt.Errorf("tool '%s' does not provide extended help. Tools with extended help: %s", req.ToolName, strings.Join(available, ", "))
	}

	tools.CallLogger(ctx, logger, toolName).WithField("target", req.ToolName).Debug("Serving extended help")

	response := &ToolHelpResponse{
		ToolName:        req.ToolName,
		BasicInfo:       basicInfo(tool),
		ExtendedInfo:    extendedProvider.ProvideExtendedInfo(),
		HasExtendedInfo: true,
	}
	if response.ExtendedInfo == nil {
		response.HasExtendedInfo = false
		response.Message = fmt.Sprintf("Tool '%s' implements ExtendedHelpProvider but returned no extended information", req.ToolName)
	}

	responseJSON, err := json.MarshalIndent(response, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal response: %w", err)
	}
	return mcp.NewToolResultText(string(responseJSON)), nil
}

// basicInfo extracts the name, description and input schema from a tool's definition
func basicInfo(tool tools.Tool) map[string]any {
	definition := tool.Definition()

	info := map[string]any{
		"name":        definition.Name,
		"description": definition.Description,
	}
	if definition.InputSchema.Type != "" {
		info["input_schema"] = definition.InputSchema
	}
	return info
}

// Suggestion returns " Did you mean 'x'?" for the closest fuzzy match among candidates, or "".
func Suggestion(name string, candidates []string) string {
	matches := fuzzy.Find(name, candidates)
	if len(matches) == 0 {
		return ""
	}
	return fmt.Sprintf(" Did you mean '%s'?", matches[0].Str)
}
