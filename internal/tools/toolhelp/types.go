package toolhelp

import "github.com/sammcj/mcp-excel/internal/tools"

// ToolHelpRequest represents the input parameters for the get_tool_help tool
type ToolHelpRequest struct {
	ToolName string `zog:"tool_name"`
}

// ToolHelpResponse represents the output of the get_tool_help tool
type ToolHelpResponse struct {
	ToolName        string              `json:"tool_name"`
	BasicInfo       map[string]any      `json:"basic_info"`
	ExtendedInfo    *tools.ExtendedHelp `json:"extended_info,omitempty"`
	HasExtendedInfo bool                `json:"has_extended_info"`
	Message         string              `json:"message,omitempty"`
}
