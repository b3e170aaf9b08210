package toolhelp

import (
	"context"
	"encoding/json"
	"io"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/sammcj/mcp-excel/internal/registry"
	"github.com/sammcj/mcp-excel/internal/tools"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type plainTool struct{ name string }

func (p *plainTool) Definition() mcp.Tool {
	return mcp.NewTool(p.name, mcp.WithDescription("plain tool"), mcp.WithString("cell"))
}

func (p *plainTool) Execute(ctx context.Context, logger *logrus.Logger, args map[string]any) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText("ok"), nil
}

type documentedTool struct {
	plainTool
	help *tools.ExtendedHelp
}

func (d *documentedTool) ProvideExtendedInfo() *tools.ExtendedHelp {
	return d.help
}

func init() {
	registry.Register(&plainTool{name: "help_plain"})
	registry.Register(&documentedTool{
		plainTool: plainTool{name: "help_documented"},
		help: &tools.ExtendedHelp{
			WhenToUse: "When a range needs a border",
			Examples: []tools.ToolExample{{
				Description: "Outline a header row",
				Arguments:   map[string]any{"cell": "A1"},
			}},
		},
	})
	registry.Register(&documentedTool{plainTool: plainTool{name: "help_empty"}})
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func execute(t *testing.T, args map[string]any) (*ToolHelpResponse, error) {
	t.Helper()
	result, err := (&ToolHelpTool{}).Execute(context.Background(), quietLogger(), args)
	if err != nil {
		return nil, err
	}
	require.Len(t, result.Content, 1)
	text, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok)

	var response ToolHelpResponse
	require.NoError(t, json.Unmarshal([]byte(text.Text), &response))
	return &response, nil
}

func TestDefinition_ListsDocumentedTools(t *testing.T) {
	def := (&ToolHelpTool{}).Definition()

	assert.Equal(t, toolName, def.Name)
	assert.Equal(t, "Get Tool Help", def.Annotations.Title)
	prop, ok := def.InputSchema.Properties["tool_name"].(map[string]any)
	require.True(t, ok)
	assert.ElementsMatch(t, []string{"help_documented", "help_empty"}, prop["enum"])
}

func TestExecute_ReturnsExtendedHelp(t *testing.T) {
	response, err := execute(t, map[string]any{"tool_name": "help_documented"})
	require.NoError(t, err)

	assert.Equal(t, "help_documented", response.ToolName)
	assert.True(t, response.HasExtendedInfo)
	require.NotNil(t, response.ExtendedInfo)
	assert.Equal(t, "When a range needs a border", response.ExtendedInfo.WhenToUse)
	require.Len(t, response.ExtendedInfo.Examples, 1)
	assert.Equal(t, "help_documented", response.BasicInfo["name"])
	assert.Contains(t, response.BasicInfo, "input_schema")
}

func TestExecute_EmptyExtendedHelp(t *testing.T) {
	response, err := execute(t, map[string]any{"tool_name": "help_empty"})
	require.NoError(t, err)

	assert.False(t, response.HasExtendedInfo)
	assert.Contains(t, response.Message, "returned no extended information")
}

func TestExecute_Errors(t *testing.T) {
	_, err := execute(t, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tool_name")

	_, err = execute(t, map[string]any{"tool_name": "help_plain"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not provide extended help")

	_, err = execute(t, map[string]any{"tool_name": "help_documentd"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found or disabled")
	assert.Contains(t, err.Error(), "Did you mean 'help_documented'?")
}

func TestSuggestion(t *testing.T) {
	assert.Equal(t, " Did you mean 'format_border'?", Suggestion("frmt_border", []string{"format_border", "read_cell"}))
	assert.Empty(t, Suggestion("zzz", []string{"read_cell"}))
}
