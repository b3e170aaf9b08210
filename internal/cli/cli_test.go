package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/sammcj/mcp-excel/internal/registry"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// echoTool returns its arguments as structured content, and fails when asked to.
type echoTool struct {
	lastArgs map[string]any
}

func (e *echoTool) Definition() mcp.Tool {
	tool := mcp.NewTool("cli_echo_cells",
		mcp.WithDescription("Echo the arguments back\nSecond line is not listed"),
		mcp.WithString("sheet_name", mcp.Required(), mcp.Description("Sheet to echo")),
		mcp.WithString("fill_type", mcp.Enum("solid", "pattern")),
		mcp.WithNumber("font_size"),
		mcp.WithBoolean("bold"),
		mcp.WithBoolean("fail"),
		mcp.WithArray("sides", mcp.Items(map[string]any{"type": "string"})),
	)
	tool.InputSchema.Properties["value"] = map[string]any{
		"type": []string{"string", "number", "boolean", "null"},
	}
	return tool
}

func (e *echoTool) Execute(ctx context.Context, logger *logrus.Logger, args map[string]any) (*mcp.CallToolResult, error) {
	e.lastArgs = args
	result := map[string]any{"success": args["fail"] != true, "message": "echoed", "sheet_name": args["sheet_name"]}
	return mcp.NewToolResultStructured(result, "echoed"), nil
}

var echo = &echoTool{}

func init() {
	registry.Register(echo)
	color.NoColor = true
}

func newTestRunner(output OutputFormat) (*Runner, *bytes.Buffer) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	buf := &bytes.Buffer{}
	r := NewRunner(logger, output)
	r.stdout = buf
	return r, buf
}

func TestParseArgs(t *testing.T) {
	def := echo.Definition()

	params, err := parseArgs([]string{
		"--sheet-name", "Data",
		"--font-size=12",
		"--bold",
		"--sides=top,bottom",
		"--value=42",
	}, def)
	require.NoError(t, err)

	assert.Equal(t, "Data", params["sheet_name"])
	assert.Equal(t, float64(12), params["font_size"])
	assert.Equal(t, true, params["bold"])
	assert.Equal(t, []string{"top", "bottom"}, params["sides"])
	assert.Equal(t, float64(42), params["value"])
}

func TestParseArgs_JSONDoesNotOverrideFlags(t *testing.T) {
	params, err := parseArgs([]string{"--sheet-name=Flag", `{"sheet_name":"Json","font_size":9}`}, echo.Definition())
	require.NoError(t, err)

	assert.Equal(t, "Flag", params["sheet_name"])
	assert.Equal(t, float64(9), params["font_size"])
}

func TestParseArgs_Errors(t *testing.T) {
	def := echo.Definition()

	_, err := parseArgs([]string{"--sheet-name"}, def)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "requires a value")

	_, err = parseArgs([]string{"Data"}, def)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected argument")

	_, err = parseArgs([]string{"{not json"}, def)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid JSON argument")
}

func TestCoerceValue(t *testing.T) {
	tests := []struct {
		raw, schemaType string
		want            any
	}{
		{"7", "integer", float64(7)},
		{"2.5", "number", 2.5},
		{"abc", "number", "abc"},
		{"yes", "boolean", true},
		{"0", "boolean", false},
		{"maybe", "boolean", "maybe"},
		{`["a","b"]`, "array", []any{"a", "b"}},
		{"true", "any", true},
		{"null", "any", nil},
		{"hello", "any", "hello"},
		{`"007"`, "any", "007"},
		{`[1]`, "any", "[1]"},
		{`{"a":1}`, "object", map[string]any{"a": float64(1)}},
		{"plain", "string", "plain"},
	}
	for _, tt := range tests {
		t.Run(tt.schemaType+"/"+tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.want, coerceValue(tt.raw, tt.schemaType))
		})
	}
}

func TestToFlagName(t *testing.T) {
	assert.Equal(t, "sheet-name", toFlagName("sheet_name"))
	assert.Equal(t, "range-ref", toFlagName("rangeRef"))
	assert.Equal(t, "cell", toFlagName("cell"))
}

func TestListTools(t *testing.T) {
	r, buf := newTestRunner(OutputText)
	require.NoError(t, r.ListTools())

	assert.Contains(t, buf.String(), "cli_echo_cells")
	assert.Contains(t, buf.String(), "Echo the arguments back")
	assert.NotContains(t, buf.String(), "Second line")
}

func TestListTools_JSON(t *testing.T) {
	r, buf := newTestRunner(OutputJSON)
	require.NoError(t, r.ListTools())

	var listed []map[string]string
	require.NoError(t, json.Unmarshal(buf.Bytes(), &listed))
	names := make([]string, 0, len(listed))
	for _, entry := range listed {
		names = append(names, entry["name"])
	}
	assert.Contains(t, names, "cli_echo_cells")
}

func TestHelpTool(t *testing.T) {
	r, buf := newTestRunner(OutputText)
	require.NoError(t, r.HelpTool("cli-echo-cells"))

	out := buf.String()
	assert.Contains(t, out, "Tool: cli_echo_cells")
	assert.Contains(t, out, "--sheet-name")
	assert.Contains(t, out, "(required)")
	assert.Contains(t, out, "[solid|pattern]")
}

func TestHelpTool_UnknownSuggests(t *testing.T) {
	r, _ := newTestRunner(OutputText)
	err := r.HelpTool("cli-echo-cell")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown tool: cli-echo-cell")
	assert.Contains(t, err.Error(), "did you mean 'cli_echo_cells'")
}

func TestRunTool(t *testing.T) {
	r, buf := newTestRunner(OutputText)
	require.NoError(t, r.RunTool(context.Background(), "cli-echo-cells", []string{"--sheet-name=Data"}))

	assert.Equal(t, "Data", echo.lastArgs["sheet_name"])
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "echoed", lines[0])
	assert.Equal(t, "sheet_name:  Data", lines[1])
}

func TestRunTool_JSONWritesStructuredPayload(t *testing.T) {
	r, buf := newTestRunner(OutputJSON)
	require.NoError(t, r.RunTool(context.Background(), "cli_echo_cells", []string{"--sheet-name=Data"}))

	var payload map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &payload))
	assert.Equal(t, map[string]any{"success": true, "message": "echoed", "sheet_name": "Data"}, payload)
}

func TestRunTool_FailureIsAnError(t *testing.T) {
	r, buf := newTestRunner(OutputJSON)
	err := r.RunTool(context.Background(), "cli_echo_cells", []string{"--sheet-name=Data", "--fail"})
	require.Error(t, err)
	assert.Equal(t, "operation failed", err.Error())
	assert.Contains(t, buf.String(), `"success": false`)
}

func TestRunTool_Unknown(t *testing.T) {
	r, _ := newTestRunner(OutputText)
	err := r.RunTool(context.Background(), "no_such_tool_anywhere", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "run 'mcp-excel cli list'")
}
