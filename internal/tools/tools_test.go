package tools

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func readEntries(t *testing.T, path string) []ToolErrorLogEntry {
	t.Helper()

	file, err := os.Open(path)
	require.NoError(t, err)
	defer file.Close()

	var entries []ToolErrorLogEntry
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		var entry ToolErrorLogEntry
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &entry))
		entries = append(entries, entry)
	}
	require.NoError(t, scanner.Err())
	return entries
}

func TestIsToolEnabled(t *testing.T) {
	tests := []struct {
		name     string
		env      string
		tool     string
		expected bool
	}{
		{name: "unset", env: "", tool: "save_workbook", expected: false},
		{name: "exact", env: "save_workbook", tool: "save_workbook", expected: true},
		{name: "hyphenated and spaced", env: " other , Save-Workbook ", tool: "save_workbook", expected: true},
		{name: "all", env: "ALL", tool: "save_workbook", expected: true},
		{name: "different tool", env: "read_cell", tool: "save_workbook", expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("ENABLE_ADDITIONAL_TOOLS", tt.env)
			assert.Equal(t, tt.expected, IsToolEnabled(tt.tool))
		})
	}
}

func TestCallID(t *testing.T) {
	assert.Empty(t, CallID(context.Background()))

	ctx, id := WithCallID(context.Background())
	assert.Equal(t, id, CallID(ctx))
	_, err := uuid.Parse(id)
	assert.NoError(t, err)

	_, other := WithCallID(context.Background())
	assert.NotEqual(t, id, other)
}

func TestToolErrorLogger_Disabled(t *testing.T) {
	dir := t.TempDir()
	l, err := NewToolErrorLogger(quietLogger(), dir, false)
	require.NoError(t, err)

	assert.False(t, l.IsEnabled())
	l.LogToolError(context.Background(), "read_cell", nil, errors.New("boom"), "stdio")
	assert.NoFileExists(t, filepath.Join(dir, ErrorLogFileName))
	assert.NoError(t, l.Close())
}

func TestToolErrorLogger_WritesEntries(t *testing.T) {
	dir := t.TempDir()
	l, err := NewToolErrorLogger(quietLogger(), dir, true)
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })

	ctx, id := WithCallID(context.Background())
	args := map[string]any{"cell": "A0"}
	l.LogToolError(ctx, "read_cell", args, errors.New("invalid parameters: cell"), "http")
	l.LogToolFailure(ctx, "delete_sheet", nil, "Cannot delete the last sheet in the workbook", "http")

	entries := readEntries(t, l.GetLogFilePath())
	require.Len(t, entries, 2)

	assert.Equal(t, id, entries[0].CallID)
	assert.Equal(t, KindRejected, entries[0].Kind)
	assert.Equal(t, "read_cell", entries[0].ToolName)
	assert.Equal(t, "A0", entries[0].Arguments["cell"])
	assert.Equal(t, "http", entries[0].Transport)

	assert.Equal(t, KindFailed, entries[1].Kind)
	assert.Equal(t, "Cannot delete the last sheet in the workbook", entries[1].Error)

	info, err := os.Stat(l.GetLogFilePath())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestToolErrorLogger_Rotation(t *testing.T) {
	dir := t.TempDir()
	old := ToolErrorLogEntry{Timestamp: time.Now().AddDate(0, 0, -90).Format(time.RFC3339), ToolName: "old", Kind: KindFailed}
	recent := ToolErrorLogEntry{Timestamp: time.Now().Add(-time.Hour).Format(time.RFC3339), ToolName: "recent", Kind: KindFailed}

	var lines []string
	for _, entry := range []ToolErrorLogEntry{old, recent} {
		data, err := json.Marshal(entry)
		require.NoError(t, err)
		lines = append(lines, string(data))
	}
	lines = append(lines, "not json")
	require.NoError(t, os.WriteFile(filepath.Join(dir, ErrorLogFileName), []byte(strings.Join(lines, "\n")+"\n"), 0600))

	l, err := NewToolErrorLogger(quietLogger(), dir, true)
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })

	require.NoError(t, l.rotateOldLogs())

	content, err := os.ReadFile(l.GetLogFilePath())
	require.NoError(t, err)
	assert.NotContains(t, string(content), `"old"`)
	assert.Contains(t, string(content), `"recent"`)
	assert.Contains(t, string(content), "not json")

	l.LogToolFailure(context.Background(), "after", nil, "still writable", "stdio")
	content, err = os.ReadFile(l.GetLogFilePath())
	require.NoError(t, err)
	assert.Contains(t, string(content), "still writable")
}

func TestWithRecovery(t *testing.T) {
	handler := WithRecovery(quietLogger(), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		panic("exploded")
	})

	result, err := handler(context.Background(), mcp.CallToolRequest{})
	assert.Nil(t, result)
	require.Error(t, err)
	assert.Equal(t, "internal error: exploded", err.Error())

	passthrough := WithRecovery(quietLogger(), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return mcp.NewToolResultText("ok"), nil
	})
	result, err = passthrough(context.Background(), mcp.CallToolRequest{})
	require.NoError(t, err)
	require.NotNil(t, result)
}
