package tools

import (
	"os"
	"strings"
)

// IsToolEnabled checks if a tool is enabled via the ENABLE_ADDITIONAL_TOOLS environment variable.
// The variable holds a comma-separated list of tool names, or "all". Names are
// case-insensitive and underscores match hyphens.
//
// Example: ENABLE_ADDITIONAL_TOOLS="save_workbook"
func IsToolEnabled(toolName string) bool {
	enabledTools := os.Getenv("ENABLE_ADDITIONAL_TOOLS")
	if enabledTools == "" {
		return false
	}

	if strings.EqualFold(strings.TrimSpace(enabledTools), "all") {
		return true
	}

	normalisedToolName := normaliseToolName(toolName)
	for tool := range strings.SplitSeq(enabledTools, ",") {
		if normaliseToolName(tool) == normalisedToolName {
			return true
		}
	}

	return false
}

func normaliseToolName(name string) string {
	return strings.ToLower(strings.ReplaceAll(strings.TrimSpace(name), "_", "-"))
}
