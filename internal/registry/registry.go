package registry

import (
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/sahilm/fuzzy"
	"github.com/sammcj/mcp-excel/internal/tools"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

var (
	// toolRegistry is a map of tool names to tool implementations
	toolRegistry = make(map[string]tools.Tool)

	// disabledTools is a set of tool names to disable
	disabledTools = make(map[string]bool)

	// logger is the shared logger instance
	logger *logrus.Logger

	// limiter throttles tool calls when TOOL_RATE_LIMIT is set
	limiter *rate.Limiter

	mu sync.RWMutex
)

// additionalTools must be named in ENABLE_ADDITIONAL_TOOLS before they are served.
var additionalTools = []string{
	"save_workbook",
}

// Init initialises the registry and shared resources. callsPerSecond <= 0 disables the limiter.
func Init(l *logrus.Logger, callsPerSecond float64) {
	mu.Lock()
	defer mu.Unlock()

	logger = l
	limiter = nil
	if callsPerSecond > 0 {
		burst := max(int(callsPerSecond), 1)
		limiter = rate.NewLimiter(rate.Limit(callsPerSecond), burst)
		if l != nil {
			l.WithFields(logrus.Fields{"rate": callsPerSecond, "burst": burst}).Debug("Tool call rate limit enabled")
		}
	}

	parseDisabledTools()
}

// parseDisabledTools parses the DISABLED_TOOLS environment variable. Caller must hold mu.
func parseDisabledTools() {
	disabledTools = make(map[string]bool)

	for tool := range strings.SplitSeq(os.Getenv("DISABLED_TOOLS"), ",") {
		tool = strings.TrimSpace(tool)
		if tool == "" {
			continue
		}
		disabledTools[tool] = true
		if logger != nil {
			logger.WithField("tool", tool).Debug("Tool disabled")
		}
	}

	if logger != nil && len(disabledTools) > 0 {
		logger.WithField("count", len(disabledTools)).Debug("Parsed disabled tools from environment")
	}
}

// requiresEnablement checks if a tool requires enablement via ENABLE_ADDITIONAL_TOOLS.
func requiresEnablement(toolName string) bool {
	normalisedToolName := strings.ToLower(strings.ReplaceAll(toolName, "_", "-"))
	for _, tool := range additionalTools {
		if normalisedToolName == strings.ToLower(strings.ReplaceAll(tool, "_", "-")) {
			return true
		}
	}
	return false
}

// ShouldRegisterTool reports whether a tool is served:
// 1. DISABLED_TOOLS - explicit disable, highest priority
// 2. Tool's enablement requirement
// 3. ENABLE_ADDITIONAL_TOOLS (explicit enable)
func ShouldRegisterTool(toolName string) bool {
	mu.RLock()
	defer mu.RUnlock()
	return available(toolName)
}

// available is ShouldRegisterTool without locking. Caller must hold mu.
func available(toolName string) bool {
	if disabledTools[toolName] {
		return false
	}
	if requiresEnablement(toolName) {
		return tools.IsToolEnabled(toolName)
	}
	return true
}

// Register adds a tool implementation to the registry. Tools are registered from init(),
// before the environment is fully loaded, so enablement is decided when tools are listed.
func Register(tool tools.Tool) {
	// Definition may query the registry, so it runs before the lock is taken
	toolName := tool.Definition().Name

	mu.Lock()
	defer mu.Unlock()

	toolRegistry[toolName] = tool
	if logger != nil {
		logger.WithField("tool", toolName).Debug("Tool registered")
	}
}

// GetTool retrieves a tool by name, returns false if disabled or not enabled
func GetTool(name string) (tools.Tool, bool) {
	mu.RLock()
	defer mu.RUnlock()

	if !available(name) {
		return nil, false
	}
	tool, ok := toolRegistry[name]
	return tool, ok
}

// GetEnabledTools returns all tools that are enabled for MCP server registration
func GetEnabledTools() map[string]tools.Tool {
	mu.RLock()
	defer mu.RUnlock()

	filteredTools := make(map[string]tools.Tool)
	for name, tool := range toolRegistry {
		if available(name) {
			filteredTools[name] = tool
		}
	}
	return filteredTools
}

// GetLogger returns the shared logger instance
func GetLogger() *logrus.Logger {
	mu.RLock()
	defer mu.RUnlock()

	if logger == nil {
		return logrus.StandardLogger()
	}
	return logger
}

// GetEnabledToolNames returns a sorted list of enabled tool names
func GetEnabledToolNames() []string {
	mu.RLock()
	defer mu.RUnlock()

	var names []string
	for name := range toolRegistry {
		if available(name) {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// GetToolNamesWithExtendedHelp returns a sorted list of enabled tool names that provide extended help
func GetToolNamesWithExtendedHelp() []string {
	mu.RLock()
	defer mu.RUnlock()

	var names []string
	for name, tool := range toolRegistry {
		if !available(name) {
			continue
		}
		if _, ok := tool.(tools.ExtendedHelpProvider); ok {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// SuggestToolName returns the enabled tool name that best fuzzy-matches name, or "".
func SuggestToolName(name string) string {
	matches := fuzzy.Find(name, GetEnabledToolNames())
	if len(matches) == 0 {
		return ""
	}
	return matches[0].Str
}
