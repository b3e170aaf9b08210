package registry

import (
	"context"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/sammcj/mcp-excel/internal/tools"
)

// Invoke runs one tool call the same way for every transport: it waits on the rate
// limiter, tags the call with a fresh call id, and records rejected or failed calls in
// the tool error log.
func Invoke(ctx context.Context, name string, args map[string]any, transport string) (*mcp.CallToolResult, error) {
	tool, ok := GetTool(name)
	if !ok {
		return nil, fmt.Errorf("tool not found: %s", name)
	}

	mu.RLock()
	l := limiter
	mu.RUnlock()
	if l != nil {
		if err := l.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit wait cancelled: %w", err)
		}
	}

	ctx, _ = tools.WithCallID(ctx)
	log := GetLogger()
	entry := tools.CallLogger(ctx, log, name).WithField("transport", transport)
	entry.Debug("Tool call started")

	start := time.Now()
	result, err := tool.Execute(ctx, log, args)
	entry = entry.WithField("duration", time.Since(start))

	errorLogger := tools.GetGlobalErrorLogger()
	if err != nil {
		entry.WithError(err).Warn("Tool call rejected")
		errorLogger.LogToolError(ctx, name, args, err, transport)
		return nil, err
	}

	if message, failed := failureMessage(result); failed {
		entry.WithField("message", message).Info("Tool call returned success=false")
		errorLogger.LogToolFailure(ctx, name, args, message, transport)
	} else {
		entry.Debug("Tool call completed")
	}

	return result, nil
}

// failureMessage reports whether a result carries success=false, and its message.
func failureMessage(result *mcp.CallToolResult) (string, bool) {
	if result == nil {
		return "", false
	}
	structured, ok := result.StructuredContent.(map[string]any)
	if !ok {
		return "", false
	}
	if success, ok := structured["success"].(bool); !ok || success {
		return "", false
	}
	for _, key := range []string{"message", "error"} {
		if message, ok := structured[key].(string); ok && message != "" {
			return message, true
		}
	}
	return "operation failed", true
}
