package tools

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	// DefaultLogRetentionDays is the default number of days to retain error logs
	DefaultLogRetentionDays = 60

	// ErrorLogFileName is the name of the tool error log inside the log directory
	ErrorLogFileName = "tool-errors.log"
)

// Entry kinds. A rejected call returned a Go error; a failed call returned success=false.
const (
	KindRejected = "rejected"
	KindFailed   = "failed"
)

// ToolErrorLogEntry represents a logged tool error
type ToolErrorLogEntry struct {
	Timestamp string         `json:"timestamp"`
	CallID    string         `json:"call_id,omitempty"`
	ToolName  string         `json:"tool_name"`
	Kind      string         `json:"kind"`
	Arguments map[string]any `json:"arguments,omitempty"`
	Error     string         `json:"error"`
	Transport string         `json:"transport,omitempty"`
}

// ToolErrorLogger appends rejected and failed tool calls to a JSON lines file
type ToolErrorLogger struct {
	enabled   bool
	logFile   *os.File
	logger    *logrus.Logger
	mu        sync.Mutex
	filePath  string
	retention time.Duration
}

var (
	globalErrorLogger *ToolErrorLogger
	errorLoggerOnce   sync.Once
)

// NewToolErrorLogger opens (creating if needed) the error log in logDir. A disabled
// logger is returned when enabled is false; its methods are no-ops.
func NewToolErrorLogger(logger *logrus.Logger, logDir string, enabled bool) (*ToolErrorLogger, error) {
	if !enabled {
		return &ToolErrorLogger{logger: logger}, nil
	}

	if err := os.MkdirAll(logDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	logFilePath := filepath.Join(logDir, ErrorLogFileName)
	logFile, err := os.OpenFile(logFilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to open tool error log file: %w", err)
	}

	return &ToolErrorLogger{
		enabled:   true,
		logFile:   logFile,
		logger:    logger,
		filePath:  logFilePath,
		retention: DefaultLogRetentionDays * 24 * time.Hour,
	}, nil
}

// InitGlobalErrorLogger initialises the process-wide error logger once. Old entries are
// pruned in the background.
func InitGlobalErrorLogger(logger *logrus.Logger, logDir string, enabled bool) error {
	var initErr error
	errorLoggerOnce.Do(func() {
		l, err := NewToolErrorLogger(logger, logDir, enabled)
		if err != nil {
			initErr = err
			return
		}
		globalErrorLogger = l

		if !l.enabled {
			return
		}

		go func() {
			if rotateErr := l.rotateOldLogs(); rotateErr != nil {
				logger.WithError(rotateErr).Warn("Failed to rotate old tool error logs")
			}
		}()

		logger.Infof("Tool error logging enabled: %s", l.filePath)
	})

	return initErr
}

// GetGlobalErrorLogger returns the global error logger instance
func GetGlobalErrorLogger() *ToolErrorLogger {
	if globalErrorLogger == nil {
		return &ToolErrorLogger{}
	}
	return globalErrorLogger
}

// LogToolError records a call whose arguments were rejected with a Go error.
func (l *ToolErrorLogger) LogToolError(ctx context.Context, toolName string, args map[string]any, err error, transport string) {
	l.write(ToolErrorLogEntry{
		CallID:    CallID(ctx),
		ToolName:  toolName,
		Kind:      KindRejected,
		Arguments: args,
		Error:     err.Error(),
		Transport: transport,
	})
}

// LogToolFailure records a call that completed with success=false.
func (l *ToolErrorLogger) LogToolFailure(ctx context.Context, toolName string, args map[string]any, message, transport string) {
	l.write(ToolErrorLogEntry{
		CallID:    CallID(ctx),
		ToolName:  toolName,
		Kind:      KindFailed,
		Arguments: args,
		Error:     message,
		Transport: transport,
	})
}

func (l *ToolErrorLogger) write(entry ToolErrorLogEntry) {
	if !l.enabled {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.logFile == nil {
		return
	}

	entry.Timestamp = time.Now().Format(time.RFC3339)

	jsonData, marshalErr := json.Marshal(entry)
	if marshalErr != nil {
		l.logError(marshalErr, "Failed to marshal tool error log entry")
		return
	}

	if _, writeErr := l.logFile.Write(append(jsonData, '\n')); writeErr != nil {
		l.logError(writeErr, "Failed to write tool error log entry")
		return
	}

	if syncErr := l.logFile.Sync(); syncErr != nil {
		l.logError(syncErr, "Failed to sync tool error log file")
	}
}

func (l *ToolErrorLogger) logError(err error, msg string) {
	if l.logger != nil {
		l.logger.WithError(err).Error(msg)
	}
}

// Close closes the error logger and its log file
func (l *ToolErrorLogger) Close() error {
	if !l.enabled {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.logFile == nil {
		return nil
	}
	err := l.logFile.Close()
	l.logFile = nil
	return err
}

// IsEnabled returns whether error logging is enabled
func (l *ToolErrorLogger) IsEnabled() bool {
	return l.enabled
}

// GetLogFilePath returns the path to the error log file
func (l *ToolErrorLogger) GetLogFilePath() string {
	return l.filePath
}

// rotateOldLogs drops entries older than the retention period. It holds the mutex
// for the whole rewrite so concurrent writes wait for the reopened file.
func (l *ToolErrorLogger) rotateOldLogs() error {
	if !l.enabled || l.filePath == "" {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.logFile != nil {
		if err := l.logFile.Close(); err != nil {
			return fmt.Errorf("failed to close log file for rotation: %w", err)
		}
		l.logFile = nil
	}

	file, err := os.Open(l.filePath)
	if err != nil {
		return l.reopenLogFileLocked()
	}

	var kept []string
	cutoffTime := time.Now().Add(-l.retention)

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		// Malformed lines and unparseable timestamps are kept
		var entry ToolErrorLogEntry
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			kept = append(kept, line)
			continue
		}
		entryTime, err := time.Parse(time.RFC3339, entry.Timestamp)
		if err != nil || entryTime.After(cutoffTime) {
			kept = append(kept, line)
		}
	}

	scanErr := scanner.Err()
	_ = file.Close()

	if scanErr != nil {
		_ = l.reopenLogFileLocked()
		return fmt.Errorf("error reading log file during rotation: %w", scanErr)
	}

	content := ""
	if len(kept) > 0 {
		content = strings.Join(kept, "\n") + "\n"
	}

	tmpPath := l.filePath + ".tmp"
	if err := os.WriteFile(tmpPath, []byte(content), 0600); err != nil {
		_ = l.reopenLogFileLocked()
		return fmt.Errorf("failed to write temporary rotated log file: %w", err)
	}

	if err := os.Rename(tmpPath, l.filePath); err != nil {
		_ = os.Remove(tmpPath)
		_ = l.reopenLogFileLocked()
		return fmt.Errorf("failed to rename temporary log file during rotation: %w", err)
	}

	return l.reopenLogFileLocked()
}

// reopenLogFileLocked reopens the log file in append mode.
// Caller must hold l.mu.
func (l *ToolErrorLogger) reopenLogFileLocked() error {
	logFile, err := os.OpenFile(l.filePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return fmt.Errorf("failed to reopen log file: %w", err)
	}

	l.logFile = logFile
	return nil
}
