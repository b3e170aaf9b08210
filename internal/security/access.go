package security

import (
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

var (
	globalEngine      *PolicyEngine
	globalEngineMutex sync.RWMutex
)

// InitGlobalPolicy loads the access policy used by CheckFileAccess. Calling it again
// replaces the previous engine.
func InitGlobalPolicy(policyPath string, logger *logrus.Logger) error {
	engine, err := NewPolicyEngine(policyPath, logger)
	if err != nil {
		return err
	}

	globalEngineMutex.Lock()
	previous := globalEngine
	globalEngine = engine
	globalEngineMutex.Unlock()

	if previous != nil {
		_ = previous.Close()
	}
	return nil
}

// CheckFileAccess checks path against the global policy. Without a policy every path is allowed.
func CheckFileAccess(path string) error {
	globalEngineMutex.RLock()
	engine := globalEngine
	globalEngineMutex.RUnlock()

	if engine == nil {
		return nil
	}
	return engine.CheckFileAccess(path)
}

// Shutdown stops the global policy watcher
func Shutdown() {
	globalEngineMutex.Lock()
	engine := globalEngine
	globalEngine = nil
	globalEngineMutex.Unlock()

	if engine != nil {
		_ = engine.Close()
	}
}

// expandHomePath expands ~ to the user's home directory
func expandHomePath(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}

// pathMatches reports whether path is pattern, lies beneath pattern, or matches pattern as a
// glob against the full path or the base name.
func pathMatches(path, pattern string) bool {
	if path == pattern || strings.HasPrefix(path, pattern+string(filepath.Separator)) {
		return true
	}

	if matched, _ := filepath.Match(pattern, path); matched {
		return true
	}

	if !strings.Contains(pattern, string(filepath.Separator)) {
		if matched, _ := filepath.Match(pattern, filepath.Base(path)); matched {
			return true
		}
	}

	return false
}

func underAnyRoot(path string, roots []string) bool {
	for _, root := range roots {
		if path == root || strings.HasPrefix(path, root+string(filepath.Separator)) {
			return true
		}
	}
	return false
}
