package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/joho/godotenv"
)

const (
	// DefaultMemoryLimit is the default memory limit for the Go application (1GB)
	DefaultMemoryLimit int64 = 1 * 1024 * 1024 * 1024

	// DefaultLogLevel is used when LOG_LEVEL is unset or unrecognised
	DefaultLogLevel = "warn"

	dataDirName      = ".mcp-excel"
	accessConfigName = "access.yaml"
	envFileName      = ".env"
)

// Settings is the process configuration resolved from the environment
type Settings struct {
	// FilesPath is the base directory relative workbook paths resolve against. Empty means
	// relative paths resolve against the working directory.
	FilesPath string

	LogLevel string

	// DataDir holds logs, the access policy and the optional .env file
	DataDir string

	// RateLimit caps tool calls per second across the server. Zero disables the limit.
	RateLimit float64

	AccessConfigPath string
	MemoryLimit      int64
	LogToolErrors    bool
}

// LogDir returns the directory for the server log and the tool error log.
func (s Settings) LogDir() string {
	return filepath.Join(s.DataDir, "logs")
}

// ResolveWorkbookPath joins a relative path onto FilesPath. Absolute paths, paths with a
// ".." segment, and all paths when FilesPath is unset are returned unchanged.
func (s Settings) ResolveWorkbookPath(path string) string {
	if s.FilesPath == "" || path == "" || filepath.IsAbs(path) {
		return path
	}
	for _, segment := range strings.FieldsFunc(path, isPathSeparator) {
		if segment == ".." {
			return path
		}
	}
	return filepath.Join(s.FilesPath, path)
}

func isPathSeparator(r rune) bool {
	return r == '/' || r == filepath.Separator
}

var (
	global     Settings
	globalOnce sync.Once
	globalMu   sync.RWMutex
)

// Get returns the settings loaded on first use. Load errors fall back to defaults.
func Get() Settings {
	globalOnce.Do(func() {
		s, err := Load()
		if err != nil {
			s = defaults()
		}
		globalMu.Lock()
		global = s
		globalMu.Unlock()
	})

	globalMu.RLock()
	defer globalMu.RUnlock()
	return global
}

// Set replaces the process-wide settings. main calls it after Load so tools see the same values.
func Set(s Settings) {
	globalOnce.Do(func() {})
	globalMu.Lock()
	global = s
	globalMu.Unlock()
}

// Load reads .env from the working directory and then from the data directory, and
// resolves Settings from the environment. Variables already set are never overridden.
func Load() (Settings, error) {
	loadEnvFile(envFileName)

	dataDir, err := dataDirFromEnv()
	if err != nil {
		return Settings{}, err
	}
	loadEnvFile(filepath.Join(dataDir, envFileName))

	s := defaults()
	s.DataDir = dataDir
	s.AccessConfigPath = filepath.Join(dataDir, accessConfigName)

	if v := strings.TrimSpace(os.Getenv("EXCEL_FILES_PATH")); v != "" {
		abs, err := filepath.Abs(expandHome(v))
		if err != nil {
			return Settings{}, fmt.Errorf("invalid EXCEL_FILES_PATH: %w", err)
		}
		s.FilesPath = abs
	}

	if v := strings.ToLower(strings.TrimSpace(os.Getenv("LOG_LEVEL"))); v != "" {
		s.LogLevel = v
	}

	if v := strings.TrimSpace(os.Getenv("TOOL_RATE_LIMIT")); v != "" {
		rate, err := strconv.ParseFloat(v, 64)
		if err != nil || rate < 0 {
			return Settings{}, fmt.Errorf("invalid TOOL_RATE_LIMIT %q: must be a non-negative number", v)
		}
		s.RateLimit = rate
	}

	if v := strings.TrimSpace(os.Getenv("EXCEL_ACCESS_CONFIG")); v != "" {
		s.AccessConfigPath = expandHome(v)
	}

	if v := strings.TrimSpace(os.Getenv("MCP_EXCEL_MEMORY_LIMIT")); v != "" {
		if parsed, err := strconv.ParseInt(v, 10, 64); err == nil && parsed > 0 {
			s.MemoryLimit = parsed
		}
	}

	s.LogToolErrors = os.Getenv("LOG_TOOL_ERRORS") == "true"

	return s, nil
}

func defaults() Settings {
	home, _ := os.UserHomeDir()
	dataDir := filepath.Join(home, dataDirName)
	return Settings{
		LogLevel:         DefaultLogLevel,
		DataDir:          dataDir,
		AccessConfigPath: filepath.Join(dataDir, accessConfigName),
		MemoryLimit:      DefaultMemoryLimit,
	}
}

func dataDirFromEnv() (string, error) {
	if v := strings.TrimSpace(os.Getenv("MCP_EXCEL_HOME")); v != "" {
		return expandHome(v), nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, dataDirName), nil
}

// loadEnvFile loads a dotenv file if it exists. A missing file is not an error.
func loadEnvFile(path string) {
	if _, err := os.Stat(path); err != nil {
		return
	}
	_ = godotenv.Load(path)
}

func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}
