package main

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"runtime/debug"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
	excelcli "github.com/sammcj/mcp-excel/internal/cli"
	"github.com/sammcj/mcp-excel/internal/config"
	"github.com/sammcj/mcp-excel/internal/registry"
	"github.com/sammcj/mcp-excel/internal/security"
	"github.com/sammcj/mcp-excel/internal/tools"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v3"

	// Import all tool packages to register them
	_ "github.com/sammcj/mcp-excel/internal/imports"
)

// Version information (set during build)
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

// Global resources that need cleanup
var (
	serverLogFile atomic.Pointer[os.File]
	isStdioMode   atomic.Bool
)

const logFileName = "mcp-excel.log"

// parseLogLevel maps a LOG_LEVEL value to a logrus level, defaulting to warn.
func parseLogLevel(level string) logrus.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return logrus.DebugLevel
	case "info":
		return logrus.InfoLevel
	case "warn", "warning":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	case "fatal":
		return logrus.FatalLevel
	case "panic":
		return logrus.PanicLevel
	default:
		return logrus.WarnLevel
	}
}

// setMemoryLimit configures the Go runtime soft memory limit
func setMemoryLimit(limit int64) {
	if limit <= 0 {
		limit = config.DefaultMemoryLimit
	}
	debug.SetMemoryLimit(limit)
}

func main() {
	settings, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "mcp-excel: %v\n", err)
		os.Exit(1)
	}
	config.Set(settings)
	setMemoryLimit(settings.MemoryLimit)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Output is discarded until the transport is known
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	logger.SetLevel(parseLogLevel(settings.LogLevel))
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	registry.Init(logger, settings.RateLimit)

	defer performCleanup(logger)

	var cliOutput string

	app := &cli.Command{
		Name:    "mcp-excel",
		Usage:   "MCP server for reading, writing and formatting Excel workbooks",
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "transport",
				Aliases: []string{"t"},
				Value:   "stdio",
				Usage:   "Transport type (stdio, sse, or http)",
				Sources: cli.EnvVars("MCP_EXCEL_TRANSPORT"),
			},
			&cli.StringFlag{
				Name:    "port",
				Value:   "18080",
				Usage:   "Port to use for HTTP transports (SSE and Streamable HTTP)",
				Sources: cli.EnvVars("MCP_EXCEL_PORT"),
			},
			&cli.StringFlag{
				Name:    "base-url",
				Value:   "http://localhost",
				Usage:   "Base URL for HTTP transports",
				Sources: cli.EnvVars("MCP_EXCEL_BASE_URL"),
			},
			&cli.StringFlag{
				Name:    "auth-token",
				Usage:   "Bearer token required by the Streamable HTTP transport (optional)",
				Sources: cli.EnvVars("MCP_EXCEL_AUTH_TOKEN"),
			},
			&cli.StringFlag{
				Name:    "endpoint-path",
				Value:   "/http",
				Usage:   "Endpoint path for Streamable HTTP transport",
				Sources: cli.EnvVars("MCP_EXCEL_ENDPOINT_PATH"),
			},
			&cli.DurationFlag{
				Name:    "session-timeout",
				Value:   30 * time.Minute,
				Usage:   "Idle session timeout for Streamable HTTP transport",
				Sources: cli.EnvVars("MCP_EXCEL_SESSION_TIMEOUT"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "version",
				Usage: "Print version information",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					fmt.Printf("mcp-excel version %s\n", Version)
					fmt.Printf("Commit: %s\n", Commit)
					fmt.Printf("Built: %s\n", BuildDate)
					return nil
				},
			},
			{
				Name:  "access-config-validate",
				Usage: "Validate the workbook access policy file",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "config-path",
						Usage: "Path to the access policy (default: EXCEL_ACCESS_CONFIG or ~/.mcp-excel/access.yaml)",
					},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					configPath := cmd.String("config-path")
					if configPath == "" {
						configPath = settings.AccessConfigPath
					}
					return validateAccessConfig(os.Stdout, configPath)
				},
			},
			{
				Name:  "cli",
				Usage: "Call tools directly without starting a server",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:        "output",
						Aliases:     []string{"o"},
						Value:       string(excelcli.OutputText),
						Usage:       "Output format (text or json)",
						Destination: &cliOutput,
					},
				},
				Before: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
					initRuntime(logger, settings, "cli")
					return ctx, nil
				},
				Commands: []*cli.Command{
					{
						Name:  "list",
						Usage: "List enabled tools",
						Action: func(ctx context.Context, cmd *cli.Command) error {
							return newRunner(logger, cliOutput).ListTools()
						},
					},
					{
						Name:      "help",
						Usage:     "Show a tool's parameters",
						ArgsUsage: "<tool>",
						Action: func(ctx context.Context, cmd *cli.Command) error {
							if cmd.Args().Len() != 1 {
								return fmt.Errorf("usage: mcp-excel cli help <tool>")
							}
							return newRunner(logger, cliOutput).HelpTool(cmd.Args().First())
						},
					},
					{
						Name:            "run",
						Usage:           "Run a tool with --flag=value arguments or a JSON object",
						ArgsUsage:       "<tool> [--param=value ...] ['{\"param\": \"value\"}']",
						SkipFlagParsing: true,
						Action: func(ctx context.Context, cmd *cli.Command) error {
							if cmd.Args().Len() < 1 {
								return fmt.Errorf("usage: mcp-excel cli run <tool> [args...]")
							}
							return newRunner(logger, cliOutput).RunTool(ctx, cmd.Args().First(), cmd.Args().Tail())
						},
					},
				},
			},
		},
		Action: func(cliCtx context.Context, cmd *cli.Command) error {
			transport := cmd.String("transport")
			port := cmd.String("port")
			baseURL := cmd.String("base-url")

			isStdioMode.Store(transport == "stdio")
			initRuntime(logger, settings, transport)

			if transport != "stdio" {
				logger.Infof("Starting mcp-excel version %s (commit: %s, built: %s)", Version, Commit, BuildDate)
			}

			mcpSrv := newMCPServer(logger, transport)

			logger.WithField("transport", transport).Debug("Starting server")
			switch transport {
			case "stdio":
				return mcpserver.ServeStdio(mcpSrv)
			case "sse":
				logger.WithField("port", port).Debug("Starting SSE server")
				sseServer := mcpserver.NewSSEServer(mcpSrv, mcpserver.WithBaseURL(baseURL+"/sse"))
				return sseServer.Start(":" + port)
			case "http":
				logger.WithField("port", port).Debug("Starting HTTP server")
				return startStreamableHTTPServer(cliCtx, cmd, mcpSrv, logger)
			default:
				return fmt.Errorf("unsupported transport: %s", transport)
			}
		},
	}

	if err := app.Run(ctx, os.Args); err != nil {
		// Nothing may reach stdout or stderr in stdio mode
		if !isStdioMode.Load() {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		performCleanup(logger)
		os.Exit(1)
	}
}

func newRunner(logger *logrus.Logger, output string) *excelcli.Runner {
	format := excelcli.OutputText
	if strings.EqualFold(output, string(excelcli.OutputJSON)) {
		format = excelcli.OutputJSON
	}
	return excelcli.NewRunner(logger, format)
}

// initRuntime points logging at its file and starts the tool error log and access policy.
func initRuntime(logger *logrus.Logger, settings config.Settings, transport string) {
	configureLogging(logger, settings, transport == "stdio")

	if err := tools.InitGlobalErrorLogger(logger, settings.LogDir(), settings.LogToolErrors); err != nil {
		logger.WithError(err).Warn("Failed to initialise tool error logger")
	}

	logger.WithField("policy_path", settings.AccessConfigPath).Debug("Initialising access policy")
	if err := security.InitGlobalPolicy(settings.AccessConfigPath, logger); err != nil {
		logger.WithError(err).Warn("Failed to initialise access policy, workbook paths are unrestricted")
	}
}

// configureLogging sends log output to {DataDir}/logs/mcp-excel.log. When the file cannot be
// opened, stdio mode discards output and the other modes write to stderr.
func configureLogging(logger *logrus.Logger, settings config.Settings, stdio bool) {
	level := parseLogLevel(settings.LogLevel)
	if stdio && level > logrus.WarnLevel {
		level = logrus.WarnLevel
	}
	logger.SetLevel(level)
	logrus.SetLevel(level)

	file, err := openLogFile(settings.LogDir())
	if err != nil {
		var fallback io.Writer = os.Stderr
		if stdio {
			fallback = io.Discard
		}
		logger.SetOutput(fallback)
		logrus.SetOutput(fallback)
		logger.WithError(err).Debug("Log file unavailable")
		return
	}

	if previous := serverLogFile.Swap(file); previous != nil {
		_ = previous.Close()
	}
	logger.SetOutput(file)
	logrus.SetOutput(file)
	logger.WithField("level", level.String()).Debug("Logging configured")
}

func openLogFile(logDir string) (*os.File, error) {
	if err := os.MkdirAll(logDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	return os.OpenFile(filepath.Join(logDir, logFileName), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
}

// newMCPServer creates the MCP server and registers every enabled tool.
func newMCPServer(logger *logrus.Logger, transport string) *mcpserver.MCPServer {
	mcpSrv := mcpserver.NewMCPServer("mcp-excel", Version, mcpserver.WithToolCapabilities(false))

	enabledTools := registry.GetEnabledTools()
	logger.WithField("tool_count", len(enabledTools)).Debug("MCP server created, registering tools")

	for name, tool := range enabledTools {
		if transport != "stdio" {
			logger.Infof("Registering tool: %s", name)
		}
		mcpSrv.AddTool(tool.Definition(), tools.WithRecovery(logger, toolHandler(name, transport)))
	}
	return mcpSrv
}

func toolHandler(name, transport string) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args, ok := request.Params.Arguments.(map[string]any)
		if !ok && request.Params.Arguments != nil {
			return nil, fmt.Errorf("invalid arguments type: expected map[string]any, got %T", request.Params.Arguments)
		}
		return registry.Invoke(ctx, name, args, transport)
	}
}

// performCleanup releases the log file, the tool error log and the policy watcher
func performCleanup(logger *logrus.Logger) {
	security.Shutdown()

	if err := tools.GetGlobalErrorLogger().Close(); err != nil {
		logger.WithError(err).Warn("Failed to close tool error logger")
	}

	if file := serverLogFile.Swap(nil); file != nil {
		_ = file.Close()
	}
}

// validateAccessConfig reports whether the policy at configPath parses and validates.
func validateAccessConfig(w io.Writer, configPath string) error {
	data, err := os.ReadFile(configPath)
	if errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(w, "Access policy not found: %s\n", configPath)
		fmt.Fprintln(w, "The default policy is written there the first time the server starts.")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read access policy: %w", err)
	}

	fmt.Fprintf(w, "Validating access policy: %s\n", configPath)

	policy, err := security.ValidatePolicyData(data)
	if err != nil {
		for i, line := range strings.Split(string(data), "\n") {
			if strings.Contains(line, "\t") {
				fmt.Fprintf(w, "Line %d contains tabs (use spaces instead): %s\n", i+1, strings.TrimSpace(line))
			}
		}
		return fmt.Errorf("access policy is invalid: %w", err)
	}

	fmt.Fprintf(w, "Version: %s\n", policy.Version)
	fmt.Fprintf(w, "Enabled: %t\n", policy.Enabled)
	fmt.Fprintf(w, "Auto reload: %t\n", policy.AutoReload)
	fmt.Fprintf(w, "Allowed roots: %d\n", len(policy.AllowedRoots))
	fmt.Fprintf(w, "Deny patterns: %d\n", len(policy.DenyPatterns))
	fmt.Fprintln(w, "Access policy is valid")
	return nil
}

// startStreamableHTTPServer serves the Streamable HTTP transport until ctx is cancelled
func startStreamableHTTPServer(ctx context.Context, cmd *cli.Command, mcpServer *mcpserver.MCPServer, logger *logrus.Logger) error {
	port := cmd.String("port")
	authToken := cmd.String("auth-token")
	endpointPath := cmd.String("endpoint-path")
	sessionTimeout := cmd.Duration("session-timeout")

	logger.Infof("Starting Streamable HTTP server on port %s with endpoint %s", port, endpointPath)

	opts := []mcpserver.StreamableHTTPOption{
		mcpserver.WithEndpointPath(endpointPath),
		mcpserver.WithHTTPContextFunc(headerChecks(logger)),
		mcpserver.WithLogger(&logrusAdapter{logger: logger}),
	}

	heartbeatInterval := 30 * time.Second
	if sessionTimeout > 0 {
		opts = append(opts, mcpserver.WithSessionIdManager(NewTimeoutSessionManager(sessionTimeout, logger)))
		heartbeatInterval = sessionTimeout / 4
	}
	opts = append(opts, mcpserver.WithHeartbeatInterval(heartbeatInterval))

	var handler http.Handler = mcpserver.NewStreamableHTTPServer(mcpServer, opts...)
	if authToken != "" {
		handler = requireToken(authToken, logger, handler)
		logger.Info("Bearer token authentication enabled")
	}

	mux := http.NewServeMux()
	mux.Handle(endpointPath, handler)

	server := &http.Server{
		Addr:              ":" + port,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	serverErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		return fmt.Errorf("HTTP server failed: %w", err)
	case <-ctx.Done():
		logger.Info("Shutdown signal received, stopping HTTP server")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("HTTP server shutdown failed")
		return err
	}

	logger.Info("HTTP server stopped gracefully")
	return nil
}

// requireToken rejects requests that do not carry "Authorization: Bearer <expected>".
func requireToken(expected string, logger *logrus.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		token, found := strings.CutPrefix(req.Header.Get("Authorization"), "Bearer ")
		if !found || subtle.ConstantTimeCompare([]byte(token), []byte(expected)) != 1 {
			logger.WithField("remote_addr", req.RemoteAddr).Warn("Rejected request with missing or invalid bearer token")
			http.Error(w, "unauthorised", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, req)
	})
}

// headerChecks logs requests with an unsupported protocol version or a non-local Origin.
func headerChecks(logger *logrus.Logger) mcpserver.HTTPContextFunc {
	return func(ctx context.Context, req *http.Request) context.Context {
		if version := req.Header.Get("MCP-Protocol-Version"); version != "" && !isValidProtocolVersion(version) {
			logger.Warnf("Unsupported MCP Protocol Version: %s", version)
		}
		if origin := req.Header.Get("Origin"); origin != "" && !isValidOrigin(origin) {
			logger.Warnf("Invalid Origin header: %s", origin)
		}
		return ctx
	}
}

func isValidProtocolVersion(version string) bool {
	return slices.Contains([]string{"2025-06-18", "2025-03-26", "2024-11-05"}, version)
}

// isValidOrigin accepts local origins only
func isValidOrigin(origin string) bool {
	for _, allowed := range []string{"http://localhost", "https://localhost", "http://127.0.0.1", "https://127.0.0.1"} {
		if origin == allowed || strings.HasPrefix(origin, allowed+":") {
			return true
		}
	}
	return false
}

// TimeoutSessionManager issues uuid session ids and expires sessions idle for longer than timeout
type TimeoutSessionManager struct {
	timeout time.Duration
	logger  *logrus.Logger

	mu       sync.Mutex
	lastSeen map[string]time.Time
	now      func() time.Time
}

// NewTimeoutSessionManager creates a session manager with the given idle timeout
func NewTimeoutSessionManager(timeout time.Duration, logger *logrus.Logger) *TimeoutSessionManager {
	return &TimeoutSessionManager{
		timeout:  timeout,
		logger:   logger,
		lastSeen: make(map[string]time.Time),
		now:      time.Now,
	}
}

func (t *TimeoutSessionManager) Generate() string {
	id := uuid.NewString()

	t.mu.Lock()
	defer t.mu.Unlock()
	t.lastSeen[id] = t.now()
	return id
}

// Validate reports whether the session has expired. Unknown ids are an error.
func (t *TimeoutSessionManager) Validate(sessionID string) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	seen, ok := t.lastSeen[sessionID]
	if !ok {
		return false, fmt.Errorf("invalid session id: %q", sessionID)
	}
	if t.now().Sub(seen) > t.timeout {
		delete(t.lastSeen, sessionID)
		t.logger.WithField("session_id", sessionID).Debug("Session expired")
		return true, nil
	}
	t.lastSeen[sessionID] = t.now()
	return false, nil
}

func (t *TimeoutSessionManager) Terminate(sessionID string) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	delete(t.lastSeen, sessionID)
	t.logger.WithField("session_id", sessionID).Debug("Session terminated")
	return false, nil
}

// logrusAdapter adapts logrus.Logger to the mcp-go util.Logger interface
type logrusAdapter struct {
	logger *logrus.Logger
}

func (l *logrusAdapter) Debugf(format string, args ...any) {
	l.logger.Debugf(format, args...)
}

func (l *logrusAdapter) Infof(format string, args ...any) {
	l.logger.Infof(format, args...)
}

func (l *logrusAdapter) Warnf(format string, args ...any) {
	l.logger.Warnf(format, args...)
}

func (l *logrusAdapter) Errorf(format string, args ...any) {
	l.logger.Errorf(format, args...)
}
