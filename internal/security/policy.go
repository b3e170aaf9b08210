package security

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

//go:embed default_access.yaml
var defaultPolicyTemplate string

// AccessPolicy is the on-disk YAML policy
type AccessPolicy struct {
	Version      string   `yaml:"version"`
	Enabled      bool     `yaml:"enabled"`
	AutoReload   bool     `yaml:"auto_reload"`
	AllowedRoots []string `yaml:"allowed_roots"`
	DenyPatterns []string `yaml:"deny_patterns"`
}

// AccessError is returned when a workbook path is refused by the policy
type AccessError struct {
	Path   string
	Reason string
}

func (e *AccessError) Error() string {
	return fmt.Sprintf("Access denied: %s %s", e.Path, e.Reason)
}

// PolicyEngine evaluates workbook paths against an AccessPolicy loaded from disk
type PolicyEngine struct {
	policyPath string
	logger     *logrus.Logger

	mutex        sync.RWMutex
	policy       *AccessPolicy
	allowedRoots []string
	denyPatterns []string
	lastModified time.Time

	watcher   *fsnotify.Watcher
	closeOnce sync.Once
}

// NewPolicyEngine loads the policy at policyPath, writing the default policy first when
// the file does not exist. When the policy asks for it the file is watched for changes.
func NewPolicyEngine(policyPath string, logger *logrus.Logger) (*PolicyEngine, error) {
	logger.WithField("policy_path", policyPath).Debug("Creating access policy engine")

	engine := &PolicyEngine{
		policyPath: policyPath,
		logger:     logger,
	}

	if err := engine.ensurePolicyFile(); err != nil {
		return nil, fmt.Errorf("failed to ensure policy file: %w", err)
	}

	if err := engine.LoadPolicy(); err != nil {
		return nil, fmt.Errorf("failed to load policy: %w", err)
	}

	if engine.Policy().AutoReload {
		if err := engine.startFileWatcher(); err != nil {
			logger.WithError(err).Warn("Failed to start access policy watcher, auto-reload disabled")
		}
	}

	return engine, nil
}

// ensurePolicyFile creates the default policy if none exists
func (e *PolicyEngine) ensurePolicyFile() error {
	if _, err := os.Stat(e.policyPath); !os.IsNotExist(err) {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(e.policyPath), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	content := strings.ReplaceAll(defaultPolicyTemplate, "{{.Timestamp}}", time.Now().Format(time.RFC3339))
	if err := os.WriteFile(e.policyPath, []byte(content), 0600); err != nil {
		return fmt.Errorf("failed to create default policy: %w", err)
	}

	e.logger.Infof("Created default access policy at %s", e.policyPath)
	return nil
}

// LoadPolicy reads and validates the policy file, replacing the active policy on success.
// A policy that fails to parse leaves the previous policy in force.
func (e *PolicyEngine) LoadPolicy() error {
	data, err := os.ReadFile(e.policyPath)
	if err != nil {
		return fmt.Errorf("failed to read policy file: %w", err)
	}

	policy, err := ValidatePolicyData(data)
	if err != nil {
		return err
	}

	roots := make([]string, 0, len(policy.AllowedRoots))
	for _, root := range policy.AllowedRoots {
		abs, err := filepath.Abs(expandHomePath(root))
		if err != nil {
			return fmt.Errorf("invalid allowed root %q: %w", root, err)
		}
		roots = append(roots, abs)
	}

	patterns := make([]string, 0, len(policy.DenyPatterns))
	for _, pattern := range policy.DenyPatterns {
		patterns = append(patterns, filepath.Clean(expandHomePath(pattern)))
	}

	e.mutex.Lock()
	e.policy = policy
	e.allowedRoots = roots
	e.denyPatterns = patterns
	e.lastModified = time.Now()
	e.mutex.Unlock()

	e.logger.WithFields(logrus.Fields{
		"enabled":       policy.Enabled,
		"allowed_roots": len(roots),
		"deny_patterns": len(patterns),
	}).Debug("Access policy loaded")

	return nil
}

// ValidatePolicyData parses and validates policy YAML without activating it.
func ValidatePolicyData(data []byte) (*AccessPolicy, error) {
	var policy AccessPolicy
	if err := yaml.Unmarshal(data, &policy); err != nil {
		return nil, fmt.Errorf("failed to parse YAML policy: %w", err)
	}
	if err := validatePolicy(&policy); err != nil {
		return nil, err
	}
	return &policy, nil
}

func validatePolicy(policy *AccessPolicy) error {
	if policy.Version == "" {
		return fmt.Errorf("policy version is required")
	}
	for i, pattern := range policy.DenyPatterns {
		if strings.TrimSpace(pattern) == "" {
			return fmt.Errorf("deny pattern %d is empty", i)
		}
		if _, err := filepath.Match(pattern, ""); err != nil {
			return fmt.Errorf("deny pattern %d (%q) is not a valid glob: %w", i, pattern, err)
		}
	}
	for i, root := range policy.AllowedRoots {
		if strings.TrimSpace(root) == "" {
			return fmt.Errorf("allowed root %d is empty", i)
		}
	}
	return nil
}

// Policy returns a copy of the active policy
func (e *PolicyEngine) Policy() AccessPolicy {
	e.mutex.RLock()
	defer e.mutex.RUnlock()
	if e.policy == nil {
		return AccessPolicy{}
	}
	return *e.policy
}

// CheckFileAccess returns an *AccessError when path is denied by the active policy
func (e *PolicyEngine) CheckFileAccess(path string) error {
	e.mutex.RLock()
	defer e.mutex.RUnlock()

	if e.policy == nil || !e.policy.Enabled {
		return nil
	}

	absPath, err := filepath.Abs(expandHomePath(path))
	if err != nil {
		return &AccessError{Path: path, Reason: "cannot be resolved"}
	}

	for _, pattern := range e.denyPatterns {
		if pathMatches(absPath, pattern) {
			e.logger.WithFields(logrus.Fields{
				"path":    absPath,
				"pattern": pattern,
			}).Warn("Workbook access blocked by deny pattern")
			return &AccessError{Path: path, Reason: fmt.Sprintf("matches deny pattern '%s'", pattern)}
		}
	}

	if len(e.allowedRoots) > 0 && !underAnyRoot(absPath, e.allowedRoots) {
		e.logger.WithField("path", absPath).Warn("Workbook access blocked outside allowed roots")
		return &AccessError{Path: path, Reason: "is outside the allowed roots"}
	}

	return nil
}

// Close stops the policy file watcher
func (e *PolicyEngine) Close() error {
	var err error
	e.closeOnce.Do(func() {
		if e.watcher != nil {
			err = e.watcher.Close()
		}
	})
	return err
}

// startFileWatcher reloads the policy whenever the file is written or replaced
func (e *PolicyEngine) startFileWatcher() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}

	if err := watcher.Add(e.policyPath); err != nil {
		if closeErr := watcher.Close(); closeErr != nil {
			e.logger.WithError(closeErr).Warn("Failed to close watcher after add error")
		}
		return fmt.Errorf("failed to watch policy file: %w", err)
	}
	e.watcher = watcher

	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
					e.logger.Debug("Access policy file changed, reloading")
					if err := e.LoadPolicy(); err != nil {
						e.logger.WithError(err).Error("Failed to reload access policy")
					}
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				e.logger.WithError(err).Error("Access policy file watcher error")
			}
		}
	}()

	return nil
}
