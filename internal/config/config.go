// Package config loads and stores CLI configuration in the XDG config dir.
// Environment variables override file values; the engine owns all backup state,
// so only bridge settings are kept here.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"timemachine/cli/internal/xdg"
)

// Cancel modes.
const (
	// CancelEngine only sends cancel-backup and lets the engine stop its own job.
	CancelEngine = "engine"
	// CancelTerminate also signals the in-flight start-backup process.
	CancelTerminate = "terminate"
)

// EngineBinary is the engine executable name looked up on PATH.
const EngineBinary = "utm-core"

// Config holds bridge settings.
type Config struct {
	EnginePath     string   `json:"engine_path"`
	EngineEnv      []string `json:"engine_env,omitempty"`
	LogLevel       string   `json:"log_level"`
	LogFormat      string   `json:"log_format"`
	MaxConcurrent  int      `json:"max_concurrent"`
	CommandTimeout string   `json:"command_timeout,omitempty"`
	CancelMode     string   `json:"cancel_mode"`
	SocketPath     string   `json:"socket_path,omitempty"`
}

// Default returns the settings used when no config file exists.
func Default() Config {
	return Config{
		LogLevel:      "info",
		LogFormat:     "colorful",
		MaxConcurrent: 8,
		CancelMode:    CancelEngine,
	}
}

// path returns the path to the config file.
func path() (string, error) {
	dir, err := xdg.ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// Load reads configuration; missing file returns defaults. Environment
// overrides are applied in both cases.
func Load() (Config, error) {
	c := Default()
	p, err := path()
	if err != nil {
		return c, err
	}
	data, err := os.ReadFile(p)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return c, err
	default:
		if err := json.Unmarshal(data, &c); err != nil {
			return c, fmt.Errorf("parse %s: %w", p, err)
		}
	}
	c.applyEnv()
	return c, c.Validate()
}

// Save writes configuration with 0600 permissions.
func Save(c Config) error {
	p, err := path()
	if err != nil {
		return err
	}
	b, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(p, b, 0o600)
}

func (c *Config) applyEnv() {
	if v := strings.TrimSpace(os.Getenv("TIMEMACHINE_ENGINE")); v != "" {
		c.EnginePath = v
	}
	if v := strings.TrimSpace(os.Getenv("TIMEMACHINE_LOG_LEVEL")); v != "" {
		c.LogLevel = v
	}
	if v := strings.TrimSpace(os.Getenv("TIMEMACHINE_SOCKET")); v != "" {
		c.SocketPath = v
	}
}

// Validate checks enumerated fields and the timeout syntax.
func (c Config) Validate() error {
	switch c.CancelMode {
	case "", CancelEngine, CancelTerminate:
	default:
		return fmt.Errorf("cancel_mode must be %q or %q, got %q", CancelEngine, CancelTerminate, c.CancelMode)
	}
	if c.MaxConcurrent < 0 {
		return fmt.Errorf("max_concurrent must not be negative")
	}
	if _, err := c.Timeout(); err != nil {
		return err
	}
	for _, kv := range c.EngineEnv {
		if !strings.Contains(kv, "=") {
			return fmt.Errorf("engine_env entry %q is not KEY=VALUE", kv)
		}
	}
	return nil
}

// Timeout returns the per-command timeout; zero means none.
func (c Config) Timeout() (time.Duration, error) {
	if strings.TrimSpace(c.CommandTimeout) == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.CommandTimeout)
	if err != nil {
		return 0, fmt.Errorf("command_timeout: %w", err)
	}
	if d < 0 {
		return 0, fmt.Errorf("command_timeout must not be negative")
	}
	return d, nil
}

// ResolveEnginePath picks the engine executable. Order: explicit override,
// configured path, EngineBinary on PATH, then bin/EngineBinary next to the
// running executable. The result may not exist; spawning reports that.
func (c Config) ResolveEnginePath(override string) string {
	if p := strings.TrimSpace(override); p != "" {
		return p
	}
	if c.EnginePath != "" {
		return c.EnginePath
	}
	if p, err := exec.LookPath(EngineBinary); err == nil {
		return p
	}
	if exe, err := os.Executable(); err == nil {
		return filepath.Join(filepath.Dir(exe), "bin", EngineBinary)
	}
	return EngineBinary
}

// ResolveSocketPath returns the façade socket path.
func (c Config) ResolveSocketPath() (string, error) {
	if c.SocketPath != "" {
		return c.SocketPath, nil
	}
	dir, err := xdg.RuntimeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "bridge.sock"), nil
}
