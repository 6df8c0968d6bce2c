// Package xdg provides helpers to resolve XDG Base Directory paths for timemachine.
// It implements the XDG Base Directory specification for determining appropriate
// locations for configuration files and runtime sockets on Unix-like systems.
//
// The package handles fallback to traditional locations when XDG environment
// variables are not set and ensures private permissions on every directory it creates.
package xdg

import (
	"fmt"
	"os"
	"path/filepath"
)

const appDir = "timemachine"

// ConfigDir returns the XDG config directory for timemachine.
// The directory is created with private permissions (0700) if missing.
// It falls back to ~/.config/timemachine when XDG_CONFIG_HOME is unset.
func ConfigDir() (string, error) {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		base = filepath.Join(home, ".config")
	}
	dir := filepath.Join(base, appDir)
	if err := os.MkdirAll(dir, 0o700); err != nil { // private dir
		return "", err
	}
	return dir, nil
}

// RuntimeDir returns the directory holding the façade socket.
// It uses XDG_RUNTIME_DIR and falls back to a per-user directory under the OS temp dir.
func RuntimeDir() (string, error) {
	base := os.Getenv("XDG_RUNTIME_DIR")
	if base == "" {
		base = filepath.Join(os.TempDir(), fmt.Sprintf("%s-%d", appDir, os.Getuid()))
		if err := os.MkdirAll(base, 0o700); err != nil {
			return "", err
		}
		return base, nil
	}
	dir := filepath.Join(base, appDir)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", err
	}
	return dir, nil
}
