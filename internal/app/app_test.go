package app

import (
	"path/filepath"
	"testing"

	"timemachine/cli/internal/bridge"
	"timemachine/cli/internal/bridge/grpcclient"
	"timemachine/cli/internal/config"
	"timemachine/cli/internal/logging"
)

func TestNewLocal(t *testing.T) {
	cfg := config.Default()
	cfg.EnginePath = "/opt/utm/bin/utm-core"
	c, err := New(Options{Config: &cfg, Logger: logging.Discard()})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if c.Remote() {
		t.Error("local context reports remote")
	}
	if _, ok := c.Facade.(*bridge.Local); !ok {
		t.Errorf("Facade = %T, want *bridge.Local", c.Facade)
	}
	if got := c.Engine.Path(); got != "/opt/utm/bin/utm-core" {
		t.Errorf("engine path = %q", got)
	}
	if c.Quitting() {
		t.Error("Quitting() before Close")
	}
	if err := c.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if !c.Quitting() {
		t.Error("Quitting() = false after Close")
	}
	if err := c.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
}

func TestNewEngineOverride(t *testing.T) {
	cfg := config.Default()
	cfg.EnginePath = "/configured"
	c, err := New(Options{Config: &cfg, EnginePath: "/flag/utm-core", Logger: logging.Discard()})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer c.Close()
	if got := c.Engine.Path(); got != "/flag/utm-core" {
		t.Errorf("engine path = %q, want flag override", got)
	}
}

func TestNewRemote(t *testing.T) {
	cfg := config.Default()
	cfg.SocketPath = filepath.Join(t.TempDir(), "bridge.sock")
	c, err := New(Options{Config: &cfg, Remote: true, Logger: logging.Discard()})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if !c.Remote() || c.Hub != nil {
		t.Errorf("remote context has local engine state")
	}
	if _, ok := c.Facade.(*grpcclient.Client); !ok {
		t.Errorf("Facade = %T, want *grpcclient.Client", c.Facade)
	}
	if err := c.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}

func TestNewRejectsBadTimeout(t *testing.T) {
	cfg := config.Default()
	cfg.CommandTimeout = "eventually"
	if _, err := New(Options{Config: &cfg, Logger: logging.Discard()}); err == nil {
		t.Error("New() accepted an invalid command_timeout")
	}
}
