// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package app holds the application lifecycle context: the one object that
// owns configuration, logging, the event hub, the engine manager and the
// façade for a process run. The cobra root creates it and closes it on exit;
// everything else receives it explicitly.
package app

import (
	"errors"
	"sync"
	"sync/atomic"

	"timemachine/cli/internal/bridge"
	"timemachine/cli/internal/bridge/grpcclient"
	"timemachine/cli/internal/config"
	"timemachine/cli/internal/desktop"
	"timemachine/cli/internal/engine"
	"timemachine/cli/internal/logging"
	"timemachine/cli/internal/service"
	"timemachine/cli/internal/stream"

	"github.com/pterm/pterm"
)

// Options select how the context is assembled.
type Options struct {
	// Config is used as-is when set; otherwise config.Load runs.
	Config *config.Config
	// EnginePath overrides the configured engine executable.
	EnginePath string
	// LogLevel overrides the configured level when non-empty.
	LogLevel string
	// Remote connects to a running bridge instead of spawning the engine.
	Remote bool
	// Logger replaces the logger built from config; tests pass logging.Discard().
	Logger *pterm.Logger
}

// Context is the per-process application state.
type Context struct {
	Config  config.Config
	Log     *pterm.Logger
	Hub     *stream.Hub
	Engine  *engine.Manager
	Facade  bridge.Facade
	Backups *service.BackupService

	quitting  atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

// New builds a Context. In local mode the engine runs in this process; in
// remote mode Engine and Hub are nil and calls go to the bridge socket.
func New(opts Options) (*Context, error) {
	var cfg config.Config
	if opts.Config != nil {
		cfg = *opts.Config
	} else {
		var err error
		if cfg, err = config.Load(); err != nil {
			return nil, err
		}
	}
	if opts.LogLevel != "" {
		cfg.LogLevel = opts.LogLevel
	}
	log := opts.Logger
	if log == nil {
		log = logging.New(cfg.LogLevel, cfg.LogFormat, nil)
	}

	c := &Context{Config: cfg, Log: log}
	if opts.Remote {
		socket, err := cfg.ResolveSocketPath()
		if err != nil {
			return nil, err
		}
		client, err := grpcclient.Dial(socket, log)
		if err != nil {
			return nil, err
		}
		log.Debug("using remote bridge", log.Args("socket", socket))
		c.Facade = client
	} else {
		timeout, err := cfg.Timeout()
		if err != nil {
			return nil, err
		}
		c.Hub = stream.NewHub(log)
		c.Engine = engine.New(engine.Options{
			Path:          cfg.ResolveEnginePath(opts.EnginePath),
			Env:           cfg.EngineEnv,
			MaxConcurrent: cfg.MaxConcurrent,
			Timeout:       timeout,
			Publisher:     c.Hub,
			Logger:        log,
		})
		c.Facade = bridge.NewLocal(c.Engine, c.Hub, desktop.New(log), log)
	}
	c.Backups = service.New(c.Facade, service.Options{CancelMode: cfg.CancelMode, Logger: log})
	return c, nil
}

// Remote reports whether calls go through the bridge socket.
func (c *Context) Remote() bool { return c.Engine == nil }

// BeginQuit marks the process as shutting down. Long-running loops check
// Quitting and stop starting new work.
func (c *Context) BeginQuit() { c.quitting.Store(true) }

// Quitting reports whether BeginQuit was called.
func (c *Context) Quitting() bool { return c.quitting.Load() }

// Close releases the façade. Repeated calls return the first result.
func (c *Context) Close() error {
	c.closeOnce.Do(func() {
		c.BeginQuit()
		if c.Facade != nil {
			c.closeErr = c.Facade.Close()
		}
		if n := len(c.runningEngines()); n > 0 {
			c.Log.Warn("closing with engine commands still running", c.Log.Args("count", n))
			c.closeErr = errors.Join(c.closeErr, errors.New("engine commands still running"))
		}
	})
	return c.closeErr
}

func (c *Context) runningEngines() []engine.Process {
	if c.Engine == nil {
		return nil
	}
	return c.Engine.Running()
}
