// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package engine runs the external backup engine (utm-core) as a child
// process. Every Execute call owns exactly one process, its argument vector
// and its output buffers; nothing is shared between concurrent calls apart
// from the optional admission limit.
//
// Arguments are passed to the operating system as a vector, never through a
// shell, so a value like "; rm -rf /" reaches the engine as one literal
// argument. Stdout is fed through a stream.Demux as it arrives and stderr
// chunks are forwarded untouched; both are also accumulated in full and
// returned in the Result once the process exits.
package engine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sort"
	"sync"
	"syscall"
	"time"

	errs "timemachine/cli/internal/errors"
	"timemachine/cli/internal/logging"
	"timemachine/cli/internal/stream"

	"github.com/google/uuid"
	"github.com/pterm/pterm"
	"golang.org/x/sync/semaphore"
)

// DefaultKillGrace is how long a canceled engine gets between SIGTERM and SIGKILL.
const DefaultKillGrace = 5 * time.Second

// Result is the outcome of one engine invocation. Stdout and Stderr hold the
// complete output of the process lifetime, never truncated.
type Result struct {
	RequestID string
	Argv      []string
	Success   bool
	// ExitCode is nil when the process never started or was killed by a signal.
	ExitCode   *int
	Stdout     string
	Stderr     string
	SpawnError string
	Duration   time.Duration
}

// Publisher receives every classified event. *stream.Hub satisfies it.
type Publisher interface {
	Publish(ev stream.Event)
}

// Options configure a Manager.
type Options struct {
	// Path is the engine executable.
	Path string
	// Env entries (KEY=VALUE) are appended to the inherited environment.
	Env []string
	// MaxConcurrent bounds in-flight engine processes; 0 means unbounded.
	MaxConcurrent int
	// Timeout bounds each call; 0 means no timeout.
	Timeout time.Duration
	// KillGrace overrides DefaultKillGrace.
	KillGrace time.Duration
	Publisher Publisher
	Logger    *pterm.Logger
}

// Process describes an in-flight engine invocation.
type Process struct {
	RequestID string
	Argv      []string
	PID       int
	Started   time.Time
}

// Manager spawns engine processes.
type Manager struct {
	path      string
	env       []string
	timeout   time.Duration
	killGrace time.Duration
	sem       *semaphore.Weighted
	pub       Publisher
	log       *pterm.Logger

	mu      sync.Mutex
	running map[string]Process
}

// New creates a Manager from opts.
func New(opts Options) *Manager {
	m := &Manager{
		path:      opts.Path,
		env:       append([]string(nil), opts.Env...),
		timeout:   opts.Timeout,
		killGrace: opts.KillGrace,
		pub:       opts.Publisher,
		log:       opts.Logger,
		running:   make(map[string]Process),
	}
	if m.killGrace <= 0 {
		m.killGrace = DefaultKillGrace
	}
	if opts.MaxConcurrent > 0 {
		m.sem = semaphore.NewWeighted(int64(opts.MaxConcurrent))
	}
	if m.log == nil {
		m.log = logging.Discard()
	}
	return m
}

// Path returns the configured engine executable.
func (m *Manager) Path() string { return m.path }

// Execute runs the engine with argv and blocks until it exits. Events are
// published as output arrives and also handed to observers, which only see
// this call's events. On failure the Result is still populated with whatever
// was captured, and the error's kind is SpawnFailed, NonZeroExit or Canceled.
func (m *Manager) Execute(ctx context.Context, argv []string, observers ...stream.Handler) (Result, error) {
	argv = append([]string(nil), argv...)
	id := uuid.NewString()
	res := Result{RequestID: id, Argv: argv}

	if m.sem != nil {
		if err := m.sem.Acquire(ctx, 1); err != nil {
			return res, errs.Wrap(errs.Canceled, "waiting for an engine slot", err)
		}
		defer m.sem.Release(1)
	}
	if m.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, m.path, argv...)
	if len(m.env) > 0 {
		cmd.Env = append(os.Environ(), m.env...)
	}
	cmd.Cancel = func() error { return cmd.Process.Signal(syscall.SIGTERM) }
	cmd.WaitDelay = m.killGrace

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		res.SpawnError = err.Error()
		return res, errs.Wrap(errs.SpawnFailed, "open stdout pipe", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		res.SpawnError = err.Error()
		return res, errs.Wrap(errs.SpawnFailed, "open stderr pipe", err)
	}

	emit := func(ev stream.Event) {
		if m.pub != nil {
			m.pub.Publish(ev)
		}
		for _, obs := range observers {
			obs(ev)
		}
	}

	m.log.Info("executing engine command", m.log.Args("request", id, "engine", m.path, "args", logging.MaskArgs(argv)))
	start := time.Now()
	if err := cmd.Start(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return res, errs.Wrap(errs.Canceled, "engine command not started", ctxErr)
		}
		res.SpawnError = err.Error()
		m.log.Error("engine failed to start", m.log.Args("request", id, "error", err.Error()))
		return res, errs.Wrap(errs.SpawnFailed, fmt.Sprintf("start %s", m.path), err)
	}
	m.track(id, argv, cmd.Process.Pid, start)
	defer m.untrack(id)

	var outBuf, errBuf bytes.Buffer
	demux := stream.NewDemux(id, emit, m.log)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		if err := pump(stdout, func(chunk []byte) {
			m.log.Debug("engine stdout", m.log.Args("request", id, "chunk", logging.Mask(string(bytes.TrimSpace(chunk)))))
			_, _ = demux.Write(chunk)
			outBuf.Write(chunk)
		}); err != nil {
			m.log.Warn("reading engine stdout", m.log.Args("request", id, "error", err.Error()))
		}
		demux.Flush()
	}()
	go func() {
		defer wg.Done()
		if err := pump(stderr, func(chunk []byte) {
			text := string(chunk)
			m.log.Warn("engine stderr", m.log.Args("request", id, "chunk", logging.Mask(string(bytes.TrimSpace(chunk)))))
			emit(stream.Event{Kind: stream.KindStderr, RequestID: id, Text: text})
			errBuf.Write(chunk)
		}); err != nil {
			m.log.Warn("reading engine stderr", m.log.Args("request", id, "error", err.Error()))
		}
	}()
	wg.Wait()
	waitErr := cmd.Wait()

	res.Duration = time.Since(start)
	res.Stdout = outBuf.String()
	res.Stderr = errBuf.String()
	code := -1
	if cmd.ProcessState != nil {
		code = cmd.ProcessState.ExitCode()
	}
	if code >= 0 {
		res.ExitCode = &code
	}
	m.log.Info("engine command completed", m.log.Args("request", id, "code", code, "duration", res.Duration.String()))

	if code == 0 {
		res.Success = true
		return res, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return res, errs.Wrap(errs.Canceled, "engine command stopped", ctxErr)
	}
	if code < 0 {
		return res, errs.Wrap(errs.NonZeroExit, "engine terminated by signal", waitErr)
	}
	return res, errs.Wrap(errs.NonZeroExit, fmt.Sprintf("engine exited with code %d", code), waitErr)
}

// Running lists in-flight invocations ordered by start time.
func (m *Manager) Running() []Process {
	m.mu.Lock()
	out := make([]Process, 0, len(m.running))
	for _, p := range m.running {
		out = append(out, p)
	}
	m.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Started.Before(out[j].Started) })
	return out
}

func (m *Manager) track(id string, argv []string, pid int, started time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.running[id] = Process{RequestID: id, Argv: argv, PID: pid, Started: started}
}

func (m *Manager) untrack(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.running, id)
}

// pump reads r until EOF, handing each chunk to fn in order.
func pump(r io.Reader, fn func([]byte)) error {
	buf := make([]byte, 32*1024)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			fn(buf[:n])
		}
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, os.ErrClosed) {
				return nil
			}
			return err
		}
	}
}
