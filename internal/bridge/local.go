// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package bridge

import (
	"context"

	"timemachine/cli/internal/bridge/model"
	"timemachine/cli/internal/engine"
	errs "timemachine/cli/internal/errors"
	"timemachine/cli/internal/logging"
	"timemachine/cli/internal/protocol"
	"timemachine/cli/internal/stream"

	"github.com/google/uuid"
	"github.com/pterm/pterm"
)

// Executor runs engine commands. *engine.Manager satisfies it.
type Executor interface {
	Execute(ctx context.Context, argv []string, observers ...stream.Handler) (engine.Result, error)
}

// Desktop provides the operations that touch the user's desktop session.
type Desktop interface {
	SelectDirectory(ctx context.Context) ([]string, error)
	OpenURL(ctx context.Context, rawURL string) error
}

// Local is the in-process façade. Events come from the hub the engine
// manager publishes to.
type Local struct {
	exec Executor
	hub  *stream.Hub
	desk Desktop
	log  *pterm.Logger
}

// NewLocal wires a façade over exec and hub. desk may be nil, in which case
// desktop operations report Unavailable.
func NewLocal(exec Executor, hub *stream.Hub, desk Desktop, log *pterm.Logger) *Local {
	if log == nil {
		log = logging.Discard()
	}
	return &Local{exec: exec, hub: hub, desk: desk, log: log}
}

var _ Facade = (*Local)(nil)

func (l *Local) ExecuteCore(ctx context.Context, argv []string) (model.CommandResult, error) {
	if err := CheckArgv(argv); err != nil {
		l.log.Warn("rejected engine call", l.log.Args("args", logging.MaskArgs(argv), "error", err.Error()))
		return model.CommandResult{}, err
	}
	res, err := l.exec.Execute(ctx, argv)
	return FromEngine(res), err
}

// FromEngine converts an engine result for the façade.
func FromEngine(res engine.Result) model.CommandResult {
	return model.CommandResult{
		RequestID:  res.RequestID,
		Success:    res.Success,
		ExitCode:   res.ExitCode,
		Stdout:     res.Stdout,
		Stderr:     res.Stderr,
		SpawnError: res.SpawnError,
		Duration:   res.Duration,
	}
}

func (l *Local) GetBackupProfiles(ctx context.Context) ([]string, error) {
	res, err := l.ExecuteCore(ctx, protocol.ListProfiles().Argv)
	if err != nil {
		return nil, err
	}
	return protocol.ParseProfileNames(res.Stdout), nil
}

func (l *Local) SelectDirectory(ctx context.Context) ([]string, error) {
	if l.desk == nil {
		return nil, errs.New(errs.Unavailable, "no desktop session")
	}
	return l.desk.SelectDirectory(ctx)
}

func (l *Local) OpenExternalURL(ctx context.Context, rawURL string) (bool, error) {
	if err := CheckURL(rawURL); err != nil {
		return false, err
	}
	if l.desk == nil {
		return false, errs.New(errs.Unavailable, "no desktop session")
	}
	if err := l.desk.OpenURL(ctx, rawURL); err != nil {
		return false, err
	}
	return true, nil
}

// TriggerBackup publishes a trigger event. It does not start a backup;
// whoever listens decides what to do with it.
func (l *Local) TriggerBackup(ctx context.Context, profileID string) error {
	if err := ctx.Err(); err != nil {
		return errs.Wrap(errs.Canceled, "trigger backup", err)
	}
	id := uuid.NewString()
	l.log.Info("backup trigger", l.log.Args("request", id, "profile", profileID))
	l.hub.Publish(stream.Event{Kind: stream.KindTrigger, RequestID: id, Text: profileID})
	return nil
}

func (l *Local) OnOutput(fn stream.Handler) *stream.Subscription {
	return l.hub.Subscribe(fn, stream.KindStdout)
}

func (l *Local) OnError(fn stream.Handler) *stream.Subscription {
	return l.hub.Subscribe(fn, stream.KindStderr)
}

func (l *Local) OnProgress(fn stream.Handler) *stream.Subscription {
	return l.hub.Subscribe(fn, stream.KindProgress)
}

func (l *Local) OnCompletion(fn stream.Handler) *stream.Subscription {
	return l.hub.Subscribe(fn, stream.KindCompletion)
}

func (l *Local) OnTriggerBackup(fn stream.Handler) *stream.Subscription {
	return l.hub.Subscribe(fn, stream.KindTrigger)
}

// Close is a no-op; the engine manager and hub belong to the caller.
func (l *Local) Close() error { return nil }
