// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package service is the typed client of the engine. Each method builds the
// operation's argument vector, runs it through a bridge.Facade and reads the
// answer back into protocol types.
//
// Mutating operations (save/delete profile, start/cancel backup, start
// restore) always return the engine's failure. The one informational read
// with a degraded mode is SystemInfo, which substitutes FallbackSystemInfo
// instead of failing.
package service

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"timemachine/cli/internal/bridge"
	"timemachine/cli/internal/bridge/model"
	"timemachine/cli/internal/config"
	errs "timemachine/cli/internal/errors"
	"timemachine/cli/internal/logging"
	"timemachine/cli/internal/protocol"
	"timemachine/cli/internal/stream"

	"github.com/pterm/pterm"
)

// Options configure a BackupService.
type Options struct {
	// CancelMode is config.CancelEngine or config.CancelTerminate.
	CancelMode string
	Logger     *pterm.Logger
}

// BackupService wraps a façade with typed operations.
type BackupService struct {
	facade     bridge.Facade
	cancelMode string
	log        *pterm.Logger
	profiles   profileCache

	mu       sync.Mutex
	inflight map[string]context.CancelFunc
}

// New returns a BackupService over f.
func New(f bridge.Facade, opts Options) *BackupService {
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	if opts.CancelMode == "" {
		opts.CancelMode = config.CancelEngine
	}
	return &BackupService{
		facade:     f,
		cancelMode: opts.CancelMode,
		log:        opts.Logger,
		inflight:   make(map[string]context.CancelFunc),
	}
}

// run executes cmd and turns an engine failure into an error whose message
// carries stderr, the way the engine explains itself.
func (s *BackupService) run(ctx context.Context, cmd protocol.Command) (model.CommandResult, error) {
	res, err := s.facade.ExecuteCore(ctx, cmd.Argv)
	if err != nil {
		s.log.Warn("engine command failed", s.log.Args("op", cmd.Op, "error", err.Error()))
		if msg := strings.TrimSpace(res.Stderr); msg != "" && errs.Is(err, errs.NonZeroExit) {
			return res, errs.Wrap(errs.NonZeroExit, fmt.Sprintf("%s failed: %s", cmd.Op, msg), err)
		}
		return res, err
	}
	return res, nil
}

// ListProfiles returns profile names, served from memory after the first
// successful call until a profile is saved or deleted.
func (s *BackupService) ListProfiles(ctx context.Context) ([]string, error) {
	if names, ok := s.profiles.get(); ok {
		return names, nil
	}
	names, err := s.facade.GetBackupProfiles(ctx)
	if err != nil {
		return nil, err
	}
	s.profiles.set(names)
	s.log.Debug("profiles loaded", s.log.Args("count", len(names)))
	return names, nil
}

// RefreshProfiles drops the cached list and reads it again.
func (s *BackupService) RefreshProfiles(ctx context.Context) ([]string, error) {
	s.profiles.clear()
	return s.ListProfiles(ctx)
}

// HasProfile reports whether the engine lists a profile called name.
func (s *BackupService) HasProfile(ctx context.Context, name string) (bool, error) {
	names, err := s.ListProfiles(ctx)
	if err != nil {
		return false, err
	}
	for _, n := range names {
		if n == name {
			return true, nil
		}
	}
	return false, nil
}

func (s *BackupService) SaveProfile(ctx context.Context, p protocol.Profile) error {
	cmd, err := protocol.SaveProfile(p)
	if err != nil {
		return err
	}
	defer s.profiles.clear()
	_, err = s.run(ctx, cmd)
	return err
}

func (s *BackupService) DeleteProfile(ctx context.Context, id string) error {
	defer s.profiles.clear()
	_, err := s.run(ctx, protocol.DeleteProfile(id))
	return err
}

// StartBackup runs start-backup and returns the engine's backup id. While it
// runs the call can be stopped with CancelBackup in terminate mode.
func (s *BackupService) StartBackup(ctx context.Context, profileID string, dryRun bool) (string, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.mu.Lock()
	if _, busy := s.inflight[profileID]; busy {
		s.mu.Unlock()
		return "", errs.New(errs.Rejected, fmt.Sprintf("a backup of profile %s is already running", profileID))
	}
	s.inflight[profileID] = cancel
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.inflight, profileID)
		s.mu.Unlock()
	}()

	res, err := s.run(ctx, protocol.StartBackup(profileID, dryRun))
	if err != nil {
		return "", err
	}
	id, err := protocol.ParseStartBackup(res.Stdout)
	if err != nil {
		return "", err
	}
	s.log.Info("backup started", s.log.Args("profile", profileID, "backup", id, "dry_run", dryRun))
	return id, nil
}

// Running reports whether this service has a start-backup in flight for
// profileID.
func (s *BackupService) Running(profileID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.inflight[profileID]
	return ok
}

// CancelBackup asks the engine to cancel backupID. In terminate mode it also
// stops this service's in-flight start-backup for profileID, and backupID may
// be empty when the engine has not reported one yet.
func (s *BackupService) CancelBackup(ctx context.Context, backupID, profileID string) error {
	terminated := false
	if s.cancelMode == config.CancelTerminate && profileID != "" {
		s.mu.Lock()
		if cancel, ok := s.inflight[profileID]; ok {
			cancel()
			terminated = true
		}
		s.mu.Unlock()
		if terminated {
			s.log.Info("terminating running backup", s.log.Args("profile", profileID))
		}
	}
	if backupID == "" {
		if terminated {
			return nil
		}
		if s.cancelMode == config.CancelTerminate {
			return errs.New(errs.Rejected, "no running backup for this profile and no backup id given")
		}
		return errs.New(errs.Rejected, "backup id is required")
	}
	_, err := s.run(ctx, protocol.CancelBackup(backupID))
	return err
}

func (s *BackupService) ListBackups(ctx context.Context, profileID string) ([]protocol.BackupListItem, error) {
	res, err := s.run(ctx, protocol.ListBackups(profileID))
	if err != nil {
		return nil, err
	}
	return protocol.ParseBackupList(res.Stdout)
}

func (s *BackupService) BackupDetails(ctx context.Context, backupID string) (map[string]any, error) {
	res, err := s.run(ctx, protocol.BackupDetails(backupID))
	if err != nil {
		return nil, err
	}
	return protocol.ParseBackupDetails(res.Stdout)
}

func (s *BackupService) BrowseBackup(ctx context.Context, backupID, path string) ([]protocol.FileItem, error) {
	res, err := s.run(ctx, protocol.BrowseBackup(backupID, path))
	if err != nil {
		return nil, err
	}
	return protocol.ParseBrowse(res.Stdout)
}

// StartRestore runs start-restore and returns the engine's restore id.
func (s *BackupService) StartRestore(ctx context.Context, opts protocol.RestoreOptions) (string, error) {
	res, err := s.run(ctx, protocol.StartRestore(opts))
	if err != nil {
		return "", err
	}
	id, err := protocol.ParseStartRestore(res.Stdout)
	if err != nil {
		return "", err
	}
	s.log.Info("restore started", s.log.Args("profile", opts.ProfileID, "restore", id))
	return id, nil
}

// SystemInfo never fails: any spawn, exit or format problem yields
// FallbackSystemInfo. Cancellation of ctx is the exception and is returned.
func (s *BackupService) SystemInfo(ctx context.Context) (protocol.SystemInfo, error) {
	res, err := s.run(ctx, protocol.SystemInfoCommand())
	if err == nil {
		var info protocol.SystemInfo
		if info, err = protocol.ParseSystemInfo(res.Stdout); err == nil {
			return info, nil
		}
	}
	if errs.Is(err, errs.Canceled) && ctx.Err() != nil {
		return protocol.SystemInfo{}, err
	}
	s.log.Warn("system info unavailable, using estimates", s.log.Args("error", err.Error()))
	return FallbackSystemInfo, nil
}

// OnProgress decodes progress events into BackupProgress. Payloads that do
// not fit the shape are logged and skipped.
func (s *BackupService) OnProgress(fn func(requestID string, p protocol.BackupProgress)) *stream.Subscription {
	return s.facade.OnProgress(func(ev stream.Event) {
		var p protocol.BackupProgress
		if err := ev.Payload.Decode(&p); err != nil {
			s.log.Warn("skipping progress payload", s.log.Args("request", ev.RequestID, "error", err.Error()))
			return
		}
		fn(ev.RequestID, p)
	})
}

// OnCompletion decodes completion events into BackupResult.
func (s *BackupService) OnCompletion(fn func(requestID string, r protocol.BackupResult)) *stream.Subscription {
	return s.facade.OnCompletion(func(ev stream.Event) {
		var r protocol.BackupResult
		if err := ev.Payload.Decode(&r); err != nil {
			s.log.Warn("skipping completion payload", s.log.Args("request", ev.RequestID, "error", err.Error()))
			return
		}
		fn(ev.RequestID, r)
	})
}
