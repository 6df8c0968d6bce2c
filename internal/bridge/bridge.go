// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package bridge defines the façade a lower-privilege caller uses to reach
// the engine. The façade relays calls and event streams without interpreting
// them; its only logic is refusing calls that carry more capability than the
// declared operations grant.
//
// Two implementations exist: Local runs in the process that owns the engine
// manager, and grpcclient.Client reaches a Local served by grpcserver over a
// unix socket.
package bridge

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"timemachine/cli/internal/bridge/model"
	errs "timemachine/cli/internal/errors"
	"timemachine/cli/internal/stream"
)

// Facade is the cross-context call surface.
type Facade interface {
	// ExecuteCore runs the engine with argv. On failure the result still
	// carries the captured output.
	ExecuteCore(ctx context.Context, argv []string) (model.CommandResult, error)
	// GetBackupProfiles returns the profile names the engine lists.
	GetBackupProfiles(ctx context.Context) ([]string, error)
	// SelectDirectory asks the user for a directory. Empty means canceled.
	SelectDirectory(ctx context.Context) ([]string, error)
	// OpenExternalURL opens url in the user's browser or mail client.
	OpenExternalURL(ctx context.Context, rawURL string) (bool, error)
	// TriggerBackup broadcasts a "perform backup now" notification.
	TriggerBackup(ctx context.Context, profileID string) error

	OnOutput(fn stream.Handler) *stream.Subscription
	OnError(fn stream.Handler) *stream.Subscription
	OnProgress(fn stream.Handler) *stream.Subscription
	OnCompletion(fn stream.Handler) *stream.Subscription
	OnTriggerBackup(fn stream.Handler) *stream.Subscription

	Close() error
}

// Engine-global options that would let a caller point the engine at another
// configuration or detach it from the bridge.
var globalOptions = []string{"--config", "-c", "--daemon", "-d"}

// CheckArgv rejects argument vectors that try to reach beyond a plain engine
// operation.
func CheckArgv(argv []string) error {
	if len(argv) == 0 {
		return errs.New(errs.Rejected, "empty argument vector")
	}
	for i, a := range argv {
		if strings.ContainsRune(a, 0) {
			return errs.New(errs.Rejected, fmt.Sprintf("argument %d contains a NUL byte", i))
		}
		for _, opt := range globalOptions {
			if a == opt || strings.HasPrefix(a, opt+"=") {
				return errs.New(errs.Rejected, fmt.Sprintf("engine option %s is not available through the bridge", opt))
			}
		}
	}
	return nil
}

// CheckURL accepts http, https and mailto URLs only.
func CheckURL(rawURL string) error {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return errs.Wrap(errs.Rejected, "invalid URL", err)
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		if u.Host == "" {
			return errs.New(errs.Rejected, "URL has no host")
		}
	case "mailto":
		if u.Opaque == "" {
			return errs.New(errs.Rejected, "mailto URL has no address")
		}
	default:
		return errs.New(errs.Rejected, fmt.Sprintf("URL scheme %q is not allowed", u.Scheme))
	}
	return nil
}
