// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"errors"
	"os"
	"sync"

	"timemachine/cli/internal/bridge/grpcserver"
	errs "timemachine/cli/internal/errors"
	"timemachine/cli/internal/stream"

	"github.com/spf13/cobra"
)

var (
	serveSocket       string
	serveRunTriggered bool
)

// serveCmd owns the engine and exposes the façade on a unix socket for
// lower-privilege callers (timemachine --remote, the desktop UI).
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the bridge on a unix socket",
	Long: `serve owns the utm-core engine and exposes the bridge on a unix socket that
only the current user can open. Clients connect with --remote. With
--run-triggered, "perform backup now" notifications start the named profile's
backup in this process.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if appCtx.Remote() {
			return errs.New(errs.Rejected, "serve must own the engine; drop --remote")
		}
		ctx := cmd.Context()
		log := appCtx.Log

		path := serveSocket
		if path == "" {
			var err error
			if path, err = appCtx.Config.ResolveSocketPath(); err != nil {
				return err
			}
		}
		lis, err := grpcserver.Listen(path)
		if err != nil {
			return err
		}
		defer os.Remove(path)

		jobs := &triggeredJobs{}
		triggers := appCtx.Facade.OnTriggerBackup(func(ev stream.Event) {
			log.Info("backup requested", log.Args("profile", ev.Text, "request", ev.RequestID))
			if !serveRunTriggered || ev.Text == "" || appCtx.Quitting() {
				return
			}
			jobs.start(func() {
				profileID := ev.Text
				id, err := appCtx.Backups.StartBackup(ctx, profileID, false)
				if err != nil {
					log.Error("triggered backup failed", log.Args("profile", profileID, "error", err.Error()))
					return
				}
				log.Info("triggered backup finished", log.Args("profile", profileID, "backup", id))
			})
		})
		defer triggers.Close()

		srv := grpcserver.New(appCtx.Facade, log)
		serveErr := make(chan error, 1)
		go func() { serveErr <- srv.Serve(lis) }()

		select {
		case <-ctx.Done():
			log.Info("shutting down bridge")
			appCtx.BeginQuit()
			srv.Stop()
			err = <-serveErr
		case err = <-serveErr:
		}
		triggers.Close()
		jobs.stop()
		if errors.Is(err, os.ErrClosed) {
			return nil
		}
		return err
	},
}

// triggeredJobs runs backups started by trigger notifications. Once stop
// has been called no new job starts.
type triggeredJobs struct {
	mu      sync.Mutex
	stopped bool
	wg      sync.WaitGroup
}

// start runs fn in a goroutine and reports whether it was started.
func (j *triggeredJobs) start(fn func()) bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.stopped {
		return false
	}
	j.wg.Add(1)
	go func() {
		defer j.wg.Done()
		fn()
	}()
	return true
}

// stop refuses further jobs and waits for running ones.
func (j *triggeredJobs) stop() {
	j.mu.Lock()
	j.stopped = true
	j.mu.Unlock()
	j.wg.Wait()
}

func init() {
	serveCmd.Flags().StringVar(&serveSocket, "socket", "", "Socket path (default from config or XDG_RUNTIME_DIR)")
	rootCmd.AddCommand(serveCmd)
}
