// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package cmd provides the command-line interface for timemachine. It drives
// the utm-core backup engine either directly or through a running bridge
// (timemachine serve), and renders results with pterm.
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"timemachine/cli/internal/app"
	errs "timemachine/cli/internal/errors"
	"timemachine/cli/internal/logging"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var (
	showVersion bool
	enginePath  string
	logLevel    string
	useRemote   bool

	// appCtx is created before any subcommand runs and closed after it.
	appCtx *app.Context
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:           "timemachine",
	Short:         "Back up and restore directories with the utm-core engine",
	Long:          `timemachine manages backup profiles, runs backups and restores, and relays engine progress. It talks to the utm-core engine directly, or to a running "timemachine serve" bridge with --remote.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if !cmd.HasParent() || cmd.Name() == "version" || cmd.Name() == "help" {
			return nil
		}
		c, err := app.New(app.Options{EnginePath: enginePath, LogLevel: logLevel, Remote: useRemote})
		if err != nil {
			return err
		}
		appCtx = c
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		if showVersion {
			fmt.Printf("timemachine %s\n", Version)
			return nil
		}
		return cmd.Help()
	},
}

// Execute runs the CLI application. SIGINT and SIGTERM cancel the command's
// context, which stops any engine process it started.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if appCtx != nil {
		if cerr := appCtx.Close(); cerr != nil && err == nil {
			appCtx.Log.Warn("shutdown", appCtx.Log.Args("error", cerr.Error()))
		}
	}
	if err != nil {
		switch {
		case reported(err):
		case errs.KindOf(err) == "":
			pterm.Error.Println(logging.PresentError("timemachine", err))
		default:
			logging.PresentEngineError(err, "")
		}
		os.Exit(exitCode(err))
	}
}

func init() {
	rootCmd.Flags().BoolVar(&showVersion, "version", false, "Show CLI version information")
	rootCmd.PersistentFlags().StringVar(&enginePath, "engine", "", "Path to the utm-core executable")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: trace, debug, info, warn, error, off")
	rootCmd.PersistentFlags().BoolVar(&useRemote, "remote", false, "Use the running bridge instead of spawning the engine")
}
