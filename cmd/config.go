// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"timemachine/cli/internal/app"
	"timemachine/cli/internal/config"
	"timemachine/cli/internal/terminal"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show and change bridge settings",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return printJSON(cmd.OutOrStdout(), appCtx.Config)
	},
}

// configEngineCmd verifies an engine executable answers list-profiles before
// saving it as engine_path.
var configEngineCmd = &cobra.Command{
	Use:   "engine [path]",
	Short: "Verify and save the utm-core executable",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var path string
		if len(args) == 1 {
			path = args[0]
		} else {
			prompt := "Path to utm-core: "
			fmt.Fprint(cmd.OutOrStdout(), prompt)
			line, _ := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
			path = strings.TrimSpace(line)
			if terminal.IsInteractive() {
				terminal.ClearPreviousLines(cmd.OutOrStdout(), len(prompt)+len(path))
			}
		}
		if path == "" {
			return errors.New("engine path is required")
		}

		cfg := appCtx.Config
		cfg.EnginePath = path
		probe, err := app.New(app.Options{Config: &cfg, Logger: appCtx.Log})
		if err != nil {
			return err
		}
		defer probe.Close()

		ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
		defer cancel()
		stop := startInlineSpinner(cmd.ErrOrStderr(), "verifying engine", 100*time.Millisecond)
		names, err := probe.Facade.GetBackupProfiles(ctx)
		stop()
		if err != nil {
			pterm.Error.Printfln("%s did not answer as utm-core", path)
			return err
		}
		if err := config.Save(cfg); err != nil {
			return err
		}
		pterm.Success.Printfln("Engine verified (%d profiles) and saved", len(names))
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Change one setting",
	Long: `set changes one of: log_level, log_format, max_concurrent, command_timeout,
cancel_mode, socket_path. Use "config engine" for engine_path.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := appCtx.Config
		key, value := args[0], args[1]
		switch key {
		case "log_level":
			cfg.LogLevel = value
		case "log_format":
			cfg.LogFormat = value
		case "max_concurrent":
			n, err := strconv.Atoi(value)
			if err != nil {
				return fmt.Errorf("max_concurrent: %w", err)
			}
			cfg.MaxConcurrent = n
		case "command_timeout":
			cfg.CommandTimeout = value
		case "cancel_mode":
			cfg.CancelMode = value
		case "socket_path":
			cfg.SocketPath = value
		default:
			return fmt.Errorf("unknown setting %q", key)
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
		if err := config.Save(cfg); err != nil {
			return err
		}
		pterm.Success.Printfln("%s = %s", key, value)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd, configEngineCmd, configSetCmd)
	rootCmd.AddCommand(configCmd)
}
