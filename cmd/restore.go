// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"fmt"
	"time"

	"timemachine/cli/internal/protocol"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var (
	restoreOpts         protocol.RestoreOptions
	restoreSelectTarget bool
)

var restoreCmd = &cobra.Command{
	Use:   "restore <profile-id>",
	Short: "Restore files from a backup",
	Long: `restore asks the engine to bring back a backup, or only the paths given with
--file, into --target. With --select-target the target directory is picked in
a desktop dialog.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := restoreOpts
		opts.ProfileID = args[0]
		if restoreSelectTarget {
			dirs, err := appCtx.Facade.SelectDirectory(cmd.Context())
			if err != nil {
				return err
			}
			if len(dirs) == 0 {
				pterm.Warning.Println("No directory selected, nothing restored.")
				return nil
			}
			opts.TargetPath = dirs[0]
		}
		if opts.BackupID == "" {
			return fmt.Errorf("--backup is required")
		}
		if opts.TargetPath == "" {
			return fmt.Errorf("--target or --select-target is required")
		}

		stop := startInlineSpinner(cmd.ErrOrStderr(), "Starting restore", 100*time.Millisecond)
		id, err := appCtx.Backups.StartRestore(cmd.Context(), opts)
		stop()
		if err != nil {
			return err
		}
		pterm.Success.Printfln("Restore %s started into %s", id, opts.TargetPath)
		return nil
	},
}

func init() {
	fs := restoreCmd.Flags()
	fs.StringVar(&restoreOpts.BackupID, "backup", "", "Backup to restore from")
	fs.StringVar(&restoreOpts.TargetPath, "target", "", "Directory to restore into")
	fs.StringSliceVar(&restoreOpts.SelectedFiles, "file", nil, "Restore only this path (repeatable)")
	fs.StringVar(&restoreOpts.RestorePoint, "point", "", "Restore point timestamp")
	fs.BoolVar(&restoreSelectTarget, "select-target", false, "Pick the target directory in a dialog")
	rootCmd.AddCommand(restoreCmd)
}
