// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"fmt"
	"sort"
	"time"

	"timemachine/cli/internal/progress"
	"timemachine/cli/internal/protocol"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var (
	backupDryRun  bool
	backupFollow  bool
	cancelProfile string
	listJSON      bool
)

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Start, cancel and inspect backups",
}

// backupStartCmd runs start-backup. With --follow a live area shows the
// engine's progress reports until the engine call returns.
var backupStartCmd = &cobra.Command{
	Use:   "start <profile-id>",
	Short: "Start a backup of a profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		profileID := args[0]
		ctx := cmd.Context()

		if !backupFollow {
			stop := startInlineSpinner(cmd.ErrOrStderr(), "Starting backup", 100*time.Millisecond)
			id, err := appCtx.Backups.StartBackup(ctx, profileID, backupDryRun)
			stop()
			if err != nil {
				return err
			}
			pterm.Success.Printfln("Backup %s started for profile %s", id, profileID)
			return nil
		}

		tracker := progress.NewTracker()
		progSub := appCtx.Backups.OnProgress(tracker.Update)
		doneSub := appCtx.Backups.OnCompletion(tracker.Complete)
		area := startProgressArea(tracker)

		id, err := appCtx.Backups.StartBackup(ctx, profileID, backupDryRun)

		area.Stop()
		progSub.Close()
		doneSub.Close()
		for _, line := range tracker.Lines("•") {
			fmt.Fprintln(cmd.OutOrStdout(), line)
		}
		if err != nil {
			return err
		}
		if tracker.HasFailures() {
			return fmt.Errorf("backup %s reported a failure", id)
		}
		pterm.Success.Printfln("Backup %s of profile %s finished", id, profileID)
		return nil
	},
}

var backupCancelCmd = &cobra.Command{
	Use:   "cancel [backup-id]",
	Short: "Cancel a running backup",
	Long: `cancel asks the engine to stop a backup. When cancel_mode is "terminate" and
--profile names a backup started by this process, the running engine call is
stopped as well; the backup id may then be omitted.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var backupID string
		if len(args) == 1 {
			backupID = args[0]
		}
		if err := appCtx.Backups.CancelBackup(cmd.Context(), backupID, cancelProfile); err != nil {
			return err
		}
		pterm.Success.Println("Cancellation requested")
		return nil
	},
}

var backupListCmd = &cobra.Command{
	Use:   "list <profile-id>",
	Short: "List the backups of a profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		items, err := appCtx.Backups.ListBackups(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if listJSON {
			return printJSON(cmd.OutOrStdout(), items)
		}
		if len(items) == 0 {
			pterm.Info.Printfln("Profile %s has no backups yet.", args[0])
			return nil
		}
		data := pterm.TableData{{"ID", "Time", "Files", "Size", "Status"}}
		for _, it := range items {
			status := string(it.Status)
			if it.ErrorMessage != "" {
				status += ": " + it.ErrorMessage
			}
			data = append(data, []string{it.ID, it.Timestamp, fmt.Sprint(it.FileCount), progress.FormatBytes(it.Size), status})
		}
		return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
	},
}

var backupDetailsCmd = &cobra.Command{
	Use:   "details <backup-id>",
	Short: "Show what the engine records about a backup",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		details, err := appCtx.Backups.BackupDetails(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), details)
	},
}

var backupBrowseCmd = &cobra.Command{
	Use:   "browse <backup-id> [path]",
	Short: "List files stored in a backup",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := ""
		if len(args) == 2 {
			path = args[1]
		}
		files, err := appCtx.Backups.BrowseBackup(cmd.Context(), args[0], path)
		if err != nil {
			return err
		}
		if listJSON {
			return printJSON(cmd.OutOrStdout(), files)
		}
		sortFiles(files)
		data := pterm.TableData{{"Name", "Size", "Modified"}}
		for _, f := range files {
			name, size := f.Name, progress.FormatBytes(f.Size)
			if f.IsDir() {
				name += "/"
				size = "-"
			}
			data = append(data, []string{name, size, f.Modified})
		}
		return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
	},
}

// sortFiles puts directories first, then orders by name.
func sortFiles(files []protocol.FileItem) {
	sort.SliceStable(files, func(i, j int) bool {
		if files[i].IsDir() != files[j].IsDir() {
			return files[i].IsDir()
		}
		return files[i].Name < files[j].Name
	})
}

func init() {
	backupStartCmd.Flags().BoolVar(&backupDryRun, "dry-run", false, "Report what would be backed up without writing")
	backupStartCmd.Flags().BoolVar(&backupFollow, "follow", false, "Show live progress until the engine finishes")
	backupCancelCmd.Flags().StringVar(&cancelProfile, "profile", "", "Profile whose running backup should be stopped")
	backupListCmd.Flags().BoolVar(&listJSON, "json", false, "Print JSON")
	backupBrowseCmd.Flags().BoolVar(&listJSON, "json", false, "Print JSON")

	backupCmd.AddCommand(backupStartCmd, backupCancelCmd, backupListCmd, backupDetailsCmd, backupBrowseCmd)
	rootCmd.AddCommand(backupCmd)
}
