// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"timemachine/cli/internal/protocol"
	"timemachine/cli/internal/terminal"

	"github.com/google/uuid"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var (
	profilesRefresh bool
	profileFile     string
	profileFlags    protocol.Profile
	profileSelect   bool
	deleteYes       bool
)

var profilesCmd = &cobra.Command{
	Use:   "profiles",
	Short: "List, save and delete backup profiles",
}

var profilesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the profiles the engine knows",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		stop := startInlineSpinner(cmd.ErrOrStderr(), "Loading profiles", 100*time.Millisecond)
		var names []string
		var err error
		if profilesRefresh {
			names, err = appCtx.Backups.RefreshProfiles(cmd.Context())
		} else {
			names, err = appCtx.Backups.ListProfiles(cmd.Context())
		}
		stop()
		if err != nil {
			return err
		}
		if len(names) == 0 {
			pterm.Info.Println("No backup profiles yet. Create one with 'timemachine profiles save'.")
			return nil
		}
		return bulletList(names)
	},
}

var profilesSaveCmd = &cobra.Command{
	Use:   "save",
	Short: "Create or update a profile",
	Long: `save writes a profile to the engine. The profile is read from --file (use
"-" for stdin) or built from flags. A missing id gets a fresh one. With
--select-source the source directory is picked in a desktop dialog.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		p := profileFlags
		if profileFile != "" {
			var err error
			if p, err = readProfile(cmd.InOrStdin(), profileFile); err != nil {
				return err
			}
		}
		if profileSelect {
			dirs, err := appCtx.Facade.SelectDirectory(cmd.Context())
			if err != nil {
				return err
			}
			if len(dirs) == 0 {
				pterm.Warning.Println("No directory selected, profile not saved.")
				return nil
			}
			p.SourcePath = dirs[0]
		}
		if p.ID == "" {
			p.ID = uuid.NewString()
		}
		if p.Name == "" {
			return fmt.Errorf("profile name is required")
		}
		if p.SourcePath == "" || p.DestinationPath == "" {
			return fmt.Errorf("profile needs both a source and a destination path")
		}
		if err := appCtx.Backups.SaveProfile(cmd.Context(), p); err != nil {
			return err
		}
		pterm.Success.Printfln("Saved profile %s (%s)", p.Name, p.ID)
		return nil
	},
}

var profilesDeleteCmd = &cobra.Command{
	Use:   "delete <profile-id>",
	Short: "Delete a profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id := args[0]
		if !deleteYes {
			if !terminal.IsInteractive() {
				return fmt.Errorf("refusing to delete %s without --yes on a non-interactive terminal", id)
			}
			if !terminal.Confirm(cmd.InOrStdin(), cmd.OutOrStdout(), fmt.Sprintf("Delete profile %s?", id), true) {
				pterm.Info.Println("Nothing deleted.")
				return nil
			}
		}
		if err := appCtx.Backups.DeleteProfile(cmd.Context(), id); err != nil {
			return err
		}
		pterm.Success.Printfln("Deleted profile %s", id)
		return nil
	},
}

func readProfile(stdin io.Reader, name string) (protocol.Profile, error) {
	var r io.Reader = stdin
	if name != "-" {
		f, err := os.Open(name)
		if err != nil {
			return protocol.Profile{}, err
		}
		defer f.Close()
		r = f
	}
	var p protocol.Profile
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&p); err != nil {
		return protocol.Profile{}, fmt.Errorf("read profile %s: %w", name, err)
	}
	return p, nil
}

func init() {
	profilesListCmd.Flags().BoolVar(&profilesRefresh, "refresh", false, "Bypass the cached list")

	fs := profilesSaveCmd.Flags()
	fs.StringVarP(&profileFile, "file", "f", "", "Read the profile as JSON from a file, or - for stdin")
	fs.BoolVar(&profileSelect, "select-source", false, "Pick the source directory in a dialog")
	fs.StringVar(&profileFlags.ID, "id", "", "Profile id (generated when empty)")
	fs.StringVar(&profileFlags.Name, "name", "", "Profile name")
	fs.StringVar(&profileFlags.SourcePath, "source", "", "Directory to back up")
	fs.StringVar(&profileFlags.DestinationPath, "destination", "", "Where backups are stored")
	fs.StringSliceVar(&profileFlags.ExcludePaths, "exclude", nil, "Paths to skip (repeatable)")
	fs.IntVar(&profileFlags.CompressionLevel, "compression", 6, "Compression level 0-9")
	fs.BoolVar(&profileFlags.EncryptionEnabled, "encrypt", false, "Encrypt backups")
	fs.BoolVar(&profileFlags.ScheduleEnabled, "schedule", false, "Run on a schedule")
	fs.StringVar(&profileFlags.ScheduleFrequency, "frequency", "daily", "Schedule frequency")
	fs.StringVar(&profileFlags.ScheduleTime, "time", "02:00", "Schedule time of day")
	fs.IntVar(&profileFlags.Retention.KeepDaily, "keep-daily", 7, "Daily snapshots to keep")
	fs.IntVar(&profileFlags.Retention.KeepWeekly, "keep-weekly", 4, "Weekly snapshots to keep")
	fs.IntVar(&profileFlags.Retention.KeepMonthly, "keep-monthly", 12, "Monthly snapshots to keep")

	profilesDeleteCmd.Flags().BoolVarP(&deleteYes, "yes", "y", false, "Do not ask for confirmation")

	profilesCmd.AddCommand(profilesListCmd, profilesSaveCmd, profilesDeleteCmd)
	rootCmd.AddCommand(profilesCmd)
}
