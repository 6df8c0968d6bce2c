package cmd

import (
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var triggerCmd = &cobra.Command{
	Use:   "trigger [profile-id]",
	Short: `Broadcast a "perform backup now" notification`,
	Long: `trigger notifies every subscriber of the bridge that a backup should run now.
It does not start the engine itself; a "timemachine serve --run-triggered"
bridge or the desktop UI acts on it. Use with --remote.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		profileID := ""
		if len(args) == 1 {
			profileID = args[0]
		}
		if !appCtx.Remote() {
			pterm.Warning.Println("Not connected to a bridge; only this process would see the notification.")
		}
		if err := appCtx.Facade.TriggerBackup(cmd.Context(), profileID); err != nil {
			return err
		}
		pterm.Success.Println("Backup requested")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(triggerCmd)
}
