// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"fmt"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var openURLCmd = &cobra.Command{
	Use:   "open-url <url>",
	Short: "Open an http, https or mailto link in the default application",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ok, err := appCtx.Facade.OpenExternalURL(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("no application opened %s", args[0])
		}
		return nil
	},
}

var selectDirCmd = &cobra.Command{
	Use:   "select-dir",
	Short: "Pick a directory in a desktop dialog and print it",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		dirs, err := appCtx.Facade.SelectDirectory(cmd.Context())
		if err != nil {
			return err
		}
		if len(dirs) == 0 {
			pterm.Info.Println("Selection canceled")
			return nil
		}
		for _, d := range dirs {
			fmt.Fprintln(cmd.OutOrStdout(), d)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(openURLCmd, selectDirCmd)
}
