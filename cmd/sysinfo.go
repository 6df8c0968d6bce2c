// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"fmt"

	"timemachine/cli/internal/progress"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var sysinfoJSON bool

// sysinfoCmd never fails on engine trouble; it shows estimates instead.
var sysinfoCmd = &cobra.Command{
	Use:   "system-info",
	Short: "Show storage, CPU and memory usage reported by the engine",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		info, err := appCtx.Backups.SystemInfo(cmd.Context())
		if err != nil {
			return err
		}
		if sysinfoJSON {
			return printJSON(cmd.OutOrStdout(), info)
		}
		if info.Estimated {
			pterm.Warning.Println("The engine did not report system information; showing estimates.")
		}
		data := pterm.TableData{
			{"Storage total", progress.FormatBytes(info.Storage.Total)},
			{"Storage used", progress.FormatBytes(info.Storage.Used)},
			{"Storage available", progress.FormatBytes(info.Storage.Available)},
			{"CPU", fmt.Sprintf("%.1f%%", info.CPU.Usage)},
			{"Memory", fmt.Sprintf("%.1f%%", info.Memory.UsagePercent)},
			{"Uptime", info.Uptime},
		}
		return pterm.DefaultTable.WithData(data).Render()
	},
}

func init() {
	sysinfoCmd.Flags().BoolVar(&sysinfoJSON, "json", false, "Print JSON")
	rootCmd.AddCommand(sysinfoCmd)
}
