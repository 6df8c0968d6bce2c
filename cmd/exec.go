// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"fmt"

	errs "timemachine/cli/internal/errors"
	"timemachine/cli/internal/logging"
	"timemachine/cli/internal/stream"

	"github.com/spf13/cobra"
)

var execStream bool

// execCmd passes a raw argument vector to the engine through the façade.
var execCmd = &cobra.Command{
	Use:   "exec -- <engine arguments...>",
	Short: "Run utm-core with the given arguments",
	Long: `exec runs the engine once with the arguments after "--" and prints what it
wrote. The arguments are handed over as a vector and are never interpreted by
a shell. With --stream, output is printed as it arrives instead of after the
engine exits. The process exits with the engine's exit code.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out, errOut := cmd.OutOrStdout(), cmd.ErrOrStderr()
		f := appCtx.Facade

		if execStream {
			subs := []*stream.Subscription{
				f.OnOutput(func(ev stream.Event) { fmt.Fprint(out, ev.Text) }),
				f.OnError(func(ev stream.Event) { fmt.Fprint(errOut, ev.Text) }),
				f.OnProgress(func(ev stream.Event) { fmt.Fprint(out, ev.Text) }),
				f.OnCompletion(func(ev stream.Event) { fmt.Fprint(out, ev.Text) }),
			}
			defer func() {
				for _, s := range subs {
					s.Close()
				}
			}()
		}

		res, err := f.ExecuteCore(cmd.Context(), args)
		if !execStream {
			fmt.Fprint(out, res.Stdout)
			fmt.Fprint(errOut, res.Stderr)
		}
		if err == nil {
			return nil
		}
		// NonZeroExit already showed its stderr above.
		if !errs.Is(err, errs.NonZeroExit) {
			logging.PresentEngineError(err, "")
		}
		return markReported(err, res.Code())
	},
}

func init() {
	execCmd.Flags().BoolVar(&execStream, "stream", false, "Print engine output as it arrives")
	rootCmd.AddCommand(execCmd)
}
