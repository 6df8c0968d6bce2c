package cmd

import (
	"fmt"
	"strings"

	"timemachine/cli/internal/progress"
	"timemachine/cli/internal/stream"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var (
	watchKinds []string
	watchLive  bool
)

// watchCmd is mostly useful with --remote, where it shows what every other
// client of the bridge causes the engine to print.
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Print engine events as they happen",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		f := appCtx.Facade
		out := cmd.OutOrStdout()
		if watchLive {
			return watchProgress(cmd)
		}
		printer := func(prefix pterm.PrefixPrinter) stream.Handler {
			return func(ev stream.Event) {
				fmt.Fprintln(out, prefix.Sprint(strings.TrimRight(ev.Text, "\r\n")))
			}
		}

		var subs []*stream.Subscription
		for _, name := range watchKinds {
			k, ok := stream.ParseKind(name)
			if !ok {
				return fmt.Errorf("unknown event kind %q (want output, error, progress, completion or trigger)", name)
			}
			switch k {
			case stream.KindStdout:
				subs = append(subs, f.OnOutput(printer(*pterm.Info.WithPrefix(pterm.Prefix{Text: "OUT", Style: pterm.Info.Prefix.Style}))))
			case stream.KindStderr:
				subs = append(subs, f.OnError(printer(*pterm.Error.WithPrefix(pterm.Prefix{Text: "ERR", Style: pterm.Error.Prefix.Style}))))
			case stream.KindProgress:
				subs = append(subs, f.OnProgress(printer(*pterm.Info.WithPrefix(pterm.Prefix{Text: "PROGRESS", Style: pterm.Info.Prefix.Style}))))
			case stream.KindCompletion:
				subs = append(subs, f.OnCompletion(printer(*pterm.Success.WithPrefix(pterm.Prefix{Text: "COMPLETE", Style: pterm.Success.Prefix.Style}))))
			case stream.KindTrigger:
				subs = append(subs, f.OnTriggerBackup(printer(*pterm.Warning.WithPrefix(pterm.Prefix{Text: "TRIGGER", Style: pterm.Warning.Prefix.Style}))))
			}
		}
		defer func() {
			for _, s := range subs {
				s.Close()
			}
		}()

		<-cmd.Context().Done()
		return nil
	},
}

// watchProgress shows every backup the engine reports in one live area.
func watchProgress(cmd *cobra.Command) error {
	f := appCtx.Facade
	tracker := progress.NewTracker()
	apply := func(ev stream.Event) {
		if !progress.Apply(tracker, ev) {
			appCtx.Log.Debug("ignoring event", appCtx.Log.Args("kind", ev.Kind.String(), "request", ev.RequestID))
		}
	}
	progSub := f.OnProgress(apply)
	doneSub := f.OnCompletion(apply)
	area := startProgressArea(tracker)

	<-cmd.Context().Done()

	area.Stop()
	progSub.Close()
	doneSub.Close()
	for _, line := range tracker.Lines("•") {
		fmt.Fprintln(cmd.OutOrStdout(), line)
	}
	if ids := tracker.Snapshot(); len(ids) > 0 {
		appCtx.Log.Info("backups still running", appCtx.Log.Args("requests", ids))
	}
	return nil
}

func init() {
	watchCmd.Flags().BoolVar(&watchLive, "live", false, "Show running backups in a live area instead of printing events")
	watchCmd.Flags().StringSliceVar(&watchKinds, "kinds", []string{"output", "error", "progress", "completion", "trigger"}, "Event kinds to print")
	rootCmd.AddCommand(watchCmd)
}
