package cli

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

// NewRunsCommand creates the runs command.
func NewRunsCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "runs <recording>",
		Short:         "Show playback history for a recording",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRuns(rootOpts, args[0], cmd)
		},
	}
}

func runRuns(opts *RootOptions, ref string, cmd *cobra.Command) error {
	cfg, err := opts.Config()
	if err != nil {
		return WrapExitError(ExitCommandError, "configuration", err)
	}
	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	rec, err := resolveRecording(cmd.Context(), st, ref)
	if err != nil {
		return err
	}

	runs, err := st.ListRuns(cmd.Context(), rec.ID)
	if err != nil {
		return WrapExitError(ExitCommandError, "list runs", err)
	}
	if len(runs) == 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "No runs for %q.\n", rec.Name)
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 2, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTATUS\tSTARTED\tDURATION")
	for _, run := range runs {
		duration := "-"
		if !run.CompletedAt.IsZero() {
			duration = run.CompletedAt.Sub(run.StartedAt).Round(time.Millisecond).String()
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			run.ID, run.Status, run.StartedAt.Local().Format(time.DateTime), duration)
	}
	return w.Flush()
}
