package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewRemoveCommand creates the rm command.
func NewRemoveCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "rm <recording>",
		Short:         "Delete a recording and its run history",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRemove(rootOpts, args[0], cmd)
		},
	}
}

func runRemove(opts *RootOptions, ref string, cmd *cobra.Command) error {
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
	if err := st.DeleteRecording(cmd.Context(), rec.ID); err != nil {
		return WrapExitError(ExitCommandError, "delete recording", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Deleted %q (%s).\n", rec.Name, rec.ID)
	return nil
}
