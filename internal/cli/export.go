package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tapedeck/tapedeck/internal/action"
)

// ExportOptions holds flags for the export command.
type ExportOptions struct {
	*RootOptions
	Output string
}

// NewExportCommand creates the export command.
func NewExportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ExportOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "export <recording>",
		Short: "Export a recording as redacted JSON",
		Long: `Export a recording as JSON suitable for sharing.

The output passes through redaction first. Recorded streams never hold
secret values, so redaction is a structural guarantee and the exported
file can be validated and imported elsewhere.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "write to file instead of stdout")

	return cmd
}

func runExport(opts *ExportOptions, ref string, cmd *cobra.Command) error {
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

	data, err := action.Marshal(action.Redact(rec))
	if err != nil {
		return WrapExitError(ExitCommandError, "serialize recording", err)
	}

	if opts.Output == "" {
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	}
	if err := os.WriteFile(opts.Output, data, 0o644); err != nil {
		return WrapExitError(ExitCommandError, "write export", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Exported %q to %s\n", rec.Name, opts.Output)
	return nil
}
