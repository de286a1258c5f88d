package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tapedeck/tapedeck/internal/action"
)

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <file>",
		Short: "Validate a recording file",
		Long: `Validate an exported recording JSON file.

Checks structural rules: known action types, unique IDs, non-decreasing
offsets, and credential references that carry a name/field pair and
never a value. All violations are reported, not just the first.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidateFile(args[0], cmd)
		},
	}
}

func runValidateFile(path string, cmd *cobra.Command) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "read recording", err)
	}

	// Decode without the usual validate-on-load so every structural
	// issue can be listed, not just the first.
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	var rec action.Recording
	if err := dec.Decode(&rec); err != nil {
		return WrapExitError(ExitFailure, "parse recording", err)
	}

	issues := action.Validate(&rec)
	if len(issues) == 0 {
		stats := action.Summarize(&rec)
		fmt.Fprintf(cmd.OutOrStdout(), "%s: valid (%d actions)\n", path, stats.Total)
		return nil
	}

	for _, issue := range issues {
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %v\n", path, issue)
	}
	return NewExitError(ExitFailure, fmt.Sprintf("%d validation error(s)", len(issues)))
}
