package cli

import (
	"errors"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/tapedeck/tapedeck/internal/credential"
)

// NewCredCommand creates the cred command group.
func NewCredCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cred",
		Short: "Manage credentials in the OS keyring",
		Long: `Manage the credentials recordings reference.

Secret values live only in the OS keyring. The database tracks which
name/field pairs exist so playback requirements are visible without
touching the keyring.`,
	}

	cmd.AddCommand(newCredSetCommand(rootOpts))
	cmd.AddCommand(newCredRemoveCommand(rootOpts))
	cmd.AddCommand(newCredListCommand(rootOpts))
	return cmd
}

func newCredSetCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "set <name> <field>",
		Short:         "Store a credential value (prompted, not echoed)",
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCredSet(rootOpts, args[0], args[1], cmd)
		},
	}
}

func runCredSet(opts *RootOptions, name, field string, cmd *cobra.Command) error {
	if !credential.ValidField(field) {
		return NewExitError(ExitCommandError,
			fmt.Sprintf("field must be %q or %q", credential.FieldUsername, credential.FieldPassword))
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Value for %s/%s: ", name, field)
	raw, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(cmd.OutOrStdout())
	if err != nil {
		return WrapExitError(ExitCommandError, "read value", err)
	}
	if len(raw) == 0 {
		return NewExitError(ExitCommandError, "empty value")
	}

	sec := credential.NewSecret(raw)
	for i := range raw {
		raw[i] = 0
	}
	defer sec.Clear()

	store := credential.NewKeyringStore("")
	if err := store.Set(cmd.Context(), name, field, sec); err != nil {
		return WrapExitError(ExitCommandError, "store credential", err)
	}

	if err := registerCredentialRef(opts, name, field, cmd); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Stored %s/%s.\n", name, field)
	return nil
}

// registerCredentialRef records the name/field pair in the database so
// `cred ls` sees it. Only metadata, never the value.
func registerCredentialRef(opts *RootOptions, name, field string, cmd *cobra.Command) error {
	cfg, err := opts.Config()
	if err != nil {
		return WrapExitError(ExitCommandError, "configuration", err)
	}
	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	if err := st.StoreCredentialRef(cmd.Context(), name, field, time.Now()); err != nil {
		return WrapExitError(ExitCommandError, "register credential", err)
	}
	return nil
}

func newCredRemoveCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "rm <name>",
		Short:         "Remove a credential from the keyring",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCredRemove(rootOpts, args[0], cmd)
		},
	}
}

func runCredRemove(opts *RootOptions, name string, cmd *cobra.Command) error {
	store := credential.NewKeyringStore("")
	if err := store.Delete(cmd.Context(), name); err != nil && !errors.Is(err, credential.ErrNotFound) {
		return WrapExitError(ExitCommandError, "remove credential", err)
	}

	cfg, err := opts.Config()
	if err != nil {
		return WrapExitError(ExitCommandError, "configuration", err)
	}
	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	if err := st.DeleteCredentialRef(cmd.Context(), name); err != nil {
		return WrapExitError(ExitCommandError, "remove credential", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Removed %s.\n", name)
	return nil
}

func newCredListCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "ls",
		Short:         "List known credential references",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCredList(rootOpts, cmd)
		},
	}
}

func runCredList(opts *RootOptions, cmd *cobra.Command) error {
	cfg, err := opts.Config()
	if err != nil {
		return WrapExitError(ExitCommandError, "configuration", err)
	}
	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	refs, err := st.ListCredentialRefs(cmd.Context())
	if err != nil {
		return WrapExitError(ExitCommandError, "list credentials", err)
	}
	if len(refs) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No credentials.")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 2, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tFIELD\tADDED")
	for _, ref := range refs {
		fmt.Fprintf(w, "%s\t%s\t%s\n", ref.Name, ref.Field,
			ref.CreatedAt.Local().Format(time.DateTime))
	}
	return w.Flush()
}
