package cli

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/tapedeck/tapedeck/internal/action"
	"github.com/tapedeck/tapedeck/internal/clock"
	"github.com/tapedeck/tapedeck/internal/credential"
	"github.com/tapedeck/tapedeck/internal/inject"
	"github.com/tapedeck/tapedeck/internal/playback"
)

// PlayOptions holds flags for the play command.
type PlayOptions struct {
	*RootOptions
	Speed     float64
	Retries   int
	NoVerify  bool
	Threshold float64
	NoAbort   bool
}

// NewPlayCommand creates the play command.
func NewPlayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PlayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "play <recording>",
		Short: "Replay a recording",
		Long: `Replay a recording by ID or name.

Click targets are verified against the screenshots captured at record
time; a drifted target is clicked at its matched position. Move the
cursor into the top-left corner of the screen to abort.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlay(opts, args[0], cmd)
		},
	}

	cmd.Flags().Float64Var(&opts.Speed, "speed", 0, "speed multiplier (0 = recording default)")
	cmd.Flags().IntVar(&opts.Retries, "retries", 0, "verification attempts per click (0 = recording default)")
	cmd.Flags().BoolVar(&opts.NoVerify, "no-verify", false, "skip visual verification")
	cmd.Flags().Float64Var(&opts.Threshold, "threshold", 0, "match threshold override")
	cmd.Flags().BoolVar(&opts.NoAbort, "no-abort", false, "disable the corner abort gesture")

	return cmd
}

func runPlay(opts *PlayOptions, ref string, cmd *cobra.Command) error {
	cfg, err := opts.Config()
	if err != nil {
		return WrapExitError(ExitCommandError, "configuration", err)
	}
	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	rec, err := resolveRecording(ctx, st, ref)
	if err != nil {
		return err
	}

	scr, err := newScreenService(cfg)
	if err != nil {
		return err
	}
	injector := inject.NewRobotgo()
	resolver := credential.NewResolver(credential.NewKeyringStore(""), slog.Default())

	engine := playback.New(scr, injector, injector, resolver, clock.System{},
		action.UUIDv7Generator{}, slog.Default())

	playOpts := []playback.PlayOption{
		playback.WithMatchThreshold(cfg.Playback.MatchThreshold),
		playback.WithBackoff(cfg.Playback.BackoffBase.Std(), cfg.Playback.BackoffMax.Std()),
		playback.WithMaxActionDelay(cfg.Playback.MaxActionDelay.Std()),
		playback.WithStability(cfg.StabilityParams()),
	}
	if opts.Speed > 0 {
		playOpts = append(playOpts, playback.WithSpeed(opts.Speed))
	}
	if opts.Retries > 0 {
		playOpts = append(playOpts, playback.WithMaxRetries(opts.Retries))
	}
	if opts.NoVerify {
		playOpts = append(playOpts, playback.WithVerify(false))
	}
	if opts.Threshold > 0 {
		playOpts = append(playOpts, playback.WithMatchThreshold(opts.Threshold))
	}
	if !opts.NoAbort && cfg.Abort.CornerSize > 0 {
		playOpts = append(playOpts,
			playback.WithAbortRegion(cfg.AbortRegion()),
			playback.WithAbortPollInterval(cfg.Abort.PollInterval.Std()))
	}

	slog.Info("playback starting", "recording", rec.Name, "actions", len(rec.Actions))
	run, err := engine.Play(ctx, rec, playOpts...)
	if err != nil {
		return WrapExitError(ExitCommandError, "playback", err)
	}

	if saveErr := st.AppendRun(ctx, run); saveErr != nil {
		slog.Error("run history not saved", "error", saveErr)
	}

	printRun(cmd, run)
	if run.Status != playback.StatusCompleted {
		return NewExitError(ExitFailure, fmt.Sprintf("run %s: %s", run.ID, run.Status))
	}
	return nil
}

func printRun(cmd *cobra.Command, run *playback.Run) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Run %s: %s (%d completed, %d failed, %s)\n",
		run.ID, run.Status, run.CompletedActions, run.FailedActions,
		run.Duration(time.Now()).Round(time.Millisecond))
	if run.Error != "" {
		fmt.Fprintln(out, "  error:", run.Error)
	}
	for _, res := range run.Results {
		line := fmt.Sprintf("  %-22s %-10s", res.Type, res.Outcome)
		if res.Retries > 0 {
			line += fmt.Sprintf(" retries=%d", res.Retries)
		}
		if res.StabilizedMS > 0 {
			line += fmt.Sprintf(" stabilized=%dms", res.StabilizedMS)
		}
		if res.Error != "" {
			line += " " + res.Error
		}
		fmt.Fprintln(out, line)
	}
}
