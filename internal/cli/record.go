package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/tapedeck/tapedeck/internal/action"
	"github.com/tapedeck/tapedeck/internal/clock"
	"github.com/tapedeck/tapedeck/internal/inject"
	"github.com/tapedeck/tapedeck/internal/recorder"
	"github.com/tapedeck/tapedeck/internal/screen"
)

// RecordOptions holds flags for the record command.
type RecordOptions struct {
	*RootOptions
	URL           string
	NoScreenshots bool
	Exclude       string
}

// NewRecordCommand creates the record command.
func NewRecordCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RecordOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "record <name>",
		Short: "Record a new desktop session",
		Long: `Record desktop interactions into a named recording.

While recording, control the session from this terminal:

  cred <name> <field>  mark the next typed text as a credential reference
  shot                 take a manual screenshot
  wait <duration>      insert an explicit wait (e.g. wait 2s)
  url <url>            insert an open-url action
  pause / resume       suspend or resume event capture
  stop                 finish and save the recording

The credential value itself is never stored; only the name/field pair
is recorded.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRecord(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.URL, "url", "", "starting URL opened before playback")
	cmd.Flags().BoolVar(&opts.NoScreenshots, "no-screenshots", false, "disable click context capture")
	cmd.Flags().StringVar(&opts.Exclude, "exclude", "", "region to ignore clicks in, as x,y,w,h")

	return cmd
}

func runRecord(opts *RecordOptions, name string, cmd *cobra.Command) error {
	cfg, err := opts.Config()
	if err != nil {
		return WrapExitError(ExitCommandError, "configuration", err)
	}
	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	scr, err := newScreenService(cfg)
	if err != nil {
		return err
	}

	recOpts := recorder.DefaultOptions()
	recOpts.CaptureScreenshots = cfg.Capture.Screenshots && !opts.NoScreenshots
	recOpts.RegionSize = cfg.Capture.RegionSize
	if opts.Exclude != "" {
		region, err := parseRegion(opts.Exclude)
		if err != nil {
			return WrapExitError(ExitCommandError, "parse --exclude", err)
		}
		recOpts.ExcludeRect = &region
	}

	rec := recorder.New(inject.NewHookSource(), scr, clock.System{},
		action.UUIDv7Generator{}, slog.Default(), recOpts)

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := rec.Start(ctx, name, opts.URL); err != nil {
		var perm *recorder.PermissionError
		if errors.As(err, &perm) {
			return WrapExitError(ExitCommandError,
				"cannot capture input events; grant accessibility permission and retry", err)
		}
		return WrapExitError(ExitCommandError, "start recording", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Recording %q. Type 'stop' to finish, 'help' for controls.\n", name)
	controlLoop(ctx, rec, cmd)

	recording, err := rec.Stop()
	if err != nil && recording == nil {
		return WrapExitError(ExitCommandError, "stop recording", err)
	}
	if err != nil {
		slog.Warn("event source close failed", "error", err)
	}

	if err := st.SaveRecording(context.Background(), recording); err != nil {
		return WrapExitError(ExitCommandError, "save recording", err)
	}

	stats := action.Summarize(recording)
	fmt.Fprintf(cmd.OutOrStdout(),
		"Saved %q (%s): %d actions, %d clicks, %d keystrokes, %d credentials, %s\n",
		recording.Name, recording.ID, stats.Total, stats.Clicks, stats.Keystrokes,
		stats.Credentials, (time.Duration(stats.DurationMS) * time.Millisecond).Round(time.Millisecond))
	return nil
}

// controlLoop reads session commands from stdin until stop, EOF, or
// interrupt.
func controlLoop(ctx context.Context, rec *recorder.Recorder, cmd *cobra.Command) {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(cmd.InOrStdin())
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	out := cmd.OutOrStdout()
	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			fields := strings.Fields(line)
			if len(fields) == 0 {
				continue
			}
			switch fields[0] {
			case "stop":
				return
			case "pause":
				rec.Pause()
				fmt.Fprintln(out, "paused")
			case "resume":
				rec.Resume()
				fmt.Fprintln(out, "resumed")
			case "cred":
				if len(fields) != 3 {
					fmt.Fprintln(out, "usage: cred <name> <field>")
					continue
				}
				if err := rec.MarkCredential(fields[1], fields[2]); err != nil {
					fmt.Fprintln(out, "cred:", err)
					continue
				}
				fmt.Fprintf(out, "next typed text records as credential %s/%s\n", fields[1], fields[2])
			case "shot":
				if _, err := rec.ManualScreenshot(ctx); err != nil {
					fmt.Fprintln(out, "shot:", err)
					continue
				}
				fmt.Fprintln(out, "screenshot taken")
			case "wait":
				if len(fields) != 2 {
					fmt.Fprintln(out, "usage: wait <duration>")
					continue
				}
				d, err := time.ParseDuration(fields[1])
				if err != nil {
					fmt.Fprintln(out, "wait:", err)
					continue
				}
				rec.AddWait(d)
				fmt.Fprintf(out, "wait %s added\n", d)
			case "url":
				if len(fields) != 2 {
					fmt.Fprintln(out, "usage: url <url>")
					continue
				}
				rec.AddOpenURL(fields[1])
				fmt.Fprintln(out, "open-url added")
			case "help":
				fmt.Fprintln(out, "commands: cred <name> <field> | shot | wait <dur> | url <u> | pause | resume | stop")
			default:
				fmt.Fprintf(out, "unknown command %q, try 'help'\n", fields[0])
			}
		}
	}
}

func parseRegion(s string) (screen.Region, error) {
	var r screen.Region
	n, err := fmt.Sscanf(s, "%d,%d,%d,%d", &r.X, &r.Y, &r.W, &r.H)
	if err != nil || n != 4 {
		return screen.Region{}, fmt.Errorf("expected x,y,w,h, got %q", s)
	}
	return r, nil
}
