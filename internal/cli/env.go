package cli

import (
	"context"
	"errors"

	"github.com/tapedeck/tapedeck/internal/action"
	"github.com/tapedeck/tapedeck/internal/clock"
	"github.com/tapedeck/tapedeck/internal/config"
	"github.com/tapedeck/tapedeck/internal/inject"
	"github.com/tapedeck/tapedeck/internal/screen"
	"github.com/tapedeck/tapedeck/internal/store"
)

// openStore opens the configured database, wrapping failures with a
// command-error exit code.
func openStore(cfg *config.Config) (*store.Store, error) {
	st, err := store.Open(cfg.Database())
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "open database", err)
	}
	return st, nil
}

// newScreenService builds the live screenshot service writing
// artifacts under the configured storage directory.
func newScreenService(cfg *config.Config) (*screen.Service, error) {
	svc, err := screen.NewService(inject.NewDisplayGrabber(), clock.System{}, cfg.ScreenshotDir(),
		screen.WithCaptureTimeout(cfg.Capture.Timeout.Std()))
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "screenshot service", err)
	}
	return svc, nil
}

// resolveRecording loads a recording by ID first, then by name.
func resolveRecording(ctx context.Context, st *store.Store, ref string) (*action.Recording, error) {
	rec, err := st.GetRecording(ctx, ref)
	if err == nil {
		return rec, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, WrapExitError(ExitCommandError, "load recording", err)
	}
	rec, err = st.GetRecordingByName(ctx, ref)
	if errors.Is(err, store.ErrNotFound) {
		return nil, NewExitError(ExitCommandError, "recording not found: "+ref)
	}
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "load recording", err)
	}
	return rec, nil
}
