package playback

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/tapedeck/tapedeck/internal/action"
	"github.com/tapedeck/tapedeck/internal/clock"
	"github.com/tapedeck/tapedeck/internal/credential"
	"github.com/tapedeck/tapedeck/internal/screen"
)

// ScreenService is what the engine needs from the screenshot service:
// verification matching, stability polling, and evidence capture.
type ScreenService interface {
	Match(ctx context.Context, ref *action.ScreenshotRef, threshold float64) (screen.MatchResult, error)
	WaitForStability(ctx context.Context, p screen.StabilityParams) (time.Duration, error)
	CaptureFull(ctx context.Context) (*action.ScreenshotRef, error)
}

// Injector delivers synthesized input to the OS. A single injection
// call is atomic from the engine's point of view: it is never
// interrupted once started.
type Injector interface {
	Click(ctx context.Context, x, y int, button string, double bool) error
	TypeText(ctx context.Context, text string) error
	// TypeSecret types credential material. The engine clears the
	// secret immediately after this call returns.
	TypeSecret(ctx context.Context, secret []byte) error
	KeyTap(ctx context.Context, key string) error
	Scroll(ctx context.Context, x, y, dx, dy int) error
	OpenURL(ctx context.Context, url string) error
}

// CursorTracker samples the live cursor position for the abort
// watcher.
type CursorTracker interface {
	Position() (x, y int)
}

// Resolver turns a credential reference into a short-lived secret.
// Satisfied by *credential.Resolver.
type Resolver interface {
	Resolve(ctx context.Context, name, field string) (*credential.Secret, error)
}

// Engine replays recordings. Safe for sequential use; a single Engine
// must not run two plays concurrently since they would contend for the
// screen and input devices.
type Engine struct {
	scr      ScreenService
	inj      Injector
	cursor   CursorTracker
	resolver Resolver
	clk      clock.Clock
	gen      action.IDGenerator
	logger   *slog.Logger
}

// New creates an engine. cursor may be nil when no abort region will
// be armed. A nil logger disables logging.
func New(scr ScreenService, inj Injector, cursor CursorTracker, resolver Resolver, clk clock.Clock, gen action.IDGenerator, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Engine{
		scr:      scr,
		inj:      inj,
		cursor:   cursor,
		resolver: resolver,
		clk:      clk,
		gen:      gen,
		logger:   logger,
	}
}

// Play executes rec from start to finish and returns the run record.
// The returned error is non-nil only when the recording is invalid and
// no run was started; execution failures are reported through the
// run's Status and Error fields.
func (e *Engine) Play(ctx context.Context, rec *action.Recording, opts ...PlayOption) (*Run, error) {
	if err := action.Check(rec); err != nil {
		return nil, &RunError{Code: ErrCodeInvalidRecording, Message: err.Error(), Err: err}
	}
	o := newPlayOptions(rec, opts)

	run := &Run{
		ID:            e.gen.NewID(),
		RecordingID:   rec.ID,
		RecordingName: rec.Name,
		Status:        StatusRunning,
		StartedAt:     e.clk.Now().UTC(),
		Results:       make([]ActionResult, 0, len(rec.Actions)),
	}
	e.logger.Info("playback started",
		"run", run.ID, "recording", rec.ID, "actions", len(rec.Actions),
		"speed", o.speed, "verify", o.verify)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var aborted atomic.Bool
	if o.abortRegion != nil && e.cursor != nil {
		go e.watchAbort(ctx, cancel, &o, &aborted)
	}

	e.runActions(ctx, rec, &o, run, &aborted)

	run.CompletedAt = e.clk.Now().UTC()
	e.logger.Info("playback finished",
		"run", run.ID, "status", string(run.Status),
		"completed", run.CompletedActions, "failed", run.FailedActions)
	return run, nil
}

func (e *Engine) runActions(ctx context.Context, rec *action.Recording, o *playOptions, run *Run, aborted *atomic.Bool) {
	// Opening URL phase: bring up the starting page and let it settle
	// before the first action. The settle time replaces the first
	// reconstructed delay.
	skipDelay := false
	if rec.URL != "" {
		if err := e.inj.OpenURL(ctx, rec.URL); err != nil {
			run.Status = StatusFailed
			run.Error = fmt.Sprintf("open starting url: %v", err)
			e.markSkipped(rec, 0, run)
			return
		}
		run.StartupStabilizedMS = e.stabilize(ctx, o)
		skipDelay = true
	}

	prev := int64(0)
	for i := range rec.Actions {
		act := &rec.Actions[i]

		if e.abortRequested(ctx, o, aborted) {
			e.finishAborted(rec, i, run)
			return
		}

		if !skipDelay {
			if d := e.delayFor(act.OffsetMS-prev, o); d > 0 {
				if err := e.clk.Sleep(ctx, d); err != nil {
					e.finishAborted(rec, i, run)
					return
				}
			}
		}
		skipDelay = false
		prev = act.OffsetMS

		// Honor an abort gesture made during the wait before this
		// action executes.
		if e.abortRequested(ctx, o, aborted) {
			e.finishAborted(rec, i, run)
			return
		}

		res := e.playAction(ctx, act, o)
		run.Results = append(run.Results, res)

		if res.Outcome == OutcomeFailed {
			if ctx.Err() != nil || aborted.Load() {
				// The failure was an interrupted wait, not a real one.
				run.Results = run.Results[:len(run.Results)-1]
				e.finishAborted(rec, i, run)
				return
			}
			run.FailedActions++
			run.Status = StatusFailed
			run.Error = res.Error
			e.markSkipped(rec, i+1, run)
			e.logger.Error("playback failed",
				"run", run.ID, "action", act.ID, "error", res.Error)
			return
		}

		run.CompletedActions++
		skipDelay = act.IsNavigation()
	}

	run.Status = StatusCompleted
}

// playAction runs the per-action pipeline: verify, execute, stabilize.
func (e *Engine) playAction(ctx context.Context, act *action.RecordedAction, o *playOptions) ActionResult {
	res := ActionResult{ActionID: act.ID, Type: act.Type}

	x, y := act.X, act.Y
	if o.verify && act.IsClick() && act.Before != nil {
		vx, vy, err := e.verifyTarget(ctx, act, o, &res)
		if err != nil {
			res.Outcome = OutcomeFailed
			res.Error = err.Error()
			// Retain the screen that failed to match as evidence.
			if shot, cerr := e.scr.CaptureFull(ctx); cerr == nil {
				res.Screenshot = shot
			}
			return res
		}
		x, y = vx, vy
	}

	if err := e.execute(ctx, act, x, y, o, &res); err != nil {
		res.Outcome = OutcomeFailed
		res.Error = err.Error()
		return res
	}

	if act.IsNavigation() {
		res.StabilizedMS = e.stabilize(ctx, o)
	}

	res.Outcome = OutcomeSucceeded
	return res
}

// verifyTarget matches the recorded click context against the live
// screen, retrying with exponential backoff up to the retry budget.
// On success it returns the matched location, which may have drifted
// from the recorded coordinates.
func (e *Engine) verifyTarget(ctx context.Context, act *action.RecordedAction, o *playOptions, res *ActionResult) (int, int, error) {
	var lastErr error
	for attempt := 1; ; attempt++ {
		m, err := e.scr.Match(ctx, act.Before, o.matchThreshold)
		if err == nil && m.Found {
			res.MatchScore = m.Score
			res.Retries = attempt - 1
			if m.X != act.X || m.Y != act.Y {
				e.logger.Info("click target drifted",
					"action", act.ID,
					"recorded_x", act.X, "recorded_y", act.Y,
					"matched_x", m.X, "matched_y", m.Y)
			}
			return m.X, m.Y, nil
		}
		if err != nil {
			lastErr = err
			e.logger.Warn("verification capture failed",
				"action", act.ID, "attempt", attempt, "error", err)
		} else {
			res.MatchScore = m.Score
			e.logger.Warn("click target not matched",
				"action", act.ID, "attempt", attempt, "score", m.Score)
		}

		if attempt >= o.maxRetries {
			res.Retries = attempt - 1
			return 0, 0, &RunError{
				Code:     ErrCodeVerificationFailed,
				ActionID: act.ID,
				Message:  fmt.Sprintf("click target not found after %d attempts", attempt),
				Err:      lastErr,
			}
		}
		if err := e.clk.Sleep(ctx, o.backoff(attempt)); err != nil {
			return 0, 0, &RunError{
				Code:     ErrCodeVerificationFailed,
				ActionID: act.ID,
				Message:  "verification interrupted",
				Err:      err,
			}
		}
	}
}

func (e *Engine) execute(ctx context.Context, act *action.RecordedAction, x, y int, o *playOptions, res *ActionResult) error {
	switch act.Type {
	case action.TypeMouseClick:
		return e.injErr(act, e.inj.Click(ctx, x, y, act.Button, false))
	case action.TypeMouseDoubleClick:
		return e.injErr(act, e.inj.Click(ctx, x, y, act.Button, true))
	case action.TypeMouseRightClick:
		return e.injErr(act, e.inj.Click(ctx, x, y, "right", false))
	case action.TypeMouseScroll:
		return e.injErr(act, e.inj.Scroll(ctx, act.X, act.Y, act.DX, act.DY))
	case action.TypeKeyPress:
		return e.injErr(act, e.inj.KeyTap(ctx, act.Key))
	case action.TypeKeyType:
		return e.injErr(act, e.inj.TypeText(ctx, act.Text))
	case action.TypeCredentialInput:
		return e.injectCredential(ctx, act)
	case action.TypeScreenshot:
		shot, err := e.scr.CaptureFull(ctx)
		if err != nil {
			// Recoverable: the action degrades instead of failing.
			e.logger.Warn("step screenshot failed", "action", act.ID, "error", err)
			return nil
		}
		res.Screenshot = shot
		return nil
	case action.TypeWait:
		d := time.Duration(float64(act.DurationMS)/o.speed) * time.Millisecond
		return e.clk.Sleep(ctx, d)
	case action.TypeOpenURL:
		return e.injErr(act, e.inj.OpenURL(ctx, act.URL))
	}
	// Unknown types are rejected by validation before playback.
	return nil
}

func (e *Engine) injErr(act *action.RecordedAction, err error) error {
	if err == nil {
		return nil
	}
	return &RunError{
		Code:     ErrCodeInjectionFailed,
		ActionID: act.ID,
		Message:  fmt.Sprintf("inject %s", act.Type),
		Err:      err,
	}
}

// injectCredential resolves, injects, and clears. The secret is
// cleared before this function returns on success and failure alike;
// no error or log line carries its value.
func (e *Engine) injectCredential(ctx context.Context, act *action.RecordedAction) error {
	sec, err := e.resolver.Resolve(ctx, act.Credential.Name, act.Credential.Field)
	if err != nil {
		return &RunError{
			Code:     ErrCodeResolveFailed,
			ActionID: act.ID,
			Message:  fmt.Sprintf("credential %s/%s", act.Credential.Name, act.Credential.Field),
			Err:      err,
		}
	}

	ierr := e.inj.TypeSecret(ctx, sec.Bytes())
	sec.Clear()

	if ierr != nil {
		return &RunError{
			Code:     ErrCodeInjectionFailed,
			ActionID: act.ID,
			Message:  "credential injection",
			Err:      ierr,
		}
	}
	return nil
}

// stabilize waits for the screen to settle after navigation. A timeout
// is a warning, not a failure: slow or animated pages are legitimate.
// Returns the measured settle time in milliseconds, or -1 on timeout.
func (e *Engine) stabilize(ctx context.Context, o *playOptions) int64 {
	d, err := e.scr.WaitForStability(ctx, o.stability)
	if err != nil {
		e.logger.Warn("screen did not stabilize", "error", err)
		return -1
	}
	e.logger.Debug("screen stabilized", "elapsed", d)
	return d.Milliseconds()
}

// delayFor reconstructs the wait before an action from the recorded
// offset delta, scaled by speed and capped.
func (e *Engine) delayFor(deltaMS int64, o *playOptions) time.Duration {
	if deltaMS <= 0 {
		return 0
	}
	d := time.Duration(float64(deltaMS)/o.speed) * time.Millisecond
	if d > o.maxActionDelay {
		d = o.maxActionDelay
	}
	return d
}

// abortRequested checks the cooperative abort signal and additionally
// samples the cursor directly, so a gesture made during the preceding
// wait is seen even if the watcher has not polled yet.
func (e *Engine) abortRequested(ctx context.Context, o *playOptions, aborted *atomic.Bool) bool {
	if aborted.Load() || ctx.Err() != nil {
		return true
	}
	if o.abortRegion != nil && e.cursor != nil {
		if x, y := e.cursor.Position(); o.abortRegion.Contains(x, y) {
			aborted.Store(true)
			return true
		}
	}
	return false
}

func (e *Engine) finishAborted(rec *action.Recording, next int, run *Run) {
	run.Status = StatusAborted
	run.Error = "aborted by user"
	e.markSkipped(rec, next, run)
	e.logger.Info("playback aborted", "run", run.ID, "next_action", next)
}

func (e *Engine) markSkipped(rec *action.Recording, from int, run *Run) {
	for i := from; i < len(rec.Actions); i++ {
		run.Results = append(run.Results, ActionResult{
			ActionID: rec.Actions[i].ID,
			Type:     rec.Actions[i].Type,
			Outcome:  OutcomeSkipped,
		})
	}
}

// watchAbort samples the cursor on a fixed interval and cancels the
// run when it enters the abort region. An in-flight injection is
// never interrupted; the main loop observes the signal at its next
// suspension point.
func (e *Engine) watchAbort(ctx context.Context, cancel context.CancelFunc, o *playOptions, aborted *atomic.Bool) {
	for {
		if x, y := e.cursor.Position(); o.abortRegion.Contains(x, y) {
			e.logger.Info("abort region entered", "x", x, "y", y)
			aborted.Store(true)
			cancel()
			return
		}
		if err := e.clk.Sleep(ctx, o.abortPoll); err != nil {
			return
		}
	}
}
