package recorder

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/tapedeck/tapedeck/internal/action"
	"github.com/tapedeck/tapedeck/internal/clock"
	"github.com/tapedeck/tapedeck/internal/screen"
)

// ScreenService is the capture capability the recorder needs from the
// screenshot service.
type ScreenService interface {
	CaptureFull(ctx context.Context) (*action.ScreenshotRef, error)
	CaptureAround(ctx context.Context, cx, cy, size int) (*action.ScreenshotRef, error)
}

// State names a recorder session state.
type State string

const (
	StateIdle      State = "idle"
	StateRecording State = "recording"
	StatePaused    State = "paused"
	StateStopped   State = "stopped"
)

// Options configure a recording session.
type Options struct {
	// CaptureScreenshots enables before/after click-context captures.
	CaptureScreenshots bool

	// RegionSize is the side length in pixels of the click-context
	// region.
	RegionSize int

	// TextFlushAfter is the idle gap after which a buffered keystroke
	// run is flushed as its own action.
	TextFlushAfter time.Duration

	// ScrollDebounce is the idle gap after which accumulated wheel
	// increments flush as one scroll action.
	ScrollDebounce time.Duration

	// ExcludeRect suppresses recording of clicks inside it, used to
	// keep interactions with a floating recorder toolbar out of the
	// action stream.
	ExcludeRect *screen.Region
}

// DefaultOptions returns the capture defaults.
func DefaultOptions() Options {
	return Options{
		CaptureScreenshots: true,
		RegionSize:         100,
		TextFlushAfter:     500 * time.Millisecond,
		ScrollDebounce:     300 * time.Millisecond,
	}
}

// Recorder converts raw input events into an ordered action sequence
// under a single recording session. A Recorder is single-use: once
// stopped it cannot be restarted.
type Recorder struct {
	source EventSource
	caps   ScreenService
	clk    clock.Clock
	gen    action.IDGenerator
	logger *slog.Logger
	opts   Options

	mu     sync.Mutex
	state  State
	rec    *action.Recording
	origin time.Time
	done   chan struct{}

	// Keystroke run accumulator.
	textBuf   []rune
	textStart int64
	lastKeyAt int64

	// Scroll accumulator.
	scrollPending      bool
	scrollDX, scrollDY int
	scrollX, scrollY   int
	scrollStart        int64
	lastScrollAt       int64

	// One-shot credential arming. The next keystroke run becomes a
	// single credential_input and its raw keys are discarded.
	armed *action.CredentialRef
}

// New creates an idle recorder. A nil logger disables logging.
func New(source EventSource, caps ScreenService, clk clock.Clock, gen action.IDGenerator, logger *slog.Logger, opts Options) *Recorder {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if opts.RegionSize <= 0 {
		opts.RegionSize = DefaultOptions().RegionSize
	}
	if opts.TextFlushAfter <= 0 {
		opts.TextFlushAfter = DefaultOptions().TextFlushAfter
	}
	if opts.ScrollDebounce <= 0 {
		opts.ScrollDebounce = DefaultOptions().ScrollDebounce
	}
	return &Recorder{
		source: source,
		caps:   caps,
		clk:    clk,
		gen:    gen,
		logger: logger,
		opts:   opts,
		state:  StateIdle,
	}
}

// State returns the current session state.
func (r *Recorder) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Start opens the event subscription and begins a session. It fails
// with a PermissionError when the OS input hook cannot be established,
// in which case no session is created.
func (r *Recorder) Start(ctx context.Context, name, url string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != StateIdle {
		return fmt.Errorf("recorder is %s, want idle", r.state)
	}

	events, err := r.source.Subscribe(ctx)
	if err != nil {
		return &PermissionError{Err: err}
	}

	now := r.clk.Now()
	r.rec = &action.Recording{
		ID:                 r.gen.NewID(),
		Name:               name,
		URL:                url,
		Actions:            []action.RecordedAction{},
		CreatedAt:          now.UTC(),
		UpdatedAt:          now.UTC(),
		CaptureScreenshots: r.opts.CaptureScreenshots,
		RegionSize:         r.opts.RegionSize,
		SpeedMultiplier:    1,
		VerifyScreenshots:  true,
		MaxRetries:         3,
	}
	r.origin = now
	r.state = StateRecording
	r.done = make(chan struct{})

	go r.loop(ctx, events)

	r.logger.Info("recording started", "recording", r.rec.ID, "name", name)
	return nil
}

// Pause suspends event conversion. Pending buffers flush first so a
// half-typed run is not silently merged with post-resume input.
func (r *Recorder) Pause() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != StateRecording {
		return
	}
	r.flushPending()
	r.state = StatePaused
	r.logger.Info("recording paused", "recording", r.rec.ID)
}

// Resume continues a paused session.
func (r *Recorder) Resume() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != StatePaused {
		return
	}
	r.state = StateRecording
	r.logger.Info("recording resumed", "recording", r.rec.ID)
}

// Stop closes the subscription, flushes pending buffers, and finalizes
// the recording. The subscription is released on every exit path.
func (r *Recorder) Stop() (*action.Recording, error) {
	r.mu.Lock()
	if r.state != StateRecording && r.state != StatePaused {
		r.mu.Unlock()
		return nil, fmt.Errorf("recorder is %s, nothing to stop", r.state)
	}
	r.mu.Unlock()

	cerr := r.source.Close()
	<-r.done

	r.mu.Lock()
	defer r.mu.Unlock()

	r.flushPending()
	r.armed = nil
	r.state = StateStopped
	r.rec.Touch(r.clk.Now())

	if cerr != nil {
		r.logger.Warn("event subscription close failed", "error", cerr)
	}
	r.logger.Info("recording stopped",
		"recording", r.rec.ID, "actions", len(r.rec.Actions))
	return r.rec, cerr
}

// MarkCredential arms one-shot credential capture: the next keystroke
// run is recorded as a single credential reference and its raw keys are
// discarded without reaching the action stream or any log. Arming is
// consumed by exactly one run and must be re-armed per credential.
func (r *Recorder) MarkCredential(name, field string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != StateRecording && r.state != StatePaused {
		return fmt.Errorf("recorder is %s, no active session", r.state)
	}
	if name == "" {
		return fmt.Errorf("credential name is required")
	}
	if field != action.CredentialFieldUsername && field != action.CredentialFieldPassword {
		return fmt.Errorf("unknown credential field %q", field)
	}

	r.flushPending()
	r.armed = &action.CredentialRef{Name: name, Field: field}
	r.logger.Info("credential capture armed", "credential", name, "field", field)
	return nil
}

// ManualScreenshot appends a screenshot action with a freshly captured
// full-screen reference, independent of any click.
func (r *Recorder) ManualScreenshot(ctx context.Context) (*action.ScreenshotRef, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != StateRecording {
		return nil, fmt.Errorf("recorder is %s, not recording", r.state)
	}
	r.flushPending()

	ref, err := r.caps.CaptureFull(ctx)
	if err != nil {
		return nil, err
	}
	r.append(action.RecordedAction{
		ID:       r.gen.NewID(),
		Type:     action.TypeScreenshot,
		OffsetMS: r.offset(),
		Ref:      ref,
	})
	return ref, nil
}

// AddWait appends an explicit wait action.
func (r *Recorder) AddWait(d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != StateRecording {
		return
	}
	r.flushPending()
	r.append(action.RecordedAction{
		ID:         r.gen.NewID(),
		Type:       action.TypeWait,
		OffsetMS:   r.offset(),
		DurationMS: d.Milliseconds(),
	})
}

// AddOpenURL appends an open_url action.
func (r *Recorder) AddOpenURL(url string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != StateRecording {
		return
	}
	r.flushPending()
	r.append(action.RecordedAction{
		ID:       r.gen.NewID(),
		Type:     action.TypeOpenURL,
		OffsetMS: r.offset(),
		URL:      url,
	})
}

// Snapshot returns a deep copy of the recording so far, for live
// progress views. Nil before Start.
func (r *Recorder) Snapshot() *action.Recording {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.rec == nil {
		return nil
	}
	return r.rec.Clone()
}

func (r *Recorder) loop(ctx context.Context, events <-chan Event) {
	defer close(r.done)
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			r.handle(ctx, ev)
		}
	}
}

func (r *Recorder) handle(ctx context.Context, ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != StateRecording {
		return
	}

	switch ev.Kind {
	case EventClick:
		r.handleClick(ctx, ev)
	case EventScroll:
		r.handleScroll(ev)
	case EventKey:
		r.handleKey(ev)
	}
}

// offset is milliseconds since session start. Callers hold r.mu.
func (r *Recorder) offset() int64 {
	return r.clk.Now().Sub(r.origin).Milliseconds()
}

func (r *Recorder) handleClick(ctx context.Context, ev Event) {
	if re := r.opts.ExcludeRect; re != nil && re.Contains(ev.X, ev.Y) {
		return
	}

	r.flushPending()

	typ := action.TypeMouseClick
	button := ev.Button
	switch {
	case ev.Double:
		typ = action.TypeMouseDoubleClick
	case ev.Button == "right":
		typ = action.TypeMouseRightClick
	}
	if button == "" {
		button = "left"
	}

	act := action.RecordedAction{
		ID:       r.gen.NewID(),
		Type:     typ,
		OffsetMS: r.offset(),
		X:        ev.X,
		Y:        ev.Y,
		Button:   button,
	}

	if r.rec.CaptureScreenshots {
		act.Before = r.captureContext(ctx, ev.X, ev.Y, "before")
		act.After = r.captureContext(ctx, ev.X, ev.Y, "after")
	}

	r.append(act)
}

// captureContext grabs the click-context region. A capture failure
// degrades the action (nil ref) instead of aborting the recording.
func (r *Recorder) captureContext(ctx context.Context, x, y int, phase string) *action.ScreenshotRef {
	ref, err := r.caps.CaptureAround(ctx, x, y, r.rec.RegionSize)
	if err != nil {
		r.logger.Warn("click context capture failed, degrading action",
			"phase", phase, "x", x, "y", y, "error", err)
		return nil
	}
	return ref
}

func (r *Recorder) handleScroll(ev Event) {
	now := r.offset()

	if r.scrollPending && now-r.lastScrollAt > r.opts.ScrollDebounce.Milliseconds() {
		r.flushScroll()
	}
	if !r.scrollPending {
		r.scrollPending = true
		r.scrollStart = now
		r.scrollDX, r.scrollDY = 0, 0
	}
	r.scrollDX += ev.DX
	r.scrollDY += ev.DY
	r.scrollX, r.scrollY = ev.X, ev.Y
	r.lastScrollAt = now
}

func (r *Recorder) handleKey(ev Event) {
	if ev.Char != 0 {
		r.bufferRune(ev.Char)
		return
	}

	switch ev.Key {
	case "space":
		r.bufferRune(' ')
	case "enter", "return", "tab", "escape":
		r.flushPending()
		r.append(action.RecordedAction{
			ID:       r.gen.NewID(),
			Type:     action.TypeKeyPress,
			OffsetMS: r.offset(),
			Key:      ev.Key,
		})
	case "backspace":
		if len(r.textBuf) > 0 {
			r.textBuf = r.textBuf[:len(r.textBuf)-1]
			return
		}
		r.append(action.RecordedAction{
			ID:       r.gen.NewID(),
			Type:     action.TypeKeyPress,
			OffsetMS: r.offset(),
			Key:      ev.Key,
		})
	default:
		// Modifier and function keys are not recorded standalone.
		r.logger.Debug("ignoring special key", "key", ev.Key)
	}
}

func (r *Recorder) bufferRune(c rune) {
	now := r.offset()
	if len(r.textBuf) > 0 && now-r.lastKeyAt > r.opts.TextFlushAfter.Milliseconds() {
		r.flushText()
	}
	if len(r.textBuf) == 0 {
		r.textStart = now
	}
	r.textBuf = append(r.textBuf, c)
	r.lastKeyAt = now
}

// flushPending flushes both accumulators, earlier-started first, so the
// appended offsets stay in order.
func (r *Recorder) flushPending() {
	if len(r.textBuf) > 0 && r.scrollPending {
		if r.textStart <= r.scrollStart {
			r.flushText()
			r.flushScroll()
		} else {
			r.flushScroll()
			r.flushText()
		}
		return
	}
	r.flushText()
	r.flushScroll()
}

// flushText converts the buffered keystroke run into one action. An
// armed credential reference consumes the run: the raw keys are zeroed
// and discarded, and a single credential_input takes their place.
func (r *Recorder) flushText() {
	if len(r.textBuf) == 0 {
		return
	}

	if r.armed != nil {
		cred := *r.armed
		r.armed = nil
		for i := range r.textBuf {
			r.textBuf[i] = 0
		}
		r.textBuf = r.textBuf[:0]
		r.append(action.RecordedAction{
			ID:         r.gen.NewID(),
			Type:       action.TypeCredentialInput,
			OffsetMS:   r.textStart,
			Credential: &cred,
		})
		r.logger.Info("credential reference recorded",
			"credential", cred.Name, "field", cred.Field)
		return
	}

	text := string(r.textBuf)
	r.textBuf = r.textBuf[:0]
	r.append(action.RecordedAction{
		ID:       r.gen.NewID(),
		Type:     action.TypeKeyType,
		OffsetMS: r.textStart,
		Text:     text,
	})
}

func (r *Recorder) flushScroll() {
	if !r.scrollPending {
		return
	}
	r.append(action.RecordedAction{
		ID:       r.gen.NewID(),
		Type:     action.TypeMouseScroll,
		OffsetMS: r.scrollStart,
		X:        r.scrollX,
		Y:        r.scrollY,
		DX:       r.scrollDX,
		DY:       r.scrollDY,
	})
	r.scrollPending = false
	r.scrollDX, r.scrollDY = 0, 0
}

// append adds act to the sequence, clamping the offset so the sequence
// stays non-decreasing when a buffered run flushes after a later event.
func (r *Recorder) append(act action.RecordedAction) {
	if n := len(r.rec.Actions); n > 0 && act.OffsetMS < r.rec.Actions[n-1].OffsetMS {
		act.OffsetMS = r.rec.Actions[n-1].OffsetMS
	}
	r.rec.Actions = append(r.rec.Actions, act)
	r.logger.Debug("action recorded",
		"type", string(act.Type), "offset_ms", act.OffsetMS)
}
