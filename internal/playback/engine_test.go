package playback

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tapedeck/tapedeck/internal/action"
	"github.com/tapedeck/tapedeck/internal/clock"
	"github.com/tapedeck/tapedeck/internal/credential"
	"github.com/tapedeck/tapedeck/internal/screen"
)

// fakeScreen scripts match results and stability outcomes.
type fakeScreen struct {
	mu             sync.Mutex
	matches        []screen.MatchResult
	matchCalls     int
	stabilizeAfter time.Duration
	stabilizeErr   error
	stabilizeCalls int
	captures       int
}

func (f *fakeScreen) Match(ctx context.Context, ref *action.ScreenshotRef, threshold float64) (screen.MatchResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.matchCalls
	f.matchCalls++
	if len(f.matches) == 0 {
		return screen.MatchResult{Score: 1, Found: true, X: ref.X, Y: ref.Y}, nil
	}
	if i >= len(f.matches) {
		i = len(f.matches) - 1
	}
	return f.matches[i], nil
}

func (f *fakeScreen) WaitForStability(ctx context.Context, p screen.StabilityParams) (time.Duration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stabilizeCalls++
	if f.stabilizeErr != nil {
		return 0, f.stabilizeErr
	}
	return f.stabilizeAfter, nil
}

func (f *fakeScreen) CaptureFull(ctx context.Context) (*action.ScreenshotRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.captures++
	return &action.ScreenshotRef{Path: fmt.Sprintf("evidence_%06d.png", f.captures)}, nil
}

type injectedCall struct {
	kind   string
	x, y   int
	button string
	double bool
	text   string
	key    string
	url    string
	dx, dy int
}

// fakeInjector records delivered input. It keeps both an alias and a
// copy of an injected secret so tests can assert the value arrived
// intact and was zeroed afterwards.
type fakeInjector struct {
	mu         sync.Mutex
	calls      []injectedCall
	secretSeen []byte // alias into the engine's buffer
	secretCopy []byte
	failKind   string
}

func (f *fakeInjector) record(c injectedCall) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failKind == c.kind {
		return fmt.Errorf("injection backend rejected %s", c.kind)
	}
	f.calls = append(f.calls, c)
	return nil
}

func (f *fakeInjector) Click(ctx context.Context, x, y int, button string, double bool) error {
	return f.record(injectedCall{kind: "click", x: x, y: y, button: button, double: double})
}

func (f *fakeInjector) TypeText(ctx context.Context, text string) error {
	return f.record(injectedCall{kind: "type", text: text})
}

func (f *fakeInjector) TypeSecret(ctx context.Context, secret []byte) error {
	f.mu.Lock()
	f.secretSeen = secret
	f.secretCopy = append([]byte(nil), secret...)
	f.mu.Unlock()
	return f.record(injectedCall{kind: "secret"})
}

func (f *fakeInjector) KeyTap(ctx context.Context, key string) error {
	return f.record(injectedCall{kind: "key", key: key})
}

func (f *fakeInjector) Scroll(ctx context.Context, x, y, dx, dy int) error {
	return f.record(injectedCall{kind: "scroll", x: x, y: y, dx: dx, dy: dy})
}

func (f *fakeInjector) OpenURL(ctx context.Context, url string) error {
	return f.record(injectedCall{kind: "openurl", url: url})
}

func (f *fakeInjector) kinds() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	for i, c := range f.calls {
		out[i] = c.kind
	}
	return out
}

type fakeCursor struct {
	mu   sync.Mutex
	x, y int
}

func (c *fakeCursor) Position() (int, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.x, c.y
}

func (c *fakeCursor) set(x, y int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.x, c.y = x, y
}

type testRig struct {
	engine *Engine
	scr    *fakeScreen
	inj    *fakeInjector
	cursor *fakeCursor
	store  *credential.MemStore
	clk    *clock.Fake
	sleeps *[]time.Duration
}

func newTestRig(t *testing.T) *testRig {
	t.Helper()
	scr := &fakeScreen{stabilizeAfter: 450 * time.Millisecond}
	inj := &fakeInjector{}
	cursor := &fakeCursor{x: 500, y: 500}
	store := credential.NewMemStore()
	clk := clock.NewFake()

	var mu sync.Mutex
	sleeps := []time.Duration{}
	clk.OnSleep(func(d time.Duration) {
		mu.Lock()
		sleeps = append(sleeps, d)
		mu.Unlock()
	})

	resolver := credential.NewResolver(store, nil)
	gen := action.NewFixedGenerator("run-1", "run-2")
	return &testRig{
		engine: New(scr, inj, cursor, resolver, clk, gen, nil),
		scr:    scr,
		inj:    inj,
		cursor: cursor,
		store:  store,
		clk:    clk,
		sleeps: &sleeps,
	}
}

func baseRecording(actions ...action.RecordedAction) *action.Recording {
	return &action.Recording{
		ID:              "rec-1",
		Name:            "login flow",
		Actions:         actions,
		SpeedMultiplier: 1,
		MaxRetries:      3,
	}
}

// TestPlay_EndToEnd covers the three-action scenario: blind click,
// credential injection, navigation with measured stabilization, at
// double speed.
func TestPlay_EndToEnd(t *testing.T) {
	rig := newTestRig(t)
	ctx := context.Background()
	require.NoError(t, rig.store.Set(ctx, "X", credential.FieldPassword,
		credential.SecretFromString("hunter2")))

	rec := baseRecording(
		action.RecordedAction{ID: "a1", Type: action.TypeMouseClick, OffsetMS: 0, X: 10, Y: 10, Button: "left"},
		action.RecordedAction{ID: "a2", Type: action.TypeCredentialInput, OffsetMS: 500,
			Credential: &action.CredentialRef{Name: "X", Field: "password"}},
		action.RecordedAction{ID: "a3", Type: action.TypeOpenURL, OffsetMS: 900, URL: "http://a"},
	)

	run, err := rig.engine.Play(ctx, rec, WithSpeed(2.0), WithVerify(false))
	require.NoError(t, err)

	assert.Equal(t, StatusCompleted, run.Status)
	assert.Equal(t, 3, run.CompletedActions)
	assert.Zero(t, run.FailedActions)
	require.Len(t, run.Results, 3)
	for _, res := range run.Results {
		assert.Equal(t, OutcomeSucceeded, res.Outcome)
	}

	// Exactly one resolver call, secret delivered intact then zeroed.
	assert.Equal(t, 1, rig.store.Gets)
	assert.Equal(t, []byte("hunter2"), rig.inj.secretCopy)
	assert.Equal(t, make([]byte, 7), rig.inj.secretSeen)

	assert.Equal(t, []string{"click", "secret", "openurl"}, rig.inj.kinds())

	// Inter-action delays are halved by the speed multiplier.
	assert.Equal(t, []time.Duration{250 * time.Millisecond, 200 * time.Millisecond}, *rig.sleeps)

	// The navigation action records its measured settle time.
	assert.Equal(t, int64(450), run.Results[2].StabilizedMS)
	assert.Zero(t, run.Results[0].StabilizedMS)
}

func TestPlay_InvalidRecordingRefused(t *testing.T) {
	rig := newTestRig(t)

	rec := baseRecording(action.RecordedAction{ID: "a1", Type: "teleport", OffsetMS: 0})
	run, err := rig.engine.Play(context.Background(), rec)
	require.Error(t, err)
	assert.Nil(t, run)

	var re *RunError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, ErrCodeInvalidRecording, re.Code)
	assert.Empty(t, rig.inj.kinds())
}

// A target that never matches is tried exactly MaxRetries times, then
// the run fails with evidence.
func TestPlay_RetryBound(t *testing.T) {
	rig := newTestRig(t)
	rig.scr.matches = []screen.MatchResult{{Score: 0.2, Found: false}}

	rec := baseRecording(action.RecordedAction{
		ID: "a1", Type: action.TypeMouseClick, OffsetMS: 0, X: 40, Y: 80, Button: "left",
		Before: &action.ScreenshotRef{Path: "ctx.png", X: 0, Y: 30, W: 100, H: 100},
	})
	rec.VerifyScreenshots = true

	run, err := rig.engine.Play(context.Background(), rec,
		WithMaxRetries(3), WithBackoff(100*time.Millisecond, 30*time.Second))
	require.NoError(t, err)

	assert.Equal(t, StatusFailed, run.Status)
	assert.Equal(t, 3, rig.scr.matchCalls)
	assert.Empty(t, rig.inj.kinds())

	require.Len(t, run.Results, 1)
	res := run.Results[0]
	assert.Equal(t, OutcomeFailed, res.Outcome)
	assert.Equal(t, 2, res.Retries)
	assert.Contains(t, res.Error, "3 attempts")
	require.NotNil(t, res.Screenshot)

	// Backoff between attempts grows exponentially.
	assert.Equal(t, []time.Duration{100 * time.Millisecond, 200 * time.Millisecond}, *rig.sleeps)
}

func TestPlay_BackoffIsCapped(t *testing.T) {
	o := playOptions{backoffBase: time.Second, backoffMax: 30 * time.Second}
	assert.Equal(t, time.Second, o.backoff(1))
	assert.Equal(t, 2*time.Second, o.backoff(2))
	assert.Equal(t, 16*time.Second, o.backoff(5))
	assert.Equal(t, 30*time.Second, o.backoff(6))
	assert.Equal(t, 30*time.Second, o.backoff(20))
}

// TestPlay_DriftedTargetClickedAtMatch verifies the click lands on the
// matched location, not the stale recorded one.
func TestPlay_DriftedTargetClickedAtMatch(t *testing.T) {
	rig := newTestRig(t)
	rig.scr.matches = []screen.MatchResult{
		{Score: 0.3, Found: false},
		{Score: 0.4, Found: false},
		{Score: 0.97, Found: true, X: 77, Y: 55},
	}

	rec := baseRecording(action.RecordedAction{
		ID: "a1", Type: action.TypeMouseClick, OffsetMS: 0, X: 72, Y: 52, Button: "left",
		Before: &action.ScreenshotRef{Path: "ctx.png", X: 60, Y: 40, W: 24, H: 24},
	})
	rec.VerifyScreenshots = true

	run, err := rig.engine.Play(context.Background(), rec, WithMaxRetries(3))
	require.NoError(t, err)

	assert.Equal(t, StatusCompleted, run.Status)
	require.Len(t, run.Results, 1)
	assert.Equal(t, OutcomeSucceeded, run.Results[0].Outcome)
	assert.Equal(t, 2, run.Results[0].Retries)
	assert.InDelta(t, 0.97, run.Results[0].MatchScore, 1e-9)

	require.Len(t, rig.inj.calls, 1)
	assert.Equal(t, 77, rig.inj.calls[0].x)
	assert.Equal(t, 55, rig.inj.calls[0].y)
}

func TestPlay_VerifyDisabledSkipsMatching(t *testing.T) {
	rig := newTestRig(t)

	rec := baseRecording(action.RecordedAction{
		ID: "a1", Type: action.TypeMouseClick, OffsetMS: 0, X: 10, Y: 10, Button: "left",
		Before: &action.ScreenshotRef{Path: "ctx.png", W: 100, H: 100},
	})
	rec.VerifyScreenshots = false

	run, err := rig.engine.Play(context.Background(), rec)
	require.NoError(t, err)

	assert.Equal(t, StatusCompleted, run.Status)
	assert.Zero(t, rig.scr.matchCalls)
}

// TestPlay_AbortBeforeNextAction pins abort promptness: entering the
// abort region during the wait before action 2 aborts the run without
// executing it.
func TestPlay_AbortBeforeNextAction(t *testing.T) {
	rig := newTestRig(t)

	rec := baseRecording(
		action.RecordedAction{ID: "a1", Type: action.TypeMouseClick, OffsetMS: 0, X: 10, Y: 10, Button: "left"},
		action.RecordedAction{ID: "a2", Type: action.TypeMouseClick, OffsetMS: 2000, X: 20, Y: 20, Button: "left"},
	)

	// The 2s sleep is the reconstructed delay before action 2; the
	// watcher's own polls are much shorter.
	rig.clk.OnSleep(func(d time.Duration) {
		if d == 2*time.Second {
			rig.cursor.set(5, 5)
		}
	})

	run, err := rig.engine.Play(context.Background(), rec,
		WithVerify(false), WithAbortRegion(screen.Region{X: 0, Y: 0, W: 10, H: 10}))
	require.NoError(t, err)

	assert.Equal(t, StatusAborted, run.Status)
	assert.Equal(t, []string{"click"}, rig.inj.kinds())
	require.Len(t, run.Results, 2)
	assert.Equal(t, OutcomeSucceeded, run.Results[0].Outcome)
	assert.Equal(t, OutcomeSkipped, run.Results[1].Outcome)
}

func TestPlay_ResolveFailureEndsRun(t *testing.T) {
	rig := newTestRig(t)

	rec := baseRecording(
		action.RecordedAction{ID: "a1", Type: action.TypeCredentialInput, OffsetMS: 0,
			Credential: &action.CredentialRef{Name: "Missing", Field: "password"}},
		action.RecordedAction{ID: "a2", Type: action.TypeKeyPress, OffsetMS: 100, Key: "enter"},
	)

	run, err := rig.engine.Play(context.Background(), rec)
	require.NoError(t, err)

	assert.Equal(t, StatusFailed, run.Status)
	assert.Contains(t, run.Error, string(ErrCodeResolveFailed))
	require.Len(t, run.Results, 2)
	assert.Equal(t, OutcomeFailed, run.Results[0].Outcome)
	assert.Equal(t, OutcomeSkipped, run.Results[1].Outcome)
	assert.Empty(t, rig.inj.kinds())
}

func TestPlay_InjectionFailureEndsRun(t *testing.T) {
	rig := newTestRig(t)
	rig.inj.failKind = "type"

	rec := baseRecording(
		action.RecordedAction{ID: "a1", Type: action.TypeKeyType, OffsetMS: 0, Text: "hello"},
	)

	run, err := rig.engine.Play(context.Background(), rec)
	require.NoError(t, err)

	assert.Equal(t, StatusFailed, run.Status)
	assert.Contains(t, run.Error, string(ErrCodeInjectionFailed))
}

func TestPlay_StabilityTimeoutIsWarningOnly(t *testing.T) {
	rig := newTestRig(t)
	rig.scr.stabilizeErr = screen.ErrStabilityTimeout

	rec := baseRecording(
		action.RecordedAction{ID: "a1", Type: action.TypeOpenURL, OffsetMS: 0, URL: "http://slow"},
	)

	run, err := rig.engine.Play(context.Background(), rec)
	require.NoError(t, err)

	assert.Equal(t, StatusCompleted, run.Status)
	require.Len(t, run.Results, 1)
	assert.Equal(t, OutcomeSucceeded, run.Results[0].Outcome)
	assert.Equal(t, int64(-1), run.Results[0].StabilizedMS)
}

// TestPlay_StabilizationReplacesDelay verifies the reconstructed wait
// after a navigation action is skipped, since settling already
// consumed the dead time.
func TestPlay_StabilizationReplacesDelay(t *testing.T) {
	rig := newTestRig(t)

	rec := baseRecording(
		action.RecordedAction{ID: "a1", Type: action.TypeOpenURL, OffsetMS: 0, URL: "http://a"},
		action.RecordedAction{ID: "a2", Type: action.TypeMouseClick, OffsetMS: 5000, X: 1, Y: 1, Button: "left"},
	)

	run, err := rig.engine.Play(context.Background(), rec, WithVerify(false))
	require.NoError(t, err)

	assert.Equal(t, StatusCompleted, run.Status)
	assert.Empty(t, *rig.sleeps)
}

func TestPlay_StartingURLOpensBeforeFirstAction(t *testing.T) {
	rig := newTestRig(t)

	rec := baseRecording(
		action.RecordedAction{ID: "a1", Type: action.TypeMouseClick, OffsetMS: 1500, X: 1, Y: 1, Button: "left"},
	)
	rec.URL = "https://example.com/login"

	run, err := rig.engine.Play(context.Background(), rec, WithVerify(false))
	require.NoError(t, err)

	assert.Equal(t, StatusCompleted, run.Status)
	assert.Equal(t, []string{"openurl", "click"}, rig.inj.kinds())
	assert.Equal(t, "https://example.com/login", rig.inj.calls[0].url)
	assert.Equal(t, int64(450), run.StartupStabilizedMS)
	// Startup settling replaces the first reconstructed delay.
	assert.Empty(t, *rig.sleeps)
}

func TestPlay_WaitActionScaledBySpeed(t *testing.T) {
	rig := newTestRig(t)

	rec := baseRecording(
		action.RecordedAction{ID: "a1", Type: action.TypeWait, OffsetMS: 0, DurationMS: 1000},
	)

	run, err := rig.engine.Play(context.Background(), rec, WithSpeed(2.0))
	require.NoError(t, err)

	assert.Equal(t, StatusCompleted, run.Status)
	assert.Equal(t, []time.Duration{500 * time.Millisecond}, *rig.sleeps)
}

func TestPlay_LongIdleGapIsCapped(t *testing.T) {
	rig := newTestRig(t)

	rec := baseRecording(
		action.RecordedAction{ID: "a1", Type: action.TypeKeyPress, OffsetMS: 0, Key: "enter"},
		action.RecordedAction{ID: "a2", Type: action.TypeKeyPress, OffsetMS: 600_000, Key: "enter"},
	)

	run, err := rig.engine.Play(context.Background(), rec)
	require.NoError(t, err)

	assert.Equal(t, StatusCompleted, run.Status)
	assert.Equal(t, []time.Duration{DefaultMaxActionDelay}, *rig.sleeps)
}

func TestPlay_ScrollAndScreenshotActions(t *testing.T) {
	rig := newTestRig(t)

	rec := baseRecording(
		action.RecordedAction{ID: "a1", Type: action.TypeMouseScroll, OffsetMS: 0, X: 300, Y: 200, DY: -3},
		action.RecordedAction{ID: "a2", Type: action.TypeScreenshot, OffsetMS: 100},
	)

	run, err := rig.engine.Play(context.Background(), rec)
	require.NoError(t, err)

	assert.Equal(t, StatusCompleted, run.Status)
	assert.Equal(t, []string{"scroll"}, rig.inj.kinds())
	require.Len(t, run.Results, 2)
	assert.NotNil(t, run.Results[1].Screenshot)
}
