package inject

import (
	"context"
	"fmt"
	"sync"
	"unicode"

	hook "github.com/robotn/gohook"

	"github.com/tapedeck/tapedeck/internal/recorder"
)

// buttonNames maps gohook button codes onto recorded button names.
var buttonNames = map[uint16]string{
	1: "left",
	2: "right",
	3: "middle",
}

// HookSource subscribes to global input events through the gohook
// low-level hook. It implements the recorder's EventSource.
//
// The OS hook is process-wide state: at most one HookSource may be
// subscribed at a time, matching the recorder/playback mutual
// exclusion.
type HookSource struct {
	mu     sync.Mutex
	active bool
}

// NewHookSource returns an unsubscribed source.
func NewHookSource() *HookSource { return &HookSource{} }

// Subscribe installs the global hook and starts translating raw events.
// The returned channel closes when Close is called or ctx ends.
func (s *HookSource) Subscribe(ctx context.Context) (<-chan recorder.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.active {
		return nil, fmt.Errorf("input hook already subscribed")
	}

	raw := hook.Start()
	if raw == nil {
		return nil, fmt.Errorf("global input hook could not be installed")
	}
	s.active = true

	out := make(chan recorder.Event, 128)
	go s.translate(ctx, raw, out)
	return out, nil
}

// Close removes the OS hook, which drains and closes the subscription
// channel.
func (s *HookSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.active {
		return nil
	}
	hook.End()
	s.active = false
	return nil
}

func (s *HookSource) translate(ctx context.Context, raw chan hook.Event, out chan<- recorder.Event) {
	defer close(out)
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-raw:
			if !ok {
				return
			}
			e, ok := convert(ev)
			if !ok {
				continue
			}
			select {
			case out <- e:
			case <-ctx.Done():
				return
			}
		}
	}
}

// convert maps one raw hook event onto the recorder's vocabulary.
// Move, drag, hold, and key-up events are dropped; the recorder works
// from presses.
func convert(ev hook.Event) (recorder.Event, bool) {
	switch ev.Kind {
	case hook.MouseDown:
		return recorder.Event{
			Kind:   recorder.EventClick,
			X:      int(ev.X),
			Y:      int(ev.Y),
			Button: buttonNames[ev.Button],
			Double: ev.Clicks >= 2,
		}, true

	case hook.MouseWheel:
		e := recorder.Event{Kind: recorder.EventScroll, X: int(ev.X), Y: int(ev.Y)}
		// Direction 4 is the horizontal wheel axis.
		if ev.Direction == 4 {
			e.DX = int(ev.Rotation)
		} else {
			e.DY = int(ev.Rotation)
		}
		return e, true

	case hook.KeyDown:
		if unicode.IsPrint(ev.Keychar) && ev.Keychar != 0 {
			return recorder.Event{Kind: recorder.EventKey, Char: ev.Keychar}, true
		}
		name := hook.RawcodetoKeychar(ev.Rawcode)
		if name == "" {
			return recorder.Event{}, false
		}
		return recorder.Event{Kind: recorder.EventKey, Key: name}, true
	}
	return recorder.Event{}, false
}
