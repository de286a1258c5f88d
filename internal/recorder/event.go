package recorder

import (
	"context"
	"fmt"
)

// EventKind discriminates raw input events.
type EventKind string

const (
	// EventClick is a mouse button press.
	EventClick EventKind = "click"

	// EventScroll is one wheel increment.
	EventScroll EventKind = "scroll"

	// EventKey is a key press, either a printable Char or a named
	// special Key.
	EventKey EventKind = "key"
)

// Event is a raw input event delivered by an EventSource. Fields are
// populated per Kind: clicks carry X/Y/Button/Double, scrolls carry
// X/Y/DX/DY, keys carry either Char (printable) or Key (special key
// name such as "enter", "tab", "escape", "backspace").
type Event struct {
	Kind   EventKind
	X, Y   int
	Button string
	Double bool
	DX, DY int
	Char   rune
	Key    string
}

// EventSource delivers global input events. Production wires the OS
// hook backend; tests feed a channel directly.
type EventSource interface {
	// Subscribe starts event delivery. The returned channel closes
	// when the source is closed or ctx is cancelled. Failure to
	// establish the OS hook is reported as an error immediately.
	Subscribe(ctx context.Context) (<-chan Event, error)

	// Close tears down the subscription and closes the event channel.
	Close() error
}

// PermissionError indicates the input-capture subscription could not be
// established, typically because the OS denied accessibility or input
// monitoring permissions. No session is created when Start fails this
// way.
type PermissionError struct {
	Err error
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("input capture permission denied: %v", e.Err)
}

func (e *PermissionError) Unwrap() error { return e.Err }
