package inject

import (
	"context"

	"github.com/go-vgo/robotgo"
	"github.com/pkg/browser"
)

// keyNames maps recorded key names onto robotgo tap names where they
// differ.
var keyNames = map[string]string{
	"return": "enter",
	"escape": "esc",
}

// Robotgo synthesizes input through the robotgo backend. It implements
// the playback engine's Injector and CursorTracker capabilities.
//
// Each method checks ctx before touching the backend but never
// interrupts a delivery in progress: a started injection always runs
// to completion.
type Robotgo struct{}

// NewRobotgo returns the production injector.
func NewRobotgo() *Robotgo { return &Robotgo{} }

// Click moves the cursor to (x, y) and presses button there.
func (r *Robotgo) Click(ctx context.Context, x, y int, button string, double bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if button == "" {
		button = "left"
	}
	robotgo.Move(x, y)
	robotgo.Click(button, double)
	return nil
}

// TypeText types a string of recorded text.
func (r *Robotgo) TypeText(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	robotgo.TypeStr(text)
	return nil
}

// TypeSecret types credential material. The string conversion at the
// backend boundary is a transient copy owned by the runtime; the
// caller's buffer is what gets cleared after injection.
func (r *Robotgo) TypeSecret(ctx context.Context, secret []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	robotgo.TypeStr(string(secret))
	return nil
}

// KeyTap presses and releases a named key.
func (r *Robotgo) KeyTap(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if mapped, ok := keyNames[key]; ok {
		key = mapped
	}
	if err := robotgo.KeyTap(key); err != nil {
		return &InjectionError{Op: "key", Err: err}
	}
	return nil
}

// Scroll moves the cursor to the recorded position and scrolls by the
// accumulated wheel increments.
func (r *Robotgo) Scroll(ctx context.Context, x, y, dx, dy int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if x != 0 || y != 0 {
		robotgo.Move(x, y)
	}
	robotgo.Scroll(dx, dy)
	return nil
}

// OpenURL opens url in the default browser.
func (r *Robotgo) OpenURL(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := browser.OpenURL(url); err != nil {
		return &InjectionError{Op: "open_url", Err: err}
	}
	return nil
}

// Position reports the live cursor position for the abort watcher.
func (r *Robotgo) Position() (int, int) {
	return robotgo.Location()
}
