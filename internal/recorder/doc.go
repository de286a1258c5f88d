// Package recorder converts a live stream of raw input events into an
// ordered action sequence under a single recording session.
//
// The recorder owns the event subscription for the lifetime of the
// session: Start opens it, Stop closes it on every exit path. Raw
// keystrokes buffer into text runs, scroll events debounce into one
// scroll action, and clicks capture small context screenshots around
// the click point. Credential entry is handled by one-shot arming: the
// keystroke run following MarkCredential is discarded and replaced by a
// single credential reference action.
package recorder
