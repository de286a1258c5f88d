// Package inject adapts the OS input, screen, and browser backends to
// the engine's capability interfaces.
//
// Robotgo delivers synthesized mouse and keyboard input and reports
// the live cursor position, gohook provides the global input-event
// subscription the recorder consumes, kbinani/screenshot backs the
// screen grabber, and pkg/browser opens URLs in the default browser.
// Everything here is a thin translation layer; no engine logic lives
// in this package.
package inject
