// Package playback replays a recorded action stream against the live
// desktop.
//
// The engine executes actions strictly in recorded order, one in
// flight at a time: it reconstructs inter-action timing from recorded
// offsets, verifies click targets against their recorded context
// screenshots before acting, retries failed verification with
// exponential backoff, resolves credential references into short-lived
// secrets at the moment of injection, and waits for screen stability
// after navigation. A concurrent abort watcher samples the cursor and
// cancels the run cooperatively when it enters the abort region;
// cancellation is checked between actions and between retry attempts,
// never mid-injection.
package playback
