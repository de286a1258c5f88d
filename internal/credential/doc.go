// Package credential resolves named credentials into short-lived secret
// values for input injection.
//
// Recordings reference credentials by name and field only; the secret
// material lives in an external Store (the OS keyring in production).
// A Secret fetched during playback must be cleared by the caller as soon
// as it has been delivered to the injection backend. Secrets are never
// persisted and redact themselves when printed or logged.
package credential
