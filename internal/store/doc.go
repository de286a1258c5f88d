// Package store provides durable storage for recordings, playback
// runs, and credential reference metadata.
//
// Backed by SQLite with WAL mode. Recordings round-trip through the
// action model's canonical JSON; runs are append-only history. No
// secret material is ever written here: credential_refs holds only
// the name/field pairs recordings mention.
package store
