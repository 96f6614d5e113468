// Package history persists projector state changes to SQLite.
//
// The recorder subscribes to coordinator snapshots and writes a row
// whenever power state, input source, or reachability changes. The
// repository serves recent history to the API and enforces retention.
//
// This is the local audit trail: it answers "when did the projector
// last power on" even when the time-series database is unavailable.
package history
