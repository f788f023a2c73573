// Package journal appends alarm state transitions to a SQLite event journal
// and lists the most recent ones. Events are keyed by ULIDs, so the primary
// key order is the chronological order.
package journal
