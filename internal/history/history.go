// Package history records resolved utterances for later review. Every final
// transcript that reaches a screen produces one entry: what was heard, what
// it normalized to, and what the resolver decided. The Postgres
// implementation is optional; deployments without a DSN get the in-memory
// store.
package history

import (
	"context"
	"time"
)

// Entry is one resolved utterance.
type Entry struct {
	// Session identifies the voice session the utterance belongs to.
	Session string

	// Lane is the screen that owned the mic when the utterance arrived.
	Lane string

	// RawText is the transcript as the recognition engine produced it.
	RawText string

	// Normalized is the text after vocabulary normalization.
	Normalized string

	// Outcome is the resolver's verdict ("move", "command", "ambiguous",
	// "unmatched", ...).
	Outcome string

	// SAN is the chosen move in standard algebraic notation, when the
	// outcome produced one.
	SAN string

	// Timestamp is when the utterance was resolved. The zero value is
	// replaced with the current time on write.
	Timestamp time.Time
}

// Store is an append-only log of resolved utterances.
type Store interface {
	// Record appends an entry to the log.
	Record(ctx context.Context, e Entry) error

	// Recent returns up to limit entries for the session, newest first.
	// limit <= 0 means no limit.
	Recent(ctx context.Context, session string, limit int) ([]Entry, error)
}
