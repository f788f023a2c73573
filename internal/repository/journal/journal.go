package journal

import (
	"context"
	"crypto/rand"
	"database/sql"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	_ "modernc.org/sqlite" // database/sql driver "sqlite"

	"github.com/oshokin/alarm-panel/internal/domain/alarm"
)

// DefaultLimit is the number of events Recent returns for a non-positive limit.
const DefaultLimit = 50

// Event is one journal entry.
type Event struct {
	// ID is a ULID; ordering by ID is ordering by time.
	ID string
	// At is when the transition happened.
	At time.Time
	// From is the state that was left.
	From alarm.State
	// To is the state that was entered.
	To alarm.State
	// Cause describes what caused the transition; empty for commands.
	Cause string
	// Actor is who issued the command; empty for automatic transitions.
	Actor string
}

// Journal stores events in a SQLite database.
type Journal struct {
	db *sql.DB

	// mu guards entropy, which is not safe for concurrent use.
	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
}

// Open opens (or creates) the journal database at path and runs the schema migration.
func Open(ctx context.Context, path string) (*Journal, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open journal db: %w", err)
	}

	// SQLite allows a single writer.
	db.SetMaxOpenConns(1)

	if err = migrate(ctx, db); err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("migrate journal db: %w", err)
	}

	return &Journal{
		db:      db,
		entropy: ulid.Monotonic(rand.Reader, 0),
	}, nil
}

func migrate(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS events (
			id         TEXT PRIMARY KEY,
			at         TEXT NOT NULL,
			from_state TEXT NOT NULL,
			to_state   TEXT NOT NULL,
			cause      TEXT NOT NULL DEFAULT '',
			actor      TEXT NOT NULL DEFAULT ''
		)
	`)

	return err
}

// Close closes the underlying database connection.
func (j *Journal) Close() error {
	return j.db.Close()
}

// Record appends a transition and returns the event id.
func (j *Journal) Record(ctx context.Context, tr alarm.Transition) (string, error) {
	id, err := j.newID(tr.At)
	if err != nil {
		return "", fmt.Errorf("generate event id: %w", err)
	}

	var cause, actor string
	if tr.Cause != nil {
		cause = tr.Cause.String()
	}

	if tr.Actor != nil {
		actor = tr.Actor.String()
	}

	_, err = j.db.ExecContext(ctx,
		"INSERT INTO events (id, at, from_state, to_state, cause, actor) VALUES (?, ?, ?, ?, ?, ?)",
		id, tr.At.UTC().Format(time.RFC3339Nano), tr.From.String(), tr.To.String(), cause, actor,
	)
	if err != nil {
		return "", fmt.Errorf("insert event: %w", err)
	}

	return id, nil
}

// OnTransition records a transition; it lets the journal listen to the panel.
func (j *Journal) OnTransition(ctx context.Context, tr alarm.Transition, _ *alarm.Status) error {
	_, err := j.Record(ctx, tr)

	return err
}

// Recent returns up to limit of the newest events, oldest first.
func (j *Journal) Recent(ctx context.Context, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}

	rows, err := j.db.QueryContext(ctx,
		"SELECT id, at, from_state, to_state, cause, actor FROM events ORDER BY id DESC LIMIT ?", limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var events []Event

	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}

		events = append(events, event)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}

	slices.Reverse(events)

	return events, nil
}

// newID returns a monotonic ULID for the given instant.
func (j *Journal) newID(at time.Time) (string, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	id, err := ulid.New(ulid.Timestamp(at), j.entropy)
	if err != nil {
		return "", err
	}

	return id.String(), nil
}

func scanEvent(rows *sql.Rows) (Event, error) {
	var (
		event    Event
		at       string
		from, to string
	)

	if err := rows.Scan(&event.ID, &at, &from, &to, &event.Cause, &event.Actor); err != nil {
		return Event{}, fmt.Errorf("scan event: %w", err)
	}

	var err error
	if event.At, err = time.Parse(time.RFC3339Nano, at); err != nil {
		return Event{}, fmt.Errorf("parse event %s time: %w", event.ID, err)
	}

	var ok bool
	if event.From, ok = alarm.ParseState(from); !ok {
		return Event{}, fmt.Errorf("event %s: unknown state %q", event.ID, from)
	}

	if event.To, ok = alarm.ParseState(to); !ok {
		return Event{}, fmt.Errorf("event %s: unknown state %q", event.ID, to)
	}

	return event, nil
}
