package debounce

import (
	"time"

	"github.com/oshokin/alarm-panel/internal/board"
)

// DefaultInterval is the stabilization interval used when none is configured.
const DefaultInterval = 30 * time.Millisecond

// Transition is a committed change of an input's stable value.
type Transition struct {
	// Pin is the input that changed.
	Pin board.ID
	// Active is the new stable value.
	Active bool
	// At is the sample time that committed the change.
	At time.Time
	// Initial marks the first observation of the input.
	Initial bool
}

// channel holds the debounce bookkeeping of one input.
type channel struct {
	// stable is the last committed value.
	stable bool
	// pending is set while a differing reading is waiting to stabilize.
	pending bool
	// pendingSince is when the current differing reading was first seen.
	pendingSince time.Time
}

// Debouncer tracks every input independently. It is not safe for concurrent use.
type Debouncer struct {
	// interval is how long a differing reading must persist.
	interval time.Duration
	// channels holds per-input state, created on first observation.
	channels map[board.ID]*channel
}

// New returns a Debouncer. A negative interval is treated as zero.
func New(interval time.Duration) *Debouncer {
	return &Debouncer{
		interval: max(interval, 0),
		channels: make(map[board.ID]*channel),
	}
}

// Interval returns the stabilization interval.
func (d *Debouncer) Interval() time.Duration {
	return d.interval
}

// Sample feeds one reading and reports a committed transition, if any.
// The first reading of an input is committed immediately.
func (d *Debouncer) Sample(pin board.ID, active bool, now time.Time) (Transition, bool) {
	ch, ok := d.channels[pin]
	if !ok {
		d.channels[pin] = &channel{stable: active}

		return Transition{Pin: pin, Active: active, At: now, Initial: true}, true
	}

	if active == ch.stable {
		ch.pending = false

		return Transition{}, false
	}

	if !ch.pending {
		ch.pending = true
		ch.pendingSince = now
	}

	if now.Sub(ch.pendingSince) < d.interval {
		return Transition{}, false
	}

	ch.stable = active
	ch.pending = false

	return Transition{Pin: pin, Active: active, At: now}, true
}

// Stable returns the committed value of an input and whether it was observed.
func (d *Debouncer) Stable(pin board.ID) (active, observed bool) {
	ch, ok := d.channels[pin]
	if !ok {
		return false, false
	}

	return ch.stable, true
}
