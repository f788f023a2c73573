package alarm

import (
	"slices"
	"time"

	"github.com/oshokin/alarm-panel/internal/board"
)

// Intent is the arm decision that survives a restart.
type Intent struct {
	// Armed is set when the panel was armed.
	Armed bool
	// IgnoredInputs are the inputs bypassed for the armed period.
	IgnoredInputs []board.ID
	// LastActor is who made the decision.
	LastActor *Actor
	// Timestamp is when the decision was made.
	Timestamp time.Time
}

// IntentOf returns the intent recorded by a transition, if any. Arming from
// DISARMED and disarming are decisions; a panic or an expiring delay is not.
func IntentOf(tr Transition, status *Status) (*Intent, bool) {
	switch {
	case tr.To == Disarmed:
		return &Intent{
			LastActor: tr.Actor.Clone(),
			Timestamp: tr.At,
		}, true
	case tr.From == Disarmed && (tr.To == Arming || tr.To == Armed):
		intent := &Intent{
			Armed:     true,
			LastActor: tr.Actor.Clone(),
			Timestamp: tr.At,
		}

		if status != nil {
			intent.IgnoredInputs = slices.Clone(status.IgnoredInputs)
		}

		return intent, true
	default:
		return nil, false
	}
}
