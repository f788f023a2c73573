package alarm

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/alarm-panel/internal/board"
)

// TestActorClone verifies that Clone returns a deep copy and handles nil safely.
func TestActorClone(t *testing.T) {
	t.Parallel()
	require.Nil(t, (*Actor)(nil).Clone())

	a := &Actor{
		Hostname: "panel",
		Username: "o.shokin",
	}

	b := a.Clone()

	require.Equal(t, a, b)
	require.NotSame(t, a, b)
	require.Equal(t, "o.shokin@panel", a.String())
}

// TestStateNames checks String and ParseState agree for every state.
func TestStateNames(t *testing.T) {
	t.Parallel()

	for _, s := range []State{Disarmed, Arming, Armed, EntryDelay, Triggered} {
		parsed, ok := ParseState(s.String())
		require.True(t, ok)
		require.Equal(t, s, parsed)
	}

	parsed, ok := ParseState("entry_delay")
	require.True(t, ok)
	require.Equal(t, EntryDelay, parsed)

	_, ok = ParseState("sleeping")
	require.False(t, ok)

	require.False(t, Disarmed.IsArmed())
	require.True(t, Arming.IsArmed())
	require.Equal(t, "State(42)", State(42).String())
}

// TestStatusClone verifies that Status.Clone copies slices and pointers.
func TestStatusClone(t *testing.T) {
	t.Parallel()

	ts := time.Now().UTC().Truncate(time.Second)
	s := Status{
		State:            Triggered,
		Since:            ts,
		ActiveInputs:     []board.ID{1, 2},
		TriggerCauses:    []Cause{{Input: 1, At: ts}},
		LastTriggerCause: &Cause{Input: 1, At: ts},
		LastActor:        &Actor{Hostname: "panel", Username: "o.shokin"},
	}

	c := s.Clone()
	require.Equal(t, s, *c)
	require.NotSame(t, s.LastActor, c.LastActor)
	require.NotSame(t, s.LastTriggerCause, c.LastTriggerCause)

	c.ActiveInputs[0] = 7
	require.Equal(t, board.ID(1), s.ActiveInputs[0])

	require.Nil(t, (*Status)(nil).Clone())
	require.Equal(t, "panic", Cause{Panic: true}.String())
	require.Equal(t, "input virtual", Cause{Input: board.VirtualInput}.String())
}

// TestIntentOf checks which transitions record an arm decision.
func TestIntentOf(t *testing.T) {
	t.Parallel()

	at := time.Date(2024, 5, 1, 22, 0, 0, 0, time.UTC)
	actor := &Actor{Hostname: "pi", Username: "op"}
	status := &Status{IgnoredInputs: []board.ID{2}}

	intent, ok := IntentOf(Transition{From: Disarmed, To: Arming, At: at, Actor: actor}, status)
	require.True(t, ok)
	require.True(t, intent.Armed)
	require.Equal(t, []board.ID{2}, intent.IgnoredInputs)
	require.Equal(t, actor, intent.LastActor)
	require.Equal(t, at, intent.Timestamp)

	intent, ok = IntentOf(Transition{From: Triggered, To: Disarmed, At: at}, status)
	require.True(t, ok)
	require.False(t, intent.Armed)
	require.Empty(t, intent.IgnoredInputs)

	for _, tr := range []Transition{
		{From: Arming, To: Armed},
		{From: Armed, To: EntryDelay},
		{From: Disarmed, To: Triggered},
		{From: Triggered, To: Armed},
	} {
		_, ok = IntentOf(tr, status)
		require.False(t, ok, "%s -> %s", tr.From, tr.To)
	}
}
