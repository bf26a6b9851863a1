package trigger

import (
	"testing"
	"time"

	"github.com/rbright/clipthat/internal/fsm"
	"github.com/stretchr/testify/require"
)

func TestAllowCooldownBoundaries(t *testing.T) {
	t0 := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	state := DebounceState{}

	require.True(t, Allow(ActionClip, t0, state, DefaultCooldown))
	state[ActionClip] = t0

	require.False(t, Allow(ActionClip, t0.Add(1900*time.Millisecond), state, DefaultCooldown))
	require.True(t, Allow(ActionClip, t0.Add(2*time.Second), state, DefaultCooldown))
	require.True(t, Allow(ActionClip, t0.Add(5*time.Second), state, DefaultCooldown))
	require.True(t, Allow(ActionStartRecording, t0.Add(100*time.Millisecond), state, DefaultCooldown))
}

func TestDebouncerIsPerAction(t *testing.T) {
	t0 := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	d := NewDebouncer(DefaultCooldown)

	require.True(t, d.Allow(ActionClip, t0))
	d.Record(ActionClip, t0)
	require.True(t, d.Allow(ActionStartRecording, t0))
	d.Record(ActionStartRecording, t0)

	require.False(t, d.Allow(ActionClip, t0.Add(time.Second)))
	require.False(t, d.Allow(ActionStartRecording, t0.Add(time.Second)))
	require.True(t, d.Allow(ActionStopRecording, t0.Add(time.Second)))

	last, ok := d.LastFired(ActionClip)
	require.True(t, ok)
	require.Equal(t, t0, last)

	_, ok = d.LastFired(ActionStopRecording)
	require.False(t, ok)
}

func TestDebouncerZeroAndNegativeCooldown(t *testing.T) {
	t0 := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	d := NewDebouncer(-time.Second)
	require.Equal(t, time.Duration(0), d.Cooldown())
	d.Record(ActionClip, t0)
	require.True(t, d.Allow(ActionClip, t0))

	d.SetCooldown(time.Second)
	require.False(t, d.Allow(ActionClip, t0.Add(500*time.Millisecond)))
	d.SetCooldown(-5)
	require.Equal(t, time.Duration(0), d.Cooldown())
}

func TestPermit(t *testing.T) {
	tests := []struct {
		action Action
		state  fsm.State
		want   bool
	}{
		{ActionClip, fsm.StateIdle, true},
		{ActionClip, fsm.StateRecording, true},
		{ActionStartRecording, fsm.StateIdle, true},
		{ActionStartRecording, fsm.StateRecording, false},
		{ActionStopRecording, fsm.StateRecording, true},
		{ActionStopRecording, fsm.StateIdle, false},
		{Action("bogus"), fsm.StateIdle, false},
	}

	for _, tc := range tests {
		t.Run(string(tc.action)+"/"+string(tc.state), func(t *testing.T) {
			require.Equal(t, tc.want, Permit(tc.action, tc.state))
		})
	}
}
