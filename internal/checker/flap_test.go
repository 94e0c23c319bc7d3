package checker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestUpdateFlapCounters_FirstCallSeedsLastChange(t *testing.T) {
	var positive, negative float64
	var lastChange time.Time
	now := time.Now()

	UpdateFlapCounters(&positive, &negative, &lastChange, now, true)

	require.Zero(t, positive)
	require.Zero(t, negative)
	require.Equal(t, now, lastChange)
}

func TestUpdateFlapCounters_AccumulatesOnChangeAndStability(t *testing.T) {
	var positive, negative float64
	lastChange := time.Unix(0, 0)
	t0 := lastChange

	// A state change 10s later adds to positive.
	UpdateFlapCounters(&positive, &negative, &lastChange, t0.Add(10*time.Second), true)
	require.InDelta(t, 10.0, positive, 1e-9)
	require.Zero(t, negative)

	// A stable check 5s after that adds to negative.
	UpdateFlapCounters(&positive, &negative, &lastChange, t0.Add(15*time.Second), false)
	require.InDelta(t, 10.0, positive, 1e-9)
	require.InDelta(t, 5.0, negative, 1e-9)
}

func TestUpdateFlapCounters_DecaysBeyondHorizon(t *testing.T) {
	positive := 1200.0
	negative := 900.0 // sum = 2100 > 1800
	lastChange := time.Unix(0, 0)

	UpdateFlapCounters(&positive, &negative, &lastChange, lastChange, false)

	// pct = (2100-1800)/1800 = 1/6; both buckets scaled down by that fraction.
	require.InDelta(t, 1200.0-1200.0/6, positive, 1e-9)
	require.InDelta(t, 900.0-900.0/6, negative, 1e-9)
}

func TestFlapPercent(t *testing.T) {
	require.Equal(t, 0.0, FlapPercent(0, 0))
	require.InDelta(t, 100.0, FlapPercent(600, 0), 1e-9)
	require.InDelta(t, 50.0, FlapPercent(300, 300), 1e-9)
}

func TestFlapTransition_Hysteresis(t *testing.T) {
	flapping, sig := FlapTransition(false, 25.0, 20.0, 30.0)
	require.False(t, flapping)
	require.Equal(t, FlapNoChange, sig)

	flapping, sig = FlapTransition(false, 35.0, 20.0, 30.0)
	require.True(t, flapping)
	require.Equal(t, FlapSignalStart, sig)

	flapping, sig = FlapTransition(true, 25.0, 20.0, 30.0)
	require.True(t, flapping)
	require.Equal(t, FlapNoChange, sig)

	flapping, sig = FlapTransition(true, 15.0, 20.0, 30.0)
	require.False(t, flapping)
	require.Equal(t, FlapSignalStop, sig)
}
