package core

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClosedLoopCorrect(t *testing.T) {
	tests := []struct {
		name     string
		has      bool
		err      int16
		period   uint16
		want     uint16
		accepted bool
	}{
		{"no sample", false, 10, 1866, 1866, false},
		{"lower bound rejected", true, -50, 1866, 1866, false},
		{"upper bound rejected", true, 50, 1866, 1866, false},
		{"far out rejected", true, 1000, 1866, 1866, false},
		{"just inside lower", true, -49, 1866, 1862, true},
		{"just inside upper", true, 49, 1866, 1870, true},
		{"dead band", true, 9, 1866, 1866, true},
		{"negative dead band", true, -9, 1866, 1866, true},
		{"truncates toward zero", true, -15, 1866, 1865, true},
		{"saturates low", true, -40, 2, 0, true},
		{"saturates high", true, 40, 0xFFFE, 0xFFFF, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := newRig(t)
			r.motor.SetTiming(tc.period)
			r.sensor.set(tc.has, tc.err)

			got, ok := r.motor.closedLoopCorrect(tc.period)
			require.Equal(t, tc.accepted, ok)
			require.Equal(t, tc.want, got)
			require.Equal(t, tc.want, r.motor.Timing())
		})
	}
}

func TestClosedLoopRejectRunKeepsHistory(t *testing.T) {
	ClearEvents()
	r := newRig(t)
	r.toClosedLoop(t)

	r.sensor.set(true, 80)
	for i := 0; i < 2*EventRingSize; i++ {
		r.motor.Tick()
	}
	require.Equal(t, StateClosedLoop, r.motor.OpState())

	count := func() map[string]int {
		events := make([]Event, EventRingSize)
		n := Events(events)
		names := map[string]int{}
		for _, evt := range events[:n] {
			names[evt.Name()]++
		}
		return names
	}
	require.Equal(t, map[string]int{"STATE": 5, "RESET": 1, "REJECT": 1}, count())

	// an accepted sample ends the run; the next rejection is recorded again
	r.sensor.set(true, 0)
	r.motor.Tick()
	r.sensor.set(true, -80)
	r.motor.Tick()
	r.motor.Tick()
	require.Equal(t, 2, count()["REJECT"])

	// reset starts a fresh run
	r.toClosedLoop(t)
	r.sensor.set(true, 80)
	r.motor.Tick()
	require.Equal(t, 3, count()["REJECT"])
}
