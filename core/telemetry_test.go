package core

import (
	"testing"

	"github.com/stretchr/testify/require"

	"gobldc/protocol"
)

func TestStatusEncoding(t *testing.T) {
	st := Status{
		Seq:         70000,
		Throttle:    400,
		Speed:       399,
		Period:      1866,
		Duty:        399,
		Battery:     0x380,
		Faults:      FaultStatus(1 << FaultVoltage),
		TimingError: -33,
		State:       StateClosedLoop,
		Hysteresis:  2000,
		BEMFRising:  599,
		BEMFFalling: 299,
	}
	out := protocol.NewScratchOutput()
	EncodeStatus(out, &st)

	got, err := DecodeStatus(out.Result())
	require.NoError(t, err)
	require.Equal(t, st, got)
}

func TestDecodeStatusErrors(t *testing.T) {
	out := protocol.NewScratchOutput()
	EncodeStatus(out, &Status{})
	full := out.Result()

	_, err := DecodeStatus(full[:len(full)-1])
	require.ErrorIs(t, err, ErrBadStatus)

	_, err = DecodeStatus(append(append([]byte(nil), full...), 0))
	require.ErrorIs(t, err, ErrBadStatus)
}

func TestSnapshot(t *testing.T) {
	r := newRig(t)
	r.toClosedLoop(t)
	r.sensor.rising, r.sensor.falling = 600, 310

	st := r.motor.Snapshot()
	require.Equal(t, StateClosedLoop, st.State)
	require.Equal(t, r.motor.Timing(), st.Period)
	require.Equal(t, r.pwm.DutyCycle(), st.Duty)
	require.Equal(t, r.motor.Params().ClosedLoopFaultCount, st.Hysteresis)
	require.Equal(t, uint16(600), st.BEMFRising)
	require.Equal(t, uint16(310), st.BEMFFalling)
}
