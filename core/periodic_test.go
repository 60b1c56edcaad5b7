package core

import (
	"testing"

	"github.com/stretchr/testify/require"

	"gobldc/protocol"
)

type fixedThrottle struct {
	v uint16
}

func (f *fixedThrottle) Throttle() uint16 { return f.v }

func runTask(p *PeriodicTask, n int) {
	for i := 0; i < n; i++ {
		p.Wake()
		p.Run()
	}
}

func TestPeriodicTaskRunsOnlyWhenWoken(t *testing.T) {
	r := newRig(t)
	task := NewPeriodicTask(r.motor, r.faults, &fixedThrottle{}, nil)
	require.False(t, task.Run())
	task.Wake()
	require.True(t, task.Run())
	require.False(t, task.Run())
	require.Equal(t, uint32(1), task.Runs())
}

func TestPeriodicTaskAppliesFilteredThrottle(t *testing.T) {
	r := newRig(t)
	r.motor.Reset()
	throttle := &fixedThrottle{v: 400}
	task := NewPeriodicTask(r.motor, r.faults, throttle, nil)

	runTask(task, 1)
	require.Equal(t, uint16(200), r.motor.Speed())
	runTask(task, 1)
	require.Equal(t, uint16(300), r.motor.Speed())

	throttle.v = 0
	runTask(task, 8)
	require.Zero(t, r.motor.Speed())
	require.Equal(t, NotRunning, r.motor.RunState())
}

func TestPeriodicTaskUndervoltage(t *testing.T) {
	r := newRig(t)
	r.motor.Reset()
	r.sensor.vbatt = 0x0200
	task := NewPeriodicTask(r.motor, r.faults, &fixedThrottle{v: 400}, nil)

	runTask(task, FaultBucketSet)
	require.Zero(t, r.faults.Status())
	runTask(task, 2)
	require.True(t, r.faults.Status().Has(FaultVoltage))
	require.Equal(t, uint16(0x0200), task.Voltage())

	// the next tick freezes the motor
	require.Zero(t, r.motor.Tick())
	require.Zero(t, r.motor.Speed())
}

func TestPeriodicTaskNoVoltageFaultWhileStopped(t *testing.T) {
	r := newRig(t)
	r.motor.Reset()
	r.sensor.vbatt = 0x0200
	task := NewPeriodicTask(r.motor, r.faults, &fixedThrottle{}, nil)

	runTask(task, 200)
	require.Zero(t, r.faults.Status())
}

func TestPeriodicTaskThrottleHighWhileArming(t *testing.T) {
	r := newRig(t)
	r.motor.Tick()
	require.Equal(t, StateArming, r.motor.OpState())
	task := NewPeriodicTask(r.motor, r.faults, &fixedThrottle{v: 500}, nil)

	runTask(task, 60)
	require.Zero(t, r.motor.Speed())
	require.True(t, r.faults.Status().Has(FaultThrottleHigh))

	// arming never completes while the fault is latched
	for i := 0; i < int(r.motor.Params().ArmingTotal)+10; i++ {
		require.Zero(t, r.motor.Tick())
	}
	require.Equal(t, StateArming, r.motor.OpState())
}

func TestPeriodicTaskTelemetry(t *testing.T) {
	r := newRig(t)
	r.motor.Reset()
	out := protocol.NewScratchOutput()
	task := NewPeriodicTask(r.motor, r.faults, &fixedThrottle{v: 400}, protocol.NewTransport(out))

	runTask(task, TelemetryDivider-1)
	require.Zero(t, out.CurPosition())
	runTask(task, 1)

	var d protocol.Decoder
	var msgs []*protocol.MessageBlock
	d.Decode(protocol.NewSliceInputBuffer(out.Result()), func(m *protocol.MessageBlock) {
		msgs = append(msgs, m)
	})
	require.Len(t, msgs, 1)

	id, body, err := msgs[0].MessageID()
	require.NoError(t, err)
	require.Equal(t, uint16(protocol.MsgStatus), id)

	st, err := DecodeStatus(body)
	require.NoError(t, err)
	require.Equal(t, task.LastStatus(), st)
	require.Equal(t, uint32(1), st.Seq)
	require.Equal(t, StateStopped, st.State)
	require.Equal(t, r.motor.Speed(), st.Speed)
	require.Equal(t, uint16(0x380), st.Battery)
}
