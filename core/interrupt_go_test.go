//go:build !tinygo

package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// maskedFaults checks that the motor calls its fault reporter from inside
// the critical section and never tries to enter it again from there
type maskedFaults struct {
	*FaultManager
	t     *testing.T
	sets  int
	inits int
}

func (f *maskedFaults) requireMasked(call string) {
	if irqMask.TryLock() {
		irqMask.Unlock()
		f.t.Errorf("%s called with interrupts enabled", call)
	}
}

func (f *maskedFaults) Set(id FaultID) {
	f.requireMasked("Set")
	f.sets++
	f.FaultManager.Set(id)
}

func (f *maskedFaults) Init() {
	f.requireMasked("Init")
	f.inits++
	f.FaultManager.Init()
}

func TestCriticalSectionNotNested(t *testing.T) {
	faults := &maskedFaults{FaultManager: NewFaultManager(), t: t}
	sensor := &fakeSensor{vbatt: 0x380}
	m, err := NewMotor(Hardware{
		Backend: &fakeBackend{},
		PWM:     &fakePWM{},
		Faults:  faults,
		Sensor:  sensor,
	}, DefaultParams(DefaultPWMPeriodCounts))
	require.NoError(t, err)
	p := m.Params()

	done := make(chan struct{})
	go func() {
		defer close(done)
		m.Reset()
		m.SetOpState(StateClosedLoop)
		m.SetTiming(p.StartupPeriod)
		for i := 0; i <= int(p.ClosedLoopFaultCount)+1; i++ {
			m.Tick()
			_ = m.Snapshot()
			_ = m.HysteresisCounter()
		}
		m.Reset()
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("motor entry points deadlocked on the critical section")
	}
	require.Equal(t, 1, faults.sets)
	require.Equal(t, 2, faults.inits)
	require.Zero(t, faults.Status())
}
