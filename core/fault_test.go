package core

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFaultManagerLatchesWhenBucketFills(t *testing.T) {
	f := NewFaultManager()
	for i := 0; i < FaultBucketSet; i++ {
		f.Update(FaultVoltage, true)
		require.Zero(t, f.Status(), "latched after %d updates", i+1)
	}
	require.Equal(t, uint8(FaultBucketSet), f.Bucket(FaultVoltage))

	f.Update(FaultVoltage, true)
	require.True(t, f.Status().Has(FaultVoltage))
	require.False(t, f.Status().Has(FaultClosedLoop))
}

func TestFaultManagerBucketLeaks(t *testing.T) {
	f := NewFaultManager()
	for i := 0; i < 10; i++ {
		f.Update(FaultVoltage, true)
	}
	for i := 0; i < 4; i++ {
		f.Update(FaultVoltage, false)
	}
	require.Equal(t, uint8(6), f.Bucket(FaultVoltage))

	for i := 0; i < 20; i++ {
		f.Update(FaultVoltage, false)
	}
	require.Zero(t, f.Bucket(FaultVoltage))

	// an intermittent condition never latches
	for i := 0; i < 500; i++ {
		f.Update(FaultVoltage, i%2 == 0)
	}
	require.Zero(t, f.Status())
}

func TestFaultManagerSetAndInit(t *testing.T) {
	f := NewFaultManager()
	f.Set(FaultClosedLoop)
	f.Set(FaultThrottleHigh)
	require.Equal(t, FaultStatus(1<<FaultClosedLoop|1<<FaultThrottleHigh), f.Status())

	f.Init()
	require.Zero(t, f.Status())
	require.Zero(t, f.Bucket(FaultClosedLoop))
}

func TestFaultManagerDisabled(t *testing.T) {
	f := NewFaultManager()
	f.Enable(FaultVoltage, false)
	f.Set(FaultVoltage)
	require.Zero(t, f.Status())
	require.Equal(t, uint8(FaultBucketSet), f.Bucket(FaultVoltage))

	f.Enable(FaultVoltage, true)
	f.Update(FaultVoltage, true)
	require.True(t, f.Status().Has(FaultVoltage))
}

func TestFaultManagerIgnoresInvalidIDs(t *testing.T) {
	f := NewFaultManager()
	f.Set(FaultNone)
	f.Set(MaxFaults)
	f.Update(MaxFaults+1, true)
	require.Zero(t, f.Status())
	require.Equal(t, "voltage", FaultVoltage.String())
	require.Equal(t, "fault7", FaultID(7).String())
}

func TestFaultManagerRecordsLatchOnce(t *testing.T) {
	ClearEvents()
	f := NewFaultManager()
	for i := 0; i < 100; i++ {
		f.Update(FaultVoltage, true)
	}
	require.True(t, f.Status().Has(FaultVoltage))
	require.Equal(t, uint32(1), EventCount())
}
