//go:build rp2040

package main

import (
	"device/rp"
	"machine"
	"time"

	"gobldc/core"
	"gobldc/protocol"
)

// Board wiring
var (
	phaseA = BridgePins{High: machine.GPIO0, Low: machine.GPIO1}
	phaseB = BridgePins{High: machine.GPIO2, Low: machine.GPIO3}
	phaseC = BridgePins{High: machine.GPIO4, Low: machine.GPIO5}

	telemetryTX = machine.GPIO12
	telemetryRX = machine.GPIO13
)

var (
	// frames are encoded into scratch, then queued for the UART
	scratch   *protocol.ScratchOutput
	txQueue   *protocol.FifoBuffer
	telemetry *machine.UART

	// Debug counters
	framesQueued  uint32
	framesDropped uint32
)

func main() {
	// Disable watchdog on boot to clear any previous state
	err := machine.Watchdog.Configure(machine.WatchdogConfig{TimeoutMillis: 0})
	if err != nil {
		return
	}

	InitDebugUART()
	InitClock()

	if err := InitADC(); err != nil {
		DebugPrintln("ADC init failed: " + err.Error())
		return
	}

	bridge := NewPhaseBridge(phaseA, phaseB, phaseC, core.DefaultPWMPeriodCounts, adcPhaseA)
	if err := bridge.Configure(); err != nil {
		DebugPrintln("PWM init failed: " + err.Error())
		return
	}

	telemetry = machine.UART0
	err = telemetry.Configure(machine.UARTConfig{
		BaudRate: 115200,
		TX:       telemetryTX,
		RX:       telemetryRX,
	})
	if err != nil {
		DebugPrintln("telemetry UART init failed: " + err.Error())
		return
	}
	scratch = protocol.NewScratchOutput()
	txQueue = protocol.NewFifoBuffer(1024)
	link := protocol.NewTransport(scratch)

	faults := core.NewFaultManager()
	seq := core.NewSequencer(bridge)
	motor := core.MustNewMotor(core.Hardware{
		Backend: seq,
		PWM:     bridge,
		Faults:  faults,
		Sensor:  seq,
	}, core.DefaultParams(bridge.PeriodCounts()))

	task := core.NewPeriodicTask(motor, faults, NewThrottleInput(adcThrottle, bridge.PeriodCounts()), link)
	driver := core.NewDriver(motor, task)

	UpdateSystemTime()
	driver.Start(core.GetTime())

	var reported core.FaultStatus
	for {
		// Update system time from hardware
		UpdateSystemTime()

		// Run the control tick and commutation timers that are due
		core.ProcessTimers()

		if task.Run() {
			queueFrames()
		}

		if st := faults.Status(); st != reported {
			reported = st
			if st != 0 {
				// ship the event ring once per new fault for post-mortem
				core.DumpEvents()
				core.SendEvents(link, func() {
					queueFrames()
					drainTelemetry()
				})
			}
		}

		drainTelemetry()

		// Yield to other goroutines
		time.Sleep(10 * time.Microsecond)
	}
}

// queueFrames moves encoded frames from scratch to the UART queue
func queueFrames() {
	data := scratch.Result()
	if len(data) == 0 {
		return
	}
	if txQueue.Free() < len(data) {
		// a slow or absent reader must never stall the control loop
		framesDropped++
	} else {
		txQueue.Write(data)
		framesQueued++
	}
	scratch.Reset()
}

// drainTelemetry writes queued bytes while the UART TX FIFO has room
func drainTelemetry() {
	for !txQueue.IsEmpty() && !rp.UART0.UARTFR.HasBits(rp.UART0_UARTFR_TXFF) {
		var b [1]byte
		txQueue.Read(b[:])
		telemetry.WriteByte(b[0])
	}
}
