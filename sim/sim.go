// Package sim runs the firmware core against a simulated motor on the host.
// The controller, its timers and the background task are the real core
// code; only the power stage and the rotor are modeled.
package sim

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"gobldc/core"
	"gobldc/host/config"
	"gobldc/protocol"
)

var ErrNoTimers = errors.New("no timer scheduled")

// the core scheduler and event ring are package globals
var runMu sync.Mutex

// Transition is one operating state change
type Transition struct {
	At       time.Duration
	From, To core.OpState
}

// Result summarizes a run
type Result struct {
	Elapsed     time.Duration
	Final       core.Status
	Statuses    []core.Status
	Transitions []Transition
	Events      []core.Event
	Faults      core.FaultStatus

	// telemetry bytes written
	TelemetryBytes int
}

// Reached reports whether the motor entered state s during the run
func (r *Result) Reached(s core.OpState) bool {
	for _, tr := range r.Transitions {
		if tr.To == s {
			return true
		}
	}
	return false
}

// Simulator wires a core.Motor to a Plant
type Simulator struct {
	cfg config.SimConfig

	plant  *Plant
	faults *core.FaultManager
	seq    *core.Sequencer
	motor  *core.Motor
	task   *core.PeriodicTask
	driver *core.Driver

	out       *protocol.GrowOutput
	link      *protocol.Transport
	telemetry io.Writer
}

// New builds a simulator from cfg. Telemetry frames are written to
// telemetry when it is not nil.
func New(cfg *config.Config, telemetry io.Writer) (*Simulator, error) {
	c := *cfg
	config.Normalize(&c)
	cfg = &c
	params := cfg.Params()

	s := &Simulator{
		cfg:       cfg.Sim,
		faults:    core.NewFaultManager(),
		out:       &protocol.GrowOutput{},
		telemetry: telemetry,
	}

	var motor *core.Motor
	s.plant = NewPlant(PlantConfig{
		PWMPeriodCounts:   params.PWMPeriodCounts,
		BatteryCounts:     cfg.Sim.BatteryCounts,
		SagPerDutyCount:   cfg.Sim.SagPerDutyCount,
		TimeConstantTicks: cfg.Sim.TimeConstantTicks,
		Load:              cfg.Sim.Load,
	}, func() uint16 { return motor.Timing() })
	s.seq = core.NewSequencer(s.plant)

	motor, err := core.NewMotor(core.Hardware{
		Backend: s.seq,
		PWM:     s.plant,
		Faults:  s.faults,
		Sensor:  s.seq,
	}, params)
	if err != nil {
		return nil, fmt.Errorf("building motor: %w", err)
	}
	s.motor = motor

	if telemetry != nil {
		s.link = protocol.NewTransport(s.out)
	}
	s.task = core.NewPeriodicTask(motor, s.faults, s.plant, s.link)
	s.driver = core.NewDriver(motor, s.task)
	return s, nil
}

// Motor returns the simulated controller
func (s *Simulator) Motor() *core.Motor {
	return s.motor
}

// Plant returns the simulated motor
func (s *Simulator) Plant() *Plant {
	return s.plant
}

// Run runs the simulation for the configured duration. observe, if not
// nil, is called with every telemetry status sample.
func (s *Simulator) Run(ctx context.Context, observe func(*core.Status)) (*Result, error) {
	runMu.Lock()
	defer runMu.Unlock()

	core.ResetTimers()
	core.ClearEvents()
	core.SetTime(0)
	core.TimerInit()
	s.driver.Start(core.GetTime())
	defer s.driver.Stop()

	res := &Result{}
	state := s.motor.OpState()
	lastSeq := uint32(0)
	now := core.GetTime()
	var elapsed time.Duration

	for i := 0; elapsed < s.cfg.Duration; i++ {
		if i%4096 == 0 {
			if err := ctx.Err(); err != nil {
				res.Elapsed = elapsed
				return res, err
			}
		}

		wake, ok := core.NextWakeTime()
		if !ok {
			return nil, ErrNoTimers
		}
		elapsed += time.Duration(wake-now) * time.Microsecond
		now = wake
		core.SetTime(now)

		s.plant.SetThrottlePercent(s.cfg.ThrottleAt(elapsed))
		if s.cfg.StallAt > 0 && elapsed >= s.cfg.StallAt {
			s.plant.Stall()
		}

		core.ProcessTimers()

		if next := s.motor.OpState(); next != state {
			res.Transitions = append(res.Transitions, Transition{At: elapsed, From: state, To: next})
			log.WithFields(log.Fields{
				"at":     elapsed,
				"from":   state.String(),
				"to":     next.String(),
				"period": s.motor.Timing(),
			}).Debug("state change")
			state = next
		}

		if s.task.Run() {
			if st := s.task.LastStatus(); st.Seq != lastSeq {
				lastSeq = st.Seq
				res.Statuses = append(res.Statuses, st)
				if observe != nil {
					observe(&st)
				}
			}
			if err := s.flush(res); err != nil {
				return res, err
			}
		}
	}

	if s.link != nil {
		core.SendEvents(s.link, nil)
		if err := s.flush(res); err != nil {
			return res, err
		}
	}

	var events [core.EventRingSize]core.Event
	n := core.Events(events[:])
	res.Events = append(res.Events, events[:n]...)
	res.Elapsed = elapsed
	res.Final = s.motor.Snapshot()
	res.Final.Seq = lastSeq
	res.Final.Throttle = s.plant.Throttle()
	res.Faults = s.faults.Status()

	log.WithFields(log.Fields{
		"elapsed": elapsed,
		"state":   res.Final.State.String(),
		"period":  res.Final.Period,
		"faults":  res.Faults,
	}).Info("simulation done")
	return res, nil
}

func (s *Simulator) flush(res *Result) error {
	if s.out.CurPosition() == 0 {
		return nil
	}
	defer s.out.Reset()
	if s.telemetry == nil {
		return nil
	}
	data := s.out.Result()
	if _, err := s.telemetry.Write(data); err != nil {
		return fmt.Errorf("writing telemetry: %w", err)
	}
	res.TelemetryBytes += len(data)
	return nil
}
