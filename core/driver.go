package core

// Frame timing. The frame timer runs at twice the control rate: odd frames
// run the control tick, every 32nd frame wakes the background task.
const (
	FramePeriodUS    = 512
	ControlFrameMask = 0x01
	TaskFrameDivider = 0x20

	// commutation timer events per sector step
	StepModulus = 4
)

// Waker is anything that can be woken from timer context
type Waker interface {
	Wake()
}

// Driver multiplexes the system timer into the control tick, the background
// task wake-up and the commutation timer. Both timers run from
// TimerDispatch; neither handler blocks.
type Driver struct {
	motor *Motor
	task  Waker

	frame     uint8
	stepIndex uint8
	commTicks uint32 // commutation timer interval, refreshed every control tick

	frameTimer Timer
	commTimer  Timer
	running    bool
}

// NewDriver returns a driver for m. task may be nil.
func NewDriver(m *Motor, task Waker) *Driver {
	d := &Driver{motor: m, task: task}
	d.commTicks = m.params.PeriodTicks(m.Timing())
	d.frameTimer.Handler = d.frameEvent
	d.commTimer.Handler = d.commEvent
	return d
}

// Start schedules the frame and commutation timers relative to now
func (d *Driver) Start(now uint32) {
	if d.running {
		return
	}
	d.running = true
	d.frameTimer.WakeTime = now + TimerFromUS(FramePeriodUS)
	d.commTimer.WakeTime = now + d.commTicks
	ScheduleTimer(&d.frameTimer)
	ScheduleTimer(&d.commTimer)
}

// Stop cancels both timers. The motor is left as is.
func (d *Driver) Stop() {
	if !d.running {
		return
	}
	d.running = false
	CancelTimer(&d.frameTimer)
	CancelTimer(&d.commTimer)
}

// Update handles one frame
func (d *Driver) Update() {
	d.frame++
	if d.frame&ControlFrameMask != 0 {
		d.motor.Tick()
		d.commTicks = d.motor.params.PeriodTicks(d.motor.Timing())
	} else if d.frame%TaskFrameDivider == 0 && d.task != nil {
		d.task.Wake()
	}
}

// Step handles one commutation timer event. Only every StepModulus-th
// event reaches the motor.
func (d *Driver) Step() {
	d.stepIndex = (d.stepIndex + 1) & (StepModulus - 1)
	if d.stepIndex == 0 {
		d.motor.CommutationStep()
	}
}

// CommutationTicks returns the current commutation timer interval
func (d *Driver) CommutationTicks() uint32 {
	return d.commTicks
}

func (d *Driver) frameEvent(t *Timer) uint8 {
	d.Update()
	t.WakeTime += TimerFromUS(FramePeriodUS)
	return SF_RESCHEDULE
}

func (d *Driver) commEvent(t *Timer) uint8 {
	d.Step()
	t.WakeTime += d.commTicks
	return SF_RESCHEDULE
}
