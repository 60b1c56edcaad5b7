package core

// OpState is the operating state of the commutation state machine
type OpState uint8

// Operating states. StateUninitialized is the defined power-up value; the
// first control tick moves it to StateArming exactly once.
const (
	StateUninitialized OpState = iota
	StateNone
	StateArming
	StateStopped
	StateAlign
	StateRampUp
	StateOpenLoop
	StateClosedLoop
)

func (s OpState) String() string {
	switch s {
	case StateUninitialized:
		return "UNINITIALIZED"
	case StateNone:
		return "NONE"
	case StateArming:
		return "ARMING"
	case StateStopped:
		return "STOPPED"
	case StateAlign:
		return "ALIGN"
	case StateRampUp:
		return "RAMPUP"
	case StateOpenLoop:
		return "OPEN_LOOP"
	case StateClosedLoop:
		return "CLOSED_LOOP"
	}
	return "INVALID"
}

// RunState tells callers outside the control loop whether the motor has
// been commanded to run
type RunState uint8

const (
	NotRunning RunState = iota
	Running
)

func (r RunState) String() string {
	if r == Running {
		return "RUNNING"
	}
	return "NOT_RUNNING"
}
