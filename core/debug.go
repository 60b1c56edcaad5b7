package core

import "gobldc/protocol"

// DebugWriter is a function type for writing debug messages
type DebugWriter func(string)

// Event records one controller event for post-mortem analysis
type Event struct {
	Type   uint8
	Arg    uint8 // state or fault ID
	Clock  uint32
	Value1 uint32
	Value2 uint32
}

// Event type codes
const (
	EvtStateChange   = 1 // Arg: new state, Value1: previous state, Value2: period
	EvtReset         = 2
	EvtFault         = 3 // Arg: fault ID
	EvtCorrectReject = 4 // Arg: state, Value1: period, Value2: timing error
)

const EventRingSize = 32

var (
	debugPrintln DebugWriter = func(s string) {}
	debugEnabled bool

	// written only with interrupts masked
	eventRing     [EventRingSize]Event
	eventRingHead uint8
	eventCount    uint32
)

// SetDebugWriter sets the platform-specific debug output function
func SetDebugWriter(writer DebugWriter) {
	debugPrintln = writer
}

// SetDebugEnabled enables or disables DebugPrintln output
func SetDebugEnabled(enabled bool) {
	debugEnabled = enabled
}

func IsDebugEnabled() bool {
	return debugEnabled
}

// DebugPrintln writes a debug message using the platform-specific writer
func DebugPrintln(msg string) {
	if debugEnabled && debugPrintln != nil {
		debugPrintln(msg)
	}
}

// RecordEvent adds an event to the ring. Callers hold the critical section.
func RecordEvent(eventType, arg uint8, clock, value1, value2 uint32) {
	idx := eventRingHead
	eventRing[idx] = Event{
		Type:   eventType,
		Arg:    arg,
		Clock:  clock,
		Value1: value1,
		Value2: value2,
	}
	eventRingHead = (idx + 1) % EventRingSize
	eventCount++
}

// Events copies the ring oldest first into dst and returns the number of
// events copied
func Events(dst []Event) int {
	state := disableInterrupts()
	defer restoreInterrupts(state)

	n := 0
	for i := uint8(0); i < EventRingSize && n < len(dst); i++ {
		evt := eventRing[(eventRingHead+i)%EventRingSize]
		if evt.Type == 0 {
			continue
		}
		dst[n] = evt
		n++
	}
	return n
}

// EventCount returns the number of events recorded since the last clear
func EventCount() uint32 {
	state := disableInterrupts()
	defer restoreInterrupts(state)

	return eventCount
}

// Name returns the short event type name used in dumps and host logs
func (e Event) Name() string {
	return eventName(e.Type)
}

func eventName(t uint8) string {
	switch t {
	case EvtStateChange:
		return "STATE"
	case EvtReset:
		return "RESET"
	case EvtFault:
		return "FAULT"
	case EvtCorrectReject:
		return "REJECT"
	}
	return "UNKNOWN"
}

// DumpEvents writes the ring through the debug writer. Call it from the
// background loop, never from timer context.
func DumpEvents() {
	if debugPrintln == nil {
		return
	}
	var events [EventRingSize]Event
	n := Events(events[:])

	debugPrintln("[EVENTS] === Event Ring Dump uptime=" + utoa(TimerToUS(GetUptime())) + "us ===")
	for _, evt := range events[:n] {
		debugPrintln("[EVENTS] " + eventName(evt.Type) +
			" arg=" + utoa(uint32(evt.Arg)) +
			" clock=" + utoa(evt.Clock) +
			" v1=" + utoa(evt.Value1) +
			" v2=" + utoa(evt.Value2))
	}
	debugPrintln("[EVENTS] === End Dump ===")
}

// SendEvents frames every event in the ring on t, oldest first, and returns
// how many were sent. flush, if not nil, runs after every frame so a fixed
// size output can be drained between frames.
func SendEvents(t *protocol.Transport, flush func()) int {
	var events [EventRingSize]Event
	n := Events(events[:])
	sent := 0
	for i := range events[:n] {
		evt := &events[i]
		ok := t.SendMessage(protocol.MsgEvent, func(output protocol.OutputBuffer) {
			protocol.EncodeVLQUint(output, uint32(evt.Type))
			protocol.EncodeVLQUint(output, uint32(evt.Arg))
			protocol.EncodeVLQUint(output, evt.Clock)
			protocol.EncodeVLQUint(output, evt.Value1)
			protocol.EncodeVLQUint(output, evt.Value2)
		})
		if ok {
			sent++
		}
		if flush != nil {
			flush()
		}
	}
	return sent
}

// DecodeEvent parses an event message body
func DecodeEvent(data []byte) (Event, error) {
	var v [5]uint32
	for i := range v {
		x, err := protocol.DecodeVLQUint(&data)
		if err != nil {
			return Event{}, err
		}
		v[i] = x
	}
	return Event{Type: uint8(v[0]), Arg: uint8(v[1]), Clock: v[2], Value1: v[3], Value2: v[4]}, nil
}

// ClearEvents empties the ring
func ClearEvents() {
	state := disableInterrupts()
	defer restoreInterrupts(state)

	for i := range eventRing {
		eventRing[i] = Event{}
	}
	eventRingHead = 0
	eventCount = 0
}
