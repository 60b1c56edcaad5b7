package core

import (
	"errors"
	"fmt"

	"gobldc/protocol"
)

var ErrBadStatus = errors.New("malformed status message")

// Status is one telemetry sample of the controller
type Status struct {
	Seq         uint32
	Throttle    uint16 // filtered throttle input, PWM counts
	Speed       uint16 // commanded duty, PWM counts
	Period      uint16 // commutation period, counter counts
	Duty        uint16 // duty applied by the last tick
	Battery     uint16 // ADC counts
	Faults      FaultStatus
	TimingError int16
	State       OpState
	Hysteresis  uint16
	BEMFRising  uint16
	BEMFFalling uint16
}

// Snapshot samples the controller. Throttle and Seq are left for the caller.
func (m *Motor) Snapshot() Status {
	rising, falling := m.hw.Sensor.BackEMF()
	st := Status{
		Battery:     m.hw.Sensor.BatteryVoltage(),
		TimingError: m.hw.Sensor.TimingError(),
		BEMFRising:  rising,
		BEMFFalling: falling,
		Faults:      m.hw.Faults.Status(),
	}

	state := disableInterrupts()
	defer restoreInterrupts(state)

	st.Speed = m.Speed()
	st.Period = m.Timing()
	st.Duty = m.duty
	st.State = m.opState()
	st.Hysteresis = m.faultCount
	return st
}

// EncodeStatus writes the status fields in wire order
func EncodeStatus(output protocol.OutputBuffer, st *Status) {
	protocol.EncodeVLQUint(output, st.Seq)
	protocol.EncodeVLQUint(output, uint32(st.Throttle))
	protocol.EncodeVLQUint(output, uint32(st.Speed))
	protocol.EncodeVLQUint(output, uint32(st.Period))
	protocol.EncodeVLQUint(output, uint32(st.Duty))
	protocol.EncodeVLQUint(output, uint32(st.Battery))
	protocol.EncodeVLQUint(output, uint32(st.Faults))
	protocol.EncodeVLQInt(output, int32(st.TimingError))
	protocol.EncodeVLQUint(output, uint32(st.State))
	protocol.EncodeVLQUint(output, uint32(st.Hysteresis))
	protocol.EncodeVLQUint(output, uint32(st.BEMFRising))
	protocol.EncodeVLQUint(output, uint32(st.BEMFFalling))
}

// DecodeStatus parses the fields written by EncodeStatus
func DecodeStatus(data []byte) (Status, error) {
	var st Status
	var fields [12]int32
	for i := range fields {
		v, err := protocol.DecodeVLQInt(&data)
		if err != nil {
			return Status{}, fmt.Errorf("%w: field %d: %w", ErrBadStatus, i, err)
		}
		fields[i] = v
	}
	if len(data) != 0 {
		return Status{}, fmt.Errorf("%w: %d trailing bytes", ErrBadStatus, len(data))
	}
	st.Seq = uint32(fields[0])
	st.Throttle = uint16(fields[1])
	st.Speed = uint16(fields[2])
	st.Period = uint16(fields[3])
	st.Duty = uint16(fields[4])
	st.Battery = uint16(fields[5])
	st.Faults = FaultStatus(fields[6])
	st.TimingError = int16(fields[7])
	st.State = OpState(fields[8])
	st.Hysteresis = uint16(fields[9])
	st.BEMFRising = uint16(fields[10])
	st.BEMFFalling = uint16(fields[11])
	return st, nil
}

// SendStatus frames st on t
func SendStatus(t *protocol.Transport, st *Status) bool {
	return t.SendMessage(protocol.MsgStatus, func(output protocol.OutputBuffer) {
		EncodeStatus(output, st)
	})
}
