package core

// closedLoopCorrect applies one proportional correction to the commutation
// period. Samples with |error| >= ErrorLimit are rejected; they show up
// mostly around the open to closed loop cutover. Integer division leaves a
// small dead band around zero error. On acceptance the corrected period is
// stored before returning.
func (m *Motor) closedLoopCorrect(period uint16) (uint16, bool) {
	if !m.hw.Sensor.HasTimingError() {
		return period, false
	}
	timingError := m.hw.Sensor.TimingError()
	if timingError <= -m.params.ErrorLimit || timingError >= m.params.ErrorLimit {
		if !m.rejecting {
			// only the first of a run, so a long run keeps the state history in the ring
			m.rejecting = true
			RecordEvent(EvtCorrectReject, uint8(m.opState()), GetTime(), uint32(period), uint32(uint16(timingError)))
		}
		return period, false
	}
	m.rejecting = false
	period = addSaturating(period, timingError/m.params.Gain)
	m.setPeriod(period)
	return period, true
}

// addSaturating adds a signed delta to a period, clamping to [0, 0xFFFF]
func addSaturating(period uint16, delta int16) uint16 {
	v := int32(period) + int32(delta)
	switch {
	case v < 0:
		return 0
	case v > 0xFFFF:
		return 0xFFFF
	}
	return uint16(v)
}
