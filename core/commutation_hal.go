package core

// CommutationBackend is the hardware abstraction for the phase-drive
// sequence. Implementations energize the motor phases for one electrical
// sector at a time.
type CommutationBackend interface {
	// HoldSector energizes sector 0 without advancing. Used while arming
	// and to align the rotor before spin-up.
	// Called from the commutation timer; must not block.
	HoldSector()

	// AdvanceSector steps to the next of the six sectors.
	// Called from the commutation timer; must not block.
	AdvanceSector()

	// Stop immediately floats all phases
	Stop()
}

// TimingSensor reports what the zero-crossing sensing measured during the
// last electrical cycle.
type TimingSensor interface {
	// HasTimingError reports whether the back-EMF measurement is plausible
	// enough to derive a timing error from.
	HasTimingError() bool

	// TimingError is the signed commutation timing error. Positive means
	// timing is advanced and the commutation period should grow.
	TimingError() int16

	// BatteryVoltage returns the last battery voltage sample in ADC counts
	BatteryVoltage() uint16

	// BackEMF returns the averaged rising and falling back-EMF samples
	BackEMF() (rising, falling uint16)
}
