package pixel

// Hardware abstracts the drive lines and the two duty counters. The engine
// calls it from foreground code (configuration, start/stop) and from the
// counter interrupt (everything else); implementations must be safe for
// that split but need no locking of their own, because the scan serializes
// every line operation.
//
// The compare registers are double buffered: a Load takes effect at the
// next counter cycle boundary, not immediately. The scan relies on this to
// stage each phase's codes one cycle ahead.
type Hardware interface {
	// ConfigureLines puts every anode, cathode and pump line into its inert
	// state and claims the counter outputs. Called once from Init.
	ConfigureLines()

	// ActivateAnode raises the select line of one pixel.
	ActivateAnode(i int)
	// DeactivateAnodes lowers all six select lines.
	DeactivateAnodes()

	// ConnectBlueDrive hands the blue cathode to counter B's output.
	ConnectBlueDrive()
	// FloatBlueDrive disconnects the blue cathode and lets the line float,
	// so the pump capacitor keeps its charge between blue phases.
	FloatBlueDrive()

	// EnableChargeSink grounds the pump capacitor's low side so it can
	// charge. Must never be on while an anode is active; the sink would
	// carry unlimited current through the lit LED.
	EnableChargeSink()
	// DisableChargeSink releases the capacitor's low side.
	DisableChargeSink()

	// LoadRed, LoadGreen and LoadBlue stage a duty code (DutyOff = no
	// light) into the corresponding compare register.
	LoadRed(duty uint8)
	LoadGreen(duty uint8)
	LoadBlue(duty uint8)

	// StartCounters releases both counters from a common barrier so they
	// run in lockstep. StopCounters halts them and forces every drive line
	// inert; it must be idempotent.
	StartCounters()
	StopCounters()
}
