package pixel

// TimerTop is the number of ticks in one counter cycle. Duty codes are
// 8-bit, so the cycle length is fixed; the guards below break the build if
// either constant drifts from the value the scan arithmetic assumes.
const TimerTop = 256

const phaseCount = 5

// StepsPerScan is the number of counter-A cycles in one full pass over the
// tile.
const StepsPerScan = Count * phaseCount

var (
	_ [TimerTop - 256]struct{}
	_ [256 - TimerTop]struct{}
	_ [phaseCount - 5]struct{}
	_ [5 - phaseCount]struct{}
)

// Hooks are fixed-rate callbacks piggybacked on the display counters; the
// infrared receiver samples its input lines from them. They run in
// interrupt context, own no display state, and must return quickly.
type Hooks struct {
	// Cycle fires once per counter-A cycle, after the scan step.
	Cycle func()
	// HalfCycle fires twice per cycle: once at the counter-A boundary
	// (before the scan step) and once at counter B's mid-cycle event.
	HalfCycle func()
}
