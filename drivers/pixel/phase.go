package pixel

// Phase is one of the five multiplex sub-phases each pixel passes through.
// A whole counter cycle is spent in each phase, so the state machine runs
// entirely on cycle boundaries and the interrupt handler stays short.
type Phase uint8

const (
	// PhaseChargePump charges the blue pump capacitor. All anodes are off
	// while the sink is grounded; nothing may light during this phase.
	PhaseChargePump Phase = iota
	// PhaseSettle releases the sink, selects the pixel and stages the blue
	// duty so it latches for the next cycle.
	PhaseSettle
	// PhaseShowBlue is the cycle in which the blue diode lights.
	PhaseShowBlue
	// PhaseShowRed is the cycle in which the red diode lights; the blue
	// line floats from here so the capacitor holds its charge.
	PhaseShowRed
	// PhaseShowGreen is the cycle in which the green diode lights. At its
	// end the cursor advances, and at the wrap to pixel zero a pending
	// frame publish is taken.
	PhaseShowGreen
)

func (p Phase) String() string {
	switch p {
	case PhaseChargePump:
		return "pump"
	case PhaseSettle:
		return "settle"
	case PhaseShowBlue:
		return "blue"
	case PhaseShowRed:
		return "red"
	case PhaseShowGreen:
		return "green"
	}
	return "?"
}

type cursor struct {
	pixel uint8
	phase Phase
}

// Scanner steps the multiplex state machine. Exactly one holder — the
// counter interrupt wiring — may call these methods; they touch state that
// is unsynchronized by design, so calling them from more than one context
// corrupts the scan.
type Scanner struct {
	e *Engine
}

// StepCounterA services the counter-A cycle boundary: it fires the timing
// hooks and advances the scan by one phase. The compare codes it loads are
// latched by the hardware at the NEXT boundary, which is exactly when the
// phase they belong to begins.
func (s Scanner) StepCounterA() {
	s.e.hooks.HalfCycle()
	s.e.step()
	s.e.hooks.Cycle()
}

// TickCounterB services counter B's mid-cycle event. It only drives the
// half-rate timing hook; the scan itself is advanced by counter A alone.
func (s Scanner) TickCounterB() {
	s.e.hooks.HalfCycle()
}

func (e *Engine) step() {
	hw := e.hw
	cur := &e.cur
	slot := &e.bufs[e.active.Load()][cur.pixel]

	switch cur.phase {
	case PhaseChargePump:
		// The previous pixel's green phase just ended. Deselect before the
		// sink goes on; sink + anode at the same time shorts the lit LED.
		// The blue drive reconnects only when this pixel has blue content:
		// a driven idle-high line leaks through the pump capacitor and
		// faintly lights the blue LED.
		hw.DeactivateAnodes()
		if slot.B != DutyOff {
			hw.ConnectBlueDrive()
			hw.EnableChargeSink()
		}

	case PhaseSettle:
		hw.DisableChargeSink()
		hw.ActivateAnode(int(cur.pixel))
		hw.LoadBlue(slot.B) // latches as the blue phase begins

	case PhaseShowBlue:
		// Blue is lighting now. Stage the handover to red.
		hw.LoadBlue(DutyOff)
		hw.LoadRed(slot.R)

	case PhaseShowRed:
		// Red is lighting. Pull the blue line off the counter so the pump
		// capacitor stops draining, then stage the handover to green.
		hw.FloatBlueDrive()
		hw.LoadRed(DutyOff)
		hw.LoadGreen(slot.G)

	case PhaseShowGreen:
		hw.LoadGreen(DutyOff)
		cur.phase = PhaseChargePump
		cur.pixel++
		if cur.pixel == Count {
			cur.pixel = 0
			e.scans.Add(1)
			if e.swapReq.Load() != 0 {
				e.active.Store(1 - e.active.Load())
				e.swapReq.Store(0)
			}
		}
		return
	}
	cur.phase++
}
