//go:build !rp2040

package pixel

import "sync"

// Op identifies one recorded hardware operation.
type Op uint8

const (
	OpActivateAnode Op = iota
	OpDeactivateAnodes
	OpConnectBlue
	OpFloatBlue
	OpEnableSink
	OpDisableSink
	OpLoadRed
	OpLoadGreen
	OpLoadBlue
	OpStart
	OpStop
)

// HWEvent is one entry in the simulated hardware's operation log.
type HWEvent struct {
	Op  Op
	Arg uint8 // anode index or duty code
}

// LitEvent records a channel that would visibly emit light during one
// counter cycle: an anode was active while a latched compare held a code
// other than DutyOff.
type LitEvent struct {
	Pixel   int
	Channel byte // 'R', 'G' or 'B'
	Duty    uint8
}

// SimHardware is a host-side Hardware that models the electrical behavior
// the engine depends on, including the one-cycle latch delay of the compare
// registers. It records everything it is asked to do and flags line states
// that would damage a real tile.
type SimHardware struct {
	mu sync.Mutex

	configured bool
	running    bool

	anode      int // -1 when none selected
	blueDriven bool
	sink       bool

	stagedR, stagedG, stagedB uint8
	liveR, liveG, liveB       uint8

	events     []HWEvent
	lit        []LitEvent
	violations []string
}

// NewSim returns a simulated tile with all lines inert.
func NewSim() *SimHardware {
	return &SimHardware{
		anode:   -1,
		stagedR: DutyOff, stagedG: DutyOff, stagedB: DutyOff,
		liveR: DutyOff, liveG: DutyOff, liveB: DutyOff,
	}
}

func (h *SimHardware) record(op Op, arg uint8) {
	h.events = append(h.events, HWEvent{Op: op, Arg: arg})
}

func (h *SimHardware) ConfigureLines() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.configured = true
	h.anode = -1
	h.blueDriven = false
	h.sink = false
}

func (h *SimHardware) ActivateAnode(i int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.sink {
		h.violations = append(h.violations, "anode raised while charge sink grounded")
	}
	h.anode = i
	h.record(OpActivateAnode, uint8(i))
}

func (h *SimHardware) DeactivateAnodes() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.anode = -1
	h.record(OpDeactivateAnodes, 0)
}

func (h *SimHardware) ConnectBlueDrive() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.blueDriven = true
	h.record(OpConnectBlue, 0)
}

func (h *SimHardware) FloatBlueDrive() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.blueDriven = false
	h.record(OpFloatBlue, 0)
}

func (h *SimHardware) EnableChargeSink() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.anode >= 0 {
		h.violations = append(h.violations, "charge sink grounded while anode active")
	}
	h.sink = true
	h.record(OpEnableSink, 0)
}

func (h *SimHardware) DisableChargeSink() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sink = false
	h.record(OpDisableSink, 0)
}

func (h *SimHardware) LoadRed(duty uint8) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.stagedR = duty
	h.record(OpLoadRed, duty)
}

func (h *SimHardware) LoadGreen(duty uint8) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.stagedG = duty
	h.record(OpLoadGreen, duty)
}

func (h *SimHardware) LoadBlue(duty uint8) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.stagedB = duty
	h.record(OpLoadBlue, duty)
}

func (h *SimHardware) StartCounters() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.running = true
	h.record(OpStart, 0)
}

func (h *SimHardware) StopCounters() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.running = false
	h.anode = -1
	h.blueDriven = false
	h.sink = false
	h.stagedR, h.stagedG, h.stagedB = DutyOff, DutyOff, DutyOff
	h.liveR, h.liveG, h.liveB = DutyOff, DutyOff, DutyOff
	h.record(OpStop, 0)
}

// RunCycle plays one counter-A cycle: the staged compares latch at the
// boundary, light emitted during the cycle is accounted, and the scanner is
// stepped. Tests and the host demo drive the engine with this in place of
// the wrap interrupt.
func (h *SimHardware) RunCycle(s Scanner) {
	h.mu.Lock()
	if !h.running {
		h.mu.Unlock()
		return
	}
	h.liveR, h.liveG, h.liveB = h.stagedR, h.stagedG, h.stagedB
	if h.anode >= 0 {
		if h.liveR != DutyOff {
			h.lit = append(h.lit, LitEvent{Pixel: h.anode, Channel: 'R', Duty: h.liveR})
		}
		if h.liveG != DutyOff {
			h.lit = append(h.lit, LitEvent{Pixel: h.anode, Channel: 'G', Duty: h.liveG})
		}
		if h.blueDriven && h.liveB != DutyOff {
			h.lit = append(h.lit, LitEvent{Pixel: h.anode, Channel: 'B', Duty: h.liveB})
		}
	}
	h.mu.Unlock()

	s.StepCounterA()
	s.TickCounterB()
}

// RunScan plays one full pass over the tile.
func (h *SimHardware) RunScan(s Scanner) {
	for i := 0; i < StepsPerScan; i++ {
		h.RunCycle(s)
	}
}

// Inert reports whether every drive line is in its powered-down state.
func (h *SimHardware) Inert() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return !h.running && h.anode < 0 && !h.blueDriven && !h.sink
}

// Running reports whether StartCounters is in effect.
func (h *SimHardware) Running() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.running
}

// Events returns a copy of the operation log.
func (h *SimHardware) Events() []HWEvent {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]HWEvent, len(h.events))
	copy(out, h.events)
	return out
}

// Lit returns a copy of the emitted-light log.
func (h *SimHardware) Lit() []LitEvent {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]LitEvent, len(h.lit))
	copy(out, h.lit)
	return out
}

// Violations returns the electrical violations observed so far.
func (h *SimHardware) Violations() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]string, len(h.violations))
	copy(out, h.violations)
	return out
}

// ResetLog clears the operation and light logs, keeping line state.
func (h *SimHardware) ResetLog() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = h.events[:0]
	h.lit = h.lit[:0]
}
