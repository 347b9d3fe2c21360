// Package pixel is the display engine for the tile's six multiplexed RGB
// pixels.
//
// Only one pixel is lit at any moment. A pixel is selected by raising its
// anode line; the shared red, green and blue cathode lines are then driven
// by hardware counter outputs to control brightness. Counter A generates the
// red and green duty cycles and raises the overflow event that advances the
// scan; counter B generates the blue duty cycle and clocks the charge pump
// that pulls the blue cathode below ground (needed once the battery sags
// under the blue forward voltage). Both counters run in lockstep.
//
// Compare values written in one counter cycle are latched by the hardware at
// the next cycle boundary, so every step of the scan loads the codes for the
// step after it. The scan itself is a fixed five-phase sequence per pixel;
// see phase.go.
//
// Frames are double buffered: foreground code edits a pending frame and asks
// for it to be published; the scanner swaps buffers only when the scan wraps
// back to pixel zero, so a whole frame always appears at once.
package pixel

import (
	"runtime"
	"sync/atomic"
)

// Count is the number of physical pixels on the tile.
const Count = 6

// DutyOff is the duty code that produces no light on a channel. Smaller
// codes light the channel for longer within each drive cycle (the drive
// lines idle high, so the encoding is inverted).
const DutyOff = 0xFF

// Color is a perceptual color with 5-bit channels (0..31). Only the low
// five bits of each channel are used.
type Color struct {
	R, G, B uint8
}

// Slot holds the raw duty codes of one pixel as scanned out by the engine.
type Slot struct {
	R, G, B uint8
}

type frame [Count]Slot

func (f *frame) reset() {
	for i := range f {
		f[i] = Slot{R: DutyOff, G: DutyOff, B: DutyOff}
	}
}

// Engine owns the two frame buffers, the scan cursor and the hardware. All
// exported methods are for foreground use; the scan itself runs through the
// Scanner handle from counter interrupt context.
type Engine struct {
	hw    Hardware
	hooks Hooks

	bufs    [2]frame
	active  atomic.Uint32 // index of the frame being scanned out
	swapReq atomic.Uint32 // nonzero while a publish is waiting for wrap

	cur cursor // owned by the scanner, never touched from foreground

	scans atomic.Uint32 // full scan cycles completed

	inited  bool
	enabled atomic.Bool
}

// Config carries construction-time options.
type Config struct {
	// Hooks are the fixed-rate timing callbacks consumed by the infrared
	// subsystem. Nil hooks are replaced with no-ops.
	Hooks Hooks
}

// New builds an engine on the given hardware. Call Init before Enable.
func New(hw Hardware, cfg Config) *Engine {
	e := &Engine{hw: hw, hooks: cfg.Hooks}
	if e.hooks.Cycle == nil {
		e.hooks.Cycle = func() {}
	}
	if e.hooks.HalfCycle == nil {
		e.hooks.HalfCycle = func() {}
	}
	return e
}

// Init clears both frames to all-off and configures the drive lines. The
// counters are not started. Safe to call more than once; only the first
// call does anything.
func (e *Engine) Init() {
	if e.inited {
		return
	}
	e.inited = true
	e.bufs[0].reset()
	e.bufs[1].reset()
	e.hw.ConfigureLines()
}

// Enable starts the counters. The cursor is deliberately not reset: the
// scan resumes where Disable left it, at worst redundantly deactivating the
// pixel that was already dark.
func (e *Engine) Enable() {
	if e.enabled.Load() {
		return
	}
	e.enabled.Store(true)
	e.hw.StartCounters()
}

// Disable stops both counters and leaves every drive line inert, so no LED
// can light and no current can leak through the pump capacitor. Safe to
// call at any time, any number of times. Required before sleep.
func (e *Engine) Disable() {
	e.enabled.Store(false)
	e.hw.StopCounters()
}

// Enabled reports whether the scan is running.
func (e *Engine) Enabled() bool { return e.enabled.Load() }

// SetPixel writes one gamma-mapped color into the pending frame.
func (e *Engine) SetPixel(i int, c Color) {
	e.bufs[1-e.active.Load()][i] = MapColor(c)
}

// SetPixelRaw writes raw duty codes into the pending frame, bypassing
// gamma. Calibration tooling only; normal rendering goes through SetPixel.
func (e *Engine) SetPixelRaw(i int, r, g, b uint8) {
	e.bufs[1-e.active.Load()][i] = Slot{R: r, G: g, B: b}
}

// RequestDisplay asks the scanner to publish the pending frame at the next
// scan wrap. It does not wait. At most one publish may be in flight; the
// caller must observe DisplayPending() == false before editing the pending
// frame again or requesting another publish.
func (e *Engine) RequestDisplay() {
	e.swapReq.Store(1)
}

// DisplayPending reports whether a requested publish has not yet been taken
// by the scanner.
func (e *Engine) DisplayPending() bool {
	return e.swapReq.Load() != 0
}

// Display publishes the pending frame and blocks until the scanner has
// swapped it in, which takes at most one full scan cycle. It then reseeds
// the new pending frame from the now-active one, so subsequent edits start
// from what is on the tile rather than stale data.
//
// With the counters stopped there is no scanner to take the request, so the
// swap is performed inline; that is safe precisely because nothing else can
// be touching the buffers.
func (e *Engine) Display() {
	if !e.enabled.Load() {
		act := 1 - e.active.Load()
		e.active.Store(act)
		e.swapReq.Store(0)
		e.bufs[1-act] = e.bufs[act]
		return
	}
	e.swapReq.Store(1)
	for e.swapReq.Load() != 0 {
		runtime.Gosched()
	}
	act := e.active.Load()
	e.bufs[1-act] = e.bufs[act]
}

// Snapshot returns a copy of the frame currently being scanned out.
func (e *Engine) Snapshot() [Count]Slot {
	return e.bufs[e.active.Load()]
}

// Scans returns the number of completed full scan cycles since Init.
func (e *Engine) Scans() uint32 { return e.scans.Load() }

// Scanner returns the stepping handle. Only the counter interrupt wiring
// should hold one; keeping the step methods off Engine keeps foreground
// code from advancing the scan by accident.
func (e *Engine) Scanner() Scanner { return Scanner{e: e} }
