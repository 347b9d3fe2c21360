//go:build rp2040

package pixel

import (
	"device/rp"
	"machine"
	"runtime/interrupt"
	"runtime/volatile"
	"unsafe"
)

// RP2040 binding. Two PWM slices play the two duty counters: slice A's
// channel A output is the red cathode and channel B the green; slice B's
// channel B output is the blue cathode, and its cycle also clocks the
// charge pump. Both slices count to TimerTop-1 and are released together
// through the block-wide EN register, which is the lockstep barrier. CC
// writes are double buffered by the PWM block and latch at wrap, matching
// what the scan expects.
//
// Slice B's counter is seeded half a cycle ahead of slice A, so its wrap
// interrupt lands mid-way through A's cycle and serves as the mid-cycle
// event (the blue output is half a cycle out of phase with red and green,
// which the eye cannot see).

// PWM register block, slices laid out back to back with the shared
// registers after them. device/rp flattens these; an overlay struct keeps
// the slice arithmetic readable.
type pwmSliceHW struct {
	CSR volatile.Register32
	DIV volatile.Register32
	CTR volatile.Register32
	CC  volatile.Register32
	TOP volatile.Register32
}

type pwmBlockHW struct {
	CH   [8]pwmSliceHW
	EN   volatile.Register32
	INTR volatile.Register32
	INTE volatile.Register32
	INTF volatile.Register32
	INTS volatile.Register32
}

var pwmBlock = (*pwmBlockHW)(unsafe.Pointer(rp.PWM))

// With the 125 MHz system clock this divider gives a ~2 kHz wrap rate, so a
// full scan of the tile lands near 66 Hz. 8.4 fixed point.
const pwmClockDiv = 244<<4 | 2

// DutyOff must map to a compare above TOP: CC == TOP still emits one low
// tick per cycle, enough to see in the dark.
func ccCode(duty uint8) uint32 {
	if duty == DutyOff {
		return TimerTop
	}
	return uint32(duty)
}

// RP2Config names the pins and PWM slices of one tile.
type RP2Config struct {
	Anodes [Count]machine.Pin

	// RedGreenSlice is the PWM slice whose A/B outputs are the red and
	// green cathode pins. BlueSlice's B output is the blue cathode.
	RedGreenSlice uint8
	BlueSlice     uint8

	RedPin, GreenPin, BluePin machine.Pin

	// SinkPin grounds the low side of the pump capacitor when driven low.
	SinkPin machine.Pin
}

// RP2Hardware implements Hardware on the RP2040 PWM block.
type RP2Hardware struct {
	cfg     RP2Config
	rg      *pwmSliceHW
	blue    *pwmSliceHW
	enMask  uint32
	intMask uint32
}

var (
	rp2Scanner  Scanner
	rp2Active   *RP2Hardware
	rp2Attached bool
)

// NewRP2Hardware builds the binding. Attach must be called once, after
// pixel.New, to hook the wrap interrupt to the engine's scanner.
func NewRP2Hardware(cfg RP2Config) *RP2Hardware {
	return &RP2Hardware{
		cfg:     cfg,
		rg:      &pwmBlock.CH[cfg.RedGreenSlice],
		blue:    &pwmBlock.CH[cfg.BlueSlice],
		enMask:  1<<cfg.RedGreenSlice | 1<<cfg.BlueSlice,
		intMask: 1<<cfg.RedGreenSlice | 1<<cfg.BlueSlice,
	}
}

// Attach registers the PWM wrap interrupt for the engine driving this
// hardware. One tile per chip; Attach panics on a second call.
func (h *RP2Hardware) Attach(e *Engine) {
	if rp2Attached {
		panic("pixel: wrap interrupt already attached")
	}
	rp2Attached = true
	rp2Active = h
	rp2Scanner = e.Scanner()

	intr := interrupt.New(rp.IRQ_PWM_IRQ_WRAP, pwmWrapHandler)
	intr.Enable()
}

func pwmWrapHandler(interrupt.Interrupt) {
	h := rp2Active
	ints := pwmBlock.INTS.Get()
	pwmBlock.INTR.Set(ints) // write 1 to clear
	if ints&(1<<h.cfg.RedGreenSlice) != 0 {
		rp2Scanner.StepCounterA()
	}
	if ints&(1<<h.cfg.BlueSlice) != 0 {
		rp2Scanner.TickCounterB()
	}
}

func (h *RP2Hardware) ConfigureLines() {
	for _, p := range h.cfg.Anodes {
		p.Configure(machine.PinConfig{Mode: machine.PinOutput})
		p.Low()
	}
	h.cfg.RedPin.Configure(machine.PinConfig{Mode: machine.PinPWM})
	h.cfg.GreenPin.Configure(machine.PinConfig{Mode: machine.PinPWM})
	h.cfg.BluePin.Configure(machine.PinConfig{Mode: machine.PinInput})
	h.cfg.SinkPin.Configure(machine.PinConfig{Mode: machine.PinInput})

	for _, sl := range []*pwmSliceHW{h.rg, h.blue} {
		sl.CSR.Set(0) // halted, free-running mode, no inversion
		sl.DIV.Set(pwmClockDiv)
		sl.TOP.Set(TimerTop - 1)
		sl.CC.Set(ccCode(DutyOff)<<16 | ccCode(DutyOff))
	}

	pwmBlock.INTR.Set(h.intMask)
	pwmBlock.INTE.SetBits(h.intMask)
}

func (h *RP2Hardware) ActivateAnode(i int) { h.cfg.Anodes[i].High() }

func (h *RP2Hardware) DeactivateAnodes() {
	for _, p := range h.cfg.Anodes {
		p.Low()
	}
}

func (h *RP2Hardware) ConnectBlueDrive() {
	h.cfg.BluePin.Configure(machine.PinConfig{Mode: machine.PinPWM})
}

func (h *RP2Hardware) FloatBlueDrive() {
	h.cfg.BluePin.Configure(machine.PinConfig{Mode: machine.PinInput})
}

func (h *RP2Hardware) EnableChargeSink() {
	h.cfg.SinkPin.Configure(machine.PinConfig{Mode: machine.PinOutput})
	h.cfg.SinkPin.Low()
}

func (h *RP2Hardware) DisableChargeSink() {
	h.cfg.SinkPin.Configure(machine.PinConfig{Mode: machine.PinInput})
}

func (h *RP2Hardware) LoadRed(duty uint8) {
	h.rg.CC.ReplaceBits(ccCode(duty), 0xffff, 0)
}

func (h *RP2Hardware) LoadGreen(duty uint8) {
	h.rg.CC.ReplaceBits(ccCode(duty), 0xffff, 16)
}

func (h *RP2Hardware) LoadBlue(duty uint8) {
	h.blue.CC.ReplaceBits(ccCode(duty), 0xffff, 16)
}

func (h *RP2Hardware) StartCounters() {
	// The EN register aliases the per-slice CSR.EN bits, so a single
	// SetBits releases both counters in the same clock. Seed them while
	// held; slice B starts half a cycle ahead to phase its wrap event.
	pwmBlock.EN.ClearBits(h.enMask)
	h.rg.CTR.Set(0)
	h.blue.CTR.Set(TimerTop / 2)
	pwmBlock.INTR.Set(h.intMask)
	pwmBlock.EN.SetBits(h.enMask)
}

func (h *RP2Hardware) StopCounters() {
	pwmBlock.EN.ClearBits(h.enMask)
	h.DeactivateAnodes()
	h.FloatBlueDrive()
	h.DisableChargeSink()
	h.rg.CC.Set(ccCode(DutyOff)<<16 | ccCode(DutyOff))
	h.blue.CC.Set(ccCode(DutyOff)<<16 | ccCode(DutyOff))
}
