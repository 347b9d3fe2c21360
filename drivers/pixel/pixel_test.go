package pixel

import (
	"testing"
	"time"
)

func newTestEngine(t *testing.T) (*Engine, *SimHardware, Scanner) {
	t.Helper()
	hw := NewSim()
	e := New(hw, Config{})
	e.Init()
	e.Enable()
	return e, hw, e.Scanner()
}

// runUntil steps the sim from a helper goroutine until fn returns, so tests
// can exercise the blocking foreground API the way real interrupts would.
func runUntil(hw *SimHardware, s Scanner, fn func()) {
	stop := make(chan struct{})
	go func() {
		for {
			select {
			case <-stop:
				return
			default:
				hw.RunCycle(s)
			}
		}
	}()
	fn()
	close(stop)
}

func TestGammaTablesShape(t *testing.T) {
	for name, tab := range map[string]*[32]uint8{"red": &gammaR, "green": &gammaG, "blue": &gammaB} {
		if tab[0] != DutyOff {
			t.Errorf("%s: entry 0 = %d, want %d (off)", name, tab[0], DutyOff)
		}
		for i := 1; i < len(tab); i++ {
			if tab[i] >= tab[i-1] {
				t.Errorf("%s: entry %d = %d not below entry %d = %d", name, i, tab[i], i-1, tab[i-1])
			}
		}
	}
}

func TestMapColorUsesLowFiveBits(t *testing.T) {
	a := MapColor(Color{R: 5, G: 5, B: 5})
	b := MapColor(Color{R: 5 + 32, G: 5 + 64, B: 5 + 128})
	if a != b {
		t.Fatalf("high bits changed mapping: %v vs %v", a, b)
	}
	if got := MapColor(Color{}); got != (Slot{R: DutyOff, G: DutyOff, B: DutyOff}) {
		t.Fatalf("black mapped to %v, want all off", got)
	}
}

func TestAllOffEmitsNoLight(t *testing.T) {
	_, hw, s := newTestEngine(t)
	for i := 0; i < 3; i++ {
		hw.RunScan(s)
	}
	if lit := hw.Lit(); len(lit) != 0 {
		t.Fatalf("dark tile emitted light: %v", lit)
	}
	if v := hw.Violations(); len(v) != 0 {
		t.Fatalf("violations on dark scan: %v", v)
	}
}

func TestScanCounterAdvancesPerFullPass(t *testing.T) {
	e, hw, s := newTestEngine(t)
	for i := 0; i < StepsPerScan-1; i++ {
		hw.RunCycle(s)
	}
	if got := e.Scans(); got != 0 {
		t.Fatalf("scans = %d before the wrap cycle", got)
	}
	hw.RunCycle(s)
	if got := e.Scans(); got != 1 {
		t.Fatalf("scans = %d after one full pass, want 1", got)
	}
	hw.RunScan(s)
	if got := e.Scans(); got != 2 {
		t.Fatalf("scans = %d after two passes, want 2", got)
	}
}

func TestTwoPixelFrame(t *testing.T) {
	e, hw, s := newTestEngine(t)

	e.SetPixelRaw(0, 0, DutyOff, DutyOff)
	e.SetPixelRaw(3, DutyOff, 0, DutyOff)
	runUntil(hw, s, e.Display)
	hw.ResetLog()

	hw.RunScan(s)

	redZero := 0
	for _, ev := range hw.Events() {
		if ev.Op == OpLoadRed && ev.Arg == 0 {
			redZero++
		}
	}
	if redZero != 1 {
		t.Fatalf("full-on red loaded %d times per scan, want 1", redZero)
	}

	anodes := 0
	for _, ev := range hw.Events() {
		if ev.Op == OpActivateAnode {
			anodes++
		}
	}
	if anodes != Count {
		t.Fatalf("selected %d pixels per scan, want %d", anodes, Count)
	}

	for _, l := range hw.Lit() {
		switch {
		case l.Pixel == 0 && l.Channel == 'R' && l.Duty == 0:
		case l.Pixel == 3 && l.Channel == 'G' && l.Duty == 0:
		default:
			t.Fatalf("unexpected light: pixel %d channel %c duty %d", l.Pixel, l.Channel, l.Duty)
		}
	}
	if v := hw.Violations(); len(v) != 0 {
		t.Fatalf("violations: %v", v)
	}
}

func TestSwapHappensOnlyAtWrap(t *testing.T) {
	e, hw, s := newTestEngine(t)

	e.SetPixelRaw(2, 10, 20, 30)
	e.RequestDisplay()

	// Up to the cycle before the wrap the active frame must stay dark.
	for i := 0; i < StepsPerScan-1; i++ {
		hw.RunCycle(s)
		if got := e.Snapshot()[2]; got != (Slot{DutyOff, DutyOff, DutyOff}) {
			t.Fatalf("frame swapped mid-scan at cycle %d: %v", i, got)
		}
	}
	hw.RunCycle(s)
	if e.DisplayPending() {
		t.Fatal("publish still pending after wrap")
	}
	if got := e.Snapshot()[2]; got != (Slot{10, 20, 30}) {
		t.Fatalf("active frame after wrap = %v", got)
	}
}

func TestDisplayReseedsPendingFrame(t *testing.T) {
	e, hw, s := newTestEngine(t)

	e.SetPixel(1, Color{R: 31, G: 15, B: 7})
	runUntil(hw, s, e.Display)
	shown := e.Snapshot()

	// A second publish with no edits must not change anything.
	runUntil(hw, s, e.Display)
	if got := e.Snapshot(); got != shown {
		t.Fatalf("frame drifted across an edit-free publish: %v -> %v", shown, got)
	}
}

func TestDisplayWhileDisabledDoesNotBlock(t *testing.T) {
	e, _, _ := newTestEngine(t)
	e.Disable()

	done := make(chan struct{})
	go func() {
		e.SetPixelRaw(4, 1, 2, 3)
		e.Display()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Display blocked with the counters stopped")
	}
	if got := e.Snapshot()[4]; got != (Slot{1, 2, 3}) {
		t.Fatalf("inline swap not applied: %v", got)
	}
}

func TestDisableIsIdempotentAndInert(t *testing.T) {
	e, hw, s := newTestEngine(t)
	e.SetPixelRaw(0, 0, 0, 0)
	runUntil(hw, s, e.Display)
	hw.RunCycle(s)
	hw.RunCycle(s)

	e.Disable()
	e.Disable()
	if !hw.Inert() {
		t.Fatal("drive lines not inert after Disable")
	}
	if e.Enabled() {
		t.Fatal("engine still reports enabled")
	}

	// Re-enable resumes scanning from where it stopped.
	e.Enable()
	if !hw.Running() {
		t.Fatal("counters not restarted")
	}
	hw.RunScan(s)
	if v := hw.Violations(); len(v) != 0 {
		t.Fatalf("violations after restart: %v", v)
	}
}

func TestTimingHooksFire(t *testing.T) {
	var cycles, halves int
	hw := NewSim()
	e := New(hw, Config{Hooks: Hooks{
		Cycle:     func() { cycles++ },
		HalfCycle: func() { halves++ },
	}})
	e.Init()
	e.Enable()
	s := e.Scanner()

	hw.RunScan(s)
	if cycles != StepsPerScan {
		t.Fatalf("cycle hook fired %d times, want %d", cycles, StepsPerScan)
	}
	if halves != 2*StepsPerScan {
		t.Fatalf("half-cycle hook fired %d times, want %d", halves, 2*StepsPerScan)
	}
}

func TestBlueLineStaysFloatedWithoutBlueContent(t *testing.T) {
	e, hw, s := newTestEngine(t)

	e.SetPixelRaw(1, 0, 0, DutyOff)
	runUntil(hw, s, e.Display)
	hw.ResetLog()

	hw.RunScan(s)
	for _, ev := range hw.Events() {
		if ev.Op == OpConnectBlue {
			t.Fatal("blue drive connected during a scan with no blue content")
		}
		if ev.Op == OpEnableSink {
			t.Fatal("charge sink enabled during a scan with no blue content")
		}
	}

	// With blue on exactly one pixel the drive reconnects once per scan.
	e.SetPixelRaw(2, DutyOff, DutyOff, 0)
	runUntil(hw, s, e.Display)
	hw.ResetLog()

	hw.RunScan(s)
	connects := 0
	for _, ev := range hw.Events() {
		if ev.Op == OpConnectBlue {
			connects++
		}
	}
	if connects != 1 {
		t.Fatalf("blue drive connected %d times per scan, want 1", connects)
	}
}

func TestChargePumpNeverShortsLitPixel(t *testing.T) {
	e, hw, s := newTestEngine(t)
	for i := 0; i < Count; i++ {
		e.SetPixel(i, Color{R: 31, G: 31, B: 31})
	}
	runUntil(hw, s, e.Display)
	for i := 0; i < 4; i++ {
		hw.RunScan(s)
	}
	if v := hw.Violations(); len(v) != 0 {
		t.Fatalf("violations with all pixels lit: %v", v)
	}

	// Blue on every pixel means the sink must charge the pump each step.
	sinks := 0
	for _, ev := range hw.Events() {
		if ev.Op == OpEnableSink {
			sinks++
		}
	}
	if sinks == 0 {
		t.Fatal("charge sink never enabled with blue content")
	}
}
