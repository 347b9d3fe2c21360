package main

import (
	"context"
	"runtime"
	"time"

	"ledtile-go/bus"
	"ledtile-go/services/calib"
	"ledtile-go/services/config"
	"ledtile-go/services/display"
	"ledtile-go/services/heartbeat"
	"ledtile-go/types"
)

func main() {
	// Allow USB CDC to enumerate before we print.
	time.Sleep(2 * time.Second)
	println("[main] boot")

	ctx := context.Background()
	b := bus.NewBus(8)

	eng, port := initPlatform()
	eng.Init()

	println("[main] starting display service …")
	go display.Run(ctx, b.NewConnection("display"), eng)

	hb := &heartbeat.Service{Scans: eng.Scans}
	_ = hb.Start(ctx, b.NewConnection("heartbeat"))

	if port != nil {
		println("[main] starting calib console …")
		go calib.Run(ctx, b.NewConnection("calib"), port, calib.Config{})
	}

	println("[main] publishing embedded config …")
	cfgSvc := config.NewConfigService()
	cfgSvc.Start(context.WithValue(ctx, config.CtxDeviceKey, "tile"), b.NewConnection("config"))

	ui := b.NewConnection("ui")

	// Short boot blink through the public control surface, so a bricked
	// service shows up immediately as a dark tile.
	fade := func(r, g, b8 uint8, ms uint32) {
		p := types.PixelFade{DurationMs: ms, Steps: 16}
		p.To.R, p.To.G, p.To.B = r, g, b8
		rctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if _, err := ui.RequestWait(rctx, ui.NewMessage(
			bus.T("display", "cap", "pixels", "tile", "control", "fade"), p, false)); err != nil {
			println("[main] boot fade error:", err.Error())
		}
		time.Sleep(time.Duration(ms)*time.Millisecond + 100*time.Millisecond)
	}
	fade(0, 128, 0, 400)
	fade(0, 0, 0, 400)

	for {
		time.Sleep(10 * time.Second)
		println("[main] scans:", eng.Scans())
		printMem()
	}
}

// printMem prints a compact snapshot of TinyGo runtime memory stats.
// Uses builtin println to avoid fmt overhead/allocations.
func printMem() {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	println(
		"[mem]",
		"alloc:", uint32(ms.Alloc),
		"heapInuse:", uint32(ms.HeapInuse),
		"heapSys:", uint32(ms.HeapSys),
		"mallocs:", uint32(ms.Mallocs),
		"frees:", uint32(ms.Frees),
	)
}
