//go:build !rp2040

// cmd/tiletest/main.go
//
// Host smoke test for the display stack: runs the engine on the simulated
// tile, drives the whole control surface over the bus and prints what the
// tile would show. Exits non-zero on the first failure.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"ledtile-go/bus"
	"ledtile-go/drivers/pixel"
	"ledtile-go/services/display"
	"ledtile-go/types"
)

const readyTimeout = 5 * time.Second

// ---------- Topics ----------

func tState() bus.Topic { return bus.T("display", "state") }
func tValue() bus.Topic { return bus.T("display", "cap", "pixels", "tile", "value") }
func tControl(verb string) bus.Topic {
	return bus.T("display", "cap", "pixels", "tile", "control", verb)
}

// ---------- Helpers ----------

func waitDisplayReady(c *bus.Connection, d time.Duration) bool {
	sub := c.Subscribe(tState())
	defer sub.Unsubscribe()

	dead := time.Now().Add(d)
	for time.Now().Before(dead) {
		select {
		case m := <-sub.Channel():
			if st, ok := m.Payload.(types.ServiceState); ok && st.Level == "ready" {
				return true
			}
		default:
			time.Sleep(10 * time.Millisecond)
		}
	}
	return false
}

func request(ui *bus.Connection, verb string, payload any) error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	reply, err := ui.RequestWait(ctx, ui.NewMessage(tControl(verb), payload, false))
	if err != nil {
		return err
	}
	m, _ := reply.Payload.(map[string]any)
	if m["ok"] != true {
		return fmt.Errorf("%s rejected: %v", verb, m["error"])
	}
	return nil
}

func fail(step string, err error) {
	fmt.Println("[tiletest] FAIL", step+":", err)
	os.Exit(1)
}

// ---------- Main ----------

func main() {
	ctx := context.Background()

	b := bus.NewBus(8)

	hw := pixel.NewSim()
	eng := pixel.New(hw, pixel.Config{})
	eng.Init()

	s := eng.Scanner()
	go func() {
		for {
			hw.RunCycle(s)
			time.Sleep(200 * time.Microsecond)
		}
	}()

	go display.Run(ctx, b.NewConnection("display"), eng)

	ui := b.NewConnection("ui")
	ui.Publish(ui.NewMessage(bus.T("config", "display"),
		types.DisplayConfig{Name: "tile", AutoEnable: true}, true))

	if !waitDisplayReady(ui, readyTimeout) {
		fail("startup", fmt.Errorf("display not ready within %s", readyTimeout))
	}
	fmt.Println("[tiletest] display ready")

	// Walk a raw dot around the tile.
	for i := 0; i < pixel.Count; i++ {
		if err := request(ui, "clear", nil); err != nil {
			fail("clear", err)
		}
		if err := request(ui, "set_raw", types.PixelSetRaw{Index: i, R: 0, G: 255, B: 255}); err != nil {
			fail("set_raw", err)
		}
		if err := request(ui, "show", nil); err != nil {
			fail("show", err)
		}
		snap := eng.Snapshot()
		fmt.Printf("[tiletest] dot at %d: %v\n", i, snap)
		if snap[i].R != 0 {
			fail("walk", fmt.Errorf("pixel %d not lit red", i))
		}
	}

	// Full-tile fade up and down.
	up := types.PixelFade{DurationMs: 300, Steps: 16}
	up.To.R, up.To.G, up.To.B = 255, 255, 255
	if err := request(ui, "fade", up); err != nil {
		fail("fade up", err)
	}
	time.Sleep(500 * time.Millisecond)

	down := types.PixelFade{DurationMs: 300, Steps: 16}
	if err := request(ui, "fade", down); err != nil {
		fail("fade down", err)
	}
	time.Sleep(500 * time.Millisecond)

	// The retained frame value must reflect the last publish.
	sub := ui.Subscribe(tValue())
	select {
	case m := <-sub.Channel():
		fv, ok := m.Payload.(types.FrameValue)
		if !ok {
			fail("value", fmt.Errorf("payload %T", m.Payload))
		}
		fmt.Printf("[tiletest] final frame: %+v\n", fv)
	case <-time.After(2 * time.Second):
		fail("value", fmt.Errorf("no retained frame value"))
	}
	sub.Unsubscribe()

	if v := hw.Violations(); len(v) != 0 {
		fail("electrical", fmt.Errorf("%v", v))
	}

	fmt.Println("[tiletest] scans:", eng.Scans())
	fmt.Println("[tiletest] PASS")
}
