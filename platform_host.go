//go:build !rp2040

package main

import (
	"time"

	"ledtile-go/drivers/pixel"
	"ledtile-go/services/calib"
)

// Host build runs the engine on the simulated tile, with a goroutine
// standing in for the counter interrupts. There is no console port; use
// cmd/tiletest for an interactive host session.
func initPlatform() (*pixel.Engine, calib.Port) {
	hw := pixel.NewSim()
	eng := pixel.New(hw, pixel.Config{})
	s := eng.Scanner()
	go func() {
		for {
			hw.RunCycle(s)
			time.Sleep(500 * time.Microsecond)
		}
	}()
	return eng, nil
}
