//go:build rp2040

package main

import (
	"machine"

	uartx "github.com/jangala-dev/tinygo-uartx/uartx"

	"ledtile-go/drivers/pixel"
	"ledtile-go/services/calib"
)

// Tile rev B pin map. GP8/GP9 are the A/B outputs of PWM slice 4, GP11 is
// the B output of slice 5.
var tilePins = pixel.RP2Config{
	Anodes:        [pixel.Count]machine.Pin{machine.GPIO2, machine.GPIO3, machine.GPIO4, machine.GPIO5, machine.GPIO6, machine.GPIO7},
	RedGreenSlice: 4,
	BlueSlice:     5,
	RedPin:        machine.GPIO8,
	GreenPin:      machine.GPIO9,
	BluePin:       machine.GPIO11,
	SinkPin:       machine.GPIO12,
}

func initPlatform() (*pixel.Engine, calib.Port) {
	hw := pixel.NewRP2Hardware(tilePins)
	eng := pixel.New(hw, pixel.Config{})
	hw.Attach(eng)

	u := uartx.UART0
	_ = u.Configure(uartx.UARTConfig{
		BaudRate: 115200,
		TX:       machine.UART0_TX_PIN,
		RX:       machine.UART0_RX_PIN,
	})
	return eng, u
}
