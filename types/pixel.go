package types

import "tinygo.org/x/drivers/pixel"

// ---- Pixel display capability ----

// RawPixel carries the three raw duty codes of one pixel. 255 is "channel
// off"; smaller values are brighter. See drivers/pixel for the encoding.
type RawPixel struct {
	R uint8 `json:"r"`
	G uint8 `json:"g"`
	B uint8 `json:"b"`
}

// PixelsInfo is published under display/cap/.../info as Info.Detail.
type PixelsInfo struct {
	Count    int `json:"count"`     // physical pixels on the tile
	Phases   int `json:"phases"`    // multiplex sub-phases per pixel
	TimerTop int `json:"timer_top"` // counter ticks per sub-phase
}

// FrameValue is the retained .../value payload: the raw frame as published
// by the last "show", plus the engine scan counter at that moment.
type FrameValue struct {
	Slots []RawPixel `json:"slots"`
	Scans uint32     `json:"scans"`
}

// ---- Control payloads ----

// PixelSet writes one gamma-mapped color into the pending frame.
// Colors are 8-bit RGB; the display quantizes to its 5-bit gamma domain.
type PixelSet struct {
	Index int          `json:"index"`
	Color pixel.RGB888 `json:"color"`
}

// PixelSetRaw writes raw duty codes (calibration path, gamma bypassed).
type PixelSetRaw struct {
	Index int   `json:"index"`
	R     uint8 `json:"r"`
	G     uint8 `json:"g"`
	B     uint8 `json:"b"`
}

// PixelFill sets every pixel of the pending frame to one color.
type PixelFill struct {
	Color pixel.RGB888 `json:"color"`
}

// PixelFade ramps the whole tile from its current color state to To,
// publishing each intermediate frame. One fade may run at a time.
type PixelFade struct {
	To         pixel.RGB888 `json:"to"`
	DurationMs uint32       `json:"duration_ms"`
	Steps      uint16       `json:"steps"` // >0
}

// ---- Display service configuration ----

type DisplayConfig struct {
	Name       string `json:"name"`        // capability name, default "tile"
	AutoEnable bool   `json:"auto_enable"` // start scanning on config
}

// DisplayStats is the retained display/stats payload.
type DisplayStats struct {
	UptimeMs int64  `json:"uptime_ms"`
	Scans    uint32 `json:"scans"` // full scan cycles since boot
}
