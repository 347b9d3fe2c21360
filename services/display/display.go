// services/display/display.go
package display

import (
	"context"
	"encoding/json"
	"time"

	"ledtile-go/bus"
	"ledtile-go/drivers/pixel"
	"ledtile-go/errcode"
	"ledtile-go/types"
	"ledtile-go/x/mathx"
	"ledtile-go/x/ramp"
)

// -----------------------------------------------------------------------------
// Entry point
// -----------------------------------------------------------------------------

// Run owns the display engine for the life of the service. The engine must
// be constructed and Init'ed by the platform wiring; Run handles everything
// from there: configuration, the control surface and fades.
func Run(ctx context.Context, conn *bus.Connection, eng *pixel.Engine) {
	s := &service{
		conn: conn,
		eng:  eng,
		name: "tile",
	}
	s.loop(ctx)
}

type service struct {
	conn *bus.Connection
	eng  *pixel.Engine
	name string

	configured bool

	fadeCancel func() // non-nil while a fade is running
	fadeDone   chan struct{}
}

// -----------------------------------------------------------------------------
// Main loop
// -----------------------------------------------------------------------------

func (s *service) loop(ctx context.Context) {
	cfgSub := s.conn.Subscribe(bus.Topic{"config", "display"})
	ctrlSub := s.conn.Subscribe(bus.Topic{"display", "cap", "pixels", "+", "control", "+"})
	defer s.conn.Unsubscribe(cfgSub)
	defer s.conn.Unsubscribe(ctrlSub)

	s.publishState("idle", "awaiting_config", nil)

	for {
		select {
		case <-ctx.Done():
			s.stopFade()
			s.eng.Disable()
			s.publishState("stopped", "context_cancelled", nil)
			return

		case msg := <-cfgSub.Channel():
			var cfg types.DisplayConfig
			if err := decodeJSON(msg.Payload, &cfg); err != nil {
				s.publishState("error", "config_decode_failed", err)
				continue
			}
			s.applyConfig(cfg)
			s.publishState("ready", "configured", nil)

		case msg := <-ctrlSub.Channel():
			// display/cap/pixels/<name>/control/<verb>
			if len(msg.Topic) < 6 {
				continue
			}
			name, _ := msg.Topic[3].(string)
			if name != s.name {
				s.replyErr(msg, errcode.UnknownCapability)
				continue
			}
			verb, _ := msg.Topic[5].(string)
			s.control(ctx, msg, verb)
		}
	}
}

func (s *service) applyConfig(cfg types.DisplayConfig) {
	if cfg.Name != "" {
		s.name = cfg.Name
	}
	s.configured = true

	s.pubRet(s.capTopic("info"), types.Info{
		SchemaVersion: 1,
		Kind:          types.KindPixels,
		Driver:        "pixel-mux",
		Detail: types.PixelsInfo{
			Count:    pixel.Count,
			Phases:   pixel.StepsPerScan / pixel.Count,
			TimerTop: pixel.TimerTop,
		},
	})

	if cfg.AutoEnable {
		s.eng.Enable()
	}
	s.publishLink()
}

// -----------------------------------------------------------------------------
// Control surface
// -----------------------------------------------------------------------------

func (s *service) control(ctx context.Context, msg *bus.Message, verb string) {
	if !s.configured {
		s.replyErr(msg, errcode.NotReady)
		return
	}

	switch verb {
	case "enable":
		s.eng.Enable()
		s.publishLink()
		s.replyOK(msg, nil)

	case "disable":
		s.stopFade()
		s.eng.Disable()
		s.publishLink()
		s.replyOK(msg, nil)

	case "set":
		if s.fading() {
			s.replyErr(msg, errcode.Busy)
			return
		}
		var p types.PixelSet
		if err := decodeJSON(msg.Payload, &p); err != nil {
			s.replyErr(msg, errcode.InvalidPayload)
			return
		}
		if p.Index < 0 || p.Index >= pixel.Count {
			s.replyErr(msg, errcode.BadPixelIndex)
			return
		}
		s.eng.SetPixel(p.Index, quantize(p.Color.R, p.Color.G, p.Color.B))
		s.replyOK(msg, nil)

	case "set_raw":
		if s.fading() {
			s.replyErr(msg, errcode.Busy)
			return
		}
		var p types.PixelSetRaw
		if err := decodeJSON(msg.Payload, &p); err != nil {
			s.replyErr(msg, errcode.InvalidPayload)
			return
		}
		if p.Index < 0 || p.Index >= pixel.Count {
			s.replyErr(msg, errcode.BadPixelIndex)
			return
		}
		s.eng.SetPixelRaw(p.Index, p.R, p.G, p.B)
		s.replyOK(msg, nil)

	case "fill":
		if s.fading() {
			s.replyErr(msg, errcode.Busy)
			return
		}
		var p types.PixelFill
		if err := decodeJSON(msg.Payload, &p); err != nil {
			s.replyErr(msg, errcode.InvalidPayload)
			return
		}
		c := quantize(p.Color.R, p.Color.G, p.Color.B)
		for i := 0; i < pixel.Count; i++ {
			s.eng.SetPixel(i, c)
		}
		s.replyOK(msg, nil)

	case "clear":
		if s.fading() {
			s.replyErr(msg, errcode.Busy)
			return
		}
		for i := 0; i < pixel.Count; i++ {
			s.eng.SetPixelRaw(i, pixel.DutyOff, pixel.DutyOff, pixel.DutyOff)
		}
		s.replyOK(msg, nil)

	case "show":
		if s.fading() {
			s.replyErr(msg, errcode.Busy)
			return
		}
		s.eng.Display()
		s.publishValue()
		s.replyOK(msg, map[string]any{"scans": s.eng.Scans()})

	case "fade":
		var p types.PixelFade
		if err := decodeJSON(msg.Payload, &p); err != nil {
			s.replyErr(msg, errcode.InvalidPayload)
			return
		}
		if p.Steps == 0 {
			s.replyErr(msg, errcode.InvalidParams)
			return
		}
		if s.fading() {
			s.replyErr(msg, errcode.Busy)
			return
		}
		if !s.eng.Enabled() {
			s.replyErr(msg, errcode.Disabled)
			return
		}
		s.startFade(ctx, p)
		s.replyOK(msg, nil)

	default:
		s.replyErr(msg, errcode.Unsupported)
	}
}

// -----------------------------------------------------------------------------
// Fades
// -----------------------------------------------------------------------------

// startFade ramps every pixel from what is on the tile to the target color.
// The ramp runs in its own goroutine; the service rejects conflicting edits
// with Busy until it lands.
func (s *service) startFade(ctx context.Context, p types.PixelFade) {
	from := s.eng.Snapshot()
	to := pixel.MapColor(quantize(p.To.R, p.To.G, p.To.B))

	fctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	s.fadeCancel = cancel
	s.fadeDone = done

	go func() {
		defer close(done)
		defer cancel()

		tick := func(d time.Duration) bool {
			select {
			case <-fctx.Done():
				return false
			case <-time.After(d):
				return true
			}
		}
		set := func(level uint16) {
			t := mathx.MapU16(level, 0, p.Steps, 0, 65535)
			for i := 0; i < pixel.Count; i++ {
				s.eng.SetPixelRaw(i,
					lerpDuty(from[i].R, to.R, t),
					lerpDuty(from[i].G, to.G, t),
					lerpDuty(from[i].B, to.B, t),
				)
			}
			s.eng.Display()
		}
		ramp.StartLinear(0, p.Steps, p.Steps, p.DurationMs, p.Steps, tick, set)
		s.publishValue()
	}()
}

func (s *service) fading() bool {
	if s.fadeDone == nil {
		return false
	}
	select {
	case <-s.fadeDone:
		s.fadeCancel = nil
		s.fadeDone = nil
		return false
	default:
		return true
	}
}

func (s *service) stopFade() {
	if s.fadeCancel != nil {
		s.fadeCancel()
		<-s.fadeDone
		s.fadeCancel = nil
		s.fadeDone = nil
	}
}

// lerpDuty interpolates between two duty codes with t in Q16.
func lerpDuty(from, to uint8, t uint16) uint8 {
	return uint8(mathx.LerpU16(uint16(from), uint16(to), t))
}

// quantize folds an 8-bit color down to the engine's 5-bit gamma domain.
func quantize(r, g, b uint8) pixel.Color {
	return pixel.Color{R: r >> 3, G: g >> 3, B: b >> 3}
}

// -----------------------------------------------------------------------------
// Publishing
// -----------------------------------------------------------------------------

func (s *service) publishValue() {
	snap := s.eng.Snapshot()
	slots := make([]types.RawPixel, pixel.Count)
	for i, sl := range snap {
		slots[i] = types.RawPixel{R: sl.R, G: sl.G, B: sl.B}
	}
	s.pubRet(s.capTopic("value"), types.FrameValue{Slots: slots, Scans: s.eng.Scans()})
}

func (s *service) publishLink() {
	link := types.LinkDown
	if s.eng.Enabled() {
		link = types.LinkUp
	}
	s.pubRet(s.capTopic("state"), types.CapabilityStatus{Link: link, TS: time.Now().UnixMilli()})
}

func (s *service) publishState(level, status string, err error) {
	st := types.ServiceState{Level: level, Status: status, TS: time.Now().UnixMilli()}
	if err != nil {
		st.Error = err.Error()
	}
	s.conn.Publish(s.conn.NewMessage(bus.Topic{"display", "state"}, st, true))
}

func (s *service) capTopic(rest ...bus.Token) bus.Topic {
	base := bus.Topic{"display", "cap", "pixels", s.name}
	return append(base, rest...)
}

func (s *service) pubRet(t bus.Topic, p any) {
	s.conn.Publish(s.conn.NewMessage(t, p, true))
}

func (s *service) replyOK(req *bus.Message, extra map[string]any) {
	if !req.CanReply() {
		return
	}
	m := map[string]any{"ok": true}
	for k, v := range extra {
		m[k] = v
	}
	s.conn.Reply(req, m, false)
}

func (s *service) replyErr(req *bus.Message, c errcode.Code) {
	if !req.CanReply() {
		return
	}
	s.conn.Reply(req, map[string]any{"ok": false, "error": string(c)}, false)
}

func decodeJSON[T any](src any, dst *T) error {
	switch v := src.(type) {
	case []byte:
		return json.Unmarshal(v, dst)
	case string:
		return json.Unmarshal([]byte(v), dst)
	case T:
		*dst = v
		return nil
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return err
		}
		return json.Unmarshal(b, dst)
	}
}
