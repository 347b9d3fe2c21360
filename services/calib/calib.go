// calib/calib.go
package calib

import (
	"context"
	"time"

	"github.com/google/shlex"

	"ledtile-go/bus"
	"ledtile-go/types"
	"ledtile-go/x/mathx"
	"ledtile-go/x/strconvx"
	"ledtile-go/x/strx"
)

// Port is the byte stream the console runs over. The RP2 build hands in a
// uartx UART; tests hand in an in-memory pipe.
type Port interface {
	Write(b []byte) (int, error)
	RecvSomeContext(ctx context.Context, buf []byte) (int, error)
}

// Config selects the capability the console talks to.
type Config struct {
	Name string `json:"name"` // capability name, default "tile"
}

// Run starts the calibration console. It is a plain bus client of the
// display service: every command becomes a control request, so the console
// exercises exactly the surface other services see. Blocks until ctx is
// cancelled.
func Run(ctx context.Context, conn *bus.Connection, port Port, cfg Config) {
	s := &console{
		conn: conn,
		port: port,
		name: strx.Coalesce(cfg.Name, "tile"),
	}
	s.loop(ctx)
}

type console struct {
	conn *bus.Connection
	port Port
	name string
}

func (s *console) loop(ctx context.Context) {
	s.print("ledtile calib console, 'help' for commands\r\n")

	buf := make([]byte, 64)
	var line []byte

	for {
		n, err := s.port.RecvSomeContext(ctx, buf)
		if err != nil {
			return
		}
		for _, b := range buf[:n] {
			switch b {
			case '\r', '\n':
				if len(line) > 0 {
					s.exec(ctx, string(line))
					line = line[:0]
				}
			default:
				if len(line) < 128 {
					line = append(line, b)
				}
			}
		}
	}
}

func (s *console) exec(ctx context.Context, line string) {
	args, err := shlex.Split(line)
	if err != nil || len(args) == 0 {
		s.print("err: bad line\r\n")
		return
	}

	switch args[0] {
	case "help":
		s.print("raw <i> <r> <g> <b>   duty codes, 255=off\r\n" +
			"set <i> <r> <g> <b>   8-bit color via gamma\r\n" +
			"fill <r> <g> <b>\r\n" +
			"clear\r\n" +
			"show\r\n" +
			"fade <r> <g> <b> <ms> <steps>\r\n" +
			"on | off\r\n" +
			"frames\r\n")

	case "raw":
		vals, ok := s.ints(args[1:], 4)
		if !ok {
			s.print("err: raw <i> <r> <g> <b>\r\n")
			return
		}
		s.request(ctx, "set_raw", types.PixelSetRaw{
			Index: vals[0],
			R:     uint8(mathx.Clamp(vals[1], 0, 255)),
			G:     uint8(mathx.Clamp(vals[2], 0, 255)),
			B:     uint8(mathx.Clamp(vals[3], 0, 255)),
		})

	case "set":
		vals, ok := s.ints(args[1:], 4)
		if !ok {
			s.print("err: set <i> <r> <g> <b>\r\n")
			return
		}
		p := types.PixelSet{Index: vals[0]}
		p.Color.R = uint8(mathx.Clamp(vals[1], 0, 255))
		p.Color.G = uint8(mathx.Clamp(vals[2], 0, 255))
		p.Color.B = uint8(mathx.Clamp(vals[3], 0, 255))
		s.request(ctx, "set", p)

	case "fill":
		vals, ok := s.ints(args[1:], 3)
		if !ok {
			s.print("err: fill <r> <g> <b>\r\n")
			return
		}
		var p types.PixelFill
		p.Color.R = uint8(mathx.Clamp(vals[0], 0, 255))
		p.Color.G = uint8(mathx.Clamp(vals[1], 0, 255))
		p.Color.B = uint8(mathx.Clamp(vals[2], 0, 255))
		s.request(ctx, "fill", p)

	case "clear":
		s.request(ctx, "clear", nil)

	case "show":
		s.request(ctx, "show", nil)

	case "fade":
		vals, ok := s.ints(args[1:], 5)
		if !ok {
			s.print("err: fade <r> <g> <b> <ms> <steps>\r\n")
			return
		}
		p := types.PixelFade{
			DurationMs: uint32(mathx.Clamp(vals[3], 0, 60_000)),
			Steps:      uint16(mathx.Clamp(vals[4], 1, 1000)),
		}
		p.To.R = uint8(mathx.Clamp(vals[0], 0, 255))
		p.To.G = uint8(mathx.Clamp(vals[1], 0, 255))
		p.To.B = uint8(mathx.Clamp(vals[2], 0, 255))
		s.request(ctx, "fade", p)

	case "on":
		s.request(ctx, "enable", nil)

	case "off":
		s.request(ctx, "disable", nil)

	case "frames":
		s.printStats(ctx)

	default:
		s.print("err: unknown command, try 'help'\r\n")
	}
}

func (s *console) ints(args []string, n int) ([]int, bool) {
	if len(args) != n {
		return nil, false
	}
	out := make([]int, n)
	for i, a := range args {
		v, err := strconvx.Atoi(a)
		if err != nil {
			return nil, false
		}
		out[i] = v
	}
	return out, true
}

func (s *console) request(ctx context.Context, verb string, payload any) {
	rctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	msg := s.conn.NewMessage(bus.Topic{"display", "cap", "pixels", s.name, "control", verb}, payload, false)
	reply, err := s.conn.RequestWait(rctx, msg)
	if err != nil {
		s.print("err: timeout\r\n")
		return
	}
	m, ok := reply.Payload.(map[string]any)
	if !ok || m["ok"] != true {
		e := "error"
		if es, ok := m["error"].(string); ok {
			e = es
		}
		s.print("err: " + e + "\r\n")
		return
	}
	s.print("ok\r\n")
}

func (s *console) printStats(ctx context.Context) {
	sub := s.conn.Subscribe(bus.Topic{"display", "stats"})
	defer sub.Unsubscribe()

	select {
	case msg := <-sub.Channel():
		if st, ok := msg.Payload.(types.DisplayStats); ok {
			s.print("scans=" + strconvx.FormatUint(uint64(st.Scans), 10) +
				" uptime_ms=" + strconvx.FormatInt(st.UptimeMs, 10) + "\r\n")
			return
		}
		s.print("err: no stats\r\n")
	case <-time.After(500 * time.Millisecond):
		s.print("err: no stats\r\n")
	case <-ctx.Done():
	}
}

func (s *console) print(msg string) {
	_, _ = s.port.Write([]byte(msg))
}
