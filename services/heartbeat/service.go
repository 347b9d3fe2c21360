package heartbeat

import (
	"context"
	"time"

	"ledtile-go/bus"
	"ledtile-go/types"
	"ledtile-go/x/timex"
)

var topicConfigHeartbeat = bus.Topic{"config", "heartbeat"}
var topicStats = bus.Topic{"display", "stats"}

// Service periodically publishes retained display statistics and logs a
// liveness line. Scans reports the engine's completed scan count.
type Service struct {
	Scans func() uint32
}

func (s *Service) serviceLoop(ctx context.Context, conn *bus.Connection) {
	cfgSub := conn.Subscribe(topicConfigHeartbeat)
	defer conn.Unsubscribe(cfgSub)

	start := timex.NowMs()
	tick := time.NewTicker(1 * time.Second)
	defer tick.Stop()

	// loop until context is cancelled, respond to tick and config changes
	for {
		select {
		case <-ctx.Done():
			println("Info: heartbeat service stopping")
			return
		case <-tick.C:
			var scans uint32
			if s.Scans != nil {
				scans = s.Scans()
			}
			conn.Publish(conn.NewMessage(topicStats, types.DisplayStats{
				UptimeMs: timex.NowMs() - start,
				Scans:    scans,
			}, true))
		case msg := <-cfgSub.Channel():
			println("Info:", "Received config message:", msg.Payload)
			// Change tick interval if needed
			if m, ok := msg.Payload.(map[string]any); ok {
				if iv, ok := m["interval"]; ok {
					if interval, ok := iv.(float64); ok {
						tick.Reset(time.Duration(interval) * time.Second)
						println("Info:", "Heartbeat interval set to", interval, "seconds")
					}
				}
			}
		}
	}
}

// Start the heartbeat service.
func (s *Service) Start(ctx context.Context, conn *bus.Connection) error {
	go s.serviceLoop(ctx, conn)
	return nil
}
