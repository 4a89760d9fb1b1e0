package returner

import (
	"context"

	"golang.org/x/time/rate"

	"fleetsched/internal/eventbus"
)

// BusSink publishes outcomes on the in-process event bus so other
// components (diagnostics, notifiers) can observe results without being
// wired into the scheduler directly.
type BusSink struct {
	bus eventbus.Bus
	lim *rate.Limiter
}

// NewBusSink caps publishing at ratePerSec to keep a tight schedule from
// drowning slow subscribers; rate <= 0 means unlimited.
func NewBusSink(bus eventbus.Bus, ratePerSec float64) *BusSink {
	var lim *rate.Limiter
	if ratePerSec > 0 {
		lim = rate.NewLimiter(rate.Limit(ratePerSec), int(ratePerSec)+1)
	}
	return &BusSink{bus: bus, lim: lim}
}

func (s *BusSink) Name() string { return "bus" }

func (s *BusSink) Deliver(_ context.Context, o Outcome) error {
	if s.lim != nil && !s.lim.Allow() {
		return nil
	}
	s.bus.Publish(eventbus.Event{
		Type: "job.return",
		Time: o.Finished,
		Data: o,
	})
	return nil
}
