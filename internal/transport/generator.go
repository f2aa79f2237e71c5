package transport

import (
	"context"
	"time"

	"serial-monitor/internal/logging"
	"serial-monitor/internal/telemetry"
)

// GeneratorSource feeds simulated instrument lines, for demos without
// hardware.
type GeneratorSource struct {
	gen   *telemetry.Generator
	clock *telemetry.Clock
	// Interval paces lines; zero emits as fast as the engine consumes.
	Interval time.Duration
	// Limit stops after that many lines; zero runs until cancelled.
	Limit int
}

// NewGeneratorSource wraps gen.
func NewGeneratorSource(gen *telemetry.Generator) *GeneratorSource {
	return &GeneratorSource{gen: gen, clock: telemetry.NewClock()}
}

// Run sends generated lines until Limit is reached or ctx is cancelled.
func (s *GeneratorSource) Run(ctx context.Context, out chan<- telemetry.Packet) error {
	defer close(out)
	logging.FromContext(ctx).Info("simulating instrument", "interval", s.Interval, "limit", s.Limit)

	var tick <-chan time.Time
	if s.Interval > 0 {
		t := time.NewTicker(s.Interval)
		defer t.Stop()
		tick = t.C
	}
	for i := 0; s.Limit == 0 || i < s.Limit; i++ {
		if tick != nil {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-tick:
			}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case out <- s.clock.Stamp(s.gen.Next()):
		}
	}
	return nil
}
