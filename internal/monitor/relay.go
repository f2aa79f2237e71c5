package monitor

import (
	"sync"
	"time"

	"serial-monitor/internal/telemetry"
)

// Relay forwards accepted samples to the recorder without ever blocking the
// engine. Samples that do not fit in the buffer are dropped.
type Relay struct {
	session string
	out     chan telemetry.Sample
	once    sync.Once
}

// NewRelay returns a relay with the given buffer size, tagging samples with
// session.
func NewRelay(session string, buffer int) *Relay {
	if buffer < 1 {
		buffer = 1
	}
	return &Relay{session: session, out: make(chan telemetry.Sample, buffer)}
}

// Samples is the stream consumed by the recorder.
func (r *Relay) Samples() <-chan telemetry.Sample {
	return r.out
}

// Forward offers one sample. It reports false when the sample was dropped.
// A nil relay accepts and discards everything.
func (r *Relay) Forward(ts time.Time, values []float64) bool {
	if r == nil {
		return true
	}
	s := telemetry.Sample{
		SessionID: r.session,
		Timestamp: ts,
		Values:    append([]float64(nil), values...),
	}
	select {
	case r.out <- s:
		return true
	default:
		return false
	}
}

// Close ends the sample stream. Forward must not be called afterwards.
func (r *Relay) Close() {
	if r == nil {
		return
	}
	r.once.Do(func() { close(r.out) })
}
