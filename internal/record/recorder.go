package record

import (
	"context"
	"sync/atomic"
	"time"

	"serial-monitor/internal/logging"
	"serial-monitor/internal/telemetry"
)

// Observer counts recorder activity. internal/metrics implements it.
type Observer interface {
	SampleRecorded()
	RecordFailed()
}

type noopObserver struct{}

func (noopObserver) SampleRecorded() {}
func (noopObserver) RecordFailed()   {}

const (
	defaultBatchSize     = 64
	defaultFlushInterval = 250 * time.Millisecond
)

// Recorder drains the relay stream and writes samples while enabled.
// Samples arriving while disabled are discarded.
type Recorder struct {
	writer   SampleWriter
	obs      Observer
	enabled  atomic.Bool
	recorded atomic.Uint64
	failed   atomic.Uint64

	batchSize     int
	flushInterval time.Duration
}

// NewRecorder returns a disabled recorder writing to w. obs may be nil.
func NewRecorder(w SampleWriter, obs Observer) *Recorder {
	if obs == nil {
		obs = noopObserver{}
	}
	return &Recorder{
		writer:        w,
		obs:           obs,
		batchSize:     defaultBatchSize,
		flushInterval: defaultFlushInterval,
	}
}

// SetEnabled turns recording on or off.
func (r *Recorder) SetEnabled(on bool) { r.enabled.Store(on) }

// Enabled reports whether samples are currently written.
func (r *Recorder) Enabled() bool { return r.enabled.Load() }

// Toggle flips recording and returns the new state.
func (r *Recorder) Toggle() bool {
	for {
		cur := r.enabled.Load()
		if r.enabled.CompareAndSwap(cur, !cur) {
			return !cur
		}
	}
}

// Recorded returns the number of samples written so far.
func (r *Recorder) Recorded() uint64 { return r.recorded.Load() }

// Failed returns the number of samples lost to write errors.
func (r *Recorder) Failed() uint64 { return r.failed.Load() }

// Run consumes samples until the channel closes or ctx is cancelled. Write
// errors are logged and counted but never stop the loop.
func (r *Recorder) Run(ctx context.Context, samples <-chan telemetry.Sample) error {
	log := logging.FromContext(ctx)
	ticker := time.NewTicker(r.flushInterval)
	defer ticker.Stop()

	batch := make([]telemetry.Sample, 0, r.batchSize)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		if err := WriteAll(r.writer, batch); err != nil {
			r.failed.Add(uint64(len(batch)))
			r.obs.RecordFailed()
			log.Error("recording write failed", "samples", len(batch), "err", err)
		} else {
			r.recorded.Add(uint64(len(batch)))
			for range batch {
				r.obs.SampleRecorded()
			}
		}
		batch = batch[:0]
	}

	for {
		select {
		case <-ctx.Done():
			flush()
			return ctx.Err()
		case s, ok := <-samples:
			if !ok {
				flush()
				return nil
			}
			if !r.Enabled() || r.writer == nil {
				continue
			}
			batch = append(batch, s)
			if len(batch) >= r.batchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}
