// Package monitor turns received instrument lines into the shared time
// series, protocol events and the recording stream.
package monitor

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"serial-monitor/internal/console"
	"serial-monitor/internal/logging"
	"serial-monitor/internal/record"
	"serial-monitor/internal/store"
	"serial-monitor/internal/telemetry"
)

// Observer receives engine counters. internal/metrics implements it.
type Observer interface {
	LineReceived(kind string)
	SampleAccepted()
	SampleMismatched()
	SchemaReset()
	CommandDecoded(kind string)
	CommandRejected()
	ControlApplied(kind string)
	RelayDropped()
	EventDropped()
	StoreShape(channels, samples, raw int)
}

type noopObserver struct{}

func (noopObserver) LineReceived(string)      {}
func (noopObserver) SampleAccepted()          {}
func (noopObserver) SampleMismatched()        {}
func (noopObserver) SchemaReset()             {}
func (noopObserver) CommandDecoded(string)    {}
func (noopObserver) CommandRejected()         {}
func (noopObserver) ControlApplied(string)    {}
func (noopObserver) RelayDropped()            {}
func (noopObserver) EventDropped()            {}
func (noopObserver) StoreShape(int, int, int) {}

// SaveFunc writes a snapshot to disk.
type SaveFunc func(store.Snapshot, record.FileOptions) error

// Options configures an Engine.
type Options struct {
	Settings Settings
	Relay    *Relay
	// Events receives decoded protocol events; sends never block.
	Events   chan<- Event
	Save     SaveFunc
	Observer Observer
}

// Engine is the single writer of the store.
type Engine struct {
	store   *store.Store
	console *console.Sink
	relay   *Relay
	events  chan<- Event
	save    SaveFunc
	obs     Observer
	schema  Schema
	drift   *rate.Limiter

	mu       sync.RWMutex
	settings Settings
}

// NewEngine wires an engine to its store and console. Zero options select
// the defaults: raw window, DefaultBufferSize, CSV saving via record.SaveCSV.
func NewEngine(st *store.Store, sink *console.Sink, opts Options) *Engine {
	e := &Engine{
		store:    st,
		console:  sink,
		relay:    opts.Relay,
		events:   opts.Events,
		save:     opts.Save,
		obs:      opts.Observer,
		drift:    rate.NewLimiter(rate.Every(time.Second), 1),
		settings: opts.Settings.normalized(),
	}
	if e.console == nil {
		e.console = console.NewSink(0, nil)
	}
	if e.save == nil {
		e.save = record.SaveCSV
	}
	if e.obs == nil {
		e.obs = noopObserver{}
	}
	return e
}

// Settings returns the current control state.
func (e *Engine) Settings() Settings {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.settings
}

// Run consumes packets and controls until ctx is cancelled or both channels
// are closed. A closed channel is no longer read.
func (e *Engine) Run(ctx context.Context, packets <-chan telemetry.Packet, controls <-chan Control) error {
	log := logging.FromContext(ctx)
	log.Info("engine started", "window", e.Settings().Window, "buffer", e.Settings().BufferSize)
	for packets != nil || controls != nil {
		select {
		case <-ctx.Done():
			log.Info("engine stopping")
			return ctx.Err()
		case p, ok := <-packets:
			if !ok {
				log.Info("packet source closed")
				packets = nil
				continue
			}
			e.HandlePacket(ctx, p)
		case c, ok := <-controls:
			if !ok {
				log.Debug("control source closed")
				controls = nil
				continue
			}
			e.Apply(ctx, c)
		}
	}
	log.Info("engine stopped: all sources closed")
	return nil
}

// HandlePacket processes one received line.
func (e *Engine) HandlePacket(ctx context.Context, p telemetry.Packet) {
	kind, rest := Classify(p.Payload)
	e.obs.LineReceived(kind.String())
	switch kind {
	case LineEmpty:
	case LineDebug:
		e.console.Print(console.Debug, rest)
	case LineCommand:
		if e.Settings().Window != WindowProtocol {
			return
		}
		e.handleCommand(ctx, rest)
	case LineData:
		e.handleData(ctx, p, rest)
	}
}

func (e *Engine) handleCommand(ctx context.Context, rest string) {
	ev, ok := DecodeCommand(CommandTokens(rest))
	if !ok {
		e.obs.CommandRejected()
		logging.FromContext(ctx).Debug("command dropped", "line", rest)
		return
	}
	e.obs.CommandDecoded(ev.Kind.String())
	if names, start := ev.Kind.StartNames(); start {
		e.store.Update(func(d *store.DataContainer) {
			d.Names = names
		})
		e.schema.ForceReset()
	}
	if e.events == nil {
		return
	}
	select {
	case e.events <- ev:
	default:
		e.obs.EventDropped()
	}
}

func (e *Engine) handleData(ctx context.Context, p telemetry.Packet, rest string) {
	values := SplitPayload(rest)
	settings := e.Settings()

	var (
		outcome          Outcome
		width, size, raw int
	)
	e.store.Update(func(d *store.DataContainer) {
		if settings.RawTraffic.Enable {
			d.PushRaw(p, settings.RawTraffic.MaxLen)
		}
		outcome = e.schema.Decide(d, len(values))
		if outcome == Accept {
			// Decide guarantees the width matches.
			_ = d.Append(p.RelativeTime, p.AbsoluteTime, values, settings.BufferSize)
		}
		width, size, raw = d.Width(), d.Len(), d.RawTraffic.Len()
	})
	e.obs.StoreShape(width, size, raw)

	log := logging.FromContext(ctx)
	switch outcome {
	case Accept:
		e.obs.SampleAccepted()
		if !e.relay.Forward(p.AbsoluteTime, values) {
			e.obs.RelayDropped()
		}
	case Tolerate:
		e.obs.SampleMismatched()
		if e.drift.Allow() {
			log.Debug("column count drift", "got", len(values), "want", width, "mismatches", e.schema.Mismatches())
		}
	case Reset:
		e.obs.SchemaReset()
		log.Info("channel layout reset", "channels", width)
	}
}

// Apply executes one control command.
func (e *Engine) Apply(ctx context.Context, c Control) {
	log := logging.FromContext(ctx)
	switch c.Kind {
	case SetRawTraffic:
		e.mu.Lock()
		e.settings.RawTraffic = c.RawTraffic
		e.settings.RawTraffic.MaxLen = max(c.RawTraffic.MaxLen, 1)
		e.mu.Unlock()
	case SetBufferSize:
		e.mu.Lock()
		e.settings.BufferSize = max(c.BufferSize, 1)
		e.mu.Unlock()
	case SetNames:
		names := append([]string(nil), c.Names...)
		e.store.Update(func(d *store.DataContainer) {
			d.Names = names
		})
	case SaveCSV:
		e.saveCSV(c.File)
	case SetWindow:
		e.mu.Lock()
		e.settings.Window = c.Window
		e.mu.Unlock()
	case Clear:
		e.store.Update(func(d *store.DataContainer) {
			d.Clear()
		})
		e.schema.Clear()
		e.obs.StoreShape(0, 0, 0)
	default:
		log.Warn("unknown control", "kind", int(c.Kind))
		return
	}
	e.obs.ControlApplied(c.Kind.String())
	log.Debug("control applied", "kind", c.Kind)
}

func (e *Engine) saveCSV(opts record.FileOptions) {
	snap := e.store.Snapshot()
	if err := e.save(snap, opts); err != nil {
		e.console.Errorf("failed to save file to %s: %v", opts.FilePath, err)
		return
	}
	e.console.Okf("saved data file to %s", opts.FilePath)
}
