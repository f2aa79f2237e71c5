// Package metrics exposes ingestion counters to Prometheus.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics implements the engine observer on top of Prometheus collectors.
type Metrics struct {
	lines        *prometheus.CounterVec
	accepted     prometheus.Counter
	tolerated    prometheus.Counter
	resets       prometheus.Counter
	commands     *prometheus.CounterVec
	rejected     prometheus.Counter
	controls     *prometheus.CounterVec
	relayDrops   prometheus.Counter
	eventDrops   prometheus.Counter
	recorded     prometheus.Counter
	recordErrors prometheus.Counter
	channels     prometheus.Gauge
	buffered     prometheus.Gauge
	rawTraffic   prometheus.Gauge
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		lines: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "serialmon_lines_total",
			Help: "Lines received from the instrument, by classification.",
		}, []string{"kind"}),
		accepted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "serialmon_samples_accepted_total",
			Help: "Data lines appended to the time series.",
		}),
		tolerated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "serialmon_samples_mismatched_total",
			Help: "Data lines dropped because their width differed from the active layout.",
		}),
		resets: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "serialmon_schema_resets_total",
			Help: "Times the channel layout was rebuilt.",
		}),
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "serialmon_commands_decoded_total",
			Help: "Protocol command lines decoded into events, by kind.",
		}, []string{"kind"}),
		rejected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "serialmon_commands_rejected_total",
			Help: "Protocol command lines that did not decode.",
		}),
		controls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "serialmon_controls_applied_total",
			Help: "Control commands applied, by kind.",
		}, []string{"kind"}),
		relayDrops: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "serialmon_relay_dropped_total",
			Help: "Samples not forwarded because the recorder was not keeping up.",
		}),
		eventDrops: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "serialmon_events_dropped_total",
			Help: "Protocol events not delivered because no renderer was reading.",
		}),
		recorded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "serialmon_samples_recorded_total",
			Help: "Samples written by the recorder.",
		}),
		recordErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "serialmon_record_errors_total",
			Help: "Recorder write failures.",
		}),
		channels: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "serialmon_channels",
			Help: "Current number of channels.",
		}),
		buffered: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "serialmon_buffered_samples",
			Help: "Samples currently held per channel.",
		}),
		rawTraffic: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "serialmon_raw_traffic_packets",
			Help: "Packets currently retained in the raw traffic history.",
		}),
	}
	reg.MustRegister(m.lines, m.accepted, m.tolerated, m.resets, m.commands, m.rejected,
		m.controls, m.relayDrops, m.eventDrops, m.recorded, m.recordErrors,
		m.channels, m.buffered, m.rawTraffic)
	return m
}

func (m *Metrics) LineReceived(kind string)   { m.lines.WithLabelValues(kind).Inc() }
func (m *Metrics) SampleAccepted()            { m.accepted.Inc() }
func (m *Metrics) SampleMismatched()          { m.tolerated.Inc() }
func (m *Metrics) SchemaReset()               { m.resets.Inc() }
func (m *Metrics) CommandDecoded(kind string) { m.commands.WithLabelValues(kind).Inc() }
func (m *Metrics) CommandRejected()           { m.rejected.Inc() }
func (m *Metrics) ControlApplied(kind string) { m.controls.WithLabelValues(kind).Inc() }
func (m *Metrics) RelayDropped()              { m.relayDrops.Inc() }
func (m *Metrics) EventDropped()              { m.eventDrops.Inc() }
func (m *Metrics) SampleRecorded()            { m.recorded.Inc() }
func (m *Metrics) RecordFailed()              { m.recordErrors.Inc() }

// StoreShape publishes the current table dimensions.
func (m *Metrics) StoreShape(channels, samples, raw int) {
	m.channels.Set(float64(channels))
	m.buffered.Set(float64(samples))
	m.rawTraffic.Set(float64(raw))
}
