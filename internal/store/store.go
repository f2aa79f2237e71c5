package store

import (
	"encoding/json"
	"math"
	"sync"
	"time"

	"serial-monitor/internal/telemetry"
)

// Store guards a DataContainer with a reader/writer lock.
//
// The ingestion engine is the only caller of Update; renderers call View or
// Snapshot. Callbacks must not block on channels or other locks, which keeps
// the lock graph acyclic. A long View delays the engine by at most its own
// duration.
type Store struct {
	mu   sync.RWMutex
	data *DataContainer
}

// New returns a Store holding an empty container.
func New() *Store {
	return &Store{data: NewDataContainer()}
}

// Update runs fn with exclusive access.
func (s *Store) Update(fn func(*DataContainer)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.data)
}

// View runs fn with shared access. fn must not retain or modify the container.
func (s *Store) View(fn func(*DataContainer)) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn(s.data)
}

// Snapshot is an immutable copy of the container contents.
type Snapshot struct {
	Names        []string           `json:"names"`
	Time         []time.Duration    `json:"time"`
	AbsoluteTime []time.Time        `json:"absolute_time"`
	Dataset      [][]float64        `json:"dataset"`
	RawTraffic   []telemetry.Packet `json:"raw_traffic,omitempty"`
	// Total is the number of samples held when the copy was taken, which
	// exceeds Len for Recent copies.
	Total int `json:"total"`
}

// MarshalJSON writes non-finite samples as null.
func (s Snapshot) MarshalJSON() ([]byte, error) {
	type plain Snapshot
	dataset := make([][]telemetry.JSONFloat, len(s.Dataset))
	for i, set := range s.Dataset {
		dataset[i] = telemetry.JSONFloats(set)
	}
	return json.Marshal(struct {
		plain
		Dataset [][]telemetry.JSONFloat `json:"dataset"`
	}{plain(s), dataset})
}

// Snapshot copies the current contents under a read lock.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return snapshotOf(s.data, -1)
}

// Recent copies at most n of the newest samples per series and no raw traffic.
func (s *Store) Recent(n int) Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return snapshotOf(s.data, n)
}

func snapshotOf(d *DataContainer, n int) Snapshot {
	snap := Snapshot{
		Names:   append([]string(nil), d.Names...),
		Dataset: make([][]float64, len(d.Dataset)),
		Total:   d.Len(),
	}
	if n < 0 {
		snap.Time = d.Time.Slice()
		snap.AbsoluteTime = d.AbsoluteTime.Slice()
		snap.RawTraffic = d.RawTraffic.Slice()
		for i, set := range d.Dataset {
			snap.Dataset[i] = set.Slice()
		}
		return snap
	}
	snap.Time = d.Time.Tail(n)
	snap.AbsoluteTime = d.AbsoluteTime.Tail(n)
	for i, set := range d.Dataset {
		snap.Dataset[i] = set.Tail(n)
	}
	return snap
}

// Len returns the number of samples per channel in the snapshot.
func (s Snapshot) Len() int {
	return len(s.Time)
}

// ChannelStats summarises one channel of a snapshot.
type ChannelStats struct {
	Name    string  `json:"name"`
	Latest  float64 `json:"latest"`
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
	Samples int     `json:"samples"`
}

// MarshalJSON writes non-finite values as null.
func (c ChannelStats) MarshalJSON() ([]byte, error) {
	type plain ChannelStats
	return json.Marshal(struct {
		plain
		Latest telemetry.JSONFloat `json:"latest"`
		Min    telemetry.JSONFloat `json:"min"`
		Max    telemetry.JSONFloat `json:"max"`
	}{plain(c), telemetry.JSONFloat(c.Latest), telemetry.JSONFloat(c.Min), telemetry.JSONFloat(c.Max)})
}

// Channels returns per-channel statistics over the snapshot's samples.
// Min and Max skip NaN and ±Inf; Latest is the newest value as received.
func (s Snapshot) Channels() []ChannelStats {
	out := make([]ChannelStats, len(s.Dataset))
	for i, set := range s.Dataset {
		st := ChannelStats{Samples: len(set)}
		if i < len(s.Names) {
			st.Name = s.Names[i]
		}
		seen := false
		for _, v := range set {
			st.Latest = v
			if math.IsNaN(v) || math.IsInf(v, 0) {
				continue
			}
			if !seen || v < st.Min {
				st.Min = v
			}
			if !seen || v > st.Max {
				st.Max = v
			}
			seen = true
		}
		out[i] = st
	}
	return out
}
