// Packet and sample types shared by transport, engine and recorders
package telemetry

import (
	"encoding/json"
	"math"
	"os"
	"time"
)

// Packet is one line received from the instrument link.
type Packet struct {
	Payload      string        `json:"payload"`
	RelativeTime time.Duration `json:"relative_time"` // since stream start
	AbsoluteTime time.Time     `json:"ts"`
}

// Sample is one accepted data line forwarded for recording.
type Sample struct {
	SessionID string    `json:"session_id"` // TAG
	Timestamp time.Time `json:"ts"`         // TIME INDEX
	Values    []float64 `json:"values"`     // one FIELD row per channel
}

type sampleJSON struct {
	SessionID string      `json:"session_id"`
	Timestamp time.Time   `json:"ts"`
	Values    []JSONFloat `json:"values"`
}

// MarshalJSON writes non-finite values as null.
func (s Sample) MarshalJSON() ([]byte, error) {
	return json.Marshal(sampleJSON{SessionID: s.SessionID, Timestamp: s.Timestamp, Values: JSONFloats(s.Values)})
}

// UnmarshalJSON reads null values back as NaN.
func (s *Sample) UnmarshalJSON(b []byte) error {
	var j sampleJSON
	if err := json.Unmarshal(b, &j); err != nil {
		return err
	}
	*s = Sample{SessionID: j.SessionID, Timestamp: j.Timestamp, Values: Floats(j.Values)}
	return nil
}

// JSONFloat is a float64 that encodes NaN and ±Inf as null, since
// encoding/json refuses them. null decodes to NaN.
type JSONFloat float64

func (f JSONFloat) MarshalJSON() ([]byte, error) {
	v := float64(f)
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return []byte("null"), nil
	}
	return json.Marshal(v)
}

func (f *JSONFloat) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*f = JSONFloat(math.NaN())
		return nil
	}
	var v float64
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*f = JSONFloat(v)
	return nil
}

// JSONFloats converts vs for encoding; nil stays nil.
func JSONFloats(vs []float64) []JSONFloat {
	if vs == nil {
		return nil
	}
	out := make([]JSONFloat, len(vs))
	for i, v := range vs {
		out[i] = JSONFloat(v)
	}
	return out
}

// Floats is the inverse of JSONFloats.
func Floats(vs []JSONFloat) []float64 {
	if vs == nil {
		return nil
	}
	out := make([]float64, len(vs))
	for i, v := range vs {
		out[i] = float64(v)
	}
	return out
}

// SampleTableName holds the table name used when recording to a database.
// It defaults to "instrument_samples" but can be overridden via the
// GREPTIMEDB_TABLE environment variable.
var SampleTableName = func() string {
	if env := os.Getenv("GREPTIMEDB_TABLE"); env != "" {
		return env
	}
	return "instrument_samples"
}()

func (Sample) TableName() string {
	return SampleTableName
}

// Clock stamps packets relative to a fixed stream start.
type Clock struct {
	start time.Time
	now   func() time.Time
}

// NewClock returns a Clock starting now.
func NewClock() *Clock {
	return NewClockAt(time.Now(), time.Now)
}

// NewClockAt returns a Clock with an explicit start and time source.
func NewClockAt(start time.Time, now func() time.Time) *Clock {
	return &Clock{start: start, now: now}
}

// Stamp wraps a payload into a Packet.
func (c *Clock) Stamp(payload string) Packet {
	t := c.now()
	return Packet{Payload: payload, RelativeTime: t.Sub(c.start), AbsoluteTime: t}
}
