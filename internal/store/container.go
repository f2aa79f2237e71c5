// Package store holds the bounded multi-channel time series shared between
// the ingestion engine (single writer) and the renderers (readers).
package store

import (
	"fmt"
	"time"

	"serial-monitor/internal/telemetry"
)

// DataContainer is the sliding-window table of received samples.
//
// Every ring in Dataset has the same length as Time and AbsoluteTime, and
// once the first data line has been seen len(Names) == len(Dataset).
type DataContainer struct {
	Names        []string
	Time         *Ring[time.Duration]
	AbsoluteTime *Ring[time.Time]
	Dataset      []*Ring[float64]
	RawTraffic   *Ring[telemetry.Packet]
}

// NewDataContainer returns an empty, uninitialized container.
func NewDataContainer() *DataContainer {
	return &DataContainer{
		Time:         NewRing[time.Duration](0),
		AbsoluteTime: NewRing[time.Time](0),
		RawTraffic:   NewRing[telemetry.Packet](0),
	}
}

// Width returns the current number of channels.
func (d *DataContainer) Width() int {
	return len(d.Dataset)
}

// Len returns the number of stored samples per channel.
func (d *DataContainer) Len() int {
	return d.Time.Len()
}

// Consistent reports whether the first channel is as long as the time axis.
func (d *DataContainer) Consistent() bool {
	return len(d.Dataset) == 0 || d.Dataset[0].Len() == d.Time.Len()
}

// Reset drops all samples and reallocates width empty channels (at least one).
// Default names are generated when the current names do not match width.
func (d *DataContainer) Reset(width int) {
	d.Time.Clear()
	d.AbsoluteTime.Clear()
	n := max(width, 1)
	d.Dataset = make([]*Ring[float64], n)
	for i := range d.Dataset {
		d.Dataset[i] = NewRing[float64](0)
	}
	if len(d.Names) != n {
		d.Names = DefaultNames(n)
	}
}

// Append adds one sample per channel and trims every series to capacity.
// values must have exactly Width() entries.
func (d *DataContainer) Append(rel time.Duration, abs time.Time, values []float64, capacity int) error {
	if len(values) != len(d.Dataset) {
		return fmt.Errorf("append %d values to %d channels", len(values), len(d.Dataset))
	}
	capacity = max(capacity, 1)
	for i, set := range d.Dataset {
		set.Push(values[i])
		set.TrimTo(capacity)
	}
	d.Time.Push(rel)
	d.Time.TrimTo(capacity)
	d.AbsoluteTime.Push(abs)
	d.AbsoluteTime.TrimTo(capacity)
	return nil
}

// PushRaw retains a packet in the raw-traffic history, keeping at most maxLen.
func (d *DataContainer) PushRaw(p telemetry.Packet, maxLen int) {
	d.RawTraffic.Push(p)
	d.RawTraffic.TrimTo(maxLen)
}

// Clear returns the container to its freshly constructed state.
func (d *DataContainer) Clear() {
	*d = *NewDataContainer()
}

// DefaultNames returns "Column 0" … "Column n-1".
func DefaultNames(n int) []string {
	names := make([]string, n)
	for i := range names {
		names[i] = fmt.Sprintf("Column %d", i)
	}
	return names
}
