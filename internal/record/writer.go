// Package record persists the samples accepted by the ingestion engine.
package record

import "serial-monitor/internal/telemetry"

// SampleWriter is implemented by every recording destination.
type SampleWriter interface {
	Write(telemetry.Sample) error
}

// batchWriter is implemented by writers that prefer grouped inserts.
type batchWriter interface {
	WriteBatch([]telemetry.Sample) error
}

// WriteAll sends rows to w, batched when w supports it.
func WriteAll(w SampleWriter, rows []telemetry.Sample) error {
	if len(rows) == 0 {
		return nil
	}
	if bw, ok := w.(batchWriter); ok {
		return bw.WriteBatch(rows)
	}
	for _, r := range rows {
		if err := w.Write(r); err != nil {
			return err
		}
	}
	return nil
}
