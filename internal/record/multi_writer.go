package record

import (
	"errors"

	"serial-monitor/internal/telemetry"
)

// MultiWriter fans samples out to several writers. Every writer is tried;
// the returned error joins all failures.
type MultiWriter struct {
	writers []SampleWriter
}

// NewMultiWriter creates a new MultiWriter. Nil writers are skipped.
func NewMultiWriter(ws ...SampleWriter) *MultiWriter {
	mw := &MultiWriter{}
	for _, w := range ws {
		if w != nil {
			mw.writers = append(mw.writers, w)
		}
	}
	return mw
}

// Len returns the number of destinations.
func (mw *MultiWriter) Len() int {
	return len(mw.writers)
}

// Write sends a sample to all writers.
func (mw *MultiWriter) Write(s telemetry.Sample) error {
	var errs []error
	for _, w := range mw.writers {
		if err := w.Write(s); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// WriteBatch sends multiple samples to all writers, using batch if supported.
func (mw *MultiWriter) WriteBatch(rows []telemetry.Sample) error {
	var errs []error
	for _, w := range mw.writers {
		if err := WriteAll(w, rows); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
