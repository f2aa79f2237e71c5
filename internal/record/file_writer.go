package record

import (
	"encoding/json"
	"fmt"
	"os"

	"serial-monitor/internal/telemetry"
)

// FileWriter appends samples to a JSONL file.
type FileWriter struct {
	f   *os.File
	enc *json.Encoder
}

// NewFileWriter opens path for appending, creating it if needed.
func NewFileWriter(path string) (*FileWriter, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open recording %s: %w", path, err)
	}
	return &FileWriter{f: f, enc: json.NewEncoder(f)}, nil
}

// Write logs a single sample.
func (w *FileWriter) Write(s telemetry.Sample) error {
	return w.enc.Encode(s)
}

// WriteBatch logs multiple samples.
func (w *FileWriter) WriteBatch(rows []telemetry.Sample) error {
	for _, r := range rows {
		if err := w.Write(r); err != nil {
			return err
		}
	}
	return nil
}

// Close closes the underlying file.
func (w *FileWriter) Close() error {
	if w.f == nil {
		return nil
	}
	return w.f.Close()
}
