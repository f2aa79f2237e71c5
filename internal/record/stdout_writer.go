package record

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"serial-monitor/internal/telemetry"
)

// JSONStdoutWriter prints samples as JSON lines.
type JSONStdoutWriter struct {
	out io.Writer
}

// NewJSONStdoutWriter creates a JSONStdoutWriter writing to os.Stdout.
func NewJSONStdoutWriter() *JSONStdoutWriter {
	return &JSONStdoutWriter{out: os.Stdout}
}

// Write outputs a sample in JSON format.
func (w *JSONStdoutWriter) Write(s telemetry.Sample) error {
	data, err := json.Marshal(s)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w.out, string(data))
	return err
}
