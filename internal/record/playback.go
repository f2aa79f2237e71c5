package record

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"time"

	"serial-monitor/internal/telemetry"
)

// ReplayLog replays recorded samples from r to writer. A speed >0 scales
// the original pacing; speed <= 0 replays without delay. It returns the
// number of samples written.
func ReplayLog(ctx context.Context, r io.Reader, writer SampleWriter, speed float64) (int, error) {
	dec := json.NewDecoder(r)
	var prev time.Time
	n := 0
	for {
		var s telemetry.Sample
		if err := dec.Decode(&s); err != nil {
			if errors.Is(err, io.EOF) {
				return n, nil
			}
			return n, err
		}
		if !prev.IsZero() && speed > 0 {
			diff := s.Timestamp.Sub(prev)
			if speed != 1 {
				diff = time.Duration(float64(diff) / speed)
			}
			if diff > 0 {
				select {
				case <-ctx.Done():
					return n, ctx.Err()
				case <-time.After(diff):
				}
			}
		}
		if err := writer.Write(s); err != nil {
			return n, err
		}
		n++
		prev = s.Timestamp
	}
}

// ReplayLogFile opens a file and replays its samples.
func ReplayLogFile(ctx context.Context, path string, writer SampleWriter, speed float64) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	return ReplayLog(ctx, f, writer, speed)
}
