package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"serial-monitor/internal/logging"
	"serial-monitor/internal/telemetry"
)

// Source produces packets until its input ends or ctx is cancelled. Run
// closes out before returning.
type Source interface {
	Run(ctx context.Context, out chan<- telemetry.Packet) error
}

// ReaderSource reads lines from a captured stream (file or stdin).
type ReaderSource struct {
	r     io.Reader
	name  string
	clock *telemetry.Clock
	// Interval paces lines; zero replays as fast as the engine consumes.
	Interval time.Duration
}

// NewReaderSource wraps r.
func NewReaderSource(name string, r io.Reader) *ReaderSource {
	return &ReaderSource{r: r, name: name, clock: telemetry.NewClock()}
}

// OpenFile returns a source for path, or stdin when path is "-".
func OpenFile(path string) (*ReaderSource, io.Closer, error) {
	if path == "-" {
		return NewReaderSource("stdin", os.Stdin), io.NopCloser(os.Stdin), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open capture %s: %w", path, err)
	}
	return NewReaderSource(path, f), f, nil
}

// Run sends every line of the input. End of input is not an error.
func (s *ReaderSource) Run(ctx context.Context, out chan<- telemetry.Packet) error {
	defer close(out)
	log := logging.FromContext(ctx).With("source", s.name)
	log.Info("reading capture")

	in := s.r
	if s.Interval > 0 {
		in = &pacedReader{r: in, interval: s.Interval, ctx: ctx}
	}
	err := pump(ctx, in, s.clock, out)
	if errors.Is(err, io.EOF) {
		log.Info("capture finished")
		return nil
	}
	return err
}

// pacedReader sleeps before every read so captures replay at a human pace.
type pacedReader struct {
	r        io.Reader
	interval time.Duration
	ctx      context.Context
}

func (p *pacedReader) Read(b []byte) (int, error) {
	select {
	case <-p.ctx.Done():
		return 0, p.ctx.Err()
	case <-time.After(p.interval):
	}
	// one line per read keeps the pacing per line
	for i := range b {
		n, err := p.r.Read(b[i : i+1])
		if n == 0 || err != nil || b[i] == '\n' {
			return i + n, err
		}
	}
	return len(b), nil
}
