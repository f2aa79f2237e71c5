package transport

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"serial-monitor/internal/console"
	"serial-monitor/internal/telemetry"
)

func TestLineSplitter(t *testing.T) {
	var s lineSplitter
	if got := s.feed([]byte("1,2")); len(got) != 0 {
		t.Fatalf("expected no complete line, got %q", got)
	}
	got := s.feed([]byte(",3\r\n#dbg\n\n$BIAS"))
	want := []string{"1,2,3", "#dbg", ""}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Fatalf("feed = %q, want %q", got, want)
	}
	rest, ok := s.rest()
	if !ok || rest != "$BIAS" {
		t.Fatalf("rest = %q %v", rest, ok)
	}
	if _, ok := s.rest(); ok {
		t.Fatalf("rest must be cleared")
	}
}

func TestLineSplitterBoundsLongLines(t *testing.T) {
	var s lineSplitter
	got := s.feed([]byte(strings.Repeat("x", maxLineLen+10)))
	if len(got) != 1 || len(got[0]) != maxLineLen {
		t.Fatalf("expected one capped piece, got %d", len(got))
	}
	if rest, _ := s.rest(); len(rest) != 10 {
		t.Fatalf("expected 10 trailing bytes, got %d", len(rest))
	}
}

func collect(out <-chan telemetry.Packet) []string {
	var lines []string
	for p := range out {
		lines = append(lines, p.Payload)
	}
	return lines
}

func TestReaderSource(t *testing.T) {
	src := NewReaderSource("capture", strings.NewReader("1,2\n#hi\r\n3,4"))
	out := make(chan telemetry.Packet, 8)
	if err := src.Run(context.Background(), out); err != nil {
		t.Fatalf("Run: %v", err)
	}
	got := collect(out)
	if strings.Join(got, "|") != "1,2|#hi|3,4" {
		t.Fatalf("unexpected lines %q", got)
	}
}

func TestReaderSourcePacedCancel(t *testing.T) {
	src := NewReaderSource("capture", strings.NewReader("1\n2\n3\n"))
	src.Interval = time.Hour
	ctx, cancel := context.WithCancel(context.Background())
	out := make(chan telemetry.Packet, 8)
	done := make(chan error, 1)
	go func() { done <- src.Run(ctx, out) }()
	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("source did not stop")
	}
	if lines := collect(out); len(lines) != 0 {
		t.Fatalf("expected no lines, got %q", lines)
	}
}

func TestReaderSourceRelativeTimeMonotonic(t *testing.T) {
	src := NewReaderSource("capture", strings.NewReader("a\nb\nc\n"))
	out := make(chan telemetry.Packet, 8)
	if err := src.Run(context.Background(), out); err != nil {
		t.Fatalf("Run: %v", err)
	}
	var prev time.Duration
	for p := range out {
		if p.RelativeTime < prev {
			t.Fatalf("relative time went backwards")
		}
		prev = p.RelativeTime
	}
}

// fakePort returns its data, then blocks until closed.
type fakePort struct {
	r      io.Reader
	closed chan struct{}
	once   sync.Once
}

func newFakePort(data string) *fakePort {
	return &fakePort{r: strings.NewReader(data), closed: make(chan struct{})}
}

func (f *fakePort) Read(b []byte) (int, error) {
	n, err := f.r.Read(b)
	if errors.Is(err, io.EOF) {
		<-f.closed
		return 0, errors.New("port closed")
	}
	return n, err
}

func (f *fakePort) Close() error {
	f.once.Do(func() { close(f.closed) })
	return nil
}

func TestSerialSourceReadsAndStopsOnCancel(t *testing.T) {
	port := newFakePort("1,2\n3,4\n")
	sink := console.NewSink(10, nil)
	src := NewSerialSource(SerialConfig{Port: "/dev/ttyFAKE"}, sink)
	src.open = func(string, SerialConfig) (io.ReadCloser, error) { return port, nil }

	ctx, cancel := context.WithCancel(context.Background())
	out := make(chan telemetry.Packet, 8)
	done := make(chan error, 1)
	go func() { done <- src.Run(ctx, out) }()

	for _, want := range []string{"1,2", "3,4"} {
		select {
		case p := <-out:
			if p.Payload != want {
				t.Fatalf("got %q, want %q", p.Payload, want)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for %q", want)
		}
	}
	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	entries := sink.Entries()
	if entries[len(entries)-1].Level != console.Ok {
		t.Fatalf("expected connect message, got %+v", entries)
	}
}

func TestSerialSourceReopensAfterFailure(t *testing.T) {
	var mu sync.Mutex
	attempts := 0
	src := NewSerialSource(SerialConfig{Port: "/dev/ttyFAKE", ReopenDelay: time.Millisecond}, nil)
	src.open = func(string, SerialConfig) (io.ReadCloser, error) {
		mu.Lock()
		defer mu.Unlock()
		attempts++
		if attempts < 3 {
			return nil, errors.New("busy")
		}
		return newFakePort("ok\n"), nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	out := make(chan telemetry.Packet, 1)
	done := make(chan error, 1)
	go func() { done <- src.Run(ctx, out) }()

	select {
	case p := <-out:
		if p.Payload != "ok" {
			t.Fatalf("unexpected payload %q", p.Payload)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no line after reopen")
	}
	cancel()
	<-done
	mu.Lock()
	defer mu.Unlock()
	if attempts != 3 {
		t.Fatalf("expected 3 open attempts, got %d", attempts)
	}
}

func TestSerialSourceNoPort(t *testing.T) {
	out := make(chan telemetry.Packet)
	err := NewSerialSource(SerialConfig{}, nil).Run(context.Background(), out)
	if !errors.Is(err, ErrNoPort) {
		t.Fatalf("expected ErrNoPort, got %v", err)
	}
	if _, ok := <-out; ok {
		t.Fatalf("expected closed output")
	}
}

func TestSerialConfigDefaults(t *testing.T) {
	c := SerialConfig{}.withDefaults()
	if c.BaudRate != DefaultBaudRate || c.ReadTimeout != DefaultReadTimeout || c.ReopenDelay != DefaultReopenDelay {
		t.Fatalf("unexpected defaults %+v", c)
	}
}

func TestGeneratorSourceLimit(t *testing.T) {
	src := NewGeneratorSource(telemetry.NewGenerator(7, 2))
	src.Limit = 5
	out := make(chan telemetry.Packet, 8)
	if err := src.Run(context.Background(), out); err != nil {
		t.Fatalf("Run: %v", err)
	}
	got := collect(out)
	want := []string{"#run 0 rtst", "$RTST$0"}
	if len(got) != 5 || got[0] != want[0] || got[1] != want[1] || got[4] != "$RTFIN$0" {
		t.Fatalf("unexpected lines %q", got)
	}
}

func TestGeneratorSourceCancel(t *testing.T) {
	src := NewGeneratorSource(telemetry.NewGenerator(7, 2))
	src.Interval = time.Hour
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := src.Run(ctx, make(chan telemetry.Packet))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
