package console

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestSinkStartsWithEmptyEntry(t *testing.T) {
	s := NewSink(10, nil)
	entries := s.Entries()
	if len(entries) != 1 || entries[0].Level != Empty {
		t.Fatalf("expected single empty entry, got %+v", entries)
	}
}

func TestSinkBounded(t *testing.T) {
	s := NewSink(3, nil)
	for i := 0; i < 5; i++ {
		s.Okf("line %d", i)
	}
	entries := s.Entries()
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	if entries[0].Text != "line 2" || entries[2].Text != "line 4" {
		t.Fatalf("unexpected entries: %+v", entries)
	}
	if s.Seq() != 5 {
		t.Fatalf("expected seq 5, got %d", s.Seq())
	}
}

func TestSinkMirrorsToLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	s := NewSink(10, logger)
	s.Errorf("failed to save file to %q: %s", "/tmp/x.csv", "denied")
	s.Print(Debug, "hello")

	out := buf.String()
	if !strings.Contains(out, "level=ERROR") || !strings.Contains(out, "failed to save file") {
		t.Fatalf("expected error line in log, got %q", out)
	}
	if !strings.Contains(out, "level=DEBUG") || !strings.Contains(out, "hello") {
		t.Fatalf("expected debug line in log, got %q", out)
	}
}

func TestLevelText(t *testing.T) {
	b, _ := Error.MarshalText()
	if string(b) != "error" {
		t.Fatalf("expected error, got %s", b)
	}
}
