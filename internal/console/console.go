// Package console is the bounded, leveled message list shown to the operator.
package console

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"serial-monitor/internal/store"
)

// Level classifies a console entry.
type Level int

const (
	Empty Level = iota
	Ok
	Error
	Debug
)

func (l Level) String() string {
	switch l {
	case Ok:
		return "ok"
	case Error:
		return "error"
	case Debug:
		return "debug"
	default:
		return "empty"
	}
}

// MarshalText renders the level name in JSON output.
func (l Level) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

// Entry is one console line.
type Entry struct {
	Level     Level     `json:"level"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"ts"`
}

// Sink stores console entries for renderers. It is safe for concurrent use.
type Sink struct {
	mu      sync.RWMutex
	entries *store.Ring[Entry]
	max     int
	seq     uint64
	logger  *slog.Logger
	now     func() time.Time
}

// DefaultMaxEntries bounds the console when no size is configured.
const DefaultMaxEntries = 500

// NewSink returns a sink holding at most maxEntries lines, seeded with one
// Empty entry. logger may be nil to skip mirroring.
func NewSink(maxEntries int, logger *slog.Logger) *Sink {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	s := &Sink{
		entries: store.NewRing[Entry](0),
		max:     maxEntries,
		logger:  logger,
		now:     time.Now,
	}
	s.entries.Push(Entry{Level: Empty, Timestamp: s.now()})
	return s
}

// Print appends an entry.
func (s *Sink) Print(level Level, text string) {
	e := Entry{Level: level, Text: text, Timestamp: s.now()}
	s.mu.Lock()
	s.entries.Push(e)
	s.entries.TrimTo(s.max)
	s.seq++
	s.mu.Unlock()

	if s.logger == nil {
		return
	}
	switch level {
	case Error:
		s.logger.Error(text, "source", "console")
	case Debug:
		s.logger.Debug(text, "source", "device")
	case Ok:
		s.logger.Info(text, "source", "console")
	}
}

// Okf prints an Ok entry.
func (s *Sink) Okf(format string, args ...any) {
	s.Print(Ok, fmt.Sprintf(format, args...))
}

// Errorf prints an Error entry.
func (s *Sink) Errorf(format string, args ...any) {
	s.Print(Error, fmt.Sprintf(format, args...))
}

// Entries returns a copy of all entries, oldest first.
func (s *Sink) Entries() []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.entries.Slice()
}

// Seq increases with every Print; renderers use it to skip redundant redraws.
func (s *Sink) Seq() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.seq
}
