// Package transport delivers instrument lines to the engine as packets.
package transport

import (
	"bytes"
	"context"
	"errors"
	"io"

	"serial-monitor/internal/telemetry"
)

// maxLineLen bounds a line without terminator; longer input is emitted in
// pieces of this size.
const maxLineLen = 64 * 1024

// lineSplitter turns arbitrary byte chunks into lines. Serial reads that
// time out return zero bytes without an error, which bufio.Scanner treats as
// a broken reader, so splitting is done by hand.
type lineSplitter struct {
	buf []byte
}

// feed appends chunk and returns the complete lines it produced, without
// "\n" or "\r\n" terminators.
func (s *lineSplitter) feed(chunk []byte) []string {
	s.buf = append(s.buf, chunk...)
	var lines []string
	for {
		i := bytes.IndexByte(s.buf, '\n')
		if i < 0 {
			break
		}
		lines = append(lines, string(bytes.TrimRight(s.buf[:i], "\r")))
		s.buf = s.buf[i+1:]
	}
	for len(s.buf) >= maxLineLen {
		lines = append(lines, string(s.buf[:maxLineLen]))
		s.buf = s.buf[maxLineLen:]
	}
	if len(s.buf) == 0 {
		s.buf = nil
	}
	return lines
}

// rest returns and clears an unterminated trailing line.
func (s *lineSplitter) rest() (string, bool) {
	if len(s.buf) == 0 {
		return "", false
	}
	line := string(bytes.TrimRight(s.buf, "\r"))
	s.buf = nil
	return line, true
}

// pump reads r until EOF, an error or ctx cancellation and sends every line
// on out. It returns io.EOF at end of input.
func pump(ctx context.Context, r io.Reader, clock *telemetry.Clock, out chan<- telemetry.Packet) error {
	var split lineSplitter
	chunk := make([]byte, 4096)
	send := func(line string) error {
		select {
		case out <- clock.Stamp(line):
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, err := r.Read(chunk)
		for _, line := range split.feed(chunk[:n]) {
			if serr := send(line); serr != nil {
				return serr
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				if line, ok := split.rest(); ok {
					if serr := send(line); serr != nil {
						return serr
					}
				}
			}
			return err
		}
	}
}
