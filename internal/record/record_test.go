package record

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"serial-monitor/internal/telemetry"
)

type collectWriter struct{ rows []telemetry.Sample }

func (c *collectWriter) Write(s telemetry.Sample) error {
	c.rows = append(c.rows, s)
	return nil
}

type failWriter struct{ calls int }

func (f *failWriter) Write(telemetry.Sample) error {
	f.calls++
	return errors.New("boom")
}

type batchCollectWriter struct {
	collectWriter
	batches int
}

func (b *batchCollectWriter) WriteBatch(rows []telemetry.Sample) error {
	b.batches++
	b.rows = append(b.rows, rows...)
	return nil
}

func sampleAt(sec int64, values ...float64) telemetry.Sample {
	return telemetry.Sample{SessionID: "s1", Timestamp: time.Unix(sec, 0).UTC(), Values: values}
}

func TestReplayLog(t *testing.T) {
	rows := []telemetry.Sample{sampleAt(0, 1, 2), sampleAt(1, 3, 4)}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, r := range rows {
		if err := enc.Encode(r); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}
	cw := &collectWriter{}
	n, err := ReplayLog(context.Background(), &buf, cw, 0)
	if err != nil {
		t.Fatalf("ReplayLog: %v", err)
	}
	if n != 2 || len(cw.rows) != 2 {
		t.Fatalf("expected 2 rows, got n=%d rows=%d", n, len(cw.rows))
	}
	if cw.rows[1].Values[1] != 4 {
		t.Fatalf("row mismatch: %+v", cw.rows[1])
	}
}

func TestReplayLogCancelled(t *testing.T) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	_ = enc.Encode(sampleAt(0, 1))
	_ = enc.Encode(sampleAt(3600, 2))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	cw := &collectWriter{}
	n, err := ReplayLog(ctx, &buf, cw, 1)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if n != 1 {
		t.Fatalf("expected first sample written before the wait, got %d", n)
	}
}

func TestFileWriterRoundTripsThroughReplay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rec.jsonl")
	fw, err := NewFileWriter(path)
	if err != nil {
		t.Fatalf("NewFileWriter: %v", err)
	}
	if err := WriteAll(fw, []telemetry.Sample{sampleAt(0, 1), sampleAt(1, 2)}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := fw.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	cw := &collectWriter{}
	n, err := ReplayLogFile(context.Background(), path, cw, 0)
	if err != nil || n != 2 {
		t.Fatalf("replay: n=%d err=%v", n, err)
	}
	if cw.rows[0].SessionID != "s1" {
		t.Fatalf("unexpected session %q", cw.rows[0].SessionID)
	}
}

func TestFileWriterKeepsNonFiniteSamples(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rec.jsonl")
	fw, err := NewFileWriter(path)
	if err != nil {
		t.Fatalf("NewFileWriter: %v", err)
	}
	if err := WriteAll(fw, []telemetry.Sample{sampleAt(0, 1, math.NaN()), sampleAt(1, math.Inf(1), 2)}); err != nil {
		t.Fatalf("write: %v", err)
	}
	fw.Close()

	cw := &collectWriter{}
	if n, err := ReplayLogFile(context.Background(), path, cw, 0); err != nil || n != 2 {
		t.Fatalf("replay: n=%d err=%v", n, err)
	}
	if cw.rows[0].Values[0] != 1 || !math.IsNaN(cw.rows[0].Values[1]) || cw.rows[1].Values[1] != 2 {
		t.Fatalf("unexpected values %v %v", cw.rows[0].Values, cw.rows[1].Values)
	}
}

func TestMultiWriterJoinsErrors(t *testing.T) {
	a := &collectWriter{}
	f := &failWriter{}
	b := &batchCollectWriter{}
	mw := NewMultiWriter(a, nil, f, b)
	if mw.Len() != 3 {
		t.Fatalf("expected nil writer to be skipped, got %d writers", mw.Len())
	}
	err := mw.WriteBatch([]telemetry.Sample{sampleAt(0, 1), sampleAt(1, 2)})
	if err == nil || !strings.Contains(err.Error(), "boom") {
		t.Fatalf("expected joined error, got %v", err)
	}
	if len(a.rows) != 2 || len(b.rows) != 2 {
		t.Fatalf("healthy writers must still receive rows: %d %d", len(a.rows), len(b.rows))
	}
	if b.batches != 1 {
		t.Fatalf("expected batch path, got %d batches", b.batches)
	}
	if f.calls != 1 {
		t.Fatalf("failing writer stops at first error, got %d calls", f.calls)
	}
}

func TestJSONStdoutWriter(t *testing.T) {
	var buf bytes.Buffer
	w := &JSONStdoutWriter{out: &buf}
	if err := w.Write(sampleAt(0, 1.5)); err != nil {
		t.Fatalf("write: %v", err)
	}
	if !strings.Contains(buf.String(), `"values":[1.5]`) {
		t.Fatalf("unexpected output %q", buf.String())
	}
}

func TestRecorderWritesOnlyWhileEnabled(t *testing.T) {
	feed := func(r *Recorder) {
		samples := make(chan telemetry.Sample, 2)
		samples <- sampleAt(0, 1)
		samples <- sampleAt(1, 2)
		close(samples)
		if err := r.Run(context.Background(), samples); err != nil {
			t.Fatalf("Run: %v", err)
		}
	}

	cw := &collectWriter{}
	r := NewRecorder(cw, nil)
	feed(r)
	if len(cw.rows) != 0 || r.Recorded() != 0 {
		t.Fatalf("disabled recorder wrote %d samples", len(cw.rows))
	}

	if !r.Toggle() {
		t.Fatalf("expected toggle to enable")
	}
	r.batchSize = 1
	feed(r)
	if len(cw.rows) != 2 || r.Recorded() != 2 {
		t.Fatalf("expected 2 recorded samples, got %d (%d)", len(cw.rows), r.Recorded())
	}
	if r.Toggle() || r.Enabled() {
		t.Fatalf("expected toggle to disable")
	}
}

type countObs struct{ ok, failed int }

func (c *countObs) SampleRecorded() { c.ok++ }
func (c *countObs) RecordFailed()   { c.failed++ }

func TestRecorderSurvivesWriteErrors(t *testing.T) {
	obs := &countObs{}
	r := NewRecorder(&failWriter{}, obs)
	r.SetEnabled(true)
	samples := make(chan telemetry.Sample, 4)
	samples <- sampleAt(0, 1)
	samples <- sampleAt(1, 2)
	close(samples)

	if err := r.Run(context.Background(), samples); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if r.Failed() != 2 || obs.failed != 1 || obs.ok != 0 {
		t.Fatalf("unexpected counters failed=%d obs=%+v", r.Failed(), obs)
	}
}

func TestRecorderFlushesOnCancel(t *testing.T) {
	cw := &collectWriter{}
	r := NewRecorder(cw, nil)
	r.SetEnabled(true)
	r.flushInterval = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	samples := make(chan telemetry.Sample, 1)
	samples <- sampleAt(0, 1)
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx, samples) }()

	deadline := time.Now().Add(2 * time.Second)
	for len(samples) > 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if len(cw.rows) != 1 {
		t.Fatalf("expected pending batch to be flushed, got %d rows", len(cw.rows))
	}
}

func TestNewFileWriterBadPath(t *testing.T) {
	_, err := NewFileWriter(filepath.Join(t.TempDir(), "missing", "rec.jsonl"))
	if err == nil || !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected not-exist error, got %v", err)
	}
}
