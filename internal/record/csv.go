package record

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"serial-monitor/internal/store"
)

// FileOptions describes a CSV export request.
type FileOptions struct {
	FilePath string `json:"file_path"`
	// Columns selects channels by index; empty means all channels.
	Columns          []int `json:"columns,omitempty"`
	SaveAbsoluteTime bool  `json:"save_absolute_time"`
	SaveRawTraffic   bool  `json:"save_raw_traffic"`
}

var (
	// ErrNoPath is returned when FileOptions has no destination.
	ErrNoPath = errors.New("no file path given")
	// ErrNoColumns is returned when the snapshot holds no channels.
	ErrNoColumns = errors.New("no data columns to save")
)

// SaveCSV writes snap to opts.FilePath: one header row ("Time [ms]",
// optionally "Absolute Time", then the selected channel names) and one row
// per sample. With SaveRawTraffic the received packets are written next to
// it as <name>_raw.csv.
func SaveCSV(snap store.Snapshot, opts FileOptions) error {
	if strings.TrimSpace(opts.FilePath) == "" {
		return ErrNoPath
	}
	if len(snap.Dataset) == 0 {
		return ErrNoColumns
	}
	cols := opts.Columns
	if len(cols) == 0 {
		cols = make([]int, len(snap.Dataset))
		for i := range cols {
			cols[i] = i
		}
	}
	for _, c := range cols {
		if c < 0 || c >= len(snap.Dataset) {
			return fmt.Errorf("column %d out of range (0..%d)", c, len(snap.Dataset)-1)
		}
	}

	header := []string{"Time [ms]"}
	if opts.SaveAbsoluteTime {
		header = append(header, "Absolute Time")
	}
	for _, c := range cols {
		header = append(header, columnName(snap.Names, c))
	}

	rows := make([][]string, 0, snap.Len()+1)
	rows = append(rows, header)
	for i, rel := range snap.Time {
		row := make([]string, 0, len(header))
		row = append(row, formatMillis(rel))
		if opts.SaveAbsoluteTime {
			row = append(row, snap.AbsoluteTime[i].Format(time.RFC3339Nano))
		}
		for _, c := range cols {
			row = append(row, strconv.FormatFloat(snap.Dataset[c][i], 'g', -1, 64))
		}
		rows = append(rows, row)
	}
	if err := writeCSV(opts.FilePath, rows); err != nil {
		return err
	}

	if !opts.SaveRawTraffic {
		return nil
	}
	raw := make([][]string, 0, len(snap.RawTraffic)+1)
	raw = append(raw, []string{"Time [ms]", "Absolute Time", "Payload"})
	for _, p := range snap.RawTraffic {
		raw = append(raw, []string{formatMillis(p.RelativeTime), p.AbsoluteTime.Format(time.RFC3339Nano), p.Payload})
	}
	return writeCSV(RawTrafficPath(opts.FilePath), raw)
}

// RawTrafficPath derives the raw-traffic file name from a CSV path.
func RawTrafficPath(path string) string {
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + "_raw" + ext
}

func columnName(names []string, i int) string {
	if i < len(names) && names[i] != "" {
		return names[i]
	}
	return fmt.Sprintf("Column %d", i)
}

func formatMillis(d time.Duration) string {
	return strconv.FormatFloat(float64(d)/float64(time.Millisecond), 'f', -1, 64)
}

func writeCSV(path string, rows [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	w := csv.NewWriter(f)
	if err := w.WriteAll(rows); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}
