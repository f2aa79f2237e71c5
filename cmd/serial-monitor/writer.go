package main

import (
	"io"
	"log/slog"

	"serial-monitor/internal/config"
	"serial-monitor/internal/record"
)

// newWriters builds the recording destinations named in cfg. printOnly
// replaces them with a JSON STDOUT writer. The cleanup function closes
// every destination that holds a resource.
func newWriters(cfg *config.Config, printOnly bool) (record.SampleWriter, func(), error) {
	if printOnly {
		return record.NewJSONStdoutWriter(), func() {}, nil
	}

	var writers []record.SampleWriter
	var closers []io.Closer
	cleanup := func() {
		for _, c := range closers {
			if err := c.Close(); err != nil {
				slog.Warn("closing recording writer", "err", err)
			}
		}
	}

	rc := cfg.Recording
	if rc.JSONLPath != "" {
		fw, err := record.NewFileWriter(rc.JSONLPath)
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		writers = append(writers, fw)
		closers = append(closers, fw)
	}
	if rc.SQLitePath != "" {
		sw, err := record.OpenSQLite(rc.SQLitePath)
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		writers = append(writers, sw)
		closers = append(closers, sw)
	}
	if rc.Greptime.Endpoint != "" {
		gw, err := record.NewGreptimeDBWriter(rc.Greptime.Endpoint, rc.Greptime.Database, rc.Greptime.Table)
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		writers = append(writers, gw)
	}
	mw := record.NewMultiWriter(writers...)
	if mw.Len() == 0 {
		slog.Info("no recording destination configured; recording discards samples")
	}
	return mw, cleanup, nil
}
