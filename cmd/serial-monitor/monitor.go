package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"golang.org/x/term"

	"serial-monitor/internal/admin"
	"serial-monitor/internal/config"
	"serial-monitor/internal/console"
	"serial-monitor/internal/logging"
	"serial-monitor/internal/metrics"
	"serial-monitor/internal/monitor"
	"serial-monitor/internal/record"
	"serial-monitor/internal/store"
	"serial-monitor/internal/telemetry"
	"serial-monitor/internal/transport"
	"serial-monitor/internal/tui"
)

var (
	monConfigPath string
	monSchemaPath string
	monPort       string
	monBaud       int
	monInput      string
	monInterval   time.Duration
	monHeadless   bool
	monPrintOnly  bool
	monRecord     bool
	monAdmin      bool
	monLogFile    string
	monSimulate   bool
)

const (
	packetQueue  = 256
	controlQueue = 16
	eventQueue   = 64
	relayBuffer  = 1024

	defaultSimulateInterval = 20 * time.Millisecond
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Monitor a serial instrument",
	Long:  "monitor reads instrument lines from a serial port (or a capture file), keeps a live buffer per channel and renders it in a terminal UI.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(monConfigPath, monSchemaPath, cmd.Flags().Changed("config"))
		if err != nil {
			return err
		}
		applyMonitorFlags(cmd, cfg)

		headless := monHeadless || monPrintOnly || cfg.Input.Path == "-" || !term.IsTerminal(int(os.Stdout.Fd()))
		logger, closeLog, err := newLogger(cfg, headless, monLogFile)
		if err != nil {
			return err
		}
		defer closeLog()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		ctx = logging.NewContext(ctx, logger)

		err = runMonitor(ctx, cfg, headless, monPrintOnly)
		if errors.Is(err, tui.ErrQuit) || errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	},
}

func init() {
	monitorCmd.Flags().StringVar(&monConfigPath, "config", "config/monitor.yaml", "Path to monitor configuration YAML")
	monitorCmd.Flags().StringVar(&monSchemaPath, "schema", "schemas/monitor.cue", "Path to CUE schema file (empty skips schema validation)")
	monitorCmd.Flags().StringVar(&monPort, "port", "", "Serial port (overrides config and SERIAL_PORT)")
	monitorCmd.Flags().IntVar(&monBaud, "baud", 0, "Baud rate (overrides config)")
	monitorCmd.Flags().StringVar(&monInput, "input", "", "Read lines from a capture file instead of a serial port (\"-\" for STDIN)")
	monitorCmd.Flags().DurationVar(&monInterval, "interval", 0, "Delay between capture lines (e.g. 10ms)")
	monitorCmd.Flags().BoolVar(&monHeadless, "headless", false, "Run without the terminal UI")
	monitorCmd.Flags().BoolVar(&monPrintOnly, "print-only", false, "Print accepted samples to STDOUT as JSON (implies --headless)")
	monitorCmd.Flags().BoolVar(&monRecord, "record", false, "Start with recording enabled")
	monitorCmd.Flags().BoolVar(&monAdmin, "admin", false, "Serve the HTTP admin UI")
	monitorCmd.Flags().BoolVar(&monSimulate, "simulate", false, "Feed simulated instrument lines instead of a serial port")
	monitorCmd.Flags().StringVar(&monLogFile, "log-file", "", "Write logs to a file (the terminal UI discards them otherwise)")
}

// loadConfig reads path, falling back to defaults when the default path
// does not exist.
func loadConfig(path, schema string, explicit bool) (*config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	if _, err := os.Stat(path); err != nil && !explicit && errors.Is(err, os.ErrNotExist) {
		return config.Default(), nil
	}
	return config.Load(path, schema)
}

func applyMonitorFlags(cmd *cobra.Command, cfg *config.Config) {
	if monPort != "" {
		cfg.Serial.Port = monPort
	}
	if monBaud > 0 {
		cfg.Serial.BaudRate = monBaud
	}
	if monInput != "" {
		cfg.Input.Path = monInput
	}
	if cmd.Flags().Changed("interval") {
		cfg.Input.Interval = monInterval
	}
	if monRecord || monPrintOnly {
		cfg.Recording.Enable = true
	}
	if monAdmin {
		cfg.Admin.Enable = true
	}
}

// newLogger keeps slog off the terminal while the UI owns it.
func newLogger(cfg *config.Config, headless bool, logFile string) (*slog.Logger, func(), error) {
	var out io.Writer = os.Stderr
	closeFn := func() {}
	switch {
	case logFile != "":
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		out = f
		closeFn = func() { f.Close() }
	case !headless:
		out = io.Discard
	}
	logger := logging.NewWithOptions(logging.Options{Level: cfg.Log.Level, Format: cfg.Log.Format, Output: out})
	return logger, closeFn, nil
}

func newSource(cfg *config.Config, sink *console.Sink, simulate bool) (transport.Source, func(), error) {
	if simulate {
		src := transport.NewGeneratorSource(telemetry.NewGenerator(time.Now().UnixNano(), telemetry.DefaultGeneratorLines))
		src.Interval = cfg.Input.Interval
		if src.Interval == 0 {
			src.Interval = defaultSimulateInterval
		}
		return src, func() {}, nil
	}
	if cfg.Input.Path != "" {
		src, closer, err := transport.OpenFile(cfg.Input.Path)
		if err != nil {
			return nil, nil, err
		}
		src.Interval = cfg.Input.Interval
		return src, func() { closer.Close() }, nil
	}
	port := cfg.Serial.Port
	if port == "" {
		p, err := transport.FirstPort()
		if err != nil {
			return nil, nil, err
		}
		port = p
	}
	src := transport.NewSerialSource(transport.SerialConfig{
		Port:        port,
		BaudRate:    cfg.Serial.BaudRate,
		ReadTimeout: cfg.Serial.ReadTimeout,
		ReopenDelay: cfg.Serial.ReopenDelay,
	}, sink)
	return src, func() {}, nil
}

func runMonitor(ctx context.Context, cfg *config.Config, headless, printOnly bool) error {
	log := logging.FromContext(ctx)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	sink := console.NewSink(cfg.Console.MaxEntries, log)
	st := store.New()
	session := uuid.NewString()
	log = log.With("session", session)
	ctx = logging.NewContext(ctx, log)

	window, err := monitor.ParseWindow(cfg.Window)
	if err != nil {
		return err
	}
	relay := monitor.NewRelay(session, relayBuffer)
	events := make(chan monitor.Event, eventQueue)
	eng := monitor.NewEngine(st, sink, monitor.Options{
		Settings: monitor.Settings{
			BufferSize: cfg.Buffer.Size,
			RawTraffic: monitor.RawTrafficOptions{Enable: cfg.RawTraffic.Enable, MaxLen: cfg.RawTraffic.MaxLen},
			Window:     window,
		},
		Relay:    relay,
		Events:   events,
		Observer: m,
	})

	writer, closeWriters, err := newWriters(cfg, printOnly)
	if err != nil {
		return err
	}
	defer closeWriters()
	rec := record.NewRecorder(writer, m)
	rec.SetEnabled(cfg.Recording.Enable)

	src, closeSrc, err := newSource(cfg, sink, monSimulate)
	if err != nil {
		return err
	}
	defer closeSrc()

	packets := make(chan telemetry.Packet, packetQueue)
	controls := make(chan monitor.Control, controlQueue)
	if headless && !cfg.Admin.Enable {
		// nothing sends controls, so the engine stops when the input ends
		close(controls)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return src.Run(gctx, packets) })
	g.Go(func() error {
		defer close(events)
		defer relay.Close()
		return eng.Run(gctx, packets, controls)
	})
	g.Go(func() error { return rec.Run(gctx, relay.Samples()) })

	if cfg.Admin.Enable {
		srv := admin.NewServer(admin.Deps{
			Store:    st,
			Console:  sink,
			Settings: eng,
			Controls: controls,
			Recorder: rec,
			Gatherer: reg,
			CSVPath:  cfg.CSVPath,
			Logger:   log,
		})
		g.Go(func() error { return srv.Start(gctx, cfg.Admin.Addr) })
	}

	if headless {
		g.Go(func() error { return logEvents(gctx, events) })
	} else {
		ui := tui.New(tui.Deps{
			Store:    st,
			Console:  sink,
			Settings: eng,
			Controls: controls,
			Recorder: rec,
			CSVPath:  cfg.CSVPath,
		})
		g.Go(func() error { return ui.Run(gctx) })
		g.Go(func() error { return ui.ForwardEvents(gctx, events) })
		if cfg.Admin.Enable {
			g.Go(func() error {
				ui.SetAdminStatus(true)
				return nil
			})
		}
	}

	log.Info("monitor started", "headless", headless, "recording", rec.Enabled(), "admin", cfg.Admin.Enable)
	err = g.Wait()
	log.Info("monitor stopped", "recorded", rec.Recorded(), "record_failures", rec.Failed())
	return err
}

// logEvents reports protocol events when no UI consumes them.
func logEvents(ctx context.Context, events <-chan monitor.Event) error {
	log := logging.FromContext(ctx)
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			log.Info("protocol event", "kind", ev.Kind.String(), "index", ev.Index, "value", ev.Value)
		}
	}
}
