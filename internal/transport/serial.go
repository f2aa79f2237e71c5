package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"time"

	"go.bug.st/serial"

	"serial-monitor/internal/console"
	"serial-monitor/internal/logging"
	"serial-monitor/internal/telemetry"
)

// ErrNoPort is returned when no serial port is configured or found.
var ErrNoPort = errors.New("no serial port available")

// SerialConfig describes the instrument link.
type SerialConfig struct {
	Port        string
	BaudRate    int
	ReadTimeout time.Duration
	ReopenDelay time.Duration
}

const (
	DefaultBaudRate    = 115200
	DefaultReadTimeout = 100 * time.Millisecond
	DefaultReopenDelay = time.Second
)

func (c SerialConfig) withDefaults() SerialConfig {
	if c.BaudRate <= 0 {
		c.BaudRate = DefaultBaudRate
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = DefaultReadTimeout
	}
	if c.ReopenDelay <= 0 {
		c.ReopenDelay = DefaultReopenDelay
	}
	return c
}

type openFunc func(port string, cfg SerialConfig) (io.ReadCloser, error)

func openSerial(port string, cfg SerialConfig) (io.ReadCloser, error) {
	p, err := serial.Open(port, &serial.Mode{
		BaudRate: cfg.BaudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, err
	}
	if err := p.SetReadTimeout(cfg.ReadTimeout); err != nil {
		p.Close()
		return nil, err
	}
	return p, nil
}

// SerialSource reads lines from a serial port, reopening it after errors
// until ctx is cancelled.
type SerialSource struct {
	cfg     SerialConfig
	console *console.Sink
	clock   *telemetry.Clock
	open    openFunc
}

// NewSerialSource returns a source for cfg. sink may be nil.
func NewSerialSource(cfg SerialConfig, sink *console.Sink) *SerialSource {
	return &SerialSource{
		cfg:     cfg.withDefaults(),
		console: sink,
		clock:   telemetry.NewClock(),
		open:    openSerial,
	}
}

// Run reads until ctx is cancelled. It only returns early when no port is
// configured.
func (s *SerialSource) Run(ctx context.Context, out chan<- telemetry.Packet) error {
	defer close(out)
	if s.cfg.Port == "" {
		return ErrNoPort
	}
	log := logging.FromContext(ctx).With("port", s.cfg.Port)
	for {
		err := s.readOnce(ctx, out)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Warn("serial link lost", "err", err, "retry_in", s.cfg.ReopenDelay)
		s.printf(console.Error, "serial port %s: %v", s.cfg.Port, err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.cfg.ReopenDelay):
		}
	}
}

func (s *SerialSource) readOnce(ctx context.Context, out chan<- telemetry.Packet) error {
	port, err := s.open(s.cfg.Port, s.cfg)
	if err != nil {
		return fmt.Errorf("open serial port %s: %w", s.cfg.Port, err)
	}
	logging.FromContext(ctx).Info("serial port opened", "port", s.cfg.Port, "baud", s.cfg.BaudRate)
	s.printf(console.Ok, "connected to %s at %d baud", s.cfg.Port, s.cfg.BaudRate)

	// closing the port unblocks a pending Read on cancellation
	stop := context.AfterFunc(ctx, func() { port.Close() })
	defer func() {
		if stop() {
			port.Close()
		}
	}()
	err = pump(ctx, port, s.clock, out)
	if errors.Is(err, io.EOF) {
		return fmt.Errorf("serial port %s closed", s.cfg.Port)
	}
	return err
}

func (s *SerialSource) printf(level console.Level, format string, args ...any) {
	if s.console == nil {
		return
	}
	s.console.Print(level, fmt.Sprintf(format, args...))
}

// ListPorts returns the serial ports present on the host, sorted.
func ListPorts() ([]string, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("enumerate serial ports: %w", err)
	}
	sort.Strings(ports)
	return ports, nil
}

// FirstPort returns the first available port, or ErrNoPort.
func FirstPort() (string, error) {
	ports, err := ListPorts()
	if err != nil {
		return "", err
	}
	if len(ports) == 0 {
		return "", ErrNoPort
	}
	return ports[0], nil
}
