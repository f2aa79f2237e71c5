package monitor

import (
	"fmt"
	"strings"

	"serial-monitor/internal/record"
)

// Window selects how command lines are treated.
type Window int

const (
	// WindowRaw ignores command lines.
	WindowRaw Window = iota
	// WindowProtocol decodes command lines into events.
	WindowProtocol
)

func (w Window) String() string {
	if w == WindowProtocol {
		return "protocol"
	}
	return "raw"
}

// MarshalText renders the window name.
func (w Window) MarshalText() ([]byte, error) {
	return []byte(w.String()), nil
}

// UnmarshalText accepts the names produced by MarshalText.
func (w *Window) UnmarshalText(b []byte) error {
	v, err := ParseWindow(string(b))
	if err != nil {
		return err
	}
	*w = v
	return nil
}

// ParseWindow parses "raw" or "protocol".
func ParseWindow(s string) (Window, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "raw":
		return WindowRaw, nil
	case "protocol":
		return WindowProtocol, nil
	default:
		return WindowRaw, fmt.Errorf("unknown window %q", s)
	}
}

// RawTrafficOptions controls retention of received packets.
type RawTrafficOptions struct {
	Enable bool `json:"enable"`
	MaxLen int  `json:"max_len"`
}

// DefaultRawTrafficLen bounds raw traffic when no length is given.
const DefaultRawTrafficLen = 1000

// DefaultBufferSize is the sample capacity per channel.
const DefaultBufferSize = 5000

// ControlKind identifies a control command.
type ControlKind int

const (
	SetRawTraffic ControlKind = iota + 1
	SetBufferSize
	SetNames
	SaveCSV
	SetWindow
	Clear
)

func (k ControlKind) String() string {
	switch k {
	case SetRawTraffic:
		return "raw_traffic"
	case SetBufferSize:
		return "buffer_size"
	case SetNames:
		return "names"
	case SaveCSV:
		return "save"
	case SetWindow:
		return "window"
	case Clear:
		return "clear"
	default:
		return "unknown"
	}
}

// Control is a configuration command for the engine. Only the field
// matching Kind is read.
type Control struct {
	Kind       ControlKind
	RawTraffic RawTrafficOptions
	BufferSize int
	Names      []string
	File       record.FileOptions
	Window     Window
}

func ClearControl() Control                    { return Control{Kind: Clear} }
func BufferSizeControl(n int) Control          { return Control{Kind: SetBufferSize, BufferSize: n} }
func NamesControl(names []string) Control      { return Control{Kind: SetNames, Names: names} }
func WindowControl(w Window) Control           { return Control{Kind: SetWindow, Window: w} }
func SaveControl(o record.FileOptions) Control { return Control{Kind: SaveCSV, File: o} }

func RawTrafficControl(o RawTrafficOptions) Control {
	return Control{Kind: SetRawTraffic, RawTraffic: o}
}

// Settings is the part of the engine state changed by controls.
type Settings struct {
	BufferSize int               `json:"buffer_size"`
	RawTraffic RawTrafficOptions `json:"raw_traffic"`
	Window     Window            `json:"window"`
}

func (s Settings) normalized() Settings {
	if s.BufferSize < 1 {
		s.BufferSize = DefaultBufferSize
	}
	if s.RawTraffic.MaxLen < 1 {
		s.RawTraffic.MaxLen = DefaultRawTrafficLen
	}
	return s
}
