package monitor

import "strings"

// LineKind is the routing class of a received line.
type LineKind int

const (
	LineEmpty LineKind = iota
	LineDebug
	LineCommand
	LineData
)

func (k LineKind) String() string {
	switch k {
	case LineDebug:
		return "debug"
	case LineCommand:
		return "command"
	case LineData:
		return "data"
	default:
		return "empty"
	}
}

const (
	debugMarker   = '#'
	commandMarker = '$'
)

// Classify routes a line by its first byte and returns the remainder
// (without the marker for debug and command lines).
func Classify(payload string) (LineKind, string) {
	if payload == "" {
		return LineEmpty, ""
	}
	switch payload[0] {
	case debugMarker:
		return LineDebug, payload[1:]
	case commandMarker:
		return LineCommand, payload[1:]
	default:
		return LineData, payload
	}
}

// CommandTokens splits the remainder of a command line into opcode and
// arguments.
func CommandTokens(rest string) []string {
	return strings.Split(rest, string(commandMarker))
}
