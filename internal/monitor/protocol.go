package monitor

import (
	"strconv"
	"strings"
)

// EventKind identifies a decoded instrument command.
type EventKind int

const (
	BiasDetectStart EventKind = iota + 1
	BiasResult
	PhaseBaseDetectStart
	PhaseBaseResult
	ShotStart
	ShotFinish
	RealtimeStart
	RealtimeFinish
	TrackStart
	MultiParamStart
)

// Event is one decoded command line. Index carries the integer argument of
// sweep style commands and the bias result; Value carries the phase result.
type Event struct {
	Kind  EventKind `json:"kind"`
	Index int       `json:"index,omitempty"`
	Value float64   `json:"value,omitempty"`
}

type argKind int

const (
	argNone argKind = iota
	argInt
	argFloat
)

type opcode struct {
	wire  string
	kind  EventKind
	arg   argKind
	names []string // channel labels applied when the measurement starts
}

var opcodes = []opcode{
	{wire: "BIASST", kind: BiasDetectStart, arg: argNone, names: []string{"Cur. Bias", "Avg. Bias"}},
	{wire: "BIAS", kind: BiasResult, arg: argInt},
	{wire: "PHAST", kind: PhaseBaseDetectStart, arg: argNone, names: []string{"Cur. Phase", "Avg. Phase", "Cur. Amp"}},
	{wire: "PHABASE", kind: PhaseBaseResult, arg: argFloat},
	{wire: "SHOTST", kind: ShotStart, arg: argInt, names: []string{"Freq.", "G Resp.", "B Resp."}},
	{wire: "SHOTFIN", kind: ShotFinish, arg: argInt},
	{wire: "RTST", kind: RealtimeStart, arg: argInt, names: []string{"Freq.", "Resp."}},
	{wire: "RTFIN", kind: RealtimeFinish, arg: argInt},
	{wire: "TRACKST", kind: TrackStart, arg: argInt, names: []string{"Cur. Reson. Freq.", "Cur. B Resp."}},
	{wire: "MULPARAST", kind: MultiParamStart, arg: argInt, names: []string{"Cur. Reson. Freq.", "Max. G Resp.", "Q Factor"}},
}

var (
	opcodeByWire = map[string]*opcode{}
	opcodeByKind = map[EventKind]*opcode{}
)

func init() {
	for i := range opcodes {
		op := &opcodes[i]
		opcodeByWire[op.wire] = op
		opcodeByKind[op.kind] = op
	}
}

// String returns the wire opcode of the event kind.
func (k EventKind) String() string {
	if op, ok := opcodeByKind[k]; ok {
		return op.wire
	}
	return "UNKNOWN"
}

// MarshalText renders the kind as its wire opcode.
func (k EventKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// StartNames returns the channel labels a measurement start resets to.
// ok is false for kinds that do not start a measurement.
func (k EventKind) StartNames() (names []string, ok bool) {
	op, found := opcodeByKind[k]
	if !found || op.names == nil {
		return nil, false
	}
	return append([]string(nil), op.names...), true
}

// DecodeCommand maps opcode and argument tokens to an Event. Unknown
// opcodes, missing arguments and malformed numbers yield ok == false.
func DecodeCommand(tokens []string) (ev Event, ok bool) {
	if len(tokens) == 0 {
		return Event{}, false
	}
	op, found := opcodeByWire[strings.TrimSpace(tokens[0])]
	if !found {
		return Event{}, false
	}
	ev.Kind = op.kind
	switch op.arg {
	case argNone:
		return ev, true
	case argInt:
		if len(tokens) < 2 {
			return Event{}, false
		}
		n, err := strconv.Atoi(strings.TrimSpace(tokens[1]))
		if err != nil {
			return Event{}, false
		}
		ev.Index = n
	case argFloat:
		if len(tokens) < 2 {
			return Event{}, false
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(tokens[1]), 64)
		if err != nil {
			return Event{}, false
		}
		ev.Value = v
	}
	return ev, true
}
