package monitor

import "serial-monitor/internal/store"

const (
	// MismatchThreshold is the number of consecutive drifting lines
	// tolerated before the table is rebuilt.
	MismatchThreshold = 10
	// ForcedResetCount is written to the mismatch counter when a measurement
	// starts, so that the next data line rebuilds the table.
	ForcedResetCount = 2 * MismatchThreshold
)

// Outcome is the schema decision for one data line.
type Outcome int

const (
	Accept Outcome = iota
	Tolerate
	Reset
)

func (o Outcome) String() string {
	switch o {
	case Tolerate:
		return "tolerate"
	case Reset:
		return "reset"
	default:
		return "accept"
	}
}

// Schema tracks column drift for the active channel layout.
type Schema struct {
	mismatches int
}

// Mismatches returns the current consecutive-mismatch count.
func (s *Schema) Mismatches() int { return s.mismatches }

// ForceReset makes the next Decide return Reset.
func (s *Schema) ForceReset() { s.mismatches = ForcedResetCount }

// Clear zeroes the mismatch counter.
func (s *Schema) Clear() { s.mismatches = 0 }

// Decide inspects the container for a line of width columns. On Reset the
// container has already been rebuilt and the line must not be appended.
// On Accept the caller appends the line.
func (s *Schema) Decide(d *store.DataContainer, width int) Outcome {
	if d.Width() == 0 || s.mismatches > MismatchThreshold || !d.Consistent() {
		s.reset(d, width)
		return Reset
	}
	if width == d.Width() {
		s.mismatches = 0
		return Accept
	}
	s.mismatches++
	if s.mismatches > MismatchThreshold {
		s.reset(d, width)
		return Reset
	}
	return Tolerate
}

func (s *Schema) reset(d *store.DataContainer, width int) {
	d.Reset(width)
	s.mismatches = 0
}
