package model

import "time"

// CommandKind identifies the decoded form of one host protocol line.
type CommandKind int

const (
	CommandUnknown CommandKind = iota
	CommandCloseCrossing             // "BZU"
	CommandOpenCrossing              // "BAUF"
	CommandSetPrimary                // "<angle> [durationMs]"
	CommandSetSecondary              // "M2 <angle> [durationMs]"
)

// String returns a stable lowercase name, used as a metrics label and in logs.
func (k CommandKind) String() string {
	switch k {
	case CommandCloseCrossing:
		return "close_crossing"
	case CommandOpenCrossing:
		return "open_crossing"
	case CommandSetPrimary:
		return "set_primary"
	case CommandSetSecondary:
		return "set_secondary"
	default:
		return "unknown"
	}
}

// Command is one decoded host line. It has no identity beyond the moment it
// is consumed by the tick loop.
//
// Angle and Duration are meaningful only for the two actuator kinds.
// Duration == 0 requests step motion; a positive Duration requests a timed
// move over exactly that interval.
type Command struct {
	Kind     CommandKind
	Angle    Angle
	Duration time.Duration
}
