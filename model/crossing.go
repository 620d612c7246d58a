package model

// CrossingState is the coordinator's sequencing state. Exactly one instance
// exists per controller and only the coordinator mutates it.
type CrossingState int

const (
	// CrossingIdle: lamps off, no close or open sequence pending.
	CrossingIdle CrossingState = iota
	// CrossingBlinkPendingClose: lamps blinking, barrier motion armed to
	// start once the pre-close delay has elapsed.
	CrossingBlinkPendingClose
	// CrossingClosed: barrier motion toward the closed angle has been issued
	// (or completed); lamps still blinking.
	CrossingClosed
	// CrossingOpeningDelay: barrier opening, lamps blinking until the lamp
	// stop delay expires.
	CrossingOpeningDelay
)

func (s CrossingState) String() string {
	switch s {
	case CrossingIdle:
		return "IDLE"
	case CrossingBlinkPendingClose:
		return "BLINK_PENDING_CLOSE"
	case CrossingClosed:
		return "CLOSED"
	case CrossingOpeningDelay:
		return "OPENING_DELAY"
	default:
		return "UNKNOWN"
	}
}
