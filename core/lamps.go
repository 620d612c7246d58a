package core

import "time"

// LampSignaler drives the two warning lamps in strict alternation while
// active. Lamp A is lit exactly when the phase is false, lamp B when it is
// true, so the pair is never both on, and never both off while active.
//
// Not safe for concurrent use. The tick loop is the only caller.
type LampSignaler struct {
	active      bool
	phase       bool
	lastToggle  time.Time
	blinkPeriod time.Duration
}

// NewLampSignaler returns an inactive signaler with both lamps off.
func NewLampSignaler(blinkPeriod time.Duration) *LampSignaler {
	return &LampSignaler{blinkPeriod: blinkPeriod}
}

// Active reports whether the signaler is blinking.
func (l *LampSignaler) Active() bool {
	return l.active
}

// Lamps returns the on-state of lamp A and lamp B.
func (l *LampSignaler) Lamps() (a, b bool) {
	if !l.active {
		return false, false
	}
	return !l.phase, l.phase
}

// Activate starts the alternation with lamp A lit. Calling it while already
// active restarts the phase and the toggle timer.
func (l *LampSignaler) Activate(now time.Time) {
	l.active = true
	l.phase = false
	l.lastToggle = now
}

// Deactivate forces both lamps off regardless of phase.
func (l *LampSignaler) Deactivate() {
	l.active = false
}

// Tick flips the phase once the blink period has elapsed since the previous
// toggle. It reports whether the lamp outputs changed.
func (l *LampSignaler) Tick(now time.Time) bool {
	if !l.active {
		return false
	}
	if now.Sub(l.lastToggle) < l.blinkPeriod {
		return false
	}
	l.phase = !l.phase
	l.lastToggle = now
	return true
}
