package core

import (
	"time"

	"github.com/railsignals/crossing-controller/model"
)

// CrossingCoordinator sequences the level crossing around two rules: the
// lamps must warn for a fixed delay before the barrier starts to close, and
// on opening the barrier moves immediately while the lamps keep warning for
// a short tail. It drives the barrier only through the motion controller's
// target methods and never touches positions directly.
//
// Not safe for concurrent use. The tick loop is the only caller.
type CrossingCoordinator struct {
	barrier *MotionController
	lamps   *LampSignaler

	openAngle   model.Angle
	closedAngle model.Angle

	preCloseDelay time.Duration
	closeDuration time.Duration
	openDuration  time.Duration
	lampStopDelay time.Duration

	state model.CrossingState

	closePending     bool
	closeRequestedAt time.Time

	openingDelayPending bool
	openingDelayStart   time.Time
}

// NewCrossingCoordinator returns an idle coordinator controlling barrier and
// lamps with the profile's angles and delays.
func NewCrossingCoordinator(profile model.CrossingProfile, barrier *MotionController, lamps *LampSignaler) *CrossingCoordinator {
	return &CrossingCoordinator{
		barrier:       barrier,
		lamps:         lamps,
		openAngle:     profile.OpenAngle,
		closedAngle:   profile.ClosedAngle,
		preCloseDelay: profile.PreCloseDelay,
		closeDuration: profile.CloseMotionDuration,
		openDuration:  profile.OpenMotionDuration,
		lampStopDelay: profile.LampStopDelay,
		state:         model.CrossingIdle,
	}
}

// State returns the current sequencing state.
func (c *CrossingCoordinator) State() model.CrossingState {
	return c.state
}

// HandleClose starts (or restarts) the closing sequence: the lamps begin
// warning immediately and the barrier motion is armed to start once the
// pre-close delay has elapsed. Receiving a close while already closing or
// closed restarts both the blinking and the countdown.
func (c *CrossingCoordinator) HandleClose(now time.Time) {
	c.lamps.Activate(now)
	c.closePending = true
	c.closeRequestedAt = now
	c.openingDelayPending = false
	c.state = model.CrossingBlinkPendingClose
}

// HandleOpen starts the opening sequence: the barrier moves toward the open
// angle immediately and any pending close is cancelled. If the lamps are
// warning they keep doing so until the lamp stop delay expires; an open with
// the lamps dark is a bare barrier move with no lamp bookkeeping.
func (c *CrossingCoordinator) HandleOpen(now time.Time) {
	c.barrier.SetTimedTarget(c.openAngle, c.openDuration, now)
	c.closePending = false
	if c.lamps.Active() {
		c.openingDelayPending = true
		c.openingDelayStart = now
		c.state = model.CrossingOpeningDelay
	} else {
		c.openingDelayPending = false
		c.state = model.CrossingIdle
	}
}

// Tick fires the time-based transitions: barrier closing once the pre-close
// delay has elapsed, and lamp shutoff once the stop delay after an open has
// elapsed.
func (c *CrossingCoordinator) Tick(now time.Time) {
	if c.closePending && !c.openingDelayPending && now.Sub(c.closeRequestedAt) >= c.preCloseDelay {
		c.closePending = false
		c.barrier.SetTimedTarget(c.closedAngle, c.closeDuration, now)
		c.state = model.CrossingClosed
	}
	if c.openingDelayPending && now.Sub(c.openingDelayStart) >= c.lampStopDelay {
		c.openingDelayPending = false
		c.lamps.Deactivate()
		c.state = model.CrossingIdle
	}
}
