package core

import (
	"math"
	"time"

	"github.com/railsignals/crossing-controller/model"
)

// motionMode selects how a MotionController approaches its target.
type motionMode int

const (
	motionStep motionMode = iota
	motionTimed
)

// MotionController owns one actuator's position and advances it toward a
// target, either by fixed-size steps at a bounded rate or by a linear
// interpolation that completes after a fixed duration. Callers never mutate
// the position directly; they set a target and let Tick do the moving.
//
// Not safe for concurrent use. The tick loop is the only caller.
type MotionController struct {
	position model.Angle
	target   model.Angle
	mode     motionMode

	stepSize     model.Angle
	stepInterval time.Duration
	lastStep     time.Time

	// timed-move bookkeeping, meaningful only while mode == motionTimed
	startAngle model.Angle
	startTime  time.Time
	duration   time.Duration
}

// NewMotionController returns a controller resting at start with the given
// step motion parameters.
func NewMotionController(start, stepSize model.Angle, stepInterval time.Duration) *MotionController {
	return &MotionController{
		position:     start,
		target:       start,
		stepSize:     stepSize,
		stepInterval: stepInterval,
	}
}

// Position returns the current actuator angle.
func (m *MotionController) Position() model.Angle {
	return m.position
}

// Target returns the angle the controller is approaching.
func (m *MotionController) Target() model.Angle {
	return m.target
}

// Moving reports whether the controller still has ground to cover. A timed
// move counts as moving until it completes, even when start and target
// coincide.
func (m *MotionController) Moving() bool {
	return m.mode == motionTimed || m.position != m.target
}

// SetTarget switches to step motion toward angle. Any timed move in progress
// is cancelled; the step approach starts from wherever the position is now.
func (m *MotionController) SetTarget(angle model.Angle) {
	m.target = angle
	m.mode = motionStep
}

// SetTimedTarget starts a timed move that reaches angle exactly when duration
// has elapsed from now. The current position is recorded as the interpolation
// start. A non-positive duration completes on the next tick. A new request of
// either kind supersedes whatever was active.
func (m *MotionController) SetTimedTarget(angle model.Angle, duration time.Duration, now time.Time) {
	m.target = angle
	m.mode = motionTimed
	m.startAngle = m.position
	m.startTime = now
	m.duration = duration
}

// Tick advances the position once for the given time and reports whether it
// changed.
func (m *MotionController) Tick(now time.Time) bool {
	if m.mode == motionTimed {
		return m.tickTimed(now)
	}
	return m.tickStep(now)
}

func (m *MotionController) tickStep(now time.Time) bool {
	if m.position == m.target {
		return false
	}
	// One step per interval, not per tick.
	if now.Sub(m.lastStep) < m.stepInterval {
		return false
	}
	m.lastStep = now
	if m.position < m.target {
		m.position += m.stepSize
		if m.position > m.target {
			m.position = m.target
		}
	} else {
		m.position -= m.stepSize
		if m.position < m.target {
			m.position = m.target
		}
	}
	return true
}

func (m *MotionController) tickTimed(now time.Time) bool {
	frac := 1.0
	if m.duration > 0 {
		frac = float64(now.Sub(m.startTime)) / float64(m.duration)
		if frac > 1 {
			frac = 1
		}
	}
	next := m.startAngle + model.Angle(math.Round(float64(m.target-m.startAngle)*frac))
	changed := next != m.position
	m.position = next
	if frac >= 1 {
		// Terminal condition: park in step mode aimed at the position just
		// reached, so undirected ticks are no-ops from here on.
		m.mode = motionStep
		m.target = m.position
	}
	return changed
}
