package model

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidProfile is wrapped by CrossingProfile.Validate for any
// out-of-range field.
var ErrInvalidProfile = errors.New("invalid crossing profile")

// CrossingProfile carries every tunable of the crossing controller: barrier
// geometry, sequencing delays, lamp timing and the motion step parameters.
// The zero value is not usable directly; call ApplyDefaults (or start from
// DefaultCrossingProfile) before handing it to the controller.
type CrossingProfile struct {
	// RestAngle is the startup position of both actuators.
	// Default: 90
	RestAngle Angle

	// OpenAngle is the barrier position when the crossing is open.
	// Default: 90
	OpenAngle Angle

	// ClosedAngle is the barrier position when the crossing is closed.
	// Default: 0
	ClosedAngle Angle

	// PreCloseDelay is how long the lamps warn before the barrier starts
	// to close. Default: 6s
	PreCloseDelay time.Duration

	// CloseMotionDuration is the timed-move duration toward ClosedAngle.
	// Default: 2s
	CloseMotionDuration time.Duration

	// OpenMotionDuration is the timed-move duration toward OpenAngle.
	// Opening is deliberately slower than closing. Default: 3s
	OpenMotionDuration time.Duration

	// LampStopDelay is how long the lamps keep blinking after an open
	// command has started the barrier moving. Default: 500ms
	LampStopDelay time.Duration

	// BlinkPeriod is the lamp alternation period. Default: 400ms
	BlinkPeriod time.Duration

	// StepSize is the per-step angle change in step motion. Default: 2
	StepSize Angle

	// StepInterval is the minimum time between two steps of a step motion.
	// Default: 15ms
	StepInterval time.Duration

	// TickInterval is the controller's polling period. It bounds command
	// latency and doubles as a coarse debounce. Default: 5ms
	TickInterval time.Duration
}

// DefaultCrossingProfile returns the stock profile matching the reference
// hardware setup.
func DefaultCrossingProfile() CrossingProfile {
	return CrossingProfile{
		RestAngle:           90,
		OpenAngle:           90,
		ClosedAngle:         0,
		PreCloseDelay:       6 * time.Second,
		CloseMotionDuration: 2 * time.Second,
		OpenMotionDuration:  3 * time.Second,
		LampStopDelay:       500 * time.Millisecond,
		BlinkPeriod:         400 * time.Millisecond,
		StepSize:            2,
		StepInterval:        15 * time.Millisecond,
		TickInterval:        5 * time.Millisecond,
	}
}

// ApplyDefaults fills zero or non-positive timing fields with their defaults.
// A completely zero profile yields DefaultCrossingProfile. Angles are left
// untouched (0 is a legitimate angle); Validate catches out-of-range values.
func (p CrossingProfile) ApplyDefaults() CrossingProfile {
	if p == (CrossingProfile{}) {
		return DefaultCrossingProfile()
	}
	def := DefaultCrossingProfile()
	if p.PreCloseDelay <= 0 {
		p.PreCloseDelay = def.PreCloseDelay
	}
	if p.CloseMotionDuration <= 0 {
		p.CloseMotionDuration = def.CloseMotionDuration
	}
	if p.OpenMotionDuration <= 0 {
		p.OpenMotionDuration = def.OpenMotionDuration
	}
	if p.LampStopDelay <= 0 {
		p.LampStopDelay = def.LampStopDelay
	}
	if p.BlinkPeriod <= 0 {
		p.BlinkPeriod = def.BlinkPeriod
	}
	if p.StepSize <= 0 {
		p.StepSize = def.StepSize
	}
	if p.StepInterval <= 0 {
		p.StepInterval = def.StepInterval
	}
	if p.TickInterval <= 0 {
		p.TickInterval = def.TickInterval
	}
	return p
}

// Validate reports the first out-of-range field, wrapped in ErrInvalidProfile.
func (p CrossingProfile) Validate() error {
	if !p.RestAngle.Valid() {
		return fmt.Errorf("%w: rest angle %d outside [%d,%d]", ErrInvalidProfile, p.RestAngle, AngleMin, AngleMax)
	}
	if !p.OpenAngle.Valid() {
		return fmt.Errorf("%w: open angle %d outside [%d,%d]", ErrInvalidProfile, p.OpenAngle, AngleMin, AngleMax)
	}
	if !p.ClosedAngle.Valid() {
		return fmt.Errorf("%w: closed angle %d outside [%d,%d]", ErrInvalidProfile, p.ClosedAngle, AngleMin, AngleMax)
	}
	if p.PreCloseDelay <= 0 || p.CloseMotionDuration <= 0 || p.OpenMotionDuration <= 0 {
		return fmt.Errorf("%w: sequencing delays must be positive", ErrInvalidProfile)
	}
	if p.LampStopDelay <= 0 || p.BlinkPeriod <= 0 {
		return fmt.Errorf("%w: lamp timings must be positive", ErrInvalidProfile)
	}
	if p.StepSize <= 0 || p.StepInterval <= 0 || p.TickInterval <= 0 {
		return fmt.Errorf("%w: step/tick parameters must be positive", ErrInvalidProfile)
	}
	return nil
}
