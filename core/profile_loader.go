package core

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/railsignals/crossing-controller/model"
)

// crossingProfileJSON is the wire shape of a profile file: angles in degrees,
// durations in milliseconds. It stays unexported so the file format can
// evolve independently of model.CrossingProfile.
//
// Angle fields are pointers because 0 is a legitimate angle; absent fields
// fall back to the defaults, explicit zeros are kept.
type crossingProfileJSON struct {
	RestAngleDeg   *int `json:"rest_angle_deg"`
	OpenAngleDeg   *int `json:"open_angle_deg"`
	ClosedAngleDeg *int `json:"closed_angle_deg"`

	PreCloseDelayMs       int `json:"pre_close_delay_ms"`
	CloseMotionDurationMs int `json:"close_motion_duration_ms"`
	OpenMotionDurationMs  int `json:"open_motion_duration_ms"`
	LampStopDelayMs       int `json:"lamp_stop_delay_ms"`
	BlinkPeriodMs         int `json:"blink_period_ms"`

	StepSizeDeg    int `json:"step_size_deg"`
	StepIntervalMs int `json:"step_interval_ms"`
	TickIntervalMs int `json:"tick_interval_ms"`
}

// LoadCrossingProfile reads a JSON profile from r, fills absent or
// non-positive fields with their defaults and validates the result. It fails
// only on JSON errors or out-of-range values; an empty object is a valid
// profile consisting entirely of defaults.
func LoadCrossingProfile(r io.Reader) (model.CrossingProfile, error) {
	var payload crossingProfileJSON
	if err := json.NewDecoder(r).Decode(&payload); err != nil {
		return model.CrossingProfile{}, fmt.Errorf("load crossing profile: decode failed: %w", err)
	}

	def := model.DefaultCrossingProfile()
	p := model.CrossingProfile{
		RestAngle:           def.RestAngle,
		OpenAngle:           def.OpenAngle,
		ClosedAngle:         def.ClosedAngle,
		PreCloseDelay:       time.Duration(payload.PreCloseDelayMs) * time.Millisecond,
		CloseMotionDuration: time.Duration(payload.CloseMotionDurationMs) * time.Millisecond,
		OpenMotionDuration:  time.Duration(payload.OpenMotionDurationMs) * time.Millisecond,
		LampStopDelay:       time.Duration(payload.LampStopDelayMs) * time.Millisecond,
		BlinkPeriod:         time.Duration(payload.BlinkPeriodMs) * time.Millisecond,
		StepSize:            model.Angle(payload.StepSizeDeg),
		StepInterval:        time.Duration(payload.StepIntervalMs) * time.Millisecond,
		TickInterval:        time.Duration(payload.TickIntervalMs) * time.Millisecond,
	}
	if payload.RestAngleDeg != nil {
		p.RestAngle = model.Angle(*payload.RestAngleDeg)
	}
	if payload.OpenAngleDeg != nil {
		p.OpenAngle = model.Angle(*payload.OpenAngleDeg)
	}
	if payload.ClosedAngleDeg != nil {
		p.ClosedAngle = model.Angle(*payload.ClosedAngleDeg)
	}

	p = p.ApplyDefaults()
	if err := p.Validate(); err != nil {
		return model.CrossingProfile{}, fmt.Errorf("load crossing profile: %w", err)
	}
	return p, nil
}
