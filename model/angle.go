package model

// Angle is an actuator position in degrees.
type Angle int

// Actuator travel limits. Every accepted command and every motion target
// stays inside [AngleMin, AngleMax], so motion code never has to re-check.
const (
	AngleMin Angle = 0
	AngleMax Angle = 180
)

// Valid reports whether a lies within the actuator travel range.
func (a Angle) Valid() bool {
	return a >= AngleMin && a <= AngleMax
}

// Clamp returns a limited to the actuator travel range.
func (a Angle) Clamp() Angle {
	if a < AngleMin {
		return AngleMin
	}
	if a > AngleMax {
		return AngleMax
	}
	return a
}
