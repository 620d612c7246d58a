package model

// Actuator identifies one of the two controlled actuators. The primary one
// reports its position on the feedback line; the secondary one is the
// crossing barrier and stays silent.
type Actuator int

const (
	ActuatorPrimary Actuator = iota
	ActuatorSecondary
)

func (a Actuator) String() string {
	if a == ActuatorSecondary {
		return "secondary"
	}
	return "primary"
}

// Lamp identifies one of the two warning lamps.
type Lamp int

const (
	LampA Lamp = iota
	LampB
)

func (l Lamp) String() string {
	if l == LampB {
		return "b"
	}
	return "a"
}
