package bridge

import "github.com/railsignals/crossing-controller/model"

// NopDriver discards all outputs. It stands in for hardware in tests
// and demo runs.
type NopDriver struct{}

func (NopDriver) SetActuatorAngle(model.Actuator, model.Angle) {}

func (NopDriver) SetLamp(model.Lamp, bool) {}

// FuncDriver adapts plain functions to the output boundary. Nil
// callbacks are skipped.
type FuncDriver struct {
	Actuator func(actuator model.Actuator, angle model.Angle)
	Lamp     func(lamp model.Lamp, on bool)
}

func (d FuncDriver) SetActuatorAngle(actuator model.Actuator, angle model.Angle) {
	if d.Actuator != nil {
		d.Actuator(actuator, angle)
	}
}

func (d FuncDriver) SetLamp(lamp model.Lamp, on bool) {
	if d.Lamp != nil {
		d.Lamp(lamp, on)
	}
}
