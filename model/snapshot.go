package model

// Snapshot is a point-in-time copy of the controller's observable state.
// It is comparable, so consumers can cheaply detect change between ticks.
type Snapshot struct {
	PrimaryPosition   Angle
	PrimaryTarget     Angle
	PrimaryMoving     bool
	SecondaryPosition Angle
	SecondaryTarget   Angle
	SecondaryMoving   bool
	LampA             bool
	LampB             bool
	LampsActive       bool
	State             CrossingState
}
