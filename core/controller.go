package core

import (
	"strings"
	"time"

	"github.com/railsignals/crossing-controller/internal/command"
	"github.com/railsignals/crossing-controller/model"
)

// defaultQueueSize bounds how many submitted lines can wait for the tick
// loop. The loop drains one per tick, so even a burst from several links
// clears quickly.
const defaultQueueSize = 64

// MetricsRecorder receives controller telemetry. Calls happen synchronously
// on the tick loop, so implementations must be cheap and non-blocking.
type MetricsRecorder interface {
	RecordCommand(kind model.CommandKind)
	RecordRejectedLine()
	RecordDroppedLine()
	RecordFeedback()
	RecordTick()
	SetActuatorPosition(actuator model.Actuator, angle model.Angle)
	SetLampState(lamp model.Lamp, on bool)
	SetCrossingState(state model.CrossingState)
}

// nopRecorder is the default recorder when none is configured.
type nopRecorder struct{}

func (nopRecorder) RecordCommand(model.CommandKind)                {}
func (nopRecorder) RecordRejectedLine()                            {}
func (nopRecorder) RecordDroppedLine()                             {}
func (nopRecorder) RecordFeedback()                                {}
func (nopRecorder) RecordTick()                                    {}
func (nopRecorder) SetActuatorPosition(model.Actuator, model.Angle) {}
func (nopRecorder) SetLampState(model.Lamp, bool)                  {}
func (nopRecorder) SetCrossingState(model.CrossingState)           {}

// OutputDriver receives the hardware-facing outputs once per tick. The
// controller pushes unconditionally; drivers are expected to suppress
// writes for unchanged values. Implementations must not block.
type OutputDriver interface {
	SetActuatorAngle(actuator model.Actuator, angle model.Angle)
	SetLamp(lamp model.Lamp, on bool)
}

// LineOutcome describes what the tick loop did with one submitted line.
type LineOutcome struct {
	Origin   string
	Text     string
	Kind     model.CommandKind
	Accepted bool
}

type submittedLine struct {
	origin string
	text   string
}

// Controller composes the two motion controllers, the lamp signaler and the
// crossing coordinator behind a single Tick, and owns the queue of raw lines
// awaiting it. Submit may be called from any goroutine; everything else
// belongs to the tick loop alone.
type Controller struct {
	profile   model.CrossingProfile
	primary   *MotionController
	secondary *MotionController
	lamps     *LampSignaler
	coord     *CrossingCoordinator

	lines chan submittedLine

	metrics  MetricsRecorder
	driver   OutputDriver
	feedback func(model.Angle)
	observer func(LineOutcome)
}

// Option configures a Controller.
type Option func(*Controller)

// WithMetricsRecorder wires telemetry recording.
func WithMetricsRecorder(m MetricsRecorder) Option {
	return func(c *Controller) {
		if m != nil {
			c.metrics = m
		}
	}
}

// WithOutputDriver wires the hardware output boundary.
func WithOutputDriver(d OutputDriver) Option {
	return func(c *Controller) { c.driver = d }
}

// WithFeedback wires the primary-position feedback emitter, invoked after
// every primary position change with the new angle.
func WithFeedback(fn func(model.Angle)) Option {
	return func(c *Controller) { c.feedback = fn }
}

// WithLineObserver wires a hook invoked for every non-blank consumed line,
// accepted or rejected.
func WithLineObserver(fn func(LineOutcome)) Option {
	return func(c *Controller) { c.observer = fn }
}

// WithQueueSize overrides the pending-line queue capacity.
func WithQueueSize(n int) Option {
	return func(c *Controller) {
		if n > 0 {
			c.lines = make(chan submittedLine, n)
		}
	}
}

// NewController builds a controller at its startup defaults: both actuators
// at the profile's rest angle, lamps off, crossing idle.
func NewController(profile model.CrossingProfile, opts ...Option) *Controller {
	profile = profile.ApplyDefaults()
	c := &Controller{
		profile:   profile,
		primary:   NewMotionController(profile.RestAngle, profile.StepSize, profile.StepInterval),
		secondary: NewMotionController(profile.RestAngle, profile.StepSize, profile.StepInterval),
		lamps:     NewLampSignaler(profile.BlinkPeriod),
		lines:     make(chan submittedLine, defaultQueueSize),
		metrics:   nopRecorder{},
	}
	c.coord = NewCrossingCoordinator(profile, c.secondary, c.lamps)
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Profile returns the controller's effective profile, defaults applied.
func (c *Controller) Profile() model.CrossingProfile {
	return c.profile
}

// Submit queues one raw line for the tick loop and reports whether it was
// queued. It never blocks: when the queue is full the line is dropped, in
// keeping with the protocol's best-effort stance.
func (c *Controller) Submit(origin, text string) bool {
	select {
	case c.lines <- submittedLine{origin: origin, text: text}:
		return true
	default:
		c.metrics.RecordDroppedLine()
		return false
	}
}

// Tick runs one controller iteration at now: consume at most one pending
// line, then advance the coordinator, both motions and the lamps. A consumed
// command's effect is visible to the same tick's advancement.
func (c *Controller) Tick(now time.Time) {
	select {
	case ln := <-c.lines:
		c.handleLine(ln, now)
	default:
	}

	c.coord.Tick(now)
	if c.primary.Tick(now) {
		c.metrics.RecordFeedback()
		if c.feedback != nil {
			c.feedback(c.primary.Position())
		}
	}
	c.secondary.Tick(now)
	c.lamps.Tick(now)

	c.publish()
	c.metrics.RecordTick()
}

// Snapshot returns the observable state. Call it from the tick goroutine
// only; hand the copy to other goroutines instead of re-reading.
func (c *Controller) Snapshot() model.Snapshot {
	a, b := c.lamps.Lamps()
	return model.Snapshot{
		PrimaryPosition:   c.primary.Position(),
		PrimaryTarget:     c.primary.Target(),
		PrimaryMoving:     c.primary.Moving(),
		SecondaryPosition: c.secondary.Position(),
		SecondaryTarget:   c.secondary.Target(),
		SecondaryMoving:   c.secondary.Moving(),
		LampA:             a,
		LampB:             b,
		LampsActive:       c.lamps.Active(),
		State:             c.coord.State(),
	}
}

func (c *Controller) handleLine(ln submittedLine, now time.Time) {
	text := strings.TrimSpace(ln.text)
	if text == "" {
		return
	}

	cmd, ok := command.Parse(text)
	if !ok {
		c.metrics.RecordRejectedLine()
		c.observe(LineOutcome{Origin: ln.origin, Text: text, Kind: model.CommandUnknown})
		return
	}

	switch cmd.Kind {
	case model.CommandCloseCrossing:
		c.coord.HandleClose(now)
	case model.CommandOpenCrossing:
		c.coord.HandleOpen(now)
	case model.CommandSetPrimary:
		applyMove(c.primary, cmd, now)
	case model.CommandSetSecondary:
		applyMove(c.secondary, cmd, now)
	}
	c.metrics.RecordCommand(cmd.Kind)
	c.observe(LineOutcome{Origin: ln.origin, Text: text, Kind: cmd.Kind, Accepted: true})
}

func applyMove(m *MotionController, cmd model.Command, now time.Time) {
	if cmd.Duration > 0 {
		m.SetTimedTarget(cmd.Angle, cmd.Duration, now)
	} else {
		m.SetTarget(cmd.Angle)
	}
}

func (c *Controller) observe(outcome LineOutcome) {
	if c.observer != nil {
		c.observer(outcome)
	}
}

func (c *Controller) publish() {
	pPos, sPos := c.primary.Position(), c.secondary.Position()
	a, b := c.lamps.Lamps()

	if c.driver != nil {
		c.driver.SetActuatorAngle(model.ActuatorPrimary, pPos)
		c.driver.SetActuatorAngle(model.ActuatorSecondary, sPos)
		c.driver.SetLamp(model.LampA, a)
		c.driver.SetLamp(model.LampB, b)
	}

	c.metrics.SetActuatorPosition(model.ActuatorPrimary, pPos)
	c.metrics.SetActuatorPosition(model.ActuatorSecondary, sPos)
	c.metrics.SetLampState(model.LampA, a)
	c.metrics.SetLampState(model.LampB, b)
	c.metrics.SetCrossingState(c.coord.State())
}
