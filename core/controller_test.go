package core

import (
	"testing"
	"time"

	"github.com/railsignals/crossing-controller/model"
)

type captureRecorder struct {
	commands  map[model.CommandKind]int
	rejected  int
	dropped   int
	feedbacks int
	ticks     int
	positions map[model.Actuator]model.Angle
	lamps     map[model.Lamp]bool
	state     model.CrossingState
}

func newCaptureRecorder() *captureRecorder {
	return &captureRecorder{
		commands:  make(map[model.CommandKind]int),
		positions: make(map[model.Actuator]model.Angle),
		lamps:     make(map[model.Lamp]bool),
	}
}

func (r *captureRecorder) RecordCommand(kind model.CommandKind) { r.commands[kind]++ }
func (r *captureRecorder) RecordRejectedLine()                  { r.rejected++ }
func (r *captureRecorder) RecordDroppedLine()                   { r.dropped++ }
func (r *captureRecorder) RecordFeedback()                      { r.feedbacks++ }
func (r *captureRecorder) RecordTick()                          { r.ticks++ }
func (r *captureRecorder) SetActuatorPosition(a model.Actuator, angle model.Angle) {
	r.positions[a] = angle
}
func (r *captureRecorder) SetLampState(l model.Lamp, on bool)     { r.lamps[l] = on }
func (r *captureRecorder) SetCrossingState(s model.CrossingState) { r.state = s }

type captureDriver struct {
	angles map[model.Actuator]model.Angle
	lamps  map[model.Lamp]bool
}

func newCaptureDriver() *captureDriver {
	return &captureDriver{
		angles: make(map[model.Actuator]model.Angle),
		lamps:  make(map[model.Lamp]bool),
	}
}

func (d *captureDriver) SetActuatorAngle(a model.Actuator, angle model.Angle) {
	d.angles[a] = angle
}
func (d *captureDriver) SetLamp(l model.Lamp, on bool) { d.lamps[l] = on }

// controllerHarness drives a Controller the way the daemon loop does, with a
// deterministic clock.
type controllerHarness struct {
	c        *Controller
	now      time.Time
	step     time.Duration
	feedback []model.Angle
}

func newControllerHarness(opts ...Option) *controllerHarness {
	h := &controllerHarness{
		now:  time.Unix(2000, 0),
		step: model.DefaultCrossingProfile().TickInterval,
	}
	opts = append(opts, WithFeedback(func(a model.Angle) {
		h.feedback = append(h.feedback, a)
	}))
	h.c = NewController(model.DefaultCrossingProfile(), opts...)
	return h
}

func (h *controllerHarness) send(line string) {
	if !h.c.Submit("test", line) {
		panic("test harness: line queue full")
	}
}

func (h *controllerHarness) run(d time.Duration) {
	for end := h.now.Add(d); h.now.Before(end); {
		h.now = h.now.Add(h.step)
		h.c.Tick(h.now)
	}
}

func TestController_StartupDefaults(t *testing.T) {
	h := newControllerHarness()
	snap := h.c.Snapshot()

	want := model.Snapshot{
		PrimaryPosition:   90,
		PrimaryTarget:     90,
		SecondaryPosition: 90,
		SecondaryTarget:   90,
		State:             model.CrossingIdle,
	}
	if snap != want {
		t.Fatalf("startup snapshot = %+v, want %+v", snap, want)
	}
}

func TestController_PrimaryMoveEmitsFeedbackPerStep(t *testing.T) {
	h := newControllerHarness()
	h.send("100")
	h.run(time.Second)

	want := []model.Angle{92, 94, 96, 98, 100}
	if len(h.feedback) != len(want) {
		t.Fatalf("feedback = %v, want %v", h.feedback, want)
	}
	for i, w := range want {
		if h.feedback[i] != w {
			t.Fatalf("feedback[%d] = %d, want %d", i, h.feedback[i], w)
		}
	}
	if got := h.c.Snapshot().PrimaryPosition; got != 100 {
		t.Fatalf("primary position = %d, want 100", got)
	}
}

func TestController_SecondaryMoveIsSilent(t *testing.T) {
	h := newControllerHarness()
	h.send("M2 30")
	h.run(time.Second)

	if len(h.feedback) != 0 {
		t.Fatalf("secondary move produced feedback %v, want none", h.feedback)
	}
	if got := h.c.Snapshot().SecondaryPosition; got != 30 {
		t.Fatalf("secondary position = %d, want 30", got)
	}
}

func TestController_TimedPrimaryMove(t *testing.T) {
	h := newControllerHarness()
	h.send("120 1000")
	h.run(1100 * time.Millisecond)

	if got := h.c.Snapshot().PrimaryPosition; got != 120 {
		t.Fatalf("primary position after timed move = %d, want 120", got)
	}
	prev := model.Angle(90)
	for i, a := range h.feedback {
		if a < prev {
			t.Fatalf("feedback[%d] regressed: %d after %d", i, a, prev)
		}
		prev = a
	}
	if prev != 120 {
		t.Fatalf("last feedback = %d, want 120", prev)
	}
}

func TestController_FullCloseOpenCycle(t *testing.T) {
	h := newControllerHarness()

	h.send("BZU")
	h.run(6500 * time.Millisecond)

	snap := h.c.Snapshot()
	if snap.State != model.CrossingClosed {
		t.Fatalf("state 6.5s after close command = %v, want CLOSED", snap.State)
	}
	if !snap.LampsActive {
		t.Fatalf("lamps not warning while closing")
	}
	if snap.SecondaryPosition >= 90 || snap.SecondaryPosition <= 0 {
		t.Fatalf("barrier position mid-close = %d, want strictly between 0 and 90", snap.SecondaryPosition)
	}

	h.send("BAUF")
	h.run(5 * time.Millisecond) // consume the open command
	opened := h.c.Snapshot()
	if opened.State != model.CrossingOpeningDelay {
		t.Fatalf("state after open command = %v, want OPENING_DELAY", opened.State)
	}

	// Barrier reverses immediately; lamps stay on through the stop delay.
	h.run(300 * time.Millisecond)
	mid := h.c.Snapshot()
	if mid.SecondaryPosition <= opened.SecondaryPosition {
		t.Fatalf("barrier not opening: position %d after %d", mid.SecondaryPosition, opened.SecondaryPosition)
	}
	if !mid.LampsActive {
		t.Fatalf("lamps stopped before the stop delay")
	}

	h.run(195 * time.Millisecond) // 495ms after the open command
	if snap := h.c.Snapshot(); !snap.LampsActive {
		t.Fatalf("lamps stopped 495ms after open, want exactly 500ms")
	}
	h.run(5 * time.Millisecond) // 500ms after the open command
	snap = h.c.Snapshot()
	if snap.LampsActive || snap.LampA || snap.LampB {
		t.Fatalf("lamps still on 500ms after open: %+v", snap)
	}
	if snap.State != model.CrossingIdle {
		t.Fatalf("state after lamp stop = %v, want IDLE", snap.State)
	}

	h.run(2500 * time.Millisecond)
	if got := h.c.Snapshot().SecondaryPosition; got != 90 {
		t.Fatalf("barrier position after reopening = %d, want 90", got)
	}
}

func TestController_CloseReachesClosedAngleByDeadline(t *testing.T) {
	h := newControllerHarness()
	h.send("BZU")

	// One tick to consume the command, 6s pre-close delay, 2s motion.
	h.run(8010 * time.Millisecond)
	snap := h.c.Snapshot()
	if snap.SecondaryPosition != 0 {
		t.Fatalf("barrier position = %d, want closed angle 0", snap.SecondaryPosition)
	}
	if snap.State != model.CrossingClosed {
		t.Fatalf("state = %v, want CLOSED", snap.State)
	}
	if len(h.feedback) != 0 {
		t.Fatalf("close sequence produced primary feedback %v, want none", h.feedback)
	}
}

func TestController_OpenWhileIdleIsIdempotent(t *testing.T) {
	h := newControllerHarness()
	h.run(100 * time.Millisecond)
	before := h.c.Snapshot()

	h.send("BAUF")
	h.run(4 * time.Second)

	if after := h.c.Snapshot(); after != before {
		t.Fatalf("open-while-idle changed state: %+v -> %+v", before, after)
	}
	if len(h.feedback) != 0 {
		t.Fatalf("open-while-idle produced feedback %v, want none", h.feedback)
	}
}

func TestController_RejectedLinesChangeNothing(t *testing.T) {
	rec := newCaptureRecorder()
	h := newControllerHarness(WithMetricsRecorder(rec))
	before := h.c.Snapshot()

	for _, line := range []string{"M2 999", "200", "abc", "90 50 60"} {
		h.send(line)
	}
	h.run(500 * time.Millisecond)

	if after := h.c.Snapshot(); after != before {
		t.Fatalf("rejected lines changed state: %+v -> %+v", before, after)
	}
	if rec.rejected != 4 {
		t.Fatalf("rejected line count = %d, want 4", rec.rejected)
	}
	if len(rec.commands) != 0 {
		t.Fatalf("rejected lines recorded as commands: %v", rec.commands)
	}
}

func TestController_BlankLinesAreIgnoredSilently(t *testing.T) {
	rec := newCaptureRecorder()
	h := newControllerHarness(WithMetricsRecorder(rec))

	h.send("")
	h.send("   ")
	h.run(100 * time.Millisecond)

	if rec.rejected != 0 {
		t.Fatalf("blank lines counted as rejected: %d", rec.rejected)
	}
}

func TestController_MalformedDurationFallsBackToStepMove(t *testing.T) {
	h := newControllerHarness()
	h.send("100 abc")
	h.run(200 * time.Millisecond)

	// A step approach reports each 2-degree step; a timed jump would have
	// reported a single change.
	if len(h.feedback) != 5 {
		t.Fatalf("feedback count = %d (%v), want 5 stepwise changes", len(h.feedback), h.feedback)
	}
	if got := h.c.Snapshot().PrimaryPosition; got != 100 {
		t.Fatalf("primary position = %d, want 100", got)
	}
}

func TestController_AtMostOneCommandPerTick(t *testing.T) {
	h := newControllerHarness()
	h.send("10")
	h.send("170")

	h.now = h.now.Add(h.step)
	h.c.Tick(h.now)
	if got := h.c.Snapshot().PrimaryTarget; got != 10 {
		t.Fatalf("primary target after first tick = %d, want 10", got)
	}

	h.now = h.now.Add(h.step)
	h.c.Tick(h.now)
	if got := h.c.Snapshot().PrimaryTarget; got != 170 {
		t.Fatalf("primary target after second tick = %d, want 170", got)
	}
}

func TestController_QueueOverflowDropsLines(t *testing.T) {
	rec := newCaptureRecorder()
	c := NewController(model.DefaultCrossingProfile(), WithQueueSize(1), WithMetricsRecorder(rec))

	if !c.Submit("test", "90") {
		t.Fatalf("first submit rejected")
	}
	if c.Submit("test", "91") {
		t.Fatalf("second submit accepted with a full queue")
	}
	if rec.dropped != 1 {
		t.Fatalf("dropped line count = %d, want 1", rec.dropped)
	}
}

func TestController_LineObserverSeesOutcomes(t *testing.T) {
	var outcomes []LineOutcome
	h := newControllerHarness(WithLineObserver(func(o LineOutcome) {
		outcomes = append(outcomes, o)
	}))

	h.send("BZU")
	h.send("junk")
	h.run(100 * time.Millisecond)

	if len(outcomes) != 2 {
		t.Fatalf("observed %d outcomes, want 2", len(outcomes))
	}
	if !outcomes[0].Accepted || outcomes[0].Kind != model.CommandCloseCrossing {
		t.Fatalf("first outcome = %+v, want accepted close_crossing", outcomes[0])
	}
	if outcomes[1].Accepted || outcomes[1].Kind != model.CommandUnknown {
		t.Fatalf("second outcome = %+v, want rejected unknown", outcomes[1])
	}
	if outcomes[1].Origin != "test" {
		t.Fatalf("outcome origin = %q, want %q", outcomes[1].Origin, "test")
	}
}

func TestController_OutputDriverReceivesOutputs(t *testing.T) {
	drv := newCaptureDriver()
	h := newControllerHarness(WithOutputDriver(drv))

	h.send("BZU")
	h.run(50 * time.Millisecond)

	if got := drv.angles[model.ActuatorPrimary]; got != 90 {
		t.Fatalf("driver primary angle = %d, want 90", got)
	}
	if got := drv.angles[model.ActuatorSecondary]; got != 90 {
		t.Fatalf("driver secondary angle = %d, want 90", got)
	}
	if !drv.lamps[model.LampA] || drv.lamps[model.LampB] {
		t.Fatalf("driver lamps = (%v, %v), want (true, false) right after close command",
			drv.lamps[model.LampA], drv.lamps[model.LampB])
	}
}

func TestController_MetricsGaugesTrackState(t *testing.T) {
	rec := newCaptureRecorder()
	h := newControllerHarness(WithMetricsRecorder(rec))

	h.send("BZU")
	h.run(50 * time.Millisecond)

	if rec.commands[model.CommandCloseCrossing] != 1 {
		t.Fatalf("close command count = %d, want 1", rec.commands[model.CommandCloseCrossing])
	}
	if rec.state != model.CrossingBlinkPendingClose {
		t.Fatalf("recorded state = %v, want BLINK_PENDING_CLOSE", rec.state)
	}
	if !rec.lamps[model.LampA] {
		t.Fatalf("recorded lamp A off, want on during warning")
	}
	if rec.ticks == 0 {
		t.Fatalf("no ticks recorded")
	}
}
