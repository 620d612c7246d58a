package core

import (
	"testing"
	"time"

	"github.com/railsignals/crossing-controller/model"
)

// crossingFixture ticks coordinator, barrier and lamps together the way the
// controller loop does, in profile-sized steps.
type crossingFixture struct {
	profile model.CrossingProfile
	barrier *MotionController
	lamps   *LampSignaler
	coord   *CrossingCoordinator
	now     time.Time
}

func newCrossingFixture() *crossingFixture {
	profile := model.DefaultCrossingProfile()
	barrier := NewMotionController(profile.RestAngle, profile.StepSize, profile.StepInterval)
	lamps := NewLampSignaler(profile.BlinkPeriod)
	return &crossingFixture{
		profile: profile,
		barrier: barrier,
		lamps:   lamps,
		coord:   NewCrossingCoordinator(profile, barrier, lamps),
		now:     time.Unix(1000, 0),
	}
}

func (f *crossingFixture) advance(d time.Duration) {
	for end := f.now.Add(d); f.now.Before(end); {
		f.now = f.now.Add(f.profile.TickInterval)
		f.coord.Tick(f.now)
		f.barrier.Tick(f.now)
		f.lamps.Tick(f.now)
	}
}

func TestCoordinator_CloseSequence(t *testing.T) {
	f := newCrossingFixture()
	f.coord.HandleClose(f.now)

	if got := f.coord.State(); got != model.CrossingBlinkPendingClose {
		t.Fatalf("state after close command = %v, want BLINK_PENDING_CLOSE", got)
	}
	if !f.lamps.Active() {
		t.Fatalf("lamps not warning after close command")
	}

	// Barrier must not move during the pre-close delay.
	f.advance(5995 * time.Millisecond)
	if got := f.barrier.Position(); got != f.profile.OpenAngle {
		t.Fatalf("barrier moved during pre-close delay: position = %d", got)
	}
	if got := f.coord.State(); got != model.CrossingBlinkPendingClose {
		t.Fatalf("state during pre-close delay = %v, want BLINK_PENDING_CLOSE", got)
	}

	// Delay elapsed: barrier motion starts, state flips to CLOSED.
	f.advance(5 * time.Millisecond)
	if got := f.coord.State(); got != model.CrossingClosed {
		t.Fatalf("state after pre-close delay = %v, want CLOSED", got)
	}

	// Closing takes the full close motion duration.
	f.advance(2 * time.Second)
	if got := f.barrier.Position(); got != f.profile.ClosedAngle {
		t.Fatalf("barrier position after closing = %d, want %d", got, f.profile.ClosedAngle)
	}
	if !f.lamps.Active() {
		t.Fatalf("lamps stopped while crossing is closed")
	}
}

func TestCoordinator_OpenAfterClosed_ImmediateMotionDelayedLampStop(t *testing.T) {
	f := newCrossingFixture()
	f.coord.HandleClose(f.now)
	f.advance(6500 * time.Millisecond) // closing since +6000, partway down

	closing := f.barrier.Position()
	if closing >= f.profile.OpenAngle || closing <= f.profile.ClosedAngle {
		t.Fatalf("barrier position before open = %d, want strictly between %d and %d",
			closing, f.profile.ClosedAngle, f.profile.OpenAngle)
	}

	f.coord.HandleOpen(f.now)
	if got := f.coord.State(); got != model.CrossingOpeningDelay {
		t.Fatalf("state after open command = %v, want OPENING_DELAY", got)
	}

	// Motion reverses immediately, well before the lamp stop delay.
	f.advance(200 * time.Millisecond)
	if got := f.barrier.Position(); got <= closing {
		t.Fatalf("barrier not opening 200ms after open command: position = %d", got)
	}
	if !f.lamps.Active() {
		t.Fatalf("lamps stopped before the lamp stop delay")
	}

	// Lamps stay on until exactly the stop delay after the open command.
	f.advance(295 * time.Millisecond)
	if !f.lamps.Active() {
		t.Fatalf("lamps stopped 495ms after open, want 500ms")
	}
	f.advance(5 * time.Millisecond)
	if f.lamps.Active() {
		t.Fatalf("lamps still warning 500ms after open")
	}
	if got := f.coord.State(); got != model.CrossingIdle {
		t.Fatalf("state after lamp stop = %v, want IDLE", got)
	}

	// The opening motion keeps running after the lamps stop.
	f.advance(3 * time.Second)
	if got := f.barrier.Position(); got != f.profile.OpenAngle {
		t.Fatalf("barrier position after opening = %d, want %d", got, f.profile.OpenAngle)
	}
}

func TestCoordinator_RepeatedCloseRestartsCountdown(t *testing.T) {
	f := newCrossingFixture()
	f.coord.HandleClose(f.now)
	f.advance(4 * time.Second)

	f.coord.HandleClose(f.now)
	a, b := f.lamps.Lamps()
	if !a || b {
		t.Fatalf("lamps after close restart = (%v, %v), want phase reset to (true, false)", a, b)
	}

	// 4s after the restart the original 6s countdown would have fired.
	f.advance(4 * time.Second)
	if got := f.barrier.Position(); got != f.profile.OpenAngle {
		t.Fatalf("barrier moved on the stale countdown: position = %d", got)
	}
	if got := f.coord.State(); got != model.CrossingBlinkPendingClose {
		t.Fatalf("state = %v, want BLINK_PENDING_CLOSE until the restarted delay elapses", got)
	}

	f.advance(2 * time.Second)
	if got := f.coord.State(); got != model.CrossingClosed {
		t.Fatalf("state 6s after the restarted close = %v, want CLOSED", got)
	}
}

func TestCoordinator_OpenWhileIdleIsBareOpen(t *testing.T) {
	f := newCrossingFixture()
	f.coord.HandleOpen(f.now)

	if got := f.coord.State(); got != model.CrossingIdle {
		t.Fatalf("state after open-while-idle = %v, want IDLE", got)
	}
	if f.lamps.Active() {
		t.Fatalf("lamps lit by an open command with nothing pending")
	}

	f.advance(4 * time.Second)
	if got := f.barrier.Position(); got != f.profile.OpenAngle {
		t.Fatalf("barrier position = %d, want held at %d", got, f.profile.OpenAngle)
	}
	if a, b := f.lamps.Lamps(); a || b {
		t.Fatalf("lamps = (%v, %v), want both off throughout", a, b)
	}
}

func TestCoordinator_OpenDuringPendingCloseCancelsIt(t *testing.T) {
	f := newCrossingFixture()
	f.coord.HandleClose(f.now)
	f.advance(time.Second)

	f.coord.HandleOpen(f.now)
	if got := f.coord.State(); got != model.CrossingOpeningDelay {
		t.Fatalf("state = %v, want OPENING_DELAY (lamps were warning)", got)
	}

	f.advance(500 * time.Millisecond)
	if f.lamps.Active() {
		t.Fatalf("lamps still warning after the stop delay")
	}

	// The cancelled close must never fire.
	f.advance(8 * time.Second)
	if got := f.barrier.Position(); got != f.profile.OpenAngle {
		t.Fatalf("cancelled close still moved the barrier: position = %d", got)
	}
	if got := f.coord.State(); got != model.CrossingIdle {
		t.Fatalf("state = %v, want IDLE", got)
	}
}

func TestCoordinator_OpenDuringOpeningDelayRestartsLampCountdown(t *testing.T) {
	f := newCrossingFixture()
	f.coord.HandleClose(f.now)
	f.advance(6500 * time.Millisecond)
	f.coord.HandleOpen(f.now)

	f.advance(300 * time.Millisecond)
	f.coord.HandleOpen(f.now) // second open restarts the lamp tail

	f.advance(300 * time.Millisecond)
	if !f.lamps.Active() {
		t.Fatalf("lamps stopped on the first open's countdown; the second open should have restarted it")
	}
	f.advance(200 * time.Millisecond)
	if f.lamps.Active() {
		t.Fatalf("lamps still warning 500ms after the second open")
	}
}

func TestCoordinator_LampsAlternateWhileClosed(t *testing.T) {
	f := newCrossingFixture()
	f.coord.HandleClose(f.now)
	f.advance(9 * time.Second) // well past close completion

	if got := f.coord.State(); got != model.CrossingClosed {
		t.Fatalf("state = %v, want CLOSED", got)
	}
	a1, b1 := f.lamps.Lamps()
	f.advance(f.profile.BlinkPeriod)
	a2, b2 := f.lamps.Lamps()
	if a1 == a2 || b1 == b2 {
		t.Fatalf("lamps did not alternate while closed: (%v,%v) then (%v,%v)", a1, b1, a2, b2)
	}
}
