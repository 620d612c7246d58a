package timectrl

import (
	"context"
	"sync"
	"time"
)

// Clock is the controller loop's view of time. Components take explicit
// timestamps in their tick methods; Clock exists for the code around the
// loop (transports, status reporting) that wants a consistent notion of
// "controller time" without depending on the concrete controller type.
type Clock interface {
	// Now returns the current controller time.
	Now() time.Time
}

// TimeController produces the tick train that drives the crossing
// controller. Controller time advances by Tick per tick regardless of the
// wall clock; Factor sets how fast the ticks fire in wall time, so a factor
// of 10 runs the whole crossing sequence ten times faster than real time
// while leaving its time-based semantics untouched.
//
// It implements Clock.
type TimeController struct {
	mu sync.RWMutex

	StartTime time.Time
	Tick      time.Duration
	// Factor is the wall-time speedup. Values <= 0 are treated as 1 (real
	// time).
	Factor float64

	// currentTime tracks controller time, updated as ticks fire.
	currentTime time.Time

	listeners []func(time.Time)
}

// NewTimeController constructs a controller that starts at start and
// advances by tick per tick, fired at tick/factor wall intervals.
func NewTimeController(start time.Time, tick time.Duration, factor float64) *TimeController {
	return &TimeController{
		StartTime:   start,
		Tick:        tick,
		Factor:      factor,
		currentTime: start,
	}
}

// Now returns the current controller time. Implements Clock.
func (tc *TimeController) Now() time.Time {
	tc.mu.RLock()
	defer tc.mu.RUnlock()
	return tc.currentTime
}

// AddListener registers a callback invoked on every tick with the new
// controller time. Register all listeners before calling Start; the slice is
// not guarded against concurrent mutation.
func (tc *TimeController) AddListener(fn func(time.Time)) {
	tc.listeners = append(tc.listeners, fn)
}

// Start runs the tick train in a separate goroutine until duration of
// controller time has elapsed, or forever when duration is zero, or until
// ctx is cancelled. It returns a channel that is closed when the goroutine
// finishes.
func (tc *TimeController) Start(ctx context.Context, duration time.Duration) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)

		tc.mu.Lock()
		simTime := tc.StartTime
		tc.currentTime = simTime
		tc.mu.Unlock()

		wallTick := tc.Tick
		if tc.Factor > 0 {
			wallTick = time.Duration(float64(tc.Tick) / tc.Factor)
			if wallTick <= 0 {
				wallTick = time.Nanosecond
			}
		}

		ticker := time.NewTicker(wallTick)
		defer ticker.Stop()

		elapsed := time.Duration(0)
		for {
			if duration > 0 && elapsed >= duration {
				return
			}

			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}

			simTime = simTime.Add(tc.Tick)
			elapsed += tc.Tick

			tc.mu.Lock()
			tc.currentTime = simTime
			tc.mu.Unlock()

			for _, fn := range tc.listeners {
				fn(simTime)
			}
		}
	}()
	return done
}
