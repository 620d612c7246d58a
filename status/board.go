// Package status keeps the latest observable crossing state for
// read-side consumers.
package status

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/railsignals/crossing-controller/model"
)

// Update is delivered to subscribers when the published state changes.
type Update struct {
	Snapshot model.Snapshot
	At       time.Time
}

// Board is an in-memory, thread-safe holder of the most recent crossing
// snapshot. The control loop publishes into it once per tick; HTTP
// handlers and host links read from it without touching the loop.
type Board struct {
	mu sync.RWMutex

	current   model.Snapshot
	updatedAt time.Time
	published bool

	subs []func(Update)
}

// NewBoard constructs an empty board.
func NewBoard() *Board {
	return &Board{}
}

// Publish stores a snapshot and notifies subscribers. Publishing a
// snapshot equal to the current one is a no-op, so a crossing at rest
// generates no updates even though the loop publishes every tick.
func (b *Board) Publish(snap model.Snapshot, at time.Time) {
	b.mu.Lock()
	if b.published && b.current == snap {
		b.mu.Unlock()
		return
	}
	b.current = snap
	b.updatedAt = at
	b.published = true
	update := Update{Snapshot: snap, At: at}
	subs := append([]func(Update){}, b.subs...)
	b.mu.Unlock()

	// Notify subscribers outside the lock to avoid deadlocks.
	for _, sub := range subs {
		sub(update)
	}
}

// Current returns the latest snapshot. ok is false until the first
// Publish.
func (b *Board) Current() (snap model.Snapshot, at time.Time, ok bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.current, b.updatedAt, b.published
}

// Subscribe registers a callback for state changes. It returns an
// unsubscribe function.
func (b *Board) Subscribe(fn func(Update)) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs = append(b.subs, fn)
	idx := len(b.subs) - 1

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if idx < 0 || idx >= len(b.subs) {
			return
		}
		b.subs = append(b.subs[:idx], b.subs[idx+1:]...)
		idx = -1
	}
}

type actuatorJSON struct {
	Position int  `json:"position"`
	Target   int  `json:"target"`
	Moving   bool `json:"moving"`
}

type boardJSON struct {
	State       string       `json:"state"`
	Primary     actuatorJSON `json:"primary"`
	Secondary   actuatorJSON `json:"secondary"`
	LampA       bool         `json:"lamp_a"`
	LampB       bool         `json:"lamp_b"`
	LampsActive bool         `json:"lamps_active"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// Handler serves the current snapshot as JSON. It responds 503 until
// the first Publish.
func (b *Board) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		snap, at, ok := b.Current()
		if !ok {
			http.Error(w, "no status published yet", http.StatusServiceUnavailable)
			return
		}
		body := boardJSON{
			State: snap.State.String(),
			Primary: actuatorJSON{
				Position: int(snap.PrimaryPosition),
				Target:   int(snap.PrimaryTarget),
				Moving:   snap.PrimaryMoving,
			},
			Secondary: actuatorJSON{
				Position: int(snap.SecondaryPosition),
				Target:   int(snap.SecondaryTarget),
				Moving:   snap.SecondaryMoving,
			},
			LampA:       snap.LampA,
			LampB:       snap.LampB,
			LampsActive: snap.LampsActive,
			UpdatedAt:   at,
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(body); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	})
}
