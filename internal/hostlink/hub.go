// Package hostlink connects line-oriented hosts to the controller. Any
// number of concurrent sources (stdin, TCP connections, WebSocket
// sessions, a serial port) feed raw command lines into the controller's
// queue through a shared Hub, and primary-position feedback lines fan
// out to every link that attached a writer.
package hostlink

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/railsignals/crossing-controller/internal/logging"
)

// LineSink consumes raw protocol lines. The controller's Submit method
// satisfies it; Submit reports false when the pending-line queue is full
// and the line was dropped.
type LineSink interface {
	Submit(origin, text string) bool
}

// Hub fans host traffic in and out of a single LineSink. Inbound lines
// from every source funnel into the sink; outbound feedback lines are
// broadcast to every attached writer. All methods are safe for
// concurrent use.
type Hub struct {
	sink LineSink
	log  logging.Logger

	mu     sync.Mutex
	nextID int
	outs   map[int]io.Writer
}

// NewHub wraps sink, typically the controller.
func NewHub(sink LineSink, log logging.Logger) *Hub {
	if log == nil {
		log = logging.Noop()
	}
	return &Hub{
		sink: sink,
		log:  log,
		outs: make(map[int]io.Writer),
	}
}

// Attach registers w to receive feedback lines and returns a detach
// function. Detaching twice is harmless.
func (h *Hub) Attach(w io.Writer) (detach func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	id := h.nextID
	h.nextID++
	h.outs[id] = w

	return func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		delete(h.outs, id)
	}
}

// Broadcast sends one feedback line, newline-terminated, to every
// attached writer. A writer that fails is detached so a dead link cannot
// stall the rest.
func (h *Hub) Broadcast(line string) {
	h.mu.Lock()
	targets := make(map[int]io.Writer, len(h.outs))
	for id, w := range h.outs {
		targets[id] = w
	}
	h.mu.Unlock()

	// Write outside the lock; writers may block briefly on the network.
	var failed []int
	for id, w := range targets {
		if _, err := fmt.Fprintf(w, "%s\n", line); err != nil {
			h.log.Warn(context.Background(), "dropping feedback link",
				logging.Int("link", id), logging.Err(err))
			failed = append(failed, id)
		}
	}
	if len(failed) == 0 {
		return
	}

	h.mu.Lock()
	for _, id := range failed {
		delete(h.outs, id)
	}
	h.mu.Unlock()
}

// Submit forwards one raw line to the sink under the given origin tag.
func (h *Hub) Submit(origin, text string) {
	if !h.sink.Submit(origin, text) {
		h.log.Debug(context.Background(), "line dropped, queue full",
			logging.String("origin", origin))
	}
}

// ReadLines consumes r line by line, submitting each line under origin,
// until r is exhausted. It returns nil on a clean EOF and the read error
// otherwise. Line terminators (LF or CRLF) are stripped before submission.
func (h *Hub) ReadLines(origin string, r io.Reader) error {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		h.Submit(origin, scanner.Text())
	}
	return scanner.Err()
}
