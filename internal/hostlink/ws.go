package hostlink

import (
	"net/http"
	"strings"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/railsignals/crossing-controller/internal/logging"
)

// WSHandler serves the line protocol over WebSocket. Each inbound text
// message is one command line; each feedback line goes out as one text
// message. Binary messages are ignored.
type WSHandler struct {
	hub      *Hub
	log      logging.Logger
	upgrader websocket.Upgrader
}

// NewWSHandler returns an http.Handler upgrading requests to WebSocket
// sessions on the hub.
func NewWSHandler(hub *Hub, log logging.Logger) *WSHandler {
	if log == nil {
		log = logging.Noop()
	}
	return &WSHandler{
		hub: hub,
		log: log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  256,
			WriteBufferSize: 256,
			// The command link carries no credentials; any origin may use
			// it, same as the open TCP port.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

func (h *WSHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn(r.Context(), "websocket upgrade failed", logging.Err(err))
		return
	}
	defer conn.Close()

	ctx, log := logging.WithSessionLogger(r.Context(), h.log)
	log.Info(ctx, "host connected",
		logging.String("transport", "ws"),
		logging.String("remote", conn.RemoteAddr().String()))

	detach := h.hub.Attach(&wsWriter{conn: conn})
	defer detach()

	origin := "ws/" + logging.SessionIDFromContext(ctx)
	for {
		kind, payload, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Warn(ctx, "websocket read failed", logging.Err(err))
			}
			break
		}
		if kind != websocket.TextMessage {
			continue
		}
		// One message may still carry several newline-separated lines.
		for _, line := range strings.Split(string(payload), "\n") {
			if line = strings.TrimRight(line, "\r"); line != "" {
				h.hub.Submit(origin, line)
			}
		}
	}
	log.Info(ctx, "host disconnected", logging.String("transport", "ws"))
}

// wsWriter adapts a WebSocket connection to the hub's io.Writer feedback
// boundary. Gorilla connections allow one concurrent writer, so writes are
// serialized here.
type wsWriter struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (w *wsWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	// Feedback lines arrive newline-terminated; WebSocket frames them, so
	// the terminator is dropped.
	msg := strings.TrimRight(string(p), "\n")
	if err := w.conn.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
		return 0, err
	}
	return len(p), nil
}
