package hostlink

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/railsignals/crossing-controller/internal/logging"
)

// TCPServer serves the newline command protocol on a TCP listener. Each
// connection is one session: its lines feed the hub and it receives
// every feedback line until it disconnects.
type TCPServer struct {
	hub *Hub
	log logging.Logger
	lis net.Listener

	mu     sync.Mutex
	closed bool
	conns  map[net.Conn]struct{}
	wg     sync.WaitGroup
}

// ListenTCP binds addr and returns a server ready for Serve.
func ListenTCP(addr string, hub *Hub, log logging.Logger) (*TCPServer, error) {
	if log == nil {
		log = logging.Noop()
	}
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", addr, err)
	}
	return &TCPServer{
		hub:   hub,
		log:   log,
		lis:   lis,
		conns: make(map[net.Conn]struct{}),
	}, nil
}

// Addr returns the bound listener address.
func (s *TCPServer) Addr() net.Addr {
	return s.lis.Addr()
}

// Serve accepts connections until Close. It blocks, so run it in its own
// goroutine.
func (s *TCPServer) Serve() {
	for {
		conn, err := s.lis.Accept()
		if err != nil {
			if !s.isClosed() {
				s.log.Warn(context.Background(), "host link accept failed", logging.Err(err))
			}
			return
		}
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			conn.Close()
			return
		}
		s.conns[conn] = struct{}{}
		s.mu.Unlock()

		s.wg.Add(1)
		go s.handle(conn)
	}
}

// Close stops accepting, disconnects every session and waits for their
// handlers to finish.
func (s *TCPServer) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	conns := make([]net.Conn, 0, len(s.conns))
	for conn := range s.conns {
		conns = append(conns, conn)
	}
	s.mu.Unlock()

	err := s.lis.Close()
	for _, conn := range conns {
		conn.Close()
	}
	s.wg.Wait()
	return err
}

func (s *TCPServer) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *TCPServer) handle(conn net.Conn) {
	defer s.wg.Done()
	defer func() {
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
		conn.Close()
	}()

	ctx, log := logging.WithSessionLogger(context.Background(), s.log)
	log.Info(ctx, "host connected",
		logging.String("transport", "tcp"),
		logging.String("remote", conn.RemoteAddr().String()))

	detach := s.hub.Attach(conn)
	defer detach()

	origin := "tcp/" + logging.SessionIDFromContext(ctx)
	if err := s.hub.ReadLines(origin, conn); err != nil && !errors.Is(err, net.ErrClosed) {
		log.Warn(ctx, "host link read failed", logging.Err(err))
	}
	log.Info(ctx, "host disconnected", logging.String("transport", "tcp"))
}
