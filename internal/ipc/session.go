package ipc

import (
	"net"
	"sync"
	"time"

	"github.com/lydakis/corehost/internal/pkg/json"
	"github.com/lydakis/corehost/internal/pkg/log"
	"github.com/lydakis/corehost/internal/uisink"
)

// Session is one connected UI or CLI client. Writes are serialized, so it
// can be used as a uisink.Sink from any goroutine.
type Session struct {
	ID uint64

	conn net.Conn
	log  log.Logger

	mu      sync.Mutex
	enc     *json.Encoder
	closed  bool
	onClose []func()
	// held queues streamed frames of a request until its ack is written.
	held map[string][]uisink.Response
}

var _ uisink.Sink = (*Session)(nil)

func newSession(id uint64, conn net.Conn, l log.Logger) *Session {
	return &Session{ID: id, conn: conn, log: l, enc: json.NewEncoder(conn)}
}

// Respond writes r to the client. Streamed items of a request still
// waiting for its acknowledgement are written right after it.
func (s *Session) Respond(r uisink.Response) {
	s.mu.Lock()
	defer s.mu.Unlock()

	queued, waiting := s.held[r.RequestID]
	if waiting && r.IsStreaming {
		s.held[r.RequestID] = append(queued, r)
		return
	}
	s.writeLocked(r)
	if waiting {
		delete(s.held, r.RequestID)
		for _, item := range queued {
			s.writeLocked(item)
		}
	}
}

// Emit writes e to the client.
func (s *Session) Emit(e uisink.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writeLocked(e)
}

// hold makes streamed frames for requestID wait for its first
// non-streaming response.
func (s *Session) hold(requestID string) {
	if requestID == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.held == nil {
		s.held = make(map[string][]uisink.Response)
	}
	s.held[requestID] = nil
}

func (s *Session) writeLocked(v any) {
	if s.closed {
		return
	}
	_ = s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := s.enc.Encode(v); err != nil {
		s.log.Debugf("session %d write failed, closing: %v", s.ID, err)
		s.closeLocked()
	}
}

// OnClose registers fn to run once the session ends. fn runs immediately
// when the session is already closed.
func (s *Session) OnClose(fn func()) {
	s.mu.Lock()
	if !s.closed {
		s.onClose = append(s.onClose, fn)
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()
	fn()
}

// Close ends the session and runs its close hooks.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeLocked()
}

func (s *Session) closeLocked() {
	if s.closed {
		return
	}
	s.closed = true
	s.held = nil
	_ = s.conn.Close()
	hooks := s.onClose
	s.onClose = nil
	go func() {
		for _, fn := range hooks {
			fn()
		}
	}()
}

func (s *Session) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
