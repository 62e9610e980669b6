package ipc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go4org/hashtriemap"
	"github.com/lydakis/corehost/internal/pkg/json"
	"github.com/lydakis/corehost/internal/pkg/log"
	"github.com/lydakis/corehost/internal/uisink"
)

const writeTimeout = 5 * time.Second

// Handler serves one request from a session. The returned response is
// written back on the same session.
type Handler func(ctx context.Context, s *Session, req *Request) uisink.Response

var peerUIDMatchesCurrentUserFn = peerUIDMatchesCurrentUser

// Server listens for UI sessions on a Unix socket. It is also a
// uisink.Sink that broadcasts to every open session.
type Server struct {
	socketPath string
	nonce      string
	handler    Handler
	log        log.Logger
	listener   net.Listener
	wg         sync.WaitGroup

	sessions hashtriemap.HashTrieMap[uint64, *Session]
	nextID   atomic.Uint64
	active   atomic.Int64

	mu         sync.Mutex
	onSessions func(active int)
}

var _ uisink.Sink = (*Server)(nil)

// NewServer creates a new IPC server.
func NewServer(socketPath, nonce string, handler Handler, l log.Logger) *Server {
	return &Server{
		socketPath: socketPath,
		nonce:      nonce,
		handler:    handler,
		log:        log.Named(l, "ipc"),
	}
}

// SetOnSessions registers fn to be called with the session count whenever
// a session opens or closes.
func (s *Server) SetOnSessions(fn func(active int)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onSessions = fn
}

// Start begins listening for connections. It removes any stale socket file first.
func (s *Server) Start() error {
	os.Remove(s.socketPath)

	ln, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.socketPath, err)
	}
	if err := os.Chmod(s.socketPath, 0600); err != nil {
		ln.Close()
		os.Remove(s.socketPath)
		return fmt.Errorf("setting socket permissions: %w", err)
	}
	s.listener = ln

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.acceptLoop()
	}()
	return nil
}

// Stop closes the listener and every session, then waits for their
// handlers to return.
func (s *Server) Stop() {
	if s.listener != nil {
		s.listener.Close()
	}
	s.sessions.Range(func(_ uint64, sess *Session) bool {
		sess.Close()
		return true
	})
	s.wg.Wait()
	os.Remove(s.socketPath)
}

// Sessions returns the number of open sessions.
func (s *Server) Sessions() int {
	return int(s.active.Load())
}

// Respond broadcasts r to every session.
func (s *Server) Respond(r uisink.Response) {
	s.sessions.Range(func(_ uint64, sess *Session) bool {
		sess.Respond(r)
		return true
	})
}

// Emit broadcasts e to every session.
func (s *Server) Emit(e uisink.Event) {
	s.sessions.Range(func(_ uint64, sess *Session) bool {
		sess.Emit(e)
		return true
	})
}

func (s *Server) acceptLoop() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return // listener closed
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer conn.Close()
			s.handleConn(conn)
		}()
	}
}

func (s *Server) handleConn(conn net.Conn) {
	sess := newSession(s.nextID.Add(1), conn, s.log)

	ok, err := peerUIDMatchesCurrentUserFn(conn)
	if err != nil {
		sess.Respond(uisink.Failed("", errors.New("peer uid check failed")))
		return
	}
	if !ok {
		sess.Respond(uisink.Failed("", errors.New("peer uid mismatch")))
		return
	}

	s.open(sess)
	defer s.close(sess)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var inflight sync.WaitGroup
	dec := json.NewDecoder(conn)
	for {
		var req Request
		if err := dec.Decode(&req); err != nil {
			if !errors.Is(err, io.EOF) && !sess.isClosed() {
				s.log.Debugf("session %d: %v", sess.ID, err)
				sess.Respond(uisink.Failed("", errors.New("invalid request")))
			}
			break
		}
		if req.Nonce != s.nonce {
			sess.Respond(uisink.Failed(req.RequestID, ErrNonceRejected))
			break
		}

		if req.Streaming {
			sess.hold(req.RequestID)
		}
		inflight.Add(1)
		go func() {
			defer inflight.Done()
			sess.Respond(s.handler(ctx, sess, &req))
		}()
	}

	cancel()
	inflight.Wait()
}

func (s *Server) open(sess *Session) {
	s.sessions.Store(sess.ID, sess)
	n := s.active.Add(1)
	s.log.Debugf("session %d opened (%d active)", sess.ID, n)
	s.notify(int(n))
}

func (s *Server) close(sess *Session) {
	s.sessions.Delete(sess.ID)
	sess.Close()
	n := s.active.Add(-1)
	s.log.Debugf("session %d closed (%d active)", sess.ID, n)
	s.notify(int(n))
}

func (s *Server) notify(n int) {
	s.mu.Lock()
	fn := s.onSessions
	s.mu.Unlock()
	if fn != nil {
		fn(n)
	}
}
