// Package hostbridge serves the gRPC services the core process calls to
// reach the desktop host: dialogs, editor tabs, workspace, clipboard and
// diff views. Anything the UI has to do is raised as a host event.
package hostbridge

import (
	"context"
	"fmt"
	"net"
	"os"
	"sync"
	"time"

	"github.com/go4org/hashtriemap"
	"github.com/lydakis/corehost/internal/config"
	"github.com/lydakis/corehost/internal/pkg/log"
	_ "github.com/lydakis/corehost/internal/rpccodec"
	"github.com/lydakis/corehost/internal/uisink"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

const (
	// Namespace prefixes every host service name.
	Namespace = "host"

	defaultHostVersion = "1.0.0"
	platform           = "corehost"
	stopGrace          = 5 * time.Second
)

// Options configure a Server.
type Options struct {
	Settings config.HostBridge
	Sink     uisink.Sink
	Logger   log.Logger
}

// Server is the host bridge. Zero or more cores may call it concurrently.
type Server struct {
	settings  config.HostBridge
	sink      uisink.Sink
	log       log.Logger
	machineID string

	srv    *grpc.Server
	health *health.Server

	mu        sync.Mutex
	lis       net.Listener
	clipboard string

	pending hashtriemap.HashTrieMap[string, chan any]
	diffs   hashtriemap.HashTrieMap[string, *diffDocument]
}

// New builds the server and registers every host service.
func New(o Options) *Server {
	s := &Server{
		settings:  o.Settings,
		sink:      o.Sink,
		log:       log.Named(o.Logger, "hostbridge"),
		machineID: machineID(),
		health:    health.NewServer(),
	}
	if s.sink == nil {
		s.sink = uisink.Discard
	}
	if s.settings.HostVersion == "" {
		s.settings.HostVersion = defaultHostVersion
	}

	s.srv = grpc.NewServer(grpc.ChainUnaryInterceptor(s.logUnary))
	healthpb.RegisterHealthServer(s.srv, s.health)
	for _, desc := range serviceDescs() {
		s.srv.RegisterService(desc, s)
		s.health.SetServingStatus(desc.ServiceName, healthpb.HealthCheckResponse_SERVING)
	}
	return s
}

func machineID() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "unknown"
	}
	return "corehost-" + host
}

// Start listens on the configured address and serves in the background.
func (s *Server) Start() error {
	lis, err := net.Listen("tcp", s.settings.Listen)
	if err != nil {
		return fmt.Errorf("host bridge listen on %s: %w", s.settings.Listen, err)
	}
	go func() {
		if err := s.Serve(lis); err != nil {
			s.log.Errorf("host bridge stopped: %v", err)
		}
	}()
	return nil
}

// Serve accepts connections on lis until Stop.
func (s *Server) Serve(lis net.Listener) error {
	s.mu.Lock()
	s.lis = lis
	s.mu.Unlock()
	s.log.Infof("host bridge listening on %s", lis.Addr())
	return s.srv.Serve(lis)
}

// Addr returns the listening address, or nil before Serve.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lis == nil {
		return nil
	}
	return s.lis.Addr()
}

// Stop marks every service NOT_SERVING, lets in-flight calls finish within
// a grace period and closes the listener.
func (s *Server) Stop() {
	s.health.Shutdown()
	done := make(chan struct{})
	go func() {
		s.srv.GracefulStop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(stopGrace):
		s.srv.Stop()
	}
}

// Close is Stop in io.Closer form.
func (s *Server) Close() error {
	s.Stop()
	return nil
}

func (s *Server) logUnary(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	start := time.Now()
	resp, err := handler(ctx, req)
	if err != nil {
		s.log.Warnf("%s failed after %s: %v", info.FullMethod, time.Since(start), err)
		return nil, err
	}
	s.log.Debugf("%s served in %s", info.FullMethod, time.Since(start))
	return resp, nil
}

func (s *Server) emit(name, id string, payload any) {
	s.sink.Emit(uisink.NewEvent(name, id, payload))
}
