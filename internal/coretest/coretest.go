// Package coretest runs an in-memory stand-in for the core process so the
// client packages can be exercised over a real gRPC connection.
package coretest

import (
	"context"
	"net"
	"sync"

	"github.com/lydakis/corehost/internal/protoschema"
	_ "github.com/lydakis/corehost/internal/rpccodec"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/proto"
)

// Handler answers one call. req is the request in its proto JSON form; send
// encodes a map or struct the same way, or sends a proto.Message as is.
// Unary methods call send exactly once.
type Handler func(ctx context.Context, req any, send func(any) error) error

// Server routes every method through Handle registrations.
type Server struct {
	Health *health.Server

	lis *bufconn.Listener
	srv *grpc.Server

	mu       sync.Mutex
	handlers map[string]Handler
	calls    map[string]int
}

// New starts a server on an in-memory listener.
func New() *Server {
	s := &Server{
		Health:   health.NewServer(),
		lis:      bufconn.Listen(1 << 20),
		handlers: make(map[string]Handler),
		calls:    make(map[string]int),
	}
	s.srv = grpc.NewServer(grpc.UnknownServiceHandler(s.route))
	healthpb.RegisterHealthServer(s.srv, s.Health)
	go s.srv.Serve(s.lis) //nolint:errcheck
	return s
}

// Handle registers h for a full method name such as
// "/cline.StateService/getLatestState".
func (s *Server) Handle(fullMethod string, h Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[fullMethod] = h
}

// Reply makes fullMethod answer v.
func (s *Server) Reply(fullMethod string, v any) {
	s.Handle(fullMethod, func(ctx context.Context, req any, send func(any) error) error {
		return send(v)
	})
}

// Fail makes fullMethod return an error with code.
func (s *Server) Fail(fullMethod string, code codes.Code, msg string) {
	s.Handle(fullMethod, func(ctx context.Context, req any, send func(any) error) error {
		return status.Error(code, msg)
	})
}

// Push makes fullMethod stream items in order and then end.
func (s *Server) Push(fullMethod string, items ...any) {
	s.Handle(fullMethod, func(ctx context.Context, req any, send func(any) error) error {
		for _, it := range items {
			if err := send(it); err != nil {
				return err
			}
		}
		return nil
	})
}

// Calls reports how many times fullMethod was invoked.
func (s *Server) Calls(fullMethod string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[fullMethod]
}

func (s *Server) route(_ any, stream grpc.ServerStream) error {
	method, ok := grpc.MethodFromServerStream(stream)
	if !ok {
		return status.Error(codes.Internal, "no method in stream")
	}

	s.mu.Lock()
	h, found := s.handlers[method]
	s.calls[method]++
	s.mu.Unlock()
	if !found {
		return status.Errorf(codes.Unimplemented, "method %s not implemented", method)
	}

	md, err := protoschema.MethodByPath(method)
	if err != nil {
		return status.Errorf(codes.Unimplemented, "method %s has no schema", method)
	}
	in := protoschema.New(md.Input())
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	var req map[string]any
	if err := protoschema.Decode(in, &req); err != nil {
		return status.Error(codes.InvalidArgument, err.Error())
	}
	send := func(v any) error {
		if m, ok := v.(proto.Message); ok {
			return stream.SendMsg(m)
		}
		out, err := protoschema.Encode(md.Output(), v)
		if err != nil {
			return status.Error(codes.Internal, err.Error())
		}
		return stream.SendMsg(out)
	}
	return h(stream.Context(), req, send)
}

// Dialer connects to the in-memory listener.
func (s *Server) Dialer() func(ctx context.Context, addr string) (net.Conn, error) {
	return func(ctx context.Context, _ string) (net.Conn, error) {
		return s.lis.DialContext(ctx)
	}
}

// DialOptions returns the options needed to reach the server.
func (s *Server) DialOptions() []grpc.DialOption {
	return []grpc.DialOption{
		grpc.WithContextDialer(s.Dialer()),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	}
}

// Dial opens a client connection to the server.
func (s *Server) Dial() (*grpc.ClientConn, error) {
	return grpc.NewClient("passthrough:///coretest", s.DialOptions()...)
}

// Close stops the server and its listener.
func (s *Server) Close() {
	s.Health.Shutdown()
	s.srv.Stop()
	_ = s.lis.Close()
}
