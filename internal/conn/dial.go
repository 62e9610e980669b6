package conn

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/lydakis/corehost/internal/rpcerr"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/connectivity"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
)

// Conn is a client connection the manager can hand out and later close.
type Conn interface {
	grpc.ClientConnInterface
	Close() error
}

// DialFunc opens a connection to endpoint that is ready for use within
// timeout.
type DialFunc func(ctx context.Context, endpoint string, timeout time.Duration) (Conn, error)

// ProbeFunc checks that an established connection still reaches the core.
type ProbeFunc func(ctx context.Context, cc grpc.ClientConnInterface) error

// stateful is implemented by *grpc.ClientConn.
type stateful interface {
	GetState() connectivity.State
}

// GRPCDialer dials with grpc.NewClient over plaintext loopback. extra is
// appended to the default options.
func GRPCDialer(extra ...grpc.DialOption) DialFunc {
	return func(ctx context.Context, endpoint string, timeout time.Duration) (Conn, error) {
		opts := append([]grpc.DialOption{
			grpc.WithTransportCredentials(insecure.NewCredentials()),
		}, extra...)
		cc, err := grpc.NewClient(target(endpoint), opts...)
		if err != nil {
			return nil, rpcerr.Wrap(rpcerr.Transport, "dial", err)
		}
		cc.Connect()
		if err := waitReady(ctx, cc, timeout); err != nil {
			_ = cc.Close()
			return nil, err
		}
		return cc, nil
	}
}

// target turns a bare host:port into a passthrough target so the address
// is dialed as given.
func target(endpoint string) string {
	if strings.Contains(endpoint, "://") {
		return endpoint
	}
	return "passthrough:///" + endpoint
}

func waitReady(ctx context.Context, cc *grpc.ClientConn, timeout time.Duration) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	for {
		state := cc.GetState()
		switch state {
		case connectivity.Ready:
			return nil
		case connectivity.Idle:
			cc.Connect()
		case connectivity.Shutdown:
			return rpcerr.New(rpcerr.Transport, "dial", "connection shut down")
		}
		if !cc.WaitForStateChange(ctx, state) {
			if state == connectivity.TransientFailure {
				return rpcerr.New(rpcerr.Transport, "dial", "core unreachable: %v", ctx.Err())
			}
			return rpcerr.Wrap(rpcerr.Timeout, "dial", fmt.Errorf("core not ready (state %s): %w", state, ctx.Err()))
		}
	}
}

// HealthProbe calls the standard gRPC health service. A core that does not
// serve health checks counts as alive.
func HealthProbe(ctx context.Context, cc grpc.ClientConnInterface) error {
	if s, ok := cc.(stateful); ok {
		switch st := s.GetState(); st {
		case connectivity.TransientFailure, connectivity.Shutdown:
			return rpcerr.New(rpcerr.Transport, "health", "channel is %s", st)
		}
	}

	resp, err := healthpb.NewHealthClient(cc).Check(ctx, &healthpb.HealthCheckRequest{})
	switch status.Code(err) {
	case codes.OK:
	case codes.Unimplemented:
		return nil
	default:
		return rpcerr.Wrap(rpcerr.KindOf(err), "health", err)
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		return rpcerr.New(rpcerr.Transport, "health", "core reports %s", resp.GetStatus())
	}
	return nil
}
