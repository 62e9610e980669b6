package dispatch

import (
	"context"
	"fmt"

	"github.com/lydakis/corehost/internal/ipc"
	"github.com/lydakis/corehost/internal/services"
	"github.com/lydakis/corehost/internal/uisink"
)

// HandleRequest serves one socket request and wraps the outcome in a
// grpc_response envelope. Streaming requests deliver their items to sink;
// others fall back to the handlers' shared sink.
func (d *Dispatcher) HandleRequest(ctx context.Context, req *ipc.Request, sink uisink.Sink) uisink.Response {
	switch req.Kind() {
	case ipc.TypeGRPCRequest:
		if req.Service == "" || req.Method == "" {
			return uisink.Failed(req.RequestID, fmt.Errorf("request needs service and method"))
		}
		opts := services.StreamOptions{RequestID: req.RequestID, MaxMessages: req.MaxMessages}
		if req.Streaming {
			opts.Sink = sink
		}
		result, err := d.Handle(ctx, req.Service, req.Method, req.Message, opts)
		if err != nil {
			d.log.Debugf("request %s (%s.%s) failed: %v", req.RequestID, req.Service, req.Method, err)
			return uisink.Failed(req.RequestID, err)
		}
		return uisink.OK(req.RequestID, result, false)

	case ipc.TypeUnsubscribe:
		if err := d.Unsubscribe(req.SubscriptionID); err != nil {
			return uisink.Failed(req.RequestID, err)
		}
		return uisink.OK(req.RequestID, map[string]any{"unsubscribed": true, "subscription_id": req.SubscriptionID}, false)

	case ipc.TypeStats:
		return uisink.OK(req.RequestID, d.Stats(), false)

	case ipc.TypeClearCache:
		d.ClearCache()
		return uisink.OK(req.RequestID, map[string]any{"success": true}, false)

	case ipc.TypeResetStats:
		d.ResetStats()
		return uisink.OK(req.RequestID, map[string]any{"success": true}, false)

	case ipc.TypeResetConnection:
		if err := d.ResetConnection(ctx); err != nil {
			return uisink.Failed(req.RequestID, err)
		}
		return uisink.OK(req.RequestID, map[string]any{"success": true}, false)

	default:
		return uisink.Failed(req.RequestID, fmt.Errorf("unknown request type: %s", req.Kind()))
	}
}
