// Package services holds one handler per core RPC service. Handlers turn
// untyped UI payloads into typed calls on the shared core connection and
// convert the answers back into the shapes the UI expects.
package services

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/lydakis/corehost/internal/pkg/log"
	"github.com/lydakis/corehost/internal/protoschema"
	"github.com/lydakis/corehost/internal/rpccodec"
	"github.com/lydakis/corehost/internal/rpcerr"
	"github.com/lydakis/corehost/internal/uisink"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/reflect/protoreflect"
)

// Handler serves the methods of one core service.
type Handler interface {
	// Bind points the handler at a (new) shared connection.
	Bind(cc grpc.ClientConnInterface)
	// Call runs method with payload. Subscription methods return an
	// acknowledgement and keep forwarding pushed items in the background.
	Call(ctx context.Context, method string, payload any, opts StreamOptions) (any, error)
}

// StreamOptions control how subscription items are delivered.
type StreamOptions struct {
	// RequestID tags items forwarded to the sink.
	RequestID string
	// Callback receives each item instead of the sink. Its errors are
	// logged and the stream keeps going.
	Callback func(item any) error
	// Sink overrides the handler's default sink for this subscription.
	Sink uisink.Sink
	// MaxMessages stops the subscription after that many items. Zero means
	// no limit.
	MaxMessages int
}

type binding struct {
	cc grpc.ClientConnInterface
}

// base is embedded by every handler.
type base struct {
	service   ServiceType
	namespace string
	timeout   time.Duration
	subs      *Registry
	sink      uisink.Sink
	log       log.Logger
	callOpts  []grpc.CallOption

	conn atomic.Pointer[binding]
}

func newBase(t ServiceType, o Options) base {
	b := base{
		service:   t,
		namespace: o.Namespace,
		timeout:   o.RequestTimeout,
		subs:      o.Registry,
		sink:      o.Sink,
		log:       log.Named(o.Logger, t.Name()),
	}
	if o.Codec == rpccodec.Name {
		b.callOpts = append(b.callOpts, rpccodec.CallOption())
	}
	return b
}

func (b *base) Bind(cc grpc.ClientConnInterface) {
	if cc == nil {
		b.conn.Store(nil)
		return
	}
	b.conn.Store(&binding{cc: cc})
}

func (b *base) client() (grpc.ClientConnInterface, error) {
	if cur := b.conn.Load(); cur != nil {
		return cur.cc, nil
	}
	return nil, rpcerr.New(rpcerr.Transport, b.service.Name(), "no %s connection available", b.service.Name())
}

func (b *base) path(method string) string {
	return "/" + b.service.FullName(b.namespace) + "/" + method
}

// method describes method's request and response messages.
func (b *base) method(name string) (protoreflect.MethodDescriptor, error) {
	md, err := protoschema.Method(protoschema.CorePackage+"."+b.service.Name(), name)
	if err != nil {
		return nil, rpcerr.Wrap(rpcerr.UnknownMethod, b.op(name), err)
	}
	return md, nil
}

func (b *base) op(method string) string {
	return b.service.Name() + "." + method
}

func (b *base) notImplemented(method string) map[string]any {
	b.log.Debugf("method not implemented: %s", method)
	return map[string]any{
		"success": true,
		"message": fmt.Sprintf("%s method %s not implemented yet", b.service.Name(), method),
	}
}

// unary invokes a unary RPC bounded by the handler's request timeout. req
// is encoded through its JSON form; the response is decoded into Resp the
// same way.
func unary[Resp any](ctx context.Context, b *base, method string, req any) (*Resp, error) {
	cc, err := b.client()
	if err != nil {
		return nil, err
	}
	md, err := b.method(method)
	if err != nil {
		return nil, err
	}
	in, err := protoschema.Encode(md.Input(), req)
	if err != nil {
		return nil, rpcerr.Wrap(rpcerr.Internal, b.op(method), err)
	}
	if b.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.timeout)
		defer cancel()
	}

	b.log.Debugf("calling %s", method)
	out := protoschema.New(md.Output())
	if err := cc.Invoke(ctx, b.path(method), in, out, b.callOpts...); err != nil {
		return nil, rpcerr.Wrap(rpcerr.KindOf(err), b.op(method), err)
	}
	resp := new(Resp)
	if err := protoschema.Decode(out, resp); err != nil {
		return nil, rpcerr.Wrap(rpcerr.Internal, b.op(method), err)
	}
	return resp, nil
}
