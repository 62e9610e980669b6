package services

import (
	"context"
	"errors"
	"io"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go4org/hashtriemap"
	"github.com/google/uuid"
	"github.com/lydakis/corehost/internal/pkg/log"
	"github.com/lydakis/corehost/internal/protoschema"
	"github.com/lydakis/corehost/internal/rpcerr"
	"github.com/lydakis/corehost/internal/uisink"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/reflect/protoreflect"
)

// SubscriptionState tracks a subscription through its life.
type SubscriptionState int32

const (
	Connecting SubscriptionState = iota
	Active
	Ended
	Failed
)

func (s SubscriptionState) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Active:
		return "active"
	case Ended:
		return "ended"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Subscription is one open server-push stream.
type Subscription struct {
	ID        string
	Service   string
	Method    string
	RequestID string
	Started   time.Time

	state     atomic.Int32
	delivered atomic.Uint64
	cancel    context.CancelFunc
	done      chan struct{}
}

// State returns the current lifecycle state.
func (s *Subscription) State() SubscriptionState {
	return SubscriptionState(s.state.Load())
}

// Delivered counts the items forwarded so far.
func (s *Subscription) Delivered() uint64 {
	return s.delivered.Load()
}

// Done is closed once the forwarding goroutine has exited.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// Cancel stops forwarding. It does not wait for the goroutine to exit.
func (s *Subscription) Cancel() {
	s.cancel()
}

// SubscriptionInfo is the reportable view of a Subscription.
type SubscriptionInfo struct {
	ID        string    `json:"id"`
	Service   string    `json:"service"`
	Method    string    `json:"method"`
	RequestID string    `json:"request_id,omitempty"`
	State     string    `json:"state"`
	Delivered uint64    `json:"delivered"`
	Started   time.Time `json:"started"`
}

// Registry owns every live subscription so that shutdown can cancel them
// and wait for their goroutines.
type Registry struct {
	ctx    context.Context
	cancel context.CancelFunc
	log    log.Logger

	subs hashtriemap.HashTrieMap[string, *Subscription]

	mu     sync.Mutex
	closed bool
	active int
	idle   chan struct{}
}

// NewRegistry creates an empty registry.
func NewRegistry(l log.Logger) *Registry {
	ctx, cancel := context.WithCancel(context.Background())
	idle := make(chan struct{})
	close(idle)
	return &Registry{
		ctx:    ctx,
		cancel: cancel,
		log:    log.Named(l, "subscriptions"),
		idle:   idle,
	}
}

func (r *Registry) begin(service, method, requestID string) (*Subscription, context.Context, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, nil, rpcerr.New(rpcerr.Stream, "subscribe", "subscriptions are shut down")
	}

	ctx, cancel := context.WithCancel(r.ctx)
	sub := &Subscription{
		ID:        uuid.NewString(),
		Service:   service,
		Method:    method,
		RequestID: requestID,
		Started:   time.Now(),
		cancel:    cancel,
		done:      make(chan struct{}),
	}
	r.subs.Store(sub.ID, sub)
	if r.active == 0 {
		r.idle = make(chan struct{})
	}
	r.active++
	return sub, ctx, nil
}

func (r *Registry) finish(sub *Subscription, state SubscriptionState) {
	sub.state.Store(int32(state))
	sub.cancel()
	r.subs.Delete(sub.ID)
	close(sub.done)

	r.mu.Lock()
	r.active--
	if r.active == 0 {
		close(r.idle)
	}
	r.mu.Unlock()
}

// Lookup returns a live subscription.
func (r *Registry) Lookup(id string) (*Subscription, bool) {
	return r.subs.Load(id)
}

// Cancel stops the subscription with id and reports whether it existed.
func (r *Registry) Cancel(id string) bool {
	sub, ok := r.subs.Load(id)
	if !ok {
		return false
	}
	sub.Cancel()
	return true
}

// List reports live subscriptions, oldest first.
func (r *Registry) List() []SubscriptionInfo {
	var out []SubscriptionInfo
	r.subs.Range(func(_ string, s *Subscription) bool {
		out = append(out, SubscriptionInfo{
			ID:        s.ID,
			Service:   s.Service,
			Method:    s.Method,
			RequestID: s.RequestID,
			State:     s.State().String(),
			Delivered: s.Delivered(),
			Started:   s.Started,
		})
		return true
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Started.Before(out[j].Started) })
	return out
}

// Len returns the number of subscriptions whose goroutine is still running.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active
}

// Wait blocks until no subscription is running or ctx is done.
func (r *Registry) Wait(ctx context.Context) error {
	r.mu.Lock()
	idle := r.idle
	r.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Shutdown cancels every subscription, refuses new ones and waits for the
// forwarding goroutines to exit.
func (r *Registry) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()

	r.cancel()
	return r.Wait(ctx)
}

// subscribe opens a server stream for method and forwards every item in a
// registry-owned goroutine. Establishment is bounded by the request timeout
// and by ctx; forwarding is not.
func subscribe[Item any](ctx context.Context, b *base, method string, req any, convert func(*Item) any, opts StreamOptions) (any, error) {
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
	if b.subs == nil {
		return nil, rpcerr.New(rpcerr.Internal, b.op(method), "no subscription registry")
	}

	service := b.service.FullName(b.namespace)
	sub, streamCtx, err := b.subs.begin(service, method, opts.RequestID)
	if err != nil {
		return nil, err
	}

	var timer *time.Timer
	if b.timeout > 0 {
		timer = time.AfterFunc(b.timeout, sub.cancel)
	}
	stopCallerWatch := context.AfterFunc(ctx, sub.cancel)

	stream, err := cc.NewStream(streamCtx, &grpc.StreamDesc{StreamName: method, ServerStreams: true}, b.path(method), b.callOpts...)
	if err == nil {
		err = stream.SendMsg(in)
	}
	if err == nil {
		err = stream.CloseSend()
	}

	timedOut := timer != nil && !timer.Stop()
	callerGone := !stopCallerWatch()
	if err != nil || timedOut || callerGone {
		b.subs.finish(sub, Failed)
		kind := rpcerr.KindOf(err)
		switch {
		case timedOut:
			kind = rpcerr.Timeout
			if err == nil {
				err = context.DeadlineExceeded
			}
		case err == nil:
			err = ctx.Err()
		}
		return nil, rpcerr.Wrap(kind, b.op(method), err)
	}

	sub.state.Store(int32(Active))
	sink := opts.Sink
	if sink == nil {
		sink = b.sink
	}
	go func() {
		state := forward(streamCtx, b, sub, stream, md.Output(), convert, opts, sink)
		b.subs.finish(sub, state)
	}()

	b.log.Debugf("subscription %s open for %s", sub.ID, method)
	return map[string]any{
		"subscribed":      true,
		"subscription_id": sub.ID,
		"service":         service,
		"method":          method,
	}, nil
}

func forward[Item any](ctx context.Context, b *base, sub *Subscription, stream grpc.ClientStream, out protoreflect.MessageDescriptor, convert func(*Item) any, opts StreamOptions, sink uisink.Sink) SubscriptionState {
	for {
		m := protoschema.New(out)
		if err := stream.RecvMsg(m); err != nil {
			switch {
			case errors.Is(err, io.EOF):
				b.log.Debugf("subscription %s ended after %d items", sub.ID, sub.Delivered())
				return Ended
			case ctx.Err() != nil:
				b.log.Debugf("subscription %s cancelled after %d items", sub.ID, sub.Delivered())
				return Ended
			default:
				b.log.Warnf("subscription %s (%s) stream error: %v", sub.ID, sub.Method, err)
				return Failed
			}
		}

		item := new(Item)
		if err := protoschema.Decode(m, item); err != nil {
			b.log.Warnf("subscription %s (%s) bad item: %v", sub.ID, sub.Method, err)
			return Failed
		}
		value := convert(item)
		n := sub.delivered.Add(1)
		switch {
		case opts.Callback != nil:
			if err := opts.Callback(value); err != nil {
				b.log.Warnf("subscription %s callback error: %v", sub.ID, err)
			}
		case sink != nil:
			sink.Respond(uisink.OK(opts.RequestID, value, true))
		}

		if opts.MaxMessages > 0 && n >= uint64(opts.MaxMessages) {
			b.log.Debugf("subscription %s reached %d messages", sub.ID, n)
			return Ended
		}
	}
}
