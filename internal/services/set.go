package services

import (
	"time"

	"github.com/lydakis/corehost/internal/pkg/log"
	"github.com/lydakis/corehost/internal/rpcerr"
	"github.com/lydakis/corehost/internal/uisink"
	"google.golang.org/grpc"
)

// Options configure every handler in a Set.
type Options struct {
	Namespace      string
	RequestTimeout time.Duration
	// Codec selects the content-subtype of core calls. Empty or "proto"
	// uses the standard protobuf codec; "json" uses rpccodec.
	Codec string
	// Sink receives subscription items when a call sets neither a callback
	// nor its own sink. Nil drains such streams.
	Sink     uisink.Sink
	Logger   log.Logger
	Registry *Registry
}

// Set holds one handler per implemented service.
type Set struct {
	State   *StateHandler
	UI      *UIHandler
	MCP     *MCPHandler
	Models  *ModelsHandler
	Account *AccountHandler

	registry *Registry
}

// NewSet builds the handlers. A nil Registry gets a fresh one.
func NewSet(o Options) *Set {
	if o.Logger == nil {
		o.Logger = log.Nop()
	}
	if o.Registry == nil {
		o.Registry = NewRegistry(o.Logger)
	}
	return &Set{
		State:    &StateHandler{base: newBase(State, o)},
		UI:       &UIHandler{base: newBase(UI, o)},
		MCP:      &MCPHandler{base: newBase(MCP, o)},
		Models:   &ModelsHandler{base: newBase(Models, o), now: time.Now},
		Account:  &AccountHandler{base: newBase(Account, o), now: time.Now},
		registry: o.Registry,
	}
}

// Handler returns the handler for t. Services the host has no handler for
// fail with NotImplemented.
func (s *Set) Handler(t ServiceType) (Handler, error) {
	switch t {
	case State:
		return s.State, nil
	case UI:
		return s.UI, nil
	case MCP:
		return s.MCP, nil
	case Models:
		return s.Models, nil
	case Account:
		return s.Account, nil
	case File, Task, Browser, Commands, Checkpoints, Slash, Web:
		return nil, rpcerr.New(rpcerr.NotImplemented, "services", "%s is not available on this host", t.Name())
	default:
		return nil, rpcerr.New(rpcerr.UnknownService, "services", "unknown service %d", int(t))
	}
}

// Bind rebinds every handler to cc.
func (s *Set) Bind(cc grpc.ClientConnInterface) {
	s.State.Bind(cc)
	s.UI.Bind(cc)
	s.MCP.Bind(cc)
	s.Models.Bind(cc)
	s.Account.Bind(cc)
}

// Registry returns the subscription registry shared by the handlers.
func (s *Set) Registry() *Registry {
	return s.registry
}
