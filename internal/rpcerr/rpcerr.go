// Package rpcerr classifies failures seen while talking to the core process.
package rpcerr

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Kind is the coarse category of a failure.
type Kind int

const (
	Internal Kind = iota
	Transport
	Timeout
	UnknownService
	UnknownMethod
	NotImplemented
	Stream
	Capacity
)

func (k Kind) String() string {
	switch k {
	case Transport:
		return "transport"
	case Timeout:
		return "timeout"
	case UnknownService:
		return "unknown_service"
	case UnknownMethod:
		return "unknown_method"
	case NotImplemented:
		return "not_implemented"
	case Stream:
		return "stream"
	case Capacity:
		return "capacity"
	default:
		return "internal"
	}
}

// Error carries a Kind alongside the failing operation.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Op != "" && e.Err != nil:
		return e.Op + ": " + e.Err.Error()
	case e.Err != nil:
		return e.Err.Error()
	case e.Op != "":
		return e.Op + ": " + e.Kind.String()
	default:
		return e.Kind.String()
	}
}

func (e *Error) Unwrap() error { return e.Err }

// New returns an *Error with a formatted message.
func New(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// Wrap attaches kind and op to err. A nil err stays nil.
func Wrap(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf reports the Kind of err. Untyped errors are mapped from their gRPC
// status code when they carry one.
func KindOf(err error) Kind {
	if err == nil {
		return Internal
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return Timeout
	}
	if st, ok := status.FromError(err); ok {
		return kindFromCode(st.Code())
	}
	return Internal
}

func kindFromCode(c codes.Code) Kind {
	switch c {
	case codes.Unavailable, codes.Aborted:
		return Transport
	case codes.DeadlineExceeded:
		return Timeout
	case codes.Unimplemented:
		return UnknownMethod
	case codes.ResourceExhausted:
		return Capacity
	default:
		return Internal
	}
}

var connectionMarkers = []string{"connection", "timeout", "unavailable", "refused", "broken pipe"}

// IsConnection reports whether err indicates a broken or unreachable
// transport. Typed errors decide by kind; untyped ones fall back to message
// matching.
func IsConnection(err error) bool {
	if err == nil {
		return false
	}
	var e *Error
	if errors.As(err, &e) {
		switch e.Kind {
		case Transport, Timeout:
			return true
		case Internal:
			return IsConnection(e.Err)
		default:
			return false
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if st, ok := status.FromError(err); ok && st.Code() != codes.Unknown {
		switch kindFromCode(st.Code()) {
		case Transport, Timeout:
			return true
		}
		return false
	}

	msg := strings.ToLower(err.Error())
	for _, marker := range connectionMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
