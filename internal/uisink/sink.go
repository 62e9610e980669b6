// Package uisink defines the messages the daemon pushes to the UI surface.
package uisink

// Message types on the UI channel.
const (
	TypeResponse  = "grpc_response"
	TypeHostEvent = "host_event"
)

// Response answers a UI request. Streaming items reuse the originating
// request id with IsStreaming set.
type Response struct {
	Type        string  `json:"type"`
	RequestID   string  `json:"request_id"`
	Message     any     `json:"message"`
	Error       *string `json:"error"`
	IsStreaming bool    `json:"is_streaming"`
}

// Event is a named notification raised by the host bridge.
type Event struct {
	Type    string `json:"type"`
	Name    string `json:"event"`
	ID      string `json:"id,omitempty"`
	Payload any    `json:"payload,omitempty"`
}

// Sink receives everything the daemon sends to the UI. Implementations must
// be safe for concurrent use and must not block for long.
type Sink interface {
	Respond(Response)
	Emit(Event)
}

// OK builds a successful response.
func OK(requestID string, message any, streaming bool) Response {
	return Response{Type: TypeResponse, RequestID: requestID, Message: message, IsStreaming: streaming}
}

// Failed builds an error response carrying err's text.
func Failed(requestID string, err error) Response {
	msg := err.Error()
	return Response{Type: TypeResponse, RequestID: requestID, Error: &msg}
}

// NewEvent builds a host event.
func NewEvent(name, id string, payload any) Event {
	return Event{Type: TypeHostEvent, Name: name, ID: id, Payload: payload}
}

// Funcs adapts plain functions to Sink. Nil fields drop the message.
type Funcs struct {
	OnRespond func(Response)
	OnEmit    func(Event)
}

func (f Funcs) Respond(r Response) {
	if f.OnRespond != nil {
		f.OnRespond(r)
	}
}

func (f Funcs) Emit(e Event) {
	if f.OnEmit != nil {
		f.OnEmit(e)
	}
}

// Discard drops every message.
var Discard Sink = Funcs{}
