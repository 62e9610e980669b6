package ipc

// Request types accepted on the UI socket.
const (
	TypeGRPCRequest     = "grpc_request"
	TypeUnsubscribe     = "unsubscribe"
	TypeHostReply       = "host_reply"
	TypeStats           = "stats"
	TypeClearCache      = "clear_cache"
	TypeResetStats      = "reset_stats"
	TypeResetConnection = "reset_connection"
	TypeShutdown        = "shutdown"
)

// Request is one newline-delimited JSON message from the UI or the CLI.
// A session may send many requests and receives responses out of order.
type Request struct {
	Nonce     string `json:"nonce"`
	Type      string `json:"type,omitempty"`
	Service   string `json:"service,omitempty"`
	Method    string `json:"method,omitempty"`
	Message   any    `json:"message,omitempty"`
	Streaming bool   `json:"streaming,omitempty"`
	RequestID string `json:"request_id,omitempty"`
	// SubscriptionID names the subscription to cancel for "unsubscribe".
	SubscriptionID string `json:"subscription_id,omitempty"`
	// MaxMessages bounds a subscription opened by this request.
	MaxMessages int `json:"max_messages,omitempty"`
}

// Kind returns Type, defaulting to grpc_request.
func (r *Request) Kind() string {
	if r.Type == "" {
		return TypeGRPCRequest
	}
	return r.Type
}

// Frame is anything the daemon writes back: a grpc_response or a
// host_event. Clients decode every line into a Frame.
type Frame struct {
	Type        string  `json:"type"`
	RequestID   string  `json:"request_id,omitempty"`
	Message     any     `json:"message,omitempty"`
	Error       *string `json:"error,omitempty"`
	IsStreaming bool    `json:"is_streaming,omitempty"`
	Event       string  `json:"event,omitempty"`
	ID          string  `json:"id,omitempty"`
	Payload     any     `json:"payload,omitempty"`
}
