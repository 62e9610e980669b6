package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/lydakis/corehost/internal/coretest"
	"github.com/lydakis/corehost/internal/rpcerr"
	"github.com/lydakis/corehost/internal/uisink"
	"google.golang.org/grpc/codes"
)

const (
	latestStatePath  = "/cline.StateService/getLatestState"
	subscribeState   = "/cline.StateService/subscribeToState"
	partialMsgPath   = "/cline.UiService/subscribeToPartialMessage"
	latestMcpPath    = "/cline.McpService/getLatestMcpServers"
	subscribeMcpPath = "/cline.McpService/subscribeToMcpServers"
)

func newTestSet(t *testing.T, core *coretest.Server, opts Options) *Set {
	t.Helper()
	cc, err := core.Dial()
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	t.Cleanup(func() { _ = cc.Close() })

	if opts.Namespace == "" {
		opts.Namespace = "cline"
	}
	if opts.RequestTimeout == 0 {
		opts.RequestTimeout = 2 * time.Second
	}
	set := NewSet(opts)
	set.Bind(cc)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = set.Registry().Shutdown(ctx)
	})
	return set
}

func startCore(t *testing.T) *coretest.Server {
	t.Helper()
	core := coretest.New()
	t.Cleanup(core.Close)
	return core
}

func waitIdle(t *testing.T, r *Registry) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := r.Wait(ctx); err != nil {
		t.Fatalf("subscriptions still running: %v", err)
	}
}

func TestParseServiceType(t *testing.T) {
	tests := []struct {
		in     string
		want   ServiceType
		wantOK bool
	}{
		{in: "cline.StateService", want: State, wantOK: true},
		{in: "stateService", want: State, wantOK: true},
		{in: "UiService", want: UI, wantOK: true},
		{in: "mcpService", want: MCP, wantOK: true},
		{in: "cline.CheckpointsService", want: Checkpoints, wantOK: true},
		{in: "nonexistentService", wantOK: false},
		{in: "", wantOK: false},
		{in: "evil.StateService", wantOK: false},
		{in: ".StateService", wantOK: false},
		{in: "STATESERVICE", wantOK: false},
		{in: "stateservice", wantOK: false},
		{in: "cline.stateService", want: State, wantOK: true},
	}
	for _, tt := range tests {
		got, ok := ParseServiceType("cline", tt.in)
		if ok != tt.wantOK || (ok && got != tt.want) {
			t.Fatalf("ParseServiceType(%q) = %v, %v, want %v, %v", tt.in, got, ok, tt.want, tt.wantOK)
		}
	}
	if got := State.FullName("cline"); got != "cline.StateService" {
		t.Fatalf("FullName() = %q", got)
	}
}

func TestGetLatestStateParsesStateJSON(t *testing.T) {
	core := startCore(t)
	core.Reply(latestStatePath, map[string]any{"stateJson": `{"mode":"act","tasks":[1,2]}`})
	set := newTestSet(t, core, Options{})

	got, err := set.State.Call(context.Background(), "getLatestState", map[string]any{}, StreamOptions{})
	if err != nil {
		t.Fatalf("Call() error = %v", err)
	}
	want := map[string]any{"mode": "act", "tasks": []any{float64(1), float64(2)}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("state mismatch (-want +got):\n%s", diff)
	}
}

func TestGetLatestStateFallsBackToRawString(t *testing.T) {
	core := startCore(t)
	core.Reply(latestStatePath, map[string]any{"stateJson": "not json"})
	set := newTestSet(t, core, Options{})

	got, err := set.State.Call(context.Background(), "getLatestState", nil, StreamOptions{})
	if err != nil {
		t.Fatalf("Call() error = %v", err)
	}
	if diff := cmp.Diff(map[string]any{"state_json": "not json"}, got); diff != "" {
		t.Fatalf("state mismatch (-want +got):\n%s", diff)
	}
}

func TestJSONCodecReachesCore(t *testing.T) {
	core := startCore(t)
	core.Reply(latestStatePath, map[string]any{"stateJson": `{"mode":"plan"}`})
	set := newTestSet(t, core, Options{Codec: "json"})

	got, err := set.State.Call(context.Background(), "getLatestState", nil, StreamOptions{})
	if err != nil {
		t.Fatalf("Call() error = %v", err)
	}
	if diff := cmp.Diff(map[string]any{"mode": "plan"}, got); diff != "" {
		t.Fatalf("state mismatch (-want +got):\n%s", diff)
	}
}

func TestUnknownMethodIsSoftNoOp(t *testing.T) {
	core := startCore(t)
	set := newTestSet(t, core, Options{})

	got, err := set.MCP.Call(context.Background(), "toggleMcpServer", nil, StreamOptions{})
	if err != nil {
		t.Fatalf("Call() error = %v", err)
	}
	want := map[string]any{"success": true, "message": "McpService method toggleMcpServer not implemented yet"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("response mismatch (-want +got):\n%s", diff)
	}
	if n := core.Calls("/cline.McpService/toggleMcpServer"); n != 0 {
		t.Fatalf("core calls = %d, want 0", n)
	}
}

func TestUnboundHandlerFailsWithTransportError(t *testing.T) {
	set := NewSet(Options{Namespace: "cline"})
	_, err := set.State.Call(context.Background(), "getLatestState", nil, StreamOptions{})
	if rpcerr.KindOf(err) != rpcerr.Transport {
		t.Fatalf("KindOf(%v) = %v, want transport", err, rpcerr.KindOf(err))
	}
}

func TestCoreErrorKeepsStatusKind(t *testing.T) {
	core := startCore(t)
	core.Fail(latestStatePath, codes.Unavailable, "core restarting")
	set := newTestSet(t, core, Options{})

	_, err := set.State.Call(context.Background(), "getLatestState", nil, StreamOptions{})
	if !rpcerr.IsConnection(err) {
		t.Fatalf("IsConnection(%v) = false, want true", err)
	}
}

func TestSubscriptionForwardsItemsInOrderThenEnds(t *testing.T) {
	core := startCore(t)
	core.Push(subscribeState,
		map[string]any{"stateJson": `{"n":1}`},
		map[string]any{"stateJson": `{"n":2}`},
		map[string]any{"stateJson": `{"n":3}`},
	)
	set := newTestSet(t, core, Options{})

	var (
		mu  sync.Mutex
		got []any
	)
	ack, err := set.State.Call(context.Background(), "subscribeToState", nil, StreamOptions{
		Callback: func(item any) error {
			mu.Lock()
			defer mu.Unlock()
			got = append(got, item)
			return nil
		},
	})
	if err != nil {
		t.Fatalf("Call() error = %v", err)
	}
	ackMap := ack.(map[string]any)
	if ackMap["subscribed"] != true || ackMap["subscription_id"] == "" {
		t.Fatalf("ack = %v, want subscribed with id", ack)
	}

	waitIdle(t, set.Registry())

	mu.Lock()
	defer mu.Unlock()
	want := []any{
		map[string]any{"n": float64(1)},
		map[string]any{"n": float64(2)},
		map[string]any{"n": float64(3)},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("forwarded items mismatch (-want +got):\n%s", diff)
	}
	if set.Registry().Len() != 0 {
		t.Fatalf("registry Len() = %d, want 0", set.Registry().Len())
	}
}

func TestSubscriptionCallbackErrorsDoNotStopStream(t *testing.T) {
	core := startCore(t)
	core.Push(subscribeMcpPath,
		map[string]any{"mcpServers": []any{}},
		map[string]any{"mcpServers": []any{}},
	)
	set := newTestSet(t, core, Options{})

	calls := 0
	_, err := set.MCP.Call(context.Background(), "subscribeToMcpServers", nil, StreamOptions{
		Callback: func(item any) error {
			calls++
			return errors.New("ui gone")
		},
	})
	if err != nil {
		t.Fatalf("Call() error = %v", err)
	}
	waitIdle(t, set.Registry())
	if calls != 2 {
		t.Fatalf("callback calls = %d, want 2", calls)
	}
}

func TestSubscriptionDeliversToSinkWithRequestID(t *testing.T) {
	core := startCore(t)
	core.Push(partialMsgPath, map[string]any{"ts": "1700000000000", "type": "SAY", "say": 3, "text": "hi", "partial": true})

	responses := make(chan uisink.Response, 4)
	sink := uisink.Funcs{OnRespond: func(r uisink.Response) { responses <- r }}
	set := newTestSet(t, core, Options{Sink: sink})

	if _, err := set.UI.Call(context.Background(), "subscribeToPartialMessage", nil, StreamOptions{RequestID: "req-7"}); err != nil {
		t.Fatalf("Call() error = %v", err)
	}
	waitIdle(t, set.Registry())

	select {
	case r := <-responses:
		if r.RequestID != "req-7" || !r.IsStreaming || r.Type != uisink.TypeResponse {
			t.Fatalf("response = %+v, want streaming req-7", r)
		}
		msg := r.Message.(map[string]any)
		if msg["ts"] != int64(1700000000000) || msg["type"] != int32(1) || msg["say"] != int32(3) || msg["text"] != "hi" {
			t.Fatalf("message = %v", msg)
		}
		if _, ok := msg["conversationHistoryIndex"]; !ok {
			t.Fatal("message missing conversationHistoryIndex")
		}
	default:
		t.Fatal("no response delivered to sink")
	}
}

func TestSubscriptionWithoutSinkIsDrained(t *testing.T) {
	core := startCore(t)
	core.Push(subscribeState, map[string]any{"stateJson": "{}"}, map[string]any{"stateJson": "{}"})
	set := newTestSet(t, core, Options{})

	ack, err := set.State.Call(context.Background(), "subscribeToState", nil, StreamOptions{})
	if err != nil {
		t.Fatalf("Call() error = %v", err)
	}
	id := ack.(map[string]any)["subscription_id"].(string)
	sub, ok := set.Registry().Lookup(id)
	waitIdle(t, set.Registry())
	if ok && sub.Delivered() != 2 {
		t.Fatalf("Delivered() = %d, want 2", sub.Delivered())
	}
}

func TestSubscriptionStopsAtMaxMessages(t *testing.T) {
	core := startCore(t)
	core.Handle(subscribeState, func(ctx context.Context, req any, send func(any) error) error {
		for i := 0; ; i++ {
			if err := send(map[string]any{"stateJson": "{}"}); err != nil {
				return err
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Millisecond):
			}
		}
	})
	set := newTestSet(t, core, Options{})

	calls := 0
	if _, err := set.State.Call(context.Background(), "subscribeToState", nil, StreamOptions{
		MaxMessages: 2,
		Callback:    func(any) error { calls++; return nil },
	}); err != nil {
		t.Fatalf("Call() error = %v", err)
	}
	waitIdle(t, set.Registry())
	if calls != 2 {
		t.Fatalf("callback calls = %d, want 2", calls)
	}
}

func TestRegistryShutdownCancelsOpenStreams(t *testing.T) {
	core := startCore(t)
	core.Handle(subscribeState, func(ctx context.Context, req any, send func(any) error) error {
		if err := send(map[string]any{"stateJson": "{}"}); err != nil {
			return err
		}
		<-ctx.Done()
		return ctx.Err()
	})
	set := newTestSet(t, core, Options{})

	ack, err := set.State.Call(context.Background(), "subscribeToState", nil, StreamOptions{})
	if err != nil {
		t.Fatalf("Call() error = %v", err)
	}
	id := ack.(map[string]any)["subscription_id"].(string)
	sub, ok := set.Registry().Lookup(id)
	if !ok {
		t.Fatal("subscription not registered")
	}
	if list := set.Registry().List(); len(list) != 1 || list[0].ID != id {
		t.Fatalf("List() = %+v, want the open subscription", list)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := set.Registry().Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}
	<-sub.Done()
	if sub.State() != Ended {
		t.Fatalf("State() = %v, want ended", sub.State())
	}

	_, err = set.State.Call(context.Background(), "subscribeToState", nil, StreamOptions{})
	if rpcerr.KindOf(err) != rpcerr.Stream {
		t.Fatalf("subscribe after shutdown error = %v, want stream kind", err)
	}
}

func TestRegistryCancelStopsOneSubscription(t *testing.T) {
	core := startCore(t)
	core.Handle(subscribeState, func(ctx context.Context, req any, send func(any) error) error {
		<-ctx.Done()
		return ctx.Err()
	})
	set := newTestSet(t, core, Options{})

	ack, err := set.State.Call(context.Background(), "subscribeToState", nil, StreamOptions{})
	if err != nil {
		t.Fatalf("Call() error = %v", err)
	}
	id := ack.(map[string]any)["subscription_id"].(string)
	if !set.Registry().Cancel(id) {
		t.Fatal("Cancel() = false, want true")
	}
	waitIdle(t, set.Registry())
	if set.Registry().Cancel(id) {
		t.Fatal("Cancel() after end = true, want false")
	}
}

func TestMcpServersUseSnakeCaseKeys(t *testing.T) {
	core := startCore(t)
	core.Reply(latestMcpPath, map[string]any{
		"mcpServers": []any{map[string]any{
			"name":    "github",
			"config":  "{}",
			"status":  "MCP_SERVER_STATUS_CONNECTED",
			"timeout": "60",
			"tools": []any{map[string]any{
				"name": "search", "description": "find", "inputSchema": "{}", "autoApprove": true,
			}},
			"resources":         []any{map[string]any{"uri": "file:///a", "name": "a", "mimeType": "text/plain"}},
			"resourceTemplates": []any{map[string]any{"uriTemplate": "file:///{p}", "name": "t"}},
		}},
	})
	set := newTestSet(t, core, Options{})

	got, err := set.MCP.Call(context.Background(), "getLatestMcpServers", nil, StreamOptions{})
	if err != nil {
		t.Fatalf("Call() error = %v", err)
	}
	want := map[string]any{"mcp_servers": []any{map[string]any{
		"name":     "github",
		"config":   "{}",
		"status":   int32(1),
		"error":    "",
		"disabled": false,
		"timeout":  int64(60),
		"tools": []any{map[string]any{
			"name": "search", "description": "find", "input_schema": "{}", "auto_approve": true,
		}},
		"resources": []any{map[string]any{
			"uri": "file:///a", "name": "a", "mime_type": "text/plain", "description": "",
		}},
		"resource_templates": []any{map[string]any{
			"uri_template": "file:///{p}", "name": "t", "mime_type": "", "description": "",
		}},
	}}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("servers mismatch (-want +got):\n%s", diff)
	}
}

func TestSetHandlerRejectsUnmappedServices(t *testing.T) {
	set := NewSet(Options{})
	for _, st := range []ServiceType{File, Task, Browser, Commands, Checkpoints, Slash, Web} {
		if _, err := set.Handler(st); rpcerr.KindOf(err) != rpcerr.NotImplemented {
			t.Fatalf("Handler(%v) error = %v, want not implemented", st, err)
		}
	}
	for _, st := range []ServiceType{State, UI, MCP, Models, Account} {
		if _, err := set.Handler(st); err != nil {
			t.Fatalf("Handler(%v) error = %v", st, err)
		}
	}
}

func TestLocalHandlersReturnDefaults(t *testing.T) {
	set := NewSet(Options{})
	fixed := time.UnixMilli(1234)
	set.Models.now = func() time.Time { return fixed }
	set.Account.now = func() time.Time { return fixed }

	tests := []struct {
		h      Handler
		method string
		want   any
	}{
		{h: set.Models, method: "subscribeToOpenRouterModels", want: map[string]any{"models": []any{}, "lastUpdated": int64(1234)}},
		{h: set.Models, method: "getOllamaModels", want: map[string]any{"models": []any{}}},
		{h: set.Models, method: "refreshGroqModels", want: map[string]any{"models": []any{}, "success": true}},
		{h: set.Account, method: "subscribeToAuthStatusUpdate", want: map[string]any{"isAuthenticated": false, "user": nil, "timestamp": int64(1234)}},
		{h: set.Account, method: "accountLoginClicked", want: map[string]any{"loginUrl": "", "success": false}},
		{h: set.Account, method: "somethingNew", want: map[string]any{}},
	}
	for _, tt := range tests {
		got, err := tt.h.Call(context.Background(), tt.method, nil, StreamOptions{})
		if err != nil {
			t.Fatalf("%s error = %v", tt.method, err)
		}
		if diff := cmp.Diff(tt.want, got); diff != "" {
			t.Fatalf("%s mismatch (-want +got):\n%s", tt.method, diff)
		}
	}
}
