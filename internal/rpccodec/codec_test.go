package rpccodec

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"google.golang.org/grpc/encoding"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

type sample struct {
	StateJSON string `json:"stateJson"`
	Count     int    `json:"count,omitempty"`
}

func TestCodecIsRegistered(t *testing.T) {
	if encoding.GetCodec(Name) == nil {
		t.Fatalf("codec %q not registered", Name)
	}
}

func TestCodecRoundTripsStructs(t *testing.T) {
	c := Codec{}
	in := sample{StateJSON: `{"mode":"plan"}`, Count: 2}
	data, err := c.Marshal(in)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	var out sample
	if err := c.Unmarshal(data, &out); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if diff := cmp.Diff(in, out); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestCodecUsesProtoJSONForMessages(t *testing.T) {
	c := Codec{}
	data, err := c.Marshal(&healthpb.HealthCheckResponse{Status: healthpb.HealthCheckResponse_SERVING})
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	var out healthpb.HealthCheckResponse
	if err := c.Unmarshal(data, &out); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if out.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		t.Fatalf("status = %v, want SERVING", out.GetStatus())
	}
}

func TestUnmarshalEmptyBodyLeavesZeroValue(t *testing.T) {
	var out sample
	if err := (Codec{}).Unmarshal(nil, &out); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if out != (sample{}) {
		t.Fatalf("out = %+v, want zero", out)
	}
}
