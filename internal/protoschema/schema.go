// Package protoschema describes the core and host protobuf services at
// runtime. Calls are encoded with the standard protobuf codec through
// dynamicpb messages; the rest of the daemon sees their proto JSON form.
package protoschema

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/lydakis/corehost/internal/pkg/json"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/reflect/protoregistry"
	"google.golang.org/protobuf/types/descriptorpb"
	"google.golang.org/protobuf/types/dynamicpb"
)

const (
	// CorePackage is the proto package of the core services.
	CorePackage = "cline"
	// HostPackage is the proto package of the host bridge services.
	HostPackage = "host"
)

// ErrUnknownMethod is returned for methods the schema does not describe.
var ErrUnknownMethod = errors.New("unknown method")

var (
	// Enums travel as numbers so UI payloads match the core's numeric view.
	marshalOpts   = protojson.MarshalOptions{UseEnumNumbers: true}
	unmarshalOpts = protojson.UnmarshalOptions{DiscardUnknown: true}
)

var registry = sync.OnceValues(func() (*protoregistry.Files, error) {
	return protodesc.NewFiles(&descriptorpb.FileDescriptorSet{File: fileProtos()})
})

// Service returns the descriptor of a fully qualified service such as
// "host.EnvService".
func Service(name string) (protoreflect.ServiceDescriptor, error) {
	files, err := registry()
	if err != nil {
		return nil, fmt.Errorf("building proto schema: %w", err)
	}
	d, err := files.FindDescriptorByName(protoreflect.FullName(name))
	if err != nil {
		return nil, fmt.Errorf("%w: service %s", ErrUnknownMethod, name)
	}
	sd, ok := d.(protoreflect.ServiceDescriptor)
	if !ok {
		return nil, fmt.Errorf("%s is not a service", name)
	}
	return sd, nil
}

// Method returns the descriptor of service/method.
func Method(service, method string) (protoreflect.MethodDescriptor, error) {
	sd, err := Service(service)
	if err != nil {
		return nil, err
	}
	md := sd.Methods().ByName(protoreflect.Name(method))
	if md == nil {
		return nil, fmt.Errorf("%w: %s/%s", ErrUnknownMethod, service, method)
	}
	return md, nil
}

// MethodByPath resolves a gRPC path such as "/cline.StateService/getLatestState".
func MethodByPath(path string) (protoreflect.MethodDescriptor, error) {
	service, method, ok := strings.Cut(strings.TrimPrefix(path, "/"), "/")
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownMethod, path)
	}
	return Method(service, method)
}

// New returns an empty message of type md.
func New(md protoreflect.MessageDescriptor) *dynamicpb.Message {
	return dynamicpb.NewMessage(md)
}

// Encode builds a message of type md from the JSON form of v. Keys may use
// either the lowerCamel or the proto field name; unknown keys are dropped.
// A nil v gives an empty message.
func Encode(md protoreflect.MessageDescriptor, v any) (*dynamicpb.Message, error) {
	m := dynamicpb.NewMessage(md)
	if v == nil {
		return m, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encoding %s: %w", md.FullName(), err)
	}
	if err := unmarshalOpts.Unmarshal(data, m); err != nil {
		return nil, fmt.Errorf("encoding %s: %w", md.FullName(), err)
	}
	return m, nil
}

// Decode stores the JSON form of m in v. Field names are lowerCamel,
// enums are numbers and 64-bit integers are quoted strings.
func Decode(m proto.Message, v any) error {
	data, err := marshalOpts.Marshal(m)
	if err != nil {
		return fmt.Errorf("decoding %s: %w", m.ProtoReflect().Descriptor().FullName(), err)
	}
	return json.Unmarshal(data, v)
}
