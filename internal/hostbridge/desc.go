package hostbridge

import (
	"context"
	"fmt"
	"strconv"

	"github.com/lydakis/corehost/internal/protoschema"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/reflect/protoreflect"
)

// request is a host call in its proto JSON form.
type request map[string]any

type unaryFunc func(s *Server, ctx context.Context, req request) (any, error)

type streamFunc func(s *Server, req request, stream grpc.ServerStream) error

type method struct {
	name   string
	unary  unaryFunc
	stream streamFunc
}

// serviceDesc registers methods under host.<name>. Every method must be
// described by protoschema; a missing one is a programming error.
func serviceDesc(name string, methods ...method) *grpc.ServiceDesc {
	full := Namespace + "." + name
	desc := &grpc.ServiceDesc{
		ServiceName: full,
		HandlerType: (*any)(nil),
		Metadata:    "host/" + name + ".proto",
	}
	for _, m := range methods {
		md, err := protoschema.Method(full, m.name)
		if err != nil {
			panic(fmt.Sprintf("hostbridge: %v", err))
		}
		if m.stream != nil {
			desc.Streams = append(desc.Streams, grpc.StreamDesc{
				StreamName:    m.name,
				ServerStreams: true,
				Handler:       streamHandler(md, m.stream),
			})
			continue
		}
		desc.Methods = append(desc.Methods, grpc.MethodDesc{
			MethodName: m.name,
			Handler:    unaryHandler("/"+full+"/"+m.name, md, m.unary),
		})
	}
	return desc
}

// decodeRequest reads one request message of md's input type. The default
// protobuf codec and the JSON content-subtype both decode into it.
func decodeRequest(md protoreflect.MethodDescriptor, dec func(any) error) (request, error) {
	in := protoschema.New(md.Input())
	if err := dec(in); err != nil {
		return nil, err
	}
	req := request{}
	if err := protoschema.Decode(in, &req); err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "decoding %s: %v", md.Input().FullName(), err)
	}
	return req, nil
}

func unaryHandler(fullMethod string, md protoreflect.MethodDescriptor, fn unaryFunc) grpc.MethodHandler {
	call := func(s *Server, ctx context.Context, req request) (any, error) {
		resp, err := fn(s, ctx, req)
		if err != nil {
			return nil, err
		}
		out, err := protoschema.Encode(md.Output(), resp)
		if err != nil {
			return nil, status.Errorf(codes.Internal, "encoding %s: %v", md.Output().FullName(), err)
		}
		return out, nil
	}
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		req, err := decodeRequest(md, dec)
		if err != nil {
			return nil, err
		}
		s := srv.(*Server)
		if interceptor == nil {
			return call(s, ctx, req)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		return interceptor(ctx, req, info, func(ctx context.Context, r any) (any, error) {
			return call(s, ctx, r.(request))
		})
	}
}

func streamHandler(md protoreflect.MethodDescriptor, fn streamFunc) grpc.StreamHandler {
	return func(srv any, stream grpc.ServerStream) error {
		req, err := decodeRequest(md, stream.RecvMsg)
		if err != nil {
			return err
		}
		return fn(srv.(*Server), req, stream)
	}
}

func serviceDescs() []*grpc.ServiceDesc {
	return []*grpc.ServiceDesc{
		serviceDesc("WindowService",
			method{name: "showOpenDialogue", unary: (*Server).showOpenDialogue},
			method{name: "showMessage", unary: (*Server).showMessage},
			method{name: "showInputBox", unary: (*Server).showInputBox},
			method{name: "showSaveDialog", unary: (*Server).showSaveDialog},
			method{name: "showTextDocument", unary: (*Server).showTextDocument},
			method{name: "openFile", unary: (*Server).openFile},
			method{name: "openSettings", unary: (*Server).openSettings},
			method{name: "getOpenTabs", unary: (*Server).getOpenTabs},
			method{name: "getVisibleTabs", unary: (*Server).getVisibleTabs},
			method{name: "getActiveEditor", unary: (*Server).getActiveEditor},
		),
		serviceDesc("WorkspaceService",
			method{name: "getWorkspacePaths", unary: (*Server).getWorkspacePaths},
			method{name: "saveOpenDocumentIfDirty", unary: (*Server).saveOpenDocumentIfDirty},
			method{name: "getDiagnostics", unary: (*Server).getDiagnostics},
			method{name: "searchWorkspaceItems", unary: (*Server).searchWorkspaceItems},
			method{name: "openProblemsPanel", unary: (*Server).openProblemsPanel},
			method{name: "openInFileExplorerPanel", unary: (*Server).openInFileExplorerPanel},
		),
		serviceDesc("EnvService",
			method{name: "clipboardWriteText", unary: (*Server).clipboardWriteText},
			method{name: "clipboardReadText", unary: (*Server).clipboardReadText},
			method{name: "getMachineId", unary: (*Server).getMachineID},
			method{name: "getHostVersion", unary: (*Server).getHostVersion},
		),
		serviceDesc("DiffService",
			method{name: "openDiff", unary: (*Server).openDiff},
			method{name: "getDocumentText", unary: (*Server).getDocumentText},
			method{name: "replaceText", unary: (*Server).replaceText},
			method{name: "scrollDiff", unary: (*Server).scrollDiff},
			method{name: "truncateDocument", unary: (*Server).truncateDocument},
			method{name: "saveDocument", unary: (*Server).saveDocument},
			method{name: "closeAllDiffs", unary: (*Server).closeAllDiffs},
			method{name: "openMultiFileDiff", unary: (*Server).openMultiFileDiff},
		),
		serviceDesc("WatchService",
			method{name: "subscribeToFile", stream: (*Server).subscribeToFile},
		),
		serviceDesc("TestingService",
			method{name: "getWebviewHtml", unary: (*Server).getWebviewHTML},
		),
	}
}

func (r request) text(key string) string {
	s, _ := r[key].(string)
	return s
}

// number reads a JSON number, accepting the quoted form proto JSON uses for
// 64-bit fields.
func (r request) number(key string) (int, bool) {
	switch v := r[key].(type) {
	case float64:
		return int(v), true
	case string:
		n, err := strconv.Atoi(v)
		return n, err == nil
	}
	return 0, false
}

func (r request) flag(key string) bool {
	b, _ := r[key].(bool)
	return b
}

func (r request) object(key string) request {
	m, _ := r[key].(map[string]any)
	return request(m)
}
