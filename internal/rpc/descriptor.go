package rpc

import (
	"io"
	"sync"

	"github.com/jhump/protoreflect/v2/protoprint"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/reflect/protoregistry"
	"google.golang.org/protobuf/types/descriptorpb"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	// ServiceName is the fully-qualified name of the bridge service.
	ServiceName = "gqlbridge.v1.Bridge"
	protoPath   = "gqlbridge/v1/bridge.proto"
	structPath  = "google/protobuf/struct.proto"
	structType  = ".google.protobuf.Struct"
)

// rpcMethods maps gRPC method names to method channel names.
var rpcMethods = []struct {
	rpc, method, comment string
}{
	{"Query", "query", " Query runs a GraphQL query and returns {data, errors}.\n"},
	{"Mutate", "mutate", " Mutate runs a GraphQL mutation and returns {data, errors}.\n"},
	{"Cancel", "cancel", " Cancel cancels the operation started with arguments.cancelToken\n and returns {cancelled}.\n"},
}

var (
	fileOnce sync.Once
	fileDesc protoreflect.FileDescriptor
	fileErr  error
)

// File returns the descriptor of the bridge service.
func File() (protoreflect.FileDescriptor, error) {
	fileOnce.Do(func() {
		// structpb registers struct.proto with the global registry on init.
		_ = structpb.File_google_protobuf_struct_proto
		fileDesc, fileErr = protodesc.NewFile(buildFile(), protoregistry.GlobalFiles)
	})
	return fileDesc, fileErr
}

func buildFile() *descriptorpb.FileDescriptorProto {
	svc := &descriptorpb.ServiceDescriptorProto{Name: proto.String("Bridge")}
	locs := []*descriptorpb.SourceCodeInfo_Location{{
		Path:            []int32{6, 0}, // service[0]
		Span:            []int32{0, 0, 0},
		LeadingComments: proto.String(" Bridge exposes the GraphQL method channel. Payloads are free-form\n arguments and results; failures carry a Struct detail with code,\n message and details.\n"),
	}}
	for i, m := range rpcMethods {
		svc.Method = append(svc.Method, &descriptorpb.MethodDescriptorProto{
			Name:       proto.String(m.rpc),
			InputType:  proto.String(structType),
			OutputType: proto.String(structType),
		})
		locs = append(locs, &descriptorpb.SourceCodeInfo_Location{
			Path:            []int32{6, 0, 2, int32(i)}, // service[0].method[i]
			Span:            []int32{0, 0, 0},
			LeadingComments: proto.String(m.comment),
		})
	}
	return &descriptorpb.FileDescriptorProto{
		Name:       proto.String(protoPath),
		Package:    proto.String("gqlbridge.v1"),
		Dependency: []string{structPath},
		Syntax:     proto.String("proto3"),
		Options: &descriptorpb.FileOptions{
			GoPackage: proto.String("github.com/hanpama/gqlbridge/gen/gqlbridge/v1;gqlbridgev1"),
		},
		Service:        []*descriptorpb.ServiceDescriptorProto{svc},
		SourceCodeInfo: &descriptorpb.SourceCodeInfo{Location: locs},
	}
}

// RenderProto writes the .proto source of the bridge service to w.
func RenderProto(w io.Writer) error {
	fd, err := File()
	if err != nil {
		return err
	}
	pp := protoprint.Printer{}
	return pp.PrintProtoFile(fd, w)
}
