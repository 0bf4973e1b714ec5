package archive

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	FileInjectServiceName             = "cursed_archive.FileInjectService"
	FileInjectServiceUploadFileMethod = "/cursed_archive.FileInjectService/UploadFile"
)

type FileInjectServiceClient interface {
	UploadFile(ctx context.Context, opts ...grpc.CallOption) (grpc.BidiStreamingClient[FileChunk, UploadProgress], error)
}

type fileInjectServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewFileInjectServiceClient(cc grpc.ClientConnInterface) FileInjectServiceClient {
	return &fileInjectServiceClient{cc}
}

func (c *fileInjectServiceClient) UploadFile(ctx context.Context, opts ...grpc.CallOption) (grpc.BidiStreamingClient[FileChunk, UploadProgress], error) {
	callOpts := append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	stream, err := c.cc.NewStream(ctx, &FileInjectServiceDesc.Streams[0], FileInjectServiceUploadFileMethod, callOpts...)
	if err != nil {
		return nil, err
	}
	return &grpc.GenericClientStream[FileChunk, UploadProgress]{ClientStream: stream}, nil
}

type FileInjectServiceServer interface {
	UploadFile(grpc.BidiStreamingServer[FileChunk, UploadProgress]) error
}

// UnimplementedFileInjectServiceServer can be embedded to keep servers forward compatible.
type UnimplementedFileInjectServiceServer struct{}

func (UnimplementedFileInjectServiceServer) UploadFile(grpc.BidiStreamingServer[FileChunk, UploadProgress]) error {
	return status.Error(codes.Unimplemented, "method UploadFile not implemented")
}

func RegisterFileInjectServiceServer(s grpc.ServiceRegistrar, srv FileInjectServiceServer) {
	s.RegisterService(&FileInjectServiceDesc, srv)
}

func uploadFileHandler(srv any, stream grpc.ServerStream) error {
	return srv.(FileInjectServiceServer).UploadFile(&grpc.GenericServerStream[FileChunk, UploadProgress]{ServerStream: stream})
}

var FileInjectServiceDesc = grpc.ServiceDesc{
	ServiceName: FileInjectServiceName,
	HandlerType: (*FileInjectServiceServer)(nil),
	Methods:     []grpc.MethodDesc{},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "UploadFile",
			Handler:       uploadFileHandler,
			ServerStreams: true,
			ClientStreams: true,
		},
	},
	Metadata: "inject.proto",
}
