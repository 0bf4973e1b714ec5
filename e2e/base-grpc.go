package e2e

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/gookit/color"
	"github.com/stretchr/testify/suite"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"

	"cursed-archive/infrastructure/grpc/server"
	journal "cursed-archive/infrastructure/storage"
	pb "cursed-archive/proto/archive"
	"cursed-archive/services"
	"cursed-archive/storage"
)

type BaseGrpcSuite struct {
	suite.Suite
	Config Config
}

// SetupSuite loads the environment configuration and starts a local server when none is given
func (s *BaseGrpcSuite) SetupSuite() {
	var err error
	s.Config, err = LoadConfig()
	s.Require().NoError(err)

	if s.Config.ServerAddr == "" {
		s.Config.UploadRoot = filepath.Join(s.T().TempDir(), "uploads")
		s.Config.ServerAddr = s.StartServer(s.Config.UploadRoot)
	}
}

// StartServer runs the whole server stack on a random local port, stopped with the suite
func (s *BaseGrpcSuite) StartServer(uploadRoot string) string {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	db, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLogger(nil))
	s.Require().NoError(err)

	repository := journal.NewTransferRepository(db, log, time.Hour)
	reassembler := services.NewReassembler(log, storage.NewUploadRoot(uploadRoot), repository)

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	s.Require().NoError(err)

	srv := grpc.NewServer(grpc.ForceServerCodec(pb.Codec), grpc.ChainStreamInterceptor(server.StreamLoggingInterceptor(log)))
	pb.RegisterFileInjectServiceServer(srv, server.NewFileInjectServer(log, reassembler, 128))
	healthServer := health.NewServer()
	healthServer.SetServingStatus(pb.FileInjectServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(srv, healthServer)

	go func() {
		_ = srv.Serve(listener)
	}()
	s.T().Cleanup(func() {
		srv.Stop()
		_ = db.Close()
	})
	return listener.Addr().String()
}

// GrpcConn initializes a gRPC connection with colored headers and stream logging
func (s *BaseGrpcSuite) GrpcConn(t *testing.T, name string, addr string) *grpc.ClientConn {
	header := fmt.Sprintf("  ====== %s ======", name)
	if s.Config.Colours {
		header = color.New(color.BgBlack, color.FgGreen).Render(header)
	}
	t.Log(header)

	conn, err := grpc.NewClient(addr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithStreamInterceptor(func(ctx context.Context, desc *grpc.StreamDesc, cc *grpc.ClientConn, method string, streamer grpc.Streamer, opts ...grpc.CallOption) (grpc.ClientStream, error) {
			stream, err := streamer(ctx, desc, cc, method, opts...)
			if err != nil {
				t.Logf("GRPC %s [%s]", method, status.Code(err))
				return nil, err
			}
			return &loggingStream{ClientStream: stream, t: t, method: method, start: time.Now(), debug: s.Config.DebugMessages}, nil
		}),
	)
	s.Require().NoError(err, "Failed to connect to gRPC server at "+addr)
	return conn
}

// WithServer provides a FileInjectService client within a contextual test step
func (s *BaseGrpcSuite) WithServer(name string, fn func(ctx context.Context, client pb.FileInjectServiceClient)) {
	s.withAddr(s.Config.ServerAddr, name, fn)
}

func (s *BaseGrpcSuite) withAddr(addr, name string, fn func(ctx context.Context, client pb.FileInjectServiceClient)) {
	conn := s.GrpcConn(s.T(), name, addr)
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	fn(ctx, pb.NewFileInjectServiceClient(conn))
}

// WithHealth provides a health client on the target server
func (s *BaseGrpcSuite) WithHealth(name string, fn func(ctx context.Context, client healthpb.HealthClient)) {
	conn := s.GrpcConn(s.T(), name, s.Config.ServerAddr)
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	fn(ctx, healthpb.NewHealthClient(conn))
}

// WriteSource creates a local file of size bytes with a recognizable pattern
func (s *BaseGrpcSuite) WriteSource(name string, size int) (string, []byte) {
	content := make([]byte, size)
	for i := range content {
		content[i] = byte(i % 253)
	}
	path := filepath.Join(s.T().TempDir(), name)
	s.Require().NoError(os.WriteFile(path, content, 0o644))
	return path, content
}

// loggingStream logs the messages of a call and its final status
type loggingStream struct {
	grpc.ClientStream
	t      *testing.T
	method string
	start  time.Time
	debug  bool
}

func (l *loggingStream) SendMsg(m any) error {
	if l.debug {
		l.t.Logf("SEND %s", describe(m))
	}
	return l.ClientStream.SendMsg(m)
}

func (l *loggingStream) RecvMsg(m any) error {
	err := l.ClientStream.RecvMsg(m)
	switch {
	case err == nil:
		if l.debug {
			l.t.Logf("RECV %+v", m)
		}
	default:
		code := status.Code(err)
		if err == io.EOF {
			code = status.Code(nil)
		}
		l.t.Logf("GRPC %s [%s] in %v", l.method, code, time.Since(l.start))
	}
	return err
}

// describe leaves payloads out of the logs
func describe(m any) string {
	if chunk, ok := m.(*pb.FileChunk); ok {
		return fmt.Sprintf("chunk %s offset=%d size=%d total=%d", chunk.FilePath, chunk.Offset, len(chunk.ChunkData), chunk.TotalSize)
	}
	return fmt.Sprintf("%+v", m)
}
