package server

import (
	"context"
	"cursed-archive/contract"
	"cursed-archive/domain"
	"cursed-archive/errors"
	pb "cursed-archive/proto/archive"
	stderrors "errors"
	"log/slog"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type FileInjectServer struct {
	pb.UnimplementedFileInjectServiceServer
	log         *slog.Logger
	reassembler contract.IReassembler
	bufferSize  int
}

func NewFileInjectServer(
	log *slog.Logger,
	reassembler contract.IReassembler,
	bufferSize int) *FileInjectServer {
	if bufferSize <= 0 {
		bufferSize = domain.DefaultProgressBufferSize
	}
	return &FileInjectServer{
		log:         log,
		reassembler: reassembler,
		bufferSize:  bufferSize,
	}
}

type result struct {
	state domain.TransferState
	err   error
}

// UploadFile runs the reassembler in its own goroutine while this one forwards
// progress to the client as it is produced.
// The bounded channel between both sides is the only backpressure: a slow
// client eventually blocks the reassembler, which stops reading chunks.
func (s *FileInjectServer) UploadFile(stream grpc.BidiStreamingServer[pb.FileChunk, pb.UploadProgress]) error {
	ctx, cancel := context.WithCancel(stream.Context())
	defer cancel()

	progress := make(chan domain.Progress, s.bufferSize)
	done := make(chan result, 1)

	go func() {
		state, err := s.reassembler.Reassemble(ctx, chunkStream{stream: stream}, progress)
		close(progress)
		done <- result{state: state, err: err}
	}()

	for event := range progress {
		if err := stream.Send(toPbProgress(event)); err != nil {
			// The reassembler sees the cancellation on its next event
			s.log.Warn("Failed to send progress, dropping transfer", "name", event.Identity.Name, "error", err)
			return err
		}
	}

	res := <-done
	if res.err == nil && res.state != domain.Complete {
		s.log.Debug("Upload ended without completion", "state", res.state)
	}
	return toStatus(res.err)
}

// chunkStream feeds the reassembler with domain chunks.
type chunkStream struct {
	stream grpc.BidiStreamingServer[pb.FileChunk, pb.UploadProgress]
}

func (c chunkStream) Recv() (domain.Chunk, error) {
	chunk, err := c.stream.Recv()
	if err != nil {
		return domain.Chunk{}, err
	}
	return fromPbChunk(chunk), nil
}

func toStatus(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case stderrors.Is(err, errors.ErrEmptyTransfer),
		stderrors.Is(err, errors.ErrInvalidChunk),
		stderrors.Is(err, errors.ErrInvalidFileName),
		stderrors.Is(err, errors.ErrChunkOutOfOrder):
		return status.Error(codes.InvalidArgument, err.Error())
	case stderrors.Is(err, errors.ErrStorageWrite):
		return status.Error(codes.Internal, err.Error())
	case stderrors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case stderrors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	}
	if s, ok := status.FromError(err); ok {
		return s.Err()
	}
	return status.Error(codes.Unknown, err.Error())
}

func fromPbChunk(chunk *pb.FileChunk) domain.Chunk {
	return domain.Chunk{
		FilePath:  chunk.FilePath,
		TotalSize: chunk.TotalSize,
		Payload:   chunk.ChunkData,
		Offset:    chunk.Offset,
		BytesSent: chunk.BytesSent,
	}
}

func toPbProgress(event domain.Progress) *pb.UploadProgress {
	identity := event.Identity
	return &pb.UploadProgress{
		FileInfo: &pb.FileInfo{
			Id:              string(identity.ID),
			Name:            identity.Name,
			OriginalPath:    identity.OriginalPath,
			StoredPath:      identity.StoredPath,
			Size:            int64(identity.Size),
			Extension:       identity.Extension,
			BaseName:        identity.BaseName,
			ParentDirectory: identity.ParentDirectory,
		},
		BytesReceived: event.BytesReceived,
		TotalSize:     event.TotalSize,
		Complete:      event.Complete,
	}
}
