package client

import (
	"context"
	"cursed-archive/contract"
	"cursed-archive/domain"
	"cursed-archive/errors"
	pb "cursed-archive/proto/archive"
	"cursed-archive/services"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"

	"google.golang.org/grpc"
)

// FileInjectClient uploads local files, one UploadFile call per file.
type FileInjectClient struct {
	log       *slog.Logger
	client    pb.FileInjectServiceClient
	chunkSize int
}

func NewFileInjectClient(cc grpc.ClientConnInterface, log *slog.Logger, chunkSize int) *FileInjectClient {
	if chunkSize <= 0 {
		chunkSize = domain.DefaultChunkSize
	}
	return &FileInjectClient{
		log:       log,
		client:    pb.NewFileInjectServiceClient(cc),
		chunkSize: chunkSize,
	}
}

// UploadFile streams the file at path while reading progress back concurrently.
// onProgress is called from the calling goroutine for every event, in order.
// The returned progress is the last event seen. A call whose progress stream
// ends without a complete event fails with ErrTransferIncomplete.
func (c *FileInjectClient) UploadFile(ctx context.Context, path string, onProgress func(domain.Progress)) (domain.Progress, error) {
	reader, err := services.OpenChunkReader(path, c.chunkSize)
	if err != nil {
		return domain.Progress{}, err
	}
	defer reader.Close()

	return c.upload(ctx, reader, path, reader.TotalSize(), onProgress)
}

func (c *FileInjectClient) upload(ctx context.Context, source contract.ChunkSource, path string, totalSize uint64, onProgress func(domain.Progress)) (domain.Progress, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	stream, err := c.client.UploadFile(ctx)
	if err != nil {
		return domain.Progress{}, fmt.Errorf("failed to open upload stream: %w", err)
	}

	c.log.Info("Uploading file", "path", path, "size", totalSize, "chunk_size", c.chunkSize)

	sendErr := make(chan error, 1)
	go func() {
		err := c.send(stream, source)
		if err != nil {
			// Unblocks Recv below
			cancel()
		}
		sendErr <- err
	}()

	var last domain.Progress
	var complete bool
	var recvErr error
	for {
		event, err := stream.Recv()
		if stderrors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			recvErr = err
			break
		}
		last = fromPbProgress(event)
		complete = complete || last.Complete
		c.log.Debug("Progress",
			"name", last.Identity.Name,
			"bytes_received", last.BytesReceived,
			"total_size", last.TotalSize,
			"percent", fmt.Sprintf("%.1f", last.Percent()))
		if onProgress != nil {
			onProgress(last)
		}
	}

	cancel()
	err = <-sendErr
	switch {
	case stderrors.Is(err, errors.ErrSourceRead):
		return last, fmt.Errorf("failed to read %s: %w", path, err)
	case recvErr != nil:
		return last, fmt.Errorf("upload of %s failed: %w", path, recvErr)
	case err != nil:
		return last, fmt.Errorf("failed to stream %s: %w", path, err)
	}
	if !complete {
		return last, fmt.Errorf("%w: %s (%d/%d bytes)", errors.ErrTransferIncomplete, path, last.BytesReceived, totalSize)
	}

	c.log.Info("File uploaded", "path", path, "stored_path", last.Identity.StoredPath, "size", last.TotalSize)
	return last, nil
}

// send pushes every chunk then half-closes the stream.
// A local read failure once the source is open is reported as ErrSourceRead.
// io.EOF from Send means the server ended the call: its status is read by Recv.
func (c *FileInjectClient) send(stream grpc.BidiStreamingClient[pb.FileChunk, pb.UploadProgress], source contract.ChunkSource) error {
	for {
		chunk, err := source.Next()
		if stderrors.Is(err, io.EOF) {
			return stream.CloseSend()
		}
		if err != nil {
			if stderrors.Is(err, errors.ErrSourceRead) {
				return err
			}
			return fmt.Errorf("%w: %v", errors.ErrSourceRead, err)
		}
		if err := stream.Send(toPbChunk(chunk)); err != nil {
			if stderrors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("send error: %w", err)
		}
	}
}

func toPbChunk(chunk domain.Chunk) *pb.FileChunk {
	return &pb.FileChunk{
		FilePath:  chunk.FilePath,
		TotalSize: chunk.TotalSize,
		ChunkData: chunk.Payload,
		Offset:    chunk.Offset,
		BytesSent: chunk.BytesSent,
	}
}

func fromPbProgress(event *pb.UploadProgress) domain.Progress {
	info := event.GetFileInfo()
	if info == nil {
		info = &pb.FileInfo{}
	}
	return domain.Progress{
		Identity: domain.FileIdentity{
			ID:              domain.FileID(info.Id),
			Name:            info.Name,
			OriginalPath:    info.OriginalPath,
			StoredPath:      info.StoredPath,
			Size:            uint64(info.Size),
			Extension:       info.Extension,
			BaseName:        info.BaseName,
			ParentDirectory: info.ParentDirectory,
		},
		BytesReceived: event.BytesReceived,
		TotalSize:     event.TotalSize,
		Complete:      event.Complete,
	}
}
