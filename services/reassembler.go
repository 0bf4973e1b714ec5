package services

import (
	"context"
	"cursed-archive/contract"
	"cursed-archive/domain"
	"cursed-archive/domain/mimetypes"
	"cursed-archive/errors"
	"cursed-archive/infrastructure/storage"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// Reassembler rebuilds one file per call from an ordered chunk stream.
// The goroutine running Reassemble owns the destination handle for the whole
// transfer; progress leaves through the bounded channel handed in by the caller.
type Reassembler struct {
	log        *slog.Logger
	validator  *validator.Validate
	root       contract.IUploadRoot
	repository storage.ITransferRepository
}

func NewReassembler(
	log *slog.Logger,
	root contract.IUploadRoot,
	repository storage.ITransferRepository,
) *Reassembler {
	return &Reassembler{
		log:        log,
		validator:  validator.New(),
		root:       root,
		repository: repository,
	}
}

// Reassemble consumes the stream until io.EOF and writes every payload in
// arrival order to <root>/<baseName>.
// A stream ending before the declared size ends in the Aborted state with a nil
// error: no complete event is emitted and that absence is the failure signal.
// A stream carrying more than the declared size completes with every byte
// written. Storage failures and out of order chunks abort with an error.
// Partial files are left on disk in every case.
func (r *Reassembler) Reassemble(ctx context.Context, stream contract.ChunkStream, progress chan<- domain.Progress) (domain.TransferState, error) {
	first, err := stream.Recv()
	if stderrors.Is(err, io.EOF) {
		return domain.NotStarted, errors.ErrEmptyTransfer
	}
	if err != nil {
		return domain.NotStarted, fmt.Errorf("failed to receive first chunk: %w", err)
	}
	if err := r.validator.Struct(first); err != nil {
		return domain.NotStarted, fmt.Errorf("%w: %v", errors.ErrInvalidChunk, err)
	}

	identity, err := domain.NewFileIdentity(first.FilePath, first.TotalSize)
	if err != nil {
		return domain.NotStarted, fmt.Errorf("%w: %q", err, first.FilePath)
	}
	identity.ID = domain.FileID(uuid.NewString())

	dest, storedPath, err := r.root.Create(identity.BaseName)
	if err != nil {
		return domain.NotStarted, err
	}
	defer func() {
		if err := dest.Close(); err != nil {
			r.log.Error("Failed to close destination", "path", storedPath, "error", err)
		}
	}()
	identity.StoredPath = storedPath

	record := domain.TransferRecord{
		ID:           identity.ID,
		Name:         identity.Name,
		OriginalPath: identity.OriginalPath,
		StoredPath:   storedPath,
		TotalSize:    identity.Size,
		MimeType:     mimetypes.Detect(first.Payload),
		State:        domain.InProgress,
		StartedAt:    time.Now().UTC(),
	}
	r.journal(record)
	r.log.Info("Receiving file",
		"id", identity.ID,
		"name", identity.Name,
		"original_path", identity.OriginalPath,
		"stored_path", storedPath,
		"total_size", identity.Size,
		"mime_type", record.MimeType)

	tracker := domain.NewProgressTracker(identity)
	state, err := r.consume(ctx, stream, first, dest, tracker, progress)

	record.State = state
	record.BytesReceived = tracker.BytesReceived()
	record.EndedAt = time.Now().UTC()
	if err != nil {
		record.Error = err.Error()
	}
	r.journal(record)

	switch {
	case err != nil:
		r.log.Error("Transfer aborted", "id", identity.ID, "name", identity.Name,
			"bytes_received", tracker.BytesReceived(), "total_size", identity.Size, "error", err)
	case state == domain.Complete:
		r.log.Info("File received", "id", identity.ID, "name", identity.Name,
			"bytes_received", tracker.BytesReceived(), "duration", record.EndedAt.Sub(record.StartedAt))
	default:
		r.log.Warn("Stream ended before the declared size", "id", identity.ID, "name", identity.Name,
			"bytes_received", tracker.BytesReceived(), "total_size", identity.Size)
	}
	return state, err
}

func (r *Reassembler) consume(
	ctx context.Context,
	stream contract.ChunkStream,
	chunk domain.Chunk,
	dest contract.Destination,
	tracker *domain.ProgressTracker,
	progress chan<- domain.Progress,
) (domain.TransferState, error) {
	for {
		if err := r.apply(ctx, chunk, dest, tracker, progress); err != nil {
			tracker.Abort()
			return tracker.State(), err
		}

		next, err := stream.Recv()
		if stderrors.Is(err, io.EOF) {
			return tracker.Finish(), nil
		}
		if err != nil {
			tracker.Abort()
			return tracker.State(), fmt.Errorf("chunk stream interrupted: %w", err)
		}
		chunk = next
	}
}

// apply writes one payload then publishes the event the tracker decides on.
func (r *Reassembler) apply(
	ctx context.Context,
	chunk domain.Chunk,
	dest contract.Destination,
	tracker *domain.ProgressTracker,
	progress chan<- domain.Progress,
) error {
	if chunk.Offset != tracker.BytesReceived() {
		return fmt.Errorf("%w: got offset %d, expected %d",
			errors.ErrChunkOutOfOrder, chunk.Offset, tracker.BytesReceived())
	}

	n := len(chunk.Payload)
	if n > 0 {
		if _, err := dest.Write(chunk.Payload); err != nil {
			return fmt.Errorf("%w: %v", errors.ErrStorageWrite, err)
		}
	}

	event, emit, err := tracker.Advance(n)
	if err != nil {
		return err
	}
	if !emit {
		return nil
	}
	if event.Complete {
		if err := dest.Sync(); err != nil {
			return fmt.Errorf("%w: %v", errors.ErrStorageWrite, err)
		}
	}

	r.log.Debug("Chunk written",
		"name", event.Identity.Name,
		"offset", chunk.Offset,
		"size", n,
		"bytes_received", event.BytesReceived,
		"complete", event.Complete)

	// Blocks while the caller is slow to forward progress
	select {
	case <-ctx.Done():
		return ctx.Err()
	case progress <- event:
		return nil
	}
}

func (r *Reassembler) journal(record domain.TransferRecord) {
	if err := r.repository.Save(record); err != nil {
		r.log.Warn("Failed to journal transfer", "id", record.ID, "state", record.State, "error", err)
	}
}
