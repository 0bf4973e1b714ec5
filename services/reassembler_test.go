package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"cursed-archive/domain"
	"cursed-archive/domain/mimetypes"
	"cursed-archive/errors"
	"cursed-archive/mocks"
	"cursed-archive/storage"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

// sliceStream replays chunks then ends with err, io.EOF when err is nil
type sliceStream struct {
	chunks []domain.Chunk
	err    error
}

func (s *sliceStream) Recv() (domain.Chunk, error) {
	if len(s.chunks) == 0 {
		if s.err != nil {
			return domain.Chunk{}, s.err
		}
		return domain.Chunk{}, io.EOF
	}
	chunk := s.chunks[0]
	s.chunks = s.chunks[1:]
	return chunk, nil
}

func chunksOf(t *testing.T, path string, chunkSize int) []domain.Chunk {
	t.Helper()
	reader, err := OpenChunkReader(path, chunkSize)
	require.NoError(t, err)
	defer reader.Close()
	return readAll(t, reader)
}

func collect(progress chan domain.Progress) []domain.Progress {
	close(progress)
	var events []domain.Progress
	for event := range progress {
		events = append(events, event)
	}
	return events
}

func newTestReassembler(t *testing.T, root string) (*Reassembler, *mocks.MockITransferRepository) {
	ctrl := gomock.NewController(t)
	repository := mocks.NewMockITransferRepository(ctrl)
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewReassembler(log, storage.NewUploadRoot(root), repository), repository
}

func TestReassembler_MultiChunkFile(t *testing.T) {
	req := require.New(t)
	root := filepath.Join(t.TempDir(), "uploads")
	reassembler, repository := newTestReassembler(t, root)

	// Given a 2.5 MiB file split in 1 MiB chunks
	path, content := writeSource(t, "big.bin", 2*domain.MB+domain.MB/2)
	stream := &sliceStream{chunks: chunksOf(t, path, domain.DefaultChunkSize)}

	var saved []domain.TransferRecord
	repository.EXPECT().Save(gomock.Any()).DoAndReturn(func(record domain.TransferRecord) error {
		saved = append(saved, record)
		return nil
	}).Times(2)

	// When the stream is reassembled
	progress := make(chan domain.Progress, 8)
	state, err := reassembler.Reassemble(context.Background(), stream, progress)
	req.NoError(err)
	req.Equal(domain.Complete, state)

	// Then 3 events are emitted, the last one completes the transfer
	events := collect(progress)
	req.Len(events, 3)
	req.Equal(uint64(domain.MB), events[0].BytesReceived)
	req.Equal(uint64(2*domain.MB), events[1].BytesReceived)
	req.Equal(uint64(len(content)), events[2].BytesReceived)
	req.False(events[0].Complete)
	req.False(events[1].Complete)
	req.True(events[2].Complete)
	for _, event := range events {
		req.Equal(uint64(len(content)), event.TotalSize)
		req.Equal("big.bin", event.Identity.Name)
		req.Equal("bin", event.Identity.Extension)
		req.Equal(events[0].Identity.ID, event.Identity.ID)
	}

	// And the stored file is identical to the source
	stored, err := os.ReadFile(filepath.Join(root, "big.bin"))
	req.NoError(err)
	req.Equal(content, stored)
	req.Equal(filepath.Join(root, "big.bin"), events[2].Identity.StoredPath)

	// And the journal holds the start then the final record
	req.Len(saved, 2)
	req.Equal(domain.InProgress, saved[0].State)
	req.Equal(domain.Complete, saved[1].State)
	req.Equal(uint64(len(content)), saved[1].BytesReceived)
	req.Empty(saved[1].Error)
	req.False(saved[1].EndedAt.Before(saved[1].StartedAt))
}

func TestReassembler_SingleChunkFile(t *testing.T) {
	req := require.New(t)
	root := t.TempDir()
	reassembler, repository := newTestReassembler(t, root)
	repository.EXPECT().Save(gomock.Any()).Return(nil).Times(2)

	// Given a 10 byte file sent from a nested path
	stream := &sliceStream{chunks: []domain.Chunk{{
		FilePath:  "/home/user/docs/notes.txt",
		TotalSize: 10,
		Payload:   []byte("0123456789"),
		BytesSent: 10,
	}}}

	progress := make(chan domain.Progress, 2)
	state, err := reassembler.Reassemble(context.Background(), stream, progress)
	req.NoError(err)
	req.Equal(domain.Complete, state)

	// Then a single complete event carries the identity
	events := collect(progress)
	req.Len(events, 1)
	req.True(events[0].Complete)
	req.Equal(uint64(10), events[0].BytesReceived)
	req.Equal(domain.FileIdentity{
		ID:              events[0].Identity.ID,
		Name:            "notes.txt",
		OriginalPath:    "/home/user/docs/notes.txt",
		StoredPath:      filepath.Join(root, "notes.txt"),
		Size:            10,
		Extension:       "txt",
		BaseName:        "notes.txt",
		ParentDirectory: "/home/user/docs",
	}, events[0].Identity)
	req.NotEmpty(events[0].Identity.ID)

	// And only the base name is used under the root
	stored, err := os.ReadFile(filepath.Join(root, "notes.txt"))
	req.NoError(err)
	req.Equal("0123456789", string(stored))
}

func TestReassembler_EmptyFile(t *testing.T) {
	req := require.New(t)
	root := t.TempDir()
	reassembler, repository := newTestReassembler(t, root)
	repository.EXPECT().Save(gomock.Any()).Return(nil).Times(2)

	// Given the single empty chunk a sender emits for an empty file
	path, _ := writeSource(t, "empty.txt", 0)
	stream := &sliceStream{chunks: chunksOf(t, path, domain.DefaultChunkSize)}

	progress := make(chan domain.Progress, 2)
	state, err := reassembler.Reassemble(context.Background(), stream, progress)
	req.NoError(err)
	req.Equal(domain.Complete, state)

	// Then exactly one complete event with zero bytes is emitted
	events := collect(progress)
	req.Len(events, 1)
	req.True(events[0].Complete)
	req.Zero(events[0].BytesReceived)
	req.Zero(events[0].TotalSize)

	// And an empty file exists
	info, err := os.Stat(filepath.Join(root, "empty.txt"))
	req.NoError(err)
	req.Zero(info.Size())
}

func TestReassembler_StreamEndsEarly(t *testing.T) {
	req := require.New(t)
	root := t.TempDir()
	reassembler, repository := newTestReassembler(t, root)

	var final domain.TransferRecord
	repository.EXPECT().Save(gomock.Any()).Return(nil)
	repository.EXPECT().Save(gomock.Any()).DoAndReturn(func(record domain.TransferRecord) error {
		final = record
		return nil
	})

	// Given a 3 MiB declared file of which only the first 2 chunks are sent
	path, _ := writeSource(t, "cut.bin", 3*domain.MB)
	chunks := chunksOf(t, path, domain.DefaultChunkSize)
	stream := &sliceStream{chunks: chunks[:2]}

	progress := make(chan domain.Progress, 4)
	state, err := reassembler.Reassemble(context.Background(), stream, progress)

	// Then the call succeeds but the transfer is aborted
	req.NoError(err)
	req.Equal(domain.Aborted, state)

	// And no complete event was ever emitted
	events := collect(progress)
	req.Len(events, 2)
	for _, event := range events {
		req.False(event.Complete)
	}
	req.Equal(uint64(2*domain.MB), events[1].BytesReceived)

	// And the partial file is left behind
	info, err := os.Stat(filepath.Join(root, "cut.bin"))
	req.NoError(err)
	req.Equal(int64(2*domain.MB), info.Size())
	req.Equal(domain.Aborted, final.State)
	req.Equal(uint64(2*domain.MB), final.BytesReceived)
}

func TestReassembler_MoreBytesThanDeclared(t *testing.T) {
	t.Run("Chunk crossing the declared size", func(t *testing.T) {
		req := require.New(t)
		root := t.TempDir()
		reassembler, repository := newTestReassembler(t, root)

		var saved []domain.TransferRecord
		repository.EXPECT().Save(gomock.Any()).DoAndReturn(func(record domain.TransferRecord) error {
			saved = append(saved, record)
			return nil
		}).Times(2)

		// Given 4 declared bytes but 6 sent
		stream := &sliceStream{chunks: []domain.Chunk{
			{FilePath: "f.bin", TotalSize: 4, Payload: []byte("abc"), Offset: 0, BytesSent: 3},
			{FilePath: "f.bin", TotalSize: 4, Payload: []byte("def"), Offset: 3, BytesSent: 6},
		}}
		progress := make(chan domain.Progress, 2)
		state, err := reassembler.Reassemble(context.Background(), stream, progress)

		// Then the transfer completes with a single complete event
		req.NoError(err)
		req.Equal(domain.Complete, state)
		events := collect(progress)
		req.Len(events, 2)
		req.False(events[0].Complete)
		req.True(events[1].Complete)
		req.Equal(uint64(6), events[1].BytesReceived)

		// And every byte sent reaches the disk
		stored, err := os.ReadFile(filepath.Join(root, "f.bin"))
		req.NoError(err)
		req.Equal("abcdef", string(stored))
		req.Equal(domain.Complete, saved[1].State)
		req.Equal(uint64(6), saved[1].BytesReceived)
	})

	t.Run("Chunks after completion", func(t *testing.T) {
		req := require.New(t)
		root := t.TempDir()
		reassembler, repository := newTestReassembler(t, root)
		repository.EXPECT().Save(gomock.Any()).Return(nil).Times(2)

		stream := &sliceStream{chunks: []domain.Chunk{
			{FilePath: "f.bin", TotalSize: 3, Payload: []byte("abc"), Offset: 0, BytesSent: 3},
			{FilePath: "f.bin", TotalSize: 3, Payload: []byte("de"), Offset: 3, BytesSent: 5},
		}}
		progress := make(chan domain.Progress, 2)
		state, err := reassembler.Reassemble(context.Background(), stream, progress)

		req.NoError(err)
		req.Equal(domain.Complete, state)
		events := collect(progress)
		req.Len(events, 1)
		req.True(events[0].Complete)

		stored, err := os.ReadFile(filepath.Join(root, "f.bin"))
		req.NoError(err)
		req.Equal("abcde", string(stored))
	})
}

func TestReassembler_EmptyStream(t *testing.T) {
	req := require.New(t)
	root := filepath.Join(t.TempDir(), "uploads")
	reassembler, _ := newTestReassembler(t, root)

	// Given a stream closed before any chunk
	progress := make(chan domain.Progress, 1)
	_, err := reassembler.Reassemble(context.Background(), &sliceStream{}, progress)

	// Then nothing is created nor journaled
	req.ErrorIs(err, errors.ErrEmptyTransfer)
	req.Empty(collect(progress))
	_, statErr := os.Stat(root)
	req.True(os.IsNotExist(statErr))
}

func TestReassembler_ReuploadOverwrites(t *testing.T) {
	req := require.New(t)
	root := t.TempDir()
	reassembler, repository := newTestReassembler(t, root)
	repository.EXPECT().Save(gomock.Any()).Return(nil).AnyTimes()

	// Given a first long upload of report.txt
	first := &sliceStream{chunks: []domain.Chunk{{FilePath: "a/report.txt", TotalSize: 12, Payload: []byte("first upload"), BytesSent: 12}}}
	_, err := reassembler.Reassemble(context.Background(), first, make(chan domain.Progress, 1))
	req.NoError(err)

	// When another file with the same base name is uploaded
	second := &sliceStream{chunks: []domain.Chunk{{FilePath: "b/report.txt", TotalSize: 3, Payload: []byte("new"), BytesSent: 3}}}
	state, err := reassembler.Reassemble(context.Background(), second, make(chan domain.Progress, 1))
	req.NoError(err)
	req.Equal(domain.Complete, state)

	// Then the last upload wins and no stale bytes remain
	stored, err := os.ReadFile(filepath.Join(root, "report.txt"))
	req.NoError(err)
	req.Equal("new", string(stored))
}

func TestReassembler_RejectsBrokenStreams(t *testing.T) {
	t.Run("Out of order chunk", func(t *testing.T) {
		req := require.New(t)
		reassembler, repository := newTestReassembler(t, t.TempDir())
		repository.EXPECT().Save(gomock.Any()).Return(nil).Times(2)

		stream := &sliceStream{chunks: []domain.Chunk{
			{FilePath: "f.bin", TotalSize: 6, Payload: []byte("abc"), Offset: 0, BytesSent: 3},
			{FilePath: "f.bin", TotalSize: 6, Payload: []byte("def"), Offset: 4, BytesSent: 7},
		}}
		progress := make(chan domain.Progress, 2)
		state, err := reassembler.Reassemble(context.Background(), stream, progress)

		req.ErrorIs(err, errors.ErrChunkOutOfOrder)
		req.Equal(domain.Aborted, state)
		req.Len(collect(progress), 1)
	})

	t.Run("Invalid first chunk", func(t *testing.T) {
		req := require.New(t)
		reassembler, _ := newTestReassembler(t, t.TempDir())

		stream := &sliceStream{chunks: []domain.Chunk{{TotalSize: 1, Payload: []byte("a")}}}
		_, err := reassembler.Reassemble(context.Background(), stream, make(chan domain.Progress, 1))
		req.ErrorIs(err, errors.ErrInvalidChunk)
	})

	t.Run("Name without base name", func(t *testing.T) {
		req := require.New(t)
		reassembler, _ := newTestReassembler(t, t.TempDir())

		stream := &sliceStream{chunks: []domain.Chunk{{FilePath: "../", TotalSize: 1, Payload: []byte("a")}}}
		_, err := reassembler.Reassemble(context.Background(), stream, make(chan domain.Progress, 1))
		req.ErrorIs(err, errors.ErrInvalidFileName)
	})

	t.Run("Transport failure mid stream", func(t *testing.T) {
		req := require.New(t)
		reassembler, repository := newTestReassembler(t, t.TempDir())
		repository.EXPECT().Save(gomock.Any()).Return(nil).Times(2)

		stream := &sliceStream{
			chunks: []domain.Chunk{{FilePath: "f.bin", TotalSize: 6, Payload: []byte("abc"), BytesSent: 3}},
			err:    fmt.Errorf("connection reset"),
		}
		state, err := reassembler.Reassemble(context.Background(), stream, make(chan domain.Progress, 2))
		req.Error(err)
		req.Contains(err.Error(), "connection reset")
		req.Equal(domain.Aborted, state)
	})
}

func TestReassembler_StorageFailures(t *testing.T) {
	t.Run("Unwritable root fails before any event", func(t *testing.T) {
		req := require.New(t)

		// Given a root whose parent is a regular file
		parent := filepath.Join(t.TempDir(), "file")
		req.NoError(os.WriteFile(parent, []byte("x"), 0o644))
		reassembler, _ := newTestReassembler(t, filepath.Join(parent, "uploads"))

		stream := &sliceStream{chunks: []domain.Chunk{{FilePath: "a.txt", TotalSize: 1, Payload: []byte("a"), BytesSent: 1}}}
		progress := make(chan domain.Progress, 1)
		_, err := reassembler.Reassemble(context.Background(), stream, progress)

		req.ErrorIs(err, errors.ErrStorageWrite)
		req.Empty(collect(progress))
	})

	t.Run("Write failure aborts", func(t *testing.T) {
		req := require.New(t)
		ctrl := gomock.NewController(t)
		root := mocks.NewMockIUploadRoot(ctrl)
		dest := mocks.NewMockDestination(ctrl)
		repository := mocks.NewMockITransferRepository(ctrl)
		log := slog.New(slog.NewTextHandler(io.Discard, nil))
		reassembler := NewReassembler(log, root, repository)

		root.EXPECT().Create("a.txt").Return(dest, "/uploads/a.txt", nil)
		dest.EXPECT().Write(gomock.Any()).Return(0, fmt.Errorf("no space left on device"))
		dest.EXPECT().Close().Return(nil)
		repository.EXPECT().Save(gomock.Any()).Return(nil).Times(2)

		stream := &sliceStream{chunks: []domain.Chunk{{FilePath: "a.txt", TotalSize: 1, Payload: []byte("a"), BytesSent: 1}}}
		progress := make(chan domain.Progress, 1)
		state, err := reassembler.Reassemble(context.Background(), stream, progress)

		req.ErrorIs(err, errors.ErrStorageWrite)
		req.Equal(domain.Aborted, state)
		req.Empty(collect(progress))
	})

	t.Run("Journal failure does not fail the transfer", func(t *testing.T) {
		req := require.New(t)
		reassembler, repository := newTestReassembler(t, t.TempDir())
		repository.EXPECT().Save(gomock.Any()).Return(fmt.Errorf("badger closed")).Times(2)

		stream := &sliceStream{chunks: []domain.Chunk{{FilePath: "a.txt", TotalSize: 1, Payload: []byte("a"), BytesSent: 1}}}
		state, err := reassembler.Reassemble(context.Background(), stream, make(chan domain.Progress, 1))
		req.NoError(err)
		req.Equal(domain.Complete, state)
	})
}

func TestReassembler_CancelledWhileBlockedOnProgress(t *testing.T) {
	req := require.New(t)
	reassembler, repository := newTestReassembler(t, t.TempDir())
	repository.EXPECT().Save(gomock.Any()).Return(nil).Times(2)

	// Given nobody reads progress and the call is cancelled
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	stream := &sliceStream{chunks: []domain.Chunk{{FilePath: "a.txt", TotalSize: 2, Payload: []byte("a"), BytesSent: 1}}}

	state, err := reassembler.Reassemble(ctx, stream, make(chan domain.Progress))
	req.ErrorIs(err, context.Canceled)
	req.Equal(domain.Aborted, state)
}

func TestReassembler_DetectsMimeType(t *testing.T) {
	req := require.New(t)
	reassembler, repository := newTestReassembler(t, t.TempDir())

	var first domain.TransferRecord
	repository.EXPECT().Save(gomock.Any()).DoAndReturn(func(record domain.TransferRecord) error {
		first = record
		return nil
	})
	repository.EXPECT().Save(gomock.Any()).Return(nil)

	payload := []byte("%PDF-1.7\n%\xe2\xe3\xcf\xd3\n")
	stream := &sliceStream{chunks: []domain.Chunk{{
		FilePath:  "paper.pdf",
		TotalSize: uint64(len(payload)),
		Payload:   payload,
		BytesSent: uint64(len(payload)),
	}}}
	_, err := reassembler.Reassemble(context.Background(), stream, make(chan domain.Progress, 1))
	req.NoError(err)
	req.Equal(mimetypes.ApplicationPDF, mimetypes.Essence(first.MimeType))
}
