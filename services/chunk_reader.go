package services

import (
	"cursed-archive/domain"
	"cursed-archive/errors"
	stderrors "errors"
	"fmt"
	"io"
	"os"
)

// ChunkReader produces the ordered chunk sequence of one source file.
// It is a pull-based, non-restartable iterator: Next returns io.EOF once the
// whole file has been produced.
type ChunkReader struct {
	file      *os.File
	path      string
	totalSize uint64
	buf       []byte
	offset    uint64
	started   bool
	done      bool
}

// OpenChunkReader opens the source and reads its size up front, the size
// travels on the first chunk.
func OpenChunkReader(path string, chunkSize int) (*ChunkReader, error) {
	if chunkSize <= 0 || chunkSize > domain.MaxChunkSize {
		return nil, fmt.Errorf("%w: %d (max %d)", errors.ErrInvalidChunkSize, chunkSize, domain.MaxChunkSize)
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrSourceUnavailable, err)
	}
	info, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("%w: %v", errors.ErrSourceUnavailable, err)
	}
	if !info.Mode().IsRegular() {
		_ = file.Close()
		return nil, fmt.Errorf("%w: %s is not a regular file", errors.ErrSourceUnavailable, path)
	}

	return &ChunkReader{
		file:      file,
		path:      path,
		totalSize: uint64(info.Size()),
		buf:       make([]byte, chunkSize),
	}, nil
}

func (r *ChunkReader) Path() string {
	return r.path
}

func (r *ChunkReader) TotalSize() uint64 {
	return r.totalSize
}

// Next reads the following block. Blocks are full except the last one.
// When the first read yields nothing (empty file) a single chunk with an empty
// payload is still produced so the receiver learns the identity.
func (r *ChunkReader) Next() (domain.Chunk, error) {
	if r.done {
		return domain.Chunk{}, io.EOF
	}

	n, err := io.ReadFull(r.file, r.buf)
	switch {
	case err == nil:
	case stderrors.Is(err, io.EOF), stderrors.Is(err, io.ErrUnexpectedEOF):
		r.done = true
	default:
		r.done = true
		return domain.Chunk{}, fmt.Errorf("%w: %s at offset %d: %v", errors.ErrSourceRead, r.path, r.offset, err)
	}

	if n == 0 && r.started {
		return domain.Chunk{}, io.EOF
	}
	r.started = true

	// The buffer is reused by the next read
	payload := make([]byte, n)
	copy(payload, r.buf[:n])

	chunk := domain.Chunk{
		FilePath:  r.path,
		TotalSize: r.totalSize,
		Payload:   payload,
		Offset:    r.offset,
		BytesSent: r.offset + uint64(n),
	}
	r.offset += uint64(n)
	return chunk, nil
}

func (r *ChunkReader) Close() error {
	return r.file.Close()
}
