package main

import (
	"bytes"
	"io"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"testing"

	"cursed-archive/domain"
	"cursed-archive/infrastructure/grpc/server"
	journal "cursed-archive/infrastructure/storage"
	pb "cursed-archive/proto/archive"
	"cursed-archive/services"
	"cursed-archive/storage"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
)

// startServer listens on a random local port and stores uploads under the returned root
func startServer(t *testing.T) (string, string) {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	db, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLogger(nil))
	require.NoError(t, err)

	root := filepath.Join(t.TempDir(), "uploads")
	reassembler := services.NewReassembler(log, storage.NewUploadRoot(root), journal.NewTransferRepository(db, log, 0))

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	s := grpc.NewServer()
	pb.RegisterFileInjectServiceServer(s, server.NewFileInjectServer(log, reassembler, domain.DefaultProgressBufferSize))
	go func() {
		_ = s.Serve(listener)
	}()
	t.Cleanup(func() {
		s.Stop()
		_ = db.Close()
	})
	return listener.Addr().String(), root
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := newRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	err := cmd.Execute()
	return stdout.String(), err
}

func TestInjest_UploadsEveryFile(t *testing.T) {
	req := require.New(t)
	address, root := startServer(t)

	dir := t.TempDir()
	first := filepath.Join(dir, "first.txt")
	second := filepath.Join(dir, "second.bin")
	req.NoError(os.WriteFile(first, []byte("hello archive"), 0o644))
	req.NoError(os.WriteFile(second, bytes.Repeat([]byte{7}, 3000), 0o644))

	// Given a chunk size of 1 KiB, the second file needs 3 chunks
	out, err := execute(t, "--server", address, "--files", first+","+second, "--chunk-size-kb", "1", "--no-progress")

	req.NoError(err)
	req.Contains(out, "2 file(s), 0 failed, 3013 bytes acknowledged")

	stored, err := os.ReadFile(filepath.Join(root, "second.bin"))
	req.NoError(err)
	req.Len(stored, 3000)
}

func TestInjest_PositionalFilesAndFailures(t *testing.T) {
	req := require.New(t)
	address, _ := startServer(t)

	dir := t.TempDir()
	present := filepath.Join(dir, "present.txt")
	req.NoError(os.WriteFile(present, []byte("x"), 0o644))

	out, err := execute(t, "--server", address, "--no-progress", present, filepath.Join(dir, "missing.txt"))

	req.Error(err)
	req.Contains(err.Error(), "1 of 2 upload(s) failed")
	req.Contains(out, "OK")
	req.Contains(out, "FAILED")
}

func TestInjest_Validation(t *testing.T) {
	t.Run("No file", func(t *testing.T) {
		_, err := execute(t, "--server", "127.0.0.1:1")
		require.ErrorContains(t, err, "at least one file")
	})

	t.Run("Chunk size above the maximum", func(t *testing.T) {
		_, err := execute(t, "--chunk-size-kb", "4096", "a.txt")
		require.ErrorContains(t, err, "--chunk-size-kb")
	})

	t.Run("Chunk size from the environment", func(t *testing.T) {
		t.Setenv("INJEST_CHUNK_SIZE_KB", "0")
		_, err := execute(t, "a.txt")
		require.ErrorContains(t, err, "--chunk-size-kb")
	})
}
