//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"context"
	"cursed-archive/domain"
	"io"
	"reflect"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// This is used for logging and supervision purposes during worker initialization
// or lifecycle events, avoiding the need for manual naming in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// ChunkSource is the pull side of the sender: Next returns io.EOF once the
// whole file has been produced.
type ChunkSource interface {
	Next() (domain.Chunk, error)
	Close() error
}

// ChunkStream is what the reassembler consumes, in arrival order.
// Recv returns io.EOF when the sender half-closes.
type ChunkStream interface {
	Recv() (domain.Chunk, error)
}

// Destination is the file being rebuilt. Only one goroutine writes to it.
type Destination interface {
	io.Writer
	Sync() error
	Close() error
}

type IUploadRoot interface {
	Dir() string
	Create(baseName string) (Destination, string, error)
}

// IReassembler rebuilds one file from a chunk stream and publishes progress
// on the given channel. It never closes the channel.
type IReassembler interface {
	Reassemble(ctx context.Context, stream ChunkStream, progress chan<- domain.Progress) (domain.TransferState, error)
}
