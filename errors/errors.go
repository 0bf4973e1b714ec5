package errors

import "fmt"

var (
	ErrWorkerPanic = fmt.Errorf("worker panic")

	// Sender side
	ErrSourceUnavailable  = fmt.Errorf("source file unavailable")
	ErrSourceRead         = fmt.Errorf("source file read failed")
	ErrInvalidChunkSize   = fmt.Errorf("invalid chunk size")
	ErrTransferIncomplete = fmt.Errorf("progress stream ended without completion")

	// Receiver side
	ErrEmptyTransfer    = fmt.Errorf("empty stream: no chunk received")
	ErrInvalidChunk     = fmt.Errorf("invalid chunk")
	ErrInvalidFileName  = fmt.Errorf("invalid file name")
	ErrStorageWrite     = fmt.Errorf("storage write failed")
	ErrChunkOutOfOrder  = fmt.Errorf("chunk offset does not match bytes received")
	ErrTransferAborted  = fmt.Errorf("transfer already aborted")
	ErrTransferNotFound = fmt.Errorf("transfer not found")
)
