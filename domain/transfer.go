package domain

import (
	"path"
	"strings"
	"time"

	"cursed-archive/errors"
)

const KB = 1024
const MB = KB * KB

const (
	DefaultChunkSize          = 1 * MB
	MaxChunkSize              = 3 * MB
	DefaultProgressBufferSize = 128
)

type FileID string

// FileIdentity is derived once per transfer, from the first chunk only.
// Size is the size declared by the sender, never the bytes actually received.
type FileIdentity struct {
	ID              FileID
	Name            string
	OriginalPath    string
	StoredPath      string
	Size            uint64
	Extension       string
	BaseName        string
	ParentDirectory string
}

// Chunk is the unit of transfer. FilePath and TotalSize repeat on every chunk
// but only the first one is read by the receiver.
type Chunk struct {
	FilePath  string `validate:"required,max=4096"`
	TotalSize uint64
	Payload   []byte
	Offset    uint64
	BytesSent uint64
}

// Progress is what the receiver reports back after writing chunks.
type Progress struct {
	Identity      FileIdentity
	BytesReceived uint64
	TotalSize     uint64
	Complete      bool
}

// Percent is meant for display, an empty file counts as fully received.
func (p Progress) Percent() float64 {
	if p.TotalSize == 0 {
		return 100
	}
	return float64(p.BytesReceived) / float64(p.TotalSize) * 100
}

// NewFileIdentity splits the path declared by the sender. Both '/' and '\'
// separators are accepted since the sender may run on another OS.
func NewFileIdentity(declaredPath string, totalSize uint64) (FileIdentity, error) {
	normalized := strings.ReplaceAll(declaredPath, `\`, "/")
	trimmed := strings.TrimRight(normalized, "/")
	base := path.Base(trimmed)
	if trimmed == "" || base == "." || base == ".." || base == "/" {
		return FileIdentity{}, errors.ErrInvalidFileName
	}

	parent := ""
	if i := strings.LastIndex(trimmed, "/"); i >= 0 {
		parent = trimmed[:i]
		if parent == "" {
			parent = "/"
		}
	}

	return FileIdentity{
		Name:            base,
		OriginalPath:    declaredPath,
		Size:            totalSize,
		Extension:       extension(base),
		BaseName:        base,
		ParentDirectory: parent,
	}, nil
}

// extension mirrors the usual "file stem / extension" split: a leading dot
// belongs to the name (".bashrc" has none).
func extension(base string) string {
	i := strings.LastIndex(base, ".")
	if i <= 0 || i == len(base)-1 {
		return ""
	}
	return base[i+1:]
}

type TransferState int

const (
	NotStarted TransferState = iota
	InProgress
	Complete
	Aborted
)

func (s TransferState) String() string {
	switch s {
	case NotStarted:
		return "not_started"
	case InProgress:
		return "in_progress"
	case Complete:
		return "complete"
	case Aborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// TransferRecord is the journal entry kept for every upload call.
// It is history only, nothing reads it back to resume a transfer.
type TransferRecord struct {
	ID            FileID
	Name          string
	OriginalPath  string
	StoredPath    string
	TotalSize     uint64
	BytesReceived uint64
	MimeType      string
	State         TransferState
	Error         string
	StartedAt     time.Time
	EndedAt       time.Time
}
