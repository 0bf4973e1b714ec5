package archive

import "google.golang.org/protobuf/encoding/protowire"

// FileChunk is one ordered block of a file. FilePath and TotalSize are only
// meaningful on the first chunk of a stream.
type FileChunk struct {
	FilePath  string
	TotalSize uint64
	ChunkData []byte
	Offset    uint64
	BytesSent uint64
}

func (m *FileChunk) GetFilePath() string {
	if m != nil {
		return m.FilePath
	}
	return ""
}

func (m *FileChunk) GetTotalSize() uint64 {
	if m != nil {
		return m.TotalSize
	}
	return 0
}

func (m *FileChunk) GetChunkData() []byte {
	if m != nil {
		return m.ChunkData
	}
	return nil
}

func (m *FileChunk) AppendWire(b []byte) []byte {
	b = appendString(b, 1, m.FilePath)
	b = appendUint(b, 2, m.TotalSize)
	b = appendBytes(b, 3, m.ChunkData)
	b = appendUint(b, 4, m.Offset)
	return appendUint(b, 5, m.BytesSent)
}

func (m *FileChunk) UnmarshalWire(b []byte) error {
	*m = FileChunk{}
	return walkFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return consumeString(typ, b, &m.FilePath)
		case 2:
			return consumeUint(typ, b, &m.TotalSize)
		case 3:
			return consumeBytes(typ, b, &m.ChunkData)
		case 4:
			return consumeUint(typ, b, &m.Offset)
		case 5:
			return consumeUint(typ, b, &m.BytesSent)
		}
		return 0, nil
	})
}

type FileInfo struct {
	Id              string
	Name            string
	OriginalPath    string
	StoredPath      string
	Size            int64
	Extension       string
	BaseName        string
	ParentDirectory string
}

func (m *FileInfo) GetName() string {
	if m != nil {
		return m.Name
	}
	return ""
}

func (m *FileInfo) AppendWire(b []byte) []byte {
	b = appendString(b, 1, m.Id)
	b = appendString(b, 2, m.Name)
	b = appendString(b, 3, m.OriginalPath)
	b = appendString(b, 4, m.StoredPath)
	b = appendInt(b, 5, m.Size)
	b = appendString(b, 6, m.Extension)
	b = appendString(b, 7, m.BaseName)
	return appendString(b, 8, m.ParentDirectory)
}

func (m *FileInfo) UnmarshalWire(b []byte) error {
	*m = FileInfo{}
	return walkFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return consumeString(typ, b, &m.Id)
		case 2:
			return consumeString(typ, b, &m.Name)
		case 3:
			return consumeString(typ, b, &m.OriginalPath)
		case 4:
			return consumeString(typ, b, &m.StoredPath)
		case 5:
			return consumeInt(typ, b, &m.Size)
		case 6:
			return consumeString(typ, b, &m.Extension)
		case 7:
			return consumeString(typ, b, &m.BaseName)
		case 8:
			return consumeString(typ, b, &m.ParentDirectory)
		}
		return 0, nil
	})
}

type UploadProgress struct {
	FileInfo      *FileInfo
	BytesReceived uint64
	TotalSize     uint64
	Complete      bool
}

func (m *UploadProgress) GetFileInfo() *FileInfo {
	if m != nil {
		return m.FileInfo
	}
	return nil
}

func (m *UploadProgress) AppendWire(b []byte) []byte {
	if m.FileInfo != nil {
		b = appendMessage(b, 1, m.FileInfo)
	}
	b = appendUint(b, 2, m.BytesReceived)
	b = appendUint(b, 3, m.TotalSize)
	return appendBool(b, 4, m.Complete)
}

func (m *UploadProgress) UnmarshalWire(b []byte) error {
	*m = UploadProgress{}
	return walkFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			info := &FileInfo{}
			n, err := consumeMessage(typ, b, info)
			if n > 0 {
				m.FileInfo = info
			}
			return n, err
		case 2:
			return consumeUint(typ, b, &m.BytesReceived)
		case 3:
			return consumeUint(typ, b, &m.TotalSize)
		case 4:
			return consumeBool(typ, b, &m.Complete)
		}
		return 0, nil
	})
}

type TransferState int32

const (
	TransferState_NOT_STARTED TransferState = 0
	TransferState_IN_PROGRESS TransferState = 1
	TransferState_COMPLETE    TransferState = 2
	TransferState_ABORTED     TransferState = 3
)

type TransferRecord struct {
	Id            string
	Name          string
	OriginalPath  string
	StoredPath    string
	TotalSize     uint64
	BytesReceived uint64
	MimeType      string
	State         TransferState
	Error         string
	StartedAt     int64
	EndedAt       int64
}

func (m *TransferRecord) AppendWire(b []byte) []byte {
	b = appendString(b, 1, m.Id)
	b = appendString(b, 2, m.Name)
	b = appendString(b, 3, m.OriginalPath)
	b = appendString(b, 4, m.StoredPath)
	b = appendUint(b, 5, m.TotalSize)
	b = appendUint(b, 6, m.BytesReceived)
	b = appendString(b, 7, m.MimeType)
	b = appendInt(b, 8, int64(m.State))
	b = appendString(b, 9, m.Error)
	b = appendInt(b, 10, m.StartedAt)
	return appendInt(b, 11, m.EndedAt)
}

func (m *TransferRecord) UnmarshalWire(b []byte) error {
	*m = TransferRecord{}
	return walkFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return consumeString(typ, b, &m.Id)
		case 2:
			return consumeString(typ, b, &m.Name)
		case 3:
			return consumeString(typ, b, &m.OriginalPath)
		case 4:
			return consumeString(typ, b, &m.StoredPath)
		case 5:
			return consumeUint(typ, b, &m.TotalSize)
		case 6:
			return consumeUint(typ, b, &m.BytesReceived)
		case 7:
			return consumeString(typ, b, &m.MimeType)
		case 8:
			var state int64
			n, err := consumeInt(typ, b, &state)
			m.State = TransferState(state)
			return n, err
		case 9:
			return consumeString(typ, b, &m.Error)
		case 10:
			return consumeInt(typ, b, &m.StartedAt)
		case 11:
			return consumeInt(typ, b, &m.EndedAt)
		}
		return 0, nil
	})
}
