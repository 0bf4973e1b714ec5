package storage

import (
	"fmt"

	"cursed-archive/domain/mimetypes"
	pb "cursed-archive/proto/archive"

	"github.com/mama165/sdk-go/database"
)

// TransferPrefix is the key prefix to browse in the badger inspector.
const TransferPrefix = transferPrefix

// TransferMapper renders a journaled transfer as a row of the badger inspector.
func TransferMapper(key string, val []byte) database.InspectRow {
	row := database.DefaultMapper(key, val)

	var p pb.TransferRecord
	if err := pb.Unmarshal(val, &p); err != nil {
		row.Detail = "Error: unmarshal failed"
		return row
	}
	record := fromPbTransferRecord(&p)

	row.Type = record.State.String()
	var mt mimetypes.MIME
	if record.MimeType != "" {
		mt = mimetypes.Essence(record.MimeType)
	}
	row.Detail = fmt.Sprintf("%s %d/%d bytes %s", record.Name, record.BytesReceived, record.TotalSize, mt)
	if record.Error != "" {
		row.Detail += " (" + record.Error + ")"
	}
	return row
}
