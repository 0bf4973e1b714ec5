//go:generate go run go.uber.org/mock/mockgen -source=transfer_repository.go -destination=../../mocks/mock_transfer_repository.go -package=mocks
package storage

import (
	"cursed-archive/domain"
	"cursed-archive/errors"
	pb "cursed-archive/proto/archive"
	stderrors "errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/dgraph-io/badger/v4"
)

const transferPrefix = "transfer:"

// ITransferRepository keeps the journal of upload calls.
type ITransferRepository interface {
	Save(record domain.TransferRecord) error
	Get(id domain.FileID) (domain.TransferRecord, error)
	List(limit int) ([]domain.TransferRecord, error)
}

type TransferRepository struct {
	db        *badger.DB
	log       *slog.Logger
	retention time.Duration
}

// NewTransferRepository stores records for the given retention, zero keeps them forever.
func NewTransferRepository(db *badger.DB, log *slog.Logger, retention time.Duration) *TransferRepository {
	return &TransferRepository{
		db:        db,
		log:       log,
		retention: retention,
	}
}

// Save upserts the record under its transfer ID.
func (r TransferRepository) Save(record domain.TransferRecord) error {
	data := pb.Marshal(toPbTransferRecord(record))
	entry := badger.NewEntry(transferKey(record.ID), data)
	if r.retention > 0 {
		entry = entry.WithTTL(r.retention)
	}

	return r.db.Update(func(txn *badger.Txn) error {
		return txn.SetEntry(entry)
	})
}

func (r TransferRepository) Get(id domain.FileID) (domain.TransferRecord, error) {
	var record domain.TransferRecord
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(transferKey(id))
		if err != nil {
			return err
		}
		return item.Value(func(v []byte) error {
			var p pb.TransferRecord
			if err := pb.Unmarshal(v, &p); err != nil {
				return fmt.Errorf("failed to unmarshal transfer: %w", err)
			}
			record = fromPbTransferRecord(&p)
			return nil
		})
	})
	if stderrors.Is(err, badger.ErrKeyNotFound) {
		return domain.TransferRecord{}, fmt.Errorf("%w: %s", errors.ErrTransferNotFound, id)
	}
	return record, err
}

// List returns the most recently started transfers first.
func (r TransferRepository) List(limit int) ([]domain.TransferRecord, error) {
	var records []domain.TransferRecord
	prefix := []byte(transferPrefix)

	err := r.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(v []byte) error {
				var p pb.TransferRecord
				if err := pb.Unmarshal(v, &p); err != nil {
					r.log.Warn("Skipping unreadable transfer record", "key", string(it.Item().Key()), "error", err)
					return nil
				}
				records = append(records, fromPbTransferRecord(&p))
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("error during transfer listing: %w", err)
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].StartedAt.After(records[j].StartedAt)
	})
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}

func transferKey(id domain.FileID) []byte {
	return []byte(transferPrefix + string(id))
}

func toPbTransferRecord(r domain.TransferRecord) *pb.TransferRecord {
	return &pb.TransferRecord{
		Id:            string(r.ID),
		Name:          r.Name,
		OriginalPath:  r.OriginalPath,
		StoredPath:    r.StoredPath,
		TotalSize:     r.TotalSize,
		BytesReceived: r.BytesReceived,
		MimeType:      r.MimeType,
		State:         toPbTransferState(r.State),
		Error:         r.Error,
		StartedAt:     unixNano(r.StartedAt),
		EndedAt:       unixNano(r.EndedAt),
	}
}

func fromPbTransferRecord(p *pb.TransferRecord) domain.TransferRecord {
	return domain.TransferRecord{
		ID:            domain.FileID(p.Id),
		Name:          p.Name,
		OriginalPath:  p.OriginalPath,
		StoredPath:    p.StoredPath,
		TotalSize:     p.TotalSize,
		BytesReceived: p.BytesReceived,
		MimeType:      p.MimeType,
		State:         fromPbTransferState(p.State),
		Error:         p.Error,
		StartedAt:     fromUnixNano(p.StartedAt),
		EndedAt:       fromUnixNano(p.EndedAt),
	}
}

func toPbTransferState(state domain.TransferState) pb.TransferState {
	switch state {
	case domain.InProgress:
		return pb.TransferState_IN_PROGRESS
	case domain.Complete:
		return pb.TransferState_COMPLETE
	case domain.Aborted:
		return pb.TransferState_ABORTED
	default:
		return pb.TransferState_NOT_STARTED
	}
}

func fromPbTransferState(state pb.TransferState) domain.TransferState {
	switch state {
	case pb.TransferState_IN_PROGRESS:
		return domain.InProgress
	case pb.TransferState_COMPLETE:
		return domain.Complete
	case pb.TransferState_ABORTED:
		return domain.Aborted
	default:
		return domain.NotStarted
	}
}

func unixNano(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func fromUnixNano(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n).UTC()
}
