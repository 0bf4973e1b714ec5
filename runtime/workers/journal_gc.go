package workers

import (
	"context"
	stderrors "errors"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
)

const gcDiscardRatio = 0.5

// JournalGCWorker reclaims value log space left by expired transfer records.
type JournalGCWorker struct {
	log      *slog.Logger
	db       *badger.DB
	interval time.Duration
}

func NewJournalGCWorker(log *slog.Logger, db *badger.DB, interval time.Duration) *JournalGCWorker {
	return &JournalGCWorker{log: log, db: db, interval: interval}
}

func (w *JournalGCWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Context done, stopping journal GC")
			return nil
		case <-ticker.C:
			done, err := w.collect()
			if err != nil {
				return err
			}
			if done {
				return nil
			}
		}
	}
}

// collect rewrites value log files until badger reports nothing left to reclaim.
// It reports true when GC can never run on this DB.
func (w *JournalGCWorker) collect() (bool, error) {
	rewritten := 0
	for {
		err := w.db.RunValueLogGC(gcDiscardRatio)
		switch {
		case err == nil:
			rewritten++
		case stderrors.Is(err, badger.ErrNoRewrite), stderrors.Is(err, badger.ErrRejected):
			if rewritten > 0 {
				w.log.Info("Journal value log collected", "files", rewritten)
			}
			return false, nil
		case stderrors.Is(err, badger.ErrGCInMemoryMode):
			w.log.Debug("Journal is in memory, value log GC disabled")
			return true, nil
		default:
			return false, err
		}
	}
}
