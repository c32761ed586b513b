package workers

import (
	"context"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// BadgerGCWorker periodically reclaims space in the value log. Badger never
// runs value-log GC on its own, so without this worker the store only
// grows.
type BadgerGCWorker struct {
	log      *slog.Logger
	db       *badger.DB
	interval time.Duration
}

func NewBadgerGCWorker(log *slog.Logger, db *badger.DB, interval time.Duration) *BadgerGCWorker {
	return &BadgerGCWorker{log: log, db: db, interval: interval}
}

func (w *BadgerGCWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			// RunValueLogGC rewrites at most one file per call; loop until
			// there is nothing left to reclaim.
			for {
				if err := w.db.RunValueLogGC(0.5); err != nil {
					break
				}
				w.log.Debug("Badger value log file reclaimed")
			}
		}
	}
}
