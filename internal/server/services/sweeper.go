package services

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dmitrijs2005/gophtour/internal/logging"
	"github.com/dmitrijs2005/gophtour/internal/server/metrics"
	"github.com/dmitrijs2005/gophtour/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/gophtour/internal/server/storage"
)

const DefaultSweepBatchSize = 256

// ExpiredUploadSweeper reaps staged uploads that expired without a commit,
// together with their temp files.
type ExpiredUploadSweeper struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	store       storage.Store
	batchSize   int
	logger      logging.Logger
	metrics     metrics.Observer
	now         func() time.Time
}

func NewExpiredUploadSweeper(db *sql.DB, m repomanager.RepositoryManager, store storage.Store, batchSize int,
	logger logging.Logger, obs metrics.Observer) *ExpiredUploadSweeper {
	if batchSize <= 0 {
		batchSize = DefaultSweepBatchSize
	}
	if obs == nil {
		obs = metrics.Nop()
	}
	return &ExpiredUploadSweeper{
		db:          db,
		repomanager: m,
		store:       store,
		batchSize:   batchSize,
		logger:      logger.With("module", "sweeper"),
		metrics:     obs,
		now:         time.Now,
	}
}

// Sweep executes a single pass and returns the number of rows reaped.
// Rows are deleted before their files; a file that cannot be removed is
// logged and left behind.
func (s *ExpiredUploadSweeper) Sweep(ctx context.Context) (int, error) {
	expired, err := s.repomanager.StagedUploads(s.db).DeleteExpired(ctx, s.now().UTC(), s.batchSize)
	if err != nil {
		s.metrics.RecordSweep(0, err)
		return 0, fmt.Errorf("error deleting expired uploads: %w", err)
	}

	for _, rec := range expired {
		if err := s.store.Remove(ctx, rec.TempRelativePath); err != nil {
			s.logger.Warn(ctx, "failed to delete expired temp file", "staged_upload_id", rec.ID, "path", rec.TempRelativePath, "error", err)
			s.metrics.RecordFileDeleteFailure("sweep")
		}
	}

	s.metrics.RecordSweep(len(expired), nil)
	if len(expired) > 0 {
		s.logger.Info(ctx, "expired uploads reaped", "count", len(expired))
	}
	return len(expired), nil
}
