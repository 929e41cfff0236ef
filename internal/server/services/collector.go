package services

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dmitrijs2005/gophtour/internal/dbx"
	"github.com/dmitrijs2005/gophtour/internal/logging"
	"github.com/dmitrijs2005/gophtour/internal/server/metrics"
	"github.com/dmitrijs2005/gophtour/internal/server/models"
	"github.com/dmitrijs2005/gophtour/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/gophtour/internal/server/storage"
)

// OrphanCollector deletes photos that no owner of any kind links to.
type OrphanCollector struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	store       storage.Store
	kinds       []models.OwnerKind
	logger      logging.Logger
	metrics     metrics.Observer
}

func NewOrphanCollector(db *sql.DB, m repomanager.RepositoryManager, store storage.Store, layout *models.Layout,
	logger logging.Logger, obs metrics.Observer) *OrphanCollector {
	if obs == nil {
		obs = metrics.Nop()
	}
	return &OrphanCollector{
		db:          db,
		repomanager: m,
		store:       store,
		kinds:       layout.Kinds(),
		logger:      logger.With("module", "orphan_collector"),
		metrics:     obs,
	}
}

// CleanupOrphanedAssets deletes every candidate that is referenced by no
// owner link and returns the ids actually deleted. Files are removed after
// the metadata commit; a failed file removal is logged and skipped.
func (c *OrphanCollector) CleanupOrphanedAssets(ctx context.Context, ids []string) ([]string, error) {
	start := time.Now()

	var deleted []*models.Photo
	err := dbx.WithTx(ctx, c.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		var err error
		deleted, err = c.CollectTx(ctx, tx, ids)
		return err
	})
	c.metrics.RecordCollect(len(deleted), time.Since(start), err)
	if err != nil {
		return nil, err
	}

	c.ReclaimFiles(ctx, deleted)
	return photoIDs(deleted), nil
}

// CollectTx deletes unreferenced candidate rows inside tx and returns them.
// Candidate photo rows are locked first so a concurrent link insert, which
// needs a key-share lock on the referenced photo, waits for this transaction.
// Callers must pass the result to ReclaimFiles after committing.
func (c *OrphanCollector) CollectTx(ctx context.Context, tx dbx.DBTX, ids []string) ([]*models.Photo, error) {
	candidates := make([]string, 0, len(ids))
	for _, id := range uniqueIDs(ids) {
		if validUUID(id) {
			candidates = append(candidates, id)
		}
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	photoRepo := c.repomanager.Photos(tx)
	locked, err := photoRepo.LockByIDs(ctx, candidates)
	if err != nil {
		return nil, fmt.Errorf("error locking photos: %w", err)
	}
	if len(locked) == 0 {
		return nil, nil
	}

	byID := make(map[string]*models.Photo, len(locked))
	lockedIDs := make([]string, 0, len(locked))
	for _, p := range locked {
		byID[p.ID] = p
		lockedIDs = append(lockedIDs, p.ID)
	}

	for _, kind := range c.kinds {
		repo, err := c.repomanager.Links(tx, kind)
		if err != nil {
			return nil, err
		}
		referenced, err := repo.FilterReferenced(ctx, lockedIDs)
		if err != nil {
			return nil, fmt.Errorf("error checking %s links: %w", kind, err)
		}
		for id := range referenced {
			delete(byID, id)
		}
	}

	orphans := make([]string, 0, len(byID))
	for _, id := range candidates {
		if _, ok := byID[id]; ok {
			orphans = append(orphans, id)
		}
	}
	if len(orphans) == 0 {
		return nil, nil
	}

	removed, err := photoRepo.DeleteByIDs(ctx, orphans)
	if err != nil {
		return nil, fmt.Errorf("error deleting photos: %w", err)
	}
	gone := make(map[string]struct{}, len(removed))
	for _, id := range removed {
		gone[id] = struct{}{}
	}

	out := make([]*models.Photo, 0, len(removed))
	for _, id := range orphans {
		if _, ok := gone[id]; ok {
			out = append(out, byID[id])
		}
	}
	return out, nil
}

// ReclaimFiles best-effort deletes the permanent files of deleted photos.
func (c *OrphanCollector) ReclaimFiles(ctx context.Context, deleted []*models.Photo) {
	ctx = context.WithoutCancel(ctx)
	for _, p := range deleted {
		if err := c.store.Remove(ctx, p.PermanentPath); err != nil {
			c.logger.Warn(ctx, "failed to delete photo file", "photo_id", p.ID, "path", p.PermanentPath, "error", err)
			c.metrics.RecordFileDeleteFailure("collect")
			continue
		}
		c.logger.Debug(ctx, "photo collected", "photo_id", p.ID)
	}
}

func photoIDs(photos []*models.Photo) []string {
	ids := make([]string, 0, len(photos))
	for _, p := range photos {
		ids = append(ids, p.ID)
	}
	return ids
}
