package services

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/gophtour/internal/common"
	"github.com/dmitrijs2005/gophtour/internal/dbx"
	"github.com/dmitrijs2005/gophtour/internal/logging"
	"github.com/dmitrijs2005/gophtour/internal/server/metrics"
	"github.com/dmitrijs2005/gophtour/internal/server/models"
	"github.com/dmitrijs2005/gophtour/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/gophtour/internal/server/storage"
)

// AssetCommitter promotes staged uploads into permanent photos.
//
// Every item is validated before any file is touched. Staged rows are then
// claimed with a conditional delete, photo rows are inserted and only then
// are files moved. Moves that happened before a later failure are reverted
// through Compensation.
type AssetCommitter struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	store       storage.Store
	layout      *models.Layout
	logger      logging.Logger
	metrics     metrics.Observer
	now         func() time.Time
}

func NewAssetCommitter(db *sql.DB, m repomanager.RepositoryManager, store storage.Store, layout *models.Layout,
	logger logging.Logger, obs metrics.Observer) *AssetCommitter {
	if obs == nil {
		obs = metrics.Nop()
	}
	return &AssetCommitter{
		db:          db,
		repomanager: m,
		store:       store,
		layout:      layout,
		logger:      logger.With("module", "asset_committer"),
		metrics:     obs,
		now:         time.Now,
	}
}

type fileMove struct {
	from string
	to   string
}

// Compensation reverts the file moves of a commit whose transaction did not
// make it to the database.
type Compensation struct {
	store  storage.Store
	logger logging.Logger
	moves  []fileMove
}

// Undo moves every file back to its temp path. When that fails the moved
// file is deleted so no permanent file is left without a photo row.
func (c *Compensation) Undo(ctx context.Context) {
	if c == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)
	for i := len(c.moves) - 1; i >= 0; i-- {
		m := c.moves[i]
		err := c.store.Move(ctx, m.to, m.from)
		if err == nil {
			continue
		}
		c.logger.Warn(ctx, "failed to move file back, deleting it", "path", m.to, "error", err)
		if err := c.store.Remove(ctx, m.to); err != nil {
			c.logger.Error(ctx, "failed to delete uncommitted file", "path", m.to, "error", err)
		}
	}
	c.moves = nil
}

// Commit runs CommitTx in its own transaction.
func (c *AssetCommitter) Commit(ctx context.Context, items []models.CommitItem) ([]models.CommitResult, error) {
	start := time.Now()

	var (
		results []models.CommitResult
		comp    *Compensation
	)
	err := dbx.WithTx(ctx, c.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		var err error
		results, comp, err = c.CommitTx(ctx, tx, items)
		return err
	})
	c.metrics.RecordCommit(len(items), time.Since(start), err)
	if err != nil {
		comp.Undo(ctx)
		return nil, err
	}
	return results, nil
}

// CommitTx performs the commit inside the caller's transaction. On success
// the caller owns the returned Compensation and must call Undo if the
// transaction is not committed. On error nothing is left moved.
func (c *AssetCommitter) CommitTx(ctx context.Context, tx dbx.DBTX, items []models.CommitItem) ([]models.CommitResult, *Compensation, error) {
	comp := &Compensation{store: c.store, logger: c.logger}
	if len(items) == 0 {
		return []models.CommitResult{}, comp, nil
	}

	staged, err := c.load(ctx, tx, items)
	if err != nil {
		return nil, nil, err
	}

	now := c.now()
	photos := make([]*models.Photo, len(items))
	for i, item := range items {
		rec := staged[item.StagedUploadID]
		p, err := c.validate(ctx, item, rec, now)
		if err != nil {
			return nil, nil, err
		}
		photos[i] = p
	}

	stagedRepo := c.repomanager.StagedUploads(tx)
	for _, item := range items {
		won, err := stagedRepo.Claim(ctx, item.StagedUploadID)
		if err != nil {
			return nil, nil, fmt.Errorf("error claiming staged upload: %w", err)
		}
		if !won {
			return nil, nil, fmt.Errorf("%w: staged upload %s was already committed", common.ErrorNotFound, item.StagedUploadID)
		}
	}

	photoRepo := c.repomanager.Photos(tx)
	for _, p := range photos {
		if err := photoRepo.Create(ctx, p); err != nil {
			return nil, nil, fmt.Errorf("error saving photo: %w", err)
		}
	}

	results := make([]models.CommitResult, len(items))
	for i, item := range items {
		rec := staged[item.StagedUploadID]
		if err := c.store.Move(ctx, rec.TempRelativePath, photos[i].PermanentPath); err != nil {
			comp.Undo(ctx)
			return nil, nil, fmt.Errorf("error moving %s: %w", rec.TempRelativePath, err)
		}
		comp.moves = append(comp.moves, fileMove{from: rec.TempRelativePath, to: photos[i].PermanentPath})

		results[i] = models.CommitResult{
			PhotoID:       photos[i].ID,
			Label:         item.Label,
			SortOrder:     item.SortOrder,
			PermanentPath: photos[i].PermanentPath,
			OwnerKind:     rec.OwnerKind,
		}
		c.logger.Debug(ctx, "photo committed", "photo_id", photos[i].ID, "staged_upload_id", rec.ID)
	}

	return results, comp, nil
}

// load fetches every staged row of the batch and fails naming all ids that
// do not exist.
func (c *AssetCommitter) load(ctx context.Context, tx dbx.DBTX, items []models.CommitItem) (map[string]*models.StagedUpload, error) {
	ids := make([]string, 0, len(items))
	seen := make(map[string]struct{}, len(items))
	for _, item := range items {
		if _, dup := seen[item.StagedUploadID]; dup {
			return nil, fmt.Errorf("%w: staged upload %s listed twice", common.ErrValidation, item.StagedUploadID)
		}
		seen[item.StagedUploadID] = struct{}{}
		if validUUID(item.StagedUploadID) {
			ids = append(ids, item.StagedUploadID)
		}
	}

	rows, err := c.repomanager.StagedUploads(tx).GetByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("error loading staged uploads: %w", err)
	}
	byID := make(map[string]*models.StagedUpload, len(rows))
	for _, r := range rows {
		byID[r.ID] = r
	}

	var missing []string
	for _, item := range items {
		if _, ok := byID[item.StagedUploadID]; !ok {
			missing = append(missing, item.StagedUploadID)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: staged uploads %s", common.ErrorNotFound, strings.Join(missing, ", "))
	}
	return byID, nil
}

func (c *AssetCommitter) validate(ctx context.Context, item models.CommitItem, rec *models.StagedUpload, now time.Time) (*models.Photo, error) {
	if rec.OwnerKind != item.ExpectedOwnerKind {
		return nil, fmt.Errorf("%w: staged upload %s belongs to %s, not %s",
			common.ErrOwnerKindMismatch, rec.ID, rec.OwnerKind, item.ExpectedOwnerKind)
	}
	if rec.Expired(now) {
		return nil, fmt.Errorf("%w: staged upload %s expired at %s",
			common.ErrStagedUploadExpired, rec.ID, rec.ExpiresAt.Format(time.RFC3339))
	}
	ok, err := c.store.Exists(ctx, rec.TempRelativePath)
	if err != nil {
		return nil, fmt.Errorf("error checking temp file: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", common.ErrTempFileMissing, rec.TempRelativePath)
	}

	dst, err := c.layout.PermanentPath(rec.OwnerKind, rec.GeneratedName)
	if err != nil {
		return nil, err
	}
	return &models.Photo{
		ID:               newID(),
		GeneratedName:    rec.GeneratedName,
		PermanentPath:    dst,
		ContentType:      rec.ContentType,
		FileSize:         rec.FileSize,
		OriginalFileName: rec.OriginalFileName,
		CreatedAt:        now.UTC(),
		UploaderID:       rec.UploaderID,
	}, nil
}
