package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/gophtour/internal/common"
	"github.com/dmitrijs2005/gophtour/internal/dbx"
	"github.com/dmitrijs2005/gophtour/internal/logging"
	"github.com/dmitrijs2005/gophtour/internal/server/models"
	"github.com/dmitrijs2005/gophtour/internal/server/repositories/links"
	"github.com/dmitrijs2005/gophtour/internal/server/repositories/repomanager"
)

// AttachItem is a staged upload an owner wants to keep.
type AttachItem struct {
	StagedUploadID string `json:"stagedUploadId"`
	Label          string `json:"label"`
	SortOrder      int    `json:"sortOrder"`
}

// UnlinkResult reports which links were dropped and which photos were
// collected as a consequence.
type UnlinkResult struct {
	Unlinked []string `json:"unlinked"`
	Deleted  []string `json:"deleted"`
}

// OwnerMediaService is the entry point for owner record flows (house and
// tour create, update, delete). Each call is one transaction.
type OwnerMediaService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	committer   *AssetCommitter
	collector   *OrphanCollector
	logger      logging.Logger
}

func NewOwnerMediaService(db *sql.DB, m repomanager.RepositoryManager, committer *AssetCommitter,
	collector *OrphanCollector, logger logging.Logger) *OwnerMediaService {
	return &OwnerMediaService{
		db:          db,
		repomanager: m,
		committer:   committer,
		collector:   collector,
		logger:      logger.With("module", "owner_media"),
	}
}

// Attach commits the staged uploads and links the resulting photos to owner.
func (s *OwnerMediaService) Attach(ctx context.Context, kind models.OwnerKind, ownerID string, items []AttachItem) ([]models.CommitResult, error) {
	commitItems := make([]models.CommitItem, len(items))
	for i, it := range items {
		commitItems[i] = models.CommitItem{
			StagedUploadID:    it.StagedUploadID,
			Label:             it.Label,
			SortOrder:         it.SortOrder,
			ExpectedOwnerKind: kind,
		}
	}

	var (
		results []models.CommitResult
		comp    *Compensation
	)
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo, err := s.repomanager.Links(tx, kind)
		if err != nil {
			return err
		}
		results, comp, err = s.committer.CommitTx(ctx, tx, commitItems)
		if err != nil {
			return err
		}
		for _, r := range results {
			if _, err := repo.AddLink(ctx, ownerID, r.PhotoID, r.Label, r.SortOrder); err != nil {
				return fmt.Errorf("error linking photo: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		comp.Undo(ctx)
		return nil, err
	}
	return results, nil
}

// Unlink removes one link and collects the photo if nothing references it.
func (s *OwnerMediaService) Unlink(ctx context.Context, kind models.OwnerKind, ownerID, photoID string) (*UnlinkResult, error) {
	return s.UnlinkMany(ctx, kind, ownerID, []string{photoID})
}

// UnlinkMany removes several links of one owner, then runs one batched
// collection for all of them.
func (s *OwnerMediaService) UnlinkMany(ctx context.Context, kind models.OwnerKind, ownerID string, photoIDs []string) (*UnlinkResult, error) {
	return s.unlink(ctx, kind, func(ctx context.Context, repo links.Repository) ([]string, []string, error) {
		ids := uniqueIDs(photoIDs)
		unlinked := make([]string, 0, len(ids))
		for _, id := range ids {
			if !validUUID(id) {
				continue
			}
			removed, err := repo.RemoveLink(ctx, ownerID, id)
			if err != nil {
				return nil, nil, fmt.Errorf("error removing link: %w", err)
			}
			if removed {
				unlinked = append(unlinked, id)
			}
		}
		return unlinked, ids, nil
	})
}

// DeleteOwner drops every link of ownerID and collects the photos it held.
func (s *OwnerMediaService) DeleteOwner(ctx context.Context, kind models.OwnerKind, ownerID string) (*UnlinkResult, error) {
	return s.unlink(ctx, kind, func(ctx context.Context, repo links.Repository) ([]string, []string, error) {
		ids, err := repo.ListPhotoIDsForOwner(ctx, ownerID)
		if err != nil {
			return nil, nil, err
		}
		if _, err := repo.RemoveAllForOwner(ctx, ownerID); err != nil {
			return nil, nil, err
		}
		return ids, ids, nil
	})
}

type unlinkFunc func(ctx context.Context, repo links.Repository) (unlinked, candidates []string, err error)

func (s *OwnerMediaService) unlink(ctx context.Context, kind models.OwnerKind, fn unlinkFunc) (*UnlinkResult, error) {
	start := time.Now()

	var (
		unlinked []string
		deleted  []*models.Photo
	)
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo, err := s.repomanager.Links(tx, kind)
		if err != nil {
			return err
		}
		var candidates []string
		unlinked, candidates, err = fn(ctx, repo)
		if err != nil {
			return err
		}
		deleted, err = s.collector.CollectTx(ctx, tx, candidates)
		return err
	})
	s.collector.metrics.RecordCollect(len(deleted), time.Since(start), err)
	if err != nil {
		return nil, err
	}

	s.collector.ReclaimFiles(ctx, deleted)
	if unlinked == nil {
		unlinked = []string{}
	}
	return &UnlinkResult{Unlinked: unlinked, Deleted: photoIDs(deleted)}, nil
}

// ListByOwners returns the photos of each owner ordered by sort order.
func (s *OwnerMediaService) ListByOwners(ctx context.Context, kind models.OwnerKind, ownerIDs []string) (map[string][]models.LinkedPhoto, error) {
	repo, err := s.repomanager.Links(s.db, kind)
	if err != nil {
		return nil, err
	}
	return repo.ListByOwners(ctx, uniqueIDs(ownerIDs))
}

// Photo returns committed photo metadata or common.ErrorNotFound.
func (s *OwnerMediaService) Photo(ctx context.Context, id string) (*models.Photo, error) {
	if !validUUID(id) {
		return nil, common.ErrorNotFound
	}
	p, err := s.repomanager.Photos(s.db).GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("error getting photo: %w", err)
	}
	return p, nil
}
