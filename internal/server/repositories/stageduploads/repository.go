package stageduploads

import (
	"context"
	"time"

	"github.com/dmitrijs2005/gophtour/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, s *models.StagedUpload) error
	GetByID(ctx context.Context, id string) (*models.StagedUpload, error)
	// GetByIDs returns the rows that exist; missing ids are simply absent.
	GetByIDs(ctx context.Context, ids []string) ([]*models.StagedUpload, error)
	// Claim deletes the row and reports whether this call removed it.
	Claim(ctx context.Context, id string) (bool, error)
	// DeleteExpired removes at most limit rows with expires_at before now
	// and returns what was removed.
	DeleteExpired(ctx context.Context, now time.Time, limit int) ([]*models.StagedUpload, error)
}
