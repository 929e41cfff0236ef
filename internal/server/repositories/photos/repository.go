package photos

import (
	"context"

	"github.com/dmitrijs2005/gophtour/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, p *models.Photo) error
	GetByID(ctx context.Context, id string) (*models.Photo, error)
	// LockByIDs loads the existing photos among ids and row-locks them until
	// the surrounding transaction ends.
	LockByIDs(ctx context.Context, ids []string) ([]*models.Photo, error)
	// DeleteByIDs removes the rows in one statement and returns the deleted ids.
	DeleteByIDs(ctx context.Context, ids []string) ([]string, error)
}
