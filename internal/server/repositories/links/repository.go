package links

import (
	"context"

	"github.com/dmitrijs2005/gophtour/internal/server/models"
)

// Repository manages owner links for one owner kind.
type Repository interface {
	Kind() models.OwnerKind
	// AddLink is idempotent and reports whether a new row was inserted.
	AddLink(ctx context.Context, ownerID, photoID, label string, sortOrder int) (bool, error)
	RemoveLink(ctx context.Context, ownerID, photoID string) (bool, error)
	LinkExists(ctx context.Context, ownerID, photoID string) (bool, error)
	// ListByOwners returns every requested owner, each with its photos
	// ordered by sort order.
	ListByOwners(ctx context.Context, ownerIDs []string) (map[string][]models.LinkedPhoto, error)
	ListPhotoIDsForOwner(ctx context.Context, ownerID string) ([]string, error)
	// FilterReferenced returns the subset of photoIDs linked to any owner.
	FilterReferenced(ctx context.Context, photoIDs []string) (map[string]struct{}, error)
	RemoveAllForOwner(ctx context.Context, ownerID string) (int, error)
}
