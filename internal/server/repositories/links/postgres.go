// Package links stores the many-to-many association between owner records
// and photos. A single implementation serves every owner kind; the kind only
// selects the join table.
package links

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/gophtour/internal/common"
	"github.com/dmitrijs2005/gophtour/internal/dbx"
	"github.com/dmitrijs2005/gophtour/internal/server/models"
)

var tables = map[models.OwnerKind]string{
	models.OwnerKindHouse: "house_photos",
	models.OwnerKindTour:  "tour_photos",
}

// TableFor returns the join table of kind.
func TableFor(kind models.OwnerKind) (string, error) {
	t, ok := tables[kind]
	if !ok {
		return "", fmt.Errorf("%w: %q", common.ErrUnknownOwnerKind, kind)
	}
	return t, nil
}

type PostgresRepository struct {
	db    dbx.DBTX
	kind  models.OwnerKind
	table string
}

func NewPostgresRepository(db dbx.DBTX, kind models.OwnerKind) (*PostgresRepository, error) {
	table, err := TableFor(kind)
	if err != nil {
		return nil, err
	}
	return &PostgresRepository{db: db, kind: kind, table: table}, nil
}

func (r *PostgresRepository) Kind() models.OwnerKind { return r.kind }

func (r *PostgresRepository) AddLink(ctx context.Context, ownerID, photoID, label string, sortOrder int) (bool, error) {
	query :=
		`INSERT INTO ` + r.table + ` (owner_id, photo_id, label, sort_order, created_at)
		 VALUES ($1, $2, $3, $4, now())
		 ON CONFLICT (owner_id, photo_id) DO NOTHING`

	res, err := r.db.ExecContext(ctx, query, ownerID, photoID, label, sortOrder)
	if err != nil {
		return false, fmt.Errorf("failed to add %s link: %w", r.kind, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to add %s link: %w", r.kind, err)
	}
	return n > 0, nil
}

func (r *PostgresRepository) RemoveLink(ctx context.Context, ownerID, photoID string) (bool, error) {
	query := `DELETE FROM ` + r.table + ` WHERE owner_id = $1 AND photo_id = $2`

	res, err := r.db.ExecContext(ctx, query, ownerID, photoID)
	if err != nil {
		return false, fmt.Errorf("failed to remove %s link: %w", r.kind, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to remove %s link: %w", r.kind, err)
	}
	return n > 0, nil
}

func (r *PostgresRepository) LinkExists(ctx context.Context, ownerID, photoID string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM ` + r.table + ` WHERE owner_id = $1 AND photo_id = $2)`

	var ok bool
	if err := r.db.QueryRowContext(ctx, query, ownerID, photoID).Scan(&ok); err != nil {
		return false, fmt.Errorf("failed to check %s link: %w", r.kind, err)
	}
	return ok, nil
}

func (r *PostgresRepository) ListByOwners(ctx context.Context, ownerIDs []string) (map[string][]models.LinkedPhoto, error) {
	out := make(map[string][]models.LinkedPhoto, len(ownerIDs))
	if len(ownerIDs) == 0 {
		return out, nil
	}
	for _, id := range ownerIDs {
		out[id] = []models.LinkedPhoto{}
	}

	query :=
		`SELECT l.owner_id, l.photo_id, l.label, l.sort_order, p.permanent_path
		 FROM ` + r.table + ` l
		 JOIN photos p ON p.id = l.photo_id
		 WHERE l.owner_id IN (` + dbx.Placeholders(1, len(ownerIDs)) + `)
		 ORDER BY l.owner_id, l.sort_order, l.created_at`

	rows, err := r.db.QueryContext(ctx, query, dbx.Args(nil, ownerIDs)...)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s links: %w", r.kind, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			ownerID string
			lp      models.LinkedPhoto
		)
		if err := rows.Scan(&ownerID, &lp.PhotoID, &lp.Label, &lp.SortOrder, &lp.PermanentPath); err != nil {
			return nil, fmt.Errorf("failed to list %s links: %w", r.kind, err)
		}
		out[ownerID] = append(out[ownerID], lp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list %s links: %w", r.kind, err)
	}
	return out, nil
}

func (r *PostgresRepository) ListPhotoIDsForOwner(ctx context.Context, ownerID string) ([]string, error) {
	query := `SELECT photo_id FROM ` + r.table + ` WHERE owner_id = $1 ORDER BY sort_order`

	return r.queryIDs(ctx, "failed to list "+r.kind.String()+" photo ids", query, ownerID)
}

func (r *PostgresRepository) FilterReferenced(ctx context.Context, photoIDs []string) (map[string]struct{}, error) {
	set := make(map[string]struct{})
	if len(photoIDs) == 0 {
		return set, nil
	}
	query :=
		`SELECT DISTINCT photo_id FROM ` + r.table + `
		 WHERE photo_id IN (` + dbx.Placeholders(1, len(photoIDs)) + `)`

	ids, err := r.queryIDs(ctx, "failed to filter "+r.kind.String()+" references", query, dbx.Args(nil, photoIDs)...)
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set, nil
}

func (r *PostgresRepository) RemoveAllForOwner(ctx context.Context, ownerID string) (int, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM `+r.table+` WHERE owner_id = $1`, ownerID)
	if err != nil {
		return 0, fmt.Errorf("failed to remove %s links: %w", r.kind, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to remove %s links: %w", r.kind, err)
	}
	return int(n), nil
}

func (r *PostgresRepository) queryIDs(ctx context.Context, op, query string, args ...any) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return ids, nil
}
