// Package photos persists committed, immutable photo metadata.
package photos

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/gophtour/internal/common"
	"github.com/dmitrijs2005/gophtour/internal/dbx"
	"github.com/dmitrijs2005/gophtour/internal/server/models"
)

const columns = `id, generated_name, permanent_path, content_type, file_size,
		 original_file_name, created_at, uploader_id`

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

type scanner interface {
	Scan(dest ...any) error
}

func scan(row scanner) (*models.Photo, error) {
	var (
		p        models.Photo
		uploader sql.NullString
	)
	err := row.Scan(&p.ID, &p.GeneratedName, &p.PermanentPath, &p.ContentType, &p.FileSize,
		&p.OriginalFileName, &p.CreatedAt, &uploader)
	if err != nil {
		return nil, err
	}
	p.UploaderID = uploader.String
	return &p, nil
}

func (r *PostgresRepository) Create(ctx context.Context, p *models.Photo) error {
	query :=
		`INSERT INTO photos (` + columns + `)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := r.db.ExecContext(ctx, query,
		p.ID, p.GeneratedName, p.PermanentPath, p.ContentType, p.FileSize,
		p.OriginalFileName, p.CreatedAt, sql.NullString{String: p.UploaderID, Valid: p.UploaderID != ""})
	if err != nil {
		return fmt.Errorf("failed to insert photo: %w", err)
	}
	return nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.Photo, error) {
	query := `SELECT ` + columns + ` FROM photos WHERE id = $1`

	p, err := scan(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("failed to get photo: %w", err)
	}
	return p, nil
}

func (r *PostgresRepository) LockByIDs(ctx context.Context, ids []string) ([]*models.Photo, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query :=
		`SELECT ` + columns + ` FROM photos
		 WHERE id IN (` + dbx.Placeholders(1, len(ids)) + `)
		 ORDER BY id
		 FOR UPDATE`

	rows, err := r.db.QueryContext(ctx, query, dbx.Args(nil, ids)...)
	if err != nil {
		return nil, fmt.Errorf("failed to lock photos: %w", err)
	}
	defer rows.Close()

	var out []*models.Photo
	for rows.Next() {
		p, err := scan(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to lock photos: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to lock photos: %w", err)
	}
	return out, nil
}

func (r *PostgresRepository) DeleteByIDs(ctx context.Context, ids []string) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := `DELETE FROM photos WHERE id IN (` + dbx.Placeholders(1, len(ids)) + `) RETURNING id`

	rows, err := r.db.QueryContext(ctx, query, dbx.Args(nil, ids)...)
	if err != nil {
		return nil, fmt.Errorf("failed to delete photos: %w", err)
	}
	defer rows.Close()

	var deleted []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to delete photos: %w", err)
		}
		deleted = append(deleted, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to delete photos: %w", err)
	}
	return deleted, nil
}
