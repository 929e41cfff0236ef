// Package stageduploads persists uploads that wait in the temp area for commit.
package stageduploads

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/gophtour/internal/common"
	"github.com/dmitrijs2005/gophtour/internal/dbx"
	"github.com/dmitrijs2005/gophtour/internal/server/models"
)

const columns = `id, owner_kind, temp_relative_path, generated_name, extension,
		 content_type, file_size, original_file_name, created_at, expires_at, uploader_id`

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

type scanner interface {
	Scan(dest ...any) error
}

func scan(row scanner) (*models.StagedUpload, error) {
	var (
		s        models.StagedUpload
		kind     string
		uploader sql.NullString
	)
	err := row.Scan(&s.ID, &kind, &s.TempRelativePath, &s.GeneratedName, &s.Extension,
		&s.ContentType, &s.FileSize, &s.OriginalFileName, &s.CreatedAt, &s.ExpiresAt, &uploader)
	if err != nil {
		return nil, err
	}
	s.OwnerKind = models.OwnerKind(kind)
	s.UploaderID = uploader.String
	return &s, nil
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func (r *PostgresRepository) Create(ctx context.Context, s *models.StagedUpload) error {
	query :=
		`INSERT INTO staged_uploads (` + columns + `)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err := r.db.ExecContext(ctx, query,
		s.ID, s.OwnerKind.String(), s.TempRelativePath, s.GeneratedName, s.Extension,
		s.ContentType, s.FileSize, s.OriginalFileName, s.CreatedAt, s.ExpiresAt, nullable(s.UploaderID))
	if err != nil {
		return fmt.Errorf("failed to insert staged upload: %w", err)
	}
	return nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.StagedUpload, error) {
	query := `SELECT ` + columns + ` FROM staged_uploads WHERE id = $1`

	s, err := scan(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("failed to get staged upload: %w", err)
	}
	return s, nil
}

func (r *PostgresRepository) GetByIDs(ctx context.Context, ids []string) ([]*models.StagedUpload, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := `SELECT ` + columns + ` FROM staged_uploads WHERE id IN (` + dbx.Placeholders(1, len(ids)) + `)`

	return r.queryList(ctx, "failed to list staged uploads", query, dbx.Args(nil, ids)...)
}

func (r *PostgresRepository) Claim(ctx context.Context, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM staged_uploads WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("failed to claim staged upload: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to claim staged upload: %w", err)
	}
	return n == 1, nil
}

func (r *PostgresRepository) DeleteExpired(ctx context.Context, now time.Time, limit int) ([]*models.StagedUpload, error) {
	query :=
		`DELETE FROM staged_uploads
		 WHERE id IN (
		   SELECT id FROM staged_uploads
		   WHERE expires_at < $1
		   ORDER BY expires_at
		   LIMIT $2
		   FOR UPDATE SKIP LOCKED
		 )
		 RETURNING ` + columns

	return r.queryList(ctx, "failed to delete expired staged uploads", query, now, limit)
}

func (r *PostgresRepository) queryList(ctx context.Context, op, query string, args ...any) ([]*models.StagedUpload, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var out []*models.StagedUpload
	for rows.Next() {
		s, err := scan(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return out, nil
}
