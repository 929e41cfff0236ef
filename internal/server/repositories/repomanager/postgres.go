// Package repomanager provides a concrete RepositoryManager for PostgreSQL,
// wiring together repository constructors and database migrations (via goose).
package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/gophtour/internal/dbx"
	"github.com/dmitrijs2005/gophtour/internal/server/migrations"
	"github.com/dmitrijs2005/gophtour/internal/server/models"
	"github.com/dmitrijs2005/gophtour/internal/server/repositories/links"
	"github.com/dmitrijs2005/gophtour/internal/server/repositories/photos"
	"github.com/dmitrijs2005/gophtour/internal/server/repositories/stageduploads"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

// PostgresRepositoryManager vends PostgreSQL-backed repository implementations
// and exposes a schema migration hook.
type PostgresRepositoryManager struct{}

// StagedUploads returns a stageduploads.Repository bound to the provided DBTX.
func (m *PostgresRepositoryManager) StagedUploads(db dbx.DBTX) stageduploads.Repository {
	return stageduploads.NewPostgresRepository(db)
}

// Photos returns a photos.Repository bound to the provided DBTX.
func (m *PostgresRepositoryManager) Photos(db dbx.DBTX) photos.Repository {
	return photos.NewPostgresRepository(db)
}

// Links returns the link store of kind bound to the provided DBTX.
func (m *PostgresRepositoryManager) Links(db dbx.DBTX, kind models.OwnerKind) (links.Repository, error) {
	return links.NewPostgresRepository(db, kind)
}

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// RunMigrations sets up goose with the embedded migrations and runs them
// against the provided database connection.
func (m *PostgresRepositoryManager) RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("pgx"); err != nil {
		return err
	}
	if err := gooseUpContext(ctx, db, "."); err != nil {
		return err
	}
	return nil
}

// NewPostgresRepositoryManager constructs a PostgreSQL-backed RepositoryManager.
func NewPostgresRepositoryManager() RepositoryManager {
	return &PostgresRepositoryManager{}
}
