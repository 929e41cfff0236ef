package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/gophtour/internal/dbx"
	"github.com/dmitrijs2005/gophtour/internal/server/models"
	"github.com/dmitrijs2005/gophtour/internal/server/repositories/links"
	"github.com/dmitrijs2005/gophtour/internal/server/repositories/photos"
	"github.com/dmitrijs2005/gophtour/internal/server/repositories/stageduploads"
)

type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	StagedUploads(db dbx.DBTX) stageduploads.Repository
	Photos(db dbx.DBTX) photos.Repository
	Links(db dbx.DBTX, kind models.OwnerKind) (links.Repository, error)
}
