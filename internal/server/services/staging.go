// Package services contains server-side business logic of the media
// lifecycle: staging uploads, committing them into photos, linking photos to
// owners and collecting photos nobody references any more.
package services

import (
	"bufio"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/dmitrijs2005/gophtour/internal/common"
	"github.com/dmitrijs2005/gophtour/internal/logging"
	"github.com/dmitrijs2005/gophtour/internal/server/metrics"
	"github.com/dmitrijs2005/gophtour/internal/server/models"
	"github.com/dmitrijs2005/gophtour/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/gophtour/internal/server/storage"
	"github.com/gabriel-vasile/mimetype"
)

const (
	DefaultStagingTTL = 6 * time.Hour
	sniffLen          = 512
)

// extPattern is the set of extensions allowed into generated names.
var extPattern = regexp.MustCompile(`^\.[a-z0-9]{1,16}$`)

// StageRequest describes one uploaded file.
type StageRequest struct {
	Body        io.Reader
	FileName    string
	ContentType string
	OwnerKind   string
	// UploaderID is optional.
	UploaderID string
}

// StagingService writes uploads into the temp area of their owner kind and
// records them with an expiry.
type StagingService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	store       storage.Store
	layout      *models.Layout
	ttl         time.Duration
	logger      logging.Logger
	metrics     metrics.Observer
	now         func() time.Time
}

func NewStagingService(db *sql.DB, m repomanager.RepositoryManager, store storage.Store, layout *models.Layout,
	ttl time.Duration, logger logging.Logger, obs metrics.Observer) *StagingService {
	if ttl <= 0 {
		ttl = DefaultStagingTTL
	}
	if obs == nil {
		obs = metrics.Nop()
	}
	return &StagingService{
		db:          db,
		repomanager: m,
		store:       store,
		layout:      layout,
		ttl:         ttl,
		logger:      logger.With("module", "staging"),
		metrics:     obs,
		now:         time.Now,
	}
}

// Stage stores the file under {kind}/temp/{generated name} and inserts its
// metadata. The two steps are not atomic: if the insert fails the file is
// removed best-effort.
func (s *StagingService) Stage(ctx context.Context, req StageRequest) (*models.StagedUpload, error) {
	rec, err := s.stage(ctx, req)
	if rec != nil {
		s.metrics.RecordStage(rec.OwnerKind.String(), rec.FileSize, err)
	} else {
		s.metrics.RecordStage(req.OwnerKind, 0, err)
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *StagingService) stage(ctx context.Context, req StageRequest) (*models.StagedUpload, error) {
	if req.Body == nil {
		return nil, common.ErrEmptyFile
	}
	kind, err := models.ParseOwnerKind(req.OwnerKind)
	if err != nil {
		return nil, err
	}

	br := bufio.NewReaderSize(req.Body, sniffLen)
	head, err := br.Peek(sniffLen)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}
	if len(head) == 0 {
		return nil, common.ErrEmptyFile
	}

	contentType := strings.TrimSpace(req.ContentType)
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = mimetype.Detect(head).String()
	}

	ext := strings.TrimSuffix(strings.ToLower(filepath.Ext(req.FileName)), ".")
	if ext != "" && !extPattern.MatchString(ext) {
		return nil, fmt.Errorf("%w: %q", common.ErrInvalidExtension, ext)
	}
	name := newFileName(ext)
	rel, err := s.layout.TempPath(kind, name)
	if err != nil {
		return nil, err
	}

	size, err := s.store.Write(ctx, rel, br)
	if err != nil {
		return nil, fmt.Errorf("failed to write staged file: %w", err)
	}

	created := s.now().UTC()
	rec := &models.StagedUpload{
		ID:               newID(),
		OwnerKind:        kind,
		TempRelativePath: rel,
		GeneratedName:    name,
		Extension:        ext,
		ContentType:      contentType,
		FileSize:         size,
		OriginalFileName: filepath.Base(req.FileName),
		CreatedAt:        created,
		ExpiresAt:        created.Add(s.ttl),
		UploaderID:       req.UploaderID,
	}

	if err := s.repomanager.StagedUploads(s.db).Create(ctx, rec); err != nil {
		if rmErr := s.store.Remove(context.WithoutCancel(ctx), rel); rmErr != nil {
			s.logger.Warn(ctx, "failed to remove staged file after insert error", "path", rel, "error", rmErr)
		}
		return nil, fmt.Errorf("error saving staged upload: %w", err)
	}

	s.logger.Debug(ctx, "upload staged", "staged_upload_id", rec.ID, "owner_kind", kind, "size", size)
	return rec, nil
}

// Get returns the staged upload or common.ErrorNotFound.
func (s *StagingService) Get(ctx context.Context, id string) (*models.StagedUpload, error) {
	if !validUUID(id) {
		return nil, common.ErrorNotFound
	}
	rec, err := s.repomanager.StagedUploads(s.db).GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("error getting staged upload: %w", err)
	}
	return rec, nil
}
