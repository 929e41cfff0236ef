// Package httpapi exposes staging and owner media operations over HTTP.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dmitrijs2005/gophtour/internal/logging"
	"github.com/dmitrijs2005/gophtour/internal/server/models"
	"github.com/dmitrijs2005/gophtour/internal/server/services"
)

const (
	shutdownTimeout       = 5 * time.Second
	DefaultMaxUploadBytes = 32 << 20
)

// Stager is the part of services.StagingService the API uses.
type Stager interface {
	Stage(ctx context.Context, req services.StageRequest) (*models.StagedUpload, error)
	Get(ctx context.Context, id string) (*models.StagedUpload, error)
}

// OwnerMedia is the part of services.OwnerMediaService the API uses.
type OwnerMedia interface {
	Unlink(ctx context.Context, kind models.OwnerKind, ownerID, photoID string) (*services.UnlinkResult, error)
	UnlinkMany(ctx context.Context, kind models.OwnerKind, ownerID string, photoIDs []string) (*services.UnlinkResult, error)
	ListByOwners(ctx context.Context, kind models.OwnerKind, ownerIDs []string) (map[string][]models.LinkedPhoto, error)
	Photo(ctx context.Context, id string) (*models.Photo, error)
}

type HTTPServer struct {
	address   string
	staging   Stager
	media     OwnerMedia
	gatherer  prometheus.Gatherer
	logger    logging.Logger
	jwtSecret []byte
	maxUpload int64
	router    *gin.Engine
}

// NewHTTPServer builds the router. gatherer may be nil, in which case
// /metrics is not served. Upload bodies above maxUploadBytes are rejected;
// a non-positive value selects DefaultMaxUploadBytes.
func NewHTTPServer(address string, l logging.Logger, staging Stager, media OwnerMedia,
	gatherer prometheus.Gatherer, secretKey string, maxUploadBytes int64) *HTTPServer {
	if maxUploadBytes <= 0 {
		maxUploadBytes = DefaultMaxUploadBytes
	}
	s := &HTTPServer{
		address:   address,
		staging:   staging,
		media:     media,
		gatherer:  gatherer,
		logger:    l.With("module", "http_server"),
		jwtSecret: []byte(secretKey),
		maxUpload: maxUploadBytes,
	}
	s.router = s.setupRouter()
	return s
}

// Handler returns the configured router.
func (s *HTTPServer) Handler() http.Handler {
	return s.router
}

func (s *HTTPServer) setupRouter() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if s.gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))
	}

	api := r.Group("/api")
	{
		api.Use(s.uploaderMiddleware())

		api.POST("/uploads", s.StageUpload)
		api.GET("/uploads/:id", s.GetStagedUpload)

		api.GET("/photos/:id", s.GetPhoto)

		api.GET("/:kind/photos", s.ListOwnerPhotos)
		api.DELETE("/:kind/:ownerId/photos/:photoId", s.UnlinkPhoto)
		api.POST("/:kind/:ownerId/photos/unlink", s.UnlinkPhotos)
	}

	return r
}

// Run serves until ctx is cancelled, then shuts the server down gracefully.
func (s *HTTPServer) Run(ctx context.Context) error {
	srv := &http.Server{Addr: s.address, Handler: s.router}

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error(ctx, "HTTP server shutdown failed", "error", err)
		}
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", s.address)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}
