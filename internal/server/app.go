// Package server wires the media lifecycle services together and runs the
// HTTP API alongside the maintenance scheduler until shutdown.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/dmitrijs2005/gophtour/internal/logging"
	"github.com/dmitrijs2005/gophtour/internal/server/config"
	"github.com/dmitrijs2005/gophtour/internal/server/httpapi"
	"github.com/dmitrijs2005/gophtour/internal/server/metrics"
	"github.com/dmitrijs2005/gophtour/internal/server/models"
	"github.com/dmitrijs2005/gophtour/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/gophtour/internal/server/scheduler"
	"github.com/dmitrijs2005/gophtour/internal/server/services"
	"github.com/dmitrijs2005/gophtour/internal/server/storage"
)

const sweepJobName = "expired_upload_sweep"

type App struct {
	config    *config.Config
	logger    logging.Logger
	db        *sql.DB
	http      *httpapi.HTTPServer
	scheduler *scheduler.Scheduler

	Staging   *services.StagingService
	Committer *services.AssetCommitter
	Collector *services.OrphanCollector
	Media     *services.OwnerMediaService
	Sweeper   *services.ExpiredUploadSweeper
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	logger := logging.NewJSONLogger(os.Stdout, parseLevel(c.LogLevel))

	db, err := sql.Open("pgx", c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrations failed: %w", err)
	}

	store, err := newStore(ctx, c)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("storage init error: %w", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	obs, err := metrics.NewPrometheusObserver(c.MetricsNamespace, reg)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("metrics init error: %w", err)
	}

	layout := models.DefaultLayout()

	app := &App{config: c, logger: logger, db: db}
	app.Staging = services.NewStagingService(db, rm, store, layout, c.StagingTTL, logger, obs)
	app.Committer = services.NewAssetCommitter(db, rm, store, layout, logger, obs)
	app.Collector = services.NewOrphanCollector(db, rm, store, layout, logger, obs)
	app.Media = services.NewOwnerMediaService(db, rm, app.Committer, app.Collector, logger)
	app.Sweeper = services.NewExpiredUploadSweeper(db, rm, store, c.SweepBatchSize, logger, obs)

	app.scheduler = scheduler.New(logger)
	err = app.scheduler.Every(sweepJobName, c.SweepInterval, func(ctx context.Context) error {
		_, err := app.Sweeper.Sweep(ctx)
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	app.http = httpapi.NewHTTPServer(c.EndpointAddrHTTP, logger, app.Staging, app.Media, reg, c.SecretKey, c.MaxUploadBytes)

	return app, nil
}

func newStore(ctx context.Context, c *config.Config) (storage.Store, error) {
	switch c.StorageBackend {
	case config.StorageFilesystem:
		fs, err := storage.NewFilesystemStore(c.ContentRoot)
		if err != nil {
			return nil, err
		}
		return fs, nil
	case config.StorageS3:
		s3, err := storage.NewS3Store(ctx, storage.S3Config{
			Region:       c.S3Region,
			User:         c.S3RootUser,
			Password:     c.S3RootPassword,
			BaseEndpoint: c.S3BaseEndpoint,
			Bucket:       c.S3Bucket,
			Prefix:       c.S3Prefix,
		})
		if err != nil {
			return nil, err
		}
		return s3, nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", c.StorageBackend)
	}
}

// parseLevel falls back to info for unknown names.
func parseLevel(s string) slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

// Run serves HTTP and runs scheduled jobs until a signal arrives, ctx is
// cancelled or one of them fails.
func (app *App) Run(ctx context.Context) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return app.http.Run(ctx) })
	g.Go(func() error { return app.scheduler.Run(ctx) })

	err := g.Wait()

	if cerr := app.db.Close(); cerr != nil {
		app.logger.Error(context.Background(), "failed to close database", "error", cerr)
	}
	app.logger.Info(context.Background(), "App stopped")

	return err
}
