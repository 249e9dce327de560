// Package app initializes and holds long-lived application services, acting as a dependency injection container.
package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/storage"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JakeFAU/leaderboard-crawler/internal/config"
	"github.com/JakeFAU/leaderboard-crawler/internal/crawler"
	"github.com/JakeFAU/leaderboard-crawler/internal/export"
	"github.com/JakeFAU/leaderboard-crawler/internal/headless"
	"github.com/JakeFAU/leaderboard-crawler/internal/leaderboard"
)

// App holds the services shared by one crawl run: the logger, the sink
// fan-out, the browser launcher and the robots policy.
type App struct {
	cfg      config.Config
	logger   *zap.Logger
	runID    string
	sink     *export.Multi
	launcher crawler.Launcher
	robots   crawler.RobotsPolicy
	closers  []func() error
}

// Option customizes New.
type Option func(*App)

// WithLauncher replaces the headless browser launcher.
func WithLauncher(l crawler.Launcher) Option {
	return func(a *App) { a.launcher = l }
}

// WithRobotsPolicy replaces the robots.txt policy.
func WithRobotsPolicy(p crawler.RobotsPolicy) Option {
	return func(a *App) { a.robots = p }
}

// WithRunID fixes the run identifier instead of generating one.
func WithRunID(id string) Option {
	return func(a *App) { a.runID = id }
}

// New builds every enabled sink and fails fast if one cannot be reached.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger, opts ...Option) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{cfg: cfg, logger: logger}
	for _, opt := range opts {
		opt(a)
	}
	if a.runID == "" {
		a.runID = uuid.NewString()
	}
	a.logger = a.logger.With(zap.String("run_id", a.runID))
	if a.launcher == nil {
		a.launcher = headless.Launcher(cfg.BrowserOptions())
	}
	if a.robots == nil {
		a.robots = crawler.NewRobotsPolicy(cfg.Crawler.RespectRobots, cfg.Browser.UserAgent, a.logger)
	}

	sinks, err := a.buildSinks(ctx)
	if err != nil {
		for _, s := range sinks {
			_ = s.Sink.Close(ctx)
		}
		a.runClosers()
		return nil, err
	}
	a.sink = export.NewMulti(a.logger, sinks...)
	a.logger.Info("application services initialized", zap.Int("sinks", len(sinks)))
	return a, nil
}

func (a *App) buildSinks(ctx context.Context) ([]export.Named, error) {
	ec := a.cfg.Export
	var sinks []export.Named

	if ec.File.Enabled {
		f, err := export.NewFile(ec.File.Path, ec.File.Format)
		if err != nil {
			return sinks, fmt.Errorf("file sink: %w", err)
		}
		a.logger.Info("using file sink", zap.String("path", ec.File.Path), zap.String("format", ec.File.Format))
		sinks = append(sinks, export.Named{Name: "file", Sink: f})
	}

	if ec.GCS.Enabled {
		client, err := storage.NewClient(ctx)
		if err != nil {
			return sinks, fmt.Errorf("create GCS client: %w", err)
		}
		a.closers = append(a.closers, client.Close)
		object := strings.ReplaceAll(ec.GCS.Object, "{run_id}", a.runID)
		g, err := export.NewGCS(client, ec.GCS.Bucket, object)
		if err != nil {
			return sinks, fmt.Errorf("gcs sink: %w", err)
		}
		a.logger.Info("using GCS sink", zap.String("uri", g.URI()))
		sinks = append(sinks, export.Named{Name: "gcs", Sink: g})
	}

	if ec.PubSub.Enabled {
		client, err := pubsub.NewClient(ctx, ec.PubSub.ProjectID)
		if err != nil {
			return sinks, fmt.Errorf("create pubsub client: %w", err)
		}
		a.closers = append(a.closers, client.Close)
		topic := client.Topic(ec.PubSub.Topic)
		exists, err := topic.Exists(ctx)
		if err != nil {
			return sinks, fmt.Errorf("check pubsub topic %q: %w", ec.PubSub.Topic, err)
		}
		if !exists {
			return sinks, fmt.Errorf("pubsub topic %q does not exist", ec.PubSub.Topic)
		}
		p, err := export.NewPubSub(topic, a.runID)
		if err != nil {
			return sinks, fmt.Errorf("pubsub sink: %w", err)
		}
		a.logger.Info("using Pub/Sub sink", zap.String("topic", ec.PubSub.Topic))
		sinks = append(sinks, export.Named{Name: "pubsub", Sink: p})
	}

	if ec.Postgres.Enabled {
		pg, err := export.NewPostgres(ctx, export.PostgresConfig{
			DSN:             ec.Postgres.DSN,
			Table:           ec.Postgres.Table,
			MaxConns:        ec.Postgres.MaxConns,
			MaxConnLifetime: ec.Postgres.MaxConnLifetime,
			CreateTable:     ec.Postgres.CreateTable,
		}, a.runID)
		if err != nil {
			return sinks, fmt.Errorf("postgres sink: %w", err)
		}
		a.logger.Info("using Postgres sink", zap.String("table", ec.Postgres.Table))
		sinks = append(sinks, export.Named{Name: "postgres", Sink: pg})
	}

	if ec.Mongo.Enabled {
		m, err := export.NewMongo(ctx, export.MongoConfig{
			URI:        ec.Mongo.URI,
			Database:   ec.Mongo.Database,
			Collection: ec.Mongo.Collection,
		}, a.runID)
		if err != nil {
			return sinks, fmt.Errorf("mongo sink: %w", err)
		}
		a.logger.Info("using MongoDB sink", zap.String("collection", ec.Mongo.Database+"."+ec.Mongo.Collection))
		sinks = append(sinks, export.Named{Name: "mongo", Sink: m})
	}

	if len(sinks) == 0 {
		return nil, errors.New("no export sink enabled")
	}
	return sinks, nil
}

// Logger returns the run-scoped logger.
func (a *App) Logger() *zap.Logger {
	return a.logger
}

// RunID identifies this run in logs and exported records.
func (a *App) RunID() string {
	return a.runID
}

// Config returns the loaded configuration.
func (a *App) Config() config.Config {
	return a.cfg
}

// Sink returns the fan-out over every enabled sink.
func (a *App) Sink() crawler.Sink {
	return a.sink
}

// Engine wires a crawl engine from the container's services.
func (a *App) Engine() (*crawler.Engine, error) {
	extractor, err := leaderboard.NewExtractor(a.cfg.Selectors)
	if err != nil {
		return nil, fmt.Errorf("build extractor: %w", err)
	}
	engine, err := crawler.NewEngine(
		a.cfg.EngineConfig(),
		a.launcher,
		extractor,
		a.sink,
		a.robots,
		a.cfg.RetryPolicy(),
		a.logger,
	)
	if err != nil {
		return nil, fmt.Errorf("build engine: %w", err)
	}
	return engine, nil
}

// Close flushes and closes every sink, then releases the cloud clients.
func (a *App) Close(ctx context.Context) error {
	a.logger.Info("shutting down application services")
	var errs []error
	if a.sink != nil {
		if err := a.sink.Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if err := a.runClosers(); err != nil {
		errs = append(errs, err)
	}
	// Sync fails on stderr/stdout for some platforms; ignore it.
	_ = a.logger.Sync()
	return errors.Join(errs...)
}

func (a *App) runClosers() error {
	var errs []error
	for _, c := range a.closers {
		if err := c(); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
