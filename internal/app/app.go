// Package app initializes and holds long-lived application services, acting as a dependency injection container.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"cloud.google.com/go/pubsub"
	gcs "cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/JakeFAU/boardwatch/internal/api"
	"github.com/JakeFAU/boardwatch/internal/clock/system"
	"github.com/JakeFAU/boardwatch/internal/config"
	"github.com/JakeFAU/boardwatch/internal/extract"
	"github.com/JakeFAU/boardwatch/internal/id/uuid"
	"github.com/JakeFAU/boardwatch/internal/match"
	"github.com/JakeFAU/boardwatch/internal/notify"
	"github.com/JakeFAU/boardwatch/internal/pipeline"
	"github.com/JakeFAU/boardwatch/internal/render/headless"
	"github.com/JakeFAU/boardwatch/internal/render/static"
	"github.com/JakeFAU/boardwatch/internal/seen"
	"github.com/JakeFAU/boardwatch/internal/storage"
	gcsstate "github.com/JakeFAU/boardwatch/internal/storage/gcs"
	"github.com/JakeFAU/boardwatch/internal/storage/local"
	"github.com/JakeFAU/boardwatch/internal/storage/postgres"
	"github.com/JakeFAU/boardwatch/internal/storage/sqlite"
	"github.com/JakeFAU/boardwatch/internal/watch"
)

// Options overrides parts of the wiring. Zero values use the configuration.
type Options struct {
	// DryRun logs alerts instead of delivering them and never persists state.
	DryRun bool
	// Renderer, Provider and Notifier replace the configured implementations.
	Renderer watch.Renderer
	Provider storage.Provider
	Notifier watch.Notifier
	// TelegramEndpoint overrides the Bot API endpoint format.
	TelegramEndpoint string
}

// App holds all the shared, long-lived services for the application.
// It is initialized once at startup and closed on shutdown.
type App struct {
	cfg       config.Config
	logger    *zap.Logger
	renderer  watch.Renderer
	pipeline  *pipeline.Pipeline
	scheduler *pipeline.Scheduler
	closers   []func() error
}

// Config returns the configuration the App was built from.
func (a *App) Config() config.Config {
	return a.cfg
}

// Logger returns the shared zap logger.
func (a *App) Logger() *zap.Logger {
	return a.logger
}

// Renderer returns the shared renderer.
func (a *App) Renderer() watch.Renderer {
	return a.renderer
}

// Pipeline returns the cycle executor.
func (a *App) Pipeline() *pipeline.Pipeline {
	return a.pipeline
}

// Scheduler returns the cron-driven scheduler.
func (a *App) Scheduler() *pipeline.Scheduler {
	return a.scheduler
}

// New creates and initializes the App. It fails fast if the renderer or any
// configured backend cannot be initialized; everything built so far is closed.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger, opts Options) (_ *App, err error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger.Info("initializing application services",
		zap.String("target", cfg.Target.URL),
		zap.String("render_driver", cfg.Render.Driver),
		zap.String("storage_driver", cfg.Storage.Driver),
		zap.Bool("dry_run", opts.DryRun))

	a := &App{cfg: cfg, logger: logger}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()

	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	clock := system.New(loc)

	a.renderer = opts.Renderer
	if a.renderer == nil {
		if a.renderer, err = NewRenderer(cfg, logger); err != nil {
			return nil, err
		}
	}
	a.closers = append(a.closers, a.renderer.Close)

	provider, err := a.buildProvider(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	notifier, err := a.buildNotifier(ctx, clock, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize notifier: %w", err)
	}

	a.pipeline, err = pipeline.New(pipeline.Config{
		TargetURL: cfg.Target.URL,
		Render: watch.RenderOptions{
			WaitSelectors: cfg.Render.WaitSelectors,
			Timeout:       config.Seconds(cfg.Render.NavTimeoutSeconds),
		},
	}, pipeline.Deps{
		Renderer: a.renderer,
		Extractor: extract.New(extract.Config{
			MinCandidates: cfg.Extract.MinCandidates,
			MaxItems:      cfg.Extract.MaxItems,
		}),
		Matcher: match.New(cfg.Keywords),
		Formatter: notify.NewFormatter(notify.FormatterConfig{
			DefaultTag:      cfg.Notify.DefaultTag,
			Rules:           cfg.Notify.Rules,
			TagOnlyKeywords: cfg.Notify.TagOnlyKeywords,
		}),
		Notifier: notifier,
		Store:    seen.NewStore(provider, logger),
		Clock:    clock,
		IDs:      uuid.New(),
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to build pipeline: %w", err)
	}

	a.scheduler, err = pipeline.NewScheduler(a.pipeline, pipeline.SchedulerConfig{
		Interval:     cfg.PollInterval(),
		CycleTimeout: cfg.CycleTimeout(),
		Location:     loc,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to build scheduler: %w", err)
	}

	logger.Info("application services initialized")
	return a, nil
}

// NewRenderer builds the renderer selected by render.driver. A headless
// start-up failure is a watch.RenderError of kind RenderSession.
func NewRenderer(cfg config.Config, logger *zap.Logger) (watch.Renderer, error) {
	switch cfg.Render.Driver {
	case config.RenderStatic:
		return static.New(static.Config{
			UserAgent:       cfg.UserAgent,
			AcceptLanguage:  cfg.Render.AcceptLanguage,
			Timeout:         config.Seconds(cfg.Render.NavTimeoutSeconds),
			ChallengeMarker: cfg.Render.ChallengeMarker,
			WaitSelectors:   cfg.Render.WaitSelectors,
		}, logger), nil
	case config.RenderChromedp, "":
		r, err := headless.New(headless.Config{
			UserAgent:        cfg.UserAgent,
			AcceptLanguage:   cfg.Render.AcceptLanguage,
			Locale:           cfg.Locale,
			Timezone:         cfg.Timezone,
			ExecPath:         cfg.Render.ExecPath,
			NoSandbox:        cfg.Render.NoSandbox,
			NavTimeout:       config.Seconds(cfg.Render.NavTimeoutSeconds),
			ContentTimeout:   config.Seconds(cfg.Render.ContentTimeoutSeconds),
			ChallengeMarker:  cfg.Render.ChallengeMarker,
			ChallengeTimeout: config.Seconds(cfg.Render.ChallengeTimeoutSeconds),
			ChallengeGrace:   config.Seconds(cfg.Render.ChallengeGraceSeconds),
			QuietWindow:      time.Duration(cfg.Render.QuietWindowMs) * time.Millisecond,
			WaitSelectors:    cfg.Render.WaitSelectors,
		}, logger)
		if err != nil {
			return nil, err
		}
		return r, nil
	default:
		return nil, fmt.Errorf("unknown render driver: %s", cfg.Render.Driver)
	}
}

func (a *App) buildProvider(ctx context.Context, opts Options) (storage.Provider, error) {
	if opts.Provider != nil {
		return opts.Provider, nil
	}
	if opts.DryRun {
		a.logger.Info("dry run, seen state will be discarded")
		return storage.NoOpProvider{}, nil
	}

	sc := a.cfg.Storage
	switch sc.Driver {
	case config.StorageFile:
		a.logger.Info("using local seen-state file", zap.String("path", sc.Path))
		st, err := local.New(local.Config{Path: sc.Path})
		if err != nil {
			return nil, err
		}
		return st, nil
	case config.StorageSQLite:
		a.logger.Info("using sqlite seen state", zap.String("path", sc.SQLitePath))
		st, err := sqlite.New(ctx, sqlite.Config{DSN: sc.SQLitePath, Key: sc.StateKey})
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, st.Close)
		return st, nil
	case config.StoragePostgres:
		a.logger.Info("connecting to PostgreSQL", zap.String("table", sc.PostgresTable))
		st, err := postgres.New(ctx, postgres.Config{
			DSN:   sc.PostgresDSN,
			Table: sc.PostgresTable,
			Key:   sc.StateKey,
		})
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() error { st.Close(); return nil })
		return st, nil
	case config.StorageGCS:
		client, err := gcs.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("create gcs client: %w", err)
		}
		a.closers = append(a.closers, client.Close)
		st, err := gcsstate.New(client, gcsstate.Config{Bucket: sc.GCSBucket, Object: sc.GCSObject})
		if err != nil {
			return nil, err
		}
		a.logger.Info("using GCS seen state", zap.String("uri", st.URI()))
		return st, nil
	default:
		return nil, fmt.Errorf("unknown storage driver: %s", sc.Driver)
	}
}

func (a *App) buildNotifier(ctx context.Context, clock watch.Clock, opts Options) (watch.Notifier, error) {
	if opts.Notifier != nil {
		return opts.Notifier, nil
	}
	if opts.DryRun || a.cfg.Notify.DryRun {
		a.logger.Info("dry run, alerts will only be logged")
		return notify.NewLog(a.logger), nil
	}
	if err := a.cfg.ValidateTelegram(); err != nil {
		return nil, err
	}

	tg, err := notify.NewTelegram(notify.TelegramConfig{
		Token:         a.cfg.Telegram.Token,
		ChatID:        a.cfg.Telegram.ChatID,
		Endpoint:      opts.TelegramEndpoint,
		RatePerSecond: a.cfg.Notify.RatePerSecond,
		HTTPClient:    &http.Client{Timeout: 30 * time.Second},
	}, a.logger)
	if err != nil {
		return nil, err
	}
	notifiers := []watch.Notifier{tg}

	if a.cfg.PubSub.Topic != "" {
		client, err := pubsub.NewClient(ctx, a.cfg.PubSub.ProjectID)
		if err != nil {
			return nil, fmt.Errorf("create pubsub client: %w", err)
		}
		a.closers = append(a.closers, client.Close)
		mirror, err := notify.NewPubSub(client.Topic(a.cfg.PubSub.Topic), clock)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() error { mirror.Stop(); return nil })
		a.logger.Info("mirroring alerts to Pub/Sub", zap.String("topic", a.cfg.PubSub.Topic))
		notifiers = append(notifiers, mirror)
	}
	return notify.NewFanout(notifiers...), nil
}

// HTTPServer builds the optional operator surface backed by this App.
func (a *App) HTTPServer() *http.Server {
	return NewHTTPServer(a.cfg, api.Options{
		Renderer:      a.renderer,
		Status:        a.pipeline,
		Schedule:      a.scheduler,
		FetchSecret:   a.cfg.Server.FetchSecret,
		WaitSelectors: a.cfg.Render.WaitSelectors,
		Logger:        a.logger,
	})
}

// NewHTTPServer builds an http.Server for the api routes on server.port.
func NewHTTPServer(cfg config.Config, opts api.Options) *http.Server {
	return &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.Server.Port),
		Handler:           api.NewServer(opts).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// Close gracefully shuts down all services in reverse order of creation.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	if err := errors.Join(errs...); err != nil {
		a.logger.Warn("error closing services", zap.Error(err))
		return err
	}
	return nil
}
