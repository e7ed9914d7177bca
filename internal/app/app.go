package app

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"ratebench/internal/alerting"
	"ratebench/internal/cache"
	"ratebench/internal/config"
	"ratebench/internal/metrics"
	"ratebench/internal/scheduler"
	"ratebench/internal/service"
	"ratebench/internal/storage"
)

var errNoDatabase = errors.New("database.dsn not configured")

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config  *config.Config
	Logger  zerolog.Logger
	Metrics *metrics.Recorder
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{
		Config:  cfg,
		Logger:  logger.With().Str("component", "app").Logger(),
		Metrics: metrics.New(),
	}
}

func (a *App) newNotifier() alerting.Notifier {
	if !a.Config.Alerting.Enabled {
		return nil
	}
	if a.Config.Alerting.Telegram.Enabled {
		cfg := a.Config.Alerting.Telegram
		return alerting.NewTelegramNotifier(cfg.BotToken, cfg.ChatID, cfg.APIBase, cfg.Timeout, a.Logger)
	}
	return nil
}

// newCache connects to Redis when configured. A failed connection disables the
// cache instead of failing the command.
func (a *App) newCache(ctx context.Context) (cache.SavingsCache, func()) {
	cfg := a.Config.Cache
	if cfg.Addr == "" {
		return nil, func() {}
	}

	c, err := cache.NewRedisCache(ctx, cache.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		Prefix:   cfg.Prefix,
		TTL:      cfg.TTL,
	})
	if err != nil {
		a.Logger.Warn().Err(err).Str("addr", cfg.Addr).Msg("savings cache unavailable; continuing without it")
		return nil, func() {}
	}
	return c, func() {
		if err := c.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("close savings cache")
		}
	}
}

func (a *App) openStore(ctx context.Context) (*storage.Store, func(), error) {
	if a.Config.Database.DSN == "" {
		return nil, nil, errNoDatabase
	}

	pool, err := storage.NewPool(ctx, a.Config.Database)
	if err != nil {
		return nil, nil, err
	}

	store := storage.NewStore(pool)
	if a.Config.Database.AutoMigrate {
		if err := store.EnsureSchema(ctx); err != nil {
			store.Close()
			return nil, nil, err
		}
	}

	closer := func() {
		store.Close()
	}
	return store, closer, nil
}

// withService opens the store and cache, builds the service and hands it to fn.
func (a *App) withService(ctx context.Context, fn func(*service.Service, *storage.Store) error) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	savingsCache, closeCache := a.newCache(ctx)
	defer closeCache()

	svc := service.New(a.Config, store, savingsCache, a.newNotifier(), a.Metrics, a.Logger)
	return fn(svc, store)
}

// Migrate applies the embedded schema.
func (a *App) Migrate(ctx context.Context) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	if err := store.EnsureSchema(ctx); err != nil {
		return err
	}
	a.Logger.Info().Msg("schema applied")
	return nil
}

// Run executes the long-running re-aggregation service.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if a.Config.Metrics.Enabled {
		stop := a.serveMetrics()
		defer stop()
	}

	return a.withService(ctx, func(svc *service.Service, _ *storage.Store) error {
		sched := scheduler.New(scheduler.Options{
			Interval:     a.Config.Scheduler.Interval,
			AlignToStart: a.Config.Scheduler.AlignToBucket,
			StartupDelay: a.Config.Scheduler.StartupDelay,
			RunOnStart:   true,
		}, a.Logger)

		a.Logger.Info().Dur("interval", a.Config.Scheduler.Interval).Msg("starting aggregation service")
		err := sched.Run(ctx, svc.Aggregate)
		if err != nil && !errors.Is(err, context.Canceled) {
			a.Logger.Error().Err(err).Msg("service terminated with error")
			return err
		}

		a.Logger.Info().Msg("aggregation service stopped")
		return nil
	})
}

func (a *App) serveMetrics() func() {
	mux := http.NewServeMux()
	mux.Handle(a.Config.Metrics.Path, a.Metrics.Handler())

	srv := &http.Server{
		Addr:              a.Config.Metrics.Listen,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		a.Logger.Info().Str("listen", srv.Addr).Str("path", a.Config.Metrics.Path).Msg("serving metrics")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.Logger.Error().Err(err).Msg("metrics server failed")
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}

// ExportOptions hold parameters for exporting aggregates.
type ExportOptions struct {
	Origin      string
	Destination string
	From        *time.Time
	To          *time.Time
	PNGPath     string
	CSVPath     string
	MaxPoints   int
}

// ShowOptions configure the show command.
type ShowOptions struct {
	Origin      string
	Destination string
	Date        *time.Time
	Limit       int
}

// ImportOptions configure a file import.
type ImportOptions struct {
	Path string
	// UserEmail is required for user rate imports.
	UserEmail string
	Aggregate bool
	DryRun    bool
}

// SavingsOptions configure a savings comparison.
type SavingsOptions struct {
	UserEmail string
	AsOf      *time.Time
	JSON      bool
	Notify    bool
}
