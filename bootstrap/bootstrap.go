// Package bootstrap wires all dependencies and starts the application.
package bootstrap

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/artpar/quotagate/adapters/auth"
	"github.com/artpar/quotagate/adapters/clock"
	"github.com/artpar/quotagate/adapters/metrics"
	"github.com/artpar/quotagate/adapters/remote"
	"github.com/artpar/quotagate/adapters/sqlite"
	"github.com/artpar/quotagate/app"
	"github.com/artpar/quotagate/config"
	"github.com/artpar/quotagate/web"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// App represents the running application.
type App struct {
	Logger     zerolog.Logger
	DB         *sqlite.DB
	HTTPServer *http.Server
	Metrics    *metrics.Collector
	Holder     *config.Holder

	quotaService  *app.QuotaService
	streamService *app.StreamService
	tokenService  *auth.TokenService
}

// New creates and initializes the application from a loaded config.
func New(cfg *config.Config) (*App, error) {
	return build(cfg, nil)
}

// NewWithHotReload creates the application with config file watching enabled.
// Reloadable fields (log level, heartbeat interval) take effect without
// restart; everything else needs one.
func NewWithHotReload(path string) (*App, error) {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	holder, err := config.NewHolder(path, logger)
	if err != nil {
		return nil, err
	}

	a, err := build(holder.Get(), holder)
	if err != nil {
		holder.Stop()
		return nil, err
	}

	holder.OnChange(func(cfg *config.Config) {
		a.applyReloadable(cfg)
	})
	if err := holder.WatchFile(); err != nil {
		a.Logger.Warn().Err(err).Msg("config file watching unavailable")
	}
	holder.WatchSignals()

	return a, nil
}

func build(cfg *config.Config, holder *config.Holder) (*App, error) {
	logger := setupLogger(cfg.Logging)
	logger.Info().Msg("initializing quotagate")

	a := &App{
		Logger: logger,
		Holder: holder,
	}

	db, err := sqlite.Open(cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	a.DB = db
	logger.Info().Str("dsn", cfg.Database.DSN).Msg("database initialized")

	if cfg.Metrics.Enabled {
		a.Metrics = metrics.New()
		logger.Info().Msg("prometheus metrics enabled")
	} else {
		// Handlers record unconditionally; an unregistered collector keeps
		// them harmless when metrics are off.
		a.Metrics = metrics.NewForTesting()
	}

	billing := remote.NewBillingClient(remote.NewClient(remote.ClientConfig{
		BaseURL: cfg.Billing.URL,
		Timeout: cfg.Billing.Timeout,
		Headers: cfg.Billing.Headers,
	}))

	var overlay *remote.SubscriptionClient
	if cfg.Subscription.Enabled {
		overlay = remote.NewSubscriptionClient(remote.NewClient(remote.ClientConfig{
			BaseURL: cfg.Subscription.URL,
			Timeout: cfg.Subscription.Timeout,
			Headers: cfg.Subscription.Headers,
		}))
		logger.Info().Str("url", cfg.Subscription.URL).Msg("subscription overlay enabled")
	}

	profileStore := sqlite.NewProfileStore(db)
	tokenStore := sqlite.NewTokenStore(db)

	quotaDeps := app.QuotaDeps{
		Profiles: profileStore,
		Billing:  billing,
		Metrics:  a.Metrics,
		Logger:   logger,
	}
	if overlay != nil {
		quotaDeps.Overlay = overlay
	}
	a.quotaService = app.NewQuotaService(quotaDeps)

	a.streamService = app.NewStreamService(app.StreamDeps{
		Billing: billing,
		Clock:   clock.Real{},
		Metrics: a.Metrics,
		Logger:  logger,
	}, app.StreamConfig{
		HeartbeatInterval: cfg.Stream.HeartbeatInterval,
	})

	a.tokenService = auth.NewTokenService(cfg.Auth.JWTSecret, cfg.Auth.TokenExpiration)
	if cfg.Auth.JWTSecret == "" {
		logger.Warn().Msg("no jwt secret configured, tokens will not survive restarts")
	}

	handler := web.NewHandler(web.Deps{
		Quota:     a.quotaService,
		Stream:    a.streamService,
		Tokens:    a.tokenService,
		APITokens: tokenStore,
		Metrics:   a.Metrics,
		Logger:    logger,
	})

	router := chi.NewRouter()
	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})
	if cfg.Metrics.Enabled {
		router.Handle(cfg.Metrics.Path, promhttp.Handler())
	}
	router.Mount("/", handler.Routes())

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	a.HTTPServer = &http.Server{
		Addr:        addr,
		Handler:     router,
		ReadTimeout: cfg.Server.ReadTimeout,
		IdleTimeout: cfg.Server.IdleTimeout,
		// No WriteTimeout: stream responses are open-ended.
	}

	logger.Info().Str("addr", addr).Msg("http server configured")
	return a, nil
}

// applyReloadable applies the hot-reloadable subset of a new config.
func (a *App) applyReloadable(cfg *config.Config) {
	if level, err := zerolog.ParseLevel(cfg.Logging.Level); err == nil {
		zerolog.SetGlobalLevel(level)
	}
	a.streamService.SetHeartbeatInterval(cfg.Stream.HeartbeatInterval)
	a.Logger.Info().Msg("reloadable settings applied")
}

// Run starts the HTTP server and blocks until shutdown.
func (a *App) Run() error {
	errCh := make(chan error, 1)
	go func() {
		a.Logger.Info().Str("addr", a.HTTPServer.Addr).Msg("starting http server")
		if err := a.HTTPServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case sig := <-quit:
		a.Logger.Info().Str("signal", sig.String()).Msg("shutting down")
	}

	return a.Shutdown()
}

// Shutdown gracefully stops the application.
func (a *App) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if a.Holder != nil {
		a.Holder.Stop()
	}

	if a.HTTPServer != nil {
		if err := a.HTTPServer.Shutdown(ctx); err != nil {
			a.Logger.Error().Err(err).Msg("http server shutdown error")
		}
	}

	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			a.Logger.Error().Err(err).Msg("database close error")
		}
	}

	a.Logger.Info().Msg("shutdown complete")
	return nil
}

func setupLogger(cfg config.LoggingConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Format == "console" {
		output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
		return zerolog.New(output).With().Timestamp().Logger()
	}

	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}
