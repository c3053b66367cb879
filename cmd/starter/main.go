package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/odyssey-erp/odyssey-starter/internal/app"
	"github.com/odyssey-erp/odyssey-starter/internal/auth"
	"github.com/odyssey-erp/odyssey-starter/internal/i18n"
	"github.com/odyssey-erp/odyssey-starter/internal/observability"
	"github.com/odyssey-erp/odyssey-starter/internal/platform/cache"
	"github.com/odyssey-erp/odyssey-starter/internal/platform/db"
	"github.com/odyssey-erp/odyssey-starter/internal/shared"
	"github.com/odyssey-erp/odyssey-starter/internal/users"
	"github.com/odyssey-erp/odyssey-starter/internal/view"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)
	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("starter exited", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *app.Config, logger *slog.Logger) error {
	if cfg.ConfigFile != "" {
		logger.Info("loaded config file", slog.String("path", cfg.ConfigFile))
	}
	for _, warning := range cfg.Warnings {
		logger.Warn(warning)
	}

	conn, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer func() {
		if err := conn.Close(); err != nil {
			logger.Warn("database close", slog.Any("error", err))
		}
	}()
	logger.Info("database ready", slog.String("driver", string(conn.Driver)))

	store, err := users.NewStore(conn)
	if err != nil {
		return err
	}
	hasher, err := auth.NewHasher(cfg.HasherParams())
	if err != nil {
		return err
	}

	admin, err := auth.NewBootstrapper(store, hasher, logger).Run(ctx, cfg.AdminCredentials())
	switch {
	case err != nil:
		logger.Error("bootstrap admin", slog.Any("error", err))
	case admin != nil:
		logger.Info("created initial admin", slog.String("username", admin.Username))
	}

	sessionStore, closeSessions, err := openSessionStore(ctx, cfg, conn)
	if err != nil {
		return err
	}
	defer closeSessions()

	sessionManager := shared.NewSessionManager(sessionStore, "starter_session", cfg.SecretKey, cfg.SessionTTL, cfg.IsProduction())
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)

	catalog, err := i18n.New(cfg.DefaultLanguage)
	if err != nil {
		return err
	}
	templates, err := view.NewEngine()
	if err != nil {
		return err
	}

	metrics := observability.NewMetrics()
	authService, err := auth.NewService(store, hasher, logger, auth.WithRecorder(metrics))
	if err != nil {
		return err
	}
	authHandler := auth.NewHandler(logger, authService, templates, sessionManager, csrfManager, cfg.LoginRateLimit)

	router := app.NewRouter(app.RouterParams{
		Logger:         logger,
		Config:         cfg,
		Templates:      templates,
		SessionManager: sessionManager,
		CSRFManager:    csrfManager,
		Catalog:        catalog,
		Resolver:       auth.NewResolver(store, logger),
		AuthHandler:    authHandler,
		Metrics:        metrics,
		Health: func(r *http.Request) error {
			if conn.Pool != nil {
				return conn.Pool.Ping(r.Context())
			}
			return nil
		},
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		return db.SweepSessions(gctx, sessionStore, sessionSweepInterval, logger)
	})
	return g.Wait()
}

const sessionSweepInterval = 15 * time.Minute

// openSessionStore prefers Redis when configured and otherwise keeps
// sessions next to the credentials.
func openSessionStore(ctx context.Context, cfg *app.Config, conn *db.Conn) (shared.SessionStore, func(), error) {
	if cfg.SessionRedisURL != "" {
		client, err := cache.New(ctx, cfg.SessionRedisURL)
		if err != nil {
			return nil, nil, err
		}
		return cache.NewSessionStore(client), func() { _ = client.Close() }, nil
	}
	store, err := db.NewSessionStore(conn)
	if err != nil {
		return nil, nil, err
	}
	return store, func() {}, nil
}
