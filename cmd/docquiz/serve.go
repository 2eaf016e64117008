package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"docquiz/internal/api"
	"docquiz/internal/archive"
	"docquiz/internal/config"
	"docquiz/internal/db"
	"docquiz/internal/generator"
	"docquiz/internal/llm"
	"docquiz/internal/logger"
	"docquiz/internal/notify"
	"docquiz/internal/workspace"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const shutdownTimeout = 5 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the web server",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().Int("port", 0, "Port to listen on (overrides PORT)")
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, log, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cmd.Flags().Lookup("port") != nil {
		if port, _ := cmd.Flags().GetInt("port"); port > 0 {
			cfg.Server.Port = port
		}
	}
	if cfg.Log.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Session.SecretGenerated {
		log.Warn("SESSION_SECRET is not set, using a random secret; sessions will not survive a restart")
	}
	store, closeStore, err := sessionStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeStore()

	workspaces := workspace.NewStore(cfg.Session.IdleTimeout, log)
	go workspaces.Run(ctx, time.Minute)

	providers := llm.NewFactory(cfg.LLM, log)
	if cfg.LLM.Provider == llm.ProviderMock {
		providers.Mock.Fallback = generator.DemoFallback
		log.Warn("Using the mock LLM provider, generated questions are canned")
	}

	notifier := notify.New(cfg.Notify.DiscordWebhookURL, log)
	defer notifier.Wait()

	deps := api.Deps{
		Config:    cfg,
		Logger:    log,
		Store:     workspaces,
		Generator: generator.NewService(cfg.Quiz, cfg.LLM, log),
		Providers: providers,
		Notifier:  notifier,
	}
	archiveClient, err := archive.NewClient(ctx, cfg.Archive, log)
	if err != nil {
		return fmt.Errorf("archive client: %w", err)
	}
	if archiveClient != nil {
		deps.Publisher = archiveClient
	}

	router, err := api.NewRouter(api.NewHandler(deps), store)
	if err != nil {
		return err
	}

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("Server listening",
			zap.Int("port", cfg.Server.Port),
			zap.String("provider", cfg.LLM.Provider),
			zap.String("model", cfg.LLM.ModelName()),
			zap.String("session_backend", cfg.Session.Backend),
			zap.Bool("archive", archiveClient != nil),
			zap.Bool("notify", notifier.Enabled()),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("start server: %w", err)
		}
	case <-ctx.Done():
	}
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	log.Info("Server exited properly")
	return nil
}

// sessionStore builds the cookie-session backend named in the config.
func sessionStore(ctx context.Context, cfg *config.Config, log *zap.Logger) (sessions.Store, func(), error) {
	switch cfg.Session.Backend {
	case config.BackendPostgres:
		pool, err := db.Open(ctx, cfg.Session.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("session database: %w", err)
		}
		store, err := db.NewSessionStore(pool, cfg.Session.Secret)
		if err != nil {
			pool.Close()
			return nil, nil, err
		}
		api.ApplySessionOptions(store, cfg.Session)
		log.Info("Sessions stored in Postgres")
		return store, func() { pool.Close() }, nil
	default:
		return api.NewCookieStore(cfg.Session), func() {}, nil
	}
}
