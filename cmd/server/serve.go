package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ashureev/vcsearch/internal/api"
	"github.com/ashureev/vcsearch/internal/bot"
	"github.com/ashureev/vcsearch/internal/classifier"
	"github.com/ashureev/vcsearch/internal/config"
	"github.com/ashureev/vcsearch/internal/middleware"
	"github.com/ashureev/vcsearch/internal/store"
	"github.com/ashureev/vcsearch/internal/telegram"
	"github.com/ashureev/vcsearch/internal/transcript"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func newServeCommand(logger *slog.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the webhook server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), logger)
		},
	}
}

func runServe(ctx context.Context, logger *slog.Logger) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	slog.Info("Starting server", "port", cfg.Port, "classifier", cfg.ClassifierEnabled())

	repo, err := store.NewSQLite(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("initialize database: %w", err)
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			slog.Error("Failed to close repository", "error", closeErr)
		}
	}()

	if err := repo.Ping(ctx); err != nil {
		return fmt.Errorf("database health check: %w", err)
	}
	slog.Info("Database connected")

	if cfg.Telegram.Token == "" {
		slog.Warn("TELEGRAM_API_KEY not set, replies will fail")
	}
	if cfg.AdminToken == "" {
		slog.Info("ADMIN_TOKEN not set, /webhook/setup is disabled (use `vcsearch webhook set`)")
	}
	tg := newTelegramClient(cfg, logger)

	var cls classifier.Classifier = classifier.Fallback{}
	if cfg.ClassifierEnabled() {
		cls = classifier.NewOpenAI(cfg.Classifier, logger)
		slog.Info("Classifier enabled", "model", cfg.Classifier.Model)
	} else {
		slog.Info("Classifier disabled (OPENAI_API_KEY not set), free text is searched")
	}

	deps := bot.Deps{
		Sessions:   repo,
		People:     repo,
		Tasks:      repo,
		Classifier: cls,
		Channel:    bot.TelegramChannel{Client: tg},
		Logger:     logger,
	}
	recorder, err := transcript.New(transcript.Config{
		Enabled: cfg.ConversationLog.Enabled,
		Dir:     cfg.ConversationLog.Dir,
	}, logger)
	if err != nil {
		return fmt.Errorf("initialize conversation log: %w", err)
	}
	if recorder != nil {
		deps.Recorder = recorder
	}

	router := bot.NewRouter(deps, bot.Options{
		Secret:       cfg.AuthSecret,
		SearchPrefix: cfg.SearchPrefix,
		TaskOwner:    cfg.TaskOwner,
		StoreTimeout: cfg.StoreTimeout,
		SendTimeout:  cfg.Telegram.Timeout,
	})

	handler := api.NewHandler(
		router,
		tg,
		repo,
		middleware.NewRateLimiter(cfg.RateLimit.RequestsPerWindow, cfg.RateLimit.WindowDuration),
		api.Options{
			WebhookSecret: cfg.Telegram.WebhookSecret,
			AdminToken:    cfg.AdminToken,
			HealthTimeout: cfg.StoreTimeout,
			SetupTimeout:  cfg.Telegram.Timeout,
		},
		logger,
	)

	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/health"))
	r.Use(middleware.CORS([]string{"*"}))
	handler.RegisterRoutes(r)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("Shutting down gracefully...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	slog.Info("Server stopped successfully")
	return nil
}

func newTelegramClient(cfg *config.Config, logger *slog.Logger) *telegram.Client {
	return telegram.NewClient(
		&http.Client{Timeout: cfg.Telegram.Timeout},
		cfg.Telegram.APIURL,
		cfg.Telegram.Token,
		logger,
	)
}
