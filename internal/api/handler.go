//nolint:revive // "api" package name is intentionally concise for this layer.
package api

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/ashureev/vcsearch/internal/bot"
	"github.com/go-chi/chi/v5"
)

// maxBodyBytes bounds webhook payloads. Telegram updates are far smaller.
const maxBodyBytes = 1 << 20

// MessageHandler processes one inbound chat message.
type MessageHandler interface {
	Handle(ctx context.Context, msg bot.Message) error
}

// WebhookConfigurer registers the public webhook URL with the chat platform.
type WebhookConfigurer interface {
	SetWebhook(ctx context.Context, url, secret string) error
}

// Pinger verifies a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Limiter decides whether a sender may be served now.
type Limiter interface {
	Allow(key string) bool
}

// Options configures the HTTP surface.
type Options struct {
	WebhookSecret string // expected X-Telegram-Bot-Api-Secret-Token, empty disables the check
	AdminToken    string // expected X-Admin-Token on setup calls, empty disables setup
	HealthTimeout time.Duration
	SetupTimeout  time.Duration
}

// Handler serves the webhook, setup and health endpoints.
type Handler struct {
	bot     MessageHandler
	webhook WebhookConfigurer
	repo    Pinger
	limiter Limiter
	opts    Options
	logger  *slog.Logger
}

// NewHandler creates a new API handler. limiter may be nil.
func NewHandler(b MessageHandler, webhook WebhookConfigurer, repo Pinger, limiter Limiter, opts Options, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.HealthTimeout <= 0 {
		opts.HealthTimeout = 5 * time.Second
	}
	if opts.SetupTimeout <= 0 {
		opts.SetupTimeout = 10 * time.Second
	}
	return &Handler{
		bot:     b,
		webhook: webhook,
		repo:    repo,
		limiter: limiter,
		opts:    opts,
		logger:  logger,
	}
}

// RegisterRoutes mounts the handler's routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/webhook", h.Webhook)
	r.Post("/webhook/setup", h.SetupWebhook)
	r.Get("/api/health", h.Health)
}

// Health returns the health status of the API and its dependencies.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.opts.HealthTimeout)
	defer cancel()

	checks := map[string]string{"api": "ok", "database": "ok"}
	status := map[string]interface{}{"status": "healthy", "checks": checks}
	statusCode := http.StatusOK

	if err := h.repo.Ping(ctx); err != nil {
		h.logger.Error("Health check failed", "error", err)
		status["status"] = "degraded"
		checks["database"] = "unreachable"
		statusCode = http.StatusServiceUnavailable
	}

	JSON(w, statusCode, status)
}

// JSON writes a JSON response.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes an error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

func tokenMatches(expected, got string) bool {
	if expected == "" {
		return true
	}
	return subtle.ConstantTimeCompare([]byte(expected), []byte(got)) == 1
}
