package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/ashureev/vcsearch/internal/bot"
	"github.com/ashureev/vcsearch/internal/telegram"
)

const (
	secretHeader     = "X-Telegram-Bot-Api-Secret-Token"
	adminTokenHeader = "X-Admin-Token"

	actionSetupWebhook = "setup_webhook"
)

// webhookEnvelope is a Telegram update, or the legacy setup control call
// posted to the same path.
type webhookEnvelope struct {
	telegram.Update
	Action     string `json:"action,omitempty"`
	WebhookURL string `json:"webhook_url,omitempty"`
}

type setupRequest struct {
	WebhookURL string `json:"webhook_url"`
}

type setupResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Webhook receives Telegram updates.
func (h *Handler) Webhook(w http.ResponseWriter, r *http.Request) {
	var env webhookEnvelope
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&env); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if env.Action == actionSetupWebhook {
		h.setup(w, r, env.WebhookURL)
		return
	}

	if !tokenMatches(h.opts.WebhookSecret, r.Header.Get(secretHeader)) {
		h.logger.Warn("Rejected webhook with bad secret", "remote", r.RemoteAddr)
		Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	msg, ok := toMessage(env.Update)
	if !ok {
		JSON(w, http.StatusOK, map[string]bool{"ok": true})
		return
	}

	if h.limiter != nil && !h.limiter.Allow(msg.SenderID) {
		// Telegram redelivers on non-2xx, so throttled updates are acknowledged and dropped.
		h.logger.Warn("Rate limit exceeded", "user_id", msg.SenderID)
		JSON(w, http.StatusOK, map[string]bool{"ok": true})
		return
	}

	if err := h.bot.Handle(r.Context(), msg); err != nil {
		h.logger.Error("Failed to handle message", "user_id", msg.SenderID, "error", err)
		Error(w, http.StatusInternalServerError, "internal error")
		return
	}

	JSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// SetupWebhook registers the given URL as the bot's webhook.
func (h *Handler) SetupWebhook(w http.ResponseWriter, r *http.Request) {
	var req setupRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		JSON(w, http.StatusBadRequest, setupResponse{Error: "invalid request body"})
		return
	}
	h.setup(w, r, req.WebhookURL)
}

// setup fails closed: without an admin token the endpoint is disabled and
// operators use the CLI instead.
func (h *Handler) setup(w http.ResponseWriter, r *http.Request, url string) {
	if h.opts.AdminToken == "" {
		h.logger.Warn("Rejected webhook setup, no admin token configured", "remote", r.RemoteAddr)
		JSON(w, http.StatusForbidden, setupResponse{Error: "webhook setup is disabled"})
		return
	}
	if !tokenMatches(h.opts.AdminToken, r.Header.Get(adminTokenHeader)) {
		JSON(w, http.StatusUnauthorized, setupResponse{Error: "unauthorized"})
		return
	}

	url = strings.TrimSpace(url)
	if url == "" {
		JSON(w, http.StatusBadRequest, setupResponse{Error: "webhook_url is required"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.opts.SetupTimeout)
	defer cancel()

	if err := h.webhook.SetWebhook(ctx, url, h.opts.WebhookSecret); err != nil {
		h.logger.Error("Failed to set webhook", "url", url, "error", err)
		JSON(w, http.StatusBadGateway, setupResponse{Error: err.Error()})
		return
	}

	h.logger.Info("Webhook configured", "url", url)
	JSON(w, http.StatusOK, setupResponse{Success: true, Message: "Webhook set to " + url})
}

// toMessage extracts the fields the bot needs. Updates without a sender,
// chat, or text are ignored.
func toMessage(u telegram.Update) (bot.Message, bool) {
	m := u.Message
	if m == nil || m.From == nil || m.Chat == nil {
		return bot.Message{}, false
	}
	text := strings.TrimSpace(m.Text)
	if text == "" {
		return bot.Message{}, false
	}
	return bot.Message{
		SenderID:  strconv.FormatInt(m.From.ID, 10),
		ChatID:    strconv.FormatInt(m.Chat.ID, 10),
		Text:      text,
		Username:  m.From.Username,
		FirstName: m.From.FirstName,
	}, true
}
