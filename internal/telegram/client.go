// Package telegram is a minimal Telegram Bot API client covering the calls
// the bot needs: sendMessage, setWebhook and setMyCommands.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// MaxMessageLength is Telegram's limit for one text message.
const MaxMessageLength = 4096

// Client talks to the Bot API over HTTPS.
type Client struct {
	http    *http.Client
	baseURL string
	token   string
	logger  *slog.Logger
}

// NewClient creates a Client. A nil httpClient gets a default with timeout.
func NewClient(httpClient *http.Client, baseURL, token string, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		http:    httpClient,
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		logger:  logger,
	}
}

// Update is an incoming webhook payload. Only plain messages are handled.
type Update struct {
	UpdateID int64    `json:"update_id"`
	Message  *Message `json:"message,omitempty"`
}

// Message is the subset of a Telegram message the bot reads.
type Message struct {
	MessageID int64  `json:"message_id"`
	Date      int64  `json:"date,omitempty"`
	Chat      *Chat  `json:"chat,omitempty"`
	From      *User  `json:"from,omitempty"`
	Text      string `json:"text,omitempty"`
}

// Chat identifies the conversation a message belongs to.
type Chat struct {
	ID   int64  `json:"id"`
	Type string `json:"type,omitempty"`
}

// User is the sender of a message.
type User struct {
	ID        int64  `json:"id"`
	IsBot     bool   `json:"is_bot,omitempty"`
	Username  string `json:"username,omitempty"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
}

// BotCommand is one entry of the bot's command menu.
type BotCommand struct {
	Command     string `json:"command"`
	Description string `json:"description"`
}

// RequestError is a non-OK response from the Bot API.
type RequestError struct {
	Method      string
	StatusCode  int
	ErrorCode   int
	Description string
}

func (e *RequestError) Error() string {
	if desc := strings.TrimSpace(e.Description); desc != "" {
		return fmt.Sprintf("telegram %s: http %d: %s", e.Method, e.StatusCode, desc)
	}
	return fmt.Sprintf("telegram %s: http %d", e.Method, e.StatusCode)
}

// IsParseError reports whether Telegram rejected the message's formatting.
func IsParseError(err error) bool {
	var reqErr *RequestError
	if !errors.As(err, &reqErr) {
		return false
	}
	desc := strings.ToLower(reqErr.Description)
	return strings.Contains(desc, "can't parse entities") || strings.Contains(desc, "can't parse entity")
}

type sendMessageRequest struct {
	ChatID                interface{} `json:"chat_id"`
	Text                  string      `json:"text"`
	ParseMode             string      `json:"parse_mode,omitempty"`
	DisableWebPagePreview bool        `json:"disable_web_page_preview,omitempty"`
}

type setWebhookRequest struct {
	URL            string   `json:"url"`
	SecretToken    string   `json:"secret_token,omitempty"`
	MaxConnections int      `json:"max_connections"`
	AllowedUpdates []string `json:"allowed_updates"`
}

type setMyCommandsRequest struct {
	Commands []BotCommand `json:"commands"`
}

type okResponse struct {
	OK          bool   `json:"ok"`
	ErrorCode   int    `json:"error_code,omitempty"`
	Description string `json:"description,omitempty"`
}

// SendMessage sends HTML-formatted text. If Telegram rejects the markup the
// text is resent once without a parse mode.
func (c *Client) SendMessage(ctx context.Context, chatID, text string) error {
	text = truncateRunes(text, MaxMessageLength)
	req := sendMessageRequest{
		ChatID:                chatIDValue(chatID),
		Text:                  text,
		ParseMode:             "HTML",
		DisableWebPagePreview: true,
	}
	err := c.call(ctx, "sendMessage", req)
	if err == nil || !IsParseError(err) {
		return err
	}

	c.logger.Warn("HTML rejected, resending as plain text", "chat_id", chatID, "error", err)
	req.ParseMode = ""
	return c.call(ctx, "sendMessage", req)
}

// SetWebhook registers url as the update endpoint. Only message updates are
// requested.
func (c *Client) SetWebhook(ctx context.Context, url, secret string) error {
	return c.call(ctx, "setWebhook", setWebhookRequest{
		URL:            url,
		SecretToken:    secret,
		MaxConnections: 40,
		AllowedUpdates: []string{"message"},
	})
}

// SetCommands replaces the bot's command menu.
func (c *Client) SetCommands(ctx context.Context, commands []BotCommand) error {
	return c.call(ctx, "setMyCommands", setMyCommandsRequest{Commands: commands})
}

func (c *Client) call(ctx context.Context, method string, body interface{}) error {
	b, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("telegram %s: encode request: %w", method, err)
	}

	url := fmt.Sprintf("%s/bot%s/%s", c.baseURL, c.token, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return fmt.Errorf("telegram %s: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		// The URL embeds the token; do not let it leak into logs.
		return fmt.Errorf("telegram %s: %w", method, redact(err, c.token))
	}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	_ = resp.Body.Close()

	var out okResponse
	_ = json.Unmarshal(raw, &out)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 || !out.OK {
		desc := out.Description
		if desc == "" {
			desc = strings.TrimSpace(string(raw))
		}
		return &RequestError{
			Method:      method,
			StatusCode:  resp.StatusCode,
			ErrorCode:   out.ErrorCode,
			Description: desc,
		}
	}
	return nil
}

// chatIDValue sends numeric chat IDs as numbers and channel usernames as
// strings.
func chatIDValue(chatID string) interface{} {
	if n, err := strconv.ParseInt(chatID, 10, 64); err == nil {
		return n
	}
	return chatID
}

// truncateRunes caps s at n runes. The cut backs up to the last line break so
// a tag or entity is never split; a single long line is cut before any
// unterminated tag or entity instead.
func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	cut := string(r[:n-3])
	if i := strings.LastIndexByte(cut, '\n'); i > 0 {
		return cut[:i] + "\n..."
	}
	return trimPartialMarkup(cut) + "..."
}

func trimPartialMarkup(s string) string {
	if lt := strings.LastIndexByte(s, '<'); lt > strings.LastIndexByte(s, '>') {
		s = s[:lt]
	}
	if amp := strings.LastIndexByte(s, '&'); amp > strings.LastIndexByte(s, ';') {
		s = s[:amp]
	}
	return s
}

func redact(err error, token string) error {
	if token == "" {
		return err
	}
	msg := err.Error()
	if !strings.Contains(msg, token) {
		return err
	}
	return errors.New(strings.ReplaceAll(msg, token, "<redacted>"))
}
