// Package transcript writes per-user conversation logs as NDJSON.
package transcript

import (
	"encoding/json"
	"fmt"
	"html"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"
)

// Config controls where transcripts are written.
type Config struct {
	Enabled bool
	Dir     string
}

// Event is one logged line.
type Event struct {
	Timestamp  time.Time `json:"ts"`
	UserID     string    `json:"user_id"`
	Role       string    `json:"role"`
	Content    string    `json:"content"`
	ContentRaw string    `json:"content_raw,omitempty"`
}

// Logger appends events to <dir>/<user>/<date>.ndjson. Writes are
// synchronous and serialized; a failed write is logged and dropped.
type Logger struct {
	mu     sync.Mutex
	dir    string
	logger *slog.Logger
	now    func() time.Time
}

// New returns nil when transcripts are disabled. A nil *Logger is safe to
// use.
func New(cfg Config, logger *slog.Logger) (*Logger, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	if logger == nil {
		logger = slog.Default()
	}
	if strings.TrimSpace(cfg.Dir) == "" {
		return nil, fmt.Errorf("transcript dir is required when enabled")
	}
	if err := os.MkdirAll(cfg.Dir, 0o750); err != nil {
		return nil, fmt.Errorf("create transcript dir: %w", err)
	}
	return &Logger{dir: cfg.Dir, logger: logger, now: time.Now}, nil
}

// Record appends one line for userID.
func (l *Logger) Record(userID, role, text string) {
	if l == nil {
		return
	}
	ev := Event{
		Timestamp: l.now().UTC(),
		UserID:    userID,
		Role:      role,
		Content:   cleanForReadability(text),
	}
	if ev.Content != text {
		ev.ContentRaw = text
	}
	if err := l.write(ev); err != nil {
		l.logger.Warn("Failed to write transcript", "user_id", userID, "error", err)
	}
}

func (l *Logger) write(ev Event) error {
	line, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	dir := filepath.Join(l.dir, safeName(ev.UserID))
	path := filepath.Join(dir, ev.Timestamp.Format("2006-01-02")+".ndjson")

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := os.MkdirAll(dir, 0o750); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return err
	}
	if _, err := f.Write(append(line, '\n')); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

var (
	tagPattern      = regexp.MustCompile(`<[^>]*>`)
	unsafeNameChars = regexp.MustCompile(`[^A-Za-z0-9_-]`)
)

// cleanForReadability strips HTML markup from bot replies.
func cleanForReadability(s string) string {
	return html.UnescapeString(tagPattern.ReplaceAllString(s, ""))
}

func safeName(userID string) string {
	name := unsafeNameChars.ReplaceAllString(userID, "_")
	if name == "" {
		return "unknown"
	}
	return name
}
