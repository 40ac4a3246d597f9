package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/ashureev/vcsearch/internal/domain"
	"github.com/ashureev/vcsearch/internal/shared"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLite creates a new SQLite-backed repository.
func NewSQLite(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// Open database with WAL mode for better concurrency.
	dsn := dbPath + "?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(8)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db, now: time.Now}
	if err := store.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	CREATE TABLE IF NOT EXISTS telegram_users (
		user_id TEXT PRIMARY KEY,
		current_state TEXT NOT NULL DEFAULT 'idle',
		state_step TEXT,
		state_data TEXT NOT NULL DEFAULT '{}',
		is_authenticated INTEGER NOT NULL DEFAULT 0,
		authenticated_at INTEGER,
		username TEXT,
		first_name TEXT,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS people (
		id TEXT PRIMARY KEY,
		full_name TEXT NOT NULL,
		email TEXT,
		company TEXT,
		categories TEXT,
		status TEXT,
		linkedin_profile TEXT,
		internal_contact TEXT,
		warm_intro TEXT,
		agenda TEXT,
		meeting_notes TEXT,
		more_info TEXT,
		newsletter INTEGER NOT NULL DEFAULT 0,
		should_meet INTEGER NOT NULL DEFAULT 0,
		created_by TEXT,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_people_created ON people(created_at);
	CREATE INDEX IF NOT EXISTS idx_people_created_by ON people(created_by, created_at);

	CREATE TABLE IF NOT EXISTS tasks (
		task_id INTEGER PRIMARY KEY AUTOINCREMENT,
		text TEXT NOT NULL,
		assign_to TEXT,
		due_date TEXT,
		status TEXT NOT NULL,
		label TEXT,
		priority TEXT NOT NULL,
		created_by TEXT,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_tasks_created ON tasks(created_at);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

// GetSession retrieves a user's session, defaulting to idle for new users.
func (s *SQLiteStore) GetSession(ctx context.Context, userID string) (*domain.Session, error) {
	query := `
		SELECT current_state, state_step, state_data,
		       is_authenticated, authenticated_at, username, first_name
		FROM telegram_users WHERE user_id = ?`

	var (
		state           string
		step, data      sql.NullString
		isAuthenticated bool
		authenticatedAt sql.NullInt64
		username, first sql.NullString
	)
	err := s.db.QueryRowContext(ctx, query, userID).Scan(
		&state, &step, &data,
		&isAuthenticated, &authenticatedAt, &username, &first,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.NewSession(userID), nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan session row: %w", err)
	}

	session := domain.NewSession(userID)
	session.Auth = domain.AuthRecord{
		IsAuthenticated: isAuthenticated,
		Username:        username.String,
		FirstName:       first.String,
	}
	if authenticatedAt.Valid {
		session.Auth.AuthenticatedAt = time.Unix(0, authenticatedAt.Int64)
	}

	current, err := domain.DecodeState(domain.State(state), step.String, []byte(data.String))
	if err != nil {
		// A corrupt payload only costs the user their in-flight flow.
		slog.Warn("Discarding unreadable session state", "user_id", userID, "state", state, "error", err)
	}
	session.State = current

	return session, nil
}

// SaveState upserts the conversation state columns of a user's row.
func (s *SQLiteStore) SaveState(ctx context.Context, userID string, state domain.ConversationState) error {
	name, step, data, err := domain.EncodeState(state)
	if err != nil {
		return err
	}

	query := `
	INSERT INTO telegram_users (user_id, current_state, state_step, state_data, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?)
	ON CONFLICT(user_id) DO UPDATE SET
		current_state = excluded.current_state,
		state_step = excluded.state_step,
		state_data = excluded.state_data,
		updated_at = excluded.updated_at`

	now := s.now().UnixNano()
	return s.execWithRetry(ctx, "save session state", userID, query,
		userID, string(name), nullString(step), string(data), now, now,
	)
}

// SaveAuth upserts the authentication columns of a user's row.
func (s *SQLiteStore) SaveAuth(ctx context.Context, userID string, auth domain.AuthRecord) error {
	query := `
	INSERT INTO telegram_users (user_id, is_authenticated, authenticated_at, username, first_name, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(user_id) DO UPDATE SET
		is_authenticated = excluded.is_authenticated,
		authenticated_at = excluded.authenticated_at,
		username = excluded.username,
		first_name = excluded.first_name,
		updated_at = excluded.updated_at`

	var authenticatedAt interface{}
	if !auth.AuthenticatedAt.IsZero() {
		authenticatedAt = auth.AuthenticatedAt.UnixNano()
	}

	now := s.now().UnixNano()
	return s.execWithRetry(ctx, "save session auth", userID, query,
		userID, auth.IsAuthenticated, authenticatedAt,
		nullString(auth.Username), nullString(auth.FirstName), now, now,
	)
}

// execWithRetry runs a session write, retrying with exponential backoff
// while SQLite reports lock contention.
func (s *SQLiteStore) execWithRetry(ctx context.Context, op, userID, query string, args ...interface{}) error {
	maxRetries := 3
	baseDelay := 50 * time.Millisecond

	var err error
	for i := 0; i < maxRetries; i++ {
		if _, err = s.db.ExecContext(ctx, query, args...); err == nil {
			return nil
		}
		if !shared.IsSQLiteConflictError(err) || i == maxRetries-1 {
			break
		}

		delay := baseDelay * time.Duration(1<<i) // 50ms, 100ms
		slog.Debug("Session write hit a locked database, retrying",
			"op", op,
			"user_id", userID,
			"attempt", i+1,
			"delay", delay)
		select {
		case <-ctx.Done():
			return fmt.Errorf("%s: %w", op, ctx.Err())
		case <-time.After(delay):
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}

func nullString(v string) interface{} {
	if v == "" {
		return nil
	}
	return v
}
