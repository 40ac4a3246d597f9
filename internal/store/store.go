// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"

	"github.com/ashureev/vcsearch/internal/domain"
)

// SessionStore persists per-user conversation sessions.
//
// State and authentication are written through separate methods that touch
// disjoint columns, so a state transition can never clear IsAuthenticated.
type SessionStore interface {
	// GetSession returns the user's session, or a fresh idle session if the
	// user has never been seen.
	GetSession(ctx context.Context, userID string) (*domain.Session, error)

	// SaveState upserts only the conversation state columns.
	SaveState(ctx context.Context, userID string, state domain.ConversationState) error

	// SaveAuth upserts only the authentication columns.
	SaveAuth(ctx context.Context, userID string, auth domain.AuthRecord) error
}

// PeopleStore provides access to person records.
type PeopleStore interface {
	// InsertPerson stores a new person and returns its assigned ID.
	InsertPerson(ctx context.Context, p *domain.Person) (string, error)

	// GetPerson returns domain.ErrNotFound if no person has the ID.
	GetPerson(ctx context.Context, id string) (*domain.Person, error)

	// LatestPerson returns the most recently created person. When createdBy
	// is non-empty only that user's records are considered. It returns
	// domain.ErrNotFound when there is no candidate.
	LatestPerson(ctx context.Context, createdBy string) (*domain.Person, error)

	// UpdatePerson sets the given canonical columns on one person.
	UpdatePerson(ctx context.Context, id string, fields map[string]string) error

	// SearchPeople runs a case-insensitive substring match of query across
	// domain.PersonSearchFields, newest first.
	SearchPeople(ctx context.Context, query string, limit int) ([]domain.Person, error)
}

// TaskStore provides access to task records.
type TaskStore interface {
	// InsertTask stores a new task and returns its assigned ID.
	InsertTask(ctx context.Context, t *domain.Task) (string, error)

	// DeleteTask returns domain.ErrNotFound if no task has the ID.
	DeleteTask(ctx context.Context, id string) error

	// UpdateTask sets a single column. It returns domain.ErrNotFound if no
	// task has the ID.
	UpdateTask(ctx context.Context, id, field, value string) error

	// ListTasks returns at most limit tasks matching the filter, newest first.
	ListTasks(ctx context.Context, filter domain.TaskFilter, limit int) ([]domain.Task, error)
}

// Repository is the full persistence surface used by the server.
type Repository interface {
	SessionStore
	PeopleStore
	TaskStore

	// Ping verifies database connectivity and returns an error if the database is unreachable.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}
