package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/ashureev/vcsearch/internal/domain"
	"github.com/google/uuid"
)

const personColumns = `id, full_name, email, company, categories, status, linkedin_profile,
	internal_contact, warm_intro, agenda, meeting_notes, more_info,
	newsletter, should_meet, created_by, created_at`

// InsertPerson stores a new person and returns its generated UUID.
func (s *SQLiteStore) InsertPerson(ctx context.Context, p *domain.Person) (string, error) {
	if strings.TrimSpace(p.FullName) == "" {
		return "", fmt.Errorf("insert person: full name is required")
	}

	id := uuid.NewString()
	createdAt := s.now()

	query := `INSERT INTO people (` + personColumns + `)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, query,
		id, p.FullName, nullString(p.Email), nullString(p.Company),
		nullString(p.Categories), nullString(p.Status), nullString(p.LinkedInProfile),
		nullString(p.InternalContact), nullString(p.WarmIntro), nullString(p.Agenda),
		nullString(p.MeetingNotes), nullString(p.MoreInfo),
		p.Newsletter, p.ShouldMeet, nullString(p.CreatedBy), createdAt.UnixNano(),
	)
	if err != nil {
		return "", fmt.Errorf("insert person: %w", err)
	}

	p.ID = id
	p.CreatedAt = createdAt
	return id, nil
}

// GetPerson retrieves a person by ID.
func (s *SQLiteStore) GetPerson(ctx context.Context, id string) (*domain.Person, error) {
	query := `SELECT ` + personColumns + ` FROM people WHERE id = ?`
	p, err := scanPerson(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get person: %w", err)
	}
	return p, nil
}

// LatestPerson retrieves the most recently created person, optionally
// restricted to one creator.
func (s *SQLiteStore) LatestPerson(ctx context.Context, createdBy string) (*domain.Person, error) {
	query := `SELECT ` + personColumns + ` FROM people`
	var args []interface{}
	if createdBy != "" {
		query += ` WHERE created_by = ?`
		args = append(args, createdBy)
	}
	query += ` ORDER BY created_at DESC, rowid DESC LIMIT 1`

	p, err := scanPerson(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("latest person: %w", err)
	}
	return p, nil
}

// UpdatePerson sets the given columns on one person. Column names must be in
// domain.PersonUpdatableFields.
func (s *SQLiteStore) UpdatePerson(ctx context.Context, id string, fields map[string]string) error {
	if len(fields) == 0 {
		return fmt.Errorf("update person: no fields to update")
	}

	// Sorted for a stable statement shape.
	names := make([]string, 0, len(fields))
	for name := range fields {
		if !domain.PersonUpdatableFields[name] {
			return fmt.Errorf("update person: unknown field %q", name)
		}
		names = append(names, name)
	}
	sort.Strings(names)

	sets := make([]string, 0, len(names))
	args := make([]interface{}, 0, len(names)+1)
	for _, name := range names {
		sets = append(sets, name+" = ?")
		value := fields[name]
		switch name {
		case domain.PersonNewsletter, domain.PersonShouldMeet:
			args = append(args, domain.ParseBool(value))
		case domain.PersonFullName:
			if strings.TrimSpace(value) == "" {
				return fmt.Errorf("update person: full name cannot be empty")
			}
			args = append(args, value)
		default:
			args = append(args, nullString(value))
		}
	}
	args = append(args, id)

	query := `UPDATE people SET ` + strings.Join(sets, ", ") + ` WHERE id = ?`
	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update person: %w", err)
	}
	return requireRow(result, "update person")
}

// SearchPeople matches query as a case-insensitive substring of any search
// field.
func (s *SQLiteStore) SearchPeople(ctx context.Context, query string, limit int) ([]domain.Person, error) {
	pattern := "%" + escapeLike(strings.ToLower(query)) + "%"

	conds := make([]string, 0, len(domain.PersonSearchFields))
	args := make([]interface{}, 0, len(domain.PersonSearchFields)+1)
	for _, field := range domain.PersonSearchFields {
		conds = append(conds, "lower(COALESCE("+field+", '')) LIKE ? ESCAPE '\\'")
		args = append(args, pattern)
	}
	args = append(args, limit)

	stmt := `SELECT ` + personColumns + ` FROM people WHERE ` +
		strings.Join(conds, " OR ") +
		` ORDER BY created_at DESC, rowid DESC LIMIT ?`

	rows, err := s.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("search people: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close people search rows", "error", closeErr)
		}
	}()

	var people []domain.Person
	for rows.Next() {
		p, err := scanPerson(rows)
		if err != nil {
			return nil, fmt.Errorf("scan person row: %w", err)
		}
		people = append(people, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate people: %w", err)
	}
	return people, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanPerson(row rowScanner) (*domain.Person, error) {
	var p domain.Person
	var email, company, categories, status, linkedin sql.NullString
	var internalContact, warmIntro, agenda, meetingNotes, moreInfo sql.NullString
	var createdBy sql.NullString
	var createdAt int64

	err := row.Scan(
		&p.ID, &p.FullName, &email, &company, &categories, &status, &linkedin,
		&internalContact, &warmIntro, &agenda, &meetingNotes, &moreInfo,
		&p.Newsletter, &p.ShouldMeet, &createdBy, &createdAt,
	)
	if err != nil {
		return nil, err
	}

	p.Email = email.String
	p.Company = company.String
	p.Categories = categories.String
	p.Status = status.String
	p.LinkedInProfile = linkedin.String
	p.InternalContact = internalContact.String
	p.WarmIntro = warmIntro.String
	p.Agenda = agenda.String
	p.MeetingNotes = meetingNotes.String
	p.MoreInfo = moreInfo.String
	p.CreatedBy = createdBy.String
	p.CreatedAt = time.Unix(0, createdAt)
	return &p, nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func requireRow(result sql.Result, op string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: rows affected: %w", op, err)
	}
	if rows == 0 {
		return domain.ErrNotFound
	}
	return nil
}
