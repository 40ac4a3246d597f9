package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/ashureev/vcsearch/internal/domain"
)

// InsertTask stores a new task and returns its numeric ID as a string.
func (s *SQLiteStore) InsertTask(ctx context.Context, t *domain.Task) (string, error) {
	createdAt := s.now()
	query := `
	INSERT INTO tasks (text, assign_to, due_date, status, label, priority, created_by, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	result, err := s.db.ExecContext(ctx, query,
		t.Text, nullString(t.AssignTo), nullString(t.DueDate), t.Status,
		nullString(t.Label), t.Priority, nullString(t.CreatedBy), createdAt.UnixNano(),
	)
	if err != nil {
		return "", fmt.Errorf("insert task: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return "", fmt.Errorf("insert task: last insert id: %w", err)
	}

	t.ID = strconv.FormatInt(id, 10)
	t.CreatedAt = createdAt
	return t.ID, nil
}

// DeleteTask removes a task by ID.
func (s *SQLiteStore) DeleteTask(ctx context.Context, id string) error {
	taskID, err := parseTaskID(id)
	if err != nil {
		return err
	}
	result, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE task_id = ?`, taskID)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	return requireRow(result, "delete task")
}

// UpdateTask sets one column of a task. The column must be in
// domain.TaskUpdatableFields.
func (s *SQLiteStore) UpdateTask(ctx context.Context, id, field, value string) error {
	if !domain.TaskUpdatableFields[field] {
		return fmt.Errorf("update task: unknown field %q", field)
	}
	taskID, err := parseTaskID(id)
	if err != nil {
		return err
	}

	var arg interface{} = value
	switch field {
	case domain.TaskText, domain.TaskStatus, domain.TaskPriority:
		// NOT NULL columns keep the literal value.
	default:
		arg = nullString(value)
	}

	query := `UPDATE tasks SET ` + field + ` = ? WHERE task_id = ?`
	result, err := s.db.ExecContext(ctx, query, arg, taskID)
	if err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	return requireRow(result, "update task")
}

// ListTasks returns tasks matching an optional equality filter and creation
// cutoff, newest first.
func (s *SQLiteStore) ListTasks(ctx context.Context, filter domain.TaskFilter, limit int) ([]domain.Task, error) {
	var conds []string
	var args []interface{}

	if filter.Field != "" {
		if !domain.TaskUpdatableFields[filter.Field] {
			return nil, fmt.Errorf("list tasks: unknown filter field %q", filter.Field)
		}
		conds = append(conds, filter.Field+" = ? COLLATE NOCASE")
		args = append(args, filter.Value)
	}
	if !filter.Since.IsZero() {
		conds = append(conds, "created_at >= ?")
		args = append(args, filter.Since.UnixNano())
	}

	query := `SELECT task_id, text, assign_to, due_date, status, label, priority, created_by, created_at FROM tasks`
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, " AND ")
	}
	query += ` ORDER BY created_at DESC, task_id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close task rows", "error", closeErr)
		}
	}()

	var tasks []domain.Task
	for rows.Next() {
		var t domain.Task
		var id, createdAt int64
		var assignTo, dueDate, label, createdBy sql.NullString
		if err := rows.Scan(&id, &t.Text, &assignTo, &dueDate, &t.Status, &label, &t.Priority, &createdBy, &createdAt); err != nil {
			return nil, fmt.Errorf("scan task row: %w", err)
		}
		t.ID = strconv.FormatInt(id, 10)
		t.AssignTo = assignTo.String
		t.DueDate = dueDate.String
		t.Label = label.String
		t.CreatedBy = createdBy.String
		t.CreatedAt = time.Unix(0, createdAt)
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tasks: %w", err)
	}
	return tasks, nil
}

// parseTaskID maps a non-numeric ID to ErrNotFound; no such task can exist.
func parseTaskID(id string) (int64, error) {
	n, err := strconv.ParseInt(strings.TrimPrefix(strings.TrimSpace(id), "#"), 10, 64)
	if err != nil {
		return 0, domain.ErrNotFound
	}
	return n, nil
}
