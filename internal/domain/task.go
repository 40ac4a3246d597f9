package domain

import "time"

// Task column names.
const (
	TaskText     = "text"
	TaskAssignTo = "assign_to"
	TaskDueDate  = "due_date"
	TaskStatus   = "status"
	TaskLabel    = "label"
	TaskPriority = "priority"
)

// Task defaults applied when the request leaves them out.
const (
	DefaultTaskStatus   = "pending"
	DefaultTaskPriority = "medium"
)

// TaskUpdatableFields are the columns update_task and list_tasks filters may
// address.
var TaskUpdatableFields = map[string]bool{
	TaskText:     true,
	TaskAssignTo: true,
	TaskDueDate:  true,
	TaskStatus:   true,
	TaskLabel:    true,
	TaskPriority: true,
}

// Task is a to-do item. The ID is assigned by the store.
type Task struct {
	ID        string
	Text      string
	AssignTo  string
	DueDate   string
	Status    string
	Label     string
	Priority  string
	CreatedBy string
	CreatedAt time.Time
}

// TaskFilter narrows a task listing. Zero values mean "no constraint".
type TaskFilter struct {
	Field string
	Value string
	Since time.Time
}
