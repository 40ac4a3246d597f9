package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ashureev/vcsearch/internal/domain"
	"github.com/ashureev/vcsearch/internal/store"
)

// resultLimit caps search hits and task listings.
const resultLimit = 10

var periodWindows = map[string]time.Duration{
	"daily":   24 * time.Hour,
	"today":   24 * time.Hour,
	"weekly":  7 * 24 * time.Hour,
	"monthly": 30 * 24 * time.Hour,
}

// dispatcher executes decoded operations against the data stores. Every
// handler answers with a user-facing reply; errors never escape.
type dispatcher struct {
	people    store.PeopleStore
	tasks     store.TaskStore
	timeout   time.Duration
	taskOwner string
	logger    *slog.Logger
	now       func() time.Time
}

// newDispatcher creates a dispatcher.
func newDispatcher(people store.PeopleStore, tasks store.TaskStore, opts Options, logger *slog.Logger) *dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &dispatcher{
		people:    people,
		tasks:     tasks,
		timeout:   opts.StoreTimeout,
		taskOwner: opts.TaskOwner,
		logger:    logger,
		now:       time.Now,
	}
}

// dispatch runs op for actor. raw is the original message text, used as the
// search query when op could not be decoded.
func (d *dispatcher) dispatch(ctx context.Context, actor, raw string, op domain.Operation) outcome {
	switch op := op.(type) {
	case domain.SearchOp:
		query := strings.TrimSpace(strings.Join(op.Terms, " "))
		if query == "" {
			query = raw
		}
		return d.search(ctx, query)
	case domain.AddTaskOp:
		return d.addTask(ctx, actor, op)
	case domain.RemoveTaskOp:
		return d.removeTask(ctx, op)
	case domain.AddTaskAlertOp:
		if strings.TrimSpace(op.TaskID) == "" {
			return reply(msgTaskNeedsID)
		}
		return reply(msgTaskAlertSoon)
	case domain.ListTasksOp:
		return d.listTasks(ctx, op)
	case domain.AddPeopleOp:
		return d.addPeople(ctx, actor, op)
	case domain.ListMeetingsOp:
		return reply(msgMeetingsSoon)
	case domain.UpdateTaskOp:
		return d.updateTask(ctx, op)
	case domain.UpdatePersonOp:
		return d.proposePersonUpdate(ctx, actor, op)
	case domain.Unrecognized:
		d.logger.Info("Falling back to search", "reason", op.Reason)
		return d.search(ctx, raw)
	}
	d.logger.Error("Operation without handler", "operation", fmt.Sprintf("%T", op))
	return d.search(ctx, raw)
}

// search runs the shared people search and renders the hits.
func (d *dispatcher) search(ctx context.Context, query string) outcome {
	ctx, cancel := withTimeout(ctx, d.timeout)
	defer cancel()

	people, err := d.people.SearchPeople(ctx, query, resultLimit)
	if err != nil {
		d.logger.Error("People search failed", "query", query, "error", err)
		return reply(msgSearchFailed)
	}
	return reply(renderSearchResults(query, people))
}

// insertPerson stores one person created by the wizard.
func (d *dispatcher) insertPerson(ctx context.Context, p *domain.Person) error {
	ctx, cancel := withTimeout(ctx, d.timeout)
	defer cancel()
	_, err := d.people.InsertPerson(ctx, p)
	return err
}

// applyPersonUpdate writes a confirmed pending update.
func (d *dispatcher) applyPersonUpdate(ctx context.Context, pending domain.PendingUpdate) error {
	ctx, cancel := withTimeout(ctx, d.timeout)
	defer cancel()
	return d.people.UpdatePerson(ctx, pending.TargetID, pending.Fields)
}

func (d *dispatcher) addTask(ctx context.Context, actor string, op domain.AddTaskOp) outcome {
	text := strings.TrimSpace(op.Text)
	if text == "" {
		return reply(msgTaskNeedsText)
	}

	task := &domain.Task{
		Text:      text,
		AssignTo:  op.AssignTo,
		DueDate:   op.DueDate,
		Status:    defaultString(op.Status, domain.DefaultTaskStatus),
		Label:     op.Label,
		Priority:  defaultString(op.Priority, domain.DefaultTaskPriority),
		CreatedBy: defaultString(actor, d.taskOwner),
	}

	ctx, cancel := withTimeout(ctx, d.timeout)
	defer cancel()
	if _, err := d.tasks.InsertTask(ctx, task); err != nil {
		d.logger.Error("Failed to add task", "error", err)
		return reply(msgTaskAddFailed)
	}
	return reply(renderTaskAdded(task))
}

func (d *dispatcher) removeTask(ctx context.Context, op domain.RemoveTaskOp) outcome {
	id := strings.TrimSpace(op.TaskID)
	if id == "" {
		return reply(msgTaskNeedsID)
	}

	ctx, cancel := withTimeout(ctx, d.timeout)
	defer cancel()
	err := d.tasks.DeleteTask(ctx, id)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return reply(fmt.Sprintf(msgTaskNotFound, esc(id)))
	case err != nil:
		d.logger.Error("Failed to remove task", "task_id", id, "error", err)
		return reply(msgTaskRemoveFailed)
	}
	return reply(fmt.Sprintf("✅ Task %s removed successfully.", esc(id)))
}

func (d *dispatcher) listTasks(ctx context.Context, op domain.ListTasksOp) outcome {
	var filter domain.TaskFilter
	if op.Field != "" && strings.TrimSpace(op.Value) != "" {
		filter.Field = op.Field
		filter.Value = strings.TrimSpace(op.Value)
	}
	if window, ok := periodWindows[strings.ToLower(op.Period)]; ok {
		filter.Since = d.now().Add(-window)
	}

	ctx, cancel := withTimeout(ctx, d.timeout)
	defer cancel()
	tasks, err := d.tasks.ListTasks(ctx, filter, resultLimit)
	if err != nil {
		d.logger.Error("Failed to list tasks", "error", err)
		return reply(msgTaskListFailed)
	}
	return reply(renderTaskList(tasks))
}

// addPeople inserts each named record on its own; a failed insert does not
// stop the rest of the batch.
func (d *dispatcher) addPeople(ctx context.Context, actor string, op domain.AddPeopleOp) outcome {
	if len(op.Records) == 0 {
		return reply(msgPeopleNeedDetails)
	}

	var added []string
	for i := range op.Records {
		p := op.Records[i]
		p.FullName = strings.TrimSpace(p.FullName)
		if p.FullName == "" {
			continue
		}
		p.CreatedBy = actor
		if err := d.insertPerson(ctx, &p); err != nil {
			d.logger.Error("Failed to add person", "name", p.FullName, "error", err)
			continue
		}
		added = append(added, p.FullName)
	}

	if len(added) == 0 {
		return reply(msgPeopleNoneAdded)
	}
	return reply(renderPeopleAdded(added))
}

func (d *dispatcher) updateTask(ctx context.Context, op domain.UpdateTaskOp) outcome {
	id := strings.TrimSpace(op.TaskID)
	value := strings.TrimSpace(op.Value)
	if id == "" || op.Field == "" || value == "" {
		return reply(msgTaskUpdateUsage)
	}

	ctx, cancel := withTimeout(ctx, d.timeout)
	defer cancel()
	err := d.tasks.UpdateTask(ctx, id, op.Field, value)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return reply(fmt.Sprintf(msgTaskNotFound, esc(id)))
	case err != nil:
		d.logger.Error("Failed to update task", "task_id", id, "field", op.Field, "error", err)
		return reply(msgTaskUpdateFailed)
	}
	return reply(fmt.Sprintf("✅ Task %s updated: %s = %s", esc(id), op.Field, esc(value)))
}

// proposePersonUpdate is the first phase of update_person. It resolves the
// target, previews the change, and parks it in PendingUpdate without
// touching the record.
func (d *dispatcher) proposePersonUpdate(ctx context.Context, actor string, op domain.UpdatePersonOp) outcome {
	if len(op.Updates) == 0 {
		return reply(msgUpdateNeedsFields)
	}
	if name, ok := op.Updates[domain.PersonFullName]; ok && strings.TrimSpace(name) == "" {
		return reply(msgUpdateNameEmpty)
	}

	target, err := d.resolveTarget(ctx, actor, op.PersonID)
	switch {
	case errors.Is(err, domain.ErrNotFound) && op.PersonID != "":
		return reply(fmt.Sprintf(msgPersonNotFound, esc(op.PersonID)))
	case errors.Is(err, domain.ErrNotFound):
		return reply(msgNoPersonToUpdate)
	case err != nil:
		d.logger.Error("Failed to resolve person for update", "person_id", op.PersonID, "error", err)
		return reply(msgUpdateFailed)
	}

	fields := make(map[string]string, len(op.Updates))
	for k, v := range op.Updates {
		fields[k] = v
	}
	return transition(
		domain.PendingUpdate{TargetID: target.ID, Fields: fields},
		renderUpdatePreview(target, fields),
	)
}

// resolveTarget prefers an explicit id, then the actor's most recent person,
// then the most recent person overall.
func (d *dispatcher) resolveTarget(ctx context.Context, actor, id string) (*domain.Person, error) {
	ctx, cancel := withTimeout(ctx, d.timeout)
	defer cancel()

	if id != "" {
		return d.people.GetPerson(ctx, id)
	}
	if actor != "" {
		p, err := d.people.LatestPerson(ctx, actor)
		if !errors.Is(err, domain.ErrNotFound) {
			return p, err
		}
	}
	return d.people.LatestPerson(ctx, "")
}

func defaultString(v, fallback string) string {
	if v = strings.TrimSpace(v); v != "" {
		return v
	}
	return fallback
}
