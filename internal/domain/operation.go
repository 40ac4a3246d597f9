package domain

import "strconv"

// OperationKind identifies one of the semantic actions the classifier can
// route free text to. The numeric values are the classifier's wire numbers.
type OperationKind int

// Operation kinds. OpUnrecognized covers anything the classifier returned
// that could not be decoded into one of the nine supported actions.
const (
	OpUnrecognized OperationKind = iota
	OpSearch
	OpAddTask
	OpRemoveTask
	OpAddTaskAlert
	OpListTasks
	OpAddPeople
	OpListMeetings
	OpUpdateTask
	OpUpdatePerson
)

var operationNames = map[OperationKind]string{
	OpUnrecognized: "unrecognized",
	OpSearch:       "search",
	OpAddTask:      "add_task",
	OpRemoveTask:   "remove_task",
	OpAddTaskAlert: "add_task_alert",
	OpListTasks:    "list_tasks",
	OpAddPeople:    "add_people",
	OpListMeetings: "list_meetings",
	OpUpdateTask:   "update_task",
	OpUpdatePerson: "update_person",
}

func (k OperationKind) String() string {
	if name, ok := operationNames[k]; ok {
		return name
	}
	return "operation(" + strconv.Itoa(int(k)) + ")"
}

// Operation is a decoded classifier result. The concrete types below are the
// only implementations.
type Operation interface {
	Kind() OperationKind
}

// SearchOp searches people for the joined terms.
type SearchOp struct {
	Terms []string
}

// AddTaskOp creates a task. Optional fields are empty when absent.
type AddTaskOp struct {
	Text     string
	AssignTo string
	DueDate  string
	Status   string
	Label    string
	Priority string
}

// RemoveTaskOp deletes a task.
type RemoveTaskOp struct {
	TaskID string
}

// AddTaskAlertOp attaches a reminder to a task.
type AddTaskAlertOp struct {
	TaskID string
}

// ListTasksOp lists tasks, optionally filtered by one column and a period.
type ListTasksOp struct {
	Period string
	Field  string
	Value  string
}

// AddPeopleOp inserts a batch of people; each record is inserted on its own.
type AddPeopleOp struct {
	Records []Person
}

// ListMeetingsOp lists meetings in a period.
type ListMeetingsOp struct {
	Period string
}

// UpdateTaskOp sets a single column of a task.
type UpdateTaskOp struct {
	TaskID string
	Field  string
	Value  string
}

// UpdatePersonOp proposes a change to a person. PersonID may be empty, in
// which case the dispatcher resolves the target itself.
type UpdatePersonOp struct {
	PersonID string
	Updates  map[string]string
}

// Unrecognized is classifier output that could not be decoded. It is
// handled as a search over the original message text.
type Unrecognized struct {
	Raw    string
	Reason string
}

func (SearchOp) Kind() OperationKind       { return OpSearch }
func (AddTaskOp) Kind() OperationKind      { return OpAddTask }
func (RemoveTaskOp) Kind() OperationKind   { return OpRemoveTask }
func (AddTaskAlertOp) Kind() OperationKind { return OpAddTaskAlert }
func (ListTasksOp) Kind() OperationKind    { return OpListTasks }
func (AddPeopleOp) Kind() OperationKind    { return OpAddPeople }
func (ListMeetingsOp) Kind() OperationKind { return OpListMeetings }
func (UpdateTaskOp) Kind() OperationKind   { return OpUpdateTask }
func (UpdatePersonOp) Kind() OperationKind { return OpUpdatePerson }
func (Unrecognized) Kind() OperationKind   { return OpUnrecognized }
