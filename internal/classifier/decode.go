package classifier

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"unicode"

	"github.com/ashureev/vcsearch/internal/domain"
)

// Decode turns a raw classifier reply into an Operation. Anything that is not
// a well-formed [number, params] pair with a known number decodes to
// domain.Unrecognized; Decode never fails.
//
// Parameter key aliases are normalized here so the dispatcher only ever sees
// canonical field names.
func Decode(raw string) domain.Operation {
	body := stripFences(raw)

	var pair []json.RawMessage
	if err := unmarshalNumber([]byte(body), &pair); err != nil {
		return domain.Unrecognized{Raw: raw, Reason: "reply is not a JSON array"}
	}
	if len(pair) == 0 {
		return domain.Unrecognized{Raw: raw, Reason: "empty array"}
	}

	kind, ok := decodeKind(pair[0])
	if !ok {
		return domain.Unrecognized{Raw: raw, Reason: "operation number is not an integer"}
	}

	var params interface{}
	if len(pair) > 1 {
		if err := unmarshalNumber(pair[1], &params); err != nil {
			return domain.Unrecognized{Raw: raw, Reason: "malformed parameters"}
		}
	}

	switch kind {
	case domain.OpSearch:
		return domain.SearchOp{Terms: searchTerms(params)}
	case domain.OpAddTask:
		return decodeAddTask(params)
	case domain.OpRemoveTask:
		return domain.RemoveTaskOp{TaskID: taskID(params)}
	case domain.OpAddTaskAlert:
		return domain.AddTaskAlertOp{TaskID: taskID(params)}
	case domain.OpListTasks:
		return decodeListTasks(params)
	case domain.OpAddPeople:
		return domain.AddPeopleOp{Records: decodePeople(params)}
	case domain.OpListMeetings:
		return domain.ListMeetingsOp{Period: period(params)}
	case domain.OpUpdateTask:
		return decodeUpdateTask(params)
	case domain.OpUpdatePerson:
		return decodeUpdatePerson(params)
	}
	return domain.Unrecognized{Raw: raw, Reason: fmt.Sprintf("unknown operation number %d", int(kind))}
}

func stripFences(raw string) string {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func unmarshalNumber(data []byte, v interface{}) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	return dec.Decode(v)
}

func decodeKind(raw json.RawMessage) (domain.OperationKind, bool) {
	var v interface{}
	if err := unmarshalNumber(raw, &v); err != nil {
		return 0, false
	}
	var n json.Number
	switch x := v.(type) {
	case json.Number:
		n = x
	case string:
		n = json.Number(strings.TrimSpace(x))
	default:
		return 0, false
	}
	i, err := n.Int64()
	if err != nil || i < 0 || i > 1<<16 {
		return 0, false
	}
	return domain.OperationKind(i), true
}

// canonKey lowercases a parameter key and converts camelCase, spaces and
// hyphens to snake_case.
func canonKey(k string) string {
	var b strings.Builder
	runes := []rune(strings.TrimSpace(k))
	for i, r := range runes {
		switch {
		case r == ' ' || r == '-':
			b.WriteByte('_')
		case unicode.IsUpper(r):
			if i > 0 && unicode.IsLower(runes[i-1]) {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(r))
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// stringify renders a decoded JSON value as a trimmed string. Arrays are
// joined with ", ".
func stringify(v interface{}) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(x)
	case json.Number:
		return x.String()
	case bool:
		if x {
			return "true"
		}
		return "false"
	case []interface{}:
		parts := make([]string, 0, len(x))
		for _, item := range x {
			if s := stringify(item); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, ", ")
	default:
		b, err := json.Marshal(x)
		if err != nil {
			return ""
		}
		return string(b)
	}
}

// lookup returns the first value whose canonical key is in names.
func lookup(obj map[string]interface{}, names ...string) (interface{}, bool) {
	for _, name := range names {
		for k, v := range obj {
			if canonKey(k) == name {
				return v, true
			}
		}
	}
	return nil, false
}

func lookupString(obj map[string]interface{}, names ...string) string {
	v, _ := lookup(obj, names...)
	return stringify(v)
}

func searchTerms(params interface{}) []string {
	switch x := params.(type) {
	case []interface{}:
		terms := make([]string, 0, len(x))
		for _, item := range x {
			if s := stringify(item); s != "" {
				terms = append(terms, s)
			}
		}
		return terms
	case map[string]interface{}:
		if v, ok := lookup(x, "words", "terms", "query", "keywords", "q"); ok {
			return searchTerms(v)
		}
		return nil
	default:
		if s := stringify(x); s != "" {
			return []string{s}
		}
		return nil
	}
}

var taskFieldAliases = map[string]string{
	"text":        domain.TaskText,
	"task_text":   domain.TaskText,
	"task":        domain.TaskText,
	"title":       domain.TaskText,
	"description": domain.TaskText,
	"assign_to":   domain.TaskAssignTo,
	"assignee":    domain.TaskAssignTo,
	"assigned_to": domain.TaskAssignTo,
	"owner":       domain.TaskAssignTo,
	"due_date":    domain.TaskDueDate,
	"due":         domain.TaskDueDate,
	"deadline":    domain.TaskDueDate,
	"status":      domain.TaskStatus,
	"label":       domain.TaskLabel,
	"tag":         domain.TaskLabel,
	"priority":    domain.TaskPriority,
}

// taskField maps a user-facing task field name to its column, or "" when it
// names no task column.
func taskField(name string) string {
	return taskFieldAliases[canonKey(name)]
}

func decodeAddTask(params interface{}) domain.Operation {
	obj, ok := params.(map[string]interface{})
	if !ok {
		return domain.AddTaskOp{Text: stringify(params)}
	}
	var op domain.AddTaskOp
	for k, v := range obj {
		value := stringify(v)
		switch taskField(k) {
		case domain.TaskText:
			if op.Text == "" {
				op.Text = value
			}
		case domain.TaskAssignTo:
			op.AssignTo = value
		case domain.TaskDueDate:
			op.DueDate = value
		case domain.TaskStatus:
			op.Status = value
		case domain.TaskLabel:
			op.Label = value
		case domain.TaskPriority:
			op.Priority = value
		}
	}
	return op
}

func taskID(params interface{}) string {
	switch x := params.(type) {
	case map[string]interface{}:
		return strings.TrimPrefix(lookupString(x, "task_id", "id", "task", "number"), "#")
	case []interface{}:
		if len(x) > 0 {
			return taskID(x[0])
		}
		return ""
	default:
		return strings.TrimPrefix(stringify(x), "#")
	}
}

func period(params interface{}) string {
	if obj, ok := params.(map[string]interface{}); ok {
		return strings.ToLower(lookupString(obj, "period", "range", "timeframe", "time_frame"))
	}
	return strings.ToLower(stringify(params))
}

func decodeListTasks(params interface{}) domain.Operation {
	obj, ok := params.(map[string]interface{})
	if !ok {
		return domain.ListTasksOp{Period: strings.ToLower(stringify(params))}
	}

	op := domain.ListTasksOp{Period: period(obj)}
	switch f := firstOf(obj, "filter", "filter_by", "field").(type) {
	case map[string]interface{}:
		if name := lookupString(f, "field", "name", "key"); name != "" {
			op.Field = taskField(name)
			op.Value = lookupString(f, "value", "equals")
		} else {
			for k, v := range f {
				if col := taskField(k); col != "" {
					op.Field, op.Value = col, stringify(v)
					break
				}
			}
		}
	case nil:
		// Filters may also arrive as top-level column keys.
		for k, v := range obj {
			if col := taskField(k); col != "" && col != domain.TaskText {
				op.Field, op.Value = col, stringify(v)
				break
			}
		}
	default:
		op.Field = taskField(stringify(f))
		op.Value = lookupString(obj, "value", "filter_value")
	}
	if op.Field == "" {
		op.Value = ""
	}
	return op
}

func firstOf(obj map[string]interface{}, names ...string) interface{} {
	v, _ := lookup(obj, names...)
	return v
}

var personFieldAliases = map[string]string{
	"full_name":           domain.PersonFullName,
	"fullname":            domain.PersonFullName,
	"name":                domain.PersonFullName,
	"person":              domain.PersonFullName,
	"email":               domain.PersonEmail,
	"e_mail":              domain.PersonEmail,
	"mail":                domain.PersonEmail,
	"company":             domain.PersonCompany,
	"organization":        domain.PersonCompany,
	"org":                 domain.PersonCompany,
	"firm":                domain.PersonCompany,
	"categories":          domain.PersonCategories,
	"category":            domain.PersonCategories,
	"tags":                domain.PersonCategories,
	"status":              domain.PersonStatus,
	"linkedin":            domain.PersonLinkedIn,
	"linked_in":           domain.PersonLinkedIn,
	"linkedin_profile":    domain.PersonLinkedIn,
	"linked_in_profile":   domain.PersonLinkedIn,
	"linkedin_url":        domain.PersonLinkedIn,
	"internal_contact":    domain.PersonInternalContact,
	"point_of_contact":    domain.PersonInternalContact,
	"poc":                 domain.PersonInternalContact,
	"warm_intro":          domain.PersonWarmIntro,
	"intro":               domain.PersonWarmIntro,
	"agenda":              domain.PersonAgenda,
	"meeting_notes":       domain.PersonMeetingNotes,
	"notes":               domain.PersonMeetingNotes,
	"more_info":           domain.PersonMoreInfo,
	"info":                domain.PersonMoreInfo,
	"additional_info":     domain.PersonMoreInfo,
	"newsletter":          domain.PersonNewsletter,
	"should_meet":         domain.PersonShouldMeet,
	"should_avishag_meet": domain.PersonShouldMeet,
}

// personField maps a user-facing person field name to its column, or "" when
// it names no person column.
func personField(name string) string {
	return personFieldAliases[canonKey(name)]
}

func decodePeople(params interface{}) []domain.Person {
	switch x := params.(type) {
	case []interface{}:
		people := make([]domain.Person, 0, len(x))
		for _, item := range x {
			if p, ok := decodePerson(item); ok {
				people = append(people, p)
			}
		}
		return people
	case map[string]interface{}:
		if inner, ok := lookup(x, "people", "records", "persons", "contacts"); ok {
			return decodePeople(inner)
		}
		if p, ok := decodePerson(x); ok {
			return []domain.Person{p}
		}
		return nil
	default:
		if p, ok := decodePerson(x); ok {
			return []domain.Person{p}
		}
		return nil
	}
}

// decodePerson reports false for values that carry nothing recognizable.
// Records without a name are kept so the caller can report them.
func decodePerson(v interface{}) (domain.Person, bool) {
	var p domain.Person
	switch x := v.(type) {
	case string:
		p.FullName = strings.TrimSpace(x)
		return p, p.FullName != ""
	case map[string]interface{}:
		found := false
		var first, last string
		for k, raw := range x {
			switch canonKey(k) {
			case "first_name":
				first, found = stringify(raw), true
				continue
			case "last_name":
				last, found = stringify(raw), true
				continue
			}
			col := personField(k)
			if col == "" {
				continue
			}
			found = true
			p.SetField(col, stringify(raw))
		}
		if p.FullName == "" && (first != "" || last != "") {
			p.FullName = strings.TrimSpace(first + " " + last)
		}
		return p, found
	}
	return p, false
}

func decodeUpdateTask(params interface{}) domain.Operation {
	obj, ok := params.(map[string]interface{})
	if !ok {
		return domain.UpdateTaskOp{TaskID: taskID(params)}
	}
	op := domain.UpdateTaskOp{
		TaskID: taskID(obj),
		Field:  taskField(lookupString(obj, "field", "column", "attribute")),
		Value:  lookupString(obj, "new_value", "value", "to"),
	}
	return op
}

func decodeUpdatePerson(params interface{}) domain.Operation {
	obj, ok := params.(map[string]interface{})
	if !ok {
		return domain.UpdatePersonOp{Updates: map[string]string{}}
	}

	op := domain.UpdatePersonOp{
		PersonID: lookupString(obj, "person_id", "id"),
		Updates:  make(map[string]string),
	}

	source := obj
	if inner, ok := lookup(obj, "updates", "fields", "changes"); ok {
		if m, ok := inner.(map[string]interface{}); ok {
			source = m
		}
	}
	for k, v := range source {
		switch canonKey(k) {
		case "person_id", "id", "updates", "fields", "changes":
			continue
		}
		if col := personField(k); col != "" {
			op.Updates[col] = stringify(v)
		}
	}
	return op
}
