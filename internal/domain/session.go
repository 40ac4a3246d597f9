package domain

import (
	"encoding/json"
	"fmt"
)

// State names the persisted conversation state of a user.
type State string

// Conversation states.
const (
	StateIdle           State = "idle"
	StateAuthenticating State = "authenticating"
	StateSearching      State = "searching"
	StateAddingPerson   State = "adding_person"
	StatePendingUpdate  State = "pending_update"
)

// ConversationState is the closed set of per-state payloads. Each variant
// carries only the data that is valid in that state.
type ConversationState interface {
	Name() State
	conversationState()
}

// Idle is the resting state; free text is classified here.
type Idle struct{}

// Authenticating waits for the shared password.
type Authenticating struct{}

// Searching treats the next message as a search query.
type Searching struct{}

// AddingPerson tracks the add-person wizard. Step is the field the next
// answer fills; Draft holds the answers collected so far.
type AddingPerson struct {
	Step  string `json:"step"`
	Draft Person `json:"data"`
}

// PendingUpdate holds a proposed person update awaiting a one-message
// approval.
type PendingUpdate struct {
	TargetID string            `json:"person_id"`
	Fields   map[string]string `json:"updates"`
}

func (Idle) Name() State           { return StateIdle }
func (Authenticating) Name() State { return StateAuthenticating }
func (Searching) Name() State      { return StateSearching }
func (AddingPerson) Name() State   { return StateAddingPerson }
func (PendingUpdate) Name() State  { return StatePendingUpdate }

func (Idle) conversationState()           {}
func (Authenticating) conversationState() {}
func (Searching) conversationState()      {}
func (AddingPerson) conversationState()   {}
func (PendingUpdate) conversationState()  {}

// Session is a user's full persisted record.
type Session struct {
	UserID string
	State  ConversationState
	Auth   AuthRecord
}

// NewSession returns the implicit session of a user seen for the first time.
func NewSession(userID string) *Session {
	return &Session{UserID: userID, State: Idle{}}
}

// EncodeState flattens a state variant into its storage columns: the state
// name, the wizard step, and a JSON payload.
func EncodeState(s ConversationState) (State, string, []byte, error) {
	if s == nil {
		s = Idle{}
	}
	switch v := s.(type) {
	case AddingPerson:
		data, err := json.Marshal(v.Draft)
		if err != nil {
			return "", "", nil, fmt.Errorf("encode wizard draft: %w", err)
		}
		return v.Name(), v.Step, data, nil
	case PendingUpdate:
		data, err := json.Marshal(v)
		if err != nil {
			return "", "", nil, fmt.Errorf("encode pending update: %w", err)
		}
		return v.Name(), "", data, nil
	default:
		return s.Name(), "", []byte("{}"), nil
	}
}

// DecodeState rebuilds a state variant from its storage columns. An unknown
// state name decodes to Idle together with an error so callers can log it.
func DecodeState(name State, step string, payload []byte) (ConversationState, error) {
	switch name {
	case "", StateIdle:
		return Idle{}, nil
	case StateAuthenticating:
		return Authenticating{}, nil
	case StateSearching:
		return Searching{}, nil
	case StateAddingPerson:
		st := AddingPerson{Step: step}
		if len(payload) > 0 {
			if err := json.Unmarshal(payload, &st.Draft); err != nil {
				return Idle{}, fmt.Errorf("decode wizard draft: %w", err)
			}
		}
		return st, nil
	case StatePendingUpdate:
		var st PendingUpdate
		if len(payload) > 0 {
			if err := json.Unmarshal(payload, &st); err != nil {
				return Idle{}, fmt.Errorf("decode pending update: %w", err)
			}
		}
		return st, nil
	default:
		return Idle{}, fmt.Errorf("unknown conversation state %q", name)
	}
}
