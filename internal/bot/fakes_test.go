package bot

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ashureev/vcsearch/internal/domain"
)

// memStore is an in-memory SessionStore, PeopleStore and TaskStore.
type memStore struct {
	mu sync.Mutex

	sessions   map[string]*domain.Session
	stateSaves int

	people     []domain.Person
	tasks      []domain.Task
	seq        int
	dataCalls  int
	lastQuery  string
	updates    []map[string]string
	insertFail map[string]bool

	saveStateErr   error
	saveStateFails int // fail this many SaveState calls, then succeed
	searchErr      error
}

func newMemStore() *memStore {
	return &memStore{
		sessions:   make(map[string]*domain.Session),
		insertFail: make(map[string]bool),
	}
}

func (m *memStore) session(userID string) *domain.Session {
	s := m.sessions[userID]
	if s == nil {
		s = domain.NewSession(userID)
		m.sessions[userID] = s
	}
	return s
}

func (m *memStore) GetSession(_ context.Context, userID string) (*domain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	copy := *m.session(userID)
	return &copy, nil
}

func (m *memStore) SaveState(_ context.Context, userID string, state domain.ConversationState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveStateErr != nil {
		return m.saveStateErr
	}
	if m.saveStateFails > 0 {
		m.saveStateFails--
		return fmt.Errorf("save state: database is locked")
	}
	m.stateSaves++
	m.session(userID).State = state
	return nil
}

func (m *memStore) SaveAuth(_ context.Context, userID string, auth domain.AuthRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.session(userID).Auth = auth
	return nil
}

func (m *memStore) InsertPerson(_ context.Context, p *domain.Person) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dataCalls++
	if strings.TrimSpace(p.FullName) == "" {
		return "", fmt.Errorf("insert person: full name is required")
	}
	if m.insertFail[p.FullName] {
		return "", fmt.Errorf("insert person: constraint failed")
	}
	m.seq++
	p.ID = fmt.Sprintf("p%d", m.seq)
	p.CreatedAt = time.Unix(int64(m.seq), 0)
	m.people = append(m.people, *p)
	return p.ID, nil
}

func (m *memStore) GetPerson(_ context.Context, id string) (*domain.Person, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dataCalls++
	for i := range m.people {
		if m.people[i].ID == id {
			p := m.people[i]
			return &p, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *memStore) LatestPerson(_ context.Context, createdBy string) (*domain.Person, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dataCalls++
	for i := len(m.people) - 1; i >= 0; i-- {
		if createdBy == "" || m.people[i].CreatedBy == createdBy {
			p := m.people[i]
			return &p, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *memStore) UpdatePerson(_ context.Context, id string, fields map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dataCalls++
	for i := range m.people {
		if m.people[i].ID == id {
			for k, v := range fields {
				m.people[i].SetField(k, v)
			}
			m.updates = append(m.updates, fields)
			return nil
		}
	}
	return domain.ErrNotFound
}

func (m *memStore) SearchPeople(_ context.Context, query string, limit int) ([]domain.Person, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dataCalls++
	m.lastQuery = query
	if m.searchErr != nil {
		return nil, m.searchErr
	}
	q := strings.ToLower(query)
	var out []domain.Person
	for i := len(m.people) - 1; i >= 0 && len(out) < limit; i-- {
		p := m.people[i]
		for _, f := range domain.PersonSearchFields {
			if strings.Contains(strings.ToLower(p.Field(f)), q) {
				out = append(out, p)
				break
			}
		}
	}
	return out, nil
}

func (m *memStore) InsertTask(_ context.Context, t *domain.Task) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dataCalls++
	m.seq++
	t.ID = strconv.Itoa(m.seq)
	t.CreatedAt = time.Now()
	m.tasks = append(m.tasks, *t)
	return t.ID, nil
}

func (m *memStore) DeleteTask(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dataCalls++
	for i := range m.tasks {
		if m.tasks[i].ID == id {
			m.tasks = append(m.tasks[:i], m.tasks[i+1:]...)
			return nil
		}
	}
	return domain.ErrNotFound
}

func (m *memStore) UpdateTask(_ context.Context, id, field, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dataCalls++
	if !domain.TaskUpdatableFields[field] {
		return fmt.Errorf("update task: unknown field %q", field)
	}
	for i := range m.tasks {
		if m.tasks[i].ID == id {
			if field == domain.TaskStatus {
				m.tasks[i].Status = value
			}
			return nil
		}
	}
	return domain.ErrNotFound
}

func (m *memStore) ListTasks(_ context.Context, filter domain.TaskFilter, limit int) ([]domain.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dataCalls++
	var out []domain.Task
	for _, t := range m.tasks {
		if !filter.Since.IsZero() && t.CreatedAt.Before(filter.Since) {
			continue
		}
		if filter.Field == domain.TaskPriority && !strings.EqualFold(t.Priority, filter.Value) {
			continue
		}
		out = append(out, t)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memStore) state(userID string) domain.ConversationState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session(userID).State
}

func (m *memStore) auth(userID string) domain.AuthRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session(userID).Auth
}

func (m *memStore) seed(userID string, state domain.ConversationState, authed bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.session(userID)
	s.State = state
	s.Auth.IsAuthenticated = authed
}

func (m *memStore) addPerson(p domain.Person) domain.Person {
	_, _ = m.InsertPerson(context.Background(), &p)
	m.mu.Lock()
	m.dataCalls = 0
	m.mu.Unlock()
	return p
}

type fakeChannel struct {
	mu       sync.Mutex
	sent     []string
	commands int
}

func (f *fakeChannel) Send(_ context.Context, _ string, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, text)
	return nil
}

func (f *fakeChannel) SetCommands(_ context.Context, _ []Command) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.commands++
	return nil
}

func (f *fakeChannel) drain() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := f.sent
	f.sent = nil
	return out
}

type fakeClassifier struct {
	mu    sync.Mutex
	calls int
	fn    func(text string) (domain.Operation, error)
}

func (f *fakeClassifier) Classify(_ context.Context, text string) (domain.Operation, error) {
	f.mu.Lock()
	f.calls++
	fn := f.fn
	f.mu.Unlock()
	if fn == nil {
		return domain.Unrecognized{Raw: text}, nil
	}
	return fn(text)
}

func (f *fakeClassifier) returns(op domain.Operation) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fn = func(string) (domain.Operation, error) { return op, nil }
}

type fakeRecorder struct {
	mu    sync.Mutex
	lines []string
}

func (f *fakeRecorder) Record(_, role, text string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lines = append(f.lines, role+": "+text)
}

func (f *fakeRecorder) recorded() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.lines...)
}

const (
	testUser     = "100"
	testPassword = "open-sesame"
)

type harness struct {
	store      *memStore
	channel    *fakeChannel
	classifier *fakeClassifier
	recorder   *fakeRecorder
	router     *Router
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		store:      newMemStore(),
		channel:    &fakeChannel{},
		classifier: &fakeClassifier{},
		recorder:   &fakeRecorder{},
	}
	h.router = NewRouter(Deps{
		Sessions:   h.store,
		People:     h.store,
		Tasks:      h.store,
		Classifier: h.classifier,
		Channel:    h.channel,
		Recorder:   h.recorder,
		Logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}, Options{
		Secret:       testPassword,
		SearchPrefix: ".",
		TaskOwner:    "bot",
		StoreTimeout: time.Second,
		SendTimeout:  time.Second,
	})
	return h
}

// say sends text as testUser and returns the replies it produced.
func (h *harness) say(t *testing.T, text string) []string {
	t.Helper()
	if err := h.router.Handle(context.Background(), Message{
		SenderID:  testUser,
		ChatID:    testUser,
		Text:      text,
		Username:  "dana",
		FirstName: "Dana",
	}); err != nil {
		t.Fatalf("Handle(%q) returned error: %v", text, err)
	}
	return h.channel.drain()
}
