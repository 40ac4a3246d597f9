// Package bot implements the conversation core: per-user state machine,
// command handling, operation dispatch, and the add-person wizard.
package bot

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"time"

	"github.com/ashureev/vcsearch/internal/classifier"
	"github.com/ashureev/vcsearch/internal/domain"
	"github.com/ashureev/vcsearch/internal/store"
)

// Message is one inbound chat message, already trimmed to the fields the
// core needs.
type Message struct {
	SenderID  string
	ChatID    string
	Text      string
	Username  string
	FirstName string
}

// Command is one entry of the bot's command menu.
type Command struct {
	Name        string
	Description string
}

// Commands is the menu registered after authentication.
var Commands = []Command{
	{Name: "start", Description: "Start the bot and authenticate"},
	{Name: "search", Description: "Search for people in database"},
	{Name: "add", Description: "Add a new person to database"},
	{Name: "help", Description: "Show help information"},
	{Name: "cancel", Description: "Cancel current operation"},
}

// Channel delivers replies to a chat.
type Channel interface {
	Send(ctx context.Context, chatID, text string) error
	SetCommands(ctx context.Context, commands []Command) error
}

// Recorder receives every inbound and outbound line of a conversation.
type Recorder interface {
	Record(userID, role, text string)
}

// Options holds the router's runtime settings.
type Options struct {
	Secret       string
	SearchPrefix string
	TaskOwner    string
	StoreTimeout time.Duration
	SendTimeout  time.Duration
}

// Deps are the router's collaborators. Recorder and Logger are optional.
type Deps struct {
	Sessions   store.SessionStore
	People     store.PeopleStore
	Tasks      store.TaskStore
	Classifier classifier.Classifier
	Channel    Channel
	Recorder   Recorder
	Logger     *slog.Logger
}

// Router runs one message at a time through the state machine.
type Router struct {
	sessions   store.SessionStore
	classifier classifier.Classifier
	channel    Channel
	recorder   Recorder
	dispatcher *dispatcher
	opts       Options
	logger     *slog.Logger
	now        func() time.Time
}

// NewRouter wires a Router.
func NewRouter(deps Deps, opts Options) *Router {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if opts.TaskOwner == "" {
		opts.TaskOwner = "bot"
	}
	return &Router{
		sessions:   deps.Sessions,
		classifier: deps.Classifier,
		channel:    deps.Channel,
		recorder:   deps.Recorder,
		dispatcher: newDispatcher(deps.People, deps.Tasks, opts, logger),
		opts:       opts,
		logger:     logger,
		now:        time.Now,
	}
}

// outcome is what handling one message produced. A nil next leaves the
// stored state untouched. committed marks outcomes whose data write already
// happened, so their replies stand even if the state write fails.
type outcome struct {
	replies          []string
	next             domain.ConversationState
	registerCommands bool
	committed        bool
}

func reply(text string) outcome {
	return outcome{replies: []string{text}}
}

func transition(next domain.ConversationState, text string) outcome {
	return outcome{replies: []string{text}, next: next}
}

// Handle processes one message end to end: load session, route, persist the
// new state, then send replies. Store and channel failures become user-facing
// replies; only a panic is returned as an error.
func (r *Router) Handle(ctx context.Context, msg Message) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("Panic while handling message",
				"user_id", msg.SenderID,
				"panic", rec,
				"stack", string(debug.Stack()),
			)
			err = fmt.Errorf("handle message from %s: panic: %v", msg.SenderID, rec)
		}
	}()

	msg.Text = strings.TrimSpace(msg.Text)

	sctx, cancel := r.storeContext(ctx)
	session, err := r.sessions.GetSession(sctx, msg.SenderID)
	cancel()
	if err != nil {
		r.record(msg.SenderID, "user", redactedText)
		r.logger.Error("Failed to load session", "user_id", msg.SenderID, "error", err)
		r.send(ctx, msg, msgGenericError)
		return nil
	}
	r.record(msg.SenderID, "user", transcriptText(session.State, msg.Text))

	out := r.route(ctx, session, msg)

	if out.next != nil {
		if err := r.saveState(ctx, msg.SenderID, out); err != nil {
			r.logger.Error("Failed to save state",
				"user_id", msg.SenderID,
				"state", out.next.Name(),
				"committed", out.committed,
				"error", err,
			)
			if !out.committed {
				out = reply(msgGenericError)
			}
		} else {
			r.logger.Info("State changed",
				"user_id", msg.SenderID,
				"from", session.State.Name(),
				"to", out.next.Name(),
			)
		}
	}

	if out.registerCommands {
		r.registerCommands(ctx)
	}
	r.send(ctx, msg, out.replies...)
	return nil
}

// route applies command precedence, the authentication gate, and then the
// current state's handler.
func (r *Router) route(ctx context.Context, s *domain.Session, msg Message) outcome {
	if cmd, ok := parseCommand(msg.Text); ok && commandAllowed(s.State, cmd) {
		return r.command(ctx, s, msg, cmd)
	}

	if _, ok := s.State.(domain.Authenticating); ok {
		return r.authenticate(ctx, msg)
	}
	if !s.Auth.IsAuthenticated {
		return reply(msgAuthRequired)
	}

	switch st := s.State.(type) {
	case domain.PendingUpdate:
		return r.resolvePending(ctx, msg, st)
	case domain.Searching:
		out := r.dispatcher.search(ctx, msg.Text)
		out.next = domain.Idle{}
		return out
	case domain.AddingPerson:
		return r.advanceWizard(ctx, msg, st)
	default:
		return r.idle(ctx, msg)
	}
}

// idle handles free text from an authenticated user with no flow in
// progress: prefixed text is a direct search, everything else is classified.
func (r *Router) idle(ctx context.Context, msg Message) outcome {
	if prefix := r.opts.SearchPrefix; prefix != "" && strings.HasPrefix(msg.Text, prefix) {
		query := strings.TrimSpace(strings.TrimPrefix(msg.Text, prefix))
		if query == "" {
			return reply(fmt.Sprintf(msgPrefixHint, esc(prefix), esc(prefix)))
		}
		return r.dispatcher.search(ctx, query)
	}

	op, err := r.classifier.Classify(ctx, msg.Text)
	if err != nil {
		r.logger.Error("Classification failed", "user_id", msg.SenderID, "error", err)
		return reply(msgClassifyFailed)
	}
	r.logger.Info("Dispatching operation", "user_id", msg.SenderID, "operation", op.Kind().String())
	return r.dispatcher.dispatch(ctx, msg.SenderID, msg.Text, op)
}

func (r *Router) send(ctx context.Context, msg Message, replies ...string) {
	for _, text := range replies {
		r.record(msg.SenderID, "bot", text)

		sendCtx, cancel := withTimeout(ctx, r.opts.SendTimeout)
		err := r.channel.Send(sendCtx, msg.ChatID, text)
		cancel()
		if err != nil {
			r.logger.Warn("Failed to send reply", "chat_id", msg.ChatID, "error", err)
		}
	}
}

func (r *Router) registerCommands(ctx context.Context) {
	cctx, cancel := withTimeout(ctx, r.opts.SendTimeout)
	defer cancel()
	if err := r.channel.SetCommands(cctx, Commands); err != nil {
		r.logger.Warn("Failed to register bot commands", "error", err)
	}
}

// saveState persists out.next. A committed outcome gets a second attempt:
// leaving its flow in place would replay the write on the next message.
func (r *Router) saveState(ctx context.Context, userID string, out outcome) error {
	attempts := 1
	if out.committed {
		attempts = 2
	}
	var err error
	for i := 0; i < attempts; i++ {
		sctx, cancel := r.storeContext(ctx)
		err = r.sessions.SaveState(sctx, userID, out.next)
		cancel()
		if err == nil {
			return nil
		}
	}
	return err
}

// redactedText replaces inbound text that must not reach the transcript.
const redactedText = "[redacted]"

// transcriptText hides password attempts. Only /start and /cancel are read as
// commands while authenticating, so anything else may be the secret.
func transcriptText(state domain.ConversationState, text string) string {
	if _, ok := state.(domain.Authenticating); !ok {
		return text
	}
	if cmd, ok := parseCommand(text); ok && commandAllowed(state, cmd) {
		return text
	}
	return redactedText
}

func (r *Router) record(userID, role, text string) {
	if r.recorder != nil {
		r.recorder.Record(userID, role, text)
	}
}

func (r *Router) storeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return withTimeout(ctx, r.opts.StoreTimeout)
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
