package bot

import (
	"context"
	"crypto/subtle"
	"strings"

	"github.com/ashureev/vcsearch/internal/domain"
)

const (
	cmdStart  = "/start"
	cmdHelp   = "/help"
	cmdSearch = "/search"
	cmdAdd    = "/add"
	cmdCancel = "/cancel"
)

// parseCommand recognizes the bot's commands by their first token. A
// "@botname" suffix is ignored; unknown commands are plain text.
func parseCommand(text string) (string, bool) {
	if !strings.HasPrefix(text, "/") {
		return "", false
	}
	token := strings.ToLower(strings.Fields(text)[0])
	if at := strings.IndexByte(token, '@'); at >= 0 {
		token = token[:at]
	}
	switch token {
	case cmdStart, cmdHelp, cmdSearch, cmdAdd, cmdCancel:
		return token, true
	}
	return "", false
}

// commandAllowed reports whether cmd overrides the current state. Flows that
// consume arbitrary text only yield to /start and /cancel.
func commandAllowed(state domain.ConversationState, cmd string) bool {
	switch state.(type) {
	case domain.AddingPerson, domain.Authenticating:
		return cmd == cmdStart || cmd == cmdCancel
	}
	return true
}

func (r *Router) command(_ context.Context, s *domain.Session, msg Message, cmd string) outcome {
	authed := s.Auth.IsAuthenticated

	switch cmd {
	case cmdStart:
		if authed {
			out := transition(domain.Idle{}, msgWelcomeBack)
			out.registerCommands = true
			return out
		}
		return transition(domain.Authenticating{}, msgWelcome)

	case cmdCancel:
		return transition(domain.Idle{}, msgCancelled)
	}

	if !authed {
		return reply(msgAuthRequired)
	}

	switch cmd {
	case cmdHelp:
		// A pending update is resolved by the very next message.
		if _, ok := s.State.(domain.PendingUpdate); ok {
			return outcome{replies: []string{msgUpdateCancelled, msgHelp}, next: domain.Idle{}}
		}
		return reply(msgHelp)
	case cmdSearch:
		return transition(domain.Searching{}, msgSearchPrompt)
	case cmdAdd:
		first := wizardSteps[0]
		return transition(domain.AddingPerson{Step: first.field}, first.prompt)
	}
	r.logger.Warn("Unhandled command", "user_id", msg.SenderID, "command", cmd)
	return reply(msgGenericError)
}

// authenticate compares the message with the shared secret. A wrong password
// keeps the user in authenticating so they can retry.
func (r *Router) authenticate(ctx context.Context, msg Message) outcome {
	if subtle.ConstantTimeCompare([]byte(msg.Text), []byte(r.opts.Secret)) != 1 {
		r.logger.Info("Authentication rejected", "user_id", msg.SenderID)
		return reply(msgWrongPassword)
	}

	auth := domain.AuthRecord{
		IsAuthenticated: true,
		AuthenticatedAt: r.now(),
		Username:        msg.Username,
		FirstName:       msg.FirstName,
	}
	sctx, cancel := r.storeContext(ctx)
	defer cancel()
	if err := r.sessions.SaveAuth(sctx, msg.SenderID, auth); err != nil {
		r.logger.Error("Failed to save authentication", "user_id", msg.SenderID, "error", err)
		return reply(msgAuthFailed)
	}

	r.logger.Info("User authenticated", "user_id", msg.SenderID, "name", auth.DisplayName())
	out := transition(domain.Idle{}, msgAuthSuccess)
	out.registerCommands = true
	return out
}

// resolvePending is the second phase of update_person: a literal "1" applies
// the stored changes, anything else discards them. Either way the flow ends.
func (r *Router) resolvePending(ctx context.Context, msg Message, pending domain.PendingUpdate) outcome {
	if msg.Text != "1" {
		return transition(domain.Idle{}, msgUpdateCancelled)
	}
	if err := r.dispatcher.applyPersonUpdate(ctx, pending); err != nil {
		r.logger.Error("Failed to apply person update",
			"user_id", msg.SenderID,
			"person_id", pending.TargetID,
			"error", err,
		)
		return transition(domain.Idle{}, msgUpdateFailed)
	}
	out := transition(domain.Idle{}, msgUpdateApplied)
	out.committed = true
	return out
}
