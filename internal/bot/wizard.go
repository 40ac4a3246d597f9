package bot

import (
	"context"
	"strings"

	"github.com/ashureev/vcsearch/internal/domain"
)

type wizardStep struct {
	field  string
	prompt string
}

// wizardSteps is the add-person question order. The name step is the only
// one without a skip option.
var wizardSteps = []wizardStep{
	{domain.PersonFullName, "➕ Let's add a new person! What's their full name?"},
	{domain.PersonEmail, "📧 What's their email address? (or type 'skip')"},
	{domain.PersonCompany, "👔 What company do they work for? (or type 'skip')"},
	{domain.PersonCategories, "🏷 What categories/tags describe them? (comma-separated, or type 'skip')"},
	{domain.PersonStatus, "📊 What's their status? (or type 'skip')"},
	{domain.PersonLinkedIn, "🔗 What's their LinkedIn profile URL? (or type 'skip')"},
	{domain.PersonInternalContact, "👥 Who is their internal point of contact? (or type 'skip')"},
	{domain.PersonWarmIntro, "🤝 Who can provide a warm intro? (or type 'skip')"},
	{domain.PersonMoreInfo, "📝 Any additional information? (or type 'skip')"},
}

func wizardIndex(field string) int {
	for i, step := range wizardSteps {
		if step.field == field {
			return i
		}
	}
	return -1
}

// advanceWizard records the answer for the current step and asks the next
// question, inserting the person after the last one.
func (r *Router) advanceWizard(ctx context.Context, msg Message, st domain.AddingPerson) outcome {
	idx := wizardIndex(st.Step)
	if idx < 0 {
		r.logger.Warn("Unknown wizard step", "user_id", msg.SenderID, "step", st.Step)
		return transition(domain.Idle{}, msgWizardLost)
	}

	draft := st.Draft
	answer := msg.Text
	switch {
	case idx == 0:
		if answer == "" {
			return reply(msgWizardNameEmpty)
		}
		draft.FullName = answer
	case strings.EqualFold(answer, "skip"):
		draft.SetField(wizardSteps[idx].field, "")
	default:
		draft.SetField(wizardSteps[idx].field, answer)
	}

	if idx+1 < len(wizardSteps) {
		next := wizardSteps[idx+1]
		return transition(domain.AddingPerson{Step: next.field, Draft: draft}, next.prompt)
	}

	draft.CreatedBy = msg.SenderID
	if err := r.dispatcher.insertPerson(ctx, &draft); err != nil {
		r.logger.Error("Failed to insert person from wizard", "user_id", msg.SenderID, "error", err)
		return transition(domain.Idle{}, msgWizardSaveFailed)
	}
	r.logger.Info("Person added", "user_id", msg.SenderID, "person_id", draft.ID)
	out := transition(domain.Idle{}, renderPersonAdded(&draft))
	out.committed = true
	return out
}
