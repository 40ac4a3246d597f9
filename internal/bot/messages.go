package bot

import (
	"fmt"
	"html"
	"sort"
	"strings"

	"github.com/ashureev/vcsearch/internal/domain"
)

// Replies are Telegram HTML. Anything that came from a user or the store goes
// through esc.
const (
	msgWelcome = "Welcome to VC Search Engine Bot! 🚀\n\n" +
		"🔐 Please enter the password to access the system:"

	msgWelcomeBack = "Welcome back to VC Search Engine Bot! 🚀\n\n" +
		"You are authenticated and ready to use the bot.\n\n" +
		"💡 Just type anything to search the database!\n\n" +
		"Commands:\n" +
		"🔍 /search - Search people in database\n" +
		"➕ /add - Add a new person\n" +
		"❓ /help - Show this help message"

	msgAuthSuccess = "✅ Authentication successful! Welcome to VC Search Engine!\n\n" +
		"💡 <b>You can now just type anything!</b>\n" +
		"Examples:\n" +
		"• 'search fintech startups'\n" +
		"• 'add task call John tomorrow'\n" +
		"• 'show all tasks'\n" +
		"• 'add Sarah from Google'\n\n" +
		"Commands:\n" +
		"🔍 /search - Search people\n" +
		"➕ /add - Add a new person\n" +
		"❓ /help - Show help message"

	msgHelp = "VC Search Engine Bot Commands:\n\n" +
		"💡 <b>Quick Search:</b> Just type anything to search!\n" +
		"Example: 'fintech', 'Sarah', 'Sequoia'\n\n" +
		"📝 <b>Tasks:</b> 'add task call John tomorrow', 'show all tasks', 'update task 5 status done'\n" +
		"👥 <b>People:</b> 'add John Doe from TechCorp', 'search ai engineer'\n\n" +
		"Commands:\n" +
		"🔍 /search - Search for people\n" +
		"➕ /add - Add a new person to the database\n" +
		"❌ /cancel - Cancel current operation\n\n" +
		"Simply type your request in natural language!"

	msgAuthRequired   = "🔐 Please authenticate first using /start"
	msgAuthFailed     = "❌ Authentication failed. Please try again with /start"
	msgWrongPassword  = "❌ Incorrect password. Please try again, or use /cancel to stop."
	msgCancelled      = "❌ Operation cancelled. Type /help to see available commands."
	msgSearchPrompt   = "🔍 What would you like to search for? (name, company, hashtag, or specialty)"
	msgPrefixHint     = "❓ Please provide a search term after the %s (e.g., '%sjohn doe')"
	msgGenericError   = "❌ Sorry, something went wrong. Please try again."
	msgClassifyFailed = "❌ Sorry, I couldn't process that request. Please try again."

	msgSearchFailed = "❌ Error searching database. Please try again."

	msgTaskNeedsText    = "❌ I need task details. Try: 'Add task call John tomorrow'"
	msgTaskAddFailed    = "❌ Error adding task. Please try again."
	msgTaskNeedsID      = "❌ I need a task ID. Try: 'Remove task 5'"
	msgTaskRemoveFailed = "❌ Error removing task. Please try again."
	msgTaskNotFound     = "❌ Task %s not found."
	msgTaskAlertSoon    = "🚧 Task alerts feature coming soon!"
	msgTaskListFailed   = "❌ Error fetching tasks. Please try again."
	msgNoTasks          = "📝 No tasks found."
	msgTaskUpdateUsage  = "❌ I need task ID, field, and new value. Try: 'Set task 5 status to done'"
	msgTaskUpdateFailed = "❌ Error updating task. Please try again."
	msgMeetingsSoon     = "🚧 Meetings feature coming soon!"

	msgPeopleNeedDetails = "❌ I need person details. Try: 'Add John Doe from TechCorp'"
	msgPeopleNoneAdded   = "❌ Could not add any people. Please check the details."

	msgUpdateNeedsFields = "❌ I need the fields to update. Try: 'Update the company to Accel'"
	msgUpdateNameEmpty   = "❌ The name cannot be empty. Try: 'Rename her to Dana Levi'"
	msgNoPersonToUpdate  = "❌ No person found to update. Please specify a person ID."
	msgPersonNotFound    = "❌ No person found with ID %s."
	msgUpdateFailed      = "❌ Error updating person. Please try again."
	msgUpdateApplied     = "✅ Person updated successfully!"
	msgUpdateCancelled   = "❌ Update cancelled."

	msgWizardNameEmpty  = "❌ The name cannot be empty. What's their full name?"
	msgWizardLost       = "❌ Something went wrong. Please try again with /add"
	msgWizardSaveFailed = "❌ Error adding person to database. Please try again with /add"
)

func esc(s string) string {
	return html.EscapeString(s)
}

// renderSearchResults lists people matched by query, showing only the fields
// that are set.
func renderSearchResults(query string, people []domain.Person) string {
	if len(people) == 0 {
		return fmt.Sprintf("🔍 No results found for \"%s\"", esc(query))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "🔍 Found %d result(s) for \"<b>%s</b>\":\n", len(people), esc(query))
	for i, p := range people {
		b.WriteString("\n")
		fmt.Fprintf(&b, "%d. <b>%s</b>\n", i+1, esc(p.FullName))
		line := func(format, value string) {
			if value != "" {
				fmt.Fprintf(&b, "   "+format+"\n", esc(value))
			}
		}
		line("🏢 %s", p.Company)
		line("📧 %s", p.Email)
		line("🏷 %s", p.Categories)
		line("📊 Status: %s", p.Status)
		line("👥 Internal contact: %s", p.InternalContact)
		line("🤝 Warm intro: %s", p.WarmIntro)
		line("🔗 LinkedIn: %s", p.LinkedInProfile)
		line("🗓 Agenda: %s", p.Agenda)
		line("📝 Notes: %s", p.MeetingNotes)
		line("ℹ More info: %s", p.MoreInfo)
		if p.Newsletter {
			b.WriteString("   📰 Newsletter: ✅\n")
		}
		if p.ShouldMeet {
			b.WriteString("   ⭐ Should meet: ✅\n")
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func renderTaskAdded(t *domain.Task) string {
	return fmt.Sprintf("✅ Task #%s added: \"%s\" (%s priority, %s)",
		esc(t.ID), esc(t.Text), esc(t.Priority), esc(t.Status))
}

func renderTaskList(tasks []domain.Task) string {
	if len(tasks) == 0 {
		return msgNoTasks
	}
	var b strings.Builder
	fmt.Fprintf(&b, "📝 Found %d task(s):\n", len(tasks))
	for i, t := range tasks {
		b.WriteString("\n")
		fmt.Fprintf(&b, "%d. <b>%s</b>\n", i+1, esc(t.Text))
		fmt.Fprintf(&b, "   ID: %s | Status: %s | Priority: %s\n", esc(t.ID), esc(t.Status), esc(t.Priority))
		if t.AssignTo != "" {
			fmt.Fprintf(&b, "   Assigned: %s\n", esc(t.AssignTo))
		}
		if t.DueDate != "" {
			fmt.Fprintf(&b, "   Due: %s\n", esc(t.DueDate))
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// renderUpdatePreview shows the target's current identity and the proposed
// changes, then asks for a one-word confirmation.
func renderUpdatePreview(p *domain.Person, updates map[string]string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "👤 <b>%s</b>\n", esc(p.FullName))
	if p.Company != "" {
		fmt.Fprintf(&b, "🏢 %s\n", esc(p.Company))
	}
	if p.Email != "" {
		fmt.Fprintf(&b, "📧 %s\n", esc(p.Email))
	}

	b.WriteString("\n🔄 Proposed updates:\n")
	for _, field := range sortedKeys(updates) {
		current := p.Field(field)
		if current == "" {
			current = "(none)"
		}
		fmt.Fprintf(&b, "• %s: %s → %s\n", field, esc(current), esc(updates[field]))
	}
	b.WriteString("\nReply: 1 to approve, anything else to cancel")
	return b.String()
}

var wizardLabels = map[string]string{
	domain.PersonFullName:        "Name",
	domain.PersonEmail:           "📧 Email",
	domain.PersonCompany:         "🏢 Company",
	domain.PersonCategories:      "🏷 Categories",
	domain.PersonStatus:          "📊 Status",
	domain.PersonLinkedIn:        "🔗 LinkedIn",
	domain.PersonInternalContact: "👥 Internal contact",
	domain.PersonWarmIntro:       "🤝 Warm intro",
	domain.PersonMoreInfo:        "ℹ More info",
}

// renderPersonAdded echoes every field the wizard collected.
func renderPersonAdded(p *domain.Person) string {
	var b strings.Builder
	fmt.Fprintf(&b, "✅ Successfully added: <b>%s</b>", esc(p.FullName))
	for _, step := range wizardSteps[1:] {
		if v := p.Field(step.field); v != "" {
			fmt.Fprintf(&b, "\n%s: %s", wizardLabels[step.field], esc(v))
		}
	}
	return b.String()
}

func renderPeopleAdded(names []string) string {
	escaped := make([]string, len(names))
	for i, n := range names {
		escaped[i] = esc(n)
	}
	return fmt.Sprintf("✅ Added %d person(s): %s", len(names), strings.Join(escaped, ", "))
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
