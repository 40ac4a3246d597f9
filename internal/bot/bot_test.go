package bot

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/ashureev/vcsearch/internal/classifier"
	"github.com/ashureev/vcsearch/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestStartAuthenticatesWithPassword(t *testing.T) {
	h := newHarness(t)

	assert.Equal(t, []string{msgWelcome}, h.say(t, "/start"))
	assert.Equal(t, domain.Authenticating{}, h.store.state(testUser))

	assert.Equal(t, []string{msgWrongPassword}, h.say(t, "guess"))
	assert.Equal(t, domain.Authenticating{}, h.store.state(testUser), "failed attempt keeps the user authenticating")
	assert.False(t, h.store.auth(testUser).IsAuthenticated)

	assert.Equal(t, []string{msgAuthSuccess}, h.say(t, testPassword))
	assert.Equal(t, domain.Idle{}, h.store.state(testUser))
	auth := h.store.auth(testUser)
	assert.True(t, auth.IsAuthenticated)
	assert.Equal(t, "dana", auth.Username)
	assert.False(t, auth.AuthenticatedAt.IsZero())
	assert.Equal(t, 1, h.channel.commands)
}

func TestStartWhileAuthenticatedKeepsAuth(t *testing.T) {
	h := newHarness(t)
	h.store.seed(testUser, domain.Searching{}, true)

	for i := 0; i < 3; i++ {
		assert.Equal(t, []string{msgWelcomeBack}, h.say(t, "/start"))
		assert.True(t, h.store.auth(testUser).IsAuthenticated)
		assert.Equal(t, domain.Idle{}, h.store.state(testUser))
	}
}

func TestCancelFromAnyStateReturnsIdle(t *testing.T) {
	states := []domain.ConversationState{
		domain.Idle{},
		domain.Authenticating{},
		domain.Searching{},
		domain.AddingPerson{Step: domain.PersonCompany, Draft: domain.Person{FullName: "Noa"}},
		domain.PendingUpdate{TargetID: "p1", Fields: map[string]string{domain.PersonEmail: "x@y.z"}},
	}
	for _, authed := range []bool{true, false} {
		for _, state := range states {
			t.Run(string(state.Name()), func(t *testing.T) {
				h := newHarness(t)
				h.store.seed(testUser, state, authed)

				assert.Equal(t, []string{msgCancelled}, h.say(t, "/cancel"))
				assert.Equal(t, domain.Idle{}, h.store.state(testUser))
				assert.Equal(t, authed, h.store.auth(testUser).IsAuthenticated)
			})
		}
	}
}

func TestUnauthenticatedFreeTextGetsAuthPrompt(t *testing.T) {
	for _, state := range []domain.ConversationState{domain.Idle{}, domain.Searching{}, domain.AddingPerson{Step: domain.PersonFullName}} {
		t.Run(string(state.Name()), func(t *testing.T) {
			h := newHarness(t)
			h.store.seed(testUser, state, false)

			assert.Equal(t, []string{msgAuthRequired}, h.say(t, "who do we know at sequoia"))
			assert.Equal(t, state, h.store.state(testUser))
			assert.Zero(t, h.store.dataCalls)
			assert.Zero(t, h.classifier.calls)
			assert.Zero(t, h.store.stateSaves)
		})
	}
}

func TestGatedCommandsRequireAuth(t *testing.T) {
	h := newHarness(t)
	for _, cmd := range []string{"/help", "/search", "/add"} {
		assert.Equal(t, []string{msgAuthRequired}, h.say(t, cmd))
	}
	assert.Equal(t, domain.Idle{}, h.store.state(testUser))
}

func TestCommandParsing(t *testing.T) {
	tests := []struct {
		in   string
		cmd  string
		isOK bool
	}{
		{"/start", cmdStart, true},
		{"/Search", cmdSearch, true},
		{"/add@vc_search_bot", cmdAdd, true},
		{"/start deep-link", cmdStart, true},
		{"/unknown", "", false},
		{"start", "", false},
	}
	for _, tt := range tests {
		cmd, ok := parseCommand(tt.in)
		assert.Equal(t, tt.isOK, ok, tt.in)
		assert.Equal(t, tt.cmd, cmd, tt.in)
	}
}

func TestWizardAllOptionalStepsSkipped(t *testing.T) {
	h := newHarness(t)
	h.store.seed(testUser, domain.Idle{}, true)

	replies := h.say(t, "/add")
	assert.Equal(t, []string{wizardSteps[0].prompt}, replies)

	replies = h.say(t, "Noa Cohen")
	assert.Equal(t, []string{wizardSteps[1].prompt}, replies)

	skips := []string{"skip", "SKIP", "Skip", "skip", "sKiP", "skip", "skip"}
	for i, answer := range skips {
		replies = h.say(t, answer)
		assert.Equal(t, []string{wizardSteps[i+2].prompt}, replies)
	}
	replies = h.say(t, "skip")

	assert.Equal(t, []string{"✅ Successfully added: <b>Noa Cohen</b>"}, replies)
	assert.Equal(t, domain.Idle{}, h.store.state(testUser))
	require.Len(t, h.store.people, 1)

	got := h.store.people[0]
	assert.Equal(t, "Noa Cohen", got.FullName)
	assert.Equal(t, testUser, got.CreatedBy)
	for _, step := range wizardSteps[1:] {
		assert.Empty(t, got.Field(step.field), step.field)
	}
}

func TestWizardTreatsCommandsAsAnswers(t *testing.T) {
	h := newHarness(t)
	h.store.seed(testUser, domain.AddingPerson{Step: domain.PersonEmail, Draft: domain.Person{FullName: "Noa"}}, true)

	assert.Equal(t, []string{wizardSteps[2].prompt}, h.say(t, "/search"))
	state, ok := h.store.state(testUser).(domain.AddingPerson)
	require.True(t, ok)
	assert.Equal(t, domain.PersonCompany, state.Step)
	assert.Equal(t, "/search", state.Draft.Email)
}

func TestWizardInsertFailureResetsToIdle(t *testing.T) {
	h := newHarness(t)
	h.store.insertFail["Noa"] = true
	h.store.seed(testUser, domain.AddingPerson{Step: domain.PersonMoreInfo, Draft: domain.Person{FullName: "Noa"}}, true)

	assert.Equal(t, []string{msgWizardSaveFailed}, h.say(t, "met at demo day"))
	assert.Equal(t, domain.Idle{}, h.store.state(testUser))
}

func TestUpdatePersonApproved(t *testing.T) {
	h := newHarness(t)
	h.store.seed(testUser, domain.Idle{}, true)
	dana := h.store.addPerson(domain.Person{FullName: "Dana Levi", Company: "Sequoia", CreatedBy: "someone-else"})
	h.classifier.returns(domain.UpdatePersonOp{Updates: map[string]string{domain.PersonCompany: "Accel"}})

	replies := h.say(t, "she moved to accel")
	require.Len(t, replies, 1)
	assert.Contains(t, replies[0], "Dana Levi")
	assert.Contains(t, replies[0], "Accel")
	assert.Equal(t, domain.PendingUpdate{
		TargetID: dana.ID,
		Fields:   map[string]string{domain.PersonCompany: "Accel"},
	}, h.store.state(testUser))
	assert.Empty(t, h.store.updates, "no mutation before confirmation")

	assert.Equal(t, []string{msgUpdateApplied}, h.say(t, "1"))
	assert.Equal(t, domain.Idle{}, h.store.state(testUser))
	require.Len(t, h.store.updates, 1)
	assert.Equal(t, map[string]string{domain.PersonCompany: "Accel"}, h.store.updates[0])
	assert.Equal(t, "Accel", h.store.people[0].Company)
}

func TestUpdatePersonRejected(t *testing.T) {
	for _, answer := range []string{"0", "yes", "11", "1 please"} {
		t.Run(answer, func(t *testing.T) {
			h := newHarness(t)
			h.store.seed(testUser, domain.Idle{}, true)
			h.store.addPerson(domain.Person{FullName: "Dana Levi", Company: "Sequoia"})
			h.classifier.returns(domain.UpdatePersonOp{Updates: map[string]string{domain.PersonCompany: "Accel"}})

			h.say(t, "she moved to accel")
			require.IsType(t, domain.PendingUpdate{}, h.store.state(testUser))

			replies := h.say(t, answer)
			assert.Equal(t, domain.Idle{}, h.store.state(testUser))
			assert.Empty(t, h.store.updates)
			assert.Equal(t, "Sequoia", h.store.people[0].Company)
			assert.Equal(t, []string{msgUpdateCancelled}, replies)
		})
	}
}

func TestUpdatePersonPrefersSendersLatestRecord(t *testing.T) {
	h := newHarness(t)
	h.store.seed(testUser, domain.Idle{}, true)
	mine := h.store.addPerson(domain.Person{FullName: "Mine", CreatedBy: testUser})
	h.store.addPerson(domain.Person{FullName: "Theirs", CreatedBy: "200"})
	h.classifier.returns(domain.UpdatePersonOp{Updates: map[string]string{domain.PersonStatus: "invested"}})

	h.say(t, "status is invested")
	pending, ok := h.store.state(testUser).(domain.PendingUpdate)
	require.True(t, ok)
	assert.Equal(t, mine.ID, pending.TargetID)
}

func TestUpdatePersonWithoutAnyPeople(t *testing.T) {
	h := newHarness(t)
	h.store.seed(testUser, domain.Idle{}, true)
	h.classifier.returns(domain.UpdatePersonOp{Updates: map[string]string{domain.PersonStatus: "invested"}})

	assert.Equal(t, []string{msgNoPersonToUpdate}, h.say(t, "status is invested"))
	assert.Equal(t, domain.Idle{}, h.store.state(testUser))
	assert.Zero(t, h.store.stateSaves)
}

func TestSearchWithNoResults(t *testing.T) {
	h := newHarness(t)
	h.store.seed(testUser, domain.Idle{}, true)
	h.store.addPerson(domain.Person{FullName: "Dana Levi"})
	h.classifier.returns(domain.SearchOp{Terms: []string{"zzz"}})

	assert.Equal(t, []string{`🔍 No results found for "zzz"`}, h.say(t, "find zzz"))
	assert.Equal(t, domain.Idle{}, h.store.state(testUser))
	assert.Zero(t, h.store.stateSaves)
}

func TestAddPeoplePartialBatch(t *testing.T) {
	h := newHarness(t)
	h.store.seed(testUser, domain.Idle{}, true)
	h.classifier.returns(domain.AddPeopleOp{Records: []domain.Person{
		{FullName: "Sarah Cohen", Company: "Google"},
		{FullName: "  ", Company: "Nameless"},
		{Email: "ghost@example.com"},
		{FullName: "Avi Ben"},
	}})

	assert.Equal(t, []string{"✅ Added 2 person(s): Sarah Cohen, Avi Ben"}, h.say(t, "add sarah and avi"))
	require.Len(t, h.store.people, 2)
	assert.Equal(t, testUser, h.store.people[0].CreatedBy)
}

func TestAddPeopleNoneValid(t *testing.T) {
	h := newHarness(t)
	h.store.seed(testUser, domain.Idle{}, true)
	h.classifier.returns(domain.AddPeopleOp{Records: []domain.Person{{Company: "Nameless"}}})

	assert.Equal(t, []string{msgPeopleNoneAdded}, h.say(t, "add someone"))
	assert.Empty(t, h.store.people)
}

func TestMalformedClassifierOutputSearchesRawText(t *testing.T) {
	h := newHarness(t)
	h.store.seed(testUser, domain.Idle{}, true)
	h.store.addPerson(domain.Person{FullName: "Dana Levi", Company: "Sequoia Capital"})
	h.classifier.fn = func(string) (domain.Operation, error) {
		return classifier.Decode("Sure! I'd search for that."), nil
	}

	replies := h.say(t, "Sequoia Capital")
	assert.Equal(t, "Sequoia Capital", h.store.lastQuery)
	require.Len(t, replies, 1)
	assert.Contains(t, replies[0], "Dana Levi")
}

func TestSearchPrefixBypassesClassifier(t *testing.T) {
	h := newHarness(t)
	h.store.seed(testUser, domain.Idle{}, true)

	h.say(t, ".  fintech ")
	assert.Equal(t, "fintech", h.store.lastQuery)
	assert.Zero(t, h.classifier.calls)

	assert.Equal(t, []string{"❓ Please provide a search term after the . (e.g., '.john doe')"}, h.say(t, "."))
}

func TestSearchingStateSearchesThenIdles(t *testing.T) {
	h := newHarness(t)
	h.store.seed(testUser, domain.Idle{}, true)

	assert.Equal(t, []string{msgSearchPrompt}, h.say(t, "/search"))
	assert.Equal(t, domain.Searching{}, h.store.state(testUser))

	h.say(t, "ai engineer")
	assert.Equal(t, "ai engineer", h.store.lastQuery)
	assert.Equal(t, domain.Idle{}, h.store.state(testUser))
	assert.Zero(t, h.classifier.calls)
}

func TestClassifierErrorRepliesGenerically(t *testing.T) {
	h := newHarness(t)
	h.store.seed(testUser, domain.Idle{}, true)
	h.classifier.fn = func(string) (domain.Operation, error) { return nil, errors.New("connection refused") }

	assert.Equal(t, []string{msgClassifyFailed}, h.say(t, "who is at accel"))
	assert.Zero(t, h.store.dataCalls)
}

func TestStoreFailuresBecomeReplies(t *testing.T) {
	h := newHarness(t)
	h.store.seed(testUser, domain.Idle{}, true)
	h.store.searchErr = errors.New("disk I/O error")

	assert.Equal(t, []string{msgSearchFailed}, h.say(t, ".dana"))

	h.store.saveStateErr = errors.New("database is locked")
	assert.Equal(t, []string{msgGenericError}, h.say(t, "/search"))
}

func TestPanicIsRecoveredPerMessage(t *testing.T) {
	h := newHarness(t)
	h.store.seed(testUser, domain.Idle{}, true)
	h.classifier.fn = func(string) (domain.Operation, error) { panic("boom") }

	err := h.router.Handle(context.Background(), Message{SenderID: testUser, ChatID: testUser, Text: "hello"})
	require.Error(t, err)

	h.classifier.returns(domain.ListMeetingsOp{Period: "today"})
	assert.Equal(t, []string{msgMeetingsSoon}, h.say(t, "meetings today"))
}

func TestPasswordAttemptsStayOutOfTranscript(t *testing.T) {
	h := newHarness(t)

	h.say(t, "/start")
	h.say(t, "open-sesam")
	h.say(t, testPassword)
	h.say(t, ".dana")

	var inbound []string
	for _, line := range h.recorder.recorded() {
		assert.NotContains(t, line, "open-sesam")
		if strings.HasPrefix(line, "user: ") {
			inbound = append(inbound, line)
		}
	}
	assert.Equal(t, []string{
		"user: /start",
		"user: " + redactedText,
		"user: " + redactedText,
		"user: .dana",
	}, inbound)
}

func TestCancelWhileAuthenticatingIsRecorded(t *testing.T) {
	h := newHarness(t)
	h.store.seed(testUser, domain.Authenticating{}, false)

	h.say(t, "/cancel")
	assert.Contains(t, h.recorder.recorded(), "user: /cancel")
}

func TestHelpResolvesPendingUpdate(t *testing.T) {
	h := newHarness(t)
	h.store.seed(testUser, domain.PendingUpdate{TargetID: "p1", Fields: map[string]string{domain.PersonEmail: "x@y.z"}}, true)

	assert.Equal(t, []string{msgUpdateCancelled, msgHelp}, h.say(t, "/help"))
	assert.Equal(t, domain.Idle{}, h.store.state(testUser))
	assert.Empty(t, h.store.updates)

	assert.Equal(t, []string{msgHelp}, h.say(t, "/help"))
}

func TestWizardResultSurvivesStateSaveFailure(t *testing.T) {
	final := domain.AddingPerson{Step: domain.PersonMoreInfo, Draft: domain.Person{FullName: "Noa"}}

	t.Run("second attempt succeeds", func(t *testing.T) {
		h := newHarness(t)
		h.store.seed(testUser, final, true)
		h.store.saveStateFails = 1

		assert.Equal(t, []string{"✅ Successfully added: <b>Noa</b>\nℹ More info: met at demo day"}, h.say(t, "met at demo day"))
		assert.Equal(t, domain.Idle{}, h.store.state(testUser))
		assert.Len(t, h.store.people, 1)
	})

	t.Run("both attempts fail", func(t *testing.T) {
		h := newHarness(t)
		h.store.seed(testUser, final, true)
		h.store.saveStateErr = errors.New("database is locked")

		replies := h.say(t, "met at demo day")
		require.Len(t, replies, 1)
		assert.Contains(t, replies[0], "Successfully added")
		assert.Len(t, h.store.people, 1)
	})
}
