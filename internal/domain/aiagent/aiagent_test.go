package aiagent

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_UpdateAndDue(t *testing.T) {
	c := DefaultConfig(uuid.New())
	now := time.Now()
	assert.False(t, c.IsDue(now), "disabled by default")

	require.NoError(t, c.Update(true, ModeAuto, ProviderAnthropic, " claude ", 30, ""))
	assert.Equal(t, "claude", c.Model)
	assert.True(t, c.IsDue(now), "never run")

	c.MarkRun(now.Add(-10 * time.Minute))
	assert.False(t, c.IsDue(now))
	c.MarkRun(now.Add(-31 * time.Minute))
	assert.True(t, c.IsDue(now))

	assert.Error(t, c.Update(true, "yolo", ProviderOpenAI, "", 30, ""))
	assert.Error(t, c.Update(true, ModeSuggest, "local", "", 30, ""))
	assert.Error(t, c.Update(true, ModeSuggest, ProviderOpenAI, "", 1, ""))
}

func TestRun(t *testing.T) {
	r := NewRun(uuid.New())
	assert.Equal(t, RunRunning, r.Status)
	r.Finish(3, true, errors.New("timeout"))
	assert.Equal(t, RunCompleted, r.Status)
	assert.True(t, r.UsedFallback)
	assert.Equal(t, "timeout", r.Error)

	r = NewRun(uuid.New())
	r.Fail(errors.New("db down"))
	assert.Equal(t, RunFailed, r.Status)
	require.NotNil(t, r.FinishedAt)
}

func TestSuggestion_Lifecycle(t *testing.T) {
	s, err := NewSuggestion(uuid.New(), uuid.New(), Draft{Kind: KindFollowUpTask, Title: "Call Jane"})
	require.NoError(t, err)
	assert.Equal(t, SuggestionProposed, s.Status)
	assert.NotNil(t, s.Payload)

	assert.Error(t, s.MarkExecuted(nil))
	user := uuid.New()
	require.NoError(t, s.Accept(&user))
	assert.Error(t, s.Dismiss(&user))
	taskID := uuid.New()
	require.NoError(t, s.MarkExecuted(&taskID))
	assert.Equal(t, SuggestionExecuted, s.Status)
	assert.Equal(t, &taskID, s.ResultRefID)

	_, err = NewSuggestion(uuid.New(), uuid.New(), Draft{Kind: "spam", Title: "x"})
	assert.Error(t, err)
	_, err = NewSuggestion(uuid.New(), uuid.New(), Draft{Kind: KindCaseReview})
	assert.Error(t, err)
}

func TestSuggestion_Payload(t *testing.T) {
	s := &Suggestion{Payload: map[string]any{"title": "x", "due_in_days": float64(3)}}
	assert.Equal(t, "x", s.PayloadString("title"))
	assert.Equal(t, "", s.PayloadString("missing"))
	assert.Equal(t, 3, s.PayloadInt("due_in_days", 1))
	assert.Equal(t, 1, s.PayloadInt("missing", 1))
}

func TestFallback(t *testing.T) {
	due := time.Date(2025, 4, 15, 0, 0, 0, 0, time.UTC)
	assignee := uuid.New()
	contactID := uuid.New()
	s := Signals{
		OverdueTasks:     []Signal{{ID: uuid.New(), Label: "Collect W-2", Due: &due, AssigneeID: &assignee}},
		UpcomingCases:    []Signal{{ID: uuid.New(), Label: "TC-2024-0001", Due: &due}},
		OverdueInvoices:  []Signal{{ID: uuid.New(), Label: "INV-2024-0003", ContactID: &contactID}},
		InactiveContacts: []Signal{{ID: contactID, Label: "Jane Doe"}},
	}
	drafts := Fallback(s)
	require.Len(t, drafts, 4)
	assert.Equal(t, KindCaseReview, drafts[0].Kind)
	assert.Equal(t, KindInvoiceReminder, drafts[1].Kind)
	assert.Equal(t, KindFollowUpTask, drafts[2].Kind)
	assert.Equal(t, assignee.String(), drafts[2].Payload["assignee_id"])
	assert.Equal(t, "Check in with Jane Doe", drafts[3].Title)
	assert.Equal(t, contactID.String(), drafts[3].Payload["contact_id"])
	for _, d := range drafts {
		assert.NoError(t, d.Validate())
	}

	assert.Empty(t, Fallback(Signals{}))
	assert.True(t, Signals{}.IsEmpty())

	many := Signals{}
	for i := 0; i < MaxSuggestionsPerRun+5; i++ {
		many.InactiveContacts = append(many.InactiveContacts, Signal{ID: uuid.New(), Label: "c"})
	}
	assert.Len(t, Fallback(many), MaxSuggestionsPerRun)
}

func TestBuildPrompt(t *testing.T) {
	p := BuildPrompt("Prefer phone calls", Signals{UpcomingCases: []Signal{{ID: uuid.New(), Label: "TC-2024-0001"}}},
		time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC))
	assert.Contains(t, p, "2025-03-01")
	assert.Contains(t, p, "Prefer phone calls")
	assert.Contains(t, p, "TC-2024-0001")
	assert.Contains(t, p, "follow_up_task")
}

func TestParseSuggestions(t *testing.T) {
	target := uuid.New()
	reply := "Here you go:\n```json\n{\"suggestions\":[" +
		"{\"kind\":\"case_review\",\"title\":\"Review TC-1\",\"target_type\":\"tax_case\",\"target_id\":\"" + target.String() + "\"}," +
		"{\"kind\":\"unknown\",\"title\":\"skip me\"}," +
		"{\"kind\":\"follow_up_task\",\"title\":\"Call\",\"payload\":{\"due_in_days\":2}}]}\n```"
	drafts, err := ParseSuggestions(reply)
	require.NoError(t, err)
	require.Len(t, drafts, 2)
	assert.Equal(t, &target, drafts[0].TargetID)
	assert.Equal(t, float64(2), drafts[1].Payload["due_in_days"])

	_, err = ParseSuggestions("no json here")
	assert.Error(t, err)
	_, err = ParseSuggestions("{not json}")
	assert.Error(t, err)
}
