package aiagent

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// MaxSuggestionsPerRun caps what one cycle can propose
const MaxSuggestionsPerRun = 20

// Signal is one CRM item that may need attention
type Signal struct {
	ID         uuid.UUID  `json:"id"`
	Label      string     `json:"label"`
	Due        *time.Time `json:"due,omitempty"`
	AssigneeID *uuid.UUID `json:"assignee_id,omitempty"`
	ContactID  *uuid.UUID `json:"contact_id,omitempty"`
}

// Signals is the CRM state collected at the start of a cycle
type Signals struct {
	OverdueTasks     []Signal `json:"overdue_tasks"`
	UpcomingCases    []Signal `json:"upcoming_cases"`
	OverdueInvoices  []Signal `json:"overdue_invoices"`
	InactiveContacts []Signal `json:"inactive_contacts"`
}

// IsEmpty reports whether nothing needs attention
func (s Signals) IsEmpty() bool {
	return len(s.OverdueTasks)+len(s.UpcomingCases)+len(s.OverdueInvoices)+len(s.InactiveContacts) == 0
}

// Fallback derives suggestions from the signals without a model
func Fallback(s Signals) []Draft {
	var drafts []Draft
	for _, sig := range s.UpcomingCases {
		drafts = append(drafts, Draft{
			Kind:       KindCaseReview,
			Title:      "Review case " + sig.Label,
			Rationale:  "Case is due " + formatDue(sig.Due) + " and has not been filed",
			TargetType: "tax_case",
			TargetID:   idPtr(sig.ID),
			Payload:    followUpPayload("Review case "+sig.Label, sig.AssigneeID, nil, 1),
		})
	}
	for _, sig := range s.OverdueInvoices {
		drafts = append(drafts, Draft{
			Kind:       KindInvoiceReminder,
			Title:      "Send payment reminder for " + sig.Label,
			Rationale:  "Invoice was due " + formatDue(sig.Due),
			TargetType: "invoice",
			TargetID:   idPtr(sig.ID),
			Payload:    followUpPayload("Collect payment for "+sig.Label, sig.AssigneeID, sig.ContactID, 2),
		})
	}
	for _, sig := range s.OverdueTasks {
		drafts = append(drafts, Draft{
			Kind:       KindFollowUpTask,
			Title:      "Follow up on overdue task: " + sig.Label,
			Rationale:  "Task was due " + formatDue(sig.Due),
			TargetType: "task",
			TargetID:   idPtr(sig.ID),
			Payload:    followUpPayload("Follow up: "+sig.Label, sig.AssigneeID, sig.ContactID, 1),
		})
	}
	for _, sig := range s.InactiveContacts {
		drafts = append(drafts, Draft{
			Kind:       KindFollowUpTask,
			Title:      "Check in with " + sig.Label,
			Rationale:  "No activity in the last 90 days",
			TargetType: "contact",
			TargetID:   idPtr(sig.ID),
			Payload:    followUpPayload("Check in with "+sig.Label, sig.AssigneeID, idPtr(sig.ID), 7),
		})
	}
	if len(drafts) > MaxSuggestionsPerRun {
		drafts = drafts[:MaxSuggestionsPerRun]
	}
	return drafts
}

// BuildPrompt renders the cycle prompt sent to the model
func BuildPrompt(instructions string, s Signals, now time.Time) string {
	var b strings.Builder
	b.WriteString("You are an assistant for a tax practice. Today is ")
	b.WriteString(now.Format("2006-01-02"))
	b.WriteString(".\nReview the CRM signals below and propose concrete next steps.\n")
	if instructions != "" {
		b.WriteString("Practice instructions: ")
		b.WriteString(instructions)
		b.WriteString("\n")
	}
	data, _ := json.MarshalIndent(s, "", "  ")
	b.WriteString("Signals:\n")
	b.Write(data)
	fmt.Fprintf(&b, "\nRespond with JSON only: {\"suggestions\":[{\"kind\":one of %q,\"title\":string,\"rationale\":string,"+
		"\"target_type\":string,\"target_id\":uuid,\"payload\":{\"title\":string,\"assignee_id\":uuid,\"due_in_days\":int}}]}. "+
		"Propose at most %d suggestions.",
		[]Kind{KindFollowUpTask, KindAppointmentReminder, KindCaseReview, KindInvoiceReminder}, MaxSuggestionsPerRun)
	return b.String()
}

// ParseSuggestions extracts drafts from a model reply. Surrounding prose and code
// fences are ignored; invalid entries are dropped.
func ParseSuggestions(reply string) ([]Draft, error) {
	start := strings.Index(reply, "{")
	end := strings.LastIndex(reply, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no JSON object in model reply")
	}
	var parsed struct {
		Suggestions []Draft `json:"suggestions"`
	}
	if err := json.Unmarshal([]byte(reply[start:end+1]), &parsed); err != nil {
		return nil, fmt.Errorf("failed to decode model reply: %w", err)
	}
	drafts := make([]Draft, 0, len(parsed.Suggestions))
	for _, d := range parsed.Suggestions {
		if d.Validate() == nil {
			drafts = append(drafts, d)
		}
	}
	if len(drafts) > MaxSuggestionsPerRun {
		drafts = drafts[:MaxSuggestionsPerRun]
	}
	return drafts, nil
}

func followUpPayload(title string, assignee, contact *uuid.UUID, dueInDays int) map[string]any {
	p := map[string]any{"title": title, "due_in_days": dueInDays}
	if assignee != nil {
		p["assignee_id"] = assignee.String()
	}
	if contact != nil {
		p["contact_id"] = contact.String()
	}
	return p
}

func formatDue(t *time.Time) string {
	if t == nil {
		return "soon"
	}
	return "on " + t.Format("2006-01-02")
}

func idPtr(id uuid.UUID) *uuid.UUID {
	return &id
}
