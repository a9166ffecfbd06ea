package aiagent

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/taxcrm/backend/internal/domain/shared"
)

// Kind is the type of work a suggestion proposes
type Kind string

const (
	KindFollowUpTask        Kind = "follow_up_task"
	KindAppointmentReminder Kind = "appointment_reminder"
	KindCaseReview          Kind = "case_review"
	KindInvoiceReminder     Kind = "invoice_reminder"
)

// IsValid reports whether k is a known kind
func (k Kind) IsValid() bool {
	switch k {
	case KindFollowUpTask, KindAppointmentReminder, KindCaseReview, KindInvoiceReminder:
		return true
	}
	return false
}

// SuggestionStatus is the review state of a suggestion
type SuggestionStatus string

const (
	SuggestionProposed  SuggestionStatus = "proposed"
	SuggestionAccepted  SuggestionStatus = "accepted"
	SuggestionDismissed SuggestionStatus = "dismissed"
	SuggestionExecuted  SuggestionStatus = "executed"
)

const SuggestionAggregateType = "agent_suggestion"

// Draft is a suggestion before it is persisted
type Draft struct {
	Kind       Kind           `json:"kind"`
	Title      string         `json:"title"`
	Rationale  string         `json:"rationale"`
	TargetType string         `json:"target_type"`
	TargetID   *uuid.UUID     `json:"target_id,omitempty"`
	Payload    map[string]any `json:"payload,omitempty"`
}

// Validate checks the draft is actionable
func (d Draft) Validate() error {
	if !d.Kind.IsValid() {
		return shared.NewDomainError("INVALID_SUGGESTION", "Unknown suggestion kind: "+string(d.Kind))
	}
	if strings.TrimSpace(d.Title) == "" {
		return shared.NewDomainError("INVALID_SUGGESTION", "Suggestion title cannot be empty")
	}
	return nil
}

// Suggestion is a unit of work proposed by the agent
type Suggestion struct {
	shared.TenantAggregateRoot
	RunID       uuid.UUID
	Kind        Kind
	Title       string
	Rationale   string
	TargetType  string
	TargetID    *uuid.UUID
	Payload     map[string]any
	Status      SuggestionStatus
	DecidedBy   *uuid.UUID
	ExecutedAt  *time.Time
	ResultRefID *uuid.UUID
}

// NewSuggestion persists a draft from a run
func NewSuggestion(tenantID, runID uuid.UUID, d Draft) (*Suggestion, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}
	payload := d.Payload
	if payload == nil {
		payload = map[string]any{}
	}
	s := &Suggestion{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		RunID:               runID,
		Kind:                d.Kind,
		Title:               strings.TrimSpace(d.Title),
		Rationale:           strings.TrimSpace(d.Rationale),
		TargetType:          d.TargetType,
		TargetID:            d.TargetID,
		Payload:             payload,
		Status:              SuggestionProposed,
	}
	return s, nil
}

// Accept approves a proposed suggestion for execution
func (s *Suggestion) Accept(by *uuid.UUID) error {
	if s.Status != SuggestionProposed {
		return shared.NewDomainError("INVALID_SUGGESTION_STATE", "Suggestion is already "+string(s.Status))
	}
	s.Status = SuggestionAccepted
	s.DecidedBy = by
	s.IncrementVersion()
	s.AddDomainEvent(shared.NewRecordEvent(SuggestionAggregateType, "accepted", s.ID, s.TenantID, map[string]any{"title": s.Title}))
	return nil
}

// Dismiss rejects a proposed suggestion
func (s *Suggestion) Dismiss(by *uuid.UUID) error {
	if s.Status != SuggestionProposed {
		return shared.NewDomainError("INVALID_SUGGESTION_STATE", "Suggestion is already "+string(s.Status))
	}
	s.Status = SuggestionDismissed
	s.DecidedBy = by
	s.IncrementVersion()
	s.AddDomainEvent(shared.NewRecordEvent(SuggestionAggregateType, "dismissed", s.ID, s.TenantID, map[string]any{"title": s.Title}))
	return nil
}

// MarkExecuted records the resource created from an accepted suggestion
func (s *Suggestion) MarkExecuted(resultID *uuid.UUID) error {
	if s.Status != SuggestionAccepted {
		return shared.NewDomainError("INVALID_SUGGESTION_STATE", "Only accepted suggestions can be executed")
	}
	now := time.Now()
	s.Status = SuggestionExecuted
	s.ExecutedAt = &now
	s.ResultRefID = resultID
	s.IncrementVersion()
	s.AddDomainEvent(shared.NewRecordEvent(SuggestionAggregateType, "executed", s.ID, s.TenantID, nil))
	return nil
}

// PayloadString reads a string payload value
func (s *Suggestion) PayloadString(key string) string {
	if v, ok := s.Payload[key].(string); ok {
		return v
	}
	return ""
}

// PayloadInt reads a numeric payload value; JSON numbers decode as float64
func (s *Suggestion) PayloadInt(key string, fallback int) int {
	switch v := s.Payload[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	}
	return fallback
}
