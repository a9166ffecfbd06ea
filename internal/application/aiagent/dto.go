package aiagent

import (
	"time"

	"github.com/google/uuid"
	"github.com/taxcrm/backend/internal/domain/aiagent"
)

// ConfigDTO is the API view of the agent configuration
type ConfigDTO struct {
	Enabled              bool       `json:"enabled"`
	Mode                 string     `json:"mode"`
	Provider             string     `json:"provider"`
	Model                string     `json:"model"`
	CycleIntervalMinutes int        `json:"cycle_interval_minutes"`
	Instructions         string     `json:"instructions"`
	LastRunAt            *time.Time `json:"last_run_at,omitempty"`
}

// ToConfigDTO converts a configuration
func ToConfigDTO(c *aiagent.Config) ConfigDTO {
	return ConfigDTO{
		Enabled:              c.Enabled,
		Mode:                 string(c.Mode),
		Provider:             string(c.Provider),
		Model:                c.Model,
		CycleIntervalMinutes: c.CycleIntervalMinutes,
		Instructions:         c.Instructions,
		LastRunAt:            c.LastRunAt,
	}
}

// ConfigInput replaces the agent configuration
type ConfigInput struct {
	Enabled              bool   `json:"enabled"`
	Mode                 string `json:"mode"`
	Provider             string `json:"provider"`
	Model                string `json:"model"`
	CycleIntervalMinutes int    `json:"cycle_interval_minutes"`
	Instructions         string `json:"instructions"`
}

// RunDTO is the API view of one cycle
type RunDTO struct {
	ID              uuid.UUID  `json:"id"`
	Status          string     `json:"status"`
	StartedAt       time.Time  `json:"started_at"`
	FinishedAt      *time.Time `json:"finished_at,omitempty"`
	SuggestionCount int        `json:"suggestion_count"`
	UsedFallback    bool       `json:"used_fallback"`
	Error           string     `json:"error,omitempty"`
}

// ToRunDTO converts a run
func ToRunDTO(r *aiagent.Run) RunDTO {
	return RunDTO{
		ID:              r.ID,
		Status:          string(r.Status),
		StartedAt:       r.StartedAt,
		FinishedAt:      r.FinishedAt,
		SuggestionCount: r.SuggestionCount,
		UsedFallback:    r.UsedFallback,
		Error:           r.Error,
	}
}

// SuggestionDTO is the API view of a suggestion
type SuggestionDTO struct {
	ID          uuid.UUID      `json:"id"`
	RunID       uuid.UUID      `json:"run_id"`
	Kind        string         `json:"kind"`
	Title       string         `json:"title"`
	Rationale   string         `json:"rationale,omitempty"`
	TargetType  string         `json:"target_type,omitempty"`
	TargetID    *uuid.UUID     `json:"target_id,omitempty"`
	Payload     map[string]any `json:"payload"`
	Status      string         `json:"status"`
	DecidedBy   *uuid.UUID     `json:"decided_by,omitempty"`
	ExecutedAt  *time.Time     `json:"executed_at,omitempty"`
	ResultRefID *uuid.UUID     `json:"result_ref_id,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}

// ToSuggestionDTO converts a suggestion
func ToSuggestionDTO(s *aiagent.Suggestion) SuggestionDTO {
	return SuggestionDTO{
		ID:          s.ID,
		RunID:       s.RunID,
		Kind:        string(s.Kind),
		Title:       s.Title,
		Rationale:   s.Rationale,
		TargetType:  s.TargetType,
		TargetID:    s.TargetID,
		Payload:     s.Payload,
		Status:      string(s.Status),
		DecidedBy:   s.DecidedBy,
		ExecutedAt:  s.ExecutedAt,
		ResultRefID: s.ResultRefID,
		CreatedAt:   s.CreatedAt,
	}
}

// AskInput is a free-form question with optional CRM context
type AskInput struct {
	Question  string     `json:"question"`
	ContactID *uuid.UUID `json:"contact_id"`
	TaxCaseID *uuid.UUID `json:"tax_case_id"`
}

// AskResult is the model's answer
type AskResult struct {
	Answer   string `json:"answer"`
	Provider string `json:"provider"`
	Model    string `json:"model,omitempty"`
}
