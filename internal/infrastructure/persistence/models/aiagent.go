package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/taxcrm/backend/internal/domain/aiagent"
)

// AgentConfigModel is the persistence model for a tenant's agent Config.
type AgentConfigModel struct {
	TenantAggregateModel
	Enabled              bool             `gorm:"not null;default:false"`
	Mode                 aiagent.Mode     `gorm:"type:varchar(10);not null;default:'suggest'"`
	Provider             aiagent.Provider `gorm:"type:varchar(20);not null;default:'openai'"`
	Model                string           `gorm:"type:varchar(100)"`
	CycleIntervalMinutes int              `gorm:"not null;default:60"`
	Instructions         string           `gorm:"type:text"`
	LastRunAt            *time.Time
}

// TableName returns the table name for GORM
func (AgentConfigModel) TableName() string {
	return "agent_configs"
}

// ToDomain converts the persistence model to a domain Config.
func (m *AgentConfigModel) ToDomain() *aiagent.Config {
	c := &aiagent.Config{
		Enabled:              m.Enabled,
		Mode:                 m.Mode,
		Provider:             m.Provider,
		Model:                m.Model,
		CycleIntervalMinutes: m.CycleIntervalMinutes,
		Instructions:         m.Instructions,
		LastRunAt:            m.LastRunAt,
	}
	c.TenantAggregateRoot = m.tenantRoot()
	return c
}

// FromDomain populates the persistence model from a domain Config.
func (m *AgentConfigModel) FromDomain(c *aiagent.Config) {
	m.setTenantRoot(c.TenantAggregateRoot)
	m.Enabled = c.Enabled
	m.Mode = c.Mode
	m.Provider = c.Provider
	m.Model = c.Model
	m.CycleIntervalMinutes = c.CycleIntervalMinutes
	m.Instructions = c.Instructions
	m.LastRunAt = c.LastRunAt
}

// AgentConfigModelFromDomain creates a new persistence model from a domain Config.
func AgentConfigModelFromDomain(c *aiagent.Config) *AgentConfigModel {
	m := &AgentConfigModel{}
	m.FromDomain(c)
	return m
}

// AgentRunModel records one agent cycle.
type AgentRunModel struct {
	ID              uuid.UUID         `gorm:"type:uuid;primary_key"`
	TenantID        uuid.UUID         `gorm:"type:uuid;not null;index"`
	Status          aiagent.RunStatus `gorm:"type:varchar(20);not null"`
	StartedAt       time.Time         `gorm:"not null"`
	FinishedAt      *time.Time
	SuggestionCount int    `gorm:"not null;default:0"`
	UsedFallback    bool   `gorm:"not null;default:false"`
	Error           string `gorm:"type:text"`
}

// TableName returns the table name for GORM
func (AgentRunModel) TableName() string {
	return "agent_runs"
}

// ToDomain converts the persistence model to a domain Run.
func (m *AgentRunModel) ToDomain() aiagent.Run {
	return aiagent.Run{
		ID:              m.ID,
		TenantID:        m.TenantID,
		Status:          m.Status,
		StartedAt:       m.StartedAt,
		FinishedAt:      m.FinishedAt,
		SuggestionCount: m.SuggestionCount,
		UsedFallback:    m.UsedFallback,
		Error:           m.Error,
	}
}

// AgentRunModelFromDomain creates a new persistence model from a domain Run.
func AgentRunModelFromDomain(r *aiagent.Run) *AgentRunModel {
	return &AgentRunModel{
		ID:              r.ID,
		TenantID:        r.TenantID,
		Status:          r.Status,
		StartedAt:       r.StartedAt,
		FinishedAt:      r.FinishedAt,
		SuggestionCount: r.SuggestionCount,
		UsedFallback:    r.UsedFallback,
		Error:           r.Error,
	}
}

// AgentSuggestionModel is the persistence model for a Suggestion.
type AgentSuggestionModel struct {
	TenantAggregateModel
	RunID       uuid.UUID                `gorm:"type:uuid;not null;index"`
	Kind        aiagent.Kind             `gorm:"type:varchar(30);not null"`
	Title       string                   `gorm:"type:varchar(300);not null"`
	Rationale   string                   `gorm:"type:text"`
	TargetType  string                   `gorm:"type:varchar(30)"`
	TargetID    *uuid.UUID               `gorm:"type:uuid"`
	PayloadJSON string                   `gorm:"column:payload;type:jsonb;not null;default:'{}'"`
	Status      aiagent.SuggestionStatus `gorm:"type:varchar(20);not null;default:'proposed'"`
	DecidedBy   *uuid.UUID               `gorm:"type:uuid"`
	ExecutedAt  *time.Time
	ResultRefID *uuid.UUID `gorm:"type:uuid"`
}

// TableName returns the table name for GORM
func (AgentSuggestionModel) TableName() string {
	return "agent_suggestions"
}

// ToDomain converts the persistence model to a domain Suggestion.
func (m *AgentSuggestionModel) ToDomain() *aiagent.Suggestion {
	s := &aiagent.Suggestion{
		RunID:       m.RunID,
		Kind:        m.Kind,
		Title:       m.Title,
		Rationale:   m.Rationale,
		TargetType:  m.TargetType,
		TargetID:    m.TargetID,
		Payload:     make(map[string]any),
		Status:      m.Status,
		DecidedBy:   m.DecidedBy,
		ExecutedAt:  m.ExecutedAt,
		ResultRefID: m.ResultRefID,
	}
	s.TenantAggregateRoot = m.tenantRoot()
	decodeJSONInto(m.PayloadJSON, &s.Payload)
	return s
}

// FromDomain populates the persistence model from a domain Suggestion.
func (m *AgentSuggestionModel) FromDomain(s *aiagent.Suggestion) {
	m.setTenantRoot(s.TenantAggregateRoot)
	m.RunID = s.RunID
	m.Kind = s.Kind
	m.Title = s.Title
	m.Rationale = s.Rationale
	m.TargetType = s.TargetType
	m.TargetID = s.TargetID
	m.PayloadJSON = encodeJSON(s.Payload, "{}")
	m.Status = s.Status
	m.DecidedBy = s.DecidedBy
	m.ExecutedAt = s.ExecutedAt
	m.ResultRefID = s.ResultRefID
}

// AgentSuggestionModelFromDomain creates a new persistence model from a domain Suggestion.
func AgentSuggestionModelFromDomain(s *aiagent.Suggestion) *AgentSuggestionModel {
	m := &AgentSuggestionModel{}
	m.FromDomain(s)
	return m
}
