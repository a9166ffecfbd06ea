package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/taxcrm/backend/internal/domain/workflow"
)

// ApprovalDefinitionModel is the persistence model for a workflow Definition.
// Criteria, rules and actions are stored as JSON documents.
type ApprovalDefinitionModel struct {
	TenantAggregateModel
	Name                 string           `gorm:"type:varchar(200);not null"`
	Description          string           `gorm:"type:text"`
	Module               workflow.Module  `gorm:"type:varchar(30);not null"`
	Trigger              workflow.Trigger `gorm:"type:varchar(20);not null"`
	Active               bool             `gorm:"not null;default:true"`
	MatchAllJSON         string           `gorm:"column:match_all;type:jsonb;not null;default:'[]'"`
	MatchAnyJSON         string           `gorm:"column:match_any;type:jsonb;not null;default:'[]'"`
	RulesJSON            string           `gorm:"column:rules;type:jsonb;not null;default:'[]'"`
	ApprovalActionsJSON  string           `gorm:"column:approval_actions;type:jsonb;not null;default:'[]'"`
	RejectionActionsJSON string           `gorm:"column:rejection_actions;type:jsonb;not null;default:'[]'"`
}

// TableName returns the table name for GORM
func (ApprovalDefinitionModel) TableName() string {
	return "approval_definitions"
}

// ToDomain converts the persistence model to a domain Definition.
func (m *ApprovalDefinitionModel) ToDomain() *workflow.Definition {
	d := &workflow.Definition{
		Name:             m.Name,
		Description:      m.Description,
		Module:           m.Module,
		Trigger:          m.Trigger,
		Active:           m.Active,
		MatchAll:         make([]workflow.Condition, 0),
		MatchAny:         make([]workflow.Condition, 0),
		Rules:            make([]workflow.Rule, 0),
		ApprovalActions:  make([]workflow.Action, 0),
		RejectionActions: make([]workflow.Action, 0),
	}
	d.TenantAggregateRoot = m.tenantRoot()
	decodeJSONInto(m.MatchAllJSON, &d.MatchAll)
	decodeJSONInto(m.MatchAnyJSON, &d.MatchAny)
	decodeJSONInto(m.RulesJSON, &d.Rules)
	decodeJSONInto(m.ApprovalActionsJSON, &d.ApprovalActions)
	decodeJSONInto(m.RejectionActionsJSON, &d.RejectionActions)
	return d
}

// FromDomain populates the persistence model from a domain Definition.
func (m *ApprovalDefinitionModel) FromDomain(d *workflow.Definition) {
	m.setTenantRoot(d.TenantAggregateRoot)
	m.Name = d.Name
	m.Description = d.Description
	m.Module = d.Module
	m.Trigger = d.Trigger
	m.Active = d.Active
	m.MatchAllJSON = encodeJSON(d.MatchAll, "[]")
	m.MatchAnyJSON = encodeJSON(d.MatchAny, "[]")
	m.RulesJSON = encodeJSON(d.Rules, "[]")
	m.ApprovalActionsJSON = encodeJSON(d.ApprovalActions, "[]")
	m.RejectionActionsJSON = encodeJSON(d.RejectionActions, "[]")
}

// ApprovalDefinitionModelFromDomain creates a new persistence model from a domain Definition.
func ApprovalDefinitionModelFromDomain(d *workflow.Definition) *ApprovalDefinitionModel {
	m := &ApprovalDefinitionModel{}
	m.FromDomain(d)
	return m
}

// ApprovalModel is the persistence model for an Approval request.
type ApprovalModel struct {
	TenantAggregateModel
	DefinitionID   uuid.UUID               `gorm:"type:uuid;not null"`
	DefinitionName string                  `gorm:"type:varchar(200);not null"`
	RuleNumber     int                     `gorm:"not null"`
	RuleName       string                  `gorm:"type:varchar(200)"`
	Module         workflow.Module         `gorm:"type:varchar(30);not null;index"`
	Trigger        workflow.Trigger        `gorm:"type:varchar(20);not null;default:'via_process'"`
	RecordID       uuid.UUID               `gorm:"type:uuid;not null;index"`
	SnapshotJSON   string                  `gorm:"column:snapshot;type:jsonb;not null;default:'{}'"`
	Status         workflow.ApprovalStatus `gorm:"type:varchar(20);not null;default:'pending'"`
	ApproverRoleID *uuid.UUID              `gorm:"type:uuid"`
	ApproverUserID *uuid.UUID              `gorm:"type:uuid"`
	DecidedBy      *uuid.UUID              `gorm:"type:uuid"`
	DecidedAt      *time.Time
	Comment        string `gorm:"type:text"`
	ResultsJSON    string `gorm:"column:results;type:jsonb;not null;default:'[]'"`
}

// TableName returns the table name for GORM
func (ApprovalModel) TableName() string {
	return "approvals"
}

// ToDomain converts the persistence model to a domain Approval.
func (m *ApprovalModel) ToDomain() *workflow.Approval {
	a := &workflow.Approval{
		DefinitionID:   m.DefinitionID,
		DefinitionName: m.DefinitionName,
		RuleNumber:     m.RuleNumber,
		RuleName:       m.RuleName,
		Module:         m.Module,
		Trigger:        m.Trigger,
		RecordID:       m.RecordID,
		Snapshot:       make(map[string]any),
		Status:         m.Status,
		ApproverRoleID: m.ApproverRoleID,
		ApproverUserID: m.ApproverUserID,
		DecidedBy:      m.DecidedBy,
		DecidedAt:      m.DecidedAt,
		Comment:        m.Comment,
		Results:        make([]workflow.ActionResult, 0),
	}
	a.TenantAggregateRoot = m.tenantRoot()
	decodeJSONInto(m.SnapshotJSON, &a.Snapshot)
	decodeJSONInto(m.ResultsJSON, &a.Results)
	return a
}

// FromDomain populates the persistence model from a domain Approval.
func (m *ApprovalModel) FromDomain(a *workflow.Approval) {
	m.setTenantRoot(a.TenantAggregateRoot)
	m.DefinitionID = a.DefinitionID
	m.DefinitionName = a.DefinitionName
	m.RuleNumber = a.RuleNumber
	m.RuleName = a.RuleName
	m.Module = a.Module
	m.Trigger = a.Trigger
	m.RecordID = a.RecordID
	m.SnapshotJSON = encodeJSON(a.Snapshot, "{}")
	m.Status = a.Status
	m.ApproverRoleID = a.ApproverRoleID
	m.ApproverUserID = a.ApproverUserID
	m.DecidedBy = a.DecidedBy
	m.DecidedAt = a.DecidedAt
	m.Comment = a.Comment
	m.ResultsJSON = encodeJSON(a.Results, "[]")
}

// ApprovalModelFromDomain creates a new persistence model from a domain Approval.
func ApprovalModelFromDomain(a *workflow.Approval) *ApprovalModel {
	m := &ApprovalModel{}
	m.FromDomain(a)
	return m
}

func decodeJSONInto(raw string, dst any) {
	if raw == "" || raw == "null" {
		return
	}
	_ = json.Unmarshal([]byte(raw), dst)
}
