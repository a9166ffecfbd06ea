package workflow

import (
	"time"

	"github.com/google/uuid"
	"github.com/taxcrm/backend/internal/domain/workflow"
)

// DefinitionDTO is the API view of an approval definition
type DefinitionDTO struct {
	ID               uuid.UUID            `json:"id"`
	Name             string               `json:"name"`
	Description      string               `json:"description"`
	Module           string               `json:"module"`
	Trigger          string               `json:"trigger"`
	Active           bool                 `json:"active"`
	MatchAll         []workflow.Condition `json:"match_all"`
	MatchAny         []workflow.Condition `json:"match_any"`
	Rules            []workflow.Rule      `json:"rules"`
	ApprovalActions  []workflow.Action    `json:"approval_actions"`
	RejectionActions []workflow.Action    `json:"rejection_actions"`
	CreatedAt        time.Time            `json:"created_at"`
	UpdatedAt        time.Time            `json:"updated_at"`
}

// ToDefinitionDTO converts a definition
func ToDefinitionDTO(d *workflow.Definition) DefinitionDTO {
	return DefinitionDTO{
		ID:               d.ID,
		Name:             d.Name,
		Description:      d.Description,
		Module:           string(d.Module),
		Trigger:          string(d.Trigger),
		Active:           d.Active,
		MatchAll:         nonNilConditions(d.MatchAll),
		MatchAny:         nonNilConditions(d.MatchAny),
		Rules:            nonNilRules(d.Rules),
		ApprovalActions:  nonNilActions(d.ApprovalActions),
		RejectionActions: nonNilActions(d.RejectionActions),
		CreatedAt:        d.CreatedAt,
		UpdatedAt:        d.UpdatedAt,
	}
}

// ApprovalDTO is the API view of an approval request
type ApprovalDTO struct {
	ID             uuid.UUID               `json:"id"`
	DefinitionID   uuid.UUID               `json:"definition_id"`
	DefinitionName string                  `json:"definition_name"`
	RuleNumber     int                     `json:"rule_number"`
	RuleName       string                  `json:"rule_name"`
	Module         string                  `json:"module"`
	Trigger        string                  `json:"trigger"`
	RecordID       uuid.UUID               `json:"record_id"`
	Snapshot       map[string]any          `json:"snapshot"`
	Status         string                  `json:"status"`
	ApproverRoleID *uuid.UUID              `json:"approver_role_id,omitempty"`
	ApproverUserID *uuid.UUID              `json:"approver_user_id,omitempty"`
	RequestedBy    *uuid.UUID              `json:"requested_by,omitempty"`
	DecidedBy      *uuid.UUID              `json:"decided_by,omitempty"`
	DecidedAt      *time.Time              `json:"decided_at,omitempty"`
	Comment        string                  `json:"comment,omitempty"`
	Results        []workflow.ActionResult `json:"results"`
	CreatedAt      time.Time               `json:"created_at"`
}

// ToApprovalDTO converts an approval
func ToApprovalDTO(a *workflow.Approval) ApprovalDTO {
	results := a.Results
	if results == nil {
		results = []workflow.ActionResult{}
	}
	return ApprovalDTO{
		ID:             a.ID,
		DefinitionID:   a.DefinitionID,
		DefinitionName: a.DefinitionName,
		RuleNumber:     a.RuleNumber,
		RuleName:       a.RuleName,
		Module:         string(a.Module),
		Trigger:        string(a.Trigger),
		RecordID:       a.RecordID,
		Snapshot:       a.Snapshot,
		Status:         string(a.Status),
		ApproverRoleID: a.ApproverRoleID,
		ApproverUserID: a.ApproverUserID,
		RequestedBy:    a.CreatedBy,
		DecidedBy:      a.DecidedBy,
		DecidedAt:      a.DecidedAt,
		Comment:        a.Comment,
		Results:        results,
		CreatedAt:      a.CreatedAt,
	}
}

// EvaluationResult reports how a definition treats a sample record
type EvaluationResult struct {
	Active           bool           `json:"active"`
	EntryMatched     bool           `json:"entry_matched"`
	Applies          bool           `json:"applies"`
	MatchedRule      *workflow.Rule `json:"matched_rule,omitempty"`
	ApprovalRequired bool           `json:"approval_required"`
}

func nonNilConditions(c []workflow.Condition) []workflow.Condition {
	if c == nil {
		return []workflow.Condition{}
	}
	return c
}

func nonNilRules(r []workflow.Rule) []workflow.Rule {
	if r == nil {
		return []workflow.Rule{}
	}
	return r
}

func nonNilActions(a []workflow.Action) []workflow.Action {
	if a == nil {
		return []workflow.Action{}
	}
	return a
}
