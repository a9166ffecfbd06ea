package workflow

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/taxcrm/backend/internal/domain/identity"
	"github.com/taxcrm/backend/internal/domain/shared"
)

// ApprovalStatus is the state of an approval request
type ApprovalStatus string

const (
	ApprovalPending   ApprovalStatus = "pending"
	ApprovalApproved  ApprovalStatus = "approved"
	ApprovalRejected  ApprovalStatus = "rejected"
	ApprovalCancelled ApprovalStatus = "cancelled"
)

const ApprovalAggregateType = "approval"

// EventTypeApprovalDecided is published after an approval is approved or rejected
const EventTypeApprovalDecided = "approval.decided"

// ActionResult records the outcome of one executed action
type ActionResult struct {
	Type       ActionType `json:"type"`
	Title      string     `json:"title"`
	Success    bool       `json:"success"`
	Error      string     `json:"error,omitempty"`
	ExecutedAt time.Time  `json:"executed_at"`
}

// Approval is a pending decision on one record raised by a matched definition
type Approval struct {
	shared.TenantAggregateRoot
	DefinitionID   uuid.UUID
	DefinitionName string
	RuleNumber     int
	RuleName       string
	Module         Module
	Trigger        Trigger
	RecordID       uuid.UUID
	Snapshot       map[string]any
	Status         ApprovalStatus
	ApproverRoleID *uuid.UUID
	ApproverUserID *uuid.UUID
	DecidedBy      *uuid.UUID
	DecidedAt      *time.Time
	Comment        string
	Results        []ActionResult
}

// NewApproval opens a pending request for the matched rule
func NewApproval(tenantID uuid.UUID, match *Match, recordID uuid.UUID, snapshot map[string]any, requestedBy uuid.UUID) *Approval {
	a := &Approval{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		DefinitionID:        match.Definition.ID,
		DefinitionName:      match.Definition.Name,
		RuleNumber:          match.Rule.Number,
		RuleName:            match.Rule.Name,
		Module:              match.Definition.Module,
		Trigger:             match.Definition.Trigger,
		RecordID:            recordID,
		Snapshot:            snapshot,
		Status:              ApprovalPending,
		ApproverRoleID:      match.Rule.ApproverRoleID,
		ApproverUserID:      match.Rule.ApproverUserID,
	}
	a.SetCreatedBy(requestedBy)
	a.AddDomainEvent(shared.NewRecordEvent(ApprovalAggregateType, "created", a.ID, tenantID, map[string]any{
		"definition": match.Definition.Name, "rule": match.Rule.Number,
		"module": string(match.Definition.Module), "record_id": recordID.String(),
	}))
	return a
}

// Approver describes the user attempting a decision
type Approver struct {
	UserID      uuid.UUID
	RoleIDs     []uuid.UUID
	Permissions []string
}

// CanDecide reports whether the approver may decide. An explicit user or role on the
// rule restricts the decision to them; otherwise workflow:approve is required.
func (a *Approval) CanDecide(who Approver) bool {
	if a.ApproverUserID != nil && *a.ApproverUserID == who.UserID {
		return true
	}
	if a.ApproverRoleID != nil {
		for _, id := range who.RoleIDs {
			if id == *a.ApproverRoleID {
				return true
			}
		}
	}
	if a.ApproverUserID != nil || a.ApproverRoleID != nil {
		return false
	}
	for _, p := range who.Permissions {
		if p == identity.PermWorkflowApprove {
			return true
		}
	}
	return false
}

// IsPending reports whether the request awaits a decision
func (a *Approval) IsPending() bool {
	return a.Status == ApprovalPending
}

// Approve marks the request approved
func (a *Approval) Approve(who Approver, comment string) error {
	return a.decide(who, ApprovalApproved, comment)
}

// Reject marks the request rejected
func (a *Approval) Reject(who Approver, comment string) error {
	return a.decide(who, ApprovalRejected, comment)
}

// Phase returns the action phase matching the decision
func (a *Approval) Phase() Phase {
	if a.Status == ApprovalRejected {
		return PhaseRejection
	}
	return PhaseApproval
}

func (a *Approval) decide(who Approver, status ApprovalStatus, comment string) error {
	if !a.IsPending() {
		return shared.NewDomainError("APPROVAL_NOT_PENDING", "Approval has already been "+string(a.Status))
	}
	if !a.CanDecide(who) {
		return shared.NewDomainError("NOT_APPROVER", "User is not an approver for this request")
	}
	now := time.Now()
	a.Status = status
	a.DecidedBy = &who.UserID
	a.DecidedAt = &now
	a.Comment = strings.TrimSpace(comment)
	a.IncrementVersion()
	a.AddDomainEvent(shared.NewRecordEvent(ApprovalAggregateType, string(status), a.ID, a.TenantID, map[string]any{
		"record_id": a.RecordID.String(), "comment": a.Comment,
	}))
	a.AddDomainEvent(&DecidedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeApprovalDecided, ApprovalAggregateType, a.ID, a.TenantID),
		Module:          a.Module,
		RecordID:        a.RecordID,
		Outcome:         status,
		Approved:        status == ApprovalApproved,
		DecidedBy:       who.UserID,
	})
	return nil
}

// Cancel withdraws a pending request
func (a *Approval) Cancel() error {
	if !a.IsPending() {
		return shared.NewDomainError("APPROVAL_NOT_PENDING", "Approval has already been "+string(a.Status))
	}
	a.Status = ApprovalCancelled
	a.IncrementVersion()
	a.AddDomainEvent(shared.NewRecordEvent(ApprovalAggregateType, "cancelled", a.ID, a.TenantID, map[string]any{
		"record_id": a.RecordID.String(),
	}))
	a.AddDomainEvent(&DecidedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeApprovalDecided, ApprovalAggregateType, a.ID, a.TenantID),
		Module:          a.Module,
		RecordID:        a.RecordID,
		Outcome:         ApprovalCancelled,
	})
	return nil
}

// RecordResults stores the outcome of the phase actions
func (a *Approval) RecordResults(results []ActionResult) {
	a.Results = append(a.Results, results...)
	a.IncrementVersion()
}

// FailedActions counts unsuccessful action results
func (a *Approval) FailedActions() int {
	n := 0
	for _, r := range a.Results {
		if !r.Success {
			n++
		}
	}
	return n
}

// DecidedEvent carries the outcome (approved, rejected or cancelled) to the module that owns the record
type DecidedEvent struct {
	shared.BaseDomainEvent
	Module    Module         `json:"module"`
	RecordID  uuid.UUID      `json:"record_id"`
	Outcome   ApprovalStatus `json:"outcome"`
	Approved  bool           `json:"approved"`
	DecidedBy uuid.UUID      `json:"decided_by,omitempty"`
}

// NotificationEvent is published by the notify action
type NotificationEvent struct {
	shared.BaseDomainEvent
	Message string         `json:"message"`
	Diff    map[string]any `json:"changes,omitempty"`
}

// EventTypeNotification is the type of NotificationEvent
const EventTypeNotification = "workflow.notification"

// NewNotificationEvent builds a notification for an approval
func NewNotificationEvent(a *Approval, message string) *NotificationEvent {
	return &NotificationEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeNotification, ApprovalAggregateType, a.ID, a.TenantID),
		Message:         message,
		Diff: map[string]any{
			"message": message, "module": string(a.Module), "record_id": a.RecordID.String(), "status": string(a.Status),
		},
	}
}

// Changes exposes the notification payload to the audit trail
func (e *NotificationEvent) Changes() map[string]any {
	return e.Diff
}
