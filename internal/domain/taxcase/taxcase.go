package taxcase

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/taxcrm/backend/internal/domain/shared"
)

// Status is the lifecycle state of a tax case
type Status string

const (
	StatusNew             Status = "new"
	StatusInProgress      Status = "in_progress"
	StatusInReview        Status = "in_review"
	StatusPendingApproval Status = "pending_approval"
	StatusApproved        Status = "approved"
	StatusRejected        Status = "rejected"
	StatusFiled           Status = "filed"
	StatusClosed          Status = "closed"
	StatusCancelled       Status = "cancelled"
)

// transitions lists the statuses reachable by a manual status change.
// pending_approval, approved and rejected are entered through the approval workflow.
var transitions = map[Status][]Status{
	StatusNew:             {StatusInProgress, StatusCancelled},
	StatusInProgress:      {StatusInReview, StatusCancelled},
	StatusInReview:        {StatusInProgress, StatusCancelled},
	StatusPendingApproval: {StatusCancelled},
	StatusApproved:        {StatusFiled, StatusInProgress, StatusCancelled},
	StatusRejected:        {StatusInProgress, StatusCancelled},
	StatusFiled:           {StatusClosed},
}

// CaseType is the kind of engagement
type CaseType string

const (
	TypeIndividual  CaseType = "individual_1040"
	TypeCorporate   CaseType = "corporate_1120"
	TypeSCorp       CaseType = "s_corp_1120s"
	TypePartnership CaseType = "partnership_1065"
	TypeNonprofit   CaseType = "nonprofit_990"
	TypeAmendment   CaseType = "amendment"
	TypeAudit       CaseType = "audit"
	TypeOther       CaseType = "other"
)

// IsValid reports whether t is a known case type
func (t CaseType) IsValid() bool {
	switch t {
	case TypeIndividual, TypeCorporate, TypeSCorp, TypePartnership, TypeNonprofit, TypeAmendment, TypeAudit, TypeOther:
		return true
	}
	return false
}

// Priority orders work in the preparer queue
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// IsValid reports whether p is a known priority
func (p Priority) IsValid() bool {
	switch p {
	case PriorityLow, PriorityNormal, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

const AggregateType = "tax_case"

// TaxCase is one engagement (a return, amendment or audit) for a contact or corporation
type TaxCase struct {
	shared.TenantAggregateRoot
	CaseNumber    string
	ContactID     *uuid.UUID
	CorporationID *uuid.UUID
	TaxYear       int
	CaseType      CaseType
	Status        Status
	Priority      Priority
	DueDate       *time.Time
	PreparerID    *uuid.UUID
	ReviewerID    *uuid.UUID
	Fee           decimal.Decimal
	Notes         string
	FiledAt       *time.Time
	ClosedAt      *time.Time
}

// FormatCaseNumber renders TC-<year>-<seq>
func FormatCaseNumber(year int, seq int64) string {
	return fmt.Sprintf("TC-%d-%04d", year, seq)
}

// NewTaxCase creates a case in "new" status. At least one of contact or corporation is required.
func NewTaxCase(tenantID uuid.UUID, number string, contactID, corporationID *uuid.UUID, taxYear int, caseType CaseType) (*TaxCase, error) {
	if contactID == nil && corporationID == nil {
		return nil, shared.NewDomainError("CASE_CLIENT_REQUIRED", "A tax case must reference a contact or a corporation")
	}
	if err := validateTaxYear(taxYear); err != nil {
		return nil, err
	}
	if !caseType.IsValid() {
		return nil, shared.NewDomainError("INVALID_CASE_TYPE", "Unknown case type: "+string(caseType))
	}
	if strings.TrimSpace(number) == "" {
		return nil, shared.NewDomainError("INVALID_CASE_NUMBER", "Case number cannot be empty")
	}
	tc := &TaxCase{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		CaseNumber:          number,
		ContactID:           contactID,
		CorporationID:       corporationID,
		TaxYear:             taxYear,
		CaseType:            caseType,
		Status:              StatusNew,
		Priority:            PriorityNormal,
		Fee:                 decimal.Zero,
	}
	tc.AddDomainEvent(shared.NewRecordEvent(AggregateType, "created", tc.ID, tenantID, map[string]any{
		"case_number": number, "tax_year": taxYear, "case_type": string(caseType),
	}))
	return tc, nil
}

// Update replaces the planning fields
func (tc *TaxCase) Update(taxYear int, caseType CaseType, priority Priority, due *time.Time, fee decimal.Decimal, notes string) error {
	if tc.IsTerminal() {
		return shared.NewDomainError("CASE_CLOSED", "Closed or cancelled cases cannot be edited")
	}
	if err := validateTaxYear(taxYear); err != nil {
		return err
	}
	if !caseType.IsValid() {
		return shared.NewDomainError("INVALID_CASE_TYPE", "Unknown case type: "+string(caseType))
	}
	if !priority.IsValid() {
		return shared.NewDomainError("INVALID_PRIORITY", "Unknown priority: "+string(priority))
	}
	if fee.IsNegative() {
		return shared.NewDomainError("INVALID_FEE", "Fee cannot be negative")
	}
	tc.TaxYear = taxYear
	tc.CaseType = caseType
	tc.Priority = priority
	tc.DueDate = due
	tc.Fee = fee.Round(2)
	tc.Notes = notes
	tc.IncrementVersion()
	tc.AddDomainEvent(shared.NewRecordEvent(AggregateType, "updated", tc.ID, tc.TenantID, map[string]any{
		"priority": string(priority), "fee": tc.Fee.StringFixed(2),
	}))
	return nil
}

// Assign sets preparer and reviewer. The reviewer cannot be the preparer.
func (tc *TaxCase) Assign(preparerID, reviewerID *uuid.UUID) error {
	if preparerID != nil && reviewerID != nil && *preparerID == *reviewerID {
		return shared.NewDomainError("INVALID_ASSIGNMENT", "Reviewer must differ from preparer")
	}
	tc.PreparerID = preparerID
	tc.ReviewerID = reviewerID
	tc.IncrementVersion()
	return nil
}

// CanTransitionTo reports whether a manual status change is allowed
func (tc *TaxCase) CanTransitionTo(next Status) bool {
	for _, s := range transitions[tc.Status] {
		if s == next {
			return true
		}
	}
	return false
}

// ChangeStatus performs a manual status change
func (tc *TaxCase) ChangeStatus(next Status) error {
	if !tc.CanTransitionTo(next) {
		return shared.NewDomainError("INVALID_TRANSITION", fmt.Sprintf("Cannot move case from %s to %s", tc.Status, next))
	}
	tc.setStatus(next)
	return nil
}

// CanSubmit reports whether the case may be submitted for approval
func (tc *TaxCase) CanSubmit() bool {
	return tc.Status == StatusInProgress || tc.Status == StatusInReview
}

// AwaitApproval moves a submitted case into pending_approval
func (tc *TaxCase) AwaitApproval() error {
	if !tc.CanSubmit() {
		return shared.NewDomainError("INVALID_TRANSITION", "Only cases in progress or in review can be submitted")
	}
	tc.setStatus(StatusPendingApproval)
	return nil
}

// Approve is called when the approval completes or no approval is required
func (tc *TaxCase) Approve() error {
	if tc.Status != StatusPendingApproval && !tc.CanSubmit() {
		return shared.NewDomainError("INVALID_TRANSITION", "Case is not awaiting approval")
	}
	tc.setStatus(StatusApproved)
	return nil
}

// Reject is called when an approval is rejected
func (tc *TaxCase) Reject() error {
	if tc.Status != StatusPendingApproval {
		return shared.NewDomainError("INVALID_TRANSITION", "Case is not awaiting approval")
	}
	tc.setStatus(StatusRejected)
	return nil
}

// Withdraw returns a case to in_progress when its approval request is cancelled
func (tc *TaxCase) Withdraw() error {
	if tc.Status != StatusPendingApproval {
		return shared.NewDomainError("INVALID_TRANSITION", "Case is not awaiting approval")
	}
	tc.setStatus(StatusInProgress)
	return nil
}

// ApplyField sets a single field by name. Used by workflow update_field actions.
func (tc *TaxCase) ApplyField(field, value string) error {
	switch field {
	case "priority":
		p := Priority(strings.ToLower(value))
		if !p.IsValid() {
			return shared.NewDomainError("INVALID_PRIORITY", "Unknown priority: "+value)
		}
		tc.Priority = p
	case "notes":
		tc.Notes = value
	case "fee":
		d, err := decimal.NewFromString(value)
		if err != nil || d.IsNegative() {
			return shared.NewDomainError("INVALID_FEE", "Fee must be a non-negative number")
		}
		tc.Fee = d.Round(2)
	case "reviewer_id", "preparer_id":
		id, err := uuid.Parse(value)
		if err != nil {
			return shared.NewDomainError("INVALID_INPUT", field+" must be a UUID")
		}
		if field == "reviewer_id" {
			tc.ReviewerID = &id
		} else {
			tc.PreparerID = &id
		}
	case "status":
		return tc.ChangeStatus(Status(value))
	default:
		return shared.NewDomainError("UNSUPPORTED_FIELD", "Field cannot be updated by workflow: "+field)
	}
	tc.IncrementVersion()
	tc.AddDomainEvent(shared.NewRecordEvent(AggregateType, "updated", tc.ID, tc.TenantID, map[string]any{field: value}))
	return nil
}

// IsTerminal reports closed or cancelled
func (tc *TaxCase) IsTerminal() bool {
	return tc.Status == StatusClosed || tc.Status == StatusCancelled
}

// IsOverdue reports whether an open case is past its due date
func (tc *TaxCase) IsOverdue(now time.Time) bool {
	if tc.DueDate == nil || tc.IsTerminal() || tc.Status == StatusFiled {
		return false
	}
	return tc.DueDate.Before(now)
}

// Snapshot flattens the case for rule evaluation
func (tc *TaxCase) Snapshot() map[string]any {
	snap := map[string]any{
		"id":          tc.ID.String(),
		"case_number": tc.CaseNumber,
		"tax_year":    tc.TaxYear,
		"case_type":   string(tc.CaseType),
		"status":      string(tc.Status),
		"priority":    string(tc.Priority),
		"fee":         tc.Fee.StringFixed(2),
		"notes":       tc.Notes,
	}
	putID(snap, "contact_id", tc.ContactID)
	putID(snap, "corporation_id", tc.CorporationID)
	putID(snap, "preparer_id", tc.PreparerID)
	putID(snap, "reviewer_id", tc.ReviewerID)
	if tc.DueDate != nil {
		snap["due_date"] = tc.DueDate.Format("2006-01-02")
	}
	return snap
}

func (tc *TaxCase) setStatus(next Status) {
	old := tc.Status
	tc.Status = next
	now := time.Now()
	switch next {
	case StatusFiled:
		tc.FiledAt = &now
	case StatusClosed, StatusCancelled:
		tc.ClosedAt = &now
	}
	tc.IncrementVersion()
	tc.AddDomainEvent(shared.NewRecordEvent(AggregateType, "status_changed", tc.ID, tc.TenantID, map[string]any{
		"status": []string{string(old), string(next)},
	}))
}

func validateTaxYear(year int) error {
	if year < 1990 || year > time.Now().Year()+1 {
		return shared.NewDomainError("INVALID_TAX_YEAR", fmt.Sprintf("Tax year %d is out of range", year))
	}
	return nil
}

func putID(m map[string]any, key string, id *uuid.UUID) {
	if id != nil {
		m[key] = id.String()
	}
}
