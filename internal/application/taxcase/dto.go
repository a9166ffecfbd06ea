package taxcase

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/taxcrm/backend/internal/domain/taxcase"
)

// CaseDTO is the API view of a tax case
type CaseDTO struct {
	ID                uuid.UUID       `json:"id"`
	CaseNumber        string          `json:"case_number"`
	ContactID         *uuid.UUID      `json:"contact_id,omitempty"`
	CorporationID     *uuid.UUID      `json:"corporation_id,omitempty"`
	TaxYear           int             `json:"tax_year"`
	CaseType          string          `json:"case_type"`
	Status            string          `json:"status"`
	Priority          string          `json:"priority"`
	DueDate           *time.Time      `json:"due_date,omitempty"`
	PreparerID        *uuid.UUID      `json:"preparer_id,omitempty"`
	ReviewerID        *uuid.UUID      `json:"reviewer_id,omitempty"`
	Fee               decimal.Decimal `json:"fee"`
	Notes             string          `json:"notes"`
	Overdue           bool            `json:"overdue"`
	FiledAt           *time.Time      `json:"filed_at,omitempty"`
	ClosedAt          *time.Time      `json:"closed_at,omitempty"`
	PendingApprovalID *uuid.UUID      `json:"pending_approval_id,omitempty"`
	CreatedBy         *uuid.UUID      `json:"created_by,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// ToCaseDTO converts a tax case
func ToCaseDTO(tc *taxcase.TaxCase, now time.Time) CaseDTO {
	return CaseDTO{
		ID:            tc.ID,
		CaseNumber:    tc.CaseNumber,
		ContactID:     tc.ContactID,
		CorporationID: tc.CorporationID,
		TaxYear:       tc.TaxYear,
		CaseType:      string(tc.CaseType),
		Status:        string(tc.Status),
		Priority:      string(tc.Priority),
		DueDate:       tc.DueDate,
		PreparerID:    tc.PreparerID,
		ReviewerID:    tc.ReviewerID,
		Fee:           tc.Fee,
		Notes:         tc.Notes,
		Overdue:       tc.IsOverdue(now),
		FiledAt:       tc.FiledAt,
		ClosedAt:      tc.ClosedAt,
		CreatedBy:     tc.CreatedBy,
		CreatedAt:     tc.CreatedAt,
		UpdatedAt:     tc.UpdatedAt,
	}
}

// CaseInput contains input for creating or updating a tax case.
// ContactID and CorporationID are only read on create.
type CaseInput struct {
	ContactID     *uuid.UUID
	CorporationID *uuid.UUID
	TaxYear       int
	CaseType      string
	Priority      string
	DueDate       *time.Time
	Fee           decimal.Decimal
	PreparerID    *uuid.UUID
	ReviewerID    *uuid.UUID
	Notes         string
}
