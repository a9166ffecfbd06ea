package taxcase

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	workflowapp "github.com/taxcrm/backend/internal/application/workflow"
	"github.com/taxcrm/backend/internal/domain/crm"
	"github.com/taxcrm/backend/internal/domain/shared"
	"github.com/taxcrm/backend/internal/domain/taxcase"
	"github.com/taxcrm/backend/internal/domain/workflow"
	"go.uber.org/zap"
)

var fixedNow = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

func newTestService(repo *MockCaseRepository, contacts crm.ContactRepository, gate workflowapp.Gate) *Service {
	svc := NewService(repo, contacts, nil, gate, nil, zap.NewNop())
	svc.now = func() time.Time { return fixedNow }
	return svc
}

func inProgressCase(t *testing.T, tenantID uuid.UUID) *taxcase.TaxCase {
	t.Helper()
	contactID := uuid.New()
	tc, err := taxcase.NewTaxCase(tenantID, "TC-2025-0001", &contactID, nil, 2024, taxcase.TypeIndividual)
	require.NoError(t, err)
	require.NoError(t, tc.ChangeStatus(taxcase.StatusInProgress))
	return tc
}

func TestService_Create(t *testing.T) {
	ctx := context.Background()
	tenantID, userID := uuid.New(), uuid.New()
	contact, err := crm.NewContact(tenantID, "Jane", "Doe", "")
	require.NoError(t, err)

	repo := new(MockCaseRepository)
	svc := newTestService(repo, stubContacts{known: map[uuid.UUID]*crm.Contact{contact.ID: contact}}, nil)
	repo.On("NextSequence", ctx, tenantID, 2025).Return(int64(7), nil)
	repo.On("Save", ctx, mock.AnythingOfType("*taxcase.TaxCase")).Return(nil)

	due := time.Date(2025, 4, 15, 0, 0, 0, 0, time.UTC)
	dto, err := svc.Create(ctx, tenantID, userID, CaseInput{
		ContactID: &contact.ID,
		TaxYear:   2024,
		CaseType:  "individual_1040",
		DueDate:   &due,
		Fee:       decimal.RequireFromString("450.005"),
	})
	require.NoError(t, err)
	assert.Equal(t, "TC-2025-0007", dto.CaseNumber)
	assert.Equal(t, "new", dto.Status)
	assert.Equal(t, "normal", dto.Priority)
	assert.Equal(t, "450.01", dto.Fee.StringFixed(2))
	assert.False(t, dto.Overdue)

	t.Run("unknown contact", func(t *testing.T) {
		missing := uuid.New()
		_, err := svc.Create(ctx, tenantID, userID, CaseInput{ContactID: &missing, TaxYear: 2024, CaseType: "audit"})
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	t.Run("client required", func(t *testing.T) {
		_, err := svc.Create(ctx, tenantID, userID, CaseInput{TaxYear: 2024, CaseType: "audit"})
		var derr *shared.DomainError
		require.ErrorAs(t, err, &derr)
		assert.Equal(t, "CASE_CLIENT_REQUIRED", derr.Code)
	})
}

func TestService_Submit(t *testing.T) {
	ctx := context.Background()
	tenantID, userID := uuid.New(), uuid.New()

	t.Run("matching definition holds the case for approval", func(t *testing.T) {
		repo := new(MockCaseRepository)
		gate := new(MockGate)
		svc := newTestService(repo, stubContacts{}, gate)
		tc := inProgressCase(t, tenantID)
		approval := &workflow.Approval{}
		approval.ID = uuid.New()

		repo.On("FindByID", ctx, tenantID, tc.ID).Return(tc, nil)
		repo.On("Save", ctx, tc).Return(nil)
		gate.On("Run", ctx, mock.MatchedBy(func(sub workflowapp.Submission) bool {
			return sub.Trigger == workflow.TriggerViaProcess && sub.Module == workflow.ModuleTaxCase &&
				sub.Snapshot["case_type"] == "individual_1040"
		})).Return(approval, nil)

		dto, err := svc.Submit(ctx, tenantID, userID, tc.ID)
		require.NoError(t, err)
		assert.Equal(t, "pending_approval", dto.Status)
		require.NotNil(t, dto.PendingApprovalID)
		assert.Equal(t, approval.ID, *dto.PendingApprovalID)
	})

	t.Run("no matching definition approves directly", func(t *testing.T) {
		repo := new(MockCaseRepository)
		gate := new(MockGate)
		svc := newTestService(repo, stubContacts{}, gate)
		tc := inProgressCase(t, tenantID)

		repo.On("FindByID", ctx, tenantID, tc.ID).Return(tc, nil)
		repo.On("Save", ctx, tc).Return(nil)
		gate.On("Run", ctx, mock.Anything).Return(nil, nil)

		dto, err := svc.Submit(ctx, tenantID, userID, tc.ID)
		require.NoError(t, err)
		assert.Equal(t, "approved", dto.Status)
		assert.Nil(t, dto.PendingApprovalID)
	})

	t.Run("new cases cannot be submitted", func(t *testing.T) {
		repo := new(MockCaseRepository)
		svc := newTestService(repo, stubContacts{}, nil)
		contactID := uuid.New()
		tc, err := taxcase.NewTaxCase(tenantID, "TC-2025-0002", &contactID, nil, 2024, taxcase.TypeAudit)
		require.NoError(t, err)
		repo.On("FindByID", ctx, tenantID, tc.ID).Return(tc, nil)

		_, err = svc.Submit(ctx, tenantID, userID, tc.ID)
		var derr *shared.DomainError
		require.ErrorAs(t, err, &derr)
		assert.Equal(t, "INVALID_TRANSITION", derr.Code)
		repo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
	})
}

func TestApprovalDecidedHandler(t *testing.T) {
	ctx := context.Background()
	tenantID := uuid.New()

	cases := []struct {
		outcome workflow.ApprovalStatus
		want    taxcase.Status
	}{
		{workflow.ApprovalApproved, taxcase.StatusApproved},
		{workflow.ApprovalRejected, taxcase.StatusRejected},
		{workflow.ApprovalCancelled, taxcase.StatusInProgress},
	}
	for _, tt := range cases {
		t.Run(string(tt.outcome), func(t *testing.T) {
			repo := new(MockCaseRepository)
			h := NewApprovalDecidedHandler(repo, nil, zap.NewNop())
			tc := inProgressCase(t, tenantID)
			require.NoError(t, tc.AwaitApproval())
			repo.On("FindByID", ctx, tenantID, tc.ID).Return(tc, nil)
			repo.On("Save", ctx, tc).Return(nil)

			err := h.Handle(ctx, &workflow.DecidedEvent{
				BaseDomainEvent: shared.NewBaseDomainEvent(workflow.EventTypeApprovalDecided, workflow.ApprovalAggregateType, uuid.New(), tenantID),
				Module:          workflow.ModuleTaxCase,
				RecordID:        tc.ID,
				Outcome:         tt.outcome,
			})
			require.NoError(t, err)
			assert.Equal(t, tt.want, tc.Status)
		})
	}

	t.Run("other modules are ignored", func(t *testing.T) {
		repo := new(MockCaseRepository)
		h := NewApprovalDecidedHandler(repo, nil, zap.NewNop())
		err := h.Handle(ctx, &workflow.DecidedEvent{
			BaseDomainEvent: shared.NewBaseDomainEvent(workflow.EventTypeApprovalDecided, workflow.ApprovalAggregateType, uuid.New(), tenantID),
			Module:          workflow.ModuleInvoice,
			RecordID:        uuid.New(),
			Outcome:         workflow.ApprovalApproved,
		})
		require.NoError(t, err)
		repo.AssertNotCalled(t, "FindByID", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("cases cancelled meanwhile are left alone", func(t *testing.T) {
		repo := new(MockCaseRepository)
		h := NewApprovalDecidedHandler(repo, nil, zap.NewNop())
		tc := inProgressCase(t, tenantID)
		require.NoError(t, tc.ChangeStatus(taxcase.StatusCancelled))
		repo.On("FindByID", ctx, tenantID, tc.ID).Return(tc, nil)

		err := h.Handle(ctx, &workflow.DecidedEvent{
			BaseDomainEvent: shared.NewBaseDomainEvent(workflow.EventTypeApprovalDecided, workflow.ApprovalAggregateType, uuid.New(), tenantID),
			Module:          workflow.ModuleTaxCase,
			RecordID:        tc.ID,
			Outcome:         workflow.ApprovalApproved,
		})
		require.NoError(t, err)
		assert.Equal(t, taxcase.StatusCancelled, tc.Status)
		repo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
	})
}
