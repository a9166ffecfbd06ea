package crm

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	workflowapp "github.com/taxcrm/backend/internal/application/workflow"
	"github.com/taxcrm/backend/internal/domain/crm"
	"github.com/taxcrm/backend/internal/domain/shared"
	"github.com/taxcrm/backend/internal/domain/workflow"
	"go.uber.org/zap"
)

func newContactService(gate workflowapp.Gate) (*ContactService, *MockContactRepository, *MockCorporationRepository) {
	contacts := new(MockContactRepository)
	corps := new(MockCorporationRepository)
	return NewContactService(contacts, corps, prefixCipher{}, gate, nil, zap.NewNop()), contacts, corps
}

func TestContactService_Create(t *testing.T) {
	ctx := context.Background()
	tenantID, userID := uuid.New(), uuid.New()

	t.Run("seals the SSN and returns it masked", func(t *testing.T) {
		svc, contacts, _ := newContactService(nil)
		contacts.On("ExistsByEmail", ctx, tenantID, "jane@example.com", (*uuid.UUID)(nil)).Return(false, nil)
		var saved *crm.Contact
		contacts.On("Save", ctx, mock.AnythingOfType("*crm.Contact")).
			Run(func(args mock.Arguments) { saved = args.Get(1).(*crm.Contact) }).
			Return(nil)

		ssn := "123-45-6789"
		dto, err := svc.Create(ctx, tenantID, userID, ContactInput{
			FirstName: "jane", LastName: "doe", Email: "Jane@Example.com", SSN: &ssn,
			Address: AddressInput{City: "Austin", State: "tx"},
		})
		require.NoError(t, err)
		assert.Equal(t, "***-**-6789", dto.SSN)
		assert.Equal(t, "TX", dto.Address.State)
		assert.Equal(t, "enc:123456789", saved.SSN.Ciphertext)
		require.NotNil(t, saved.CreatedBy)
		assert.Equal(t, userID, *saved.CreatedBy)
		assert.Nil(t, dto.PendingApprovalID)
	})

	t.Run("rejects a malformed SSN", func(t *testing.T) {
		svc, contacts, _ := newContactService(nil)
		contacts.On("ExistsByEmail", ctx, tenantID, "", (*uuid.UUID)(nil)).Return(false, nil).Maybe()
		ssn := "12345"
		_, err := svc.Create(ctx, tenantID, userID, ContactInput{FirstName: "Jane", LastName: "Doe", SSN: &ssn})
		var derr *shared.DomainError
		require.ErrorAs(t, err, &derr)
		assert.Equal(t, "INVALID_SSN", derr.Code)
		contacts.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
	})

	t.Run("rejects a duplicate email", func(t *testing.T) {
		svc, contacts, _ := newContactService(nil)
		contacts.On("ExistsByEmail", ctx, tenantID, "jane@example.com", (*uuid.UUID)(nil)).Return(true, nil)
		_, err := svc.Create(ctx, tenantID, userID, ContactInput{FirstName: "Jane", LastName: "Doe", Email: "jane@example.com"})
		var derr *shared.DomainError
		require.ErrorAs(t, err, &derr)
		assert.Equal(t, "CONTACT_EMAIL_EXISTS", derr.Code)
	})

	t.Run("reports the pending approval raised on save", func(t *testing.T) {
		gate := new(MockApprovalGate)
		svc, contacts, _ := newContactService(gate)
		contacts.On("ExistsByEmail", ctx, tenantID, mock.Anything, mock.Anything).Return(false, nil)
		contacts.On("Save", ctx, mock.Anything).Return(nil)
		approval := &workflow.Approval{}
		approval.ID = uuid.New()
		gate.On("Run", ctx, mock.MatchedBy(func(sub workflowapp.Submission) bool {
			return sub.Module == workflow.ModuleContact && sub.Trigger == workflow.TriggerOnSave &&
				sub.RequestedBy == userID && sub.Snapshot["last_name"] == "Doe"
		})).Return(approval, nil)

		dto, err := svc.Create(ctx, tenantID, userID, ContactInput{FirstName: "Jane", LastName: "Doe", Email: "j@example.com"})
		require.NoError(t, err)
		require.NotNil(t, dto.PendingApprovalID)
		assert.Equal(t, approval.ID, *dto.PendingApprovalID)
	})

	t.Run("gate failures do not fail the save", func(t *testing.T) {
		gate := new(MockApprovalGate)
		svc, contacts, _ := newContactService(gate)
		contacts.On("ExistsByEmail", ctx, tenantID, mock.Anything, mock.Anything).Return(false, nil)
		contacts.On("Save", ctx, mock.Anything).Return(nil)
		gate.On("Run", ctx, mock.Anything).Return(nil, errors.New("db down"))

		dto, err := svc.Create(ctx, tenantID, userID, ContactInput{FirstName: "Jane", LastName: "Doe", Email: "j@example.com"})
		require.NoError(t, err)
		assert.Nil(t, dto.PendingApprovalID)
	})
}

func TestContactService_Corporations(t *testing.T) {
	ctx := context.Background()
	tenantID, userID := uuid.New(), uuid.New()
	svc, contacts, corps := newContactService(nil)

	contact, err := crm.NewContact(tenantID, "Jane", "Doe", "jane@example.com")
	require.NoError(t, err)
	corp, err := crm.NewCorporation(tenantID, "Acme LLC", crm.EntityTypeLLC)
	require.NoError(t, err)

	contacts.On("FindByID", ctx, tenantID, contact.ID).Return(contact, nil)
	corps.On("FindByID", ctx, tenantID, corp.ID).Return(corp, nil)
	contacts.On("Save", ctx, contact).Return(nil)

	dto, err := svc.LinkCorporation(ctx, tenantID, userID, contact.ID, corp.ID)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{corp.ID}, dto.CorporationIDs)

	dto, err = svc.SetPrimaryCorporation(ctx, tenantID, userID, contact.ID, &corp.ID)
	require.NoError(t, err)
	require.NotNil(t, dto.PrimaryCorporationID)

	dto, err = svc.UnlinkCorporation(ctx, tenantID, userID, contact.ID, corp.ID)
	require.NoError(t, err)
	assert.Empty(t, dto.CorporationIDs)
	assert.Nil(t, dto.PrimaryCorporationID, "removing the primary corporation clears it")

	_, err = svc.UnlinkCorporation(ctx, tenantID, userID, contact.ID, corp.ID)
	var derr *shared.DomainError
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, "CORPORATION_NOT_LINKED", derr.Code)

	out, err := svc.Corporations(ctx, tenantID, contact.ID)
	require.NoError(t, err)
	assert.Empty(t, out)
	corps.AssertNotCalled(t, "FindByIDs", mock.Anything, mock.Anything, mock.Anything)
}

func TestContactService_RecordActivityIgnoresMissing(t *testing.T) {
	ctx := context.Background()
	tenantID, id := uuid.New(), uuid.New()
	svc, contacts, _ := newContactService(nil)
	contacts.On("FindByID", ctx, tenantID, id).Return(nil, shared.ErrNotFound)

	assert.NoError(t, svc.RecordActivity(ctx, tenantID, id, time.Now()))
	contacts.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

func TestContactService_Export(t *testing.T) {
	ctx := context.Background()
	tenantID := uuid.New()
	svc, contacts, _ := newContactService(nil)

	contact, err := crm.NewContact(tenantID, "Jane", "Doe", "jane@example.com")
	require.NoError(t, err)
	contact.SetSSN(crm.SensitiveValue{Ciphertext: "x", Last4: "6789"})
	contacts.On("FindAll", ctx, tenantID, mock.MatchedBy(func(f shared.Filter) bool {
		return f.Page == 1 && f.Filters["status"] == "lead"
	})).Return([]crm.Contact{*contact}, int64(1), nil)

	var buf bytes.Buffer
	err = svc.Export(ctx, tenantID, shared.Filter{Filters: map[string]interface{}{"status": "lead"}}, &buf)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(strings.TrimPrefix(buf.String(), "\ufeff")), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "ID,First Name,Last Name,Email"))
	assert.Contains(t, lines[1], "***-**-6789")
	assert.NotContains(t, buf.String(), "123456789")
}
