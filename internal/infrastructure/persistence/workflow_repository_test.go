package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/taxcrm/backend/internal/domain/shared"
	"github.com/taxcrm/backend/internal/domain/workflow"
)

func TestGormApprovalDefinitionRepository_FindActive(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGormApprovalDefinitionRepository(db)
	ctx := context.Background()
	tenantID := uuid.New()

	first, err := workflow.NewDefinition(tenantID, "Large refunds", workflow.ModuleTaxCase, workflow.TriggerOnSave)
	require.NoError(t, err)
	first.CreatedAt = time.Now().Add(-time.Hour)
	require.NoError(t, first.SetCriteria([]workflow.Condition{{Field: "status", Operator: workflow.OpEquals, Value: "in_review"}}, nil))
	require.NoError(t, first.SetRules([]workflow.Rule{{Number: 1, Name: "Partner sign-off"}}))
	require.NoError(t, first.SetActions(workflow.PhaseApproval, []workflow.Action{
		{Type: workflow.ActionUpdateField, Title: "Mark approved", Active: true, Config: map[string]string{"field": "status", "value": "approved"}},
	}))
	require.NoError(t, repo.Save(ctx, first))

	second, err := workflow.NewDefinition(tenantID, "Everything else", workflow.ModuleTaxCase, workflow.TriggerOnSave)
	require.NoError(t, err)
	require.NoError(t, repo.Save(ctx, second))

	inactive, err := workflow.NewDefinition(tenantID, "Disabled", workflow.ModuleTaxCase, workflow.TriggerOnSave)
	require.NoError(t, err)
	inactive.Deactivate()
	require.NoError(t, repo.Save(ctx, inactive))

	other, err := workflow.NewDefinition(tenantID, "Invoices", workflow.ModuleInvoice, workflow.TriggerOnSave)
	require.NoError(t, err)
	require.NoError(t, repo.Save(ctx, other))

	defs, err := repo.FindActive(ctx, tenantID, workflow.ModuleTaxCase, workflow.TriggerOnSave)
	require.NoError(t, err)
	require.Len(t, defs, 2)
	assert.Equal(t, first.ID, defs[0].ID)
	assert.Equal(t, second.ID, defs[1].ID)

	t.Run("rules and actions survive storage", func(t *testing.T) {
		found, err := repo.FindByID(ctx, tenantID, first.ID)
		require.NoError(t, err)
		require.Len(t, found.Rules, 1)
		assert.Equal(t, "Partner sign-off", found.Rules[0].Name)
		require.Len(t, found.MatchAll, 1)
		assert.Equal(t, workflow.OpEquals, found.MatchAll[0].Operator)
		require.Len(t, found.Actions(workflow.PhaseApproval), 1)
		assert.Equal(t, "approved", found.ApprovalActions[0].Config["value"])
	})
}

func TestGormApprovalRepository_Inbox(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGormApprovalRepository(db)
	ctx := context.Background()
	tenantID := uuid.New()
	requester := uuid.New()
	partnerRole := uuid.New()
	reviewer := uuid.New()

	def, err := workflow.NewDefinition(tenantID, "Review", workflow.ModuleTaxCase, workflow.TriggerOnSave)
	require.NoError(t, err)

	open := func(rule workflow.Rule) *workflow.Approval {
		a := workflow.NewApproval(tenantID, &workflow.Match{Definition: def, Rule: rule}, uuid.New(), map[string]any{"status": "in_review"}, requester)
		require.NoError(t, repo.Save(ctx, a))
		return a
	}
	toRole := open(workflow.Rule{Number: 1, ApproverRoleID: &partnerRole})
	toUser := open(workflow.Rule{Number: 2, ApproverUserID: &reviewer})
	toAnyone := open(workflow.Rule{Number: 3})

	ids := func(list []workflow.Approval) []uuid.UUID {
		out := make([]uuid.UUID, len(list))
		for i := range list {
			out[i] = list[i].ID
		}
		return out
	}

	t.Run("role holder", func(t *testing.T) {
		list, total, err := repo.FindAll(ctx, tenantID, shared.Filter{
			Page: 1, PageSize: 10,
			Filters: map[string]interface{}{"approver_user_id": uuid.New(), "approver_role_ids": []uuid.UUID{partnerRole}},
		})
		require.NoError(t, err)
		assert.Equal(t, int64(2), total)
		assert.ElementsMatch(t, []uuid.UUID{toRole.ID, toAnyone.ID}, ids(list))
	})

	t.Run("assigned only excludes unaddressed requests", func(t *testing.T) {
		list, _, err := repo.FindAll(ctx, tenantID, shared.Filter{
			Page: 1, PageSize: 10,
			Filters: map[string]interface{}{"approver_user_id": uuid.New(), "approver_role_ids": []uuid.UUID{partnerRole}, "assigned_only": true},
		})
		require.NoError(t, err)
		assert.Equal(t, []uuid.UUID{toRole.ID}, ids(list))
	})

	t.Run("named approver", func(t *testing.T) {
		list, _, err := repo.FindAll(ctx, tenantID, shared.Filter{
			Page: 1, PageSize: 10,
			Filters: map[string]interface{}{"approver_user_id": reviewer},
		})
		require.NoError(t, err)
		assert.ElementsMatch(t, []uuid.UUID{toUser.ID, toAnyone.ID}, ids(list))
	})

	t.Run("status filter combines with inbox", func(t *testing.T) {
		who := workflow.Approver{UserID: reviewer}
		require.NoError(t, toUser.Approve(who, "ok"))
		require.NoError(t, repo.Save(ctx, toUser))

		list, _, err := repo.FindAll(ctx, tenantID, shared.Filter{
			Page: 1, PageSize: 10,
			Filters: map[string]interface{}{"approver_user_id": reviewer, "status": workflow.ApprovalPending},
		})
		require.NoError(t, err)
		assert.Equal(t, []uuid.UUID{toAnyone.ID}, ids(list))
	})

	t.Run("pending for record", func(t *testing.T) {
		found, err := repo.FindPendingForRecord(ctx, tenantID, workflow.ModuleTaxCase, workflow.TriggerOnSave, toRole.RecordID)
		require.NoError(t, err)
		assert.Equal(t, toRole.ID, found.ID)
		assert.Equal(t, workflow.TriggerOnSave, found.Trigger)

		_, err = repo.FindPendingForRecord(ctx, tenantID, workflow.ModuleTaxCase, workflow.TriggerViaProcess, toRole.RecordID)
		assert.ErrorIs(t, err, shared.ErrNotFound, "an on_save request does not answer a via_process lookup")

		_, err = repo.FindPendingForRecord(ctx, tenantID, workflow.ModuleTaxCase, workflow.TriggerOnSave, toUser.RecordID)
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	t.Run("snapshot round-trips", func(t *testing.T) {
		found, err := repo.FindByID(ctx, tenantID, toAnyone.ID)
		require.NoError(t, err)
		assert.Equal(t, "in_review", found.Snapshot["status"])
		require.NotNil(t, found.CreatedBy)
		assert.Equal(t, requester, *found.CreatedBy)
	})
}

func TestGormApprovalRepository_ConcurrentDecision(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGormApprovalRepository(db)
	ctx := context.Background()
	tenantID := uuid.New()
	who := workflow.Approver{UserID: uuid.New(), Permissions: []string{"workflow:approve"}}

	def, err := workflow.NewDefinition(tenantID, "Engagement review", workflow.ModuleTaxCase, workflow.TriggerViaProcess)
	require.NoError(t, err)
	a := workflow.NewApproval(tenantID, &workflow.Match{Definition: def, Rule: workflow.Rule{Number: 1}}, uuid.New(), nil, uuid.New())
	require.NoError(t, repo.Save(ctx, a))

	approving, err := repo.FindByID(ctx, tenantID, a.ID)
	require.NoError(t, err)
	rejecting, err := repo.FindByID(ctx, tenantID, a.ID)
	require.NoError(t, err)

	require.NoError(t, approving.Approve(who, "fine"))
	require.NoError(t, rejecting.Reject(who, "missing K-1"))

	require.NoError(t, repo.Save(ctx, approving))
	assert.ErrorIs(t, repo.Save(ctx, rejecting), shared.ErrConcurrencyConflict)

	stored, err := repo.FindByID(ctx, tenantID, a.ID)
	require.NoError(t, err)
	assert.Equal(t, workflow.ApprovalApproved, stored.Status)
	assert.Equal(t, "fine", stored.Comment)
	assert.Equal(t, workflow.TriggerViaProcess, stored.Trigger)
}
