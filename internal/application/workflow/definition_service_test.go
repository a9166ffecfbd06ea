package workflow

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/taxcrm/backend/internal/domain/shared"
	"github.com/taxcrm/backend/internal/domain/workflow"
	"github.com/taxcrm/backend/internal/infrastructure/cache"
	"go.uber.org/zap"
)

func TestDefinitionService_CreateInvalidatesCache(t *testing.T) {
	ctx := context.Background()
	tenantID := uuid.New()
	repo := new(MockDefinitionRepository)
	c, err := cache.NewDefinitionCache(8)
	require.NoError(t, err)
	c.Put(tenantID, workflow.ModuleInvoice, workflow.TriggerOnSave, nil)
	require.Equal(t, 1, c.Len())

	svc := NewDefinitionService(repo, c, nil, zap.NewNop())
	repo.On("Save", ctx, mock.AnythingOfType("*workflow.Definition")).Return(nil)

	inactive := false
	dto, err := svc.Create(ctx, tenantID, uuid.New(), DefinitionInput{
		Name:    "Write-off review",
		Module:  "invoice",
		Trigger: "on_save",
		Active:  &inactive,
		MatchAll: []workflow.Condition{
			{Field: "total", Operator: workflow.OpGreaterThan, Value: "1000"},
		},
		Rules: []workflow.Rule{{Number: 20, Name: "Manager"}, {Number: 10, Name: "Partner"}},
		ApprovalActions: []workflow.Action{
			{Type: workflow.ActionNotify, Title: "Notify", Active: true},
		},
	})
	require.NoError(t, err)
	assert.False(t, dto.Active)
	assert.Equal(t, 10, dto.Rules[0].Number, "rules are stored by number")
	assert.Empty(t, dto.RejectionActions)
	assert.Zero(t, c.Len())
}

func TestDefinitionService_Validation(t *testing.T) {
	ctx := context.Background()
	svc := NewDefinitionService(new(MockDefinitionRepository), nil, nil, zap.NewNop())

	_, err := svc.Create(ctx, uuid.New(), uuid.New(), DefinitionInput{
		Name: "Bad", Module: "tax_case", Trigger: "on_save",
		Rules: []workflow.Rule{{Number: 1}, {Number: 1}},
	})
	var derr *shared.DomainError
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, "DUPLICATE_RULE_NUMBER", derr.Code)

	_, err = svc.Create(ctx, uuid.New(), uuid.New(), DefinitionInput{
		Name: "Bad", Module: "tax_case", Trigger: "on_save",
		ApprovalActions: []workflow.Action{{Type: workflow.ActionSendEmail, Active: true}},
	})
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, "INVALID_ACTION", derr.Code)
}

func TestDefinitionService_UpdateKeepsModule(t *testing.T) {
	ctx := context.Background()
	tenantID := uuid.New()
	repo := new(MockDefinitionRepository)
	svc := NewDefinitionService(repo, nil, nil, zap.NewNop())
	def, err := workflow.NewDefinition(tenantID, "Review", workflow.ModuleTaxCase, workflow.TriggerOnSave)
	require.NoError(t, err)
	repo.On("FindByID", ctx, tenantID, def.ID).Return(def, nil)
	repo.On("Save", ctx, def).Return(nil)

	_, err = svc.Update(ctx, tenantID, def.ID, DefinitionInput{Name: "Review", Module: "invoice"})
	var derr *shared.DomainError
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, "MODULE_IMMUTABLE", derr.Code)

	dto, err := svc.Update(ctx, tenantID, def.ID, DefinitionInput{Name: "Review v2", Trigger: "via_process"})
	require.NoError(t, err)
	assert.Equal(t, "via_process", dto.Trigger)
	assert.Equal(t, "tax_case", dto.Module)
}

func TestDefinitionService_TestEvaluate(t *testing.T) {
	ctx := context.Background()
	tenantID := uuid.New()
	repo := new(MockDefinitionRepository)
	svc := NewDefinitionService(repo, nil, nil, zap.NewNop())

	def, err := workflow.NewDefinition(tenantID, "Amendments", workflow.ModuleTaxCase, workflow.TriggerViaProcess)
	require.NoError(t, err)
	require.NoError(t, def.SetCriteria(nil, []workflow.Condition{
		{Field: "case_type", Operator: workflow.OpEquals, Value: "amendment"},
		{Field: "case_type", Operator: workflow.OpEquals, Value: "audit"},
	}))
	require.NoError(t, def.SetRules([]workflow.Rule{
		{Number: 1, Name: "Urgent", Conditions: []workflow.Condition{{Field: "priority", Operator: workflow.OpEquals, Value: "urgent"}}},
	}))
	repo.On("FindByID", ctx, tenantID, def.ID).Return(def, nil)

	res, err := svc.TestEvaluate(ctx, tenantID, def.ID, map[string]any{"case_type": "AUDIT", "priority": "urgent"})
	require.NoError(t, err)
	assert.True(t, res.EntryMatched)
	assert.True(t, res.ApprovalRequired)
	require.NotNil(t, res.MatchedRule)
	assert.Equal(t, "Urgent", res.MatchedRule.Name)

	res, err = svc.TestEvaluate(ctx, tenantID, def.ID, map[string]any{"case_type": "audit", "priority": "low"})
	require.NoError(t, err)
	assert.True(t, res.EntryMatched)
	assert.False(t, res.ApprovalRequired, "no matching rule means no approval")

	res, err = svc.TestEvaluate(ctx, tenantID, def.ID, map[string]any{"case_type": "individual_1040"})
	require.NoError(t, err)
	assert.False(t, res.EntryMatched)
}
