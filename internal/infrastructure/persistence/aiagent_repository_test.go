package persistence

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/taxcrm/backend/internal/domain/aiagent"
	"github.com/taxcrm/backend/internal/domain/shared"
)

func TestGormAgentRepositories(t *testing.T) {
	db := setupTestDB(t)
	configs := NewGormAgentConfigRepository(db)
	runs := NewGormAgentRunRepository(db)
	suggestions := NewGormAgentSuggestionRepository(db)
	ctx := context.Background()
	tenantID := uuid.New()

	t.Run("config defaults to not found", func(t *testing.T) {
		_, err := configs.FindByTenant(ctx, tenantID)
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	t.Run("enabled configs", func(t *testing.T) {
		cfg := aiagent.DefaultConfig(tenantID)
		require.NoError(t, cfg.Update(true, aiagent.ModeSuggest, aiagent.ProviderOpenAI, "gpt-4o-mini", 30, ""))
		require.NoError(t, configs.Save(ctx, cfg))

		off := aiagent.DefaultConfig(uuid.New())
		require.NoError(t, configs.Save(ctx, off))

		enabled, err := configs.FindEnabled(ctx)
		require.NoError(t, err)
		require.Len(t, enabled, 1)
		assert.Equal(t, tenantID, enabled[0].TenantID)
		assert.Equal(t, 30, enabled[0].CycleIntervalMinutes)
	})

	t.Run("suggestions are saved as a batch", func(t *testing.T) {
		run := aiagent.NewRun(tenantID)
		target := uuid.New()
		drafts := []aiagent.Draft{
			{Kind: aiagent.KindFollowUpTask, Title: "Call Jane about missing 1099", TargetType: "contact", TargetID: &target},
			{Kind: aiagent.KindInvoiceReminder, Title: "Remind Acme about INV-2025-0004", Payload: map[string]any{"days_overdue": 12}},
		}
		items := make([]*aiagent.Suggestion, len(drafts))
		for i, d := range drafts {
			s, err := aiagent.NewSuggestion(tenantID, run.ID, d)
			require.NoError(t, err)
			items[i] = s
		}
		run.Finish(len(items), true, nil)
		require.NoError(t, runs.Save(ctx, run))
		require.NoError(t, suggestions.SaveBatch(ctx, items))

		list, total, err := suggestions.FindAll(ctx, tenantID, shared.Filter{
			Page: 1, PageSize: 10,
			Filters: map[string]interface{}{"run_id": run.ID, "status": string(aiagent.SuggestionProposed)},
		})
		require.NoError(t, err)
		assert.Equal(t, int64(2), total)
		assert.Len(t, list, 2)

		found, err := suggestions.FindByID(ctx, tenantID, items[1].ID)
		require.NoError(t, err)
		assert.EqualValues(t, 12, found.Payload["days_overdue"])

		history, _, err := runs.FindAll(ctx, tenantID, shared.Filter{Page: 1, PageSize: 10})
		require.NoError(t, err)
		require.Len(t, history, 1)
		assert.True(t, history[0].UsedFallback)
	})
}
