package persistence

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/taxcrm/backend/internal/domain/shared"
	"github.com/taxcrm/backend/internal/domain/taxcase"
)

func TestGormTaxCaseRepository_NextSequence(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGormTaxCaseRepository(db)
	ctx := context.Background()
	tenantID := uuid.New()

	t.Run("counts per year", func(t *testing.T) {
		first, err := repo.NextSequence(ctx, tenantID, 2025)
		require.NoError(t, err)
		second, err := repo.NextSequence(ctx, tenantID, 2025)
		require.NoError(t, err)
		other, err := repo.NextSequence(ctx, tenantID, 2026)
		require.NoError(t, err)

		assert.Equal(t, int64(1), first)
		assert.Equal(t, int64(2), second)
		assert.Equal(t, int64(1), other)
	})

	t.Run("invoices have their own counter", func(t *testing.T) {
		n, err := NewGormInvoiceRepository(db).NextSequence(ctx, tenantID, 2025)
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)
	})

	t.Run("tenants do not share counters", func(t *testing.T) {
		n, err := repo.NextSequence(ctx, uuid.New(), 2025)
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)
	})

	t.Run("concurrent callers get distinct values", func(t *testing.T) {
		tenantID := uuid.New()
		const workers = 8
		var wg sync.WaitGroup
		results := make(chan int64, workers)
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				n, err := repo.NextSequence(ctx, tenantID, 2025)
				if err == nil {
					results <- n
				}
			}()
		}
		wg.Wait()
		close(results)

		seen := make(map[int64]bool)
		for n := range results {
			assert.False(t, seen[n], "duplicate sequence %d", n)
			seen[n] = true
		}
		assert.Len(t, seen, workers)
	})
}

func TestGormTaxCaseRepository_FindDueBetween(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGormTaxCaseRepository(db)
	ctx := context.Background()
	tenantID := uuid.New()
	contactID := uuid.New()
	now := time.Now().UTC().Truncate(24 * time.Hour)

	newCase := func(number string, due time.Time, status taxcase.Status) *taxcase.TaxCase {
		tc, err := taxcase.NewTaxCase(tenantID, number, &contactID, nil, 2025, taxcase.TypeIndividual)
		require.NoError(t, err)
		require.NoError(t, tc.Update(2025, taxcase.TypeIndividual, taxcase.PriorityNormal, &due, decimal.NewFromInt(350), ""))
		tc.Status = status
		require.NoError(t, repo.Save(ctx, tc))
		return tc
	}

	open := newCase("TC-2025-0001", now.AddDate(0, 0, 3), taxcase.StatusInProgress)
	newCase("TC-2025-0002", now.AddDate(0, 0, 4), taxcase.StatusFiled)
	newCase("TC-2025-0003", now.AddDate(0, 1, 0), taxcase.StatusNew)

	list, err := repo.FindDueBetween(ctx, tenantID, now, now.AddDate(0, 0, 7))
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, open.ID, list[0].ID)

	t.Run("status filter and paging", func(t *testing.T) {
		list, total, err := repo.FindAll(ctx, tenantID, shared.Filter{
			Page: 1, PageSize: 1,
			Filters: map[string]interface{}{"contact_id": contactID},
		})
		require.NoError(t, err)
		assert.Equal(t, int64(3), total)
		assert.Len(t, list, 1)
	})

	t.Run("soft delete", func(t *testing.T) {
		require.NoError(t, repo.Delete(ctx, tenantID, open.ID))
		_, err := repo.FindByID(ctx, tenantID, open.ID)
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})
}
