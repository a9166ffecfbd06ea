//go:build integration

package integration

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/taxcrm/backend/internal/domain/crm"
	"github.com/taxcrm/backend/internal/domain/shared"
	"github.com/taxcrm/backend/internal/domain/taxcase"
	"github.com/taxcrm/backend/internal/infrastructure/persistence"
)

func TestTenantIsolation_Contacts(t *testing.T) {
	skipShort(t)
	tdb := NewTestDB(t)
	ctx := context.Background()

	tenantA, tenantB := uuid.New(), uuid.New()
	tdb.CreateTestTenant(tenantA, "Practice A")
	tdb.CreateTestTenant(tenantB, "Practice B")

	repo := persistence.NewGormContactRepository(tdb.DB)

	alice, err := crm.NewContact(tenantA, "Alice", "Anders", "alice@example.com")
	require.NoError(t, err)
	require.NoError(t, repo.Save(ctx, alice))
	bob, err := crm.NewContact(tenantB, "Bob", "Brown", "bob@example.com")
	require.NoError(t, err)
	require.NoError(t, repo.Save(ctx, bob))

	t.Run("find by id is scoped", func(t *testing.T) {
		found, err := repo.FindByID(ctx, tenantA, alice.ID)
		require.NoError(t, err)
		assert.Equal(t, "Alice", found.FirstName)

		_, err = repo.FindByID(ctx, tenantB, alice.ID)
		assert.True(t, errors.Is(err, shared.ErrNotFound))
	})

	t.Run("list only returns own contacts", func(t *testing.T) {
		contacts, total, err := repo.FindAll(ctx, tenantB, shared.DefaultFilter())
		require.NoError(t, err)
		assert.Equal(t, int64(1), total)
		require.Len(t, contacts, 1)
		assert.Equal(t, bob.ID, contacts[0].ID)
	})

	t.Run("email uniqueness is per tenant", func(t *testing.T) {
		exists, err := repo.ExistsByEmail(ctx, tenantB, "alice@example.com", nil)
		require.NoError(t, err)
		assert.False(t, exists)

		exists, err = repo.ExistsByEmail(ctx, tenantA, "alice@example.com", nil)
		require.NoError(t, err)
		assert.True(t, exists)
	})

	t.Run("delete across tenants is not found", func(t *testing.T) {
		err := repo.Delete(ctx, tenantB, alice.ID)
		assert.True(t, errors.Is(err, shared.ErrNotFound))

		_, err = repo.FindByID(ctx, tenantA, alice.ID)
		assert.NoError(t, err)
	})
}

func TestTenantIsolation_TaxCases(t *testing.T) {
	skipShort(t)
	tdb := NewTestDB(t)
	ctx := context.Background()

	tenantA, tenantB := uuid.New(), uuid.New()
	tdb.CreateTestTenant(tenantA, "Practice A")
	tdb.CreateTestTenant(tenantB, "Practice B")

	contacts := persistence.NewGormContactRepository(tdb.DB)
	cases := persistence.NewGormTaxCaseRepository(tdb.DB)

	client, err := crm.NewContact(tenantA, "Carol", "Chen", "carol@example.com")
	require.NoError(t, err)
	require.NoError(t, contacts.Save(ctx, client))

	seq, err := cases.NextSequence(ctx, tenantA, 2025)
	require.NoError(t, err)
	assert.Equal(t, int64(1), seq)

	tc, err := taxcase.NewTaxCase(tenantA, "TC-2025-0001", &client.ID, nil, 2025, taxcase.TypeIndividual)
	require.NoError(t, err)
	require.NoError(t, cases.Save(ctx, tc))

	found, err := cases.FindByID(ctx, tenantA, tc.ID)
	require.NoError(t, err)
	assert.Equal(t, 2025, found.TaxYear)

	_, err = cases.FindByID(ctx, tenantB, tc.ID)
	assert.True(t, errors.Is(err, shared.ErrNotFound))

	list, total, err := cases.FindAll(ctx, tenantB, shared.DefaultFilter())
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, list)

	// sequences are counted per tenant
	seq, err = cases.NextSequence(ctx, tenantB, 2025)
	require.NoError(t, err)
	assert.Equal(t, int64(1), seq)
	seq, err = cases.NextSequence(ctx, tenantA, 2025)
	require.NoError(t, err)
	assert.Equal(t, int64(2), seq)
}
