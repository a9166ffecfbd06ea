package persistence

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/taxcrm/backend/internal/domain/document"
	"github.com/taxcrm/backend/internal/domain/shared"
)

func TestGormFolderRepository(t *testing.T) {
	db := setupTestDB(t)
	folders := NewGormFolderRepository(db)
	docs := NewGormDocumentRepository(db)
	ctx := context.Background()
	tenantID := uuid.New()
	departmentID := uuid.New()
	owner := document.ContactOwner(uuid.New())

	root, err := document.NewDepartmentClientFolder(tenantID, departmentID, "Tax", owner)
	require.NoError(t, err)
	require.NoError(t, folders.Save(ctx, root))

	plain, err := document.NewFolder(tenantID, "Receipts", owner, nil)
	require.NoError(t, err)
	require.NoError(t, folders.Save(ctx, plain))

	t.Run("department root lookup", func(t *testing.T) {
		found, err := folders.FindDepartmentRoot(ctx, tenantID, departmentID, owner)
		require.NoError(t, err)
		assert.Equal(t, root.ID, found.ID)

		_, err = folders.FindDepartmentRoot(ctx, tenantID, departmentID, document.ContactOwner(uuid.New()))
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	t.Run("client root ignores department folders", func(t *testing.T) {
		found, err := folders.FindClientRoot(ctx, tenantID, owner, "Receipts")
		require.NoError(t, err)
		assert.Equal(t, plain.ID, found.ID)

		_, err = folders.FindClientRoot(ctx, tenantID, owner, "Tax")
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	t.Run("emptiness tracks sub-folders and documents", func(t *testing.T) {
		empty, err := folders.IsEmpty(ctx, tenantID, root.ID)
		require.NoError(t, err)
		assert.True(t, empty)

		sub, err := document.NewFolder(tenantID, "2025", owner, root)
		require.NoError(t, err)
		require.NoError(t, folders.Save(ctx, sub))
		empty, err = folders.IsEmpty(ctx, tenantID, root.ID)
		require.NoError(t, err)
		assert.False(t, empty)

		doc, err := document.NewDocument(tenantID, "w2.pdf", owner, plain, document.UploadedByClient, *owner.ContactID)
		require.NoError(t, err)
		require.NoError(t, docs.Save(ctx, doc))
		empty, err = folders.IsEmpty(ctx, tenantID, plain.ID)
		require.NoError(t, err)
		assert.False(t, empty)

		require.NoError(t, docs.Delete(ctx, tenantID, doc.ID))
		empty, err = folders.IsEmpty(ctx, tenantID, plain.ID)
		require.NoError(t, err)
		assert.True(t, empty, "soft-deleted documents do not count")
	})

	t.Run("owner listing", func(t *testing.T) {
		list, err := folders.FindByOwner(ctx, tenantID, owner)
		require.NoError(t, err)
		assert.Len(t, list, 3)
	})
}

func TestGormDocumentRepository_FindAll(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGormDocumentRepository(db)
	ctx := context.Background()
	tenantID := uuid.New()
	owner := document.CorporationOwner(uuid.New())

	visible, err := document.NewDocument(tenantID, "k1-2024.pdf", owner, nil, document.UploadedByStaff, uuid.New())
	require.NoError(t, err)
	visible.SetVisibleToClient(true)
	require.NoError(t, repo.Save(ctx, visible))

	internal, err := document.NewDocument(tenantID, "workpapers.xlsx", owner, nil, document.UploadedByStaff, uuid.New())
	require.NoError(t, err)
	require.NoError(t, repo.Save(ctx, internal))

	list, total, err := repo.FindAll(ctx, tenantID, shared.Filter{
		Page: 1, PageSize: 10,
		Filters: map[string]interface{}{"corporation_id": *owner.CorporationID, "visible_to_client": true},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, list, 1)
	assert.Equal(t, visible.ID, list[0].ID)

	list, _, err = repo.FindAll(ctx, tenantID, shared.Filter{Page: 1, PageSize: 10, Search: "WORK"})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, internal.ID, list[0].ID)
}
