package document

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOwner_Validate(t *testing.T) {
	c, k := uuid.New(), uuid.New()
	assert.NoError(t, ContactOwner(c).Validate())
	assert.NoError(t, CorporationOwner(k).Validate())
	assert.ErrorIs(t, Owner{}.Validate(), ErrFolderOwner)
	assert.ErrorIs(t, Owner{ContactID: &c, CorporationID: &k}.Validate(), ErrFolderOwner)
}

func TestNewFolder(t *testing.T) {
	tenantID := uuid.New()
	owner := ContactOwner(uuid.New())

	root, err := NewFolder(tenantID, "2024 Return", owner, nil)
	require.NoError(t, err)

	t.Run("child inherits owner", func(t *testing.T) {
		child, err := NewFolder(tenantID, "W2s", owner, root)
		require.NoError(t, err)
		assert.Equal(t, root.ID, *child.ParentID)
	})

	t.Run("parent from another client", func(t *testing.T) {
		_, err := NewFolder(tenantID, "W2s", ContactOwner(uuid.New()), root)
		assert.Error(t, err)
	})

	t.Run("no owner", func(t *testing.T) {
		_, err := NewFolder(tenantID, "x", Owner{}, nil)
		assert.ErrorIs(t, err, ErrFolderOwner)
	})

	t.Run("bad names", func(t *testing.T) {
		_, err := NewFolder(tenantID, " ", owner, nil)
		assert.Error(t, err)
		_, err = NewFolder(tenantID, "a/b", owner, nil)
		assert.Error(t, err)
	})

	t.Run("department root", func(t *testing.T) {
		deptID := uuid.New()
		f, err := NewDepartmentClientFolder(tenantID, deptID, "Payroll", owner)
		require.NoError(t, err)
		assert.True(t, f.IsDepartmentRoot())
		sub, err := NewFolder(tenantID, "Q1", owner, f)
		require.NoError(t, err)
		assert.False(t, sub.IsDepartmentRoot())
		assert.Equal(t, deptID, *sub.DepartmentID)
	})
}

func TestNewDocument(t *testing.T) {
	tenantID := uuid.New()
	contactID := uuid.New()
	owner := ContactOwner(contactID)

	t.Run("strips path from name", func(t *testing.T) {
		d, err := NewDocument(tenantID, `C:\Users\me\w2.pdf`, owner, nil, UploadedByStaff, uuid.New())
		require.NoError(t, err)
		assert.Equal(t, "w2.pdf", d.Name)
		assert.False(t, d.VisibleToClient)
	})

	t.Run("client uploads are visible", func(t *testing.T) {
		d, err := NewDocument(tenantID, "receipt.jpg", owner, nil, UploadedByClient, contactID)
		require.NoError(t, err)
		assert.True(t, d.IsVisibleTo(contactID))
		assert.False(t, d.IsVisibleTo(uuid.New()))
	})

	t.Run("attach content bounds", func(t *testing.T) {
		d, err := NewDocument(tenantID, "a.pdf", owner, nil, UploadedByStaff, uuid.New())
		require.NoError(t, err)
		assert.Error(t, d.AttachContent("k", "application/pdf", 0, ""))
		assert.Error(t, d.AttachContent("k", "application/pdf", MaxDocumentSize+1, ""))
		require.NoError(t, d.AttachContent("k", "application/pdf", 10, "abc"))
		assert.Len(t, d.GetDomainEvents(), 1)
	})

	t.Run("folder of another client", func(t *testing.T) {
		f, err := NewFolder(tenantID, "Other", ContactOwner(uuid.New()), nil)
		require.NoError(t, err)
		_, err = NewDocument(tenantID, "a.pdf", owner, f, UploadedByStaff, uuid.New())
		assert.Error(t, err)
	})

	t.Run("metadata validation", func(t *testing.T) {
		d, err := NewDocument(tenantID, "a.pdf", owner, nil, UploadedByStaff, uuid.New())
		require.NoError(t, err)
		assert.Error(t, d.UpdateMetadata("a.pdf", "nope", "", nil))
		require.NoError(t, d.UpdateMetadata("b.pdf", CategoryW2, "2024 W-2", nil))
		assert.Equal(t, CategoryW2, d.Category)
	})
}
