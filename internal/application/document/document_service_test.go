package document

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/taxcrm/backend/internal/domain/document"
	"github.com/taxcrm/backend/internal/domain/identity"
	"github.com/taxcrm/backend/internal/domain/shared"
	"github.com/taxcrm/backend/internal/infrastructure/storage"
	"go.uber.org/zap"
)

var _ ObjectStorage = (*storage.MemoryObjectStorage)(nil)
var _ ObjectStorage = (*storage.S3ObjectStorage)(nil)

type fixture struct {
	folders *MockFolderRepository
	docs    *MockDocumentRepository
	objects *storage.MemoryObjectStorage
	svc     *Service
}

func newFixture(dept *identity.Department) *fixture {
	f := &fixture{
		folders: new(MockFolderRepository),
		docs:    new(MockDocumentRepository),
		objects: storage.NewMemoryObjectStorage(),
	}
	folderSvc := NewFolderService(f.folders, stubDepartments{dept: dept}, anyContact{}, nil, nil, zap.NewNop())
	f.svc = NewService(f.docs, folderSvc, anyContact{}, nil, f.objects, nil, nil, zap.NewNop())
	return f
}

func TestService_Upload(t *testing.T) {
	ctx := context.Background()
	tenantID, staffID, contactID := uuid.New(), uuid.New(), uuid.New()
	f := newFixture(nil)
	f.docs.On("Save", ctx, mock.AnythingOfType("*document.Document")).Return(nil)

	body := "W-2 wage statement"
	dto, err := f.svc.Upload(ctx, tenantID, Uploader{Kind: document.UploadedByStaff, ID: staffID}, UploadInput{
		Name:        "2024 W2 (Employer).pdf",
		ContentType: "application/pdf",
		Size:        int64(len(body)),
		Body:        strings.NewReader(body),
		Owner:       OwnerInput{ContactID: &contactID},
		Category:    "w2",
	})
	require.NoError(t, err)

	sum := sha256.Sum256([]byte(body))
	assert.Equal(t, hex.EncodeToString(sum[:]), dto.Checksum)
	assert.Equal(t, int64(len(body)), dto.SizeBytes)
	assert.Equal(t, "w2", dto.Category)
	assert.False(t, dto.VisibleToClient, "staff uploads start hidden from the portal")

	keys := f.objects.Keys("tenants/" + tenantID.String() + "/documents/")
	require.Len(t, keys, 1)
	assert.True(t, strings.HasPrefix(keys[0], "tenants/"+tenantID.String()+"/documents/2024-w2-employer-"))
	assert.True(t, strings.HasSuffix(keys[0], ".pdf"))
}

func TestService_UploadRejectsBadOwner(t *testing.T) {
	ctx := context.Background()
	f := newFixture(nil)
	contactID, corpID := uuid.New(), uuid.New()

	_, err := f.svc.Upload(ctx, uuid.New(), Uploader{Kind: document.UploadedByStaff, ID: uuid.New()}, UploadInput{
		Name: "a.pdf", Size: 1, Body: strings.NewReader("x"),
		Owner: OwnerInput{ContactID: &contactID, CorporationID: &corpID},
	})
	assert.ErrorIs(t, err, document.ErrFolderOwner)
	assert.Empty(t, f.objects.Keys(""))
}

func TestService_SaveFailureRemovesObject(t *testing.T) {
	ctx := context.Background()
	f := newFixture(nil)
	contactID := uuid.New()
	f.docs.On("Save", ctx, mock.Anything).Return(assert.AnError)

	_, err := f.svc.Upload(ctx, uuid.New(), Uploader{Kind: document.UploadedByStaff, ID: uuid.New()}, UploadInput{
		Name: "a.pdf", Size: 1, Body: strings.NewReader("x"), Owner: OwnerInput{ContactID: &contactID},
	})
	assert.ErrorIs(t, err, assert.AnError)
	assert.Empty(t, f.objects.Keys(""))
}

func TestService_UploadForContact(t *testing.T) {
	ctx := context.Background()
	tenantID, contactID := uuid.New(), uuid.New()
	f := newFixture(nil)
	owner := document.ContactOwner(contactID)

	f.folders.On("FindClientRoot", ctx, tenantID, owner, ClientUploadsFolder).Return(nil, shared.ErrNotFound)
	var created *document.Folder
	f.folders.On("Save", ctx, mock.AnythingOfType("*document.Folder")).
		Run(func(args mock.Arguments) { created = args.Get(1).(*document.Folder) }).
		Return(nil)
	f.docs.On("Save", ctx, mock.Anything).Return(nil)

	dto, err := f.svc.UploadForContact(ctx, tenantID, contactID, UploadInput{
		Name: "receipt.jpg", ContentType: "image/jpeg", Size: 3, Body: strings.NewReader("jpg"),
	})
	require.NoError(t, err)
	require.NotNil(t, created)
	assert.Equal(t, ClientUploadsFolder, created.Name)
	assert.Equal(t, created.ID, *dto.FolderID)
	assert.Equal(t, "client", dto.UploaderKind)
	assert.True(t, dto.VisibleToClient)
}

func TestService_DownloadURLForContact(t *testing.T) {
	ctx := context.Background()
	tenantID, contactID := uuid.New(), uuid.New()
	f := newFixture(nil)

	doc, err := document.NewDocument(tenantID, "return.pdf", document.ContactOwner(contactID), nil, document.UploadedByStaff, uuid.New())
	require.NoError(t, err)
	require.NoError(t, doc.AttachContent("tenants/x/documents/return.pdf", "application/pdf", 10, "abc"))
	f.docs.On("FindByID", ctx, tenantID, doc.ID).Return(doc, nil)

	_, err = f.svc.DownloadURLForContact(ctx, tenantID, contactID, doc.ID)
	assert.ErrorIs(t, err, shared.ErrNotFound, "hidden documents are not served to the portal")

	doc.SetVisibleToClient(true)
	link, err := f.svc.DownloadURLForContact(ctx, tenantID, contactID, doc.ID)
	require.NoError(t, err)
	assert.Contains(t, link.URL, "return.pdf")
	assert.Equal(t, "return.pdf", link.Filename)

	_, err = f.svc.DownloadURLForContact(ctx, tenantID, uuid.New(), doc.ID)
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestFolderService(t *testing.T) {
	ctx := context.Background()
	tenantID, userID, contactID := uuid.New(), uuid.New(), uuid.New()
	dept, err := identity.NewDepartment(tenantID, "tax", "Tax Preparation")
	require.NoError(t, err)
	f := newFixture(dept)
	folders := f.svc.folders
	owner := document.ContactOwner(contactID)

	t.Run("department folder is created once", func(t *testing.T) {
		f.folders.On("FindDepartmentRoot", ctx, tenantID, dept.ID, owner).Return(nil, shared.ErrNotFound).Once()
		f.folders.On("Save", ctx, mock.AnythingOfType("*document.Folder")).Return(nil).Once()

		dto, err := folders.EnsureDepartmentFolder(ctx, tenantID, userID, dept.ID, OwnerInput{ContactID: &contactID})
		require.NoError(t, err)
		assert.Equal(t, "Tax Preparation", dto.Name)
		require.NotNil(t, dto.DepartmentID)
		assert.Equal(t, dept.ID, *dto.DepartmentID)
	})

	t.Run("folder owner must be exactly one client", func(t *testing.T) {
		_, err := folders.Create(ctx, tenantID, userID, CreateFolderInput{Name: "Misc"})
		assert.ErrorIs(t, err, document.ErrFolderOwner)
	})

	t.Run("non-empty folders are kept", func(t *testing.T) {
		folder, err := document.NewFolder(tenantID, "2024", owner, nil)
		require.NoError(t, err)
		f.folders.On("FindByID", ctx, tenantID, folder.ID).Return(folder, nil)
		f.folders.On("IsEmpty", ctx, tenantID, folder.ID).Return(false, nil)

		err = folders.Delete(ctx, tenantID, folder.ID)
		var derr *shared.DomainError
		require.ErrorAs(t, err, &derr)
		assert.Equal(t, "FOLDER_NOT_EMPTY", derr.Code)
		f.folders.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything, mock.Anything)
	})
}
