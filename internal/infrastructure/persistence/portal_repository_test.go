package persistence

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/taxcrm/backend/internal/domain/portal"
	"github.com/taxcrm/backend/internal/domain/shared"
)

func TestGormPortalMessageRepository(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGormPortalMessageRepository(db)
	ctx := context.Background()
	tenantID := uuid.New()
	alice := uuid.New()
	bob := uuid.New()
	staff := uuid.New()

	send := func(contactID uuid.UUID, kind portal.SenderKind, sender uuid.UUID, body string) *portal.Message {
		m, err := portal.NewMessage(tenantID, contactID, kind, sender, body)
		require.NoError(t, err)
		require.NoError(t, repo.Create(ctx, m))
		return m
	}

	a1 := send(alice, portal.SenderClient, alice, "Hello")
	a2 := send(alice, portal.SenderStaff, staff, "Hi Alice")
	a3 := send(alice, portal.SenderClient, alice, "Question about my return")
	b1 := send(bob, portal.SenderClient, bob, "Is my refund filed?")

	t.Run("seq is assigned in order", func(t *testing.T) {
		assert.Greater(t, a1.Seq, int64(0))
		assert.Less(t, a1.Seq, a2.Seq)
		assert.Less(t, a2.Seq, a3.Seq)
		assert.Less(t, a3.Seq, b1.Seq)
	})

	t.Run("polling after a cursor", func(t *testing.T) {
		list, err := repo.ListAfter(ctx, tenantID, alice, a1.Seq, 10)
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, a2.ID, list[0].ID)
		assert.Equal(t, a3.ID, list[1].ID)

		list, err = repo.ListAfter(ctx, tenantID, alice, a3.Seq, 10)
		require.NoError(t, err)
		assert.Empty(t, list)
	})

	t.Run("conversations newest first with unread counts", func(t *testing.T) {
		convs, err := repo.Conversations(ctx, tenantID, 10)
		require.NoError(t, err)
		require.Len(t, convs, 2)
		assert.Equal(t, bob, convs[0].ContactID)
		assert.Equal(t, b1.ID, convs[0].LastMessage.ID)
		assert.Equal(t, int64(1), convs[0].UnreadCount)
		assert.Equal(t, alice, convs[1].ContactID)
		assert.Equal(t, int64(2), convs[1].UnreadCount)
	})

	t.Run("staff marks client messages read up to a seq", func(t *testing.T) {
		n, err := repo.MarkRead(ctx, tenantID, alice, portal.SenderStaff, a1.Seq)
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)

		unread, err := repo.UnreadCount(ctx, tenantID, alice, portal.SenderStaff)
		require.NoError(t, err)
		assert.Equal(t, int64(1), unread)

		clientUnread, err := repo.UnreadCount(ctx, tenantID, alice, portal.SenderClient)
		require.NoError(t, err)
		assert.Equal(t, int64(1), clientUnread, "the staff reply is still unread by the client")
	})

	t.Run("other tenants see no messages", func(t *testing.T) {
		list, err := repo.ListAfter(ctx, uuid.New(), alice, 0, 10)
		require.NoError(t, err)
		assert.Empty(t, list)
	})
}

func TestGormPortalAccessRepository(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGormPortalAccessRepository(db)
	ctx := context.Background()
	tenantID := uuid.New()
	contactID := uuid.New()

	access, err := portal.NewAccess(tenantID, contactID, "Client@Example.com", "welcome123")
	require.NoError(t, err)
	require.NoError(t, repo.Save(ctx, access))

	found, err := repo.FindByEmail(ctx, tenantID, "CLIENT@example.com")
	require.NoError(t, err)
	assert.Equal(t, access.ID, found.ID)

	found, err = repo.FindByContact(ctx, tenantID, contactID)
	require.NoError(t, err)
	assert.Equal(t, access.ID, found.ID)

	_, err = repo.FindByEmail(ctx, uuid.New(), "client@example.com")
	assert.ErrorIs(t, err, shared.ErrNotFound)
}
