package portal

import (
	"context"

	"github.com/google/uuid"
)

// AccessRepository persists portal logins
type AccessRepository interface {
	FindByID(ctx context.Context, tenantID, id uuid.UUID) (*Access, error)
	FindByEmail(ctx context.Context, tenantID uuid.UUID, email string) (*Access, error)
	FindByContact(ctx context.Context, tenantID, contactID uuid.UUID) (*Access, error)
	FindAll(ctx context.Context, tenantID uuid.UUID) ([]Access, error)
	Save(ctx context.Context, a *Access) error
}

// MessageRepository persists chat messages
type MessageRepository interface {
	// Create stores the message and sets its Seq
	Create(ctx context.Context, m *Message) error
	// ListAfter returns messages with Seq > after in ascending order
	ListAfter(ctx context.Context, tenantID, contactID uuid.UUID, after int64, limit int) ([]Message, error)
	// MarkRead stamps unread messages sent by the other side up to and including seq
	MarkRead(ctx context.Context, tenantID, contactID uuid.UUID, readerKind SenderKind, uptoSeq int64) (int64, error)
	Conversations(ctx context.Context, tenantID uuid.UUID, limit int) ([]Conversation, error)
	UnreadCount(ctx context.Context, tenantID, contactID uuid.UUID, readerKind SenderKind) (int64, error)
}
