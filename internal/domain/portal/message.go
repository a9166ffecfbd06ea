package portal

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/taxcrm/backend/internal/domain/shared"
)

// SenderKind identifies who wrote a message
type SenderKind string

const (
	SenderStaff  SenderKind = "staff"
	SenderClient SenderKind = "client"
)

// MaxMessageLength bounds a chat message body in characters
const MaxMessageLength = 5000

// Message is one entry of the conversation between the practice and a contact.
// Seq is assigned by storage and increases monotonically per tenant; clients
// poll with the last Seq they saw.
type Message struct {
	ID         uuid.UUID
	TenantID   uuid.UUID
	Seq        int64
	ContactID  uuid.UUID
	SenderKind SenderKind
	SenderID   uuid.UUID
	Body       string
	ReadAt     *time.Time
	CreatedAt  time.Time
}

// NewMessage validates and builds an unsent message
func NewMessage(tenantID, contactID uuid.UUID, kind SenderKind, senderID uuid.UUID, body string) (*Message, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, shared.NewDomainError("EMPTY_MESSAGE", "Message cannot be empty")
	}
	if utf8.RuneCountInString(body) > MaxMessageLength {
		return nil, shared.NewDomainError("MESSAGE_TOO_LONG", "Message exceeds 5000 characters")
	}
	if kind != SenderStaff && kind != SenderClient {
		return nil, shared.NewDomainError("INVALID_SENDER", "Unknown sender kind")
	}
	return &Message{
		ID:         uuid.New(),
		TenantID:   tenantID,
		ContactID:  contactID,
		SenderKind: kind,
		SenderID:   senderID,
		Body:       body,
		CreatedAt:  time.Now(),
	}, nil
}

// Conversation summarises the thread with one contact
type Conversation struct {
	ContactID   uuid.UUID
	LastMessage Message
	UnreadCount int64
}

// MessageSentEvent is published when a message is stored
type MessageSentEvent struct {
	shared.BaseDomainEvent
	ContactID  uuid.UUID  `json:"contact_id"`
	SenderKind SenderKind `json:"sender_kind"`
	Seq        int64      `json:"seq"`
}

// EventTypeMessageSent is the event type for MessageSentEvent
const EventTypeMessageSent = "portal_message.sent"

// NewMessageSentEvent builds the event for a stored message
func NewMessageSentEvent(m *Message) *MessageSentEvent {
	return &MessageSentEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeMessageSent, "portal_message", m.ID, m.TenantID),
		ContactID:       m.ContactID,
		SenderKind:      m.SenderKind,
		Seq:             m.Seq,
	}
}
