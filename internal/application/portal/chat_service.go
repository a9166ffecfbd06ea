package portal

import (
	"context"

	"github.com/google/uuid"
	"github.com/taxcrm/backend/internal/domain/crm"
	"github.com/taxcrm/backend/internal/domain/portal"
	"github.com/taxcrm/backend/internal/domain/shared"
	"go.uber.org/zap"
)

const (
	// DefaultPollLimit is the page size of a poll when none is requested
	DefaultPollLimit = 50
	// MaxPollLimit bounds one poll
	MaxPollLimit = 200
)

// ChatService carries the message thread between the practice and each contact.
// Clients poll with the seq cursor of the last message they saw.
type ChatService struct {
	messageRepo portal.MessageRepository
	contactRepo crm.ContactRepository
	events      shared.EventPublisher
	logger      *zap.Logger
}

// NewChatService creates a new chat service
func NewChatService(messageRepo portal.MessageRepository, contactRepo crm.ContactRepository, events shared.EventPublisher, logger *zap.Logger) *ChatService {
	return &ChatService{messageRepo: messageRepo, contactRepo: contactRepo, events: events, logger: logger}
}

// SendAsStaff posts a staff message into a contact's thread
func (s *ChatService) SendAsStaff(ctx context.Context, tenantID, staffID, contactID uuid.UUID, body string) (*MessageDTO, error) {
	if _, err := s.contactRepo.FindByID(ctx, tenantID, contactID); err != nil {
		return nil, err
	}
	return s.send(ctx, tenantID, contactID, portal.SenderStaff, staffID, body)
}

// SendAsClient posts a message from the signed-in contact
func (s *ChatService) SendAsClient(ctx context.Context, tenantID, contactID uuid.UUID, body string) (*MessageDTO, error) {
	return s.send(ctx, tenantID, contactID, portal.SenderClient, contactID, body)
}

// Poll returns messages of a thread with seq greater than after
func (s *ChatService) Poll(ctx context.Context, tenantID, contactID uuid.UUID, after int64, limit int) (*MessagePage, error) {
	if after < 0 {
		after = 0
	}
	if limit <= 0 {
		limit = DefaultPollLimit
	}
	if limit > MaxPollLimit {
		limit = MaxPollLimit
	}
	msgs, err := s.messageRepo.ListAfter(ctx, tenantID, contactID, after, limit)
	if err != nil {
		return nil, err
	}
	page := &MessagePage{Messages: make([]MessageDTO, len(msgs)), Cursor: after}
	for i := range msgs {
		page.Messages[i] = ToMessageDTO(&msgs[i])
		if msgs[i].Seq > page.Cursor {
			page.Cursor = msgs[i].Seq
		}
	}
	return page, nil
}

// MarkRead stamps the other side's messages up to seq as read by reader
func (s *ChatService) MarkRead(ctx context.Context, tenantID, contactID uuid.UUID, reader portal.SenderKind, uptoSeq int64) (int64, error) {
	if uptoSeq <= 0 {
		return 0, nil
	}
	return s.messageRepo.MarkRead(ctx, tenantID, contactID, reader, uptoSeq)
}

// UnreadCount counts the other side's unread messages for reader
func (s *ChatService) UnreadCount(ctx context.Context, tenantID, contactID uuid.UUID, reader portal.SenderKind) (int64, error) {
	return s.messageRepo.UnreadCount(ctx, tenantID, contactID, reader)
}

// Conversations lists threads for the staff inbox, most recent first
func (s *ChatService) Conversations(ctx context.Context, tenantID uuid.UUID, limit int) ([]ConversationDTO, error) {
	if limit <= 0 {
		limit = DefaultPollLimit
	}
	convs, err := s.messageRepo.Conversations(ctx, tenantID, limit)
	if err != nil {
		return nil, err
	}
	out := make([]ConversationDTO, len(convs))
	for i := range convs {
		out[i] = ConversationDTO{
			ContactID:   convs[i].ContactID,
			LastMessage: ToMessageDTO(&convs[i].LastMessage),
			UnreadCount: convs[i].UnreadCount,
		}
	}
	return out, nil
}

func (s *ChatService) send(ctx context.Context, tenantID, contactID uuid.UUID, kind portal.SenderKind, senderID uuid.UUID, body string) (*MessageDTO, error) {
	msg, err := portal.NewMessage(tenantID, contactID, kind, senderID, body)
	if err != nil {
		return nil, err
	}
	if err := s.messageRepo.Create(ctx, msg); err != nil {
		return nil, err
	}
	if s.events != nil {
		if err := s.events.Publish(ctx, portal.NewMessageSentEvent(msg)); err != nil {
			s.logger.Warn("Failed to publish message event", zap.Error(err))
		}
	}
	dto := ToMessageDTO(msg)
	return &dto, nil
}
