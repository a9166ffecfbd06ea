package portal

import (
	"time"

	"github.com/google/uuid"
	"github.com/taxcrm/backend/internal/domain/portal"
)

// AccessDTO is the staff view of a portal login. The password is never returned.
type AccessDTO struct {
	ID          uuid.UUID  `json:"id"`
	ContactID   uuid.UUID  `json:"contact_id"`
	Email       string     `json:"email"`
	Active      bool       `json:"active"`
	InvitedAt   time.Time  `json:"invited_at"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
}

// ToAccessDTO converts a portal access
func ToAccessDTO(a *portal.Access) AccessDTO {
	return AccessDTO{
		ID:          a.ID,
		ContactID:   a.ContactID,
		Email:       a.Email,
		Active:      a.Active,
		InvitedAt:   a.InvitedAt,
		LastLoginAt: a.LastLoginAt,
	}
}

// LoginInput contains the input for portal login
type LoginInput struct {
	TenantSlug string
	Email      string
	Password   string
}

// LoginResult is returned by a successful portal login
type LoginResult struct {
	AccessToken           string     `json:"access_token"`
	RefreshToken          string     `json:"refresh_token"`
	AccessTokenExpiresAt  time.Time  `json:"access_token_expires_at"`
	RefreshTokenExpiresAt time.Time  `json:"refresh_token_expires_at"`
	TokenType             string     `json:"token_type"`
	Client                ProfileDTO `json:"client"`
}

// ProfileDTO is what a signed-in client sees about themselves
type ProfileDTO struct {
	ContactID    uuid.UUID `json:"contact_id"`
	TenantID     uuid.UUID `json:"tenant_id"`
	PracticeName string    `json:"practice_name"`
	DisplayName  string    `json:"display_name"`
	Email        string    `json:"email"`
	Phone        string    `json:"phone"`
}

// MessageDTO is one chat message
type MessageDTO struct {
	ID         uuid.UUID  `json:"id"`
	Seq        int64      `json:"seq"`
	ContactID  uuid.UUID  `json:"contact_id"`
	SenderKind string     `json:"sender_kind"`
	SenderID   uuid.UUID  `json:"sender_id"`
	Body       string     `json:"body"`
	ReadAt     *time.Time `json:"read_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// ToMessageDTO converts a message
func ToMessageDTO(m *portal.Message) MessageDTO {
	return MessageDTO{
		ID:         m.ID,
		Seq:        m.Seq,
		ContactID:  m.ContactID,
		SenderKind: string(m.SenderKind),
		SenderID:   m.SenderID,
		Body:       m.Body,
		ReadAt:     m.ReadAt,
		CreatedAt:  m.CreatedAt,
	}
}

// MessagePage is one poll result. Cursor is the seq to pass as after on the next poll.
type MessagePage struct {
	Messages []MessageDTO `json:"messages"`
	Cursor   int64        `json:"cursor"`
}

// ConversationDTO summarises the thread with one contact for the staff inbox
type ConversationDTO struct {
	ContactID   uuid.UUID  `json:"contact_id"`
	LastMessage MessageDTO `json:"last_message"`
	UnreadCount int64      `json:"unread_count"`
}
