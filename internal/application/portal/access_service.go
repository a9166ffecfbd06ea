package portal

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/taxcrm/backend/internal/domain/crm"
	"github.com/taxcrm/backend/internal/domain/identity"
	"github.com/taxcrm/backend/internal/domain/portal"
	"github.com/taxcrm/backend/internal/domain/shared"
	"github.com/taxcrm/backend/internal/infrastructure/mail"
	"go.uber.org/zap"
)

// generatedPasswordLength is the length of invitation and reset passwords
const generatedPasswordLength = 14

// AccessService lets staff grant and revoke client portal logins
type AccessService struct {
	accessRepo  portal.AccessRepository
	contactRepo crm.ContactRepository
	tenantRepo  identity.TenantRepository
	mailer      mail.Sender
	publicURL   string
	events      shared.EventPublisher
	logger      *zap.Logger
}

// NewAccessService creates a new portal access service. publicURL is used in invitation links.
func NewAccessService(
	accessRepo portal.AccessRepository,
	contactRepo crm.ContactRepository,
	tenantRepo identity.TenantRepository,
	mailer mail.Sender,
	publicURL string,
	events shared.EventPublisher,
	logger *zap.Logger,
) *AccessService {
	return &AccessService{
		accessRepo:  accessRepo,
		contactRepo: contactRepo,
		tenantRepo:  tenantRepo,
		mailer:      mailer,
		publicURL:   strings.TrimRight(publicURL, "/"),
		events:      events,
		logger:      logger,
	}
}

// Invite grants portal access to a contact and emails a generated password.
// Inviting a contact whose access was deactivated re-enables it with a new password.
func (s *AccessService) Invite(ctx context.Context, tenantID, contactID uuid.UUID) (*AccessDTO, error) {
	contact, err := s.contactRepo.FindByID(ctx, tenantID, contactID)
	if err != nil {
		return nil, err
	}
	if contact.Email == "" {
		return nil, shared.NewDomainError("CONTACT_EMAIL_REQUIRED", "The contact needs an email address to use the portal")
	}
	password, err := identity.GeneratePassword(generatedPasswordLength)
	if err != nil {
		return nil, fmt.Errorf("failed to generate password: %w", err)
	}

	access, err := s.accessRepo.FindByContact(ctx, tenantID, contactID)
	switch {
	case err == nil:
		if access.Active {
			return nil, shared.NewDomainError("PORTAL_ACCESS_EXISTS", "The contact already has portal access")
		}
		if err := access.ResetPassword(password); err != nil {
			return nil, err
		}
		access.SetActive(true)
	case errors.Is(err, shared.ErrNotFound):
		if other, ferr := s.accessRepo.FindByEmail(ctx, tenantID, contact.Email); ferr == nil && other.ContactID != contactID {
			return nil, shared.NewDomainError("PORTAL_EMAIL_EXISTS", "Another contact already signs in with this email")
		}
		if access, err = portal.NewAccess(tenantID, contactID, contact.Email, password); err != nil {
			return nil, err
		}
	default:
		return nil, err
	}

	if err := s.accessRepo.Save(ctx, access); err != nil {
		return nil, err
	}
	s.publish(ctx, access)
	if err := s.sendCredentials(ctx, tenantID, contact, access.Email, password, "invitation"); err != nil {
		return nil, err
	}
	s.logger.Info("Portal access granted", zap.String("contact_id", contactID.String()))
	dto := ToAccessDTO(access)
	return &dto, nil
}

// Deactivate disables a contact's portal login. Issued tokens stop refreshing.
func (s *AccessService) Deactivate(ctx context.Context, tenantID, contactID uuid.UUID) (*AccessDTO, error) {
	access, err := s.accessRepo.FindByContact(ctx, tenantID, contactID)
	if err != nil {
		return nil, err
	}
	if access.Active {
		access.SetActive(false)
		if err := s.accessRepo.Save(ctx, access); err != nil {
			return nil, err
		}
		s.publish(ctx, access)
	}
	dto := ToAccessDTO(access)
	return &dto, nil
}

// ResetPassword emails a new generated password to the contact
func (s *AccessService) ResetPassword(ctx context.Context, tenantID, contactID uuid.UUID) error {
	access, err := s.accessRepo.FindByContact(ctx, tenantID, contactID)
	if err != nil {
		return err
	}
	if !access.Active {
		return shared.NewDomainError("PORTAL_ACCESS_INACTIVE", "Portal access is deactivated")
	}
	contact, err := s.contactRepo.FindByID(ctx, tenantID, contactID)
	if err != nil {
		return err
	}
	password, err := identity.GeneratePassword(generatedPasswordLength)
	if err != nil {
		return fmt.Errorf("failed to generate password: %w", err)
	}
	if err := access.ResetPassword(password); err != nil {
		return err
	}
	if err := s.accessRepo.Save(ctx, access); err != nil {
		return err
	}
	s.publish(ctx, access)
	return s.sendCredentials(ctx, tenantID, contact, access.Email, password, "reset")
}

// GetForContact returns a contact's portal access
func (s *AccessService) GetForContact(ctx context.Context, tenantID, contactID uuid.UUID) (*AccessDTO, error) {
	access, err := s.accessRepo.FindByContact(ctx, tenantID, contactID)
	if err != nil {
		return nil, err
	}
	dto := ToAccessDTO(access)
	return &dto, nil
}

// List returns every portal access of the tenant
func (s *AccessService) List(ctx context.Context, tenantID uuid.UUID) ([]AccessDTO, error) {
	accesses, err := s.accessRepo.FindAll(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	out := make([]AccessDTO, len(accesses))
	for i := range accesses {
		out[i] = ToAccessDTO(&accesses[i])
	}
	return out, nil
}

func (s *AccessService) sendCredentials(ctx context.Context, tenantID uuid.UUID, contact *crm.Contact, email, password, reason string) error {
	tenant, err := s.tenantRepo.FindByID(ctx, tenantID)
	if err != nil {
		return err
	}
	subject := fmt.Sprintf("Your %s client portal access", tenant.Name)
	intro := fmt.Sprintf("%s has invited you to its secure client portal.", tenant.Name)
	if reason == "reset" {
		subject = fmt.Sprintf("Your %s client portal password was reset", tenant.Name)
		intro = "Your client portal password has been reset."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Hello %s,\n\n%s\n\n", contact.DisplayName(), intro)
	if s.publicURL != "" {
		fmt.Fprintf(&b, "Sign in at: %s/portal/login?practice=%s\n", s.publicURL, tenant.Slug)
	} else {
		fmt.Fprintf(&b, "Practice code: %s\n", tenant.Slug)
	}
	fmt.Fprintf(&b, "Email: %s\nTemporary password: %s\n\n", email, password)
	b.WriteString("Please keep this password private.\n")

	if err := s.mailer.Send(ctx, mail.Message{To: []string{email}, Subject: subject, Body: b.String()}); err != nil {
		return fmt.Errorf("failed to send portal credentials: %w", err)
	}
	return nil
}

func (s *AccessService) publish(ctx context.Context, access *portal.Access) {
	if err := shared.PublishAndClear(ctx, s.events, access); err != nil {
		s.logger.Warn("Failed to publish portal access events", zap.Error(err))
	}
}
