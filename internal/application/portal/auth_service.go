package portal

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/taxcrm/backend/internal/domain/crm"
	"github.com/taxcrm/backend/internal/domain/identity"
	"github.com/taxcrm/backend/internal/domain/portal"
	"github.com/taxcrm/backend/internal/domain/shared"
	"github.com/taxcrm/backend/internal/infrastructure/auth"
	"go.uber.org/zap"
)

var errInvalidCredentials = shared.NewDomainError("INVALID_CREDENTIALS", "Invalid email or password")

// AuthService signs clients in to the portal. It issues tokens of the portal
// realm only, which staff routes reject.
type AuthService struct {
	tenantRepo  identity.TenantRepository
	accessRepo  portal.AccessRepository
	contactRepo crm.ContactRepository
	jwtService  *auth.JWTService
	blacklist   auth.TokenBlacklist
	events      shared.EventPublisher
	logger      *zap.Logger
	now         func() time.Time
}

// NewAuthService creates the portal auth service. jwtService must be a portal realm service.
func NewAuthService(
	tenantRepo identity.TenantRepository,
	accessRepo portal.AccessRepository,
	contactRepo crm.ContactRepository,
	jwtService *auth.JWTService,
	blacklist auth.TokenBlacklist,
	events shared.EventPublisher,
	logger *zap.Logger,
) *AuthService {
	return &AuthService{
		tenantRepo:  tenantRepo,
		accessRepo:  accessRepo,
		contactRepo: contactRepo,
		jwtService:  jwtService,
		blacklist:   blacklist,
		events:      events,
		logger:      logger,
		now:         time.Now,
	}
}

// Login checks the client's credentials and returns a portal token pair
func (s *AuthService) Login(ctx context.Context, input LoginInput) (*LoginResult, error) {
	tenant, err := s.tenantRepo.FindBySlug(ctx, input.TenantSlug)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, errInvalidCredentials
		}
		return nil, err
	}
	if !tenant.IsActive() {
		return nil, shared.NewDomainError("TENANT_SUSPENDED", "This practice account is suspended")
	}
	access, err := s.accessRepo.FindByEmail(ctx, tenant.ID, strings.ToLower(strings.TrimSpace(input.Email)))
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, errInvalidCredentials
		}
		return nil, err
	}
	if !access.VerifyPassword(input.Password) {
		s.logger.Warn("Portal login failed", zap.String("access_id", access.ID.String()))
		return nil, errInvalidCredentials
	}
	if !access.Active {
		return nil, shared.NewDomainError("ACCOUNT_INACTIVE", "Portal access is deactivated")
	}
	contact, err := s.contactRepo.FindByID(ctx, tenant.ID, access.ContactID)
	if err != nil {
		return nil, err
	}

	pair, err := s.jwtService.GenerateTokenPair(auth.Subject{
		TenantID:  tenant.ID,
		UserID:    access.ID,
		ContactID: access.ContactID,
		Username:  access.Email,
	})
	if err != nil {
		s.logger.Error("Failed to generate portal token pair", zap.Error(err))
		return nil, shared.NewDomainError("INTERNAL_ERROR", "Failed to generate authentication tokens")
	}

	access.RecordLogin(s.now())
	if err := s.accessRepo.Save(ctx, access); err != nil {
		s.logger.Error("Failed to save portal access after login", zap.Error(err))
	}
	if err := shared.PublishAndClear(ctx, s.events, access); err != nil {
		s.logger.Warn("Failed to publish portal access events", zap.Error(err))
	}
	return &LoginResult{
		AccessToken:           pair.AccessToken,
		RefreshToken:          pair.RefreshToken,
		AccessTokenExpiresAt:  pair.AccessTokenExpiresAt,
		RefreshTokenExpiresAt: pair.RefreshTokenExpiresAt,
		TokenType:             pair.TokenType,
		Client:                profile(tenant, contact, access),
	}, nil
}

// RefreshToken exchanges a portal refresh token while the access is still active
func (s *AuthService) RefreshToken(ctx context.Context, refreshToken string) (*auth.TokenPair, error) {
	claims, err := s.jwtService.ValidateRefreshToken(refreshToken)
	if err != nil {
		return nil, tokenError(err)
	}
	tenantID, err := claims.TenantUUID()
	if err != nil {
		return nil, tokenError(auth.ErrInvalidClaims)
	}
	accessID, err := claims.UserUUID()
	if err != nil {
		return nil, tokenError(auth.ErrInvalidClaims)
	}
	if s.blacklist != nil {
		revoked, err := s.blacklist.IsSubjectRevoked(ctx, accessID.String(), claims.IssuedAtTime())
		if err != nil {
			return nil, err
		}
		if revoked {
			return nil, tokenError(auth.ErrTokenBlacklisted)
		}
	}
	access, err := s.accessRepo.FindByID(ctx, tenantID, accessID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, tokenError(auth.ErrInvalidClaims)
		}
		return nil, err
	}
	if !access.Active {
		return nil, shared.NewDomainError("ACCOUNT_INACTIVE", "Portal access is deactivated")
	}
	pair, _, err := s.jwtService.RefreshTokenPair(refreshToken, nil, nil)
	if err != nil {
		return nil, tokenError(err)
	}
	return pair, nil
}

// Logout revokes the presented access token
func (s *AuthService) Logout(ctx context.Context, jti string, remaining time.Duration) error {
	if s.blacklist == nil || jti == "" || remaining <= 0 {
		return nil
	}
	return s.blacklist.Revoke(ctx, jti, remaining)
}

// Me returns the signed-in client's profile
func (s *AuthService) Me(ctx context.Context, tenantID, contactID uuid.UUID) (*ProfileDTO, error) {
	tenant, err := s.tenantRepo.FindByID(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	access, err := s.accessRepo.FindByContact(ctx, tenantID, contactID)
	if err != nil {
		return nil, err
	}
	contact, err := s.contactRepo.FindByID(ctx, tenantID, contactID)
	if err != nil {
		return nil, err
	}
	p := profile(tenant, contact, access)
	return &p, nil
}

func profile(tenant *identity.Tenant, contact *crm.Contact, access *portal.Access) ProfileDTO {
	return ProfileDTO{
		ContactID:    contact.ID,
		TenantID:     tenant.ID,
		PracticeName: tenant.Name,
		DisplayName:  contact.DisplayName(),
		Email:        access.Email,
		Phone:        contact.Phone,
	}
}

func tokenError(err error) error {
	switch {
	case errors.Is(err, auth.ErrExpiredToken):
		return shared.NewDomainError("TOKEN_EXPIRED", "Refresh token has expired")
	case errors.Is(err, auth.ErrMaxRefreshExceeded):
		return shared.NewDomainError("TOKEN_MAX_REFRESH", "Maximum token refresh count exceeded. Please log in again")
	case errors.Is(err, auth.ErrTokenBlacklisted):
		return shared.NewDomainError("TOKEN_REVOKED", "Token has been revoked")
	case errors.Is(err, auth.ErrWrongRealm):
		return shared.NewDomainError("TOKEN_INVALID", "Token was issued for a different realm")
	default:
		return shared.NewDomainError("TOKEN_INVALID", "Invalid refresh token")
	}
}
