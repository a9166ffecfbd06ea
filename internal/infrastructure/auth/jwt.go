package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/taxcrm/backend/internal/infrastructure/config"
)

// TokenType distinguishes access from refresh tokens
type TokenType string

const (
	TokenTypeAccess  TokenType = "access"
	TokenTypeRefresh TokenType = "refresh"
)

// Realm separates staff tokens from client portal tokens. Each realm signs with its own secret.
type Realm string

const (
	RealmStaff  Realm = "staff"
	RealmPortal Realm = "portal"
)

var (
	ErrInvalidToken       = errors.New("invalid token")
	ErrExpiredToken       = errors.New("token has expired")
	ErrInvalidTokenType   = errors.New("invalid token type")
	ErrInvalidClaims      = errors.New("invalid token claims")
	ErrTokenNotYetValid   = errors.New("token is not yet valid")
	ErrWrongRealm         = errors.New("token was issued for a different realm")
	ErrMissingTenantID    = errors.New("missing tenant_id in claims")
	ErrMissingSubject     = errors.New("missing subject in claims")
	ErrMaxRefreshExceeded = errors.New("maximum refresh count exceeded")
	ErrTokenBlacklisted   = errors.New("token has been revoked")
)

// Claims are the custom JWT claims of both realms. Staff tokens carry UserID,
// roles and permissions; portal tokens carry UserID (the portal access) and ContactID.
type Claims struct {
	jwt.RegisteredClaims
	Realm        Realm     `json:"realm"`
	TenantID     string    `json:"tenant_id"`
	UserID       string    `json:"user_id"`
	ContactID    string    `json:"contact_id,omitempty"`
	Username     string    `json:"username,omitempty"`
	RoleIDs      []string  `json:"role_ids,omitempty"`
	Permissions  []string  `json:"permissions,omitempty"`
	TokenType    TokenType `json:"token_type"`
	RefreshCount int       `json:"refresh_count,omitempty"`
}

// TokenPair is returned by login and refresh
type TokenPair struct {
	AccessToken           string    `json:"access_token"`
	RefreshToken          string    `json:"refresh_token"`
	AccessTokenExpiresAt  time.Time `json:"access_token_expires_at"`
	RefreshTokenExpiresAt time.Time `json:"refresh_token_expires_at"`
	TokenType             string    `json:"token_type"`
}

// Subject identifies who a token pair is issued to
type Subject struct {
	TenantID    uuid.UUID
	UserID      uuid.UUID
	ContactID   uuid.UUID
	Username    string
	RoleIDs     []uuid.UUID
	Permissions []string
}

// JWTService issues and validates tokens for one realm
type JWTService struct {
	realm             Realm
	accessSecret      []byte
	refreshSecret     []byte
	accessExpiration  time.Duration
	refreshExpiration time.Duration
	issuer            string
	maxRefreshCount   int
}

// NewJWTService creates a token service for realm
func NewJWTService(cfg config.JWTConfig, realm Realm) *JWTService {
	refreshSecret := []byte(cfg.RefreshSecret)
	if cfg.RefreshSecret == "" {
		refreshSecret = []byte(cfg.Secret + ":refresh")
	}
	return &JWTService{
		realm:             realm,
		accessSecret:      []byte(cfg.Secret),
		refreshSecret:     refreshSecret,
		accessExpiration:  cfg.AccessTokenExpiration,
		refreshExpiration: cfg.RefreshTokenExpiration,
		issuer:            cfg.Issuer,
		maxRefreshCount:   cfg.MaxRefreshCount,
	}
}

// Realm returns the realm this service serves
func (s *JWTService) Realm() Realm {
	return s.realm
}

// GenerateTokenPair issues a fresh access/refresh pair
func (s *JWTService) GenerateTokenPair(sub Subject) (*TokenPair, error) {
	return s.issue(sub, 0)
}

// RefreshTokenPair exchanges a refresh token for a new pair. Permissions are
// re-read by the caller so role changes apply on refresh.
func (s *JWTService) RefreshTokenPair(refreshToken string, permissions []string, roleIDs []uuid.UUID) (*TokenPair, *Claims, error) {
	claims, err := s.ValidateRefreshToken(refreshToken)
	if err != nil {
		return nil, nil, err
	}
	if s.maxRefreshCount > 0 && claims.RefreshCount >= s.maxRefreshCount {
		return nil, nil, ErrMaxRefreshExceeded
	}
	sub, err := claims.subject()
	if err != nil {
		return nil, nil, err
	}
	sub.Permissions = permissions
	sub.RoleIDs = roleIDs
	pair, err := s.issue(sub, claims.RefreshCount+1)
	if err != nil {
		return nil, nil, err
	}
	return pair, claims, nil
}

// ValidateAccessToken parses and checks an access token of this realm
func (s *JWTService) ValidateAccessToken(token string) (*Claims, error) {
	return s.validate(token, s.accessSecret, TokenTypeAccess)
}

// ValidateRefreshToken parses and checks a refresh token of this realm
func (s *JWTService) ValidateRefreshToken(token string) (*Claims, error) {
	return s.validate(token, s.refreshSecret, TokenTypeRefresh)
}

// AccessTokenExpiration returns the access token lifetime
func (s *JWTService) AccessTokenExpiration() time.Duration {
	return s.accessExpiration
}

func (s *JWTService) issue(sub Subject, refreshCount int) (*TokenPair, error) {
	now := time.Now()
	roleIDs := make([]string, len(sub.RoleIDs))
	for i, id := range sub.RoleIDs {
		roleIDs[i] = id.String()
	}
	contactID := ""
	if sub.ContactID != uuid.Nil {
		contactID = sub.ContactID.String()
	}

	access := s.claims(sub, now, s.accessExpiration, TokenTypeAccess)
	access.ContactID = contactID
	access.Username = sub.Username
	access.RoleIDs = roleIDs
	access.Permissions = sub.Permissions
	accessToken, err := sign(access, s.accessSecret)
	if err != nil {
		return nil, err
	}

	refresh := s.claims(sub, now, s.refreshExpiration, TokenTypeRefresh)
	refresh.ContactID = contactID
	refresh.Username = sub.Username
	refresh.RefreshCount = refreshCount
	refreshToken, err := sign(refresh, s.refreshSecret)
	if err != nil {
		return nil, err
	}

	return &TokenPair{
		AccessToken:           accessToken,
		RefreshToken:          refreshToken,
		AccessTokenExpiresAt:  now.Add(s.accessExpiration),
		RefreshTokenExpiresAt: now.Add(s.refreshExpiration),
		TokenType:             "Bearer",
	}, nil
}

func (s *JWTService) claims(sub Subject, now time.Time, ttl time.Duration, tt TokenType) *Claims {
	return &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    s.issuer,
			Subject:   sub.UserID.String(),
			Audience:  jwt.ClaimStrings{string(s.realm)},
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			NotBefore: jwt.NewNumericDate(now),
			IssuedAt:  jwt.NewNumericDate(now),
		},
		Realm:     s.realm,
		TenantID:  sub.TenantID.String(),
		UserID:    sub.UserID.String(),
		TokenType: tt,
	}
}

func sign(claims *Claims, secret []byte) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

func (s *JWTService) validate(tokenString string, secret []byte, expected TokenType) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return secret, nil
	})
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, ErrExpiredToken
		case errors.Is(err, jwt.ErrTokenNotValidYet):
			return nil, ErrTokenNotYetValid
		}
		return nil, ErrInvalidToken
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidClaims
	}
	if claims.Realm != s.realm {
		return nil, ErrWrongRealm
	}
	if claims.TokenType != expected {
		return nil, ErrInvalidTokenType
	}
	if claims.TenantID == "" {
		return nil, ErrMissingTenantID
	}
	if claims.UserID == "" || (s.realm == RealmPortal && claims.ContactID == "") {
		return nil, ErrMissingSubject
	}
	return claims, nil
}

func (c *Claims) subject() (Subject, error) {
	tenantID, err := uuid.Parse(c.TenantID)
	if err != nil {
		return Subject{}, ErrInvalidClaims
	}
	userID, err := uuid.Parse(c.UserID)
	if err != nil {
		return Subject{}, ErrInvalidClaims
	}
	sub := Subject{TenantID: tenantID, UserID: userID, Username: c.Username}
	if c.ContactID != "" {
		if sub.ContactID, err = uuid.Parse(c.ContactID); err != nil {
			return Subject{}, ErrInvalidClaims
		}
	}
	return sub, nil
}

// TenantUUID parses the tenant claim
func (c *Claims) TenantUUID() (uuid.UUID, error) {
	return uuid.Parse(c.TenantID)
}

// UserUUID parses the user claim
func (c *Claims) UserUUID() (uuid.UUID, error) {
	return uuid.Parse(c.UserID)
}

// ContactUUID parses the contact claim of portal tokens
func (c *Claims) ContactUUID() (uuid.UUID, error) {
	return uuid.Parse(c.ContactID)
}

// RoleUUIDs parses the role claims
func (c *Claims) RoleUUIDs() ([]uuid.UUID, error) {
	ids := make([]uuid.UUID, 0, len(c.RoleIDs))
	for _, raw := range c.RoleIDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// HasPermission reports whether the token grants permission
func (c *Claims) HasPermission(permission string) bool {
	for _, p := range c.Permissions {
		if p == permission {
			return true
		}
	}
	return false
}

// HasAnyPermission reports whether the token grants at least one permission
func (c *Claims) HasAnyPermission(permissions ...string) bool {
	for _, p := range permissions {
		if c.HasPermission(p) {
			return true
		}
	}
	return false
}

// IssuedAtTime returns iat
func (c *Claims) IssuedAtTime() time.Time {
	if c.IssuedAt != nil {
		return c.IssuedAt.Time
	}
	return time.Time{}
}

// RemainingTTL returns the time until expiry, or zero
func (c *Claims) RemainingTTL() time.Duration {
	if c.ExpiresAt == nil {
		return 0
	}
	if d := time.Until(c.ExpiresAt.Time); d > 0 {
		return d
	}
	return 0
}
