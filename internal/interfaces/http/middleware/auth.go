package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/taxcrm/backend/internal/infrastructure/auth"
	"github.com/taxcrm/backend/internal/infrastructure/logger"
	"go.uber.org/zap"
)

// Context keys set by the auth middleware
const (
	ClaimsKey     = "auth_claims"
	AuthHeaderKey = "Authorization"
	BearerPrefix  = "Bearer "
)

// AuthConfig configures one realm's authentication middleware
type AuthConfig struct {
	// JWTService validates tokens; its realm decides which tokens are accepted
	JWTService *auth.JWTService
	// Blacklist is optional; revoked tokens and subjects are rejected when set
	Blacklist auth.TokenBlacklist
	// SkipPaths are exact paths served without a token
	SkipPaths []string
	Logger    *zap.Logger
}

// StaffAuth authenticates staff access tokens
func StaffAuth(cfg AuthConfig) gin.HandlerFunc {
	return authenticate(cfg, logger.ActorStaff)
}

// PortalAuth authenticates client portal access tokens
func PortalAuth(cfg AuthConfig) gin.HandlerFunc {
	return authenticate(cfg, logger.ActorPortal)
}

func authenticate(cfg AuthConfig, actorKind string) gin.HandlerFunc {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	skip := make(map[string]struct{}, len(cfg.SkipPaths))
	for _, p := range cfg.SkipPaths {
		skip[p] = struct{}{}
	}

	return func(c *gin.Context) {
		if _, ok := skip[c.Request.URL.Path]; ok {
			c.Next()
			return
		}

		header := c.GetHeader(AuthHeaderKey)
		if header == "" {
			abortAuth(c, log, auth.ErrInvalidToken, "Missing authorization header")
			return
		}
		if !strings.HasPrefix(header, BearerPrefix) {
			abortAuth(c, log, auth.ErrInvalidToken, "Invalid authorization header format")
			return
		}
		token := strings.TrimPrefix(header, BearerPrefix)
		if token == "" {
			abortAuth(c, log, auth.ErrInvalidToken, "Missing token")
			return
		}

		claims, err := cfg.JWTService.ValidateAccessToken(token)
		if err != nil {
			abortAuth(c, log, err, "Token validation failed")
			return
		}

		if cfg.Blacklist != nil {
			ctx := c.Request.Context()
			revoked, err := cfg.Blacklist.IsRevoked(ctx, claims.ID)
			if err != nil {
				// fail open: the blacklist store being down must not lock everyone out
				log.Error("Failed to check token blacklist", zap.String("jti", claims.ID), zap.Error(err))
			} else if revoked {
				abortAuth(c, log, auth.ErrTokenBlacklisted, "Token has been revoked")
				return
			}
			revoked, err = cfg.Blacklist.IsSubjectRevoked(ctx, claims.UserID, claims.IssuedAtTime())
			if err != nil {
				log.Error("Failed to check subject revocation", zap.String("user_id", claims.UserID), zap.Error(err))
			} else if revoked {
				abortAuth(c, log, auth.ErrTokenBlacklisted, "Session has been invalidated")
				return
			}
		}

		c.Set(ClaimsKey, claims)

		actorID := claims.UserID
		if actorKind == logger.ActorPortal {
			actorID = claims.ContactID
		}
		c.Request = c.Request.WithContext(logger.WithActor(c.Request.Context(), claims.TenantID, actorID, actorKind))

		c.Next()
	}
}

func abortAuth(c *gin.Context, log *zap.Logger, err error, message string) {
	log.Warn("Authentication failed",
		zap.Error(err),
		zap.String("message", message),
		zap.String("path", c.Request.URL.Path),
	)

	code, text := "ERR_UNAUTHORIZED", "Authentication required"
	switch {
	case errors.Is(err, auth.ErrExpiredToken):
		code, text = "ERR_TOKEN_EXPIRED", "Token has expired"
	case errors.Is(err, auth.ErrTokenBlacklisted):
		code, text = "ERR_TOKEN_INVALID", "Token has been revoked"
	case errors.Is(err, auth.ErrWrongRealm):
		code, text = "ERR_TOKEN_INVALID", "Token is not valid for this API"
	case errors.Is(err, auth.ErrInvalidToken), errors.Is(err, auth.ErrInvalidTokenType),
		errors.Is(err, auth.ErrInvalidClaims), errors.Is(err, auth.ErrTokenNotYetValid):
		code, text = "ERR_TOKEN_INVALID", "Invalid token"
	}

	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"success": false,
		"error": gin.H{
			"code":       code,
			"message":    text,
			"request_id": c.GetString("request_id"),
		},
	})
}

// GetClaims returns the validated claims, or nil on unauthenticated routes
func GetClaims(c *gin.Context) *auth.Claims {
	if v, ok := c.Get(ClaimsKey); ok {
		if claims, ok := v.(*auth.Claims); ok {
			return claims
		}
	}
	return nil
}

// Principal is the authenticated caller in parsed form
type Principal struct {
	TenantID    uuid.UUID
	UserID      uuid.UUID
	ContactID   uuid.UUID
	RoleIDs     []uuid.UUID
	Permissions []string
}

// GetPrincipal parses the claims of the current request
func GetPrincipal(c *gin.Context) (*Principal, error) {
	claims := GetClaims(c)
	if claims == nil {
		return nil, auth.ErrInvalidClaims
	}
	tenantID, err := claims.TenantUUID()
	if err != nil {
		return nil, auth.ErrInvalidClaims
	}
	userID, err := claims.UserUUID()
	if err != nil {
		return nil, auth.ErrInvalidClaims
	}
	p := &Principal{TenantID: tenantID, UserID: userID, Permissions: claims.Permissions}
	if claims.ContactID != "" {
		if p.ContactID, err = claims.ContactUUID(); err != nil {
			return nil, auth.ErrInvalidClaims
		}
	}
	if p.RoleIDs, err = claims.RoleUUIDs(); err != nil {
		return nil, auth.ErrInvalidClaims
	}
	return p, nil
}

// HasPermission reports whether the principal holds permission
func (p *Principal) HasPermission(permission string) bool {
	for _, perm := range p.Permissions {
		if perm == permission {
			return true
		}
	}
	return false
}
