package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/zap"
)

// TenantValidator reports whether a tenant may still use the API
type TenantValidator interface {
	IsTenantActive(ctx context.Context, tenantID uuid.UUID) (bool, error)
}

// TenantValidatorFunc adapts a function to TenantValidator
type TenantValidatorFunc func(ctx context.Context, tenantID uuid.UUID) (bool, error)

func (f TenantValidatorFunc) IsTenantActive(ctx context.Context, tenantID uuid.UUID) (bool, error) {
	return f(ctx, tenantID)
}

// TenantGuardConfig holds configuration for the active-tenant guard
type TenantGuardConfig struct {
	Validator TenantValidator
	// CacheTTL bounds how long a status answer is reused; zero disables caching
	CacheTTL  time.Duration
	CacheSize int
	Logger    *zap.Logger
}

// DefaultTenantGuardConfig returns the default guard configuration
func DefaultTenantGuardConfig(v TenantValidator) TenantGuardConfig {
	return TenantGuardConfig{
		Validator: v,
		CacheTTL:  30 * time.Second,
		CacheSize: 4096,
	}
}

// TenantGuard rejects authenticated requests of suspended tenants.
// It must run after StaffAuth or PortalAuth.
func TenantGuard(cfg TenantGuardConfig) gin.HandlerFunc {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	var statuses *expirable.LRU[uuid.UUID, bool]
	if cfg.CacheTTL > 0 {
		size := cfg.CacheSize
		if size <= 0 {
			size = 4096
		}
		statuses = expirable.NewLRU[uuid.UUID, bool](size, nil, cfg.CacheTTL)
	}

	return func(c *gin.Context) {
		claims := GetClaims(c)
		if claims == nil || cfg.Validator == nil {
			c.Next()
			return
		}
		tenantID, err := claims.TenantUUID()
		if err != nil {
			abortAuth(c, log, err, "Invalid tenant claim")
			return
		}

		active, cached := false, false
		if statuses != nil {
			active, cached = statuses.Get(tenantID)
		}
		if !cached {
			active, err = cfg.Validator.IsTenantActive(c.Request.Context(), tenantID)
			if err != nil {
				log.Error("Failed to check tenant status", zap.String("tenant_id", tenantID.String()), zap.Error(err))
				c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{
					"success": false,
					"error": gin.H{
						"code":       "ERR_UNAVAILABLE",
						"message":    "Tenant status is temporarily unavailable",
						"request_id": c.GetString("request_id"),
					},
				})
				return
			}
			if statuses != nil {
				statuses.Add(tenantID, active)
			}
		}

		if !active {
			log.Warn("Request from suspended tenant rejected",
				zap.String("tenant_id", tenantID.String()),
				zap.String("path", c.Request.URL.Path),
			)
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"success": false,
				"error": gin.H{
					"code":       "TENANT_SUSPENDED",
					"message":    "Tenant is suspended",
					"request_id": c.GetString("request_id"),
				},
			})
			return
		}

		c.Next()
	}
}
