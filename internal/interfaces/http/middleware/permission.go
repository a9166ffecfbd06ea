package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/taxcrm/backend/internal/infrastructure/auth"
	"github.com/taxcrm/backend/internal/infrastructure/logger"
	"go.uber.org/zap"
)

// RequirePermission admits staff callers whose token grants at least one of
// perms. Portal tokens never pass, whatever they carry.
func RequirePermission(perms ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := GetClaims(c)
		if claims == nil || claims.Realm != auth.RealmStaff {
			denyPermission(c, perms, "")
			return
		}
		if !claims.HasAnyPermission(perms...) {
			denyPermission(c, perms, claims.UserID)
			return
		}
		c.Next()
	}
}

// HasPermission reports whether the staff caller holds permission
func HasPermission(c *gin.Context, permission string) bool {
	claims := GetClaims(c)
	return claims != nil && claims.Realm == auth.RealmStaff && claims.HasPermission(permission)
}

func denyPermission(c *gin.Context, perms []string, userID string) {
	logger.GetGinLogger(c).Warn("Permission denied",
		zap.String("user_id", userID),
		zap.Strings("required_any", perms),
		zap.String("route", c.FullPath()),
	)
	c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
		"success": false,
		"error": gin.H{
			"code":       "ERR_FORBIDDEN",
			"message":    "Access denied: insufficient permissions",
			"request_id": c.GetString("request_id"),
		},
	})
}
