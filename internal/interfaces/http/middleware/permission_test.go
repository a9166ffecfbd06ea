package middleware

import (
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/taxcrm/backend/internal/infrastructure/auth"
)

func tokenWithPermissions(t *testing.T, jwtService *auth.JWTService, permissions ...string) string {
	t.Helper()
	pair, err := jwtService.GenerateTokenPair(auth.Subject{
		TenantID:    uuid.New(),
		UserID:      uuid.New(),
		Username:    "staff",
		Permissions: permissions,
	})
	require.NoError(t, err)
	return pair.AccessToken
}

func setupRouterWithAuth(jwtService *auth.JWTService) *gin.Engine {
	router := gin.New()
	router.Use(StaffAuth(AuthConfig{JWTService: jwtService}))
	return router
}

func TestRequirePermission(t *testing.T) {
	jwtService := newTestJWTService(auth.RealmStaff)
	router := setupRouterWithAuth(jwtService)
	router.GET("/contacts", RequirePermission("contact:read"), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	tests := []struct {
		name           string
		permissions    []string
		expectedStatus int
	}{
		{"has permission", []string{"contact:read", "contact:write"}, http.StatusOK},
		{"lacks permission", []string{"billing:read"}, http.StatusForbidden},
		{"no permissions", nil, http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serveWithToken(router, "/contacts", tokenWithPermissions(t, jwtService, tt.permissions...))
			assert.Equal(t, tt.expectedStatus, rec.Code)
			if tt.expectedStatus == http.StatusForbidden {
				assert.Equal(t, "ERR_FORBIDDEN", errorCode(t, rec))
			}
		})
	}
}

func TestRequirePermission_AnyOf(t *testing.T) {
	jwtService := newTestJWTService(auth.RealmStaff)
	router := setupRouterWithAuth(jwtService)
	router.GET("/backups", RequirePermission("backup:manage", "backup:global"),
		func(c *gin.Context) { c.Status(http.StatusOK) })

	assert.Equal(t, http.StatusOK, serveWithToken(router, "/backups", tokenWithPermissions(t, jwtService, "backup:global")).Code)
	assert.Equal(t, http.StatusOK, serveWithToken(router, "/backups", tokenWithPermissions(t, jwtService, "backup:manage")).Code)
	assert.Equal(t, http.StatusForbidden, serveWithToken(router, "/backups", tokenWithPermissions(t, jwtService, "case:read")).Code)
}

func TestRequirePermission_WithoutAuth(t *testing.T) {
	router := gin.New()
	router.GET("/contacts", RequirePermission("contact:read"), func(c *gin.Context) { c.Status(http.StatusOK) })

	assert.Equal(t, http.StatusForbidden, serveWithToken(router, "/contacts", "").Code)
}

func TestRequirePermission_RejectsPortalClaims(t *testing.T) {
	router := gin.New()
	router.Use(func(c *gin.Context) {
		c.Set(ClaimsKey, &auth.Claims{Realm: auth.RealmPortal, Permissions: []string{"document:read"}})
	})
	router.GET("/documents", RequirePermission("document:read"), func(c *gin.Context) { c.Status(http.StatusOK) })
	router.GET("/check", func(c *gin.Context) {
		assert.False(t, HasPermission(c, "document:read"))
		c.Status(http.StatusOK)
	})

	rec := serveWithToken(router, "/documents", "")
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "ERR_FORBIDDEN", errorCode(t, rec))
	assert.Equal(t, http.StatusOK, serveWithToken(router, "/check", "").Code)
}

func TestHasPermission(t *testing.T) {
	jwtService := newTestJWTService(auth.RealmStaff)
	router := setupRouterWithAuth(jwtService)
	router.GET("/check", func(c *gin.Context) {
		assert.True(t, HasPermission(c, "workflow:approve"))
		assert.False(t, HasPermission(c, "workflow:manage"))
		c.Status(http.StatusOK)
	})

	assert.Equal(t, http.StatusOK, serveWithToken(router, "/check", tokenWithPermissions(t, jwtService, "workflow:approve")).Code)
}
