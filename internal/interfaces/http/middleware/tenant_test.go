package middleware

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/taxcrm/backend/internal/infrastructure/auth"
)

type countingValidator struct {
	active map[uuid.UUID]bool
	err    error
	calls  int
}

func (v *countingValidator) IsTenantActive(_ context.Context, tenantID uuid.UUID) (bool, error) {
	v.calls++
	if v.err != nil {
		return false, v.err
	}
	return v.active[tenantID], nil
}

func guardedRouter(jwtService *auth.JWTService, cfg TenantGuardConfig) *gin.Engine {
	router := gin.New()
	router.Use(StaffAuth(AuthConfig{JWTService: jwtService}), TenantGuard(cfg))
	router.GET("/test", func(c *gin.Context) { c.Status(http.StatusOK) })
	return router
}

func tokenForTenant(t *testing.T, jwtService *auth.JWTService, tenantID uuid.UUID) string {
	t.Helper()
	pair, err := jwtService.GenerateTokenPair(auth.Subject{TenantID: tenantID, UserID: uuid.New()})
	require.NoError(t, err)
	return pair.AccessToken
}

func TestTenantGuard(t *testing.T) {
	jwtService := newTestJWTService(auth.RealmStaff)
	active, suspended := uuid.New(), uuid.New()
	validator := &countingValidator{active: map[uuid.UUID]bool{active: true, suspended: false}}
	router := guardedRouter(jwtService, TenantGuardConfig{Validator: validator})

	rec := serveWithToken(router, "/test", tokenForTenant(t, jwtService, active))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = serveWithToken(router, "/test", tokenForTenant(t, jwtService, suspended))
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "TENANT_SUSPENDED", errorCode(t, rec))
}

func TestTenantGuard_CachesStatus(t *testing.T) {
	jwtService := newTestJWTService(auth.RealmStaff)
	tenantID := uuid.New()
	validator := &countingValidator{active: map[uuid.UUID]bool{tenantID: true}}
	router := guardedRouter(jwtService, DefaultTenantGuardConfig(validator))
	token := tokenForTenant(t, jwtService, tenantID)

	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, serveWithToken(router, "/test", token).Code)
	}
	assert.Equal(t, 1, validator.calls)
}

func TestTenantGuard_ValidatorError(t *testing.T) {
	jwtService := newTestJWTService(auth.RealmStaff)
	validator := &countingValidator{err: errors.New("db down")}
	router := guardedRouter(jwtService, TenantGuardConfig{Validator: validator, CacheTTL: time.Minute})

	rec := serveWithToken(router, "/test", tokenForTenant(t, jwtService, uuid.New()))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestTenantGuard_Unauthenticated(t *testing.T) {
	validator := &countingValidator{}
	router := gin.New()
	router.Use(TenantGuard(TenantGuardConfig{Validator: validator}))
	router.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })

	assert.Equal(t, http.StatusOK, serveWithToken(router, "/health", "").Code)
	assert.Zero(t, validator.calls)
}

func TestTenantValidatorFunc(t *testing.T) {
	want := uuid.New()
	v := TenantValidatorFunc(func(_ context.Context, id uuid.UUID) (bool, error) { return id == want, nil })
	ok, err := v.IsTenantActive(context.Background(), want)
	require.NoError(t, err)
	assert.True(t, ok)
}
