//go:build integration

package integration

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	identityapp "github.com/taxcrm/backend/internal/application/identity"
	"github.com/taxcrm/backend/internal/domain/identity"
	"github.com/taxcrm/backend/internal/domain/shared"
	"github.com/taxcrm/backend/internal/infrastructure/auth"
	"github.com/taxcrm/backend/internal/infrastructure/config"
	"github.com/taxcrm/backend/internal/infrastructure/persistence"
	"github.com/taxcrm/backend/tests/testutil"
	"go.uber.org/zap"
)

func TestAuth_TenantOnboardingAndLogin(t *testing.T) {
	skipShort(t)
	tdb := NewTestDB(t)
	ctx := context.Background()
	log := zap.NewNop()

	tenantRepo := persistence.NewGormTenantRepository(tdb.DB)
	userRepo := persistence.NewGormUserRepository(tdb.DB)
	roleRepo := persistence.NewGormRoleRepository(tdb.DB)
	events := testutil.NewEventRecorder()
	blacklist := auth.NewInMemoryTokenBlacklist()
	jwtService := auth.NewJWTService(config.JWTConfig{
		Secret:                 "integration-secret-integration-secret",
		AccessTokenExpiration:  15 * time.Minute,
		RefreshTokenExpiration: time.Hour,
		Issuer:                 "taxcrm-test",
		MaxRefreshCount:        3,
	}, auth.RealmStaff)

	tenants := identityapp.NewTenantService(tenantRepo, roleRepo, userRepo, events, log)
	authService := identityapp.NewAuthService(tenantRepo, userRepo, roleRepo, jwtService, blacklist, events, log)

	tenant, err := tenants.Create(ctx, identityapp.CreateTenantInput{
		Name:          "Harbor Tax Group",
		ContactEmail:  "office@harbortax.example",
		AdminUsername: "owner",
		AdminEmail:    "owner@harbortax.example",
		AdminPassword: "Harbor-Pass-2025!",
	})
	require.NoError(t, err)
	assert.Equal(t, "harbor-tax-group", tenant.Slug)
	assert.NotEmpty(t, events.Events())

	_, err = tenants.Create(ctx, identityapp.CreateTenantInput{Name: "Harbor Tax Group"})
	var domainErr *shared.DomainError
	require.True(t, errors.As(err, &domainErr))
	assert.Equal(t, "TENANT_EXISTS", domainErr.Code)

	t.Run("wrong password is rejected", func(t *testing.T) {
		_, err := authService.Login(ctx, identityapp.LoginInput{TenantSlug: tenant.Slug, Username: "owner", Password: "nope"})
		require.True(t, errors.As(err, &domainErr))
		assert.Equal(t, "INVALID_CREDENTIALS", domainErr.Code)
	})

	t.Run("unknown tenant is rejected", func(t *testing.T) {
		_, err := authService.Login(ctx, identityapp.LoginInput{TenantSlug: "missing", Username: "owner", Password: "Harbor-Pass-2025!"})
		require.True(t, errors.As(err, &domainErr))
		assert.Equal(t, "INVALID_CREDENTIALS", domainErr.Code)
	})

	t.Run("admin login carries admin permissions", func(t *testing.T) {
		result, err := authService.Login(ctx, identityapp.LoginInput{
			TenantSlug: tenant.Slug,
			Username:   "owner",
			Password:   "Harbor-Pass-2025!",
			IP:         "203.0.113.7",
		})
		require.NoError(t, err)
		assert.Equal(t, tenant.ID, result.User.TenantID)
		assert.Contains(t, result.User.Permissions, identity.PermBackupManage)
		assert.Contains(t, result.User.Permissions, identity.PermContactRead)

		claims, err := jwtService.ValidateAccessToken(result.AccessToken)
		require.NoError(t, err)
		assert.Equal(t, tenant.ID.String(), claims.TenantID)
		assert.Equal(t, auth.RealmStaff, claims.Realm)

		refreshed, err := authService.RefreshToken(ctx, result.RefreshToken)
		require.NoError(t, err)
		assert.NotEmpty(t, refreshed.AccessToken)

		stored, err := userRepo.FindByUsername(ctx, tenant.ID, "owner")
		require.NoError(t, err)
		require.NotNil(t, stored.LastLoginAt)
	})

	t.Run("suspended tenant cannot log in", func(t *testing.T) {
		_, err := tenants.Suspend(ctx, tenant.ID)
		require.NoError(t, err)

		_, err = authService.Login(ctx, identityapp.LoginInput{TenantSlug: tenant.Slug, Username: "owner", Password: "Harbor-Pass-2025!"})
		require.True(t, errors.As(err, &domainErr))
		assert.Equal(t, "TENANT_SUSPENDED", domainErr.Code)
	})
}
