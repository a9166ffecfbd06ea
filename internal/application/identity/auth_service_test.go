package identity

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/taxcrm/backend/internal/domain/identity"
	"github.com/taxcrm/backend/internal/domain/shared"
	"github.com/taxcrm/backend/internal/infrastructure/auth"
	"github.com/taxcrm/backend/internal/infrastructure/config"
	"go.uber.org/zap"
)

type authFixture struct {
	tenants   *MockTenantRepository
	users     *MockUserRepository
	roles     *MockRoleRepository
	jwt       *auth.JWTService
	blacklist *auth.InMemoryTokenBlacklist
	service   *AuthService
	tenant    *identity.Tenant
	user      *identity.User
	role      identity.Role
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()
	tenant, err := identity.NewTenant("Acme Tax", "")
	require.NoError(t, err)
	user, err := identity.NewUser(tenant.ID, "jdoe", "jdoe@acme.test", "secret123")
	require.NoError(t, err)
	role, err := identity.NewRole(tenant.ID, "PREPARER", "Preparer", []string{identity.PermContactRead, identity.PermCaseWrite})
	require.NoError(t, err)
	user.SetRoles([]uuid.UUID{role.ID})

	f := &authFixture{
		tenants:   new(MockTenantRepository),
		users:     new(MockUserRepository),
		roles:     new(MockRoleRepository),
		blacklist: auth.NewInMemoryTokenBlacklist(),
		tenant:    tenant,
		user:      user,
		role:      *role,
	}
	f.jwt = auth.NewJWTService(config.JWTConfig{
		Secret:                 "staff-secret-for-tests-0123456789abcdef",
		AccessTokenExpiration:  15 * time.Minute,
		RefreshTokenExpiration: time.Hour,
		Issuer:                 "taxcrm-test",
		MaxRefreshCount:        5,
	}, auth.RealmStaff)
	f.service = NewAuthService(f.tenants, f.users, f.roles, f.jwt, f.blacklist, nil, zap.NewNop())
	return f
}

func TestAuthService_Login(t *testing.T) {
	ctx := context.Background()

	t.Run("success embeds permissions", func(t *testing.T) {
		f := newAuthFixture(t)
		f.tenants.On("FindBySlug", ctx, "acme-tax").Return(f.tenant, nil)
		f.users.On("FindByUsername", ctx, f.tenant.ID, "jdoe").Return(f.user, nil)
		f.roles.On("FindByIDs", ctx, f.tenant.ID, []uuid.UUID{f.role.ID}).Return([]identity.Role{f.role}, nil)
		f.users.On("Save", ctx, f.user).Return(nil)

		result, err := f.service.Login(ctx, LoginInput{TenantSlug: "acme-tax", Username: "jdoe", Password: "secret123", IP: "10.0.0.1"})
		require.NoError(t, err)
		assert.Equal(t, []string{identity.PermCaseWrite, identity.PermContactRead}, result.User.Permissions)

		claims, err := f.jwt.ValidateAccessToken(result.AccessToken)
		require.NoError(t, err)
		assert.True(t, claims.HasPermission(identity.PermContactRead))
		assert.Equal(t, "10.0.0.1", f.user.LastLoginIP)
		f.users.AssertExpectations(t)
	})

	t.Run("unknown tenant looks like bad credentials", func(t *testing.T) {
		f := newAuthFixture(t)
		f.tenants.On("FindBySlug", ctx, "nope").Return(nil, shared.ErrNotFound)

		_, err := f.service.Login(ctx, LoginInput{TenantSlug: "nope", Username: "jdoe", Password: "secret123"})
		assert.ErrorIs(t, err, errInvalidCredentials)
	})

	t.Run("suspended tenant", func(t *testing.T) {
		f := newAuthFixture(t)
		require.NoError(t, f.tenant.Suspend())
		f.tenants.On("FindBySlug", ctx, "acme-tax").Return(f.tenant, nil)

		_, err := f.service.Login(ctx, LoginInput{TenantSlug: "acme-tax", Username: "jdoe", Password: "secret123"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "suspended")
	})

	t.Run("locks after repeated failures", func(t *testing.T) {
		f := newAuthFixture(t)
		f.tenants.On("FindBySlug", ctx, "acme-tax").Return(f.tenant, nil)
		f.users.On("FindByUsername", ctx, f.tenant.ID, "jdoe").Return(f.user, nil)
		f.users.On("Save", ctx, f.user).Return(nil)

		var err error
		for i := 0; i < identity.MaxFailedLogins; i++ {
			_, err = f.service.Login(ctx, LoginInput{TenantSlug: "acme-tax", Username: "jdoe", Password: "wrong-pass1"})
		}
		var derr *shared.DomainError
		require.ErrorAs(t, err, &derr)
		assert.Equal(t, "ACCOUNT_LOCKED", derr.Code)
		assert.True(t, f.user.IsLocked())

		_, err = f.service.Login(ctx, LoginInput{TenantSlug: "acme-tax", Username: "jdoe", Password: "secret123"})
		require.ErrorAs(t, err, &derr)
		assert.Equal(t, "ACCOUNT_LOCKED", derr.Code)
	})
}

func TestAuthService_RefreshToken(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture(t)

	pair, err := f.jwt.GenerateTokenPair(auth.Subject{TenantID: f.tenant.ID, UserID: f.user.ID, Username: "jdoe"})
	require.NoError(t, err)

	manager, err := identity.NewRole(f.tenant.ID, "MANAGER", "Manager", []string{identity.PermBillingWrite})
	require.NoError(t, err)
	f.user.SetRoles([]uuid.UUID{manager.ID})
	f.users.On("FindByID", ctx, f.tenant.ID, f.user.ID).Return(f.user, nil)
	f.roles.On("FindByIDs", ctx, f.tenant.ID, []uuid.UUID{manager.ID}).Return([]identity.Role{*manager}, nil)

	refreshed, err := f.service.RefreshToken(ctx, pair.RefreshToken)
	require.NoError(t, err)

	claims, err := f.jwt.ValidateAccessToken(refreshed.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, []string{identity.PermBillingWrite}, claims.Permissions, "role changes apply on refresh")

	t.Run("revoked sessions cannot refresh", func(t *testing.T) {
		require.NoError(t, f.service.Logout(ctx, LogoutInput{UserID: f.user.ID, AllSessions: true}))
		_, err := f.service.RefreshToken(ctx, refreshed.RefreshToken)
		var derr *shared.DomainError
		require.ErrorAs(t, err, &derr)
		assert.Equal(t, "TOKEN_REVOKED", derr.Code)
	})

	t.Run("access token is not a refresh token", func(t *testing.T) {
		_, err := f.service.RefreshToken(ctx, pair.AccessToken)
		var derr *shared.DomainError
		require.ErrorAs(t, err, &derr)
		assert.Equal(t, "TOKEN_INVALID", derr.Code)
	})
}

func TestAuthService_Logout(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture(t)

	require.NoError(t, f.service.Logout(ctx, LogoutInput{UserID: f.user.ID, TokenJTI: "jti-1", RemainingTTL: time.Minute}))
	revoked, err := f.blacklist.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.True(t, revoked)
}

func TestAuthService_GetCurrentUser(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture(t)
	f.users.On("FindByID", ctx, f.tenant.ID, f.user.ID).Return(f.user, nil)
	f.roles.On("FindByIDs", ctx, f.tenant.ID, mock.Anything).Return([]identity.Role{f.role}, nil)

	info, err := f.service.GetCurrentUser(ctx, f.tenant.ID, f.user.ID)
	require.NoError(t, err)
	assert.Equal(t, "jdoe", info.DisplayName)
	assert.Len(t, info.Permissions, 2)
}
