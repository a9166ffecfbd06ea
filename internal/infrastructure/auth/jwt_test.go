package auth

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/taxcrm/backend/internal/infrastructure/config"
)

func testConfig(secret string) config.JWTConfig {
	return config.JWTConfig{
		Secret:                 secret,
		AccessTokenExpiration:  15 * time.Minute,
		RefreshTokenExpiration: time.Hour,
		Issuer:                 "taxcrm-test",
		MaxRefreshCount:        2,
	}
}

func staffSubject() Subject {
	return Subject{
		TenantID:    uuid.New(),
		UserID:      uuid.New(),
		Username:    "preparer",
		RoleIDs:     []uuid.UUID{uuid.New()},
		Permissions: []string{"contact:read", "case:write"},
	}
}

func TestJWTService_StaffRoundTrip(t *testing.T) {
	svc := NewJWTService(testConfig(strings.Repeat("s", 32)), RealmStaff)
	sub := staffSubject()

	pair, err := svc.GenerateTokenPair(sub)
	require.NoError(t, err)
	assert.Equal(t, "Bearer", pair.TokenType)

	claims, err := svc.ValidateAccessToken(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, RealmStaff, claims.Realm)
	assert.Equal(t, sub.TenantID.String(), claims.TenantID)
	assert.True(t, claims.HasPermission("case:write"))
	assert.False(t, claims.HasPermission("backup:global"))
	assert.True(t, claims.HasAnyPermission("x", "contact:read"))
	roles, err := claims.RoleUUIDs()
	require.NoError(t, err)
	assert.Equal(t, sub.RoleIDs, roles)
	assert.Greater(t, claims.RemainingTTL(), 14*time.Minute)

	_, err = svc.ValidateRefreshToken(pair.AccessToken)
	assert.Error(t, err, "access token is not a refresh token")
	_, err = svc.ValidateAccessToken(pair.RefreshToken)
	assert.Error(t, err)
}

func TestJWTService_RealmSeparation(t *testing.T) {
	staff := NewJWTService(testConfig(strings.Repeat("s", 32)), RealmStaff)
	portal := NewJWTService(testConfig(strings.Repeat("p", 32)), RealmPortal)
	// same secret on both sides still rejects the other realm
	portalSameSecret := NewJWTService(testConfig(strings.Repeat("s", 32)), RealmPortal)

	staffPair, err := staff.GenerateTokenPair(staffSubject())
	require.NoError(t, err)

	_, err = portal.ValidateAccessToken(staffPair.AccessToken)
	assert.ErrorIs(t, err, ErrInvalidToken)
	_, err = portalSameSecret.ValidateAccessToken(staffPair.AccessToken)
	assert.ErrorIs(t, err, ErrWrongRealm)

	contactID := uuid.New()
	portalPair, err := portal.GenerateTokenPair(Subject{TenantID: uuid.New(), UserID: uuid.New(), ContactID: contactID})
	require.NoError(t, err)
	claims, err := portal.ValidateAccessToken(portalPair.AccessToken)
	require.NoError(t, err)
	got, err := claims.ContactUUID()
	require.NoError(t, err)
	assert.Equal(t, contactID, got)

	_, err = staff.ValidateAccessToken(portalPair.AccessToken)
	assert.Error(t, err)
}

func TestJWTService_PortalRequiresContact(t *testing.T) {
	portal := NewJWTService(testConfig(strings.Repeat("p", 32)), RealmPortal)
	pair, err := portal.GenerateTokenPair(Subject{TenantID: uuid.New(), UserID: uuid.New()})
	require.NoError(t, err)
	_, err = portal.ValidateAccessToken(pair.AccessToken)
	assert.ErrorIs(t, err, ErrMissingSubject)
}

func TestJWTService_Refresh(t *testing.T) {
	svc := NewJWTService(testConfig(strings.Repeat("s", 32)), RealmStaff)
	sub := staffSubject()
	pair, err := svc.GenerateTokenPair(sub)
	require.NoError(t, err)

	newRole := uuid.New()
	refreshed, old, err := svc.RefreshTokenPair(pair.RefreshToken, []string{"audit:read"}, []uuid.UUID{newRole})
	require.NoError(t, err)
	assert.Equal(t, 0, old.RefreshCount)

	claims, err := svc.ValidateAccessToken(refreshed.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, []string{"audit:read"}, claims.Permissions)
	assert.Equal(t, []string{newRole.String()}, claims.RoleIDs)
	assert.Equal(t, sub.Username, claims.Username)

	second, _, err := svc.RefreshTokenPair(refreshed.RefreshToken, nil, nil)
	require.NoError(t, err)
	_, _, err = svc.RefreshTokenPair(second.RefreshToken, nil, nil)
	assert.ErrorIs(t, err, ErrMaxRefreshExceeded)
}

func TestJWTService_Expired(t *testing.T) {
	cfg := testConfig(strings.Repeat("s", 32))
	cfg.AccessTokenExpiration = -time.Minute
	svc := NewJWTService(cfg, RealmStaff)
	pair, err := svc.GenerateTokenPair(staffSubject())
	require.NoError(t, err)
	_, err = svc.ValidateAccessToken(pair.AccessToken)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestInMemoryTokenBlacklist(t *testing.T) {
	ctx := context.Background()
	bl := NewInMemoryTokenBlacklist()

	require.NoError(t, bl.Revoke(ctx, "jti-1", time.Hour))
	revoked, err := bl.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.True(t, revoked)

	revoked, err = bl.IsRevoked(ctx, "jti-2")
	require.NoError(t, err)
	assert.False(t, revoked)

	require.NoError(t, bl.Revoke(ctx, "short", time.Millisecond))
	time.Sleep(5 * time.Millisecond)
	revoked, err = bl.IsRevoked(ctx, "short")
	require.NoError(t, err)
	assert.False(t, revoked)

	issued := time.Now().Add(-time.Minute)
	require.NoError(t, bl.RevokeSubject(ctx, "user-1", time.Hour))
	revoked, err = bl.IsSubjectRevoked(ctx, "user-1", issued)
	require.NoError(t, err)
	assert.True(t, revoked)
	revoked, err = bl.IsSubjectRevoked(ctx, "user-1", time.Now().Add(time.Minute))
	require.NoError(t, err)
	assert.False(t, revoked)
}
