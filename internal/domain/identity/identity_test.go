package identity

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTenant(t *testing.T) {
	t.Run("derives slug from name", func(t *testing.T) {
		tenant, err := NewTenant("Smith & Jones CPA", "office@smithjones.com")
		require.NoError(t, err)
		assert.Equal(t, "smith-and-jones-cpa", tenant.Slug)
		assert.True(t, tenant.IsActive())
		assert.Equal(t, DefaultBackupChangeThreshold, tenant.BackupChangeThreshold)
		assert.Len(t, tenant.GetDomainEvents(), 1)
	})

	t.Run("rejects empty name", func(t *testing.T) {
		_, err := NewTenant("   ", "")
		require.Error(t, err)
	})

	t.Run("suspend twice fails", func(t *testing.T) {
		tenant, err := NewTenant("Acme Tax", "")
		require.NoError(t, err)
		require.NoError(t, tenant.Suspend())
		assert.Error(t, tenant.Suspend())
		require.NoError(t, tenant.Activate())
		assert.True(t, tenant.IsActive())
	})
}

func TestNewDepartment(t *testing.T) {
	tenantID := uuid.New()

	d, err := NewDepartment(tenantID, " corporate ", "Corporate Returns")
	require.NoError(t, err)
	assert.Equal(t, "CORPORATE", d.Code)
	assert.True(t, d.Active)

	_, err = NewDepartment(tenantID, "bad code!", "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Department code")
}

func TestRole_SetPermissions(t *testing.T) {
	r, err := NewRole(uuid.New(), "ops", "Operations", []string{PermCaseRead, PermCaseRead, "CONTACT:READ"})
	require.NoError(t, err)
	assert.Equal(t, []string{PermCaseRead, PermContactRead}, r.Permissions)
	assert.True(t, r.HasPermission(PermContactRead))

	err = r.SetPermissions([]string{"nope:nope"})
	assert.Error(t, err)
}

func TestDefaultRoles(t *testing.T) {
	roles, err := DefaultRoles(uuid.New())
	require.NoError(t, err)
	require.Len(t, roles, 4)
	for _, r := range roles {
		assert.True(t, r.IsSystem)
		assert.False(t, r.HasPermission(PermBackupGlobal))
	}
}

func TestUser_LoginLockout(t *testing.T) {
	u, err := NewUser(uuid.New(), "Preparer1", "p1@example.com", "secret123")
	require.NoError(t, err)
	assert.Equal(t, "preparer1", u.Username)
	assert.True(t, u.VerifyPassword("secret123"))
	assert.False(t, u.VerifyPassword("wrong"))

	for i := 0; i < MaxFailedLogins-1; i++ {
		assert.False(t, u.RecordLoginFailure())
	}
	assert.True(t, u.RecordLoginFailure())
	assert.True(t, u.IsLocked())
	assert.False(t, u.CanLogin())

	expired := time.Now().Add(-time.Minute)
	u.LockedUntil = &expired
	assert.False(t, u.IsLocked())
	assert.True(t, u.CanLogin())

	u.RecordLoginSuccess("10.0.0.1")
	assert.Equal(t, UserStatusActive, u.Status)
	assert.Zero(t, u.FailedAttempts)
}

func TestUser_ChangePassword(t *testing.T) {
	u, err := NewUser(uuid.New(), "reviewer", "r@example.com", "secret123")
	require.NoError(t, err)

	assert.Error(t, u.ChangePassword("wrong", "newsecret1"))
	require.NoError(t, u.ChangePassword("secret123", "newsecret1"))
	assert.True(t, u.VerifyPassword("newsecret1"))

	assert.Error(t, u.SetPassword("short"))
}

func TestGeneratePassword(t *testing.T) {
	p, err := GeneratePassword(12)
	require.NoError(t, err)
	assert.Len(t, p, 12)
	assert.NoError(t, ValidatePassword(p))
}
