package portal

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/taxcrm/backend/internal/domain/crm"
	"github.com/taxcrm/backend/internal/domain/identity"
	"github.com/taxcrm/backend/internal/domain/portal"
	"github.com/taxcrm/backend/internal/domain/shared"
	"github.com/taxcrm/backend/internal/infrastructure/auth"
	"github.com/taxcrm/backend/internal/infrastructure/config"
	"go.uber.org/zap"
)

var passwordLine = regexp.MustCompile(`Temporary password: (\S+)`)

type portalFixture struct {
	tenant   *identity.Tenant
	contact  *crm.Contact
	accesses *memAccessRepo
	mailer   *recordingMailer
	access   *AccessService
	auth     *AuthService
	staffJWT *auth.JWTService
}

func newPortalFixture(t *testing.T) *portalFixture {
	t.Helper()
	tenant, err := identity.NewTenant("Acme Tax Partners", "office@acmetax.example")
	require.NoError(t, err)
	contact, err := crm.NewContact(tenant.ID, "Jane", "Doe", "Jane@Example.com")
	require.NoError(t, err)

	f := &portalFixture{
		tenant:   tenant,
		contact:  contact,
		accesses: newMemAccessRepo(),
		mailer:   &recordingMailer{},
	}
	contacts := stubContacts{known: map[uuid.UUID]*crm.Contact{contact.ID: contact}}
	tenants := stubTenants{tenant: tenant}
	jwtCfg := config.JWTConfig{
		Secret:                 "portal-secret-portal-secret-portal-secret",
		AccessTokenExpiration:  15 * time.Minute,
		RefreshTokenExpiration: time.Hour,
		Issuer:                 "test",
		MaxRefreshCount:        3,
	}
	f.access = NewAccessService(f.accesses, contacts, tenants, f.mailer, "https://crm.example.com/", nil, zap.NewNop())
	f.auth = NewAuthService(tenants, f.accesses, contacts, auth.NewJWTService(jwtCfg, auth.RealmPortal), auth.NewInMemoryTokenBlacklist(), nil, zap.NewNop())
	jwtCfg.Secret = "staff-secret-staff-secret-staff-secret-x"
	f.staffJWT = auth.NewJWTService(jwtCfg, auth.RealmStaff)
	return f
}

func (f *portalFixture) invitedPassword(t *testing.T) string {
	t.Helper()
	m := passwordLine.FindStringSubmatch(f.mailer.last().Body)
	require.Len(t, m, 2)
	return m[1]
}

func TestAccessService_InviteAndLogin(t *testing.T) {
	ctx := context.Background()
	f := newPortalFixture(t)

	dto, err := f.access.Invite(ctx, f.tenant.ID, f.contact.ID)
	require.NoError(t, err)
	assert.True(t, dto.Active)
	assert.Equal(t, "jane@example.com", dto.Email)

	msg := f.mailer.last()
	assert.Equal(t, []string{"jane@example.com"}, msg.To)
	assert.Contains(t, msg.Body, "https://crm.example.com/portal/login?practice="+f.tenant.Slug)
	password := f.invitedPassword(t)

	_, err = f.access.Invite(ctx, f.tenant.ID, f.contact.ID)
	var derr *shared.DomainError
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, "PORTAL_ACCESS_EXISTS", derr.Code)

	res, err := f.auth.Login(ctx, LoginInput{TenantSlug: f.tenant.Slug, Email: " JANE@example.com", Password: password})
	require.NoError(t, err)
	assert.Equal(t, f.contact.ID, res.Client.ContactID)
	assert.Equal(t, "Acme Tax Partners", res.Client.PracticeName)

	t.Run("portal tokens are rejected by the staff realm", func(t *testing.T) {
		_, err := f.staffJWT.ValidateAccessToken(res.AccessToken)
		assert.Error(t, err)
	})

	t.Run("wrong password", func(t *testing.T) {
		_, err := f.auth.Login(ctx, LoginInput{TenantSlug: f.tenant.Slug, Email: "jane@example.com", Password: "nope12345"})
		require.ErrorAs(t, err, &derr)
		assert.Equal(t, "INVALID_CREDENTIALS", derr.Code)
	})

	t.Run("deactivated access cannot log in or refresh", func(t *testing.T) {
		_, err := f.access.Deactivate(ctx, f.tenant.ID, f.contact.ID)
		require.NoError(t, err)

		_, err = f.auth.Login(ctx, LoginInput{TenantSlug: f.tenant.Slug, Email: "jane@example.com", Password: password})
		require.ErrorAs(t, err, &derr)
		assert.Equal(t, "ACCOUNT_INACTIVE", derr.Code)

		_, err = f.auth.RefreshToken(ctx, res.RefreshToken)
		require.ErrorAs(t, err, &derr)
		assert.Equal(t, "ACCOUNT_INACTIVE", derr.Code)
	})

	t.Run("re-invite enables the access with a new password", func(t *testing.T) {
		dto, err := f.access.Invite(ctx, f.tenant.ID, f.contact.ID)
		require.NoError(t, err)
		assert.True(t, dto.Active)
		fresh := f.invitedPassword(t)
		assert.NotEqual(t, password, fresh)

		_, err = f.auth.Login(ctx, LoginInput{TenantSlug: f.tenant.Slug, Email: "jane@example.com", Password: fresh})
		assert.NoError(t, err)
	})
}

func TestAccessService_InviteNeedsEmail(t *testing.T) {
	ctx := context.Background()
	f := newPortalFixture(t)
	f.contact.Email = ""

	_, err := f.access.Invite(ctx, f.tenant.ID, f.contact.ID)
	var derr *shared.DomainError
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, "CONTACT_EMAIL_REQUIRED", derr.Code)
	assert.Empty(t, f.mailer.sent)
}

func TestAuthService_Refresh(t *testing.T) {
	ctx := context.Background()
	f := newPortalFixture(t)
	_, err := f.access.Invite(ctx, f.tenant.ID, f.contact.ID)
	require.NoError(t, err)
	res, err := f.auth.Login(ctx, LoginInput{TenantSlug: f.tenant.Slug, Email: "jane@example.com", Password: f.invitedPassword(t)})
	require.NoError(t, err)

	pair, err := f.auth.RefreshToken(ctx, res.RefreshToken)
	require.NoError(t, err)
	claims, err := f.auth.jwtService.ValidateAccessToken(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, f.contact.ID.String(), claims.ContactID)

	me, err := f.auth.Me(ctx, f.tenant.ID, f.contact.ID)
	require.NoError(t, err)
	assert.Equal(t, "Jane Doe", me.DisplayName)
}

func TestChatService(t *testing.T) {
	ctx := context.Background()
	tenantID, staffID := uuid.New(), uuid.New()
	contact, err := crm.NewContact(tenantID, "Jane", "Doe", "")
	require.NoError(t, err)
	svc := NewChatService(&memMessages{}, stubContacts{known: map[uuid.UUID]*crm.Contact{contact.ID: contact}}, nil, zap.NewNop())

	first, err := svc.SendAsClient(ctx, tenantID, contact.ID, "  Hi, my W-2 is uploaded. ")
	require.NoError(t, err)
	assert.Equal(t, "Hi, my W-2 is uploaded.", first.Body)
	_, err = svc.SendAsStaff(ctx, tenantID, staffID, contact.ID, "Thanks, we'll review it.")
	require.NoError(t, err)

	page, err := svc.Poll(ctx, tenantID, contact.ID, 0, 0)
	require.NoError(t, err)
	require.Len(t, page.Messages, 2)
	assert.Equal(t, int64(2), page.Cursor)

	page, err = svc.Poll(ctx, tenantID, contact.ID, page.Cursor, 10)
	require.NoError(t, err)
	assert.Empty(t, page.Messages)
	assert.Equal(t, int64(2), page.Cursor, "an empty poll keeps the cursor")

	unread, err := svc.UnreadCount(ctx, tenantID, contact.ID, portal.SenderStaff)
	require.NoError(t, err)
	assert.Equal(t, int64(1), unread)

	n, err := svc.MarkRead(ctx, tenantID, contact.ID, portal.SenderStaff, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n, "staff only marks the client's messages")

	convs, err := svc.Conversations(ctx, tenantID, 10)
	require.NoError(t, err)
	require.Len(t, convs, 1)
	assert.Equal(t, int64(0), convs[0].UnreadCount)

	t.Run("unknown contact", func(t *testing.T) {
		_, err := svc.SendAsStaff(ctx, tenantID, staffID, uuid.New(), "hello")
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	t.Run("empty body", func(t *testing.T) {
		_, err := svc.SendAsClient(ctx, tenantID, contact.ID, "   ")
		var derr *shared.DomainError
		require.ErrorAs(t, err, &derr)
		assert.Equal(t, "EMPTY_MESSAGE", derr.Code)
	})
}
