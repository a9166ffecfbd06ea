package testutil

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/taxcrm/backend/internal/domain/shared"
	"github.com/taxcrm/backend/internal/interfaces/http/dto"
)

func TestNewTestUUID_Deterministic(t *testing.T) {
	assert.Equal(t, NewTestUUID("a"), NewTestUUID("a"))
	assert.NotEqual(t, NewTestUUID("a"), NewTestUUID("b"))
	assert.NotEqual(t, TestTenantID(), TestUserID())
}

func TestNewMockDB(t *testing.T) {
	m := NewMockDB(t)
	m.Mock.ExpectPing()

	require.NoError(t, m.SqlDB.Ping())
}

func TestRequireEventually(t *testing.T) {
	var calls atomic.Int32
	RequireEventually(t, func() bool {
		return calls.Add(1) >= 3
	}, time.Second, time.Millisecond)

	assert.GreaterOrEqual(t, calls.Load(), int32(3))
}

func TestAssertNever(t *testing.T) {
	AssertNever(t, func() bool { return false }, 20*time.Millisecond, 5*time.Millisecond)
}

func TestEventRecorder(t *testing.T) {
	rec := NewEventRecorder()
	tenantID := uuid.New()
	first := shared.NewBaseDomainEvent("contact.created", "Contact", uuid.New(), tenantID)
	second := shared.NewBaseDomainEvent("case.status_changed", "TaxCase", uuid.New(), tenantID)

	require.NoError(t, rec.Publish(context.Background(), &first, &second))
	require.NoError(t, rec.Handle(context.Background(), &first))

	assert.Equal(t, []string{"contact.created", "case.status_changed", "contact.created"}, rec.Types())
	assert.Len(t, rec.OfType("contact.created"), 2)
	assert.Empty(t, rec.EventTypes())

	rec.FailWith(errors.New("bus down"))
	assert.EqualError(t, rec.Publish(context.Background(), &second), "bus down")
	assert.Len(t, rec.Events(), 4)

	rec.Reset()
	assert.Empty(t, rec.Events())
}

func TestAPIClient(t *testing.T) {
	engine := gin.New()
	engine.POST("/echo", func(c *gin.Context) {
		var body map[string]string
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, dto.NewErrorResponse("ERR_VALIDATION", err.Error()))
			return
		}
		body["auth"] = c.GetHeader("Authorization")
		body["tenant"] = c.GetHeader("X-Tenant")
		c.JSON(http.StatusOK, dto.NewSuccessResponse(body))
	})

	client := NewAPIClient(t, engine)
	client.SetHeader("X-Tenant", "acme")

	got := Data[map[string]string](t, client.WithToken("tok").Post("/echo", map[string]string{"name": "x"}), http.StatusOK)
	assert.Equal(t, "x", got["name"])
	assert.Equal(t, "Bearer tok", got["auth"])
	assert.Equal(t, "acme", got["tenant"])

	AssertError(t, client.Do(http.MethodPost, "/echo", nil), http.StatusBadRequest, "ERR_VALIDATION")
	assert.Equal(t, http.StatusNotFound, client.Get("/missing").Code)
}
