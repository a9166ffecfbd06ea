package cache

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/taxcrm/backend/internal/domain/workflow"
	"github.com/taxcrm/backend/internal/infrastructure/config"
)

func TestDefinitionCache_PutGetInvalidate(t *testing.T) {
	c, err := NewDefinitionCache(0)
	require.NoError(t, err)

	tenantA, tenantB := uuid.New(), uuid.New()
	def, err := workflow.NewDefinition(tenantA, "Large refunds", workflow.ModuleTaxCase, workflow.TriggerViaProcess)
	require.NoError(t, err)

	c.Put(tenantA, workflow.ModuleTaxCase, workflow.TriggerViaProcess, []*workflow.Definition{def})
	c.Put(tenantA, workflow.ModuleInvoice, workflow.TriggerOnSave, nil)
	c.Put(tenantB, workflow.ModuleTaxCase, workflow.TriggerViaProcess, nil)

	got, ok := c.Get(tenantA, workflow.ModuleTaxCase, workflow.TriggerViaProcess)
	require.True(t, ok)
	assert.Len(t, got, 1)

	empty, ok := c.Get(tenantA, workflow.ModuleInvoice, workflow.TriggerOnSave)
	require.True(t, ok)
	assert.Empty(t, empty)

	_, ok = c.Get(tenantA, workflow.ModuleTaxCase, workflow.TriggerOnSave)
	assert.False(t, ok)

	c.InvalidateTenant(tenantA)
	assert.Equal(t, 1, c.Len())
	_, ok = c.Get(tenantB, workflow.ModuleTaxCase, workflow.TriggerViaProcess)
	assert.True(t, ok)
}

func TestDefinitionCache_Evicts(t *testing.T) {
	c, err := NewDefinitionCache(2)
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		c.Put(uuid.New(), workflow.ModuleTask, workflow.TriggerOnSave, nil)
	}
	assert.Equal(t, 2, c.Len())
}

func TestBackendFactory_FallsBackToMemory(t *testing.T) {
	f := NewBackendFactory(config.RedisConfig{Host: "127.0.0.1", Port: 1})
	b, err := f.Create(context.Background())
	require.NoError(t, err)
	assert.Nil(t, b.Client)
	assert.NotNil(t, b.Locker)
	assert.NotNil(t, b.Blacklist)
	assert.NoError(t, b.Close())
}

func TestBackendFactory_NoFallback(t *testing.T) {
	f := NewBackendFactory(config.RedisConfig{Host: "127.0.0.1", Port: 1}, WithInMemoryFallback(false))
	_, err := f.Create(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis required")
}
