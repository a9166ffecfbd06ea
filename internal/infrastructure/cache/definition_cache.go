package cache

import (
	"strings"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/taxcrm/backend/internal/domain/workflow"
)

// DefaultDefinitionCacheSize bounds the number of cached (tenant, module, trigger) entries
const DefaultDefinitionCacheSize = 1024

// DefinitionCache caches active approval definitions per (tenant, module, trigger)
type DefinitionCache struct {
	lru *lru.Cache[string, []*workflow.Definition]
}

// NewDefinitionCache creates a cache holding up to size entries
func NewDefinitionCache(size int) (*DefinitionCache, error) {
	if size <= 0 {
		size = DefaultDefinitionCacheSize
	}
	c, err := lru.New[string, []*workflow.Definition](size)
	if err != nil {
		return nil, err
	}
	return &DefinitionCache{lru: c}, nil
}

func definitionKey(tenantID uuid.UUID, module workflow.Module, trigger workflow.Trigger) string {
	return tenantID.String() + "|" + string(module) + "|" + string(trigger)
}

// Get returns the cached definitions for the key
func (c *DefinitionCache) Get(tenantID uuid.UUID, module workflow.Module, trigger workflow.Trigger) ([]*workflow.Definition, bool) {
	return c.lru.Get(definitionKey(tenantID, module, trigger))
}

// Put stores definitions for the key. An empty slice is cached too.
func (c *DefinitionCache) Put(tenantID uuid.UUID, module workflow.Module, trigger workflow.Trigger, defs []*workflow.Definition) {
	if defs == nil {
		defs = []*workflow.Definition{}
	}
	c.lru.Add(definitionKey(tenantID, module, trigger), defs)
}

// InvalidateTenant drops every entry of a tenant
func (c *DefinitionCache) InvalidateTenant(tenantID uuid.UUID) {
	prefix := tenantID.String() + "|"
	for _, k := range c.lru.Keys() {
		if strings.HasPrefix(k, prefix) {
			c.lru.Remove(k)
		}
	}
}

// Len returns the number of cached entries
func (c *DefinitionCache) Len() int {
	return c.lru.Len()
}
