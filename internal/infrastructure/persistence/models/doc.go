// Package models contains GORM-specific persistence models that map to database tables.
// These models are separate from domain entities to keep the domain layer free
// from ORM concerns.
//
// Structure:
//   - base.go: shared columns (BaseModel, AggregateModel, TenantAggregateModel)
//   - identity.go: tenants, departments, roles, users
//   - crm.go: contacts, corporations and their link tables
//   - taxcase.go, document.go, scheduling.go, billing.go: practice records
//   - portal.go, audit.go, workflow.go, backup.go, aiagent.go
//   - sequence.go: per tenant/year number counters
//
// JSON columns are kept as strings tagged type:jsonb and encoded by the mappers.
package models
