package persistence

import (
	"context"

	"github.com/google/uuid"
	"github.com/taxcrm/backend/internal/domain/aiagent"
	"github.com/taxcrm/backend/internal/domain/shared"
	"github.com/taxcrm/backend/internal/infrastructure/persistence/models"
	"github.com/taxcrm/backend/internal/infrastructure/persistence/tenant"
	"gorm.io/gorm"
)

// GormAgentConfigRepository implements aiagent.ConfigRepository using GORM
type GormAgentConfigRepository struct {
	db *gorm.DB
}

// NewGormAgentConfigRepository creates a new GormAgentConfigRepository
func NewGormAgentConfigRepository(db *gorm.DB) *GormAgentConfigRepository {
	return &GormAgentConfigRepository{db: db}
}

// FindByTenant returns the tenant's agent configuration
func (r *GormAgentConfigRepository) FindByTenant(ctx context.Context, tenantID uuid.UUID) (*aiagent.Config, error) {
	var model models.AgentConfigModel
	if err := r.db.WithContext(ctx).Scopes(tenant.Scope(tenantID)).First(&model).Error; err != nil {
		return nil, translateNotFound(err)
	}
	return model.ToDomain(), nil
}

// FindEnabled lists the configurations of every tenant with the agent switched on
func (r *GormAgentConfigRepository) FindEnabled(ctx context.Context) ([]*aiagent.Config, error) {
	var rows []models.AgentConfigModel
	if err := r.db.WithContext(ctx).Where("enabled = ?", true).Order("tenant_id ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]*aiagent.Config, len(rows))
	for i := range rows {
		out[i] = rows[i].ToDomain()
	}
	return out, nil
}

// Save creates or updates a configuration
func (r *GormAgentConfigRepository) Save(ctx context.Context, c *aiagent.Config) error {
	return r.db.WithContext(ctx).Save(models.AgentConfigModelFromDomain(c)).Error
}

// GormAgentRunRepository implements aiagent.RunRepository using GORM
type GormAgentRunRepository struct {
	db *gorm.DB
}

// NewGormAgentRunRepository creates a new GormAgentRunRepository
func NewGormAgentRunRepository(db *gorm.DB) *GormAgentRunRepository {
	return &GormAgentRunRepository{db: db}
}

// Save creates or updates a run record
func (r *GormAgentRunRepository) Save(ctx context.Context, run *aiagent.Run) error {
	return r.db.WithContext(ctx).Save(models.AgentRunModelFromDomain(run)).Error
}

// FindAll lists runs newest first; Filters supports status
func (r *GormAgentRunRepository) FindAll(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]aiagent.Run, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.AgentRunModel{}).Scopes(tenant.Scope(tenantID))
	if status, ok := filter.Filters["status"]; ok {
		query = query.Where("status = ?", status)
	}
	rows, total, err := findPage[models.AgentRunModel](query, filter, agentRunSort)
	if err != nil {
		return nil, 0, err
	}
	out := make([]aiagent.Run, len(rows))
	for i := range rows {
		out[i] = rows[i].ToDomain()
	}
	return out, total, nil
}

// GormAgentSuggestionRepository implements aiagent.SuggestionRepository using GORM
type GormAgentSuggestionRepository struct {
	db *gorm.DB
}

// NewGormAgentSuggestionRepository creates a new GormAgentSuggestionRepository
func NewGormAgentSuggestionRepository(db *gorm.DB) *GormAgentSuggestionRepository {
	return &GormAgentSuggestionRepository{db: db}
}

// FindByID finds a suggestion by ID
func (r *GormAgentSuggestionRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*aiagent.Suggestion, error) {
	var model models.AgentSuggestionModel
	if err := r.db.WithContext(ctx).Scopes(tenant.Scope(tenantID)).Where("id = ?", id).First(&model).Error; err != nil {
		return nil, translateNotFound(err)
	}
	return model.ToDomain(), nil
}

// FindAll lists suggestions matching the filter
func (r *GormAgentSuggestionRepository) FindAll(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]aiagent.Suggestion, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.AgentSuggestionModel{}).Scopes(tenant.Scope(tenantID))
	query = searchColumns(query, filter.Search, "title", "rationale")
	for key, value := range filter.Filters {
		switch key {
		case "status":
			query = query.Where("status = ?", value)
		case "kind":
			query = query.Where("kind = ?", value)
		case "run_id":
			query = query.Where("run_id = ?", value)
		}
	}
	rows, total, err := findPage[models.AgentSuggestionModel](query, filter, suggestionSort)
	if err != nil {
		return nil, 0, err
	}
	out := make([]aiagent.Suggestion, len(rows))
	for i := range rows {
		out[i] = *rows[i].ToDomain()
	}
	return out, total, nil
}

// Save creates or updates a suggestion
func (r *GormAgentSuggestionRepository) Save(ctx context.Context, s *aiagent.Suggestion) error {
	return r.db.WithContext(ctx).Save(models.AgentSuggestionModelFromDomain(s)).Error
}

// SaveBatch inserts the suggestions of one cycle atomically
func (r *GormAgentSuggestionRepository) SaveBatch(ctx context.Context, items []*aiagent.Suggestion) error {
	if len(items) == 0 {
		return nil
	}
	rows := make([]*models.AgentSuggestionModel, len(items))
	for i, s := range items {
		rows[i] = models.AgentSuggestionModelFromDomain(s)
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.CreateInBatches(rows, 100).Error
	})
}

var (
	_ aiagent.ConfigRepository     = (*GormAgentConfigRepository)(nil)
	_ aiagent.RunRepository        = (*GormAgentRunRepository)(nil)
	_ aiagent.SuggestionRepository = (*GormAgentSuggestionRepository)(nil)
)
