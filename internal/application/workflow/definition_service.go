package workflow

import (
	"context"

	"github.com/google/uuid"
	"github.com/taxcrm/backend/internal/domain/shared"
	"github.com/taxcrm/backend/internal/domain/workflow"
	"github.com/taxcrm/backend/internal/infrastructure/cache"
	"go.uber.org/zap"
)

// DefinitionService manages approval definitions and keeps the definition cache coherent
type DefinitionService struct {
	definitionRepo workflow.DefinitionRepository
	cache          *cache.DefinitionCache
	events         shared.EventPublisher
	logger         *zap.Logger
}

// NewDefinitionService creates a new definition service. cache may be nil.
func NewDefinitionService(definitionRepo workflow.DefinitionRepository, definitionCache *cache.DefinitionCache, events shared.EventPublisher, logger *zap.Logger) *DefinitionService {
	return &DefinitionService{definitionRepo: definitionRepo, cache: definitionCache, events: events, logger: logger}
}

// DefinitionInput contains input for creating or replacing a definition
type DefinitionInput struct {
	Name             string
	Description      string
	Module           string
	Trigger          string
	Active           *bool
	MatchAll         []workflow.Condition
	MatchAny         []workflow.Condition
	Rules            []workflow.Rule
	ApprovalActions  []workflow.Action
	RejectionActions []workflow.Action
}

// Create adds a definition
func (s *DefinitionService) Create(ctx context.Context, tenantID, userID uuid.UUID, input DefinitionInput) (*DefinitionDTO, error) {
	def, err := workflow.NewDefinition(tenantID, input.Name, workflow.Module(input.Module), workflow.Trigger(input.Trigger))
	if err != nil {
		return nil, err
	}
	def.SetCreatedBy(userID)
	if err := s.apply(def, input); err != nil {
		return nil, err
	}
	return s.save(ctx, def)
}

// GetByID returns one definition
func (s *DefinitionService) GetByID(ctx context.Context, tenantID, id uuid.UUID) (*DefinitionDTO, error) {
	def, err := s.definitionRepo.FindByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	dto := ToDefinitionDTO(def)
	return &dto, nil
}

// List returns definitions matching the filter (module, trigger, active)
func (s *DefinitionService) List(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]DefinitionDTO, int64, error) {
	defs, total, err := s.definitionRepo.FindAll(ctx, tenantID, filter.Normalize())
	if err != nil {
		return nil, 0, err
	}
	out := make([]DefinitionDTO, len(defs))
	for i := range defs {
		out[i] = ToDefinitionDTO(&defs[i])
	}
	return out, total, nil
}

// Update replaces the definition body. The module cannot change.
func (s *DefinitionService) Update(ctx context.Context, tenantID, id uuid.UUID, input DefinitionInput) (*DefinitionDTO, error) {
	def, err := s.definitionRepo.FindByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if input.Module != "" && workflow.Module(input.Module) != def.Module {
		return nil, shared.NewDomainError("MODULE_IMMUTABLE", "The module of a definition cannot be changed")
	}
	trigger := workflow.Trigger(input.Trigger)
	if input.Trigger == "" {
		trigger = def.Trigger
	}
	if err := def.Update(input.Name, input.Description, trigger); err != nil {
		return nil, err
	}
	if err := s.apply(def, input); err != nil {
		return nil, err
	}
	return s.save(ctx, def)
}

// Activate enables a definition
func (s *DefinitionService) Activate(ctx context.Context, tenantID, id uuid.UUID) (*DefinitionDTO, error) {
	def, err := s.definitionRepo.FindByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	def.Activate()
	return s.save(ctx, def)
}

// Deactivate disables a definition
func (s *DefinitionService) Deactivate(ctx context.Context, tenantID, id uuid.UUID) (*DefinitionDTO, error) {
	def, err := s.definitionRepo.FindByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	def.Deactivate()
	return s.save(ctx, def)
}

// Delete soft-deletes a definition. Pending approvals raised by it stay decidable.
func (s *DefinitionService) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	def, err := s.definitionRepo.FindByID(ctx, tenantID, id)
	if err != nil {
		return err
	}
	if err := s.definitionRepo.Delete(ctx, tenantID, id); err != nil {
		return err
	}
	s.invalidate(tenantID)
	def.AddDomainEvent(shared.NewRecordEvent(workflow.AggregateType, "deleted", def.ID, tenantID, map[string]any{"name": def.Name}))
	if err := shared.PublishAndClear(ctx, s.events, def); err != nil {
		s.logger.Warn("Failed to publish definition events", zap.Error(err))
	}
	return nil
}

// TestEvaluate runs a stored definition against a sample record without side effects
func (s *DefinitionService) TestEvaluate(ctx context.Context, tenantID, id uuid.UUID, record map[string]any) (*EvaluationResult, error) {
	def, err := s.definitionRepo.FindByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	result := &EvaluationResult{
		Active:       def.Active,
		EntryMatched: def.EntryMatches(record),
	}
	if rule, ok := def.Evaluate(record); ok {
		result.Applies = true
		result.MatchedRule = rule
		result.ApprovalRequired = true
	}
	return result, nil
}

func (s *DefinitionService) apply(def *workflow.Definition, input DefinitionInput) error {
	if err := def.SetCriteria(input.MatchAll, input.MatchAny); err != nil {
		return err
	}
	if err := def.SetRules(input.Rules); err != nil {
		return err
	}
	if err := def.SetActions(workflow.PhaseApproval, input.ApprovalActions); err != nil {
		return err
	}
	if err := def.SetActions(workflow.PhaseRejection, input.RejectionActions); err != nil {
		return err
	}
	if input.Active != nil {
		if *input.Active {
			def.Activate()
		} else {
			def.Deactivate()
		}
	}
	return nil
}

func (s *DefinitionService) save(ctx context.Context, def *workflow.Definition) (*DefinitionDTO, error) {
	if err := s.definitionRepo.Save(ctx, def); err != nil {
		return nil, err
	}
	s.invalidate(def.TenantID)
	if err := shared.PublishAndClear(ctx, s.events, def); err != nil {
		s.logger.Warn("Failed to publish definition events", zap.Error(err))
	}
	dto := ToDefinitionDTO(def)
	return &dto, nil
}

func (s *DefinitionService) invalidate(tenantID uuid.UUID) {
	if s.cache != nil {
		s.cache.InvalidateTenant(tenantID)
	}
}
