package workflow

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/taxcrm/backend/internal/domain/identity"
	"github.com/taxcrm/backend/internal/domain/shared"
	"github.com/taxcrm/backend/internal/domain/workflow"
	"github.com/taxcrm/backend/internal/infrastructure/cache"
	"github.com/taxcrm/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// Submission is a record handed to the engine on save or through a process step
type Submission struct {
	TenantID    uuid.UUID
	Module      workflow.Module
	Trigger     workflow.Trigger
	RecordID    uuid.UUID
	Snapshot    map[string]any
	RequestedBy uuid.UUID
}

// Engine matches records against approval definitions and drives approval requests
type Engine struct {
	definitionRepo workflow.DefinitionRepository
	approvalRepo   workflow.ApprovalRepository
	cache          *cache.DefinitionCache
	dispatcher     *ActionDispatcher
	events         shared.EventPublisher
	logger         *zap.Logger
	metrics        *telemetry.BusinessMetrics
}

// NewEngine creates a new approval engine. cache may be nil.
func NewEngine(
	definitionRepo workflow.DefinitionRepository,
	approvalRepo workflow.ApprovalRepository,
	definitionCache *cache.DefinitionCache,
	dispatcher *ActionDispatcher,
	events shared.EventPublisher,
	logger *zap.Logger,
) *Engine {
	return &Engine{
		definitionRepo: definitionRepo,
		approvalRepo:   approvalRepo,
		cache:          definitionCache,
		dispatcher:     dispatcher,
		events:         events,
		logger:         logger,
	}
}

// SetBusinessMetrics counts decisions and failed follow-up actions
func (e *Engine) SetBusinessMetrics(bm *telemetry.BusinessMetrics) {
	e.metrics = bm
}

// Run evaluates the active definitions for the submission. It returns nil when no
// definition applies, and the existing request when the record already awaits a
// decision raised by the same trigger. Requests of the other trigger are ignored.
func (e *Engine) Run(ctx context.Context, sub Submission) (*workflow.Approval, error) {
	existing, err := e.approvalRepo.FindPendingForRecord(ctx, sub.TenantID, sub.Module, sub.Trigger, sub.RecordID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, shared.ErrNotFound) {
		return nil, err
	}

	defs, err := e.activeDefinitions(ctx, sub.TenantID, sub.Module, sub.Trigger)
	if err != nil {
		return nil, err
	}
	match, ok := workflow.Select(defs, sub.Module, sub.Trigger, sub.Snapshot)
	if !ok {
		return nil, nil
	}

	approval := workflow.NewApproval(sub.TenantID, match, sub.RecordID, sub.Snapshot, sub.RequestedBy)
	if err := e.approvalRepo.Save(ctx, approval); err != nil {
		return nil, err
	}
	e.logger.Info("Approval requested",
		zap.String("approval_id", approval.ID.String()),
		zap.String("definition", match.Definition.Name),
		zap.Int("rule", match.Rule.Number),
		zap.String("module", string(sub.Module)),
		zap.String("record_id", sub.RecordID.String()),
	)
	e.publish(ctx, approval)
	return approval, nil
}

// GetByID returns one approval
func (e *Engine) GetByID(ctx context.Context, tenantID, id uuid.UUID) (*ApprovalDTO, error) {
	approval, err := e.approvalRepo.FindByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	dto := ToApprovalDTO(approval)
	return &dto, nil
}

// List returns approvals matching the filter (status, module, record_id)
func (e *Engine) List(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]ApprovalDTO, int64, error) {
	approvals, total, err := e.approvalRepo.FindAll(ctx, tenantID, filter.Normalize())
	if err != nil {
		return nil, 0, err
	}
	return toApprovalDTOs(approvals), total, nil
}

// ListPendingFor returns the pending inbox of an approver
func (e *Engine) ListPendingFor(ctx context.Context, tenantID uuid.UUID, who workflow.Approver, filter shared.Filter) ([]ApprovalDTO, int64, error) {
	filter = filter.Normalize()
	if filter.Filters == nil {
		filter.Filters = map[string]interface{}{}
	}
	filter.Filters["status"] = string(workflow.ApprovalPending)
	filter.Filters["approver_user_id"] = who.UserID
	filter.Filters["approver_role_ids"] = who.RoleIDs
	if !hasPermission(who, identity.PermWorkflowApprove) {
		filter.Filters["assigned_only"] = true
	}
	approvals, total, err := e.approvalRepo.FindAll(ctx, tenantID, filter)
	if err != nil {
		return nil, 0, err
	}
	return toApprovalDTOs(approvals), total, nil
}

// Approve approves a pending request and runs the approval actions
func (e *Engine) Approve(ctx context.Context, tenantID, id uuid.UUID, who workflow.Approver, comment string) (*ApprovalDTO, error) {
	return e.decide(ctx, tenantID, id, func(a *workflow.Approval) error {
		return a.Approve(who, comment)
	})
}

// Reject rejects a pending request and runs the rejection actions
func (e *Engine) Reject(ctx context.Context, tenantID, id uuid.UUID, who workflow.Approver, comment string) (*ApprovalDTO, error) {
	return e.decide(ctx, tenantID, id, func(a *workflow.Approval) error {
		return a.Reject(who, comment)
	})
}

// Cancel withdraws a pending request. The requester or any eligible approver may cancel.
func (e *Engine) Cancel(ctx context.Context, tenantID, id uuid.UUID, who workflow.Approver) (*ApprovalDTO, error) {
	approval, err := e.approvalRepo.FindByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	isRequester := approval.CreatedBy != nil && *approval.CreatedBy == who.UserID
	if !isRequester && !approval.CanDecide(who) {
		return nil, shared.NewDomainError("FORBIDDEN", "Only the requester or an approver can cancel this request")
	}
	if err := approval.Cancel(); err != nil {
		return nil, err
	}
	if err := e.approvalRepo.Save(ctx, approval); err != nil {
		return nil, err
	}
	e.publish(ctx, approval)
	dto := ToApprovalDTO(approval)
	return &dto, nil
}

// decide stores the decision before any action runs. The save only succeeds
// against the version that was read, so of two concurrent deciders exactly
// one gets past it and the other sees ErrConcurrencyConflict with no action run.
func (e *Engine) decide(ctx context.Context, tenantID, id uuid.UUID, decision func(*workflow.Approval) error) (*ApprovalDTO, error) {
	approval, err := e.approvalRepo.FindByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if err := decision(approval); err != nil {
		return nil, err
	}
	if err := e.approvalRepo.Save(ctx, approval); err != nil {
		if errors.Is(err, shared.ErrConcurrencyConflict) {
			e.logger.Info("Approval decided concurrently; decision discarded",
				zap.String("approval_id", approval.ID.String()),
			)
		}
		return nil, err
	}
	if e.metrics != nil {
		e.metrics.RecordApprovalDecision(ctx, approval.TenantID, string(approval.Module), string(approval.Status))
	}

	actions, err := e.phaseActions(ctx, approval)
	if err != nil {
		// the decision stands; the actions are reported as not run
		e.logger.Error("Failed to load approval actions",
			zap.String("approval_id", approval.ID.String()),
			zap.Error(err),
		)
	}
	if len(actions) > 0 && e.dispatcher != nil {
		approval.RecordResults(e.dispatcher.Execute(ctx, approval, actions))
		if err := e.approvalRepo.Save(ctx, approval); err != nil {
			e.logger.Error("Failed to store approval action results",
				zap.String("approval_id", approval.ID.String()),
				zap.Error(err),
			)
		}
	}
	if failed := approval.FailedActions(); failed > 0 {
		if e.metrics != nil {
			e.metrics.RecordActionFailures(ctx, approval.TenantID, string(approval.Module), failed)
		}
		e.logger.Warn("Approval decided with failed actions",
			zap.String("approval_id", approval.ID.String()),
			zap.Int("failed", failed),
		)
	}
	e.publish(ctx, approval)
	dto := ToApprovalDTO(approval)
	return &dto, nil
}

func (e *Engine) phaseActions(ctx context.Context, approval *workflow.Approval) ([]workflow.Action, error) {
	def, err := e.definitionRepo.FindByID(ctx, approval.TenantID, approval.DefinitionID)
	if errors.Is(err, shared.ErrNotFound) {
		e.logger.Warn("Definition of approval no longer exists; no actions run",
			zap.String("approval_id", approval.ID.String()),
			zap.String("definition_id", approval.DefinitionID.String()),
		)
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return def.Actions(approval.Phase()), nil
}

func (e *Engine) activeDefinitions(ctx context.Context, tenantID uuid.UUID, module workflow.Module, trigger workflow.Trigger) ([]*workflow.Definition, error) {
	if e.cache != nil {
		if defs, ok := e.cache.Get(tenantID, module, trigger); ok {
			return defs, nil
		}
	}
	defs, err := e.definitionRepo.FindActive(ctx, tenantID, module, trigger)
	if err != nil {
		return nil, err
	}
	if e.cache != nil {
		e.cache.Put(tenantID, module, trigger, defs)
	}
	return defs, nil
}

func (e *Engine) publish(ctx context.Context, approval *workflow.Approval) {
	if err := shared.PublishAndClear(ctx, e.events, approval); err != nil {
		e.logger.Warn("Failed to publish approval events", zap.Error(err))
	}
}

func hasPermission(who workflow.Approver, perm string) bool {
	for _, p := range who.Permissions {
		if p == perm {
			return true
		}
	}
	return false
}

func toApprovalDTOs(approvals []workflow.Approval) []ApprovalDTO {
	out := make([]ApprovalDTO, len(approvals))
	for i := range approvals {
		out[i] = ToApprovalDTO(&approvals[i])
	}
	return out
}
