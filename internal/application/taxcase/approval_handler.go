package taxcase

import (
	"context"
	"errors"
	"fmt"

	"github.com/taxcrm/backend/internal/domain/shared"
	"github.com/taxcrm/backend/internal/domain/taxcase"
	"github.com/taxcrm/backend/internal/domain/workflow"
	"go.uber.org/zap"
)

// ApprovalDecidedHandler moves a tax case out of pending_approval once its
// approval request is approved, rejected or cancelled
type ApprovalDecidedHandler struct {
	caseRepo taxcase.Repository
	events   shared.EventPublisher
	logger   *zap.Logger
}

// NewApprovalDecidedHandler creates the handler
func NewApprovalDecidedHandler(caseRepo taxcase.Repository, events shared.EventPublisher, logger *zap.Logger) *ApprovalDecidedHandler {
	return &ApprovalDecidedHandler{caseRepo: caseRepo, events: events, logger: logger}
}

// EventTypes returns the event types this handler is interested in
func (h *ApprovalDecidedHandler) EventTypes() []string {
	return []string{workflow.EventTypeApprovalDecided}
}

// Handle applies the approval outcome to the case
func (h *ApprovalDecidedHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	decided, ok := event.(*workflow.DecidedEvent)
	if !ok {
		return fmt.Errorf("unexpected event type: expected %s, got %s", workflow.EventTypeApprovalDecided, event.EventType())
	}
	if decided.Module != workflow.ModuleTaxCase {
		return nil
	}

	tc, err := h.caseRepo.FindByID(ctx, decided.TenantID(), decided.RecordID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			h.logger.Warn("Approval decided for a deleted tax case", zap.String("case_id", decided.RecordID.String()))
			return nil
		}
		return err
	}
	if tc.Status != taxcase.StatusPendingApproval {
		// manually cancelled while the approval was open
		h.logger.Info("Tax case no longer awaiting approval",
			zap.String("case_number", tc.CaseNumber),
			zap.String("status", string(tc.Status)),
		)
		return nil
	}

	switch decided.Outcome {
	case workflow.ApprovalApproved:
		err = tc.Approve()
	case workflow.ApprovalRejected:
		err = tc.Reject()
	case workflow.ApprovalCancelled:
		err = tc.Withdraw()
	default:
		return nil
	}
	if err != nil {
		return err
	}
	if err := h.caseRepo.Save(ctx, tc); err != nil {
		return err
	}
	if err := shared.PublishAndClear(ctx, h.events, tc); err != nil {
		h.logger.Warn("Failed to publish tax case events", zap.Error(err))
	}
	h.logger.Info("Tax case approval outcome applied",
		zap.String("case_number", tc.CaseNumber),
		zap.String("outcome", string(decided.Outcome)),
	)
	return nil
}

var _ shared.EventHandler = (*ApprovalDecidedHandler)(nil)
