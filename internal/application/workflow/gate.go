package workflow

import (
	"context"

	"github.com/google/uuid"
	"github.com/taxcrm/backend/internal/domain/workflow"
	"go.uber.org/zap"
)

// Gate runs approval definitions for a saved or submitted record.
// *Engine implements it; record services depend on this interface only.
type Gate interface {
	Run(ctx context.Context, sub Submission) (*workflow.Approval, error)
}

var _ Gate = (*Engine)(nil)

// RunOnSave evaluates on_save definitions. The save has already happened, so
// engine errors are logged and the record is returned without an approval.
func RunOnSave(ctx context.Context, gate Gate, logger *zap.Logger, sub Submission) *uuid.UUID {
	if gate == nil {
		return nil
	}
	sub.Trigger = workflow.TriggerOnSave
	approval, err := gate.Run(ctx, sub)
	if err != nil {
		logger.Warn("On-save approval evaluation failed",
			zap.String("module", string(sub.Module)),
			zap.String("record_id", sub.RecordID.String()),
			zap.Error(err),
		)
		return nil
	}
	if approval == nil {
		return nil
	}
	return &approval.ID
}
