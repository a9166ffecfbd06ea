package backup

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/taxcrm/backend/internal/domain/backup"
	"github.com/taxcrm/backend/internal/domain/identity"
	"github.com/taxcrm/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// ChangeCounter counts audited changes of a tenant
type ChangeCounter interface {
	CountSince(ctx context.Context, tenantID uuid.UUID, since time.Time) (int64, error)
}

// AutoBackup decides per tenant whether an automatic backup is due and prunes old ones
type AutoBackup struct {
	repo       backup.Repository
	tenantRepo identity.TenantRepository
	changes    ChangeCounter
	service    *Service
	policy     backup.Policy
	logger     *zap.Logger
	now        func() time.Time
}

// NewAutoBackup creates the automatic backup task
func NewAutoBackup(
	repo backup.Repository,
	tenantRepo identity.TenantRepository,
	changes ChangeCounter,
	service *Service,
	policy backup.Policy,
	logger *zap.Logger,
) *AutoBackup {
	return &AutoBackup{
		repo:       repo,
		tenantRepo: tenantRepo,
		changes:    changes,
		service:    service,
		policy:     policy,
		logger:     logger,
		now:        time.Now,
	}
}

// RunTenant is the scheduler.TenantTask for one tenant
func (a *AutoBackup) RunTenant(ctx context.Context, tenantID uuid.UUID) error {
	decision, err := a.decide(ctx, tenantID)
	if err != nil {
		return err
	}
	log := a.logger.With(zap.String("tenant_id", tenantID.String()), zap.String("reason", string(decision.Reason)))
	if decision.Create {
		b, err := a.service.createAutomatic(ctx, tenantID)
		if err != nil {
			return err
		}
		log.Info("Automatic backup queued", zap.String("backup_id", b.ID.String()))
	} else {
		log.Debug("Automatic backup skipped")
	}
	return a.prune(ctx, tenantID)
}

func (a *AutoBackup) decide(ctx context.Context, tenantID uuid.UUID) (backup.Decision, error) {
	tenant, err := a.tenantRepo.FindByID(ctx, tenantID)
	if err != nil {
		return backup.Decision{}, err
	}
	state := backup.TenantState{Threshold: tenant.BackupChangeThreshold}
	if state.InFlight, err = a.repo.HasInFlight(ctx, tenantID); err != nil {
		return backup.Decision{}, err
	}
	if state.InFlight {
		return a.policy.Decide(a.now(), state), nil
	}
	last, err := a.repo.FindLastCompleted(ctx, tenantID)
	switch {
	case errors.Is(err, shared.ErrNotFound):
	case err != nil:
		return backup.Decision{}, err
	default:
		state.LastCompletedAt = last.CompletedAt
		if last.CompletedAt != nil {
			if state.ChangesSince, err = a.changes.CountSince(ctx, tenantID, *last.CompletedAt); err != nil {
				return backup.Decision{}, err
			}
		}
	}
	return a.policy.Decide(a.now(), state), nil
}

// prune deletes automatic backups beyond the retention count
func (a *AutoBackup) prune(ctx context.Context, tenantID uuid.UUID) error {
	autos, err := a.repo.FindAutomatic(ctx, tenantID)
	if err != nil {
		return err
	}
	var errs []error
	for _, old := range a.policy.Expired(autos) {
		if err := a.service.remove(ctx, &old); err != nil {
			errs = append(errs, err)
			continue
		}
		a.logger.Info("Expired automatic backup removed",
			zap.String("tenant_id", tenantID.String()),
			zap.String("backup_id", old.ID.String()),
		)
	}
	return errors.Join(errs...)
}
