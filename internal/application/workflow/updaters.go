package workflow

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/taxcrm/backend/internal/domain/crm"
	"github.com/taxcrm/backend/internal/domain/identity"
	"github.com/taxcrm/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// FieldApplier is an aggregate that accepts update_field actions
type FieldApplier interface {
	shared.AggregateRoot
	ApplyField(field, value string) error
}

// RepositoryUpdater loads a record, applies one field and saves it back
type RepositoryUpdater[T FieldApplier] struct {
	find   func(ctx context.Context, tenantID, id uuid.UUID) (T, error)
	save   func(ctx context.Context, record T) error
	events shared.EventPublisher
	logger *zap.Logger
}

// NewRepositoryUpdater builds an updater from a repository's FindByID and Save
func NewRepositoryUpdater[T FieldApplier](
	find func(ctx context.Context, tenantID, id uuid.UUID) (T, error),
	save func(ctx context.Context, record T) error,
	events shared.EventPublisher,
	logger *zap.Logger,
) *RepositoryUpdater[T] {
	return &RepositoryUpdater[T]{find: find, save: save, events: events, logger: logger}
}

// UpdateField implements RecordUpdater
func (u *RepositoryUpdater[T]) UpdateField(ctx context.Context, tenantID, recordID uuid.UUID, field, value string) error {
	record, err := u.find(ctx, tenantID, recordID)
	if err != nil {
		return err
	}
	if err := record.ApplyField(field, value); err != nil {
		return err
	}
	if err := u.save(ctx, record); err != nil {
		return err
	}
	if err := shared.PublishAndClear(ctx, u.events, record); err != nil {
		u.logger.Warn("Failed to publish record events", zap.Error(err))
	}
	return nil
}

// DirectoryRecipients resolves {{assignee}} to a staff user email and {{contact}}
// to the client email using the record snapshot.
type DirectoryRecipients struct {
	userRepo    identity.UserRepository
	contactRepo crm.ContactRepository
}

// NewDirectoryRecipients creates a resolver
func NewDirectoryRecipients(userRepo identity.UserRepository, contactRepo crm.ContactRepository) *DirectoryRecipients {
	return &DirectoryRecipients{userRepo: userRepo, contactRepo: contactRepo}
}

// Resolve implements RecipientResolver
func (r *DirectoryRecipients) Resolve(ctx context.Context, tenantID uuid.UUID, placeholder string, snapshot map[string]any) ([]string, error) {
	switch placeholder {
	case "assignee":
		id := assigneeFromSnapshot(snapshot)
		if id == nil {
			return nil, errors.New("record has no assignee")
		}
		user, err := r.userRepo.FindByID(ctx, tenantID, *id)
		if err != nil {
			return nil, err
		}
		return nonEmpty(user.Email), nil
	case "contact":
		id := snapshotID(snapshot, "contact_id")
		if id == nil {
			return nil, errors.New("record has no contact")
		}
		contact, err := r.contactRepo.FindByID(ctx, tenantID, *id)
		if err != nil {
			return nil, err
		}
		return nonEmpty(contact.Email), nil
	}
	return nil, fmt.Errorf("unknown recipient placeholder %q", placeholder)
}

func nonEmpty(addr string) []string {
	if addr == "" {
		return nil
	}
	return []string{addr}
}

var _ RecipientResolver = (*DirectoryRecipients)(nil)
