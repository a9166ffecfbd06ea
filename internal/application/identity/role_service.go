package identity

import (
	"context"

	"github.com/google/uuid"
	"github.com/taxcrm/backend/internal/domain/identity"
	"github.com/taxcrm/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// RoleService manages roles and their permission sets
type RoleService struct {
	roleRepo identity.RoleRepository
	events   shared.EventPublisher
	logger   *zap.Logger
}

// NewRoleService creates a new role service
func NewRoleService(roleRepo identity.RoleRepository, events shared.EventPublisher, logger *zap.Logger) *RoleService {
	return &RoleService{roleRepo: roleRepo, events: events, logger: logger}
}

// RoleInput contains input for creating or updating a role
type RoleInput struct {
	Code        string
	Name        string
	Description string
	Permissions []string
}

// Create adds a custom role
func (s *RoleService) Create(ctx context.Context, tenantID uuid.UUID, input RoleInput) (*RoleDTO, error) {
	if _, err := s.roleRepo.FindByCode(ctx, tenantID, input.Code); err == nil {
		return nil, shared.NewDomainError("ROLE_EXISTS", "Role code is already in use")
	}
	role, err := identity.NewRole(tenantID, input.Code, input.Name, input.Permissions)
	if err != nil {
		return nil, err
	}
	if input.Description != "" {
		if err := role.Update(role.Name, input.Description); err != nil {
			return nil, err
		}
	}
	return s.save(ctx, role)
}

// GetByID returns one role
func (s *RoleService) GetByID(ctx context.Context, tenantID, id uuid.UUID) (*RoleDTO, error) {
	role, err := s.roleRepo.FindByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	dto := ToRoleDTO(role)
	return &dto, nil
}

// List returns every role of the tenant
func (s *RoleService) List(ctx context.Context, tenantID uuid.UUID) ([]RoleDTO, error) {
	roles, err := s.roleRepo.FindAll(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	out := make([]RoleDTO, len(roles))
	for i := range roles {
		out[i] = ToRoleDTO(&roles[i])
	}
	return out, nil
}

// Update changes name, description and permissions. The code is immutable.
func (s *RoleService) Update(ctx context.Context, tenantID, id uuid.UUID, input RoleInput) (*RoleDTO, error) {
	role, err := s.roleRepo.FindByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if err := role.Update(input.Name, input.Description); err != nil {
		return nil, err
	}
	if input.Permissions != nil {
		if role.IsSystem && role.Code == identity.RoleCodeAdmin {
			return nil, shared.NewDomainError("SYSTEM_ROLE", "Administrator permissions cannot be changed")
		}
		if err := role.SetPermissions(input.Permissions); err != nil {
			return nil, err
		}
	}
	return s.save(ctx, role)
}

// Delete removes a custom role. System roles are kept.
func (s *RoleService) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	role, err := s.roleRepo.FindByID(ctx, tenantID, id)
	if err != nil {
		return err
	}
	if role.IsSystem {
		return shared.NewDomainError("SYSTEM_ROLE", "System roles cannot be deleted")
	}
	if err := s.roleRepo.Delete(ctx, tenantID, id); err != nil {
		return err
	}
	role.AddDomainEvent(shared.NewRecordEvent(identity.AggregateTypeRole, "deleted", role.ID, tenantID, map[string]any{"code": role.Code}))
	if err := shared.PublishAndClear(ctx, s.events, role); err != nil {
		s.logger.Warn("Failed to publish role events", zap.Error(err))
	}
	return nil
}

// Permissions lists every assignable permission
func (s *RoleService) Permissions() []string {
	return identity.AllPermissions()
}

func (s *RoleService) save(ctx context.Context, role *identity.Role) (*RoleDTO, error) {
	if err := s.roleRepo.Save(ctx, role); err != nil {
		return nil, err
	}
	if err := shared.PublishAndClear(ctx, s.events, role); err != nil {
		s.logger.Warn("Failed to publish role events", zap.Error(err))
	}
	dto := ToRoleDTO(role)
	return &dto, nil
}
