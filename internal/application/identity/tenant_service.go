package identity

import (
	"context"

	"github.com/google/uuid"
	"github.com/taxcrm/backend/internal/domain/identity"
	"github.com/taxcrm/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// TenantService handles practice (tenant) management
type TenantService struct {
	tenantRepo identity.TenantRepository
	roleRepo   identity.RoleRepository
	userRepo   identity.UserRepository
	events     shared.EventPublisher
	logger     *zap.Logger
}

// NewTenantService creates a new tenant service
func NewTenantService(
	tenantRepo identity.TenantRepository,
	roleRepo identity.RoleRepository,
	userRepo identity.UserRepository,
	events shared.EventPublisher,
	logger *zap.Logger,
) *TenantService {
	return &TenantService{
		tenantRepo: tenantRepo,
		roleRepo:   roleRepo,
		userRepo:   userRepo,
		events:     events,
		logger:     logger,
	}
}

// CreateTenantInput contains input for creating a tenant. When AdminUsername is
// set, an administrator account holding the ADMIN role is created as well.
type CreateTenantInput struct {
	Name          string
	ContactEmail  string
	AdminUsername string
	AdminEmail    string
	AdminPassword string
}

// UpdateTenantInput contains the mutable tenant settings
type UpdateTenantInput struct {
	Name                  *string
	BackupChangeThreshold *int
}

// Create registers a practice, seeds its default roles and optional admin
func (s *TenantService) Create(ctx context.Context, input CreateTenantInput) (*TenantDTO, error) {
	tenant, err := identity.NewTenant(input.Name, input.ContactEmail)
	if err != nil {
		return nil, err
	}
	exists, err := s.tenantRepo.ExistsBySlug(ctx, tenant.Slug)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, shared.NewDomainError("TENANT_EXISTS", "A practice with this name already exists")
	}

	if err := s.tenantRepo.Save(ctx, tenant); err != nil {
		return nil, err
	}

	roles, err := identity.DefaultRoles(tenant.ID)
	if err != nil {
		return nil, err
	}
	var adminRoleID uuid.UUID
	for _, r := range roles {
		if err := s.roleRepo.Save(ctx, r); err != nil {
			return nil, err
		}
		if r.Code == identity.RoleCodeAdmin {
			adminRoleID = r.ID
		}
	}

	if input.AdminUsername != "" {
		admin, err := identity.NewUser(tenant.ID, input.AdminUsername, input.AdminEmail, input.AdminPassword)
		if err != nil {
			return nil, err
		}
		admin.SetRoles([]uuid.UUID{adminRoleID})
		if err := s.userRepo.Save(ctx, admin); err != nil {
			return nil, err
		}
		if err := shared.PublishAndClear(ctx, s.events, admin); err != nil {
			s.logger.Warn("Failed to publish user events", zap.Error(err))
		}
	}

	if err := shared.PublishAndClear(ctx, s.events, tenant); err != nil {
		s.logger.Warn("Failed to publish tenant events", zap.Error(err))
	}
	s.logger.Info("Tenant created", zap.String("tenant_id", tenant.ID.String()), zap.String("slug", tenant.Slug))

	dto := ToTenantDTO(tenant)
	return &dto, nil
}

// GetByID returns one tenant
func (s *TenantService) GetByID(ctx context.Context, id uuid.UUID) (*TenantDTO, error) {
	tenant, err := s.tenantRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	dto := ToTenantDTO(tenant)
	return &dto, nil
}

// List returns tenants matching the filter
func (s *TenantService) List(ctx context.Context, filter shared.Filter) ([]TenantDTO, int64, error) {
	tenants, total, err := s.tenantRepo.FindAll(ctx, filter.Normalize())
	if err != nil {
		return nil, 0, err
	}
	out := make([]TenantDTO, len(tenants))
	for i := range tenants {
		out[i] = ToTenantDTO(&tenants[i])
	}
	return out, total, nil
}

// Update changes the tenant name and backup threshold
func (s *TenantService) Update(ctx context.Context, id uuid.UUID, input UpdateTenantInput) (*TenantDTO, error) {
	tenant, err := s.tenantRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if input.Name != nil {
		if err := tenant.Rename(*input.Name); err != nil {
			return nil, err
		}
	}
	if input.BackupChangeThreshold != nil {
		if err := tenant.SetBackupChangeThreshold(*input.BackupChangeThreshold); err != nil {
			return nil, err
		}
	}
	return s.save(ctx, tenant)
}

// Suspend blocks logins for a tenant
func (s *TenantService) Suspend(ctx context.Context, id uuid.UUID) (*TenantDTO, error) {
	tenant, err := s.tenantRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := tenant.Suspend(); err != nil {
		return nil, err
	}
	return s.save(ctx, tenant)
}

// Activate re-enables a suspended tenant
func (s *TenantService) Activate(ctx context.Context, id uuid.UUID) (*TenantDTO, error) {
	tenant, err := s.tenantRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := tenant.Activate(); err != nil {
		return nil, err
	}
	return s.save(ctx, tenant)
}

func (s *TenantService) save(ctx context.Context, tenant *identity.Tenant) (*TenantDTO, error) {
	if err := s.tenantRepo.Save(ctx, tenant); err != nil {
		return nil, err
	}
	if err := shared.PublishAndClear(ctx, s.events, tenant); err != nil {
		s.logger.Warn("Failed to publish tenant events", zap.Error(err))
	}
	dto := ToTenantDTO(tenant)
	return &dto, nil
}
