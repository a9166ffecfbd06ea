package identity

import (
	"context"

	"github.com/google/uuid"
	"github.com/taxcrm/backend/internal/domain/identity"
	"github.com/taxcrm/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// DepartmentService manages departments
type DepartmentService struct {
	departmentRepo identity.DepartmentRepository
	events         shared.EventPublisher
	logger         *zap.Logger
}

// NewDepartmentService creates a new department service
func NewDepartmentService(departmentRepo identity.DepartmentRepository, events shared.EventPublisher, logger *zap.Logger) *DepartmentService {
	return &DepartmentService{departmentRepo: departmentRepo, events: events, logger: logger}
}

// DepartmentInput contains input for creating or updating a department
type DepartmentInput struct {
	Code        string
	Name        string
	Description string
	Active      *bool
}

// Create adds a department
func (s *DepartmentService) Create(ctx context.Context, tenantID uuid.UUID, input DepartmentInput) (*DepartmentDTO, error) {
	dept, err := identity.NewDepartment(tenantID, input.Code, input.Name)
	if err != nil {
		return nil, err
	}
	exists, err := s.departmentRepo.ExistsByCode(ctx, tenantID, dept.Code)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, shared.NewDomainError("DEPARTMENT_EXISTS", "Department code is already in use")
	}
	if input.Description != "" {
		if err := dept.Update(dept.Name, input.Description); err != nil {
			return nil, err
		}
	}
	return s.save(ctx, dept)
}

// GetByID returns one department
func (s *DepartmentService) GetByID(ctx context.Context, tenantID, id uuid.UUID) (*DepartmentDTO, error) {
	dept, err := s.departmentRepo.FindByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	dto := ToDepartmentDTO(dept)
	return &dto, nil
}

// List returns departments matching the filter
func (s *DepartmentService) List(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]DepartmentDTO, int64, error) {
	depts, total, err := s.departmentRepo.FindAll(ctx, tenantID, filter.Normalize())
	if err != nil {
		return nil, 0, err
	}
	out := make([]DepartmentDTO, len(depts))
	for i := range depts {
		out[i] = ToDepartmentDTO(&depts[i])
	}
	return out, total, nil
}

// Update changes name, description and the active flag
func (s *DepartmentService) Update(ctx context.Context, tenantID, id uuid.UUID, input DepartmentInput) (*DepartmentDTO, error) {
	dept, err := s.departmentRepo.FindByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if err := dept.Update(input.Name, input.Description); err != nil {
		return nil, err
	}
	if input.Active != nil {
		dept.SetActive(*input.Active)
	}
	return s.save(ctx, dept)
}

// Delete soft-deletes a department
func (s *DepartmentService) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	dept, err := s.departmentRepo.FindByID(ctx, tenantID, id)
	if err != nil {
		return err
	}
	if err := s.departmentRepo.Delete(ctx, tenantID, id); err != nil {
		return err
	}
	dept.AddDomainEvent(shared.NewRecordEvent(identity.AggregateTypeDepartment, "deleted", dept.ID, tenantID, map[string]any{"code": dept.Code}))
	if err := shared.PublishAndClear(ctx, s.events, dept); err != nil {
		s.logger.Warn("Failed to publish department events", zap.Error(err))
	}
	return nil
}

func (s *DepartmentService) save(ctx context.Context, dept *identity.Department) (*DepartmentDTO, error) {
	if err := s.departmentRepo.Save(ctx, dept); err != nil {
		return nil, err
	}
	if err := shared.PublishAndClear(ctx, s.events, dept); err != nil {
		s.logger.Warn("Failed to publish department events", zap.Error(err))
	}
	dto := ToDepartmentDTO(dept)
	return &dto, nil
}
