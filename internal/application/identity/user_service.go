package identity

import (
	"context"

	"github.com/google/uuid"
	"github.com/taxcrm/backend/internal/domain/identity"
	"github.com/taxcrm/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// UserService handles staff user management
type UserService struct {
	userRepo       identity.UserRepository
	roleRepo       identity.RoleRepository
	departmentRepo identity.DepartmentRepository
	events         shared.EventPublisher
	logger         *zap.Logger
}

// NewUserService creates a new user service
func NewUserService(
	userRepo identity.UserRepository,
	roleRepo identity.RoleRepository,
	departmentRepo identity.DepartmentRepository,
	events shared.EventPublisher,
	logger *zap.Logger,
) *UserService {
	return &UserService{
		userRepo:       userRepo,
		roleRepo:       roleRepo,
		departmentRepo: departmentRepo,
		events:         events,
		logger:         logger,
	}
}

// CreateUserInput contains input for creating a staff user
type CreateUserInput struct {
	Username     string
	Email        string
	Password     string
	DisplayName  string
	DepartmentID *uuid.UUID
	RoleIDs      []uuid.UUID
	CreatedBy    uuid.UUID
}

// UpdateUserInput contains the mutable profile fields
type UpdateUserInput struct {
	Email        *string
	DisplayName  *string
	DepartmentID *uuid.UUID
	// ClearDepartment removes the department assignment
	ClearDepartment bool
}

// Create adds a staff user to the tenant
func (s *UserService) Create(ctx context.Context, tenantID uuid.UUID, input CreateUserInput) (*UserDTO, error) {
	exists, err := s.userRepo.ExistsByUsername(ctx, tenantID, input.Username)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, shared.NewDomainError("USERNAME_EXISTS", "Username is already taken")
	}

	user, err := identity.NewUser(tenantID, input.Username, input.Email, input.Password)
	if err != nil {
		return nil, err
	}
	user.SetCreatedBy(input.CreatedBy)
	if input.DisplayName != "" {
		if err := user.UpdateProfile(user.Email, input.DisplayName); err != nil {
			return nil, err
		}
	}
	if input.DepartmentID != nil {
		if err := s.checkDepartment(ctx, tenantID, *input.DepartmentID); err != nil {
			return nil, err
		}
		user.SetDepartment(input.DepartmentID)
	}
	if len(input.RoleIDs) > 0 {
		if err := s.checkRoles(ctx, tenantID, input.RoleIDs); err != nil {
			return nil, err
		}
		user.SetRoles(input.RoleIDs)
	}

	if err := s.userRepo.Save(ctx, user); err != nil {
		return nil, err
	}
	s.publish(ctx, user)
	s.logger.Info("User created", zap.String("user_id", user.ID.String()), zap.String("username", user.Username))

	dto := ToUserDTO(user)
	return &dto, nil
}

// GetByID returns one user
func (s *UserService) GetByID(ctx context.Context, tenantID, id uuid.UUID) (*UserDTO, error) {
	user, err := s.userRepo.FindByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	dto := ToUserDTO(user)
	return &dto, nil
}

// List returns users matching the filter (search, status, role_id, department_id)
func (s *UserService) List(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]UserDTO, int64, error) {
	users, total, err := s.userRepo.FindAll(ctx, tenantID, filter.Normalize())
	if err != nil {
		return nil, 0, err
	}
	out := make([]UserDTO, len(users))
	for i := range users {
		out[i] = ToUserDTO(&users[i])
	}
	return out, total, nil
}

// Update changes profile fields
func (s *UserService) Update(ctx context.Context, tenantID, id uuid.UUID, input UpdateUserInput) (*UserDTO, error) {
	user, err := s.userRepo.FindByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	email, name := user.Email, user.DisplayName
	if input.Email != nil {
		email = *input.Email
	}
	if input.DisplayName != nil {
		name = *input.DisplayName
	}
	if err := user.UpdateProfile(email, name); err != nil {
		return nil, err
	}
	switch {
	case input.ClearDepartment:
		user.SetDepartment(nil)
	case input.DepartmentID != nil:
		if err := s.checkDepartment(ctx, tenantID, *input.DepartmentID); err != nil {
			return nil, err
		}
		user.SetDepartment(input.DepartmentID)
	}
	return s.save(ctx, user)
}

// AssignRoles replaces the roles of a user
func (s *UserService) AssignRoles(ctx context.Context, tenantID, id uuid.UUID, roleIDs []uuid.UUID) (*UserDTO, error) {
	user, err := s.userRepo.FindByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if err := s.checkRoles(ctx, tenantID, roleIDs); err != nil {
		return nil, err
	}
	user.SetRoles(roleIDs)
	return s.save(ctx, user)
}

// ChangePassword lets a user change their own password
func (s *UserService) ChangePassword(ctx context.Context, tenantID, id uuid.UUID, oldPassword, newPassword string) error {
	user, err := s.userRepo.FindByID(ctx, tenantID, id)
	if err != nil {
		return err
	}
	if err := user.ChangePassword(oldPassword, newPassword); err != nil {
		return err
	}
	_, err = s.save(ctx, user)
	return err
}

// ResetPassword sets a new password without the old one and clears any lock
func (s *UserService) ResetPassword(ctx context.Context, tenantID, id uuid.UUID, newPassword string) error {
	user, err := s.userRepo.FindByID(ctx, tenantID, id)
	if err != nil {
		return err
	}
	if err := user.SetPassword(newPassword); err != nil {
		return err
	}
	if user.Status == identity.UserStatusLocked {
		user.Activate()
	}
	_, err = s.save(ctx, user)
	return err
}

// Activate enables a user and clears the lockout
func (s *UserService) Activate(ctx context.Context, tenantID, id uuid.UUID) (*UserDTO, error) {
	user, err := s.userRepo.FindByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	user.Activate()
	return s.save(ctx, user)
}

// Deactivate disables a user. Users cannot deactivate themselves.
func (s *UserService) Deactivate(ctx context.Context, tenantID, id, actorID uuid.UUID) (*UserDTO, error) {
	if id == actorID {
		return nil, shared.NewDomainError("CANNOT_DEACTIVATE_SELF", "You cannot deactivate your own account")
	}
	user, err := s.userRepo.FindByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if err := user.Deactivate(); err != nil {
		return nil, err
	}
	return s.save(ctx, user)
}

// Delete soft-deletes a user
func (s *UserService) Delete(ctx context.Context, tenantID, id, actorID uuid.UUID) error {
	if id == actorID {
		return shared.NewDomainError("CANNOT_DELETE_SELF", "You cannot delete your own account")
	}
	user, err := s.userRepo.FindByID(ctx, tenantID, id)
	if err != nil {
		return err
	}
	if err := s.userRepo.Delete(ctx, tenantID, id); err != nil {
		return err
	}
	user.AddDomainEvent(shared.NewRecordEvent(identity.AggregateTypeUser, "deleted", user.ID, tenantID, map[string]any{"username": user.Username}))
	s.publish(ctx, user)
	return nil
}

func (s *UserService) checkRoles(ctx context.Context, tenantID uuid.UUID, roleIDs []uuid.UUID) error {
	roles, err := s.roleRepo.FindByIDs(ctx, tenantID, roleIDs)
	if err != nil {
		return err
	}
	found := make(map[uuid.UUID]struct{}, len(roles))
	for _, r := range roles {
		found[r.ID] = struct{}{}
	}
	for _, id := range roleIDs {
		if _, ok := found[id]; !ok {
			return shared.NewDomainError("ROLE_NOT_FOUND", "Role not found: "+id.String())
		}
	}
	return nil
}

func (s *UserService) checkDepartment(ctx context.Context, tenantID, departmentID uuid.UUID) error {
	dept, err := s.departmentRepo.FindByID(ctx, tenantID, departmentID)
	if err != nil {
		return err
	}
	if !dept.Active {
		return shared.NewDomainError("DEPARTMENT_INACTIVE", "Department is not active")
	}
	return nil
}

func (s *UserService) save(ctx context.Context, user *identity.User) (*UserDTO, error) {
	if err := s.userRepo.Save(ctx, user); err != nil {
		return nil, err
	}
	s.publish(ctx, user)
	dto := ToUserDTO(user)
	return &dto, nil
}

func (s *UserService) publish(ctx context.Context, user *identity.User) {
	if err := shared.PublishAndClear(ctx, s.events, user); err != nil {
		s.logger.Warn("Failed to publish user events", zap.Error(err))
	}
}
