package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	identityapp "github.com/taxcrm/backend/internal/application/identity"
)

// TenantHandler handles practice registration and settings
type TenantHandler struct {
	BaseHandler
	tenants *identityapp.TenantService
}

// NewTenantHandler creates a new tenant handler
func NewTenantHandler(tenants *identityapp.TenantService) *TenantHandler {
	return &TenantHandler{tenants: tenants}
}

// CreateTenantRequest registers a practice with an optional first admin
type CreateTenantRequest struct {
	Name          string `json:"name" binding:"required,max=200" example:"Smith Tax Services"`
	ContactEmail  string `json:"contact_email" binding:"omitempty,email"`
	AdminUsername string `json:"admin_username" binding:"required_with=AdminPassword,omitempty,max=100"`
	AdminEmail    string `json:"admin_email" binding:"omitempty,email"`
	AdminPassword string `json:"admin_password" binding:"required_with=AdminUsername,omitempty,min=8,max=128"`
}

// UpdateTenantRequest changes tenant settings
type UpdateTenantRequest struct {
	Name                  *string `json:"name" binding:"omitempty,max=200"`
	BackupChangeThreshold *int    `json:"backup_change_threshold" binding:"omitempty,min=1"`
}

// Create godoc
// @Summary      Register a practice
// @Description  Creates the tenant, seeds its default roles and, when given, its first admin user
// @Tags         tenants
// @Accept       json
// @Produce      json
// @Param        request body CreateTenantRequest true "Tenant"
// @Success      201 {object} APIResponse[identityapp.TenantDTO]
// @Failure      409 {object} dto.ErrorResponse
// @Security     BearerAuth
// @Router       /tenants [post]
func (h *TenantHandler) Create(c *gin.Context) {
	var req CreateTenantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}
	tenant, err := h.tenants.Create(c.Request.Context(), identityapp.CreateTenantInput{
		Name:          req.Name,
		ContactEmail:  req.ContactEmail,
		AdminUsername: req.AdminUsername,
		AdminEmail:    req.AdminEmail,
		AdminPassword: req.AdminPassword,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, tenant)
}

// List godoc
// @Summary      List practices
// @Tags         tenants
// @Produce      json
// @Param        status query string false "Status"
// @Success      200 {object} APIResponse[[]identityapp.TenantDTO]
// @Security     BearerAuth
// @Router       /tenants [get]
func (h *TenantHandler) List(c *gin.Context) {
	filter, ok := h.listFilter(c, "status")
	if !ok {
		return
	}
	tenants, total, err := h.tenants.List(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, tenants, total, filter)
}

// GetByID godoc
// @Summary      Get a practice
// @Tags         tenants
// @Produce      json
// @Param        id path string true "Tenant ID"
// @Success      200 {object} APIResponse[identityapp.TenantDTO]
// @Security     BearerAuth
// @Router       /tenants/{id} [get]
func (h *TenantHandler) GetByID(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	h.get(c, id)
}

// Current godoc
// @Summary      The caller's practice
// @Tags         tenants
// @Produce      json
// @Success      200 {object} APIResponse[identityapp.TenantDTO]
// @Security     BearerAuth
// @Router       /tenant [get]
func (h *TenantHandler) Current(c *gin.Context) {
	p, ok := h.principal(c)
	if !ok {
		return
	}
	h.get(c, p.TenantID)
}

func (h *TenantHandler) get(c *gin.Context, id uuid.UUID) {
	tenant, err := h.tenants.GetByID(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, tenant)
}

// Update godoc
// @Summary      Update practice settings
// @Tags         tenants
// @Accept       json
// @Produce      json
// @Param        id path string true "Tenant ID"
// @Param        request body UpdateTenantRequest true "Settings"
// @Success      200 {object} APIResponse[identityapp.TenantDTO]
// @Security     BearerAuth
// @Router       /tenants/{id} [put]
func (h *TenantHandler) Update(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	h.update(c, id)
}

// UpdateCurrent godoc
// @Summary      Update the caller's practice settings
// @Tags         tenants
// @Accept       json
// @Produce      json
// @Param        request body UpdateTenantRequest true "Settings"
// @Success      200 {object} APIResponse[identityapp.TenantDTO]
// @Security     BearerAuth
// @Router       /tenant [put]
func (h *TenantHandler) UpdateCurrent(c *gin.Context) {
	p, ok := h.principal(c)
	if !ok {
		return
	}
	h.update(c, p.TenantID)
}

func (h *TenantHandler) update(c *gin.Context, id uuid.UUID) {
	var req UpdateTenantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}
	tenant, err := h.tenants.Update(c.Request.Context(), id, identityapp.UpdateTenantInput{
		Name:                  req.Name,
		BackupChangeThreshold: req.BackupChangeThreshold,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, tenant)
}

// Suspend godoc
// @Summary      Suspend a practice
// @Description  Staff and client logins of the practice are refused until reactivated
// @Tags         tenants
// @Produce      json
// @Param        id path string true "Tenant ID"
// @Success      200 {object} APIResponse[identityapp.TenantDTO]
// @Security     BearerAuth
// @Router       /tenants/{id}/suspend [post]
func (h *TenantHandler) Suspend(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	tenant, err := h.tenants.Suspend(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, tenant)
}

// Activate godoc
// @Summary      Reactivate a practice
// @Tags         tenants
// @Produce      json
// @Param        id path string true "Tenant ID"
// @Success      200 {object} APIResponse[identityapp.TenantDTO]
// @Security     BearerAuth
// @Router       /tenants/{id}/activate [post]
func (h *TenantHandler) Activate(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	tenant, err := h.tenants.Activate(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, tenant)
}

// UserHandler handles staff users
type UserHandler struct {
	BaseHandler
	users *identityapp.UserService
}

// NewUserHandler creates a new user handler
func NewUserHandler(users *identityapp.UserService) *UserHandler {
	return &UserHandler{users: users}
}

// CreateUserRequest adds a staff user
type CreateUserRequest struct {
	Username     string      `json:"username" binding:"required,min=3,max=100" example:"jsmith"`
	Email        string      `json:"email" binding:"omitempty,email"`
	Password     string      `json:"password" binding:"required,min=8,max=128"`
	DisplayName  string      `json:"display_name" binding:"max=200"`
	DepartmentID *uuid.UUID  `json:"department_id"`
	RoleIDs      []uuid.UUID `json:"role_ids"`
}

// UpdateUserRequest changes a staff user's profile
type UpdateUserRequest struct {
	Email           *string    `json:"email" binding:"omitempty,email"`
	DisplayName     *string    `json:"display_name" binding:"omitempty,max=200"`
	DepartmentID    *uuid.UUID `json:"department_id"`
	ClearDepartment bool       `json:"clear_department"`
}

// AssignRolesRequest replaces a user's roles
type AssignRolesRequest struct {
	RoleIDs []uuid.UUID `json:"role_ids" binding:"required"`
}

// ResetPasswordRequest sets a user's password administratively
type ResetPasswordRequest struct {
	NewPassword string `json:"new_password" binding:"required,min=8,max=128"`
}

// Create godoc
// @Summary      Create a staff user
// @Tags         users
// @Accept       json
// @Produce      json
// @Param        request body CreateUserRequest true "User"
// @Success      201 {object} APIResponse[identityapp.UserDTO]
// @Failure      409 {object} dto.ErrorResponse
// @Security     BearerAuth
// @Router       /users [post]
func (h *UserHandler) Create(c *gin.Context) {
	p, ok := h.principal(c)
	if !ok {
		return
	}
	var req CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}
	user, err := h.users.Create(c.Request.Context(), p.TenantID, identityapp.CreateUserInput{
		Username:     req.Username,
		Email:        req.Email,
		Password:     req.Password,
		DisplayName:  req.DisplayName,
		DepartmentID: req.DepartmentID,
		RoleIDs:      req.RoleIDs,
		CreatedBy:    p.UserID,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, user)
}

// List godoc
// @Summary      List staff users
// @Tags         users
// @Produce      json
// @Param        status query string false "Status"
// @Param        department_id query string false "Department"
// @Param        role_id query string false "Role"
// @Success      200 {object} APIResponse[[]identityapp.UserDTO]
// @Security     BearerAuth
// @Router       /users [get]
func (h *UserHandler) List(c *gin.Context) {
	p, ok := h.principal(c)
	if !ok {
		return
	}
	filter, ok := h.listFilter(c, "status", "department_id", "role_id")
	if !ok {
		return
	}
	users, total, err := h.users.List(c.Request.Context(), p.TenantID, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, users, total, filter)
}

// GetByID godoc
// @Summary      Get a staff user
// @Tags         users
// @Produce      json
// @Param        id path string true "User ID"
// @Success      200 {object} APIResponse[identityapp.UserDTO]
// @Security     BearerAuth
// @Router       /users/{id} [get]
func (h *UserHandler) GetByID(c *gin.Context) {
	p, ok := h.principal(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	user, err := h.users.GetByID(c.Request.Context(), p.TenantID, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, user)
}

// Update godoc
// @Summary      Update a staff user
// @Tags         users
// @Accept       json
// @Produce      json
// @Param        id path string true "User ID"
// @Param        request body UpdateUserRequest true "Profile"
// @Success      200 {object} APIResponse[identityapp.UserDTO]
// @Security     BearerAuth
// @Router       /users/{id} [put]
func (h *UserHandler) Update(c *gin.Context) {
	p, ok := h.principal(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	var req UpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}
	user, err := h.users.Update(c.Request.Context(), p.TenantID, id, identityapp.UpdateUserInput{
		Email:           req.Email,
		DisplayName:     req.DisplayName,
		DepartmentID:    req.DepartmentID,
		ClearDepartment: req.ClearDepartment,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, user)
}

// AssignRoles godoc
// @Summary      Replace a user's roles
// @Tags         users
// @Accept       json
// @Produce      json
// @Param        id path string true "User ID"
// @Param        request body AssignRolesRequest true "Roles"
// @Success      200 {object} APIResponse[identityapp.UserDTO]
// @Security     BearerAuth
// @Router       /users/{id}/roles [put]
func (h *UserHandler) AssignRoles(c *gin.Context) {
	p, ok := h.principal(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	var req AssignRolesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}
	user, err := h.users.AssignRoles(c.Request.Context(), p.TenantID, id, req.RoleIDs)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, user)
}

// ResetPassword godoc
// @Summary      Reset a user's password
// @Tags         users
// @Accept       json
// @Param        id path string true "User ID"
// @Param        request body ResetPasswordRequest true "New password"
// @Success      204
// @Security     BearerAuth
// @Router       /users/{id}/reset-password [post]
func (h *UserHandler) ResetPassword(c *gin.Context) {
	p, ok := h.principal(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	var req ResetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}
	if err := h.users.ResetPassword(c.Request.Context(), p.TenantID, id, req.NewPassword); err != nil {
		h.HandleError(c, err)
		return
	}
	h.NoContent(c)
}

// Activate godoc
// @Summary      Activate a user
// @Tags         users
// @Produce      json
// @Param        id path string true "User ID"
// @Success      200 {object} APIResponse[identityapp.UserDTO]
// @Security     BearerAuth
// @Router       /users/{id}/activate [post]
func (h *UserHandler) Activate(c *gin.Context) {
	p, ok := h.principal(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	user, err := h.users.Activate(c.Request.Context(), p.TenantID, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, user)
}

// Deactivate godoc
// @Summary      Deactivate a user
// @Description  Users cannot deactivate themselves
// @Tags         users
// @Produce      json
// @Param        id path string true "User ID"
// @Success      200 {object} APIResponse[identityapp.UserDTO]
// @Security     BearerAuth
// @Router       /users/{id}/deactivate [post]
func (h *UserHandler) Deactivate(c *gin.Context) {
	p, ok := h.principal(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	user, err := h.users.Deactivate(c.Request.Context(), p.TenantID, id, p.UserID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, user)
}

// Delete godoc
// @Summary      Delete a user
// @Tags         users
// @Param        id path string true "User ID"
// @Success      204
// @Security     BearerAuth
// @Router       /users/{id} [delete]
func (h *UserHandler) Delete(c *gin.Context) {
	p, ok := h.principal(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	if err := h.users.Delete(c.Request.Context(), p.TenantID, id, p.UserID); err != nil {
		h.HandleError(c, err)
		return
	}
	h.NoContent(c)
}

// RoleHandler handles roles and the permission catalogue
type RoleHandler struct {
	BaseHandler
	roles *identityapp.RoleService
}

// NewRoleHandler creates a new role handler
func NewRoleHandler(roles *identityapp.RoleService) *RoleHandler {
	return &RoleHandler{roles: roles}
}

// RoleRequest creates or replaces a role
type RoleRequest struct {
	Code        string   `json:"code" binding:"required,max=50" example:"reviewer"`
	Name        string   `json:"name" binding:"required,max=100" example:"Reviewer"`
	Description string   `json:"description" binding:"max=500"`
	Permissions []string `json:"permissions" binding:"dive,max=100"`
}

func (r RoleRequest) input() identityapp.RoleInput {
	return identityapp.RoleInput{Code: r.Code, Name: r.Name, Description: r.Description, Permissions: r.Permissions}
}

// Create godoc
// @Summary      Create a role
// @Tags         roles
// @Accept       json
// @Produce      json
// @Param        request body RoleRequest true "Role"
// @Success      201 {object} APIResponse[identityapp.RoleDTO]
// @Security     BearerAuth
// @Router       /roles [post]
func (h *RoleHandler) Create(c *gin.Context) {
	p, ok := h.principal(c)
	if !ok {
		return
	}
	var req RoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}
	role, err := h.roles.Create(c.Request.Context(), p.TenantID, req.input())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, role)
}

// List godoc
// @Summary      List roles
// @Tags         roles
// @Produce      json
// @Success      200 {object} APIResponse[[]identityapp.RoleDTO]
// @Security     BearerAuth
// @Router       /roles [get]
func (h *RoleHandler) List(c *gin.Context) {
	p, ok := h.principal(c)
	if !ok {
		return
	}
	roles, err := h.roles.List(c.Request.Context(), p.TenantID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, roles)
}

// Permissions godoc
// @Summary      Known permission strings
// @Tags         roles
// @Produce      json
// @Success      200 {object} APIResponse[[]string]
// @Security     BearerAuth
// @Router       /roles/permissions [get]
func (h *RoleHandler) Permissions(c *gin.Context) {
	h.Success(c, h.roles.Permissions())
}

// GetByID godoc
// @Summary      Get a role
// @Tags         roles
// @Produce      json
// @Param        id path string true "Role ID"
// @Success      200 {object} APIResponse[identityapp.RoleDTO]
// @Security     BearerAuth
// @Router       /roles/{id} [get]
func (h *RoleHandler) GetByID(c *gin.Context) {
	p, ok := h.principal(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	role, err := h.roles.GetByID(c.Request.Context(), p.TenantID, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, role)
}

// Update godoc
// @Summary      Update a role
// @Tags         roles
// @Accept       json
// @Produce      json
// @Param        id path string true "Role ID"
// @Param        request body RoleRequest true "Role"
// @Success      200 {object} APIResponse[identityapp.RoleDTO]
// @Security     BearerAuth
// @Router       /roles/{id} [put]
func (h *RoleHandler) Update(c *gin.Context) {
	p, ok := h.principal(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	var req RoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}
	role, err := h.roles.Update(c.Request.Context(), p.TenantID, id, req.input())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, role)
}

// Delete godoc
// @Summary      Delete a custom role
// @Tags         roles
// @Param        id path string true "Role ID"
// @Success      204
// @Security     BearerAuth
// @Router       /roles/{id} [delete]
func (h *RoleHandler) Delete(c *gin.Context) {
	p, ok := h.principal(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	if err := h.roles.Delete(c.Request.Context(), p.TenantID, id); err != nil {
		h.HandleError(c, err)
		return
	}
	h.NoContent(c)
}

// DepartmentHandler handles practice departments
type DepartmentHandler struct {
	BaseHandler
	departments *identityapp.DepartmentService
}

// NewDepartmentHandler creates a new department handler
func NewDepartmentHandler(departments *identityapp.DepartmentService) *DepartmentHandler {
	return &DepartmentHandler{departments: departments}
}

// DepartmentRequest creates or replaces a department
type DepartmentRequest struct {
	Code        string `json:"code" binding:"required,max=50" example:"individual"`
	Name        string `json:"name" binding:"required,max=100" example:"Individual Returns"`
	Description string `json:"description" binding:"max=500"`
	Active      *bool  `json:"active"`
}

func (r DepartmentRequest) input() identityapp.DepartmentInput {
	return identityapp.DepartmentInput{Code: r.Code, Name: r.Name, Description: r.Description, Active: r.Active}
}

// Create godoc
// @Summary      Create a department
// @Tags         departments
// @Accept       json
// @Produce      json
// @Param        request body DepartmentRequest true "Department"
// @Success      201 {object} APIResponse[identityapp.DepartmentDTO]
// @Security     BearerAuth
// @Router       /departments [post]
func (h *DepartmentHandler) Create(c *gin.Context) {
	p, ok := h.principal(c)
	if !ok {
		return
	}
	var req DepartmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}
	dept, err := h.departments.Create(c.Request.Context(), p.TenantID, req.input())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, dept)
}

// List godoc
// @Summary      List departments
// @Tags         departments
// @Produce      json
// @Param        active query bool false "Active flag"
// @Success      200 {object} APIResponse[[]identityapp.DepartmentDTO]
// @Security     BearerAuth
// @Router       /departments [get]
func (h *DepartmentHandler) List(c *gin.Context) {
	p, ok := h.principal(c)
	if !ok {
		return
	}
	filter, ok := h.listFilter(c, "active")
	if !ok {
		return
	}
	depts, total, err := h.departments.List(c.Request.Context(), p.TenantID, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, depts, total, filter)
}

// GetByID godoc
// @Summary      Get a department
// @Tags         departments
// @Produce      json
// @Param        id path string true "Department ID"
// @Success      200 {object} APIResponse[identityapp.DepartmentDTO]
// @Security     BearerAuth
// @Router       /departments/{id} [get]
func (h *DepartmentHandler) GetByID(c *gin.Context) {
	p, ok := h.principal(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	dept, err := h.departments.GetByID(c.Request.Context(), p.TenantID, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dept)
}

// Update godoc
// @Summary      Update a department
// @Tags         departments
// @Accept       json
// @Produce      json
// @Param        id path string true "Department ID"
// @Param        request body DepartmentRequest true "Department"
// @Success      200 {object} APIResponse[identityapp.DepartmentDTO]
// @Security     BearerAuth
// @Router       /departments/{id} [put]
func (h *DepartmentHandler) Update(c *gin.Context) {
	p, ok := h.principal(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	var req DepartmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}
	dept, err := h.departments.Update(c.Request.Context(), p.TenantID, id, req.input())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dept)
}

// Delete godoc
// @Summary      Delete a department
// @Tags         departments
// @Param        id path string true "Department ID"
// @Success      204
// @Security     BearerAuth
// @Router       /departments/{id} [delete]
func (h *DepartmentHandler) Delete(c *gin.Context) {
	p, ok := h.principal(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	if err := h.departments.Delete(c.Request.Context(), p.TenantID, id); err != nil {
		h.HandleError(c, err)
		return
	}
	h.NoContent(c)
}
