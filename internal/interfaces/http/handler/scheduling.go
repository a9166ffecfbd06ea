package handler

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	schedulingapp "github.com/taxcrm/backend/internal/application/scheduling"
)

// AppointmentHandler handles client appointments
type AppointmentHandler struct {
	BaseHandler
	appointments *schedulingapp.AppointmentService
}

// NewAppointmentHandler creates a new appointment handler
func NewAppointmentHandler(appointments *schedulingapp.AppointmentService) *AppointmentHandler {
	return &AppointmentHandler{appointments: appointments}
}

// AppointmentRequest books or reschedules an appointment
type AppointmentRequest struct {
	ContactID uuid.UUID `json:"contact_id" binding:"required"`
	StaffID   uuid.UUID `json:"staff_id" binding:"required"`
	Title     string    `json:"title" binding:"required,max=255" example:"Annual review"`
	StartsAt  time.Time `json:"starts_at" binding:"required"`
	EndsAt    time.Time `json:"ends_at" binding:"required,gtfield=StartsAt"`
	Kind      string    `json:"kind" binding:"omitempty,oneof=in_person phone video"`
	Location  string    `json:"location" binding:"max=255"`
	Notes     string    `json:"notes" binding:"max=5000"`
}

func (r AppointmentRequest) input() schedulingapp.AppointmentInput {
	return schedulingapp.AppointmentInput{
		ContactID: r.ContactID,
		StaffID:   r.StaffID,
		Title:     r.Title,
		StartsAt:  r.StartsAt,
		EndsAt:    r.EndsAt,
		Kind:      r.Kind,
		Location:  r.Location,
		Notes:     r.Notes,
	}
}

// Create godoc
// @Summary      Book an appointment
// @Description  Rejected when the staff member already has an overlapping booking
// @Tags         appointments
// @Accept       json
// @Produce      json
// @Param        request body AppointmentRequest true "Appointment"
// @Success      201 {object} APIResponse[schedulingapp.AppointmentDTO]
// @Failure      409 {object} dto.ErrorResponse
// @Security     BearerAuth
// @Router       /appointments [post]
func (h *AppointmentHandler) Create(c *gin.Context) {
	p, ok := h.principal(c)
	if !ok {
		return
	}
	var req AppointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}
	appt, err := h.appointments.Create(c.Request.Context(), p.TenantID, p.UserID, req.input())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, appt)
}

// List godoc
// @Summary      List appointments
// @Description  Ordered by start time unless order_by is given
// @Tags         appointments
// @Produce      json
// @Param        staff_id query string false "Staff member"
// @Param        contact_id query string false "Contact"
// @Param        status query string false "Status"
// @Param        from query string false "Start bound (RFC3339)"
// @Param        to query string false "End bound (RFC3339)"
// @Success      200 {object} APIResponse[[]schedulingapp.AppointmentDTO]
// @Security     BearerAuth
// @Router       /appointments [get]
func (h *AppointmentHandler) List(c *gin.Context) {
	p, ok := h.principal(c)
	if !ok {
		return
	}
	filter, ok := h.listFilter(c, "staff_id", "contact_id", "status", "from", "to")
	if !ok {
		return
	}
	appts, total, err := h.appointments.List(c.Request.Context(), p.TenantID, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, appts, total, filter)
}

// GetByID godoc
// @Summary      Get an appointment
// @Tags         appointments
// @Produce      json
// @Param        id path string true "Appointment ID"
// @Success      200 {object} APIResponse[schedulingapp.AppointmentDTO]
// @Failure      404 {object} dto.ErrorResponse
// @Security     BearerAuth
// @Router       /appointments/{id} [get]
func (h *AppointmentHandler) GetByID(c *gin.Context) {
	p, ok := h.principal(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	appt, err := h.appointments.GetByID(c.Request.Context(), p.TenantID, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, appt)
}

// Update godoc
// @Summary      Reschedule an appointment
// @Tags         appointments
// @Accept       json
// @Produce      json
// @Param        id path string true "Appointment ID"
// @Param        request body AppointmentRequest true "Appointment"
// @Success      200 {object} APIResponse[schedulingapp.AppointmentDTO]
// @Failure      409 {object} dto.ErrorResponse
// @Security     BearerAuth
// @Router       /appointments/{id} [put]
func (h *AppointmentHandler) Update(c *gin.Context) {
	p, ok := h.principal(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	var req AppointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}
	appt, err := h.appointments.Update(c.Request.Context(), p.TenantID, id, req.input())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, appt)
}

// ChangeStatus godoc
// @Summary      Confirm, complete or cancel an appointment
// @Tags         appointments
// @Accept       json
// @Produce      json
// @Param        id path string true "Appointment ID"
// @Param        request body StatusRequest true "Target status"
// @Success      200 {object} APIResponse[schedulingapp.AppointmentDTO]
// @Failure      409 {object} dto.ErrorResponse
// @Security     BearerAuth
// @Router       /appointments/{id}/status [put]
func (h *AppointmentHandler) ChangeStatus(c *gin.Context) {
	p, ok := h.principal(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	var req StatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}
	appt, err := h.appointments.ChangeStatus(c.Request.Context(), p.TenantID, id, req.Status)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, appt)
}

// Delete godoc
// @Summary      Delete an appointment
// @Tags         appointments
// @Param        id path string true "Appointment ID"
// @Success      204
// @Security     BearerAuth
// @Router       /appointments/{id} [delete]
func (h *AppointmentHandler) Delete(c *gin.Context) {
	p, ok := h.principal(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	if err := h.appointments.Delete(c.Request.Context(), p.TenantID, id); err != nil {
		h.HandleError(c, err)
		return
	}
	h.NoContent(c)
}

// TaskHandler handles staff tasks
type TaskHandler struct {
	BaseHandler
	tasks *schedulingapp.TaskService
}

// NewTaskHandler creates a new task handler
func NewTaskHandler(tasks *schedulingapp.TaskService) *TaskHandler {
	return &TaskHandler{tasks: tasks}
}

// TaskRequest creates or replaces a task
type TaskRequest struct {
	Title       string     `json:"title" binding:"required,max=255" example:"Request W-2 from client"`
	Description string     `json:"description" binding:"max=5000"`
	AssigneeID  *uuid.UUID `json:"assignee_id"`
	ContactID   *uuid.UUID `json:"contact_id"`
	TaxCaseID   *uuid.UUID `json:"tax_case_id"`
	DueDate     string     `json:"due_date" binding:"omitempty,datetime=2006-01-02"`
	Priority    string     `json:"priority" binding:"omitempty,oneof=low normal high"`
}

func (r TaskRequest) input() schedulingapp.TaskInput {
	return schedulingapp.TaskInput{
		Title:       r.Title,
		Description: r.Description,
		AssigneeID:  r.AssigneeID,
		ContactID:   r.ContactID,
		TaxCaseID:   r.TaxCaseID,
		DueDate:     optionalDate(r.DueDate),
		Priority:    r.Priority,
	}
}

// Create godoc
// @Summary      Create a task
// @Tags         tasks
// @Accept       json
// @Produce      json
// @Param        request body TaskRequest true "Task"
// @Success      201 {object} APIResponse[schedulingapp.TaskDTO]
// @Security     BearerAuth
// @Router       /tasks [post]
func (h *TaskHandler) Create(c *gin.Context) {
	p, ok := h.principal(c)
	if !ok {
		return
	}
	var req TaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}
	task, err := h.tasks.Create(c.Request.Context(), p.TenantID, p.UserID, req.input())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, task)
}

// List godoc
// @Summary      List tasks
// @Tags         tasks
// @Produce      json
// @Param        assignee_id query string false "Assignee"
// @Param        contact_id query string false "Contact"
// @Param        tax_case_id query string false "Tax case"
// @Param        status query string false "Status"
// @Param        overdue query bool false "Only overdue tasks"
// @Success      200 {object} APIResponse[[]schedulingapp.TaskDTO]
// @Security     BearerAuth
// @Router       /tasks [get]
func (h *TaskHandler) List(c *gin.Context) {
	p, ok := h.principal(c)
	if !ok {
		return
	}
	filter, ok := h.listFilter(c, "assignee_id", "contact_id", "tax_case_id", "status", "overdue")
	if !ok {
		return
	}
	tasks, total, err := h.tasks.List(c.Request.Context(), p.TenantID, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, tasks, total, filter)
}

// GetByID godoc
// @Summary      Get a task
// @Tags         tasks
// @Produce      json
// @Param        id path string true "Task ID"
// @Success      200 {object} APIResponse[schedulingapp.TaskDTO]
// @Failure      404 {object} dto.ErrorResponse
// @Security     BearerAuth
// @Router       /tasks/{id} [get]
func (h *TaskHandler) GetByID(c *gin.Context) {
	p, ok := h.principal(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	task, err := h.tasks.GetByID(c.Request.Context(), p.TenantID, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, task)
}

// Update godoc
// @Summary      Update a task
// @Tags         tasks
// @Accept       json
// @Produce      json
// @Param        id path string true "Task ID"
// @Param        request body TaskRequest true "Task"
// @Success      200 {object} APIResponse[schedulingapp.TaskDTO]
// @Security     BearerAuth
// @Router       /tasks/{id} [put]
func (h *TaskHandler) Update(c *gin.Context) {
	p, ok := h.principal(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	var req TaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}
	task, err := h.tasks.Update(c.Request.Context(), p.TenantID, p.UserID, id, req.input())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, task)
}

// ChangeStatus godoc
// @Summary      Move a task to another status
// @Tags         tasks
// @Accept       json
// @Produce      json
// @Param        id path string true "Task ID"
// @Param        request body StatusRequest true "Target status"
// @Success      200 {object} APIResponse[schedulingapp.TaskDTO]
// @Failure      409 {object} dto.ErrorResponse
// @Security     BearerAuth
// @Router       /tasks/{id}/status [put]
func (h *TaskHandler) ChangeStatus(c *gin.Context) {
	p, ok := h.principal(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	var req StatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}
	task, err := h.tasks.ChangeStatus(c.Request.Context(), p.TenantID, p.UserID, id, req.Status)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, task)
}

// Complete godoc
// @Summary      Complete a task
// @Tags         tasks
// @Produce      json
// @Param        id path string true "Task ID"
// @Success      200 {object} APIResponse[schedulingapp.TaskDTO]
// @Security     BearerAuth
// @Router       /tasks/{id}/complete [post]
func (h *TaskHandler) Complete(c *gin.Context) {
	p, ok := h.principal(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	task, err := h.tasks.Complete(c.Request.Context(), p.TenantID, p.UserID, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, task)
}

// Delete godoc
// @Summary      Delete a task
// @Tags         tasks
// @Param        id path string true "Task ID"
// @Success      204
// @Security     BearerAuth
// @Router       /tasks/{id} [delete]
func (h *TaskHandler) Delete(c *gin.Context) {
	p, ok := h.principal(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	if err := h.tasks.Delete(c.Request.Context(), p.TenantID, id); err != nil {
		h.HandleError(c, err)
		return
	}
	h.NoContent(c)
}
