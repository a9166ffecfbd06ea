package scheduling

import (
	"context"
	"time"

	"github.com/google/uuid"
	workflowapp "github.com/taxcrm/backend/internal/application/workflow"
	"github.com/taxcrm/backend/internal/domain/scheduling"
	"github.com/taxcrm/backend/internal/domain/shared"
	"github.com/taxcrm/backend/internal/domain/workflow"
	"go.uber.org/zap"
)

// TaskService manages staff to-do items
type TaskService struct {
	taskRepo scheduling.TaskRepository
	gate     workflowapp.Gate
	events   shared.EventPublisher
	logger   *zap.Logger
	now      func() time.Time
}

// NewTaskService creates a new task service. gate may be nil.
func NewTaskService(taskRepo scheduling.TaskRepository, gate workflowapp.Gate, events shared.EventPublisher, logger *zap.Logger) *TaskService {
	return &TaskService{taskRepo: taskRepo, gate: gate, events: events, logger: logger, now: time.Now}
}

// TaskInput contains the editable task fields
type TaskInput struct {
	Title       string
	Description string
	AssigneeID  *uuid.UUID
	ContactID   *uuid.UUID
	TaxCaseID   *uuid.UUID
	DueDate     *time.Time
	Priority    string
}

// Create adds a task
func (s *TaskService) Create(ctx context.Context, tenantID, userID uuid.UUID, input TaskInput) (*TaskDTO, error) {
	task, err := s.newTask(tenantID, input)
	if err != nil {
		return nil, err
	}
	task.SetCreatedBy(userID)
	return s.save(ctx, task, userID)
}

// CreateByAgent adds a task on behalf of the AI agent. No user owns the change,
// so on-save approvals are not evaluated.
func (s *TaskService) CreateByAgent(ctx context.Context, tenantID uuid.UUID, input TaskInput) (*TaskDTO, error) {
	task, err := s.newTask(tenantID, input)
	if err != nil {
		return nil, err
	}
	task.CreatedByAgent = true
	if err := s.taskRepo.Save(ctx, task); err != nil {
		return nil, err
	}
	s.publish(ctx, task)
	dto := ToTaskDTO(task, s.now())
	return &dto, nil
}

// GetByID returns one task
func (s *TaskService) GetByID(ctx context.Context, tenantID, id uuid.UUID) (*TaskDTO, error) {
	task, err := s.taskRepo.FindByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	dto := ToTaskDTO(task, s.now())
	return &dto, nil
}

// List returns tasks matching the filter (assignee_id, contact_id, tax_case_id, status, overdue)
func (s *TaskService) List(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]TaskDTO, int64, error) {
	tasks, total, err := s.taskRepo.FindAll(ctx, tenantID, filter.Normalize())
	if err != nil {
		return nil, 0, err
	}
	now := s.now()
	out := make([]TaskDTO, len(tasks))
	for i := range tasks {
		out[i] = ToTaskDTO(&tasks[i], now)
	}
	return out, total, nil
}

// Update replaces the editable fields. An empty priority keeps the current one.
func (s *TaskService) Update(ctx context.Context, tenantID, userID, id uuid.UUID, input TaskInput) (*TaskDTO, error) {
	task, err := s.taskRepo.FindByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	priority := scheduling.TaskPriority(input.Priority)
	if priority == "" {
		priority = task.Priority
	}
	if err := task.Update(input.Title, input.Description, input.AssigneeID, input.DueDate, priority); err != nil {
		return nil, err
	}
	task.LinkTo(input.ContactID, input.TaxCaseID)
	return s.save(ctx, task, userID)
}

// ChangeStatus moves a task to another status
func (s *TaskService) ChangeStatus(ctx context.Context, tenantID, userID, id uuid.UUID, status string) (*TaskDTO, error) {
	task, err := s.taskRepo.FindByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if err := task.ChangeStatus(scheduling.TaskStatus(status)); err != nil {
		return nil, err
	}
	return s.save(ctx, task, userID)
}

// Complete marks a task done
func (s *TaskService) Complete(ctx context.Context, tenantID, userID, id uuid.UUID) (*TaskDTO, error) {
	return s.ChangeStatus(ctx, tenantID, userID, id, string(scheduling.TaskDone))
}

// Delete removes a task
func (s *TaskService) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	task, err := s.taskRepo.FindByID(ctx, tenantID, id)
	if err != nil {
		return err
	}
	if err := s.taskRepo.Delete(ctx, tenantID, id); err != nil {
		return err
	}
	task.AddDomainEvent(shared.NewRecordEvent(scheduling.AggregateTypeTask, "deleted", task.ID, tenantID, map[string]any{"title": task.Title}))
	s.publish(ctx, task)
	return nil
}

func (s *TaskService) newTask(tenantID uuid.UUID, input TaskInput) (*scheduling.Task, error) {
	task, err := scheduling.NewTask(tenantID, input.Title, input.AssigneeID, input.DueDate)
	if err != nil {
		return nil, err
	}
	if input.Description != "" || input.Priority != "" {
		priority := scheduling.TaskPriority(input.Priority)
		if priority == "" {
			priority = scheduling.TaskPriorityNormal
		}
		if err := task.Update(task.Title, input.Description, task.AssigneeID, task.DueDate, priority); err != nil {
			return nil, err
		}
	}
	task.LinkTo(input.ContactID, input.TaxCaseID)
	return task, nil
}

func (s *TaskService) save(ctx context.Context, task *scheduling.Task, userID uuid.UUID) (*TaskDTO, error) {
	if err := s.taskRepo.Save(ctx, task); err != nil {
		return nil, err
	}
	s.publish(ctx, task)
	dto := ToTaskDTO(task, s.now())
	dto.PendingApprovalID = workflowapp.RunOnSave(ctx, s.gate, s.logger, workflowapp.Submission{
		TenantID:    task.TenantID,
		Module:      workflow.ModuleTask,
		RecordID:    task.ID,
		Snapshot:    task.Snapshot(),
		RequestedBy: userID,
	})
	return &dto, nil
}

func (s *TaskService) publish(ctx context.Context, task *scheduling.Task) {
	if err := shared.PublishAndClear(ctx, s.events, task); err != nil {
		s.logger.Warn("Failed to publish task events", zap.Error(err))
	}
}
