package scheduling

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/taxcrm/backend/internal/domain/shared"
)

// TaskStatus is the state of a to-do item
type TaskStatus string

const (
	TaskTodo       TaskStatus = "todo"
	TaskInProgress TaskStatus = "in_progress"
	TaskDone       TaskStatus = "done"
	TaskCancelled  TaskStatus = "cancelled"
)

// TaskPriority orders tasks
type TaskPriority string

const (
	TaskPriorityLow    TaskPriority = "low"
	TaskPriorityNormal TaskPriority = "normal"
	TaskPriorityHigh   TaskPriority = "high"
)

const AggregateTypeTask = "task"

// Task is a to-do assigned to a staff member, optionally tied to a client or case
type Task struct {
	shared.TenantAggregateRoot
	Title          string
	Description    string
	AssigneeID     *uuid.UUID
	ContactID      *uuid.UUID
	TaxCaseID      *uuid.UUID
	DueDate        *time.Time
	Priority       TaskPriority
	Status         TaskStatus
	CompletedAt    *time.Time
	CreatedByAgent bool
}

// NewTask creates a todo task
func NewTask(tenantID uuid.UUID, title string, assigneeID *uuid.UUID, due *time.Time) (*Task, error) {
	title = strings.TrimSpace(title)
	if title == "" || len(title) > 200 {
		return nil, shared.NewDomainError("INVALID_TITLE", "Title must be 1-200 characters")
	}
	t := &Task{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		Title:               title,
		AssigneeID:          assigneeID,
		DueDate:             due,
		Priority:            TaskPriorityNormal,
		Status:              TaskTodo,
	}
	t.AddDomainEvent(shared.NewRecordEvent(AggregateTypeTask, "created", t.ID, tenantID, map[string]any{"title": title}))
	return t, nil
}

// Update replaces the editable fields
func (t *Task) Update(title, description string, assigneeID *uuid.UUID, due *time.Time, priority TaskPriority) error {
	title = strings.TrimSpace(title)
	if title == "" || len(title) > 200 {
		return shared.NewDomainError("INVALID_TITLE", "Title must be 1-200 characters")
	}
	switch priority {
	case TaskPriorityLow, TaskPriorityNormal, TaskPriorityHigh:
	default:
		return shared.NewDomainError("INVALID_PRIORITY", "Unknown task priority: "+string(priority))
	}
	t.Title = title
	t.Description = description
	t.AssigneeID = assigneeID
	t.DueDate = due
	t.Priority = priority
	t.IncrementVersion()
	t.AddDomainEvent(shared.NewRecordEvent(AggregateTypeTask, "updated", t.ID, t.TenantID, map[string]any{"title": title}))
	return nil
}

// LinkTo ties the task to a contact and/or case
func (t *Task) LinkTo(contactID, taxCaseID *uuid.UUID) {
	t.ContactID = contactID
	t.TaxCaseID = taxCaseID
}

// ChangeStatus moves the task. Done and cancelled are terminal.
func (t *Task) ChangeStatus(next TaskStatus) error {
	if t.Status == TaskDone || t.Status == TaskCancelled {
		return shared.NewDomainError("INVALID_TRANSITION", fmt.Sprintf("Task is already %s", t.Status))
	}
	switch next {
	case TaskTodo, TaskInProgress, TaskDone, TaskCancelled:
	default:
		return shared.NewDomainError("INVALID_STATUS", "Unknown task status: "+string(next))
	}
	old := t.Status
	t.Status = next
	if next == TaskDone {
		now := time.Now()
		t.CompletedAt = &now
	}
	t.IncrementVersion()
	t.AddDomainEvent(shared.NewRecordEvent(AggregateTypeTask, "status_changed", t.ID, t.TenantID, map[string]any{
		"status": []string{string(old), string(next)},
	}))
	return nil
}

// Complete marks the task done
func (t *Task) Complete() error {
	return t.ChangeStatus(TaskDone)
}

// IsOverdue reports whether an open task is past its due date
func (t *Task) IsOverdue(now time.Time) bool {
	if t.DueDate == nil || t.Status == TaskDone || t.Status == TaskCancelled {
		return false
	}
	return t.DueDate.Before(now)
}

// Snapshot flattens the task for rule evaluation
func (t *Task) Snapshot() map[string]any {
	snap := map[string]any{
		"id":               t.ID.String(),
		"title":            t.Title,
		"status":           string(t.Status),
		"priority":         string(t.Priority),
		"created_by_agent": t.CreatedByAgent,
	}
	if t.AssigneeID != nil {
		snap["assignee_id"] = t.AssigneeID.String()
	}
	if t.ContactID != nil {
		snap["contact_id"] = t.ContactID.String()
	}
	if t.TaxCaseID != nil {
		snap["tax_case_id"] = t.TaxCaseID.String()
	}
	if t.DueDate != nil {
		snap["due_date"] = t.DueDate.Format("2006-01-02")
	}
	return snap
}

// ApplyField sets a single field by name. Used by workflow update_field actions.
func (t *Task) ApplyField(field, value string) error {
	switch field {
	case "status":
		return t.ChangeStatus(TaskStatus(value))
	case "priority":
		switch p := TaskPriority(value); p {
		case TaskPriorityLow, TaskPriorityNormal, TaskPriorityHigh:
			t.Priority = p
		default:
			return shared.NewDomainError("INVALID_PRIORITY", "Unknown task priority: "+value)
		}
	case "assignee_id":
		id, err := uuid.Parse(value)
		if err != nil {
			return shared.NewDomainError("INVALID_INPUT", "assignee_id must be a UUID")
		}
		t.AssigneeID = &id
	default:
		return shared.NewDomainError("UNSUPPORTED_FIELD", "Field cannot be updated by workflow: "+field)
	}
	t.IncrementVersion()
	t.AddDomainEvent(shared.NewRecordEvent(AggregateTypeTask, "updated", t.ID, t.TenantID, map[string]any{field: value}))
	return nil
}
