package workflow

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/taxcrm/backend/internal/domain/scheduling"
	"github.com/taxcrm/backend/internal/domain/shared"
	"github.com/taxcrm/backend/internal/domain/workflow"
	"github.com/taxcrm/backend/internal/infrastructure/mail"
	"go.uber.org/zap"
)

// RecordUpdater applies update_field actions to records of one module
type RecordUpdater interface {
	UpdateField(ctx context.Context, tenantID, recordID uuid.UUID, field, value string) error
}

// RecipientResolver turns an address placeholder such as {{assignee}} into email addresses
type RecipientResolver interface {
	Resolve(ctx context.Context, tenantID uuid.UUID, placeholder string, snapshot map[string]any) ([]string, error)
}

var (
	placeholderPattern = regexp.MustCompile(`\{\{\s*([a-z_]+)\s*\}\}`)

	errNoUpdater = errors.New("no record updater registered for module")
)

// ActionDispatcher executes the phase actions of a decided approval
type ActionDispatcher struct {
	updaters   map[workflow.Module]RecordUpdater
	mailer     mail.Sender
	recipients RecipientResolver
	taskRepo   scheduling.TaskRepository
	events     shared.EventPublisher
	logger     *zap.Logger
	now        func() time.Time
}

// NewActionDispatcher creates a dispatcher. Updaters are added with RegisterUpdater.
func NewActionDispatcher(mailer mail.Sender, recipients RecipientResolver, taskRepo scheduling.TaskRepository, events shared.EventPublisher, logger *zap.Logger) *ActionDispatcher {
	return &ActionDispatcher{
		updaters:   make(map[workflow.Module]RecordUpdater),
		mailer:     mailer,
		recipients: recipients,
		taskRepo:   taskRepo,
		events:     events,
		logger:     logger,
		now:        time.Now,
	}
}

// RegisterUpdater installs the updater for a module
func (d *ActionDispatcher) RegisterUpdater(module workflow.Module, updater RecordUpdater) {
	d.updaters[module] = updater
}

// Execute runs actions in list order. A failing action is logged and recorded,
// and the remaining actions still run.
func (d *ActionDispatcher) Execute(ctx context.Context, approval *workflow.Approval, actions []workflow.Action) []workflow.ActionResult {
	results := make([]workflow.ActionResult, 0, len(actions))
	for _, action := range actions {
		if !action.Active {
			continue
		}
		err := d.run(ctx, approval, action)
		result := workflow.ActionResult{
			Type:       action.Type,
			Title:      action.Title,
			Success:    err == nil,
			ExecutedAt: d.now(),
		}
		if err != nil {
			result.Error = err.Error()
			d.logger.Warn("Workflow action failed",
				zap.String("approval_id", approval.ID.String()),
				zap.String("action_type", string(action.Type)),
				zap.String("action_title", action.Title),
				zap.Error(err),
			)
		}
		results = append(results, result)
	}
	return results
}

func (d *ActionDispatcher) run(ctx context.Context, approval *workflow.Approval, action workflow.Action) error {
	switch action.Type {
	case workflow.ActionUpdateField:
		return d.updateField(ctx, approval, action.Config)
	case workflow.ActionSendEmail:
		return d.sendEmail(ctx, approval, action.Config)
	case workflow.ActionCreateTask:
		return d.createTask(ctx, approval, action.Config)
	case workflow.ActionNotify:
		return d.notify(ctx, approval, action)
	}
	return fmt.Errorf("unknown action type %q", action.Type)
}

func (d *ActionDispatcher) updateField(ctx context.Context, approval *workflow.Approval, cfg map[string]string) error {
	updater, ok := d.updaters[approval.Module]
	if !ok {
		return fmt.Errorf("%w %s", errNoUpdater, approval.Module)
	}
	return updater.UpdateField(ctx, approval.TenantID, approval.RecordID, cfg["field"], expand(cfg["value"], approval.Snapshot))
}

func (d *ActionDispatcher) sendEmail(ctx context.Context, approval *workflow.Approval, cfg map[string]string) error {
	if d.mailer == nil {
		return errors.New("mail is not configured")
	}
	var to []string
	for _, part := range strings.Split(cfg["to"], ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if m := placeholderPattern.FindStringSubmatch(part); m != nil && d.recipients != nil {
			addrs, err := d.recipients.Resolve(ctx, approval.TenantID, m[1], approval.Snapshot)
			if err != nil {
				return fmt.Errorf("resolve %s: %w", part, err)
			}
			to = append(to, addrs...)
			continue
		}
		to = append(to, part)
	}
	if len(to) == 0 {
		return mail.ErrNoRecipients
	}
	return d.mailer.Send(ctx, mail.Message{
		To:      to,
		Subject: expand(cfg["subject"], approval.Snapshot),
		Body:    expand(cfg["body"], approval.Snapshot),
	})
}

func (d *ActionDispatcher) createTask(ctx context.Context, approval *workflow.Approval, cfg map[string]string) error {
	if d.taskRepo == nil {
		return errors.New("task repository is not configured")
	}
	var assignee *uuid.UUID
	if raw := strings.TrimSpace(cfg["assignee_id"]); raw != "" {
		if m := placeholderPattern.FindStringSubmatch(raw); m != nil {
			assignee = assigneeFromSnapshot(approval.Snapshot)
		} else {
			id, err := uuid.Parse(raw)
			if err != nil {
				return fmt.Errorf("invalid assignee_id %q", raw)
			}
			assignee = &id
		}
	}
	var due *time.Time
	if raw := strings.TrimSpace(cfg["due_in_days"]); raw != "" {
		days, err := strconv.Atoi(raw)
		if err != nil || days < 0 {
			return fmt.Errorf("invalid due_in_days %q", raw)
		}
		at := d.now().AddDate(0, 0, days)
		due = &at
	}

	task, err := scheduling.NewTask(approval.TenantID, expand(cfg["title"], approval.Snapshot), assignee, due)
	if err != nil {
		return err
	}
	if cfg["description"] != "" {
		if err := task.Update(task.Title, expand(cfg["description"], approval.Snapshot), assignee, due, task.Priority); err != nil {
			return err
		}
	}
	task.LinkTo(linkedContact(approval), linkedCase(approval))
	if approval.DecidedBy != nil {
		task.SetCreatedBy(*approval.DecidedBy)
	}
	if err := d.taskRepo.Save(ctx, task); err != nil {
		return err
	}
	if err := shared.PublishAndClear(ctx, d.events, task); err != nil {
		d.logger.Warn("Failed to publish task events", zap.Error(err))
	}
	return nil
}

func (d *ActionDispatcher) notify(ctx context.Context, approval *workflow.Approval, action workflow.Action) error {
	if d.events == nil {
		return nil
	}
	message := action.Config["message"]
	if message == "" {
		message = action.Title
	}
	if message == "" {
		message = fmt.Sprintf("%s %s was %s", approval.Module, approval.RecordID, approval.Status)
	}
	return d.events.Publish(ctx, workflow.NewNotificationEvent(approval, expand(message, approval.Snapshot)))
}

// expand replaces {{field}} with the snapshot value of field
func expand(text string, snapshot map[string]any) string {
	if text == "" || snapshot == nil {
		return text
	}
	return placeholderPattern.ReplaceAllStringFunc(text, func(m string) string {
		key := placeholderPattern.FindStringSubmatch(m)[1]
		v, ok := snapshot[key]
		if !ok || v == nil {
			return m
		}
		return fmt.Sprint(v)
	})
}

// assigneeKeys lists snapshot fields naming the responsible staff member, most specific first
var assigneeKeys = []string{"assigned_to", "assignee_id", "preparer_id", "staff_id"}

func assigneeFromSnapshot(snapshot map[string]any) *uuid.UUID {
	for _, key := range assigneeKeys {
		if id := snapshotID(snapshot, key); id != nil {
			return id
		}
	}
	return nil
}

func snapshotID(snapshot map[string]any, key string) *uuid.UUID {
	raw, ok := snapshot[key].(string)
	if !ok || raw == "" {
		return nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil
	}
	return &id
}

func linkedContact(approval *workflow.Approval) *uuid.UUID {
	if approval.Module == workflow.ModuleContact {
		id := approval.RecordID
		return &id
	}
	return snapshotID(approval.Snapshot, "contact_id")
}

func linkedCase(approval *workflow.Approval) *uuid.UUID {
	if approval.Module == workflow.ModuleTaxCase {
		id := approval.RecordID
		return &id
	}
	return snapshotID(approval.Snapshot, "tax_case_id")
}
