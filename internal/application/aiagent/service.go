package aiagent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	schedulingapp "github.com/taxcrm/backend/internal/application/scheduling"
	"github.com/taxcrm/backend/internal/domain/aiagent"
	"github.com/taxcrm/backend/internal/domain/crm"
	"github.com/taxcrm/backend/internal/domain/shared"
	"github.com/taxcrm/backend/internal/domain/taxcase"
	"github.com/taxcrm/backend/internal/infrastructure/llm"
	"github.com/taxcrm/backend/internal/infrastructure/scheduler"
	"go.uber.org/zap"
)

const cycleSystemPrompt = "You help a tax practice stay on top of deadlines and client follow-ups. Answer with JSON only."

const askSystemPrompt = "You are an assistant inside a tax practice CRM. Answer concisely using the context provided. " +
	"Say so when the context does not contain the answer."

// TaskCreator creates tasks on behalf of the agent
type TaskCreator interface {
	CreateByAgent(ctx context.Context, tenantID uuid.UUID, input schedulingapp.TaskInput) (*schedulingapp.TaskDTO, error)
}

// JobSubmitter queues background work
type JobSubmitter interface {
	Submit(job *scheduler.Job) error
}

// Service runs agent cycles and manages their suggestions
type Service struct {
	configRepo     aiagent.ConfigRepository
	runRepo        aiagent.RunRepository
	suggestionRepo aiagent.SuggestionRepository
	contactRepo    crm.ContactRepository
	caseRepo       taxcase.Repository
	collector      *SignalCollector
	completer      llm.Completer
	tasks          TaskCreator
	jobs           JobSubmitter
	events         shared.EventPublisher
	logger         *zap.Logger
	now            func() time.Time
}

// NewService creates the agent service. completer may be nil, in which case
// cycles use the rule-based fallback and Ask is unavailable.
func NewService(
	configRepo aiagent.ConfigRepository,
	runRepo aiagent.RunRepository,
	suggestionRepo aiagent.SuggestionRepository,
	contactRepo crm.ContactRepository,
	caseRepo taxcase.Repository,
	collector *SignalCollector,
	completer llm.Completer,
	tasks TaskCreator,
	jobs JobSubmitter,
	events shared.EventPublisher,
	logger *zap.Logger,
) *Service {
	return &Service{
		configRepo:     configRepo,
		runRepo:        runRepo,
		suggestionRepo: suggestionRepo,
		contactRepo:    contactRepo,
		caseRepo:       caseRepo,
		collector:      collector,
		completer:      completer,
		tasks:          tasks,
		jobs:           jobs,
		events:         events,
		logger:         logger,
		now:            time.Now,
	}
}

// GetConfig returns the tenant's configuration, or the disabled default
func (s *Service) GetConfig(ctx context.Context, tenantID uuid.UUID) (*ConfigDTO, error) {
	cfg, err := s.loadConfig(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	dto := ToConfigDTO(cfg)
	return &dto, nil
}

// UpdateConfig replaces the tenant's configuration
func (s *Service) UpdateConfig(ctx context.Context, tenantID uuid.UUID, input ConfigInput) (*ConfigDTO, error) {
	cfg, err := s.loadConfig(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	interval := input.CycleIntervalMinutes
	if interval == 0 {
		interval = aiagent.DefaultCycleMinutes
	}
	mode := aiagent.Mode(input.Mode)
	if mode == "" {
		mode = aiagent.ModeSuggest
	}
	provider := aiagent.Provider(input.Provider)
	if provider == "" {
		provider = aiagent.ProviderOpenAI
	}
	if err := cfg.Update(input.Enabled, mode, provider, input.Model, interval, input.Instructions); err != nil {
		return nil, err
	}
	if err := s.configRepo.Save(ctx, cfg); err != nil {
		return nil, err
	}
	if err := shared.PublishAndClear(ctx, s.events, cfg); err != nil {
		s.logger.Warn("Failed to publish agent config events", zap.Error(err))
	}
	dto := ToConfigDTO(cfg)
	return &dto, nil
}

func (s *Service) loadConfig(ctx context.Context, tenantID uuid.UUID) (*aiagent.Config, error) {
	cfg, err := s.configRepo.FindByTenant(ctx, tenantID)
	if errors.Is(err, shared.ErrNotFound) {
		return aiagent.DefaultConfig(tenantID), nil
	}
	return cfg, err
}

// TriggerRun queues a cycle for the tenant regardless of its schedule
func (s *Service) TriggerRun(ctx context.Context, tenantID uuid.UUID) error {
	job := scheduler.NewJob(scheduler.JobKindAgentCycle, &tenantID, tenantID, nil)
	if err := s.jobs.Submit(job); err != nil {
		return fmt.Errorf("queue agent cycle: %w", err)
	}
	return nil
}

// Execute implements scheduler.JobExecutor for queued cycles
func (s *Service) Execute(ctx context.Context, job *scheduler.Job) error {
	if job.TenantID == nil {
		return fmt.Errorf("agent cycle job %s has no tenant", job.ID)
	}
	_, err := s.RunCycle(ctx, *job.TenantID)
	return err
}

// RunIfDue is the scheduler.TenantTask that starts a cycle when the tenant's interval has elapsed
func (s *Service) RunIfDue(ctx context.Context, tenantID uuid.UUID) error {
	cfg, err := s.loadConfig(ctx, tenantID)
	if err != nil {
		return err
	}
	if !cfg.IsDue(s.now()) {
		return nil
	}
	_, err = s.RunCycle(ctx, tenantID)
	return err
}

// RunCycle gathers signals, asks the model for suggestions (falling back to
// rules when it fails) and stores them. In auto mode follow-up tasks are created at once.
func (s *Service) RunCycle(ctx context.Context, tenantID uuid.UUID) (*RunDTO, error) {
	cfg, err := s.loadConfig(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	run := aiagent.NewRun(tenantID)
	if err := s.runRepo.Save(ctx, run); err != nil {
		return nil, err
	}
	cfg.MarkRun(now)
	if err := s.configRepo.Save(ctx, cfg); err != nil {
		return nil, s.failRun(ctx, run, err)
	}
	log := s.logger.With(zap.String("tenant_id", tenantID.String()), zap.String("run_id", run.ID.String()))

	signals, err := s.collector.Collect(ctx, tenantID, now)
	if err != nil {
		return nil, s.failRun(ctx, run, err)
	}
	drafts, usedFallback, llmErr := s.propose(ctx, cfg, signals, now)
	if llmErr != nil {
		log.Warn("Agent model unavailable, using rule-based suggestions", zap.Error(llmErr))
	}

	suggestions := make([]*aiagent.Suggestion, 0, len(drafts))
	for _, d := range drafts {
		sg, err := aiagent.NewSuggestion(tenantID, run.ID, d)
		if err != nil {
			continue
		}
		suggestions = append(suggestions, sg)
	}
	if len(suggestions) > 0 {
		if err := s.suggestionRepo.SaveBatch(ctx, suggestions); err != nil {
			return nil, s.failRun(ctx, run, err)
		}
	}

	if cfg.Mode == aiagent.ModeAuto {
		for _, sg := range suggestions {
			if sg.Kind != aiagent.KindFollowUpTask {
				continue
			}
			if err := s.execute(ctx, sg, nil); err != nil {
				log.Warn("Failed to execute agent suggestion", zap.String("suggestion_id", sg.ID.String()), zap.Error(err))
			}
		}
	}

	run.Finish(len(suggestions), usedFallback, llmErr)
	if err := s.runRepo.Save(ctx, run); err != nil {
		return nil, err
	}
	log.Info("Agent cycle finished",
		zap.Int("suggestions", len(suggestions)),
		zap.Bool("fallback", usedFallback),
		zap.String("mode", string(cfg.Mode)),
	)
	dto := ToRunDTO(run)
	return &dto, nil
}

func (s *Service) propose(ctx context.Context, cfg *aiagent.Config, signals aiagent.Signals, now time.Time) ([]aiagent.Draft, bool, error) {
	if signals.IsEmpty() {
		return nil, false, nil
	}
	if s.completer == nil {
		return aiagent.Fallback(signals), true, nil
	}
	reply, err := s.completer.Complete(ctx, llm.Request{
		Provider: cfg.Provider,
		Model:    cfg.Model,
		System:   cycleSystemPrompt,
		Prompt:   aiagent.BuildPrompt(cfg.Instructions, signals, now),
	})
	if err == nil {
		var drafts []aiagent.Draft
		if drafts, err = aiagent.ParseSuggestions(reply); err == nil {
			return drafts, false, nil
		}
	}
	return aiagent.Fallback(signals), true, err
}

func (s *Service) failRun(ctx context.Context, run *aiagent.Run, cause error) error {
	run.Fail(cause)
	if err := s.runRepo.Save(ctx, run); err != nil {
		s.logger.Error("Failed to record agent run failure", zap.String("run_id", run.ID.String()), zap.Error(err))
	}
	return cause
}

// ListRuns returns the tenant's cycles, newest first
func (s *Service) ListRuns(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]RunDTO, int64, error) {
	runs, total, err := s.runRepo.FindAll(ctx, tenantID, filter.Normalize())
	if err != nil {
		return nil, 0, err
	}
	out := make([]RunDTO, len(runs))
	for i := range runs {
		out[i] = ToRunDTO(&runs[i])
	}
	return out, total, nil
}

// ListSuggestions returns suggestions matching the filter (status, kind, run_id)
func (s *Service) ListSuggestions(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]SuggestionDTO, int64, error) {
	items, total, err := s.suggestionRepo.FindAll(ctx, tenantID, filter.Normalize())
	if err != nil {
		return nil, 0, err
	}
	out := make([]SuggestionDTO, len(items))
	for i := range items {
		out[i] = ToSuggestionDTO(&items[i])
	}
	return out, total, nil
}

// Accept approves a suggestion and executes it
func (s *Service) Accept(ctx context.Context, tenantID, userID, id uuid.UUID) (*SuggestionDTO, error) {
	sg, err := s.suggestionRepo.FindByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if err := s.execute(ctx, sg, &userID); err != nil {
		return nil, err
	}
	dto := ToSuggestionDTO(sg)
	return &dto, nil
}

// Dismiss rejects a suggestion
func (s *Service) Dismiss(ctx context.Context, tenantID, userID, id uuid.UUID) (*SuggestionDTO, error) {
	sg, err := s.suggestionRepo.FindByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if err := sg.Dismiss(&userID); err != nil {
		return nil, err
	}
	if err := s.save(ctx, sg); err != nil {
		return nil, err
	}
	dto := ToSuggestionDTO(sg)
	return &dto, nil
}

// execute accepts the suggestion and turns it into a task linked to its target
func (s *Service) execute(ctx context.Context, sg *aiagent.Suggestion, by *uuid.UUID) error {
	if err := sg.Accept(by); err != nil {
		return err
	}
	task, err := s.tasks.CreateByAgent(ctx, sg.TenantID, taskFromSuggestion(sg, s.now()))
	if err != nil {
		return err
	}
	if err := sg.MarkExecuted(&task.ID); err != nil {
		return err
	}
	return s.save(ctx, sg)
}

func (s *Service) save(ctx context.Context, sg *aiagent.Suggestion) error {
	if err := s.suggestionRepo.Save(ctx, sg); err != nil {
		return err
	}
	if err := shared.PublishAndClear(ctx, s.events, sg); err != nil {
		s.logger.Warn("Failed to publish suggestion events", zap.Error(err))
	}
	return nil
}

func taskFromSuggestion(sg *aiagent.Suggestion, now time.Time) schedulingapp.TaskInput {
	title := sg.PayloadString("title")
	if title == "" {
		title = sg.Title
	}
	due := now.AddDate(0, 0, sg.PayloadInt("due_in_days", 1))
	input := schedulingapp.TaskInput{
		Title:       title,
		Description: sg.Rationale,
		AssigneeID:  payloadID(sg, "assignee_id"),
		ContactID:   payloadID(sg, "contact_id"),
		DueDate:     &due,
		Priority:    "normal",
	}
	switch sg.TargetType {
	case "tax_case":
		input.TaxCaseID = sg.TargetID
		input.Priority = "high"
	case "contact":
		if input.ContactID == nil {
			input.ContactID = sg.TargetID
		}
	}
	return input
}

func payloadID(sg *aiagent.Suggestion, key string) *uuid.UUID {
	id, err := uuid.Parse(sg.PayloadString(key))
	if err != nil {
		return nil
	}
	return &id
}

// Ask answers a free-form question, adding the referenced contact and case to the prompt
func (s *Service) Ask(ctx context.Context, tenantID uuid.UUID, input AskInput) (*AskResult, error) {
	question := strings.TrimSpace(input.Question)
	if question == "" {
		return nil, shared.NewDomainError("QUESTION_REQUIRED", "Question cannot be empty")
	}
	if s.completer == nil {
		return nil, shared.NewDomainError("AI_UNAVAILABLE", "No language model is configured")
	}
	cfg, err := s.loadConfig(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	prompt, err := s.askPrompt(ctx, tenantID, question, input)
	if err != nil {
		return nil, err
	}
	answer, err := s.completer.Complete(ctx, llm.Request{
		Provider: cfg.Provider,
		Model:    cfg.Model,
		System:   askSystemPrompt,
		Prompt:   prompt,
	})
	if err != nil {
		s.logger.Warn("Ask failed", zap.String("tenant_id", tenantID.String()), zap.Error(err))
		return nil, shared.NewDomainError("AI_UNAVAILABLE", "The language model could not answer right now")
	}
	return &AskResult{Answer: strings.TrimSpace(answer), Provider: string(cfg.Provider), Model: cfg.Model}, nil
}

func (s *Service) askPrompt(ctx context.Context, tenantID uuid.UUID, question string, input AskInput) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "Today is %s.\n", s.now().Format("2006-01-02"))
	if input.ContactID != nil {
		c, err := s.contactRepo.FindByID(ctx, tenantID, *input.ContactID)
		if err != nil {
			return "", err
		}
		fmt.Fprintf(&b, "Client: %s (status %s, email %s, phone %s)\n", c.DisplayName(), c.Status, c.Email, c.Phone)
		if c.LastActivityAt != nil {
			fmt.Fprintf(&b, "Last activity: %s\n", c.LastActivityAt.Format("2006-01-02"))
		}
		if c.Notes != "" {
			fmt.Fprintf(&b, "Client notes: %s\n", c.Notes)
		}
	}
	if input.TaxCaseID != nil {
		tc, err := s.caseRepo.FindByID(ctx, tenantID, *input.TaxCaseID)
		if err != nil {
			return "", err
		}
		fmt.Fprintf(&b, "Case %s: tax year %d, type %s, status %s, priority %s", tc.CaseNumber, tc.TaxYear, tc.CaseType, tc.Status, tc.Priority)
		if tc.DueDate != nil {
			fmt.Fprintf(&b, ", due %s", tc.DueDate.Format("2006-01-02"))
		}
		b.WriteString("\n")
		if tc.Notes != "" {
			fmt.Fprintf(&b, "Case notes: %s\n", tc.Notes)
		}
	}
	b.WriteString("Question: ")
	b.WriteString(question)
	return b.String(), nil
}

var _ scheduler.JobExecutor = (*Service)(nil)

// EnabledTenants lists tenants whose agent is switched on; it is the
// scheduler.TenantProvider for the agent trigger
type EnabledTenants struct {
	Configs aiagent.ConfigRepository
}

// GetAllActiveTenantIDs implements scheduler.TenantProvider
func (e EnabledTenants) GetAllActiveTenantIDs(ctx context.Context) ([]uuid.UUID, error) {
	configs, err := e.Configs.FindEnabled(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]uuid.UUID, len(configs))
	for i, c := range configs {
		ids[i] = c.TenantID
	}
	return ids, nil
}

var _ scheduler.TenantProvider = EnabledTenants{}
