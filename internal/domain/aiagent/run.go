package aiagent

import (
	"time"

	"github.com/google/uuid"
)

// RunStatus is the state of one agent cycle
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
)

// Run records one agent cycle
type Run struct {
	ID              uuid.UUID
	TenantID        uuid.UUID
	Status          RunStatus
	StartedAt       time.Time
	FinishedAt      *time.Time
	SuggestionCount int
	UsedFallback    bool
	Error           string
}

// NewRun starts a cycle record
func NewRun(tenantID uuid.UUID) *Run {
	return &Run{
		ID:        uuid.New(),
		TenantID:  tenantID,
		Status:    RunRunning,
		StartedAt: time.Now(),
	}
}

// Finish records a completed cycle. llmErr is kept when the fallback produced the suggestions.
func (r *Run) Finish(count int, usedFallback bool, llmErr error) {
	now := time.Now()
	r.Status = RunCompleted
	r.FinishedAt = &now
	r.SuggestionCount = count
	r.UsedFallback = usedFallback
	if llmErr != nil {
		r.Error = llmErr.Error()
	}
}

// Fail records a cycle that could not complete
func (r *Run) Fail(err error) {
	now := time.Now()
	r.Status = RunFailed
	r.FinishedAt = &now
	r.Error = err.Error()
}
