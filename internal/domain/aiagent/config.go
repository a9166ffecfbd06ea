package aiagent

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/taxcrm/backend/internal/domain/shared"
)

// Mode controls whether suggestions are executed without review
type Mode string

const (
	ModeSuggest Mode = "suggest"
	ModeAuto    Mode = "auto"
)

// Provider names the LLM backend
type Provider string

const (
	ProviderOpenAI    Provider = "openai"
	ProviderAnthropic Provider = "anthropic"
)

const (
	DefaultCycleMinutes = 60
	MinCycleMinutes     = 5
	ConfigAggregateType = "agent_config"
)

// Config is the per-tenant agent configuration
type Config struct {
	shared.TenantAggregateRoot
	Enabled              bool
	Mode                 Mode
	Provider             Provider
	Model                string
	CycleIntervalMinutes int
	Instructions         string
	LastRunAt            *time.Time
}

// DefaultConfig returns a disabled suggest-only configuration
func DefaultConfig(tenantID uuid.UUID) *Config {
	return &Config{
		TenantAggregateRoot:  shared.NewTenantAggregateRoot(tenantID),
		Mode:                 ModeSuggest,
		Provider:             ProviderOpenAI,
		CycleIntervalMinutes: DefaultCycleMinutes,
	}
}

// Update replaces the configuration
func (c *Config) Update(enabled bool, mode Mode, provider Provider, model string, interval int, instructions string) error {
	if mode != ModeSuggest && mode != ModeAuto {
		return shared.NewDomainError("INVALID_AGENT_MODE", "Unknown agent mode: "+string(mode))
	}
	if provider != ProviderOpenAI && provider != ProviderAnthropic {
		return shared.NewDomainError("INVALID_AGENT_PROVIDER", "Unknown provider: "+string(provider))
	}
	if interval < MinCycleMinutes {
		return shared.NewDomainError("INVALID_AGENT_INTERVAL", "Cycle interval must be at least 5 minutes")
	}
	c.Enabled = enabled
	c.Mode = mode
	c.Provider = provider
	c.Model = strings.TrimSpace(model)
	c.CycleIntervalMinutes = interval
	c.Instructions = strings.TrimSpace(instructions)
	c.IncrementVersion()
	c.AddDomainEvent(shared.NewRecordEvent(ConfigAggregateType, "updated", c.ID, c.TenantID, map[string]any{
		"enabled": enabled, "mode": string(mode), "provider": string(provider), "cycle_interval_minutes": interval,
	}))
	return nil
}

// IsDue reports whether an enabled agent should run a cycle now
func (c *Config) IsDue(now time.Time) bool {
	if !c.Enabled {
		return false
	}
	if c.LastRunAt == nil {
		return true
	}
	return now.Sub(*c.LastRunAt) >= time.Duration(c.CycleIntervalMinutes)*time.Minute
}

// MarkRun stamps the start of a cycle
func (c *Config) MarkRun(at time.Time) {
	c.LastRunAt = &at
	c.Touch()
}
