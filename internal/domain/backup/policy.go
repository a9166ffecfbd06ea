package backup

import (
	"sort"
	"time"
)

// Policy drives automatic backups
type Policy struct {
	MaxAge         time.Duration
	RetentionCount int
}

// DefaultPolicy keeps a daily backup and the last seven automatic ones
func DefaultPolicy() Policy {
	return Policy{MaxAge: 24 * time.Hour, RetentionCount: 7}
}

// TenantState is what the heuristic needs to know about one tenant
type TenantState struct {
	LastCompletedAt *time.Time
	InFlight        bool
	ChangesSince    int64
	Threshold       int
}

// Reason explains a heuristic decision
type Reason string

const (
	ReasonInFlight        Reason = "backup_in_flight"
	ReasonNoRecentBackup  Reason = "no_recent_backup"
	ReasonChangeThreshold Reason = "change_threshold_reached"
	ReasonUpToDate        Reason = "up_to_date"
)

// Decision is the outcome of the heuristic
type Decision struct {
	Create bool
	Reason Reason
}

// Decide reports whether an automatic backup should be created now
func (p Policy) Decide(now time.Time, s TenantState) Decision {
	if s.InFlight {
		return Decision{Reason: ReasonInFlight}
	}
	if s.LastCompletedAt == nil || now.Sub(*s.LastCompletedAt) >= p.MaxAge {
		return Decision{Create: true, Reason: ReasonNoRecentBackup}
	}
	if s.Threshold > 0 && s.ChangesSince >= int64(s.Threshold) {
		return Decision{Create: true, Reason: ReasonChangeThreshold}
	}
	return Decision{Reason: ReasonUpToDate}
}

// Expired returns the completed automatic backups beyond the retention count, oldest last
func (p Policy) Expired(backups []Backup) []Backup {
	auto := make([]Backup, 0, len(backups))
	for _, b := range backups {
		if b.Trigger == TriggerAutomatic && b.Status == StatusCompleted {
			auto = append(auto, b)
		}
	}
	if p.RetentionCount <= 0 || len(auto) <= p.RetentionCount {
		return nil
	}
	sort.SliceStable(auto, func(i, j int) bool { return auto[i].CreatedAt.After(auto[j].CreatedAt) })
	return auto[p.RetentionCount:]
}
