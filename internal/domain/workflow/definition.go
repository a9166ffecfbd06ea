package workflow

import (
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/taxcrm/backend/internal/domain/shared"
)

// Module is the kind of record a definition governs
type Module string

const (
	ModuleTaxCase     Module = "tax_case"
	ModuleInvoice     Module = "invoice"
	ModuleDocument    Module = "document"
	ModuleContact     Module = "contact"
	ModuleCorporation Module = "corporation"
	ModuleTask        Module = "task"
)

// IsValid reports whether m is a supported module
func (m Module) IsValid() bool {
	switch m {
	case ModuleTaxCase, ModuleInvoice, ModuleDocument, ModuleContact, ModuleCorporation, ModuleTask:
		return true
	}
	return false
}

// Trigger is the point at which a definition is evaluated
type Trigger string

const (
	TriggerOnSave     Trigger = "on_save"
	TriggerViaProcess Trigger = "via_process"
)

// IsValid reports whether t is a supported trigger
func (t Trigger) IsValid() bool {
	return t == TriggerOnSave || t == TriggerViaProcess
}

// Phase selects which action list runs after a decision
type Phase string

const (
	PhaseApproval  Phase = "approval"
	PhaseRejection Phase = "rejection"
)

// ActionType is the kind of side effect an action performs
type ActionType string

const (
	ActionUpdateField ActionType = "update_field"
	ActionSendEmail   ActionType = "send_email"
	ActionCreateTask  ActionType = "create_task"
	ActionNotify      ActionType = "notify"
)

// Rule is a numbered approver assignment guarded by conditions
type Rule struct {
	Number         int         `json:"number"`
	Name           string      `json:"name"`
	Conditions     []Condition `json:"conditions"`
	ApproverRoleID *uuid.UUID  `json:"approver_role_id,omitempty"`
	ApproverUserID *uuid.UUID  `json:"approver_user_id,omitempty"`
}

// Matches reports whether every condition of the rule holds. A rule without conditions always matches.
func (r Rule) Matches(record map[string]any) bool {
	return AllMatch(r.Conditions, record)
}

// Action is a side effect executed after an approval decision
type Action struct {
	Type   ActionType        `json:"type"`
	Title  string            `json:"title"`
	Active bool              `json:"active"`
	Config map[string]string `json:"config,omitempty"`
}

// Validate checks the action type and its required config keys
func (a Action) Validate() error {
	var required []string
	switch a.Type {
	case ActionUpdateField:
		required = []string{"field"}
	case ActionSendEmail:
		required = []string{"to", "subject"}
	case ActionCreateTask:
		required = []string{"title"}
	case ActionNotify:
	default:
		return shared.NewDomainError("INVALID_ACTION", fmt.Sprintf("Unknown action type %q", a.Type))
	}
	for _, key := range required {
		if strings.TrimSpace(a.Config[key]) == "" {
			return shared.NewDomainError("INVALID_ACTION", fmt.Sprintf("Action %s requires config %q", a.Type, key))
		}
	}
	return nil
}

const AggregateType = "approval_definition"

// Definition holds the entry criteria, rules and phase actions for one module/trigger
type Definition struct {
	shared.TenantAggregateRoot
	Name             string
	Description      string
	Module           Module
	Trigger          Trigger
	Active           bool
	MatchAll         []Condition
	MatchAny         []Condition
	Rules            []Rule
	ApprovalActions  []Action
	RejectionActions []Action
}

// NewDefinition creates an active definition without criteria, rules or actions
func NewDefinition(tenantID uuid.UUID, name string, module Module, trigger Trigger) (*Definition, error) {
	if strings.TrimSpace(name) == "" {
		return nil, shared.NewDomainError("INVALID_NAME", "Definition name cannot be empty")
	}
	if !module.IsValid() {
		return nil, shared.NewDomainError("INVALID_MODULE", "Unknown module: "+string(module))
	}
	if !trigger.IsValid() {
		return nil, shared.NewDomainError("INVALID_TRIGGER", "Unknown trigger: "+string(trigger))
	}
	d := &Definition{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		Name:                strings.TrimSpace(name),
		Module:              module,
		Trigger:             trigger,
		Active:              true,
	}
	d.AddDomainEvent(shared.NewRecordEvent(AggregateType, "created", d.ID, tenantID, map[string]any{
		"name": d.Name, "module": string(module), "trigger": string(trigger),
	}))
	return d, nil
}

// Update replaces the descriptive fields and the trigger
func (d *Definition) Update(name, description string, trigger Trigger) error {
	if strings.TrimSpace(name) == "" {
		return shared.NewDomainError("INVALID_NAME", "Definition name cannot be empty")
	}
	if !trigger.IsValid() {
		return shared.NewDomainError("INVALID_TRIGGER", "Unknown trigger: "+string(trigger))
	}
	d.Name = strings.TrimSpace(name)
	d.Description = description
	d.Trigger = trigger
	d.changed(map[string]any{"name": d.Name, "trigger": string(trigger)})
	return nil
}

// SetCriteria replaces the entry criteria
func (d *Definition) SetCriteria(matchAll, matchAny []Condition) error {
	for _, c := range append(append([]Condition{}, matchAll...), matchAny...) {
		if err := c.Validate(); err != nil {
			return err
		}
	}
	d.MatchAll = matchAll
	d.MatchAny = matchAny
	d.changed(map[string]any{"match_all": len(matchAll), "match_any": len(matchAny)})
	return nil
}

// SetRules replaces the rule list. Numbers must be positive and unique; rules are stored sorted by number.
func (d *Definition) SetRules(rules []Rule) error {
	seen := make(map[int]struct{}, len(rules))
	for _, r := range rules {
		if r.Number <= 0 {
			return shared.NewDomainError("INVALID_RULE", "Rule number must be positive")
		}
		if _, dup := seen[r.Number]; dup {
			return shared.NewDomainError("DUPLICATE_RULE_NUMBER", fmt.Sprintf("Rule number %d is used twice", r.Number))
		}
		seen[r.Number] = struct{}{}
		for _, c := range r.Conditions {
			if err := c.Validate(); err != nil {
				return err
			}
		}
	}
	sorted := append([]Rule(nil), rules...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Number < sorted[j].Number })
	d.Rules = sorted
	d.changed(map[string]any{"rules": len(sorted)})
	return nil
}

// SetActions replaces the actions of one phase
func (d *Definition) SetActions(phase Phase, actions []Action) error {
	for _, a := range actions {
		if err := a.Validate(); err != nil {
			return err
		}
	}
	switch phase {
	case PhaseApproval:
		d.ApprovalActions = actions
	case PhaseRejection:
		d.RejectionActions = actions
	default:
		return shared.NewDomainError("INVALID_PHASE", "Unknown phase: "+string(phase))
	}
	d.changed(map[string]any{string(phase) + "_actions": len(actions)})
	return nil
}

// Actions returns the active actions of a phase in list order
func (d *Definition) Actions(phase Phase) []Action {
	var all []Action
	if phase == PhaseApproval {
		all = d.ApprovalActions
	} else {
		all = d.RejectionActions
	}
	active := make([]Action, 0, len(all))
	for _, a := range all {
		if a.Active {
			active = append(active, a)
		}
	}
	return active
}

// Activate enables evaluation
func (d *Definition) Activate() {
	if d.Active {
		return
	}
	d.Active = true
	d.changed(map[string]any{"active": true})
}

// Deactivate disables evaluation
func (d *Definition) Deactivate() {
	if !d.Active {
		return
	}
	d.Active = false
	d.changed(map[string]any{"active": false})
}

// EntryMatches reports whether the entry criteria hold for the record
func (d *Definition) EntryMatches(record map[string]any) bool {
	return AllMatch(d.MatchAll, record) && AnyMatch(d.MatchAny, record)
}

// Evaluate returns the first matching rule by number. It returns false when the
// definition is inactive, the entry criteria fail, or no rule matches.
func (d *Definition) Evaluate(record map[string]any) (*Rule, bool) {
	if !d.Active || !d.EntryMatches(record) {
		return nil, false
	}
	for i := range d.Rules {
		if d.Rules[i].Matches(record) {
			r := d.Rules[i]
			return &r, true
		}
	}
	return nil, false
}

// AppliesTo reports whether the definition governs module and trigger
func (d *Definition) AppliesTo(module Module, trigger Trigger) bool {
	return d.Module == module && d.Trigger == trigger
}

func (d *Definition) changed(diff map[string]any) {
	d.IncrementVersion()
	d.AddDomainEvent(shared.NewRecordEvent(AggregateType, "updated", d.ID, d.TenantID, diff))
}

// Match is the result of selecting a definition for a record
type Match struct {
	Definition *Definition
	Rule       Rule
}

// Select walks definitions in creation order and returns the first applicable one
func Select(defs []*Definition, module Module, trigger Trigger, record map[string]any) (*Match, bool) {
	ordered := append([]*Definition(nil), defs...)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].CreatedAt.Before(ordered[j].CreatedAt)
	})
	for _, d := range ordered {
		if !d.AppliesTo(module, trigger) {
			continue
		}
		if rule, ok := d.Evaluate(record); ok {
			return &Match{Definition: d, Rule: *rule}, true
		}
	}
	return nil, false
}
