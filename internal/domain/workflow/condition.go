package workflow

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/taxcrm/backend/internal/domain/shared"
)

// Operator compares a record field with a condition value
type Operator string

const (
	OpEquals         Operator = "equals"
	OpNotEquals      Operator = "not_equals"
	OpContains       Operator = "contains"
	OpNotContains    Operator = "not_contains"
	OpStartsWith     Operator = "starts_with"
	OpEndsWith       Operator = "ends_with"
	OpGreaterThan    Operator = "greater_than"
	OpLessThan       Operator = "less_than"
	OpGreaterOrEqual Operator = "greater_or_equal"
	OpLessOrEqual    Operator = "less_or_equal"
	OpIsEmpty        Operator = "is_empty"
	OpIsNotEmpty     Operator = "is_not_empty"
	OpIn             Operator = "in"
)

// IsValid reports whether o is a supported operator
func (o Operator) IsValid() bool {
	switch o {
	case OpEquals, OpNotEquals, OpContains, OpNotContains, OpStartsWith, OpEndsWith,
		OpGreaterThan, OpLessThan, OpGreaterOrEqual, OpLessOrEqual, OpIsEmpty, OpIsNotEmpty, OpIn:
		return true
	}
	return false
}

// needsValue reports whether the operator compares against Value
func (o Operator) needsValue() bool {
	return o != OpIsEmpty && o != OpIsNotEmpty
}

// Condition is a single field/operator/value test against a record snapshot
type Condition struct {
	Field    string   `json:"field"`
	Operator Operator `json:"operator"`
	Value    string   `json:"value"`
}

// Validate checks the condition is well formed
func (c Condition) Validate() error {
	if strings.TrimSpace(c.Field) == "" {
		return shared.NewDomainError("INVALID_CONDITION", "Condition field cannot be empty")
	}
	if !c.Operator.IsValid() {
		return shared.NewDomainError("INVALID_CONDITION", fmt.Sprintf("Unknown operator %q", c.Operator))
	}
	if c.Operator.needsValue() && c.Operator != OpEquals && c.Operator != OpNotEquals && strings.TrimSpace(c.Value) == "" {
		return shared.NewDomainError("INVALID_CONDITION", fmt.Sprintf("Operator %s requires a value", c.Operator))
	}
	return nil
}

// Matches evaluates the condition. Missing fields are treated as empty strings;
// text comparisons ignore case; ordering operators compare numerically when both
// sides parse as decimals and lexicographically otherwise.
func (c Condition) Matches(record map[string]any) bool {
	actual := stringify(lookup(record, c.Field))
	a := strings.ToLower(strings.TrimSpace(actual))
	v := strings.ToLower(strings.TrimSpace(c.Value))

	switch c.Operator {
	case OpIsEmpty:
		return a == ""
	case OpIsNotEmpty:
		return a != ""
	case OpEquals:
		return equalValues(a, v)
	case OpNotEquals:
		return !equalValues(a, v)
	case OpContains:
		return strings.Contains(a, v)
	case OpNotContains:
		return !strings.Contains(a, v)
	case OpStartsWith:
		return strings.HasPrefix(a, v)
	case OpEndsWith:
		return strings.HasSuffix(a, v)
	case OpIn:
		for _, candidate := range strings.Split(v, ",") {
			if equalValues(a, strings.TrimSpace(candidate)) {
				return true
			}
		}
		return false
	case OpGreaterThan, OpLessThan, OpGreaterOrEqual, OpLessOrEqual:
		if a == "" {
			return false
		}
		cmp := compareValues(a, v)
		switch c.Operator {
		case OpGreaterThan:
			return cmp > 0
		case OpLessThan:
			return cmp < 0
		case OpGreaterOrEqual:
			return cmp >= 0
		default:
			return cmp <= 0
		}
	}
	return false
}

// AllMatch reports whether every condition holds. An empty list holds.
func AllMatch(conds []Condition, record map[string]any) bool {
	for _, c := range conds {
		if !c.Matches(record) {
			return false
		}
	}
	return true
}

// AnyMatch reports whether at least one condition holds. An empty list holds.
func AnyMatch(conds []Condition, record map[string]any) bool {
	if len(conds) == 0 {
		return true
	}
	for _, c := range conds {
		if c.Matches(record) {
			return true
		}
	}
	return false
}

func equalValues(a, b string) bool {
	if da, db, ok := bothDecimal(a, b); ok {
		return da.Equal(db)
	}
	return a == b
}

func compareValues(a, b string) int {
	if da, db, ok := bothDecimal(a, b); ok {
		return da.Cmp(db)
	}
	return strings.Compare(a, b)
}

func bothDecimal(a, b string) (decimal.Decimal, decimal.Decimal, bool) {
	da, err := decimal.NewFromString(a)
	if err != nil {
		return decimal.Zero, decimal.Zero, false
	}
	db, err := decimal.NewFromString(b)
	if err != nil {
		return decimal.Zero, decimal.Zero, false
	}
	return da, db, true
}

// lookup resolves a dotted path ("contact.status") through nested maps
func lookup(record map[string]any, field string) any {
	var cur any = record
	for _, part := range strings.Split(field, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur, ok = m[part]
		if !ok {
			return nil
		}
	}
	return cur
}

func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case time.Time:
		return t.Format(time.RFC3339)
	case fmt.Stringer:
		return t.String()
	case bool:
		if t {
			return "true"
		}
		return "false"
	case []string:
		return strings.Join(t, ",")
	case []any:
		parts := make([]string, 0, len(t))
		for _, p := range t {
			parts = append(parts, stringify(p))
		}
		return strings.Join(parts, ",")
	default:
		return fmt.Sprint(t)
	}
}
