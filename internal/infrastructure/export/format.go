package export

import (
	"strconv"
	"time"

	"github.com/google/uuid"
)

// DateLayout is the date format used in every export
const DateLayout = "2006-01-02"

// ID renders an optional reference, empty when unset
func ID(id *uuid.UUID) string {
	if id == nil {
		return ""
	}
	return id.String()
}

// Date renders an optional date, empty when unset
func Date(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(DateLayout)
}

// Int renders an integer cell
func Int(n int) string {
	return strconv.Itoa(n)
}

// Bool renders yes/no
func Bool(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
