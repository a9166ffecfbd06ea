package shared

// DomainError is a business rule failure with a stable machine code.
// The HTTP layer maps codes to statuses; messages are safe to show clients.
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func NewDomainError(code, message string) *DomainError {
	return &DomainError{Code: code, Message: message}
}

func (e *DomainError) Error() string {
	return e.Message
}

// Is compares codes, so a sentinel matches any error reusing its code
// even with a more specific message.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	return ok && e.Code == t.Code
}

var (
	ErrNotFound            = NewDomainError("NOT_FOUND", "Resource not found")
	ErrForbidden           = NewDomainError("FORBIDDEN", "Access to this resource is forbidden")
	ErrInvalidState        = NewDomainError("INVALID_STATE", "Operation not allowed in current state")
	ErrConfirmationNeeded  = NewDomainError("CONFIRMATION_REQUIRED", "Explicit confirmation is required")
	// ErrConcurrencyConflict means the record changed since it was read
	ErrConcurrencyConflict = NewDomainError("CONCURRENCY_CONFLICT", "The record was modified by another request; reload and retry")
)
