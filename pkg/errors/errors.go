package errors

import "fmt"

// Condition codes carried by ErrValidation
const (
	CodeInvalidPayload   = "INVALID_PAYLOAD"
	CodeNoValidItems     = "NO_VALID_ITEMS"
	CodeQuantityExceeded = "QUANTITY_EXCEEDED"
	CodeInvalidQuantity  = "INVALID_QUANTITY"
	CodeMissingField     = "MISSING_FIELD"
)

// ErrNotFound is returned when a resource is not found
type ErrNotFound struct {
	Resource string
	ID       string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// NotFound builds an ErrNotFound from any printable id
func NotFound(resource string, id interface{}) *ErrNotFound {
	return &ErrNotFound{Resource: resource, ID: fmt.Sprint(id)}
}

// ErrUnauthorized is returned when authentication fails
type ErrUnauthorized struct {
	Message string
}

func (e *ErrUnauthorized) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "unauthorized"
}

// ErrConflict is returned when a write collides with an existing identity
type ErrConflict struct {
	Message string
}

func (e *ErrConflict) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "conflict"
}

// ErrValidation is returned when validation or a precondition fails
type ErrValidation struct {
	Code    string
	Message string
	Fields  map[string]string
}

func (e *ErrValidation) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "validation failed"
}

// ErrInvalidStateTransition is returned when an invalid picking transition is attempted
type ErrInvalidStateTransition struct {
	From string
	To   string
}

func (e *ErrInvalidStateTransition) Error() string {
	return fmt.Sprintf("invalid state transition from %s to %s", e.From, e.To)
}

// ErrIncompletePicking blocks completion while some lines are short
type ErrIncompletePicking struct {
	Unpicked int
}

func (e *ErrIncompletePicking) Error() string {
	return fmt.Sprintf("%d items not fully picked", e.Unpicked)
}
