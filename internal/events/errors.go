package events

import (
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
)

var (
	ErrValidation          = errors.New("validation error")
	ErrStoreUnavailable    = errors.New("event store unavailable")
	ErrConstraintViolation = errors.New("constraint violation")
	ErrNotFound            = errors.New("not found")
	// ErrEnrichmentDegraded marks a failed or timed out lookup. It is logged,
	// never returned to callers of RecordEvent.
	ErrEnrichmentDegraded = errors.New("enrichment degraded")
)

// ValidationError describes a rejected input field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// NewValidationError builds a field-level validation error.
func NewValidationError(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// FixupError reports a failed exit-page correction after a committed append.
type FixupError struct {
	SessionID string
	EventID   uint
	Err       error
}

func (e *FixupError) Error() string {
	return fmt.Sprintf("exit page fix-up failed for session %q after event %d: %v", e.SessionID, e.EventID, e.Err)
}

func (e *FixupError) Unwrap() error { return e.Err }

// classifyStoreError maps a driver or gorm error onto the store taxonomy.
func classifyStoreError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrStoreUnavailable) || errors.Is(err, ErrConstraintViolation) {
		return err
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) || errors.Is(err, gorm.ErrForeignKeyViolated) ||
		strings.Contains(err.Error(), "constraint failed") {
		return fmt.Errorf("%s: %w: %w", op, ErrConstraintViolation, err)
	}
	return fmt.Errorf("%s: %w: %w", op, ErrStoreUnavailable, err)
}
