/*
errors.go - Centralized error types for the brood engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Store implementations and the API layer wrap these with the operation
  and address that failed.

ERROR CATEGORIES:
  1. NotFound    - referenced parent entity absent, never silently ignored
  2. Duplicate   - natural-key collision on insert
  3. Validation  - malformed input or dangling catalog reference
  4. Corruption  - stored grid data inconsistent with address arithmetic
  5. Unavailable - connection pool exhaustion

USAGE:
  if errors.Is(err, brood.ErrNotFound) { ... }

  var verr *brood.ValidationError
  if errors.As(err, &verr) { ... verr.Field ... }
*/
package brood

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrNotFound is returned when a referenced parent entity is absent.
	ErrNotFound = errors.New("entity not found")

	// ErrDuplicate is returned on a natural-key collision. It should not
	// occur given upsert-by-find-or-create, but the unique constraints
	// guard against races.
	ErrDuplicate = errors.New("duplicate natural key")

	// ErrValidation is returned for malformed field values or dangling
	// foreign references.
	ErrValidation = errors.New("validation failed")

	// ErrDataCorruption is returned when a stored age is inconsistent
	// with the grid address arithmetic.
	ErrDataCorruption = errors.New("grid data corruption")

	// ErrResourceUnavailable is returned when the store cannot hand out
	// a connection. Callers decide retry policy; nothing retries here.
	ErrResourceUnavailable = errors.New("storage unavailable")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// NotFoundError names the missing entity.
type NotFoundError struct {
	Entity string
	ID     int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Entity, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// DuplicateError names the colliding natural key.
type DuplicateError struct {
	Entity string
	Key    string
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("%s already exists for %s", e.Entity, e.Key)
}

func (e *DuplicateError) Unwrap() error { return ErrDuplicate }

// ValidationError names the offending field. BadRef is set when the
// failure is a dangling catalog reference, so callers can surface the
// exact id that does not exist.
type ValidationError struct {
	Field   string
	Message string
	BadRef  int64
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// DataCorruptionError reports a stored day log whose age falls outside
// its week's addressable span.
type DataCorruptionError struct {
	WeekID int64
	WeekNo int
	Age    int
}

func (e *DataCorruptionError) Error() string {
	first, last := WeekAgeSpan(e.WeekNo)
	return fmt.Sprintf("day log age %d stored under week %d (expected %d..%d)",
		e.Age, e.WeekID, first, last)
}

func (e *DataCorruptionError) Unwrap() error { return ErrDataCorruption }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsNotFound reports whether err indicates a missing entity.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsValidation reports whether err is due to invalid caller input.
func IsValidation(err error) bool { return errors.Is(err, ErrValidation) }

// IsDuplicate reports whether err is a natural-key collision.
func IsDuplicate(err error) bool { return errors.Is(err, ErrDuplicate) }
