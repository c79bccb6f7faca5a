/*
errors.go - Centralized error types for the casework engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Other packages wrap these errors with additional context.

ERROR CATEGORIES:
  1. Not-found errors - Routine races (record swept by another session).
     Always recoverable; flag operations treat them as no-ops upstream.
  2. Validation errors - Malformed cutoffs and period ids, rejected at the
     API boundary before reaching the sweep engine.
  3. Export errors - Fatal for the export call; destructive execution must
     not proceed when export-before-purge failed.

USAGE:
  if casework.IsNotFound(err) {
      // skip, don't abort the batch
  }

SEE ALSO:
  - store.go: Uses these errors
  - ../retention/cleanup.go: Skips not-found, collects the rest
*/
package casework

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrStaffNotFound is returned when a referenced staff member doesn't exist.
	ErrStaffNotFound = errors.New("staff not found")

	// ErrClientNotFound is returned when a referenced client doesn't exist.
	// Expected during compute/execute races; callers skip rather than fail.
	ErrClientNotFound = errors.New("client not found")

	// ErrChildNotFound is returned when a child record lookup by
	// (client, kind, key) finds nothing.
	ErrChildNotFound = errors.New("record not found")

	// ErrUnknownKind is returned when a Kind value is not one of the
	// tagged-variant constants.
	ErrUnknownKind = errors.New("unknown record kind")

	// ErrInvalidCutoff is returned for negative retention windows.
	ErrInvalidCutoff = errors.New("cutoff days must be a non-negative integer")

	// ErrInvalidPeriodID is returned for malformed week/month identifiers.
	ErrInvalidPeriodID = errors.New("invalid period id")

	// ErrExportFailed is returned when a removal plan cannot be serialized.
	// The confirm step must be blocked when this happens.
	ErrExportFailed = errors.New("export serialization failed")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ChildNotFoundError identifies exactly which child record was missing.
type ChildNotFoundError struct {
	ClientID ClientID
	Kind     Kind
	Key      string
}

func (e *ChildNotFoundError) Error() string {
	return fmt.Sprintf("record not found: %s %q on client %s", e.Kind, e.Key, e.ClientID)
}

func (e *ChildNotFoundError) Unwrap() error { return ErrChildNotFound }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsNotFound returns true if the error indicates a missing record.
// These are routine races, never fatal.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrStaffNotFound) ||
		errors.Is(err, ErrClientNotFound) ||
		errors.Is(err, ErrChildNotFound)
}

// IsClientError returns true if the error is due to invalid caller input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidCutoff) ||
		errors.Is(err, ErrInvalidPeriodID) ||
		errors.Is(err, ErrUnknownKind)
}
