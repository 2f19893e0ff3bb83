/*
errors.go - Centralized error types for the billing engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  The api layer maps these onto HTTP statuses; everything else uses
  errors.Is/errors.As.

ERROR CATEGORIES:
  1. Validation errors - malformed or missing caller input
  2. Permission errors - technician lacks a grant
  3. Not-found errors - referenced entity does not exist
  4. Consistency errors - an atomic multi-step mutation failed partway
  5. Rate errors - no pricing for a (client, country) pair under the
     fail-loudly policy

SEE ALSO:
  - types.go: Validate() and NewRate() return FieldError
  - cost.go: returns RateNotFoundError under MissingRateFail
*/
package billing

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrValidation is the root of all malformed-input errors.
	ErrValidation = errors.New("validation failed")

	// ErrPermissionDenied is returned when a technician has no grant for the
	// requested (data center, client) pair.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrNotFound is returned when a referenced entity does not exist.
	// Distinct from validation failure: the input was well-formed.
	ErrNotFound = errors.New("not found")

	// ErrRateNotFound is returned when pricing is missing for a
	// (client, country) pair and the policy is MissingRateFail.
	ErrRateNotFound = errors.New("rate not found")

	// ErrConsistency is returned when an atomic mutation (technician
	// creation or permission replacement) could not be applied as a whole.
	// The store guarantees full rollback before surfacing this.
	ErrConsistency = errors.New("consistency failure")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// FieldError reports a single invalid or missing field.
type FieldError struct {
	Field   string
	Message string
}

func (e *FieldError) Error() string { return fmt.Sprintf("%s: %s", e.Field, e.Message) }
func (e *FieldError) Unwrap() error { return ErrValidation }

// PermissionDeniedError carries the rejected triple.
type PermissionDeniedError struct {
	FTID         string
	DataCenterID string
	ClientID     string
}

func (e *PermissionDeniedError) Error() string {
	return fmt.Sprintf("technician %s has no grant for data center %s / client %s",
		e.FTID, e.DataCenterID, e.ClientID)
}

func (e *PermissionDeniedError) Unwrap() error { return ErrPermissionDenied }

// NotFoundError names the missing entity.
type NotFoundError struct {
	Kind string // "client", "data center", "technician", "entry", ...
	ID   string
}

func (e *NotFoundError) Error() string { return fmt.Sprintf("%s %s not found", e.Kind, e.ID) }
func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// RateNotFoundError carries the unpriced key.
type RateNotFoundError struct {
	Key RateKey
}

func (e *RateNotFoundError) Error() string {
	return fmt.Sprintf("no rate for client %s in country %s", e.Key.ClientID, e.Key.CountryID)
}

func (e *RateNotFoundError) Unwrap() error { return ErrRateNotFound }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid caller input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) || errors.Is(err, ErrRateNotFound)
}

// IsNotFound returns true if the error indicates a missing entity.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsPermissionDenied returns true for grant-check failures.
func IsPermissionDenied(err error) bool { return errors.Is(err, ErrPermissionDenied) }
