/*
errors.go - Centralized error types for the engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Domain packages wrap these errors with additional context.

ERROR CATEGORIES:
  1. Input errors - Missing assessment, malformed catalog, bad windows
  2. Consistency errors - Overlapping rates, concurrent supersession
  3. Validation errors - Required services missing from a plan

NOT ERRORS:
  - A scale with insufficient data is a nil value
  - No matching template is a nil template
  - OVER_CAP / WARNING are budget statuses

USAGE:
  if errors.Is(err, generic.ErrNoAssessment) {
      // branch on "no_classification"
  }

SEE ALSO:
  - bundle/planner.go: MissingRequiredServicesError
  - billing/rates.go: OverlappingRateError
*/
package generic

import "errors"

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrNoAssessment is returned when classification is requested without
	// an assessment. Callers surface status "no_classification".
	ErrNoAssessment = errors.New("no assessment available")

	// ErrNotFound is returned when a referenced record doesn't exist.
	ErrNotFound = errors.New("not found")

	// ErrOverlappingRate is returned when a new rate would share a valid
	// day with an existing record that cannot be closed.
	ErrOverlappingRate = errors.New("overlapping rate window")

	// ErrInvalidWindow is returned when a validity window is malformed.
	ErrInvalidWindow = errors.New("invalid validity window")

	// ErrConcurrentModification is returned when the store detects a second
	// current classification for the same patient.
	ErrConcurrentModification = errors.New("concurrent modification detected")

	// ErrInvalidCatalog is returned when catalog definitions fail validation.
	ErrInvalidCatalog = errors.New("invalid catalog")

	// ErrMissingRequiredServices is returned when a plan lacks a required
	// template service.
	ErrMissingRequiredServices = errors.New("required services missing from plan")

	// ErrInvalidInput is returned for malformed caller input.
	ErrInvalidInput = errors.New("invalid input")
)

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsRetryable returns true if the error might succeed on retry.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConcurrentModification)
}

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrNoAssessment) ||
		errors.Is(err, ErrOverlappingRate) ||
		errors.Is(err, ErrInvalidWindow) ||
		errors.Is(err, ErrInvalidCatalog) ||
		errors.Is(err, ErrMissingRequiredServices) ||
		errors.Is(err, ErrInvalidInput)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
