/*
errors.go - Centralized error types for the versioning engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Store implementations map their backend's failures onto these
  sentinels; the engine and callers branch with errors.Is/As.

ERROR CATEGORIES:
  1. Race errors - recoverable, handled inside the engine
  2. Conflict exhaustion - surfaced to the caller per key
  3. Storage errors - fatal for the attempt, surfaced unchanged

USAGE:
  if errors.Is(err, scd.ErrConcurrentModification) {
      // re-read current and retry
  }

SEE ALSO:
  - engine.go: Retry loop built on these sentinels
  - store.go: Which operations return which errors
*/
package scd

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrConcurrentModification is returned by ExpireAndInsert when the
	// expiring row was no longer current at commit time: another writer
	// already transitioned it. Callers retry from GetCurrent.
	ErrConcurrentModification = errors.New("concurrent modification detected")

	// ErrDuplicateKey is returned by InsertInitial when a current row
	// already exists for the key: a concurrent first-insert won the
	// race. Callers re-read and take the expire-and-insert path.
	ErrDuplicateKey = errors.New("current record already exists for key")

	// ErrReconciliationConflict is returned by the engine when the
	// retry budget is exhausted under sustained contention. It fails
	// the one key; other keys are unaffected.
	ErrReconciliationConflict = errors.New("reconciliation retry budget exhausted")

	// ErrStoreUnavailable wraps backend-unreachable failures. Fatal for
	// the current attempt; the caller's scheduling layer decides
	// whether to re-run the batch.
	ErrStoreUnavailable = errors.New("record store unavailable")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ConflictError reports which key exhausted its retry budget and how
// many attempts were made.
type ConflictError struct {
	Key      BusinessKey
	Attempts int
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("reconciliation conflict on %q after %d attempts", e.Key, e.Attempts)
}

func (e *ConflictError) Unwrap() error {
	return ErrReconciliationConflict
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsRetryable returns true if the error might succeed on an immediate
// re-read-and-retry.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConcurrentModification) ||
		errors.Is(err, ErrDuplicateKey)
}

// IsConflict returns true if the error means the retry budget ran out.
func IsConflict(err error) bool {
	return errors.Is(err, ErrReconciliationConflict)
}
