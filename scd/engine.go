/*
engine.go - SCD Type 2 reconciliation engine

PURPOSE:
  Decides, per incoming record, the minimal store mutation required,
  and applies it idempotently. "No change" is a first-class successful
  outcome, not an error.

WHY COMPARE-THEN-TRANSITION?
  Naive "always expire, always insert" duplicates history on no-op
  updates. Naive "update in place" destroys history. The only correct
  SCD2 shape under concurrent or retried ingestion is: read current,
  compare, and conditionally close-and-reopen in one atomic step.

STATE MACHINE (per business key):
  Absent     --insert initial-->   Current(p)
  Current(p) --no-op-->            Current(p)    when incoming == p
  Current(p) --expire and insert-> Current(p')   when incoming p' != p

  No terminal state; the machine runs for the life of the key.

RETRY POLICY:
  ConcurrentModification and DuplicateKey are absorbed inside the
  engine with an immediate re-read (the contention window is a single
  round trip, so no backoff). Exhausting the budget surfaces a
  ConflictError for that one key; other keys are unaffected.

SEE ALSO:
  - store.go: The two mutating primitives the engine drives
  - errors.go: What crosses the engine boundary
*/
package scd

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// DefaultMaxRetries bounds the re-read-and-retry loop under contention.
// The window is one store round trip, so a small budget is plenty.
const DefaultMaxRetries = 3

// =============================================================================
// ENGINE
// =============================================================================

// Engine reconciles incoming records against the store. It is
// stateless and safe for concurrent use; each Reconcile call is a
// short-lived, independently retryable unit.
type Engine struct {
	store      Store
	maxRetries int
}

// NewEngine creates an engine over the given store. maxRetries <= 0
// selects DefaultMaxRetries.
func NewEngine(store Store, maxRetries int) *Engine {
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	return &Engine{store: store, maxRetries: maxRetries}
}

// Decide is the pure decision function: given the current version (nil
// when the key is absent) and the incoming payload, it returns the
// transition the store must perform. It touches nothing.
func Decide(current *VersionedRecord, incoming Payload) Action {
	switch {
	case current == nil:
		return ActionCreated
	case current.Payload.Equal(incoming):
		return ActionUnchanged
	default:
		return ActionReplaced
	}
}

// Reconcile applies one incoming record observation:
//
//  1. Read the current version for the key.
//  2. Absent -> insert the initial version. A DuplicateKey means a
//     concurrent writer opened the lineage first; re-read and compare.
//  3. Semantically equal payload -> no-op; return the existing current
//     version unchanged.
//  4. Different payload -> atomically expire the current version and
//     open a new one at observedAt. A ConcurrentModification means
//     another writer transitioned it first; re-read and retry.
//
// Race losses are retried up to the budget; exhaustion returns a
// ConflictError wrapping ErrReconciliationConflict. Storage failures
// pass through unchanged.
func (e *Engine) Reconcile(ctx context.Context, key BusinessKey, incoming Payload, observedAt time.Time) (Outcome, error) {
	if incoming == nil {
		return Outcome{}, fmt.Errorf("reconcile %q: nil payload", key)
	}

	retries := 0
	for attempt := 0; attempt <= e.maxRetries; attempt++ {
		current, err := e.store.GetCurrent(ctx, key)
		if err != nil {
			return Outcome{}, fmt.Errorf("reconcile %q: %w", key, err)
		}

		switch Decide(current, incoming) {
		case ActionUnchanged:
			return Outcome{Action: ActionUnchanged, Record: *current, Retries: retries}, nil

		case ActionCreated:
			rec, err := e.store.InsertInitial(ctx, key, incoming, observedAt)
			if err == nil {
				return Outcome{Action: ActionCreated, Record: rec, Retries: retries}, nil
			}
			if errors.Is(err, ErrDuplicateKey) {
				// Lost the first-insert race. The winner's version is
				// now current; fall through to compare against it.
				retries++
				continue
			}
			return Outcome{}, fmt.Errorf("reconcile %q: %w", key, err)

		case ActionReplaced:
			rec, err := e.store.ExpireAndInsert(ctx, key, current.SurrogateID, incoming, observedAt)
			if err == nil {
				return Outcome{Action: ActionReplaced, Record: rec, Retries: retries}, nil
			}
			if errors.Is(err, ErrConcurrentModification) {
				// The version we read is no longer current. Re-read:
				// the winner's payload may even match ours.
				retries++
				continue
			}
			return Outcome{}, fmt.Errorf("reconcile %q: %w", key, err)
		}
	}

	return Outcome{}, &ConflictError{Key: key, Attempts: retries}
}
