/*
Package scd provides the core SCD Type 2 versioning engine.

PURPOSE:
  This package contains the domain-agnostic types and algorithms for
  tracking the full change history of mutable external records. Whether
  versioning weather forecasts, price quotes, or config documents, the
  same engine decides when an incoming record is a change and drives the
  store through atomic close-and-reopen transitions.

KEY CONCEPTS IN THIS FILE (types.go):
  - BusinessKey: The stable real-world identity of a tracked entity
  - Payload: The versioned attributes, opaque except for equality
  - VersionedRecord: One historical or current snapshot of an entity
  - Outcome/Action: What a reconciliation did (nothing, create, replace)

DESIGN PRINCIPLES:
  1. One current row: at most one VersionedRecord per key is current
  2. Immutability: a version is closed exactly once, never edited after
  3. History tiles the timeline: each ValidTo equals the next ValidFrom
  4. Semantic equality: payloads decide "changed" themselves, so numeric
     tolerance lives with the domain, not the engine

SEE ALSO:
  - engine.go: Reconciliation decision logic
  - store.go: Persistence interface the engine drives
  - errors.go: Error taxonomy
*/
package scd

import "time"

// =============================================================================
// IDENTIFIERS
// =============================================================================

// BusinessKey is the stable identity of the real-world entity being
// tracked. Many VersionedRecords share one BusinessKey over time.
type BusinessKey string

// SurrogateID identifies one specific version. Assigned by the store on
// insert; immutable; unique across all keys.
type SurrogateID string

// =============================================================================
// PAYLOAD - Versioned attributes, opaque to the engine
// =============================================================================

// Payload holds the attributes being versioned. The engine never looks
// inside; it only asks whether two payloads are semantically equal.
//
// Implementations own the definition of "changed". They must ignore
// incidental noise (e.g. float formatting below a tolerance) but detect
// a genuine change in any tracked attribute.
type Payload interface {
	// Equal reports whether other represents the same observed state.
	// Equal payloads reconcile to a no-op; unequal payloads open a new
	// version.
	Equal(other Payload) bool
}

// =============================================================================
// VERSIONED RECORD - One snapshot of a business entity
// =============================================================================

// VersionedRecord is one historical or current snapshot of an entity.
//
// INVARIANTS (enforced by Store implementations):
//   - At most one record per BusinessKey has IsCurrent = true.
//   - ValidTo is nil if and only if IsCurrent is true.
//   - Ordered by ValidFrom, versions tile the timeline: each ValidTo
//     equals the next version's ValidFrom; the last is open-ended.
//   - (BusinessKey, ValidFrom) is unique.
type VersionedRecord struct {
	SurrogateID SurrogateID
	BusinessKey BusinessKey
	Payload     Payload

	// ValidFrom is when this version became authoritative. Set at
	// insert; immutable thereafter.
	ValidFrom time.Time

	// ValidTo is when this version stopped being authoritative.
	// Nil while current; set exactly once, strictly after ValidFrom.
	ValidTo *time.Time

	IsCurrent bool
}

// Closed reports whether this version has been expired.
func (r VersionedRecord) Closed() bool {
	return r.ValidTo != nil
}

// ValidAt reports whether this version was authoritative at t,
// using the half-open interval [ValidFrom, ValidTo).
func (r VersionedRecord) ValidAt(t time.Time) bool {
	if t.Before(r.ValidFrom) {
		return false
	}
	if r.ValidTo == nil {
		return true
	}
	return t.Before(*r.ValidTo)
}

// =============================================================================
// OUTCOME - Result of one reconciliation
// =============================================================================

// Action describes what a reconciliation did to the store.
type Action string

const (
	// ActionUnchanged means the incoming payload matched the current
	// version. No mutation happened. This is a successful outcome,
	// not an error.
	ActionUnchanged Action = "unchanged"

	// ActionCreated means the key had never been seen; a new lineage
	// was opened.
	ActionCreated Action = "created"

	// ActionReplaced means the prior current version was closed and a
	// new current version opened in one atomic step.
	ActionReplaced Action = "replaced"
)

// Outcome reports the result of a single reconciliation.
type Outcome struct {
	Action Action

	// Record is the current version after reconciliation: the
	// untouched existing version for ActionUnchanged, or the freshly
	// inserted one otherwise.
	Record VersionedRecord

	// Retries counts how many ConcurrentModification round trips were
	// absorbed before the outcome settled.
	Retries int
}
