/*
store.go - Persistence interface for versioned records

PURPOSE:
  Defines the interface between the reconciliation engine and the
  database. The Store owns durability and atomicity; the engine owns
  the decision of which primitive to call.

ATOMICITY CONTRACT:
  Both mutating operations execute as a single all-or-nothing unit.
  No external observer may ever see zero or two current rows for a
  key. GetCurrent may run without any lock: every mutation that
  follows it re-validates currency atomically, so staleness between
  read and write is detected, not assumed away.

CONCURRENCY:
  ExpireAndInsert is a conditional transition: it closes the named row
  only if that row is still current at commit time. This is the single
  synchronization point that makes lost updates impossible. A naive
  read-then-write without the condition can duplicate current rows
  under concurrent writers or retried runs.

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go: Durable SQLite store, conditional UPDATE
  - scd/store/memory.go: In-memory store for testing/dev

SEE ALSO:
  - engine.go: The only intended caller of the mutating primitives
  - errors.go: Error contract per operation
*/
package scd

import (
	"context"
	"time"
)

// =============================================================================
// STORE - Versioned record persistence
// =============================================================================

// Store handles durable, race-safe storage of VersionedRecords.
//
// Records are created only by InsertInitial and ExpireAndInsert, and a
// record is mutated exactly once in its life: when it is closed. There
// is no Update and no Delete.
type Store interface {
	// GetCurrent returns the current version for the key, or (nil, nil)
	// if the key has never been seen. The result reflects a consistent
	// snapshot: never zero-or-two current rows when writers behave.
	GetCurrent(ctx context.Context, key BusinessKey) (*VersionedRecord, error)

	// InsertInitial opens the first version for a previously-unseen
	// key with IsCurrent = true and ValidFrom = at.
	// Returns ErrDuplicateKey if a current row already exists (a
	// concurrent first-insert won); callers re-read and take the
	// expire-and-insert path instead.
	InsertInitial(ctx context.Context, key BusinessKey, payload Payload, at time.Time) (VersionedRecord, error)

	// ExpireAndInsert atomically closes the row identified by expiring
	// (ValidTo = at, IsCurrent = false) only if it is still the
	// current row, and opens a new current version with ValidFrom = at.
	// Returns ErrConcurrentModification if the expiring row was no
	// longer current at commit time; callers retry from GetCurrent.
	ExpireAndInsert(ctx context.Context, key BusinessKey, expiring SurrogateID, payload Payload, at time.Time) (VersionedRecord, error)

	// History returns every version for the key ordered by ValidFrom
	// ascending, the open-ended current version last. Empty slice if
	// the key has never been seen.
	History(ctx context.Context, key BusinessKey) ([]VersionedRecord, error)

	// Current returns the current version of every known key, ordered
	// by BusinessKey.
	Current(ctx context.Context) ([]VersionedRecord, error)
}

// =============================================================================
// PAYLOAD CODEC - Serialization boundary for durable stores
// =============================================================================

// PayloadCodec converts payloads to and from their stored bytes.
// Durable stores take one at construction; the in-memory store does
// not need one. The engine never serializes anything.
type PayloadCodec interface {
	MarshalPayload(p Payload) ([]byte, error)
	UnmarshalPayload(data []byte) (Payload, error)
}
