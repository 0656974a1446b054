// Package store provides Store implementations.
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/warp/forecast-engine/scd"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Memory holds version lineages per business key, ordered by ValidFrom
// with the current version last. All operations run under one mutex,
// which gives the same atomic-transition contract the SQLite store
// gets from transactions.
type Memory struct {
	mu       sync.RWMutex
	lineages map[scd.BusinessKey][]scd.VersionedRecord
}

func NewMemory() *Memory {
	return &Memory{
		lineages: make(map[scd.BusinessKey][]scd.VersionedRecord),
	}
}

// GetCurrent returns the current version for the key, or (nil, nil) if
// the key has never been seen.
func (m *Memory) GetCurrent(_ context.Context, key scd.BusinessKey) (*scd.VersionedRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	versions := m.lineages[key]
	if len(versions) == 0 {
		return nil, nil
	}

	// The current version is always last: lineages only grow via
	// InsertInitial and ExpireAndInsert, both of which append the new
	// current version.
	current := versions[len(versions)-1]
	return &current, nil
}

// InsertInitial opens the first version for a previously-unseen key.
func (m *Memory) InsertInitial(_ context.Context, key scd.BusinessKey, payload scd.Payload, at time.Time) (scd.VersionedRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.lineages[key]) > 0 {
		return scd.VersionedRecord{}, scd.ErrDuplicateKey
	}

	rec := scd.VersionedRecord{
		SurrogateID: scd.SurrogateID(uuid.NewString()),
		BusinessKey: key,
		Payload:     payload,
		ValidFrom:   at,
		IsCurrent:   true,
	}
	m.lineages[key] = append(m.lineages[key], rec)
	return rec, nil
}

// ExpireAndInsert closes the named version and opens a new current one
// as a single atomic transition under the store mutex.
func (m *Memory) ExpireAndInsert(_ context.Context, key scd.BusinessKey, expiring scd.SurrogateID, payload scd.Payload, at time.Time) (scd.VersionedRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	versions := m.lineages[key]
	if len(versions) == 0 {
		return scd.VersionedRecord{}, scd.ErrConcurrentModification
	}

	idx := len(versions) - 1
	current := versions[idx]
	if !current.IsCurrent || current.SurrogateID != expiring {
		// Another writer already transitioned the row we read.
		return scd.VersionedRecord{}, scd.ErrConcurrentModification
	}
	if !at.After(current.ValidFrom) {
		// Two versions must not open at the same instant; the SQLite
		// store enforces this via UNIQUE(business_key, valid_from).
		return scd.VersionedRecord{}, scd.ErrConcurrentModification
	}

	closedAt := at
	versions[idx].ValidTo = &closedAt
	versions[idx].IsCurrent = false

	rec := scd.VersionedRecord{
		SurrogateID: scd.SurrogateID(uuid.NewString()),
		BusinessKey: key,
		Payload:     payload,
		ValidFrom:   at,
		IsCurrent:   true,
	}
	m.lineages[key] = append(versions, rec)
	return rec, nil
}

// History returns all versions for the key ordered by ValidFrom.
func (m *Memory) History(_ context.Context, key scd.BusinessKey) ([]scd.VersionedRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	versions := m.lineages[key]
	result := make([]scd.VersionedRecord, len(versions))
	copy(result, versions)
	return result, nil
}

// Current returns the current version of every known key, ordered by
// business key.
func (m *Memory) Current(_ context.Context) ([]scd.VersionedRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]scd.VersionedRecord, 0, len(m.lineages))
	for _, versions := range m.lineages {
		if len(versions) == 0 {
			continue
		}
		result = append(result, versions[len(versions)-1])
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].BusinessKey < result[j].BusinessKey
	})
	return result, nil
}
