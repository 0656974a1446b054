package ingest_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/forecast-engine/forecast"
	"github.com/warp/forecast-engine/ingest"
	"github.com/warp/forecast-engine/scd"
	"github.com/warp/forecast-engine/scd/store"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

type fakeSupplier struct {
	records []forecast.Record
	err     error
}

func (f *fakeSupplier) Forecasts(context.Context) ([]forecast.Record, error) {
	return f.records, f.err
}

func slot(hour int) time.Time {
	return time.Date(2025, time.March, 1, hour, 0, 0, 0, time.UTC)
}

func record(hour int, kelvin float64, observed time.Time) forecast.Record {
	return forecast.Record{
		Slot:       slot(hour),
		Payload:    forecast.NewPayload(decimal.NewFromFloat(kelvin), forecast.Condition{Main: "Clear"}),
		ObservedAt: observed,
	}
}

func forecastBatch(observed time.Time, kelvins ...float64) []forecast.Record {
	records := make([]forecast.Record, 0, len(kelvins))
	for i, k := range kelvins {
		records = append(records, record(i, k, observed))
	}
	return records
}

// =============================================================================
// RUN SEMANTICS
// =============================================================================

func TestRun_FirstIngestion_CreatesAllKeys(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	engine := scd.NewEngine(mem, 0)

	supplier := &fakeSupplier{records: forecastBatch(slot(12), 280, 281, 282)}
	runner := ingest.NewRunner(supplier, engine, 2)

	summary, err := runner.Run(ctx)
	require.NoError(t, err)

	assert.Equal(t, 3, summary.Created)
	assert.Equal(t, 0, summary.Replaced)
	assert.Equal(t, 0, summary.Unchanged)
	assert.Equal(t, 0, summary.Failed)
	assert.Equal(t, 3, summary.Total())

	current, err := mem.Current(ctx)
	require.NoError(t, err)
	assert.Len(t, current, 3)
}

func TestRun_RepeatedIngestion_AllUnchanged(t *testing.T) {
	// Re-fetching an identical forecast must not grow history.

	ctx := context.Background()
	mem := store.NewMemory()
	engine := scd.NewEngine(mem, 0)

	supplier := &fakeSupplier{records: forecastBatch(slot(12), 280, 281, 282)}
	runner := ingest.NewRunner(supplier, engine, 2)

	_, err := runner.Run(ctx)
	require.NoError(t, err)

	supplier.records = forecastBatch(slot(13), 280, 281, 282)
	summary, err := runner.Run(ctx)
	require.NoError(t, err)

	assert.Equal(t, 3, summary.Unchanged)
	assert.Equal(t, 0, summary.Created)
	assert.Equal(t, 0, summary.Replaced)
}

func TestRun_ChangedForecast_ReplacesOnlyChangedKeys(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	engine := scd.NewEngine(mem, 0)

	supplier := &fakeSupplier{records: forecastBatch(slot(12), 280, 281, 282)}
	runner := ingest.NewRunner(supplier, engine, 2)

	_, err := runner.Run(ctx)
	require.NoError(t, err)

	// Second run: only the middle slot's forecast moved.
	supplier.records = forecastBatch(slot(13), 280, 290, 282)
	summary, err := runner.Run(ctx)
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Replaced)
	assert.Equal(t, 2, summary.Unchanged)

	history, err := mem.History(ctx, forecast.SlotKey(slot(1)))
	require.NoError(t, err)
	assert.Len(t, history, 2)
}

func TestRun_SupplierFailure_FailsWholeRun(t *testing.T) {
	engine := scd.NewEngine(store.NewMemory(), 0)
	supplier := &fakeSupplier{err: errors.New("upstream down")}
	runner := ingest.NewRunner(supplier, engine, 2)

	_, err := runner.Run(context.Background())
	assert.Error(t, err)
}

// keyFailStore fails every mutation for one business key.
type keyFailStore struct {
	*store.Memory
	failKey scd.BusinessKey
}

func (k *keyFailStore) InsertInitial(ctx context.Context, key scd.BusinessKey, payload scd.Payload, at time.Time) (scd.VersionedRecord, error) {
	if key == k.failKey {
		return scd.VersionedRecord{}, fmt.Errorf("insert: %w", scd.ErrStoreUnavailable)
	}
	return k.Memory.InsertInitial(ctx, key, payload, at)
}

func TestRun_PerKeyFailure_DoesNotAbortOthers(t *testing.T) {
	// GIVEN: One key's mutations always fail
	// WHEN: A run ingests three keys
	// THEN: The other two succeed; the failure is counted and reported

	ctx := context.Background()
	failing := forecast.SlotKey(slot(1))
	st := &keyFailStore{Memory: store.NewMemory(), failKey: failing}
	engine := scd.NewEngine(st, 0)

	supplier := &fakeSupplier{records: forecastBatch(slot(12), 280, 281, 282)}
	runner := ingest.NewRunner(supplier, engine, 2)

	summary, err := runner.Run(ctx)
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Created)
	assert.Equal(t, 1, summary.Failed)
	require.Len(t, summary.Errors, 1)
	assert.Equal(t, failing, summary.Errors[0].Key)
	assert.True(t, errors.Is(summary.Errors[0].Err, scd.ErrStoreUnavailable))
}
