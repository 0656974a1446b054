package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/forecast-engine/scd"
	"github.com/warp/forecast-engine/scd/store"
)

type blob struct {
	v string
}

func (b blob) Equal(other scd.Payload) bool {
	o, ok := other.(blob)
	return ok && o.v == b.v
}

func at(seconds int) time.Time {
	return time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(seconds) * time.Second)
}

func TestMemory_GetCurrent_UnseenKey_ReturnsNil(t *testing.T) {
	mem := store.NewMemory()

	rec, err := mem.GetCurrent(context.Background(), "T1")
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestMemory_InsertInitial_OpensCurrentVersion(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()

	rec, err := mem.InsertInitial(ctx, "T1", blob{"P1"}, at(100))
	require.NoError(t, err)

	assert.NotEmpty(t, rec.SurrogateID)
	assert.Equal(t, scd.BusinessKey("T1"), rec.BusinessKey)
	assert.True(t, rec.IsCurrent)
	assert.Nil(t, rec.ValidTo)

	current, err := mem.GetCurrent(ctx, "T1")
	require.NoError(t, err)
	require.NotNil(t, current)
	assert.Equal(t, rec.SurrogateID, current.SurrogateID)
}

func TestMemory_InsertInitial_ExistingKey_DuplicateKey(t *testing.T) {
	// GIVEN: A key with a current version
	// WHEN: A second initial insert races in
	// THEN: ErrDuplicateKey; the original row is untouched

	ctx := context.Background()
	mem := store.NewMemory()

	first, err := mem.InsertInitial(ctx, "T1", blob{"P1"}, at(100))
	require.NoError(t, err)

	_, err = mem.InsertInitial(ctx, "T1", blob{"P2"}, at(200))
	assert.ErrorIs(t, err, scd.ErrDuplicateKey)

	current, err := mem.GetCurrent(ctx, "T1")
	require.NoError(t, err)
	assert.Equal(t, first.SurrogateID, current.SurrogateID)
}

func TestMemory_ExpireAndInsert_ClosesOldOpensNew(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()

	first, err := mem.InsertInitial(ctx, "T1", blob{"P1"}, at(100))
	require.NoError(t, err)

	second, err := mem.ExpireAndInsert(ctx, "T1", first.SurrogateID, blob{"P2"}, at(200))
	require.NoError(t, err)
	assert.NotEqual(t, first.SurrogateID, second.SurrogateID)

	history, err := mem.History(ctx, "T1")
	require.NoError(t, err)
	require.Len(t, history, 2)

	assert.False(t, history[0].IsCurrent)
	require.NotNil(t, history[0].ValidTo)
	assert.True(t, history[0].ValidTo.Equal(at(200)))
	assert.True(t, history[1].IsCurrent)
	assert.Nil(t, history[1].ValidTo)
}

func TestMemory_ExpireAndInsert_StaleSurrogate_ConcurrentModification(t *testing.T) {
	// GIVEN: The version a writer read has already been expired
	// WHEN: The writer tries to expire it
	// THEN: ErrConcurrentModification; the store stays consistent

	ctx := context.Background()
	mem := store.NewMemory()

	first, err := mem.InsertInitial(ctx, "T1", blob{"P1"}, at(100))
	require.NoError(t, err)

	_, err = mem.ExpireAndInsert(ctx, "T1", first.SurrogateID, blob{"P2"}, at(200))
	require.NoError(t, err)

	// first is no longer current.
	_, err = mem.ExpireAndInsert(ctx, "T1", first.SurrogateID, blob{"P3"}, at(300))
	assert.ErrorIs(t, err, scd.ErrConcurrentModification)

	history, err := mem.History(ctx, "T1")
	require.NoError(t, err)
	assert.Len(t, history, 2)
}

func TestMemory_ExpireAndInsert_SameInstant_Rejected(t *testing.T) {
	// Two versions must never open at the identical instant.

	ctx := context.Background()
	mem := store.NewMemory()

	first, err := mem.InsertInitial(ctx, "T1", blob{"P1"}, at(100))
	require.NoError(t, err)

	_, err = mem.ExpireAndInsert(ctx, "T1", first.SurrogateID, blob{"P2"}, at(100))
	assert.ErrorIs(t, err, scd.ErrConcurrentModification)
}

func TestMemory_ExpireAndInsert_UnseenKey_ConcurrentModification(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()

	_, err := mem.ExpireAndInsert(ctx, "T1", "no-such-id", blob{"P1"}, at(100))
	assert.ErrorIs(t, err, scd.ErrConcurrentModification)
}

func TestMemory_Current_SortedByKey(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()

	for _, key := range []scd.BusinessKey{"C", "A", "B"} {
		_, err := mem.InsertInitial(ctx, key, blob{"P"}, at(100))
		require.NoError(t, err)
	}

	current, err := mem.Current(ctx)
	require.NoError(t, err)
	require.Len(t, current, 3)
	assert.Equal(t, scd.BusinessKey("A"), current[0].BusinessKey)
	assert.Equal(t, scd.BusinessKey("B"), current[1].BusinessKey)
	assert.Equal(t, scd.BusinessKey("C"), current[2].BusinessKey)
}
