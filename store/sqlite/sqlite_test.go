package sqlite_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gallus/brood-engine/brood"
	"github.com/gallus/brood-engine/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func seedBarn(t *testing.T, store *sqlite.Store) (*brood.Flock, *brood.Barn) {
	t.Helper()
	ctx := context.Background()

	flock, err := store.InsertFlock(ctx, brood.Flock{
		Name: "Lot 1", ArrivalDate: "2026-01-05", ChickCount: 4000,
	})
	require.NoError(t, err)

	barn, err := store.InsertBarn(ctx, brood.Barn{
		FlockID: flock.ID, BarnNo: "B1", Breed: "Cobb 500", ChickCount: 4000,
	})
	require.NoError(t, err)
	return flock, barn
}

// =============================================================================
// NATURAL KEYS AND CONSTRAINTS
// =============================================================================

func TestCreateWeek_DuplicateNaturalKey(t *testing.T) {
	store := newTestStore(t)
	_, barn := seedBarn(t, store)
	ctx := context.Background()

	_, err := store.CreateWeek(ctx, barn.ID, 1)
	require.NoError(t, err)

	_, err = store.CreateWeek(ctx, barn.ID, 1)
	require.Error(t, err)
	var dup *brood.DuplicateError
	assert.ErrorAs(t, err, &dup)
}

func TestCreateWeek_RejectsOutOfRangeWeekNo(t *testing.T) {
	store := newTestStore(t)
	_, barn := seedBarn(t, store)
	ctx := context.Background()

	_, err := store.CreateWeek(ctx, barn.ID, 9)
	assert.Error(t, err, "week numbers beyond the grid must be rejected")

	_, err = store.CreateWeek(ctx, barn.ID, 0)
	assert.Error(t, err)
}

func TestEnsureWeek_Idempotent(t *testing.T) {
	store := newTestStore(t)
	_, barn := seedBarn(t, store)
	ctx := context.Background()

	first, err := store.EnsureWeek(ctx, barn.ID, 3)
	require.NoError(t, err)
	second, err := store.EnsureWeek(ctx, barn.ID, 3)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	weeks, err := store.ListWeeks(ctx, barn.ID)
	require.NoError(t, err)
	assert.Len(t, weeks, 1)
}

func TestEnsureWeek_PreservesWeight(t *testing.T) {
	store := newTestStore(t)
	_, barn := seedBarn(t, store)
	ctx := context.Background()

	week, err := store.EnsureWeek(ctx, barn.ID, 2)
	require.NoError(t, err)
	weight := 980.0
	require.NoError(t, store.SetWeekWeight(ctx, week.ID, &weight))

	again, err := store.EnsureWeek(ctx, barn.ID, 2)
	require.NoError(t, err)
	require.NotNil(t, again.Weight)
	assert.Equal(t, 980.0, *again.Weight)
}

func TestInsertBarn_UnknownFlock(t *testing.T) {
	store := newTestStore(t)

	_, err := store.InsertBarn(context.Background(), brood.Barn{
		FlockID: 42, BarnNo: "B1", Breed: "x", ChickCount: 1,
	})
	assert.True(t, brood.IsNotFound(err))
}

func TestCreateDayLog_DuplicateAddress(t *testing.T) {
	store := newTestStore(t)
	_, barn := seedBarn(t, store)
	ctx := context.Background()

	week, err := store.CreateWeek(ctx, barn.ID, 1)
	require.NoError(t, err)

	_, err = store.CreateDayLog(ctx, brood.DayLog{WeekID: week.ID, Age: 3})
	require.NoError(t, err)
	_, err = store.CreateDayLog(ctx, brood.DayLog{WeekID: week.ID, Age: 3})
	var dup *brood.DuplicateError
	assert.ErrorAs(t, err, &dup)
}

// =============================================================================
// LEDGER PRIMITIVES
// =============================================================================

func TestAdjustFeed_Accumulates(t *testing.T) {
	store := newTestStore(t)
	flock, _ := seedBarn(t, store)
	ctx := context.Background()

	require.NoError(t, store.AdjustFeed(ctx, flock.ID, 100))
	require.NoError(t, store.AdjustFeed(ctx, flock.ID, -30))
	require.NoError(t, store.AdjustFeed(ctx, flock.ID, 5.5))

	onHand, err := store.FeedOnHand(ctx, flock.ID)
	require.NoError(t, err)
	assert.InDelta(t, 75.5, onHand, 1e-9)
}

func TestAdjustFeed_UnknownFlock(t *testing.T) {
	store := newTestStore(t)

	err := store.AdjustFeed(context.Background(), 7, 10)
	assert.True(t, brood.IsNotFound(err))
}

func TestRecomputeFeed_FreshAggregate(t *testing.T) {
	store := newTestStore(t)
	flock, barn := seedBarn(t, store)
	ctx := context.Background()

	_, err := store.InsertProvision(ctx, brood.ProvisionEntry{FlockID: flock.ID, QuantityKg: 800})
	require.NoError(t, err)

	week, err := store.CreateWeek(ctx, barn.ID, 1)
	require.NoError(t, err)
	feed := 2.0
	_, err = store.CreateDayLog(ctx, brood.DayLog{WeekID: week.ID, Age: 1, FeedDaily: &feed})
	require.NoError(t, err)

	// Poison the stored value; recompute must ignore it.
	require.NoError(t, store.AdjustFeed(ctx, flock.ID, 12345))

	got, err := store.RecomputeFeed(ctx, flock.ID)
	require.NoError(t, err)
	assert.InDelta(t, 800-2*brood.KgPerSack, got, 1e-9)

	onHand, err := store.FeedOnHand(ctx, flock.ID)
	require.NoError(t, err)
	assert.InDelta(t, got, onHand, 1e-9)
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

func TestWithTx_RollsBackOnError(t *testing.T) {
	store := newTestStore(t)
	flock, _ := seedBarn(t, store)
	ctx := context.Background()

	boom := errors.New("boom")
	err := store.WithTx(ctx, func(tx brood.Store) error {
		if err := tx.AdjustFeed(ctx, flock.ID, 500); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	onHand, err := store.FeedOnHand(ctx, flock.ID)
	require.NoError(t, err)
	assert.Zero(t, onHand, "failed transaction must leave the ledger untouched")
}

func TestWithTx_CommitsOnSuccess(t *testing.T) {
	store := newTestStore(t)
	flock, _ := seedBarn(t, store)
	ctx := context.Background()

	err := store.WithTx(ctx, func(tx brood.Store) error {
		if _, err := tx.InsertProvision(ctx, brood.ProvisionEntry{FlockID: flock.ID, QuantityKg: 50}); err != nil {
			return err
		}
		return tx.AdjustFeed(ctx, flock.ID, 50)
	})
	require.NoError(t, err)

	onHand, err := store.FeedOnHand(ctx, flock.ID)
	require.NoError(t, err)
	assert.InDelta(t, 50, onHand, 1e-9)
}

// =============================================================================
// CATALOGS
// =============================================================================

func TestTreatmentCatalog(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	created, err := store.InsertTreatment(ctx, brood.Treatment{Name: "Tylosin", Unit: "mg"})
	require.NoError(t, err)

	exists, err := store.TreatmentExists(ctx, created.ID)
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = store.TreatmentExists(ctx, created.ID+1)
	require.NoError(t, err)
	assert.False(t, exists)

	_, err = store.InsertTreatment(ctx, brood.Treatment{Name: "Tylosin", Unit: "mg"})
	var dup *brood.DuplicateError
	assert.ErrorAs(t, err, &dup)
}

func TestBarnDiseaseLinks(t *testing.T) {
	store := newTestStore(t)
	_, barn := seedBarn(t, store)
	ctx := context.Background()

	disease, err := store.InsertDisease(ctx, brood.Disease{Name: "Coccidiosis"})
	require.NoError(t, err)

	require.NoError(t, store.LinkBarnDisease(ctx, barn.ID, disease.ID))
	// Relinking is a no-op, not an error.
	require.NoError(t, store.LinkBarnDisease(ctx, barn.ID, disease.ID))

	linked, err := store.ListBarnDiseases(ctx, barn.ID)
	require.NoError(t, err)
	require.Len(t, linked, 1)
	assert.Equal(t, "Coccidiosis", linked[0].Name)

	err = store.LinkBarnDisease(ctx, barn.ID, disease.ID+5)
	assert.True(t, brood.IsNotFound(err))

	require.NoError(t, store.DeleteBarnDiseaseLinks(ctx, barn.ID))
	linked, err = store.ListBarnDiseases(ctx, barn.ID)
	require.NoError(t, err)
	assert.Empty(t, linked)
}
