package api_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/gallus/brood-engine/api"
	"github.com/gallus/brood-engine/brood"
	"github.com/gallus/brood-engine/store/sqlite"
)

func TestAuditOnce_CleanLedger(t *testing.T) {
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	ctx := context.Background()

	flock, err := store.InsertFlock(ctx, brood.Flock{Name: "Lot 1", ArrivalDate: "2026-01-05", ChickCount: 100})
	require.NoError(t, err)
	_, err = store.InsertProvision(ctx, brood.ProvisionEntry{FlockID: flock.ID, QuantityKg: 200})
	require.NoError(t, err)
	require.NoError(t, store.AdjustFeed(ctx, flock.ID, 200))

	core, logs := observer.New(zapcore.WarnLevel)
	auditor := api.NewAuditor(store, "@hourly", zap.New(core))

	require.NoError(t, auditor.AuditOnce(ctx))
	assert.Zero(t, logs.Len(), "a consistent ledger must not be flagged")
}

func TestAuditOnce_FlagsDrift(t *testing.T) {
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	ctx := context.Background()

	flock, err := store.InsertFlock(ctx, brood.Flock{Name: "Lot 1", ArrivalDate: "2026-01-05", ChickCount: 100})
	require.NoError(t, err)

	// Move the stored ledger without a matching provision entry.
	require.NoError(t, store.AdjustFeed(ctx, flock.ID, 75))

	core, logs := observer.New(zapcore.WarnLevel)
	auditor := api.NewAuditor(store, "@hourly", zap.New(core))

	require.NoError(t, auditor.AuditOnce(ctx))
	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "feed ledger drift detected", entry.Message)
	fields := entry.ContextMap()
	assert.Equal(t, flock.ID, fields["flock_id"])
	assert.Equal(t, 75.0, fields["stored_kg"])
	assert.Equal(t, 0.0, fields["derived_kg"])
}
