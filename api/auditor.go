/*
auditor.go - Scheduled ledger drift audit

PURPOSE:
  Periodically re-derives every flock's feed_on_hand from first
  principles (sum of provision entries minus converted day-level
  consumption) and compares it with the stored running value. Drift
  means a write path bypassed the ledger coupling; it is logged loudly
  but never auto-corrected, so an operator decides.
*/
package api

import (
	"context"
	"math"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/gallus/brood-engine/brood"
	"github.com/gallus/brood-engine/store/sqlite"
)

// driftTolerance absorbs float accumulation noise in stored ledgers.
const driftTolerance = 1e-6

// Auditor runs the scheduled ledger audit.
type Auditor struct {
	cron     *cron.Cron
	store    *sqlite.Store
	schedule string
	logger   *zap.Logger
}

// NewAuditor creates an auditor with the given cron schedule.
func NewAuditor(store *sqlite.Store, schedule string, logger *zap.Logger) *Auditor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Auditor{
		cron:     cron.New(),
		store:    store,
		schedule: schedule,
		logger:   logger,
	}
}

// Start schedules the audit job.
func (a *Auditor) Start() error {
	if _, err := a.cron.AddFunc(a.schedule, a.runAudit); err != nil {
		return err
	}
	a.cron.Start()
	a.logger.Info("ledger auditor started", zap.String("schedule", a.schedule))
	return nil
}

// Stop stops the scheduler.
func (a *Auditor) Stop() {
	a.cron.Stop()
	a.logger.Info("ledger auditor stopped")
}

func (a *Auditor) runAudit() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if err := a.AuditOnce(ctx); err != nil {
		a.logger.Error("ledger audit failed", zap.Error(err))
	}
}

// AuditOnce checks every flock's stored ledger against the derived
// value and logs each drift found.
func (a *Auditor) AuditOnce(ctx context.Context) error {
	flocks, err := a.store.ListFlocks(ctx)
	if err != nil {
		return err
	}

	for _, flock := range flocks {
		derived, err := deriveLedger(ctx, a.store, flock.ID)
		if err != nil {
			a.logger.Error("failed to derive ledger",
				zap.Int64("flock_id", flock.ID), zap.Error(err))
			continue
		}
		if math.Abs(derived-flock.FeedOnHand) > driftTolerance {
			a.logger.Warn("feed ledger drift detected",
				zap.Int64("flock_id", flock.ID),
				zap.String("flock", flock.Name),
				zap.Float64("stored_kg", flock.FeedOnHand),
				zap.Float64("derived_kg", derived))
		}
	}

	a.logger.Info("ledger audit complete", zap.Int("flocks", len(flocks)))
	return nil
}

// deriveLedger recomputes a flock's expected feed_on_hand from its
// provision history and day logs without touching the stored value.
func deriveLedger(ctx context.Context, store *sqlite.Store, flockID int64) (float64, error) {
	entries, err := store.ListProvisions(ctx, flockID)
	if err != nil {
		return 0, err
	}
	var total float64
	for _, e := range entries {
		total += e.QuantityKg
	}

	barnIDs, err := store.BarnIDsByFlock(ctx, flockID)
	if err != nil {
		return 0, err
	}
	for _, barnID := range barnIDs {
		weekIDs, err := store.WeekIDsByBarn(ctx, barnID)
		if err != nil {
			return 0, err
		}
		for _, weekID := range weekIDs {
			logs, err := store.ListDayLogs(ctx, weekID)
			if err != nil {
				return 0, err
			}
			for _, d := range logs {
				if d.FeedDaily != nil {
					total -= *d.FeedDaily * brood.KgPerSack
				}
			}
		}
	}
	return total, nil
}
