/*
upsert.go - Day-log mutation entry point

PURPOSE:
  The single write path for day-level data. Given a (week, age) address
  and one typed field update, finds or creates the day log and applies
  the field. When the field is feed_daily, the flock's feed ledger is
  moved by the converted signed delta in the same transaction.

INVARIANTS:
  - Upsert by natural key, never by surrogate id: a write to an absent
    address creates the row, a write to an existing address updates it
    in place.
  - Idempotent for identical input: the ledger delta is computed
    against the current stored value, never accumulated blindly, so
    reapplying the same update does not double-count.
  - Day write and ledger update commit or roll back together.
*/
package brood

import (
	"context"
	"fmt"
)

// DayLogService is the main mutation entry point of the engine.
type DayLogService struct {
	store TxStore
}

// NewDayLogService creates the upsert service on top of the store.
func NewDayLogService(store TxStore) *DayLogService {
	return &DayLogService{store: store}
}

// UpsertField finds or creates the day log at (weekID, age) and applies
// the update. The owning week must exist; an age outside the week's
// span is rejected. A dangling treatment reference fails with a
// ValidationError naming the bad id before anything is written.
func (s *DayLogService) UpsertField(ctx context.Context, weekID int64, age int, update FieldUpdate) (*DayLog, error) {
	if update == nil {
		update = Touch{}
	}

	var result *DayLog
	err := s.store.WithTx(ctx, func(tx Store) error {
		week, err := tx.GetWeek(ctx, weekID)
		if err != nil {
			return fmt.Errorf("upsert day log week=%d age=%d: %w", weekID, age, err)
		}
		if week == nil {
			return &NotFoundError{Entity: "week", ID: weekID}
		}
		if !AgeInWeek(week.WeekNo, age) {
			first, last := WeekAgeSpan(week.WeekNo)
			return &ValidationError{
				Field:   "age",
				Message: fmt.Sprintf("age %d is outside week %d (%d..%d)", age, week.WeekNo, first, last),
			}
		}

		if set, ok := update.(SetTreatment); ok && set.ID != nil {
			exists, err := tx.TreatmentExists(ctx, *set.ID)
			if err != nil {
				return fmt.Errorf("validate treatment %d: %w", *set.ID, err)
			}
			if !exists {
				return &ValidationError{
					Field:   string(FieldTreatment),
					Message: fmt.Sprintf("treatment %d does not exist", *set.ID),
					BadRef:  *set.ID,
				}
			}
		}

		day, err := tx.FindDayLog(ctx, weekID, age)
		if err != nil {
			return fmt.Errorf("upsert day log week=%d age=%d: %w", weekID, age, err)
		}
		if day == nil {
			day = &DayLog{WeekID: weekID, Age: age}
		}

		oldFeed := day.FeedDaily
		update.apply(day)

		if _, ok := update.(SetFeedDaily); ok {
			deltaKg := feedDeltaKg(oldFeed, day.FeedDaily)
			if deltaKg != 0 {
				barn, err := tx.GetBarn(ctx, week.BarnID)
				if err != nil {
					return fmt.Errorf("resolve flock for week %d: %w", weekID, err)
				}
				if barn == nil {
					return &NotFoundError{Entity: "barn", ID: week.BarnID}
				}
				if err := tx.AdjustFeed(ctx, barn.FlockID, deltaKg); err != nil {
					return fmt.Errorf("adjust feed ledger for flock %d: %w", barn.FlockID, err)
				}
			}
		}

		if day.Persisted() {
			if err := tx.UpdateDayLog(ctx, *day); err != nil {
				return fmt.Errorf("update day log %s: %w", day.Address(), err)
			}
		} else {
			created, err := tx.CreateDayLog(ctx, *day)
			if err != nil {
				return fmt.Errorf("create day log %s: %w", day.Address(), err)
			}
			day = created
		}

		result = day
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
