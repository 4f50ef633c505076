/*
materializer.go - Full-grid reads with dual materialization

PURPOSE:
  Ensures that reading a barn's grid always observes a complete, stable
  8x7 structure regardless of how much has been persisted.

DUAL POLICY (intentional, do not collapse):
  - Weeks are EAGERLY materialized: a missing week is created with a
    null weight during the read, so week numbering is stable for
    callers and setting a weight never races with week creation.
  - Day logs are LAZILY virtualized: missing day addresses are emitted
    as in-memory rows with all fields null and are never written,
    avoiding thousands of empty rows for days nobody touched.

FAILURE MODES:
  - A persisted day log whose age falls outside its week's span yields
    a DataCorruptionError.
  - Week creation uses the store's idempotent EnsureWeek, so a partial
    failure never leaves a week half-initialized and a concurrent read
    cannot duplicate rows.
*/
package brood

import (
	"context"
	"fmt"
)

// Materializer serves complete grid reads for a barn.
type Materializer struct {
	store TxStore
}

// NewMaterializer creates a materializer on top of the given store.
func NewMaterializer(store TxStore) *Materializer {
	return &Materializer{store: store}
}

// FullGrid returns the barn's complete grid: exactly WeeksPerBarn weeks
// in order, each with exactly DaysPerWeek day logs ordered by age,
// virtual where nothing was recorded. Missing weeks are created and
// persisted; missing days are not.
func (m *Materializer) FullGrid(ctx context.Context, barnID int64) ([]WeekGrid, error) {
	barn, err := m.store.GetBarn(ctx, barnID)
	if err != nil {
		return nil, fmt.Errorf("materialize grid for barn %d: %w", barnID, err)
	}
	if barn == nil {
		return nil, &NotFoundError{Entity: "barn", ID: barnID}
	}

	existing, err := m.store.ListWeeks(ctx, barnID)
	if err != nil {
		return nil, fmt.Errorf("materialize grid for barn %d: %w", barnID, err)
	}
	byNo := make(map[int]Week, len(existing))
	for _, w := range existing {
		byNo[w.WeekNo] = w
	}

	grid := make([]WeekGrid, 0, WeeksPerBarn)
	for weekNo := 1; weekNo <= WeeksPerBarn; weekNo++ {
		week, ok := byNo[weekNo]
		if !ok {
			created, err := m.store.EnsureWeek(ctx, barnID, weekNo)
			if err != nil {
				return nil, fmt.Errorf("materialize week %d for barn %d: %w", weekNo, barnID, err)
			}
			week = *created
		}

		days, err := m.weekDays(ctx, week)
		if err != nil {
			return nil, err
		}
		grid = append(grid, WeekGrid{Week: week, Days: days})
	}

	return grid, nil
}

// weekDays loads the persisted day logs of a week and fills the gaps
// with virtual rows.
func (m *Materializer) weekDays(ctx context.Context, week Week) ([]DayLog, error) {
	persisted, err := m.store.ListDayLogs(ctx, week.ID)
	if err != nil {
		return nil, fmt.Errorf("load day logs for week %d: %w", week.ID, err)
	}

	byAge := make(map[int]DayLog, len(persisted))
	for _, d := range persisted {
		if !AgeInWeek(week.WeekNo, d.Age) {
			return nil, &DataCorruptionError{WeekID: week.ID, WeekNo: week.WeekNo, Age: d.Age}
		}
		byAge[d.Age] = d
	}

	first, last := WeekAgeSpan(week.WeekNo)
	days := make([]DayLog, 0, DaysPerWeek)
	for age := first; age <= last; age++ {
		if d, ok := byAge[age]; ok {
			days = append(days, d)
			continue
		}
		days = append(days, DayLog{WeekID: week.ID, Age: age})
	}
	return days, nil
}
