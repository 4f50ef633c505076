/*
flock.go - Flock lifecycle service

PURPOSE:
  Creates a flock together with its barns and seeds week 1 of each barn
  with its seven day logs, all in one transaction, so a new flock is
  immediately usable for daily entry. Also carries the week-weight
  update, the period metric that is set directly and never touches the
  feed ledger.
*/
package brood

import (
	"context"
	"fmt"
	"strings"
)

// FlockService manages flock and barn master records.
type FlockService struct {
	store TxStore
}

// NewFlockService creates the flock lifecycle service.
func NewFlockService(store TxStore) *FlockService {
	return &FlockService{store: store}
}

// CreateWithBarns creates the flock, its barns, and for each barn the
// first week with its seven day logs. At least one barn is required.
func (s *FlockService) CreateWithBarns(ctx context.Context, flock Flock, barns []Barn) (*Flock, error) {
	if len(barns) == 0 {
		return nil, &ValidationError{Field: "barns", Message: "at least one barn is required"}
	}
	for _, b := range barns {
		if strings.TrimSpace(b.BarnNo) == "" {
			return nil, &ValidationError{Field: "barn_no", Message: "barn number must not be empty"}
		}
		if b.ChickCount <= 0 {
			return nil, &ValidationError{Field: "chick_count", Message: "chick count must be positive"}
		}
	}

	var result *Flock
	err := s.store.WithTx(ctx, func(tx Store) error {
		created, err := tx.InsertFlock(ctx, flock)
		if err != nil {
			return fmt.Errorf("create flock: %w", err)
		}

		for _, b := range barns {
			b.FlockID = created.ID
			barn, err := tx.InsertBarn(ctx, b)
			if err != nil {
				return fmt.Errorf("create barn %q: %w", b.BarnNo, err)
			}

			week, err := tx.CreateWeek(ctx, barn.ID, 1)
			if err != nil {
				return fmt.Errorf("seed week 1 for barn %q: %w", b.BarnNo, err)
			}
			first, last := WeekAgeSpan(1)
			for age := first; age <= last; age++ {
				if _, err := tx.CreateDayLog(ctx, DayLog{WeekID: week.ID, Age: age}); err != nil {
					return fmt.Errorf("seed day log age %d for barn %q: %w", age, b.BarnNo, err)
				}
			}
		}

		result = created
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Get returns a flock by id.
func (s *FlockService) Get(ctx context.Context, id int64) (*Flock, error) {
	flock, err := s.store.GetFlock(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get flock %d: %w", id, err)
	}
	if flock == nil {
		return nil, &NotFoundError{Entity: "flock", ID: id}
	}
	return flock, nil
}

// List returns all flocks.
func (s *FlockService) List(ctx context.Context) ([]Flock, error) {
	return s.store.ListFlocks(ctx)
}

// Barns returns a flock's barns.
func (s *FlockService) Barns(ctx context.Context, flockID int64) ([]Barn, error) {
	flock, err := s.store.GetFlock(ctx, flockID)
	if err != nil {
		return nil, fmt.Errorf("list barns for flock %d: %w", flockID, err)
	}
	if flock == nil {
		return nil, &NotFoundError{Entity: "flock", ID: flockID}
	}
	return s.store.ListBarns(ctx, flockID)
}

// SetWeekWeight updates a week's average weight. A nil weight clears it.
func (s *FlockService) SetWeekWeight(ctx context.Context, weekID int64, weight *float64) (*Week, error) {
	week, err := s.store.GetWeek(ctx, weekID)
	if err != nil {
		return nil, fmt.Errorf("set weight for week %d: %w", weekID, err)
	}
	if week == nil {
		return nil, &NotFoundError{Entity: "week", ID: weekID}
	}
	if err := s.store.SetWeekWeight(ctx, weekID, weight); err != nil {
		return nil, fmt.Errorf("set weight for week %d: %w", weekID, err)
	}
	week.Weight = weight
	return week, nil
}
