/*
cascade.go - Cascading deletion of barns and flocks

PURPOSE:
  Removes a barn (or a whole flock) and all dependent weeks and day
  logs in a single transaction, in dependency order:

    day logs -> weeks -> barn-disease links -> barn (-> flock)

  Any step failure aborts and leaves the hierarchy fully intact.

LEDGER POLICY:
  Day logs are not individually run through the ledger helper (correct
  but slow). Instead, after the rows are gone and still inside the same
  transaction, the owning flock's feed_on_hand is recomputed as a fresh
  aggregate over the remaining provision entries and day logs. This
  guarantees conservation regardless of which deletion path ran.
*/
package brood

import (
	"context"
	"fmt"
)

// DeletionService removes grid subtrees and repairs the ledger.
type DeletionService struct {
	store TxStore
}

// NewDeletionService creates the cascade deletion service.
func NewDeletionService(store TxStore) *DeletionService {
	return &DeletionService{store: store}
}

// DeleteBarn removes a barn and everything under it, then recomputes
// the owning flock's feed ledger. Returns a NotFoundError if the barn
// does not exist; nothing is mutated in that case.
func (s *DeletionService) DeleteBarn(ctx context.Context, barnID int64) error {
	return s.store.WithTx(ctx, func(tx Store) error {
		barn, err := tx.GetBarn(ctx, barnID)
		if err != nil {
			return fmt.Errorf("delete barn %d: %w", barnID, err)
		}
		if barn == nil {
			return &NotFoundError{Entity: "barn", ID: barnID}
		}

		if err := deleteBarnTree(ctx, tx, barnID); err != nil {
			return err
		}

		if _, err := tx.RecomputeFeed(ctx, barn.FlockID); err != nil {
			return fmt.Errorf("recompute feed ledger for flock %d: %w", barn.FlockID, err)
		}
		return nil
	})
}

// DeleteFlock removes a flock, all of its barns (each via the same
// dependency-ordered cascade), and its provision history. The ledger
// dies with the flock row, so no recompute is needed.
func (s *DeletionService) DeleteFlock(ctx context.Context, flockID int64) error {
	return s.store.WithTx(ctx, func(tx Store) error {
		flock, err := tx.GetFlock(ctx, flockID)
		if err != nil {
			return fmt.Errorf("delete flock %d: %w", flockID, err)
		}
		if flock == nil {
			return &NotFoundError{Entity: "flock", ID: flockID}
		}

		barnIDs, err := tx.BarnIDsByFlock(ctx, flockID)
		if err != nil {
			return fmt.Errorf("delete flock %d: %w", flockID, err)
		}
		for _, barnID := range barnIDs {
			if err := deleteBarnTree(ctx, tx, barnID); err != nil {
				return err
			}
		}

		if err := tx.DeleteProvisionsByFlock(ctx, flockID); err != nil {
			return fmt.Errorf("delete flock %d provision history: %w", flockID, err)
		}

		existed, err := tx.DeleteFlock(ctx, flockID)
		if err != nil {
			return fmt.Errorf("delete flock %d: %w", flockID, err)
		}
		if !existed {
			return &NotFoundError{Entity: "flock", ID: flockID}
		}
		return nil
	})
}

// deleteBarnTree removes a barn's descendants and the barn itself, in
// dependency order, using the transaction-scoped store.
func deleteBarnTree(ctx context.Context, tx Store, barnID int64) error {
	weekIDs, err := tx.WeekIDsByBarn(ctx, barnID)
	if err != nil {
		return fmt.Errorf("resolve weeks for barn %d: %w", barnID, err)
	}
	if len(weekIDs) > 0 {
		if _, err := tx.DeleteDayLogsByWeeks(ctx, weekIDs); err != nil {
			return fmt.Errorf("delete day logs for barn %d: %w", barnID, err)
		}
	}
	if err := tx.DeleteWeeksByBarn(ctx, barnID); err != nil {
		return fmt.Errorf("delete weeks for barn %d: %w", barnID, err)
	}
	if err := tx.DeleteBarnDiseaseLinks(ctx, barnID); err != nil {
		return fmt.Errorf("delete disease links for barn %d: %w", barnID, err)
	}
	existed, err := tx.DeleteBarn(ctx, barnID)
	if err != nil {
		return fmt.Errorf("delete barn %d: %w", barnID, err)
	}
	if !existed {
		return &NotFoundError{Entity: "barn", ID: barnID}
	}
	return nil
}
