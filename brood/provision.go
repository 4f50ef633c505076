/*
provision.go - Ledger adjustment helper for feed-delivery records

PURPOSE:
  Maintains feed_on_hand alongside the provision history. Every
  create/update/delete of a provision entry moves the owning flock's
  ledger by the matching signed delta, in the same transaction as the
  row mutation. Re-pointing an entry from flock A to flock B subtracts
  the old value from A and adds the new value to B atomically.

BULK DELETE:
  Deleting a flock's whole history resets feed_on_hand to zero as an
  explicit short-circuit instead of summing individual subtractions.
*/
package brood

import (
	"context"
	"fmt"
	"time"
)

// ProvisionService manages signed feed-delivery adjustments.
type ProvisionService struct {
	store TxStore
}

// NewProvisionService creates the provision ledger helper.
func NewProvisionService(store TxStore) *ProvisionService {
	return &ProvisionService{store: store}
}

// Record creates a provision entry and applies +quantity to the flock's
// ledger.
func (s *ProvisionService) Record(ctx context.Context, flockID int64, quantityKg float64) (*ProvisionEntry, error) {
	var result *ProvisionEntry
	err := s.store.WithTx(ctx, func(tx Store) error {
		flock, err := tx.GetFlock(ctx, flockID)
		if err != nil {
			return fmt.Errorf("record provision for flock %d: %w", flockID, err)
		}
		if flock == nil {
			return &NotFoundError{Entity: "flock", ID: flockID}
		}

		entry, err := tx.InsertProvision(ctx, ProvisionEntry{
			FlockID:    flockID,
			QuantityKg: quantityKg,
			CreatedAt:  time.Now().UTC(),
		})
		if err != nil {
			return fmt.Errorf("record provision for flock %d: %w", flockID, err)
		}
		if err := tx.AdjustFeed(ctx, flockID, quantityKg); err != nil {
			return fmt.Errorf("adjust feed ledger for flock %d: %w", flockID, err)
		}
		result = entry
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Update changes an entry's quantity and, when flockID differs from the
// stored one, re-points it: the old value leaves the old flock's ledger
// and the new value enters the new flock's, as two updates in one
// transaction.
func (s *ProvisionService) Update(ctx context.Context, id, flockID int64, quantityKg float64) (*ProvisionEntry, error) {
	var result *ProvisionEntry
	err := s.store.WithTx(ctx, func(tx Store) error {
		prior, err := tx.GetProvision(ctx, id)
		if err != nil {
			return fmt.Errorf("update provision %d: %w", id, err)
		}
		if prior == nil {
			return &NotFoundError{Entity: "provision entry", ID: id}
		}

		if flockID != prior.FlockID {
			flock, err := tx.GetFlock(ctx, flockID)
			if err != nil {
				return fmt.Errorf("update provision %d: %w", id, err)
			}
			if flock == nil {
				return &NotFoundError{Entity: "flock", ID: flockID}
			}
		}

		updated := *prior
		updated.FlockID = flockID
		updated.QuantityKg = quantityKg
		if err := tx.UpdateProvision(ctx, updated); err != nil {
			return fmt.Errorf("update provision %d: %w", id, err)
		}

		if flockID == prior.FlockID {
			if err := tx.AdjustFeed(ctx, flockID, quantityKg-prior.QuantityKg); err != nil {
				return fmt.Errorf("adjust feed ledger for flock %d: %w", flockID, err)
			}
		} else {
			if err := tx.AdjustFeed(ctx, prior.FlockID, -prior.QuantityKg); err != nil {
				return fmt.Errorf("adjust feed ledger for flock %d: %w", prior.FlockID, err)
			}
			if err := tx.AdjustFeed(ctx, flockID, quantityKg); err != nil {
				return fmt.Errorf("adjust feed ledger for flock %d: %w", flockID, err)
			}
		}

		result = &updated
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Delete removes an entry and applies -quantity to its flock's ledger.
func (s *ProvisionService) Delete(ctx context.Context, id int64) error {
	return s.store.WithTx(ctx, func(tx Store) error {
		prior, err := tx.GetProvision(ctx, id)
		if err != nil {
			return fmt.Errorf("delete provision %d: %w", id, err)
		}
		if prior == nil {
			return &NotFoundError{Entity: "provision entry", ID: id}
		}
		if err := tx.DeleteProvision(ctx, id); err != nil {
			return fmt.Errorf("delete provision %d: %w", id, err)
		}
		if err := tx.AdjustFeed(ctx, prior.FlockID, -prior.QuantityKg); err != nil {
			return fmt.Errorf("adjust feed ledger for flock %d: %w", prior.FlockID, err)
		}
		return nil
	})
}

// DeleteAll removes a flock's whole provision history and resets its
// ledger to zero.
func (s *ProvisionService) DeleteAll(ctx context.Context, flockID int64) error {
	return s.store.WithTx(ctx, func(tx Store) error {
		flock, err := tx.GetFlock(ctx, flockID)
		if err != nil {
			return fmt.Errorf("clear provisions for flock %d: %w", flockID, err)
		}
		if flock == nil {
			return &NotFoundError{Entity: "flock", ID: flockID}
		}
		if err := tx.DeleteProvisionsByFlock(ctx, flockID); err != nil {
			return fmt.Errorf("clear provisions for flock %d: %w", flockID, err)
		}
		if err := tx.ResetFeed(ctx, flockID); err != nil {
			return fmt.Errorf("reset feed ledger for flock %d: %w", flockID, err)
		}
		return nil
	})
}

// History returns a flock's provision entries, most recent first.
func (s *ProvisionService) History(ctx context.Context, flockID int64) ([]ProvisionEntry, error) {
	flock, err := s.store.GetFlock(ctx, flockID)
	if err != nil {
		return nil, fmt.Errorf("list provisions for flock %d: %w", flockID, err)
	}
	if flock == nil {
		return nil, &NotFoundError{Entity: "flock", ID: flockID}
	}
	return s.store.ListProvisions(ctx, flockID)
}
