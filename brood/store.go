/*
store.go - Persistence interfaces for the grid and the ledger

PURPOSE:
  Defines the interface between the engine and the database. The grid
  hierarchy is natural-key addressed (barn+week_no, week+age); the
  ledger is a single row per flock moved only by store-evaluated
  atomic increments or full recomputation.

KEY INTERFACES:
  Store:   All data operations visible to the engine services
  TxStore: Store plus a closure-style transaction boundary

TRANSACTION CONTRACT:
  Each logical engine operation executes inside exactly one WithTx call
  (or one idempotent statement); no operation spans multiple
  transactions. The Store passed to the WithTx closure is scoped to
  that transaction.

LEDGER CONTRACT:
  AdjustFeed must be a store-evaluated increment
  (feed_on_hand = feed_on_hand + ?), never a read-then-write round
  trip, so concurrent writers cannot lose updates.

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go: production SQLite
*/
package brood

import "context"

// GridStore persists the flock -> barn -> week -> day-log hierarchy.
// All writes validate that the parent row exists, returning a
// NotFoundError otherwise; natural-key collisions surface as
// DuplicateError.
type GridStore interface {
	GetFlock(ctx context.Context, id int64) (*Flock, error)
	InsertFlock(ctx context.Context, f Flock) (*Flock, error)
	ListFlocks(ctx context.Context) ([]Flock, error)

	GetBarn(ctx context.Context, id int64) (*Barn, error)
	InsertBarn(ctx context.Context, b Barn) (*Barn, error)
	ListBarns(ctx context.Context, flockID int64) ([]Barn, error)

	GetWeek(ctx context.Context, id int64) (*Week, error)
	CreateWeek(ctx context.Context, barnID int64, weekNo int) (*Week, error)
	// EnsureWeek is a retry-safe idempotent insert: it creates the week
	// with a null weight if missing and returns the (new or existing)
	// row. Used by the materializer so a crash mid-read never leaves a
	// week half-initialized.
	EnsureWeek(ctx context.Context, barnID int64, weekNo int) (*Week, error)
	ListWeeks(ctx context.Context, barnID int64) ([]Week, error)
	SetWeekWeight(ctx context.Context, weekID int64, weight *float64) error

	CreateDayLog(ctx context.Context, d DayLog) (*DayLog, error)
	UpdateDayLog(ctx context.Context, d DayLog) error
	FindDayLog(ctx context.Context, weekID int64, age int) (*DayLog, error)
	ListDayLogs(ctx context.Context, weekID int64) ([]DayLog, error)
}

// LedgerStore maintains the per-flock feed_on_hand counter.
type LedgerStore interface {
	// AdjustFeed moves the ledger by deltaKg using a store-evaluated
	// atomic increment.
	AdjustFeed(ctx context.Context, flockID int64, deltaKg float64) error

	// ResetFeed zeroes the ledger (explicit bulk-delete short-circuit).
	ResetFeed(ctx context.Context, flockID int64) error

	// RecomputeFeed recalculates feed_on_hand as a fresh aggregate over
	// the remaining provision entries and day logs, stores it, and
	// returns the new value.
	RecomputeFeed(ctx context.Context, flockID int64) (float64, error)

	FeedOnHand(ctx context.Context, flockID int64) (float64, error)
}

// ProvisionStore persists the signed feed-delivery history.
type ProvisionStore interface {
	InsertProvision(ctx context.Context, p ProvisionEntry) (*ProvisionEntry, error)
	GetProvision(ctx context.Context, id int64) (*ProvisionEntry, error)
	UpdateProvision(ctx context.Context, p ProvisionEntry) error
	DeleteProvision(ctx context.Context, id int64) error
	ListProvisions(ctx context.Context, flockID int64) ([]ProvisionEntry, error)
	DeleteProvisionsByFlock(ctx context.Context, flockID int64) error
}

// CascadeStore exposes the dependency-ordered bulk deletes used by the
// cascade deletion service.
type CascadeStore interface {
	WeekIDsByBarn(ctx context.Context, barnID int64) ([]int64, error)
	BarnIDsByFlock(ctx context.Context, flockID int64) ([]int64, error)
	DeleteDayLogsByWeeks(ctx context.Context, weekIDs []int64) (int64, error)
	DeleteWeeksByBarn(ctx context.Context, barnID int64) error
	DeleteBarnDiseaseLinks(ctx context.Context, barnID int64) error
	// DeleteBarn removes the barn row, reporting whether it existed.
	DeleteBarn(ctx context.Context, barnID int64) (bool, error)
	DeleteFlock(ctx context.Context, flockID int64) (bool, error)
}

// CatalogStore is the external catalog collaborator, consumed at its
// interface: the engine only needs existence checks and the joined
// treatment name comes back on day-log reads.
type CatalogStore interface {
	TreatmentExists(ctx context.Context, id int64) (bool, error)
}

// Store is the complete data surface visible to the engine services.
type Store interface {
	GridStore
	LedgerStore
	ProvisionStore
	CascadeStore
	CatalogStore
}

// TxStore wraps Store with a transaction boundary.
type TxStore interface {
	Store

	// WithTx executes fn within a transaction. If fn returns an error
	// the transaction is rolled back, otherwise committed. The Store
	// handed to fn is scoped to the transaction.
	WithTx(ctx context.Context, fn func(Store) error) error
}
