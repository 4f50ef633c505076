/*
Package brood provides the core production-cycle tracking engine.

PURPOSE:
  This package contains the domain types and algorithms for managing a
  flock's weekly grid and its coupled feed-provision ledger. A flock is
  subdivided into barns, each barn into a fixed 8-week grid, each week
  into 7 day logs addressed by a globally contiguous age. The flock
  carries a running feed_on_hand ledger (kg) that must always equal the
  cumulative net effect of every provision delivery and every day-level
  feed consumption ever recorded against it.

KEY CONCEPTS IN THIS FILE (types.go):
  - Flock:    Top-level aggregate owning the feed ledger
  - Barn:     Subdivision of a flock owning the fixed week grid
  - Week:     One of 8 fixed subdivisions of a barn, optional weight metric
  - DayLog:   Leaf record addressed by age; virtual until first written
  - ProvisionEntry: Signed feed-delivery adjustment against a flock

DESIGN PRINCIPLES:
  1. Precision: decimal.Decimal for every ledger delta computation
  2. Conservation: the ledger is only ever moved by signed deltas or
     recomputed as a fresh aggregate, never read-modify-written
  3. Dual materialization: weeks are created eagerly on read so the grid
     shape is stable, day logs stay virtual until a field is upserted

SEE ALSO:
  - fields.go:       Closed set of updatable day-log fields
  - materializer.go: Full-grid reads
  - upsert.go:       Day-log mutation entry point
  - provision.go:    Ledger adjustment helper
  - cascade.go:      Cascading deletion
*/
package brood

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// GRID GEOMETRY
// =============================================================================

const (
	// WeeksPerBarn is the fixed number of weeks in every barn's grid.
	WeeksPerBarn = 8

	// DaysPerWeek is the fixed number of day addresses in every week.
	DaysPerWeek = 7

	// KgPerSack converts a recorded feed value (sacks) to mass (kg)
	// before it is applied to the flock's provision ledger.
	KgPerSack = 50.0
)

var kgPerSack = decimal.NewFromInt(50)

// WeekAgeSpan returns the first and last age addressable by the given
// week number. Ages are globally contiguous and monotonic across weeks:
// week 1 covers 1..7, week 2 covers 8..14, and so on.
func WeekAgeSpan(weekNo int) (first, last int) {
	first = (weekNo-1)*DaysPerWeek + 1
	return first, first + DaysPerWeek - 1
}

// AgeInWeek reports whether age is addressable by the given week number.
func AgeInWeek(weekNo, age int) bool {
	first, last := WeekAgeSpan(weekNo)
	return age >= first && age <= last
}

// =============================================================================
// ENTITIES
// =============================================================================

// Flock is one production run of chicks. It owns the feed_on_hand
// ledger: a running kg counter equal to the sum of all provision
// deliveries minus the converted sum of all day-level feed consumption.
type Flock struct {
	ID          int64
	Name        string
	ArrivalDate string // YYYY-MM-DD
	ChickCount  int
	Notes       *string
	FeedOnHand  float64 // kg; maintained by application logic, never cascaded
	CreatedAt   time.Time
}

// Barn is a subdivision of a flock. Each barn owns exactly WeeksPerBarn
// weeks, addressed by week number.
type Barn struct {
	ID         int64
	FlockID    int64
	BarnNo     string
	Breed      string
	ChickCount int
}

// Week is one of the 8 fixed subdivisions of a barn. Weight is the
// average chick weight in grams, set directly and independent of the
// feed ledger.
type Week struct {
	ID     int64
	BarnID int64
	WeekNo int
	Weight *float64
}

// DayLog is the leaf record of the grid, addressed by (week, age).
// A DayLog with ID == 0 is virtual: computed in memory to fill a grid
// read, never persisted. Virtual logs become persisted the first time
// any field is upserted.
type DayLog struct {
	ID            int64
	WeekID        int64
	Age           int
	DeathsDaily   *int64
	DeathsTotal   *int64
	FeedDaily     *float64 // sacks; the only field coupled to the ledger
	FeedTotal     *float64
	TreatmentID   *int64
	TreatmentName *string // joined from the treatment catalog, read-only
	TreatmentDose *string
	Analyses      *string
	Remarks       *string
}

// Persisted reports whether the day log has been written at least once.
func (d DayLog) Persisted() bool { return d.ID != 0 }

// Address renders the natural key for error wrapping.
func (d DayLog) Address() string {
	return fmt.Sprintf("week=%d age=%d", d.WeekID, d.Age)
}

// ProvisionEntry is a signed feed-delivery adjustment against a flock.
// Positive quantities stock the ledger, negative quantities draw it
// down. Every create/update/delete of an entry moves the owning
// flock's feed_on_hand by the matching signed delta.
type ProvisionEntry struct {
	ID         int64
	FlockID    int64
	QuantityKg float64
	CreatedAt  time.Time
}

// WeekGrid is one row of a barn's full grid: the persisted week plus
// exactly DaysPerWeek day logs, virtual where nothing was recorded.
type WeekGrid struct {
	Week Week
	Days []DayLog
}

// =============================================================================
// CATALOGS (external collaborators, consumed at their interface)
// =============================================================================

// Treatment is a care-product catalog entry referenced by day logs.
type Treatment struct {
	ID   int64
	Name string
	Unit string
}

// Disease is a disease catalog entry linked to barns through
// cross-reference rows.
type Disease struct {
	ID   int64
	Name string
}

// =============================================================================
// LEDGER ARITHMETIC
// =============================================================================

// feedDeltaKg computes the signed ledger movement, in kg, caused by a
// feed_daily change from old to new. Unset values count as zero.
// Consumption reduces the forward-looking provision counter, so the
// returned delta is already negated for direct application.
func feedDeltaKg(oldSacks, newSacks *float64) float64 {
	o := decimal.Zero
	if oldSacks != nil {
		o = decimal.NewFromFloat(*oldSacks)
	}
	n := decimal.Zero
	if newSacks != nil {
		n = decimal.NewFromFloat(*newSacks)
	}
	return n.Sub(o).Mul(kgPerSack).Neg().InexactFloat64()
}
