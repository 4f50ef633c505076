/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

VALIDATION:
  Validation is done in handlers and domain services, not in DTOs.
  DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"time"

	"github.com/gallus/brood-engine/brood"
)

// =============================================================================
// REQUEST/RESPONSE TYPES
// =============================================================================

// FlockDTO represents a flock in API responses.
type FlockDTO struct {
	ID          int64   `json:"id"`
	Name        string  `json:"name"`
	ArrivalDate string  `json:"arrival_date"`
	ChickCount  int     `json:"chick_count"`
	Notes       *string `json:"notes,omitempty"`
	FeedOnHand  float64 `json:"feed_on_hand"`
	CreatedAt   string  `json:"created_at"`
}

// BarnDTO represents a barn in API responses.
type BarnDTO struct {
	ID         int64  `json:"id"`
	FlockID    int64  `json:"flock_id"`
	BarnNo     string `json:"barn_no"`
	Breed      string `json:"breed"`
	ChickCount int    `json:"chick_count"`
}

// WeekDTO represents one week of a barn's grid.
type WeekDTO struct {
	ID     int64    `json:"id"`
	BarnID int64    `json:"barn_id"`
	WeekNo int      `json:"week_no"`
	Weight *float64 `json:"weight,omitempty"`
}

// DayLogDTO represents one day of a week. Virtual reports whether the
// row exists only in the materialized view and was never persisted.
type DayLogDTO struct {
	ID            int64    `json:"id,omitempty"`
	WeekID        int64    `json:"week_id"`
	Age           int      `json:"age"`
	DeathsDaily   *int64   `json:"deaths_daily,omitempty"`
	DeathsTotal   *int64   `json:"deaths_total,omitempty"`
	FeedDaily     *float64 `json:"feed_daily,omitempty"`
	FeedTotal     *float64 `json:"feed_total,omitempty"`
	TreatmentID   *int64   `json:"treatment_id,omitempty"`
	TreatmentName *string  `json:"treatment_name,omitempty"`
	TreatmentDose *string  `json:"treatment_dose,omitempty"`
	Analyses      *string  `json:"analyses,omitempty"`
	Remarks       *string  `json:"remarks,omitempty"`
	Virtual       bool     `json:"virtual"`
}

// WeekGridDTO is one row of the full grid response.
type WeekGridDTO struct {
	Week WeekDTO     `json:"week"`
	Days []DayLogDTO `json:"days"`
}

// CreateFlockRequest creates a flock together with its barns.
type CreateFlockRequest struct {
	Name        string              `json:"name"`
	ArrivalDate string              `json:"arrival_date"`
	ChickCount  int                 `json:"chick_count"`
	Notes       *string             `json:"notes,omitempty"`
	Barns       []CreateBarnRequest `json:"barns"`
}

// CreateBarnRequest describes one barn of a new flock.
type CreateBarnRequest struct {
	BarnNo     string `json:"barn_no"`
	Breed      string `json:"breed"`
	ChickCount int    `json:"chick_count"`
}

// UpsertDayFieldRequest writes one field of a day log. Value semantics:
// an empty string clears the field, an unparsable numeric leaves the
// stored value untouched.
type UpsertDayFieldRequest struct {
	Field string `json:"field"`
	Value string `json:"value"`
}

// SetWeekWeightRequest updates a week's average weight; null clears it.
type SetWeekWeightRequest struct {
	Weight *float64 `json:"weight"`
}

// ProvisionRequest creates or rewrites a feed-delivery entry.
type ProvisionRequest struct {
	FlockID    int64   `json:"flock_id"`
	QuantityKg float64 `json:"quantity_kg"`
}

// ProvisionDTO represents a feed-delivery entry.
type ProvisionDTO struct {
	ID         int64   `json:"id"`
	FlockID    int64   `json:"flock_id"`
	QuantityKg float64 `json:"quantity_kg"`
	CreatedAt  string  `json:"created_at"`
}

// TreatmentDTO represents a care-product catalog entry.
type TreatmentDTO struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Unit string `json:"unit"`
}

// CreateTreatmentRequest adds a care product to the catalog.
type CreateTreatmentRequest struct {
	Name string `json:"name"`
	Unit string `json:"unit"`
}

// DiseaseDTO represents a disease catalog entry.
type DiseaseDTO struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// CreateDiseaseRequest adds a disease to the catalog.
type CreateDiseaseRequest struct {
	Name string `json:"name"`
}

// LinkDiseaseRequest records a disease incident on a barn.
type LinkDiseaseRequest struct {
	DiseaseID int64 `json:"disease_id"`
}

// LoginRequest carries the operator credentials.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse returns the issued bearer token.
type LoginResponse struct {
	Token string `json:"token"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func toFlockDTO(f brood.Flock) FlockDTO {
	return FlockDTO{
		ID:          f.ID,
		Name:        f.Name,
		ArrivalDate: f.ArrivalDate,
		ChickCount:  f.ChickCount,
		Notes:       f.Notes,
		FeedOnHand:  f.FeedOnHand,
		CreatedAt:   f.CreatedAt.Format(time.RFC3339),
	}
}

func toBarnDTO(b brood.Barn) BarnDTO {
	return BarnDTO{
		ID:         b.ID,
		FlockID:    b.FlockID,
		BarnNo:     b.BarnNo,
		Breed:      b.Breed,
		ChickCount: b.ChickCount,
	}
}

func toWeekDTO(w brood.Week) WeekDTO {
	return WeekDTO{
		ID:     w.ID,
		BarnID: w.BarnID,
		WeekNo: w.WeekNo,
		Weight: w.Weight,
	}
}

func toDayLogDTO(d brood.DayLog) DayLogDTO {
	return DayLogDTO{
		ID:            d.ID,
		WeekID:        d.WeekID,
		Age:           d.Age,
		DeathsDaily:   d.DeathsDaily,
		DeathsTotal:   d.DeathsTotal,
		FeedDaily:     d.FeedDaily,
		FeedTotal:     d.FeedTotal,
		TreatmentID:   d.TreatmentID,
		TreatmentName: d.TreatmentName,
		TreatmentDose: d.TreatmentDose,
		Analyses:      d.Analyses,
		Remarks:       d.Remarks,
		Virtual:       !d.Persisted(),
	}
}

func toWeekGridDTO(g brood.WeekGrid) WeekGridDTO {
	days := make([]DayLogDTO, len(g.Days))
	for i, d := range g.Days {
		days[i] = toDayLogDTO(d)
	}
	return WeekGridDTO{Week: toWeekDTO(g.Week), Days: days}
}

func toProvisionDTO(p brood.ProvisionEntry) ProvisionDTO {
	return ProvisionDTO{
		ID:         p.ID,
		FlockID:    p.FlockID,
		QuantityKg: p.QuantityKg,
		CreatedAt:  p.CreatedAt.Format(time.RFC3339),
	}
}
