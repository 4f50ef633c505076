/*
fields.go - Closed set of updatable day-log fields

PURPOSE:
  Replaces string-typed field dispatch with a closed tagged variant.
  Each updatable field is its own type carrying its own typed payload,
  so an "unknown field" can only exist at the string boundary (the API
  adapter), never inside the engine.

PARSE SEMANTICS (ParseFieldUpdate):
  - empty input clears the field (sets null) rather than erroring
  - unparsable non-empty numeric input keeps the prior value (Touch)
  - a treatment reference that is not a well-formed id hard-fails with
    a ValidationError; existence of the id is checked by the upsert
    service inside the write transaction

SEE ALSO:
  - upsert.go: applies these updates and couples feed_daily to the ledger
*/
package brood

import (
	"fmt"
	"strconv"
)

// Field identifies an updatable day-log field at the string boundary.
type Field string

const (
	FieldDeathsDaily   Field = "deaths_daily"
	FieldDeathsTotal   Field = "deaths_total"
	FieldFeedDaily     Field = "feed_daily"
	FieldFeedTotal     Field = "feed_total"
	FieldTreatment     Field = "treatment_id"
	FieldTreatmentDose Field = "treatment_dose"
	FieldAnalyses      Field = "analyses"
	FieldRemarks       Field = "remarks"
)

// ParseField maps a raw field name to a Field, rejecting unknown names.
func ParseField(s string) (Field, error) {
	switch f := Field(s); f {
	case FieldDeathsDaily, FieldDeathsTotal, FieldFeedDaily, FieldFeedTotal,
		FieldTreatment, FieldTreatmentDose, FieldAnalyses, FieldRemarks:
		return f, nil
	default:
		return "", &ValidationError{Field: "field", Message: fmt.Sprintf("unknown field %q", s)}
	}
}

// FieldUpdate is one member of the closed set of day-log mutations.
// A nil pointer payload clears the field.
type FieldUpdate interface {
	field() Field
	apply(d *DayLog)
}

type SetDeathsDaily struct{ Value *int64 }
type SetDeathsTotal struct{ Value *int64 }

// SetFeedDaily is the consumption metric: the only update that moves
// the owning flock's feed ledger.
type SetFeedDaily struct{ Value *float64 }

type SetFeedTotal struct{ Value *float64 }
type SetTreatment struct{ ID *int64 }
type SetTreatmentDose struct{ Value *string }
type SetAnalyses struct{ Value *string }
type SetRemarks struct{ Value *string }

// Touch materializes the day log without changing any field. It is the
// engine-level rendition of "unparsable numeric input keeps the prior
// value": the write still happens, the field does not move.
type Touch struct{}

func (SetDeathsDaily) field() Field   { return FieldDeathsDaily }
func (SetDeathsTotal) field() Field   { return FieldDeathsTotal }
func (SetFeedDaily) field() Field     { return FieldFeedDaily }
func (SetFeedTotal) field() Field     { return FieldFeedTotal }
func (SetTreatment) field() Field     { return FieldTreatment }
func (SetTreatmentDose) field() Field { return FieldTreatmentDose }
func (SetAnalyses) field() Field      { return FieldAnalyses }
func (SetRemarks) field() Field       { return FieldRemarks }
func (Touch) field() Field            { return "" }

func (u SetDeathsDaily) apply(d *DayLog)   { d.DeathsDaily = u.Value }
func (u SetDeathsTotal) apply(d *DayLog)   { d.DeathsTotal = u.Value }
func (u SetFeedDaily) apply(d *DayLog)     { d.FeedDaily = u.Value }
func (u SetFeedTotal) apply(d *DayLog)     { d.FeedTotal = u.Value }
func (u SetTreatment) apply(d *DayLog)     { d.TreatmentID = u.ID }
func (u SetTreatmentDose) apply(d *DayLog) { d.TreatmentDose = u.Value }
func (u SetAnalyses) apply(d *DayLog)      { d.Analyses = u.Value }
func (u SetRemarks) apply(d *DayLog)       { d.Remarks = u.Value }
func (Touch) apply(*DayLog)                {}

// ParseFieldUpdate converts a raw string value into the typed update
// for the given field, implementing the clearing and keep-prior rules.
func ParseFieldUpdate(f Field, raw string) (FieldUpdate, error) {
	switch f {
	case FieldDeathsDaily, FieldDeathsTotal:
		v, ok, err := parseOptInt(raw)
		if err != nil {
			return Touch{}, nil
		}
		if !ok {
			if f == FieldDeathsDaily {
				return SetDeathsDaily{}, nil
			}
			return SetDeathsTotal{}, nil
		}
		if f == FieldDeathsDaily {
			return SetDeathsDaily{Value: &v}, nil
		}
		return SetDeathsTotal{Value: &v}, nil

	case FieldFeedDaily, FieldFeedTotal:
		v, ok, err := parseOptFloat(raw)
		if err != nil {
			return Touch{}, nil
		}
		if !ok {
			if f == FieldFeedDaily {
				return SetFeedDaily{}, nil
			}
			return SetFeedTotal{}, nil
		}
		if f == FieldFeedDaily {
			return SetFeedDaily{Value: &v}, nil
		}
		return SetFeedTotal{Value: &v}, nil

	case FieldTreatment:
		if raw == "" {
			return SetTreatment{}, nil
		}
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, &ValidationError{
				Field:   string(FieldTreatment),
				Message: fmt.Sprintf("%q is not a valid treatment id", raw),
			}
		}
		return SetTreatment{ID: &id}, nil

	case FieldTreatmentDose:
		return SetTreatmentDose{Value: optString(raw)}, nil
	case FieldAnalyses:
		return SetAnalyses{Value: optString(raw)}, nil
	case FieldRemarks:
		return SetRemarks{Value: optString(raw)}, nil
	}

	return nil, &ValidationError{Field: "field", Message: fmt.Sprintf("unknown field %q", f)}
}

func parseOptInt(raw string) (v int64, set bool, err error) {
	if raw == "" {
		return 0, false, nil
	}
	v, err = strconv.ParseInt(raw, 10, 64)
	return v, err == nil, err
}

func parseOptFloat(raw string) (v float64, set bool, err error) {
	if raw == "" {
		return 0, false, nil
	}
	v, err = strconv.ParseFloat(raw, 64)
	return v, err == nil, err
}

func optString(raw string) *string {
	if raw == "" {
		return nil
	}
	return &raw
}
