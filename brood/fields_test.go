package brood_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gallus/brood-engine/brood"
)

func TestWeekAgeSpan(t *testing.T) {
	tests := []struct {
		weekNo      int
		first, last int
	}{
		{1, 1, 7},
		{2, 8, 14},
		{5, 29, 35},
		{8, 50, 56},
	}
	for _, tt := range tests {
		first, last := brood.WeekAgeSpan(tt.weekNo)
		assert.Equal(t, tt.first, first, "week %d first", tt.weekNo)
		assert.Equal(t, tt.last, last, "week %d last", tt.weekNo)
	}

	assert.True(t, brood.AgeInWeek(3, 15))
	assert.True(t, brood.AgeInWeek(3, 21))
	assert.False(t, brood.AgeInWeek(3, 14))
	assert.False(t, brood.AgeInWeek(3, 22))
}

func TestParseField(t *testing.T) {
	for _, name := range []string{
		"deaths_daily", "deaths_total", "feed_daily", "feed_total",
		"treatment_id", "treatment_dose", "analyses", "remarks",
	} {
		f, err := brood.ParseField(name)
		require.NoError(t, err, name)
		assert.Equal(t, name, string(f))
	}

	_, err := brood.ParseField("poids")
	assert.True(t, brood.IsValidation(err))
}

func TestParseFieldUpdate_NumericSemantics(t *testing.T) {
	// A parsable value sets the field.
	u, err := brood.ParseFieldUpdate(brood.FieldFeedDaily, "2.5")
	require.NoError(t, err)
	set, ok := u.(brood.SetFeedDaily)
	require.True(t, ok)
	assert.Equal(t, 2.5, *set.Value)

	// Empty clears it.
	u, err = brood.ParseFieldUpdate(brood.FieldFeedDaily, "")
	require.NoError(t, err)
	set, ok = u.(brood.SetFeedDaily)
	require.True(t, ok)
	assert.Nil(t, set.Value)

	// Unparsable keeps the prior value: the update degrades to a touch
	// rather than an error.
	u, err = brood.ParseFieldUpdate(brood.FieldFeedDaily, "abc")
	require.NoError(t, err)
	assert.IsType(t, brood.Touch{}, u)

	u, err = brood.ParseFieldUpdate(brood.FieldDeathsDaily, "12")
	require.NoError(t, err)
	deaths, ok := u.(brood.SetDeathsDaily)
	require.True(t, ok)
	assert.Equal(t, int64(12), *deaths.Value)

	u, err = brood.ParseFieldUpdate(brood.FieldDeathsTotal, "not-a-number")
	require.NoError(t, err)
	assert.IsType(t, brood.Touch{}, u)
}

func TestParseFieldUpdate_Treatment(t *testing.T) {
	// Empty clears the reference.
	u, err := brood.ParseFieldUpdate(brood.FieldTreatment, "")
	require.NoError(t, err)
	set, ok := u.(brood.SetTreatment)
	require.True(t, ok)
	assert.Nil(t, set.ID)

	// A well-formed id parses; existence is checked at write time.
	u, err = brood.ParseFieldUpdate(brood.FieldTreatment, "7")
	require.NoError(t, err)
	set, ok = u.(brood.SetTreatment)
	require.True(t, ok)
	assert.Equal(t, int64(7), *set.ID)

	// A malformed reference hard-fails; it never degrades to a touch.
	_, err = brood.ParseFieldUpdate(brood.FieldTreatment, "seven")
	assert.True(t, brood.IsValidation(err))
}

func TestParseFieldUpdate_Text(t *testing.T) {
	u, err := brood.ParseFieldUpdate(brood.FieldRemarks, "ras")
	require.NoError(t, err)
	remarks, ok := u.(brood.SetRemarks)
	require.True(t, ok)
	assert.Equal(t, "ras", *remarks.Value)

	u, err = brood.ParseFieldUpdate(brood.FieldAnalyses, "")
	require.NoError(t, err)
	analyses, ok := u.(brood.SetAnalyses)
	require.True(t, ok)
	assert.Nil(t, analyses.Value)
}
