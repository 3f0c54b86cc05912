package turnover

import (
	"context"
	"errors"
	"testing"
	"time"

	"tablequeue/waitlist-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func samples(tableTypeID string, durations ...float64) []models.SeatingSample {
	base := time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC)
	out := make([]models.SeatingSample, 0, len(durations))
	for i, d := range durations {
		out = append(out, models.SeatingSample{
			EntryID:         tableTypeID + "-" + string(rune('a'+i)),
			TableTypeID:     tableTypeID,
			SeatedAt:        base.Add(time.Duration(i) * time.Hour),
			DurationMinutes: d,
		})
	}
	return out
}

func repeat(value float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = value
	}
	return out
}

func TestConfidenceFor(t *testing.T) {
	cases := []struct {
		samples int
		want    Confidence
	}{
		{0, ConfidenceLow},
		{4, ConfidenceLow},
		{5, ConfidenceMedium},
		{20, ConfidenceMedium},
		{21, ConfidenceHigh},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, ConfidenceFor(tc.samples), "samples=%d", tc.samples)
	}
}

func TestAnalyzeTurnoverTimesRecommendsWhenDeviationIsMaterial(t *testing.T) {
	tables := []models.TableType{
		{TableTypeID: "four", Name: "Four top", Capacity: 4, Count: 6, TurnoverMinutes: 60, Active: true},
		{TableTypeID: "two", Name: "Two top", Capacity: 2, Count: 4, TurnoverMinutes: 45, Active: true},
	}
	var history []models.SeatingSample
	// 25 samples averaging 70 against 60 configured: +16.7% at high confidence.
	history = append(history, samples("four", repeat(70, 25)...)...)
	// 3 samples averaging 50 against 45 configured: +11.1% at low confidence.
	history = append(history, samples("two", 50, 50, 50)...)

	analyses := AnalyzeTurnoverTimes(tables, history)

	require.Len(t, analyses, 2)
	assert.Equal(t, "two", analyses[0].TableTypeID)
	assert.Equal(t, ConfidenceLow, analyses[0].Confidence)
	assert.Equal(t, 11.1, analyses[0].DifferencePercent)
	assert.Nil(t, analyses[0].Recommendation)

	four := analyses[1]
	assert.Equal(t, ConfidenceHigh, four.Confidence)
	assert.Equal(t, 25, four.SampleCount)
	assert.Equal(t, 70.0, four.ActualMinutes)
	require.NotNil(t, four.Recommendation)
	assert.Equal(t, 60, four.Recommendation.CurrentMinutes)
	assert.Equal(t, 70, four.Recommendation.SuggestedMinutes)
	assert.Equal(t, 16.7, four.Recommendation.DifferencePercent)
	assert.Contains(t, four.Recommendation.Reasoning, "longer")

	recs := Recommendations(analyses)
	require.Len(t, recs, 1)
	assert.Equal(t, "four", recs[0].TableTypeID)
}

func TestAnalyzeTurnoverTimesThresholdsByConfidence(t *testing.T) {
	tables := []models.TableType{{TableTypeID: "six", Name: "Six top", Capacity: 6, Count: 2, TurnoverMinutes: 100, Active: true}}

	// medium confidence needs 15%
	medium := AnalyzeTurnoverTimes(tables, samples("six", repeat(86, 10)...))
	require.Len(t, medium, 1)
	assert.Nil(t, medium[0].Recommendation)

	medium = AnalyzeTurnoverTimes(tables, samples("six", repeat(85, 10)...))
	require.NotNil(t, medium[0].Recommendation)
	assert.Equal(t, 85, medium[0].Recommendation.SuggestedMinutes)
	assert.Equal(t, -15.0, medium[0].Recommendation.DifferencePercent)
	assert.Contains(t, medium[0].Recommendation.Reasoning, "shorter")

	// low confidence needs 25%
	low := AnalyzeTurnoverTimes(tables, samples("six", 80, 80))
	assert.Nil(t, low[0].Recommendation)
	low = AnalyzeTurnoverTimes(tables, samples("six", 130, 120))
	require.NotNil(t, low[0].Recommendation)
	assert.Equal(t, 125, low[0].Recommendation.SuggestedMinutes)
}

func TestAnalyzeTurnoverTimesIgnoresUnknownAndEmpty(t *testing.T) {
	tables := []models.TableType{{TableTypeID: "four", Name: "Four top", Capacity: 4, Count: 1, TurnoverMinutes: 60}}
	history := append(samples("ghost", 30, 30), samples("four", 0)...)
	assert.Empty(t, AnalyzeTurnoverTimes(tables, history))
}

type fakeUpdater struct {
	updateFn func(ctx context.Context, restaurantID, tableTypeID string, minutes int) error
}

func (f fakeUpdater) UpdateTurnoverMinutes(ctx context.Context, restaurantID, tableTypeID string, minutes int) error {
	return f.updateFn(ctx, restaurantID, tableTypeID, minutes)
}

func TestApplyFiltersByConfidence(t *testing.T) {
	written := map[string]int{}
	updater := fakeUpdater{updateFn: func(ctx context.Context, restaurantID, tableTypeID string, minutes int) error {
		assert.Equal(t, "r1", restaurantID)
		written[tableTypeID] = minutes
		return nil
	}}
	recs := []Recommendation{
		{TableTypeID: "two", SuggestedMinutes: 40, Confidence: ConfidenceLow},
		{TableTypeID: "four", SuggestedMinutes: 70, Confidence: ConfidenceHigh},
		{TableTypeID: "six", SuggestedMinutes: 85, Confidence: ConfidenceMedium},
	}

	applied, err := Apply(context.Background(), updater, "r1", recs, ConfidenceMedium)

	require.NoError(t, err)
	require.Len(t, applied, 2)
	assert.Equal(t, map[string]int{"four": 70, "six": 85}, written)
}

func TestApplyStopsOnError(t *testing.T) {
	boom := errors.New("boom")
	calls := 0
	updater := fakeUpdater{updateFn: func(ctx context.Context, restaurantID, tableTypeID string, minutes int) error {
		calls++
		if tableTypeID == "four" {
			return boom
		}
		return nil
	}}
	recs := []Recommendation{
		{TableTypeID: "two", SuggestedMinutes: 40},
		{TableTypeID: "four", SuggestedMinutes: 70},
		{TableTypeID: "six", SuggestedMinutes: 85},
	}

	applied, err := Apply(context.Background(), updater, "r1", recs, ConfidenceLow)

	require.ErrorIs(t, err, boom)
	assert.Len(t, applied, 1)
	assert.Equal(t, 2, calls)
}
