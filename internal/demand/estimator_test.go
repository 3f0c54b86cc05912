package demand

import (
	"testing"
	"time"

	"tablequeue/waitlist-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 2026-03-14 is a Saturday, 2026-03-11 a Wednesday.
var (
	saturday  = time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)
	wednesday = time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC)
)

func TestPredictSlotSaturdayDinner(t *testing.T) {
	samples := []models.DemandSample{
		{DayOfWeek: time.Saturday, Hour: 18, AvgWaitTime: 20, AvgPartySize: 3, SampleCount: 30},
	}

	p := PredictSlot(samples, saturday.Add(18*time.Hour), 1.0, nil)

	assert.Equal(t, "18:00", p.TimeSlot)
	assert.Equal(t, 36, p.PredictedWaitTime)
	assert.InDelta(t, 3.3, p.PredictedPartySize, 0.001)
	assert.Equal(t, []string{"Dinner rush", "Weekend dining typically busier"}, p.Factors)
	assert.Equal(t, 60+10+2*5, p.Confidence)
}

func TestPredictSlotColdStartDefaults(t *testing.T) {
	p := PredictSlot(nil, wednesday.Add(15*time.Hour), 1.0, nil)

	assert.Equal(t, DefaultWaitMinutes, p.PredictedWaitTime)
	assert.InDelta(t, DefaultPartySize, p.PredictedPartySize, 0.001)
	assert.Empty(t, p.Factors)
	assert.Equal(t, 60, p.Confidence)
}

func TestPredictSlotHourTolerance(t *testing.T) {
	samples := []models.DemandSample{
		{DayOfWeek: time.Wednesday, Hour: 14, AvgWaitTime: 10, AvgPartySize: 2, SampleCount: 10},
		{DayOfWeek: time.Wednesday, Hour: 16, AvgWaitTime: 30, AvgPartySize: 4, SampleCount: 30},
		{DayOfWeek: time.Wednesday, Hour: 17, AvgWaitTime: 90, AvgPartySize: 8, SampleCount: 50},
		{DayOfWeek: time.Thursday, Hour: 15, AvgWaitTime: 90, AvgPartySize: 8, SampleCount: 50},
	}

	p := PredictSlot(samples, wednesday.Add(15*time.Hour), 1.0, nil)

	// (10*10 + 30*30) / 40 = 25, (2*10 + 4*30) / 40 = 3.5
	assert.Equal(t, 25, p.PredictedWaitTime)
	assert.InDelta(t, 3.5, p.PredictedPartySize, 0.001)
	assert.Equal(t, 60+10, p.Confidence)
}

func TestPredictSlotWeekdayHappyHour(t *testing.T) {
	samples := []models.DemandSample{
		{DayOfWeek: time.Wednesday, Hour: 17, AvgWaitTime: 10, AvgPartySize: 4, SampleCount: 60},
	}

	p := PredictSlot(samples, wednesday.Add(17*time.Hour), 1.0, nil)

	assert.Equal(t, 12, p.PredictedWaitTime)
	assert.InDelta(t, 3.4, p.PredictedPartySize, 0.001)
	assert.Equal(t, []string{"Happy hour", "Happy hour draws smaller parties"}, p.Factors)
	assert.Equal(t, 60+20+2*5, p.Confidence)
}

func TestPredictSlotOnlyFirstRushBandApplies(t *testing.T) {
	samples := []models.DemandSample{
		{DayOfWeek: time.Wednesday, Hour: 19, AvgWaitTime: 20, AvgPartySize: 4, SampleCount: 5},
	}

	p := PredictSlot(samples, wednesday.Add(19*time.Hour), 1.0, nil)

	assert.Equal(t, 30, p.PredictedWaitTime)
	assert.NotContains(t, p.Factors, "Happy hour")
	assert.Contains(t, p.Factors, "Dinner rush")
}

func TestPredictSlotWeatherAndEvents(t *testing.T) {
	samples := []models.DemandSample{
		{DayOfWeek: time.Wednesday, Hour: 15, AvgWaitTime: 20, AvgPartySize: 2, SampleCount: 1},
	}
	slot := wednesday.Add(15 * time.Hour)
	events := []SpecialEvent{{Name: "Stadium concert", Start: slot.Add(30 * time.Minute), End: slot.Add(4 * time.Hour)}}

	bad := PredictSlot(samples, slot, 1.3, events)
	assert.Equal(t, 30, bad.PredictedWaitTime) // 20 * 1.15 * 1.3 = 29.9
	assert.Equal(t, []string{"Poor weather pushes diners indoors", "Special event nearby"}, bad.Factors)

	good := PredictSlot(samples, slot, 0.7, nil)
	assert.Equal(t, 18, good.PredictedWaitTime)
	assert.Equal(t, []string{"Pleasant weather reduces indoor demand"}, good.Factors)

	later := PredictSlot(samples, slot, 1.0, []SpecialEvent{{Name: "Late show", Start: slot.Add(2 * time.Hour)}})
	assert.Empty(t, later.Factors)

	unset := PredictSlot(samples, slot, 0, nil)
	assert.Equal(t, 20, unset.PredictedWaitTime)
}

func TestPredictUpcomingDemandCoversNextFourHours(t *testing.T) {
	now := saturday.Add(17*time.Hour + 10*time.Minute)
	predictions := PredictUpcomingDemand(nil, now, 1.0, nil)

	require.Len(t, predictions, SlotCount)
	assert.Equal(t, "18:00", predictions[0].TimeSlot)
	assert.Equal(t, "21:00", predictions[3].TimeSlot)
	assert.Equal(t, 36, predictions[0].PredictedWaitTime)
}

func TestConfidenceCap(t *testing.T) {
	assert.Equal(t, 95, confidence(100, 5))
	assert.Equal(t, 65, confidence(11, 0))
	assert.Equal(t, 60, confidence(10, 0))
}
