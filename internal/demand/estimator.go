// Package demand predicts upcoming wait times and party sizes from history
// and derives staffing and capacity recommendations from the predictions.
package demand

import (
	"fmt"
	"math"
	"time"

	"tablequeue/waitlist-service/internal/models"
)

const (
	// SlotCount is how many hourly slots PredictUpcomingDemand covers.
	SlotCount = 4

	DefaultWaitMinutes = 20
	DefaultPartySize   = 3.5

	baseConfidence = 60
	maxConfidence  = 95
	factorBonus    = 5
)

type SpecialEvent struct {
	Name  string    `json:"name"`
	Start time.Time `json:"start,omitempty"`
	End   time.Time `json:"end,omitempty"`
}

// activeAt reports whether the event covers the hour starting at slot. An
// event without bounds covers every slot.
func (e SpecialEvent) activeAt(slot time.Time) bool {
	slotEnd := slot.Add(time.Hour)
	if !e.Start.IsZero() && !e.Start.Before(slotEnd) {
		return false
	}
	if !e.End.IsZero() && !e.End.After(slot) {
		return false
	}
	return true
}

type Prediction struct {
	TimeSlot           string    `json:"time_slot"`
	SlotStart          time.Time `json:"slot_start"`
	PredictedWaitTime  int       `json:"predicted_wait_minutes"`
	PredictedPartySize float64   `json:"predicted_party_size"`
	Confidence         int       `json:"confidence"`
	Factors            []string  `json:"factors"`
}

// PredictUpcomingDemand predicts the next SlotCount hourly slots after now.
func PredictUpcomingDemand(samples []models.DemandSample, now time.Time, weatherFactor float64, events []SpecialEvent) []Prediction {
	hourStart := time.Date(now.Year(), now.Month(), now.Day(), now.Hour(), 0, 0, 0, now.Location())
	predictions := make([]Prediction, 0, SlotCount)
	for i := 1; i <= SlotCount; i++ {
		predictions = append(predictions, PredictSlot(samples, hourStart.Add(time.Duration(i)*time.Hour), weatherFactor, events))
	}
	return predictions
}

// PredictSlot predicts the hour starting at slot.
func PredictSlot(samples []models.DemandSample, slot time.Time, weatherFactor float64, events []SpecialEvent) Prediction {
	if weatherFactor <= 0 {
		weatherFactor = 1
	}
	wait, party, volume, found := historicalAverages(samples, slot.Weekday(), slot.Hour())
	if !found {
		wait = DefaultWaitMinutes
		party = DefaultPartySize
	}

	sc := slotContext{
		hour:          slot.Hour(),
		weekday:       slot.Weekday(),
		weatherFactor: weatherFactor,
	}
	for _, event := range events {
		if event.activeAt(slot) {
			sc.eventActive = true
			break
		}
	}

	factors := []string{}
	for _, adj := range matchingAdjustments(sc) {
		wait *= adj.WaitMul
		party *= adj.PartyMul
		factors = append(factors, adj.Label)
	}

	return Prediction{
		TimeSlot:           fmt.Sprintf("%02d:00", slot.Hour()),
		SlotStart:          slot,
		PredictedWaitTime:  int(math.Round(wait)),
		PredictedPartySize: math.Round(party*10) / 10,
		Confidence:         confidence(volume, len(factors)),
		Factors:            factors,
	}
}

// historicalAverages averages the samples for weekday within one hour of
// hour, weighting each bucket by its sample count.
func historicalAverages(samples []models.DemandSample, weekday time.Weekday, hour int) (float64, float64, int, bool) {
	var waitSum, partySum, weightSum float64
	volume := 0
	for _, sample := range samples {
		if sample.DayOfWeek != weekday || absInt(sample.Hour-hour) > 1 {
			continue
		}
		weight := float64(sample.SampleCount)
		if weight <= 0 {
			weight = 1
		}
		waitSum += sample.AvgWaitTime * weight
		partySum += sample.AvgPartySize * weight
		weightSum += weight
		if sample.SampleCount > 0 {
			volume += sample.SampleCount
		}
	}
	if weightSum == 0 {
		return 0, 0, 0, false
	}
	return waitSum / weightSum, partySum / weightSum, volume, true
}

func confidence(volume, factors int) int {
	score := baseConfidence
	switch {
	case volume > 50:
		score += 20
	case volume > 20:
		score += 10
	case volume > 10:
		score += 5
	}
	score += factorBonus * factors
	if score > maxConfidence {
		score = maxConfidence
	}
	return score
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
