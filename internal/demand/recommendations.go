package demand

import (
	"fmt"
	"math"
	"sort"

	"tablequeue/waitlist-service/internal/inventory"
	"tablequeue/waitlist-service/internal/models"
)

type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

func (p Priority) rank() int {
	switch p {
	case PriorityHigh:
		return 0
	case PriorityMedium:
		return 1
	}
	return 2
}

const (
	RecommendIncreaseStaff       = "increase_staff"
	RecommendPrepareCombinations = "prepare_combinations"
	RecommendOptimizeTurnover    = "optimize_turnover"
	RecommendExtendHours         = "extend_hours"
)

type CapacityRecommendation struct {
	Type        string   `json:"type"`
	Priority    Priority `json:"priority"`
	Description string   `json:"description"`
	Impact      int      `json:"impact_minutes"`
}

// GenerateCapacityRecommendations applies each rule independently and
// returns the triggered recommendations ordered by priority.
func GenerateCapacityRecommendations(predictions []Prediction, tables []models.TableType) []CapacityRecommendation {
	var recs []CapacityRecommendation

	var highDemandWait float64
	highDemand := 0
	largeParties := false
	busySlots := 0
	quietSlots := 0
	for _, p := range predictions {
		if p.PredictedWaitTime > 30 {
			highDemandWait += float64(p.PredictedWaitTime)
			highDemand++
		}
		if p.PredictedPartySize > 4.5 {
			largeParties = true
		}
		if p.PredictedWaitTime > 20 {
			busySlots++
		}
		if p.PredictedWaitTime < 10 {
			quietSlots++
		}
	}

	if highDemand > 0 {
		avg := highDemandWait / float64(highDemand)
		priority := PriorityMedium
		if avg > 45 {
			priority = PriorityHigh
		}
		recs = append(recs, CapacityRecommendation{
			Type:        RecommendIncreaseStaff,
			Priority:    priority,
			Description: fmt.Sprintf("%d upcoming slot(s) predict waits above 30 minutes (average %.0f); add floor staff", highDemand, avg),
			Impact:      int(math.Round(avg * 0.4)),
		})
	}

	if largeParties && !inventory.New(tables).HasCapacity(8) {
		recs = append(recs, CapacityRecommendation{
			Type:        RecommendPrepareCombinations,
			Priority:    PriorityHigh,
			Description: "Large parties expected and no table seats 8; prepare table combinations",
			Impact:      25,
		})
	}

	if busySlots >= 2 {
		recs = append(recs, CapacityRecommendation{
			Type:        RecommendOptimizeTurnover,
			Priority:    PriorityMedium,
			Description: fmt.Sprintf("%d slots predict waits above 20 minutes; speed up table turnover", busySlots),
			Impact:      15,
		})
	}

	if quietSlots >= 3 {
		recs = append(recs, CapacityRecommendation{
			Type:        RecommendExtendHours,
			Priority:    PriorityLow,
			Description: fmt.Sprintf("%d slots predict waits under 10 minutes; capacity is available for promotions or extended hours", quietSlots),
			Impact:      30,
		})
	}

	sort.SliceStable(recs, func(i, j int) bool {
		return recs[i].Priority.rank() < recs[j].Priority.rank()
	})
	return recs
}
