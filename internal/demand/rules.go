package demand

import "time"

// slotContext is everything an adjustment rule may look at.
type slotContext struct {
	hour          int
	weekday       time.Weekday
	weatherFactor float64
	eventActive   bool
}

func (c slotContext) weekend() bool {
	return c.weekday == time.Saturday || c.weekday == time.Sunday
}

// Adjustment is one named multiplicative rule.
type Adjustment struct {
	Label    string
	WaitMul  float64
	PartyMul float64
	applies  func(slotContext) bool
}

// adjustmentStages are evaluated in order. Within a stage only the first
// matching adjustment applies; every stage contributes at most one factor.
var adjustmentStages = [][]Adjustment{
	{
		{
			Label:    "Poor weather pushes diners indoors",
			WaitMul:  1.15,
			PartyMul: 1,
			applies:  func(c slotContext) bool { return c.weatherFactor > 1.2 },
		},
		{
			Label:    "Pleasant weather reduces indoor demand",
			WaitMul:  0.9,
			PartyMul: 1,
			applies:  func(c slotContext) bool { return c.weatherFactor < 0.8 },
		},
	},
	{
		{
			Label:    "Lunch rush",
			WaitMul:  1.4,
			PartyMul: 1,
			applies:  func(c slotContext) bool { return c.hour >= 11 && c.hour <= 13 },
		},
		{
			Label:    "Dinner rush",
			WaitMul:  1.5,
			PartyMul: 1,
			applies:  func(c slotContext) bool { return c.hour >= 18 && c.hour <= 20 },
		},
		{
			Label:    "Happy hour",
			WaitMul:  1.2,
			PartyMul: 1,
			applies:  func(c slotContext) bool { return c.hour >= 17 && c.hour <= 19 },
		},
	},
	{
		{
			Label:    "Weekend dining typically busier",
			WaitMul:  1.2,
			PartyMul: 1.1,
			applies:  func(c slotContext) bool { return c.weekend() },
		},
	},
	{
		{
			Label:    "Special event nearby",
			WaitMul:  1.3,
			PartyMul: 1,
			applies:  func(c slotContext) bool { return c.eventActive },
		},
	},
	{
		{
			Label:    "Happy hour draws smaller parties",
			WaitMul:  1,
			PartyMul: 0.85,
			applies:  func(c slotContext) bool { return !c.weekend() && c.hour >= 17 && c.hour <= 19 },
		},
	},
}

// matchingAdjustments returns the adjustments applied to a slot, in order.
func matchingAdjustments(c slotContext) []Adjustment {
	var applied []Adjustment
	for _, stage := range adjustmentStages {
		for _, adj := range stage {
			if adj.applies(c) {
				applied = append(applied, adj)
				break
			}
		}
	}
	return applied
}
