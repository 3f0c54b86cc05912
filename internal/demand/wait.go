package demand

import (
	"math"

	"tablequeue/waitlist-service/internal/inventory"
	"tablequeue/waitlist-service/internal/models"
)

// DefaultWaitPerParty is charged for each party ahead when the restaurant
// has no active table inventory to reason about.
const DefaultWaitPerParty = 15

// EstimateWait predicts how long a new party of partySize will wait given
// the parties already ahead of it. Parties ahead are spread across the
// tables that can seat the new party, each freeing up after its turnover.
func EstimateWait(partySize int, ahead []models.WaitlistEntry, inv inventory.Inventory) int {
	competing := 0
	for _, entry := range ahead {
		if entry.Status.Active() {
			competing++
		}
	}
	if competing == 0 {
		return 0
	}
	if inv.Empty() {
		return competing * DefaultWaitPerParty
	}

	tables := inv.Fitting(partySize)
	if len(tables) == 0 {
		tables = inv.Tables()
	}
	count := 0
	turnover := 0
	for _, table := range tables {
		count += table.Count
		turnover += table.TurnoverMinutes * table.Count
	}
	avgTurnover := float64(turnover) / float64(count)
	return int(math.Ceil(float64(competing) * avgTurnover / float64(count)))
}
