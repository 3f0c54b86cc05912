// Package optimizer suggests seating actions for the parties currently
// waiting, based on how well they fit the restaurant's table inventory.
package optimizer

import (
	"fmt"
	"math"
	"sort"
	"time"

	"tablequeue/waitlist-service/internal/inventory"
	"tablequeue/waitlist-service/internal/models"
)

const (
	ActionSeatImmediately = "seat_immediately"
	ActionCombineTables   = "combine_tables"
	ActionNotifyEarly     = "notify_early"

	efficiencyThreshold    = 0.6
	oversizeFactor         = 1.5
	combinationMinParty    = 7
	maxCombinedTables      = 3
	sequenceWindow         = 3
	notifyEarlyAfter       = 15 * time.Minute
	notifyEarlyEfficiency  = 0.7
	combineWaitReduction   = 20
	notifyEarlyWaitReduced = 5
)

type TableAssignment struct {
	TableTypeID string `json:"table_type_id"`
	TableCount  int    `json:"table_count"`
	Confidence  int    `json:"confidence"`
	Reasoning   string `json:"reasoning"`
}

type Suggestion struct {
	Action                 string           `json:"action"`
	EntryID                string           `json:"entry_id,omitempty"`
	TableAssignment        *TableAssignment `json:"table_assignment,omitempty"`
	EstimatedWaitReduction int              `json:"estimated_wait_reduction_minutes"`
	Reasoning              string           `json:"reasoning"`
	Confidence             int              `json:"confidence"`
}

// AnalyzeWaitlistOptimization runs the early-seating, combination and
// sequencing passes over the active entries and returns every suggestion
// ordered by confidence. It does not modify its inputs.
func AnalyzeWaitlistOptimization(entries []models.WaitlistEntry, tables []models.TableType, now time.Time) []Suggestion {
	inv := inventory.New(tables)
	if inv.Empty() {
		return nil
	}

	var active []models.WaitlistEntry
	for _, entry := range entries {
		if entry.Status == models.StatusWaiting || entry.Status == models.StatusNotified {
			active = append(active, entry)
		}
	}
	sort.SliceStable(active, func(i, j int) bool {
		return active[i].QueuePosition < active[j].QueuePosition
	})

	var suggestions []Suggestion
	suggestions = append(suggestions, earlySeating(active, inv)...)
	suggestions = append(suggestions, combinations(active, inv)...)
	suggestions = append(suggestions, sequencing(active, inv, now)...)

	sort.SliceStable(suggestions, func(i, j int) bool {
		return suggestions[i].Confidence > suggestions[j].Confidence
	})
	return suggestions
}

// earlySeating suggests seating a party right away on the smallest table
// that seats it without wasting more than half its size in empty chairs.
func earlySeating(entries []models.WaitlistEntry, inv inventory.Inventory) []Suggestion {
	var out []Suggestion
	for _, entry := range entries {
		limit := float64(entry.PartySize) * oversizeFactor
		var best *models.TableType
		for _, table := range inv.Fitting(entry.PartySize) {
			if float64(table.Capacity) <= limit {
				t := table
				best = &t
				break
			}
		}
		if best == nil {
			continue
		}
		efficiency := float64(entry.PartySize) / float64(best.Capacity)
		if efficiency <= efficiencyThreshold {
			continue
		}
		confidence := int(math.Round(efficiency * 100))
		reasoning := fmt.Sprintf("Party of %d fits %s (%d seats) at %d%% efficiency", entry.PartySize, best.Name, best.Capacity, confidence)
		out = append(out, Suggestion{
			Action:  ActionSeatImmediately,
			EntryID: entry.EntryID,
			TableAssignment: &TableAssignment{
				TableTypeID: best.TableTypeID,
				TableCount:  1,
				Confidence:  confidence,
				Reasoning:   reasoning,
			},
			EstimatedWaitReduction: entry.EstimatedWait,
			Reasoning:              reasoning,
			Confidence:             confidence,
		})
	}
	return out
}

// combinations looks for the best way to push tables of one type together
// for large parties.
func combinations(entries []models.WaitlistEntry, inv inventory.Inventory) []Suggestion {
	var out []Suggestion
	for _, entry := range entries {
		if entry.PartySize < combinationMinParty {
			continue
		}
		var best *TableAssignment
		for _, table := range inv.Tables() {
			needed := int(math.Ceil(float64(entry.PartySize) / float64(table.Capacity)))
			if needed < 2 || needed > table.Count || needed > maxCombinedTables {
				continue
			}
			efficiency := float64(entry.PartySize) / float64(needed*table.Capacity)
			availability := float64(table.Count-needed+1) / float64(table.Count)
			confidence := int(math.Round((efficiency*0.7 + availability*0.3) * 100))
			if best != nil && confidence <= best.Confidence {
				continue
			}
			best = &TableAssignment{
				TableTypeID: table.TableTypeID,
				TableCount:  needed,
				Confidence:  confidence,
				Reasoning:   fmt.Sprintf("Combine %d x %s (%d seats) for party of %d", needed, table.Name, needed*table.Capacity, entry.PartySize),
			}
		}
		if best == nil {
			continue
		}
		out = append(out, Suggestion{
			Action:                 ActionCombineTables,
			EntryID:                entry.EntryID,
			TableAssignment:        best,
			EstimatedWaitReduction: combineWaitReduction,
			Reasoning:              best.Reasoning,
			Confidence:             best.Confidence,
		})
	}
	return out
}

// sequencing flags the best-fitting parties near the top of the efficiency
// ranking who have already waited a while, so staff can call them ahead.
// Parties no single table seats are left to the combination pass.
func sequencing(entries []models.WaitlistEntry, inv inventory.Inventory, now time.Time) []Suggestion {
	type ranked struct {
		entry models.WaitlistEntry
		ratio float64
	}
	rankedEntries := make([]ranked, 0, len(entries))
	for _, entry := range entries {
		table, ok := inv.SmallestFit(entry.PartySize)
		if !ok {
			continue
		}
		rankedEntries = append(rankedEntries, ranked{
			entry: entry,
			ratio: float64(entry.PartySize) / float64(table.Capacity),
		})
	}
	sort.SliceStable(rankedEntries, func(i, j int) bool {
		return rankedEntries[i].ratio > rankedEntries[j].ratio
	})
	if len(rankedEntries) > sequenceWindow {
		rankedEntries = rankedEntries[:sequenceWindow]
	}

	var out []Suggestion
	for _, r := range rankedEntries {
		if r.entry.WaitingMinutes(now) <= notifyEarlyAfter.Minutes() || r.ratio <= notifyEarlyEfficiency {
			continue
		}
		confidence := int(math.Min(math.Round(r.ratio*100), 100))
		out = append(out, Suggestion{
			Action:                 ActionNotifyEarly,
			EntryID:                r.entry.EntryID,
			EstimatedWaitReduction: notifyEarlyWaitReduced,
			Reasoning: fmt.Sprintf("Party of %d has waited %.0f minutes and fits its table at %d%% efficiency",
				r.entry.PartySize, r.entry.WaitingMinutes(now), confidence),
			Confidence: confidence,
		})
	}
	return out
}
