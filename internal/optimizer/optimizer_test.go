package optimizer

import (
	"testing"
	"time"

	"tablequeue/waitlist-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2026, 3, 14, 19, 0, 0, 0, time.UTC)

func entry(id string, position int64, party int, waited time.Duration) models.WaitlistEntry {
	return models.WaitlistEntry{
		EntryID:       id,
		QueuePosition: position,
		PartySize:     party,
		Status:        models.StatusWaiting,
		EstimatedWait: 25,
		CreatedAt:     now.Add(-waited),
	}
}

func byAction(suggestions []Suggestion, action string) []Suggestion {
	var out []Suggestion
	for _, s := range suggestions {
		if s.Action == action {
			out = append(out, s)
		}
	}
	return out
}

func TestEarlySeatingExactFit(t *testing.T) {
	tables := []models.TableType{{TableTypeID: "four", Name: "Four top", Capacity: 4, Count: 2, TurnoverMinutes: 60, Active: true}}

	suggestions := AnalyzeWaitlistOptimization([]models.WaitlistEntry{entry("e1", 1, 4, time.Minute)}, tables, now)

	seat := byAction(suggestions, ActionSeatImmediately)
	require.Len(t, seat, 1)
	assert.Equal(t, "e1", seat[0].EntryID)
	assert.Equal(t, 100, seat[0].Confidence)
	require.NotNil(t, seat[0].TableAssignment)
	assert.Equal(t, "four", seat[0].TableAssignment.TableTypeID)
	assert.Equal(t, 1, seat[0].TableAssignment.TableCount)
	assert.Equal(t, 25, seat[0].EstimatedWaitReduction)
}

func TestEarlySeatingRejectsPoorFit(t *testing.T) {
	tables := []models.TableType{
		{TableTypeID: "six", Name: "Six top", Capacity: 6, Count: 2, Active: true},
	}
	// 3/6 = 0.5 and 6 > 3*1.5
	suggestions := AnalyzeWaitlistOptimization([]models.WaitlistEntry{entry("e1", 1, 3, time.Minute)}, tables, now)
	assert.Empty(t, byAction(suggestions, ActionSeatImmediately))

	// 4/6 = 0.67 and 6 <= 4*1.5
	suggestions = AnalyzeWaitlistOptimization([]models.WaitlistEntry{entry("e2", 1, 4, time.Minute)}, tables, now)
	seat := byAction(suggestions, ActionSeatImmediately)
	require.Len(t, seat, 1)
	assert.Equal(t, 67, seat[0].Confidence)
}

func TestCombinationPicksHighestConfidence(t *testing.T) {
	tables := []models.TableType{
		{TableTypeID: "two", Name: "Two top", Capacity: 2, Count: 6, Active: true},
		{TableTypeID: "four", Name: "Four top", Capacity: 4, Count: 3, Active: true},
		{TableTypeID: "six", Name: "Six top", Capacity: 6, Count: 1, Active: true},
	}

	suggestions := AnalyzeWaitlistOptimization([]models.WaitlistEntry{entry("big", 1, 8, time.Minute)}, tables, now)

	combine := byAction(suggestions, ActionCombineTables)
	require.Len(t, combine, 1)
	// two tops need 4 tables (over the limit); four tops need 2:
	// efficiency 1.0, availability (3-2+1)/3 -> 0.7 + 0.2 = 90
	assert.Equal(t, "four", combine[0].TableAssignment.TableTypeID)
	assert.Equal(t, 2, combine[0].TableAssignment.TableCount)
	assert.Equal(t, 90, combine[0].Confidence)
}

func TestCombinationSkipsSmallPartiesAndShortInventory(t *testing.T) {
	tables := []models.TableType{{TableTypeID: "four", Name: "Four top", Capacity: 4, Count: 1, Active: true}}
	suggestions := AnalyzeWaitlistOptimization([]models.WaitlistEntry{
		entry("six", 1, 6, time.Minute),
		entry("eight", 2, 8, time.Minute),
	}, tables, now)
	assert.Empty(t, byAction(suggestions, ActionCombineTables))
}

func TestSequencingNotifiesLongWaitingGoodFits(t *testing.T) {
	tables := []models.TableType{
		{TableTypeID: "two", Name: "Two top", Capacity: 2, Count: 4, Active: true},
		{TableTypeID: "four", Name: "Four top", Capacity: 4, Count: 4, Active: true},
	}
	entries := []models.WaitlistEntry{
		entry("couple-long", 1, 2, 40*time.Minute),
		entry("four-new", 2, 4, 5*time.Minute),
		entry("three-long", 3, 3, 30*time.Minute),
		entry("single-long", 4, 1, 50*time.Minute),
	}
	seated := entry("seated", 5, 4, time.Hour)
	seated.Status = models.StatusSeated
	entries = append(entries, seated)

	suggestions := AnalyzeWaitlistOptimization(entries, tables, now)

	notify := byAction(suggestions, ActionNotifyEarly)
	require.Len(t, notify, 2)
	assert.Equal(t, "couple-long", notify[0].EntryID)
	assert.Equal(t, 100, notify[0].Confidence)
	assert.Equal(t, "three-long", notify[1].EntryID)
	assert.Equal(t, 75, notify[1].Confidence)
}

func TestSequencingIgnoresPartiesNoTableSeats(t *testing.T) {
	tables := []models.TableType{{TableTypeID: "four", Name: "Four top", Capacity: 4, Count: 2, TurnoverMinutes: 60, Active: true}}
	entries := []models.WaitlistEntry{
		entry("ten", 1, 10, 30*time.Minute),
		entry("four-a", 2, 4, 20*time.Minute),
		entry("four-b", 3, 4, 20*time.Minute),
		entry("four-c", 4, 4, 20*time.Minute),
	}

	suggestions := AnalyzeWaitlistOptimization(entries, tables, now)

	notify := byAction(suggestions, ActionNotifyEarly)
	require.Len(t, notify, 3)
	for _, s := range notify {
		assert.NotEqual(t, "ten", s.EntryID)
		assert.Equal(t, 100, s.Confidence)
	}
	for _, s := range suggestions {
		assert.LessOrEqual(t, s.Confidence, 100, s.Action)
		assert.GreaterOrEqual(t, s.Confidence, 0, s.Action)
	}
}

func TestSuggestionsSortedByConfidence(t *testing.T) {
	tables := []models.TableType{
		{TableTypeID: "four", Name: "Four top", Capacity: 4, Count: 3, Active: true},
	}
	entries := []models.WaitlistEntry{
		entry("three", 1, 3, time.Minute),
		entry("four", 2, 4, time.Minute),
		entry("eight", 3, 8, time.Minute),
	}

	suggestions := AnalyzeWaitlistOptimization(entries, tables, now)

	require.NotEmpty(t, suggestions)
	for i := 1; i < len(suggestions); i++ {
		assert.GreaterOrEqual(t, suggestions[i-1].Confidence, suggestions[i].Confidence)
	}
	assert.Equal(t, "four", suggestions[0].EntryID)
}

func TestNoInventoryNoSuggestions(t *testing.T) {
	assert.Empty(t, AnalyzeWaitlistOptimization([]models.WaitlistEntry{entry("e1", 1, 2, time.Hour)}, nil, now))
}
