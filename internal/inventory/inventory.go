// Package inventory describes the table types a restaurant can seat parties
// at and answers the capacity questions the estimators ask of it.
package inventory

import (
	"fmt"
	"sort"
	"strings"

	"tablequeue/waitlist-service/internal/models"
)

type Inventory struct {
	tables []models.TableType
}

// New keeps the active table types, ordered by capacity then name.
func New(tables []models.TableType) Inventory {
	active := make([]models.TableType, 0, len(tables))
	for _, table := range tables {
		if table.Active && table.Capacity > 0 && table.Count > 0 {
			active = append(active, table)
		}
	}
	sort.SliceStable(active, func(i, j int) bool {
		if active[i].Capacity != active[j].Capacity {
			return active[i].Capacity < active[j].Capacity
		}
		return active[i].Name < active[j].Name
	})
	return Inventory{tables: active}
}

func (inv Inventory) Tables() []models.TableType {
	out := make([]models.TableType, len(inv.tables))
	copy(out, inv.tables)
	return out
}

func (inv Inventory) Empty() bool {
	return len(inv.tables) == 0
}

// SmallestFit returns the smallest table type seating partySize on one table.
func (inv Inventory) SmallestFit(partySize int) (models.TableType, bool) {
	for _, table := range inv.tables {
		if table.Capacity >= partySize {
			return table, true
		}
	}
	return models.TableType{}, false
}

// Fitting returns the table types able to seat partySize on one table.
func (inv Inventory) Fitting(partySize int) []models.TableType {
	var out []models.TableType
	for _, table := range inv.tables {
		if table.Capacity >= partySize {
			out = append(out, table)
		}
	}
	return out
}

func (inv Inventory) Largest() (models.TableType, bool) {
	if len(inv.tables) == 0 {
		return models.TableType{}, false
	}
	return inv.tables[len(inv.tables)-1], true
}

// HasCapacity reports whether any single table seats at least seats people.
func (inv Inventory) HasCapacity(seats int) bool {
	largest, ok := inv.Largest()
	return ok && largest.Capacity >= seats
}

// Validate checks a table type before it is saved.
func Validate(table models.TableType) []string {
	var problems []string
	if strings.TrimSpace(table.RestaurantID) == "" {
		problems = append(problems, "restaurant_id is required")
	}
	if strings.TrimSpace(table.Name) == "" {
		problems = append(problems, "name is required")
	}
	if table.Capacity < 1 {
		problems = append(problems, "capacity must be at least 1")
	}
	if table.Count < 0 {
		problems = append(problems, "count cannot be negative")
	}
	if table.TurnoverMinutes < 1 {
		problems = append(problems, fmt.Sprintf("estimated turnover must be at least 1 minute (got %d)", table.TurnoverMinutes))
	}
	return problems
}
