package models

import "time"

// DemandSample is one aggregated history bucket for a restaurant: the
// observed average wait and party size for a date and hour of day.
type DemandSample struct {
	Date         time.Time    `json:"date"`
	DayOfWeek    time.Weekday `json:"day_of_week"`
	Hour         int          `json:"hour"`
	AvgWaitTime  float64      `json:"avg_wait_minutes"`
	AvgPartySize float64      `json:"avg_party_size"`
	SampleCount  int          `json:"sample_count"`
}

// SeatingSample is one completed seating: the table type used and how long
// the party occupied it.
type SeatingSample struct {
	EntryID         string    `json:"entry_id"`
	TableTypeID     string    `json:"table_type_id"`
	SeatedAt        time.Time `json:"seated_at"`
	DurationMinutes float64   `json:"duration_minutes"`
}
