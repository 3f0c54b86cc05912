package models

import "time"

type TableType struct {
	TableTypeID     string    `json:"table_type_id"`
	RestaurantID    string    `json:"restaurant_id"`
	Name            string    `json:"name"`
	Capacity        int       `json:"capacity"`
	Count           int       `json:"count"`
	TurnoverMinutes int       `json:"estimated_turnover_minutes"`
	Active          bool      `json:"active"`
	UpdatedAt       time.Time `json:"updated_at"`
}
