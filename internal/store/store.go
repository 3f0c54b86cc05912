package store

import (
	"context"
	"encoding/json"
	"time"

	"tablequeue/waitlist-service/internal/models"
)

type CreateEntryInput struct {
	RequestID        string
	RestaurantID     string
	CustomerName     string
	PartySize        int
	ContactPhone     string
	ContactEmail     string
	Status           models.EntryStatus
	EstimatedWait    int
	TableTypeHint    string
	IsRemote         bool
	ExpectedArrival  *time.Time
	ConfirmationCode string
	CreatedAt        time.Time
}

// TransitionInput describes a compare-and-set status change: the update only
// applies while the entry is still in From.
type TransitionInput struct {
	RestaurantID string
	EntryID      string
	Action       string
	From         models.EntryStatus
	To           models.EntryStatus
	TableTypeID  string
	OccurredAt   time.Time
}

type EntryStore interface {
	// CreateEntry assigns the next queue position for the restaurant and
	// persists the entry. A repeated RequestID returns the existing entry
	// and false.
	CreateEntry(ctx context.Context, input CreateEntryInput) (models.WaitlistEntry, bool, error)
	GetEntry(ctx context.Context, restaurantID, entryID string) (models.WaitlistEntry, error)
	ListEntries(ctx context.Context, restaurantID string, statuses ...models.EntryStatus) ([]models.WaitlistEntry, error)
	FindByConfirmationCode(ctx context.Context, restaurantID, code string) (models.WaitlistEntry, error)
	ConfirmationCodeInUse(ctx context.Context, restaurantID, code string) (bool, error)
	TransitionEntry(ctx context.Context, input TransitionInput) (models.WaitlistEntry, error)
	RecordDeparture(ctx context.Context, restaurantID, entryID string, departedAt time.Time) (models.WaitlistEntry, error)
	ListRestaurantsWithPendingRemote(ctx context.Context) ([]string, error)
	ListEntryEvents(ctx context.Context, restaurantID, entryID string) ([]EntryEvent, error)
}

type TableTypeStore interface {
	ListTableTypes(ctx context.Context, restaurantID string, activeOnly bool) ([]models.TableType, error)
	GetTableType(ctx context.Context, restaurantID, tableTypeID string) (models.TableType, error)
	SaveTableType(ctx context.Context, table models.TableType) (models.TableType, error)
	UpdateTurnoverMinutes(ctx context.Context, restaurantID, tableTypeID string, minutes int) error
}

type HistoryStore interface {
	// ImportDemandSamples stores aggregated history, replacing any sample
	// already held for the same date and hour.
	ImportDemandSamples(ctx context.Context, restaurantID string, samples []models.DemandSample) error
	// ListDemandSamples buckets the restaurant's own seatings by the local
	// date and hour in loc, alongside imported samples whose date and hour
	// are already local.
	ListDemandSamples(ctx context.Context, restaurantID string, from, to time.Time, loc *time.Location) ([]models.DemandSample, error)
	ListSeatingSamples(ctx context.Context, restaurantID string, since time.Time) ([]models.SeatingSample, error)
}

// DeliverFunc hands claimed events to a broker. It returns how many events,
// counted from the front of the batch, were delivered.
type DeliverFunc func(ctx context.Context, events []OutboxEvent) (int, error)

type OutboxStore interface {
	// ClaimOutboxEvents locks up to limit unpublished events in insertion
	// order and passes them to deliver. The delivered prefix is marked
	// published even when deliver also returns an error; the rest stay
	// pending. Concurrent claimers never receive the same event.
	ClaimOutboxEvents(ctx context.Context, limit int, deliver DeliverFunc) (int, error)
}

type Store interface {
	EntryStore
	TableTypeStore
	HistoryStore
	OutboxStore
}

type OutboxEvent struct {
	EventID      string          `json:"event_id"`
	RestaurantID string          `json:"restaurant_id"`
	Type         string          `json:"type"`
	Payload      json.RawMessage `json:"payload"`
	CreatedAt    time.Time       `json:"created_at"`
}
