package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"tablequeue/waitlist-service/internal/models"
	"tablequeue/waitlist-service/internal/store"

	"github.com/google/uuid"
)

// Store keeps waitlist state in process memory. It honours the same
// compare-and-set and outbox contracts as the postgres store.
type Store struct {
	mu            sync.RWMutex
	entries       map[string]*models.WaitlistEntry
	requests      map[string]string
	positions     map[string]int64
	tables        map[string]*models.TableType
	demandSamples map[string][]models.DemandSample
	events        map[string][]store.EntryEvent
	outbox        []outboxRecord

	// claimMu stands in for row locks: one claim at a time, with mu released
	// while events are delivered.
	claimMu sync.Mutex
}

type outboxRecord struct {
	event     store.OutboxEvent
	published bool
}

func NewStore() *Store {
	return &Store{
		entries:       make(map[string]*models.WaitlistEntry),
		requests:      make(map[string]string),
		positions:     make(map[string]int64),
		tables:        make(map[string]*models.TableType),
		demandSamples: make(map[string][]models.DemandSample),
		events:        make(map[string][]store.EntryEvent),
	}
}

func (s *Store) CreateEntry(ctx context.Context, input store.CreateEntryInput) (models.WaitlistEntry, bool, error) {
	if err := ctx.Err(); err != nil {
		return models.WaitlistEntry{}, false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if input.RequestID != "" {
		if id, ok := s.requests[requestKey(input.RestaurantID, input.RequestID)]; ok {
			return *s.entries[id], false, nil
		}
	}

	createdAt := input.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	s.positions[input.RestaurantID]++
	entry := &models.WaitlistEntry{
		EntryID:          uuid.NewString(),
		RestaurantID:     input.RestaurantID,
		RequestID:        input.RequestID,
		CustomerName:     input.CustomerName,
		PartySize:        input.PartySize,
		ContactPhone:     input.ContactPhone,
		ContactEmail:     input.ContactEmail,
		Status:           input.Status,
		QueuePosition:    s.positions[input.RestaurantID],
		EstimatedWait:    input.EstimatedWait,
		TableTypeHint:    input.TableTypeHint,
		IsRemote:         input.IsRemote,
		ExpectedArrival:  input.ExpectedArrival,
		ConfirmationCode: input.ConfirmationCode,
		CreatedAt:        createdAt,
	}
	s.entries[entry.EntryID] = entry
	if input.RequestID != "" {
		s.requests[requestKey(input.RestaurantID, input.RequestID)] = entry.EntryID
	}
	if err := s.recordEvent(*entry, store.EventEntryCreated, createdAt); err != nil {
		return models.WaitlistEntry{}, false, err
	}
	return *entry, true, nil
}

func (s *Store) GetEntry(ctx context.Context, restaurantID, entryID string) (models.WaitlistEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.entries[entryID]
	if !ok || entry.RestaurantID != restaurantID {
		return models.WaitlistEntry{}, store.ErrEntryNotFound
	}
	return *entry, nil
}

func (s *Store) ListEntries(ctx context.Context, restaurantID string, statuses ...models.EntryStatus) ([]models.WaitlistEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var entries []models.WaitlistEntry
	for _, entry := range s.entries {
		if entry.RestaurantID != restaurantID || !hasStatus(statuses, entry.Status) {
			continue
		}
		entries = append(entries, *entry)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].QueuePosition < entries[j].QueuePosition
	})
	return entries, nil
}

func (s *Store) FindByConfirmationCode(ctx context.Context, restaurantID, code string) (models.WaitlistEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	code = strings.ToUpper(strings.TrimSpace(code))
	var found *models.WaitlistEntry
	for _, entry := range s.entries {
		if entry.RestaurantID != restaurantID || entry.ConfirmationCode != code {
			continue
		}
		// Prefer the live entry when an old, finished entry reused the code.
		if found == nil || (entry.Status.Active() && !found.Status.Active()) {
			found = entry
		}
	}
	if found == nil {
		return models.WaitlistEntry{}, store.ErrCodeNotFound
	}
	return *found, nil
}

func (s *Store) ConfirmationCodeInUse(ctx context.Context, restaurantID, code string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, entry := range s.entries {
		if entry.RestaurantID == restaurantID && entry.ConfirmationCode == code && entry.Status.Active() {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) TransitionEntry(ctx context.Context, input store.TransitionInput) (models.WaitlistEntry, error) {
	if err := ctx.Err(); err != nil {
		return models.WaitlistEntry{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[input.EntryID]
	if !ok || entry.RestaurantID != input.RestaurantID {
		return models.WaitlistEntry{}, store.ErrEntryNotFound
	}
	if entry.Status != input.From {
		return models.WaitlistEntry{}, store.ErrInvalidState
	}

	occurredAt := input.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = time.Now().UTC()
	}
	updated := *entry
	updated.ApplyTransition(input.To, occurredAt, input.TableTypeID)
	if err := s.recordEvent(updated, store.EventType(input.Action), occurredAt); err != nil {
		return models.WaitlistEntry{}, err
	}
	*entry = updated
	return updated, nil
}

func (s *Store) RecordDeparture(ctx context.Context, restaurantID, entryID string, departedAt time.Time) (models.WaitlistEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[entryID]
	if !ok || entry.RestaurantID != restaurantID {
		return models.WaitlistEntry{}, store.ErrEntryNotFound
	}
	if entry.Status != models.StatusSeated || entry.DepartedAt != nil {
		return models.WaitlistEntry{}, store.ErrInvalidState
	}
	updated := *entry
	updated.DepartedAt = &departedAt
	if err := s.recordEvent(updated, store.EventEntryDeparted, departedAt); err != nil {
		return models.WaitlistEntry{}, err
	}
	*entry = updated
	return updated, nil
}

func (s *Store) ListRestaurantsWithPendingRemote(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := map[string]bool{}
	var ids []string
	for _, entry := range s.entries {
		if entry.Status != models.StatusRemotePending || seen[entry.RestaurantID] {
			continue
		}
		seen[entry.RestaurantID] = true
		ids = append(ids, entry.RestaurantID)
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *Store) ListEntryEvents(ctx context.Context, restaurantID, entryID string) ([]store.EntryEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.entries[entryID]
	if !ok || entry.RestaurantID != restaurantID {
		return nil, store.ErrEntryNotFound
	}
	events := make([]store.EntryEvent, len(s.events[entryID]))
	copy(events, s.events[entryID])
	return events, nil
}

func (s *Store) ListTableTypes(ctx context.Context, restaurantID string, activeOnly bool) ([]models.TableType, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var tables []models.TableType
	for _, table := range s.tables {
		if table.RestaurantID != restaurantID || (activeOnly && !table.Active) {
			continue
		}
		tables = append(tables, *table)
	}
	sort.Slice(tables, func(i, j int) bool {
		if tables[i].Capacity != tables[j].Capacity {
			return tables[i].Capacity < tables[j].Capacity
		}
		return tables[i].Name < tables[j].Name
	})
	return tables, nil
}

func (s *Store) GetTableType(ctx context.Context, restaurantID, tableTypeID string) (models.TableType, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	table, ok := s.tables[tableTypeID]
	if !ok || table.RestaurantID != restaurantID {
		return models.TableType{}, store.ErrTableTypeNotFound
	}
	return *table, nil
}

func (s *Store) SaveTableType(ctx context.Context, table models.TableType) (models.TableType, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if table.TableTypeID == "" {
		table.TableTypeID = uuid.NewString()
	}
	table.UpdatedAt = time.Now().UTC()
	saved := table
	s.tables[table.TableTypeID] = &saved
	return table, nil
}

func (s *Store) UpdateTurnoverMinutes(ctx context.Context, restaurantID, tableTypeID string, minutes int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	table, ok := s.tables[tableTypeID]
	if !ok || table.RestaurantID != restaurantID {
		return store.ErrTableTypeNotFound
	}
	table.TurnoverMinutes = minutes
	table.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *Store) ImportDemandSamples(ctx context.Context, restaurantID string, samples []models.DemandSample) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing := s.demandSamples[restaurantID]
	for _, sample := range samples {
		sample.Date = sample.Date.UTC().Truncate(24 * time.Hour)
		sample.DayOfWeek = sample.Date.Weekday()
		replaced := false
		for i := range existing {
			if existing[i].Date.Equal(sample.Date) && existing[i].Hour == sample.Hour {
				existing[i] = sample
				replaced = true
				break
			}
		}
		if !replaced {
			existing = append(existing, sample)
		}
	}
	s.demandSamples[restaurantID] = existing
	return nil
}

func (s *Store) ListDemandSamples(ctx context.Context, restaurantID string, from, to time.Time, loc *time.Location) ([]models.DemandSample, error) {
	if loc == nil {
		loc = time.UTC
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	type bucketKey struct {
		date string
		hour int
	}
	type bucket struct {
		sample   models.DemandSample
		waitSum  float64
		partySum float64
	}
	buckets := map[bucketKey]*bucket{}
	var keys []bucketKey
	for _, entry := range s.entries {
		if entry.RestaurantID != restaurantID || entry.SeatedAt == nil {
			continue
		}
		if entry.CreatedAt.Before(from) || !entry.CreatedAt.Before(to) {
			continue
		}
		local := entry.CreatedAt.In(loc)
		day := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.UTC)
		key := bucketKey{date: day.Format("2006-01-02"), hour: local.Hour()}
		b, ok := buckets[key]
		if !ok {
			b = &bucket{sample: models.DemandSample{Date: day, DayOfWeek: day.Weekday(), Hour: key.hour}}
			buckets[key] = b
			keys = append(keys, key)
		}
		b.waitSum += entry.SeatedAt.Sub(entry.CreatedAt).Minutes()
		b.partySum += float64(entry.PartySize)
		b.sample.SampleCount++
	}

	var samples []models.DemandSample
	for _, seeded := range s.demandSamples[restaurantID] {
		if !seeded.Date.Before(from.Truncate(24*time.Hour)) && seeded.Date.Before(to) {
			samples = append(samples, seeded)
		}
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].date != keys[j].date {
			return keys[i].date < keys[j].date
		}
		return keys[i].hour < keys[j].hour
	})
	for _, key := range keys {
		b := buckets[key]
		b.sample.AvgWaitTime = b.waitSum / float64(b.sample.SampleCount)
		b.sample.AvgPartySize = b.partySum / float64(b.sample.SampleCount)
		samples = append(samples, b.sample)
	}
	return samples, nil
}

func (s *Store) ListSeatingSamples(ctx context.Context, restaurantID string, since time.Time) ([]models.SeatingSample, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var samples []models.SeatingSample
	for _, entry := range s.entries {
		if entry.RestaurantID != restaurantID || entry.SeatedAt == nil || entry.DepartedAt == nil {
			continue
		}
		if entry.SeatedTableTypeID == "" || entry.SeatedAt.Before(since) {
			continue
		}
		samples = append(samples, models.SeatingSample{
			EntryID:         entry.EntryID,
			TableTypeID:     entry.SeatedTableTypeID,
			SeatedAt:        *entry.SeatedAt,
			DurationMinutes: entry.DepartedAt.Sub(*entry.SeatedAt).Minutes(),
		})
	}
	sort.Slice(samples, func(i, j int) bool {
		return samples[i].SeatedAt.Before(samples[j].SeatedAt)
	})
	return samples, nil
}

func (s *Store) ClaimOutboxEvents(ctx context.Context, limit int, deliver store.DeliverFunc) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.claimMu.Lock()
	defer s.claimMu.Unlock()

	s.mu.RLock()
	var (
		events  []store.OutboxEvent
		indexes []int
	)
	for i, record := range s.outbox {
		if record.published {
			continue
		}
		events = append(events, record.event)
		indexes = append(indexes, i)
		if limit > 0 && len(events) == limit {
			break
		}
	}
	s.mu.RUnlock()
	if len(events) == 0 {
		return 0, nil
	}

	delivered, err := deliver(ctx, events)
	if delivered > len(events) {
		delivered = len(events)
	}
	if delivered < 0 {
		delivered = 0
	}
	s.mu.Lock()
	for _, i := range indexes[:delivered] {
		s.outbox[i].published = true
	}
	s.mu.Unlock()
	return delivered, err
}

// recordEvent appends the audit event and the outbox event for entry. The
// caller holds the write lock.
func (s *Store) recordEvent(entry models.WaitlistEntry, eventType string, at time.Time) error {
	payload, err := store.EntryPayload(entry)
	if err != nil {
		return err
	}
	chain := s.events[entry.EntryID]
	var prev *store.EntryEvent
	if len(chain) > 0 {
		prev = &chain[len(chain)-1]
	}
	s.events[entry.EntryID] = append(chain, store.NextEntryEvent(prev, entry.EntryID, eventType, payload, at))

	s.outbox = append(s.outbox, outboxRecord{event: store.OutboxEvent{
		EventID:      uuid.NewString(),
		RestaurantID: entry.RestaurantID,
		Type:         eventType,
		Payload:      payload,
		CreatedAt:    at.UTC(),
	}})
	return nil
}

func requestKey(restaurantID, requestID string) string {
	return restaurantID + "|" + requestID
}

func hasStatus(statuses []models.EntryStatus, status models.EntryStatus) bool {
	if len(statuses) == 0 {
		return true
	}
	for _, s := range statuses {
		if s == status {
			return true
		}
	}
	return false
}
