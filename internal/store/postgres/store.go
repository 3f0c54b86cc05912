package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"tablequeue/waitlist-service/internal/models"
	"tablequeue/waitlist-service/internal/store"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const entryColumns = `entry_id, restaurant_id, request_id, customer_name, party_size, contact_phone, contact_email,
	status, queue_position, estimated_wait_minutes, table_type_hint, seated_table_type_id, is_remote,
	expected_arrival, confirmation_code, created_at, notified_at, seated_at, arrived_at, selected_at, departed_at`

const tableTypeColumns = `table_type_id, restaurant_id, name, capacity, table_count, turnover_minutes, active, updated_at`

type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) CreateEntry(ctx context.Context, input store.CreateEntryInput) (entry models.WaitlistEntry, created bool, err error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return models.WaitlistEntry{}, false, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	// Taking the next position locks the restaurant's counter row, so the
	// request id check below cannot race another insert for the restaurant.
	position, err := nextQueuePosition(ctx, tx, input.RestaurantID)
	if err != nil {
		return models.WaitlistEntry{}, false, err
	}

	if input.RequestID != "" {
		existing, found, err := findEntryByRequestID(ctx, tx, input.RestaurantID, input.RequestID)
		if err != nil {
			return models.WaitlistEntry{}, false, err
		}
		if found {
			if err = tx.Rollback(ctx); err != nil {
				return models.WaitlistEntry{}, false, err
			}
			return existing, false, nil
		}
	}

	createdAt := input.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	entry = models.WaitlistEntry{
		EntryID:          uuid.NewString(),
		RestaurantID:     input.RestaurantID,
		RequestID:        input.RequestID,
		CustomerName:     input.CustomerName,
		PartySize:        input.PartySize,
		ContactPhone:     input.ContactPhone,
		ContactEmail:     input.ContactEmail,
		Status:           input.Status,
		QueuePosition:    position,
		EstimatedWait:    input.EstimatedWait,
		TableTypeHint:    input.TableTypeHint,
		IsRemote:         input.IsRemote,
		ExpectedArrival:  input.ExpectedArrival,
		ConfirmationCode: input.ConfirmationCode,
		CreatedAt:        truncate(createdAt),
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO waitlist_entries (
			entry_id, restaurant_id, request_id, customer_name, party_size, contact_phone, contact_email,
			status, queue_position, estimated_wait_minutes, table_type_hint, is_remote,
			expected_arrival, confirmation_code, created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
	`, entry.EntryID, entry.RestaurantID, nullIfEmpty(entry.RequestID), entry.CustomerName, entry.PartySize,
		entry.ContactPhone, entry.ContactEmail, entry.Status, entry.QueuePosition, entry.EstimatedWait,
		entry.TableTypeHint, entry.IsRemote, entry.ExpectedArrival, nullIfEmpty(entry.ConfirmationCode), entry.CreatedAt)
	if err != nil {
		return models.WaitlistEntry{}, false, err
	}

	if err = recordEvent(ctx, tx, entry, store.EventEntryCreated, entry.CreatedAt); err != nil {
		return models.WaitlistEntry{}, false, err
	}
	if err = tx.Commit(ctx); err != nil {
		return models.WaitlistEntry{}, false, err
	}
	return entry, true, nil
}

func (s *Store) GetEntry(ctx context.Context, restaurantID, entryID string) (models.WaitlistEntry, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+entryColumns+`
		FROM waitlist_entries
		WHERE entry_id = $1 AND restaurant_id = $2
	`, entryID, restaurantID)
	entry, err := scanEntry(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.WaitlistEntry{}, store.ErrEntryNotFound
	}
	return entry, err
}

func (s *Store) ListEntries(ctx context.Context, restaurantID string, statuses ...models.EntryStatus) ([]models.WaitlistEntry, error) {
	var filter []string
	for _, status := range statuses {
		filter = append(filter, string(status))
	}
	rows, err := s.pool.Query(ctx, `
		SELECT `+entryColumns+`
		FROM waitlist_entries
		WHERE restaurant_id = $1 AND ($2::text[] IS NULL OR status = ANY($2))
		ORDER BY queue_position ASC
	`, restaurantID, filter)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []models.WaitlistEntry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

func (s *Store) FindByConfirmationCode(ctx context.Context, restaurantID, code string) (models.WaitlistEntry, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+entryColumns+`
		FROM waitlist_entries
		WHERE restaurant_id = $1 AND confirmation_code = $2
		ORDER BY (status NOT IN ('seated', 'cancelled')) DESC, created_at DESC
		LIMIT 1
	`, restaurantID, code)
	entry, err := scanEntry(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.WaitlistEntry{}, store.ErrCodeNotFound
	}
	return entry, err
}

func (s *Store) ConfirmationCodeInUse(ctx context.Context, restaurantID, code string) (bool, error) {
	var inUse bool
	row := s.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM waitlist_entries
			WHERE restaurant_id = $1 AND confirmation_code = $2 AND status NOT IN ('seated', 'cancelled')
		)
	`, restaurantID, code)
	if err := row.Scan(&inUse); err != nil {
		return false, err
	}
	return inUse, nil
}

func (s *Store) TransitionEntry(ctx context.Context, input store.TransitionInput) (entry models.WaitlistEntry, err error) {
	occurredAt := input.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = time.Now().UTC()
	}
	occurredAt = truncate(occurredAt)

	return s.updateLocked(ctx, input.RestaurantID, input.EntryID, func(current *models.WaitlistEntry) (string, error) {
		if current.Status != input.From {
			return "", store.ErrInvalidState
		}
		current.ApplyTransition(input.To, occurredAt, input.TableTypeID)
		return store.EventType(input.Action), nil
	}, occurredAt)
}

func (s *Store) RecordDeparture(ctx context.Context, restaurantID, entryID string, departedAt time.Time) (models.WaitlistEntry, error) {
	departedAt = truncate(departedAt)
	return s.updateLocked(ctx, restaurantID, entryID, func(current *models.WaitlistEntry) (string, error) {
		if current.Status != models.StatusSeated || current.DepartedAt != nil {
			return "", store.ErrInvalidState
		}
		current.DepartedAt = &departedAt
		return store.EventEntryDeparted, nil
	}, departedAt)
}

// updateLocked loads the entry with a row lock, lets mutate change it and
// writes it back together with its audit and outbox events. mutate returns
// the event type to record.
func (s *Store) updateLocked(ctx context.Context, restaurantID, entryID string, mutate func(*models.WaitlistEntry) (string, error), at time.Time) (entry models.WaitlistEntry, err error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return models.WaitlistEntry{}, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	row := tx.QueryRow(ctx, `
		SELECT `+entryColumns+`
		FROM waitlist_entries
		WHERE entry_id = $1 AND restaurant_id = $2
		FOR UPDATE
	`, entryID, restaurantID)
	entry, err = scanEntry(row)
	if errors.Is(err, pgx.ErrNoRows) {
		err = store.ErrEntryNotFound
		return models.WaitlistEntry{}, err
	}
	if err != nil {
		return models.WaitlistEntry{}, err
	}

	eventType, err := mutate(&entry)
	if err != nil {
		return models.WaitlistEntry{}, err
	}

	_, err = tx.Exec(ctx, `
		UPDATE waitlist_entries
		SET status = $1, seated_table_type_id = $2, notified_at = $3, seated_at = $4,
			arrived_at = $5, selected_at = $6, departed_at = $7
		WHERE entry_id = $8
	`, entry.Status, entry.SeatedTableTypeID, entry.NotifiedAt, entry.SeatedAt,
		entry.ArrivedAt, entry.SelectedAt, entry.DepartedAt, entry.EntryID)
	if err != nil {
		return models.WaitlistEntry{}, err
	}

	if err = recordEvent(ctx, tx, entry, eventType, at); err != nil {
		return models.WaitlistEntry{}, err
	}
	if err = tx.Commit(ctx); err != nil {
		return models.WaitlistEntry{}, err
	}
	return entry, nil
}

func (s *Store) ListRestaurantsWithPendingRemote(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT DISTINCT restaurant_id
		FROM waitlist_entries
		WHERE status = 'remote_pending'
		ORDER BY restaurant_id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *Store) ListEntryEvents(ctx context.Context, restaurantID, entryID string) ([]store.EntryEvent, error) {
	if _, err := s.GetEntry(ctx, restaurantID, entryID); err != nil {
		return nil, err
	}
	rows, err := s.pool.Query(ctx, `
		SELECT entry_id, entry_seq, type, payload, created_at, prev_hash, hash
		FROM entry_events
		WHERE entry_id = $1
		ORDER BY entry_seq ASC
	`, entryID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []store.EntryEvent
	for rows.Next() {
		var event store.EntryEvent
		var payload []byte
		if err := rows.Scan(&event.EntryID, &event.EntrySeq, &event.Type, &payload, &event.CreatedAt, &event.PrevHash, &event.Hash); err != nil {
			return nil, err
		}
		event.Payload = payload
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return events, nil
}

func (s *Store) ListTableTypes(ctx context.Context, restaurantID string, activeOnly bool) ([]models.TableType, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+tableTypeColumns+`
		FROM table_types
		WHERE restaurant_id = $1 AND (NOT $2 OR active)
		ORDER BY capacity ASC, name ASC
	`, restaurantID, activeOnly)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tables []models.TableType
	for rows.Next() {
		table, err := scanTableType(rows)
		if err != nil {
			return nil, err
		}
		tables = append(tables, table)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return tables, nil
}

func (s *Store) GetTableType(ctx context.Context, restaurantID, tableTypeID string) (models.TableType, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+tableTypeColumns+`
		FROM table_types
		WHERE table_type_id = $1 AND restaurant_id = $2
	`, tableTypeID, restaurantID)
	table, err := scanTableType(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.TableType{}, store.ErrTableTypeNotFound
	}
	return table, err
}

func (s *Store) SaveTableType(ctx context.Context, table models.TableType) (models.TableType, error) {
	if table.TableTypeID == "" {
		table.TableTypeID = uuid.NewString()
	}
	row := s.pool.QueryRow(ctx, `
		INSERT INTO table_types (table_type_id, restaurant_id, name, capacity, table_count, turnover_minutes, active, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now())
		ON CONFLICT (table_type_id) DO UPDATE SET
			name = EXCLUDED.name,
			capacity = EXCLUDED.capacity,
			table_count = EXCLUDED.table_count,
			turnover_minutes = EXCLUDED.turnover_minutes,
			active = EXCLUDED.active,
			updated_at = EXCLUDED.updated_at
		WHERE table_types.restaurant_id = EXCLUDED.restaurant_id
		RETURNING `+tableTypeColumns+`
	`, table.TableTypeID, table.RestaurantID, table.Name, table.Capacity, table.Count, table.TurnoverMinutes, table.Active)
	saved, err := scanTableType(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.TableType{}, store.ErrTableTypeNotFound
	}
	return saved, err
}

func (s *Store) UpdateTurnoverMinutes(ctx context.Context, restaurantID, tableTypeID string, minutes int) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE table_types
		SET turnover_minutes = $1, updated_at = now()
		WHERE table_type_id = $2 AND restaurant_id = $3
	`, minutes, tableTypeID, restaurantID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return store.ErrTableTypeNotFound
	}
	return nil
}

func (s *Store) ImportDemandSamples(ctx context.Context, restaurantID string, samples []models.DemandSample) (err error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	for _, sample := range samples {
		_, err = tx.Exec(ctx, `
			INSERT INTO demand_samples (restaurant_id, sample_date, hour, avg_wait_minutes, avg_party_size, sample_count)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (restaurant_id, sample_date, hour) DO UPDATE SET
				avg_wait_minutes = EXCLUDED.avg_wait_minutes,
				avg_party_size = EXCLUDED.avg_party_size,
				sample_count = EXCLUDED.sample_count
		`, restaurantID, sample.Date.UTC().Truncate(24*time.Hour), sample.Hour, sample.AvgWaitTime, sample.AvgPartySize, sample.SampleCount)
		if err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

// ListDemandSamples returns imported samples plus hourly buckets computed
// from the restaurant's own seated entries, grouped in loc's wall clock.
func (s *Store) ListDemandSamples(ctx context.Context, restaurantID string, from, to time.Time, loc *time.Location) ([]models.DemandSample, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT sample_date::timestamp, hour, avg_wait_minutes, avg_party_size, sample_count
		FROM demand_samples
		WHERE restaurant_id = $1 AND sample_date >= ($2::timestamptz)::date AND sample_date < $3::timestamptz
		UNION ALL
		SELECT date_trunc('day', created_at AT TIME ZONE $4::text),
			EXTRACT(HOUR FROM created_at AT TIME ZONE $4::text)::int,
			AVG(EXTRACT(EPOCH FROM (seated_at - created_at)) / 60.0)::float8,
			AVG(party_size)::float8,
			COUNT(*)::int
		FROM waitlist_entries
		WHERE restaurant_id = $1 AND seated_at IS NOT NULL AND created_at >= $2 AND created_at < $3
		GROUP BY 1, 2
		ORDER BY 1, 2
	`, restaurantID, from, to, zoneName(loc))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var samples []models.DemandSample
	for rows.Next() {
		var sample models.DemandSample
		if err := rows.Scan(&sample.Date, &sample.Hour, &sample.AvgWaitTime, &sample.AvgPartySize, &sample.SampleCount); err != nil {
			return nil, err
		}
		sample.Date = sample.Date.UTC()
		sample.DayOfWeek = sample.Date.Weekday()
		samples = append(samples, sample)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return samples, nil
}

func (s *Store) ListSeatingSamples(ctx context.Context, restaurantID string, since time.Time) ([]models.SeatingSample, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT entry_id, seated_table_type_id, seated_at, EXTRACT(EPOCH FROM (departed_at - seated_at))::float8 / 60.0
		FROM waitlist_entries
		WHERE restaurant_id = $1 AND seated_at IS NOT NULL AND departed_at IS NOT NULL
			AND seated_table_type_id <> '' AND seated_at >= $2
		ORDER BY seated_at ASC
	`, restaurantID, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var samples []models.SeatingSample
	for rows.Next() {
		var sample models.SeatingSample
		if err := rows.Scan(&sample.EntryID, &sample.TableTypeID, &sample.SeatedAt, &sample.DurationMinutes); err != nil {
			return nil, err
		}
		samples = append(samples, sample)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return samples, nil
}

func (s *Store) ClaimOutboxEvents(ctx context.Context, limit int, deliver store.DeliverFunc) (int, error) {
	if limit <= 0 {
		limit = 100
	}
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return 0, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	rows, err := tx.Query(ctx, `
		SELECT event_id, restaurant_id, type, payload_json, created_at
		FROM outbox_events
		WHERE published_at IS NULL
		ORDER BY seq ASC
		LIMIT $1
		FOR UPDATE SKIP LOCKED
	`, limit)
	if err != nil {
		return 0, err
	}
	var events []store.OutboxEvent
	for rows.Next() {
		var event store.OutboxEvent
		var payload []byte
		if err := rows.Scan(&event.EventID, &event.RestaurantID, &event.Type, &payload, &event.CreatedAt); err != nil {
			rows.Close()
			return 0, err
		}
		event.Payload = payload
		events = append(events, event)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}
	if len(events) == 0 {
		return 0, nil
	}

	delivered, deliverErr := deliver(ctx, events)
	if delivered > len(events) {
		delivered = len(events)
	}
	if delivered < 0 {
		delivered = 0
	}
	if delivered > 0 {
		ids := make([]string, 0, delivered)
		for _, event := range events[:delivered] {
			ids = append(ids, event.EventID)
		}
		if _, err := tx.Exec(ctx, `
			UPDATE outbox_events
			SET published_at = clock_timestamp()
			WHERE event_id = ANY($1)
		`, ids); err != nil {
			return 0, err
		}
		if err := tx.Commit(ctx); err != nil {
			return 0, err
		}
	}
	return delivered, deliverErr
}

func nextQueuePosition(ctx context.Context, tx pgx.Tx, restaurantID string) (int64, error) {
	var next int64
	row := tx.QueryRow(ctx, `
		INSERT INTO restaurant_queue_state (restaurant_id, last_position)
		VALUES ($1, 1)
		ON CONFLICT (restaurant_id)
		DO UPDATE SET last_position = restaurant_queue_state.last_position + 1
		RETURNING last_position
	`, restaurantID)
	if err := row.Scan(&next); err != nil {
		return 0, err
	}
	return next, nil
}

func findEntryByRequestID(ctx context.Context, tx pgx.Tx, restaurantID, requestID string) (models.WaitlistEntry, bool, error) {
	row := tx.QueryRow(ctx, `
		SELECT `+entryColumns+`
		FROM waitlist_entries
		WHERE restaurant_id = $1 AND request_id = $2
	`, restaurantID, requestID)
	entry, err := scanEntry(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.WaitlistEntry{}, false, nil
	}
	if err != nil {
		return models.WaitlistEntry{}, false, err
	}
	return entry, true, nil
}

// recordEvent writes the outbox event and appends to the entry's hash
// chain inside tx.
func recordEvent(ctx context.Context, tx pgx.Tx, entry models.WaitlistEntry, eventType string, at time.Time) error {
	payload, err := store.EntryPayload(entry)
	if err != nil {
		return err
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO outbox_events (event_id, restaurant_id, type, payload_json, created_at)
		VALUES ($1, $2, $3, $4, clock_timestamp())
	`, uuid.NewString(), entry.RestaurantID, eventType, payload)
	if err != nil {
		return err
	}

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, entry.EntryID); err != nil {
		return err
	}
	var prev *store.EntryEvent
	var last store.EntryEvent
	row := tx.QueryRow(ctx, `
		SELECT entry_seq, hash
		FROM entry_events
		WHERE entry_id = $1
		ORDER BY entry_seq DESC
		LIMIT 1
	`, entry.EntryID)
	switch err := row.Scan(&last.EntrySeq, &last.Hash); {
	case err == nil:
		prev = &last
	case !errors.Is(err, pgx.ErrNoRows):
		return err
	}

	event := store.NextEntryEvent(prev, entry.EntryID, eventType, payload, truncate(at))
	_, err = tx.Exec(ctx, `
		INSERT INTO entry_events (entry_id, entry_seq, type, payload, created_at, prev_hash, hash)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, event.EntryID, event.EntrySeq, event.Type, []byte(event.Payload), event.CreatedAt, event.PrevHash, event.Hash)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (models.WaitlistEntry, error) {
	var entry models.WaitlistEntry
	var requestID, code sql.NullString
	var expectedArrival, notifiedAt, seatedAt, arrivedAt, selectedAt, departedAt sql.NullTime
	err := row.Scan(
		&entry.EntryID, &entry.RestaurantID, &requestID, &entry.CustomerName, &entry.PartySize,
		&entry.ContactPhone, &entry.ContactEmail, &entry.Status, &entry.QueuePosition, &entry.EstimatedWait,
		&entry.TableTypeHint, &entry.SeatedTableTypeID, &entry.IsRemote, &expectedArrival, &code,
		&entry.CreatedAt, &notifiedAt, &seatedAt, &arrivedAt, &selectedAt, &departedAt,
	)
	if err != nil {
		return models.WaitlistEntry{}, err
	}
	entry.RequestID = requestID.String
	entry.ConfirmationCode = code.String
	entry.CreatedAt = entry.CreatedAt.UTC()
	entry.ExpectedArrival = nullTimePtr(expectedArrival)
	entry.NotifiedAt = nullTimePtr(notifiedAt)
	entry.SeatedAt = nullTimePtr(seatedAt)
	entry.ArrivedAt = nullTimePtr(arrivedAt)
	entry.SelectedAt = nullTimePtr(selectedAt)
	entry.DepartedAt = nullTimePtr(departedAt)
	return entry, nil
}

func scanTableType(row rowScanner) (models.TableType, error) {
	var table models.TableType
	err := row.Scan(&table.TableTypeID, &table.RestaurantID, &table.Name, &table.Capacity, &table.Count,
		&table.TurnoverMinutes, &table.Active, &table.UpdatedAt)
	return table, err
}

func nullIfEmpty(value string) interface{} {
	if value == "" {
		return nil
	}
	return value
}

func nullTimePtr(value sql.NullTime) *time.Time {
	if !value.Valid {
		return nil
	}
	t := value.Time.UTC()
	return &t
}

// truncate drops precision postgres cannot store so hashes computed before
// a write still verify after a read.
func truncate(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}

// zoneName is the IANA name postgres understands for loc. The process-local
// zone has no portable name, so it falls back to UTC.
func zoneName(loc *time.Location) string {
	if loc == nil || loc.String() == "Local" || loc.String() == "" {
		return "UTC"
	}
	return loc.String()
}
