package postgres

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"tablequeue/waitlist-service/internal/models"
	"tablequeue/waitlist-service/internal/store"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

func TestCreateEntryConcurrentPositions(t *testing.T) {
	ctx := context.Background()
	st, _, cleanup := setupTestStore(t, ctx)
	t.Cleanup(cleanup)

	restaurantID := uuid.NewString()
	const n = 8
	var wg sync.WaitGroup
	results := make(chan createResult, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			entry, _, err := st.CreateEntry(ctx, store.CreateEntryInput{
				RestaurantID: restaurantID,
				CustomerName: "Party",
				PartySize:    2,
				Status:       models.StatusWaiting,
				CreatedAt:    time.Now().UTC(),
			})
			results <- createResult{position: entry.QueuePosition, err: err}
		}()
	}
	wg.Wait()
	close(results)

	seen := map[int64]bool{}
	for result := range results {
		if result.err != nil {
			t.Fatalf("create entry error: %v", result.err)
		}
		if seen[result.position] {
			t.Fatalf("position %d assigned twice", result.position)
		}
		seen[result.position] = true
	}
	for p := int64(1); p <= n; p++ {
		if !seen[p] {
			t.Fatalf("expected position %d to be assigned", p)
		}
	}
}

func TestCreateEntryIdempotency(t *testing.T) {
	ctx := context.Background()
	st, pool, cleanup := setupTestStore(t, ctx)
	t.Cleanup(cleanup)

	restaurantID := uuid.NewString()
	requestID := uuid.NewString()
	first := createEntry(t, ctx, st, restaurantID, requestID)
	second := createEntry(t, ctx, st, restaurantID, requestID)

	if first.EntryID != second.EntryID {
		t.Fatalf("expected same entry ID for duplicate request")
	}

	var count int
	row := pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM outbox_events WHERE type = $1
	`, store.EventEntryCreated)
	if err := row.Scan(&count); err != nil {
		t.Fatalf("count outbox events: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 %s event, got %d", store.EventEntryCreated, count)
	}

	third := createEntry(t, ctx, st, restaurantID, uuid.NewString())
	if third.QueuePosition != first.QueuePosition+1 {
		t.Fatalf("expected position %d after duplicate, got %d", first.QueuePosition+1, third.QueuePosition)
	}
}

func TestTransitionEntryCompareAndSet(t *testing.T) {
	ctx := context.Background()
	st, _, cleanup := setupTestStore(t, ctx)
	t.Cleanup(cleanup)

	restaurantID := uuid.NewString()
	entry := createEntry(t, ctx, st, restaurantID, "")

	input := store.TransitionInput{
		RestaurantID: restaurantID,
		EntryID:      entry.EntryID,
		Action:       store.ActionSelect,
		From:         models.StatusWaiting,
		To:           models.StatusProcessing,
		OccurredAt:   time.Now().UTC(),
	}
	var wg sync.WaitGroup
	errs := make(chan error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := st.TransitionEntry(ctx, input)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	succeeded := 0
	for err := range errs {
		switch {
		case err == nil:
			succeeded++
		case err != store.ErrInvalidState:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if succeeded != 1 {
		t.Fatalf("expected exactly one selection, got %d", succeeded)
	}

	events, err := st.ListEntryEvents(ctx, restaurantID, entry.EntryID)
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if err := store.VerifyEntryEvents(events); err != nil {
		t.Fatalf("verify chain: %v", err)
	}
}

func TestSeatingSamplesAndTurnoverUpdate(t *testing.T) {
	ctx := context.Background()
	st, _, cleanup := setupTestStore(t, ctx)
	t.Cleanup(cleanup)

	restaurantID := uuid.NewString()
	table, err := st.SaveTableType(ctx, models.TableType{
		RestaurantID: restaurantID, Name: "Four top", Capacity: 4, Count: 3, TurnoverMinutes: 60, Active: true,
	})
	if err != nil {
		t.Fatalf("save table type: %v", err)
	}

	entry := createEntry(t, ctx, st, restaurantID, "")
	seatedAt := time.Now().UTC().Add(-time.Hour)
	if _, err := st.TransitionEntry(ctx, store.TransitionInput{
		RestaurantID: restaurantID,
		EntryID:      entry.EntryID,
		Action:       store.ActionSeat,
		From:         models.StatusWaiting,
		To:           models.StatusSeated,
		TableTypeID:  table.TableTypeID,
		OccurredAt:   seatedAt,
	}); err != nil {
		t.Fatalf("seat: %v", err)
	}
	if _, err := st.RecordDeparture(ctx, restaurantID, entry.EntryID, seatedAt.Add(75*time.Minute)); err != nil {
		t.Fatalf("depart: %v", err)
	}

	samples, err := st.ListSeatingSamples(ctx, restaurantID, seatedAt.Add(-time.Minute))
	if err != nil {
		t.Fatalf("list seating samples: %v", err)
	}
	if len(samples) != 1 || samples[0].TableTypeID != table.TableTypeID {
		t.Fatalf("unexpected samples: %+v", samples)
	}
	if samples[0].DurationMinutes < 74.99 || samples[0].DurationMinutes > 75.01 {
		t.Fatalf("expected 75 minutes, got %f", samples[0].DurationMinutes)
	}

	if err := st.UpdateTurnoverMinutes(ctx, restaurantID, table.TableTypeID, 75); err != nil {
		t.Fatalf("update turnover: %v", err)
	}
	saved, err := st.GetTableType(ctx, restaurantID, table.TableTypeID)
	if err != nil {
		t.Fatalf("get table type: %v", err)
	}
	if saved.TurnoverMinutes != 75 {
		t.Fatalf("expected 75, got %d", saved.TurnoverMinutes)
	}
	if err := st.UpdateTurnoverMinutes(ctx, uuid.NewString(), table.TableTypeID, 10); err != store.ErrTableTypeNotFound {
		t.Fatalf("expected ErrTableTypeNotFound, got %v", err)
	}
}

func TestClaimOutboxEventsMarksDeliveredPrefix(t *testing.T) {
	ctx := context.Background()
	st, _, cleanup := setupTestStore(t, ctx)
	t.Cleanup(cleanup)

	restaurantID := uuid.NewString()
	createEntry(t, ctx, st, restaurantID, "")
	createEntry(t, ctx, st, restaurantID, "")

	brokerDown := errors.New("broker down")
	var first []store.OutboxEvent
	n, err := st.ClaimOutboxEvents(ctx, 10, func(ctx context.Context, events []store.OutboxEvent) (int, error) {
		first = events
		return 1, brokerDown
	})
	if !errors.Is(err, brokerDown) || n != 1 {
		t.Fatalf("expected 1 delivered and broker error, got %d, %v", n, err)
	}
	if len(first) != 2 {
		t.Fatalf("expected 2 claimed events, got %d", len(first))
	}

	var second []store.OutboxEvent
	n, err = st.ClaimOutboxEvents(ctx, 10, func(ctx context.Context, events []store.OutboxEvent) (int, error) {
		second = events
		return len(events), nil
	})
	if err != nil || n != 1 {
		t.Fatalf("expected 1 delivered, got %d, %v", n, err)
	}
	if second[0].EventID != first[1].EventID {
		t.Fatalf("expected the undelivered event %s, got %s", first[1].EventID, second[0].EventID)
	}

	n, err = st.ClaimOutboxEvents(ctx, 10, func(ctx context.Context, events []store.OutboxEvent) (int, error) {
		t.Fatalf("nothing should be pending, got %d events", len(events))
		return 0, nil
	})
	if err != nil || n != 0 {
		t.Fatalf("expected empty claim, got %d, %v", n, err)
	}
}

func TestClaimOutboxEventsPicksUpLateCommits(t *testing.T) {
	ctx := context.Background()
	st, pool, cleanup := setupTestStore(t, ctx)
	t.Cleanup(cleanup)

	insert := func(tx pgx.Tx, eventID string) {
		t.Helper()
		if _, err := tx.Exec(ctx, `
			INSERT INTO outbox_events (event_id, restaurant_id, type, payload_json)
			VALUES ($1, 'r-1', 'waitlist.entry.created', '{}'::jsonb)
		`, eventID); err != nil {
			t.Fatalf("insert outbox event: %v", err)
		}
	}
	claimAll := func() []string {
		t.Helper()
		var ids []string
		if _, err := st.ClaimOutboxEvents(ctx, 10, func(ctx context.Context, events []store.OutboxEvent) (int, error) {
			for _, event := range events {
				ids = append(ids, event.EventID)
			}
			return len(events), nil
		}); err != nil {
			t.Fatalf("claim: %v", err)
		}
		return ids
	}

	slow, err := pool.Begin(ctx)
	if err != nil {
		t.Fatalf("begin slow tx: %v", err)
	}
	defer func() { _ = slow.Rollback(ctx) }()
	insert(slow, "slow")

	fast, err := pool.Begin(ctx)
	if err != nil {
		t.Fatalf("begin fast tx: %v", err)
	}
	insert(fast, "fast")
	if err := fast.Commit(ctx); err != nil {
		t.Fatalf("commit fast tx: %v", err)
	}

	if ids := claimAll(); len(ids) != 1 || ids[0] != "fast" {
		t.Fatalf("expected only the committed event, got %v", ids)
	}

	if err := slow.Commit(ctx); err != nil {
		t.Fatalf("commit slow tx: %v", err)
	}
	if ids := claimAll(); len(ids) != 1 || ids[0] != "slow" {
		t.Fatalf("expected the late commit to be claimed, got %v", ids)
	}
}

func TestClaimOutboxEventsSkipsLockedRows(t *testing.T) {
	ctx := context.Background()
	st, _, cleanup := setupTestStore(t, ctx)
	t.Cleanup(cleanup)

	restaurantID := uuid.NewString()
	createEntry(t, ctx, st, restaurantID, "")

	claimed := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		_, err := st.ClaimOutboxEvents(ctx, 10, func(ctx context.Context, events []store.OutboxEvent) (int, error) {
			close(claimed)
			<-release
			return len(events), nil
		})
		done <- err
	}()
	<-claimed

	n, err := st.ClaimOutboxEvents(ctx, 10, func(ctx context.Context, events []store.OutboxEvent) (int, error) {
		return len(events), nil
	})
	close(release)
	if err != nil || n != 0 {
		t.Fatalf("expected locked rows to be skipped, got %d, %v", n, err)
	}
	if err := <-done; err != nil {
		t.Fatalf("first claim: %v", err)
	}
}

func TestListDemandSamplesBucketsByLocalHour(t *testing.T) {
	ctx := context.Background()
	st, _, cleanup := setupTestStore(t, ctx)
	t.Cleanup(cleanup)

	ny, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	restaurantID := uuid.NewString()
	// Wednesday 18:30 in New York, Wednesday 22:30 UTC
	createdAt := time.Date(2026, 3, 11, 22, 30, 0, 0, time.UTC)
	entry, _, err := st.CreateEntry(ctx, store.CreateEntryInput{
		RestaurantID: restaurantID,
		CustomerName: "Party",
		PartySize:    4,
		Status:       models.StatusWaiting,
		CreatedAt:    createdAt,
	})
	if err != nil {
		t.Fatalf("create entry: %v", err)
	}
	if _, err := st.TransitionEntry(ctx, store.TransitionInput{
		RestaurantID: restaurantID,
		EntryID:      entry.EntryID,
		Action:       store.ActionSeat,
		From:         models.StatusWaiting,
		To:           models.StatusSeated,
		OccurredAt:   createdAt.Add(10 * time.Minute),
	}); err != nil {
		t.Fatalf("seat: %v", err)
	}

	samples, err := st.ListDemandSamples(ctx, restaurantID, createdAt.Add(-time.Hour), createdAt.Add(time.Hour), ny)
	if err != nil {
		t.Fatalf("list demand samples: %v", err)
	}
	if len(samples) != 1 {
		t.Fatalf("expected 1 sample, got %d", len(samples))
	}
	if samples[0].Hour != 18 || samples[0].DayOfWeek != time.Wednesday {
		t.Fatalf("expected Wednesday 18:00 bucket, got %+v", samples[0])
	}
	if samples[0].AvgWaitTime < 9.99 || samples[0].AvgWaitTime > 10.01 {
		t.Fatalf("expected 10 minute wait, got %f", samples[0].AvgWaitTime)
	}
}

func TestImportedDemandSamples(t *testing.T) {
	ctx := context.Background()
	st, _, cleanup := setupTestStore(t, ctx)
	t.Cleanup(cleanup)

	restaurantID := uuid.NewString()
	day := time.Date(2026, 3, 7, 0, 0, 0, 0, time.UTC)
	samples := []models.DemandSample{{Date: day, Hour: 19, AvgWaitTime: 20, AvgPartySize: 3, SampleCount: 30}}
	if err := st.ImportDemandSamples(ctx, restaurantID, samples); err != nil {
		t.Fatalf("import: %v", err)
	}
	samples[0].AvgWaitTime = 25
	if err := st.ImportDemandSamples(ctx, restaurantID, samples); err != nil {
		t.Fatalf("re-import: %v", err)
	}

	got, err := st.ListDemandSamples(ctx, restaurantID, day.AddDate(0, 0, -1), day.AddDate(0, 0, 1), time.UTC)
	if err != nil {
		t.Fatalf("list demand samples: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 sample, got %d", len(got))
	}
	if got[0].DayOfWeek != time.Saturday || got[0].Hour != 19 || got[0].AvgWaitTime != 25 {
		t.Fatalf("unexpected sample: %+v", got[0])
	}
}

type createResult struct {
	position int64
	err      error
}

func setupTestStore(t *testing.T, ctx context.Context) (*Store, *pgxpool.Pool, func()) {
	t.Helper()
	dsn := os.Getenv("TEST_DB_DSN")
	if dsn == "" {
		dsn = os.Getenv("DB_DSN")
	}
	if dsn == "" {
		t.Skip("TEST_DB_DSN or DB_DSN is required for integration tests")
	}

	schema := "test_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	if err := createSchema(ctx, dsn, schema); err != nil {
		t.Fatalf("create schema: %v", err)
	}

	pool, err := newPoolWithSchema(ctx, dsn, schema)
	if err != nil {
		t.Fatalf("open pool: %v", err)
	}

	if err := applyMigrations(ctx, pool); err != nil {
		pool.Close()
		t.Fatalf("apply migrations: %v", err)
	}

	cleanup := func() {
		pool.Close()
		_ = dropSchema(context.Background(), dsn, schema)
	}
	return NewStore(pool), pool, cleanup
}

func createSchema(ctx context.Context, dsn, schema string) error {
	conn, err := pgx.Connect(ctx, dsn)
	if err != nil {
		return err
	}
	defer conn.Close(ctx)
	_, err = conn.Exec(ctx, "CREATE SCHEMA "+schema)
	return err
}

func dropSchema(ctx context.Context, dsn, schema string) error {
	conn, err := pgx.Connect(ctx, dsn)
	if err != nil {
		return err
	}
	defer conn.Close(ctx)
	_, err = conn.Exec(ctx, "DROP SCHEMA "+schema+" CASCADE")
	return err
}

func newPoolWithSchema(ctx context.Context, dsn, schema string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	cfg.ConnConfig.RuntimeParams["search_path"] = schema
	return pgxpool.NewWithConfig(ctx, cfg)
}

func applyMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	dir := filepath.Join("..", "..", "..", "migrations")
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	var files []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		files = append(files, entry.Name())
	}
	sort.Strings(files)
	for _, name := range files {
		content, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return err
		}
		if strings.TrimSpace(string(content)) == "" {
			continue
		}
		if _, err := pool.Exec(ctx, string(content)); err != nil {
			return err
		}
	}
	return nil
}

func createEntry(t *testing.T, ctx context.Context, st *Store, restaurantID, requestID string) models.WaitlistEntry {
	t.Helper()
	entry, _, err := st.CreateEntry(ctx, store.CreateEntryInput{
		RequestID:    requestID,
		RestaurantID: restaurantID,
		CustomerName: "Party",
		PartySize:    4,
		Status:       models.StatusWaiting,
		CreatedAt:    time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("create entry: %v", err)
	}
	return entry
}
