// Package waitlist is the queue engine: it assigns queue positions, applies
// status transitions, checks remote parties in, expires no-shows and picks
// the next party to seat. All mutations for one restaurant are serialized.
package waitlist

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"tablequeue/waitlist-service/internal/demand"
	"tablequeue/waitlist-service/internal/inventory"
	"tablequeue/waitlist-service/internal/models"
	"tablequeue/waitlist-service/internal/store"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// DefaultGraceMinutes is how long past its expected arrival a remote entry
// may stay unconfirmed before it expires.
const DefaultGraceMinutes = 15

const DefaultHistoryWeeks = 8

var tracer = otel.Tracer("tablequeue/waitlist")

type Service struct {
	store        store.Store
	log          logrus.FieldLogger
	now          func() time.Time
	codes        CodeGenerator
	locks        *restaurantLocks
	historyWeeks int
	location     *time.Location
}

type Options struct {
	Logger       logrus.FieldLogger
	Now          func() time.Time
	Codes        CodeGenerator
	HistoryWeeks int
	// Location is the restaurant's wall clock for demand rules and history
	// buckets. Nil means UTC.
	Location *time.Location
}

func NewService(st store.Store, options Options) *Service {
	s := &Service{
		store:        st,
		log:          options.Logger,
		now:          options.Now,
		codes:        options.Codes,
		locks:        newRestaurantLocks(),
		historyWeeks: options.HistoryWeeks,
		location:     options.Location,
	}
	if s.log == nil {
		s.log = logrus.StandardLogger()
	}
	if s.now == nil {
		s.now = func() time.Time { return time.Now().UTC() }
	}
	if s.codes == nil {
		s.codes = RandomCode
	}
	if s.historyWeeks <= 0 {
		s.historyWeeks = DefaultHistoryWeeks
	}
	if s.location == nil {
		s.location = time.UTC
	}
	return s
}

type EnqueueInput struct {
	RestaurantID    string     `json:"restaurant_id"`
	RequestID       string     `json:"request_id"`
	CustomerName    string     `json:"customer_name"`
	PartySize       int        `json:"party_size"`
	ContactPhone    string     `json:"contact_phone"`
	ContactEmail    string     `json:"contact_email"`
	TableTypeHint   string     `json:"table_type_hint"`
	IsRemote        bool       `json:"is_remote"`
	ExpectedArrival *time.Time `json:"expected_arrival"`
}

func (in *EnqueueInput) normalize() {
	in.RestaurantID = strings.TrimSpace(in.RestaurantID)
	in.RequestID = strings.TrimSpace(in.RequestID)
	in.CustomerName = strings.TrimSpace(in.CustomerName)
	in.ContactPhone = strings.TrimSpace(in.ContactPhone)
	in.ContactEmail = strings.TrimSpace(in.ContactEmail)
	in.TableTypeHint = strings.TrimSpace(in.TableTypeHint)
}

func (in EnqueueInput) validate() error {
	var problems []string
	if in.RestaurantID == "" {
		problems = append(problems, "restaurant_id is required")
	}
	if in.CustomerName == "" {
		problems = append(problems, "customer_name is required")
	}
	if in.PartySize < 1 {
		problems = append(problems, "party_size must be at least 1")
	}
	if in.IsRemote && in.ExpectedArrival == nil {
		problems = append(problems, "expected_arrival is required for remote entries")
	}
	if in.RequestID != "" && !isValidUUID(in.RequestID) {
		problems = append(problems, "request_id must be a UUID when provided")
	}
	if in.ContactPhone != "" && !isValidPhone(in.ContactPhone) {
		problems = append(problems, "contact_phone must be 8-16 digits")
	}
	if in.ContactEmail != "" && !strings.Contains(in.ContactEmail, "@") {
		problems = append(problems, "contact_email is not an email address")
	}
	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}

// Enqueue adds a party to the restaurant's queue. Remote parties start in
// remote_pending with a confirmation code; walk-ins start waiting. A
// repeated RequestID returns the entry created the first time.
func (s *Service) Enqueue(ctx context.Context, input EnqueueInput) (entry models.WaitlistEntry, err error) {
	ctx, span := tracer.Start(ctx, "waitlist.Enqueue")
	defer func() { endSpan(span, err) }()

	input.normalize()
	if err := input.validate(); err != nil {
		return models.WaitlistEntry{}, err
	}
	span.SetAttributes(attribute.String("restaurant_id", input.RestaurantID))

	unlock := s.locks.lock(input.RestaurantID)
	defer unlock()

	tables, err := s.store.ListTableTypes(ctx, input.RestaurantID, true)
	if err != nil {
		return models.WaitlistEntry{}, err
	}
	if input.TableTypeHint != "" && !hasTable(tables, input.TableTypeHint) {
		return models.WaitlistEntry{}, &ValidationError{Problems: []string{"table_type_hint does not match an active table type"}}
	}
	ahead, err := s.store.ListEntries(ctx, input.RestaurantID, models.ActiveStatuses...)
	if err != nil {
		return models.WaitlistEntry{}, err
	}

	create := store.CreateEntryInput{
		RequestID:     input.RequestID,
		RestaurantID:  input.RestaurantID,
		CustomerName:  input.CustomerName,
		PartySize:     input.PartySize,
		ContactPhone:  input.ContactPhone,
		ContactEmail:  input.ContactEmail,
		Status:        models.StatusWaiting,
		EstimatedWait: demand.EstimateWait(input.PartySize, ahead, inventory.New(tables)),
		TableTypeHint: input.TableTypeHint,
		CreatedAt:     s.now(),
	}
	if input.IsRemote {
		code, err := s.uniqueCode(ctx, input.RestaurantID)
		if err != nil {
			return models.WaitlistEntry{}, err
		}
		arrival := input.ExpectedArrival.UTC()
		create.Status = models.StatusRemotePending
		create.IsRemote = true
		create.ExpectedArrival = &arrival
		create.ConfirmationCode = code
	}

	if err := ctx.Err(); err != nil {
		return models.WaitlistEntry{}, err
	}
	entry, created, err := s.store.CreateEntry(ctx, create)
	if err != nil {
		return models.WaitlistEntry{}, err
	}
	if created {
		s.log.WithFields(logrus.Fields{
			"restaurant_id": entry.RestaurantID,
			"entry_id":      entry.EntryID,
			"position":      entry.QueuePosition,
			"remote":        entry.IsRemote,
		}).Info("entry enqueued")
	}
	return entry, nil
}

type UpdateStatusInput struct {
	RestaurantID string             `json:"restaurant_id"`
	EntryID      string             `json:"entry_id"`
	Status       models.EntryStatus `json:"status"`
	TableTypeID  string             `json:"table_type_id"`
}

// UpdateStatus applies a staff-requested status change. Only notified,
// seated, cancelled and remote_confirmed may be requested directly.
func (s *Service) UpdateStatus(ctx context.Context, input UpdateStatusInput) (entry models.WaitlistEntry, err error) {
	ctx, span := tracer.Start(ctx, "waitlist.UpdateStatus")
	defer func() { endSpan(span, err) }()
	span.SetAttributes(
		attribute.String("restaurant_id", input.RestaurantID),
		attribute.String("entry_id", input.EntryID),
		attribute.String("status", string(input.Status)),
	)

	if !input.Status.Valid() {
		return models.WaitlistEntry{}, &ValidationError{Problems: []string{fmt.Sprintf("unknown status %q", input.Status)}}
	}

	unlock := s.locks.lock(input.RestaurantID)
	defer unlock()

	current, err := s.store.GetEntry(ctx, input.RestaurantID, input.EntryID)
	if err != nil {
		return models.WaitlistEntry{}, notFound(err, input.EntryID)
	}
	action, ok := store.ActionForStatus(input.Status)
	if !ok {
		return models.WaitlistEntry{}, &InvalidTransitionError{From: current.Status, To: input.Status}
	}
	if input.TableTypeID != "" {
		if action != store.ActionSeat {
			return models.WaitlistEntry{}, &ValidationError{Problems: []string{"table_type_id only applies when seating"}}
		}
		if _, err := s.store.GetTableType(ctx, input.RestaurantID, input.TableTypeID); err != nil {
			return models.WaitlistEntry{}, notFound(err, input.TableTypeID)
		}
	}
	return s.transition(ctx, current, action, input.Status, input.TableTypeID)
}

// CheckIn marks a remote party as arrived. The entry keeps the queue
// position it got when it joined. Checking in twice returns the entry
// unchanged.
func (s *Service) CheckIn(ctx context.Context, restaurantID, code string) (entry models.WaitlistEntry, err error) {
	ctx, span := tracer.Start(ctx, "waitlist.CheckIn")
	defer func() { endSpan(span, err) }()
	span.SetAttributes(attribute.String("restaurant_id", restaurantID))

	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return models.WaitlistEntry{}, ErrInvalidConfirmationCode
	}

	unlock := s.locks.lock(restaurantID)
	defer unlock()

	current, err := s.store.FindByConfirmationCode(ctx, restaurantID, code)
	if errors.Is(err, store.ErrCodeNotFound) {
		return models.WaitlistEntry{}, ErrInvalidConfirmationCode
	}
	if err != nil {
		return models.WaitlistEntry{}, err
	}
	if !current.IsRemote || !store.ValidTransition(store.ActionCheckIn, current.Status) {
		return models.WaitlistEntry{}, ErrInvalidConfirmationCode
	}
	if current.Status == models.StatusRemoteConfirmed && current.ArrivedAt != nil {
		return current, nil
	}

	entry, err = s.transition(ctx, current, store.ActionCheckIn, models.StatusRemoteConfirmed, "")
	var transitionErr *InvalidTransitionError
	if errors.As(err, &transitionErr) {
		return models.WaitlistEntry{}, ErrInvalidConfirmationCode
	}
	return entry, err
}

// ReleaseCustomer hands a selected entry back to the queue at its original
// position.
func (s *Service) ReleaseCustomer(ctx context.Context, restaurantID, entryID string) (entry models.WaitlistEntry, err error) {
	ctx, span := tracer.Start(ctx, "waitlist.ReleaseCustomer")
	defer func() { endSpan(span, err) }()

	unlock := s.locks.lock(restaurantID)
	defer unlock()

	current, err := s.store.GetEntry(ctx, restaurantID, entryID)
	if err != nil {
		return models.WaitlistEntry{}, notFound(err, entryID)
	}
	return s.transition(ctx, current, store.ActionRelease, current.ReleaseStatus(), "")
}

// RecordDeparture notes that a seated party left its table.
func (s *Service) RecordDeparture(ctx context.Context, restaurantID, entryID string) (entry models.WaitlistEntry, err error) {
	ctx, span := tracer.Start(ctx, "waitlist.RecordDeparture")
	defer func() { endSpan(span, err) }()

	unlock := s.locks.lock(restaurantID)
	defer unlock()

	current, err := s.store.GetEntry(ctx, restaurantID, entryID)
	if err != nil {
		return models.WaitlistEntry{}, notFound(err, entryID)
	}
	if current.Status != models.StatusSeated || current.DepartedAt != nil {
		return models.WaitlistEntry{}, &InvalidTransitionError{From: current.Status, To: models.StatusSeated}
	}
	entry, err = s.store.RecordDeparture(ctx, restaurantID, entryID, s.now())
	if errors.Is(err, store.ErrInvalidState) {
		return models.WaitlistEntry{}, &InvalidTransitionError{From: current.Status, To: models.StatusSeated}
	}
	if err != nil {
		return models.WaitlistEntry{}, notFound(err, entryID)
	}
	return entry, nil
}

func (s *Service) GetEntry(ctx context.Context, restaurantID, entryID string) (models.WaitlistEntry, error) {
	entry, err := s.store.GetEntry(ctx, restaurantID, entryID)
	if err != nil {
		return models.WaitlistEntry{}, notFound(err, entryID)
	}
	return entry, nil
}

// ListEntries returns the restaurant's entries in queue order, optionally
// limited to statuses.
func (s *Service) ListEntries(ctx context.Context, restaurantID string, statuses ...models.EntryStatus) ([]models.WaitlistEntry, error) {
	for _, status := range statuses {
		if !status.Valid() {
			return nil, &ValidationError{Problems: []string{fmt.Sprintf("unknown status %q", status)}}
		}
	}
	return s.store.ListEntries(ctx, restaurantID, statuses...)
}

// EntryHistory returns the entry's audit events after checking the hash
// chain.
func (s *Service) EntryHistory(ctx context.Context, restaurantID, entryID string) ([]store.EntryEvent, error) {
	events, err := s.store.ListEntryEvents(ctx, restaurantID, entryID)
	if err != nil {
		return nil, notFound(err, entryID)
	}
	if err := store.VerifyEntryEvents(events); err != nil {
		return nil, fmt.Errorf("entry %s history: %w", entryID, err)
	}
	return events, nil
}

// transition performs action on current through a compare-and-set write.
// The caller holds the restaurant lock.
func (s *Service) transition(ctx context.Context, current models.WaitlistEntry, action string, to models.EntryStatus, tableTypeID string) (models.WaitlistEntry, error) {
	if !store.ValidTransition(action, current.Status) {
		return models.WaitlistEntry{}, &InvalidTransitionError{From: current.Status, To: to}
	}
	if err := ctx.Err(); err != nil {
		return models.WaitlistEntry{}, err
	}
	updated, err := s.store.TransitionEntry(ctx, store.TransitionInput{
		RestaurantID: current.RestaurantID,
		EntryID:      current.EntryID,
		Action:       action,
		From:         current.Status,
		To:           to,
		TableTypeID:  tableTypeID,
		OccurredAt:   s.now(),
	})
	if errors.Is(err, store.ErrInvalidState) {
		return models.WaitlistEntry{}, &InvalidTransitionError{From: current.Status, To: to}
	}
	if err != nil {
		return models.WaitlistEntry{}, notFound(err, current.EntryID)
	}
	s.log.WithFields(logrus.Fields{
		"restaurant_id": updated.RestaurantID,
		"entry_id":      updated.EntryID,
		"action":        action,
		"from":          current.Status,
		"to":            updated.Status,
	}).Info("entry transitioned")
	return updated, nil
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
	}
	span.End()
}

func hasTable(tables []models.TableType, tableTypeID string) bool {
	for _, table := range tables {
		if table.TableTypeID == tableTypeID {
			return true
		}
	}
	return false
}

func isValidUUID(value string) bool {
	_, err := uuid.Parse(value)
	return err == nil
}

func isValidPhone(value string) bool {
	if len(value) < 8 || len(value) > 16 {
		return false
	}
	for _, r := range value {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
