// Package relay publishes outbox events written by the store to the message
// broker. The store tracks which events were published.
package relay

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"tablequeue/waitlist-service/internal/store"

	"github.com/sirupsen/logrus"
)

type Message struct {
	Subject string
	ID      string
	Data    []byte
}

type Publisher interface {
	Publish(ctx context.Context, msg Message) error
	Flush(ctx context.Context) error
}

type Relay struct {
	store     store.OutboxStore
	publisher Publisher
	batchSize int
	log       logrus.FieldLogger
}

type Config struct {
	BatchSize int
	Logger    logrus.FieldLogger
}

func New(st store.OutboxStore, publisher Publisher, cfg Config) *Relay {
	batch := cfg.BatchSize
	if batch <= 0 {
		batch = 100
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Relay{
		store:     st,
		publisher: publisher,
		batchSize: batch,
		log:       logger.WithField("component", "relay"),
	}
}

// RunOnce claims the next batch of pending events and publishes them in
// order. Only the events the broker accepted, and that were flushed, are
// marked published. Delivery is at least once: a crash after the flush but
// before the claim commits republishes the batch.
func (r *Relay) RunOnce(ctx context.Context) (int, error) {
	return r.store.ClaimOutboxEvents(ctx, r.batchSize, r.deliver)
}

func (r *Relay) deliver(ctx context.Context, events []store.OutboxEvent) (int, error) {
	published := 0
	var publishErr error
	for _, event := range events {
		data, err := json.Marshal(event)
		if err != nil {
			publishErr = err
			break
		}
		msg := Message{Subject: Subject(event), ID: event.EventID, Data: data}
		if err := r.publisher.Publish(ctx, msg); err != nil {
			publishErr = err
			break
		}
		published++
	}

	if published > 0 {
		if err := r.publisher.Flush(ctx); err != nil {
			return 0, err
		}
	}
	return published, publishErr
}

// Start polls until ctx is done.
func (r *Relay) Start(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			count, err := r.RunOnce(ctx)
			if err != nil && ctx.Err() == nil {
				r.log.WithError(err).Warn("relay run failed")
				continue
			}
			if count > 0 {
				r.log.WithField("published", count).Debug("relay published events")
			}
		}
	}
}

// Subject maps an event to waitlist.<restaurant>.<event>, for example
// waitlist.r-1.entry.seated, so consumers can subscribe per restaurant.
func Subject(event store.OutboxEvent) string {
	kind := strings.TrimPrefix(event.Type, "waitlist.")
	return "waitlist." + subjectToken(event.RestaurantID) + "." + kind
}

func subjectToken(value string) string {
	if value == "" {
		return "_"
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ', '\t', '\n', '\r':
			return '_'
		}
		return r
	}, value)
}
