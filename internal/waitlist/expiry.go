package waitlist

import (
	"context"
	"errors"
	"time"

	"tablequeue/waitlist-service/internal/models"
	"tablequeue/waitlist-service/internal/store"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

// ExpireStaleRemoteEntries cancels remote entries still pending
// graceMinutes after their expected arrival. Running it again does nothing
// to entries it already cancelled.
func (s *Service) ExpireStaleRemoteEntries(ctx context.Context, restaurantID string, graceMinutes int) (expired []models.WaitlistEntry, err error) {
	ctx, span := tracer.Start(ctx, "waitlist.ExpireStaleRemoteEntries")
	defer func() { endSpan(span, err) }()
	span.SetAttributes(attribute.String("restaurant_id", restaurantID), attribute.Int("grace_minutes", graceMinutes))

	if graceMinutes < 0 {
		return nil, &ValidationError{Problems: []string{"grace_minutes cannot be negative"}}
	}

	unlock := s.locks.lock(restaurantID)
	defer unlock()

	pending, err := s.store.ListEntries(ctx, restaurantID, models.StatusRemotePending)
	if err != nil {
		return nil, err
	}
	now := s.now()
	grace := time.Duration(graceMinutes) * time.Minute
	for _, entry := range pending {
		if entry.ExpectedArrival == nil || !entry.ExpectedArrival.Add(grace).Before(now) {
			continue
		}
		cancelled, err := s.transition(ctx, entry, store.ActionExpire, models.StatusCancelled, "")
		var transitionErr *InvalidTransitionError
		if errors.As(err, &transitionErr) {
			continue
		}
		if err != nil {
			return expired, err
		}
		expired = append(expired, cancelled)
	}
	if len(expired) > 0 {
		s.log.WithFields(logrus.Fields{
			"restaurant_id": restaurantID,
			"expired":       len(expired),
		}).Info("expired stale remote entries")
	}
	return expired, nil
}

// ExpireAll runs ExpireStaleRemoteEntries for every restaurant holding
// pending remote entries and returns how many entries expired. A failure
// for one restaurant is logged and does not stop the others.
func (s *Service) ExpireAll(ctx context.Context, graceMinutes int) (int, error) {
	restaurants, err := s.store.ListRestaurantsWithPendingRemote(ctx)
	if err != nil {
		return 0, err
	}
	total := 0
	for _, restaurantID := range restaurants {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		expired, err := s.ExpireStaleRemoteEntries(ctx, restaurantID, graceMinutes)
		total += len(expired)
		if err != nil {
			s.log.WithError(err).WithField("restaurant_id", restaurantID).Warn("expiry sweep failed")
		}
	}
	return total, nil
}

// Sweeper expires stale remote entries on a fixed interval.
type Sweeper struct {
	service      *Service
	interval     time.Duration
	graceMinutes int
	timeout      time.Duration
	log          logrus.FieldLogger
}

func NewSweeper(service *Service, interval time.Duration, graceMinutes int) *Sweeper {
	return &Sweeper{
		service:      service,
		interval:     interval,
		graceMinutes: graceMinutes,
		timeout:      10 * time.Second,
		log:          service.log.WithField("component", "expiry-sweeper"),
	}
}

// Run blocks until ctx is done. A non-positive interval disables the sweeper.
func (w *Sweeper) Run(ctx context.Context) error {
	if w.interval <= 0 {
		return nil
	}
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

func (w *Sweeper) sweep(ctx context.Context) {
	runCtx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()
	count, err := w.service.ExpireAll(runCtx, w.graceMinutes)
	if err != nil {
		w.log.WithError(err).Warn("expiry sweep error")
		return
	}
	if count > 0 {
		w.log.WithField("expired", count).Info("expiry sweep processed entries")
	}
}
