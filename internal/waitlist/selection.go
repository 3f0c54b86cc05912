package waitlist

import (
	"context"
	"errors"
	"sort"

	"tablequeue/waitlist-service/internal/models"
	"tablequeue/waitlist-service/internal/store"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

// SelectNextCustomer picks the next party to seat and marks it processing.
// With prioritizePhysical, walk-ins waiting in FIFO order come before
// checked-in remote parties; otherwise checked-in remote parties come first.
// Either group falls back to the other when empty. The second return is
// false when nobody is eligible.
//
// The processing mark is written with a compare-and-set, so if ctx is
// cancelled before the write commits nothing stays reserved.
func (s *Service) SelectNextCustomer(ctx context.Context, restaurantID string, prioritizePhysical bool) (entry models.WaitlistEntry, found bool, err error) {
	ctx, span := tracer.Start(ctx, "waitlist.SelectNextCustomer")
	defer func() { endSpan(span, err) }()
	span.SetAttributes(
		attribute.String("restaurant_id", restaurantID),
		attribute.Bool("prioritize_physical", prioritizePhysical),
	)

	unlock := s.locks.lock(restaurantID)
	defer unlock()

	entries, err := s.store.ListEntries(ctx, restaurantID, models.StatusWaiting, models.StatusRemoteConfirmed)
	if err != nil {
		return models.WaitlistEntry{}, false, err
	}
	physical, remote := splitCandidates(entries)

	first, second := remote, physical
	if prioritizePhysical {
		first, second = physical, remote
	}
	candidates := make([]models.WaitlistEntry, 0, len(first)+len(second))
	candidates = append(append(candidates, first...), second...)

	for _, candidate := range candidates {
		selected, err := s.transition(ctx, candidate, store.ActionSelect, models.StatusProcessing, "")
		var transitionErr *InvalidTransitionError
		if errors.As(err, &transitionErr) {
			// Another writer moved it first; try the next one.
			continue
		}
		if err != nil {
			return models.WaitlistEntry{}, false, err
		}
		s.log.WithFields(logrus.Fields{
			"restaurant_id": restaurantID,
			"entry_id":      selected.EntryID,
			"position":      selected.QueuePosition,
			"remote":        selected.IsRemote,
		}).Info("customer selected")
		return selected, true, nil
	}
	return models.WaitlistEntry{}, false, nil
}

// splitCandidates returns walk-ins waiting ordered by join time and
// checked-in remote parties ordered by queue position. Ties fall back to
// queue position, which follows insertion order.
func splitCandidates(entries []models.WaitlistEntry) (physical, remote []models.WaitlistEntry) {
	for _, entry := range entries {
		switch {
		case !entry.IsRemote && entry.Status == models.StatusWaiting:
			physical = append(physical, entry)
		case entry.IsRemote && entry.Status == models.StatusRemoteConfirmed:
			remote = append(remote, entry)
		}
	}
	sort.SliceStable(physical, func(i, j int) bool {
		if !physical[i].CreatedAt.Equal(physical[j].CreatedAt) {
			return physical[i].CreatedAt.Before(physical[j].CreatedAt)
		}
		return physical[i].QueuePosition < physical[j].QueuePosition
	})
	sort.SliceStable(remote, func(i, j int) bool {
		return remote[i].QueuePosition < remote[j].QueuePosition
	})
	return physical, remote
}
