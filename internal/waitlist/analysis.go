package waitlist

import (
	"context"
	"fmt"
	"time"

	"tablequeue/waitlist-service/internal/demand"
	"tablequeue/waitlist-service/internal/inventory"
	"tablequeue/waitlist-service/internal/models"
	"tablequeue/waitlist-service/internal/optimizer"
	"tablequeue/waitlist-service/internal/turnover"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
)

type Analysis struct {
	RestaurantID    string                          `json:"restaurant_id"`
	GeneratedAt     time.Time                       `json:"generated_at"`
	Predictions     []demand.Prediction             `json:"predictions"`
	Recommendations []demand.CapacityRecommendation `json:"recommendations"`
	Suggestions     []optimizer.Suggestion          `json:"suggestions"`
}

// AnalyzeWaitlist predicts demand for the next hours, derives capacity
// recommendations and suggests seating actions for the current queue.
// Nothing is written.
func (s *Service) AnalyzeWaitlist(ctx context.Context, restaurantID string, weatherFactor float64, events []demand.SpecialEvent) (result Analysis, err error) {
	ctx, span := tracer.Start(ctx, "waitlist.AnalyzeWaitlist")
	defer func() { endSpan(span, err) }()
	span.SetAttributes(attribute.String("restaurant_id", restaurantID))

	now := s.now().In(s.location)
	var (
		tables  []models.TableType
		entries []models.WaitlistEntry
		samples []models.DemandSample
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		tables, err = s.store.ListTableTypes(gctx, restaurantID, true)
		return err
	})
	g.Go(func() error {
		var err error
		entries, err = s.store.ListEntries(gctx, restaurantID, models.StatusWaiting, models.StatusNotified)
		return err
	})
	g.Go(func() error {
		var err error
		samples, err = s.store.ListDemandSamples(gctx, restaurantID, s.historyStart(now), now, s.location)
		return err
	})
	if err := g.Wait(); err != nil {
		return Analysis{}, err
	}

	predictions := demand.PredictUpcomingDemand(samples, now, weatherFactor, events)
	return Analysis{
		RestaurantID:    restaurantID,
		GeneratedAt:     now,
		Predictions:     predictions,
		Recommendations: demand.GenerateCapacityRecommendations(predictions, tables),
		Suggestions:     optimizer.AnalyzeWaitlistOptimization(entries, tables, now),
	}, nil
}

// AnalyzeTurnover compares configured turnover times with the seatings
// recorded over the history window.
func (s *Service) AnalyzeTurnover(ctx context.Context, restaurantID string) (analyses []turnover.Analysis, err error) {
	ctx, span := tracer.Start(ctx, "waitlist.AnalyzeTurnover")
	defer func() { endSpan(span, err) }()
	span.SetAttributes(attribute.String("restaurant_id", restaurantID))

	tables, err := s.store.ListTableTypes(ctx, restaurantID, false)
	if err != nil {
		return nil, err
	}
	samples, err := s.store.ListSeatingSamples(ctx, restaurantID, s.historyStart(s.now()))
	if err != nil {
		return nil, err
	}
	return turnover.AnalyzeTurnoverTimes(tables, samples), nil
}

// ApplyTurnoverRecommendations recomputes the turnover analysis and writes
// the suggested turnover times that reach minConfidence.
func (s *Service) ApplyTurnoverRecommendations(ctx context.Context, restaurantID string, minConfidence turnover.Confidence) ([]turnover.Recommendation, error) {
	analyses, err := s.AnalyzeTurnover(ctx, restaurantID)
	if err != nil {
		return nil, err
	}
	applied, err := turnover.Apply(ctx, s.store, restaurantID, turnover.Recommendations(analyses), minConfidence)
	for _, rec := range applied {
		s.log.WithFields(logrus.Fields{
			"restaurant_id": restaurantID,
			"table_type_id": rec.TableTypeID,
			"from_minutes":  rec.CurrentMinutes,
			"to_minutes":    rec.SuggestedMinutes,
		}).Info("turnover updated")
	}
	return applied, err
}

func (s *Service) ListTableTypes(ctx context.Context, restaurantID string, activeOnly bool) ([]models.TableType, error) {
	return s.store.ListTableTypes(ctx, restaurantID, activeOnly)
}

// SaveTableType creates a table type, or updates it when TableTypeID names
// an existing one.
func (s *Service) SaveTableType(ctx context.Context, table models.TableType) (models.TableType, error) {
	if problems := inventory.Validate(table); len(problems) > 0 {
		return models.TableType{}, &ValidationError{Problems: problems}
	}
	if table.TableTypeID != "" {
		if _, err := s.store.GetTableType(ctx, table.RestaurantID, table.TableTypeID); err != nil {
			return models.TableType{}, notFound(err, table.TableTypeID)
		}
	}
	return s.store.SaveTableType(ctx, table)
}

// ImportDemandSamples loads aggregated history, for example figures carried
// over from a previous system, into the demand estimator's input.
func (s *Service) ImportDemandSamples(ctx context.Context, restaurantID string, samples []models.DemandSample) error {
	var problems []string
	if restaurantID == "" {
		problems = append(problems, "restaurant_id is required")
	}
	for i, sample := range samples {
		prefix := fmt.Sprintf("sample %d: ", i+1)
		if sample.Date.IsZero() {
			problems = append(problems, prefix+"date is required")
		}
		if sample.Hour < 0 || sample.Hour > 23 {
			problems = append(problems, prefix+"hour must be between 0 and 23")
		}
		if sample.AvgWaitTime < 0 || sample.AvgPartySize < 0 {
			problems = append(problems, prefix+"averages cannot be negative")
		}
		if sample.SampleCount < 1 {
			problems = append(problems, prefix+"sample_count must be at least 1")
		}
	}
	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return s.store.ImportDemandSamples(ctx, restaurantID, samples)
}

func (s *Service) historyStart(now time.Time) time.Time {
	return now.AddDate(0, 0, -7*s.historyWeeks)
}
