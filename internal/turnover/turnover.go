// Package turnover compares the configured turnover time of each table type
// with how long parties actually stayed, and recommends corrections.
package turnover

import (
	"context"
	"fmt"
	"math"
	"sort"

	"tablequeue/waitlist-service/internal/models"
)

type Confidence string

const (
	ConfidenceLow    Confidence = "low"
	ConfidenceMedium Confidence = "medium"
	ConfidenceHigh   Confidence = "high"
)

// ConfidenceFor buckets a sample count.
func ConfidenceFor(samples int) Confidence {
	switch {
	case samples > 20:
		return ConfidenceHigh
	case samples >= 5:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

// Threshold is the relative deviation, in percent, needed before a
// recommendation is made at this confidence.
func (c Confidence) Threshold() float64 {
	switch c {
	case ConfidenceHigh:
		return 10
	case ConfidenceMedium:
		return 15
	default:
		return 25
	}
}

type Analysis struct {
	TableTypeID       string          `json:"table_type_id"`
	TableName         string          `json:"table_name"`
	ConfiguredMinutes int             `json:"configured_minutes"`
	ActualMinutes     float64         `json:"actual_average_minutes"`
	SampleCount       int             `json:"sample_count"`
	DifferencePercent float64         `json:"difference_percent"`
	Confidence        Confidence      `json:"confidence"`
	Recommendation    *Recommendation `json:"recommendation,omitempty"`
}

type Recommendation struct {
	TableTypeID       string     `json:"table_type_id"`
	CurrentMinutes    int        `json:"current_minutes"`
	SuggestedMinutes  int        `json:"suggested_minutes"`
	DifferencePercent float64    `json:"difference_percent"`
	Confidence        Confidence `json:"confidence"`
	Reasoning         string     `json:"reasoning"`
}

// AnalyzeTurnoverTimes groups the samples by table type and reports one
// analysis per table type that has samples. Table types without samples
// and samples for unknown table types are ignored.
func AnalyzeTurnoverTimes(tables []models.TableType, samples []models.SeatingSample) []Analysis {
	durations := map[string][]float64{}
	for _, sample := range samples {
		if sample.DurationMinutes <= 0 {
			continue
		}
		durations[sample.TableTypeID] = append(durations[sample.TableTypeID], sample.DurationMinutes)
	}

	ordered := make([]models.TableType, len(tables))
	copy(ordered, tables)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Capacity != ordered[j].Capacity {
			return ordered[i].Capacity < ordered[j].Capacity
		}
		return ordered[i].Name < ordered[j].Name
	})

	var out []Analysis
	for _, table := range ordered {
		observed := durations[table.TableTypeID]
		if len(observed) == 0 {
			continue
		}
		out = append(out, analyze(table, observed))
	}
	return out
}

func analyze(table models.TableType, observed []float64) Analysis {
	sum := 0.0
	for _, d := range observed {
		sum += d
	}
	mean := sum / float64(len(observed))
	confidence := ConfidenceFor(len(observed))

	analysis := Analysis{
		TableTypeID:       table.TableTypeID,
		TableName:         table.Name,
		ConfiguredMinutes: table.TurnoverMinutes,
		ActualMinutes:     math.Round(mean*10) / 10,
		SampleCount:       len(observed),
		Confidence:        confidence,
	}
	if table.TurnoverMinutes <= 0 {
		return analysis
	}
	diff := (mean - float64(table.TurnoverMinutes)) / float64(table.TurnoverMinutes) * 100
	analysis.DifferencePercent = math.Round(diff*10) / 10
	if math.Abs(diff) < confidence.Threshold() {
		return analysis
	}
	suggested := int(math.Round(mean))
	if suggested < 1 {
		suggested = 1
	}
	direction := "longer"
	if diff < 0 {
		direction = "shorter"
	}
	analysis.Recommendation = &Recommendation{
		TableTypeID:       table.TableTypeID,
		CurrentMinutes:    table.TurnoverMinutes,
		SuggestedMinutes:  suggested,
		DifferencePercent: analysis.DifferencePercent,
		Confidence:        confidence,
		Reasoning: fmt.Sprintf("%s seatings run %.0f%% %s than configured (%d samples)",
			table.Name, math.Abs(diff), direction, len(observed)),
	}
	return analysis
}

// Recommendations returns the recommendations carried by analyses.
func Recommendations(analyses []Analysis) []Recommendation {
	var out []Recommendation
	for _, a := range analyses {
		if a.Recommendation != nil {
			out = append(out, *a.Recommendation)
		}
	}
	return out
}

// Updater writes a new turnover time for a table type.
type Updater interface {
	UpdateTurnoverMinutes(ctx context.Context, restaurantID, tableTypeID string, minutes int) error
}

// Apply writes every recommendation at or above minConfidence and returns
// the ones applied. It stops at the first failed write.
func Apply(ctx context.Context, updater Updater, restaurantID string, recs []Recommendation, minConfidence Confidence) ([]Recommendation, error) {
	var applied []Recommendation
	for _, rec := range recs {
		if rank(rec.Confidence) < rank(minConfidence) {
			continue
		}
		if err := updater.UpdateTurnoverMinutes(ctx, restaurantID, rec.TableTypeID, rec.SuggestedMinutes); err != nil {
			return applied, fmt.Errorf("update turnover for %s: %w", rec.TableTypeID, err)
		}
		applied = append(applied, rec)
	}
	return applied, nil
}

func rank(c Confidence) int {
	switch c {
	case ConfidenceHigh:
		return 2
	case ConfidenceMedium:
		return 1
	default:
		return 0
	}
}
