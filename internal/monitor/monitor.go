// Package monitor scores each entity's series against a rolling, lagged
// baseline of its own history and aggregates the flags by category.
package monitor

import (
	"context"
	"fmt"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/rewired-gh/ratiosentry/internal/logger"
	"github.com/rewired-gh/ratiosentry/internal/models"
)

// SeriesSource supplies grouped, period-sorted entity series.
type SeriesSource interface {
	Entities() []*models.EntitySeries
}

// Outcome is everything one run produces before report assembly.
type Outcome struct {
	Results    []models.EvaluationResult // sorted by entity, then period
	Exclusions []models.ExclusionRecord  // sorted by entity
	Entities   int
}

// Monitor runs the evaluator across entities.
type Monitor struct {
	params Params
}

// New creates a Monitor. Params are validated here so Run never sees a
// window it cannot build.
func New(params Params) (*Monitor, error) {
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrInvalidConfig, err)
	}
	if params.Workers < 1 {
		params.Workers = 1
	}
	return &Monitor{params: params}, nil
}

// Params returns the effective parameters.
func (m *Monitor) Params() Params {
	return m.params
}

type entityOutcome struct {
	results   []models.EvaluationResult
	exclusion *models.ExclusionRecord
}

// EvaluateEntity scores one entity, or explains why it was left out.
// Every entity lands in exactly one of the two outcomes.
func (m *Monitor) EvaluateEntity(s *models.EntitySeries) ([]models.EvaluationResult, *models.ExclusionRecord) {
	observed := s.Observed()
	exclude := func(reason models.ExclusionReason) *models.ExclusionRecord {
		return &models.ExclusionRecord{
			EntityID:        s.EntityID,
			EntityName:      s.EntityName,
			Category:        s.Category,
			TotalPeriods:    observed,
			MinimumRequired: m.params.MinTotalPeriods,
			Reason:          reason,
		}
	}

	if observed < m.params.MinTotalPeriods {
		return nil, exclude(models.ExclusionInsufficientHistory)
	}
	results := EvaluateSeries(s, m.params)
	if len(results) == 0 {
		return nil, exclude(models.ExclusionNoComputableBaseline)
	}
	return results, nil
}

// Run evaluates every entity from src. Entities are independent and are
// fanned out across Workers goroutines; each writes only its own slot, and
// the merged output is sorted so it does not depend on scheduling.
func (m *Monitor) Run(ctx context.Context, src SeriesSource) (*Outcome, error) {
	entities := src.Entities()
	slots := make([]entityOutcome, len(entities))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.params.Workers)
	for i, s := range entities {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results, exclusion := m.EvaluateEntity(s)
			slots[i] = entityOutcome{results: results, exclusion: exclusion}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("evaluation aborted: %w", err)
	}

	out := &Outcome{Entities: len(entities)}
	for _, slot := range slots {
		out.Results = append(out.Results, slot.results...)
		if slot.exclusion != nil {
			out.Exclusions = append(out.Exclusions, *slot.exclusion)
		}
	}

	sort.SliceStable(out.Results, func(i, j int) bool {
		a, b := out.Results[i], out.Results[j]
		if a.EntityID != b.EntityID {
			return a.EntityID < b.EntityID
		}
		return a.Period.Ordinal < b.Period.Ordinal
	})
	sort.SliceStable(out.Exclusions, func(i, j int) bool {
		return out.Exclusions[i].EntityID < out.Exclusions[j].EntityID
	})

	flagged := 0
	for _, r := range out.Results {
		if r.Flagged {
			flagged++
		}
	}
	logger.Debug("Evaluated %d observations across %d entities: %d flagged, %d entities excluded",
		len(out.Results), len(entities)-len(out.Exclusions), flagged, len(out.Exclusions))

	return out, nil
}

// AnalysisParams exports the estimator settings for reporting.
func (p Params) AnalysisParams() models.AnalysisParams {
	return models.AnalysisParams{
		WindowSize:      p.WindowSize,
		Lag:             p.Lag,
		MinSamples:      p.MinSamples,
		ZThreshold:      p.ZThreshold,
		SpreadFloor:     p.SpreadFloor,
		MinTotalPeriods: p.MinTotalPeriods,
		WindowMode:      string(p.WindowMode),
	}
}
