package monitor

import (
	"math"

	"github.com/rewired-gh/ratiosentry/internal/models"
)

// Evaluate scores one observation against its baseline.
//
// A degenerate baseline (spread below the floor) always yields score 0,
// direction NONE and no flag, however far the value sits from the mean:
// a constant history followed by any change is never flagged.
func Evaluate(obs models.Observation, b models.Baseline, zThreshold float64) models.EvaluationResult {
	r := models.EvaluationResult{
		EntityID:       obs.EntityID,
		EntityName:     obs.EntityName,
		Category:       obs.Category,
		Period:         obs.Period,
		Value:          obs.Value,
		BaselineMean:   b.Mean,
		BaselineSpread: b.Spread,
		SampleCount:    b.SampleCount,
		Direction:      models.DirectionNone,
	}
	if b.Degenerate {
		return r
	}

	r.Score = (obs.Value - b.Mean) / b.Spread
	if r.Score > 0 {
		r.Direction = models.DirectionHigh
	} else {
		r.Direction = models.DirectionLow
	}
	r.Flagged = math.Abs(r.Score) > zThreshold
	return r
}

// EvaluateSeries produces one result per measured row of s that has a
// computable baseline, in period order. Rows are independent: each baseline
// reads raw values only, never earlier results.
func EvaluateSeries(s *models.EntitySeries, p Params) []models.EvaluationResult {
	var results []models.EvaluationResult
	for t := 0; t < s.Len(); t++ {
		if !s.Present[t] {
			continue
		}
		b, ok := ComputeBaseline(s, t, p)
		if !ok {
			continue
		}
		r := Evaluate(s.At(t), b, p.ZThreshold)
		r.Event = p.KnownEvents[s.Periods[t].Token]
		results = append(results, r)
	}
	return results
}

// NullRate is the two-sided standard normal tail probability beyond z:
// the fraction of observations a stationary normal process would flag by
// chance. About 0.0455 for z = 2.
func NullRate(z float64) float64 {
	return math.Erfc(z / math.Sqrt2)
}
