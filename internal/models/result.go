package models

import (
	"errors"
	"math"
)

// Direction is the sign of a scored deviation.
type Direction string

const (
	DirectionHigh Direction = "HIGH"
	DirectionLow  Direction = "LOW"
	DirectionNone Direction = "NONE" // degenerate baseline, nothing scored
)

// Baseline is the lagged rolling mean/spread for one (entity, period) pair.
// It is computed fresh per evaluation and never persisted.
type Baseline struct {
	Window      []float64 // chronological
	SampleCount int
	Mean        float64
	Spread      float64 // population standard deviation
	Degenerate  bool    // Spread fell below the configured floor
}

// EvaluationResult is the verdict for one evaluated observation.
type EvaluationResult struct {
	EntityID       string    `json:"entity_id"`
	EntityName     string    `json:"entity_name,omitempty"`
	Category       Category  `json:"category"`
	Period         Period    `json:"period"`
	Value          float64   `json:"value"`
	BaselineMean   float64   `json:"baseline_mean"`
	BaselineSpread float64   `json:"baseline_spread"`
	SampleCount    int       `json:"sample_count"`
	Score          float64   `json:"score"`
	Direction      Direction `json:"direction"`
	Flagged        bool      `json:"flagged"`
	Event          string    `json:"event,omitempty"` // known-event label for this period
}

// Validate checks that the result is internally consistent.
func (r *EvaluationResult) Validate() error {
	if r.EntityID == "" {
		return errors.New("entity ID must not be empty")
	}
	for _, f := range []float64{r.Value, r.BaselineMean, r.BaselineSpread, r.Score} {
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return errors.New("numeric fields must be finite")
		}
	}
	if r.Value < 0.0 || r.Value > 1.0 {
		return errors.New("value must be between 0.0 and 1.0")
	}
	switch r.Direction {
	case DirectionNone:
		if r.Score != 0 || r.Flagged {
			return errors.New("direction NONE requires a zero, unflagged score")
		}
	case DirectionHigh:
		if r.Score <= 0 {
			return errors.New("direction HIGH requires a positive score")
		}
	case DirectionLow:
		if r.Score > 0 {
			return errors.New("direction LOW requires a non-positive score")
		}
	default:
		return errors.New("direction must be HIGH, LOW or NONE")
	}
	return nil
}

// ExclusionReason explains why an entity produced no evaluation results.
type ExclusionReason string

const (
	// ExclusionInsufficientHistory: fewer measured periods than min_total_periods.
	ExclusionInsufficientHistory ExclusionReason = "insufficient_history"
	// ExclusionNoComputableBaseline: enough periods overall, but gaps or lag left
	// no period with a valid window.
	ExclusionNoComputableBaseline ExclusionReason = "no_computable_baseline"
)

// ExclusionRecord lists an entity that contributed no evaluation results.
type ExclusionRecord struct {
	EntityID        string          `json:"entity_id"`
	EntityName      string          `json:"entity_name,omitempty"`
	Category        Category        `json:"category"`
	TotalPeriods    int             `json:"total_periods"`
	MinimumRequired int             `json:"minimum_required"`
	Reason          ExclusionReason `json:"reason"`
}
