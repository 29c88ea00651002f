// Package models defines the core domain entities for ratiosentry.
// These models represent per-entity ratio observations, the rolling baselines
// derived from them, and the evaluation and summary records a run produces.
// All input-facing models include validation so malformed data is rejected
// before any statistic is computed.
//
// Terminology:
//   - Entity: the unit being monitored (one independent time series).
//   - Period: a totally ordered time bucket, unique per entity.
//   - Category: a grouping label attached to an entity, constant for a run.
package models

import (
	"fmt"
	"math"
)

// Record is a raw input row as delivered by an input adapter, before any
// period parsing or category resolution. Nil pointers mean NULL.
type Record struct {
	Row        int      `json:"row"` // 1-based position in the source, for error reporting
	EntityID   string   `json:"entity_id"`
	EntityName string   `json:"entity_name,omitempty"` // optional display name
	Category   *string  `json:"category"`
	Period     string   `json:"period"`
	Value      *float64 `json:"value"`
}

// Validate checks the fields that can be checked without the entity's other rows.
func (r *Record) Validate() error {
	if r.EntityID == "" {
		return &InputValidationError{Row: r.Row, Period: r.Period, Reason: "entity_id must not be empty"}
	}
	if r.Value != nil {
		v := *r.Value
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0.0 || v > 1.0 {
			return &InputValidationError{
				Row:      r.Row,
				EntityID: r.EntityID,
				Period:   r.Period,
				Reason:   fmt.Sprintf("value %v must be between 0.0 and 1.0", v),
			}
		}
	}
	return nil
}

// Observation is one (entity, period) measurement. HasValue is false when the
// period was not measured, which is distinct from a measured zero.
type Observation struct {
	EntityID   string   `json:"entity_id"`
	EntityName string   `json:"entity_name,omitempty"`
	Category   Category `json:"category"`
	Period     Period   `json:"period"`
	Value      float64  `json:"value"`
	HasValue   bool     `json:"has_value"`
}

// EntitySeries holds every observation of one entity in ascending period order,
// stored column-wise so baselines can be computed by index.
type EntitySeries struct {
	EntityID   string
	EntityName string // first non-empty name seen for the entity
	Category   Category
	Periods    []Period
	Values     []float64
	Present    []bool
}

// Len returns the number of periods (rows) in the series, missing ones included.
func (s *EntitySeries) Len() int {
	return len(s.Periods)
}

// Observed returns the number of periods with a measured value.
func (s *EntitySeries) Observed() int {
	n := 0
	for _, ok := range s.Present {
		if ok {
			n++
		}
	}
	return n
}

// At returns the observation at index i.
func (s *EntitySeries) At(i int) Observation {
	return Observation{
		EntityID:   s.EntityID,
		EntityName: s.EntityName,
		Category:   s.Category,
		Period:     s.Periods[i],
		Value:      s.Values[i],
		HasValue:   s.Present[i],
	}
}
