// Package synth generates reproducible synthetic observation datasets.
package synth

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/rewired-gh/ratiosentry/internal/models"
)

// Options controls the generated dataset.
type Options struct {
	Seed          int64
	Entities      int      // stationary entities
	TrendEntities int      // entities whose mean drifts by Trend per period
	Periods       int      // periods per entity
	Mean          float64  // centre of every entity's distribution
	Spread        float64  // standard deviation of the normal draws
	Trend         float64  // per-period drift for trend entities
	MissingRate   float64  // probability that a value is written as missing
	StartYear     int      // periods are YYYY-MM starting at January of StartYear
	Categories    []string // assigned round-robin; empty leaves category NULL
}

// DefaultOptions returns a modest stationary dataset.
func DefaultOptions() Options {
	return Options{
		Seed:       1,
		Entities:   50,
		Periods:    96,
		Mean:       0.75,
		Spread:     0.04,
		Trend:      -0.002,
		StartYear:  2017,
		Categories: []string{"BUS", "TRAIN"},
	}
}

// Validate checks the options can produce a dataset.
func (o Options) Validate() error {
	if o.Entities < 0 || o.TrendEntities < 0 {
		return fmt.Errorf("entity counts must not be negative")
	}
	if o.Entities+o.TrendEntities == 0 {
		return fmt.Errorf("at least one entity is required")
	}
	if o.Periods < 1 {
		return fmt.Errorf("periods must be at least 1, got %d", o.Periods)
	}
	if o.Mean < 0 || o.Mean > 1 {
		return fmt.Errorf("mean must be between 0.0 and 1.0, got %v", o.Mean)
	}
	if o.Spread < 0 {
		return fmt.Errorf("spread must not be negative, got %v", o.Spread)
	}
	if o.MissingRate < 0 || o.MissingRate >= 1 {
		return fmt.Errorf("missing rate must be in [0, 1), got %v", o.MissingRate)
	}
	return nil
}

// Generate draws the dataset. The same Options always yield the same records,
// ordered by entity then period.
func Generate(o Options) ([]models.Record, error) {
	if err := o.Validate(); err != nil {
		return nil, err
	}
	rng := rand.New(rand.NewSource(o.Seed))

	total := o.Entities + o.TrendEntities
	records := make([]models.Record, 0, total*o.Periods)
	row := 0
	for e := 0; e < total; e++ {
		id := fmt.Sprintf("S%04d", e+1)
		trend := 0.0
		if e >= o.Entities {
			id = fmt.Sprintf("T%04d", e-o.Entities+1)
			trend = o.Trend
		}

		var category *string
		if len(o.Categories) > 0 {
			c := o.Categories[e%len(o.Categories)]
			category = &c
		}

		for p := 0; p < o.Periods; p++ {
			row++
			rec := models.Record{
				Row:      row,
				EntityID: id,
				Category: category,
				Period:   monthToken(o.StartYear, p),
			}
			v := o.Mean + trend*float64(p) + rng.NormFloat64()*o.Spread
			if o.MissingRate == 0 || rng.Float64() >= o.MissingRate {
				v = math.Max(0, math.Min(1, v))
				rec.Value = &v
			}
			records = append(records, rec)
		}
	}
	return records, nil
}

func monthToken(startYear, offset int) string {
	return fmt.Sprintf("%04d-%02d", startYear+offset/12, offset%12+1)
}
