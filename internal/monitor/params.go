package monitor

import "fmt"

// WindowMode selects how the baseline window is laid over an entity's history.
type WindowMode string

const (
	// WindowAvailable takes the WindowSize most recent measured values at rows
	// at or before t-Lag-1. Gaps widen the window in calendar terms but never
	// shrink its content.
	WindowAvailable WindowMode = "available"
	// WindowCalendar takes the measured values whose period ordinal lies in
	// [ord(t)-Lag-WindowSize, ord(t)-Lag-1]. Gaps shrink the sample.
	WindowCalendar WindowMode = "calendar"
)

// Params holds every knob of the baseline estimator and evaluator.
type Params struct {
	WindowSize      int
	Lag             int
	MinSamples      int
	ZThreshold      float64
	SpreadFloor     float64
	MinTotalPeriods int
	WindowMode      WindowMode
	Workers         int
	KnownEvents     map[string]string // period token -> label
	TopEntities     int
}

// DefaultParams returns the documented defaults.
func DefaultParams() Params {
	return Params{
		WindowSize:      12,
		Lag:             1,
		MinSamples:      6,
		ZThreshold:      2.0,
		SpreadFloor:     1e-9,
		MinTotalPeriods: 8,
		WindowMode:      WindowAvailable,
		Workers:         1,
		TopEntities:     5,
	}
}

// Validate rejects parameter combinations the estimator cannot honour.
func (p Params) Validate() error {
	if p.WindowSize < 1 {
		return fmt.Errorf("window size must be at least 1, got %d", p.WindowSize)
	}
	if p.Lag < 0 {
		return fmt.Errorf("lag must not be negative, got %d", p.Lag)
	}
	if p.MinSamples < 1 || p.MinSamples > p.WindowSize {
		return fmt.Errorf("min samples must be in [1, %d], got %d", p.WindowSize, p.MinSamples)
	}
	if p.ZThreshold <= 0 {
		return fmt.Errorf("z threshold must be positive, got %v", p.ZThreshold)
	}
	if p.SpreadFloor <= 0 {
		return fmt.Errorf("spread floor must be positive, got %v", p.SpreadFloor)
	}
	if p.MinTotalPeriods < 1 {
		return fmt.Errorf("min total periods must be at least 1, got %d", p.MinTotalPeriods)
	}
	if p.WindowMode != WindowAvailable && p.WindowMode != WindowCalendar {
		return fmt.Errorf("unknown window mode %q", p.WindowMode)
	}
	return nil
}
