package monitor

import (
	"math"

	"github.com/rewired-gh/ratiosentry/internal/models"
)

// ComputeBaseline builds the baseline for row t of s from strictly earlier
// rows: never row t itself, never the Lag rows immediately before it.
// ok is false when fewer than MinSamples measured values fall in the window.
func ComputeBaseline(s *models.EntitySeries, t int, p Params) (models.Baseline, bool) {
	var window []float64
	switch p.WindowMode {
	case WindowCalendar:
		window = calendarWindow(s, t, p)
	default:
		window = availableWindow(s, t, p)
	}

	if len(window) < p.MinSamples {
		return models.Baseline{}, false
	}

	mean, spread := MeanStdDev(window)
	return models.Baseline{
		Window:      window,
		SampleCount: len(window),
		Mean:        mean,
		Spread:      spread,
		Degenerate:  spread < p.SpreadFloor,
	}, true
}

// availableWindow walks back from row t-Lag-1 collecting up to WindowSize
// measured values, skipping missing rows.
func availableWindow(s *models.EntitySeries, t int, p Params) []float64 {
	last := t - p.Lag - 1
	if last < 0 {
		return nil
	}
	window := make([]float64, 0, p.WindowSize)
	for i := last; i >= 0 && len(window) < p.WindowSize; i-- {
		if s.Present[i] {
			window = append(window, s.Values[i])
		}
	}
	reverse(window)
	return window
}

// calendarWindow collects measured values whose period ordinal falls in
// [ord(t)-Lag-WindowSize, ord(t)-Lag-1].
func calendarWindow(s *models.EntitySeries, t int, p Params) []float64 {
	target := s.Periods[t].Ordinal
	hi := target - int64(p.Lag) - 1
	lo := target - int64(p.Lag) - int64(p.WindowSize)

	window := make([]float64, 0, p.WindowSize)
	for i := t - 1; i >= 0; i-- {
		ord := s.Periods[i].Ordinal
		if ord > hi {
			continue
		}
		if ord < lo {
			break
		}
		if s.Present[i] {
			window = append(window, s.Values[i])
		}
	}
	reverse(window)
	return window
}

// MeanStdDev returns the arithmetic mean and population standard deviation
// (divide by n). The window is the whole population, not a sample of one.
// Returns (0, 0) for an empty slice.
func MeanStdDev(values []float64) (mean, stdDev float64) {
	if len(values) == 0 {
		return 0, 0
	}

	var sum float64
	for _, v := range values {
		sum += v
	}
	mean = sum / float64(len(values))

	var varianceSum float64
	for _, v := range values {
		diff := v - mean
		varianceSum += diff * diff
	}
	stdDev = math.Sqrt(varianceSum / float64(len(values)))

	return mean, stdDev
}

func reverse(xs []float64) {
	for i, j := 0, len(xs)-1; i < j; i, j = i+1, j-1 {
		xs[i], xs[j] = xs[j], xs[i]
	}
}
