package monitor

import (
	"math"
	"sort"

	"github.com/rewired-gh/ratiosentry/internal/models"
)

type tally struct {
	evaluated int
	flagged   int
	high      int
	low       int
}

func (t *tally) add(r models.EvaluationResult) {
	t.evaluated++
	if !r.Flagged {
		return
	}
	t.flagged++
	if r.Direction == models.DirectionHigh {
		t.high++
	} else {
		t.low++
	}
}

// nullStats compares a flagged count against the binomial expectation under
// the normal null model. Ratios with a zero denominator are reported as 0.
func nullStats(evaluated, flagged int, z float64) (rate, expRate, expCount, ratio, excessZ float64) {
	expRate = NullRate(z)
	if evaluated == 0 {
		return 0, expRate, 0, 0, 0
	}
	n := float64(evaluated)
	rate = float64(flagged) / n
	expCount = n * expRate
	if expCount > 0 {
		ratio = float64(flagged) / expCount
	}
	if sd := math.Sqrt(n * expRate * (1 - expRate)); sd > 0 {
		excessZ = (float64(flagged) - expCount) / sd
	}
	return rate, expRate, expCount, ratio, excessZ
}

// Summarize groups results by category and computes per-category and
// overall flagging rates. Categories come back sorted by label. Entity
// counts on the returned Totals are left for the caller.
func Summarize(results []models.EvaluationResult, zThreshold float64) ([]models.CategorySummary, models.Totals) {
	byCategory := make(map[models.Category]*tally)
	var all tally
	degenerate := 0

	for _, r := range results {
		t, ok := byCategory[r.Category]
		if !ok {
			t = &tally{}
			byCategory[r.Category] = t
		}
		t.add(r)
		all.add(r)
		if r.Direction == models.DirectionNone {
			degenerate++
		}
	}

	summaries := make([]models.CategorySummary, 0, len(byCategory))
	for cat, t := range byCategory {
		rate, expRate, expCount, ratio, excessZ := nullStats(t.evaluated, t.flagged, zThreshold)
		summaries = append(summaries, models.CategorySummary{
			Category:           cat,
			EvaluatedCount:     t.evaluated,
			FlaggedCount:       t.flagged,
			HighCount:          t.high,
			LowCount:           t.low,
			Rate:               rate,
			ExpectedRate:       expRate,
			ExpectedCount:      expCount,
			ObservedToExpected: ratio,
			ExcessZ:            excessZ,
		})
	}
	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].Category < summaries[j].Category
	})

	rate, expRate, expCount, ratio, excessZ := nullStats(all.evaluated, all.flagged, zThreshold)
	totals := models.Totals{
		EvaluatedCount:     all.evaluated,
		FlaggedCount:       all.flagged,
		HighCount:          all.high,
		LowCount:           all.low,
		DegenerateCount:    degenerate,
		Rate:               rate,
		ExpectedRate:       expRate,
		ExpectedCount:      expCount,
		ObservedToExpected: ratio,
		ExcessZ:            excessZ,
	}
	return summaries, totals
}

// TopEntities returns the k entities with the most flags, most first.
// Ties break on entity ID so output is stable. Entities with no flags are
// omitted. k <= 0 returns nil.
func TopEntities(results []models.EvaluationResult, k int) []models.EntityFlagCount {
	if k <= 0 {
		return nil
	}
	counts := make(map[string]*models.EntityFlagCount)
	for _, r := range results {
		c, ok := counts[r.EntityID]
		if !ok {
			c = &models.EntityFlagCount{EntityID: r.EntityID, EntityName: r.EntityName, Category: r.Category}
			counts[r.EntityID] = c
		}
		c.EvaluatedCount++
		if r.Flagged {
			c.FlaggedCount++
		}
	}

	ranked := make([]models.EntityFlagCount, 0, len(counts))
	for _, c := range counts {
		if c.FlaggedCount > 0 {
			ranked = append(ranked, *c)
		}
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].FlaggedCount != ranked[j].FlaggedCount {
			return ranked[i].FlaggedCount > ranked[j].FlaggedCount
		}
		return ranked[i].EntityID < ranked[j].EntityID
	})
	if len(ranked) > k {
		ranked = ranked[:k]
	}
	return ranked
}
