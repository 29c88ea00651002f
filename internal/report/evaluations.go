package report

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/rewired-gh/ratiosentry/internal/models"
)

// EvaluationColumns is the header of the evaluation table.
var EvaluationColumns = []string{
	"entity_id", "entity_name", "category", "period", "value",
	"baseline_mean", "baseline_spread", "sample_count",
	"score", "direction", "flagged", "event",
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// WriteEvaluations writes one CSV row per result in the given order.
// Floats use the shortest exact representation so reruns are byte-identical.
func WriteEvaluations(w io.Writer, results []models.EvaluationResult) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(EvaluationColumns); err != nil {
		return err
	}
	for _, r := range results {
		row := []string{
			r.EntityID,
			r.EntityName,
			string(r.Category),
			r.Period.Token,
			formatFloat(r.Value),
			formatFloat(r.BaselineMean),
			formatFloat(r.BaselineSpread),
			strconv.Itoa(r.SampleCount),
			formatFloat(r.Score),
			string(r.Direction),
			strconv.FormatBool(r.Flagged),
			r.Event,
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
