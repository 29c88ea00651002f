package report

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rewired-gh/ratiosentry/internal/models"
	"github.com/rewired-gh/ratiosentry/internal/monitor"
	"github.com/rewired-gh/ratiosentry/internal/series"
	"github.com/rewired-gh/ratiosentry/internal/synth"
)

func strPtr(s string) *string     { return &s }
func floatPtr(f float64) *float64 { return &f }

// fixtureRecords builds one flagged entity, one short entity and one
// entity with no category.
func fixtureRecords() []models.Record {
	var records []models.Record
	add := func(id string, category *string, values ...float64) {
		for i, v := range values {
			records = append(records, models.Record{
				Row:      len(records) + 1,
				EntityID: id,
				Category: category,
				Period:   fmt.Sprintf("2020-%02d", i+1),
				Value:    floatPtr(v),
			})
		}
	}
	add("R1", strPtr("TRAIN"), 0.70, 0.72, 0.68, 0.74, 0.69, 0.71, 0.71, 0.40)
	add("R2", strPtr("BUS"), 0.5, 0.5, 0.5)
	add("R3", nil, 0.6, 0.61, 0.59, 0.6, 0.62, 0.58, 0.6, 0.6, 0.61)
	return records
}

func runFixture(t *testing.T, records []models.Record, workers int) *models.Report {
	t.Helper()
	store, err := series.Build(records, models.NewCategorySet(nil))
	require.NoError(t, err)

	p := monitor.DefaultParams()
	p.Workers = workers
	p.KnownEvents = map[string]string{"2020-08": "timetable change"}
	m, err := monitor.New(p)
	require.NoError(t, err)

	out, err := m.Run(context.Background(), store)
	require.NoError(t, err)

	id := RunID(Fingerprint{Params: p.AnalysisParams(), KnownEvents: p.KnownEvents, InputDigest: DigestRecords(records)})
	rep, err := Assemble(out, p, id)
	require.NoError(t, err)
	return rep
}

func TestAssemble(t *testing.T) {
	rep := runFixture(t, fixtureRecords(), 2)

	assert.Equal(t, 3, rep.Totals.Entities)
	assert.Equal(t, 2, rep.Totals.EvaluatedEntities)
	assert.Equal(t, 1, rep.Totals.ExcludedEntities)
	assert.Equal(t, 3, rep.Totals.EvaluatedCount)
	assert.Equal(t, 1, rep.Totals.FlaggedCount)
	assert.Equal(t, 1, rep.Totals.LowCount)

	require.Len(t, rep.Exclusions, 1)
	assert.Equal(t, "R2", rep.Exclusions[0].EntityID)
	assert.Equal(t, []models.EntityRef{{EntityID: "R3"}}, rep.UnknownEntities)

	require.Len(t, rep.Categories, 2)
	assert.Equal(t, models.Category("TRAIN"), rep.Categories[0].Category)
	assert.Equal(t, models.CategoryUnknown, rep.Categories[1].Category)

	require.Len(t, rep.TopEntities, 1)
	assert.Equal(t, "R1", rep.TopEntities[0].EntityID)

	require.Len(t, rep.Evaluations, 3)
	assert.Equal(t, "timetable change", rep.Evaluations[0].Event)
	assert.Equal(t, []string{TrendBiasNote}, rep.Notes)
}

func TestAssembleEmpty(t *testing.T) {
	_, err := Assemble(&monitor.Outcome{}, monitor.DefaultParams(), "x")
	require.ErrorIs(t, err, models.ErrEmptyResultSet)

	_, err = Assemble(nil, monitor.DefaultParams(), "x")
	require.ErrorIs(t, err, models.ErrEmptyResultSet)
}

func TestAssembleExclusionsOnly(t *testing.T) {
	out := &monitor.Outcome{
		Entities: 1,
		Exclusions: []models.ExclusionRecord{{
			EntityID: "A", Category: "BUS", TotalPeriods: 2, MinimumRequired: 8,
			Reason: models.ExclusionInsufficientHistory,
		}},
	}
	rep, err := Assemble(out, monitor.DefaultParams(), "x")
	require.NoError(t, err)
	assert.Empty(t, rep.Categories)
	assert.Equal(t, 0, rep.Totals.EvaluatedEntities)
	assert.NotNil(t, rep.TopEntities)

	var buf bytes.Buffer
	require.NoError(t, WriteSummary(&buf, rep, FormatJSON))
	assert.Contains(t, buf.String(), `"top_entities": []`)
}

func TestRunID(t *testing.T) {
	f := Fingerprint{
		Params:      monitor.DefaultParams().AnalysisParams(),
		KnownEvents: map[string]string{"2020-03": "shutdown", "2021-01": "reopening"},
		InputDigest: DigestRecords(fixtureRecords()),
	}
	id := RunID(f)
	parsed, err := uuid.Parse(id)
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(5), parsed.Version())
	assert.Equal(t, id, RunID(f))

	f.Params.ZThreshold = 2.5
	assert.NotEqual(t, id, RunID(f))
}

func TestDigestRecords(t *testing.T) {
	a := fixtureRecords()
	b := fixtureRecords()
	assert.Equal(t, DigestRecords(a), DigestRecords(b))

	b[0].Value = floatPtr(0.7000001)
	assert.NotEqual(t, DigestRecords(a), DigestRecords(b))

	c := fixtureRecords()
	c[0].Value = nil
	assert.NotEqual(t, DigestRecords(a), DigestRecords(c))
}

func TestDigestRecordsIgnoresRowOrder(t *testing.T) {
	a := fixtureRecords()
	shuffled := fixtureRecords()
	for i, j := 0, len(shuffled)-1; i < j; i, j = i+1, j-1 {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	}
	shuffled[0], shuffled[5] = shuffled[5], shuffled[0]

	assert.Equal(t, DigestRecords(a), DigestRecords(shuffled))
	assert.Equal(t, "R1", a[0].EntityID, "input slice is not reordered")

	params := monitor.DefaultParams().AnalysisParams()
	assert.Equal(t,
		RunID(Fingerprint{Params: params, InputDigest: DigestRecords(a)}),
		RunID(Fingerprint{Params: params, InputDigest: DigestRecords(shuffled)}))
}

func TestEntityNames(t *testing.T) {
	records := fixtureRecords()
	for i := range records {
		switch records[i].EntityID {
		case "R1":
			if i > 0 {
				records[i].EntityName = "Red Line - South Hills"
			}
		case "R2":
			records[i].EntityName = "Walnut"
		case "R3":
			records[i].EntityName = "Duquesne Incline"
		}
	}
	assert.NotEqual(t, DigestRecords(fixtureRecords()), DigestRecords(records))

	rep := runFixture(t, records, 2)

	require.Len(t, rep.TopEntities, 1)
	assert.Equal(t, "Red Line - South Hills", rep.TopEntities[0].EntityName)
	require.Len(t, rep.Exclusions, 1)
	assert.Equal(t, "Walnut", rep.Exclusions[0].EntityName)
	assert.Equal(t, []models.EntityRef{{EntityID: "R3", EntityName: "Duquesne Incline"}}, rep.UnknownEntities)
	for _, r := range rep.Evaluations {
		assert.NotEmpty(t, r.EntityName, r.EntityID)
	}

	var text bytes.Buffer
	require.NoError(t, WriteSummary(&text, rep, FormatText))
	assert.Contains(t, text.String(), "R1 (Red Line - South Hills)")
	assert.Contains(t, text.String(), "R2 (Walnut)")
	assert.Contains(t, text.String(), "Entities with UNKNOWN category: R3 (Duquesne Incline)")

	md := Markdown(rep)
	assert.Contains(t, md, "| R1 | Red Line - South Hills | TRAIN | 1 | 1 |")
	assert.Contains(t, md, "| R2 | Walnut | BUS | 3 | 8 | insufficient_history |")
	assert.Contains(t, md, "- R3 (Duquesne Incline)")

	var evals bytes.Buffer
	require.NoError(t, WriteEvaluations(&evals, rep.Evaluations))
	assert.Contains(t, evals.String(), "\nR1,Red Line - South Hills,TRAIN,2020-08,0.4,")
}

func TestWriteEvaluations(t *testing.T) {
	results := []models.EvaluationResult{{
		EntityID:       "R1",
		Category:       "TRAIN",
		Period:         models.Period{Token: "2020-08", Kind: models.PeriodMonth},
		Value:          0.4,
		BaselineMean:   0.5,
		BaselineSpread: 0.02,
		SampleCount:    6,
		Score:          -5,
		Direction:      models.DirectionLow,
		Flagged:        true,
		Event:          "timetable change, phase 2",
	}}

	var buf bytes.Buffer
	require.NoError(t, WriteEvaluations(&buf, results))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "entity_id,entity_name,category,period,value,baseline_mean,baseline_spread,sample_count,score,direction,flagged,event", lines[0])
	assert.Equal(t, `R1,,TRAIN,2020-08,0.4,0.5,0.02,6,-5,LOW,true,"timetable change, phase 2"`, lines[1])
}

func TestWriteSummaryFormats(t *testing.T) {
	rep := runFixture(t, fixtureRecords(), 1)

	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, WriteSummary(&buf, rep, FormatJSON))

		var decoded map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
		assert.Equal(t, rep.RunID, decoded["run_id"])
		assert.Contains(t, decoded, "categories")
		assert.Contains(t, decoded, "exclusions")
		assert.NotContains(t, decoded, "Evaluations")
		assert.NotContains(t, buf.String(), "generated_at")
	})

	t.Run("text", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, WriteSummary(&buf, rep, FormatText))
		out := buf.String()
		assert.Contains(t, out, "RUN "+rep.RunID)
		assert.Contains(t, out, "CATEGORY")
		assert.Contains(t, out, "TRAIN")
		assert.Contains(t, out, "insufficient_history")
		assert.Contains(t, out, "Entities with UNKNOWN category: R3")
	})

	t.Run("markdown", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, WriteSummary(&buf, rep, FormatMarkdown))
		out := buf.String()
		assert.Contains(t, out, "# Anomaly summary")
		assert.Contains(t, out, "| TRAIN | 1 | 1 | 0 | 1 |")
		assert.Contains(t, out, "## Exclusions")
	})

	t.Run("html", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, WriteSummary(&buf, rep, FormatHTML))
		out := buf.String()
		assert.Contains(t, out, "<title>Anomaly summary "+rep.RunID+"</title>")
		assert.Contains(t, out, "<table>")
		assert.Contains(t, out, "<h2>Categories</h2>")
	})

	t.Run("unknown", func(t *testing.T) {
		require.Error(t, WriteSummary(&bytes.Buffer{}, rep, "pdf"))
	})
}

func TestMarkdownEscapesLabels(t *testing.T) {
	rep := &models.Report{
		RunID: "x",
		Categories: []models.CategorySummary{
			{Category: "LIGHT|RAIL", EvaluatedCount: 1},
		},
	}
	assert.Contains(t, Markdown(rep), `| LIGHT\|RAIL |`)
}

func TestArtifactPaths(t *testing.T) {
	a := Artifacts{Dir: "out", EvaluationFile: "evaluations.csv", SummaryFile: "summary", SummaryFormat: "markdown"}
	eval, sum := a.Paths()
	assert.Equal(t, filepath.Join("out", "evaluations.csv"), eval)
	assert.Equal(t, filepath.Join("out", "summary.md"), sum)

	a.SummaryFile = "report.json"
	_, sum = a.Paths()
	assert.Equal(t, filepath.Join("out", "report.json"), sum)
}

func TestWriteArtifactsDeterministic(t *testing.T) {
	opts := synth.DefaultOptions()
	opts.Entities = 30
	opts.TrendEntities = 5
	opts.Periods = 48
	opts.MissingRate = 0.05
	records, err := synth.Generate(opts)
	require.NoError(t, err)

	read := func(workers int, dir string) (string, string) {
		rep := runFixture(t, records, workers)
		a := Artifacts{Dir: dir, EvaluationFile: "evaluations.csv", SummaryFile: "summary", SummaryFormat: "json"}
		evalPath, sumPath, err := WriteArtifacts(a, rep)
		require.NoError(t, err)

		eval, err := os.ReadFile(evalPath)
		require.NoError(t, err)
		sum, err := os.ReadFile(sumPath)
		require.NoError(t, err)
		return string(eval), string(sum)
	}

	eval1, sum1 := read(1, t.TempDir())
	eval8, sum8 := read(8, t.TempDir())
	assert.Equal(t, eval1, eval8)
	assert.Equal(t, sum1, sum8)
	assert.Greater(t, strings.Count(eval1, "\n"), 30)
}
