// Package report assembles run outcomes into the evaluation table and the
// summary, and renders both to disk.
package report

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"

	"github.com/google/uuid"

	"github.com/rewired-gh/ratiosentry/internal/models"
	"github.com/rewired-gh/ratiosentry/internal/monitor"
)

// runNamespace scopes run fingerprints to this tool.
var runNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/rewired-gh/ratiosentry/run"))

// Fingerprint is everything that determines a run's output.
type Fingerprint struct {
	Params      models.AnalysisParams `json:"params"`
	Categories  []string              `json:"categories"`
	KnownEvents map[string]string     `json:"known_events"`
	InputDigest string                `json:"input_digest"`
}

// RunID derives a name-based UUID from the fingerprint. Identical input and
// configuration always give the same ID.
func RunID(f Fingerprint) string {
	// encoding/json sorts map keys, so the encoding is canonical.
	data, err := json.Marshal(f)
	if err != nil {
		return uuid.Nil.String()
	}
	return uuid.NewSHA1(runNamespace, data).String()
}

// DigestRecords hashes the input records ordered by entity then period, so
// the digest does not depend on row order.
func DigestRecords(records []models.Record) string {
	sorted := make([]models.Record, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].EntityID != sorted[j].EntityID {
			return sorted[i].EntityID < sorted[j].EntityID
		}
		return sorted[i].Period < sorted[j].Period
	})

	h := sha256.New()
	for _, r := range sorted {
		category, value := "\x00", "\x00"
		if r.Category != nil {
			category = *r.Category
		}
		if r.Value != nil {
			value = strconv.FormatFloat(*r.Value, 'g', -1, 64)
		}
		fmt.Fprintf(h, "%s\x1f%s\x1f%s\x1f%s\x1f%s\n", r.EntityID, category, r.Period, value, r.EntityName)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// TrendBiasNote is attached to every report. The lagged baseline trails any
// sustained trend, which skews the sign of scores during one.
const TrendBiasNote = "Baselines use strictly earlier periods and lag behind sustained trends: " +
	"during a decline LOW flags are structurally easier to trigger, during an improvement HIGH flags are."

// Assemble builds the report for one run. It fails with
// models.ErrEmptyResultSet when the run produced neither results nor
// exclusions, since that means nothing was read.
func Assemble(out *monitor.Outcome, params monitor.Params, runID string) (*models.Report, error) {
	if out == nil || (len(out.Results) == 0 && len(out.Exclusions) == 0) {
		return nil, models.ErrEmptyResultSet
	}

	categories, totals := monitor.Summarize(out.Results, params.ZThreshold)
	totals.Entities = out.Entities
	totals.ExcludedEntities = len(out.Exclusions)
	totals.EvaluatedEntities = out.Entities - len(out.Exclusions)

	top := monitor.TopEntities(out.Results, params.TopEntities)
	if top == nil {
		top = []models.EntityFlagCount{}
	}
	exclusions := out.Exclusions
	if exclusions == nil {
		exclusions = []models.ExclusionRecord{}
	}

	return &models.Report{
		RunID:           runID,
		Params:          params.AnalysisParams(),
		Totals:          totals,
		Categories:      categories,
		TopEntities:     top,
		UnknownEntities: unknownEntities(out),
		Exclusions:      exclusions,
		Notes:           []string{TrendBiasNote},
		Evaluations:     out.Results,
	}, nil
}

func unknownEntities(out *monitor.Outcome) []models.EntityRef {
	names := make(map[string]string)
	for _, r := range out.Results {
		if r.Category.IsUnknown() && names[r.EntityID] == "" {
			names[r.EntityID] = r.EntityName
		}
	}
	for _, x := range out.Exclusions {
		if x.Category.IsUnknown() && names[x.EntityID] == "" {
			names[x.EntityID] = x.EntityName
		}
	}
	refs := make([]models.EntityRef, 0, len(names))
	for id, name := range names {
		refs = append(refs, models.EntityRef{EntityID: id, EntityName: name})
	}
	sort.Slice(refs, func(i, j int) bool { return refs[i].EntityID < refs[j].EntityID })
	return refs
}
