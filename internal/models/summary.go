package models

// CategorySummary rolls evaluation results up per category and sets them
// against the count a stationary normal process would flag by chance.
type CategorySummary struct {
	Category           Category `json:"category"`
	EvaluatedCount     int      `json:"evaluated_count"`
	FlaggedCount       int      `json:"flagged_count"`
	HighCount          int      `json:"high_count"`
	LowCount           int      `json:"low_count"`
	Rate               float64  `json:"rate"`
	ExpectedRate       float64  `json:"expected_rate_under_null"`
	ExpectedCount      float64  `json:"expected_count_under_null"`
	ObservedToExpected float64  `json:"observed_to_expected"`
	ExcessZ            float64  `json:"excess_z"`
}

// Totals is the same roll-up across every category.
type Totals struct {
	Entities           int     `json:"entities"`
	EvaluatedEntities  int     `json:"evaluated_entities"`
	ExcludedEntities   int     `json:"excluded_entities"`
	EvaluatedCount     int     `json:"evaluated_count"`
	FlaggedCount       int     `json:"flagged_count"`
	HighCount          int     `json:"high_count"`
	LowCount           int     `json:"low_count"`
	DegenerateCount    int     `json:"degenerate_count"`
	Rate               float64 `json:"rate"`
	ExpectedRate       float64 `json:"expected_rate_under_null"`
	ExpectedCount      float64 `json:"expected_count_under_null"`
	ObservedToExpected float64 `json:"observed_to_expected"`
	ExcessZ            float64 `json:"excess_z"`
}

// EntityFlagCount ranks an entity by how many of its periods were flagged.
type EntityFlagCount struct {
	EntityID       string   `json:"entity_id"`
	EntityName     string   `json:"entity_name,omitempty"`
	Category       Category `json:"category"`
	FlaggedCount   int      `json:"flagged_count"`
	EvaluatedCount int      `json:"evaluated_count"`
}

// AnalysisParams records the configuration a run was computed with.
type AnalysisParams struct {
	WindowSize      int     `json:"window_size"`
	Lag             int     `json:"lag"`
	MinSamples      int     `json:"min_samples"`
	ZThreshold      float64 `json:"z_threshold"`
	SpreadFloor     float64 `json:"spread_floor"`
	MinTotalPeriods int     `json:"min_total_periods"`
	WindowMode      string  `json:"window_mode"`
}

// EntityRef names an entity in summary listings.
type EntityRef struct {
	EntityID   string `json:"entity_id"`
	EntityName string `json:"entity_name,omitempty"`
}

// Report is the assembled output of one run. Evaluations back the
// evaluation table artifact; everything else backs the summary artifact.
type Report struct {
	RunID           string             `json:"run_id"`
	Params          AnalysisParams     `json:"params"`
	Totals          Totals             `json:"totals"`
	Categories      []CategorySummary  `json:"categories"`
	TopEntities     []EntityFlagCount  `json:"top_entities"`
	UnknownEntities []EntityRef        `json:"unknown_category_entities"`
	Exclusions      []ExclusionRecord  `json:"exclusions"`
	Notes           []string           `json:"notes"`
	Evaluations     []EvaluationResult `json:"-"`
}
