package model

// AdjustmentResult is the outcome of applying subsidy and grid-fee rules to
// a single raw spot price.
//
// Invariant: Adjusted = Raw - Subsidy + GridFee.
type AdjustmentResult struct {
	Raw      float64 `json:"raw_spot_price"`
	Subsidy  float64 `json:"subsidy_amount"`
	GridFee  float64 `json:"grid_fee"`
	Adjusted float64 `json:"adjusted_price"`
}

// WindowStats summarizes an ordered price window against a reference value.
// It is only ever built from a non-empty window; callers treat a missing
// WindowStats as "insufficient data", never as zero.
type WindowStats struct {
	Average        float64 `json:"average"`
	Min            float64 `json:"min"`
	Max            float64 `json:"max"`
	SampleCount    int     `json:"sample_count"`
	PercentileRank float64 `json:"percentile_rank"` // 0-100, fraction strictly below reference
}

// Provenance records which data source(s) contributed to a derived statistic.
type Provenance string

const (
	ProvenancePrimary  Provenance = "primary"
	ProvenanceFallback Provenance = "fallback"
	ProvenanceMerged   Provenance = "merged"
	ProvenanceNone     Provenance = "none"
	ProvenanceError    Provenance = "error"
)

// BaselineResult is the merged same-hour historical baseline.
//
// Average is nil iff SampleCount is 0. When Provenance is "merged",
// PrimaryCount and FallbackCount break down the contributing samples and
// SampleCount equals their sum.
type BaselineResult struct {
	Average     *float64   `json:"average,omitempty"`
	Min         *float64   `json:"min,omitempty"`
	Max         *float64   `json:"max,omitempty"`
	SampleCount int        `json:"sample_count"`
	Provenance  Provenance `json:"provenance"`

	PrimaryCount  int `json:"primary_count,omitempty"`
	FallbackCount int `json:"fallback_count,omitempty"`
}

// ConsensusResult is the weighted combination of the available deviation
// signals into one normalized expensiveness score.
//
// Score is a decimal fraction: 0 = normal, +0.3 = 30% more expensive,
// -0.25 = 25% cheaper. When no inputs were available the score is the
// neutral 0.0 with empty Contributions; downstream consumers always get a
// numeric value.
type ConsensusResult struct {
	Score         float64            `json:"score"`
	Contributions map[string]float64 `json:"contributions"`
	Weights       map[string]float64 `json:"weights_used"`
	Inputs        []string           `json:"available_inputs"`
	Description   string             `json:"description"`
}
