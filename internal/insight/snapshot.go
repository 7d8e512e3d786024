package insight

import (
	"math"
	"time"

	"tibber-insights/internal/model"
)

// Snapshot is one published refresh result: the adjusted price dataset plus
// the derived signals. Snapshots are immutable once published; a failed
// refresh leaves the previous snapshot in place.
type Snapshot struct {
	Prices model.PriceData `json:"prices"`

	Window    *WindowBundle         `json:"window_48h,omitempty"`
	Baseline  *BaselineBundle       `json:"baseline_30d,omitempty"`
	Consensus model.ConsensusResult `json:"consensus"`

	// Human-readable text for the provider's current price level.
	LevelDescription string `json:"level_description"`

	AdjustmentsApplied bool      `json:"adjustments_applied"`
	SkippedRecords     int       `json:"skipped_records,omitempty"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// WindowBundle is the 48-hour comparison of the current price against the
// selected rolling window.
type WindowBundle struct {
	PercentileRank float64  `json:"percentile_rank"`
	Category       string   `json:"price_category"`
	PctVsAverage   *float64 `json:"pct_vs_average,omitempty"`
	Average        float64  `json:"average"`
	Min            float64  `json:"min"`
	Max            float64  `json:"max"`
	SampleCount    int      `json:"sample_count"`
	Source         string   `json:"data_source"`
	Reference      float64  `json:"current_price"`
}

// BaselineBundle is the 30-day same-hour baseline comparison.
type BaselineBundle struct {
	model.BaselineResult

	DifferencePct *float64 `json:"difference_percent,omitempty"`
	Comparison    string   `json:"comparison,omitempty"`
}

// comparisonText classifies a baseline deviation with a 5% dead band.
func comparisonText(diffPct float64) string {
	switch {
	case math.Abs(diffPct) < 5:
		return "similar"
	case diffPct < 0:
		return "cheaper"
	default:
		return "more expensive"
	}
}

func round(v float64, decimals int) float64 {
	scale := math.Pow(10, float64(decimals))
	return math.Round(v*scale) / scale
}
