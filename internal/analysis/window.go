// Package analysis computes rolling-window price statistics.
package analysis

import (
	"errors"
	"math"

	"tibber-insights/internal/model"
)

// ErrDivisionUndefined is returned when a percentage deviation cannot be
// computed because the window average is exactly zero. Callers treat the
// deviation as absent.
var ErrDivisionUndefined = errors.New("analysis: average is zero, deviation undefined")

// Price category thresholds (percentile rank). Fixed, not configurable;
// the consensus tuning depends on them.
const (
	CategoryCheapThreshold     = 33.0
	CategoryExpensiveThreshold = 66.0
)

const (
	CategoryCheap     = "cheap"
	CategoryNormal    = "normal"
	CategoryExpensive = "expensive"
)

// Window-source provenance tags for the 48-hour comparison.
const (
	SourceTodayTomorrow  = "today+tomorrow"
	SourceYesterdayToday = "yesterday+today"
	SourceTodayOnly      = "today-only"
)

// Stats summarizes prices against a reference value. ok is false when the
// window is empty; an empty window means "insufficient data", never zero.
func Stats(prices []float64, reference float64) (stats model.WindowStats, ok bool) {
	if len(prices) == 0 {
		return model.WindowStats{}, false
	}

	sum := 0.0
	minv := math.Inf(1)
	maxv := math.Inf(-1)
	for _, v := range prices {
		sum += v
		if v < minv {
			minv = v
		}
		if v > maxv {
			maxv = v
		}
	}

	return model.WindowStats{
		Average:        sum / float64(len(prices)),
		Min:            minv,
		Max:            maxv,
		SampleCount:    len(prices),
		PercentileRank: PercentileRank(prices, reference),
	}, true
}

// PercentileRank is the share of values strictly below reference, scaled to
// 0-100. Ties are not counted as below: a reference tied with many samples
// ranks lower than an index-based percentile would place it. Downstream
// category thresholds were tuned against this rule, so it must not be
// changed to a sorted-index percentile. Returns 0 for an empty window.
func PercentileRank(prices []float64, reference float64) float64 {
	if len(prices) == 0 {
		return 0
	}
	below := 0
	for _, v := range prices {
		if v < reference {
			below++
		}
	}
	return 100.0 * float64(below) / float64(len(prices))
}

// DeviationFromAverage is the percentage difference of reference from
// average: 12.5 means 12.5% above. Fails with ErrDivisionUndefined when the
// average is exactly zero.
func DeviationFromAverage(reference, average float64) (float64, error) {
	if average == 0 {
		return 0, ErrDivisionUndefined
	}
	return 100.0 * (reference - average) / average, nil
}

// Category buckets a percentile rank into cheap/normal/expensive.
func Category(rank float64) string {
	switch {
	case rank < CategoryCheapThreshold:
		return CategoryCheap
	case rank < CategoryExpensiveThreshold:
		return CategoryNormal
	default:
		return CategoryExpensive
	}
}

// SelectWindow picks the 48-hour comparison window. This is a priority
// chain, not a union: today+tomorrow when tomorrow data exists, else
// yesterday+today, else today alone. The chosen pairing is returned as a
// provenance tag.
func SelectWindow(today, tomorrow, yesterday []model.PricePoint) (prices []float64, source string) {
	switch {
	case len(tomorrow) > 0:
		return totals(today, tomorrow), SourceTodayTomorrow
	case len(yesterday) > 0:
		return totals(yesterday, today), SourceYesterdayToday
	default:
		return totals(today), SourceTodayOnly
	}
}

func totals(series ...[]model.PricePoint) []float64 {
	n := 0
	for _, s := range series {
		n += len(s)
	}
	out := make([]float64, 0, n)
	for _, s := range series {
		for _, p := range s {
			out = append(out, p.Total)
		}
	}
	return out
}
