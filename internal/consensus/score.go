// Package consensus combines independent percentage-deviation signals into
// one normalized expensiveness score.
package consensus

import (
	"fmt"
	"math"
	"sort"

	"tibber-insights/internal/model"
)

// Signal names used in contribution and weight maps.
const (
	SignalTibber = "tibber"
	Signal48h    = "48h"
	Signal30d    = "30d"
)

// Input is one computable signal for this cycle: a percentage deviation
// from "normal" (e.g. +20 means 20% more expensive).
type Input struct {
	Name      string
	Deviation float64
}

// Score combines the present inputs under the configured weights.
//
// Weights are renormalized over only the present signals so they always sum
// to 1.0 when at least one input exists. With zero inputs, or a configured
// weight sum of exactly 0 for the present ones, the result is the neutral
// score 0.0 with an empty contribution set. That neutral fallback is a
// deliberate policy: downstream consumers expect a numeric value at all
// times, so "nothing to say" reads as "normal", not "unknown".
func Score(inputs []Input, weights map[string]float64) model.ConsensusResult {
	if len(inputs) == 0 {
		return neutral()
	}

	totalWeight := 0.0
	for _, in := range inputs {
		totalWeight += weights[in.Name]
	}
	if totalWeight == 0 {
		return neutral()
	}

	contributions := make(map[string]float64, len(inputs))
	normalized := make(map[string]float64, len(inputs))
	names := make([]string, 0, len(inputs))
	rawPct := 0.0
	for _, in := range inputs {
		w := weights[in.Name] / totalWeight
		normalized[in.Name] = w
		contributions[in.Name] = in.Deviation
		rawPct += in.Deviation * w
		names = append(names, in.Name)
	}
	sort.Strings(names)

	score := round3(rawPct / 100.0)
	return model.ConsensusResult{
		Score:         score,
		Contributions: contributions,
		Weights:       normalized,
		Inputs:        names,
		Description:   Describe(score),
	}
}

// Describe renders the score as human-readable text. Scores within a 5%
// band of normal read as "Normal price".
func Describe(score float64) string {
	pct := score * 100.0
	switch {
	case math.Abs(pct) < 5:
		return "Normal price"
	case pct < 0:
		return fmt.Sprintf("%.1f%% cheaper than normal", math.Abs(pct))
	default:
		return fmt.Sprintf("%.1f%% more expensive than normal", pct)
	}
}

func neutral() model.ConsensusResult {
	return model.ConsensusResult{
		Score:         0.0,
		Contributions: map[string]float64{},
		Weights:       map[string]float64{},
		Inputs:        []string{},
		Description:   Describe(0.0),
	}
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
