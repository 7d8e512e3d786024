// Package baseline computes the same-local-hour historical price baseline by
// merging a primary local history store with a remote fallback source under
// a minimum-sample-count policy.
package baseline

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"tibber-insights/internal/model"
)

// HistorySource is the local time-series store (primary). It returns raw
// recorded states; sentinel and non-numeric states are filtered here, not
// by the source.
type HistorySource interface {
	Samples(ctx context.Context, entityID string, from, to time.Time) ([]model.HistorySample, error)
}

// FallbackSource provides remote historical prices, fetched as hourly
// consumption nodes covering the trailing span of hours.
type FallbackSource interface {
	Consumption(ctx context.Context, hours int) ([]model.ConsumptionPoint, error)
}

// Params controls one baseline computation. Now is injected so the lookback
// window and target hour are deterministic under test.
type Params struct {
	TargetHour       int
	LookbackDays     int
	MinSamples       int
	MaxFallbackHours int
	Location         *time.Location
	Now              time.Time
}

// Merger queries the history collaborators and merges their samples.
// Either source may be nil, meaning unavailable.
type Merger struct {
	History  HistorySource
	Fallback FallbackSource
	Entity   string
	Log      *slog.Logger
}

// Compute runs the merge state machine:
//
//	PRIMARY_ONLY:   primary count >= MinSamples, or no fallback to consult.
//	NEEDS_FALLBACK: primary short and a fallback exists; fetch up to
//	                MaxFallbackHours of remote samples for the target hour.
//	MERGED / FALLBACK_ONLY / NONE: terminal merge outcomes.
//
// Baseline is an enrichment signal, so collaborator I/O failures never
// propagate: they degrade to provenance "error" with absent statistics.
func (m *Merger) Compute(ctx context.Context, p Params) model.BaselineResult {
	log := m.logger()

	primary, err := m.primarySamples(ctx, p)
	if err != nil {
		log.Warn("baseline history query failed", "entity", m.Entity, "err", err)
		return model.BaselineResult{Provenance: model.ProvenanceError}
	}

	if len(primary) >= p.MinSamples || m.Fallback == nil {
		if len(primary) == 0 {
			log.Debug("baseline has no samples and no fallback", "hour", p.TargetHour)
			return model.BaselineResult{Provenance: model.ProvenanceNone}
		}
		res := summarize(primary)
		res.Provenance = model.ProvenancePrimary
		return res
	}

	// NEEDS_FALLBACK: estimate how many hours of remote history would fill
	// the gap. Primary holds roughly one same-hour sample per covered day.
	fetchHours := fetchWindowHours(p.LookbackDays, len(primary), p.MaxFallbackHours)
	log.Debug("baseline consulting fallback",
		"primary_samples", len(primary), "min_samples", p.MinSamples, "fetch_hours", fetchHours)

	nodes, err := m.Fallback.Consumption(ctx, fetchHours)
	if err != nil {
		log.Warn("baseline fallback fetch failed", "err", err)
		return model.BaselineResult{Provenance: model.ProvenanceError}
	}

	fallback := make([]float64, 0, len(nodes))
	for _, n := range nodes {
		if n.From.IsZero() {
			continue
		}
		if n.From.In(p.Location).Hour() != p.TargetHour {
			continue
		}
		fallback = append(fallback, n.EffectivePrice())
	}

	switch {
	case len(primary) > 0 && len(fallback) > 0:
		res := summarize(append(append([]float64{}, primary...), fallback...))
		res.Provenance = model.ProvenanceMerged
		res.PrimaryCount = len(primary)
		res.FallbackCount = len(fallback)
		return res
	case len(fallback) > 0:
		res := summarize(fallback)
		res.Provenance = model.ProvenanceFallback
		return res
	case len(primary) > 0:
		// Fallback answered but held nothing for this hour.
		res := summarize(primary)
		res.Provenance = model.ProvenancePrimary
		return res
	default:
		return model.BaselineResult{Provenance: model.ProvenanceNone}
	}
}

// primarySamples queries the local store and keeps numeric states whose
// local hour matches the target hour, regardless of calendar day. That is
// how "last N days, same hour" is computed.
func (m *Merger) primarySamples(ctx context.Context, p Params) ([]float64, error) {
	if m.History == nil {
		return nil, nil
	}
	from := p.Now.Add(-time.Duration(p.LookbackDays) * 24 * time.Hour)
	states, err := m.History.Samples(ctx, m.Entity, from, p.Now)
	if err != nil {
		return nil, err
	}

	out := make([]float64, 0, len(states))
	for _, s := range states {
		if isSentinel(s.State) {
			continue
		}
		if s.Timestamp.In(p.Location).Hour() != p.TargetHour {
			continue
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(s.State), 64)
		if err != nil {
			continue
		}
		out = append(out, v)
	}
	return out, nil
}

// fetchWindowHours estimates the remote span needed to cover the days the
// primary store is missing, capped at the configured maximum.
func fetchWindowHours(lookbackDays, primaryDays, maxHours int) int {
	days := lookbackDays - primaryDays
	if days < 1 {
		days = 1
	}
	hours := days * 24
	if hours > maxHours {
		hours = maxHours
	}
	return hours
}

func isSentinel(state string) bool {
	switch strings.TrimSpace(state) {
	case "", "unavailable", "unknown", "None":
		return true
	}
	return false
}

func summarize(values []float64) model.BaselineResult {
	avg, minv, maxv := 0.0, values[0], values[0]
	for _, v := range values {
		avg += v
		if v < minv {
			minv = v
		}
		if v > maxv {
			maxv = v
		}
	}
	avg /= float64(len(values))
	return model.BaselineResult{
		Average:     &avg,
		Min:         &minv,
		Max:         &maxv,
		SampleCount: len(values),
	}
}

func (m *Merger) logger() *slog.Logger {
	if m.Log != nil {
		return m.Log
	}
	return slog.Default()
}
