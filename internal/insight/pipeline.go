// Package insight orchestrates the per-refresh computation: tariff
// adjustment, the 48-hour window comparison, the 30-day baseline, and the
// weighted consensus score.
package insight

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"tibber-insights/internal/analysis"
	"tibber-insights/internal/baseline"
	"tibber-insights/internal/config"
	"tibber-insights/internal/consensus"
	"tibber-insights/internal/model"
	"tibber-insights/internal/tariff"
)

// PriceSource supplies one batch of current/today/tomorrow price records.
type PriceSource interface {
	PriceData(ctx context.Context) (*model.PriceData, error)
}

// ErrRefreshInProgress is returned when a refresh trigger arrives while
// another refresh is running. Triggers are coalesced, not queued, so the
// rate-limited remote API is never hit twice for the same cycle.
var ErrRefreshInProgress = errors.New("insight: refresh already in progress")

// Status reports the pipeline's publication state for staleness flagging.
type Status struct {
	LastSuccess time.Time `json:"last_success"`
	LastError   string    `json:"last_error,omitempty"`
	Stale       bool      `json:"stale"`
}

// Pipeline owns the refresh cycle for one configured instance. The only
// state carried across cycles is the yesterday snapshot and the previous
// today array used to detect day rollover; both are updated only at the end
// of a successful refresh.
type Pipeline struct {
	cfg    config.Config
	loc    *time.Location
	source PriceSource
	merger *baseline.Merger // nil when the 30-day baseline is disabled
	log    *slog.Logger
	now    func() time.Time

	refreshMu sync.Mutex // held for the duration of one refresh

	mu        sync.RWMutex
	snapshot  *Snapshot
	yesterday []model.PricePoint
	prevToday []model.PricePoint
	lastErr   error
}

// New creates a pipeline. merger may be nil to skip the 30-day baseline
// entirely; the pipeline never blocks on it when disabled.
func New(cfg config.Config, source PriceSource, merger *baseline.Merger, log *slog.Logger) *Pipeline {
	if log == nil {
		log = slog.Default()
	}
	return &Pipeline{
		cfg:    cfg,
		loc:    cfg.Location(),
		source: source,
		merger: merger,
		log:    log,
		now:    time.Now,
	}
}

// Refresh runs one full cycle and publishes the resulting snapshot. A
// concurrent trigger returns ErrRefreshInProgress. A price-fetch failure is
// fatal to the refresh: the previous snapshot stays published and the error
// is recorded for staleness reporting. Baseline and per-record failures only
// degrade their own signal.
func (p *Pipeline) Refresh(ctx context.Context) (*Snapshot, error) {
	if !p.refreshMu.TryLock() {
		return nil, ErrRefreshInProgress
	}
	defer p.refreshMu.Unlock()

	// The baseline only depends on the wall clock, not on the fetched
	// prices, so its two history queries run concurrently with the price
	// fetch.
	var (
		baselineRes *model.BaselineResult
		baselineWG  sync.WaitGroup
	)
	if p.cfg.Baseline.Enabled && p.merger != nil {
		baselineWG.Add(1)
		go func() {
			defer baselineWG.Done()
			res := p.merger.Compute(ctx, baseline.Params{
				TargetHour:       p.now().In(p.loc).Hour(),
				LookbackDays:     p.cfg.Baseline.LookbackDays,
				MinSamples:       p.cfg.Baseline.MinSamples,
				MaxFallbackHours: p.cfg.Baseline.MaxFallbackHours,
				Location:         p.loc,
				Now:              p.now(),
			})
			baselineRes = &res
		}()
	}

	data, err := p.source.PriceData(ctx)
	baselineWG.Wait()
	if err != nil {
		p.recordError(err)
		return nil, err
	}
	if data == nil || data.Current == nil {
		err := errors.New("insight: price source returned no current price")
		p.recordError(err)
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		// Shutdown mid-refresh: no partial result is published.
		p.recordError(err)
		return nil, err
	}

	snap, rawYesterday := p.build(data, baselineRes)

	p.mu.Lock()
	p.snapshot = snap
	// Carry-over state stays raw: the next cycle adjusts fresh copies, so
	// tariffs are never applied twice to the same record.
	p.yesterday = rawYesterday
	p.prevToday = data.Today
	p.lastErr = nil
	p.mu.Unlock()

	p.log.Info("refresh complete",
		"current", snap.Prices.Current.Total,
		"score", snap.Consensus.Score,
		"window_source", windowSource(snap))
	return snap, nil
}

// build assembles a snapshot from fetched data. It does not touch pipeline
// state; the caller publishes the result and stores the returned raw
// yesterday array for the next cycle.
func (p *Pipeline) build(data *model.PriceData, baselineRes *model.BaselineResult) (*Snapshot, []model.PricePoint) {
	yesterday := p.rolloverYesterday(data.Today)

	snap := &Snapshot{UpdatedAt: p.now()}

	adjust := p.cfg.Subsidy.Enabled || p.cfg.GridFee.Enabled
	snap.AdjustmentsApplied = adjust
	if adjust {
		current, err := tariff.AdjustPoint(*data.Current, p.loc, p.cfg.Subsidy, p.cfg.GridFee)
		if err != nil {
			// Current price with no usable timestamp cannot be placed in a
			// tariff window; publish it unadjusted.
			p.log.Warn("current price not adjustable", "err", err)
			current = *data.Current
		}
		var skipped int
		snap.Prices.Current = &current
		snap.Prices.Today, skipped = adjustCounted(data.Today, p, skipped)
		snap.Prices.Tomorrow, skipped = adjustCounted(data.Tomorrow, p, skipped)
		snap.Prices.Yesterday, skipped = adjustCounted(yesterday, p, skipped)
		snap.SkippedRecords = skipped
		if skipped > 0 {
			p.log.Warn("price records skipped during adjustment", "count", skipped)
		}
	} else {
		current := *data.Current
		snap.Prices.Current = &current
		snap.Prices.Today = data.Today
		snap.Prices.Tomorrow = data.Tomorrow
		snap.Prices.Yesterday = yesterday
	}

	reference := snap.Prices.Current.Total

	prices, source := analysis.SelectWindow(snap.Prices.Today, snap.Prices.Tomorrow, snap.Prices.Yesterday)
	var windowDeviation *float64
	if stats, ok := analysis.Stats(prices, reference); ok {
		bundle := &WindowBundle{
			PercentileRank: round(stats.PercentileRank, 1),
			Category:       analysis.Category(stats.PercentileRank),
			Average:        round(stats.Average, 4),
			Min:            round(stats.Min, 4),
			Max:            round(stats.Max, 4),
			SampleCount:    stats.SampleCount,
			Source:         source,
			Reference:      reference,
		}
		if dev, err := analysis.DeviationFromAverage(reference, stats.Average); err == nil {
			rounded := round(dev, 2)
			bundle.PctVsAverage = &rounded
			windowDeviation = &dev
		}
		snap.Window = bundle
	}

	var baselineDeviation *float64
	if baselineRes != nil {
		bundle := &BaselineBundle{BaselineResult: *baselineRes}
		if baselineRes.Average != nil {
			if diff, err := analysis.DeviationFromAverage(reference, *baselineRes.Average); err == nil {
				rounded := round(diff, 1)
				bundle.DifferencePct = &rounded
				bundle.Comparison = comparisonText(diff)
				baselineDeviation = &diff
			}
		}
		snap.Baseline = bundle
	}

	snap.LevelDescription = snap.Prices.Current.Level.Description()
	snap.Consensus = p.score(snap.Prices.Current.Level, windowDeviation, baselineDeviation)
	return snap, yesterday
}

// score collects the signals that were computable this cycle and combines
// them under the configured weights.
func (p *Pipeline) score(level model.PriceLevel, windowDev, baselineDev *float64) model.ConsensusResult {
	levelMap := p.cfg.Consensus.LevelMap()

	inputs := make([]consensus.Input, 0, 3)
	if level.Known() {
		inputs = append(inputs, consensus.Input{Name: consensus.SignalTibber, Deviation: levelMap[level]})
	}
	if windowDev != nil {
		inputs = append(inputs, consensus.Input{Name: consensus.Signal48h, Deviation: *windowDev})
	}
	if p.cfg.Baseline.Enabled && baselineDev != nil {
		inputs = append(inputs, consensus.Input{Name: consensus.Signal30d, Deviation: *baselineDev})
	}

	return consensus.Score(inputs, map[string]float64{
		consensus.SignalTibber: p.cfg.Consensus.WeightTibber,
		consensus.Signal48h:    p.cfg.Consensus.Weight48h,
		consensus.Signal30d:    p.cfg.Consensus.Weight30d,
	})
}

// rolloverYesterday returns the yesterday array for the cycle. The stored
// snapshot is replaced with the previous today array exactly once per
// calendar-day rollover, detected by comparing first timestamps; repeated
// same-day refreshes leave it untouched.
func (p *Pipeline) rolloverYesterday(newToday []model.PricePoint) []model.PricePoint {
	p.mu.RLock()
	yesterday := p.yesterday
	prevToday := p.prevToday
	p.mu.RUnlock()

	if len(prevToday) == 0 || len(newToday) == 0 {
		return yesterday
	}
	if newToday[0].StartsAt.After(prevToday[0].StartsAt) {
		p.log.Info("day rollover detected, carrying today over as yesterday",
			"yesterday_start", prevToday[0].StartsAt)
		return prevToday
	}
	return yesterday
}

// Snapshot returns the last published snapshot, or nil before the first
// successful refresh.
func (p *Pipeline) Snapshot() *Snapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.snapshot
}

// Status reports publication freshness. The snapshot is flagged stale when
// the most recent refresh attempt failed while an older result is still
// published.
func (p *Pipeline) Status() Status {
	p.mu.RLock()
	defer p.mu.RUnlock()

	s := Status{}
	if p.snapshot != nil {
		s.LastSuccess = p.snapshot.UpdatedAt
	}
	if p.lastErr != nil {
		s.LastError = p.lastErr.Error()
		s.Stale = p.snapshot != nil
	}
	return s
}

// Run refreshes immediately and then on every tick until ctx is cancelled.
// Prices change on the hour, so interval is typically time.Hour.
func (p *Pipeline) Run(ctx context.Context, interval time.Duration) {
	if _, err := p.Refresh(ctx); err != nil && !errors.Is(err, context.Canceled) {
		p.log.Error("initial refresh failed", "err", err)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := p.Refresh(ctx); err != nil && !errors.Is(err, ErrRefreshInProgress) {
				p.log.Error("scheduled refresh failed", "err", err)
			}
		}
	}
}

func (p *Pipeline) recordError(err error) {
	p.mu.Lock()
	p.lastErr = err
	p.mu.Unlock()
}

func adjustCounted(points []model.PricePoint, p *Pipeline, skipped int) ([]model.PricePoint, int) {
	out, n := tariff.AdjustSeries(points, p.loc, p.cfg.Subsidy, p.cfg.GridFee)
	return out, skipped + n
}

func windowSource(s *Snapshot) string {
	if s.Window == nil {
		return "none"
	}
	return s.Window.Source
}
