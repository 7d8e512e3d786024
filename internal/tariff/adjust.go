// Package tariff converts raw spot prices into effective consumer prices
// under subsidy and time-of-day grid-fee rules.
//
// Calculation order is fixed: subsidy first, then grid fee. Reversing the
// order changes results.
package tariff

import (
	"errors"
	"time"

	"tibber-insights/internal/config"
	"tibber-insights/internal/model"
)

// ErrInvalidTimestamp is returned when a price record's timestamp cannot be
// evaluated in the reference civil zone.
var ErrInvalidTimestamp = errors.New("tariff: invalid timestamp")

// Adjust applies the subsidy and grid-fee rules to one raw spot price.
//
// The day/night boundary is evaluated in local civil time (loc), not UTC,
// because tariffs are civil-clock-based. The day window is half-open
// [DayStartHour, DayEndHour); when DayStartHour == DayEndHour the day
// window is empty and the night rate always applies. That boundary
// behavior is intended.
func Adjust(raw float64, ts time.Time, loc *time.Location, sub config.SubsidyConfig, fee config.GridFeeConfig) (model.AdjustmentResult, error) {
	if ts.IsZero() {
		return model.AdjustmentResult{}, ErrInvalidTimestamp
	}
	local := ts.In(loc)

	subsidy := 0.0
	if sub.Enabled && raw > sub.Threshold {
		subsidy = (raw - sub.Threshold) * sub.Percentage / 100.0
	}
	afterSubsidy := raw - subsidy

	gridFee := 0.0
	if fee.Enabled {
		hour := local.Hour()
		if fee.DayStartHour <= hour && hour < fee.DayEndHour {
			gridFee = fee.DayRate
		} else {
			gridFee = fee.NightRate
		}
	}

	return model.AdjustmentResult{
		Raw:      raw,
		Subsidy:  subsidy,
		GridFee:  gridFee,
		Adjusted: afterSubsidy + gridFee,
	}, nil
}

// AdjustPoint returns a copy of p with the adjustment applied: Total becomes
// the adjusted price while the raw spot price, subsidy, and grid fee are
// carried alongside. The input point is not modified.
func AdjustPoint(p model.PricePoint, loc *time.Location, sub config.SubsidyConfig, fee config.GridFeeConfig) (model.PricePoint, error) {
	res, err := Adjust(p.Total, p.StartsAt, loc, sub, fee)
	if err != nil {
		return model.PricePoint{}, err
	}
	raw := res.Raw
	out := p
	out.Total = res.Adjusted
	out.RawSpotPrice = &raw
	out.SubsidyAmount = res.Subsidy
	out.GridFee = res.GridFee
	return out, nil
}

// AdjustSeries applies AdjustPoint over an ordered sequence. Records that
// cannot be adjusted (missing timestamp) are skipped rather than failing
// the batch; the skip count is returned so callers can log a warning.
func AdjustSeries(points []model.PricePoint, loc *time.Location, sub config.SubsidyConfig, fee config.GridFeeConfig) (out []model.PricePoint, skipped int) {
	out = make([]model.PricePoint, 0, len(points))
	for _, p := range points {
		adj, err := AdjustPoint(p, loc, sub, fee)
		if err != nil {
			skipped++
			continue
		}
		out = append(out, adj)
	}
	return out, skipped
}
