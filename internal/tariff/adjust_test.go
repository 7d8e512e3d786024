package tariff

import (
	"errors"
	"math"
	"testing"
	"time"

	"tibber-insights/internal/config"
	"tibber-insights/internal/model"
)

var oslo = time.FixedZone("CET", 1*60*60)

func subsidyOn() config.SubsidyConfig {
	return config.SubsidyConfig{Enabled: true, Threshold: 0.9375, Percentage: 90.0}
}

func gridFeeOn() config.GridFeeConfig {
	return config.GridFeeConfig{Enabled: true, DayRate: 0.444, NightRate: 0.305, DayStartHour: 6, DayEndHour: 22}
}

func TestAdjustSubsidyAndDayFee(t *testing.T) {
	ts := time.Date(2024, 1, 15, 10, 0, 0, 0, oslo)
	res, err := Adjust(1.50, ts, oslo, subsidyOn(), gridFeeOn())
	if err != nil {
		t.Fatalf("adjust: %v", err)
	}
	if math.Abs(res.Subsidy-0.50625) > 1e-9 {
		t.Fatalf("subsidy: got %v want 0.50625", res.Subsidy)
	}
	if math.Abs(res.GridFee-0.444) > 1e-9 {
		t.Fatalf("grid fee: got %v want 0.444", res.GridFee)
	}
	if math.Abs(res.Adjusted-1.43775) > 1e-9 {
		t.Fatalf("adjusted: got %v want 1.43775", res.Adjusted)
	}
	if res.Raw != 1.50 {
		t.Fatalf("raw: got %v want 1.50", res.Raw)
	}
}

func TestAdjustInvariant(t *testing.T) {
	for _, raw := range []float64{-0.1, 0, 0.5, 0.9375, 1.0, 2.5} {
		for hour := 0; hour < 24; hour++ {
			ts := time.Date(2024, 6, 1, hour, 0, 0, 0, oslo)
			res, err := Adjust(raw, ts, oslo, subsidyOn(), gridFeeOn())
			if err != nil {
				t.Fatalf("adjust raw=%v hour=%d: %v", raw, hour, err)
			}
			if got := res.Raw - res.Subsidy + res.GridFee; math.Abs(got-res.Adjusted) > 1e-12 {
				t.Fatalf("invariant broken at raw=%v hour=%d: %v != %v", raw, hour, got, res.Adjusted)
			}
			if res.Subsidy < 0 || res.GridFee < 0 {
				t.Fatalf("negative component at raw=%v hour=%d: %+v", raw, hour, res)
			}
		}
	}
}

func TestSubsidyOnlyAboveThreshold(t *testing.T) {
	ts := time.Date(2024, 1, 15, 3, 0, 0, 0, oslo)
	sub := subsidyOn()

	res, _ := Adjust(0.9375, ts, oslo, sub, config.GridFeeConfig{})
	if res.Subsidy != 0 {
		t.Fatalf("subsidy at threshold should be 0, got %v", res.Subsidy)
	}

	res, _ = Adjust(1.9375, ts, oslo, sub, config.GridFeeConfig{})
	want := (1.9375 - 0.9375) * 0.90
	if math.Abs(res.Subsidy-want) > 1e-9 {
		t.Fatalf("subsidy: got %v want %v", res.Subsidy, want)
	}
	// At percentage=100 the subsidy equals the whole excess.
	sub.Percentage = 100
	res, _ = Adjust(1.9375, ts, oslo, sub, config.GridFeeConfig{})
	if math.Abs(res.Subsidy-1.0) > 1e-9 {
		t.Fatalf("full subsidy: got %v want 1.0", res.Subsidy)
	}
}

func TestGridFeeHalfOpenWindow(t *testing.T) {
	fee := gridFeeOn()
	cases := []struct {
		hour int
		want float64
	}{
		{5, 0.305},  // before day start
		{6, 0.444},  // day start inclusive
		{21, 0.444}, // last day hour
		{22, 0.305}, // day end exclusive
		{23, 0.305},
		{0, 0.305},
	}
	for _, tc := range cases {
		ts := time.Date(2024, 1, 15, tc.hour, 30, 0, 0, oslo)
		res, err := Adjust(1.0, ts, oslo, config.SubsidyConfig{}, fee)
		if err != nil {
			t.Fatalf("adjust hour=%d: %v", tc.hour, err)
		}
		if res.GridFee != tc.want {
			t.Fatalf("hour %d: got fee %v want %v", tc.hour, res.GridFee, tc.want)
		}
	}
}

func TestGridFeeEmptyDayWindow(t *testing.T) {
	// day_start == day_end means the day window is empty: night rate always.
	fee := gridFeeOn()
	fee.DayStartHour = 8
	fee.DayEndHour = 8
	for hour := 0; hour < 24; hour++ {
		ts := time.Date(2024, 1, 15, hour, 0, 0, 0, oslo)
		res, _ := Adjust(1.0, ts, oslo, config.SubsidyConfig{}, fee)
		if res.GridFee != fee.NightRate {
			t.Fatalf("hour %d: got fee %v want night rate %v", hour, res.GridFee, fee.NightRate)
		}
	}
}

func TestGridFeeUsesLocalHour(t *testing.T) {
	// 05:30 UTC is 06:30 in the reference zone: day rate, not night.
	ts := time.Date(2024, 1, 15, 5, 30, 0, 0, time.UTC)
	res, err := Adjust(1.0, ts, oslo, config.SubsidyConfig{}, gridFeeOn())
	if err != nil {
		t.Fatalf("adjust: %v", err)
	}
	if res.GridFee != 0.444 {
		t.Fatalf("expected day rate from local conversion, got %v", res.GridFee)
	}
}

func TestAdjustInvalidTimestamp(t *testing.T) {
	_, err := Adjust(1.0, time.Time{}, oslo, subsidyOn(), gridFeeOn())
	if !errors.Is(err, ErrInvalidTimestamp) {
		t.Fatalf("expected ErrInvalidTimestamp, got %v", err)
	}
}

func TestAdjustPointPreservesRaw(t *testing.T) {
	p := model.PricePoint{
		Total:    1.50,
		Currency: "NOK",
		Level:    model.LevelExpensive,
		StartsAt: time.Date(2024, 1, 15, 10, 0, 0, 0, oslo),
	}
	adj, err := AdjustPoint(p, oslo, subsidyOn(), gridFeeOn())
	if err != nil {
		t.Fatalf("adjust point: %v", err)
	}
	if adj.RawSpotPrice == nil || *adj.RawSpotPrice != 1.50 {
		t.Fatalf("raw spot price not preserved: %+v", adj.RawSpotPrice)
	}
	if math.Abs(adj.Total-1.43775) > 1e-9 {
		t.Fatalf("total: got %v want 1.43775", adj.Total)
	}
	if adj.Level != model.LevelExpensive || adj.Currency != "NOK" {
		t.Fatalf("original fields lost: %+v", adj)
	}
	// Adjustment is not self-inverse: re-adjusting with the same config does
	// not reproduce the raw price.
	again, err := AdjustPoint(adj, oslo, subsidyOn(), gridFeeOn())
	if err != nil {
		t.Fatalf("re-adjust: %v", err)
	}
	if again.Total == p.Total {
		t.Fatalf("re-adjusting should not reproduce the raw price")
	}
	if p.Total != 1.50 {
		t.Fatalf("input point was mutated")
	}
}

func TestAdjustSeriesSkipsBadRecords(t *testing.T) {
	points := []model.PricePoint{
		{Total: 1.0, StartsAt: time.Date(2024, 1, 15, 0, 0, 0, 0, oslo)},
		{Total: 1.1}, // missing timestamp
		{Total: 1.2, StartsAt: time.Date(2024, 1, 15, 2, 0, 0, 0, oslo)},
	}
	out, skipped := AdjustSeries(points, oslo, subsidyOn(), gridFeeOn())
	if skipped != 1 {
		t.Fatalf("skipped: got %d want 1", skipped)
	}
	if len(out) != 2 {
		t.Fatalf("adjusted count: got %d want 2", len(out))
	}
	for _, p := range out {
		if !p.Adjusted() {
			t.Fatalf("output point not marked adjusted: %+v", p)
		}
	}
}
