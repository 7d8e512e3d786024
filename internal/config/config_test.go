package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"tibber-insights/internal/model"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestDefaults(t *testing.T) {
	c := Default()

	if c.Timezone != "Europe/Oslo" {
		t.Fatalf("timezone: got %q", c.Timezone)
	}
	if c.Subsidy.Enabled || c.Subsidy.Threshold != 0.9375 || c.Subsidy.Percentage != 90.0 {
		t.Fatalf("subsidy defaults: %+v", c.Subsidy)
	}
	if c.GridFee.Enabled || c.GridFee.DayRate != 0.444 || c.GridFee.NightRate != 0.305 {
		t.Fatalf("grid fee defaults: %+v", c.GridFee)
	}
	if c.GridFee.DayStartHour != 6 || c.GridFee.DayEndHour != 22 {
		t.Fatalf("grid fee hours: %+v", c.GridFee)
	}
	if c.Consensus.WeightTibber != 0.5 || c.Consensus.Weight48h != 0.3 || c.Consensus.Weight30d != 0.2 {
		t.Fatalf("consensus weights: %+v", c.Consensus)
	}
	if c.Baseline.Enabled || c.Baseline.LookbackDays != 30 {
		t.Fatalf("baseline defaults: %+v", c.Baseline)
	}
	if !c.Baseline.FallbackEnabled || c.Baseline.MinSamples != 20 || c.Baseline.MaxFallbackHours != 720 {
		t.Fatalf("fallback defaults: %+v", c.Baseline)
	}

	lm := c.Consensus.LevelMap()
	if lm[model.LevelVeryCheap] != -40.0 || lm[model.LevelVeryExpensive] != 40.0 || lm[model.LevelNormal] != 0.0 {
		t.Fatalf("level map: %v", lm)
	}
}

func TestLoadPartialFileKeepsDefaults(t *testing.T) {
	t.Setenv("TIBBER_TOKEN", "")
	t.Setenv("RECORDER_DATABASE_URL", "")

	path := writeConfig(t, `
api_token: tok-0123456789
timezone: UTC
subsidy:
  enabled: true
grid_fee:
  day_rate: 0.5
consensus:
  weight_tibber: 0.6
`)
	c, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.APIToken != "tok-0123456789" {
		t.Fatalf("token: got %q", c.APIToken)
	}
	if !c.Subsidy.Enabled {
		t.Fatalf("subsidy.enabled not overridden")
	}
	// Unset keys keep their defaults even inside a partially-set section.
	if c.Subsidy.Threshold != 0.9375 {
		t.Fatalf("subsidy.threshold default lost: %v", c.Subsidy.Threshold)
	}
	if c.GridFee.DayRate != 0.5 || c.GridFee.NightRate != 0.305 {
		t.Fatalf("grid fee overlay: %+v", c.GridFee)
	}
	if c.Consensus.WeightTibber != 0.6 || c.Consensus.Weight48h != 0.3 {
		t.Fatalf("consensus overlay: %+v", c.Consensus)
	}
}

func TestLoadExplicitZeroOverridesDefault(t *testing.T) {
	t.Setenv("TIBBER_TOKEN", "")

	path := writeConfig(t, `
api_token: tok-0123456789
timezone: UTC
consensus:
  weight_30d: 0.0
`)
	c, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.Consensus.Weight30d != 0.0 {
		t.Fatalf("explicit zero not applied: %v", c.Consensus.Weight30d)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	t.Setenv("TIBBER_TOKEN", "env-token-9876")
	t.Setenv("RECORDER_DATABASE_URL", "postgres://ha:pw@db/homeassistant")

	path := writeConfig(t, `
api_token: file-token-0000
timezone: UTC
`)
	c, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.APIToken != "env-token-9876" {
		t.Fatalf("token: got %q", c.APIToken)
	}
	if c.RecorderDatabaseURL != "postgres://ha:pw@db/homeassistant" {
		t.Fatalf("recorder url: got %q", c.RecorderDatabaseURL)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestValidate(t *testing.T) {
	base := func() Config {
		c := Default()
		c.APIToken = "tok-0123456789"
		c.Timezone = "UTC"
		return c
	}

	cases := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"missing token", func(c *Config) { c.APIToken = "" }, "api_token"},
		{"bad timezone", func(c *Config) { c.Timezone = "Mars/Olympus" }, "timezone"},
		{"subsidy pct", func(c *Config) { c.Subsidy.Percentage = 101 }, "subsidy.percentage"},
		{"day start hour", func(c *Config) { c.GridFee.DayStartHour = 24 }, "day_start_hour"},
		{"day end hour", func(c *Config) { c.GridFee.DayEndHour = -1 }, "day_end_hour"},
		{"weight range", func(c *Config) { c.Consensus.Weight48h = 1.5 }, "weight_48h"},
		{"lookback", func(c *Config) { c.Baseline.LookbackDays = 0 }, "lookback_days"},
		{"min samples", func(c *Config) { c.Baseline.MinSamples = 0 }, "min_samples"},
		{"max hours", func(c *Config) { c.Baseline.MaxFallbackHours = 0 }, "max_fetch_hours"},
		{"baseline without recorder", func(c *Config) { c.Baseline.Enabled = true }, "recorder_database_url"},
	}
	for _, tc := range cases {
		c := base()
		tc.mutate(&c)
		err := c.Validate()
		if tc.wantErr == "" {
			if err != nil {
				t.Fatalf("%s: unexpected error %v", tc.name, err)
			}
			continue
		}
		if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
			t.Fatalf("%s: got %v, want error containing %q", tc.name, err, tc.wantErr)
		}
	}
}
