package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"tibber-insights/internal/model"

	"gopkg.in/yaml.v3"
)

// Config is the resolved, immutable configuration for one insight instance.
// It is built once (defaults overlaid with the YAML file and environment)
// and passed explicitly into the pure computation functions.
type Config struct {
	APIToken string
	Timezone string

	// Recorder (local history) settings.
	RecorderDatabaseURL string
	PriceEntity         string

	Subsidy   SubsidyConfig
	GridFee   GridFeeConfig
	Consensus ConsensusConfig
	Baseline  BaselineConfig

	Debug bool
}

type SubsidyConfig struct {
	Enabled    bool
	Threshold  float64
	Percentage float64 // share of the excess covered, 0-100
}

type GridFeeConfig struct {
	Enabled      bool
	DayRate      float64
	NightRate    float64
	DayStartHour int
	DayEndHour   int
}

type ConsensusConfig struct {
	WeightTibber float64
	Weight48h    float64
	Weight30d    float64

	// Level-to-percentage mapping, user configurable per level.
	VeryCheapPct     float64
	CheapPct         float64
	NormalPct        float64
	ExpensivePct     float64
	VeryExpensivePct float64
}

// LevelMap returns the injected level-to-percentage lookup table.
func (c ConsensusConfig) LevelMap() map[model.PriceLevel]float64 {
	return map[model.PriceLevel]float64{
		model.LevelVeryCheap:     c.VeryCheapPct,
		model.LevelCheap:         c.CheapPct,
		model.LevelNormal:        c.NormalPct,
		model.LevelExpensive:     c.ExpensivePct,
		model.LevelVeryExpensive: c.VeryExpensivePct,
	}
}

type BaselineConfig struct {
	Enabled      bool
	LookbackDays int

	FallbackEnabled  bool
	MinSamples       int
	MaxFallbackHours int
}

// Default returns the documented defaults. Every YAML key is optional; the
// file only overrides what it sets.
func Default() Config {
	return Config{
		Timezone:    "Europe/Oslo",
		PriceEntity: "sensor.tibber_current_price",
		Subsidy: SubsidyConfig{
			Enabled:    false,
			Threshold:  0.9375,
			Percentage: 90.0,
		},
		GridFee: GridFeeConfig{
			Enabled:      false,
			DayRate:      0.444,
			NightRate:    0.305,
			DayStartHour: 6,
			DayEndHour:   22,
		},
		Consensus: ConsensusConfig{
			WeightTibber:     0.5,
			Weight48h:        0.3,
			Weight30d:        0.2,
			VeryCheapPct:     -40.0,
			CheapPct:         -20.0,
			NormalPct:        0.0,
			ExpensivePct:     20.0,
			VeryExpensivePct: 40.0,
		},
		Baseline: BaselineConfig{
			Enabled:          false,
			LookbackDays:     30,
			FallbackEnabled:  true,
			MinSamples:       20,
			MaxFallbackHours: 720,
		},
	}
}

// fileConfig is the on-disk YAML shape. Pointer fields distinguish "unset"
// from an explicit zero so defaults survive partial files.
type fileConfig struct {
	APIToken            *string `yaml:"api_token"`
	Timezone            *string `yaml:"timezone"`
	RecorderDatabaseURL *string `yaml:"recorder_database_url"`
	PriceEntity         *string `yaml:"price_entity"`
	Debug               *bool   `yaml:"debug"`

	Subsidy struct {
		Enabled    *bool    `yaml:"enabled"`
		Threshold  *float64 `yaml:"threshold"`
		Percentage *float64 `yaml:"percentage"`
	} `yaml:"subsidy"`

	GridFee struct {
		Enabled      *bool    `yaml:"enabled"`
		DayRate      *float64 `yaml:"day_rate"`
		NightRate    *float64 `yaml:"night_rate"`
		DayStartHour *int     `yaml:"day_start_hour"`
		DayEndHour   *int     `yaml:"day_end_hour"`
	} `yaml:"grid_fee"`

	Consensus struct {
		WeightTibber     *float64 `yaml:"weight_tibber"`
		Weight48h        *float64 `yaml:"weight_48h"`
		Weight30d        *float64 `yaml:"weight_30d"`
		VeryCheapPct     *float64 `yaml:"very_cheap_pct"`
		CheapPct         *float64 `yaml:"cheap_pct"`
		NormalPct        *float64 `yaml:"normal_pct"`
		ExpensivePct     *float64 `yaml:"expensive_pct"`
		VeryExpensivePct *float64 `yaml:"very_expensive_pct"`
	} `yaml:"consensus"`

	Baseline struct {
		Enabled          *bool `yaml:"enabled"`
		LookbackDays     *int  `yaml:"lookback_days"`
		FallbackEnabled  *bool `yaml:"fallback_enabled"`
		MinSamples       *int  `yaml:"min_samples"`
		MaxFallbackHours *int  `yaml:"max_fetch_hours"`
	} `yaml:"baseline"`
}

// Load reads, merges, and validates configuration from a YAML file.
func Load(path string) (*Config, error) {
	c, err := LoadUnchecked(path)
	if err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// LoadUnchecked loads and merges config over the defaults without
// validating. Useful for debugging/printing partial configs.
func LoadUnchecked(path string) (*Config, error) {
	c := Default()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		var f fileConfig
		if err := yaml.Unmarshal(raw, &f); err != nil {
			return nil, err
		}
		overlay(&c, &f)
	}
	applyEnv(&c)
	return &c, nil
}

func overlay(c *Config, f *fileConfig) {
	setStr(&c.APIToken, f.APIToken)
	setStr(&c.Timezone, f.Timezone)
	setStr(&c.RecorderDatabaseURL, f.RecorderDatabaseURL)
	setStr(&c.PriceEntity, f.PriceEntity)
	setBool(&c.Debug, f.Debug)

	setBool(&c.Subsidy.Enabled, f.Subsidy.Enabled)
	setF64(&c.Subsidy.Threshold, f.Subsidy.Threshold)
	setF64(&c.Subsidy.Percentage, f.Subsidy.Percentage)

	setBool(&c.GridFee.Enabled, f.GridFee.Enabled)
	setF64(&c.GridFee.DayRate, f.GridFee.DayRate)
	setF64(&c.GridFee.NightRate, f.GridFee.NightRate)
	setInt(&c.GridFee.DayStartHour, f.GridFee.DayStartHour)
	setInt(&c.GridFee.DayEndHour, f.GridFee.DayEndHour)

	setF64(&c.Consensus.WeightTibber, f.Consensus.WeightTibber)
	setF64(&c.Consensus.Weight48h, f.Consensus.Weight48h)
	setF64(&c.Consensus.Weight30d, f.Consensus.Weight30d)
	setF64(&c.Consensus.VeryCheapPct, f.Consensus.VeryCheapPct)
	setF64(&c.Consensus.CheapPct, f.Consensus.CheapPct)
	setF64(&c.Consensus.NormalPct, f.Consensus.NormalPct)
	setF64(&c.Consensus.ExpensivePct, f.Consensus.ExpensivePct)
	setF64(&c.Consensus.VeryExpensivePct, f.Consensus.VeryExpensivePct)

	setBool(&c.Baseline.Enabled, f.Baseline.Enabled)
	setInt(&c.Baseline.LookbackDays, f.Baseline.LookbackDays)
	setBool(&c.Baseline.FallbackEnabled, f.Baseline.FallbackEnabled)
	setInt(&c.Baseline.MinSamples, f.Baseline.MinSamples)
	setInt(&c.Baseline.MaxFallbackHours, f.Baseline.MaxFallbackHours)
}

// applyEnv overrides secrets and connection strings from the environment so
// they can stay out of the YAML file.
func applyEnv(c *Config) {
	if v := os.Getenv("TIBBER_TOKEN"); v != "" {
		c.APIToken = v
	}
	if v := os.Getenv("RECORDER_DATABASE_URL"); v != "" {
		c.RecorderDatabaseURL = v
	}
}

func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}
	if c.APIToken == "" {
		return errors.New("api_token is required (or set TIBBER_TOKEN)")
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}
	if c.Subsidy.Percentage < 0 || c.Subsidy.Percentage > 100 {
		return fmt.Errorf("subsidy.percentage must be in [0,100], got %v", c.Subsidy.Percentage)
	}
	if err := validHour("grid_fee.day_start_hour", c.GridFee.DayStartHour); err != nil {
		return err
	}
	if err := validHour("grid_fee.day_end_hour", c.GridFee.DayEndHour); err != nil {
		return err
	}
	for name, w := range map[string]float64{
		"weight_tibber": c.Consensus.WeightTibber,
		"weight_48h":    c.Consensus.Weight48h,
		"weight_30d":    c.Consensus.Weight30d,
	} {
		if w < 0 || w > 1 {
			return fmt.Errorf("consensus.%s must be in [0,1], got %v", name, w)
		}
	}
	if c.Baseline.LookbackDays < 1 {
		return fmt.Errorf("baseline.lookback_days must be >= 1, got %d", c.Baseline.LookbackDays)
	}
	if c.Baseline.MinSamples < 1 {
		return fmt.Errorf("baseline.min_samples must be >= 1, got %d", c.Baseline.MinSamples)
	}
	if c.Baseline.MaxFallbackHours < 1 {
		return fmt.Errorf("baseline.max_fetch_hours must be >= 1, got %d", c.Baseline.MaxFallbackHours)
	}
	if c.Baseline.Enabled && c.RecorderDatabaseURL == "" {
		return errors.New("baseline.enabled requires recorder_database_url (or RECORDER_DATABASE_URL)")
	}
	return nil
}

// Location resolves the configured civil timezone. Validate guarantees it
// loads, so the panic is unreachable after a successful Load.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		panic(fmt.Errorf("timezone %q: %w", c.Timezone, err))
	}
	return loc
}

func validHour(name string, h int) error {
	if h < 0 || h > 23 {
		return fmt.Errorf("%s must be in [0,23], got %d", name, h)
	}
	return nil
}

func setStr(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}

func setF64(dst *float64, v *float64) {
	if v != nil {
		*dst = *v
	}
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}
