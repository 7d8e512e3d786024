package model

import "time"

// PriceLevel is Tibber's own classification of an hourly price.
type PriceLevel string

const (
	LevelVeryCheap     PriceLevel = "VERY_CHEAP"
	LevelCheap         PriceLevel = "CHEAP"
	LevelNormal        PriceLevel = "NORMAL"
	LevelExpensive     PriceLevel = "EXPENSIVE"
	LevelVeryExpensive PriceLevel = "VERY_EXPENSIVE"
)

// Known reports whether the level is one of the five Tibber values.
func (l PriceLevel) Known() bool {
	switch l {
	case LevelVeryCheap, LevelCheap, LevelNormal, LevelExpensive, LevelVeryExpensive:
		return true
	}
	return false
}

// Description returns a human-readable description of the level.
func (l PriceLevel) Description() string {
	switch l {
	case LevelVeryCheap:
		return "Very cheap electricity price"
	case LevelCheap:
		return "Cheap electricity price"
	case LevelNormal:
		return "Normal electricity price"
	case LevelExpensive:
		return "Expensive electricity price"
	case LevelVeryExpensive:
		return "Very expensive electricity price"
	}
	return "Unknown"
}

// PricePoint is one hourly price as reported by Tibber.
//
// Total holds the effective consumer price. Before tariff adjustment it is
// the raw spot price; after adjustment it is the adjusted price and
// RawSpotPrice carries the original value. The raw value is never discarded.
type PricePoint struct {
	Total    float64    `json:"total"`
	Currency string     `json:"currency"`
	Level    PriceLevel `json:"level,omitempty"`
	StartsAt time.Time  `json:"startsAt"`

	// Populated by the tariff adjuster.
	RawSpotPrice  *float64 `json:"raw_spot_price,omitempty"`
	SubsidyAmount float64  `json:"subsidy_amount,omitempty"`
	GridFee       float64  `json:"grid_fee,omitempty"`
}

// Adjusted reports whether tariff adjustments have been applied to the point.
func (p PricePoint) Adjusted() bool { return p.RawSpotPrice != nil }

// PriceData is one batch of price records fetched from Tibber, plus the
// yesterday snapshot carried over by the pipeline.
type PriceData struct {
	Current   *PricePoint  `json:"current,omitempty"`
	Today     []PricePoint `json:"today"`
	Tomorrow  []PricePoint `json:"tomorrow"`
	Yesterday []PricePoint `json:"yesterday"`
}

// ConsumptionPoint is one hourly consumption node from the Tibber
// consumption API, used as the remote fallback history source.
type ConsumptionPoint struct {
	From         time.Time `json:"from"`
	To           time.Time `json:"to"`
	UnitPrice    float64   `json:"unitPrice"`
	UnitPriceVAT float64   `json:"unitPriceVAT"`
	Currency     string    `json:"currency"`
}

// EffectivePrice is the consumer price for the hour: unit price plus VAT.
func (c ConsumptionPoint) EffectivePrice() float64 {
	return c.UnitPrice + c.UnitPriceVAT
}

// HistorySample is one recorded sensor state from the local history store.
// State is kept as a string because the store serializes all states that
// way; sentinel values ("unavailable", "unknown", "None") must be filtered
// before numeric parsing.
type HistorySample struct {
	State     string    `json:"state"`
	Timestamp time.Time `json:"timestamp"`
}
