package models

import (
	"tibber-insights/internal/insight"
	"tibber-insights/internal/model"
)

// ErrorResponse is the JSON error envelope for all API errors.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains error information.
type ErrorDetail struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// InsightResponse is the full published insight snapshot plus freshness.
type InsightResponse struct {
	insight.Snapshot
	Status insight.Status `json:"status"`
}

// PricesResponse carries just the adjusted price dataset.
type PricesResponse struct {
	Prices model.PriceData `json:"prices"`
	Status insight.Status  `json:"status"`
}

// ConsensusResponse carries just the consensus score bundle.
type ConsensusResponse struct {
	Consensus model.ConsensusResult `json:"consensus"`
	Status    insight.Status        `json:"status"`
}
