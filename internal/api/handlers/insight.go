package handlers

import (
	"errors"
	"net/http"

	"tibber-insights/internal/api/models"
	"tibber-insights/internal/data"
	"tibber-insights/internal/insight"

	"github.com/gin-gonic/gin"
)

// InsightHandler serves the published insight snapshot.
type InsightHandler struct {
	pipeline *insight.Pipeline
}

// NewInsightHandler creates an insight handler.
func NewInsightHandler(p *insight.Pipeline) *InsightHandler {
	return &InsightHandler{pipeline: p}
}

// GetInsight handles GET /api/v1/insight.
func (h *InsightHandler) GetInsight(c *gin.Context) {
	snap, ok := h.snapshot(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, models.InsightResponse{
		Snapshot: *snap,
		Status:   h.pipeline.Status(),
	})
}

// GetPrices handles GET /api/v1/insight/prices.
func (h *InsightHandler) GetPrices(c *gin.Context) {
	snap, ok := h.snapshot(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, models.PricesResponse{
		Prices: snap.Prices,
		Status: h.pipeline.Status(),
	})
}

// GetConsensus handles GET /api/v1/insight/consensus.
func (h *InsightHandler) GetConsensus(c *gin.Context) {
	snap, ok := h.snapshot(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, models.ConsensusResponse{
		Consensus: snap.Consensus,
		Status:    h.pipeline.Status(),
	})
}

// TriggerRefresh handles POST /api/v1/refresh. Triggers arriving during an
// in-flight refresh are coalesced, reported as 202.
func (h *InsightHandler) TriggerRefresh(c *gin.Context) {
	snap, err := h.pipeline.Refresh(c.Request.Context())
	if err != nil {
		if errors.Is(err, insight.ErrRefreshInProgress) {
			c.JSON(http.StatusAccepted, gin.H{"status": "refresh already in progress"})
			return
		}
		var tibberErr *data.TibberError
		if errors.As(err, &tibberErr) {
			statusCode := http.StatusBadGateway
			if tibberErr.StatusCode == http.StatusUnauthorized || tibberErr.StatusCode == http.StatusForbidden {
				statusCode = http.StatusUnauthorized
			} else if tibberErr.StatusCode == http.StatusTooManyRequests {
				statusCode = http.StatusTooManyRequests
			}
			c.JSON(statusCode, models.ErrorResponse{
				Error: models.ErrorDetail{
					Code:    tibberErr.Code,
					Message: tibberErr.Message,
				},
			})
			return
		}
		c.JSON(http.StatusBadGateway, models.ErrorResponse{
			Error: models.ErrorDetail{
				Code:    "REFRESH_FAILED",
				Message: err.Error(),
			},
		})
		return
	}
	c.JSON(http.StatusOK, models.InsightResponse{
		Snapshot: *snap,
		Status:   h.pipeline.Status(),
	})
}

func (h *InsightHandler) snapshot(c *gin.Context) (*insight.Snapshot, bool) {
	snap := h.pipeline.Snapshot()
	if snap == nil {
		c.JSON(http.StatusServiceUnavailable, models.ErrorResponse{
			Error: models.ErrorDetail{
				Code:    "NOT_READY",
				Message: "no successful refresh yet",
			},
		})
		return nil, false
	}
	return snap, true
}
