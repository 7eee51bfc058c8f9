package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	apperrors "folio/internal/errors"
	"folio/internal/models"
	"folio/internal/services"
)

// PipelineHandler serves the API-key protected feed endpoints.
type PipelineHandler struct {
	priceService    services.PriceServicer
	holdingsService services.HoldingsServicer
	auditService    services.AuditServicer
}

// NewPipelineHandler creates a new PipelineHandler.
func NewPipelineHandler(priceService services.PriceServicer, holdingsService services.HoldingsServicer, auditService services.AuditServicer) *PipelineHandler {
	return &PipelineHandler{priceService: priceService, holdingsService: holdingsService, auditService: auditService}
}

// RecordPricesRequest represents the request payload for bulk price recording.
type RecordPricesRequest struct {
	Prices []RecordPriceEntry `json:"prices" binding:"required,min=1,dive"`
}

// RecordPriceEntry is one price point. Forex symbols are BASE/QUOTE pairs;
// other classes carry the currency they are quoted in. A missing as_of
// records a current quote.
type RecordPriceEntry struct {
	Symbol     string            `json:"symbol" binding:"required,max=40"`
	AssetClass models.AssetClass `json:"asset_class" binding:"required,asset_class"`
	Currency   string            `json:"currency" binding:"omitempty,iso4217"`
	Price      decimal.Decimal   `json:"price" swaggertype:"string" example:"187.25"`
	AsOf       *string           `json:"as_of" example:"2024-01-31"`
	RecordedAt time.Time         `json:"recorded_at" binding:"required"`
}

// RecordPrices handles recording a batch of price points.
// @Summary     Record prices
// @Description Store price points from an external feed (pipeline endpoint). Exact duplicates are skipped.
// @Tags        pipeline
// @Accept      json
// @Produce     json
// @Security    ApiKeyAuth
// @Param       request body RecordPricesRequest true "Price points"
// @Success     201 {object} map[string]int "Number of prices recorded"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Invalid API key"
// @Failure     500 {object} ErrorResponse "Server error"
// @Failure     503 {object} ErrorResponse "Pipeline not configured"
// @Router      /pipeline/prices [post]
func (h *PipelineHandler) RecordPrices(c *gin.Context) {
	var req RecordPricesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	inputs := make([]services.PriceInput, len(req.Prices))
	for i, p := range req.Prices {
		inputs[i] = services.PriceInput{
			Symbol:     p.Symbol,
			AssetClass: p.AssetClass,
			Currency:   p.Currency,
			Price:      p.Price,
			RecordedAt: p.RecordedAt,
		}
		if p.AsOf != nil && *p.AsOf != "" {
			asOf, err := parseFlexibleTime(*p.AsOf)
			if err != nil {
				respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
				return
			}
			inputs[i].AsOf = &asOf
		}
	}

	count, err := h.priceService.RecordPrices(c.Request.Context(), inputs)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(c.Request.Context(), services.AuditEntry{
		Action:       services.AuditRecordPrices,
		ResourceType: "price_point",
		IPAddress:    c.ClientIP(),
		Changes:      map[string]interface{}{"received": len(inputs), "recorded": count},
	})

	c.JSON(http.StatusCreated, gin.H{"count": count})
}

// RebuildAll handles rebuilding every account's projections.
// @Summary     Rebuild all holdings
// @Description Recompute current holdings and monthly snapshots for every account with ledger rows (pipeline endpoint)
// @Tags        pipeline
// @Produce     json
// @Security    ApiKeyAuth
// @Success     200 {object} map[string][]services.RebuildResult "Per-account results"
// @Failure     401 {object} ErrorResponse "Invalid API key"
// @Failure     500 {object} ErrorResponse "Server error"
// @Failure     503 {object} ErrorResponse "Pipeline not configured"
// @Router      /pipeline/holdings/rebuild [post]
func (h *PipelineHandler) RebuildAll(c *gin.Context) {
	results, err := h.holdingsService.RebuildAll(c.Request.Context())
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(c.Request.Context(), services.AuditEntry{
		Action:       services.AuditRebuildAll,
		ResourceType: "holdings",
		IPAddress:    c.ClientIP(),
		Changes:      map[string]interface{}{"accounts": len(results)},
	})

	c.JSON(http.StatusOK, gin.H{"results": results})
}
