package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "folio/internal/errors"
	"folio/internal/pagination"
	"folio/internal/services"
)

// HoldingsHandler serves the derived holdings projections.
type HoldingsHandler struct {
	holdingsService services.HoldingsServicer
	auditService    services.AuditServicer
}

// NewHoldingsHandler creates a new HoldingsHandler.
func NewHoldingsHandler(holdingsService services.HoldingsServicer, auditService services.AuditServicer) *HoldingsHandler {
	return &HoldingsHandler{holdingsService: holdingsService, auditService: auditService}
}

// GetCurrentHoldings handles listing the account's positive positions
// @Summary     Get current holdings
// @Tags        holdings
// @Produce     json
// @Security    BearerAuth
// @Success     200 {object} map[string][]models.Holding "Current holdings"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /holdings [get]
func (h *HoldingsHandler) GetCurrentHoldings(c *gin.Context) {
	accountID, err := getAccountID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	holdings, err := h.holdingsService.GetCurrentHoldings(c.Request.Context(), accountID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"holdings": holdings})
}

// GetSnapshots handles listing month-end balances
// @Summary     List monthly snapshots
// @Description Get a paginated list of month-end balances, newest month first
// @Tags        holdings
// @Produce     json
// @Security    BearerAuth
// @Param       from_date query string false "First month-end to include (RFC3339 or YYYY-MM-DD)"
// @Param       to_date   query string false "Last month-end to include (RFC3339 or YYYY-MM-DD)"
// @Param       page      query int    false "Page number (default 1)"
// @Param       page_size query int    false "Items per page (default 20, max 100)"
// @Success     200 {object} pagination.PageResponse[models.HoldingSnapshot] "Paginated snapshots"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /holdings/snapshots [get]
func (h *HoldingsHandler) GetSnapshots(c *gin.Context) {
	accountID, err := getAccountID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	from, to, err := parseDateRange(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var page pagination.PageRequest
	if err := c.ShouldBindQuery(&page); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	result, err := h.holdingsService.ListSnapshots(c.Request.Context(), accountID, from, to, page)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// RebuildHoldings handles a manual rebuild of the account's projections
// @Summary     Rebuild holdings
// @Description Recompute current holdings and monthly snapshots from the ledger
// @Tags        holdings
// @Produce     json
// @Security    BearerAuth
// @Success     200 {object} services.RebuildResult "Rebuild result"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /holdings/rebuild [post]
func (h *HoldingsHandler) RebuildHoldings(c *gin.Context) {
	accountID, err := getAccountID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	result, err := h.holdingsService.RebuildAccount(c.Request.Context(), accountID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(c.Request.Context(), services.AuditEntry{
		AccountID:    accountID,
		Action:       services.AuditRebuildAccount,
		ResourceType: "holdings",
		ResourceID:   accountID,
		IPAddress:    c.ClientIP(),
		Changes:      map[string]interface{}{"holdings": result.Holdings, "snapshots": result.Snapshots},
	})

	c.JSON(http.StatusOK, result)
}
