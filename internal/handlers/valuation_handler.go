package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	apperrors "folio/internal/errors"
	"folio/internal/services"
)

// ValuationHandler serves valuations and charts.
type ValuationHandler struct {
	valuationService services.ValuationServicer
	defaultCurrency  string
}

// NewValuationHandler creates a new ValuationHandler. defaultCurrency is used
// when a request has no currency parameter.
func NewValuationHandler(valuationService services.ValuationServicer, defaultCurrency string) *ValuationHandler {
	return &ValuationHandler{valuationService: valuationService, defaultCurrency: defaultCurrency}
}

func (h *ValuationHandler) currency(c *gin.Context) string {
	return c.DefaultQuery("currency", h.defaultCurrency)
}

func chartOptions(c *gin.Context) (services.ChartOptions, error) {
	opts := services.ChartOptions{Category: c.Query("category")}
	if v := c.Query("members_only"); v != "" {
		membersOnly, err := strconv.ParseBool(v)
		if err != nil {
			return opts, apperrors.WithMessage(apperrors.ErrInvalidInput, "members_only must be true or false")
		}
		opts.MembersOnly = membersOnly
	}
	return opts, nil
}

// GetValuation handles valuing the current holdings
// @Summary     Current valuation
// @Description Value the account's current holdings at the latest prices. Assets without a price are valued at zero and listed as unresolved.
// @Tags        valuation
// @Produce     json
// @Security    BearerAuth
// @Param       currency query string false "ISO 4217 target currency (default from config)"
// @Success     200 {object} services.Valuation "Valuation"
// @Failure     400 {object} ErrorResponse "Invalid or unsupported currency"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /valuation [get]
func (h *ValuationHandler) GetValuation(c *gin.Context) {
	accountID, err := getAccountID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	valuation, err := h.valuationService.GetCurrentValuation(c.Request.Context(), accountID, h.currency(c))
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, valuation)
}

// GetPieChart handles building a pie chart of the current holdings
// @Summary     Pie chart
// @Description Per-asset pie, or per-subcategory pie when a top-level category is given
// @Tags        charts
// @Produce     json
// @Security    BearerAuth
// @Param       currency     query string false "ISO 4217 target currency (default from config)"
// @Param       category     query string false "Top-level category name"
// @Param       members_only query bool   false "Exclude assets without an assignment in the category"
// @Success     200 {object} map[string][]portfolio.Entry "Chart entries"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Category not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /charts/pie [get]
func (h *ValuationHandler) GetPieChart(c *gin.Context) {
	accountID, err := getAccountID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	opts, err := chartOptions(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	entries, err := h.valuationService.GetPieChart(c.Request.Context(), accountID, h.currency(c), opts)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"entries": entries})
}

// GetBarChart handles building the month-end bar series
// @Summary     Bar chart series
// @Description One bar per past month-end plus today's holdings, per asset or per subcategory
// @Tags        charts
// @Produce     json
// @Security    BearerAuth
// @Param       currency     query string false "ISO 4217 target currency (default from config)"
// @Param       category     query string false "Top-level category name"
// @Param       members_only query bool   false "Exclude assets without an assignment in the category"
// @Success     200 {object} map[string][]portfolio.SeriesPoint "Bar series"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Category not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /charts/bar [get]
func (h *ValuationHandler) GetBarChart(c *gin.Context) {
	accountID, err := getAccountID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	opts, err := chartOptions(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	series, err := h.valuationService.GetBarChartSeries(c.Request.Context(), accountID, h.currency(c), opts)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"series": series})
}
