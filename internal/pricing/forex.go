package pricing

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"folio/internal/models"
)

const yahooChartURL = "https://query1.finance.yahoo.com/v8/finance/chart"

// yahooChartResponse is the subset of the Yahoo v8 chart response used for forex.
type yahooChartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Symbol             string  `json:"symbol"`
				Currency           string  `json:"currency"`
				RegularMarketPrice float64 `json:"regularMarketPrice"`
			} `json:"meta"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// ForexProvider fetches currency pair rates from Yahoo Finance.
// A "EUR/USD" instrument is fetched as the "EURUSD=X" ticker.
type ForexProvider struct {
	httpClient *http.Client
	baseURL    string // overridable for tests
}

// NewForexProvider creates a new forex rate provider.
func NewForexProvider(httpClient *http.Client) *ForexProvider {
	return &ForexProvider{httpClient: httpClient, baseURL: yahooChartURL}
}

// Name returns the provider's display name.
func (p *ForexProvider) Name() string { return "Yahoo Finance FX" }

// Supports returns true for currency pairs.
func (p *ForexProvider) Supports(class models.AssetClass) bool {
	return class.IsForex()
}

// FetchQuotes fetches one chart per pair; the chart endpoint has no batch form.
func (p *ForexProvider) FetchQuotes(ctx context.Context, instruments []RefreshRequest) ([]Quote, []FetchError) {
	var quotes []Quote
	var errs []FetchError
	for _, inst := range instruments {
		rate, err := p.fetchRate(ctx, inst.Symbol)
		if err != nil {
			errs = append(errs, FetchError{Symbol: inst.Symbol, Err: err})
			continue
		}
		quotes = append(quotes, Quote{
			Symbol:     inst.Symbol,
			AssetClass: inst.AssetClass,
			Price:      rate,
			RecordedAt: time.Now().UTC(),
		})
	}
	return quotes, errs
}

func (p *ForexProvider) fetchRate(ctx context.Context, pair string) (decimal.Decimal, error) {
	base, quote, ok := SplitPair(pair)
	if !ok {
		return decimal.Zero, fmt.Errorf("invalid forex pair %q", pair)
	}
	ticker := base + quote + "=X"
	reqURL := p.baseURL + "/" + ticker + "?interval=1d&range=1d"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return decimal.Zero, fmt.Errorf("building forex request: %w", err)
	}
	req.Header.Set("User-Agent", yahooUA)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return decimal.Zero, fmt.Errorf("forex http request for %s: %w", ticker, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return decimal.Zero, fmt.Errorf("forex request for %s: unexpected status %d", ticker, resp.StatusCode)
	}

	var chartResp yahooChartResponse
	if err := json.NewDecoder(resp.Body).Decode(&chartResp); err != nil {
		return decimal.Zero, fmt.Errorf("decoding forex response for %s: %w", ticker, err)
	}
	if chartResp.Chart.Error != nil {
		return decimal.Zero, fmt.Errorf("forex chart error for %s: %s: %s", ticker, chartResp.Chart.Error.Code, chartResp.Chart.Error.Description)
	}
	if len(chartResp.Chart.Result) == 0 {
		return decimal.Zero, fmt.Errorf("no forex results for %s", ticker)
	}

	rate := chartResp.Chart.Result[0].Meta.RegularMarketPrice
	if rate <= 0 {
		return decimal.Zero, fmt.Errorf("invalid forex rate for %s: %f", ticker, rate)
	}
	return decimal.NewFromFloat(rate), nil
}
