package pricing

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"folio/internal/models"
)

const (
	yahooQuoteURL = "https://query1.finance.yahoo.com/v7/finance/quote"
	yahooBatchMax = 50
	yahooUA       = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7)"
)

// yahooQuoteResponse is the top-level Yahoo Finance quote response.
type yahooQuoteResponse struct {
	QuoteResponse struct {
		Result []yahooQuoteResult `json:"result"`
		Error  *json.RawMessage   `json:"error"`
	} `json:"quoteResponse"`
}

type yahooQuoteResult struct {
	Symbol             string  `json:"symbol"`
	Currency           string  `json:"currency"`
	RegularMarketPrice float64 `json:"regularMarketPrice"`
}

// YahooProvider fetches prices from Yahoo Finance for stocks and commodities.
type YahooProvider struct {
	httpClient *http.Client
	baseURL    string // overridable for tests
}

// NewYahooProvider creates a new Yahoo Finance price provider.
func NewYahooProvider(httpClient *http.Client) *YahooProvider {
	return &YahooProvider{httpClient: httpClient, baseURL: yahooQuoteURL}
}

// Name returns the provider's display name.
func (p *YahooProvider) Name() string { return "Yahoo Finance" }

// Supports returns true for stocks and commodities.
func (p *YahooProvider) Supports(class models.AssetClass) bool {
	return class == models.AssetClassStock || class == models.AssetClassCommodity
}

// FetchQuotes fetches current prices in batches of yahooBatchMax tickers.
func (p *YahooProvider) FetchQuotes(ctx context.Context, instruments []RefreshRequest) ([]Quote, []FetchError) {
	var quotes []Quote
	var errs []FetchError
	now := time.Now().UTC()

	for i := 0; i < len(instruments); i += yahooBatchMax {
		end := min(i+yahooBatchMax, len(instruments))
		q, e := p.fetchBatch(ctx, instruments[i:end], now)
		quotes = append(quotes, q...)
		errs = append(errs, e...)
	}
	return quotes, errs
}

func (p *YahooProvider) fetchBatch(ctx context.Context, batch []RefreshRequest, now time.Time) ([]Quote, []FetchError) {
	tickers := make([]string, len(batch))
	for i, inst := range batch {
		tickers[i] = inst.Symbol
	}
	reqURL := p.baseURL + "?symbols=" + url.QueryEscape(strings.Join(tickers, ","))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, failAll(batch, fmt.Errorf("building request: %w", err))
	}
	req.Header.Set("User-Agent", yahooUA)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, failAll(batch, fmt.Errorf("http request: %w", err))
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, failAll(batch, fmt.Errorf("unexpected status %d", resp.StatusCode))
	}

	var quoteResp yahooQuoteResponse
	if err := json.NewDecoder(resp.Body).Decode(&quoteResp); err != nil {
		return nil, failAll(batch, fmt.Errorf("decoding response: %w", err))
	}

	results := make(map[string]yahooQuoteResult, len(quoteResp.QuoteResponse.Result))
	for _, r := range quoteResp.QuoteResponse.Result {
		results[r.Symbol] = r
	}

	var quotes []Quote
	var errs []FetchError
	for _, inst := range batch {
		r, found := results[inst.Symbol]
		if !found {
			errs = append(errs, FetchError{Symbol: inst.Symbol, Err: fmt.Errorf("symbol %s not found in response", inst.Symbol)})
			continue
		}
		if r.RegularMarketPrice <= 0 {
			errs = append(errs, FetchError{Symbol: inst.Symbol, Err: fmt.Errorf("non-positive price for %s", inst.Symbol)})
			continue
		}
		currency := strings.ToUpper(r.Currency)
		if currency == "" {
			currency = "USD"
		}
		quotes = append(quotes, Quote{
			Symbol:     inst.Symbol,
			AssetClass: inst.AssetClass,
			Currency:   currency,
			Price:      decimal.NewFromFloat(r.RegularMarketPrice),
			RecordedAt: now,
		})
	}
	return quotes, errs
}
