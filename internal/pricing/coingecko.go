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

const coinGeckoURL = "https://api.coingecko.com/api/v3/simple/price"

// coinGeckoIDs maps common tickers to CoinGecko coin ids. Unknown tickers
// are looked up by their lowercased symbol.
var coinGeckoIDs = map[string]string{
	"BTC":  "bitcoin",
	"ETH":  "ethereum",
	"SOL":  "solana",
	"ADA":  "cardano",
	"XRP":  "ripple",
	"DOGE": "dogecoin",
	"DOT":  "polkadot",
	"LTC":  "litecoin",
	"USDT": "tether",
	"USDC": "usd-coin",
}

// CoinGeckoProvider fetches prices from CoinGecko for cryptocurrencies.
type CoinGeckoProvider struct {
	httpClient *http.Client
	baseURL    string // overridable for tests
	vsCurrency string
}

// NewCoinGeckoProvider creates a new CoinGecko price provider quoting in vsCurrency.
func NewCoinGeckoProvider(httpClient *http.Client, vsCurrency string) *CoinGeckoProvider {
	if vsCurrency == "" {
		vsCurrency = "USD"
	}
	return &CoinGeckoProvider{
		httpClient: httpClient,
		baseURL:    coinGeckoURL,
		vsCurrency: strings.ToUpper(vsCurrency),
	}
}

// Name returns the provider's display name.
func (p *CoinGeckoProvider) Name() string { return "CoinGecko" }

// Supports returns true for crypto only.
func (p *CoinGeckoProvider) Supports(class models.AssetClass) bool {
	return class == models.AssetClassCrypto
}

func coinGeckoID(symbol string) string {
	if id, ok := coinGeckoIDs[strings.ToUpper(symbol)]; ok {
		return id
	}
	return strings.ToLower(symbol)
}

// FetchQuotes fetches current prices for all instruments in one request.
func (p *CoinGeckoProvider) FetchQuotes(ctx context.Context, instruments []RefreshRequest) ([]Quote, []FetchError) {
	if len(instruments) == 0 {
		return nil, nil
	}

	ids := make([]string, len(instruments))
	for i, inst := range instruments {
		ids[i] = coinGeckoID(inst.Symbol)
	}
	vs := strings.ToLower(p.vsCurrency)
	q := url.Values{}
	q.Set("ids", strings.Join(ids, ","))
	q.Set("vs_currencies", vs)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, failAll(instruments, fmt.Errorf("building request: %w", err))
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, failAll(instruments, fmt.Errorf("http request: %w", err))
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, failAll(instruments, fmt.Errorf("unexpected status %d", resp.StatusCode))
	}

	var body map[string]map[string]float64
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, failAll(instruments, fmt.Errorf("decoding response: %w", err))
	}

	now := time.Now().UTC()
	var quotes []Quote
	var errs []FetchError
	for i, inst := range instruments {
		price, ok := body[ids[i]][vs]
		if !ok || price <= 0 {
			errs = append(errs, FetchError{Symbol: inst.Symbol, Err: fmt.Errorf("no %s price for %s", vs, ids[i])})
			continue
		}
		quotes = append(quotes, Quote{
			Symbol:     inst.Symbol,
			AssetClass: inst.AssetClass,
			Currency:   p.vsCurrency,
			Price:      decimal.NewFromFloat(price),
			RecordedAt: now,
		})
	}
	return quotes, errs
}
