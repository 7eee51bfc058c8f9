// Package pricing is the asynchronous price refresh subsystem. Callers publish
// refresh requests; workers fetch quotes from external providers and record
// them into the price store, where the resolver later finds them.
package pricing

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"folio/internal/models"
)

// RefreshRequest names one instrument whose price should be refreshed.
// Forex instruments use a "BASE/QUOTE" symbol.
type RefreshRequest struct {
	Symbol     string            `json:"symbol"`
	AssetClass models.AssetClass `json:"asset_class"`
}

// Quote is a freshly fetched current price.
type Quote struct {
	Symbol     string
	AssetClass models.AssetClass
	Currency   string // empty for forex pairs
	Price      decimal.Decimal
	RecordedAt time.Time
}

// FetchError represents a failed price fetch for a specific instrument.
type FetchError struct {
	Symbol string
	Err    error
}

// Error implements the error interface.
func (e *FetchError) Error() string {
	return fmt.Sprintf("failed to fetch price for %s: %v", e.Symbol, e.Err)
}

// Provider fetches current market prices for a set of instruments.
type Provider interface {
	// Name returns the provider's display name (e.g., "Yahoo Finance", "CoinGecko").
	Name() string

	// Supports returns true if this provider can price the given asset class.
	Supports(class models.AssetClass) bool

	// FetchQuotes fetches current prices for the given instruments.
	// A provider should return as many quotes as possible, even if some fail.
	FetchQuotes(ctx context.Context, instruments []RefreshRequest) ([]Quote, []FetchError)
}

// PairSymbol encodes a forex pair as "BASE/QUOTE".
func PairSymbol(base, quote string) string {
	return strings.ToUpper(base) + "/" + strings.ToUpper(quote)
}

// SplitPair decodes a "BASE/QUOTE" symbol.
func SplitPair(symbol string) (base, quote string, ok bool) {
	base, quote, ok = strings.Cut(symbol, "/")
	if !ok || base == "" || quote == "" {
		return "", "", false
	}
	return base, quote, true
}

// failAll creates FetchErrors for all instruments of a failed request.
func failAll(instruments []RefreshRequest, err error) []FetchError {
	errs := make([]FetchError, len(instruments))
	for i, inst := range instruments {
		errs[i] = FetchError{Symbol: inst.Symbol, Err: err}
	}
	return errs
}
