package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PricePoint is a recorded unit price for a (symbol, asset class) pair.
// AsOf nil marks a current quote; a set AsOf marks a historical monthly value.
// Forex symbols are pair-encoded as "BASE/QUOTE" and carry no Currency.
// This is immutable time-series data. No soft deletes.
type PricePoint struct {
	RowID
	Symbol     string          `gorm:"not null;index:idx_price_points_lookup" json:"symbol"`
	AssetClass AssetClass      `gorm:"not null;index:idx_price_points_lookup" json:"asset_class"`
	Currency   string          `json:"currency,omitempty"`
	Price      decimal.Decimal `gorm:"type:numeric(30,10);not null" json:"price"`
	AsOf       *time.Time      `gorm:"index:idx_price_points_lookup" json:"as_of,omitempty"`
	RecordedAt time.Time       `gorm:"not null" json:"recorded_at"`
}
