package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// AssetClass represents the kind of instrument a ledger row moves.
type AssetClass string

const (
	AssetClassStock     AssetClass = "stock"
	AssetClassCrypto    AssetClass = "crypto"
	AssetClassCommodity AssetClass = "commodity"
	AssetClassCurrency  AssetClass = "currency"
)

// IsForex reports whether symbols of this class are currency codes priced as pairs.
func (c AssetClass) IsForex() bool { return c == AssetClassCurrency }

// Transaction is one append-only ledger row crediting or debiting an asset.
// Rows are never edited; DeletedAt is the only mutable column.
type Transaction struct {
	Base
	AccountID  string          `gorm:"type:uuid;not null;index" json:"account_id"`
	Date       time.Time       `gorm:"not null;index" json:"date"`
	AssetName  string          `gorm:"not null" json:"asset_name"`
	Symbol     string          `gorm:"not null" json:"symbol"`
	Unit       string          `json:"unit"`
	AssetClass AssetClass      `gorm:"not null" json:"asset_class"`
	Credit     decimal.Decimal `gorm:"type:numeric(30,10);not null;default:0" json:"credit"`
	Debit      decimal.Decimal `gorm:"type:numeric(30,10);not null;default:0" json:"debit"`
}

// Net returns credit minus debit.
func (t Transaction) Net() decimal.Decimal {
	return t.Credit.Sub(t.Debit)
}

// Valid reports whether c is one of the known asset classes.
func (c AssetClass) Valid() bool {
	switch c {
	case AssetClassStock, AssetClassCrypto, AssetClassCommodity, AssetClassCurrency:
		return true
	}
	return false
}
