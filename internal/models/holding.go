package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Holding is the current balance of one asset in an account.
// This is a derived projection of the ledger. No soft deletes.
// Rows are deleted and re-inserted wholesale on every rebuild.
type Holding struct {
	RowID
	AccountID  string          `gorm:"type:uuid;not null;uniqueIndex:uq_holdings_account_asset" json:"account_id"`
	AssetName  string          `gorm:"not null;uniqueIndex:uq_holdings_account_asset" json:"asset_name"`
	Symbol     string          `gorm:"not null" json:"symbol"`
	Unit       string          `json:"unit"`
	AssetClass AssetClass      `gorm:"not null" json:"asset_class"`
	Balance    decimal.Decimal `gorm:"type:numeric(30,10);not null" json:"balance"`
	CreatedAt  time.Time       `json:"created_at"`
}

// HoldingSnapshot is the cumulative balance of one asset as of a month's last day.
// Balances may be zero or negative.
type HoldingSnapshot struct {
	RowID
	AccountID    string          `gorm:"type:uuid;not null;uniqueIndex:uq_holding_snapshots_account_asset_month" json:"account_id"`
	AssetName    string          `gorm:"not null;uniqueIndex:uq_holding_snapshots_account_asset_month" json:"asset_name"`
	Symbol       string          `gorm:"not null" json:"symbol"`
	Unit         string          `json:"unit"`
	AssetClass   AssetClass      `gorm:"not null" json:"asset_class"`
	MonthEndDate time.Time       `gorm:"not null;uniqueIndex:uq_holding_snapshots_account_asset_month" json:"month_end_date"`
	Balance      decimal.Decimal `gorm:"type:numeric(30,10);not null" json:"balance"`
	CreatedAt    time.Time       `json:"created_at"`
}
