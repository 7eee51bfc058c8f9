package services

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"folio/internal/models"
	"folio/internal/pagination"
	"folio/internal/portfolio"
)

// TransactionInput carries the fields of a new ledger row.
type TransactionInput struct {
	Date       time.Time
	AssetName  string
	Symbol     string
	Unit       string
	AssetClass models.AssetClass
	Credit     decimal.Decimal
	Debit      decimal.Decimal
}

// TransactionFilter holds optional filter parameters for listing transactions.
type TransactionFilter struct {
	FromDate  *time.Time
	ToDate    *time.Time
	AssetName string
}

// TransactionServicer defines the contract for the append-only ledger.
// Every write rebuilds the account's current holdings and monthly snapshots.
type TransactionServicer interface {
	CreateTransaction(ctx context.Context, accountID string, in TransactionInput) (*models.Transaction, error)
	ListByAccount(ctx context.Context, accountID string, from, to *time.Time) ([]models.Transaction, error)
	GetAccountTransactions(ctx context.Context, accountID string, page pagination.PageRequest, filter TransactionFilter) (*pagination.PageResponse[models.Transaction], error)
	GetTransactionByID(ctx context.Context, accountID, transactionID string) (*models.Transaction, error)
	DeleteTransaction(ctx context.Context, accountID, transactionID string) error
}

// RebuildResult reports the row counts written by one account rebuild.
type RebuildResult struct {
	AccountID string `json:"account_id"`
	Holdings  int    `json:"holdings"`
	Snapshots int    `json:"snapshots"`
}

// HoldingsServicer defines the contract for the derived holdings projections.
type HoldingsServicer interface {
	RebuildCurrentHoldings(ctx context.Context, accountID string) ([]models.Holding, error)
	RebuildMonthlySnapshots(ctx context.Context, accountID string) ([]models.HoldingSnapshot, error)
	RebuildAccount(ctx context.Context, accountID string) (*RebuildResult, error)
	RebuildAll(ctx context.Context) ([]RebuildResult, error)
	GetCurrentHoldings(ctx context.Context, accountID string) ([]models.Holding, error)
	GetSnapshots(ctx context.Context, accountID string, from, to *time.Time) ([]models.HoldingSnapshot, error)
	ListSnapshots(ctx context.Context, accountID string, from, to *time.Time, page pagination.PageRequest) (*pagination.PageResponse[models.HoldingSnapshot], error)
}

// PriceInput is one externally recorded price point.
type PriceInput struct {
	Symbol     string
	AssetClass models.AssetClass
	Currency   string
	Price      decimal.Decimal
	AsOf       *time.Time
	RecordedAt time.Time
}

// PriceServicer defines the contract for the price store and resolver.
type PriceServicer interface {
	RecordPrices(ctx context.Context, prices []PriceInput) (int, error)
	Resolve(ctx context.Context, q PriceQuery, targetCurrency string) (*ResolvedPrice, error)
	ResolveAll(ctx context.Context, queries []PriceQuery, targetCurrency string) (*PriceBook, error)
}

// CategoryInput carries the writable fields of a category.
type CategoryInput struct {
	Name     string
	ParentID *string
	Priority *int
	Color    *string
}

// CategoryServicer defines the contract for the two-level category tree.
type CategoryServicer interface {
	CreateCategory(ctx context.Context, accountID string, in CategoryInput) (*models.Category, error)
	GetAccountCategories(ctx context.Context, accountID string, page pagination.PageRequest) (*pagination.PageResponse[models.Category], error)
	GetCategoryByID(ctx context.Context, accountID, categoryID string) (*models.Category, error)
	GetCategoryByName(ctx context.Context, accountID, name string) (*models.Category, error)
	ListSubcategories(ctx context.Context, accountID, categoryID string) ([]models.Category, error)
	UpdateCategory(ctx context.Context, accountID, categoryID string, in CategoryInput) (*models.Category, error)
	DeleteCategory(ctx context.Context, accountID, categoryID string) error
	AssignAsset(ctx context.Context, accountID, categoryID, assetName string) (*models.HoldingsCategoryAssignment, error)
	UnassignAsset(ctx context.Context, accountID, categoryID, assetName string) error
	ListAssetAssignments(ctx context.Context, accountID, categoryID string) ([]models.HoldingsCategoryAssignment, error)
	Grouping(ctx context.Context, accountID, categoryName string, membersOnly bool) (*portfolio.Grouping, error)
}

// ChartOptions selects the category breakdown of a chart.
// An empty Category builds a per-asset chart.
type ChartOptions struct {
	Category    string
	MembersOnly bool
}

// Valuation is the current value of an account in one currency.
type Valuation struct {
	AccountID      string                     `json:"account_id"`
	Currency       string                     `json:"currency"`
	Lines          []portfolio.LineItem       `json:"lines"`
	PerAsset       map[string]decimal.Decimal `json:"per_asset"`
	Total          decimal.Decimal            `json:"total"`
	FormattedTotal string                     `json:"formatted_total"`
	Unresolved     []string                   `json:"unresolved"`
}

// ValuationServicer defines the contract for valuations and charts.
type ValuationServicer interface {
	GetCurrentValuation(ctx context.Context, accountID, targetCurrency string) (*Valuation, error)
	GetPieChart(ctx context.Context, accountID, targetCurrency string, opts ChartOptions) ([]portfolio.Entry, error)
	GetBarChartSeries(ctx context.Context, accountID, targetCurrency string, opts ChartOptions) ([]portfolio.SeriesPoint, error)
}

// AuditServicer defines the contract for audit logging.
type AuditServicer interface {
	Log(ctx context.Context, e AuditEntry)
}
