package testutil

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"folio/internal/models"
	"folio/internal/uuid"

	"gorm.io/gorm"
)

// counter provides unique values across fixtures within a test run.
var counter atomic.Int64

func nextID() int64 {
	return counter.Add(1)
}

// NewAccountID returns a fresh account id. Accounts are owned elsewhere;
// ledger rows only reference them.
func NewAccountID() string {
	return uuid.New()
}

// Date returns midnight UTC of the given day.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// CreateTestTransaction inserts a stock ledger row. credit and debit are decimal strings.
func CreateTestTransaction(t *testing.T, db *gorm.DB, accountID, assetName, credit, debit string, date time.Time) *models.Transaction {
	t.Helper()
	return CreateTestTransactionWithClass(t, db, accountID, assetName, assetName, models.AssetClassStock, credit, debit, date)
}

// CreateTestTransactionWithClass inserts a ledger row with an explicit symbol and asset class.
func CreateTestTransactionWithClass(
	t *testing.T,
	db *gorm.DB,
	accountID, assetName, symbol string,
	class models.AssetClass,
	credit, debit string,
	date time.Time,
) *models.Transaction {
	t.Helper()

	tx := &models.Transaction{
		AccountID:  accountID,
		Date:       date,
		AssetName:  assetName,
		Symbol:     symbol,
		AssetClass: class,
		Credit:     decimalOrZero(t, credit),
		Debit:      decimalOrZero(t, debit),
	}
	if err := db.Create(tx).Error; err != nil {
		t.Fatalf("failed to create test transaction: %v", err)
	}
	return tx
}

// CreateTestPrice records a price point. A nil asOf records a current quote.
func CreateTestPrice(t *testing.T, db *gorm.DB, symbol string, class models.AssetClass, price string, asOf *time.Time) *models.PricePoint {
	t.Helper()
	currency := "USD"
	if class.IsForex() {
		currency = ""
	}
	return CreateTestPriceInCurrency(t, db, symbol, class, currency, price, asOf)
}

// CreateTestPriceInCurrency records a price point quoted in currency.
func CreateTestPriceInCurrency(t *testing.T, db *gorm.DB, symbol string, class models.AssetClass, currency, price string, asOf *time.Time) *models.PricePoint {
	t.Helper()

	p := &models.PricePoint{
		Symbol:     symbol,
		AssetClass: class,
		Currency:   currency,
		Price:      decimal.RequireFromString(price),
		AsOf:       asOf,
		RecordedAt: time.Now().UTC(),
	}
	if err := db.Create(p).Error; err != nil {
		t.Fatalf("failed to create test price: %v", err)
	}
	return p
}

// CreateTestCategory creates a category. A nil parentID creates a top-level category.
func CreateTestCategory(t *testing.T, db *gorm.DB, accountID, name string, parentID *string, priority int, color string) *models.Category {
	t.Helper()

	category := &models.Category{
		AccountID: accountID,
		Name:      name,
		ParentID:  parentID,
		Priority:  priority,
		Color:     color,
	}
	if err := db.Create(category).Error; err != nil {
		t.Fatalf("failed to create test category: %v", err)
	}
	return category
}

// AssignTestAsset maps an asset to a category under the given top-level category.
func AssignTestAsset(t *testing.T, db *gorm.DB, accountID, assetName string, root, category *models.Category) *models.HoldingsCategoryAssignment {
	t.Helper()

	a := &models.HoldingsCategoryAssignment{
		AccountID:      accountID,
		AssetName:      assetName,
		RootCategoryID: root.ID,
		CategoryID:     category.ID,
	}
	if err := db.Create(a).Error; err != nil {
		t.Fatalf("failed to assign test asset: %v", err)
	}
	return a
}

func decimalOrZero(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("invalid decimal %q: %v", s, err)
	}
	return d
}
