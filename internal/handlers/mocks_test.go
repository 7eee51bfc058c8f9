package handlers

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"folio/internal/middleware"
	"folio/internal/models"
	"folio/internal/pagination"
	"folio/internal/portfolio"
	"folio/internal/services"
	"folio/internal/validator"
)

// --- mock services ---

type mockTransactionService struct {
	createTransactionFn      func(accountID string, in services.TransactionInput) (*models.Transaction, error)
	getAccountTransactionsFn func(accountID string, page pagination.PageRequest, filter services.TransactionFilter) (*pagination.PageResponse[models.Transaction], error)
	getTransactionByIDFn     func(accountID, transactionID string) (*models.Transaction, error)
	deleteTransactionFn      func(accountID, transactionID string) error
}

func (m *mockTransactionService) CreateTransaction(_ context.Context, accountID string, in services.TransactionInput) (*models.Transaction, error) {
	if m.createTransactionFn != nil {
		return m.createTransactionFn(accountID, in)
	}
	return &models.Transaction{}, nil
}

func (m *mockTransactionService) ListByAccount(_ context.Context, _ string, _, _ *time.Time) ([]models.Transaction, error) {
	return []models.Transaction{}, nil
}

func (m *mockTransactionService) GetAccountTransactions(_ context.Context, accountID string, page pagination.PageRequest, filter services.TransactionFilter) (*pagination.PageResponse[models.Transaction], error) {
	if m.getAccountTransactionsFn != nil {
		return m.getAccountTransactionsFn(accountID, page, filter)
	}
	resp := pagination.NewPageResponse([]models.Transaction{}, 1, 20, 0)
	return &resp, nil
}

func (m *mockTransactionService) GetTransactionByID(_ context.Context, accountID, transactionID string) (*models.Transaction, error) {
	if m.getTransactionByIDFn != nil {
		return m.getTransactionByIDFn(accountID, transactionID)
	}
	return &models.Transaction{}, nil
}

func (m *mockTransactionService) DeleteTransaction(_ context.Context, accountID, transactionID string) error {
	if m.deleteTransactionFn != nil {
		return m.deleteTransactionFn(accountID, transactionID)
	}
	return nil
}

var _ services.TransactionServicer = (*mockTransactionService)(nil)

type mockHoldingsService struct {
	rebuildAccountFn func(accountID string) (*services.RebuildResult, error)
	rebuildAllFn     func() ([]services.RebuildResult, error)
	getCurrentFn     func(accountID string) ([]models.Holding, error)
	listSnapshotsFn  func(accountID string, from, to *time.Time, page pagination.PageRequest) (*pagination.PageResponse[models.HoldingSnapshot], error)
}

func (m *mockHoldingsService) RebuildCurrentHoldings(_ context.Context, _ string) ([]models.Holding, error) {
	return []models.Holding{}, nil
}

func (m *mockHoldingsService) RebuildMonthlySnapshots(_ context.Context, _ string) ([]models.HoldingSnapshot, error) {
	return []models.HoldingSnapshot{}, nil
}

func (m *mockHoldingsService) RebuildAccount(_ context.Context, accountID string) (*services.RebuildResult, error) {
	if m.rebuildAccountFn != nil {
		return m.rebuildAccountFn(accountID)
	}
	return &services.RebuildResult{AccountID: accountID}, nil
}

func (m *mockHoldingsService) RebuildAll(_ context.Context) ([]services.RebuildResult, error) {
	if m.rebuildAllFn != nil {
		return m.rebuildAllFn()
	}
	return []services.RebuildResult{}, nil
}

func (m *mockHoldingsService) GetCurrentHoldings(_ context.Context, accountID string) ([]models.Holding, error) {
	if m.getCurrentFn != nil {
		return m.getCurrentFn(accountID)
	}
	return []models.Holding{}, nil
}

func (m *mockHoldingsService) GetSnapshots(_ context.Context, _ string, _, _ *time.Time) ([]models.HoldingSnapshot, error) {
	return []models.HoldingSnapshot{}, nil
}

func (m *mockHoldingsService) ListSnapshots(_ context.Context, accountID string, from, to *time.Time, page pagination.PageRequest) (*pagination.PageResponse[models.HoldingSnapshot], error) {
	if m.listSnapshotsFn != nil {
		return m.listSnapshotsFn(accountID, from, to, page)
	}
	resp := pagination.NewPageResponse([]models.HoldingSnapshot{}, 1, 20, 0)
	return &resp, nil
}

var _ services.HoldingsServicer = (*mockHoldingsService)(nil)

type mockPriceService struct {
	recordPricesFn func(prices []services.PriceInput) (int, error)
}

func (m *mockPriceService) RecordPrices(_ context.Context, prices []services.PriceInput) (int, error) {
	if m.recordPricesFn != nil {
		return m.recordPricesFn(prices)
	}
	return len(prices), nil
}

func (m *mockPriceService) Resolve(_ context.Context, _ services.PriceQuery, _ string) (*services.ResolvedPrice, error) {
	return nil, nil
}

func (m *mockPriceService) ResolveAll(_ context.Context, _ []services.PriceQuery, _ string) (*services.PriceBook, error) {
	return &services.PriceBook{}, nil
}

var _ services.PriceServicer = (*mockPriceService)(nil)

type mockCategoryService struct {
	createCategoryFn func(accountID string, in services.CategoryInput) (*models.Category, error)
	getByIDFn        func(accountID, categoryID string) (*models.Category, error)
	subcategoriesFn  func(accountID, categoryID string) ([]models.Category, error)
	updateCategoryFn func(accountID, categoryID string, in services.CategoryInput) (*models.Category, error)
	deleteCategoryFn func(accountID, categoryID string) error
	assignAssetFn    func(accountID, categoryID, assetName string) (*models.HoldingsCategoryAssignment, error)
	unassignAssetFn  func(accountID, categoryID, assetName string) error
}

func (m *mockCategoryService) CreateCategory(_ context.Context, accountID string, in services.CategoryInput) (*models.Category, error) {
	if m.createCategoryFn != nil {
		return m.createCategoryFn(accountID, in)
	}
	return &models.Category{}, nil
}

func (m *mockCategoryService) GetAccountCategories(_ context.Context, _ string, _ pagination.PageRequest) (*pagination.PageResponse[models.Category], error) {
	resp := pagination.NewPageResponse([]models.Category{}, 1, 20, 0)
	return &resp, nil
}

func (m *mockCategoryService) GetCategoryByID(_ context.Context, accountID, categoryID string) (*models.Category, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(accountID, categoryID)
	}
	return &models.Category{}, nil
}

func (m *mockCategoryService) GetCategoryByName(_ context.Context, _, _ string) (*models.Category, error) {
	return &models.Category{}, nil
}

func (m *mockCategoryService) ListSubcategories(_ context.Context, accountID, categoryID string) ([]models.Category, error) {
	if m.subcategoriesFn != nil {
		return m.subcategoriesFn(accountID, categoryID)
	}
	return []models.Category{}, nil
}

func (m *mockCategoryService) UpdateCategory(_ context.Context, accountID, categoryID string, in services.CategoryInput) (*models.Category, error) {
	if m.updateCategoryFn != nil {
		return m.updateCategoryFn(accountID, categoryID, in)
	}
	return &models.Category{}, nil
}

func (m *mockCategoryService) DeleteCategory(_ context.Context, accountID, categoryID string) error {
	if m.deleteCategoryFn != nil {
		return m.deleteCategoryFn(accountID, categoryID)
	}
	return nil
}

func (m *mockCategoryService) AssignAsset(_ context.Context, accountID, categoryID, assetName string) (*models.HoldingsCategoryAssignment, error) {
	if m.assignAssetFn != nil {
		return m.assignAssetFn(accountID, categoryID, assetName)
	}
	return &models.HoldingsCategoryAssignment{}, nil
}

func (m *mockCategoryService) UnassignAsset(_ context.Context, accountID, categoryID, assetName string) error {
	if m.unassignAssetFn != nil {
		return m.unassignAssetFn(accountID, categoryID, assetName)
	}
	return nil
}

func (m *mockCategoryService) ListAssetAssignments(_ context.Context, _, _ string) ([]models.HoldingsCategoryAssignment, error) {
	return []models.HoldingsCategoryAssignment{}, nil
}

func (m *mockCategoryService) Grouping(_ context.Context, _, _ string, membersOnly bool) (*portfolio.Grouping, error) {
	return &portfolio.Grouping{MembersOnly: membersOnly}, nil
}

var _ services.CategoryServicer = (*mockCategoryService)(nil)

type mockValuationService struct {
	valuationFn func(accountID, currency string) (*services.Valuation, error)
	pieFn       func(accountID, currency string, opts services.ChartOptions) ([]portfolio.Entry, error)
	barFn       func(accountID, currency string, opts services.ChartOptions) ([]portfolio.SeriesPoint, error)
}

func (m *mockValuationService) GetCurrentValuation(_ context.Context, accountID, currency string) (*services.Valuation, error) {
	if m.valuationFn != nil {
		return m.valuationFn(accountID, currency)
	}
	return &services.Valuation{AccountID: accountID, Currency: currency}, nil
}

func (m *mockValuationService) GetPieChart(_ context.Context, accountID, currency string, opts services.ChartOptions) ([]portfolio.Entry, error) {
	if m.pieFn != nil {
		return m.pieFn(accountID, currency, opts)
	}
	return []portfolio.Entry{}, nil
}

func (m *mockValuationService) GetBarChartSeries(_ context.Context, accountID, currency string, opts services.ChartOptions) ([]portfolio.SeriesPoint, error) {
	if m.barFn != nil {
		return m.barFn(accountID, currency, opts)
	}
	return []portfolio.SeriesPoint{}, nil
}

var _ services.ValuationServicer = (*mockValuationService)(nil)

// mockAuditService records entries so tests can check what was audited.
type mockAuditService struct {
	mu      sync.Mutex
	entries []services.AuditEntry
}

func (m *mockAuditService) Log(_ context.Context, e services.AuditEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, e)
}

func (m *mockAuditService) actions() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.entries))
	for i, e := range m.entries {
		out[i] = e.Action
	}
	return out
}

// --- test helpers ---

const testAccountID = "6c1f7d8e-4a0b-4f55-9a55-3d3c2b1a0f01"

func init() {
	gin.SetMode(gin.TestMode)
	validator.Register()
}

func injectAccountID(accountID string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middleware.AccountIDKey, accountID)
		c.Next()
	}
}

func doRequest(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func parseJSON(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var result map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse JSON response: %v\nbody: %s", err, rec.Body.String())
	}
	return result
}

func assertErrorCode(t *testing.T, result map[string]interface{}, code string) {
	t.Helper()
	errObj, ok := result["error"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected error object in response, got: %v", result)
	}
	if errObj["code"] != code {
		t.Errorf("expected error code %q, got %q", code, errObj["code"])
	}
}
