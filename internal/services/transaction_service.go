package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	apperrors "folio/internal/errors"
	"folio/internal/logger"
	"folio/internal/models"
	"folio/internal/pagination"
	"folio/internal/uuid"
)

// transactionService handles the append-only ledger.
type transactionService struct {
	db       *gorm.DB
	holdings HoldingsServicer
}

// NewTransactionService creates a new TransactionServicer. Writes rebuild
// the account's projections through holdings.
func NewTransactionService(db *gorm.DB, holdings HoldingsServicer) TransactionServicer {
	return &transactionService{
		db:       db,
		holdings: holdings,
	}
}

// CreateTransaction appends a ledger row and rebuilds the account's holdings.
func (s *transactionService) CreateTransaction(ctx context.Context, accountID string, in TransactionInput) (*models.Transaction, error) {
	if err := requireAccount(accountID); err != nil {
		return nil, err
	}

	in.AssetName = strings.TrimSpace(in.AssetName)
	in.Symbol = strings.TrimSpace(in.Symbol)
	if in.AssetName == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "asset name is required")
	}
	if in.Symbol == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "symbol is required")
	}
	if !in.AssetClass.Valid() {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "unknown asset class: "+string(in.AssetClass))
	}
	if in.Credit.IsNegative() || in.Debit.IsNegative() {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "credit and debit must not be negative")
	}
	if in.Credit.IsZero() && in.Debit.IsZero() {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "credit or debit must be greater than zero")
	}
	if in.AssetClass.IsForex() {
		in.Symbol = strings.ToUpper(in.Symbol)
	}

	// Default date to now if not provided
	date := in.Date
	if date.IsZero() {
		date = time.Now()
	}

	tx := &models.Transaction{
		AccountID:  accountID,
		Date:       date.UTC(),
		AssetName:  in.AssetName,
		Symbol:     in.Symbol,
		Unit:       strings.TrimSpace(in.Unit),
		AssetClass: in.AssetClass,
		Credit:     in.Credit,
		Debit:      in.Debit,
	}
	if err := s.db.WithContext(ctx).Create(tx).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	if err := s.rebuild(ctx, accountID); err != nil {
		return nil, err
	}
	return tx, nil
}

// rebuild refreshes both projections after a ledger write. The ledger row is
// already committed, so a failure here leaves stale projections until the next rebuild.
func (s *transactionService) rebuild(ctx context.Context, accountID string) error {
	if s.holdings == nil {
		return nil
	}
	if _, err := s.holdings.RebuildAccount(ctx, accountID); err != nil {
		logger.Get().Errorw("Holdings rebuild after ledger write failed", "account_id", accountID, "error", err)
		return err
	}
	return nil
}

// ListByAccount returns the account's live ledger rows within an optional date range, newest first.
func (s *transactionService) ListByAccount(ctx context.Context, accountID string, from, to *time.Time) ([]models.Transaction, error) {
	if err := requireAccount(accountID); err != nil {
		return nil, err
	}
	return listTransactions(s.db.WithContext(ctx), accountID, from, to)
}

// GetAccountTransactions retrieves a paginated, filtered list of the account's ledger rows.
func (s *transactionService) GetAccountTransactions(ctx context.Context, accountID string, page pagination.PageRequest, filter TransactionFilter) (*pagination.PageResponse[models.Transaction], error) {
	if err := requireAccount(accountID); err != nil {
		return nil, err
	}
	page.Defaults()

	base := applyTransactionFilters(s.db.WithContext(ctx).Model(&models.Transaction{}).Where("account_id = ?", accountID), filter)

	var totalItems int64
	if err := base.Count(&totalItems).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var transactions []models.Transaction
	if err := base.Order("date DESC, created_at DESC").Scopes(pagination.Paginate(page)).Find(&transactions).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	result := pagination.NewPageResponse(transactions, page.Page, page.PageSize, totalItems)
	return &result, nil
}

// applyTransactionFilters adds WHERE clauses for each non-empty filter field.
func applyTransactionFilters(q *gorm.DB, f TransactionFilter) *gorm.DB {
	q = q.Scopes(pagination.Between("date", f.FromDate, f.ToDate))
	if f.AssetName != "" {
		q = q.Where("asset_name = ?", f.AssetName)
	}
	return q
}

// GetTransactionByID retrieves a live ledger row of the account.
func (s *transactionService) GetTransactionByID(ctx context.Context, accountID, transactionID string) (*models.Transaction, error) {
	if !uuid.IsValid(transactionID) {
		return nil, apperrors.ErrTransactionNotFound
	}
	var tx models.Transaction
	if err := s.db.WithContext(ctx).Where("id = ? AND account_id = ?", transactionID, accountID).First(&tx).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrTransactionNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &tx, nil
}

// DeleteTransaction soft-deletes a ledger row and rebuilds the account's holdings.
func (s *transactionService) DeleteTransaction(ctx context.Context, accountID, transactionID string) error {
	tx, err := s.GetTransactionByID(ctx, accountID, transactionID)
	if err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Delete(tx).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return s.rebuild(ctx, accountID)
}
