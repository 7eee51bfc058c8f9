package services

import (
	"context"
	"time"

	"gorm.io/gorm"

	apperrors "folio/internal/errors"
	"folio/internal/logger"
	"folio/internal/models"
	"folio/internal/pagination"
	"folio/internal/portfolio"
)

// holdingsService rebuilds and reads the holdings projections.
// Each rebuild kind runs as one critical section per account and replaces
// the account's rows inside a single database transaction.
type holdingsService struct {
	db            *gorm.DB
	currentLocks  *keyedMutex
	snapshotLocks *keyedMutex
}

// NewHoldingsService creates a new HoldingsServicer.
func NewHoldingsService(db *gorm.DB) HoldingsServicer {
	return &holdingsService{
		db:            db,
		currentLocks:  newKeyedMutex(),
		snapshotLocks: newKeyedMutex(),
	}
}

// listTransactions returns the account's live ledger rows, newest first.
func listTransactions(db *gorm.DB, accountID string, from, to *time.Time) ([]models.Transaction, error) {
	var txs []models.Transaction
	if err := db.Where("account_id = ?", accountID).
		Scopes(pagination.Between("date", from, to)).
		Order("date DESC, created_at DESC").Find(&txs).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return txs, nil
}

func requireAccount(accountID string) error {
	if accountID == "" {
		return apperrors.WithMessage(apperrors.ErrInvalidInput, "account id is required")
	}
	return nil
}

// RebuildCurrentHoldings recomputes the account's current holdings from the ledger
// and swaps them in atomically.
func (s *holdingsService) RebuildCurrentHoldings(ctx context.Context, accountID string) ([]models.Holding, error) {
	if err := requireAccount(accountID); err != nil {
		return nil, err
	}
	unlock := s.currentLocks.Lock(accountID)
	defer unlock()

	db := s.db.WithContext(ctx)
	txs, err := listTransactions(db, accountID, nil, nil)
	if err != nil {
		return nil, err
	}
	holdings := portfolio.CurrentHoldings(accountID, txs)

	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("account_id = ?", accountID).Delete(&models.Holding{}).Error; err != nil {
			return err
		}
		if len(holdings) == 0 {
			return nil
		}
		return tx.CreateInBatches(&holdings, 100).Error
	})
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	logger.Get().Debugw("Current holdings rebuilt", "account_id", accountID, "holdings", len(holdings))
	return holdings, nil
}

// RebuildMonthlySnapshots recomputes one snapshot per asset per ledger month
// and swaps them in atomically.
func (s *holdingsService) RebuildMonthlySnapshots(ctx context.Context, accountID string) ([]models.HoldingSnapshot, error) {
	if err := requireAccount(accountID); err != nil {
		return nil, err
	}
	unlock := s.snapshotLocks.Lock(accountID)
	defer unlock()

	db := s.db.WithContext(ctx)
	txs, err := listTransactions(db, accountID, nil, nil)
	if err != nil {
		return nil, err
	}
	snapshots := portfolio.MonthlySnapshots(accountID, txs)

	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("account_id = ?", accountID).Delete(&models.HoldingSnapshot{}).Error; err != nil {
			return err
		}
		if len(snapshots) == 0 {
			return nil
		}
		return tx.CreateInBatches(&snapshots, 100).Error
	})
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	logger.Get().Debugw("Monthly snapshots rebuilt", "account_id", accountID, "snapshots", len(snapshots))
	return snapshots, nil
}

// RebuildAccount runs both rebuilds for one account.
func (s *holdingsService) RebuildAccount(ctx context.Context, accountID string) (*RebuildResult, error) {
	holdings, err := s.RebuildCurrentHoldings(ctx, accountID)
	if err != nil {
		return nil, err
	}
	snapshots, err := s.RebuildMonthlySnapshots(ctx, accountID)
	if err != nil {
		return nil, err
	}
	return &RebuildResult{AccountID: accountID, Holdings: len(holdings), Snapshots: len(snapshots)}, nil
}

// RebuildAll rebuilds every account that has ledger rows, deleted ones included,
// so an account whose rows were all deleted is cleared.
func (s *holdingsService) RebuildAll(ctx context.Context) ([]RebuildResult, error) {
	var accountIDs []string
	if err := s.db.WithContext(ctx).Unscoped().Model(&models.Transaction{}).
		Distinct("account_id").
		Order("account_id").
		Pluck("account_id", &accountIDs).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	results := make([]RebuildResult, 0, len(accountIDs))
	for _, accountID := range accountIDs {
		res, err := s.RebuildAccount(ctx, accountID)
		if err != nil {
			return results, err
		}
		results = append(results, *res)
	}
	return results, nil
}

// GetCurrentHoldings returns the account's stored current holdings ordered by asset.
func (s *holdingsService) GetCurrentHoldings(ctx context.Context, accountID string) ([]models.Holding, error) {
	if err := requireAccount(accountID); err != nil {
		return nil, err
	}
	holdings := []models.Holding{}
	if err := s.db.WithContext(ctx).
		Where("account_id = ?", accountID).
		Order("asset_name ASC").
		Find(&holdings).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return holdings, nil
}

func (s *holdingsService) snapshotQuery(ctx context.Context, accountID string, from, to *time.Time) *gorm.DB {
	return s.db.WithContext(ctx).Model(&models.HoldingSnapshot{}).
		Where("account_id = ?", accountID).
		Scopes(pagination.Between("month_end_date", from, to))
}

// GetSnapshots returns the account's snapshots within an optional month-end range,
// ordered by month then asset.
func (s *holdingsService) GetSnapshots(ctx context.Context, accountID string, from, to *time.Time) ([]models.HoldingSnapshot, error) {
	if err := requireAccount(accountID); err != nil {
		return nil, err
	}
	snapshots := []models.HoldingSnapshot{}
	if err := s.snapshotQuery(ctx, accountID, from, to).
		Order("month_end_date ASC, asset_name ASC").
		Find(&snapshots).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return snapshots, nil
}

// ListSnapshots returns a page of the account's snapshots, newest month first.
func (s *holdingsService) ListSnapshots(
	ctx context.Context,
	accountID string,
	from, to *time.Time,
	page pagination.PageRequest,
) (*pagination.PageResponse[models.HoldingSnapshot], error) {
	if err := requireAccount(accountID); err != nil {
		return nil, err
	}
	page.Defaults()

	var totalItems int64
	if err := s.snapshotQuery(ctx, accountID, from, to).Count(&totalItems).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var snapshots []models.HoldingSnapshot
	if err := s.snapshotQuery(ctx, accountID, from, to).
		Order("month_end_date DESC, asset_name ASC").
		Scopes(pagination.Paginate(page)).
		Find(&snapshots).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	result := pagination.NewPageResponse(snapshots, page.Page, page.PageSize, totalItems)
	return &result, nil
}
