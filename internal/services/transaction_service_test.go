package services

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"

	"folio/internal/models"
	"folio/internal/pagination"
	"folio/internal/testutil"
)

func stockInput(asset, credit, debit string) TransactionInput {
	in := TransactionInput{
		Date:       testutil.Date(2024, 1, 5),
		AssetName:  asset,
		Symbol:     asset,
		AssetClass: models.AssetClassStock,
	}
	if credit != "" {
		in.Credit = decimal.RequireFromString(credit)
	}
	if debit != "" {
		in.Debit = decimal.RequireFromString(debit)
	}
	return in
}

func TestCreateTransaction(t *testing.T) {
	ctx := context.Background()

	t.Run("rebuilds_holdings", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		holdingsSvc := NewHoldingsService(db)
		txSvc := NewTransactionService(db, holdingsSvc)
		accountID := testutil.NewAccountID()

		tx, err := txSvc.CreateTransaction(ctx, accountID, stockInput("ACME", "10", ""))
		testutil.AssertNoError(t, err)
		if tx.ID == "" {
			t.Fatal("expected transaction ID")
		}

		debit := stockInput("ACME", "", "3")
		debit.Date = testutil.Date(2024, 2, 10)
		_, err = txSvc.CreateTransaction(ctx, accountID, debit)
		testutil.AssertNoError(t, err)

		holdings, err := holdingsSvc.GetCurrentHoldings(ctx, accountID)
		testutil.AssertNoError(t, err)
		if len(holdings) != 1 || !holdings[0].Balance.Equal(decimal.NewFromInt(7)) {
			t.Fatalf("expected ACME balance 7, got %+v", holdings)
		}

		snaps, err := holdingsSvc.GetSnapshots(ctx, accountID, nil, nil)
		testutil.AssertNoError(t, err)
		if len(snaps) != 2 {
			t.Errorf("expected 2 snapshots, got %d", len(snaps))
		}
	})

	t.Run("forex_symbol_uppercased", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		txSvc := NewTransactionService(db, nil)

		in := stockInput("Euro cash", "100", "")
		in.Symbol = "eur"
		in.AssetClass = models.AssetClassCurrency
		tx, err := txSvc.CreateTransaction(ctx, testutil.NewAccountID(), in)
		testutil.AssertNoError(t, err)
		if tx.Symbol != "EUR" {
			t.Errorf("expected EUR, got %s", tx.Symbol)
		}
	})

	t.Run("validation", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		txSvc := NewTransactionService(db, nil)
		accountID := testutil.NewAccountID()

		noSymbol := stockInput("ACME", "1", "")
		noSymbol.Symbol = " "
		badClass := stockInput("ACME", "1", "")
		badClass.AssetClass = "bond"

		cases := map[string]TransactionInput{
			"missing_asset":  stockInput("", "1", ""),
			"missing_symbol": noSymbol,
			"bad_class":      badClass,
			"negative":       stockInput("ACME", "-1", ""),
			"zero":           stockInput("ACME", "0", "0"),
		}
		for name, in := range cases {
			t.Run(name, func(t *testing.T) {
				_, err := txSvc.CreateTransaction(ctx, accountID, in)
				testutil.AssertAppError(t, err, "INVALID_INPUT")
			})
		}

		_, err := txSvc.CreateTransaction(ctx, "", stockInput("ACME", "1", ""))
		testutil.AssertAppError(t, err, "INVALID_INPUT")
	})
}

func TestDeleteTransaction(t *testing.T) {
	ctx := context.Background()

	t.Run("rebuilds_without_row", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		holdingsSvc := NewHoldingsService(db)
		txSvc := NewTransactionService(db, holdingsSvc)
		accountID := testutil.NewAccountID()

		_, err := txSvc.CreateTransaction(ctx, accountID, stockInput("ACME", "10", ""))
		testutil.AssertNoError(t, err)
		sale, err := txSvc.CreateTransaction(ctx, accountID, stockInput("ACME", "", "4"))
		testutil.AssertNoError(t, err)

		testutil.AssertNoError(t, txSvc.DeleteTransaction(ctx, accountID, sale.ID))

		holdings, err := holdingsSvc.GetCurrentHoldings(ctx, accountID)
		testutil.AssertNoError(t, err)
		if len(holdings) != 1 || holdings[0].Balance.String() != "10" {
			t.Errorf("expected balance 10 after delete, got %+v", holdings)
		}

		var kept int64
		db.Unscoped().Model(&models.Transaction{}).Where("id = ?", sale.ID).Count(&kept)
		if kept != 1 {
			t.Error("expected deleted row to be kept for history")
		}
	})

	t.Run("other_account", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		txSvc := NewTransactionService(db, nil)
		tx := testutil.CreateTestTransaction(t, db, testutil.NewAccountID(), "ACME", "1", "", testutil.Date(2024, 1, 1))

		err := txSvc.DeleteTransaction(ctx, testutil.NewAccountID(), tx.ID)
		testutil.AssertAppError(t, err, "TRANSACTION_NOT_FOUND")
	})
}

func TestGetAccountTransactions(t *testing.T) {
	ctx := context.Background()
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	txSvc := NewTransactionService(db, nil)
	accountID := testutil.NewAccountID()

	testutil.CreateTestTransaction(t, db, accountID, "ACME", "1", "", testutil.Date(2024, 1, 1))
	testutil.CreateTestTransaction(t, db, accountID, "ACME", "2", "", testutil.Date(2024, 2, 1))
	testutil.CreateTestTransaction(t, db, accountID, "Gold", "3", "", testutil.Date(2024, 3, 1))
	testutil.CreateTestTransaction(t, db, testutil.NewAccountID(), "ACME", "9", "", testutil.Date(2024, 1, 1))

	t.Run("newest_first", func(t *testing.T) {
		page, err := txSvc.GetAccountTransactions(ctx, accountID, pagination.PageRequest{Page: 1, PageSize: 2}, TransactionFilter{})
		testutil.AssertNoError(t, err)
		if page.TotalItems != 3 || page.TotalPages != 2 {
			t.Errorf("expected 3 items on 2 pages, got %d/%d", page.TotalItems, page.TotalPages)
		}
		if len(page.Data) != 2 || page.Data[0].AssetName != "Gold" {
			t.Errorf("unexpected first page %+v", page.Data)
		}
	})

	t.Run("filters", func(t *testing.T) {
		from := testutil.Date(2024, 1, 15)
		page, err := txSvc.GetAccountTransactions(ctx, accountID, pagination.PageRequest{}, TransactionFilter{FromDate: &from, AssetName: "ACME"})
		testutil.AssertNoError(t, err)
		if page.TotalItems != 1 || page.Data[0].Credit.String() != "2" {
			t.Errorf("expected the February ACME row, got %+v", page.Data)
		}
	})

	t.Run("list_by_range", func(t *testing.T) {
		to := testutil.Date(2024, 2, 1)
		txs, err := txSvc.ListByAccount(ctx, accountID, nil, &to)
		testutil.AssertNoError(t, err)
		if len(txs) != 2 {
			t.Errorf("expected 2 rows up to Feb 1, got %d", len(txs))
		}
	})

	t.Run("get_by_id", func(t *testing.T) {
		_, err := txSvc.GetTransactionByID(ctx, accountID, testutil.NewAccountID())
		testutil.AssertAppError(t, err, "TRANSACTION_NOT_FOUND")
	})
}
