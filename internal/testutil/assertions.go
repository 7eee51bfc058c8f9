package testutil

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	apperrors "folio/internal/errors"
	"folio/internal/models"
)

// AssertAppError fails unless err unwraps to an *AppError carrying code.
func AssertAppError(t *testing.T, err error, code string) {
	t.Helper()

	var appErr *apperrors.AppError
	switch {
	case err == nil:
		t.Fatalf("expected %s, got nil", code)
	case !errors.As(err, &appErr):
		t.Fatalf("expected %s, got %T: %v", code, err, err)
	case appErr.Code != code:
		t.Errorf("expected %s, got %s (%s)", code, appErr.Code, appErr.Message)
	}
}

func AssertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertDecimal compares numerically, so "7" matches 7.000.
func AssertDecimal(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	if !decimal.RequireFromString(want).Equal(got) {
		t.Errorf("expected %s, got %s", want, got)
	}
}

// AssertBalances checks the holdings hold exactly the given asset balances.
func AssertBalances(t *testing.T, want map[string]string, holdings []models.Holding) {
	t.Helper()
	if len(holdings) != len(want) {
		t.Errorf("expected %d holdings, got %d", len(want), len(holdings))
	}
	for _, h := range holdings {
		balance, ok := want[h.AssetName]
		if !ok {
			t.Errorf("unexpected holding %s (%s)", h.AssetName, h.Balance)
			continue
		}
		AssertDecimal(t, balance, h.Balance)
	}
}
