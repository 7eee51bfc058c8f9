package handlers

import (
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"folio/internal/models"
	"folio/internal/pagination"
	"folio/internal/services"
)

func setupHoldingsRouter(handler *HoldingsHandler) *gin.Engine {
	r := gin.New()
	auth := r.Group("", injectAccountID(testAccountID))
	auth.GET("/holdings", handler.GetCurrentHoldings)
	auth.GET("/holdings/snapshots", handler.GetSnapshots)
	auth.POST("/holdings/rebuild", handler.RebuildHoldings)
	return r
}

func TestHoldingsHandler_GetCurrentHoldings(t *testing.T) {
	svc := &mockHoldingsService{
		getCurrentFn: func(accountID string) ([]models.Holding, error) {
			return []models.Holding{{AccountID: accountID, AssetName: "ACME", Balance: decimal.NewFromInt(7)}}, nil
		},
	}
	r := setupHoldingsRouter(NewHoldingsHandler(svc, &mockAuditService{}))

	rec := doRequest(r, "GET", "/holdings", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	holdings := parseJSON(t, rec)["holdings"].([]interface{})
	if len(holdings) != 1 || holdings[0].(map[string]interface{})["balance"] != "7" {
		t.Errorf("unexpected holdings %v", holdings)
	}
}

func TestHoldingsHandler_GetSnapshots(t *testing.T) {
	t.Run("passes range", func(t *testing.T) {
		var gotFrom, gotTo *time.Time
		svc := &mockHoldingsService{
			listSnapshotsFn: func(_ string, from, to *time.Time, page pagination.PageRequest) (*pagination.PageResponse[models.HoldingSnapshot], error) {
				gotFrom, gotTo = from, to
				resp := pagination.NewPageResponse([]models.HoldingSnapshot{}, 1, 20, 0)
				return &resp, nil
			},
		}
		r := setupHoldingsRouter(NewHoldingsHandler(svc, &mockAuditService{}))

		rec := doRequest(r, "GET", "/holdings/snapshots?from_date=2024-01-31", "")

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if gotFrom == nil || !gotFrom.Equal(time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)) || gotTo != nil {
			t.Errorf("unexpected range %v - %v", gotFrom, gotTo)
		}
	})

	t.Run("bad date", func(t *testing.T) {
		r := setupHoldingsRouter(NewHoldingsHandler(&mockHoldingsService{}, &mockAuditService{}))

		rec := doRequest(r, "GET", "/holdings/snapshots?to_date=yesterday", "")

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})
}

func TestHoldingsHandler_RebuildHoldings(t *testing.T) {
	t.Run("returns counts and audits", func(t *testing.T) {
		svc := &mockHoldingsService{
			rebuildAccountFn: func(accountID string) (*services.RebuildResult, error) {
				return &services.RebuildResult{AccountID: accountID, Holdings: 2, Snapshots: 5}, nil
			},
		}
		audit := &mockAuditService{}
		r := setupHoldingsRouter(NewHoldingsHandler(svc, audit))

		rec := doRequest(r, "POST", "/holdings/rebuild", "")

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		result := parseJSON(t, rec)
		if result["holdings"].(float64) != 2 || result["snapshots"].(float64) != 5 {
			t.Errorf("unexpected result %v", result)
		}
		if actions := audit.actions(); len(actions) != 1 || actions[0] != services.AuditRebuildAccount {
			t.Errorf("expected rebuild audit entry, got %v", actions)
		}
	})

	t.Run("unexpected error is generic", func(t *testing.T) {
		svc := &mockHoldingsService{
			rebuildAccountFn: func(string) (*services.RebuildResult, error) {
				return nil, errors.New("database is locked")
			},
		}
		r := setupHoldingsRouter(NewHoldingsHandler(svc, &mockAuditService{}))

		rec := doRequest(r, "POST", "/holdings/rebuild", "")

		if rec.Code != http.StatusInternalServerError {
			t.Fatalf("expected 500, got %d", rec.Code)
		}
		assertErrorCode(t, parseJSON(t, rec), "INTERNAL_ERROR")
	})
}
