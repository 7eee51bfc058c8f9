package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"folio/internal/config"
	"folio/internal/logger"
	"folio/internal/middleware"
	"folio/internal/testutil"
	"folio/internal/validator"
)

const testPipelineKey = "test-pipeline-key"

func init() {
	gin.SetMode(gin.TestMode)
	logger.Init("test")
	validator.Register()
}

type testApp struct {
	router *gin.Engine
	token  string
}

func setupApp(t *testing.T) *testApp {
	t.Helper()

	db := testutil.SetupTestDB(t)
	t.Cleanup(func() { testutil.TeardownTestDB(t, db) })

	cfg := &config.Config{
		DefaultCurrency:     "USD",
		PipelineAPIKey:      testPipelineKey,
		PricePollAttempts:   1,
		PriceFallbackMonths: 3,
	}
	token, err := middleware.GenerateAccessToken(testutil.NewAccountID())
	require.NoError(t, err)

	return &testApp{router: newRouter(cfg, newServices(db, nil, cfg)), token: token}
}

func (app *testApp) request(method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	app.router.ServeHTTP(rec, req)
	return rec
}

func (app *testApp) authed(method, path, body string) *httptest.ResponseRecorder {
	return app.request(method, path, body, map[string]string{"Authorization": "Bearer " + app.token})
}

func (app *testApp) pipeline(method, path, body string) *httptest.ResponseRecorder {
	return app.request(method, path, body, map[string]string{"X-API-Key": testPipelineKey})
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func requireDecimal(t *testing.T, want string, got interface{}) {
	t.Helper()
	s, ok := got.(string)
	require.True(t, ok, "expected decimal string, got %v", got)
	assert.True(t, decimal.RequireFromString(want).Equal(decimal.RequireFromString(s)), "want %s, got %s", want, s)
}

func TestLedgerToValuationFlow(t *testing.T) {
	app := setupApp(t)

	rec := app.authed("POST", "/api/v1/transactions",
		`{"date":"2024-01-05","asset_name":"ACME","symbol":"ACME","asset_class":"stock","credit":"10"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	txID := decode(t, rec)["transaction"].(map[string]interface{})["id"].(string)

	rec = app.authed("POST", "/api/v1/transactions",
		`{"date":"2024-02-10","asset_name":"ACME","symbol":"ACME","asset_class":"stock","debit":"3"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = app.authed("GET", "/api/v1/holdings", "")
	require.Equal(t, http.StatusOK, rec.Code)
	holdings := decode(t, rec)["holdings"].([]interface{})
	require.Len(t, holdings, 1)
	requireDecimal(t, "7", holdings[0].(map[string]interface{})["balance"])

	rec = app.authed("GET", "/api/v1/holdings/snapshots?to_date=2024-01-31", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, decode(t, rec)["total_items"])

	recordedAt := time.Now().UTC().Format(time.RFC3339)
	rec = app.pipeline("POST", "/api/v1/pipeline/prices", fmt.Sprintf(`{"prices":[
		{"symbol":"ACME","asset_class":"stock","currency":"USD","price":"4","recorded_at":%q},
		{"symbol":"USD/EUR","asset_class":"currency","price":"0.5","recorded_at":%q}
	]}`, recordedAt, recordedAt))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.EqualValues(t, 2, decode(t, rec)["count"])

	rec = app.authed("GET", "/api/v1/valuation", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	valuation := decode(t, rec)
	assert.Equal(t, "USD", valuation["currency"])
	requireDecimal(t, "28", valuation["total"])

	rec = app.authed("GET", "/api/v1/valuation?currency=eur", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	valuation = decode(t, rec)
	assert.Equal(t, "EUR", valuation["currency"])
	requireDecimal(t, "14", valuation["total"])

	rec = app.authed("DELETE", "/api/v1/transactions/"+txID, "")
	require.Equal(t, http.StatusOK, rec.Code)

	// only the debit remains, so no positive holding is left
	rec = app.authed("GET", "/api/v1/holdings", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode(t, rec)["holdings"])
}

func TestCategoryChartFlow(t *testing.T) {
	app := setupApp(t)

	for _, body := range []string{
		`{"date":"2024-01-05","asset_name":"ACME","symbol":"ACME","asset_class":"stock","credit":"1"}`,
		`{"date":"2024-01-05","asset_name":"Treasury","symbol":"TBOND","asset_class":"stock","credit":"1"}`,
	} {
		rec := app.authed("POST", "/api/v1/transactions", body)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	}

	recordedAt := time.Now().UTC().Format(time.RFC3339)
	rec := app.pipeline("POST", "/api/v1/pipeline/prices", fmt.Sprintf(`{"prices":[
		{"symbol":"ACME","asset_class":"stock","price":"30","recorded_at":%q},
		{"symbol":"TBOND","asset_class":"stock","price":"70","recorded_at":%q}
	]}`, recordedAt, recordedAt))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = app.authed("POST", "/api/v1/categories", `{"name":"Allocation"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	rootID := decode(t, rec)["category"].(map[string]interface{})["id"].(string)

	rec = app.authed("POST", "/api/v1/categories",
		fmt.Sprintf(`{"name":"Stocks","parent_id":%q,"priority":1,"color":"#123456"}`, rootID))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	stocksID := decode(t, rec)["category"].(map[string]interface{})["id"].(string)

	rec = app.authed("PUT", "/api/v1/categories/"+stocksID+"/assignments", `{"asset_name":"ACME"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	t.Run("flat_pie", func(t *testing.T) {
		rec := app.authed("GET", "/api/v1/charts/pie", "")
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		entries := decode(t, rec)["entries"].([]interface{})
		require.Len(t, entries, 2)
		first := entries[0].(map[string]interface{})
		assert.Equal(t, "Treasury", first["label"])
		requireDecimal(t, "70", first["percentage_of_total"])
	})

	t.Run("by_category_pie", func(t *testing.T) {
		rec := app.authed("GET", "/api/v1/charts/pie?category=Allocation", "")
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		entries := decode(t, rec)["entries"].([]interface{})
		labels := map[string]string{}
		for _, e := range entries {
			m := e.(map[string]interface{})
			labels[m["label"].(string)] = m["color"].(string)
		}
		assert.Equal(t, "#123456", labels["Stocks"])
		assert.Contains(t, labels, "None")
	})

	t.Run("members_only", func(t *testing.T) {
		rec := app.authed("GET", "/api/v1/charts/pie?category=Allocation&members_only=true", "")
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Len(t, decode(t, rec)["entries"], 1)
	})

	t.Run("bar_ends_with_today", func(t *testing.T) {
		rec := app.authed("GET", "/api/v1/charts/bar", "")
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		series := decode(t, rec)["series"].([]interface{})
		require.NotEmpty(t, series)
		first := series[0].(map[string]interface{})
		assert.True(t, strings.HasPrefix(first["date"].(string), "2024-01-31"), "first bar %v", first["date"])
	})

	t.Run("unknown_category", func(t *testing.T) {
		rec := app.authed("GET", "/api/v1/charts/pie?category=Nope", "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("parent_with_children_cannot_be_deleted", func(t *testing.T) {
		rec := app.authed("DELETE", "/api/v1/categories/"+rootID, "")
		assert.Equal(t, http.StatusConflict, rec.Code)
	})
}

func TestAccessControl(t *testing.T) {
	app := setupApp(t)

	t.Run("bearer_required", func(t *testing.T) {
		rec := app.request("GET", "/api/v1/valuation", "", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("pipeline_key_required", func(t *testing.T) {
		rec := app.request("POST", "/api/v1/pipeline/holdings/rebuild", "", map[string]string{"X-API-Key": "wrong"})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("bearer_token_is_not_a_pipeline_key", func(t *testing.T) {
		rec := app.authed("POST", "/api/v1/pipeline/holdings/rebuild", "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("rebuild_all", func(t *testing.T) {
		rec := app.authed("POST", "/api/v1/transactions",
			`{"date":"2024-01-05","asset_name":"ACME","symbol":"ACME","asset_class":"stock","credit":"1"}`)
		require.Equal(t, http.StatusCreated, rec.Code)

		rec = app.pipeline("POST", "/api/v1/pipeline/holdings/rebuild", "")
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Len(t, decode(t, rec)["results"], 1)
	})

	t.Run("health", func(t *testing.T) {
		rec := app.request("GET", "/api/health", "", nil)
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}
