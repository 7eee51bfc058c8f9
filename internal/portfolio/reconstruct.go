// Package portfolio replays the ledger into holdings, values them and builds
// chart series. It performs no I/O; services feed it rows and prices.
package portfolio

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"folio/internal/models"
)

// MonthEnd returns midnight UTC of the last calendar day of t's month.
func MonthEnd(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month()+1, 0, 0, 0, 0, 0, time.UTC)
}

// MonthStart returns midnight UTC of the first calendar day of t's month.
func MonthStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// live drops soft-deleted rows and orders the rest by date, latest first.
// Rows sharing a date keep their input order.
func live(txs []models.Transaction) []models.Transaction {
	out := make([]models.Transaction, 0, len(txs))
	for i := range txs {
		if !txs[i].Live() {
			continue
		}
		out = append(out, txs[i])
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Date.After(out[j].Date)
	})
	return out
}

// tally accumulates net quantity per asset. The first row seen for an asset
// supplies its symbol, unit and class, so callers feed rows latest first.
type tally struct {
	order    []string
	meta     map[string]models.Transaction
	balances map[string]decimal.Decimal
}

func newTally() *tally {
	return &tally{
		meta:     make(map[string]models.Transaction),
		balances: make(map[string]decimal.Decimal),
	}
}

func (t *tally) add(tx models.Transaction) {
	if _, seen := t.meta[tx.AssetName]; !seen {
		t.meta[tx.AssetName] = tx
		t.order = append(t.order, tx.AssetName)
		t.balances[tx.AssetName] = decimal.Zero
	}
	t.balances[tx.AssetName] = t.balances[tx.AssetName].Add(tx.Net())
}

// assets returns asset names in a stable order so rebuilds are reproducible.
func (t *tally) assets() []string {
	names := append([]string(nil), t.order...)
	sort.Strings(names)
	return names
}

// CurrentHoldings replays the account's ledger into its current holdings.
// Assets whose balance is zero or negative are closed and omitted.
func CurrentHoldings(accountID string, txs []models.Transaction) []models.Holding {
	t := newTally()
	for _, tx := range live(txs) {
		t.add(tx)
	}

	holdings := make([]models.Holding, 0, len(t.order))
	for _, name := range t.assets() {
		balance := t.balances[name]
		if !balance.IsPositive() {
			continue
		}
		meta := t.meta[name]
		holdings = append(holdings, models.Holding{
			AccountID:  accountID,
			AssetName:  name,
			Symbol:     meta.Symbol,
			Unit:       meta.Unit,
			AssetClass: meta.AssetClass,
			Balance:    balance,
		})
	}
	return holdings
}

// Months returns the distinct month-end dates spanned by the ledger, oldest first.
func Months(txs []models.Transaction) []time.Time {
	seen := make(map[time.Time]bool)
	var months []time.Time
	for i := range txs {
		if !txs[i].Live() {
			continue
		}
		end := MonthEnd(txs[i].Date)
		if !seen[end] {
			seen[end] = true
			months = append(months, end)
		}
	}
	sort.Slice(months, func(i, j int) bool { return months[i].Before(months[j]) })
	return months
}

// MonthlySnapshots computes one snapshot per asset per ledger month holding the
// cumulative net quantity of every row dated on or before that month's last day.
// Each month rescans the full ledger. Balances are kept even when not positive;
// an asset with no rows yet is absent from that month.
func MonthlySnapshots(accountID string, txs []models.Transaction) []models.HoldingSnapshot {
	rows := live(txs)
	var snapshots []models.HoldingSnapshot
	for _, end := range Months(rows) {
		cutoff := end.AddDate(0, 0, 1)
		t := newTally()
		for _, tx := range rows {
			if !tx.Date.UTC().Before(cutoff) {
				continue
			}
			t.add(tx)
		}
		for _, name := range t.assets() {
			meta := t.meta[name]
			snapshots = append(snapshots, models.HoldingSnapshot{
				AccountID:    accountID,
				AssetName:    name,
				Symbol:       meta.Symbol,
				Unit:         meta.Unit,
				AssetClass:   meta.AssetClass,
				MonthEndDate: end,
				Balance:      t.balances[name],
			})
		}
	}
	return snapshots
}
