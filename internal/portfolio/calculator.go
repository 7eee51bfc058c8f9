package portfolio

import (
	"time"

	"github.com/shopspring/decimal"

	"folio/internal/models"
)

// NoneLabel is the virtual bucket for assets without a subcategory.
const NoneLabel = "None"

// Position is a holding or a snapshot row reduced to what valuation needs.
type Position struct {
	AssetName  string
	Symbol     string
	Unit       string
	AssetClass models.AssetClass
	Balance    decimal.Decimal
}

// FromHoldings normalizes current holdings into positions.
func FromHoldings(holdings []models.Holding) []Position {
	out := make([]Position, len(holdings))
	for i, h := range holdings {
		out[i] = Position{AssetName: h.AssetName, Symbol: h.Symbol, Unit: h.Unit, AssetClass: h.AssetClass, Balance: h.Balance}
	}
	return out
}

// FromSnapshots normalizes one month's snapshot rows into positions.
func FromSnapshots(snapshots []models.HoldingSnapshot) []Position {
	out := make([]Position, len(snapshots))
	for i, s := range snapshots {
		out[i] = Position{AssetName: s.AssetName, Symbol: s.Symbol, Unit: s.Unit, AssetClass: s.AssetClass, Balance: s.Balance}
	}
	return out
}

// Quote is a resolved unit price in the target currency.
type Quote struct {
	Price    decimal.Decimal
	Fallback bool
	AsOf     *time.Time
}

// PriceFunc resolves a position's unit price. ok is false when no price is available.
type PriceFunc func(p Position) (q Quote, ok bool)

// Group is the aggregation bucket an asset falls into.
type Group struct {
	Label    string
	Priority int
	Color    string
}

// NoneGroup is the bucket for unassigned assets.
var NoneGroup = Group{Label: NoneLabel}

// Grouping describes one top-level category. Assets holds every member asset
// with its subcategory group (NoneGroup when assigned to the category itself).
// Non-members go to NoneGroup, or are left out when MembersOnly is set.
type Grouping struct {
	Assets      map[string]Group
	MembersOnly bool
}

func (g *Grouping) groupOf(asset string) (Group, bool) {
	if g == nil {
		return NoneGroup, true
	}
	if grp, ok := g.Assets[asset]; ok {
		return grp, true
	}
	if g.MembersOnly {
		return Group{}, false
	}
	return NoneGroup, true
}

// LineItem is one valued position.
type LineItem struct {
	AssetName  string              `json:"asset_name"`
	Symbol     string              `json:"symbol"`
	Unit       string              `json:"unit,omitempty"`
	AssetClass models.AssetClass   `json:"asset_class"`
	Balance    decimal.Decimal     `json:"balance"`
	Price      decimal.NullDecimal `json:"price"`
	Value      decimal.Decimal     `json:"value"`
	Label      string              `json:"label"`
	Resolved   bool                `json:"resolved"`
	Fallback   bool                `json:"fallback"`
}

// Valuation is the calculator's output for one set of positions.
type Valuation struct {
	Lines               []LineItem
	PerAssetValue       map[string]decimal.Decimal
	PerSubcategoryValue map[string]decimal.Decimal
	Groups              map[string]Group
	TotalValue          decimal.Decimal
}

// Unresolved returns the lines whose price could not be resolved.
func (v Valuation) Unresolved() []LineItem {
	var out []LineItem
	for _, l := range v.Lines {
		if !l.Resolved {
			out = append(out, l)
		}
	}
	return out
}

// Calculate values each position as balance × price and aggregates per asset,
// per subcategory label and in total. Unpriced positions are listed with value 0.
func Calculate(positions []Position, price PriceFunc, grouping *Grouping) Valuation {
	v := Valuation{
		PerAssetValue:       make(map[string]decimal.Decimal),
		PerSubcategoryValue: make(map[string]decimal.Decimal),
		Groups:              make(map[string]Group),
		TotalValue:          decimal.Zero,
	}

	for _, p := range positions {
		grp, included := grouping.groupOf(p.AssetName)
		if !included {
			continue
		}

		line := LineItem{
			AssetName:  p.AssetName,
			Symbol:     p.Symbol,
			Unit:       p.Unit,
			AssetClass: p.AssetClass,
			Balance:    p.Balance,
			Value:      decimal.Zero,
			Label:      grp.Label,
		}
		if q, ok := price(p); ok {
			line.Price = decimal.NewNullDecimal(q.Price)
			line.Value = p.Balance.Mul(q.Price)
			line.Resolved = true
			line.Fallback = q.Fallback
		}

		v.Lines = append(v.Lines, line)
		v.PerAssetValue[p.AssetName] = v.PerAssetValue[p.AssetName].Add(line.Value)
		v.PerSubcategoryValue[grp.Label] = v.PerSubcategoryValue[grp.Label].Add(line.Value)
		v.Groups[grp.Label] = grp
		v.TotalValue = v.TotalValue.Add(line.Value)
	}
	return v
}
