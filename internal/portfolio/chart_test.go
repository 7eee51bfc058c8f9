package portfolio

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"folio/internal/models"
)

func pos(asset string, balance int64) Position {
	return Position{AssetName: asset, Symbol: asset, AssetClass: models.AssetClassStock, Balance: decimal.NewFromInt(balance)}
}

func fixedPrices(prices map[string]string) PriceFunc {
	return func(p Position) (Quote, bool) {
		raw, ok := prices[p.Symbol]
		if !ok {
			return Quote{}, false
		}
		return Quote{Price: decimal.RequireFromString(raw)}, true
	}
}

func labels(entries []Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Label
	}
	return out
}

func sumPercent(entries []Entry) decimal.Decimal {
	total := decimal.Zero
	for _, e := range entries {
		total = total.Add(e.PercentageOfTotal)
	}
	return total
}

func TestCalculate(t *testing.T) {
	t.Run("values_and_totals", func(t *testing.T) {
		v := Calculate(
			[]Position{pos("A", 2), pos("B", 3)},
			fixedPrices(map[string]string{"A": "1.5", "B": "10"}),
			nil,
		)
		assert.Equal(t, "3", v.PerAssetValue["A"].String())
		assert.Equal(t, "30", v.PerAssetValue["B"].String())
		assert.Equal(t, "33", v.PerSubcategoryValue[NoneLabel].String())
		assert.Equal(t, "33", v.TotalValue.String())
	})

	t.Run("unresolved_price_counts_as_zero", func(t *testing.T) {
		v := Calculate(
			[]Position{pos("A", 2), pos("MISSING", 3)},
			fixedPrices(map[string]string{"A": "5"}),
			nil,
		)
		require.Len(t, v.Lines, 2)
		assert.Equal(t, "10", v.TotalValue.String())
		unresolved := v.Unresolved()
		require.Len(t, unresolved, 1)
		assert.Equal(t, "MISSING", unresolved[0].AssetName)
		assert.True(t, unresolved[0].Value.IsZero())
		assert.False(t, unresolved[0].Price.Valid)
	})

	t.Run("grouping_by_subcategory", func(t *testing.T) {
		grouping := &Grouping{Assets: map[string]Group{
			"A": {Label: "Stocks", Priority: 1},
			"B": {Label: "Bonds", Priority: 2},
			"C": NoneGroup,
		}}
		v := Calculate(
			[]Position{pos("A", 1), pos("B", 1), pos("C", 1), pos("D", 1)},
			fixedPrices(map[string]string{"A": "1", "B": "2", "C": "3", "D": "4"}),
			grouping,
		)
		assert.Equal(t, "1", v.PerSubcategoryValue["Stocks"].String())
		assert.Equal(t, "2", v.PerSubcategoryValue["Bonds"].String())
		assert.Equal(t, "7", v.PerSubcategoryValue[NoneLabel].String())
		assert.Equal(t, "10", v.TotalValue.String())
	})

	t.Run("members_only_excludes_non_members", func(t *testing.T) {
		grouping := &Grouping{MembersOnly: true, Assets: map[string]Group{
			"A": {Label: "Stocks", Priority: 1},
		}}
		v := Calculate(
			[]Position{pos("A", 1), pos("D", 1)},
			fixedPrices(map[string]string{"A": "1", "D": "4"}),
			grouping,
		)
		assert.Len(t, v.Lines, 1)
		assert.Equal(t, "1", v.TotalValue.String())
	})
}

func TestBuildEntries(t *testing.T) {
	t.Run("flat_pie_sorted_by_value", func(t *testing.T) {
		v := Calculate(
			[]Position{pos("A", 1), pos("B", 1), pos("C", 1)},
			fixedPrices(map[string]string{"A": "10", "B": "30", "C": "60"}),
			nil,
		)
		entries := BuildEntries(v, Layout{Mode: ModeFlat, Kind: KindPie}, nil)
		assert.Equal(t, []string{"C", "B", "A"}, labels(entries))
		assert.Equal(t, "60", entries[0].PercentageOfTotal.String())
		for _, e := range entries {
			assert.True(t, e.PercentageOfSubcategoryOrSelf.Equal(decimal.NewFromInt(100)))
			assert.Nil(t, e.Date)
		}
	})

	t.Run("pie_percentages_sum_to_100", func(t *testing.T) {
		v := Calculate(
			[]Position{pos("A", 1), pos("B", 1), pos("C", 1)},
			fixedPrices(map[string]string{"A": "1", "B": "1", "C": "1"}),
			nil,
		)
		entries := BuildEntries(v, Layout{Mode: ModeFlat, Kind: KindPie}, nil)
		diff := sumPercent(entries).Sub(decimal.NewFromInt(100)).Abs()
		assert.True(t, diff.LessThan(decimal.RequireFromString("0.000001")), "sum off by %s", diff)
	})

	t.Run("zero_total_gives_zero_percent", func(t *testing.T) {
		v := Calculate(
			[]Position{pos("A", 1), pos("B", 1)},
			fixedPrices(map[string]string{}),
			nil,
		)
		for _, e := range BuildEntries(v, Layout{Mode: ModeFlat, Kind: KindPie}, nil) {
			assert.True(t, e.PercentageOfTotal.IsZero())
		}
	})

	t.Run("unresolved_asset_does_not_shift_others", func(t *testing.T) {
		prices := fixedPrices(map[string]string{"A": "25", "B": "75"})
		without := BuildEntries(Calculate([]Position{pos("A", 1), pos("B", 1)}, prices, nil), Layout{Kind: KindPie}, nil)
		with := BuildEntries(Calculate([]Position{pos("A", 1), pos("B", 1), pos("X", 9)}, prices, nil), Layout{Kind: KindPie}, nil)

		require.Len(t, with, 3)
		pct := map[string]decimal.Decimal{}
		for _, e := range with {
			pct[e.Label] = e.PercentageOfTotal
		}
		for _, e := range without {
			assert.True(t, e.PercentageOfTotal.Equal(pct[e.Label]), "%s changed", e.Label)
		}
		assert.True(t, pct["X"].IsZero())
	})

	t.Run("by_subcategory_bar_orders_by_priority", func(t *testing.T) {
		grouping := &Grouping{Assets: map[string]Group{
			"Treasury": {Label: "Bonds", Priority: 2},
			"ACME":     {Label: "Stocks", Priority: 1},
		}}
		v := Calculate(
			[]Position{pos("Treasury", 1), pos("ACME", 1)},
			fixedPrices(map[string]string{"Treasury": "1000", "ACME": "10"}),
			grouping,
		)
		date := day(2024, 1, 31)
		entries := BuildEntries(v, Layout{Mode: ModeBySubcategory, Kind: KindBar}, &date)
		assert.Equal(t, []string{"Stocks", "Bonds"}, labels(entries))
		assert.Equal(t, "10", entries[0].Value.String())
		assert.Equal(t, "1000", entries[1].Value.String())
		for _, e := range entries {
			require.NotNil(t, e.Date)
			assert.Equal(t, date, *e.Date)
			assert.True(t, e.PercentageOfSubcategoryOrSelf.Equal(decimal.NewFromInt(1)))
		}
	})

	t.Run("by_subcategory_none_first_then_value", func(t *testing.T) {
		grouping := &Grouping{Assets: map[string]Group{
			"A": {Label: "Growth", Priority: 1},
			"B": {Label: "Value", Priority: 1},
		}}
		v := Calculate(
			[]Position{pos("A", 1), pos("B", 1), pos("C", 1)},
			fixedPrices(map[string]string{"A": "5", "B": "50", "C": "1"}),
			grouping,
		)
		entries := BuildEntries(v, Layout{Mode: ModeBySubcategory, Kind: KindPie}, nil)
		assert.Equal(t, []string{NoneLabel, "Value", "Growth"}, labels(entries))
	})

	t.Run("by_subcategory_pie_share_is_share_of_grand_total", func(t *testing.T) {
		grouping := &Grouping{Assets: map[string]Group{
			"A": {Label: "Stocks", Priority: 1},
			"B": {Label: "Stocks", Priority: 1},
			"C": {Label: "Bonds", Priority: 2},
		}}
		v := Calculate(
			[]Position{pos("A", 1), pos("B", 1), pos("C", 1)},
			fixedPrices(map[string]string{"A": "10", "B": "30", "C": "60"}),
			grouping,
		)
		entries := BuildEntries(v, Layout{Mode: ModeBySubcategory, Kind: KindPie}, nil)
		require.Len(t, entries, 2)
		assert.Equal(t, "40", entries[0].PercentageOfSubcategoryOrSelf.String())
		assert.Equal(t, "40", entries[0].PercentageOfTotal.String())
		assert.Equal(t, "60", entries[1].PercentageOfSubcategoryOrSelf.String())
	})

	t.Run("subcategory_color_kept", func(t *testing.T) {
		grouping := &Grouping{Assets: map[string]Group{"A": {Label: "Stocks", Priority: 1, Color: "#123456"}}}
		v := Calculate([]Position{pos("A", 1)}, fixedPrices(map[string]string{"A": "1"}), grouping)
		entries := DefaultPalette.Colorize(BuildEntries(v, Layout{Mode: ModeBySubcategory}, nil))[0]
		assert.Equal(t, "#123456", entries[0].Color)
	})
}

func TestPalette(t *testing.T) {
	t.Run("cycles_by_first_seen", func(t *testing.T) {
		p := Palette{"#1", "#2"}
		colors := p.Assign([]string{"a", "b", "a", "c"})
		assert.Equal(t, map[string]string{"a": "#1", "b": "#2", "c": "#1"}, colors)
	})

	t.Run("independent_builds_do_not_share_state", func(t *testing.T) {
		p := Palette{"#1", "#2", "#3"}
		first := p.Assign([]string{"x", "y"})
		second := p.Assign([]string{"y", "x"})
		assert.Equal(t, "#1", first["x"])
		assert.Equal(t, "#1", second["y"])
	})

	t.Run("label_keeps_color_across_charts", func(t *testing.T) {
		p := Palette{"#1", "#2", "#3"}
		jan := []Entry{{Label: "A"}, {Label: "B"}}
		feb := []Entry{{Label: "C"}, {Label: "A"}}
		out := p.Colorize(jan, feb)
		assert.Equal(t, "#1", out[0][0].Color)
		assert.Equal(t, "#2", out[0][1].Color)
		assert.Equal(t, "#3", out[1][0].Color)
		assert.Equal(t, "#1", out[1][1].Color)
		assert.Empty(t, jan[0].Color, "input must not be mutated")
	})
}

func TestAssembleSeries(t *testing.T) {
	feb := SeriesPoint{Date: day(2024, 2, 29), Entries: []Entry{{Label: "B"}, {Label: "A"}}}
	jan := SeriesPoint{Date: day(2024, 1, 31), Entries: []Entry{{Label: "A"}}}
	today := SeriesPoint{Date: day(2024, 3, 12), Entries: []Entry{{Label: "A"}, {Label: "B"}}}

	series := AssembleSeries([]SeriesPoint{today, feb, jan}, Palette{"#1", "#2"})
	require.Len(t, series, 3)
	assert.Equal(t, []time.Time{jan.Date, feb.Date, today.Date}, []time.Time{series[0].Date, series[1].Date, series[2].Date})
	assert.Equal(t, "#1", series[0].Entries[0].Color)
	assert.Equal(t, "#2", series[1].Entries[0].Color)
	assert.Equal(t, "#1", series[2].Entries[0].Color)
}

func TestIncludeToday(t *testing.T) {
	assert.False(t, IncludeToday(day(2024, 3, 1)))
	assert.True(t, IncludeToday(day(2024, 3, 2)))
}
