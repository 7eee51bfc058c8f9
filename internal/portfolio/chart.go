package portfolio

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// Mode selects whether entries are per asset or per subcategory.
type Mode int

const (
	ModeFlat Mode = iota
	ModeBySubcategory
)

// Kind selects snapshot (pie) or dated (bar) output.
type Kind int

const (
	KindPie Kind = iota
	KindBar
)

// Layout is the chart variant being built.
type Layout struct {
	Mode Mode
	Kind Kind
}

var (
	hundred = decimal.NewFromInt(100)

	// flatPieShare fills PercentageOfSubcategoryOrSelf for per-asset pies.
	flatPieShare = hundred
	// barShare fills PercentageOfSubcategoryOrSelf for every bar chart; the field is reserved there.
	barShare = decimal.NewFromInt(1)
)

// Entry is one slice of a pie or one segment of a bar.
type Entry struct {
	Label                         string          `json:"label"`
	Symbol                        string          `json:"symbol,omitempty"`
	Value                         decimal.Decimal `json:"value"`
	Color                         string          `json:"color"`
	Priority                      int             `json:"priority"`
	PercentageOfTotal             decimal.Decimal `json:"percentage_of_total"`
	PercentageOfSubcategoryOrSelf decimal.Decimal `json:"percentage_of_subcategory_or_self"`
	Date                          *time.Time      `json:"date,omitempty"`
}

// percentOf returns part/total×100, or zero when total is zero.
func percentOf(part, total decimal.Decimal) decimal.Decimal {
	if total.IsZero() {
		return decimal.Zero
	}
	return part.Div(total).Mul(hundred)
}

// BuildEntries turns a valuation into sorted chart entries for the layout.
// Colors come from the subcategory where one is set; the rest are left empty
// for Colorize. date is attached to bar entries only.
func BuildEntries(v Valuation, layout Layout, date *time.Time) []Entry {
	var entries []Entry

	switch layout.Mode {
	case ModeBySubcategory:
		for label, value := range v.PerSubcategoryValue {
			grp := v.Groups[label]
			pct := percentOf(value, v.TotalValue)
			share := pct
			if layout.Kind == KindBar {
				share = barShare
			}
			entries = append(entries, Entry{
				Label:                         label,
				Value:                         value,
				Color:                         grp.Color,
				Priority:                      grp.Priority,
				PercentageOfTotal:             pct,
				PercentageOfSubcategoryOrSelf: share,
			})
		}
		sort.SliceStable(entries, func(i, j int) bool {
			a, b := entries[i], entries[j]
			if a.Priority != b.Priority {
				return a.Priority < b.Priority
			}
			return byValueDesc(a, b)
		})
	default:
		for _, line := range v.Lines {
			share := flatPieShare
			if layout.Kind == KindBar {
				share = barShare
			}
			entries = append(entries, Entry{
				Label:                         line.AssetName,
				Symbol:                        line.Symbol,
				Value:                         line.Value,
				Priority:                      v.Groups[line.Label].Priority,
				PercentageOfTotal:             percentOf(line.Value, v.TotalValue),
				PercentageOfSubcategoryOrSelf: share,
			})
		}
		sort.SliceStable(entries, func(i, j int) bool { return byValueDesc(entries[i], entries[j]) })
	}

	if layout.Kind == KindBar && date != nil {
		d := *date
		for i := range entries {
			entries[i].Date = &d
		}
	}
	return entries
}

// byValueDesc orders by value descending, then label so equal values are stable across runs.
func byValueDesc(a, b Entry) bool {
	if c := a.Value.Cmp(b.Value); c != 0 {
		return c > 0
	}
	return a.Label < b.Label
}

// SeriesPoint is one dated bar of a time series.
type SeriesPoint struct {
	Date    time.Time `json:"date"`
	Entries []Entry   `json:"entries"`
}

// AssembleSeries orders points by date and colors every label consistently
// across the whole series, first-seen in date order.
func AssembleSeries(points []SeriesPoint, palette Palette) []SeriesPoint {
	out := make([]SeriesPoint, len(points))
	copy(out, points)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })

	charts := make([][]Entry, len(out))
	for i := range out {
		charts[i] = out[i].Entries
	}
	colored := palette.Colorize(charts...)
	for i := range out {
		out[i].Entries = colored[i]
	}
	return out
}

// IncludeToday reports whether a current-holdings bar is appended to the series.
// On the first of a month the previous month-end already reflects today.
func IncludeToday(today time.Time) bool {
	return today.UTC().Day() != 1
}
