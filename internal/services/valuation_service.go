package services

import (
	"context"
	"strings"
	"time"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	apperrors "folio/internal/errors"
	"folio/internal/logger"
	"folio/internal/models"
	"folio/internal/portfolio"
	"folio/internal/validator"
)

// ValuationOptions configures chart colors and the clock.
type ValuationOptions struct {
	Palette portfolio.Palette
	Now     func() time.Time
}

// valuationService values holdings and builds charts on the read path.
type valuationService struct {
	holdings   HoldingsServicer
	prices     PriceServicer
	categories CategoryServicer
	opts       ValuationOptions
}

// NewValuationService creates a new ValuationServicer.
func NewValuationService(holdings HoldingsServicer, prices PriceServicer, categories CategoryServicer, opts ValuationOptions) ValuationServicer {
	if len(opts.Palette) == 0 {
		opts.Palette = portfolio.DefaultPalette
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &valuationService{holdings: holdings, prices: prices, categories: categories, opts: opts}
}

// validateRequest checks the account and currency before any work starts and
// returns the normalized currency code.
func validateRequest(accountID, currency string) (string, error) {
	if err := requireAccount(accountID); err != nil {
		return "", err
	}
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if currency == "" {
		return "", apperrors.WithMessage(apperrors.ErrInvalidInput, "currency is required")
	}
	if !validator.IsCurrency(currency) {
		return "", apperrors.WithMessage(apperrors.ErrUnsupportedCurrency, "unsupported currency: "+currency)
	}
	return currency, nil
}

func queriesFor(positions []portfolio.Position, month time.Time) []PriceQuery {
	out := make([]PriceQuery, len(positions))
	for i, p := range positions {
		out[i] = PriceQuery{Symbol: p.Symbol, AssetClass: p.AssetClass, Month: month}
	}
	return out
}

func logUnresolved(accountID string, v portfolio.Valuation, month time.Time) {
	for _, l := range v.Unresolved() {
		logger.Get().Warnw("Asset valued at zero, price unavailable",
			"account_id", accountID,
			"asset_name", l.AssetName,
			"symbol", l.Symbol,
			"asset_class", l.AssetClass,
			"as_of", asOfLabel(month),
		)
	}
}

// formatAmount renders amount with the currency's symbol and minor units.
func formatAmount(amount decimal.Decimal, code string) string {
	c := money.GetCurrency(code)
	if c == nil {
		return amount.StringFixed(2) + " " + code
	}
	minor := amount.Shift(int32(c.Fraction)).Round(0).IntPart()
	return money.New(minor, code).Display()
}

// GetCurrentValuation values the account's current holdings at the latest prices.
func (s *valuationService) GetCurrentValuation(ctx context.Context, accountID, targetCurrency string) (*Valuation, error) {
	currency, err := validateRequest(accountID, targetCurrency)
	if err != nil {
		return nil, err
	}

	holdings, err := s.holdings.GetCurrentHoldings(ctx, accountID)
	if err != nil {
		return nil, err
	}
	positions := portfolio.FromHoldings(holdings)

	book, err := s.prices.ResolveAll(ctx, queriesFor(positions, time.Time{}), currency)
	if err != nil {
		return nil, err
	}
	v := portfolio.Calculate(positions, book.PriceFunc(time.Time{}), nil)
	logUnresolved(accountID, v, time.Time{})

	lines := v.Lines
	if lines == nil {
		lines = []portfolio.LineItem{}
	}
	unresolved := []string{}
	for _, l := range v.Unresolved() {
		unresolved = append(unresolved, l.AssetName)
	}

	return &Valuation{
		AccountID:      accountID,
		Currency:       currency,
		Lines:          lines,
		PerAsset:       v.PerAssetValue,
		Total:          v.TotalValue,
		FormattedTotal: formatAmount(v.TotalValue, currency),
		Unresolved:     unresolved,
	}, nil
}

// chartSetup validates the request and resolves the category grouping and layout.
func (s *valuationService) chartSetup(ctx context.Context, accountID, targetCurrency string, opts ChartOptions) (string, *portfolio.Grouping, portfolio.Mode, error) {
	currency, err := validateRequest(accountID, targetCurrency)
	if err != nil {
		return "", nil, portfolio.ModeFlat, err
	}
	if strings.TrimSpace(opts.Category) == "" {
		return currency, nil, portfolio.ModeFlat, nil
	}
	grouping, err := s.categories.Grouping(ctx, accountID, opts.Category, opts.MembersOnly)
	if err != nil {
		return "", nil, portfolio.ModeFlat, err
	}
	return currency, grouping, portfolio.ModeBySubcategory, nil
}

// GetPieChart builds a pie of the current holdings, per asset or per subcategory.
func (s *valuationService) GetPieChart(ctx context.Context, accountID, targetCurrency string, opts ChartOptions) ([]portfolio.Entry, error) {
	currency, grouping, mode, err := s.chartSetup(ctx, accountID, targetCurrency, opts)
	if err != nil {
		return nil, err
	}

	holdings, err := s.holdings.GetCurrentHoldings(ctx, accountID)
	if err != nil {
		return nil, err
	}
	positions := portfolio.FromHoldings(holdings)

	book, err := s.prices.ResolveAll(ctx, queriesFor(positions, time.Time{}), currency)
	if err != nil {
		return nil, err
	}
	v := portfolio.Calculate(positions, book.PriceFunc(time.Time{}), grouping)
	logUnresolved(accountID, v, time.Time{})

	entries := portfolio.BuildEntries(v, portfolio.Layout{Mode: mode, Kind: portfolio.KindPie}, nil)
	colored := s.opts.Palette.Colorize(entries)[0]
	if colored == nil {
		colored = []portfolio.Entry{}
	}
	return colored, nil
}

// barSource is the positions behind one bar and the month their prices come from.
type barSource struct {
	date      time.Time
	month     time.Time
	positions []portfolio.Position
}

// GetBarChartSeries builds one bar per past month-end snapshot, plus a bar for
// today's holdings unless today is the first of the month. On the first, the
// running month's snapshot stands in so trades booked that day are charted.
func (s *valuationService) GetBarChartSeries(ctx context.Context, accountID, targetCurrency string, opts ChartOptions) ([]portfolio.SeriesPoint, error) {
	currency, grouping, mode, err := s.chartSetup(ctx, accountID, targetCurrency, opts)
	if err != nil {
		return nil, err
	}

	now := s.opts.Now().UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	snapshots, err := s.holdings.GetSnapshots(ctx, accountID, nil, nil)
	if err != nil {
		return nil, err
	}
	includeToday := portfolio.IncludeToday(today)
	sources := snapshotSources(snapshots, today, !includeToday)

	if includeToday {
		holdings, err := s.holdings.GetCurrentHoldings(ctx, accountID)
		if err != nil {
			return nil, err
		}
		sources = append(sources, barSource{date: today, positions: portfolio.FromHoldings(holdings)})
	}
	if len(sources) == 0 {
		return []portfolio.SeriesPoint{}, nil
	}

	var queries []PriceQuery
	for _, src := range sources {
		queries = append(queries, queriesFor(src.positions, src.month)...)
	}
	book, err := s.prices.ResolveAll(ctx, queries, currency)
	if err != nil {
		return nil, err
	}

	layout := portfolio.Layout{Mode: mode, Kind: portfolio.KindBar}
	points := make([]portfolio.SeriesPoint, len(sources))
	var g errgroup.Group
	for i, src := range sources {
		g.Go(func() error {
			v := portfolio.Calculate(src.positions, book.PriceFunc(src.month), grouping)
			logUnresolved(accountID, v, src.month)
			date := src.date
			points[i] = portfolio.SeriesPoint{Date: date, Entries: portfolio.BuildEntries(v, layout, &date)}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	return portfolio.AssembleSeries(points, s.opts.Palette), nil
}

// snapshotSources groups snapshot rows by month-end, keeping months that ended
// before today. With keepCurrent the running month's snapshot is kept too and
// priced at the latest quotes, since its month-end price does not exist yet.
func snapshotSources(snapshots []models.HoldingSnapshot, today time.Time, keepCurrent bool) []barSource {
	currentEnd := portfolio.MonthEnd(today)
	byMonth := make(map[string][]models.HoldingSnapshot)
	var months []time.Time
	for _, snap := range snapshots {
		monthEnd := portfolio.MonthEnd(snap.MonthEndDate)
		if !monthEnd.Before(today) && !(keepCurrent && monthEnd.Equal(currentEnd)) {
			continue
		}
		key := monthEnd.Format(time.DateOnly)
		if _, ok := byMonth[key]; !ok {
			months = append(months, monthEnd)
		}
		byMonth[key] = append(byMonth[key], snap)
	}

	sources := make([]barSource, 0, len(months))
	for _, m := range months {
		src := barSource{date: m, month: m, positions: portfolio.FromSnapshots(byMonth[m.Format(time.DateOnly)])}
		if m.Equal(currentEnd) {
			src.month = time.Time{}
		}
		sources = append(sources, src)
	}
	return sources
}
