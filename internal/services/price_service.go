package services

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	apperrors "folio/internal/errors"
	"folio/internal/logger"
	"folio/internal/models"
	"folio/internal/portfolio"
	"folio/internal/pricing"
	"folio/internal/retry"
)

// defaultQuoteCurrency applies to stored non-forex prices without a currency.
const defaultQuoteCurrency = "USD"

// inversePrecision is the number of decimal places kept when inverting a forex pair.
const inversePrecision = 4

var one = decimal.NewFromInt(1)

// PriceQuery identifies one price to resolve. A zero Month asks for the latest price;
// otherwise any date within the wanted month.
type PriceQuery struct {
	Symbol     string
	AssetClass models.AssetClass
	Month      time.Time
}

func (q PriceQuery) key() string {
	month := "latest"
	if !q.Month.IsZero() {
		month = q.Month.UTC().Format("2006-01")
	}
	return string(q.AssetClass) + "|" + q.Symbol + "|" + month
}

// ResolvedPrice is a unit price in the target currency.
type ResolvedPrice struct {
	Symbol     string            `json:"symbol"`
	AssetClass models.AssetClass `json:"asset_class"`
	Currency   string            `json:"currency"`
	Price      decimal.Decimal   `json:"price"`
	// Fallback is set when the price came from an earlier month than requested,
	// or from a historical point when the latest was requested.
	Fallback bool       `json:"fallback"`
	AsOf     *time.Time `json:"as_of,omitempty"`
}

// PriceBook holds the outcome of a batch resolution.
type PriceBook struct {
	prices  map[string]ResolvedPrice
	Missing []PriceQuery
}

func newPriceBook() *PriceBook {
	return &PriceBook{prices: make(map[string]ResolvedPrice)}
}

// Lookup returns the resolved price for q, if any.
func (b *PriceBook) Lookup(q PriceQuery) (ResolvedPrice, bool) {
	if b == nil {
		return ResolvedPrice{}, false
	}
	p, ok := b.prices[q.key()]
	return p, ok
}

// PriceFunc adapts the book to the calculator for positions valued in month
// (zero for the latest prices).
func (b *PriceBook) PriceFunc(month time.Time) portfolio.PriceFunc {
	return func(p portfolio.Position) (portfolio.Quote, bool) {
		rp, ok := b.Lookup(PriceQuery{Symbol: p.Symbol, AssetClass: p.AssetClass, Month: month})
		if !ok {
			return portfolio.Quote{}, false
		}
		return portfolio.Quote{Price: rp.Price, Fallback: rp.Fallback, AsOf: rp.AsOf}, true
	}
}

// PriceOptions configures the resolver's refresh wait and fallback window.
type PriceOptions struct {
	PollAttempts   int
	PollDelay      time.Duration
	FallbackMonths int
	// Now overrides the clock used for the latest-price fallback window.
	Now func() time.Time
}

// priceService stores price points and resolves them against a target currency.
type priceService struct {
	db        *gorm.DB
	publisher pricing.Publisher
	opts      PriceOptions
}

// NewPriceService creates a new PriceServicer. A nil publisher skips refresh requests.
func NewPriceService(db *gorm.DB, publisher pricing.Publisher, opts PriceOptions) PriceServicer {
	if opts.PollAttempts < 1 {
		opts.PollAttempts = 1
	}
	if opts.FallbackMonths < 0 {
		opts.FallbackMonths = 0
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &priceService{db: db, publisher: publisher, opts: opts}
}

// NewPriceSink exposes the price store to the refresher.
func NewPriceSink(prices PriceServicer) pricing.Sink {
	return &priceSink{prices: prices}
}

type priceSink struct {
	prices PriceServicer
}

// SaveQuotes records fetched quotes as current price points.
func (s *priceSink) SaveQuotes(ctx context.Context, quotes []pricing.Quote) (int, error) {
	inputs := make([]PriceInput, len(quotes))
	for i, q := range quotes {
		inputs[i] = PriceInput{
			Symbol:     q.Symbol,
			AssetClass: q.AssetClass,
			Currency:   q.Currency,
			Price:      q.Price,
			RecordedAt: q.RecordedAt,
		}
	}
	return s.prices.RecordPrices(ctx, inputs)
}

// RecordPrices inserts price points, skipping exact duplicates of
// (symbol, asset class, as-of, recorded-at).
func (s *priceService) RecordPrices(ctx context.Context, prices []PriceInput) (int, error) {
	if len(prices) == 0 {
		return 0, apperrors.WithMessage(apperrors.ErrInvalidInput, "Prices array is empty")
	}

	points := make([]models.PricePoint, 0, len(prices))
	for _, p := range prices {
		point, err := s.normalize(p)
		if err != nil {
			return 0, err
		}
		points = append(points, point)
	}

	db := s.db.WithContext(ctx)
	count := 0
	for i := range points {
		q := db.Where("symbol = ? AND asset_class = ? AND recorded_at = ?", points[i].Symbol, points[i].AssetClass, points[i].RecordedAt)
		if points[i].AsOf == nil {
			q = q.Where("as_of IS NULL")
		} else {
			q = q.Where("as_of = ?", *points[i].AsOf)
		}
		var existing models.PricePoint
		result := q.Limit(1).Find(&existing)
		if result.Error != nil {
			return count, apperrors.Wrap(apperrors.ErrInternalServer, result.Error)
		}
		if result.RowsAffected > 0 {
			continue
		}
		if err := db.Create(&points[i]).Error; err != nil {
			return count, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		count++
	}
	return count, nil
}

func (s *priceService) normalize(p PriceInput) (models.PricePoint, error) {
	symbol := strings.TrimSpace(p.Symbol)
	if symbol == "" {
		return models.PricePoint{}, apperrors.WithMessage(apperrors.ErrInvalidInput, "price symbol is required")
	}
	if !p.AssetClass.Valid() {
		return models.PricePoint{}, apperrors.WithMessage(apperrors.ErrInvalidInput, "unknown asset class: "+string(p.AssetClass))
	}
	if !p.Price.IsPositive() {
		return models.PricePoint{}, apperrors.WithMessage(apperrors.ErrInvalidInput, "price must be positive for "+symbol)
	}

	currency := strings.ToUpper(strings.TrimSpace(p.Currency))
	if p.AssetClass.IsForex() {
		base, quote, ok := pricing.SplitPair(symbol)
		if !ok {
			return models.PricePoint{}, apperrors.WithMessage(apperrors.ErrInvalidInput, "forex symbol must be BASE/QUOTE: "+symbol)
		}
		symbol = pricing.PairSymbol(base, quote)
		currency = ""
	} else if currency == "" {
		currency = defaultQuoteCurrency
	}

	recordedAt := p.RecordedAt
	if recordedAt.IsZero() {
		recordedAt = s.opts.Now()
	}
	var asOf *time.Time
	if p.AsOf != nil {
		t := p.AsOf.UTC()
		asOf = &t
	}

	return models.PricePoint{
		Symbol:     symbol,
		AssetClass: p.AssetClass,
		Currency:   currency,
		Price:      p.Price,
		AsOf:       asOf,
		RecordedAt: recordedAt.UTC(),
	}, nil
}

// Resolve resolves a single price. A nil result with a nil error means no price
// was available after the refresh wait.
func (s *priceService) Resolve(ctx context.Context, q PriceQuery, targetCurrency string) (*ResolvedPrice, error) {
	book, err := s.ResolveAll(ctx, []PriceQuery{q}, targetCurrency)
	if err != nil {
		return nil, err
	}
	if rp, ok := book.Lookup(q); ok {
		return &rp, nil
	}
	return nil, nil
}

// ResolveAll publishes one refresh request for the batch, then polls the store
// until every query has a price or the poll budget runs out. Queries still
// unresolved are listed in PriceBook.Missing; running out of budget is not an error.
func (s *priceService) ResolveAll(ctx context.Context, queries []PriceQuery, targetCurrency string) (*PriceBook, error) {
	target := strings.ToUpper(strings.TrimSpace(targetCurrency))
	if target == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "target currency is required")
	}

	book := newPriceBook()
	seen := make(map[string]struct{}, len(queries))
	var pending []PriceQuery
	for _, q := range queries {
		if _, ok := seen[q.key()]; ok {
			continue
		}
		seen[q.key()] = struct{}{}
		pending = append(pending, q)
	}
	if len(pending) == 0 {
		return book, nil
	}

	s.requestRefresh(ctx, pending, target)

	policy := retry.Policy{MaxAttempts: s.opts.PollAttempts, Delay: s.opts.PollDelay}
	res := retry.Poll(ctx, policy, func(ctx context.Context, _ int) (bool, error) {
		db := s.db.WithContext(ctx)
		var remaining []PriceQuery
		for _, q := range pending {
			rp, err := s.resolveStored(db, q, target)
			if err != nil {
				return false, err
			}
			if rp == nil {
				remaining = append(remaining, q)
				continue
			}
			book.prices[q.key()] = *rp
		}
		pending = remaining
		return len(pending) == 0, nil
	})

	if res.Err != nil {
		if !errors.Is(res.Err, context.Canceled) && !errors.Is(res.Err, context.DeadlineExceeded) {
			return nil, apperrors.Wrap(apperrors.ErrInternalServer, res.Err)
		}
		logger.Get().Warnw("Price refresh wait cut short", "error", res.Err, "attempts", res.Attempts, "pending", len(pending))
	}

	for _, q := range pending {
		logger.Get().Warnw("Price unavailable",
			"symbol", q.Symbol,
			"asset_class", q.AssetClass,
			"as_of", asOfLabel(q.Month),
			"target_currency", target,
			"attempts", res.Attempts,
		)
	}
	book.Missing = pending
	return book, nil
}

func asOfLabel(month time.Time) string {
	if month.IsZero() {
		return "latest"
	}
	return month.Format("2006-01-02")
}

// requestRefresh publishes the batch; failures are logged and never block resolution.
func (s *priceService) requestRefresh(ctx context.Context, queries []PriceQuery, target string) {
	if s.publisher == nil {
		return
	}
	seen := make(map[pricing.RefreshRequest]struct{}, len(queries))
	var reqs []pricing.RefreshRequest
	add := func(req pricing.RefreshRequest) {
		if _, ok := seen[req]; ok {
			return
		}
		seen[req] = struct{}{}
		reqs = append(reqs, req)
	}
	for _, q := range queries {
		if strings.EqualFold(q.Symbol, target) {
			continue
		}
		if q.AssetClass.IsForex() {
			add(pricing.RefreshRequest{Symbol: pricing.PairSymbol(q.Symbol, target), AssetClass: q.AssetClass})
			continue
		}
		add(pricing.RefreshRequest{Symbol: q.Symbol, AssetClass: q.AssetClass})
		// the stored price still has to be converted out of its quote currency
		for _, quoted := range s.quoteCurrencies(ctx, q) {
			if !strings.EqualFold(quoted, target) {
				add(pricing.RefreshRequest{Symbol: pricing.PairSymbol(quoted, target), AssetClass: models.AssetClassCurrency})
			}
		}
	}
	if len(reqs) == 0 {
		return
	}
	if err := s.publisher.RequestRefresh(ctx, reqs); err != nil {
		logger.Get().Warnw("Failed to publish price refresh", "error", err, "count", len(reqs))
	}
}

// quoteCurrencies lists the currencies q may be quoted in: the default quote
// currency plus any currency already recorded for the symbol.
func (s *priceService) quoteCurrencies(ctx context.Context, q PriceQuery) []string {
	out := []string{defaultQuoteCurrency}
	var stored []string
	if err := s.db.WithContext(ctx).Model(&models.PricePoint{}).
		Where("symbol = ? AND asset_class = ? AND currency <> ''", q.Symbol, q.AssetClass).
		Distinct("currency").
		Pluck("currency", &stored).Error; err != nil {
		logger.Get().Warnw("Failed to read quote currencies", "symbol", q.Symbol, "error", err)
		return out
	}
	for _, c := range stored {
		if c = strings.ToUpper(c); c != defaultQuoteCurrency {
			out = append(out, c)
		}
	}
	sort.Strings(out[1:])
	return out
}

// resolveStored resolves q from the store only. It returns nil when nothing usable exists.
func (s *priceService) resolveStored(db *gorm.DB, q PriceQuery, target string) (*ResolvedPrice, error) {
	if strings.EqualFold(q.Symbol, target) {
		return &ResolvedPrice{Symbol: q.Symbol, AssetClass: q.AssetClass, Currency: target, Price: one}, nil
	}

	if q.AssetClass.IsForex() {
		rate, err := s.rate(db, q.Symbol, target, q.Month)
		if err != nil || rate == nil {
			return nil, err
		}
		rate.Symbol = q.Symbol
		rate.AssetClass = q.AssetClass
		return rate, nil
	}

	point, fallback, err := s.findPoint(db, q.Symbol, q.AssetClass, q.Month)
	if err != nil || point == nil {
		return nil, err
	}

	rp := &ResolvedPrice{
		Symbol:     q.Symbol,
		AssetClass: q.AssetClass,
		Currency:   target,
		Price:      point.Price,
		Fallback:   fallback,
		AsOf:       point.AsOf,
	}

	quoted := point.Currency
	if quoted == "" {
		quoted = defaultQuoteCurrency
	}
	if !strings.EqualFold(quoted, target) {
		rate, err := s.rate(db, quoted, target, q.Month)
		if err != nil || rate == nil {
			return nil, err
		}
		rp.Price = rp.Price.Mul(rate.Price)
		rp.Fallback = rp.Fallback || rate.Fallback
	}
	return rp, nil
}

// rate returns the price of one unit of base in quote, trying the direct pair
// and then the inverted reverse pair.
func (s *priceService) rate(db *gorm.DB, base, quote string, month time.Time) (*ResolvedPrice, error) {
	if strings.EqualFold(base, quote) {
		return &ResolvedPrice{Currency: strings.ToUpper(quote), Price: one}, nil
	}

	point, fallback, err := s.findPoint(db, pricing.PairSymbol(base, quote), models.AssetClassCurrency, month)
	if err != nil {
		return nil, err
	}
	if point != nil {
		return &ResolvedPrice{Currency: strings.ToUpper(quote), Price: point.Price, Fallback: fallback, AsOf: point.AsOf}, nil
	}

	point, fallback, err = s.findPoint(db, pricing.PairSymbol(quote, base), models.AssetClassCurrency, month)
	if err != nil || point == nil || point.Price.IsZero() {
		return nil, err
	}
	return &ResolvedPrice{
		Currency: strings.ToUpper(quote),
		Price:    invertRate(point.Price),
		Fallback: fallback,
		AsOf:     point.AsOf,
	}, nil
}

// invertRate returns 1/price rounded half-up once, from the exact quotient.
func invertRate(price decimal.Decimal) decimal.Decimal {
	return one.DivRound(price, inversePrecision)
}

// findPoint looks up the stored price for the month (zero for latest). When the
// exact month has nothing it takes the nearest earlier point within the
// fallback window and reports fallback=true. For latest, any historical point
// is a fallback for the missing current quote.
func (s *priceService) findPoint(db *gorm.DB, symbol string, class models.AssetClass, month time.Time) (*models.PricePoint, bool, error) {
	latest := month.IsZero()
	if latest {
		var current []models.PricePoint
		if err := db.Where("symbol = ? AND asset_class = ? AND as_of IS NULL", symbol, class).
			Order("recorded_at DESC").
			Limit(1).
			Find(&current).Error; err != nil {
			return nil, false, err
		}
		if len(current) > 0 {
			return &current[0], false, nil
		}
		month = s.opts.Now()
	}

	start := portfolio.MonthStart(month)
	windowStart := start.AddDate(0, -s.opts.FallbackMonths, 0)
	windowEnd := start.AddDate(0, 1, 0)

	var historical []models.PricePoint
	if err := db.Where("symbol = ? AND asset_class = ? AND as_of >= ? AND as_of < ?", symbol, class, windowStart, windowEnd).
		Order("as_of DESC, recorded_at DESC").
		Limit(1).
		Find(&historical).Error; err != nil {
		return nil, false, err
	}
	if len(historical) == 0 {
		return nil, false, nil
	}

	p := &historical[0]
	return p, latest || p.AsOf.Before(start), nil
}
