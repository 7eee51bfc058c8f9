package pricing

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"folio/internal/models"
)

type fakeProvider struct {
	name    string
	classes []models.AssetClass
	mu      sync.Mutex
	seen    []RefreshRequest
}

func (p *fakeProvider) Name() string { return p.name }

func (p *fakeProvider) Supports(class models.AssetClass) bool {
	for _, c := range p.classes {
		if c == class {
			return true
		}
	}
	return false
}

func (p *fakeProvider) FetchQuotes(_ context.Context, instruments []RefreshRequest) ([]Quote, []FetchError) {
	p.mu.Lock()
	p.seen = append(p.seen, instruments...)
	p.mu.Unlock()

	var quotes []Quote
	var errs []FetchError
	for _, inst := range instruments {
		if inst.Symbol == "FAIL" {
			errs = append(errs, FetchError{Symbol: inst.Symbol, Err: errors.New("boom")})
			continue
		}
		quotes = append(quotes, Quote{Symbol: inst.Symbol, AssetClass: inst.AssetClass, Price: decimal.NewFromInt(1)})
	}
	return quotes, errs
}

type recordingSink struct {
	mu     sync.Mutex
	quotes []Quote
	err    error
	done   chan struct{}
}

func (s *recordingSink) SaveQuotes(_ context.Context, quotes []Quote) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return 0, s.err
	}
	s.quotes = append(s.quotes, quotes...)
	if s.done != nil {
		close(s.done)
		s.done = nil
	}
	return len(quotes), nil
}

func TestRefresher_Run(t *testing.T) {
	t.Run("routes_to_first_supporting_provider", func(t *testing.T) {
		stocks := &fakeProvider{name: "stocks", classes: []models.AssetClass{models.AssetClassStock}}
		crypto := &fakeProvider{name: "crypto", classes: []models.AssetClass{models.AssetClassCrypto, models.AssetClassStock}}
		sink := &recordingSink{}
		r := NewRefresher([]Provider{stocks, crypto}, sink, time.Second)

		res, err := r.Run(context.Background(), []RefreshRequest{
			stock("AAPL"),
			stock("AAPL"),
			{Symbol: "BTC", AssetClass: models.AssetClassCrypto},
			{Symbol: "EUR/USD", AssetClass: models.AssetClassCurrency},
			stock("FAIL"),
		})
		require.NoError(t, err)
		assert.Equal(t, 4, res.Requested)
		assert.Equal(t, 2, res.Recorded)
		require.Len(t, res.Errors, 1)
		assert.Equal(t, "FAIL", res.Errors[0].Symbol)
		assert.Equal(t, []RefreshRequest{stock("AAPL"), stock("FAIL")}, stocks.seen)
		assert.Equal(t, []RefreshRequest{{Symbol: "BTC", AssetClass: models.AssetClassCrypto}}, crypto.seen)
	})

	t.Run("sink_error_is_returned", func(t *testing.T) {
		sink := &recordingSink{err: errors.New("db down")}
		r := NewRefresher([]Provider{&fakeProvider{classes: []models.AssetClass{models.AssetClassStock}}}, sink, 0)
		_, err := r.Run(context.Background(), []RefreshRequest{stock("AAPL")})
		assert.Error(t, err)
	})

	t.Run("nothing_fetched_skips_sink", func(t *testing.T) {
		sink := &recordingSink{err: errors.New("must not be called")}
		r := NewRefresher(nil, sink, 0)
		res, err := r.Run(context.Background(), []RefreshRequest{stock("AAPL")})
		require.NoError(t, err)
		assert.Zero(t, res.Recorded)
	})
}

func TestQueue(t *testing.T) {
	t.Run("delivers_to_worker", func(t *testing.T) {
		sink := &recordingSink{done: make(chan struct{})}
		done := sink.done
		r := NewRefresher([]Provider{&fakeProvider{classes: []models.AssetClass{models.AssetClassStock}}}, sink, time.Second)

		q := NewQueue(4)
		require.NoError(t, q.Start(context.Background(), 2, r.Handle))
		require.NoError(t, q.RequestRefresh(context.Background(), []RefreshRequest{stock("AAPL")}))

		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("batch was not processed")
		}
		require.NoError(t, q.Close())
		assert.Len(t, sink.quotes, 1)
	})

	t.Run("full_buffer_drops_without_blocking", func(t *testing.T) {
		q := NewQueue(1)
		require.NoError(t, q.RequestRefresh(context.Background(), []RefreshRequest{stock("A")}))
		require.NoError(t, q.RequestRefresh(context.Background(), []RefreshRequest{stock("B")}))
		assert.Len(t, q.batches, 1)
	})

	t.Run("closed_queue_rejects", func(t *testing.T) {
		q := NewQueue(1)
		require.NoError(t, q.Close())
		assert.Error(t, q.RequestRefresh(context.Background(), []RefreshRequest{stock("A")}))
		assert.Error(t, q.Start(context.Background(), 1, func(context.Context, Batch) {}))
	})

	t.Run("empty_request_is_noop", func(t *testing.T) {
		q := NewQueue(1)
		require.NoError(t, q.RequestRefresh(context.Background(), nil))
		assert.Empty(t, q.batches)
	})
}
