package pricing

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"folio/internal/logger"
)

// Sink stores fetched quotes as current price points.
type Sink interface {
	SaveQuotes(ctx context.Context, quotes []Quote) (int, error)
}

// RunResult contains the outcome of one refresh batch.
type RunResult struct {
	Requested int
	Recorded  int
	Errors    []FetchError
	Duration  time.Duration
}

// Refresher fetches quotes from the first provider supporting each asset
// class and hands them to the sink.
type Refresher struct {
	providers []Provider
	sink      Sink
	timeout   time.Duration
}

// NewRefresher creates a refresher. timeout bounds each batch's provider calls; zero means none.
func NewRefresher(providers []Provider, sink Sink, timeout time.Duration) *Refresher {
	return &Refresher{providers: providers, sink: sink, timeout: timeout}
}

// Handle is the queue Handler. Failures are logged and never retried here.
func (r *Refresher) Handle(ctx context.Context, batch Batch) {
	res, err := r.Run(ctx, batch.Requests)
	log := logger.Get()
	if err != nil {
		log.Errorw("Price refresh failed", "batch_id", batch.ID, "error", err)
		return
	}
	for _, fe := range res.Errors {
		log.Warnw("Price fetch failed", "batch_id", batch.ID, "symbol", fe.Symbol, "error", fe.Err)
	}
	log.Infow("Price refresh completed",
		"batch_id", batch.ID,
		"requested", res.Requested,
		"recorded", res.Recorded,
		"failed", len(res.Errors),
		"duration", res.Duration,
	)
}

// Run fetches the requested instruments concurrently per provider and records the quotes.
func (r *Refresher) Run(ctx context.Context, requests []RefreshRequest) (*RunResult, error) {
	start := time.Now()
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	requests = dedupe(requests)
	result := &RunResult{Requested: len(requests)}

	groups := make([][]RefreshRequest, len(r.providers))
	for _, req := range requests {
		matched := false
		for i, p := range r.providers {
			if p.Supports(req.AssetClass) {
				groups[i] = append(groups[i], req)
				matched = true
				break
			}
		}
		if !matched {
			logger.Get().Warnw("No provider supports asset class", "symbol", req.Symbol, "asset_class", req.AssetClass)
		}
	}

	quotes := make([][]Quote, len(r.providers))
	fetchErrs := make([][]FetchError, len(r.providers))
	var g errgroup.Group
	for i, instruments := range groups {
		if len(instruments) == 0 {
			continue
		}
		g.Go(func() error {
			logger.Get().Debugw("Fetching prices", "provider", r.providers[i].Name(), "count", len(instruments))
			quotes[i], fetchErrs[i] = r.providers[i].FetchQuotes(ctx, instruments)
			return nil
		})
	}
	_ = g.Wait()

	var all []Quote
	for i := range r.providers {
		all = append(all, quotes[i]...)
		result.Errors = append(result.Errors, fetchErrs[i]...)
	}

	if len(all) > 0 {
		recorded, err := r.sink.SaveQuotes(ctx, all)
		if err != nil {
			return nil, err
		}
		result.Recorded = recorded
	}

	result.Duration = time.Since(start)
	return result, nil
}

func dedupe(requests []RefreshRequest) []RefreshRequest {
	seen := make(map[RefreshRequest]struct{}, len(requests))
	out := make([]RefreshRequest, 0, len(requests))
	for _, req := range requests {
		if _, ok := seen[req]; ok {
			continue
		}
		seen[req] = struct{}{}
		out = append(out, req)
	}
	return out
}
