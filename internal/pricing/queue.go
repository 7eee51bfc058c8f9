package pricing

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"folio/internal/logger"
)

// Publisher accepts refresh requests. Publishing never waits for the fetch.
type Publisher interface {
	RequestRefresh(ctx context.Context, requests []RefreshRequest) error
}

// Handler processes one published batch.
type Handler func(ctx context.Context, batch Batch)

// Batch is one published group of refresh requests.
type Batch struct {
	ID       string
	Requests []RefreshRequest
}

// Queue is an in-memory Publisher backed by a buffered channel and a fixed
// set of workers. When the buffer is full new batches are dropped with a
// warning; the resolver's poll then proceeds with whatever is stored.
type Queue struct {
	batches   chan Batch
	closeChan chan struct{}
	wg        sync.WaitGroup
	mu        sync.RWMutex
	closed    bool
	started   bool
}

// NewQueue creates a new in-memory refresh queue holding up to bufferSize pending batches.
func NewQueue(bufferSize int) *Queue {
	if bufferSize < 1 {
		bufferSize = 1
	}
	return &Queue{
		batches:   make(chan Batch, bufferSize),
		closeChan: make(chan struct{}),
	}
}

// RequestRefresh enqueues the requests as one batch without blocking.
func (q *Queue) RequestRefresh(_ context.Context, requests []RefreshRequest) error {
	if len(requests) == 0 {
		return nil
	}

	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return fmt.Errorf("refresh queue is closed")
	}

	batch := Batch{ID: uuid.New().String(), Requests: append([]RefreshRequest(nil), requests...)}
	select {
	case q.batches <- batch:
		logger.Get().Debugw("Price refresh requested", "batch_id", batch.ID, "count", len(requests))
	default:
		logger.Get().Warnw("Price refresh queue full, dropping batch", "batch_id", batch.ID, "count", len(requests))
	}
	return nil
}

// Start launches workers consuming batches until ctx is done or the queue is closed.
func (q *Queue) Start(ctx context.Context, workers int, handler Handler) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return fmt.Errorf("refresh queue is closed")
	}
	if q.started {
		return fmt.Errorf("refresh queue already started")
	}
	q.started = true

	for range max(workers, 1) {
		q.wg.Add(1)
		go q.worker(ctx, handler)
	}
	return nil
}

func (q *Queue) worker(ctx context.Context, handler Handler) {
	defer q.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-q.closeChan:
			return
		case batch := <-q.batches:
			handler(ctx, batch)
		}
	}
}

// Stop closes the queue and waits for in-flight batches to finish.
func (q *Queue) Stop(ctx context.Context) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	close(q.closeChan)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops the queue without a deadline.
func (q *Queue) Close() error {
	return q.Stop(context.Background())
}
