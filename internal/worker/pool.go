// ABOUTME: Fixed-size worker pool over one bounded submission queue
// ABOUTME: Backpressure on full queue, per-item failure isolation, graceful drain

package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/arcbot/arcbot/internal/metrics"
)

// ErrPoolClosed indicates a submission after Stop began.
var ErrPoolClosed = errors.New("worker pool closed")

// OriginSynthetic marks items injected outside the gateway (webhook, console).
const OriginSynthetic = -1

// saturationWarnAfter is how long a Submit may block before the pool logs
// sustained saturation. The submit still completes; backpressure is not an
// error condition.
const saturationWarnAfter = 5 * time.Second

// Item is one unit of dispatched work. It is created by a producer (shard
// manager, webhook) and consumed by exactly one worker.
type Item struct {
	ID         string
	Origin     int    // shard id of origin, OriginSynthetic otherwise
	Kind       string // short payload summary for logs ("MESSAGE_CREATE", "webhook")
	EnqueuedAt time.Time

	// Run processes the item. Errors are logged with the item's origin and
	// kind; they never propagate past the executor boundary.
	Run func(ctx context.Context) error
}

// NewItem builds an Item with a fresh id and enqueue timestamp.
func NewItem(origin int, kind string, run func(ctx context.Context) error) *Item {
	return &Item{
		ID:         uuid.New().String(),
		Origin:     origin,
		Kind:       kind,
		EnqueuedAt: time.Now(),
		Run:        run,
	}
}

// Pool is a fixed-size pool of executors drawing from one bounded queue.
// Producers block when the queue is full (backpressure, never drop); each
// executor processes one item at a time to completion.
type Pool struct {
	queue   chan *Item
	workers int
	logger  *slog.Logger

	wg sync.WaitGroup

	closeMu sync.RWMutex
	closed  bool
}

// NewPool creates a pool with the given concurrency and queue capacity.
func NewPool(workers, queueSize int, logger *slog.Logger) *Pool {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pool{
		queue:   make(chan *Item, queueSize),
		workers: workers,
		logger:  logger.With("component", "workers"),
	}
}

// Start spins up the executors. ctx is the processing context handed to
// every item; cancelling it does not abandon in-flight items, it only makes
// handlers observe cancellation through their own ctx checks.
func (p *Pool) Start(ctx context.Context) {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.run(ctx, i)
	}
	p.logger.Info("worker pool started", "workers", p.workers, "queue_size", cap(p.queue))
}

// Submit enqueues an item. Blocks while the queue is full; returns
// ErrPoolClosed after Stop began, or ctx.Err() if the caller gives up.
func (p *Pool) Submit(ctx context.Context, item *Item) error {
	p.closeMu.RLock()
	defer p.closeMu.RUnlock()

	if p.closed {
		return ErrPoolClosed
	}

	// Fast path before arming the saturation timer.
	select {
	case p.queue <- item:
		metrics.QueueDepth.Set(float64(len(p.queue)))
		return nil
	default:
	}

	warn := time.NewTimer(saturationWarnAfter)
	defer warn.Stop()

	for {
		select {
		case p.queue <- item:
			metrics.QueueDepth.Set(float64(len(p.queue)))
			return nil
		case <-warn.C:
			p.logger.Warn("submission queue saturated, producer blocked",
				"origin", item.Origin,
				"kind", item.Kind,
				"queue_size", cap(p.queue),
			)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Stop performs a graceful drain: no new submissions are accepted, in-flight
// and queued items finish, then the executors terminate.
func (p *Pool) Stop() {
	p.closeMu.Lock()
	if p.closed {
		p.closeMu.Unlock()
		return
	}
	p.closed = true
	close(p.queue)
	p.closeMu.Unlock()

	p.wg.Wait()
	p.logger.Info("worker pool drained")
}

// run is one executor's loop. It exits when the queue is closed and empty.
func (p *Pool) run(ctx context.Context, id int) {
	defer p.wg.Done()

	for item := range p.queue {
		metrics.QueueDepth.Set(float64(len(p.queue)))
		p.process(ctx, id, item)
	}
}

// process executes one item to completion. An error or panic is caught at
// this boundary and logged with the item's origin and payload summary; the
// executor then proceeds to the next item.
func (p *Pool) process(ctx context.Context, workerID int, item *Item) {
	waited := time.Since(item.EnqueuedAt)

	err := p.safeRun(ctx, item)
	switch {
	case err != nil:
		metrics.ItemsProcessed.WithLabelValues("error").Inc()
		p.logger.Error("work item failed",
			"worker", workerID,
			"item_id", item.ID,
			"origin", item.Origin,
			"kind", item.Kind,
			"waited", waited,
			"error", err,
		)
	default:
		metrics.ItemsProcessed.WithLabelValues("ok").Inc()
		p.logger.Debug("work item processed",
			"worker", workerID,
			"item_id", item.ID,
			"origin", item.Origin,
			"kind", item.Kind,
			"waited", waited,
		)
	}
}

func (p *Pool) safeRun(ctx context.Context, item *Item) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic: %v", rec)
		}
	}()
	return item.Run(ctx)
}
