// Package coordinator serializes upstream grid fetches. ERDDAP tolerates
// roughly one request every couple of seconds per client, so every fetch
// funnels through a single queue with minimum spacing, identical in-flight
// requests are coalesced, and transient failures are retried with backoff
// behind a circuit breaker.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/sony/gobreaker"
	"golang.org/x/sync/singleflight"

	"github.com/saltline/oceangrid/internal/cache"
	"github.com/saltline/oceangrid/internal/domain"
	"github.com/saltline/oceangrid/internal/observability"
)

// Fetcher retrieves a grid from the upstream provider.
type Fetcher interface {
	FetchGrid(ctx context.Context, req domain.GridRequest) (domain.Grid, error)
}

// Result is a resolved grid plus where it came from.
type Result struct {
	Grid      domain.Grid
	Cached    bool
	CacheDate string
}

// Options tunes queueing and retry behaviour. Zero values fall back to the
// defaults below.
type Options struct {
	Concurrency int           // simultaneous upstream fetches
	MinInterval time.Duration // spacing between fetch starts
	MaxAttempts int           // total attempts per fetch, including the first
	RetryBase   time.Duration // backoff base, doubled per retry
	Clock       clockwork.Clock
}

const (
	defaultConcurrency = 1
	defaultMinInterval = 2200 * time.Millisecond
	defaultMaxAttempts = 3
	defaultRetryBase   = 2 * time.Second
)

// Coordinator owns the fetch queue and the grid cache. All grid reads go
// through Get.
type Coordinator struct {
	fetcher     Fetcher
	cache       *cache.Cache
	group       singleflight.Group
	sem         chan struct{}
	clock       clockwork.Clock
	minInterval time.Duration
	maxAttempts int
	retryBase   time.Duration
	breaker     *gobreaker.CircuitBreaker
	metrics     *observability.Metrics
	logger      *slog.Logger

	mu        sync.Mutex
	lastFetch time.Time
}

// New creates a Coordinator around fetcher and grids.
func New(fetcher Fetcher, grids *cache.Cache, opts Options, metrics *observability.Metrics, logger *slog.Logger) *Coordinator {
	if opts.Concurrency <= 0 {
		opts.Concurrency = defaultConcurrency
	}
	if opts.MinInterval <= 0 {
		opts.MinInterval = defaultMinInterval
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = defaultMaxAttempts
	}
	if opts.RetryBase < 0 {
		opts.RetryBase = defaultRetryBase
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}

	c := &Coordinator{
		fetcher:     fetcher,
		cache:       grids,
		sem:         make(chan struct{}, opts.Concurrency),
		clock:       opts.Clock,
		minInterval: opts.MinInterval,
		maxAttempts: opts.MaxAttempts,
		retryBase:   opts.RetryBase,
		metrics:     metrics,
		logger:      logger,
	}
	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "erddap",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     2 * time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		// Only transient upstream trouble counts against the breaker.
		// A 404 for an empty ocean region says nothing about upstream
		// health.
		IsSuccessful: func(err error) bool {
			return err == nil || !domain.IsTransient(err)
		},
		OnStateChange: func(_ string, from, to gobreaker.State) {
			if to == gobreaker.StateOpen {
				metrics.BreakerOpen.Set(1)
			} else {
				metrics.BreakerOpen.Set(0)
			}
			logger.Warn("upstream breaker state change", "from", from.String(), "to", to.String())
		},
	})
	return c
}

// Get resolves req to a grid, serving from cache when the entry is still
// valid and otherwise fetching through the queue. Concurrent callers asking
// for the same key share one fetch. req must be validated and snapped.
func (c *Coordinator) Get(ctx context.Context, req domain.GridRequest) (Result, error) {
	key := req.CacheKey()
	if entry, ok := c.cache.Get(ctx, key); ok {
		return Result{Grid: entry.Grid, Cached: true, CacheDate: entry.CacheDate}, nil
	}

	v, err, shared := c.group.Do(key, func() (interface{}, error) {
		// A coalesced peer may have filled the cache while this caller
		// waited on the flight lock.
		if entry, ok := c.cache.Get(ctx, key); ok {
			return Result{Grid: entry.Grid, Cached: true, CacheDate: entry.CacheDate}, nil
		}
		grid, err := c.fetch(ctx, req)
		if err != nil {
			return nil, err
		}
		c.cache.Put(ctx, key, grid)
		return Result{Grid: grid, CacheDate: domain.EffectiveCacheDate(c.clock.Now())}, nil
	})
	if shared {
		c.metrics.CoalescedRequests.Inc()
	}
	if err != nil {
		return Result{}, err
	}
	return v.(Result), nil
}

// fetch runs the attempt loop under the concurrency semaphore.
func (c *Coordinator) fetch(ctx context.Context, req domain.GridRequest) (domain.Grid, error) {
	c.metrics.QueueDepth.Inc()
	select {
	case c.sem <- struct{}{}:
		c.metrics.QueueDepth.Dec()
	case <-ctx.Done():
		c.metrics.QueueDepth.Dec()
		return domain.Grid{}, ctxErr(ctx, "waiting for fetch slot")
	}
	defer func() { <-c.sem }()

	var lastErr error
	for attempt := 0; attempt < c.maxAttempts; attempt++ {
		if attempt > 0 {
			c.metrics.FetchRetries.Inc()
			delay := c.retryBase * (1 << (attempt - 1))
			c.logger.Info("retrying upstream fetch",
				"key", req.CacheKey(), "attempt", attempt+1, "delay", delay)
			if err := c.wait(ctx, delay); err != nil {
				return domain.Grid{}, err
			}
		}
		if err := c.pace(ctx); err != nil {
			return domain.Grid{}, err
		}

		out, err := c.breaker.Execute(func() (interface{}, error) {
			return c.fetcher.FetchGrid(ctx, req)
		})
		if err == nil {
			return out.(domain.Grid), nil
		}
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return domain.Grid{}, fmt.Errorf("%w: upstream circuit open", domain.ErrUpstreamUnavailable)
		}
		if !domain.IsTransient(err) {
			return domain.Grid{}, err
		}
		lastErr = err
	}
	return domain.Grid{}, lastErr
}

// pace claims the next fetch start slot and sleeps until it arrives. The
// slot is reserved under the lock before any sleeping, so fetch starts stay
// at least minInterval apart even when several fetchers run in parallel.
func (c *Coordinator) pace(ctx context.Context) error {
	c.mu.Lock()
	now := c.clock.Now()
	slot := c.lastFetch.Add(c.minInterval)
	if slot.Before(now) {
		slot = now
	}
	c.lastFetch = slot
	c.mu.Unlock()
	return c.wait(ctx, slot.Sub(now))
}

func (c *Coordinator) wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	select {
	case <-c.clock.After(d):
		return nil
	case <-ctx.Done():
		return ctxErr(ctx, "waiting to fetch")
	}
}

// ctxErr maps a finished context onto the error taxonomy: an expired
// deadline is an upstream timeout, a caller cancellation propagates as is
// so it is neither retried nor reported as an upstream problem.
func ctxErr(ctx context.Context, during string) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s", domain.ErrTimeout, during)
	}
	return fmt.Errorf("%s: %w", during, ctx.Err())
}
