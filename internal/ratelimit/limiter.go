package ratelimit

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	errs "github.com/ls5986/habexa-backend/internal/pkg/errors"
	"github.com/ls5986/habexa-backend/internal/platform/logger"
)

// Limiter throttles one (provider, endpoint) pair: a token bucket for request
// rate, a semaphore for max in-flight requests, and a bounded wait queue so
// an extreme backlog rejects fast instead of growing without bound.
type Limiter struct {
	name    string
	log     *logger.Logger
	bucket  *rate.Limiter
	sem     *semaphore.Weighted
	waiters chan struct{}
}

func New(name string, rps float64, burst, maxInFlight, maxQueueDepth int, baseLog *logger.Logger) *Limiter {
	if burst < 1 {
		burst = 1
	}
	if maxInFlight < 1 {
		maxInFlight = 1
	}
	if maxQueueDepth < 1 {
		maxQueueDepth = 1
	}
	return &Limiter{
		name:    name,
		log:     baseLog.With("limiter", name),
		bucket:  rate.NewLimiter(rate.Limit(rps), burst),
		sem:     semaphore.NewWeighted(int64(maxInFlight)),
		waiters: make(chan struct{}, maxQueueDepth),
	}
}

// Acquire blocks until a request slot is available, returning a release
// function the caller must invoke after the response (or timeout). When the
// wait queue is already full it fails immediately with ErrThrottled.
func (l *Limiter) Acquire(ctx context.Context) (func(), error) {
	select {
	case l.waiters <- struct{}{}:
	default:
		l.log.Warn("Wait queue full, rejecting caller")
		return nil, fmt.Errorf("%s: %w", l.name, errs.ErrThrottled)
	}
	// The queue slot is held only while waiting; in-flight work is bounded
	// by the semaphore.
	defer func() { <-l.waiters }()

	if err := l.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	if err := l.bucket.Wait(ctx); err != nil {
		l.sem.Release(1)
		return nil, err
	}

	var once sync.Once
	return func() {
		once.Do(func() { l.sem.Release(1) })
	}, nil
}

// Registry hands out one shared Limiter per (provider, endpoint). Shared
// across concurrent runs so quota cannot be double-spent.
type Registry struct {
	mu       sync.Mutex
	log      *logger.Logger
	limiters map[string]*Limiter
}

func NewRegistry(baseLog *logger.Logger) *Registry {
	return &Registry{
		log:      baseLog,
		limiters: make(map[string]*Limiter),
	}
}

func (r *Registry) Get(provider, endpoint string, rps float64, burst, maxInFlight, maxQueueDepth int) *Limiter {
	key := provider + ":" + endpoint
	r.mu.Lock()
	defer r.mu.Unlock()
	if l, ok := r.limiters[key]; ok {
		return l
	}
	l := New(key, rps, burst, maxInFlight, maxQueueDepth, r.log)
	r.limiters[key] = l
	return l
}
