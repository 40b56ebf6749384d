// Package ratelimit enforces a per-token sliding-window request limit.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"
)

const (
	// MaxRequests is the number of requests a token may make per Window.
	MaxRequests = 5
	// Window is the rolling period over which requests are counted.
	Window = 60 * time.Second
)

// Store maps a token to the timestamps of its accepted requests, oldest
// first. Implementations need not prune; the Limiter does that on access.
type Store interface {
	Hits(ctx context.Context, token string) ([]time.Time, error)
	SetHits(ctx context.Context, token string, hits []time.Time) error
}

// Limiter is a sliding-window limiter over a Store.
type Limiter struct {
	store  Store
	max    int
	window time.Duration
	now    func() time.Time

	// Per-token locks serialize read-modify-write within this process.
	mu    sync.Mutex
	locks map[string]*tokenLock
}

type tokenLock struct {
	mu   sync.Mutex
	refs int
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

// WithLimit overrides the request count and window.
func WithLimit(max int, window time.Duration) Option {
	return func(l *Limiter) {
		l.max = max
		l.window = window
	}
}

// New creates a Limiter allowing MaxRequests per Window.
func New(store Store, opts ...Option) *Limiter {
	l := &Limiter{
		store:  store,
		max:    MaxRequests,
		window: Window,
		now:    time.Now,
		locks:  make(map[string]*tokenLock),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Allow records a request for token and reports whether it is within the
// limit. Rejected requests are not recorded. Timestamps older than the
// window are dropped for this token only.
func (l *Limiter) Allow(ctx context.Context, token string) (bool, error) {
	unlock := l.lock(token)
	defer unlock()

	now := l.now()
	hits, err := l.store.Hits(ctx, token)
	if err != nil {
		return false, fmt.Errorf("failed to load rate limit state: %w", err)
	}

	live := prune(hits, now.Add(-l.window))
	allowed := len(live) < l.max
	if allowed {
		live = append(live, now)
	} else if len(live) == len(hits) {
		return false, nil
	}

	if err := l.store.SetHits(ctx, token, live); err != nil {
		return false, fmt.Errorf("failed to save rate limit state: %w", err)
	}
	return allowed, nil
}

// lock takes the lock of token. Entries are dropped once no caller holds
// or waits on them.
func (l *Limiter) lock(token string) func() {
	l.mu.Lock()
	tl, ok := l.locks[token]
	if !ok {
		tl = &tokenLock{}
		l.locks[token] = tl
	}
	tl.refs++
	l.mu.Unlock()

	tl.mu.Lock()
	return func() {
		tl.mu.Unlock()
		l.mu.Lock()
		tl.refs--
		if tl.refs == 0 {
			delete(l.locks, token)
		}
		l.mu.Unlock()
	}
}

// prune keeps the hits strictly after cutoff.
func prune(hits []time.Time, cutoff time.Time) []time.Time {
	live := make([]time.Time, 0, len(hits)+1)
	for _, t := range hits {
		if t.After(cutoff) {
			live = append(live, t)
		}
	}
	return live
}
