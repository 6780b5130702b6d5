// Package ratelimit is a small failed-attempt limiter with an injected
// clock and counter store, so it has no hidden global state and is testable
// without sleeping.
package ratelimit

import "time"

type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock returns the wall clock.
func SystemClock() Clock { return systemClock{} }

// Attempt is the per-key failure record.
type Attempt struct {
	Count int
	Last  time.Time
}

// CounterStore holds attempt records. Implementations may evict entries at
// any time; eviction only ever relaxes the limit.
type CounterStore interface {
	Get(key string) (Attempt, bool)
	Set(key string, a Attempt)
	Delete(key string)
}

// Limiter denies a key after maxAttempts failures until lockout has passed
// since the last failure. Successes reset the key.
type Limiter struct {
	store       CounterStore
	clock       Clock
	maxAttempts int
	lockout     time.Duration
}

func New(store CounterStore, clock Clock, maxAttempts int, lockout time.Duration) *Limiter {
	return &Limiter{
		store:       store,
		clock:       clock,
		maxAttempts: maxAttempts,
		lockout:     lockout,
	}
}

// Allow reports whether key may proceed. When denied, the second return is
// how long until the lockout lifts.
func (l *Limiter) Allow(key string) (bool, time.Duration) {
	a, ok := l.store.Get(key)
	if !ok {
		return true, 0
	}

	now := l.clock.Now()
	elapsed := now.Sub(a.Last)
	if elapsed > l.lockout {
		l.store.Delete(key)
		return true, 0
	}

	if a.Count >= l.maxAttempts {
		return false, l.lockout - elapsed
	}
	return true, 0
}

// RecordFailure counts a failed attempt against key.
func (l *Limiter) RecordFailure(key string) {
	a, _ := l.store.Get(key)
	a.Count++
	a.Last = l.clock.Now()
	l.store.Set(key, a)
}

// Reset clears key after a success.
func (l *Limiter) Reset(key string) {
	l.store.Delete(key)
}
