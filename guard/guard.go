// Package guard admits or drops inbound messages before they reach the
// pipeline: per-user rate limiting and duplicate-delivery suppression.
//
// Information Hiding:
// - Sliding-window bookkeeping hidden behind Allow
// - Dedup TTL and size eviction hidden behind Seen/Mark

package guard

import (
	"sort"
	"sync"
	"time"
)

const (
	DefaultDedupTTL        = 60 * time.Second
	DefaultDedupMaxEntries = 5000
)

// RateLimiter admits up to maxEvents events per user inside a sliding
// window. Safe for concurrent use.
type RateLimiter struct {
	mu        sync.Mutex
	window    time.Duration
	maxEvents int
	events    map[string][]time.Time
	now       func() time.Time
}

// NewRateLimiter creates a limiter with the given window and event cap.
func NewRateLimiter(window time.Duration, maxEvents int) *RateLimiter {
	return &RateLimiter{
		window:    window,
		maxEvents: maxEvents,
		events:    make(map[string][]time.Time),
		now:       time.Now,
	}
}

// Allow reports whether the user may emit another event now, recording
// it if admitted. Expired timestamps are pruned lazily on each check.
func (r *RateLimiter) Allow(userID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	cutoff := now.Add(-r.window)

	queue := r.events[userID]
	kept := queue[:0]
	for _, ts := range queue {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	if len(kept) >= r.maxEvents {
		r.events[userID] = kept
		return false
	}
	r.events[userID] = append(kept, now)
	return true
}

// Deduplicator suppresses platform-level duplicate delivery of the same
// message id. Entries expire after the TTL; the map is size-bounded by
// dropping the oldest entries. Safe for concurrent use.
type Deduplicator struct {
	mu         sync.Mutex
	ttl        time.Duration
	maxEntries int
	store      map[string]time.Time
	now        func() time.Time
}

// NewDeduplicator creates a deduplicator. Non-positive arguments fall
// back to the defaults.
func NewDeduplicator(ttl time.Duration, maxEntries int) *Deduplicator {
	if ttl <= 0 {
		ttl = DefaultDedupTTL
	}
	if maxEntries <= 0 {
		maxEntries = DefaultDedupMaxEntries
	}
	return &Deduplicator{
		ttl:        ttl,
		maxEntries: maxEntries,
		store:      make(map[string]time.Time),
		now:        time.Now,
	}
}

// Seen reports whether the message id was already marked. It updates
// nothing besides eviction.
func (d *Deduplicator) Seen(messageID string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.evict(d.now())
	_, ok := d.store[messageID]
	return ok
}

// Mark records the message id as processed.
func (d *Deduplicator) Mark(messageID string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	d.store[messageID] = now
	d.evict(now)
}

// evict drops expired entries, then the oldest entries while above the
// size bound. Caller holds the lock.
func (d *Deduplicator) evict(now time.Time) {
	for id, ts := range d.store {
		if now.Sub(ts) > d.ttl {
			delete(d.store, id)
		}
	}
	if len(d.store) <= d.maxEntries {
		return
	}
	type entry struct {
		id string
		ts time.Time
	}
	all := make([]entry, 0, len(d.store))
	for id, ts := range d.store {
		all = append(all, entry{id, ts})
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ts.Before(all[j].ts) })
	for _, e := range all[:len(all)-d.maxEntries] {
		delete(d.store, e.id)
	}
}
