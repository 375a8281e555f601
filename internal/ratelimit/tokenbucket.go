// Package ratelimit implements per-remote-address admission control for the
// proxy's accept loop: a token bucket per source IP bounds how fast one
// address can open new connections. It is resource-exhaustion protection,
// not identity-based access control — it never inspects who a client claims
// to be, only how often a given address shows up.
//
// Adapted from an HTTP-request-rate limiter
// (internal/middleware/ratelimit.go) which keyed buckets off
// X-Forwarded-For/RemoteAddr at the net/http layer; there is no HTTP request
// object yet at connection-admission time, so this operates on the dialed
// net.Conn's remote address instead.
package ratelimit

import (
	"sync"
	"time"
)

// tokenBucket allows burst traffic up to its capacity while refilling at a
// steady rate, preventing one address from monopolizing the accept loop.
type tokenBucket struct {
	mu         sync.Mutex
	capacity   int
	tokens     int
	refillRate int // tokens added per second
	lastRefill time.Time
}

// newTokenBucket creates a token bucket with the given capacity and refill
// rate, starting full so the first burst is admitted immediately.
// Time Complexity: O(1) - constant time initialisation.
// Space Complexity: O(1) - fixed size structure.
func newTokenBucket(capacity, refillRate int) *tokenBucket {
	return &tokenBucket{
		capacity:   capacity,
		tokens:     capacity,
		refillRate: refillRate,
		lastRefill: time.Now(),
	}
}

// tryConsume attempts to consume one token, refilling first based on
// elapsed time since the last refill.
// Time Complexity: O(1) - constant time arithmetic and a mutex acquisition.
// Space Complexity: O(1) - no additional allocations.
func (b *tokenBucket) tryConsume() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.refillLocked()
	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

// refillLocked adds tokens earned since the last refill, capped at the
// bucket's capacity. The caller must already hold mu.
// Time Complexity: O(1) - simple arithmetic operations.
// Space Complexity: O(1) - no additional allocations.
func (b *tokenBucket) refillLocked() {
	now := time.Now()
	elapsed := now.Sub(b.lastRefill)
	add := int(elapsed.Seconds() * float64(b.refillRate))
	if add <= 0 {
		return
	}
	b.tokens += add
	if b.tokens > b.capacity {
		b.tokens = b.capacity
	}
	b.lastRefill = now
}

// Limiter tracks one token bucket per remote address, created lazily on
// first use.
type Limiter struct {
	mu         sync.RWMutex
	buckets    map[string]*tokenBucket
	capacity   int
	refillRate int
}

// New creates a Limiter allowing burstConnections in a row per address, then
// refillPerSecond new connections per second thereafter.
// Time Complexity: O(1) - constant time initialisation.
// Space Complexity: O(1) initial, grows with unique remote addresses.
func New(burstConnections, refillPerSecond int) *Limiter {
	return &Limiter{
		buckets:    make(map[string]*tokenBucket),
		capacity:   burstConnections,
		refillRate: refillPerSecond,
	}
}

// Allow reports whether a new connection from addr may proceed, consuming a
// token if so.
// Time Complexity: O(1) - hash map lookup plus a constant-time bucket check.
// Space Complexity: O(1) amortized - one-time allocation per new address.
func (l *Limiter) Allow(addr string) bool {
	return l.bucketFor(addr).tryConsume()
}

// bucketFor retrieves or lazily creates the token bucket for addr, using a
// read lock for the common case and double-checked locking to create a
// bucket only once under concurrent first-seen access.
// Time Complexity: O(1) - hash map lookup.
// Space Complexity: O(1) per new remote address.
func (l *Limiter) bucketFor(addr string) *tokenBucket {
	l.mu.RLock()
	b, ok := l.buckets[addr]
	l.mu.RUnlock()
	if ok {
		return b
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if b, ok := l.buckets[addr]; ok {
		return b
	}
	b = newTokenBucket(l.capacity, l.refillRate)
	l.buckets[addr] = b
	return b
}
