package ratelimit

import (
	"sync"
	"time"
)

// Limiter is a token bucket refilled at a fixed rate per second.
type Limiter struct {
	rate       float64
	burst      int
	tokens     float64
	lastUpdate time.Time
	mu         sync.Mutex
}

func NewLimiter(rate float64, burst int) *Limiter {
	return &Limiter{
		rate:       rate,
		burst:      burst,
		tokens:     float64(burst),
		lastUpdate: time.Now(),
	}
}

func (l *Limiter) Allow() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	elapsed := now.Sub(l.lastUpdate).Seconds()
	l.lastUpdate = now

	l.tokens += elapsed * l.rate
	if l.tokens > float64(l.burst) {
		l.tokens = float64(l.burst)
	}

	if l.tokens >= 1 {
		l.tokens--
		return true
	}

	return false
}

// KeyedLimiters holds one limiter per key. Used per websocket client to
// contain broadcast floods and per remote address to throttle the
// autocomplete endpoint.
type KeyedLimiters struct {
	limiters map[string]*Limiter
	rate     float64
	burst    int
	mu       sync.Mutex
}

func NewKeyedLimiters(rate float64, burst int) *KeyedLimiters {
	return &KeyedLimiters{
		limiters: make(map[string]*Limiter),
		rate:     rate,
		burst:    burst,
	}
}

// Allow checks the bucket for key, creating it on first use. The map is
// reset wholesale once it grows past a bound; losing a few buckets just
// briefly refills them.
func (k *KeyedLimiters) Allow(key string) bool {
	k.mu.Lock()
	if len(k.limiters) > 10000 {
		k.limiters = make(map[string]*Limiter)
	}
	limiter, ok := k.limiters[key]
	if !ok {
		limiter = NewLimiter(k.rate, k.burst)
		k.limiters[key] = limiter
	}
	k.mu.Unlock()

	return limiter.Allow()
}
