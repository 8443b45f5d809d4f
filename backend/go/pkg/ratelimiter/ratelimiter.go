package ratelimiter

import (
	"fmt"
	"time"

	"IntentCode/backend/go/pkg/util"

	"golang.org/x/time/rate"
)

// RateLimiter is the interface for rate limiting.
// Allow returns true if a request from the given client is allowed.
type RateLimiter interface {
	Allow(key string) bool
}

// Config configures a KeyedTokenBucket.
type Config struct {
	Rate     float64       // tokens added per second
	Capacity int           // bucket size, the largest burst a client may send
	Clients  int           // how many clients are tracked at once
	IdleTTL  time.Duration // buckets idle for longer are forgotten; 0 keeps them until evicted
	Now      func() time.Time
}

// KeyedTokenBucket keeps one token bucket per client key.
// Buckets live in an LRU cache, so memory stays bounded when clients churn.
type KeyedTokenBucket struct {
	limit   rate.Limit
	burst   int
	now     func() time.Time
	buckets *util.LRUCache[string, *rate.Limiter]
}

// NewKeyedTokenBucket creates a new KeyedTokenBucket.
func NewKeyedTokenBucket(cfg Config) (*KeyedTokenBucket, error) {
	if cfg.Rate <= 0 || cfg.Capacity <= 0 {
		return nil, fmt.Errorf("rate and capacity must be positive, got %v and %d", cfg.Rate, cfg.Capacity)
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	buckets, err := util.NewWithConfig(util.CacheConfig[string, *rate.Limiter]{
		Capacity: cfg.Clients,
		IdleTTL:  cfg.IdleTTL,
		Now:      cfg.Now,
	})
	if err != nil {
		return nil, err
	}
	return &KeyedTokenBucket{
		limit:   rate.Limit(cfg.Rate),
		burst:   cfg.Capacity,
		now:     cfg.Now,
		buckets: buckets,
	}, nil
}

// Allow reports whether the client identified by key may proceed, consuming a token if so.
// New clients start with a full bucket.
func (k *KeyedTokenBucket) Allow(key string) bool {
	bucket := k.buckets.GetOrCreate(key, func() *rate.Limiter {
		return rate.NewLimiter(k.limit, k.burst)
	})
	return bucket.AllowN(k.now(), 1)
}

// Clients returns the number of tracked clients.
func (k *KeyedTokenBucket) Clients() int {
	return k.buckets.Len()
}
