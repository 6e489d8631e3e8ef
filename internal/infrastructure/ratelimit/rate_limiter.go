package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"helpdesk/pkg/config"
)

const (
	ActionAPI         = "api"
	ActionSendMessage = "send_message"
	ActionTyping      = "typing"
)

// Limit is a token bucket shape: Rate tokens per second, Burst bucket size.
type Limit struct {
	Rate  rate.Limit
	Burst int
}

// Per returns a Limit of n events per interval with a bucket of n.
func Per(n int, interval time.Duration) Limit {
	return Limit{Rate: rate.Every(interval / time.Duration(n)), Burst: n}
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter manages token buckets keyed by caller and action.
type RateLimiter struct {
	buckets  map[string]*bucket
	limits   map[string]Limit
	fallback Limit
	mutex    sync.Mutex
}

// NewRateLimiter creates a limiter with the default action limits.
func NewRateLimiter() *RateLimiter {
	return &RateLimiter{
		buckets: make(map[string]*bucket),
		limits: map[string]Limit{
			// 60 messages per minute per conversation and IP
			ActionSendMessage: Per(60, time.Minute),
			// 60 typing signals per minute per connection
			ActionTyping: Per(60, time.Minute),
			// 300 REST requests per minute per IP
			ActionAPI: Per(300, time.Minute),
		},
		fallback: Per(20, time.Minute),
	}
}

// NewRateLimiterFromConfig creates a limiter with the configured budgets.
func NewRateLimiterFromConfig(cfg config.RateLimitConfig) *RateLimiter {
	rl := NewRateLimiter()
	if cfg.APIPerMinute > 0 {
		rl.SetLimit(ActionAPI, Per(cfg.APIPerMinute, time.Minute))
	}
	if cfg.SendPerMinute > 0 {
		rl.SetLimit(ActionSendMessage, Per(cfg.SendPerMinute, time.Minute))
	}
	if cfg.TypingPerMinute > 0 {
		rl.SetLimit(ActionTyping, Per(cfg.TypingPerMinute, time.Minute))
	}
	return rl
}

// SetLimit overrides the limit used for new buckets of action.
func (rl *RateLimiter) SetLimit(action string, limit Limit) {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()
	rl.limits[action] = limit
}

// Allow consumes a token for key/action. When the bucket is empty it returns
// false and the time until the next token.
func (rl *RateLimiter) Allow(key, action string) (bool, time.Duration) {
	now := time.Now()
	b := rl.bucket(key+":"+action, action, now)

	r := b.limiter.ReserveN(now, 1)
	if !r.OK() {
		return false, time.Second
	}
	if delay := r.DelayFrom(now); delay > 0 {
		r.CancelAt(now)
		return false, delay
	}
	return true, 0
}

func (rl *RateLimiter) bucket(id, action string, now time.Time) *bucket {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()

	b, exists := rl.buckets[id]
	if !exists {
		limit, ok := rl.limits[action]
		if !ok {
			limit = rl.fallback
		}
		b = &bucket{limiter: rate.NewLimiter(limit.Rate, limit.Burst)}
		rl.buckets[id] = b
	}
	b.lastSeen = now
	return b
}

// Forget drops every bucket held for key, typically when a connection closes.
func (rl *RateLimiter) Forget(key, action string) {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()
	delete(rl.buckets, key+":"+action)
}

// Size returns the number of live buckets.
func (rl *RateLimiter) Size() int {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()
	return len(rl.buckets)
}

// Cleanup removes buckets idle for longer than maxIdle.
func (rl *RateLimiter) Cleanup(maxIdle time.Duration) {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()

	now := time.Now()
	for key, b := range rl.buckets {
		if now.Sub(b.lastSeen) > maxIdle {
			delete(rl.buckets, key)
		}
	}
}

// StartCleanupRoutine periodically drops idle buckets until ctx is done.
func (rl *RateLimiter) StartCleanupRoutine(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(30 * time.Minute)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				rl.Cleanup(time.Hour)
			case <-ctx.Done():
				return
			}
		}
	}()
}
