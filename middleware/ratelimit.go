package middleware

import (
	"net"
	"net/http"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"golang.org/x/time/rate"
)

type RateLimiter interface {
	Consume(key string) bool
}

type tokenBucketRateLimiter struct {
	limiterByKey    *ttlcache.Cache[string, *rate.Limiter]
	refillPerSecond int
	burstSize       int
}

// NewTokenBucketRateLimiter keeps one token bucket per key, evicted after
// 30 minutes without use. The returned func stops the eviction loop.
func NewTokenBucketRateLimiter(refillPerSecond, burstSize int) (RateLimiter, func()) {
	cache := ttlcache.New[string, *rate.Limiter](
		ttlcache.WithTTL[string, *rate.Limiter](30 * time.Minute),
	)
	go cache.Start()

	return &tokenBucketRateLimiter{
		limiterByKey:    cache,
		refillPerSecond: refillPerSecond,
		burstSize:       burstSize,
	}, cache.Stop
}

func (l *tokenBucketRateLimiter) Consume(key string) bool {
	limiter, _ := l.limiterByKey.GetOrSet(key, rate.NewLimiter(rate.Limit(l.refillPerSecond), l.burstSize))
	return limiter.Value().Allow()
}

func IPKeyFunc(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return "ip: " + host
}

// RateLimit answers 429 once the caller's bucket is empty.
func RateLimit(limiter RateLimiter, keyFunc func(r *http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Consume(keyFunc(r)) {
				w.Header().Set("Retry-After", "1")
				http.Error(w, "Too Many Requests", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
