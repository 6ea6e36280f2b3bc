package middlewares

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/yeremiapane/table-reservations/utils"
	"golang.org/x/time/rate"
)

const rateKeyLayout = "2006-01-02_15-04"

// RateLimiter allows rate requests per client IP and endpoint in each
// interval. With a Redis client the counters are shared between instances
// using fixed windows; without one, or when Redis fails, an in-memory
// sliding window is used.
type RateLimiter struct {
	rate     int
	interval time.Duration
	ips      map[string][]time.Time
	swept    time.Time
	mu       sync.Mutex
	redis    *redis.Client
	now      func() time.Time
}

func NewRateLimiter(requests int, interval time.Duration, rdb *redis.Client) *RateLimiter {
	if interval <= 0 {
		interval = time.Minute
	}
	return &RateLimiter{
		rate:     requests,
		interval: interval,
		ips:      make(map[string][]time.Time),
		redis:    rdb,
		now:      time.Now,
	}
}

func endpointOf(c *gin.Context) string {
	if p := c.FullPath(); p != "" {
		return p
	}
	return c.Request.URL.Path
}

// RateKey names the Redis counter for one client, endpoint and window.
func RateKey(endpoint, ip string, windowStart time.Time) string {
	return fmt.Sprintf("rateLimits:%s:%s:%s", endpoint, ip, windowStart.UTC().Format(rateKeyLayout))
}

func (rl *RateLimiter) allowRedis(ctx context.Context, key string) (bool, error) {
	var incr *redis.IntCmd
	_, err := rl.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		pipe.Expire(ctx, key, rl.interval)
		return nil
	})
	if err != nil {
		return false, err
	}
	return incr.Val() <= int64(rl.rate), nil
}

func (rl *RateLimiter) allowLocal(key string, now time.Time) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := now.Add(-rl.interval)
	if now.Sub(rl.swept) >= rl.interval {
		rl.sweep(cutoff)
		rl.swept = now
	}

	valid := make([]time.Time, 0, len(rl.ips[key])+1)
	for _, t := range rl.ips[key] {
		if t.After(cutoff) {
			valid = append(valid, t)
		}
	}

	if len(valid) >= rl.rate {
		rl.ips[key] = valid
		return false
	}
	rl.ips[key] = append(valid, now)
	return true
}

// sweep drops keys with no request after cutoff. Callers hold rl.mu.
func (rl *RateLimiter) sweep(cutoff time.Time) {
	for key, times := range rl.ips {
		if len(times) == 0 || !times[len(times)-1].After(cutoff) {
			delete(rl.ips, key)
		}
	}
}

func (rl *RateLimiter) RateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		now := rl.now()
		endpoint := endpointOf(c)
		ip := c.ClientIP()
		windowStart := now.Truncate(rl.interval)

		var allowed bool
		if rl.redis != nil {
			ok, err := rl.allowRedis(c.Request.Context(), RateKey(endpoint, ip, windowStart))
			if err != nil {
				utils.ErrorLogger.Printf("Rate limiter falling back to memory: %v", err)
				allowed = rl.allowLocal(endpoint+"|"+ip, now)
			} else {
				allowed = ok
			}
		} else {
			allowed = rl.allowLocal(endpoint+"|"+ip, now)
		}

		if !allowed {
			retry := int(math.Ceil(windowStart.Add(rl.interval).Sub(now).Seconds()))
			if retry < 1 {
				retry = 1
			}
			c.Header("Retry-After", strconv.Itoa(retry))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"status":      false,
				"message":     "rate limit exceeded",
				"retry_after": retry,
			})
			return
		}
		c.Next()
	}
}

type throttleEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

type writeThrottle struct {
	perSecond float64
	burst     int
	idle      time.Duration
	now       func() time.Time

	mu       sync.Mutex
	limiters map[string]*throttleEntry
	swept    time.Time
}

// newWriteThrottle forgets a client once its bucket would have refilled,
// which makes the evicted entry indistinguishable from a new one.
func newWriteThrottle(perSecond float64, burst int, now func() time.Time) *writeThrottle {
	idle := time.Minute
	if perSecond > 0 {
		if refill := time.Duration(float64(burst) / perSecond * float64(time.Second)); refill > idle {
			idle = refill
		}
	}
	return &writeThrottle{
		perSecond: perSecond,
		burst:     burst,
		idle:      idle,
		now:       now,
		limiters:  make(map[string]*throttleEntry),
	}
}

func (w *writeThrottle) limiterFor(ip string) *rate.Limiter {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.now()
	if now.Sub(w.swept) >= w.idle {
		for key, e := range w.limiters {
			if now.Sub(e.lastSeen) >= w.idle {
				delete(w.limiters, key)
			}
		}
		w.swept = now
	}

	e, ok := w.limiters[ip]
	if !ok {
		e = &throttleEntry{limiter: rate.NewLimiter(rate.Limit(w.perSecond), w.burst)}
		w.limiters[ip] = e
	}
	e.lastSeen = now
	return e.limiter
}

func (w *writeThrottle) handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !w.limiterFor(c.ClientIP()).AllowN(w.now(), 1) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"status":  false,
				"message": "too many write requests, slow down",
			})
			return
		}
		c.Next()
	}
}

// WriteThrottle smooths bursts of writes from one client with a token bucket.
func WriteThrottle(perSecond float64, burst int) gin.HandlerFunc {
	return newWriteThrottle(perSecond, burst, time.Now).handler()
}
