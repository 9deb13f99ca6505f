package middleware

import (
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/time/rate"
)

const (
	limiterIdleTTL    = 30 * time.Minute
	limiterSweepEvery = 5 * time.Minute
)

type ipLimiter struct {
	limiter *rate.Limiter
	last    time.Time
}

// IPLimiter keeps one token bucket per client IP.
type IPLimiter struct {
	rps   rate.Limit
	burst int

	mu       sync.Mutex
	limiters map[string]*ipLimiter
	stop     chan struct{}
	stopOnce sync.Once
}

// NewIPLimiter allows rps requests per second with the given burst per IP.
// Idle entries are swept in the background until Close is called.
func NewIPLimiter(rps float64, burst int) *IPLimiter {
	l := &IPLimiter{
		rps:      rate.Limit(rps),
		burst:    burst,
		limiters: make(map[string]*ipLimiter),
		stop:     make(chan struct{}),
	}
	go l.sweep()
	return l
}

// Allow reports whether ip may make another request now.
func (l *IPLimiter) Allow(ip string) bool {
	l.mu.Lock()
	il, ok := l.limiters[ip]
	if !ok {
		il = &ipLimiter{limiter: rate.NewLimiter(l.rps, l.burst)}
		l.limiters[ip] = il
	}
	il.last = time.Now()
	l.mu.Unlock()
	return il.limiter.Allow()
}

func (l *IPLimiter) sweep() {
	t := time.NewTicker(limiterSweepEvery)
	defer t.Stop()
	for {
		select {
		case <-l.stop:
			return
		case now := <-t.C:
			l.mu.Lock()
			for ip, il := range l.limiters {
				if now.Sub(il.last) > limiterIdleTTL {
					delete(l.limiters, ip)
				}
			}
			l.mu.Unlock()
		}
	}
}

// Close stops the background sweep.
func (l *IPLimiter) Close() {
	l.stopOnce.Do(func() { close(l.stop) })
}

// RateLimit throttles by c.IP(). Requests over the limit are answered by
// onLimited instead of reaching the next handler.
func RateLimit(l *IPLimiter, onLimited fiber.Handler) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if l.Allow(c.IP()) {
			return c.Next()
		}
		return onLimited(c)
	}
}
