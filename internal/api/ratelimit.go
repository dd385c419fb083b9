package api

import (
	"net"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// RateLimiter holds one token bucket per client IP. Buckets idle for
// five minutes are dropped by a background sweep.
type RateLimiter struct {
	visitors sync.Map
	rps      rate.Limit
	burst    int
	log      *zap.SugaredLogger
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func NewRateLimiter(perMinute, burst int, log *zap.SugaredLogger) *RateLimiter {
	rps := rate.Inf // 0 disables limiting
	if perMinute > 0 {
		rps = rate.Limit(float64(perMinute) / 60.0)
	}
	if burst < 1 {
		burst = 1
	}
	l := &RateLimiter{
		rps:   rps,
		burst: burst,
		log:   log,
	}
	go l.sweep()
	return l
}

func (l *RateLimiter) limiterFor(ip string) *rate.Limiter {
	if v, ok := l.visitors.Load(ip); ok {
		vi := v.(*visitor)
		vi.lastSeen = time.Now()
		return vi.limiter
	}
	lim := rate.NewLimiter(l.rps, l.burst)
	l.visitors.Store(ip, &visitor{limiter: lim, lastSeen: time.Now()})
	return lim
}

func (l *RateLimiter) sweep() {
	for {
		time.Sleep(time.Minute)
		cutoff := time.Now().Add(-5 * time.Minute)
		l.visitors.Range(func(k, v any) bool {
			if v.(*visitor).lastSeen.Before(cutoff) {
				l.visitors.Delete(k)
			}
			return true
		})
	}
}

func (l *RateLimiter) Handler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		ip := clientIP(c)
		if !l.limiterFor(ip).Allow() {
			l.log.Warnw("rate limit exceeded", "ip", ip, "path", c.Path())
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{"error": "rate limit exceeded"})
		}
		return c.Next()
	}
}

func clientIP(c *fiber.Ctx) string {
	ip := c.IP()
	if ip == "" {
		return "unknown"
	}
	if host, _, err := net.SplitHostPort(ip); err == nil {
		return host
	}
	return ip
}
