package middleware

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/hyrelay/hyrelay/internal/api/helpers"
	"github.com/hyrelay/hyrelay/internal/domain"
	"golang.org/x/time/rate"
)

// IPRateLimiter keeps one token bucket per client address. This is the coarse
// outer guard for unauthenticated endpoints; per-channel throughput is
// enforced separately inside the send pipeline.
type IPRateLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	rps      rate.Limit
	burst    int
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func NewIPRateLimiter(rps rate.Limit, burst int) *IPRateLimiter {
	l := &IPRateLimiter{
		visitors: make(map[string]*visitor),
		rps:      rps,
		burst:    burst,
	}
	go l.cleanupLoop()
	return l
}

func (l *IPRateLimiter) get(ip string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	v, ok := l.visitors[ip]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(l.rps, l.burst)}
		l.visitors[ip] = v
	}
	v.lastSeen = time.Now()
	return v.limiter
}

func (l *IPRateLimiter) cleanupLoop() {
	for range time.Tick(5 * time.Minute) {
		l.mu.Lock()
		for ip, v := range l.visitors {
			if time.Since(v.lastSeen) > 10*time.Minute {
				delete(l.visitors, ip)
			}
		}
		l.mu.Unlock()
	}
}

// Middleware rejects requests over the per-IP budget.
func (l *IPRateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := helpers.GetRealIP(r)
		if !l.get(ip).Allow() {
			slog.Warn("ip rate limit exceeded", "ip", ip, "path", r.URL.Path)
			helpers.RespondError(w, r, domain.E(domain.CodeRateLimited, "too many requests"))
			return
		}
		next.ServeHTTP(w, r)
	})
}
