package middleware

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/a-h/respond"
	"golang.org/x/time/rate"
)

// NewIPRateLimiter limits each client IP to rps requests per second, with
// bursts of up to burst requests. Each query costs a call to the search
// service, so the limit protects the API quota.
//
// X-Forwarded-For is only read when trustProxy is set, and then only the
// right-most address, which is the one added by the proxy in front of the
// server. Earlier addresses are supplied by the client.
func NewIPRateLimiter(rps float64, burst int, trustProxy bool) *IPRateLimiter {
	return &IPRateLimiter{
		limiters:   make(map[string]*ipLimiter),
		rps:        rate.Limit(rps),
		burst:      burst,
		trustProxy: trustProxy,
		now:        time.Now,
	}
}

type IPRateLimiter struct {
	m          sync.Mutex
	limiters   map[string]*ipLimiter
	rps        rate.Limit
	burst      int
	trustProxy bool
	now        func() time.Time
}

type ipLimiter struct {
	*rate.Limiter
	lastSeen time.Time
}

func (l *IPRateLimiter) allow(ip string) bool {
	l.m.Lock()
	defer l.m.Unlock()
	now := l.now()
	lim, ok := l.limiters[ip]
	if !ok {
		lim = &ipLimiter{Limiter: rate.NewLimiter(l.rps, l.burst)}
		l.limiters[ip] = lim
	}
	lim.lastSeen = now
	return lim.AllowN(now, 1)
}

// Prune forgets clients that have not made a request since before.
func (l *IPRateLimiter) Prune(before time.Time) (removed int) {
	l.m.Lock()
	defer l.m.Unlock()
	for ip, lim := range l.limiters {
		if lim.lastSeen.Before(before) {
			delete(l.limiters, ip)
			removed++
		}
	}
	return removed
}

func (l *IPRateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !l.allow(l.clientIP(r)) {
			w.Header().Set("Retry-After", "1")
			respond.WithError(w, "rate limit exceeded", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (l *IPRateLimiter) clientIP(r *http.Request) string {
	if l.trustProxy {
		if xff := r.Header.Values("X-Forwarded-For"); len(xff) > 0 {
			last := xff[len(xff)-1]
			if i := strings.LastIndex(last, ","); i >= 0 {
				last = last[i+1:]
			}
			if ip := net.ParseIP(strings.TrimSpace(last)); ip != nil {
				return ip.String()
			}
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
