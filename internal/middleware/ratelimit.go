package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

type visitor struct {
	count       int
	windowStart time.Time
}

// RateLimiter allows limit requests per client address in each fixed window.
type RateLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	limit    int
	window   time.Duration
	now      func() time.Time
	stop     chan struct{}
}

func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	rl := &RateLimiter{
		visitors: make(map[string]*visitor),
		limit:    limit,
		window:   window,
		now:      time.Now,
		stop:     make(chan struct{}),
	}

	// Cleanup goroutine
	go func() {
		ticker := time.NewTicker(window)
		defer ticker.Stop()
		for {
			select {
			case <-rl.stop:
				return
			case <-ticker.C:
				rl.evict()
			}
		}
	}()

	return rl
}

func (rl *RateLimiter) Stop() {
	select {
	case <-rl.stop:
	default:
		close(rl.stop)
	}
}

func (rl *RateLimiter) evict() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	for addr, v := range rl.visitors {
		if now.Sub(v.windowStart) > rl.window {
			delete(rl.visitors, addr)
		}
	}
}

// allow records a request from addr and reports whether it is within the limit,
// plus how long until the current window resets.
func (rl *RateLimiter) allow(addr string) (bool, time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	v, exists := rl.visitors[addr]
	if !exists || now.Sub(v.windowStart) > rl.window {
		rl.visitors[addr] = &visitor{count: 1, windowStart: now}
		return true, rl.window
	}

	v.count++
	return v.count <= rl.limit, rl.window - now.Sub(v.windowStart)
}

func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// RemoteAddr is already the client IP once chi's RealIP has run.
		addr := r.RemoteAddr

		ok, reset := rl.allow(addr)
		if !ok {
			logrus.WithFields(logrus.Fields{"remote_addr": addr, "path": r.URL.Path}).Warn("rate limit exceeded")
			w.Header().Set("Retry-After", strconv.Itoa(int(reset.Seconds())+1))
			writeError(w, http.StatusTooManyRequests, "RATE_LIMITED", "Too many requests. Please try again later.", r)
			return
		}

		next.ServeHTTP(w, r)
	})
}
