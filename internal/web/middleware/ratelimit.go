package middleware

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"github.com/rehanbawakhan/vdetection/internal/metrics"
)

const defaultRateLimitMessage = "Too many requests, please try again later."

// RateLimiter allows limit requests per window for each client IP, as a
// token bucket that refills continuously. Idle clients are forgotten after
// one window.
type RateLimiter struct {
	name    string
	limit   int
	window  time.Duration
	message string
	metrics *metrics.Metrics

	mu      sync.Mutex
	clients *cache.Cache
	now     func() time.Time
}

// NewRateLimiter creates a limiter. An empty message uses a generic text.
func NewRateLimiter(name string, limit int, window time.Duration, message string) *RateLimiter {
	if message == "" {
		message = defaultRateLimitMessage
	}
	return &RateLimiter{
		name:    name,
		limit:   limit,
		window:  window,
		message: message,
		clients: cache.New(window, 2*window),
		now:     time.Now,
	}
}

// WithMetrics counts rejected requests.
func (rl *RateLimiter) WithMetrics(m *metrics.Metrics) *RateLimiter {
	rl.metrics = m
	return rl
}

// Handler applies the limiter. It sets RateLimit-Limit and RateLimit-Remaining
// on every response and Retry-After on 429.
func (rl *RateLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if rl.limit <= 0 || rl.window <= 0 {
			next.ServeHTTP(w, r)
			return
		}

		now := rl.now()
		lim := rl.limiter(clientIP(r))
		allowed := lim.AllowN(now, 1)
		remaining := max(int(math.Floor(lim.TokensAt(now))), 0)

		w.Header().Set("RateLimit-Limit", strconv.Itoa(rl.limit))
		w.Header().Set("RateLimit-Remaining", strconv.Itoa(remaining))

		if !allowed {
			retry := time.Duration(float64(rl.window) / float64(rl.limit))
			w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(retry.Seconds()))))
			rl.metrics.RecordRateLimited(rl.name)
			writeError(w, http.StatusTooManyRequests, rl.message)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (rl *RateLimiter) limiter(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if v, ok := rl.clients.Get(key); ok {
		lim := v.(*rate.Limiter)
		rl.clients.SetDefault(key, lim)
		return lim
	}
	every := rate.Every(rl.window / time.Duration(rl.limit))
	lim := rate.NewLimiter(every, rl.limit)
	rl.clients.SetDefault(key, lim)
	return lim
}

// clientIP strips the port from RemoteAddr; chi's RealIP has already
// applied X-Forwarded-For / X-Real-IP.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
