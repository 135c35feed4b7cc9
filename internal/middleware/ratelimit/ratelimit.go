// Package ratelimit caps write requests per caller in fixed windows. A
// caller is keyed by whatever the key function returns, typically the
// authenticated user id with the client IP as fallback.
package ratelimit

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"
)

type Config struct {
	// Limit is the number of requests allowed per window.
	Limit           int
	Window          time.Duration
	// IdleTTL drops callers that have been silent this long.
	IdleTTL         time.Duration
	CleanupInterval time.Duration
}

func DefaultConfig() Config {
	return Config{
		Limit:           60,
		Window:          time.Minute,
		IdleTTL:         10 * time.Minute,
		CleanupInterval: 5 * time.Minute,
	}
}

type window struct {
	start time.Time
	last  time.Time
	count int
}

type Limiter struct {
	cfg  Config
	now  func() time.Time
	hits atomic.Int64

	mu      sync.Mutex
	callers map[string]*window

	stop     chan struct{}
	stopOnce sync.Once
}

// NewLimiter fills zero fields from DefaultConfig and starts the sweeper.
func NewLimiter(cfg Config) *Limiter {
	def := DefaultConfig()
	if cfg.Limit <= 0 {
		cfg.Limit = def.Limit
	}
	if cfg.Window <= 0 {
		cfg.Window = def.Window
	}
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = def.IdleTTL
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = def.CleanupInterval
	}

	l := &Limiter{
		cfg:     cfg,
		now:     time.Now,
		callers: make(map[string]*window),
		stop:    make(chan struct{}),
	}
	go l.sweepLoop()
	return l
}

// Allow counts a request for key. When the window is exhausted it returns
// false and how long until the window reopens.
func (l *Limiter) Allow(key string) (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	w, ok := l.callers[key]
	if !ok || now.Sub(w.start) >= l.cfg.Window {
		l.callers[key] = &window{start: now, last: now, count: 1}
		return true, 0
	}

	w.last = now
	if w.count >= l.cfg.Limit {
		l.hits.Add(1)
		return false, w.start.Add(l.cfg.Window).Sub(now)
	}
	w.count++
	return true, 0
}

func (l *Limiter) sweepLoop() {
	ticker := time.NewTicker(l.cfg.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.sweep()
		case <-l.stop:
			return
		}
	}
}

// sweep forgets idle callers and returns how many were removed.
func (l *Limiter) sweep() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-l.cfg.IdleTTL)
	removed := 0
	for key, w := range l.callers {
		if w.last.Before(cutoff) {
			delete(l.callers, key)
			removed++
		}
	}
	return removed
}

// ActiveClients is the number of callers currently tracked.
func (l *Limiter) ActiveClients() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.callers)
}

// Hits is the number of refused requests since start.
func (l *Limiter) Hits() int64 {
	return l.hits.Load()
}

func (l *Limiter) Stop() {
	l.stopOnce.Do(func() { close(l.stop) })
}

// Middleware limits requests whose method is listed, or every request when
// no method is given. onLimit renders the refusal after Retry-After is set.
func (l *Limiter) Middleware(key func(*http.Request) string, onLimit http.HandlerFunc, methods ...string) func(http.Handler) http.Handler {
	limited := make(map[string]bool, len(methods))
	for _, m := range methods {
		limited[m] = true
	}
	if onLimit == nil {
		onLimit = func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(limited) > 0 && !limited[r.Method] {
				next.ServeHTTP(w, r)
				return
			}
			ok, retry := l.Allow(key(r))
			if !ok {
				w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(retry.Seconds()))))
				onLimit(w, r)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
