// Package ratelimit throttles API clients with a sliding one-minute window.
//
// Tracked clients live in a bounded LRU, so a burst of distinct addresses
// evicts the least recently seen ones instead of growing without limit.
package ratelimit

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

const window = time.Minute

// Config holds rate limiter configuration
type Config struct {
	RequestsPerMinute int
	// MaxClients bounds the number of addresses tracked at once.
	MaxClients int
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		RequestsPerMinute: 120,
		MaxClients:        10000,
	}
}

// Limiter admits at most RequestsPerMinute requests per client in any
// trailing minute.
type Limiter struct {
	mu      sync.Mutex
	clients *lru.Cache[string, *hits]
	limit   int
	now     func() time.Time
}

// hits holds a client's request times inside the window, oldest first.
type hits struct {
	at []time.Time
}

// NewLimiter creates a new rate limiter
func NewLimiter(config Config) *Limiter {
	def := DefaultConfig()
	if config.RequestsPerMinute <= 0 {
		config.RequestsPerMinute = def.RequestsPerMinute
	}
	if config.MaxClients <= 0 {
		config.MaxClients = def.MaxClients
	}
	// lru.New only fails for a non-positive size.
	clients, _ := lru.New[string, *hits](config.MaxClients)
	return &Limiter{
		clients: clients,
		limit:   config.RequestsPerMinute,
		now:     time.Now,
	}
}

// Allow records a request from key. When the client is over the limit it
// returns false and how long until the oldest request leaves the window.
func (rl *Limiter) Allow(key string) (bool, time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	h, ok := rl.clients.Get(key)
	if !ok {
		h = &hits{}
		rl.clients.Add(key, h)
	}

	cutoff := now.Add(-window)
	keep := 0
	for keep < len(h.at) && !h.at[keep].After(cutoff) {
		keep++
	}
	h.at = h.at[keep:]

	if len(h.at) >= rl.limit {
		return false, h.at[0].Add(window).Sub(now)
	}
	h.at = append(h.at, now)
	return true, 0
}

// ActiveClients returns the number of currently tracked clients
func (rl *Limiter) ActiveClients() int {
	return rl.clients.Len()
}

// Stop drops every tracked client.
func (rl *Limiter) Stop() {
	rl.clients.Purge()
}

// Middleware rejects requests over the limit with 429 and a Retry-After
// header in whole seconds. onLimit writes the body; nil falls back to
// plain text.
func (rl *Limiter) Middleware(extractIP func(*http.Request) string, onLimit func(http.ResponseWriter, *http.Request)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			allowed, wait := rl.Allow(extractIP(r))
			if !allowed {
				w.Header().Set("Retry-After", strconv.Itoa(retrySeconds(wait)))
				if onLimit != nil {
					onLimit(w, r)
				} else {
					http.Error(w, "Rate limit exceeded. Please try again later.", http.StatusTooManyRequests)
				}
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func retrySeconds(d time.Duration) int {
	s := int(math.Ceil(d.Seconds()))
	if s < 1 {
		return 1
	}
	return s
}
