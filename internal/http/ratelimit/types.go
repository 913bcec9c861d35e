package ratelimit

import (
	"sync"
	"time"
)

// Config holds client-side rate limiting configuration
type Config struct {
	RequestsPerSecond int `json:"requestsPerSecond"`
	MaxRetries        int `json:"maxRetries"`
	InitialBackoffMs  int `json:"initialBackoffMs"`
	MaxBackoffMs      int `json:"maxBackoffMs"`
}

// DefaultConfig returns the default rate limit configuration
func DefaultConfig() Config {
	return Config{
		RequestsPerSecond: 10,
		MaxRetries:        3,
		InitialBackoffMs:  100,
		MaxBackoffMs:      10000,
	}
}

// RateLimiter spaces outgoing requests to respect the configured rate
type RateLimiter struct {
	mu          sync.Mutex
	config      Config
	lastRequest time.Time
}

// NewRateLimiter creates a new rate limiter with the given config
func NewRateLimiter(config Config) *RateLimiter {
	return &RateLimiter{config: config}
}

// GetConfig returns the current configuration
func (r *RateLimiter) GetConfig() Config {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.config
}

// SetConfig updates the configuration
func (r *RateLimiter) SetConfig(config Config) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.config = config
}

// Throttle waits to ensure rate limits are respected.
// Call this before making a request.
func (r *RateLimiter) Throttle() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.config.RequestsPerSecond <= 0 {
		return
	}
	minInterval := time.Second / time.Duration(r.config.RequestsPerSecond)
	if elapsed := time.Since(r.lastRequest); elapsed < minInterval {
		time.Sleep(minInterval - elapsed)
	}
	r.lastRequest = time.Now()
}
