package httpx

import (
	"fmt"
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/aussiebroadwan/mcauth/pkg/slogx"
	"golang.org/x/time/rate"
)

// RateLimitConfig defines the rate limiting parameters.
type RateLimitConfig struct {
	// RequestsPerWindow is the number of requests allowed in the time window
	RequestsPerWindow int
	// Window is the time window for rate limiting
	Window time.Duration
	// Burst allows for temporary bursts above the rate limit
	Burst int
}

// OutboundLimit caps requests to any single authority host. The device code
// poll never gets near this; it guards against a misbehaving retry loop
// hammering the identity provider.
// Override with: RATELIMIT_OUTBOUND_REQUESTS, RATELIMIT_OUTBOUND_WINDOW_SEC, RATELIMIT_OUTBOUND_BURST
var OutboundLimit = RateLimitConfig{
	RequestsPerWindow: 30,
	Window:            time.Minute,
	Burst:             10,
}

// ParseRateLimitFromEnv reads rate limit configuration from environment variables.
// Environment variables follow the pattern: RATELIMIT_{prefix}_{field}
// For example: RATELIMIT_OUTBOUND_REQUESTS, RATELIMIT_OUTBOUND_WINDOW_SEC, RATELIMIT_OUTBOUND_BURST
func ParseRateLimitFromEnv(prefix string, defaultConfig RateLimitConfig) RateLimitConfig {
	config := defaultConfig

	if val := os.Getenv("RATELIMIT_" + prefix + "_REQUESTS"); val != "" {
		if requests, err := strconv.Atoi(val); err == nil && requests > 0 {
			config.RequestsPerWindow = requests
		}
	}

	if val := os.Getenv("RATELIMIT_" + prefix + "_WINDOW_SEC"); val != "" {
		if windowSec, err := strconv.Atoi(val); err == nil && windowSec > 0 {
			config.Window = time.Duration(windowSec) * time.Second
		}
	}

	if val := os.Getenv("RATELIMIT_" + prefix + "_BURST"); val != "" {
		if burst, err := strconv.Atoi(val); err == nil && burst > 0 {
			config.Burst = burst
		}
	}

	return config
}

// KeyExtractor picks the bucket an outbound request is counted against.
type KeyExtractor func(*http.Request) string

// HostKeyExtractor buckets requests by target host.
func HostKeyExtractor(r *http.Request) string {
	return r.URL.Host
}

// rateLimiter manages rate limiters for different keys
type rateLimiter struct {
	limiters sync.Map // map[string]*rate.Limiter
	rate     rate.Limit
	burst    int
}

func (rl *rateLimiter) getLimiter(key string) *rate.Limiter {
	if limiter, ok := rl.limiters.Load(key); ok {
		return limiter.(*rate.Limiter)
	}

	limiter := rate.NewLimiter(rl.rate, rl.burst)
	actual, _ := rl.limiters.LoadOrStore(key, limiter)
	return actual.(*rate.Limiter)
}

// RateLimitTransport delays outbound requests that would exceed the
// configured rate. Waiting honours the request context, so a cancelled
// login stops waiting immediately.
type RateLimitTransport struct {
	base   http.RoundTripper
	config RateLimitConfig
	key    KeyExtractor
	rl     *rateLimiter
}

// NewRateLimitTransport wraps base (http.DefaultTransport when nil).
func NewRateLimitTransport(base http.RoundTripper, config RateLimitConfig, key KeyExtractor) *RateLimitTransport {
	if base == nil {
		base = http.DefaultTransport
	}
	if key == nil {
		key = HostKeyExtractor
	}

	ratePerSecond := float64(config.RequestsPerWindow) / config.Window.Seconds()

	return &RateLimitTransport{
		base:   base,
		config: config,
		key:    key,
		rl: &rateLimiter{
			rate:  rate.Limit(ratePerSecond),
			burst: config.Burst,
		},
	}
}

func (t *RateLimitTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	ctx := r.Context()

	key := t.key(r)
	if key == "" {
		return t.base.RoundTrip(r)
	}

	limiter := t.rl.getLimiter(key)
	if !limiter.Allow() {
		slogx.FromContext(ctx).Warn("outbound rate limit reached, delaying request",
			"key", key,
			"limit", t.config.RequestsPerWindow,
			"window", t.config.Window.String(),
		)

		if err := limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("httpx: rate limit wait: %w", err)
		}
	}

	return t.base.RoundTrip(r)
}
