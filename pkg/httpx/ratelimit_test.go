package httpx_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aussiebroadwan/mcauth/pkg/httpx"
	"github.com/stretchr/testify/require"
)

type countingTransport struct {
	calls atomic.Int32
}

func (c *countingTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	c.calls.Add(1)
	rec := httptest.NewRecorder()
	rec.WriteHeader(http.StatusOK)
	return rec.Result(), nil
}

func TestHostKeyExtractor(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "https://user.auth.xboxlive.com/user/authenticate", nil)
	require.Equal(t, "user.auth.xboxlive.com", httpx.HostKeyExtractor(req))
}

func TestRateLimitTransport(t *testing.T) {
	t.Run("allows requests under limit", func(t *testing.T) {
		base := &countingTransport{}
		transport := httpx.NewRateLimitTransport(base, httpx.RateLimitConfig{
			RequestsPerWindow: 5,
			Window:            time.Second,
			Burst:             5,
		}, nil)

		for i := range 5 {
			req := httptest.NewRequest(http.MethodGet, "http://a.example/", nil)
			resp, err := transport.RoundTrip(req)
			require.NoError(t, err, "request %d should succeed", i+1)
			resp.Body.Close()
		}
		require.EqualValues(t, 5, base.calls.Load())
	})

	t.Run("blocks until the context gives up", func(t *testing.T) {
		base := &countingTransport{}
		transport := httpx.NewRateLimitTransport(base, httpx.RateLimitConfig{
			RequestsPerWindow: 1,
			Window:            time.Hour,
			Burst:             1,
		}, nil)

		req := httptest.NewRequest(http.MethodGet, "http://a.example/", nil)
		resp, err := transport.RoundTrip(req)
		require.NoError(t, err)
		resp.Body.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()

		_, err = transport.RoundTrip(req.WithContext(ctx))
		require.Error(t, err)
		require.EqualValues(t, 1, base.calls.Load())
	})

	t.Run("different hosts are tracked separately", func(t *testing.T) {
		base := &countingTransport{}
		transport := httpx.NewRateLimitTransport(base, httpx.RateLimitConfig{
			RequestsPerWindow: 1,
			Window:            time.Hour,
			Burst:             1,
		}, nil)

		for _, host := range []string{"http://a.example/", "http://b.example/"} {
			resp, err := transport.RoundTrip(httptest.NewRequest(http.MethodGet, host, nil))
			require.NoError(t, err)
			resp.Body.Close()
		}
		require.EqualValues(t, 2, base.calls.Load())
	})

	t.Run("empty key bypasses the limiter", func(t *testing.T) {
		base := &countingTransport{}
		transport := httpx.NewRateLimitTransport(base, httpx.RateLimitConfig{
			RequestsPerWindow: 1,
			Window:            time.Hour,
			Burst:             1,
		}, func(*http.Request) string { return "" })

		for range 3 {
			resp, err := transport.RoundTrip(httptest.NewRequest(http.MethodGet, "http://a.example/", nil))
			require.NoError(t, err)
			resp.Body.Close()
		}
		require.EqualValues(t, 3, base.calls.Load())
	})
}

func TestOutboundLimitProfile(t *testing.T) {
	require.Greater(t, httpx.OutboundLimit.RequestsPerWindow, 0)
	require.Greater(t, httpx.OutboundLimit.Window, time.Duration(0))
	require.Greater(t, httpx.OutboundLimit.Burst, 0)
}

func TestParseRateLimitFromEnv(t *testing.T) {
	defaultConfig := httpx.RateLimitConfig{
		RequestsPerWindow: 10,
		Window:            time.Minute,
		Burst:             10,
	}

	t.Run("NoEnvVarsUsesDefaults", func(t *testing.T) {
		config := httpx.ParseRateLimitFromEnv("TEST", defaultConfig)
		require.Equal(t, defaultConfig, config)
	})

	t.Run("OverrideAllParameters", func(t *testing.T) {
		t.Setenv("RATELIMIT_TEST_REQUESTS", "200")
		t.Setenv("RATELIMIT_TEST_WINDOW_SEC", "30")
		t.Setenv("RATELIMIT_TEST_BURST", "250")

		config := httpx.ParseRateLimitFromEnv("TEST", defaultConfig)
		require.Equal(t, 200, config.RequestsPerWindow)
		require.Equal(t, 30*time.Second, config.Window)
		require.Equal(t, 250, config.Burst)
	})

	t.Run("InvalidValuesUseDefaults", func(t *testing.T) {
		t.Setenv("RATELIMIT_TEST_REQUESTS", "invalid")
		t.Setenv("RATELIMIT_TEST_WINDOW_SEC", "-10")
		t.Setenv("RATELIMIT_TEST_BURST", "0")

		config := httpx.ParseRateLimitFromEnv("TEST", defaultConfig)
		require.Equal(t, defaultConfig, config)
	})

	t.Run("UnsetAfterTest", func(t *testing.T) {
		_, ok := os.LookupEnv("RATELIMIT_TEST_REQUESTS")
		require.False(t, ok)
	})
}
