package httpx

import (
	"io"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

// Half a token per second keeps the float arithmetic exact.
var fourPerEight = RateLimitConfig{RequestsPerWindow: 4, Window: 8 * time.Second, Burst: 4}

func TestLimiterSetTake(t *testing.T) {
	clock := newFakeClock()
	s := newLimiterSet(fourPerEight, clock.Now)

	for i := range 4 {
		ok, _ := s.take("a")
		require.True(t, ok, "request %d", i+1)
	}

	ok, wait := s.take("a")
	require.False(t, ok)
	require.Equal(t, 2*time.Second, wait)

	// A rejected request spends nothing, so the wait does not grow.
	_, again := s.take("a")
	require.Equal(t, wait, again)

	ok, _ = s.take("b")
	require.True(t, ok, "keys have separate buckets")

	clock.Advance(2 * time.Second)
	ok, _ = s.take("a")
	require.True(t, ok, "one token refilled")
	ok, _ = s.take("a")
	require.False(t, ok)
}

func TestLimiterSetSweepsIdleKeys(t *testing.T) {
	clock := newFakeClock()
	s := newLimiterSet(fourPerEight, clock.Now)

	s.take("idle")
	clock.Advance(30 * time.Second)
	s.take("busy")
	require.Equal(t, 2, s.size())

	clock.Advance(45 * time.Second)
	s.take("busy")
	require.Equal(t, 1, s.size(), "idle key dropped after a full refill")

	// The dropped key starts again with a full bucket.
	for range 4 {
		ok, _ := s.take("idle")
		require.True(t, ok)
	}
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRateLimitMiddlewareRejects(t *testing.T) {
	clock := newFakeClock()
	mux := http.NewServeMux()
	mux.Handle("POST /auth/login-password", newLimiterSet(fourPerEight, clock.Now).middleware(IPKeyExtractor)(okHandler()))

	send := func() *httptest.ResponseRecorder {
		r := httptest.NewRequest(http.MethodPost, "/auth/login-password", nil)
		r.RemoteAddr = "203.0.113.7:5000"
		w := httptest.NewRecorder()
		mux.ServeHTTP(w, r)
		return w
	}

	for range 4 {
		require.Equal(t, http.StatusOK, send().Code)
	}

	before := testutil.ToFloat64(rateLimited.WithLabelValues("POST /auth/login-password"))
	w := send()
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	require.Equal(t, "2", w.Header().Get("Retry-After"))
	require.Equal(t, "4", w.Header().Get("X-RateLimit-Limit"))
	require.Equal(t, "8s", w.Header().Get("X-RateLimit-Window"))
	require.Equal(t, "no-store", w.Header().Get("Cache-Control"))
	require.Contains(t, w.Body.String(), `"error":"rate_limited"`)
	require.Equal(t, 1.0, testutil.ToFloat64(rateLimited.WithLabelValues("POST /auth/login-password"))-before)

	clock.Advance(8 * time.Second)
	require.Equal(t, http.StatusOK, send().Code)
}

func TestRateLimitMiddlewareRoundsRetryAfterUp(t *testing.T) {
	clock := newFakeClock()
	cfg := RateLimitConfig{RequestsPerWindow: 1, Window: 1500 * time.Millisecond, Burst: 1}
	h := newLimiterSet(cfg, clock.Now).middleware(IPKeyExtractor)(okHandler())

	var w *httptest.ResponseRecorder
	for range 2 {
		w = httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	}
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	require.Equal(t, "2", w.Header().Get("Retry-After"))
}

func TestRateLimitMiddlewarePassesUnkeyed(t *testing.T) {
	h := RateLimitMiddleware(RateLimitConfig{RequestsPerWindow: 1, Window: time.Hour, Burst: 1},
		func(*http.Request) string { return "" })(okHandler())

	for range 5 {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		require.Equal(t, http.StatusOK, w.Code)
	}
}

func TestRateLimitByJSONFieldSharesBucketAcrossCase(t *testing.T) {
	var bodies []string
	h := RateLimitByJSONField(RateLimitConfig{RequestsPerWindow: 2, Window: time.Hour, Burst: 2}, "email")(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, _ := io.ReadAll(r.Body)
			bodies = append(bodies, string(raw))
		}))

	var codes []int
	for _, email := range []string{"Ann@Example.com", " ann@example.com", "ANN@EXAMPLE.COM", "bob@example.com"} {
		body := `{"email":"` + email + `","password":"x"}`
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body)))
		codes = append(codes, w.Code)
	}

	require.Equal(t, []int{200, 200, 429, 200}, codes)
	require.Len(t, bodies, 3)
	require.Equal(t, `{"email":"Ann@Example.com","password":"x"}`, bodies[0], "body restored for the handler")
}

func TestIPKeyExtractor(t *testing.T) {
	tests := []struct {
		name   string
		remote string
		want   string
	}{
		{name: "peer address", remote: "198.51.100.4:1234", want: "198.51.100.4"},
		{name: "mapped v4", remote: "[::ffff:198.51.100.5]:80", want: "198.51.100.5"},
		{name: "v6 peer", remote: "[2001:db8::1]:443", want: "2001:db8::1"},
		{name: "no port", remote: "198.51.100.6", want: "198.51.100.6"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tt.remote
			r.Header.Set("X-Forwarded-For", "203.0.113.9")
			r.Header.Set("X-Real-IP", "203.0.113.10")
			require.Equal(t, tt.want, IPKeyExtractor(r), "headers are ignored without ClientIP")
		})
	}
}

func TestClientIP(t *testing.T) {
	trusted, err := ParseTrustedProxies([]string{"10.0.0.0/8", " 192.0.2.1 "})
	require.NoError(t, err)

	tests := []struct {
		name    string
		trusted []netip.Prefix
		remote  string
		xff     []string
		realIP  string
		want    string
	}{
		{name: "untrusted peer keeps its address", trusted: trusted, remote: "198.51.100.4:1234", xff: []string{"203.0.113.9"}, want: "198.51.100.4"},
		{name: "no proxies configured", remote: "10.0.0.1:80", xff: []string{"203.0.113.9"}, realIP: "203.0.113.10", want: "10.0.0.1"},
		{name: "trusted peer forwards client", trusted: trusted, remote: "10.0.0.1:80", xff: []string{"203.0.113.9"}, want: "203.0.113.9"},
		{name: "spoofed leftmost entry skipped", trusted: trusted, remote: "10.0.0.1:80", xff: []string{"1.2.3.4, 203.0.113.9"}, want: "203.0.113.9"},
		{name: "trusted hops skipped", trusted: trusted, remote: "10.0.0.1:80", xff: []string{"203.0.113.9, 192.0.2.1", "10.1.1.1"}, want: "203.0.113.9"},
		{name: "junk hop stops the walk", trusted: trusted, remote: "10.0.0.1:80", xff: []string{"203.0.113.9, not-an-ip, 10.2.2.2"}, want: "10.2.2.2"},
		{name: "real ip from trusted peer", trusted: trusted, remote: "192.0.2.1:80", realIP: " 203.0.113.10 ", want: "203.0.113.10"},
		{name: "mapped trusted peer", trusted: trusted, remote: "[::ffff:10.0.0.1]:80", xff: []string{"203.0.113.9"}, want: "203.0.113.9"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got string
			h := ClientIP(tt.trusted)(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
				got = IPKeyExtractor(r)
			}))

			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tt.remote
			for _, v := range tt.xff {
				r.Header.Add("X-Forwarded-For", v)
			}
			if tt.realIP != "" {
				r.Header.Set("X-Real-IP", tt.realIP)
			}
			h.ServeHTTP(httptest.NewRecorder(), r)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestParseTrustedProxies(t *testing.T) {
	got, err := ParseTrustedProxies([]string{"10.1.2.3/8", "::ffff:192.0.2.1", "2001:db8::/32", ""})
	require.NoError(t, err)
	require.Equal(t, []netip.Prefix{
		netip.MustParsePrefix("10.0.0.0/8"),
		netip.MustParsePrefix("192.0.2.1/32"),
		netip.MustParsePrefix("2001:db8::/32"),
	}, got)

	_, err = ParseTrustedProxies([]string{"proxy.internal"})
	require.Error(t, err)
	_, err = ParseTrustedProxies([]string{"10.0.0.0/99"})
	require.Error(t, err)
}

func TestJSONFieldKeyExtractor(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"string member", `{"email":" A@X.com "}`, "a@x.com"},
		{"missing member", `{"other":"a@x.com"}`, ""},
		{"not a string", `{"email":42}`, ""},
		{"malformed", `{"email":`, ""},
		{"empty", ``, ""},
	}
	extract := JSONFieldKeyExtractor("email")
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			require.Equal(t, tt.want, extract(r))

			rest, err := io.ReadAll(r.Body)
			require.NoError(t, err)
			require.Equal(t, tt.body, string(rest))
		})
	}
}

func TestCompositeKeyExtractor(t *testing.T) {
	extract := CompositeKeyExtractor("|", PrincipalKeyExtractor, IPKeyExtractor)

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "198.51.100.4:1234"
	require.Equal(t, "198.51.100.4", extract(r), "anonymous falls back to the address")

	r = r.WithContext(WithPrincipal(r.Context(), Principal{UserID: "01J0USER"}))
	require.Equal(t, "01J0USER|198.51.100.4", extract(r))
}

func TestParseRateLimitFromEnv(t *testing.T) {
	def := RateLimitConfig{RequestsPerWindow: 5, Window: time.Minute, Burst: 5}

	tests := []struct {
		name string
		env  map[string]string
		want RateLimitConfig
	}{
		{"defaults", nil, def},
		{"all set", map[string]string{
			"RATELIMIT_T_REQUESTS": "3",
			"RATELIMIT_T_WINDOW":   "1h",
			"RATELIMIT_T_BURST":    "2",
		}, RateLimitConfig{RequestsPerWindow: 3, Window: time.Hour, Burst: 2}},
		{"window in seconds", map[string]string{"RATELIMIT_T_WINDOW": "90"},
			RateLimitConfig{RequestsPerWindow: 5, Window: 90 * time.Second, Burst: 5}},
		{"invalid kept", map[string]string{
			"RATELIMIT_T_REQUESTS": "-1",
			"RATELIMIT_T_WINDOW":   "soon",
			"RATELIMIT_T_BURST":    "0",
		}, def},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			require.Equal(t, tt.want, ParseRateLimitFromEnv("T", def))
		})
	}
}

func BenchmarkRateLimitMiddleware(b *testing.B) {
	h := RateLimitByIP(RateLimitConfig{RequestsPerWindow: 1 << 30, Window: time.Second, Burst: 1 << 30})(okHandler())
	r := httptest.NewRequest(http.MethodGet, "/", nil)

	for b.Loop() {
		h.ServeHTTP(httptest.NewRecorder(), r)
	}
}
