package httpx

import (
	"math"
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/aussiebroadwan/quickfix/pkg/slogx"
	"golang.org/x/time/rate"
)

// RateLimitConfig is a token bucket: RequestsPerWindow tokens refill evenly
// over Window, and at most Burst can be spent at once.
type RateLimitConfig struct {
	RequestsPerWindow int
	Window            time.Duration
	Burst             int
}

func (c RateLimitConfig) perSecond() rate.Limit {
	if c.Window <= 0 {
		return rate.Inf
	}
	return rate.Limit(float64(c.RequestsPerWindow) / c.Window.Seconds())
}

// refill is how long an emptied bucket takes to fill back to Burst.
func (c RateLimitConfig) refill() time.Duration {
	if c.RequestsPerWindow <= 0 {
		return c.Window
	}
	return time.Duration(float64(c.Window) * float64(c.Burst) / float64(c.RequestsPerWindow))
}

// Profiles used by the router. StrictLimit guards password and code
// checks, ModerateLimit the endpoints that send mail, LenientLimit
// authenticated calls and PublicLimit probes and docs.
//
// Each is overridable with RATELIMIT_<NAME>_REQUESTS, RATELIMIT_<NAME>_WINDOW
// (a Go duration, or plain seconds) and RATELIMIT_<NAME>_BURST.
var (
	StrictLimit   = ParseRateLimitFromEnv("STRICT", RateLimitConfig{RequestsPerWindow: 5, Window: time.Minute, Burst: 5})
	ModerateLimit = ParseRateLimitFromEnv("MODERATE", RateLimitConfig{RequestsPerWindow: 20, Window: time.Minute, Burst: 20})
	LenientLimit  = ParseRateLimitFromEnv("LENIENT", RateLimitConfig{RequestsPerWindow: 100, Window: time.Minute, Burst: 100})
	PublicLimit   = ParseRateLimitFromEnv("PUBLIC", RateLimitConfig{RequestsPerWindow: 1000, Window: time.Minute, Burst: 1000})
)

// ParseRateLimitFromEnv applies the RATELIMIT_<name>_* overrides to def.
// Unset, malformed or non-positive values keep the default.
func ParseRateLimitFromEnv(name string, def RateLimitConfig) RateLimitConfig {
	cfg := def
	prefix := "RATELIMIT_" + name + "_"

	if n, ok := positiveEnvInt(prefix + "REQUESTS"); ok {
		cfg.RequestsPerWindow = n
	}
	if n, ok := positiveEnvInt(prefix + "BURST"); ok {
		cfg.Burst = n
	}
	if v := os.Getenv(prefix + "WINDOW"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.Window = d
		} else if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Window = time.Duration(n) * time.Second
		}
	}
	return cfg
}

func positiveEnvInt(key string) (int, bool) {
	n, err := strconv.Atoi(os.Getenv(key))
	return n, err == nil && n > 0
}

// limiterSet holds one bucket per key. A key idle for longer than a full
// refill has a full bucket again, so dropping it is invisible to callers.
type limiterSet struct {
	cfg   RateLimitConfig
	limit rate.Limit
	idle  time.Duration
	now   func() time.Time

	mu        sync.Mutex
	buckets   map[string]*bucket
	nextSweep time.Time
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func newLimiterSet(cfg RateLimitConfig, now func() time.Time) *limiterSet {
	idle := max(cfg.refill(), cfg.Window, time.Minute)
	return &limiterSet{
		cfg:       cfg,
		limit:     cfg.perSecond(),
		idle:      idle,
		now:       now,
		buckets:   make(map[string]*bucket),
		nextSweep: now().Add(idle),
	}
}

// take spends one token for key. When the bucket is empty it reports how
// long until a token is available and spends nothing.
func (s *limiterSet) take(key string) (bool, time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.sweep(now)

	b, ok := s.buckets[key]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(s.limit, s.cfg.Burst)}
		s.buckets[key] = b
	}
	b.lastSeen = now

	res := b.limiter.ReserveN(now, 1)
	if !res.OK() {
		return false, s.cfg.Window
	}
	wait := res.DelayFrom(now)
	if wait == 0 {
		return true, 0
	}
	res.CancelAt(now)
	return false, wait
}

func (s *limiterSet) sweep(now time.Time) {
	if now.Before(s.nextSweep) {
		return
	}
	s.nextSweep = now.Add(s.idle)
	for key, b := range s.buckets {
		if now.Sub(b.lastSeen) > s.idle {
			delete(s.buckets, key)
		}
	}
}

func (s *limiterSet) size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.buckets)
}

// RateLimitMiddleware limits requests sharing a key to cfg. Requests the
// extractor cannot key (an anonymous caller, a body without the field) pass
// through; the handler behind rejects them on its own terms.
func RateLimitMiddleware(cfg RateLimitConfig, key KeyExtractor) Middleware {
	return newLimiterSet(cfg, time.Now).middleware(key)
}

func (s *limiterSet) middleware(key KeyExtractor) Middleware {
	limitHeader := strconv.Itoa(s.cfg.RequestsPerWindow)
	windowHeader := s.cfg.Window.String()

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			k := key(r)
			if k == "" {
				slogx.FromContext(r.Context()).Debug("rate limit skipped, no key", "path", r.URL.Path)
				next.ServeHTTP(w, r)
				return
			}

			ok, wait := s.take(k)
			if ok {
				next.ServeHTTP(w, r)
				return
			}

			retryAfter := max(int(math.Ceil(wait.Seconds())), 1)
			route := routeLabel(r)
			rateLimited.WithLabelValues(route).Inc()
			// The key may be an email address, so it stays out of the log.
			slogx.FromContext(r.Context()).Warn("rate limited",
				"route", route,
				"retry_after_sec", retryAfter,
			)

			h := w.Header()
			h.Set("Retry-After", strconv.Itoa(retryAfter))
			h.Set("X-RateLimit-Limit", limitHeader)
			h.Set("X-RateLimit-Window", windowHeader)
			NoCache(w)
			WriteJSON(w, http.StatusTooManyRequests, map[string]string{
				"error":             ErrorCodeRateLimited,
				"error_description": "too many attempts, wait a moment and try again",
			})
		})
	}
}

// ErrorCodeRateLimited is the error code of a 429 response.
const ErrorCodeRateLimited = "rate_limited"

// RateLimitByIP keys on the client address.
func RateLimitByIP(cfg RateLimitConfig) Middleware {
	return RateLimitMiddleware(cfg, IPKeyExtractor)
}

// RateLimitByUser keys on the signed-in user and address together, so one
// account shared across machines does not exhaust a single bucket.
func RateLimitByUser(cfg RateLimitConfig) Middleware {
	return RateLimitMiddleware(cfg, CompositeKeyExtractor("|", PrincipalKeyExtractor, IPKeyExtractor))
}

// RateLimitByJSONField keys on a body member, such as the email being
// signed into, regardless of where the requests come from.
func RateLimitByJSONField(cfg RateLimitConfig, field string) Middleware {
	return RateLimitMiddleware(cfg, JSONFieldKeyExtractor(field))
}
