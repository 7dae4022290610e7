package httpmiddleware

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RateLimitConfig configures the fixed window rate limiter.
type RateLimitConfig struct {
	// Max is the maximum number of requests allowed per window.
	Max int
	// Window is the duration of each window.
	Window time.Duration
	// Prefix namespaces the Redis counters.
	Prefix string
	// KeyFunc extracts the rate limit key from a request.
	// If nil, the client IP address is used.
	KeyFunc func(*http.Request) string
}

// hitScript counts a request and returns the new count and the remaining
// window in milliseconds. The first hit of a window starts its expiry.
var hitScript = redis.NewScript(`
local n = redis.call('INCR', KEYS[1])
if n == 1 then
	redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
local ttl = redis.call('PTTL', KEYS[1])
return {n, ttl}
`)

type rateLimiter struct {
	cfg    RateLimitConfig
	client redis.Scripter
}

func (rl *rateLimiter) hit(r *http.Request, key string) (count int64, reset time.Duration, err error) {
	res, err := hitScript.Run(r.Context(), rl.client,
		[]string{rl.cfg.Prefix + key},
		rl.cfg.Window.Milliseconds(),
	).Int64Slice()
	if err != nil {
		return 0, 0, errors.Wrap(err, "run rate limit script")
	}
	if len(res) != 2 {
		return 0, 0, errors.Errorf("unexpected rate limit reply %v", res)
	}
	reset = time.Duration(res[1]) * time.Millisecond
	if reset < 0 {
		reset = rl.cfg.Window
	}
	return res[0], reset, nil
}

// RateLimit returns a middleware that enforces a per-key fixed window rate
// limit shared by every instance through Redis. When the limit is exceeded it
// responds with 429 Too Many Requests and a JSON body. Allowed responses carry
// X-RateLimit-Limit, X-RateLimit-Remaining and X-RateLimit-Reset headers.
//
// Requests pass through unlimited while Redis is unavailable.
func RateLimit(client redis.Scripter, cfg RateLimitConfig) Middleware {
	if cfg.KeyFunc == nil {
		cfg.KeyFunc = defaultKeyFunc
	}
	if cfg.Prefix == "" {
		cfg.Prefix = "freshcart:ratelimit:"
	}
	rl := &rateLimiter{cfg: cfg, client: client}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			count, reset, err := rl.hit(r, cfg.KeyFunc(r))
			if err != nil {
				zctx.From(r.Context()).Warn("Rate limiter unavailable", zap.Error(err))
				next.ServeHTTP(w, r)
				return
			}

			remaining := max(int64(cfg.Max)-count, 0)
			resetAt := time.Now().Add(reset)
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(cfg.Max))
			w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(resetAt.Unix(), 10))

			if count > int64(cfg.Max) {
				w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(reset.Seconds()))))
				writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// defaultKeyFunc extracts the client IP from the request, checking
// X-Forwarded-For first, then X-Real-IP, then falling back to RemoteAddr.
func defaultKeyFunc(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		// X-Forwarded-For may contain a comma-separated list; use the first.
		if i := strings.IndexByte(xff, ','); i > 0 {
			return strings.TrimSpace(xff[:i])
		}
		return strings.TrimSpace(xff)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
