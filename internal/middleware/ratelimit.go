package middleware

import (
    "net/http"
    "strconv"
    "time"

    "github.com/labstack/echo/v4"
    "github.com/redis/go-redis/v9"

    "github.com/iliyamo/festival-boxoffice/internal/config"
    "github.com/iliyamo/festival-boxoffice/internal/logger"
)

// takeToken refills the bucket continuously and takes one token when there
// is one.  It returns {allowed, tokens left, wait ms}.
var takeToken = redis.NewScript(`
local now = tonumber(ARGV[1])
local burst = tonumber(ARGV[2])
local every = tonumber(ARGV[3])
local state = redis.call('HMGET', KEYS[1], 'tokens', 'ts')
local tokens = tonumber(state[1]) or burst
local ts = tonumber(state[2]) or now
tokens = math.min(burst, tokens + math.max(0, now - ts) / every)
local allowed, wait = 0, 0
if tokens >= 1 then
  allowed = 1
  tokens = tokens - 1
else
  wait = math.ceil((1 - tokens) * every)
end
redis.call('HSET', KEYS[1], 'tokens', tostring(tokens), 'ts', now)
redis.call('PEXPIRE', KEYS[1], tonumber(ARGV[4]))
return {allowed, math.floor(tokens), wait}
`)

// RateLimiter hands out Redis token-bucket middlewares.  Redis errors and
// a missing client let requests through.
type RateLimiter struct {
    rdb *redis.Client
    cfg config.RateLimitConfig
    log logger.Logger
    now func() time.Time
}

func NewRateLimiter(cfg config.RateLimitConfig, rdb *redis.Client, log logger.Logger) *RateLimiter {
    if !cfg.Enabled {
        rdb = nil
    }
    return &RateLimiter{rdb: rdb, cfg: cfg, log: log.With("component", "ratelimit"), now: time.Now}
}

// SignIn limits registration and login per client.
func (l *RateLimiter) SignIn() echo.MiddlewareFunc { return l.bucket("signin", l.cfg.SignIn) }

// Payment limits starting a checkout or donation per client.
func (l *RateLimiter) Payment() echo.MiddlewareFunc { return l.bucket("payment", l.cfg.Payment) }

// rateKey identifies the client: the user when JWTAuth ran, else the IP.
func rateKey(prefix, bucket string, c echo.Context) string {
    if id := userID(c); id != "guest" {
        return prefix + ":" + bucket + ":user:" + id
    }
    ip := c.RealIP()
    if ip == "" {
        ip = "unknown"
    }
    return prefix + ":" + bucket + ":ip:" + ip
}

func (l *RateLimiter) bucket(name string, b config.Bucket) echo.MiddlewareFunc {
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        if l.rdb == nil {
            return next
        }
        return func(c echo.Context) error {
            key := rateKey(l.cfg.Prefix, name, c)
            res, err := takeToken.Run(c.Request().Context(), l.rdb, []string{key},
                l.now().UnixMilli(), b.Burst, b.Every.Milliseconds(), b.TTL().Milliseconds()).Int64Slice()
            if err != nil || len(res) != 3 {
                l.log.Warn("rate limit check failed", "key", key, "error", err)
                return next(c)
            }

            h := c.Response().Header()
            h.Set("X-RateLimit-Limit", strconv.Itoa(b.Burst))
            h.Set("X-RateLimit-Remaining", strconv.FormatInt(res[1], 10))
            if res[0] == 1 {
                return next(c)
            }

            secs := (res[2] + 999) / 1000
            h.Set("Retry-After", strconv.FormatInt(secs, 10))
            l.log.Info("rate limited", "bucket", name, "key", key)
            return c.JSON(http.StatusTooManyRequests, echo.Map{
                "error":       "too many requests",
                "retry_after": secs,
            })
        }
    }
}
