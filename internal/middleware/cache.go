package middleware

import (
    "bytes"
    "context"
    "crypto/sha1"
    "encoding/json"
    "errors"
    "fmt"
    "net/http"

    "github.com/labstack/echo/v4"
    "github.com/redis/go-redis/v9"

    "github.com/iliyamo/festival-boxoffice/internal/config"
    "github.com/iliyamo/festival-boxoffice/internal/logger"
)

// bodyRecorder tees the response to the client and keeps a copy for the
// cache until the copy would exceed max.
type bodyRecorder struct {
    http.ResponseWriter
    status   int
    buf      bytes.Buffer
    max      int
    overflow bool
}

func (r *bodyRecorder) WriteHeader(code int) {
    r.status = code
    r.ResponseWriter.WriteHeader(code)
}

func (r *bodyRecorder) Write(b []byte) (int, error) {
    if !r.overflow {
        if r.max > 0 && r.buf.Len()+len(b) > r.max {
            r.overflow = true
            r.buf.Reset()
        } else {
            r.buf.Write(b)
        }
    }
    return r.ResponseWriter.Write(b)
}

type cachedResponse struct {
    ContentType string `json:"content_type"`
    Body        []byte `json:"body"`
}

// entryKey names one cached GET under a programme generation.  The
// concrete path is used, not the route pattern, so /shows/1 and /shows/2
// never collide.
func entryKey(prefix string, generation int64, r *http.Request) string {
    sum := sha1.Sum([]byte(r.URL.Path + "?" + r.URL.RawQuery))
    return fmt.Sprintf("%s:%d:%x", prefix, generation, sum)
}

// ProgrammeCache caches the public programme in Redis.  Without a client
// both middlewares pass through.
type ProgrammeCache struct {
    rdb *redis.Client
    cfg config.CacheConfig
    log logger.Logger
}

func NewProgrammeCache(cfg config.CacheConfig, rdb *redis.Client, log logger.Logger) *ProgrammeCache {
    if !cfg.Enabled {
        rdb = nil
    }
    return &ProgrammeCache{rdb: rdb, cfg: cfg, log: log.With("component", "cache")}
}

func (pc *ProgrammeCache) generation(ctx context.Context) (int64, error) {
    n, err := pc.rdb.Get(ctx, pc.cfg.GenerationKey()).Int64()
    if errors.Is(err, redis.Nil) {
        return 0, nil
    }
    return n, err
}

// Serve answers GETs from the cache and stores 200 responses.  Other
// methods and paths matched by CacheConfig.Skips go straight through.
func (pc *ProgrammeCache) Serve() echo.MiddlewareFunc {
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            req := c.Request()
            if pc.rdb == nil || req.Method != http.MethodGet || pc.cfg.Skips(req.URL.Path) {
                c.Response().Header().Set("X-Cache", "BYPASS")
                return next(c)
            }

            ctx := req.Context()
            gen, err := pc.generation(ctx)
            if err != nil {
                pc.log.Warn("cache generation unavailable", "error", err)
                c.Response().Header().Set("X-Cache", "BYPASS")
                return next(c)
            }
            key := entryKey(pc.cfg.Prefix, gen, req)

            if bs, err := pc.rdb.Get(ctx, key).Bytes(); err == nil {
                var hit cachedResponse
                if json.Unmarshal(bs, &hit) == nil {
                    c.Response().Header().Set("X-Cache", "HIT")
                    return c.Blob(http.StatusOK, hit.ContentType, hit.Body)
                }
            }

            rec := &bodyRecorder{ResponseWriter: c.Response().Writer, status: http.StatusOK, max: pc.cfg.MaxBodyBytes}
            c.Response().Writer = rec
            c.Response().Header().Set("X-Cache", "MISS")
            if err := next(c); err != nil {
                return err
            }
            if rec.status != http.StatusOK || rec.overflow {
                return nil
            }
            entry, err := json.Marshal(cachedResponse{
                ContentType: c.Response().Header().Get(echo.HeaderContentType),
                Body:        rec.buf.Bytes(),
            })
            if err == nil {
                err = pc.rdb.Set(context.Background(), key, entry, pc.cfg.TTL).Err()
            }
            if err != nil {
                pc.log.Warn("cache store failed", "path", req.URL.Path, "error", err)
            }
            return nil
        }
    }
}

// Invalidate bumps the programme generation after every successful write
// so that new shows and prices appear immediately.
func (pc *ProgrammeCache) Invalidate() echo.MiddlewareFunc {
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            err := next(c)
            if pc.rdb == nil || err != nil || c.Request().Method == http.MethodGet {
                return err
            }
            if s := c.Response().Status; s < 200 || s > 299 {
                return nil
            }
            if err := pc.rdb.Incr(context.Background(), pc.cfg.GenerationKey()).Err(); err != nil {
                pc.log.Error("cache invalidation failed", "error", err)
            }
            return nil
        }
    }
}
