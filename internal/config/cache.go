package config

import (
    "strings"
    "time"
)

// CacheConfig controls the Redis cache in front of the public programme
// (shows, ticket types, performances).  Bypass holds path suffixes that are
// never cached; availability changes with every sale.
type CacheConfig struct {
    Enabled      bool
    TTL          time.Duration
    Prefix       string
    MaxBodyBytes int // larger responses are served but not stored
    Bypass       []string
}

// LoadCacheConfig reads CACHE_* variables.
func LoadCacheConfig() CacheConfig {
    cfg := CacheConfig{
        Enabled:      envBool("CACHE_ENABLED", true),
        TTL:          envDur("CACHE_TTL", 30*time.Second),
        Prefix:       envStr("CACHE_PREFIX", "fbo:programme"),
        MaxBodyBytes: envInt("CACHE_MAX_BODY_BYTES", 1<<20),
        Bypass:       splitList(envStr("CACHE_BYPASS", "/availability")),
    }
    if cfg.TTL <= 0 {
        cfg.TTL = 30 * time.Second
    }
    return cfg
}

// Skips reports whether the request path must not be cached.
func (c CacheConfig) Skips(path string) bool {
    p := strings.ToLower(path)
    for _, b := range c.Bypass {
        if strings.HasSuffix(p, b) {
            return true
        }
    }
    return false
}

// GenerationKey holds the programme version.  Admin writes bump it, which
// orphans every cached entry at once.
func (c CacheConfig) GenerationKey() string { return c.Prefix + ":generation" }

func splitList(s string) []string {
    var out []string
    for _, p := range strings.Split(s, ",") {
        if p = strings.ToLower(strings.TrimSpace(p)); p != "" {
            out = append(out, p)
        }
    }
    return out
}
