package config

import (
    "testing"
    "time"
)

func TestLoadRateLimitConfigFallsBack(t *testing.T) {
    t.Setenv("RATE_LIMIT_SIGNIN_BURST", "0")
    t.Setenv("RATE_LIMIT_SIGNIN_EVERY", "-1s")

    cfg := LoadRateLimitConfig()
    if cfg.SignIn.Burst != 5 || cfg.SignIn.Every != 12*time.Second {
        t.Errorf("sign-in bucket = %+v", cfg.SignIn)
    }
    if cfg.SignIn.TTL() != 72*time.Second {
        t.Errorf("ttl = %s", cfg.SignIn.TTL())
    }
}

func TestLoadRateLimitConfigOverrides(t *testing.T) {
    t.Setenv("RATE_LIMIT_PAYMENT_BURST", "7")
    t.Setenv("RATE_LIMIT_PAYMENT_EVERY", "3s")

    cfg := LoadRateLimitConfig()
    if cfg.Payment != (Bucket{Burst: 7, Every: 3 * time.Second}) {
        t.Fatalf("payment bucket = %+v", cfg.Payment)
    }
    if cfg.SignIn.Burst != 5 {
        t.Errorf("sign-in bucket changed: %+v", cfg.SignIn)
    }
}

func TestCacheConfigSkipsAvailability(t *testing.T) {
    t.Setenv("CACHE_BYPASS", "")
    t.Setenv("CACHE_PREFIX", "fringe")
    cfg := LoadCacheConfig()

    cases := map[string]bool{
        "/v1/performances/12/availability": true,
        "/v1/performances/12/AVAILABILITY": true,
        "/v1/festivals/fringe/shows":       false,
    }
    for path, want := range cases {
        if got := cfg.Skips(path); got != want {
            t.Errorf("Skips(%q) = %v, want %v", path, got, want)
        }
    }
    if cfg.GenerationKey() != "fringe:generation" {
        t.Errorf("generation key = %q", cfg.GenerationKey())
    }
}

func TestLoadRedisConfigHostPortWins(t *testing.T) {
    t.Setenv("REDIS_ADDR", "cache:1234")
    t.Setenv("REDIS_HOST", "redis")
    t.Setenv("REDIS_PORT", "6380")
    t.Setenv("REDIS_TLS", "1")

    cfg := LoadRedisConfig()
    if cfg.Addr != "redis:6380" {
        t.Errorf("addr = %q", cfg.Addr)
    }
    if !cfg.TLS {
        t.Error("tls not enabled")
    }
}

func TestEnvBool(t *testing.T) {
    t.Setenv("FLAG", "off")
    if envBool("FLAG", true) {
        t.Error("off parsed as true")
    }
    t.Setenv("FLAG", "maybe")
    if !envBool("FLAG", true) {
        t.Error("unknown value should fall back to default")
    }
}

func TestSMTPEnabled(t *testing.T) {
    if (SMTPConfig{Host: "smtp"}).Enabled() {
        t.Error("enabled without sender")
    }
    if !(SMTPConfig{Host: "smtp", From: "box@fringe.test"}).Enabled() {
        t.Error("expected enabled")
    }
}
