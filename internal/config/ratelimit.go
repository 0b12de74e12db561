package config

import "time"

// Bucket is one token bucket: Burst requests at once, then one more every
// Every.
type Bucket struct {
    Burst int
    Every time.Duration
}

// TTL is how long an idle bucket is kept; by then it has refilled anyway.
func (b Bucket) TTL() time.Duration { return time.Duration(b.Burst+1) * b.Every }

// RateLimitConfig drives the Redis token buckets in front of the public
// write endpoints.  Sign-in (register and login) and payment (checkout and
// donations) draw from separate buckets.  Box office and venue traffic is
// staff-only and not limited.
type RateLimitConfig struct {
    Enabled bool
    Prefix  string
    SignIn  Bucket
    Payment Bucket
}

// LoadRateLimitConfig reads RATE_LIMIT_* variables.  Bursts below one and
// non-positive intervals fall back to the defaults.
func LoadRateLimitConfig() RateLimitConfig {
    return RateLimitConfig{
        Enabled: envBool("RATE_LIMIT_ENABLED", true),
        Prefix:  envStr("RATE_LIMIT_PREFIX", "fbo:rl"),
        SignIn:  loadBucket("RATE_LIMIT_SIGNIN", Bucket{Burst: 5, Every: 12 * time.Second}),
        Payment: loadBucket("RATE_LIMIT_PAYMENT", Bucket{Burst: 10, Every: 6 * time.Second}),
    }
}

func loadBucket(prefix string, def Bucket) Bucket {
    b := Bucket{
        Burst: envInt(prefix+"_BURST", def.Burst),
        Every: envDur(prefix+"_EVERY", def.Every),
    }
    if b.Burst < 1 {
        b.Burst = def.Burst
    }
    if b.Every <= 0 {
        b.Every = def.Every
    }
    return b
}
