package config

import (
	"log"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// RateLimitConfig drives the token bucket guarding the challenge and login
// endpoints.  RATE_LIMIT_BURST and RATE_LIMIT_REFILL_EVERY are shorthands
// that override Capacity and the refill pair.
type RateLimitConfig struct {
	Enabled        bool          `envconfig:"ENABLED" default:"true"`
	Capacity       int           `envconfig:"CAPACITY" default:"10"`
	RefillTokens   int           `envconfig:"REFILL_TOKENS" default:"1"`
	RefillInterval time.Duration `envconfig:"REFILL_INTERVAL" default:"6s"`
	TTL            time.Duration `envconfig:"TTL" default:"10m"`
	KeyStrategy    string        `envconfig:"KEY_STRATEGY" default:"ip_route"`
	Prefix         string        `envconfig:"PREFIX" default:"rl"`
	Debug          bool          `envconfig:"DEBUG" default:"false"`
	Burst          int           `envconfig:"BURST" default:"-1"`
	RefillEvery    time.Duration `envconfig:"REFILL_EVERY" default:"0s"`
}

// LoadRateLimitConfig reads RATE_LIMIT_* variables.
func LoadRateLimitConfig() RateLimitConfig {
	var rl RateLimitConfig
	if err := envconfig.Process("RATE_LIMIT", &rl); err != nil {
		log.Printf("rate limit config: %v; using defaults", err)
		rl = RateLimitConfig{Enabled: true, Capacity: 10, RefillTokens: 1, RefillInterval: 6 * time.Second, TTL: 10 * time.Minute, KeyStrategy: "ip_route", Prefix: "rl"}
	}
	return rl.normalize()
}

func (rl RateLimitConfig) normalize() RateLimitConfig {
	if rl.Burst > 0 {
		rl.Capacity = rl.Burst
	}
	if rl.RefillEvery > 0 {
		rl.RefillTokens = 1
		rl.RefillInterval = rl.RefillEvery
	}
	if rl.Capacity < 1 {
		rl.Capacity = 1
	}
	if rl.RefillTokens < 1 {
		rl.RefillTokens = 1
	}
	if rl.RefillInterval <= 0 {
		rl.RefillInterval = time.Second
	}
	minTTL := 5 * rl.RefillInterval
	if rl.TTL < minTTL {
		rl.TTL = minTTL
	}
	return rl
}
