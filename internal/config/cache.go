package config

import (
	"log"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// CacheConfig defines settings for the response cache middleware that sits
// in front of the availability feed.  When Enabled is false or no Redis
// client is configured, caching is disabled.  MethodList is the raw
// CACHE_METHODS value; Methods is its upper-cased set form.
type CacheConfig struct {
	Enabled      bool          `envconfig:"ENABLED" default:"true"`
	MethodList   []string      `envconfig:"METHODS" default:"GET"`
	TTL          time.Duration `envconfig:"TTL" default:"30s"`
	KeyStrategy  string        `envconfig:"KEY_STRATEGY" default:"route_query"`
	Prefix       string        `envconfig:"PREFIX" default:"cache"`
	MaxBodyBytes int           `envconfig:"MAX_BODY_BYTES" default:"1048576"`

	Methods map[string]bool `ignored:"true"`
}

// LoadCacheConfig reads CACHE_* variables.
func LoadCacheConfig() CacheConfig {
	var cc CacheConfig
	if err := envconfig.Process("CACHE", &cc); err != nil {
		log.Printf("cache config: %v; caching disabled", err)
		return CacheConfig{Methods: map[string]bool{}}
	}
	cc.Methods = parseMethods(cc.MethodList)
	if cc.TTL <= 0 {
		cc.TTL = time.Second
	}
	return cc
}

func parseMethods(list []string) map[string]bool {
	m := map[string]bool{}
	for _, p := range list {
		p = strings.TrimSpace(strings.ToUpper(p))
		if p != "" {
			m[p] = true
		}
	}
	return m
}
