package config

import "time"

type Config struct {
	Port           string
	Environment    string
	AllowedOrigins []string

	// per-IP request ceiling applied ahead of the gateway
	RateLimitRequests int64
	RateLimitWindow   time.Duration
}

// reports whether the server runs in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
